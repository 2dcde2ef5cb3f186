package config

import "os"

// badFileName replaces output names which become empty after cleaning.
const badFileName = "_bad_stylesheet_name_"

// noColor honors https://no-color.org convention.
func noColor() bool {
	return len(os.Getenv("NO_COLOR")) > 0
}
