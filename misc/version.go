// Package misc keeps build time information.
package misc

// Set with -ldflags "-X cssprune/misc.version=... -X cssprune/misc.gitHash=..."
var (
	version = "dev"
	gitHash = "unknown"
)

const appName = "cssprune"

func GetAppName() string {
	return appName
}

func GetVersion() string {
	return version
}

func GetGitHash() string {
	return gitHash
}
