package optimize

import (
	"cssprune/css"
)

// PropertyEntry is the effective value of a property within one rule.
type PropertyEntry struct {
	Value     string
	Important bool
}

// PropertyTable maps property name to its effective entry.
type PropertyTable map[string]PropertyEntry

// gatherProperties builds property table of the rule, later declarations of
// the same property overwrite earlier ones.
func gatherProperties(r *css.Rule) PropertyTable {
	props := make(PropertyTable, len(r.Declarations))
	for _, d := range r.Declarations {
		props[d.Property] = PropertyEntry{Value: d.Value, Important: d.Important}
	}
	return props
}

// sharedProperties returns names of properties present in both tables with
// identical value and importance, in order of the rule declarations.
func sharedProperties(r *css.Rule, a, b PropertyTable) []string {
	var (
		names []string
		seen  = make(map[string]bool)
	)
	for _, d := range r.Declarations {
		if seen[d.Property] {
			continue
		}
		seen[d.Property] = true
		ea, ok := a[d.Property]
		if !ok {
			continue
		}
		if eb, ok := b[d.Property]; ok && ea == eb {
			names = append(names, d.Property)
		}
	}
	return names
}
