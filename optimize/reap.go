package optimize

import (
	"slices"

	"cssprune/css"
)

// reap removes rules without declarations and groups without children from
// the tree rooted at g. The root itself is never removed.
func reap(g *css.Group, stats *Stats) {
	for _, r := range g.AllRules() {
		if r.IsEmpty() {
			r.Detach()
			stats.RulesRemoved++
		}
	}

	// children before parents, detaching a child may empty its parent
	groups := g.Groups()
	for _, child := range slices.Backward(groups) {
		if child.Parent() != nil && len(child.Items) == 0 {
			child.Detach()
		}
	}
}
