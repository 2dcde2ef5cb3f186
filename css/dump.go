package css

import (
	"maps"
	"slices"
	"sort"

	"github.com/maruel/natural"

	"cssprune/utils/debug"
)

// Dump returns a readable tree of the stylesheet followed by selectors
// index. It exists solely for manual inspection and debug reports.
func (s *Stylesheet) Dump() string {
	if s == nil {
		return "<nil Stylesheet>"
	}

	tw := debug.NewTreeWriter()
	if s.Charset != "" {
		tw.Line(0, "Stylesheet (decoded from %s)", s.Charset)
	} else {
		tw.Line(0, "Stylesheet")
	}
	dumpItems(tw, s.Root.Items, 1)

	index := make(map[string][]Position)
	for _, r := range s.Rules() {
		index[r.Selector] = append(index[r.Selector], r.Pos)
	}
	if len(index) > 0 {
		tw.Line(0, "Selectors index (%d entries)", len(index))
		keys := slices.Collect(maps.Keys(index))
		sort.Sort(natural.StringSlice(keys))
		for _, k := range keys {
			tw.Line(1, "Selector[%q] rules%v", k, index[k])
		}
	}
	return tw.String()
}

func dumpItems(tw *debug.TreeWriter, items []Item, depth int) {
	for _, it := range items {
		switch {
		case it.Rule != nil:
			tw.Line(depth, "Rule[%s] declarations[%d]", it.Rule.Pos, len(it.Rule.Declarations))
			tw.Field(depth+1, "selector", it.Rule.Selector)
			for _, d := range it.Rule.Declarations {
				if d.Important {
					tw.Field(depth+1, d.Property+" (!important)", d.Value)
				} else {
					tw.Field(depth+1, d.Property, d.Value)
				}
			}
		case it.Group != nil:
			tw.Line(depth, "Group[%s] %s items[%d]", it.Group.Pos, it.Group.Name, len(it.Group.Items))
			tw.Field(depth+1, "prelude", it.Group.Prelude)
			dumpItems(tw, it.Group.Items, depth+1)
		case it.Raw != nil:
			tw.Line(depth, "Raw[%s]", it.Raw.Pos)
			tw.Field(depth+1, "text", it.Raw.Text)
		case it.Comment != nil:
			tw.Line(depth, "Comment[%s]", it.Comment.Pos)
			tw.Field(depth+1, "text", it.Comment.Text)
		}
	}
}
