package css

import (
	"fmt"
	"slices"
	"strings"
)

// Position is a location in the source text. Line and Column are 1-based,
// zero value means "unknown".
type Position struct {
	Line   int
	Column int
}

// Before reports whether p precedes o in the source.
func (p Position) Before(o Position) bool {
	if p.Line != o.Line {
		return p.Line < o.Line
	}
	return p.Column < o.Column
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Declaration is a single "property: value" pair of a style rule.
type Declaration struct {
	Property  string
	Value     string
	Important bool
}

func (d Declaration) String() string {
	if d.Important {
		return d.Property + ": " + d.Value + " !important"
	}
	return d.Property + ": " + d.Value
}

// Rule represents a single style rule (selector list + declarations).
type Rule struct {
	Selector     string        // Selector list text as it appears in the source
	Declarations []Declaration // In source order
	Pos          Position      // Start of the rule in the source

	parent *Group
}

// Parent returns the group the rule belongs to or nil for detached rules.
func (r *Rule) Parent() *Group {
	return r.parent
}

// IsEmpty returns true if the rule has no declarations left.
func (r *Rule) IsEmpty() bool {
	return len(r.Declarations) == 0
}

// RemoveIf deletes all declarations for which fn returns true keeping the
// relative order of the rest. Returns number of removed declarations.
func (r *Rule) RemoveIf(fn func(Declaration) bool) int {
	before := len(r.Declarations)
	r.Declarations = slices.DeleteFunc(r.Declarations, fn)
	return before - len(r.Declarations)
}

// RemoveProperty deletes every declaration of the named property.
func (r *Rule) RemoveProperty(name string) int {
	return r.RemoveIf(func(d Declaration) bool { return d.Property == name })
}

// Detach removes the rule from its parent group. Groups left without any
// children are removed as well, all the way up to (but not including) the
// stylesheet root.
func (r *Rule) Detach() {
	g := r.parent
	if g == nil {
		return
	}
	g.Items = slices.DeleteFunc(g.Items, func(it Item) bool { return it.Rule == r })
	r.parent = nil
	g.collapse()
}

// Raw is an at-rule kept verbatim (@import, @font-face, @keyframes, @page...).
type Raw struct {
	Text string
	Pos  Position
}

// Comment is a top-level comment including its delimiters.
type Comment struct {
	Text string
	Pos  Position
}

// Item is a single entry in a rule list.
// Exactly one of Rule, Group, Raw or Comment is non-nil.
type Item struct {
	Rule    *Rule
	Group   *Group
	Raw     *Raw
	Comment *Comment
}

// Group is a grouping construct - an at-rule whose body is a rule list
// (@media, @supports...) or the stylesheet root. Every group holds its own
// independent stream of rules.
type Group struct {
	Name    string   // At-rule name including "@", empty for the root
	Prelude string   // At-rule prelude, e.g. "screen and (min-width: 720px)"
	Pos     Position // Start of the at-rule in the source
	Items   []Item

	parent *Group
}

// Parent returns enclosing group, nil for root and detached groups.
func (g *Group) Parent() *Group {
	return g.parent
}

// IsRoot returns true for the stylesheet root group.
func (g *Group) IsRoot() bool {
	return g.Name == "" && g.parent == nil
}

// AppendRule adds rule at the end of the group.
func (g *Group) AppendRule(r *Rule) {
	r.parent = g
	g.Items = append(g.Items, Item{Rule: r})
}

// AppendGroup adds nested group at the end of the group.
func (g *Group) AppendGroup(child *Group) {
	child.parent = g
	g.Items = append(g.Items, Item{Group: child})
}

// AppendRaw adds verbatim at-rule at the end of the group.
func (g *Group) AppendRaw(raw *Raw) {
	g.Items = append(g.Items, Item{Raw: raw})
}

// AppendComment adds comment at the end of the group.
func (g *Group) AppendComment(c *Comment) {
	g.Items = append(g.Items, Item{Comment: c})
}

// InsertBefore puts rule r immediately before ref, which must be a child of g.
func (g *Group) InsertBefore(ref, r *Rule) error {
	i := slices.IndexFunc(g.Items, func(it Item) bool { return it.Rule == ref })
	if i < 0 {
		return fmt.Errorf("rule %q at %s does not belong to the group", ref.Selector, ref.Pos)
	}
	r.parent = g
	g.Items = slices.Insert(g.Items, i, Item{Rule: r})
	return nil
}

// Rules returns direct child rules in document order.
func (g *Group) Rules() []*Rule {
	rules := make([]*Rule, 0, len(g.Items))
	for _, it := range g.Items {
		if it.Rule != nil {
			rules = append(rules, it.Rule)
		}
	}
	return rules
}

// NextRule returns the rule immediately following r in the group. Comments
// in between are ignored, any other item breaks adjacency and nil is returned.
func (g *Group) NextRule(r *Rule) *Rule {
	i := slices.IndexFunc(g.Items, func(it Item) bool { return it.Rule == r })
	if i < 0 {
		return nil
	}
	for _, it := range g.Items[i+1:] {
		switch {
		case it.Comment != nil:
			continue
		case it.Rule != nil:
			return it.Rule
		default:
			return nil
		}
	}
	return nil
}

// Detach removes the group from its parent, cascading upwards the same way
// Rule.Detach does. Root cannot be detached.
func (g *Group) Detach() {
	p := g.parent
	if p == nil {
		return
	}
	p.Items = slices.DeleteFunc(p.Items, func(it Item) bool { return it.Group == g })
	g.parent = nil
	p.collapse()
}

// collapse removes emptied groups walking up the tree.
func (g *Group) collapse() {
	for g != nil && g.parent != nil && len(g.Items) == 0 {
		p := g.parent
		p.Items = slices.DeleteFunc(p.Items, func(it Item) bool { return it.Group == g })
		g.parent = nil
		g = p
	}
}

// Groups returns g and all nested groups in pre-order.
func (g *Group) Groups() []*Group {
	groups := []*Group{g}
	for _, it := range g.Items {
		if it.Group != nil {
			groups = append(groups, it.Group.Groups()...)
		}
	}
	return groups
}

// AllRules returns every rule in g and nested groups in document order.
func (g *Group) AllRules() []*Rule {
	var rules []*Rule
	for _, it := range g.Items {
		switch {
		case it.Rule != nil:
			rules = append(rules, it.Rule)
		case it.Group != nil:
			rules = append(rules, it.Group.AllRules()...)
		}
	}
	return rules
}

// Header returns the at-rule header, e.g. "@media print".
func (g *Group) Header() string {
	if g.Prelude == "" {
		return g.Name
	}
	return g.Name + " " + g.Prelude
}

// Stylesheet represents a parsed CSS stylesheet.
type Stylesheet struct {
	Root    *Group
	Charset string // Character set the source was decoded from, empty if UTF-8
}

// NewStylesheet creates empty stylesheet.
func NewStylesheet() *Stylesheet {
	return &Stylesheet{Root: &Group{}}
}

// Rules returns all rules of the stylesheet, nested ones included.
func (s *Stylesheet) Rules() []*Rule {
	return s.Root.AllRules()
}

// CountDeclarations returns total number of declarations in all rules.
func (s *Stylesheet) CountDeclarations() int {
	n := 0
	for _, r := range s.Rules() {
		n += len(r.Declarations)
	}
	return n
}

// RulesBySelector returns all rules (nested included) with exactly the given
// selector text.
func (s *Stylesheet) RulesBySelector(selector string) []*Rule {
	var matches []*Rule
	for _, r := range s.Rules() {
		if strings.TrimSpace(r.Selector) == selector {
			matches = append(matches, r)
		}
	}
	return matches
}
