package css_test

import (
	"strings"
	"testing"

	"cssprune/css"
)

func TestPosition_Before(t *testing.T) {
	tests := []struct {
		a, b css.Position
		want bool
	}{
		{css.Position{Line: 1, Column: 1}, css.Position{Line: 1, Column: 2}, true},
		{css.Position{Line: 1, Column: 9}, css.Position{Line: 2, Column: 1}, true},
		{css.Position{Line: 2, Column: 1}, css.Position{Line: 1, Column: 9}, false},
		{css.Position{Line: 3, Column: 3}, css.Position{Line: 3, Column: 3}, false},
	}
	for _, tt := range tests {
		if got := tt.a.Before(tt.b); got != tt.want {
			t.Errorf("%s.Before(%s) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestRule_RemoveProperty(t *testing.T) {
	r := &css.Rule{Declarations: []css.Declaration{
		{Property: "color", Value: "red"},
		{Property: "margin", Value: "0"},
		{Property: "color", Value: "blue"},
		{Property: "padding", Value: "1px"},
	}}
	if n := r.RemoveProperty("color"); n != 2 {
		t.Errorf("RemoveProperty() = %d, want 2", n)
	}
	if len(r.Declarations) != 2 || r.Declarations[0].Property != "margin" || r.Declarations[1].Property != "padding" {
		t.Errorf("unexpected declarations left: %v", r.Declarations)
	}
	if n := r.RemoveProperty("border"); n != 0 {
		t.Errorf("RemoveProperty() of missing property = %d, want 0", n)
	}
}

func TestRule_DetachCascades(t *testing.T) {
	sheet := mustParse(t, `.keep { color: red }
@media screen {
  @supports (display: grid) {
    .only { display: grid }
  }
}`)
	only := sheet.RulesBySelector(".only")[0]
	supports := only.Parent()
	media := supports.Parent()

	only.Detach()

	if only.Parent() != nil {
		t.Error("detached rule still has parent")
	}
	if supports.Parent() != nil || media.Parent() != nil {
		t.Error("emptied groups should be detached")
	}
	if len(sheet.Root.Items) != 1 || sheet.Root.Items[0].Rule == nil {
		t.Errorf("expected only .keep to remain, got %d items", len(sheet.Root.Items))
	}

	// detaching again is a no-op
	only.Detach()

	keep := sheet.RulesBySelector(".keep")[0]
	keep.Detach()
	if len(sheet.Root.Items) != 0 {
		t.Error("root should be empty")
	}
	if sheet.Root.Parent() != nil || !sheet.Root.IsRoot() {
		t.Error("root must stay root")
	}
}

func TestRule_DetachKeepsNonEmptyGroup(t *testing.T) {
	sheet := mustParse(t, `@media print { .a { color: red } @import "x.css"; }`)
	a := sheet.RulesBySelector(".a")[0]
	media := a.Parent()
	a.Detach()
	if media.Parent() == nil {
		t.Error("group with remaining raw item must stay")
	}
}

func TestGroup_InsertBefore(t *testing.T) {
	sheet := mustParse(t, ".a { x: 1 } .b { x: 2 }")
	b := sheet.RulesBySelector(".b")[0]
	merged := &css.Rule{Selector: ".m", Declarations: []css.Declaration{{Property: "y", Value: "3"}}}

	if err := sheet.Root.InsertBefore(b, merged); err != nil {
		t.Fatalf("InsertBefore() error = %v", err)
	}
	var order []string
	for _, r := range sheet.Root.Rules() {
		order = append(order, r.Selector)
	}
	if got := strings.Join(order, " "); got != ".a .m .b" {
		t.Errorf("rule order = %q, want %q", got, ".a .m .b")
	}
	if merged.Parent() != sheet.Root {
		t.Error("inserted rule has wrong parent")
	}

	stray := &css.Rule{Selector: ".stray"}
	if err := sheet.Root.InsertBefore(stray, &css.Rule{}); err == nil {
		t.Error("expected error inserting before foreign rule")
	}
}

func TestGroup_NextRule(t *testing.T) {
	sheet := mustParse(t, `.a { x: 1 }
/* comment */
.b { x: 2 }
@import "i.css";
.c { x: 3 }
@media print { .d { x: 4 } }
.e { x: 5 }`)
	get := func(sel string) *css.Rule { return sheet.RulesBySelector(sel)[0] }

	if next := sheet.Root.NextRule(get(".a")); next != get(".b") {
		t.Errorf("comment must be transparent for adjacency, got %v", next)
	}
	if next := sheet.Root.NextRule(get(".b")); next != nil {
		t.Errorf("raw at-rule must break adjacency, got %v", next)
	}
	if next := sheet.Root.NextRule(get(".c")); next != nil {
		t.Errorf("group must break adjacency, got %v", next)
	}
	if next := sheet.Root.NextRule(get(".e")); next != nil {
		t.Errorf("last rule has no next, got %v", next)
	}
	if next := sheet.Root.NextRule(get(".d")); next != nil {
		t.Errorf("rule of another group has no next in root, got %v", next)
	}
}

func TestGroup_Groups(t *testing.T) {
	sheet := mustParse(t, `@media a { @supports b { .x { y: z } } } @media c { .w { y: z } }`)
	groups := sheet.Root.Groups()
	var headers []string
	for _, g := range groups {
		headers = append(headers, g.Header())
	}
	if got := strings.Join(headers, "|"); got != "|@media a|@supports b|@media c" {
		t.Errorf("Groups() = %q", got)
	}
}

func TestStylesheet_Dump(t *testing.T) {
	sheet := mustParse(t, ".b { color: red !important } @media print { .a { x: 1 } }")
	dump := sheet.Dump()
	for _, want := range []string{
		"Stylesheet\n",
		`selector: ".b"`,
		`color (!important): "red"`,
		"Group[1:30] @media items[1]",
		`prelude: "print"`,
		"Selectors index (2 entries)",
	} {
		if !strings.Contains(dump, want) {
			t.Errorf("Dump() missing %q:\n%s", want, dump)
		}
	}
	if strings.Index(dump, `Selector[".a"]`) > strings.Index(dump, `Selector[".b"]`) {
		t.Errorf("selectors index is not sorted:\n%s", dump)
	}
}
