package optimize_test

import (
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"cssprune/css"
	"cssprune/optimize"
)

func parse(t *testing.T, src string) *css.Stylesheet {
	t.Helper()
	sheet, err := css.NewParser(zap.NewNop()).Parse([]byte(src))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return sheet
}

// compact renders stylesheet on a single line for easier comparison.
func compact(sheet *css.Stylesheet) string {
	var parts []string
	for _, line := range strings.Split(sheet.String(), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			parts = append(parts, line)
		}
	}
	return strings.Join(parts, " ")
}

func run(t *testing.T, src string) (*css.Stylesheet, *optimize.Stats) {
	t.Helper()
	sheet := parse(t, src)
	stats, err := optimize.Run(sheet, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	return sheet, stats
}

func TestRun(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "forward elimination",
			src:  ".foo{display:block !important} .foo{display:block}",
			want: ".foo { display: block !important; }",
		},
		{
			name: "backward elimination",
			src:  ".foo{color:red} .foo{color:blue}",
			want: ".foo { color: blue; }",
		},
		{
			name: "blocked by importance",
			src:  ".foo{color:red !important} .foo{color:blue}",
			want: ".foo { color: red !important; }",
		},
		{
			name: "both important",
			src:  ".foo{color:red !important} .foo{color:blue !important}",
			want: ".foo { color: blue !important; }",
		},
		{
			name: "no cross-scope elimination",
			src:  ".foo{color:red} .bar{color:blue}",
			want: ".foo { color: red; } .bar { color: blue; }",
		},
		{
			name: "normalized selectors compare equal",
			src:  ".a>.b{color:red} .a > .b{color:blue}",
			want: ".a > .b { color: blue; }",
		},
		{
			name: "broader later rule wins",
			src:  ".a{color:red; margin:0} .b{padding:0} .b, .a{color:blue}",
			want: ".a { margin: 0; } .b { padding: 0; } .b, .a { color: blue; }",
		},
		{
			name: "narrower later rule does not override",
			src:  ".a, .b{color:red} .x{padding:0} .a{color:blue}",
			want: ".a, .b { color: red; } .x { padding: 0; } .a { color: blue; }",
		},
		{
			name: "duplicate declarations in one rule",
			src:  ".a{color:red; color:blue} .x{padding:0} .a{color:green}",
			want: ".x { padding: 0; } .a { color: green; }",
		},
		{
			name: "empty rules removed",
			src:  ".a{} .b{color:red}",
			want: ".b { color: red; }",
		},
		{
			name: "groups are independent streams",
			src:  ".a{color:red} @media print { .a{color:blue} }",
			want: ".a { color: red; } @media print { .a { color: blue; } }",
		},
		{
			name: "redundancy inside group",
			src:  "@media print { .a{color:red} .a{color:blue} }",
			want: "@media print { .a { color: blue; } }",
		},
		{
			name: "raw at-rules untouched",
			src:  "@import url(a.css); @font-face { font-family: X } .a{color:red}",
			want: "@import url(a.css); @font-face { font-family: X } .a { color: red; }",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sheet, _ := run(t, tt.src)
			if got := compact(sheet); got != tt.want {
				t.Errorf("Run() =\n%s\nwant\n%s", got, tt.want)
			}
		})
	}
}

func TestRun_MergeThreshold(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "below threshold",
			src:  ".a{p1:1;p2:2;p3:3;p4:4} .b{p1:1;q2:2;q3:3;q4:4}",
			want: ".a { p1: 1; p2: 2; p3: 3; p4: 4; } .b { p1: 1; q2: 2; q3: 3; q4: 4; }",
		},
		{
			name: "at threshold",
			src:  ".a{p1:1;p2:2;p3:3;p4:4} .b{p1:1;p2:2;q3:3;q4:4}",
			want: ".a, .b { p1: 1; p2: 2; } .a { p3: 3; p4: 4; } .b { q3: 3; q4: 4; }",
		},
		{
			name: "larger table decides threshold",
			src:  ".a{p1:1;p2:2} .b{p1:1;q2:2;q3:3;q4:4;q5:5;q6:6}",
			want: ".a { p1: 1; p2: 2; } .b { p1: 1; q2: 2; q3: 3; q4: 4; q5: 5; q6: 6; }",
		},
		{
			name: "zero threshold never merges",
			src:  ".a{p1:1} .b{p1:1}",
			want: ".a { p1: 1; } .b { p1: 1; }",
		},
		{
			name: "importance must match",
			src:  ".a{x:1 !important; y:2} .b{x:1; y:2}",
			want: ".a, .b { y: 2; } .a { x: 1 !important; } .b { x: 1; }",
		},
		{
			name: "full overlap folds both rules",
			src:  ".b{x:1;y:2} /* between */ .a{x:1;y:2}",
			want: ".a, .b { x: 1; y: 2; } /* between */",
		},
		{
			name: "raw item breaks adjacency",
			src:  ".a{x:1;y:2} @import url(i.css); .b{x:1;y:2}",
			want: ".a { x: 1; y: 2; } @import url(i.css); .b { x: 1; y: 2; }",
		},
		{
			name: "only adjacent pair merges",
			src:  ".a{x:1;y:2} .c{z:3} .b{x:1;y:2}",
			want: ".a { x: 1; y: 2; } .c { z: 3; } .b { x: 1; y: 2; }",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sheet, _ := run(t, tt.src)
			if got := compact(sheet); got != tt.want {
				t.Errorf("Run() =\n%s\nwant\n%s", got, tt.want)
			}
		})
	}
}

func TestRun_MergedRuleTakesPartInLaterComparisons(t *testing.T) {
	src := ".a, .b{color:red} .a{color:blue; margin:0} .b{color:blue; margin:0}"
	sheet, stats := run(t, src)

	if got, want := compact(sheet), ".a, .b { color: blue; margin: 0; }"; got != want {
		t.Errorf("Run() = %s, want %s", got, want)
	}
	if stats.Merges != 1 {
		t.Errorf("Merges = %d, want 1", stats.Merges)
	}
}

func TestRun_NestedEmptyGroups(t *testing.T) {
	src := `.keep { color: red }
@media print {
  @supports (display: grid) {
    .gone { }
  }
}
@media screen { }
`
	sheet, stats := run(t, src)

	if got, want := compact(sheet), ".keep { color: red; }"; got != want {
		t.Errorf("Run() = %s, want %s", got, want)
	}
	if len(sheet.Root.Items) != 1 {
		t.Errorf("expected single item left in root, got %d", len(sheet.Root.Items))
	}
	if stats.GroupsRemoved != 3 {
		t.Errorf("GroupsRemoved = %d, want 3", stats.GroupsRemoved)
	}
	if stats.RulesRemoved != 1 {
		t.Errorf("RulesRemoved = %d, want 1", stats.RulesRemoved)
	}
}

func TestRun_GroupWithRawSurvives(t *testing.T) {
	sheet, _ := run(t, `@media print { .gone {} @import url(p.css); }`)
	if got, want := compact(sheet), "@media print { @import url(p.css); }"; got != want {
		t.Errorf("Run() = %s, want %s", got, want)
	}
}

func TestRun_Idempotent(t *testing.T) {
	src := `h1, h2 { margin: 0; padding: 0; color: black }
h1 { color: navy !important; font-size: 2em }
h2 { color: gray; font-size: 1.5em }
.a, .b { color: red }
.a { color: blue; margin: 0 }
.b { color: blue; margin: 0 }
.x > .y { display: block !important; float: left }
.x>.y { display: inline; float: right }
@media (max-width: 600px) {
  h1 { font-size: 1.5em; margin: 0 }
  h1 { font-size: 1.2em }
  .c { }
}
`
	first, _ := run(t, src)
	once := first.String()

	stats, err := optimize.Run(first, zap.NewNop())
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if twice := first.String(); twice != once {
		t.Errorf("second run changed the tree:\n%s\nvs\n%s", once, twice)
	}
	if stats.RulesBefore != stats.RulesAfter || stats.DeclarationsBefore != stats.DeclarationsAfter || stats.Merges != 0 {
		t.Errorf("second run reported changes: %+v", stats)
	}

	// reparsing output must not enable further optimization either
	again, _ := run(t, once)
	if got := again.String(); got != once {
		t.Errorf("optimizing printed output changed it:\n%s\nvs\n%s", once, got)
	}
}

func TestRun_SelectorError(t *testing.T) {
	sheet := parse(t, ".a{color:red} .b > {color:blue}")
	_, err := optimize.Run(sheet, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	var se *optimize.SelectorError
	if !errors.As(err, &se) {
		t.Fatalf("expected *SelectorError, got %T: %v", err, err)
	}
	if se.Selector != ".b >" {
		t.Errorf("Selector = %q, want %q", se.Selector, ".b >")
	}
	if !strings.Contains(err.Error(), "1:15") {
		t.Errorf("error should carry rule position: %v", err)
	}
}

func TestRun_WhitespaceSelectorNeverCompared(t *testing.T) {
	sheet := css.NewStylesheet()
	sheet.Root.AppendRule(&css.Rule{Selector: " ", Pos: css.Position{Line: 1, Column: 1},
		Declarations: []css.Declaration{{Property: "color", Value: "red"}, {Property: "x", Value: "1"}}})
	sheet.Root.AppendRule(&css.Rule{Selector: " ", Pos: css.Position{Line: 2, Column: 1},
		Declarations: []css.Declaration{{Property: "color", Value: "red"}, {Property: "x", Value: "1"}}})

	stats, err := optimize.Run(sheet, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if stats.DeclarationsAfter != 4 || stats.Merges != 0 {
		t.Errorf("rules with empty selector sets must not interact: %+v", stats)
	}
}

func TestRun_Stats(t *testing.T) {
	_, stats := run(t, ".a{color:red !important; x:1} .a{color:blue} .b{y:1} .b{y:2}")

	want := optimize.Stats{
		RulesBefore:        4,
		RulesAfter:         2,
		DeclarationsBefore: 5,
		DeclarationsAfter:  3,
		ForwardRemoved:     1,
		BackwardRemoved:    1,
		RulesRemoved:       2,
	}
	if *stats != want {
		t.Errorf("Stats = %+v, want %+v", *stats, want)
	}
}
