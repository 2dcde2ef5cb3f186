package css

import (
	"io"
	"strings"
)

const defaultIndent = "  "

// Writer serializes stylesheet tree back to CSS text.
type Writer struct {
	Indent       string // One level of indentation, defaults to two spaces
	DropComments bool   // Do not output top-level comments
}

// sink accumulates write results so serialization code does not have to
// check every call.
type sink struct {
	w   io.Writer
	n   int64
	err error
}

func (s *sink) str(str string) {
	if s.err != nil {
		return
	}
	n, err := io.WriteString(s.w, str)
	s.n += int64(n)
	s.err = err
}

// Write outputs sheet to w. Rules keep their selector text as is and
// declarations are written in tree order.
func (cw Writer) Write(w io.Writer, sheet *Stylesheet) (int64, error) {
	cw = cw.withDefaults()
	s := &sink{w: w}
	cw.items(s, sheet.Root.Items, 0)
	return s.n, s.err
}

func (cw Writer) withDefaults() Writer {
	if cw.Indent == "" {
		cw.Indent = defaultIndent
	}
	return cw
}

func (cw Writer) items(s *sink, items []Item, depth int) {
	prefix := strings.Repeat(cw.Indent, depth)
	first := true
	for _, it := range items {
		if it.Comment != nil && cw.DropComments {
			continue
		}
		if !first {
			s.str("\n")
		}
		first = false

		switch {
		case it.Rule != nil:
			cw.rule(s, it.Rule, prefix)
		case it.Group != nil:
			s.str(prefix + it.Group.Header() + " {\n")
			cw.items(s, it.Group.Items, depth+1)
			s.str(prefix + "}\n")
		case it.Raw != nil:
			s.str(prefix + it.Raw.Text + "\n")
		case it.Comment != nil:
			s.str(prefix + it.Comment.Text + "\n")
		}
	}
}

func (cw Writer) rule(s *sink, r *Rule, prefix string) {
	s.str(prefix + r.Selector + " {\n")
	for _, d := range r.Declarations {
		s.str(prefix + cw.Indent + d.String() + ";\n")
	}
	s.str(prefix + "}\n")
}

// WriteTo writes the stylesheet as CSS using default formatting.
func (s *Stylesheet) WriteTo(w io.Writer) (int64, error) {
	return Writer{}.Write(w, s)
}

// String returns the stylesheet as CSS text.
func (s *Stylesheet) String() string {
	var sb strings.Builder
	_, _ = s.WriteTo(&sb)
	return sb.String()
}

// String returns the rule as CSS text.
func (r *Rule) String() string {
	var sb strings.Builder
	Writer{}.withDefaults().rule(&sink{w: &sb}, r, "")
	return sb.String()
}
