package optimize

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
)

// SelectorSet is a set of normalized atomic selectors.
type SelectorSet map[string]struct{}

// NewSelectorSet creates set from already normalized selectors.
func NewSelectorSet(selectors ...string) SelectorSet {
	s := make(SelectorSet, len(selectors))
	for _, sel := range selectors {
		s[sel] = struct{}{}
	}
	return s
}

// Has reports whether sel is a member of the set.
func (s SelectorSet) Has(sel string) bool {
	_, ok := s[sel]
	return ok
}

// Sorted returns members in alphabetical order.
func (s SelectorSet) Sorted() []string {
	return slices.Sorted(maps.Keys(s))
}

// String returns canonical selector list text.
func (s SelectorSet) String() string {
	return strings.Join(s.Sorted(), ", ")
}

// Union returns new set with members of both sets.
func (s SelectorSet) Union(o SelectorSet) SelectorSet {
	u := make(SelectorSet, len(s)+len(o))
	maps.Copy(u, s)
	maps.Copy(u, o)
	return u
}

// IsSuperset reports whether every member of b is in a. Empty sets never
// participate: the result is false when either set is empty.
func IsSuperset(a, b SelectorSet) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	for sel := range b {
		if !a.Has(sel) {
			return false
		}
	}
	return true
}

// SelectorError describes a selector which cannot be normalized.
type SelectorError struct {
	Selector string // Full selector list text
	Offset   int    // Byte offset of the offending token
	Reason   string
}

func (e *SelectorError) Error() string {
	return fmt.Sprintf("invalid selector %q at offset %d: %s", e.Selector, e.Offset, e.Reason)
}

type selectorToken struct {
	tt     css.TokenType
	data   string
	offset int
}

func (t selectorToken) isDelim(c byte) bool {
	return t.tt == css.DelimToken && len(t.data) == 1 && t.data[0] == c
}

// isCombinator detects explicit combinators, descendant one is whitespace.
func (t selectorToken) isCombinator() bool {
	return t.isDelim('>') || t.isDelim('+') || t.isDelim('~') || t.tt == css.ColumnToken
}

// isWord detects tokens which would run together without separating space.
func (t selectorToken) isWord() bool {
	switch t.tt {
	case css.IdentToken, css.StringToken, css.NumberToken, css.DimensionToken, css.PercentageToken:
		return true
	}
	return false
}

// isNth detects functional pseudo-classes taking An+B argument.
func (t selectorToken) isNth() bool {
	if t.tt != css.FunctionToken {
		return false
	}
	switch strings.ToLower(t.data) {
	case "nth-child(", "nth-last-child(", "nth-of-type(", "nth-last-of-type(", "nth-col(", "nth-last-col(":
		return true
	}
	return false
}

func (t selectorToken) opens() bool {
	return t.tt == css.FunctionToken || t.tt == css.LeftParenthesisToken || t.tt == css.LeftBracketToken
}

func (t selectorToken) closes() bool {
	return t.tt == css.RightParenthesisToken || t.tt == css.RightBracketToken
}

// normalizer holds state of a single Normalize call.
type normalizer struct {
	text   string
	tokens []selectorToken
}

func (n *normalizer) fail(offset int, format string, args ...any) error {
	return &SelectorError{Selector: n.text, Offset: offset, Reason: fmt.Sprintf(format, args...)}
}

// Normalize splits selector list text into a set of atomic selectors with
// canonical spacing: explicit and descendant combinators surrounded by
// single spaces, no whitespace anywhere else. Functional pseudo-classes are
// normalized recursively. Whitespace-only text results in empty set.
func Normalize(text string) (SelectorSet, error) {
	n := &normalizer{text: text}
	if err := n.lex(); err != nil {
		return nil, err
	}

	set := make(SelectorSet)
	if !slices.ContainsFunc(n.tokens, func(t selectorToken) bool {
		return t.tt != css.WhitespaceToken && t.tt != css.CommentToken
	}) {
		return set, nil
	}

	parts, err := n.split(n.tokens)
	if err != nil {
		return nil, err
	}
	for _, part := range parts {
		sel, err := n.complex(part.tokens, false)
		if err != nil {
			return nil, err
		}
		if sel == "" {
			return nil, n.fail(part.offset, "empty selector in list")
		}
		set[sel] = struct{}{}
	}
	return set, nil
}

func (n *normalizer) lex() error {
	l := css.NewLexer(parse.NewInputString(n.text))
	offset := 0
	for {
		tt, data := l.Next()
		if tt == css.ErrorToken {
			if err := l.Err(); err != nil && !errors.Is(err, io.EOF) {
				return n.fail(offset, "%v", err)
			}
			return nil
		}
		t := selectorToken{tt: tt, data: string(data), offset: offset}
		switch tt {
		case css.BadStringToken, css.BadURLToken:
			return n.fail(offset, "malformed %s", tt)
		case css.LeftBraceToken, css.RightBraceToken, css.SemicolonToken, css.CDOToken, css.CDCToken, css.AtKeywordToken, css.URLToken:
			return n.fail(offset, "unexpected %s %q", tt, t.data)
		}
		n.tokens = append(n.tokens, t)
		offset += len(data)
	}
}

type selectorPart struct {
	tokens []selectorToken
	offset int
}

// split divides tokens on commas which are not nested in brackets.
func (n *normalizer) split(tokens []selectorToken) ([]selectorPart, error) {
	var (
		parts []selectorPart
		stack []selectorToken
		start int
	)
	partOffset := func(i int) int {
		switch {
		case i < len(tokens):
			return tokens[i].offset
		case len(tokens) > 0:
			last := tokens[len(tokens)-1]
			return last.offset + len(last.data)
		}
		return len(n.text)
	}
	for i, t := range tokens {
		switch {
		case t.opens():
			stack = append(stack, t)
		case t.closes():
			if len(stack) == 0 || !matches(stack[len(stack)-1], t) {
				return nil, n.fail(t.offset, "unbalanced %q", t.data)
			}
			stack = stack[:len(stack)-1]
		case t.tt == css.CommaToken && len(stack) == 0:
			parts = append(parts, selectorPart{tokens: tokens[start:i], offset: partOffset(start)})
			start = i + 1
		}
	}
	if len(stack) > 0 {
		t := stack[len(stack)-1]
		return nil, n.fail(t.offset, "unclosed %q", t.data)
	}
	return append(parts, selectorPart{tokens: tokens[start:], offset: partOffset(start)}), nil
}

func matches(open, close selectorToken) bool {
	if open.tt == css.LeftBracketToken {
		return close.tt == css.RightBracketToken
	}
	return close.tt == css.RightParenthesisToken
}

// enclosed returns index of the token closing the bracket opened at i.
// Balance is verified by split beforehand.
func enclosed(tokens []selectorToken, i int) int {
	depth := 0
	for j := i; j < len(tokens); j++ {
		switch {
		case tokens[j].opens():
			depth++
		case tokens[j].closes():
			depth--
			if depth == 0 {
				return j
			}
		}
	}
	return len(tokens) - 1
}

// complex normalizes a single complex selector. Relative selectors (allowed
// inside functional pseudo-classes) may start with a combinator.
func (n *normalizer) complex(tokens []selectorToken, relative bool) (string, error) {
	var (
		sb         strings.Builder
		started    bool // compound selector output
		combinator bool // last output was combinator
		descendant bool // whitespace seen after compound
		last       int
	)

	for i := 0; i < len(tokens); i++ {
		t := tokens[i]
		last = t.offset

		switch {
		case t.tt == css.WhitespaceToken || t.tt == css.CommentToken:
			descendant = started && !combinator
			continue

		case t.isCombinator():
			switch {
			case combinator:
				return "", n.fail(t.offset, "consecutive combinators")
			case started:
				sb.WriteString(" " + t.data + " ")
			case relative:
				sb.WriteString(t.data + " ")
			default:
				return "", n.fail(t.offset, "selector starts with combinator %q", t.data)
			}
			combinator, descendant = true, false
			continue

		case t.tt == css.CommaToken:
			return "", n.fail(t.offset, "unexpected comma")

		case t.closes():
			return "", n.fail(t.offset, "unbalanced %q", t.data)
		}

		if descendant {
			sb.WriteString(" ")
			descendant = false
		}

		switch {
		case t.tt == css.LeftBracketToken:
			end := enclosed(tokens, i)
			sb.WriteString(attribute(tokens[i+1 : end]))
			i = end
		case t.opens():
			end := enclosed(tokens, i)
			var (
				args string
				err  error
			)
			if t.isNth() {
				args, err = n.nth(tokens[i+1:end], t.offset)
			} else {
				args, err = n.arguments(tokens[i+1 : end])
			}
			if err != nil {
				return "", err
			}
			sb.WriteString(t.data + args + ")")
			i = end
		default:
			sb.WriteString(t.data)
		}
		started, combinator = true, false
	}

	if combinator {
		return "", n.fail(last, "selector ends with combinator")
	}
	return sb.String(), nil
}

// arguments normalizes content of functional pseudo-class as a relative
// selector list.
func (n *normalizer) arguments(tokens []selectorToken) (string, error) {
	if !slices.ContainsFunc(tokens, func(t selectorToken) bool {
		return t.tt != css.WhitespaceToken && t.tt != css.CommentToken
	}) {
		return "", nil
	}
	parts, err := n.split(tokens)
	if err != nil {
		return "", err
	}
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		sel, err := n.complex(part.tokens, true)
		if err != nil {
			return "", err
		}
		if sel == "" {
			return "", n.fail(part.offset, "empty argument")
		}
		out = append(out, sel)
	}
	return strings.Join(out, ", "), nil
}

// nth normalizes An+B argument with optional "of S" selector list. An+B is
// written lowercase without whitespace, so "2N + 1" and "2n+1" are equal.
func (n *normalizer) nth(tokens []selectorToken, offset int) (string, error) {
	var (
		sb   strings.Builder
		rest []selectorToken
	)
	for i, t := range tokens {
		if t.tt == css.IdentToken && strings.EqualFold(t.data, "of") {
			rest = tokens[i+1:]
			break
		}
		if t.tt == css.WhitespaceToken || t.tt == css.CommentToken {
			continue
		}
		sb.WriteString(strings.ToLower(t.data))
	}
	if sb.Len() == 0 {
		return "", n.fail(offset, "empty argument")
	}
	if rest == nil {
		return sb.String(), nil
	}

	parts, err := n.split(rest)
	if err != nil {
		return "", err
	}
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		sel, err := n.complex(part.tokens, false)
		if err != nil {
			return "", err
		}
		if sel == "" {
			return "", n.fail(part.offset, "empty argument")
		}
		out = append(out, sel)
	}
	return sb.String() + " of " + strings.Join(out, ", "), nil
}

// attribute renders attribute selector content without whitespace. A single
// space separates tokens which would otherwise merge, such as value and the
// case-sensitivity flag.
func attribute(tokens []selectorToken) string {
	var sb strings.Builder
	sb.WriteByte('[')
	var prev *selectorToken
	for i := range tokens {
		t := &tokens[i]
		if t.tt == css.WhitespaceToken || t.tt == css.CommentToken {
			continue
		}
		if prev != nil && prev.isWord() && t.isWord() {
			sb.WriteByte(' ')
		}
		sb.WriteString(t.data)
		prev = t
	}
	sb.WriteByte(']')
	return sb.String()
}
