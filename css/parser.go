package css

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode/utf8"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"go.uber.org/zap"
)

// groupAtRules lists at-rules whose bodies are rule lists with their own
// independent rule stream. Everything else is kept verbatim.
var groupAtRules = map[string]bool{
	"@media":         true,
	"@supports":      true,
	"@document":      true,
	"@-moz-document": true,
	"@layer":         true,
}

// Parser parses CSS stylesheets into a rule tree.
type Parser struct {
	log *zap.Logger
}

// NewParser creates a new CSS parser.
func NewParser(log *zap.Logger) *Parser {
	if log == nil {
		log = zap.NewNop()
	}
	return &Parser{log: log.Named("css-parser")}
}

// parseState carries per-stylesheet parsing data.
type parseState struct {
	src    []byte
	lines  []int // offsets of line starts
	parser *css.Parser
	sheet  *Stylesheet
}

// Parse parses UTF-8 CSS text into a Stylesheet. The optional source
// parameter identifies what's being parsed (for logging and errors).
// Malformed input is reported as error wrapping *parse.Error.
func (p *Parser) Parse(data []byte, source ...string) (*Stylesheet, error) {
	name := "stylesheet"
	if len(source) > 0 && source[0] != "" {
		name = source[0]
		p.log.Debug("Parsing CSS", zap.String("source", name), zap.Int("bytes", len(data)))
	}

	// parse.Input appends NUL to the buffer it is given, keep caller's data intact
	buf := make([]byte, len(data), len(data)+1)
	copy(buf, data)

	st := &parseState{
		src:    data,
		lines:  lineStarts(data),
		parser: css.NewParser(parse.NewInputBytes(buf), false),
		sheet:  NewStylesheet(),
	}
	if err := p.parseList(st, st.sheet.Root); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", name, err)
	}

	p.log.Debug("Parsed CSS",
		zap.String("source", name),
		zap.Int("rules", len(st.sheet.Rules())),
		zap.Int("declarations", st.sheet.CountDeclarations()))
	return st.sheet, nil
}

// parseList consumes rule list items into g until the end of the enclosing
// block (or end of input for the root).
func (p *Parser) parseList(st *parseState, g *Group) error {
	for {
		mark := st.parser.Offset()
		gt, _, data := st.parser.Next()

		switch gt {
		case css.ErrorGrammar:
			if err := st.failure(); err != nil {
				return err
			}
			return nil

		case css.EndAtRuleGrammar:
			if !g.IsRoot() {
				return nil
			}

		case css.CommentGrammar:
			g.AppendComment(&Comment{
				Text: string(data),
				Pos:  st.position(skipSpace(st.src, mark)),
			})

		case css.TokenGrammar:
			// CDO/CDC at top level carry no meaning

		case css.AtRuleGrammar:
			start := skipTrivia(st.src, mark)
			name := string(data)
			if name == "@charset" {
				// input is always decoded to UTF-8 and output has no @charset
				p.log.Debug("Dropping @charset", zap.Stringer("pos", st.position(start)))
				continue
			}
			g.AppendRaw(&Raw{
				Text: statementText(st.src[start:st.parser.Offset()]),
				Pos:  st.position(start),
			})

		case css.BeginAtRuleGrammar:
			start := skipTrivia(st.src, mark)
			name := string(data)
			if groupAtRules[name] {
				child := &Group{
					Name:    name,
					Prelude: strings.TrimSpace(string(st.src[start+len(name) : st.parser.Offset()-1])),
					Pos:     st.position(start),
				}
				g.AppendGroup(child)
				if err := p.parseList(st, child); err != nil {
					return err
				}
				p.log.Debug("Parsed group", zap.String("at-rule", child.Header()), zap.Int("items", len(child.Items)))
				continue
			}
			if err := p.skipBlock(st); err != nil {
				return err
			}
			g.AppendRaw(&Raw{
				Text: strings.TrimSpace(string(st.src[start:st.parser.Offset()])),
				Pos:  st.position(start),
			})
			p.log.Debug("Keeping at-rule verbatim", zap.String("at-rule", name))

		case css.BeginRulesetGrammar:
			start := skipTrivia(st.src, mark)
			rule := &Rule{
				Selector: strings.TrimSpace(string(st.src[start : st.parser.Offset()-1])),
				Pos:      st.position(start),
			}
			if err := p.parseDeclarations(st, rule); err != nil {
				return err
			}
			g.AppendRule(rule)

		default:
			p.log.Debug("Unexpected grammar in rule list", zap.Stringer("grammar", gt), zap.Stringer("pos", st.position(mark)))
		}
	}
}

// parseDeclarations collects declarations of a style rule up to its end.
func (p *Parser) parseDeclarations(st *parseState, rule *Rule) error {
	for {
		mark := st.parser.Offset()
		gt, _, data := st.parser.Next()

		switch gt {
		case css.EndRulesetGrammar:
			return nil

		case css.ErrorGrammar:
			if err := st.failure(); err != nil {
				return err
			}
			// end of input inside declaration block is tolerated
			return nil

		case css.DeclarationGrammar:
			decl, ok := newDeclaration(string(data), st.parser.Values())
			if !ok {
				p.log.Debug("Dropping declaration without value",
					zap.String("property", string(data)),
					zap.Stringer("pos", st.position(skipTrivia(st.src, mark))))
				continue
			}
			rule.Declarations = append(rule.Declarations, decl)

		case css.CustomPropertyGrammar:
			var raw string
			if values := st.parser.Values(); len(values) > 0 {
				raw = string(values[0].Data)
			}
			rule.Declarations = append(rule.Declarations, newCustomProperty(string(data), raw))

		case css.BeginAtRuleGrammar, css.AtRuleGrammar:
			return fmt.Errorf("at-rule %s nested in style rule at %s is not supported",
				string(data), st.position(skipTrivia(st.src, mark)))

		default:
			p.log.Debug("Unexpected grammar in declaration block", zap.Stringer("grammar", gt))
		}
	}
}

// skipBlock consumes at-rule body which is kept verbatim.
func (p *Parser) skipBlock(st *parseState) error {
	depth := 1
	for depth > 0 {
		gt, _, _ := st.parser.Next()
		switch gt {
		case css.ErrorGrammar:
			// unterminated block runs to the end of input
			return st.failure()
		case css.BeginAtRuleGrammar, css.BeginRulesetGrammar:
			depth++
		case css.EndAtRuleGrammar, css.EndRulesetGrammar:
			depth--
		}
	}
	return nil
}

// failure interprets ErrorGrammar: nil on clean end of input.
func (st *parseState) failure() error {
	err := st.parser.Err()
	if st.parser.HasParseError() {
		return err
	}
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("unable to read CSS: %w", err)
}

// position converts byte offset into line and column (in runes).
func (st *parseState) position(offset int) Position {
	offset = min(max(offset, 0), len(st.src))
	line := sort.SearchInts(st.lines, offset+1) - 1
	return Position{
		Line:   line + 1,
		Column: utf8.RuneCount(st.src[st.lines[line]:offset]) + 1,
	}
}

func lineStarts(data []byte) []int {
	lines := []int{0}
	for i, c := range data {
		if c == '\n' {
			lines = append(lines, i+1)
		}
	}
	return lines
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}

func skipSpace(src []byte, pos int) int {
	for pos < len(src) && isSpace(src[pos]) {
		pos++
	}
	return pos
}

// skipTrivia moves past whitespace and comments.
func skipTrivia(src []byte, pos int) int {
	for {
		pos = skipSpace(src, pos)
		if !bytes.HasPrefix(src[pos:], []byte("/*")) {
			return pos
		}
		end := bytes.Index(src[pos+2:], []byte("*/"))
		if end < 0 {
			return len(src)
		}
		pos += end + 4
	}
}

// statementText normalizes terminator of a statement at-rule.
func statementText(b []byte) string {
	s := strings.TrimSpace(string(b))
	if strings.HasSuffix(s, "}") {
		// at-rule was closed by the end of enclosing block
		s = strings.TrimSpace(s[:len(s)-1])
	}
	if !strings.HasSuffix(s, ";") {
		s += ";"
	}
	return s
}

// newDeclaration builds declaration from value tokens, detecting trailing
// "!important". Returns false when there is no value.
func newDeclaration(property string, values []css.Token) (Declaration, bool) {
	decl := Declaration{Property: property}

	values = trimWhitespaceTokens(values)
	if n := len(values); n >= 2 &&
		values[n-1].TokenType == css.IdentToken && strings.EqualFold(string(values[n-1].Data), "important") &&
		values[n-2].TokenType == css.DelimToken && string(values[n-2].Data) == "!" {
		decl.Important = true
		values = trimWhitespaceTokens(values[:n-2])
	}
	if len(values) == 0 {
		return decl, false
	}
	decl.Value = joinTokens(values)
	return decl, true
}

// newCustomProperty keeps custom property value as is, it may contain
// arbitrary tokens.
func newCustomProperty(name, raw string) Declaration {
	decl := Declaration{Property: name, Value: strings.TrimSpace(raw)}
	if i := strings.LastIndexByte(decl.Value, '!'); i >= 0 &&
		strings.EqualFold(strings.TrimSpace(decl.Value[i+1:]), "important") {
		decl.Important = true
		decl.Value = strings.TrimSpace(decl.Value[:i])
	}
	return decl
}

func trimWhitespaceTokens(values []css.Token) []css.Token {
	for len(values) > 0 && values[0].TokenType == css.WhitespaceToken {
		values = values[1:]
	}
	for len(values) > 0 && values[len(values)-1].TokenType == css.WhitespaceToken {
		values = values[:len(values)-1]
	}
	return values
}

// joinTokens renders value tokens, whitespace collapsed to a single space
// and commas followed by one.
func joinTokens(values []css.Token) string {
	var sb strings.Builder
	for i, t := range values {
		switch t.TokenType {
		case css.WhitespaceToken:
			sb.WriteByte(' ')
		case css.CommaToken:
			sb.WriteByte(',')
			if i+1 < len(values) && values[i+1].TokenType != css.WhitespaceToken {
				sb.WriteByte(' ')
			}
		default:
			sb.Write(t.Data)
		}
	}
	return sb.String()
}
