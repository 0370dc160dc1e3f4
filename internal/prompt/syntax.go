package prompt

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"agentsurvey/internal/errs"

	"github.com/nikolalohinski/gonja/config"
	"github.com/nikolalohinski/gonja/nodes"
	"github.com/nikolalohinski/gonja/parser"
	"github.com/nikolalohinski/gonja/tokens"
)

// Variable discovery runs gonja's lexer over the template and gonja's
// expression parser over each tag. Statement nodes keep their expressions
// unexported, so statement tags are split here and their expression parts
// parsed on their own.

// Segment is one attribute or index step of a variable path
type Segment struct {
	Key     string
	Index   int
	IsIndex bool
}

// Path is a variable reference such as scenario.levels or q0.answer[1]
type Path struct {
	Root     string
	Segments []Segment

	start int // source offset of the root name
	end   int // source offset just past the last segment
}

func (p Path) String() string {
	var b strings.Builder
	b.WriteString(p.Root)
	for _, s := range p.Segments {
		if s.IsIndex {
			b.WriteString("[" + strconv.Itoa(s.Index) + "]")
			continue
		}
		b.WriteString("." + s.Key)
	}
	return b.String()
}

// HasTemplateSyntax reports whether s contains any template delimiter
func HasTemplateSyntax(s string) bool {
	return strings.Contains(s, "{{") || strings.Contains(s, "{%") || strings.Contains(s, "{#")
}

func syntaxError(err error) error {
	return errs.Wrap(err, errs.CategoryRender, "template_syntax",
		"close every {{ and {% tag, or keep braces out of template text", false)
}

var rawEnds = map[string]*regexp.Regexp{
	"raw":     regexp.MustCompile(`\{%-?\s*endraw`),
	"comment": regexp.MustCompile(`\{%-?\s*endcomment`),
}

// openTag returns the offset of a tag gonja's lexer would never see closed.
// The lexer spins at end of input inside an open tag, so such text must not
// reach it. A tag ends at "}}" or "%}" unless a dict brace is open; string
// literals run to their matching quote. Input the lexer rejects with an
// error of its own is left to it.
func openTag(src string) (int, bool) {
	i := 0
	for i < len(src) {
		rest := src[i:]
		switch {
		case strings.HasPrefix(rest, "{#"):
			end := strings.Index(rest[2:], "#}")
			if end < 0 {
				return 0, false
			}
			i += end + 4
		case strings.HasPrefix(rest, "{{"), strings.HasPrefix(rest, "{%"):
			end, closed := tagEnd(src, i+2)
			if !closed {
				return i, true
			}
			if end < 0 {
				return 0, false
			}
			if rest[1] == '%' {
				if re := rawEnds[statementName(rest[2:])]; re != nil {
					loc := re.FindStringIndex(src[end:])
					if loc == nil {
						return 0, false
					}
					i = end + loc[0]
					continue
				}
			}
			i = end
		default:
			i++
		}
	}
	return 0, false
}

// tagEnd scans a tag body from i. end is -1 when the lexer stops on an
// error inside the tag.
func tagEnd(src string, i int) (end int, closed bool) {
	var open []byte
	for i < len(src) {
		c := src[i]
		if len(open) == 0 || open[len(open)-1] != c {
			if strings.HasPrefix(src[i:], "}}") || strings.HasPrefix(src[i:], "%}") {
				return i + 2, true
			}
		}
		switch c {
		case '"', '\'':
			var prev byte
			j := i + 1
			for ; j < len(src) && (src[j] != c || prev == '\\'); j++ {
				prev = src[j]
			}
			if j >= len(src) {
				return -1, true
			}
			i = j + 1
			continue
		case '(':
			open = append(open, ')')
		case '[':
			open = append(open, ']')
		case '{':
			open = append(open, '}')
		case ')', ']', '}':
			if len(open) == 0 || open[len(open)-1] != c {
				return -1, true
			}
			open = open[:len(open)-1]
		}
		i++
	}
	return 0, false
}

func statementName(body string) string {
	body = strings.TrimLeft(strings.TrimPrefix(body, "-"), " \t")
	n := 0
	for n < len(body) && (body[n] == '_' || body[n] >= 'a' && body[n] <= 'z' || body[n] >= 'A' && body[n] <= 'Z' || body[n] >= '0' && body[n] <= '9') {
		n++
	}
	return body[:n]
}

// lex runs gonja's lexer to completion
func lex(src string) ([]*tokens.Token, error) {
	if at, open := openTag(src); open {
		return nil, syntaxError(fmt.Errorf("unclosed tag at offset %d", at))
	}
	l := tokens.NewLexer(src)
	go l.Run()

	var out []*tokens.Token
	var lexErr error
	for tok := range l.Tokens {
		switch tok.Type {
		case tokens.Error:
			if lexErr == nil {
				lexErr = syntaxError(fmt.Errorf("%s at offset %d", tok.Val, tok.Pos))
			}
		case tokens.Whitespace:
		default:
			out = append(out, tok)
		}
	}
	return out, lexErr
}

// analysis is what one template references
type analysis struct {
	paths  []Path
	locals map[string]bool
}

func analyze(src string) (*analysis, error) {
	an := &analysis{locals: map[string]bool{}}
	if !HasTemplateSyntax(src) {
		return an, nil
	}
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}

	for i := 0; i < len(toks); i++ {
		var closer tokens.Type
		switch toks[i].Type {
		case tokens.VariableBegin:
			closer = tokens.VariableEnd
		case tokens.BlockBegin:
			closer = tokens.BlockEnd
		default:
			continue
		}
		j := i + 1
		for j < len(toks) && toks[j].Type != tokens.VariableEnd && toks[j].Type != tokens.BlockEnd && toks[j].Type != tokens.EOF {
			j++
		}
		if j >= len(toks) || toks[j].Type != closer {
			return nil, syntaxError(fmt.Errorf("mismatched tag delimiters at line %d", toks[i].Line))
		}

		var err error
		if closer == tokens.VariableEnd {
			err = an.output(toks[i : j+1])
		} else {
			err = an.statement(toks[i+1 : j])
		}
		if err != nil {
			return nil, err
		}
		i = j
	}

	kept := an.paths[:0]
	for _, p := range an.paths {
		if !an.locals[p.Root] {
			kept = append(kept, p)
		}
	}
	an.paths = kept
	sort.SliceStable(an.paths, func(a, b int) bool { return an.paths[a].start < an.paths[b].start })
	return an, nil
}

// newParser feeds gonja's parser a copy of toks
func newParser(toks []*tokens.Token) *parser.Parser {
	stream := tokens.NewStream(append([]*tokens.Token(nil), toks...))
	return parser.NewParser("expression", config.DefaultConfig, stream)
}

// parse recovers the parser's panics on some malformed paths, such as a
// trailing dot
func parse(fn func() (nodes.Node, error)) (n nodes.Node, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = syntaxError(fmt.Errorf("%v", r))
		}
	}()
	n, err = fn()
	if err != nil {
		err = syntaxError(err)
	}
	return n, err
}

func (an *analysis) output(toks []*tokens.Token) error {
	n, err := parse(func() (nodes.Node, error) { return newParser(toks).ParseExpressionNode() })
	if err != nil {
		return err
	}
	an.collect(n, toks)
	return nil
}

func (an *analysis) expression(toks []*tokens.Token) error {
	if len(toks) == 0 {
		return nil
	}
	n, err := parse(func() (nodes.Node, error) {
		expr, err := newParser(toks).ParseExpression()
		return expr, err
	})
	if err != nil {
		return err
	}
	an.collect(n, toks)
	return nil
}

// statement handles the tags that read variables or bind names. Other
// statements are rendered by gonja without inspection.
func (an *analysis) statement(toks []*tokens.Token) error {
	if len(toks) == 0 || toks[0].Type != tokens.Name {
		return nil
	}
	args := toks[1:]
	switch toks[0].Val {
	case "if", "elif":
		return an.expression(args)
	case "for":
		an.locals["loop"] = true
		in := indexOf(args, func(t *tokens.Token) bool { return t.Type == tokens.In })
		if in < 0 {
			return nil
		}
		for _, t := range args[:in] {
			if t.Type == tokens.Name {
				an.locals[t.Val] = true
			}
		}
		iter := args[in+1:]
		var cond []*tokens.Token
		if k := topLevelName(iter, "if"); k >= 0 {
			iter, cond = iter[:k], iter[k+1:]
		}
		if k := topLevelName(iter, "recursive"); k >= 0 {
			iter = iter[:k]
		}
		if k := topLevelName(cond, "recursive"); k >= 0 {
			cond = cond[:k]
		}
		if err := an.expression(iter); err != nil {
			return err
		}
		return an.expression(cond)
	case "set":
		assign := indexOf(args, func(t *tokens.Token) bool { return t.Type == tokens.Assign })
		targets := args
		if assign >= 0 {
			targets = args[:assign]
		}
		for _, t := range targets {
			if t.Type == tokens.Name {
				an.locals[t.Val] = true
			}
		}
		if assign < 0 {
			return nil
		}
		return an.expression(args[assign+1:])
	}
	return nil
}

func indexOf(toks []*tokens.Token, match func(*tokens.Token) bool) int {
	for i, t := range toks {
		if match(t) {
			return i
		}
	}
	return -1
}

// topLevelName finds a bare name outside any brackets
func topLevelName(toks []*tokens.Token, name string) int {
	depth := 0
	for i, t := range toks {
		switch t.Type {
		case tokens.Lparen, tokens.Lbracket, tokens.Lbrace:
			depth++
		case tokens.Rparen, tokens.Rbracket, tokens.Rbrace:
			depth--
		case tokens.Name:
			if depth == 0 && t.Val == name {
				return i
			}
		}
	}
	return -1
}

// collect walks an expression tree. toks are the tag's tokens, used to find
// where each path ends in the source.
func (an *analysis) collect(n nodes.Node, toks []*tokens.Token) {
	switch n := n.(type) {
	case nil:
	case *nodes.Output:
		an.collect(n.Expression, toks)
		if n.Condition != nil {
			an.collect(n.Condition, toks)
		}
		if n.Alternative != nil {
			an.collect(n.Alternative, toks)
		}
	case *nodes.Name, *nodes.Getattr, *nodes.Getitem:
		an.chain(n, toks)
	case *nodes.Call:
		switch fn := n.Func.(type) {
		case *nodes.Name:
			// a global function such as range
		case *nodes.Getattr:
			// a method call; the receiver is the path
			an.collect(fn.Node, toks)
		default:
			an.collect(fn, toks)
		}
		an.collectAll(n.Args, n.Kwargs, toks)
	case *nodes.FilteredExpression:
		an.collect(n.Expression, toks)
		for _, f := range n.Filters {
			an.collectAll(f.Args, f.Kwargs, toks)
		}
	case *nodes.TestExpression:
		an.collect(n.Expression, toks)
		if n.Test != nil {
			an.collectAll(n.Test.Args, n.Test.Kwargs, toks)
		}
	case *nodes.BinaryExpression:
		an.collect(n.Left, toks)
		an.collect(n.Right, toks)
	case *nodes.UnaryExpression:
		an.collect(n.Term, toks)
	case *nodes.Negation:
		an.collect(n.Term, toks)
	case *nodes.List:
		an.collectAll(n.Val, nil, toks)
	case *nodes.Tuple:
		an.collectAll(n.Val, nil, toks)
	case *nodes.Dict:
		for _, p := range n.Pairs {
			an.collect(p.Key, toks)
			an.collect(p.Value, toks)
		}
	}
}

func (an *analysis) collectAll(args []nodes.Expression, kwargs map[string]nodes.Expression, toks []*tokens.Token) {
	for _, a := range args {
		an.collect(a, toks)
	}
	keys := make([]string, 0, len(kwargs))
	for k := range kwargs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		an.collect(kwargs[k], toks)
	}
}

// chain unwinds a getattr/getitem chain down to its root name. A computed
// subscript ends the path before it.
func (an *analysis) chain(n nodes.Node, toks []*tokens.Token) {
	var segs []Segment
	for {
		switch cur := n.(type) {
		case *nodes.Getattr:
			if cur.Attr != "" {
				segs = append(segs, Segment{Key: cur.Attr})
			} else {
				segs = append(segs, Segment{Index: cur.Index, IsIndex: true})
			}
			n = cur.Node
		case *nodes.Getitem:
			switch arg := cur.Arg.(type) {
			case *nodes.String:
				segs = append(segs, Segment{Key: arg.Val})
			case *nodes.Integer:
				segs = append(segs, Segment{Index: arg.Val, IsIndex: true})
			default:
				an.collect(cur.Arg, toks)
				segs = segs[:0]
			}
			n = cur.Node
		case *nodes.Name:
			for i, j := 0, len(segs)-1; i < j; i, j = i+1, j-1 {
				segs[i], segs[j] = segs[j], segs[i]
			}
			p := Path{Root: cur.Name.Val, start: cur.Name.Pos}
			p.Segments, p.end = span(cur.Name, segs, toks)
			an.paths = append(an.paths, p)
			return
		default:
			an.collect(cur, toks)
			return
		}
	}
}

// span finds where a path's segments end in the source, trimming segments
// the tokens do not spell out literally
func span(root *tokens.Token, segs []Segment, toks []*tokens.Token) ([]Segment, int) {
	end := root.Pos + len(root.Val)
	j := indexOf(toks, func(t *tokens.Token) bool { return t == root })
	if j < 0 {
		return segs, end
	}
	j++
	for k := range segs {
		switch {
		case j+1 < len(toks) && toks[j].Type == tokens.Dot:
			end = toks[j+1].Pos + len(toks[j+1].Val)
			j += 2
		case j+2 < len(toks) && toks[j].Type == tokens.Lbracket && toks[j+2].Type == tokens.Rbracket:
			end = toks[j+2].Pos + len(toks[j+2].Val)
			j += 3
		default:
			return segs[:k], end
		}
	}
	return segs, end
}

// ParsePaths returns the distinct variable paths referenced by a template,
// in order of first appearance. Names bound by for and set are left out.
func ParsePaths(src string) ([]Path, error) {
	an, err := analyze(src)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var out []Path
	for _, p := range an.paths {
		key := p.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return out, nil
}

// Paths is ParsePaths with syntax errors treated as referencing nothing
func Paths(src string) []Path {
	paths, _ := ParsePaths(src)
	return paths
}

// Variables returns the distinct root names referenced by a template
func Variables(src string) []string {
	seen := map[string]bool{}
	var out []string
	for _, p := range Paths(src) {
		if !seen[p.Root] {
			seen[p.Root] = true
			out = append(out, p.Root)
		}
	}
	return out
}
