// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package parse

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/canonical/sqltmpl/internal/expr"
)

// Error is returned for malformed templates. Line is 1-based.
type Error struct {
	Line int
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// frame is an open block on the parser stack.
type frame struct {
	// indent is the indentation of the directive line. Lines indented
	// deeper belong to the block.
	indent int
	// line is the line of the directive. Directives chained on one line
	// share it and are closed together by an explicit end.
	line    int
	keyword string
	// body receives the nodes of the block. It is nil for choose.
	body   *[]Node
	choose *Choose
}

func (f *frame) empty() bool {
	if f.choose != nil {
		return len(f.choose.Whens) == 0 && f.choose.Otherwise == nil
	}
	return len(*f.body) == 0
}

// Parser turns template source into a Template. A Parser may be reused but
// not shared between goroutines.
type Parser struct {
	stack   []*frame
	lineNum int
	exprs   expr.Parser
}

func NewParser() *Parser {
	return &Parser{}
}

// Parse parses a whole template. No partial Template is returned on error.
func Parse(src string) (*Template, error) {
	return NewParser().Parse(src)
}

// Parse takes template source and returns its Template.
func (p *Parser) Parse(src string) (*Template, error) {
	t := &Template{Nodes: []Node{}}
	p.stack = []*frame{{indent: -1, keyword: "template", body: &t.Nodes}}

	lines := strings.Split(src, "\n")
	for i, raw := range lines {
		p.lineNum = i + 1
		content := strings.TrimSpace(raw)
		if content == "" {
			continue
		}
		if err := p.parseLine(indentOf(raw), content); err != nil {
			return nil, &Error{Line: p.lineNum, Err: err}
		}
	}

	for len(p.stack) > 1 {
		f := p.top()
		if f.empty() {
			return nil, &Error{Line: f.line, Err: fmt.Errorf("unterminated %q block: expected an indented body", f.keyword)}
		}
		p.pop()
	}
	return t, nil
}

// indentOf counts the leading spaces and tabs of a line. Each counts as one
// column.
func indentOf(line string) int {
	n := 0
	for n < len(line) && (line[n] == ' ' || line[n] == '\t') {
		n++
	}
	return n
}

func (p *Parser) top() *frame {
	return p.stack[len(p.stack)-1]
}

func (p *Parser) push(f *frame) {
	p.stack = append(p.stack, f)
}

func (p *Parser) pop() *frame {
	f := p.top()
	p.stack = p.stack[:len(p.stack)-1]
	return f
}

// closeDeeper implicitly closes every open block whose directive is indented
// at least minIndent. Blocks closed this way must have a body.
func (p *Parser) closeDeeper(minIndent int) error {
	for len(p.stack) > 1 && p.top().indent >= minIndent {
		f := p.pop()
		if f.empty() {
			return fmt.Errorf("%q block opened at line %d has no indented body", f.keyword, f.line)
		}
	}
	return nil
}

func (p *Parser) parseLine(indent int, content string) error {
	if content == "end" {
		return p.parseEnd(indent)
	}
	if err := p.closeDeeper(indent); err != nil {
		return err
	}
	return p.parseStatement(indent, content)
}

// parseEnd closes the innermost block indented no deeper than the end line,
// along with any directives chained on the same line as it.
func (p *Parser) parseEnd(indent int) error {
	if err := p.closeDeeper(indent + 1); err != nil {
		return err
	}
	if len(p.stack) == 1 {
		return fmt.Errorf("unexpected \"end\": no open block")
	}
	closed := p.pop()
	for len(p.stack) > 1 && p.top().line == closed.line && p.top().indent == closed.indent {
		p.pop()
	}
	return nil
}

// add appends a node to the innermost open block.
func (p *Parser) add(n Node) error {
	f := p.top()
	if f.choose != nil {
		return fmt.Errorf("only \"when\" and \"otherwise\" are allowed inside \"choose\"")
	}
	*f.body = append(*f.body, n)
	return nil
}

func (p *Parser) inFor() bool {
	for _, f := range p.stack {
		if f.keyword == "for" {
			return true
		}
	}
	return false
}

// directiveKeywords maps each directive keyword to whether it takes
// arguments before its colon.
var directiveKeywords = map[string]bool{
	"if":        true,
	"for":       true,
	"trim":      true,
	"when":      true,
	"choose":    false,
	"otherwise": false,
	"where":     false,
	"set":       false,
}

// parseStatement parses the content of a line, or the remainder of a line
// after a chained directive.
func (p *Parser) parseStatement(indent int, content string) error {
	if content == "continue" || content == "#{continue}" {
		if !p.inFor() {
			return fmt.Errorf("\"continue\" outside of \"for\"")
		}
		return p.add(&Continue{Line: p.lineNum})
	}

	if keyword, head, rest, ok := splitDirective(content); ok {
		return p.parseDirective(indent, keyword, head, rest)
	}

	line, err := parseText(content)
	if err != nil {
		return err
	}
	line.Number = p.lineNum
	return p.add(line)
}

// splitDirective recognises a directive line. Keywords without arguments
// must be followed directly by a colon. Other keywords must be followed by a
// blank, and the directive ends at the first colon that is not inside quotes
// or parentheses. Lines that do not have this shape are template text, so
// SQL such as "for update" or "set a = #{a}" is left alone.
func splitDirective(content string) (keyword, head, rest string, ok bool) {
	end := 0
	for end < len(content) && isKeywordChar(content[end]) {
		end++
	}
	keyword = content[:end]
	takesArgs, known := directiveKeywords[keyword]
	if !known || end == len(content) {
		return "", "", "", false
	}
	if !takesArgs {
		if content[end] != ':' {
			return "", "", "", false
		}
		return keyword, "", strings.TrimSpace(content[end+1:]), true
	}
	if content[end] != ' ' && content[end] != '\t' {
		return "", "", "", false
	}
	colon := directiveColon(content, end)
	if colon < 0 {
		return "", "", "", false
	}
	return keyword, strings.TrimSpace(content[end:colon]), strings.TrimSpace(content[colon+1:]), true
}

func isKeywordChar(c byte) bool {
	return c >= 'a' && c <= 'z'
}

// directiveColon returns the index of the first colon at or after start that
// is outside quotes and parentheses, or -1.
func directiveColon(s string, start int) int {
	var quote byte
	depth := 0
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '(':
			depth++
		case c == ')':
			depth--
		case c == ':' && depth <= 0:
			return i
		}
	}
	return -1
}

var forRx = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\s*(?:,\s*([A-Za-z_][A-Za-z0-9_]*)\s*)?\s+in\s+(.*)$`)

func (p *Parser) parseDirective(indent int, keyword, head, rest string) error {
	f := &frame{indent: indent, line: p.lineNum, keyword: keyword}
	var n Node

	switch keyword {
	case "if":
		cond, err := p.parseCondition(keyword, head)
		if err != nil {
			return err
		}
		node := &If{Line: p.lineNum, Cond: cond}
		f.body, n = &node.Body, node
	case "for":
		m := forRx.FindStringSubmatch(head)
		if m == nil {
			return fmt.Errorf("malformed \"for\": expected \"for <item>[, <item>] in <expression>:\"")
		}
		src, err := p.parseCondition(keyword, m[3])
		if err != nil {
			return err
		}
		node := &For{Line: p.lineNum, Item: m[1], Source: src}
		if m[2] != "" {
			// Two names bind the key or index first and the item second.
			node.Key, node.Item = m[1], m[2]
		}
		if node.Key == node.Item {
			return fmt.Errorf("malformed \"for\": %q is bound twice", node.Item)
		}
		f.body, n = &node.Body, node
	case "trim":
		start, end, err := parseTrimArgs(head)
		if err != nil {
			return err
		}
		node := &Trim{Line: p.lineNum, Start: start, End: end}
		f.body, n = &node.Body, node
	case "choose":
		node := &Choose{Line: p.lineNum}
		f.choose, n = node, node
	case "where":
		node := &Where{Line: p.lineNum}
		f.body, n = &node.Body, node
	case "set":
		node := &Set{Line: p.lineNum}
		f.body, n = &node.Body, node
	case "when", "otherwise":
		return p.parseBranch(f, keyword, head, rest)
	default:
		return fmt.Errorf("internal error: unknown directive %q", keyword)
	}

	if err := p.add(n); err != nil {
		return err
	}
	return p.openBlock(f, rest)
}

// openBlock pushes f and parses any statement chained after its colon.
func (p *Parser) openBlock(f *frame, rest string) error {
	p.push(f)
	if rest == "" {
		return nil
	}
	return p.parseStatement(f.indent, rest)
}

func (p *Parser) parseBranch(f *frame, keyword, head, rest string) error {
	parent := p.top()
	if parent.choose == nil {
		return fmt.Errorf("%q outside of \"choose\"", keyword)
	}
	choose := parent.choose
	if choose.Otherwise != nil {
		return fmt.Errorf("%q after \"otherwise\" (line %d)", keyword, choose.Otherwise.Line)
	}

	if keyword == "otherwise" {
		node := &Otherwise{Line: p.lineNum}
		choose.Otherwise = node
		f.body = &node.Body
		return p.openBranch(parent, f, rest)
	}

	cond, err := p.parseCondition(keyword, head)
	if err != nil {
		return err
	}
	node := &When{Line: p.lineNum, Cond: cond}
	choose.Whens = append(choose.Whens, node)
	f.body = &node.Body
	return p.openBranch(parent, f, rest)
}

// openBranch opens a when or otherwise block. A sibling branch chained on
// the same line, as in "when a: A otherwise: B", closes the branch and is
// added to the same choose.
func (p *Parser) openBranch(parent, f *frame, rest string) error {
	body, next, ok := nextBranch(rest)
	if !ok {
		return p.openBlock(f, rest)
	}
	if err := p.openBlock(f, body); err != nil {
		return err
	}
	for p.top() != parent {
		closed := p.pop()
		if closed.empty() {
			return fmt.Errorf("%q block opened at line %d has no indented body", closed.keyword, closed.line)
		}
	}
	return p.parseStatement(f.indent, next)
}

// nextBranch looks for a "when <expr>:" or "otherwise:" directive starting
// a word of s outside quotes, parentheses and braces. It returns the text
// before it and the directive onwards.
func nextBranch(s string) (body, branch string, ok bool) {
	var quote byte
	depth := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '(' || c == '{':
			depth++
		case c == ')' || c == '}':
			depth--
		case depth <= 0 && (i == 0 || s[i-1] == ' ' || s[i-1] == '\t'):
			if keyword, _, _, ok := splitDirective(s[i:]); ok && (keyword == "when" || keyword == "otherwise") {
				return strings.TrimSpace(s[:i]), s[i:], true
			}
		}
	}
	return "", "", false
}

func (p *Parser) parseCondition(keyword, input string) (expr.Expr, error) {
	if strings.TrimSpace(input) == "" {
		return nil, fmt.Errorf("malformed %q: missing expression", keyword)
	}
	e, err := p.exprs.Parse(input)
	if err != nil {
		return nil, fmt.Errorf("malformed %q expression: %w", keyword, err)
	}
	return e, nil
}

// parseTrimArgs parses the arguments of trim: a single quoted token, which
// is stripped from the end, or start= and end= assignments.
func parseTrimArgs(head string) (start, end string, err error) {
	malformed := errors.New(`malformed "trim": expected "trim '<token>':" or "trim start='<token>', end='<token>':"`)
	s := strings.TrimSpace(head)
	if s == "" {
		return "", "", malformed
	}
	if s[0] == '\'' || s[0] == '"' {
		tok, rest, err := readQuoted(s)
		if err != nil {
			return "", "", err
		}
		if strings.TrimSpace(rest) != "" {
			return "", "", malformed
		}
		if tok == "" {
			return "", "", fmt.Errorf("malformed \"trim\": empty token")
		}
		return "", tok, nil
	}

	seen := map[string]bool{}
	for s != "" {
		eq := strings.IndexByte(s, '=')
		if eq < 0 {
			return "", "", malformed
		}
		name := strings.TrimSpace(s[:eq])
		if name != "start" && name != "end" {
			return "", "", fmt.Errorf("malformed \"trim\": unknown argument %q", name)
		}
		if seen[name] {
			return "", "", fmt.Errorf("malformed \"trim\": %q given twice", name)
		}
		seen[name] = true
		tok, rest, err := readQuoted(strings.TrimSpace(s[eq+1:]))
		if err != nil {
			return "", "", err
		}
		if tok == "" {
			return "", "", fmt.Errorf("malformed \"trim\": empty %s token", name)
		}
		if name == "start" {
			start = tok
		} else {
			end = tok
		}
		rest = strings.TrimSpace(rest)
		if rest == "" {
			break
		}
		if rest[0] != ',' {
			return "", "", malformed
		}
		s = strings.TrimSpace(rest[1:])
		if s == "" {
			return "", "", malformed
		}
	}
	return start, end, nil
}

// readQuoted reads a quoted string at the start of s and returns its
// content and the input following the closing quote.
func readQuoted(s string) (tok, rest string, err error) {
	if s == "" || (s[0] != '\'' && s[0] != '"') {
		return "", "", fmt.Errorf("malformed \"trim\": expected a quoted token")
	}
	e, err := expr.Parse(s[:quotedLen(s)])
	if err != nil {
		return "", "", fmt.Errorf("malformed \"trim\" token: %w", err)
	}
	return e.(*expr.Literal).Value.Text(), s[quotedLen(s):], nil
}

// quotedLen returns the length of the quoted string at the start of s,
// including both quotes, or len(s) when it is not terminated.
func quotedLen(s string) int {
	quote := s[0]
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case quote:
			return i + 1
		}
	}
	return len(s)
}

// parseText splits a line of template text into Text, Bind and Raw parts.
func parseText(content string) (*Line, error) {
	line := &Line{}
	for content != "" {
		i := placeholderStart(content)
		if i < 0 {
			line.Parts = append(line.Parts, &Text{Text: content})
			break
		}
		if i > 0 {
			line.Parts = append(line.Parts, &Text{Text: content[:i]})
		}
		sigil := content[i]
		closing := placeholderEnd(content, i+2)
		if closing < 0 {
			return nil, fmt.Errorf("missing closing '}' in %q", content[i:])
		}
		inner := content[i+2 : closing]
		if strings.TrimSpace(inner) == "continue" {
			return nil, fmt.Errorf("\"#{continue}\" must be on a line of its own")
		}
		e, err := expr.Parse(inner)
		if err != nil {
			return nil, fmt.Errorf("malformed placeholder %q: %w", content[i:closing+1], err)
		}
		if sigil == '#' {
			line.Parts = append(line.Parts, &Bind{Expr: e})
		} else {
			line.Parts = append(line.Parts, &Raw{Expr: e})
		}
		content = content[closing+1:]
	}
	return line, nil
}

// placeholderStart returns the index of the next "#{" or "${", or -1.
func placeholderStart(s string) int {
	for i := 0; i+1 < len(s); i++ {
		if (s[i] == '#' || s[i] == '$') && s[i+1] == '{' {
			return i
		}
	}
	return -1
}

// placeholderEnd returns the index of the '}' closing a placeholder whose
// expression starts at start, skipping quoted strings.
func placeholderEnd(s string, start int) int {
	var quote byte
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '}':
			return i
		}
	}
	return -1
}
