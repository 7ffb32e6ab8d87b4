// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package expr

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/canonical/sqltmpl/value"
)

// SyntaxError is returned by Parse for malformed expressions. Column is the
// 1-based position in the input where the problem was found.
type SyntaxError struct {
	Column int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("column %d: %s", e.Column, e.Msg)
}

// Parse parses a single expression. The whole input must be consumed.
func Parse(input string) (Expr, error) {
	p := &Parser{}
	return p.Parse(input)
}

// Parser is a recursive descent parser for template expressions. A Parser
// may be reused but not shared between goroutines.
type Parser struct {
	input string
	pos   int
	// nextPos is start of the next char.
	nextPos int
	// char is the rune starting at pos. char is set to 0 when pos reaches the
	// end of input.
	char rune
}

// Parse takes an expression string and returns its AST.
func (p *Parser) Parse(input string) (Expr, error) {
	p.init(input)

	p.skipBlanks()
	if p.pos >= len(p.input) {
		return nil, p.errorf("empty expression")
	}
	e, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	p.skipBlanks()
	if p.pos < len(p.input) {
		if p.char == ')' {
			return nil, p.errorf("unbalanced parentheses: unexpected ')'")
		}
		return nil, p.errorf("unexpected %q after expression", p.input[p.pos:])
	}
	return e, nil
}

// init resets the state of the parser and sets the input string.
func (p *Parser) init(input string) {
	p.input = input
	p.pos = 0
	p.nextPos = 0
	p.char = 0
	p.advanceChar()
}

// colNum is the 1-based column of the current char.
func (p *Parser) colNum() int {
	return utf8.RuneCountInString(p.input[:p.pos]) + 1
}

func (p *Parser) errorf(format string, args ...any) error {
	return &SyntaxError{Column: p.colNum(), Msg: fmt.Sprintf(format, args...)}
}

func (p *Parser) errorAt(col int, format string, args ...any) error {
	return &SyntaxError{Column: col, Msg: fmt.Sprintf(format, args...)}
}

// advanceChar moves the parser to the next character in the input.
func (p *Parser) advanceChar() bool {
	if p.nextPos >= len(p.input) {
		p.char = 0
		p.pos = len(p.input)
		return false
	}
	var size int
	p.char, size = utf8.DecodeRuneInString(p.input[p.nextPos:])
	p.pos = p.nextPos
	p.nextPos += size
	return true
}

// A checkpoint for saving parser state to restore later.
type checkpoint struct {
	parser  *Parser
	pos     int
	nextPos int
	char    rune
}

func (p *Parser) save() *checkpoint {
	return &checkpoint{parser: p, pos: p.pos, nextPos: p.nextPos, char: p.char}
}

func (cp *checkpoint) restore() {
	cp.parser.pos = cp.pos
	cp.parser.nextPos = cp.nextPos
	cp.parser.char = cp.char
}

// skipBlanks advances the parser past spaces and tabs. Returns whether the
// parser position was changed.
func (p *Parser) skipBlanks() bool {
	mark := p.pos
	for p.pos < len(p.input) {
		switch p.char {
		case ' ', '\t', '\r', '\n':
			p.advanceChar()
		default:
			return p.pos != mark
		}
	}
	return p.pos != mark
}

// skipChar jumps over the current char if it matches the char passed as a
// parameter. Returns true in that case, false otherwise.
func (p *Parser) skipChar(c rune) bool {
	if p.pos < len(p.input) && p.char == c {
		p.advanceChar()
		return true
	}
	return false
}

// skipString jumps over s if the input continues with it.
func (p *Parser) skipString(s string) bool {
	if strings.HasPrefix(p.input[p.pos:], s) {
		p.pos += len(s)
		p.nextPos = p.pos
		p.advanceChar()
		return true
	}
	return false
}

// isNameChar returns true if the given char can be part of a name.
func isNameChar(c rune) bool {
	return unicode.IsLetter(c) || unicode.IsDigit(c) || c == '_'
}

// isInitialNameChar returns true if the given char can appear at the start of a
// name.
func isInitialNameChar(c rune) bool {
	return unicode.IsLetter(c) || c == '_'
}

// Functions with the prefix parse attempt to parse some construct. They return
// the construct and an error. Unlike the helpers above, a parse function that
// does not find its construct reports a syntax error.

// parseOr parses: and { "||" and }.
func (p *Parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for {
		p.skipBlanks()
		if !p.skipString("||") {
			return left, nil
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: OpOr, Left: left, Right: right}
	}
}

// parseAnd parses: equality { "&&" equality }.
func (p *Parser) parseAnd() (Expr, error) {
	left, err := p.parseEquality()
	if err != nil {
		return nil, err
	}
	for {
		p.skipBlanks()
		if !p.skipString("&&") {
			return left, nil
		}
		right, err := p.parseEquality()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: OpAnd, Left: left, Right: right}
	}
}

// parseEquality parses: relational { ("==" | "!=") relational }.
func (p *Parser) parseEquality() (Expr, error) {
	left, err := p.parseRelational()
	if err != nil {
		return nil, err
	}
	for {
		p.skipBlanks()
		var op Op
		switch {
		case p.skipString("=="):
			op = OpEq
		case p.skipString("!="):
			op = OpNe
		default:
			return left, nil
		}
		right, err := p.parseRelational()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: op, Left: left, Right: right}
	}
}

// parseRelational parses: primary { ("<" | "<=" | ">" | ">=") primary }.
func (p *Parser) parseRelational() (Expr, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		p.skipBlanks()
		var op Op
		switch {
		case p.skipString("<="):
			op = OpLe
		case p.skipString(">="):
			op = OpGe
		case p.skipString("<"):
			op = OpLt
		case p.skipString(">"):
			op = OpGt
		default:
			return left, nil
		}
		right, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: op, Left: left, Right: right}
	}
}

// parsePrimary parses a literal, a path or a parenthesised expression.
func (p *Parser) parsePrimary() (Expr, error) {
	p.skipBlanks()
	if p.pos >= len(p.input) {
		return nil, p.errorf("unexpected end of expression")
	}

	start := p.colNum()
	switch {
	case p.skipChar('('):
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		p.skipBlanks()
		if !p.skipChar(')') {
			return nil, p.errorAt(start, "unbalanced parentheses: missing ')'")
		}
		return &Paren{Inner: inner}, nil
	case p.char == '\'' || p.char == '"':
		s, err := p.parseStringLiteral()
		if err != nil {
			return nil, err
		}
		return &Literal{Value: value.String(s)}, nil
	case p.char == '-' || unicode.IsDigit(p.char):
		return p.parseNumber()
	case isInitialNameChar(p.char):
		return p.parsePathOrKeyword()
	case p.char == ')':
		return nil, p.errorf("unbalanced parentheses: unexpected ')'")
	}
	return nil, p.errorf("unknown token %q", p.char)
}

// parseStringLiteral parses a single or double quoted string. A backslash
// escapes the next character; \n, \t and \r have their usual meaning.
func (p *Parser) parseStringLiteral() (string, error) {
	start := p.colNum()
	quote := p.char
	p.advanceChar()

	var sb strings.Builder
	for p.pos < len(p.input) {
		c := p.char
		switch {
		case c == quote:
			p.advanceChar()
			return sb.String(), nil
		case c == '\\':
			if !p.advanceChar() {
				return "", p.errorAt(start, "missing closing quote in string literal")
			}
			switch p.char {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			default:
				sb.WriteRune(p.char)
			}
		default:
			sb.WriteRune(c)
		}
		p.advanceChar()
	}
	return "", p.errorAt(start, "missing closing quote in string literal")
}

// parseNumber parses an integer or a decimal float, optionally negative.
func (p *Parser) parseNumber() (Expr, error) {
	cp := p.save()
	mark := p.pos
	p.skipChar('-')
	digits := 0
	for p.pos < len(p.input) && unicode.IsDigit(p.char) {
		p.advanceChar()
		digits++
	}
	if digits == 0 {
		cp.restore()
		return nil, p.errorf("unknown token %q", p.char)
	}
	isFloat := false
	if p.char == '.' {
		fracCP := p.save()
		p.advanceChar()
		frac := 0
		for p.pos < len(p.input) && unicode.IsDigit(p.char) {
			p.advanceChar()
			frac++
		}
		if frac == 0 {
			fracCP.restore()
		} else {
			isFloat = true
		}
	}
	if p.pos < len(p.input) && isNameChar(p.char) {
		return nil, p.errorf("invalid number %q", p.input[mark:p.pos]+string(p.char))
	}

	text := p.input[mark:p.pos]
	if isFloat {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, p.errorAt(p.colNumAt(mark), "invalid number %q", text)
		}
		return &Literal{Value: value.Float(f)}, nil
	}
	i, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return nil, p.errorAt(p.colNumAt(mark), "invalid number %q", text)
	}
	return &Literal{Value: value.Int(i)}, nil
}

func (p *Parser) colNumAt(pos int) int {
	return utf8.RuneCountInString(p.input[:pos]) + 1
}

// parseName parses a name starting with a letter or underscore and followed
// by letters, digits and underscores.
func (p *Parser) parseName() (string, bool) {
	mark := p.pos
	if isInitialNameChar(p.char) {
		p.advanceChar()
		for p.pos < len(p.input) && isNameChar(p.char) {
			p.advanceChar()
		}
	}
	if p.pos > mark {
		return p.input[mark:p.pos], true
	}
	return "", false
}

// parsePathOrKeyword parses null, true, false or a dotted variable path.
// Segments after the first may also be decimal array indexes.
func (p *Parser) parsePathOrKeyword() (Expr, error) {
	name, _ := p.parseName()
	switch name {
	case "null":
		return &Literal{Value: value.Null()}, nil
	case "true":
		return &Literal{Value: value.Bool(true)}, nil
	case "false":
		return &Literal{Value: value.Bool(false)}, nil
	}

	path := &Path{Segments: []string{name}}
	for p.skipChar('.') {
		if seg, ok := p.parseName(); ok {
			path.Segments = append(path.Segments, seg)
			continue
		}
		mark := p.pos
		for p.pos < len(p.input) && unicode.IsDigit(p.char) {
			p.advanceChar()
		}
		if p.pos == mark {
			return nil, p.errorf("invalid path segment after %q", path.String())
		}
		path.Segments = append(path.Segments, p.input[mark:p.pos])
	}
	return path, nil
}
