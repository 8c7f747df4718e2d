package compiler

import (
	"fmt"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Lexer: on-demand tokenizer
// ---------------------------------------------------------------------------

// Lexer tokenizes source text one token per NextToken call. The source is
// never modified; only the cursor and line counter advance.
type Lexer struct {
	input     string
	start     int // offset of the token being scanned
	pos       int // offset of the next unread byte
	line      int // current line (1-based)
	startLine int // line the token being scanned starts on
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input, line: 1}
}

// Line returns the line the cursor is on.
func (l *Lexer) Line() int {
	return l.line
}

func (l *Lexer) atEnd() bool {
	return l.pos >= len(l.input)
}

// peek returns the next byte without consuming it, or 0 at end of input.
func (l *Lexer) peek() byte {
	if l.atEnd() {
		return 0
	}
	return l.input[l.pos]
}

// peekNext returns the byte after the next one, or 0.
func (l *Lexer) peekNext() byte {
	if l.pos+1 >= len(l.input) {
		return 0
	}
	return l.input[l.pos+1]
}

// advance consumes one byte and keeps the line counter current.
func (l *Lexer) advance() byte {
	c := l.input[l.pos]
	l.pos++
	if c == '\n' {
		l.line++
	}
	return c
}

// match consumes the next byte if it is expected.
func (l *Lexer) match(expected byte) bool {
	if l.peek() != expected || l.atEnd() {
		return false
	}
	l.pos++
	return true
}

// NextToken returns the next token. Once the input is exhausted every call
// returns an EOF token.
func (l *Lexer) NextToken() Token {
	l.skipWhitespaceAndComments()

	l.start = l.pos
	l.startLine = l.line

	if l.atEnd() {
		return l.makeToken(TokenEOF)
	}

	c := l.advance()
	switch c {
	case '(':
		return l.makeToken(TokenLeftParen)
	case ')':
		return l.makeToken(TokenRightParen)
	case '{':
		return l.makeToken(TokenLeftBrace)
	case '}':
		return l.makeToken(TokenRightBrace)
	case ',':
		return l.makeToken(TokenComma)
	case '.':
		return l.makeToken(TokenDot)
	case '-':
		return l.makeToken(TokenMinus)
	case '+':
		return l.makeToken(TokenPlus)
	case ';':
		return l.makeToken(TokenSemicolon)
	case '/':
		return l.makeToken(TokenSlash)
	case '*':
		return l.makeToken(TokenStar)
	case '!':
		return l.makeTwoCharToken('=', TokenBangEqual, TokenBang)
	case '=':
		return l.makeTwoCharToken('=', TokenEqualEqual, TokenEqual)
	case '>':
		return l.makeTwoCharToken('=', TokenGreaterEqual, TokenGreater)
	case '<':
		return l.makeTwoCharToken('=', TokenLessEqual, TokenLess)
	case '"':
		return l.readString()
	}

	switch {
	case isDigit(c):
		return l.readNumber()
	case isAlpha(c):
		return l.readIdentifier()
	}

	// Consume the whole rune so a multi-byte character yields one error.
	r := rune(c)
	if c >= utf8.RuneSelf {
		var size int
		r, size = utf8.DecodeRuneInString(l.input[l.start:])
		l.pos = l.start + max(size, 1)
	}
	return l.errorToken(fmt.Sprintf("Unexpected character '%c'.", r))
}

func (l *Lexer) makeToken(typ TokenType) Token {
	return Token{
		Type:    typ,
		Span:    Span{Start: l.start, Len: l.pos - l.start},
		Literal: l.input[l.start:l.pos],
		Line:    l.startLine,
	}
}

func (l *Lexer) makeTwoCharToken(second byte, two, one TokenType) Token {
	if l.match(second) {
		return l.makeToken(two)
	}
	return l.makeToken(one)
}

func (l *Lexer) errorToken(msg string) Token {
	return Token{
		Type:    TokenError,
		Span:    Span{Start: l.start, Len: l.pos - l.start},
		Literal: msg,
		Line:    l.startLine,
	}
}

// skipWhitespaceAndComments skips blanks, newlines and // comments.
func (l *Lexer) skipWhitespaceAndComments() {
	for !l.atEnd() {
		switch l.peek() {
		case ' ', '\t', '\r', '\n':
			l.advance()
		case '/':
			if l.peekNext() != '/' {
				return
			}
			for !l.atEnd() && l.peek() != '\n' {
				l.advance()
			}
		default:
			return
		}
	}
}

// readString reads a string literal. The literal text excludes the quotes;
// newlines inside the literal are kept and counted.
func (l *Lexer) readString() Token {
	for !l.atEnd() && l.peek() != '"' {
		l.advance()
	}

	if l.atEnd() {
		return l.errorToken("Unterminated string.")
	}

	l.advance() // closing "
	tok := l.makeToken(TokenString)
	tok.Literal = l.input[l.start+1 : l.pos-1]
	return tok
}

// readNumber reads a run of digits with an optional fraction. A trailing
// '.' is taken as part of the number even when no digits follow it.
func (l *Lexer) readNumber() Token {
	for isDigit(l.peek()) {
		l.advance()
	}

	if l.peek() == '.' {
		l.advance()
		for isDigit(l.peek()) {
			l.advance()
		}
	}

	return l.makeToken(TokenNumber)
}

// readIdentifier reads an identifier or keyword.
func (l *Lexer) readIdentifier() Token {
	for isAlpha(l.peek()) {
		l.advance()
	}
	return l.makeToken(LookupIdent(l.input[l.start:l.pos]))
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// isAlpha reports whether c may appear in an identifier.
func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
}

// Tokenize scans the whole input and returns every token up to and
// including the first EOF.
func Tokenize(input string) []Token {
	l := NewLexer(input)
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			return tokens
		}
	}
}
