package compiler

import (
	"unicode"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Lexer: Tokenizer for PL/0 source
// ---------------------------------------------------------------------------

// maxLiteral is the largest unsigned integer literal accepted.
const maxLiteral = 0x7fffffff

// Lexer tokenizes PL/0 source code.
type Lexer struct {
	input     string
	pos       int  // current position in input
	readPos   int  // reading position (after current char)
	ch        rune // current character
	eof       bool
	line      int // current line (1-based)
	lineStart int // offset of current line start
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{
		input: input,
		line:  1,
	}
	l.readChar()
	return l
}

// readChar reads the next character.
func (l *Lexer) readChar() {
	if !l.eof && l.ch == '\n' {
		l.line++
		l.lineStart = l.readPos
	}
	if l.readPos >= len(l.input) {
		l.ch = 0
		l.pos = len(l.input)
		l.eof = true
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.readPos:])
	l.ch = r
	l.pos = l.readPos
	l.readPos += size
}

// position returns the position of the current character.
func (l *Lexer) position() Position {
	return Position{
		Offset: l.pos,
		Line:   l.line,
		Column: l.pos - l.lineStart + 1,
	}
}

// NextToken returns the next token. After the input is exhausted it keeps
// returning TokenEOF.
func (l *Lexer) NextToken() (Token, error) {
	for !l.eof && unicode.IsSpace(l.ch) {
		l.readChar()
	}

	pos := l.position()

	switch {
	case l.eof:
		return Token{Type: TokenEOF, Pos: pos}, nil

	case isDigit(l.ch):
		return l.readNumber(pos)

	case isLetter(l.ch):
		return l.readIdentifier(pos), nil
	}

	if typ, ok := punctuation[l.ch]; ok {
		l.readChar()
		return Token{Type: typ, Pos: pos}, nil
	}

	start := l.pos
	for !l.eof && !unicode.IsSpace(l.ch) && !isLetter(l.ch) && !isDigit(l.ch) {
		if _, ok := punctuation[l.ch]; ok {
			break
		}
		l.readChar()
	}
	return Token{}, errorAt(ErrUnknownToken, pos, "%q", l.input[start:l.pos])
}

// readNumber reads a decimal digit run. Letters directly after the
// digits start a new token.
func (l *Lexer) readNumber(pos Position) (Token, error) {
	start := l.pos
	var value uint64
	overflow := false
	for !l.eof && isDigit(l.ch) {
		if !overflow {
			value = value*10 + uint64(l.ch-'0')
			overflow = value > maxLiteral
		}
		l.readChar()
	}
	if overflow {
		return Token{}, errorAt(ErrLiteralOverflow, pos, "%s exceeds %d", l.input[start:l.pos], maxLiteral)
	}
	return Token{Type: TokenUnsignedInteger, Value: int32(value), Pos: pos}, nil
}

// readIdentifier reads an identifier or reserved word.
func (l *Lexer) readIdentifier(pos Position) Token {
	start := l.pos
	for !l.eof && (isLetter(l.ch) || isDigit(l.ch)) {
		l.readChar()
	}
	word := l.input[start:l.pos]
	if typ, ok := reservedWords[word]; ok {
		return Token{Type: typ, Pos: pos}
	}
	return Token{Type: TokenIdentifier, Literal: word, Pos: pos}
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

// Tokenize scans the whole input. The returned slice always ends with a
// TokenEOF sentinel.
func Tokenize(input string) ([]Token, error) {
	l := NewLexer(input)
	var tokens []Token
	for {
		tok, err := l.NextToken()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			return tokens, nil
		}
	}
}
