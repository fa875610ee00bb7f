package compiler

import (
	"fmt"
	"io"
)

// ---------------------------------------------------------------------------
// Token types for the PL/0 lexer
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota

	// Literals
	TokenUnsignedInteger // 42
	TokenIdentifier      // foo, a1

	// Keywords
	TokenBegin
	TokenEnd
	TokenVar
	TokenConst
	TokenPrint

	// Operators and punctuation
	TokenPlus      // +
	TokenMinus     // -
	TokenStar      // *
	TokenSlash     // /
	TokenEqual     // =
	TokenSemicolon // ;
	TokenLParen    // (
	TokenRParen    // )
)

var tokenNames = map[TokenType]string{
	TokenEOF:             "NULL_TOKEN",
	TokenUnsignedInteger: "UNSIGNED_INTEGER",
	TokenIdentifier:      "IDENTIFIER",
	TokenBegin:           "BEGIN",
	TokenEnd:             "END",
	TokenVar:             "VAR",
	TokenConst:           "CONST",
	TokenPrint:           "PRINT",
	TokenPlus:            "PLUS_SIGN",
	TokenMinus:           "MINUS_SIGN",
	TokenStar:            "MULTIPLICATION_SIGN",
	TokenSlash:           "DIVISION_SIGN",
	TokenEqual:           "EQUAL_SIGN",
	TokenSemicolon:       "SEMICOLON",
	TokenLParen:          "LEFT_BRACKET",
	TokenRParen:          "RIGHT_BRACKET",
}

// tokenSpellings is how fixed tokens appear in source, for messages.
var tokenSpellings = map[TokenType]string{
	TokenEOF:       "end of input",
	TokenBegin:     "'begin'",
	TokenEnd:       "'end'",
	TokenVar:       "'var'",
	TokenConst:     "'const'",
	TokenPrint:     "'print'",
	TokenPlus:      "'+'",
	TokenMinus:     "'-'",
	TokenStar:      "'*'",
	TokenSlash:     "'/'",
	TokenEqual:     "'='",
	TokenSemicolon: "';'",
	TokenLParen:    "'('",
	TokenRParen:    "')'",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// Position is a location in source text.
type Position struct {
	Offset int // byte offset, 0-based
	Line   int // 1-based
	Column int // 1-based
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Token represents a lexical token. Value is set only for unsigned
// integers and Literal only for identifiers.
type Token struct {
	Type    TokenType
	Literal string
	Value   int32
	Pos     Position
}

// HasPayload reports whether the token carries a value.
func (t Token) HasPayload() bool {
	return t.Type == TokenUnsignedInteger || t.Type == TokenIdentifier
}

func (t Token) String() string {
	switch t.Type {
	case TokenUnsignedInteger:
		return fmt.Sprintf("%s %d", t.Type, t.Value)
	case TokenIdentifier:
		return fmt.Sprintf("%s %s", t.Type, t.Literal)
	}
	return t.Type.String()
}

// describe renders the token the way it reads in source.
func (t Token) describe() string {
	switch t.Type {
	case TokenUnsignedInteger:
		return fmt.Sprintf("%d", t.Value)
	case TokenIdentifier:
		return fmt.Sprintf("identifier %q", t.Literal)
	}
	if s, ok := tokenSpellings[t.Type]; ok {
		return s
	}
	return t.Type.String()
}

// Reserved words mapped to their token types.
var reservedWords = map[string]TokenType{
	"begin": TokenBegin,
	"end":   TokenEnd,
	"var":   TokenVar,
	"const": TokenConst,
	"print": TokenPrint,
}

// punctuation maps single-character operators to their token types.
var punctuation = map[rune]TokenType{
	'+': TokenPlus,
	'-': TokenMinus,
	'*': TokenStar,
	'/': TokenSlash,
	'=': TokenEqual,
	';': TokenSemicolon,
	'(': TokenLParen,
	')': TokenRParen,
}

// DumpTokens writes one token per line: its label, then its payload if
// it has one. The end-of-input sentinel is not written.
func DumpTokens(w io.Writer, tokens []Token) error {
	for _, tok := range tokens {
		if tok.Type == TokenEOF {
			break
		}
		if _, err := fmt.Fprintln(w, tok.String()); err != nil {
			return err
		}
	}
	return nil
}
