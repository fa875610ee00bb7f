package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Compile-time error taxonomy
// ---------------------------------------------------------------------------

// Category groups error kinds by compilation phase.
type Category int

const (
	CategoryLexical Category = iota
	CategorySyntactic
	CategorySemantic
)

func (c Category) String() string {
	switch c {
	case CategoryLexical:
		return "lexical"
	case CategorySyntactic:
		return "syntactic"
	case CategorySemantic:
		return "semantic"
	}
	return fmt.Sprintf("Category(%d)", int(c))
}

// ErrorKind is the closed set of compile errors. A kind is itself an
// error so callers can match with errors.Is(err, ErrRedeclaration).
type ErrorKind int

const (
	// Lexical
	ErrUnknownToken ErrorKind = iota + 1
	ErrLiteralOverflow

	// Syntactic
	ErrBeginMissing
	ErrEndMissing
	ErrTrailingInput
	ErrIdentifierMissing
	ErrEqualSignMissing
	ErrConstantValueMissing
	ErrDeclSemicolonMissing
	ErrStatementSemicolonMissing
	ErrInvalidStatement
	ErrLeftParenMissing
	ErrRightParenMissing
	ErrFactorMissing

	// Semantic
	ErrRedeclaration
	ErrAssignToConstant
	ErrAssignToUndefined
	ErrUndefinedReference
	ErrUninitializedReference
)

var errorKindNames = map[ErrorKind]string{
	ErrUnknownToken:              "unknown token",
	ErrLiteralOverflow:           "integer literal overflow",
	ErrBeginMissing:              "'begin' missing",
	ErrEndMissing:                "'end' missing",
	ErrTrailingInput:             "input after 'end'",
	ErrIdentifierMissing:         "identifier missing in declaration",
	ErrEqualSignMissing:          "'=' missing",
	ErrConstantValueMissing:      "constant value missing",
	ErrDeclSemicolonMissing:      "';' missing after declaration",
	ErrStatementSemicolonMissing: "';' missing after statement",
	ErrInvalidStatement:          "invalid statement",
	ErrLeftParenMissing:          "'(' missing",
	ErrRightParenMissing:         "')' missing",
	ErrFactorMissing:             "expression operand missing",
	ErrRedeclaration:             "redeclaration",
	ErrAssignToConstant:          "assignment to constant",
	ErrAssignToUndefined:         "assignment to undefined name",
	ErrUndefinedReference:        "reference to undefined name",
	ErrUninitializedReference:    "reference to uninitialized variable",
}

func (k ErrorKind) String() string {
	if name, ok := errorKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

func (k ErrorKind) Error() string {
	return k.String()
}

// Category returns the phase the kind belongs to.
func (k ErrorKind) Category() Category {
	switch {
	case k <= ErrLiteralOverflow:
		return CategoryLexical
	case k <= ErrFactorMissing:
		return CategorySyntactic
	default:
		return CategorySemantic
	}
}

// Error is a compile error at a source position.
type Error struct {
	Kind   ErrorKind
	Pos    Position
	Detail string // expectation or offending name
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("line %d, column %d: %s error: %s", e.Pos.Line, e.Pos.Column, e.Kind.Category(), e.Kind)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Unwrap exposes the kind for errors.Is.
func (e *Error) Unwrap() error {
	return e.Kind
}

func errorAt(kind ErrorKind, pos Position, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Pos: pos, Detail: fmt.Sprintf(format, args...)}
}
