package compiler

import (
	"github.com/tliron/commonlog"

	"github.com/chazu/miniplc0/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Analyzer: single-pass recursive descent parser and code generator
// ---------------------------------------------------------------------------
//
//	program    ::= 'begin' { const_decl } { var_decl } { statement } 'end' EOF
//	const_decl ::= 'const' IDENT '=' const_expr ';'
//	const_expr ::= [ '+' | '-' ] UINT
//	var_decl   ::= 'var' IDENT [ '=' expr ] ';'
//	statement  ::= assignment | output | ';'
//	assignment ::= IDENT '=' expr ';'
//	output     ::= 'print' '(' expr ')' ';'
//	expr       ::= term { ('+' | '-') term }
//	term       ::= factor { ('*' | '/') factor }
//	factor     ::= [ '+' | '-' ] ( IDENT | UINT | '(' expr ')' )
//
// Every expr, term and factor leaves exactly one value on the stack.
// Declarations push their slot's initial value, so slot i is stack
// position i by the time any statement runs.

var log = commonlog.GetLogger("plc0.compiler")

// Analyzer validates a token sequence, resolves names and emits bytecode
// in one pass. The first error aborts the compilation.
//
// An Analyzer may be reused for successive compilations; each Analyze
// call starts from an empty symbol table. It is not safe for concurrent
// use.
type Analyzer struct {
	tokens   []Token
	pos      int // index of the next token
	canUnget bool
	symbols  *SymbolTable
	program  *bytecode.Program
	lastSyms []Symbol
}

// NewAnalyzer creates an analyzer.
func NewAnalyzer() *Analyzer {
	return &Analyzer{symbols: NewSymbolTable()}
}

// Analyze compiles tokens into a program. On error the program is nil;
// nothing emitted before the error escapes.
func (a *Analyzer) Analyze(tokens []Token) (*bytecode.Program, error) {
	a.tokens = tokens
	a.pos = 0
	a.canUnget = false
	a.symbols.Reset()
	a.program = bytecode.NewProgram()
	a.lastSyms = nil

	err := a.parseProgram()
	a.lastSyms = a.symbols.Symbols()
	program := a.program
	a.program = nil
	a.tokens = nil
	if err != nil {
		log.Debugf("compilation failed: %v", err)
		return nil, err
	}

	log.Debugf("compiled %d instructions, %d symbols", program.Len(), len(a.lastSyms))
	return program, nil
}

// Symbols returns the symbols declared by the most recent Analyze call,
// in slot order. After a failed compilation it holds the names declared
// before the error.
func (a *Analyzer) Symbols() []Symbol {
	return a.lastSyms
}

// ---------------------------------------------------------------------------
// Token cursor
// ---------------------------------------------------------------------------

// peek returns the next token without consuming it. Past the end of the
// slice it returns a synthetic EOF.
func (a *Analyzer) peek() Token {
	if a.pos < len(a.tokens) {
		return a.tokens[a.pos]
	}
	eof := Token{Type: TokenEOF}
	if n := len(a.tokens); n > 0 {
		eof.Pos = a.tokens[n-1].Pos
	}
	return eof
}

// next consumes and returns the next token.
func (a *Analyzer) next() Token {
	tok := a.peek()
	if a.pos < len(a.tokens) {
		a.pos++
		a.canUnget = true
	} else {
		a.canUnget = false
	}
	return tok
}

// unget pushes the last consumed token back. Only one step is kept.
func (a *Analyzer) unget() {
	if a.canUnget {
		a.pos--
		a.canUnget = false
	}
}

// peekIs checks the type of the next token.
func (a *Analyzer) peekIs(t TokenType) bool {
	return a.peek().Type == t
}

// expect consumes a token of type t or fails with kind.
func (a *Analyzer) expect(t TokenType, kind ErrorKind) (Token, error) {
	tok := a.peek()
	if tok.Type != t {
		return tok, errorAt(kind, tok.Pos, "expected %s, got %s", tokenSpellings[t], tok.describe())
	}
	return a.next(), nil
}

// expectIdentifier consumes an identifier or fails with kind.
func (a *Analyzer) expectIdentifier(kind ErrorKind) (Token, error) {
	tok := a.peek()
	if tok.Type != TokenIdentifier {
		return tok, errorAt(kind, tok.Pos, "expected identifier, got %s", tok.describe())
	}
	return a.next(), nil
}

// ---------------------------------------------------------------------------
// Productions
// ---------------------------------------------------------------------------

func (a *Analyzer) parseProgram() error {
	if _, err := a.expect(TokenBegin, ErrBeginMissing); err != nil {
		return err
	}

	for a.peekIs(TokenConst) {
		if err := a.parseConstDecl(); err != nil {
			return err
		}
	}

	for a.peekIs(TokenVar) {
		if err := a.parseVarDecl(); err != nil {
			return err
		}
	}

	for !a.peekIs(TokenEnd) && !a.peekIs(TokenEOF) {
		if err := a.parseStatement(); err != nil {
			return err
		}
	}

	if _, err := a.expect(TokenEnd, ErrEndMissing); err != nil {
		return err
	}
	if _, err := a.expect(TokenEOF, ErrTrailingInput); err != nil {
		return err
	}
	return nil
}

func (a *Analyzer) parseConstDecl() error {
	a.next() // const

	ident, err := a.expectIdentifier(ErrIdentifierMissing)
	if err != nil {
		return err
	}
	if _, err := a.expect(TokenEqual, ErrEqualSignMissing); err != nil {
		return err
	}

	sign := int32(1)
	switch a.peek().Type {
	case TokenPlus:
		a.next()
	case TokenMinus:
		a.next()
		sign = -1
	}
	lit := a.peek()
	if lit.Type != TokenUnsignedInteger {
		return errorAt(ErrConstantValueMissing, lit.Pos, "expected unsigned integer for %q, got %s", ident.Literal, lit.describe())
	}
	a.next()

	a.program.EmitWithOperand(bytecode.OpLit, sign*lit.Value)
	if err := a.declare(ident, true, true); err != nil {
		return err
	}

	_, err = a.expect(TokenSemicolon, ErrDeclSemicolonMissing)
	return err
}

func (a *Analyzer) parseVarDecl() error {
	a.next() // var

	ident, err := a.expectIdentifier(ErrIdentifierMissing)
	if err != nil {
		return err
	}

	if a.peekIs(TokenEqual) {
		a.next()
		if err := a.parseExpression(); err != nil {
			return err
		}
		if err := a.declare(ident, true, false); err != nil {
			return err
		}
	} else {
		// Zero-fill the slot so later slots line up with stack positions.
		a.program.EmitWithOperand(bytecode.OpLit, 0)
		if err := a.declare(ident, false, false); err != nil {
			return err
		}
	}

	_, err = a.expect(TokenSemicolon, ErrDeclSemicolonMissing)
	return err
}

func (a *Analyzer) declare(ident Token, initialized, isConst bool) error {
	if _, err := a.symbols.Declare(ident.Literal, initialized, isConst); err != nil {
		prev, _ := a.symbols.Lookup(ident.Literal)
		return errorAt(ErrRedeclaration, ident.Pos, "%q already declared as %s", ident.Literal, prev.Class)
	}
	return nil
}

func (a *Analyzer) parseStatement() error {
	tok := a.peek()
	switch tok.Type {
	case TokenIdentifier:
		return a.parseAssignment()
	case TokenPrint:
		return a.parseOutput()
	case TokenSemicolon:
		a.next()
		return nil
	}
	return errorAt(ErrInvalidStatement, tok.Pos, "expected assignment, 'print' or ';', got %s", tok.describe())
}

func (a *Analyzer) parseAssignment() error {
	ident := a.next()
	name := ident.Literal

	if a.symbols.IsConstant(name) {
		return errorAt(ErrAssignToConstant, ident.Pos, "%q is a constant", name)
	}
	slot, ok := a.symbols.Resolve(name)
	if !ok {
		return errorAt(ErrAssignToUndefined, ident.Pos, "%q is not declared", name)
	}

	if _, err := a.expect(TokenEqual, ErrEqualSignMissing); err != nil {
		return err
	}
	if err := a.parseExpression(); err != nil {
		return err
	}
	if _, err := a.expect(TokenSemicolon, ErrStatementSemicolonMissing); err != nil {
		return err
	}

	a.program.EmitWithOperand(bytecode.OpSto, slot)
	a.symbols.MarkInitialized(name)
	return nil
}

func (a *Analyzer) parseOutput() error {
	a.next() // print

	if _, err := a.expect(TokenLParen, ErrLeftParenMissing); err != nil {
		return err
	}
	if err := a.parseExpression(); err != nil {
		return err
	}
	if _, err := a.expect(TokenRParen, ErrRightParenMissing); err != nil {
		return err
	}
	if _, err := a.expect(TokenSemicolon, ErrStatementSemicolonMissing); err != nil {
		return err
	}

	a.program.Emit(bytecode.OpWrt)
	return nil
}

func (a *Analyzer) parseExpression() error {
	if err := a.parseTerm(); err != nil {
		return err
	}
	for {
		var op bytecode.Opcode
		switch a.peek().Type {
		case TokenPlus:
			op = bytecode.OpAdd
		case TokenMinus:
			op = bytecode.OpSub
		default:
			return nil
		}
		a.next()
		if err := a.parseTerm(); err != nil {
			return err
		}
		a.program.Emit(op)
	}
}

func (a *Analyzer) parseTerm() error {
	if err := a.parseFactor(); err != nil {
		return err
	}
	for {
		var op bytecode.Opcode
		switch a.peek().Type {
		case TokenStar:
			op = bytecode.OpMul
		case TokenSlash:
			op = bytecode.OpDiv
		default:
			return nil
		}
		a.next()
		if err := a.parseFactor(); err != nil {
			return err
		}
		a.program.Emit(op)
	}
}

func (a *Analyzer) parseFactor() error {
	var sign int32
	switch a.peek().Type {
	case TokenPlus:
		a.next()
		sign = 1
	case TokenMinus:
		a.next()
		sign = -1
	}

	tok := a.next()
	switch tok.Type {
	case TokenIdentifier:
		sym, ok := a.symbols.Lookup(tok.Literal)
		if !ok {
			return errorAt(ErrUndefinedReference, tok.Pos, "%q is not declared", tok.Literal)
		}
		if sym.Class == ClassUninitialized {
			return errorAt(ErrUninitializedReference, tok.Pos, "%q is used before assignment", tok.Literal)
		}
		a.program.EmitWithOperand(bytecode.OpLod, sym.Slot)

	case TokenUnsignedInteger:
		a.program.EmitWithOperand(bytecode.OpLit, tok.Value)

	case TokenLParen:
		if err := a.parseExpression(); err != nil {
			return err
		}
		if _, err := a.expect(TokenRParen, ErrRightParenMissing); err != nil {
			return err
		}

	default:
		a.unget()
		got := a.peek()
		return errorAt(ErrFactorMissing, got.Pos, "expected identifier, integer or '(', got %s", got.describe())
	}

	if sign != 0 {
		a.program.EmitWithOperand(bytecode.OpLit, sign)
		a.program.Emit(bytecode.OpMul)
	}
	return nil
}
