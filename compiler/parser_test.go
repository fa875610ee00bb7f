package compiler

import (
	"errors"
	"strings"
	"testing"

	"github.com/chazu/miniplc0/pkg/bytecode"
)

// compileText compiles source and returns the text form of the program.
func compileText(t *testing.T, source string) string {
	t.Helper()
	program, err := Compile(source)
	if err != nil {
		t.Fatalf("Compile(%q) failed: %v", source, err)
	}
	return program.String()
}

func lines(code ...string) string {
	return strings.Join(code, "\n") + "\n"
}

func TestCodegen(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{
			name:   "empty program",
			source: "begin end",
			want:   "",
		},
		{
			name:   "constant declarations",
			source: "begin const a = 3; const b = -4; const c = +5; end",
			want:   lines("LIT 3", "LIT -4", "LIT 5"),
		},
		{
			name:   "variable without initializer is zero filled",
			source: "begin var a; end",
			want:   lines("LIT 0"),
		},
		{
			name:   "variable with initializer",
			source: "begin const k = 2; var a = k * 3; end",
			want:   lines("LIT 2", "LOD 0", "LIT 3", "MUL"),
		},
		{
			name:   "precedence",
			source: "begin var a = 1; var b = 2; print(a+b*2); end",
			want:   lines("LIT 1", "LIT 2", "LOD 0", "LOD 1", "LIT 2", "MUL", "ADD", "WRT"),
		},
		{
			name:   "left associativity",
			source: "begin print(8-4-2); print(8/4/2); end",
			want:   lines("LIT 8", "LIT 4", "SUB", "LIT 2", "SUB", "WRT", "LIT 8", "LIT 4", "DIV", "LIT 2", "DIV", "WRT"),
		},
		{
			name:   "parentheses",
			source: "begin print((1+2)*3); end",
			want:   lines("LIT 1", "LIT 2", "ADD", "LIT 3", "MUL", "WRT"),
		},
		{
			name:   "signed factors",
			source: "begin var a = 1; print(-a); print(+2); print(-(a+1)); end",
			want: lines(
				"LIT 1",
				"LOD 0", "LIT -1", "MUL", "WRT",
				"LIT 2", "LIT 1", "MUL", "WRT",
				"LOD 0", "LIT 1", "ADD", "LIT -1", "MUL", "WRT",
			),
		},
		{
			name:   "assignment",
			source: "begin var a; var b = 0; a = 7; b = a + 1; end",
			want:   lines("LIT 0", "LIT 0", "LIT 7", "STO 0", "LOD 0", "LIT 1", "ADD", "STO 1"),
		},
		{
			name:   "empty statements",
			source: "begin ; ; print(1); ; end",
			want:   lines("LIT 1", "WRT"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := compileText(t, tt.source); got != tt.want {
				t.Errorf("code =\n%s\nwant\n%s", got, tt.want)
			}
		})
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		kind   ErrorKind
	}{
		// Lexical
		{"unknown token", "begin print(1 % 2); end", ErrUnknownToken},
		{"literal overflow", "begin print(2147483648); end", ErrLiteralOverflow},

		// Syntactic
		{"begin missing", "var a; end", ErrBeginMissing},
		{"end missing", "begin print(1);", ErrEndMissing},
		{"trailing input", "begin end end", ErrTrailingInput},
		{"const identifier missing", "begin const = 1; end", ErrIdentifierMissing},
		{"var identifier missing", "begin var 1; end", ErrIdentifierMissing},
		{"const equal missing", "begin const a 1; end", ErrEqualSignMissing},
		{"const value missing", "begin const a = b; end", ErrConstantValueMissing},
		{"const value is expression", "begin const a = (1); end", ErrConstantValueMissing},
		{"const semicolon missing", "begin const a = 1 end", ErrDeclSemicolonMissing},
		{"var semicolon missing", "begin var a = 1 print(a); end", ErrDeclSemicolonMissing},
		{"statement semicolon missing", "begin var a; a = 1 end", ErrStatementSemicolonMissing},
		{"print semicolon missing", "begin print(1) end", ErrStatementSemicolonMissing},
		{"assignment equal missing", "begin var a; a 1; end", ErrEqualSignMissing},
		{"left paren missing", "begin print 1; end", ErrLeftParenMissing},
		{"right paren missing", "begin print(1; end", ErrRightParenMissing},
		{"nested right paren missing", "begin print((1+2); end", ErrRightParenMissing},
		{"operand missing", "begin print(1 + ); end", ErrFactorMissing},
		{"empty print", "begin print(); end", ErrFactorMissing},
		{"double sign", "begin print(--1); end", ErrFactorMissing},
		{"const after var", "begin var a; const b = 1; end", ErrInvalidStatement},
		{"var after statement", "begin print(1); var a; end", ErrInvalidStatement},

		// Semantic
		{"redeclare const", "begin const a = 1; const a = 2; end", ErrRedeclaration},
		{"redeclare var", "begin var a; var a; end", ErrRedeclaration},
		{"redeclare const as var", "begin const a = 1; var a; end", ErrRedeclaration},
		{"assign constant", "begin const a = 1; a = 2; end", ErrAssignToConstant},
		{"assign undefined", "begin x = 1; end", ErrAssignToUndefined},
		{"undefined reference", "begin print(x); end", ErrUndefinedReference},
		{"self reference in initializer", "begin var a = a; end", ErrUndefinedReference},
		{"uninitialized reference", "begin var a; print(a); end", ErrUninitializedReference},
		{"uninitialized in own assignment", "begin var a; a = a + 1; end", ErrUninitializedReference},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			program, err := Compile(tt.source)
			if !errors.Is(err, tt.kind) {
				t.Fatalf("err = %v, want %v", err, tt.kind)
			}
			if program != nil {
				t.Error("failed compilation must not return a program")
			}
			var cerr *Error
			if !errors.As(err, &cerr) {
				t.Fatalf("expected *Error, got %T", err)
			}
			if cerr.Pos.Line == 0 {
				t.Error("error should carry a position")
			}
		})
	}
}

func TestErrorCategories(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		want Category
	}{
		{ErrUnknownToken, CategoryLexical},
		{ErrLiteralOverflow, CategoryLexical},
		{ErrBeginMissing, CategorySyntactic},
		{ErrFactorMissing, CategorySyntactic},
		{ErrRedeclaration, CategorySemantic},
		{ErrUninitializedReference, CategorySemantic},
	}
	for _, tt := range tests {
		if got := tt.kind.Category(); got != tt.want {
			t.Errorf("%v.Category() = %v, want %v", tt.kind, got, tt.want)
		}
	}
}

func TestErrorMessageNamesExpectation(t *testing.T) {
	_, err := Compile("begin var a = 1 print(a); end")
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	for _, want := range []string{"line 1", "syntactic", "';' missing after declaration", "expected ';'", "'print'"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q should contain %q", msg, want)
		}
	}

	_, err = Compile("begin const pi = 3; pi = 4; end")
	if err == nil || !strings.Contains(err.Error(), `"pi"`) {
		t.Errorf("message should name the offending symbol: %v", err)
	}
}

func TestConstantResolvesAndRejectsAssignment(t *testing.T) {
	for _, value := range []string{"0", "1", "-7", "+2147483647", "-2147483647"} {
		a := NewAnalyzer()
		tokens, err := Tokenize("begin const k = " + value + "; print(k); end")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := a.Analyze(tokens); err != nil {
			t.Fatalf("const %s: %v", value, err)
		}
		syms := a.Symbols()
		if len(syms) != 1 || syms[0].Class != ClassConstant {
			t.Errorf("const %s: Symbols() = %+v", value, syms)
		}

		_, err = Compile("begin const k = " + value + "; k = 1; end")
		if !errors.Is(err, ErrAssignToConstant) {
			t.Errorf("const %s: err = %v, want assignment to constant", value, err)
		}
	}
}

func TestUninitializedBecomesUsableAfterAssignment(t *testing.T) {
	a := NewAnalyzer()
	tokens, err := Tokenize("begin var x; x = 3; print(x); x = x * 2; print(x); end")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.Analyze(tokens); err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	syms := a.Symbols()
	if len(syms) != 1 || syms[0].Class != ClassInitialized {
		t.Errorf("x should end initialized, got %+v", syms)
	}
}

func TestAnalyzerResetsBetweenCompilations(t *testing.T) {
	a := NewAnalyzer()

	first, err := Tokenize("begin var a = 1; var b = 2; end")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.Analyze(first); err != nil {
		t.Fatal(err)
	}

	second, err := Tokenize("begin var b = 5; print(b); end")
	if err != nil {
		t.Fatal(err)
	}
	program, err := a.Analyze(second)
	if err != nil {
		t.Fatalf("names from a previous compilation must not leak: %v", err)
	}
	if got, want := program.String(), lines("LIT 5", "LOD 0", "WRT"); got != want {
		t.Errorf("slots must restart at 0:\n%s", got)
	}
}

func TestAnalyzeWithoutSentinel(t *testing.T) {
	tokens, err := Tokenize("begin print(1); end")
	if err != nil {
		t.Fatal(err)
	}
	tokens = tokens[:len(tokens)-1]

	program, err := NewAnalyzer().Analyze(tokens)
	if err != nil {
		t.Fatalf("missing sentinel should read as end of input: %v", err)
	}
	if program.Len() != 2 {
		t.Errorf("Len() = %d, want 2", program.Len())
	}

	if _, err := NewAnalyzer().Analyze(nil); !errors.Is(err, ErrBeginMissing) {
		t.Errorf("empty token slice: err = %v, want begin missing", err)
	}
}

func TestTokenCursorUnget(t *testing.T) {
	tokens, err := Tokenize("begin end")
	if err != nil {
		t.Fatal(err)
	}
	a := NewAnalyzer()
	a.tokens = tokens

	if tok := a.next(); tok.Type != TokenBegin {
		t.Fatalf("next() = %v, want BEGIN", tok)
	}
	a.unget()
	a.unget() // only one step is kept
	if tok := a.peek(); tok.Type != TokenBegin {
		t.Errorf("peek() after unget = %v, want BEGIN", tok)
	}
	a.next()
	a.next()
	a.next() // EOF
	if tok := a.next(); tok.Type != TokenEOF {
		t.Errorf("next() past the end = %v, want EOF", tok)
	}
}

func TestStackDisciplineOfExpressions(t *testing.T) {
	// Every expression must leave exactly one value: simulate stack heights.
	program, err := Compile("begin var a = 2; var b = -(a*3) / (1 + a) - +4; print(a - b * -a); b = a; end")
	if err != nil {
		t.Fatal(err)
	}
	height := 0
	for _, in := range program.Code {
		info := bytecode.GetOpcodeInfo(in.Op)
		height -= info.StackPop
		if height < 0 {
			t.Fatalf("stack underflow at %v", in)
		}
		height += info.StackPush
	}
	if height != 2 {
		t.Errorf("final height = %d, want 2 (one cell per declared slot)", height)
	}
}
