package bytecode

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func sampleProgram() *Program {
	p := NewProgram()
	p.EmitWithOperand(OpLit, 1)
	p.EmitWithOperand(OpLit, -2147483648)
	p.EmitWithOperand(OpLod, 0)
	p.EmitWithOperand(OpSto, 1)
	p.Emit(OpAdd)
	p.Emit(OpSub)
	p.Emit(OpMul)
	p.Emit(OpDiv)
	p.Emit(OpWrt)
	p.Emit(OpIll)
	return p
}

func TestProgramEmit(t *testing.T) {
	p := NewProgram()

	if off := p.EmitWithOperand(OpLit, 7); off != 0 {
		t.Errorf("first emit offset = %d, want 0", off)
	}
	if off := p.Emit(OpWrt); off != 1 {
		t.Errorf("second emit offset = %d, want 1", off)
	}
	if p.Len() != 2 {
		t.Errorf("Len() = %d, want 2", p.Len())
	}
	if got := p.At(0); got != (Instruction{Op: OpLit, Operand: 7}) {
		t.Errorf("At(0) = %v, want LIT 7", got)
	}
}

func TestInstructionString(t *testing.T) {
	tests := []struct {
		in   Instruction
		want string
	}{
		{Instruction{Op: OpLit, Operand: 42}, "LIT 42"},
		{Instruction{Op: OpLit, Operand: -1}, "LIT -1"},
		{Instruction{Op: OpLod, Operand: 0}, "LOD 0"},
		{Instruction{Op: OpSto, Operand: 3}, "STO 3"},
		{Instruction{Op: OpAdd}, "ADD"},
		{Instruction{Op: OpWrt}, "WRT"},
		{Instruction{Op: OpIll}, "ILL"},
	}

	for _, tt := range tests {
		if got := tt.in.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestTextRoundTrip(t *testing.T) {
	p := sampleProgram()

	var buf bytes.Buffer
	if err := p.WriteText(&buf); err != nil {
		t.Fatalf("WriteText failed: %v", err)
	}
	text := buf.String()

	back, err := ParseText(text)
	if err != nil {
		t.Fatalf("ParseText failed: %v", err)
	}
	if !p.Equal(back) {
		t.Errorf("round trip mismatch:\n got %v\nwant %v", back.Code, p.Code)
	}

	var again bytes.Buffer
	if err := back.WriteText(&again); err != nil {
		t.Fatalf("WriteText failed: %v", err)
	}
	if again.String() != text {
		t.Errorf("text not byte-identical:\n%q\n%q", again.String(), text)
	}
}

func TestTextFormLayout(t *testing.T) {
	p := NewProgram()
	p.EmitWithOperand(OpLit, 3)
	p.Emit(OpWrt)

	if got, want := p.String(), "LIT 3\nWRT\n"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestReadTextSkipsBlankLines(t *testing.T) {
	p, err := ParseText("\nLIT 1\n\n  WRT  \n")
	if err != nil {
		t.Fatalf("ParseText failed: %v", err)
	}
	if p.Len() != 2 {
		t.Errorf("Len() = %d, want 2", p.Len())
	}
}

func TestReadTextErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
		line int
		msg  string
	}{
		{"unknown mnemonic", "LIT 1\nPUSH 2\n", 2, "unknown mnemonic"},
		{"missing operand", "LIT\n", 1, "requires exactly one operand"},
		{"extra operand", "ADD 1\n", 1, "takes no operand"},
		{"too many operands", "LOD 1 2\n", 1, "requires exactly one operand"},
		{"operand overflow", "LIT 2147483648\n", 1, "not a 32-bit integer"},
		{"operand not a number", "STO x\n", 1, "not a 32-bit integer"},
		{"lowercase mnemonic", "lit 1\n", 1, "unknown mnemonic"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseText(tt.text)
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("expected *ParseError, got %v", err)
			}
			if pe.Line != tt.line {
				t.Errorf("Line = %d, want %d", pe.Line, tt.line)
			}
			if !strings.Contains(pe.Msg, tt.msg) {
				t.Errorf("Msg = %q, want it to contain %q", pe.Msg, tt.msg)
			}
		})
	}
}

func TestProgramEqual(t *testing.T) {
	a := sampleProgram()
	b := sampleProgram()
	if !a.Equal(b) {
		t.Error("identical programs should be equal")
	}
	b.Code[0].Operand = 99
	if a.Equal(b) {
		t.Error("programs with different operands should differ")
	}
	if a.Equal(nil) {
		t.Error("program should not equal nil")
	}
}
