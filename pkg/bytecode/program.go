package bytecode

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ProgramVersion is the current artifact format version.
// Increment when making incompatible changes to the binary form.
const ProgramVersion uint16 = 1

// Instruction is a single opcode with its optional operand.
// Operand is meaningful only when Op.HasOperand() is true.
type Instruction struct {
	Op      Opcode `cbor:"1,keyasint"`
	Operand int32  `cbor:"2,keyasint,omitempty"`
}

// String renders the instruction in text form: "OP" or "OP OPERAND".
func (in Instruction) String() string {
	if in.Op.HasOperand() {
		return in.Op.String() + " " + strconv.FormatInt(int64(in.Operand), 10)
	}
	return in.Op.String()
}

// Program is a compiled artifact: an ordered instruction sequence
// addressed by instruction pointer.
type Program struct {
	Code []Instruction
}

// NewProgram creates an empty program.
func NewProgram() *Program {
	return &Program{Code: make([]Instruction, 0, 32)}
}

// Emit appends an operand-less instruction and returns its address.
func (p *Program) Emit(op Opcode) int {
	offset := len(p.Code)
	p.Code = append(p.Code, Instruction{Op: op})
	return offset
}

// EmitWithOperand appends an instruction carrying operand.
func (p *Program) EmitWithOperand(op Opcode, operand int32) int {
	offset := len(p.Code)
	p.Code = append(p.Code, Instruction{Op: op, Operand: operand})
	return offset
}

// Len returns the number of instructions.
func (p *Program) Len() int {
	return len(p.Code)
}

// At returns the instruction at ip.
// Panics if ip is out of range.
func (p *Program) At(ip int) Instruction {
	return p.Code[ip]
}

// Equal reports whether two programs hold identical instruction sequences.
func (p *Program) Equal(other *Program) bool {
	if p == nil || other == nil {
		return p == other
	}
	if len(p.Code) != len(other.Code) {
		return false
	}
	for i := range p.Code {
		if p.Code[i] != other.Code[i] {
			return false
		}
	}
	return true
}

// ---------------------------------------------------------------------------
// Text form
// ---------------------------------------------------------------------------

// WriteText writes the program one instruction per line.
func (p *Program) WriteText(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, in := range p.Code {
		if _, err := bw.WriteString(in.String()); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// String returns the text form of the program.
func (p *Program) String() string {
	var sb strings.Builder
	_ = p.WriteText(&sb)
	return sb.String()
}

// ParseError reports a malformed line in the text form.
type ParseError struct {
	Line int // 1-based
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// ReadText parses the text form produced by WriteText.
// Blank lines are skipped; anything else must be a valid instruction.
func ReadText(r io.Reader) (*Program, error) {
	p := NewProgram()
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		in, err := parseInstruction(line)
		if err != nil {
			return nil, &ParseError{Line: lineNo, Msg: err.Error()}
		}
		p.Code = append(p.Code, in)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading program text: %w", err)
	}
	return p, nil
}

// ParseText parses a program from its text form.
func ParseText(text string) (*Program, error) {
	return ReadText(strings.NewReader(text))
}

func parseInstruction(line string) (Instruction, error) {
	fields := strings.Fields(line)
	op, ok := LookupMnemonic(fields[0])
	if !ok {
		return Instruction{}, fmt.Errorf("unknown mnemonic %q", fields[0])
	}

	if !op.HasOperand() {
		if len(fields) != 1 {
			return Instruction{}, fmt.Errorf("%s takes no operand", op)
		}
		return Instruction{Op: op}, nil
	}

	if len(fields) != 2 {
		return Instruction{}, fmt.Errorf("%s requires exactly one operand", op)
	}
	v, err := strconv.ParseInt(fields[1], 10, 32)
	if err != nil {
		return Instruction{}, fmt.Errorf("%s operand %q is not a 32-bit integer", op, fields[1])
	}
	return Instruction{Op: op, Operand: int32(v)}, nil
}
