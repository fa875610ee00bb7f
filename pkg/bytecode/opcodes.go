package bytecode

import "fmt"

// Opcode identifies a stack machine instruction.
// The set is closed: every value outside it is treated as illegal.
type Opcode byte

const (
	OpIll Opcode = iota // Illegal instruction, halts the machine
	OpLit               // Push literal: LIT <value>
	OpLod               // Push value of slot: LOD <slot>
	OpSto               // Pop and store into slot: STO <slot>
	OpAdd               // Pop b, pop a, push a+b
	OpSub               // Pop b, pop a, push a-b
	OpMul               // Pop b, pop a, push a*b
	OpDiv               // Pop b, pop a, push a/b (truncating)
	OpWrt               // Pop and write to the output sink
)

// OpcodeInfo provides metadata about each opcode for listings and the
// text form. Execution never consults it.
type OpcodeInfo struct {
	Name       string // Mnemonic used by the text form
	StackPop   int    // How many values popped from stack
	StackPush  int    // How many values pushed to stack
	HasOperand bool   // Whether the instruction carries an operand
}

// opcodeInfoTable maps opcodes to their metadata.
var opcodeInfoTable = map[Opcode]OpcodeInfo{
	OpIll: {"ILL", 0, 0, false},
	OpLit: {"LIT", 0, 1, true},
	OpLod: {"LOD", 0, 1, true},
	OpSto: {"STO", 1, 0, true},
	OpAdd: {"ADD", 2, 1, false},
	OpSub: {"SUB", 2, 1, false},
	OpMul: {"MUL", 2, 1, false},
	OpDiv: {"DIV", 2, 1, false},
	OpWrt: {"WRT", 1, 0, false},
}

// mnemonics is the reverse of opcodeInfoTable, used only when reading
// the text form.
var mnemonics = func() map[string]Opcode {
	m := make(map[string]Opcode, len(opcodeInfoTable))
	for op, info := range opcodeInfoTable {
		m[info.Name] = op
	}
	return m
}()

// GetOpcodeInfo returns metadata for an opcode.
// Returns a zero OpcodeInfo with name "UNKNOWN" if the opcode is not recognized.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", byte(op))}
}

// LookupMnemonic returns the opcode spelled by name in the text form.
func LookupMnemonic(name string) (Opcode, bool) {
	op, ok := mnemonics[name]
	return op, ok
}

// String returns the mnemonic of an opcode.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// HasOperand reports whether instructions with this opcode carry an operand.
func (op Opcode) HasOperand() bool {
	return GetOpcodeInfo(op).HasOperand
}

// IsArithmetic returns true for the four binary arithmetic opcodes.
func (op Opcode) IsArithmetic() bool {
	return op >= OpAdd && op <= OpDiv
}

// Valid reports whether op belongs to the instruction set.
func (op Opcode) Valid() bool {
	_, ok := opcodeInfoTable[op]
	return ok
}

// AllOpcodes returns every defined opcode in numeric order.
func AllOpcodes() []Opcode {
	opcodes := make([]Opcode, 0, len(opcodeInfoTable))
	for op := OpIll; op <= OpWrt; op++ {
		opcodes = append(opcodes, op)
	}
	return opcodes
}

// OpcodeCount returns the number of defined opcodes.
func OpcodeCount() int {
	return len(opcodeInfoTable)
}
