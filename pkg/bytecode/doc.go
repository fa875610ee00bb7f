// Package bytecode defines the PL/0 instruction set, the compiled program
// artifact and the stack machine that executes it.
//
// # Instruction Set
//
// The set is closed: ILL, LIT, LOD, STO, ADD, SUB, MUL, DIV and WRT. LIT
// carries a literal, LOD and STO carry a storage slot, the rest carry no
// operand. The mnemonic table in opcodes.go is used only by the text form
// and listings; the VM dispatches with a switch.
//
// # Artifact Forms
//
//   - Text: one instruction per line, "OP" or "OP OPERAND". WriteText and
//     ReadText round-trip exactly.
//   - Binary: the "PLC0" magic followed by a canonical CBOR envelope
//     (MarshalProgram / UnmarshalProgram).
//
// # Execution
//
// The VM owns a single operand stack of at most StackSize cells that also
// serves as slot storage: slot s is stack position s, and LOD/STO are only
// valid while the stack is taller than s. Arithmetic is computed in 64 bits
// and rejected when the result leaves the signed 32-bit range.
//
// Failures return a *RuntimeError carrying the failing instruction and a
// State snapshot; RenderState draws it as tables. ILL is the exception: it
// halts quietly and Execute returns nil.
package bytecode
