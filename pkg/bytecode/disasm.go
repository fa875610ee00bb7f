package bytecode

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Disassemble returns a human-readable listing of the program.
func (p *Program) Disassemble() string {
	return p.DisassembleWithName("")
}

// DisassembleWithName returns a listing with a name header.
func (p *Program) DisassembleWithName(name string) string {
	var sb strings.Builder

	if name != "" {
		sb.WriteString(fmt.Sprintf("; === %s ===\n", name))
	}
	sb.WriteString(fmt.Sprintf("; PL/0 Bytecode v%d\n", ProgramVersion))
	sb.WriteString(fmt.Sprintf("; Instructions: %d\n\n", len(p.Code)))

	for addr, in := range p.Code {
		info := GetOpcodeInfo(in.Op)
		line := in.String()
		if !in.Op.Valid() {
			line = info.Name
		}
		sb.WriteString(fmt.Sprintf("%04d  %-14s ; pop %d push %d\n", addr, line, info.StackPop, info.StackPush))
	}

	return sb.String()
}

// RenderState writes the stack and code segments of a machine snapshot,
// marking the stack pointer and instruction pointer.
func RenderState(w io.Writer, p *Program, s State) {
	stack := table.NewWriter()
	stack.SetOutputMirror(w)
	stack.SetStyle(table.StyleLight)
	stack.SetTitle("stack")
	stack.AppendHeader(table.Row{"#", "value", "hex", ""})
	for i, v := range s.Stack {
		stack.AppendRow(table.Row{i, v, fmt.Sprintf("%08x", uint32(v)), ""})
	}
	stack.AppendRow(table.Row{len(s.Stack), "", "", "<== sp"})
	stack.Render()

	if p == nil {
		return
	}

	code := table.NewWriter()
	code.SetOutputMirror(w)
	code.SetStyle(table.StyleLight)
	code.SetTitle("code")
	code.AppendHeader(table.Row{"#", "instruction", ""})
	for addr, in := range p.Code {
		code.AppendRow(table.Row{addr, in.String(), ipMarker(addr, s.IP)})
	}
	code.AppendRow(table.Row{len(p.Code), "", ipMarker(len(p.Code), s.IP)})
	code.Render()
}

func ipMarker(addr, ip int) string {
	if addr == ip {
		return "<== ip"
	}
	return ""
}
