package bytecode

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/tliron/commonlog"
)

// StackSize is the fixed capacity of the operand stack.
const StackSize = 1 << 10

var log = commonlog.GetLogger("plc0.vm")

// State is a snapshot of the machine.
type State struct {
	IP    int     // address of the next instruction to fetch
	Stack []int32 // stack contents, bottom first; slot i is Stack[i]
}

// SP returns the stack height.
func (s State) SP() int {
	return len(s.Stack)
}

// VM executes programs. The operand stack doubles as slot storage:
// LOD/STO with slot s address stack position s.
//
// A VM is single-threaded. Execute fully resets it, so one instance may
// run several programs in sequence but never concurrently.
type VM struct {
	program *Program
	ip      int
	stack   []int32
	out     io.Writer
	halted  bool

	// Trace logs every executed instruction at debug level.
	Trace bool

	// OnStep, when set, is called after every successfully executed
	// instruction with a snapshot of the machine.
	OnStep func(State)
}

// NewVM creates a VM that writes WRT output to out (stdout if nil).
func NewVM(out io.Writer) *VM {
	if out == nil {
		out = os.Stdout
	}
	return &VM{
		stack: make([]int32, 0, StackSize),
		out:   out,
	}
}

// Execute runs p from address 0 until the end of the code is reached or
// an instruction fails. An illegal instruction halts execution without
// error; Halted reports it afterwards. Every other failure returns a
// *RuntimeError.
func (vm *VM) Execute(p *Program) error {
	vm.program = p
	vm.ip = 0
	vm.stack = vm.stack[:0]
	vm.halted = false

	for vm.ip < len(p.Code) {
		addr := vm.ip
		in := p.Code[addr]
		vm.ip++

		if vm.Trace {
			log.Debugf("[%04d] %-12s sp=%d", addr, in, len(vm.stack))
		}

		err := vm.step(in)
		if err == nil {
			if vm.OnStep != nil {
				vm.OnStep(vm.State())
			}
			continue
		}

		kind, ok := err.(RuntimeErrorKind)
		if !ok {
			return err
		}
		if kind == ErrIllegalInstruction {
			log.Debugf("halted on illegal instruction at %d", addr)
			vm.halted = true
			return nil
		}
		return &RuntimeError{
			Kind:   kind,
			Addr:   addr,
			Instr:  in,
			Detail: vm.describe(kind, in),
			State:  vm.State(),
		}
	}
	return nil
}

// step dispatches a single instruction.
func (vm *VM) step(in Instruction) error {
	switch in.Op {
	case OpLit:
		return vm.push(in.Operand)

	case OpLod:
		if !vm.validSlot(in.Operand) {
			return ErrAccessViolation
		}
		return vm.push(vm.stack[in.Operand])

	case OpSto:
		if len(vm.stack) == 0 || !vm.validSlot(in.Operand) {
			return ErrAccessViolation
		}
		top := vm.stack[len(vm.stack)-1]
		vm.stack[in.Operand] = top
		vm.stack = vm.stack[:len(vm.stack)-1]
		return nil

	case OpAdd, OpSub, OpMul, OpDiv:
		if len(vm.stack) < 2 {
			return ErrAccessViolation
		}
		b := int64(vm.stack[len(vm.stack)-1])
		a := int64(vm.stack[len(vm.stack)-2])
		r, err := arith(in.Op, a, b)
		if err != nil {
			return err
		}
		vm.stack = vm.stack[:len(vm.stack)-2]
		vm.stack = append(vm.stack, r)
		return nil

	case OpWrt:
		v, err := vm.pop()
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(vm.out, v); err != nil {
			return fmt.Errorf("vm: write output: %w", err)
		}
		return nil

	case OpIll:
		return ErrIllegalInstruction

	default:
		// Opcodes outside the set only arrive through malformed artifacts.
		return ErrIllegalInstruction
	}
}

// arith computes a op b in 64 bits and checks the 32-bit range.
func arith(op Opcode, a, b int64) (int32, error) {
	var r int64
	switch op {
	case OpAdd:
		r = a + b
	case OpSub:
		r = a - b
	case OpMul:
		r = a * b
	case OpDiv:
		if b == 0 {
			return 0, ErrDivisionByZero
		}
		r = a / b
	}
	if r > math.MaxInt32 || r < math.MinInt32 {
		return 0, ErrArithmeticOverflow
	}
	return int32(r), nil
}

func (vm *VM) push(v int32) error {
	if len(vm.stack) >= StackSize {
		return ErrStackOverflow
	}
	vm.stack = append(vm.stack, v)
	return nil
}

func (vm *VM) pop() (int32, error) {
	if len(vm.stack) == 0 {
		return 0, ErrAccessViolation
	}
	v := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return v, nil
}

func (vm *VM) validSlot(s int32) bool {
	return s >= 0 && int(s) < len(vm.stack)
}

func (vm *VM) describe(kind RuntimeErrorKind, in Instruction) string {
	switch kind {
	case ErrAccessViolation:
		if in.Op == OpLod || in.Op == OpSto {
			return fmt.Sprintf("slot %d with stack height %d", in.Operand, len(vm.stack))
		}
		return fmt.Sprintf("stack height %d", len(vm.stack))
	case ErrStackOverflow:
		return fmt.Sprintf("capacity %d exceeded", StackSize)
	case ErrArithmeticOverflow, ErrDivisionByZero:
		n := len(vm.stack)
		return fmt.Sprintf("operands %d, %d", vm.stack[n-2], vm.stack[n-1])
	}
	return ""
}

// State returns a snapshot of the machine.
func (vm *VM) State() State {
	stack := make([]int32, len(vm.stack))
	copy(stack, vm.stack)
	return State{IP: vm.ip, Stack: stack}
}

// Halted reports whether the last Execute stopped on an illegal instruction.
func (vm *VM) Halted() bool {
	return vm.halted
}

// Program returns the program most recently passed to Execute.
func (vm *VM) Program() *Program {
	return vm.program
}
