package bytecode

import "fmt"

// RuntimeErrorKind classifies execution failures. Kinds are themselves
// errors, so errors.Is(err, ErrDivisionByZero) matches any *RuntimeError
// of that kind.
type RuntimeErrorKind int

const (
	ErrIllegalInstruction RuntimeErrorKind = iota + 1
	ErrAccessViolation
	ErrStackOverflow
	ErrDivisionByZero
	ErrArithmeticOverflow
)

var runtimeErrorNames = map[RuntimeErrorKind]string{
	ErrIllegalInstruction: "illegal instruction",
	ErrAccessViolation:    "access violation",
	ErrStackOverflow:      "stack overflow",
	ErrDivisionByZero:     "division by zero",
	ErrArithmeticOverflow: "arithmetic overflow",
}

func (k RuntimeErrorKind) String() string {
	if name, ok := runtimeErrorNames[k]; ok {
		return name
	}
	return fmt.Sprintf("RuntimeErrorKind(%d)", int(k))
}

func (k RuntimeErrorKind) Error() string {
	return "vm: " + k.String()
}

// RuntimeError is returned by the VM when execution fails. It carries the
// failing instruction and a snapshot of the machine taken at the moment
// of failure.
type RuntimeError struct {
	Kind   RuntimeErrorKind
	Addr   int         // address of the failing instruction
	Instr  Instruction // the failing instruction
	Detail string
	State  State
}

func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("vm: %s at %d (%s)", e.Kind, e.Addr, e.Instr)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Unwrap exposes the kind for errors.Is.
func (e *RuntimeError) Unwrap() error {
	return e.Kind
}
