package compiler

// ---------------------------------------------------------------------------
// Symbol table: declared names, their class and storage slot
// ---------------------------------------------------------------------------

// SymbolClass classifies a declared name.
type SymbolClass int

const (
	ClassUninitialized SymbolClass = iota // variable declared without a value
	ClassInitialized                      // variable holding a value
	ClassConstant
)

func (c SymbolClass) String() string {
	switch c {
	case ClassUninitialized:
		return "uninitialized variable"
	case ClassInitialized:
		return "variable"
	case ClassConstant:
		return "constant"
	}
	return "unknown"
}

// Symbol is a declared name and its storage slot.
type Symbol struct {
	Name  string
	Class SymbolClass
	Slot  int32
}

// SymbolTable tracks the names of a single compilation. Slots are handed
// out sequentially from 0 across all classes in declaration order.
type SymbolTable struct {
	uninitialized map[string]int32
	initialized   map[string]int32
	constants     map[string]int32
	order         []string
}

// NewSymbolTable creates an empty table.
func NewSymbolTable() *SymbolTable {
	st := &SymbolTable{}
	st.Reset()
	return st
}

// Reset clears every symbol and restarts slot numbering at 0.
func (st *SymbolTable) Reset() {
	st.uninitialized = make(map[string]int32)
	st.initialized = make(map[string]int32)
	st.constants = make(map[string]int32)
	st.order = st.order[:0]
}

// Declare records name in the class selected by initialized and isConst
// and returns its slot. It fails with ErrRedeclaration if the name exists
// in any class.
func (st *SymbolTable) Declare(name string, initialized, isConst bool) (int32, error) {
	if _, ok := st.Resolve(name); ok {
		return 0, ErrRedeclaration
	}
	slot := int32(len(st.order))
	switch {
	case isConst:
		st.constants[name] = slot
	case initialized:
		st.initialized[name] = slot
	default:
		st.uninitialized[name] = slot
	}
	st.order = append(st.order, name)
	return slot, nil
}

// Resolve returns the slot of name in any class.
func (st *SymbolTable) Resolve(name string) (int32, bool) {
	if slot, ok := st.constants[name]; ok {
		return slot, true
	}
	if slot, ok := st.initialized[name]; ok {
		return slot, true
	}
	slot, ok := st.uninitialized[name]
	return slot, ok
}

// MarkInitialized promotes an uninitialized variable. It is a no-op for
// initialized variables, constants and unknown names.
func (st *SymbolTable) MarkInitialized(name string) {
	slot, ok := st.uninitialized[name]
	if !ok {
		return
	}
	delete(st.uninitialized, name)
	st.initialized[name] = slot
}

// IsConstant reports whether name is a declared constant.
func (st *SymbolTable) IsConstant(name string) bool {
	_, ok := st.constants[name]
	return ok
}

// IsUninitialized reports whether name is a variable not yet assigned.
func (st *SymbolTable) IsUninitialized(name string) bool {
	_, ok := st.uninitialized[name]
	return ok
}

// Lookup returns the full symbol for name.
func (st *SymbolTable) Lookup(name string) (Symbol, bool) {
	if slot, ok := st.constants[name]; ok {
		return Symbol{Name: name, Class: ClassConstant, Slot: slot}, true
	}
	if slot, ok := st.initialized[name]; ok {
		return Symbol{Name: name, Class: ClassInitialized, Slot: slot}, true
	}
	if slot, ok := st.uninitialized[name]; ok {
		return Symbol{Name: name, Class: ClassUninitialized, Slot: slot}, true
	}
	return Symbol{}, false
}

// Len returns the number of declared symbols.
func (st *SymbolTable) Len() int {
	return len(st.order)
}

// Symbols returns every symbol in slot order.
func (st *SymbolTable) Symbols() []Symbol {
	syms := make([]Symbol, 0, len(st.order))
	for _, name := range st.order {
		sym, _ := st.Lookup(name)
		syms = append(syms, sym)
	}
	return syms
}
