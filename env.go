package runix

import (
	"errors"
	"sort"
)

var (
	errUnbound  = errors.New("undefined variable")
	errConstant = errors.New("assignment to constant")
)

// Env is a lexical scope with a parent link. Lookups walk parent-ward.
// Use Define to bind in the current frame, Set to update an existing visible
// binding (nearest frame), and Get to retrieve.
type Env struct {
	parent *Env
	table  map[string]Value
	consts map[string]bool
}

// NewEnv creates a new scope with the given parent (which may be nil).
func NewEnv(parent *Env) *Env { return &Env{parent: parent, table: make(map[string]Value)} }

// Parent returns the enclosing scope, or nil for a root scope.
func (e *Env) Parent() *Env { return e.parent }

// Define binds name to v in the current frame, shadowing any outer binding
// and replacing a binding of the same frame.
func (e *Env) Define(name string, v Value) {
	e.table[name] = v
	if e.consts != nil {
		delete(e.consts, name)
	}
}

// DefineConst is Define for a binding that Set refuses to change.
func (e *Env) DefineConst(name string, v Value) {
	e.table[name] = v
	if e.consts == nil {
		e.consts = make(map[string]bool)
	}
	e.consts[name] = true
}

// Set updates the nearest existing binding of name. It never defines: an
// unbound name or a constant binding is an error.
func (e *Env) Set(name string, v Value) error {
	for s := e; s != nil; s = s.parent {
		if _, ok := s.table[name]; ok {
			if s.consts[name] {
				return errConstant
			}
			s.table[name] = v
			return nil
		}
	}
	return errUnbound
}

// Get retrieves the nearest visible binding for name.
func (e *Env) Get(name string) (Value, bool) {
	for s := e; s != nil; s = s.parent {
		if v, ok := s.table[name]; ok {
			return v, true
		}
	}
	return Value{}, false
}

// Names lists the names bound in this frame only, sorted.
func (e *Env) Names() []string {
	out := make([]string, 0, len(e.table))
	for k := range e.table {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
