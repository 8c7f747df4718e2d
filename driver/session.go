package driver

import (
	"github.com/chazu/lox/vm"
	"github.com/google/uuid"
)

// Session runs a sequence of programs that share one globals table, the
// way a REPL evaluates one line after another.
type Session struct {
	ID      uuid.UUID
	driver  *Driver
	globals *vm.Globals
	count   int
}

// NewSession starts a session with empty globals.
func (d *Driver) NewSession() *Session {
	s := &Session{
		ID:      uuid.New(),
		driver:  d,
		globals: vm.NewGlobals(),
	}
	log.Debugf("session %s started", s.ID)
	return s
}

// Interpret compiles and runs source against the session's globals.
// Bindings made before a runtime error are kept.
func (s *Session) Interpret(source string) vm.InterpretResult {
	s.count++
	chunk, ok := s.driver.Compile(source)
	if !ok {
		return vm.ResultCompileError
	}
	return s.driver.run(chunk, s.globals)
}

// Globals returns the session's globals table.
func (s *Session) Globals() *vm.Globals {
	return s.globals
}

// Count returns how many inputs the session has evaluated.
func (s *Session) Count() int {
	return s.count
}
