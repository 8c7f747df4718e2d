package compiler

import (
	"fmt"
	"strings"
)

// Diagnostic is one reported compile error.
type Diagnostic struct {
	Line    int
	Span    Span   // offending token
	Where   string // " at x", " at End", or "" for lexical errors
	Message string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("[line %d] Error%s: %s", d.Line, d.Where, d.Message)
}

// CompileError is returned when compilation fails. It holds every
// diagnostic that was reported, in source order.
type CompileError struct {
	Diagnostics []Diagnostic
}

func (e *CompileError) Error() string {
	lines := make([]string, len(e.Diagnostics))
	for i, d := range e.Diagnostics {
		lines[i] = d.String()
	}
	return strings.Join(lines, "\n")
}
