package vm

import "fmt"

// InterpretResult is the outcome of compiling and running a program.
type InterpretResult int

const (
	ResultOK InterpretResult = iota
	ResultCompileError
	ResultRuntimeError
)

func (r InterpretResult) String() string {
	switch r {
	case ResultOK:
		return "Ok"
	case ResultCompileError:
		return "CompileError"
	case ResultRuntimeError:
		return "RuntimeError"
	default:
		return fmt.Sprintf("InterpretResult(%d)", int(r))
	}
}

// RuntimeError is a failure raised while executing a chunk. Line is the
// source line of the instruction that failed.
type RuntimeError struct {
	Message string
	Line    int
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("%s\n[line %d] in script", e.Message, e.Line)
}
