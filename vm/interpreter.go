package vm

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// DefaultStackSize is the operand stack capacity used unless overridden.
const DefaultStackSize = 128

// errReturn is how the return handler stops the dispatch loop.
var errReturn = errors.New("return")

// VM executes a single chunk. It owns the operand stack and the program
// counter; the globals table is owned by the VM unless one is shared in
// with WithGlobals.
type VM struct {
	chunk   *Chunk
	pc      int
	stack   []Value
	sp      int
	globals *Globals

	out    io.Writer // program output (print)
	errOut io.Writer // runtime diagnostics
	trace  io.Writer // nil when tracing is off

	err *RuntimeError
}

// Option configures a VM.
type Option func(*VM)

// WithStackSize sets the operand stack capacity.
func WithStackSize(n int) Option {
	return func(vm *VM) {
		if n > 0 {
			vm.stack = make([]Value, n)
		}
	}
}

// WithOutput redirects program output.
func WithOutput(w io.Writer) Option {
	return func(vm *VM) { vm.out = w }
}

// WithErrorOutput redirects runtime error reports.
func WithErrorOutput(w io.Writer) Option {
	return func(vm *VM) { vm.errOut = w }
}

// WithTrace enables execution tracing to w. A nil writer disables it.
func WithTrace(w io.Writer) Option {
	return func(vm *VM) { vm.trace = w }
}

// WithGlobals makes the VM read and write an existing globals table, so
// bindings outlive a single run.
func WithGlobals(g *Globals) Option {
	return func(vm *VM) {
		if g != nil {
			vm.globals = g
		}
	}
}

// New creates a VM ready to run chunk.
func New(chunk *Chunk, opts ...Option) *VM {
	vm := &VM{
		chunk:   chunk,
		stack:   make([]Value, DefaultStackSize),
		globals: NewGlobals(),
		out:     os.Stdout,
		errOut:  os.Stderr,
	}
	for _, opt := range opts {
		opt(vm)
	}
	return vm
}

// Chunk returns the chunk being executed.
func (vm *VM) Chunk() *Chunk { return vm.chunk }

// Globals returns the global-variable table.
func (vm *VM) Globals() *Globals { return vm.globals }

// Err returns the error that stopped the last Run, or nil.
func (vm *VM) Err() *RuntimeError { return vm.err }

// StackDepth returns the number of live values on the operand stack.
func (vm *VM) StackDepth() int { return vm.sp }

// ---------------------------------------------------------------------------
// Dispatch loop
// ---------------------------------------------------------------------------

type instructionHandler func(vm *VM, inst Instruction) error

// instructionTable is indexed by Opcode.
var instructionTable = [opcodeCount]instructionHandler{
	OpReturn:       execReturn,
	OpConstant:     execConstant,
	OpNegate:       execNegate,
	OpNot:          execNot,
	OpAdd:          execAdd,
	OpSubtract:     binaryNumeric(func(a, b float64) Value { return NumberValue(a - b) }),
	OpMultiply:     binaryNumeric(func(a, b float64) Value { return NumberValue(a * b) }),
	OpDivide:       binaryNumeric(func(a, b float64) Value { return NumberValue(a / b) }),
	OpEqual:        execEqual,
	OpGreater:      binaryNumeric(func(a, b float64) Value { return BoolValue(a > b) }),
	OpLess:         binaryNumeric(func(a, b float64) Value { return BoolValue(a < b) }),
	OpKernelCall:   execKernelCall,
	OpPop:          execPop,
	OpDefineGlobal: execDefineGlobal,
	OpGetGlobal:    execGetGlobal,
}

// Run executes the chunk from its first instruction until a return or the
// first runtime error. Any runtime error halts execution; it is reported to
// the error writer and kept for Err.
func (vm *VM) Run() InterpretResult {
	vm.pc = 0
	vm.err = nil

	for {
		if vm.pc >= len(vm.chunk.Code) {
			return vm.fail(vm.errorAt(len(vm.chunk.Code)-1, "Execution ran past the end of the chunk."))
		}

		if vm.trace != nil {
			vm.traceInstruction()
		}

		inst := vm.chunk.Code[vm.pc]
		if !inst.Op.Valid() {
			return vm.fail(vm.runtimeError("Unknown opcode %d.", inst.Op))
		}

		if err := instructionTable[inst.Op](vm, inst); err != nil {
			if errors.Is(err, errReturn) {
				return ResultOK
			}
			return vm.fail(err)
		}
		vm.pc++
	}
}

// fail records err, reports it and yields ResultRuntimeError.
func (vm *VM) fail(err error) InterpretResult {
	var rerr *RuntimeError
	if !errors.As(err, &rerr) {
		rerr = vm.runtimeError("%s", err.Error())
	}
	vm.err = rerr
	fmt.Fprintln(vm.errOut, rerr.Error())
	return ResultRuntimeError
}

func (vm *VM) runtimeError(format string, args ...any) *RuntimeError {
	return vm.errorAt(vm.pc, format, args...)
}

func (vm *VM) errorAt(offset int, format string, args ...any) *RuntimeError {
	return &RuntimeError{
		Message: fmt.Sprintf(format, args...),
		Line:    vm.chunk.Line(offset),
	}
}

// ---------------------------------------------------------------------------
// Instruction handlers
// ---------------------------------------------------------------------------

func execReturn(vm *VM, _ Instruction) error {
	return errReturn
}

func execPop(vm *VM, _ Instruction) error {
	_, err := vm.pop()
	return err
}

func execConstant(vm *VM, inst Instruction) error {
	v, ok := vm.chunk.Constant(inst.Operand)
	if !ok {
		return vm.runtimeError("Constant index %d out of range.", inst.Operand)
	}
	return vm.push(v)
}

func execNegate(vm *VM, _ Instruction) error {
	v, err := vm.peek(0)
	if err != nil {
		return err
	}
	if !v.IsNumber() {
		return vm.runtimeError("Operand must be a number.")
	}
	return vm.replaceTop(1, NumberValue(-v.AsNumber()))
}

func execNot(vm *VM, _ Instruction) error {
	v, err := vm.peek(0)
	if err != nil {
		return err
	}
	if !v.IsBool() && !v.IsNil() {
		return vm.runtimeError("Operand must be a boolean or nil.")
	}
	return vm.replaceTop(1, BoolValue(v.IsFalsey()))
}

func execAdd(vm *VM, _ Instruction) error {
	left, right, err := vm.peekPair()
	if err != nil {
		return err
	}
	switch {
	case left.IsNumber() && right.IsNumber():
		return vm.replaceTop(2, NumberValue(left.AsNumber()+right.AsNumber()))
	case left.IsString() && right.IsString():
		l := left.AsObject().(*String)
		r := right.AsObject().(*String)
		return vm.replaceTop(2, ObjectValue(l.Concat(r)))
	default:
		return vm.runtimeError("Operands must be two numbers or two strings.")
	}
}

// binaryNumeric builds a handler for an operator defined on two numbers.
// fn receives the operands in source order.
func binaryNumeric(fn func(left, right float64) Value) instructionHandler {
	return func(vm *VM, _ Instruction) error {
		left, right, err := vm.peekPair()
		if err != nil {
			return err
		}
		if !left.IsNumber() || !right.IsNumber() {
			return vm.runtimeError("Operands must be numbers.")
		}
		return vm.replaceTop(2, fn(left.AsNumber(), right.AsNumber()))
	}
}

func execEqual(vm *VM, _ Instruction) error {
	left, right, err := vm.peekPair()
	if err != nil {
		return err
	}
	return vm.replaceTop(2, BoolValue(left.Equal(right)))
}

func execKernelCall(vm *VM, inst Instruction) error {
	k, ok := kernelMethodFor(inst.Operand)
	if !ok {
		return vm.runtimeError("Unknown kernel method %d.", inst.Operand)
	}
	return kernelMethods[k](vm)
}

func execDefineGlobal(vm *VM, inst Instruction) error {
	name, err := vm.readName(inst.Operand)
	if err != nil {
		return err
	}
	v, err := vm.pop()
	if err != nil {
		return err
	}
	vm.globals.Define(name, v)
	return nil
}

func execGetGlobal(vm *VM, inst Instruction) error {
	name, err := vm.readName(inst.Operand)
	if err != nil {
		return err
	}
	v, ok := vm.globals.Get(name)
	if !ok {
		return vm.runtimeError("Undefined variable '%s'.", name)
	}
	return vm.push(v)
}

// readName fetches a global's name from the constant pool.
func (vm *VM) readName(idx int) (string, error) {
	v, ok := vm.chunk.Constant(idx)
	if !ok {
		return "", vm.runtimeError("Constant index %d out of range.", idx)
	}
	name, ok := v.AsString()
	if !ok {
		return "", vm.runtimeError("Variable name must be a string, got %s.", v.TypeName())
	}
	return name, nil
}

// ---------------------------------------------------------------------------
// Tracing
// ---------------------------------------------------------------------------

// traceInstruction writes the stack, the globals and the instruction about
// to execute.
func (vm *VM) traceInstruction() {
	var sb strings.Builder

	sb.WriteString(" STACK: ")
	for i := 0; i < vm.sp; i++ {
		fmt.Fprintf(&sb, "[ %s ] ", FormatValue(vm.stack[i]))
	}
	sb.WriteString("\n GLOBALS: ")
	for _, name := range vm.globals.Names() {
		v, _ := vm.globals.Get(name)
		fmt.Fprintf(&sb, "%s => %s; ", name, FormatValue(v))
	}
	sb.WriteString("\n")

	inst := vm.chunk.Code[vm.pc]
	fmt.Fprintf(&sb, "%s%s\n", vm.chunk.linePrefix(vm.pc), DisassembleInstruction(inst, vm.chunk))

	io.WriteString(vm.trace, sb.String())
}
