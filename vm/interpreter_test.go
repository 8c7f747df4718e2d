package vm

import (
	"bytes"
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// chunkBuilder assembles chunks by hand, one line per instruction.
type chunkBuilder struct {
	c    *Chunk
	line int
}

func newChunkBuilder() *chunkBuilder {
	return &chunkBuilder{c: NewChunk(), line: 1}
}

func (b *chunkBuilder) at(line int) *chunkBuilder {
	b.line = line
	return b
}

func (b *chunkBuilder) constant(v Value) *chunkBuilder {
	b.c.Write(Instruction{Op: OpConstant, Operand: b.c.AddConstant(v)}, b.line)
	return b
}

func (b *chunkBuilder) op(op Opcode) *chunkBuilder {
	b.c.Write(Simple(op), b.line)
	return b
}

func (b *chunkBuilder) global(op Opcode, name string) *chunkBuilder {
	b.c.Write(Instruction{Op: op, Operand: b.c.AddConstant(StringValue(name))}, b.line)
	return b
}

func (b *chunkBuilder) print() *chunkBuilder {
	b.c.Write(Instruction{Op: OpKernelCall, Operand: int(KernelPrint)}, b.line)
	return b
}

func (b *chunkBuilder) build() *Chunk {
	return b.c
}

// run executes chunk and returns result, stdout and stderr.
func run(t *testing.T, chunk *Chunk, opts ...Option) (InterpretResult, string, string, *VM) {
	t.Helper()
	var out, errOut bytes.Buffer
	opts = append([]Option{WithOutput(&out), WithErrorOutput(&errOut)}, opts...)
	vm := New(chunk, opts...)
	result := vm.Run()
	return result, out.String(), errOut.String(), vm
}

// ---------------------------------------------------------------------------
// Arithmetic and operand order
// ---------------------------------------------------------------------------

func TestBinaryOperandOrder(t *testing.T) {
	tests := []struct {
		name  string
		left  Value
		right Value
		op    Opcode
		want  string
	}{
		{"subtract", NumberValue(10), NumberValue(3), OpSubtract, "7"},
		{"divide", NumberValue(10), NumberValue(2), OpDivide, "5"},
		{"add", NumberValue(1), NumberValue(2.5), OpAdd, "3.5"},
		{"multiply", NumberValue(4), NumberValue(2.5), OpMultiply, "10"},
		{"less", NumberValue(3), NumberValue(5), OpLess, "true"},
		{"greater", NumberValue(3), NumberValue(5), OpGreater, "false"},
		{"concat", StringValue("a"), StringValue("b"), OpAdd, "ab"},
		{"divide by zero", NumberValue(1), NumberValue(0), OpDivide, "inf"},
	}

	for _, tc := range tests {
		chunk := newChunkBuilder().constant(tc.left).constant(tc.right).op(tc.op).print().op(OpReturn).build()
		result, out, errOut, _ := run(t, chunk)
		if result != ResultOK {
			t.Errorf("%s: result = %v, want Ok (stderr %q)", tc.name, result, errOut)
			continue
		}
		if out != tc.want+"\n" {
			t.Errorf("%s: output = %q, want %q", tc.name, out, tc.want+"\n")
		}
	}
}

func TestUnaryOperators(t *testing.T) {
	tests := []struct {
		name    string
		operand Value
		op      Opcode
		want    string
	}{
		{"negate", NumberValue(4), OpNegate, "-4"},
		{"not true", BoolValue(true), OpNot, "false"},
		{"not false", BoolValue(false), OpNot, "true"},
		{"not nil", Nil, OpNot, "true"},
	}

	for _, tc := range tests {
		chunk := newChunkBuilder().constant(tc.operand).op(tc.op).print().op(OpReturn).build()
		result, out, _, _ := run(t, chunk)
		if result != ResultOK || out != tc.want+"\n" {
			t.Errorf("%s: result = %v, output = %q, want Ok and %q", tc.name, result, out, tc.want)
		}
	}
}

func TestEqualityNeverFails(t *testing.T) {
	tests := []struct {
		left, right Value
		want        string
	}{
		{Nil, Nil, "true"},
		{NumberValue(1), StringValue("1"), "false"},
		{StringValue("x"), StringValue("x"), "true"},
		{BoolValue(false), Nil, "false"},
	}

	for _, tc := range tests {
		chunk := newChunkBuilder().constant(tc.left).constant(tc.right).op(OpEqual).print().op(OpReturn).build()
		result, out, _, _ := run(t, chunk)
		if result != ResultOK || out != tc.want+"\n" {
			t.Errorf("%v == %v: result = %v, output = %q, want %q", tc.left, tc.right, result, out, tc.want)
		}
	}
}

// ---------------------------------------------------------------------------
// Runtime errors
// ---------------------------------------------------------------------------

func TestRuntimeTypeErrorsHalt(t *testing.T) {
	tests := []struct {
		name  string
		chunk *Chunk
		msg   string
	}{
		{
			"negate string",
			newChunkBuilder().constant(StringValue("x")).op(OpNegate).print().op(OpReturn).build(),
			"Operand must be a number.",
		},
		{
			"not number",
			newChunkBuilder().constant(NumberValue(1)).op(OpNot).print().op(OpReturn).build(),
			"Operand must be a boolean or nil.",
		},
		{
			"add mixed",
			newChunkBuilder().constant(NumberValue(1)).constant(StringValue("a")).op(OpAdd).print().op(OpReturn).build(),
			"Operands must be two numbers or two strings.",
		},
		{
			"subtract bools",
			newChunkBuilder().constant(BoolValue(true)).constant(NumberValue(1)).op(OpSubtract).print().op(OpReturn).build(),
			"Operands must be numbers.",
		},
		{
			"less nil",
			newChunkBuilder().constant(Nil).constant(Nil).op(OpLess).print().op(OpReturn).build(),
			"Operands must be numbers.",
		},
	}

	for _, tc := range tests {
		result, out, errOut, vm := run(t, tc.chunk)
		if result != ResultRuntimeError {
			t.Errorf("%s: result = %v, want RuntimeError", tc.name, result)
			continue
		}
		if out != "" {
			t.Errorf("%s: output = %q, want nothing printed after the error", tc.name, out)
		}
		if vm.Err() == nil || vm.Err().Message != tc.msg {
			t.Errorf("%s: Err() = %v, want message %q", tc.name, vm.Err(), tc.msg)
		}
		if errOut != tc.msg+"\n[line 1] in script\n" {
			t.Errorf("%s: stderr = %q", tc.name, errOut)
		}
	}
}

func TestRuntimeErrorReportsLine(t *testing.T) {
	chunk := newChunkBuilder().
		constant(NumberValue(1)).print().
		at(3).constant(StringValue("s")).op(OpNegate).
		op(OpReturn).build()

	result, out, errOut, vm := run(t, chunk)
	if result != ResultRuntimeError {
		t.Fatalf("result = %v, want RuntimeError", result)
	}
	if out != "1\n" {
		t.Errorf("output = %q, want output from before the error only", out)
	}
	if vm.Err().Line != 3 {
		t.Errorf("Err().Line = %d, want 3", vm.Err().Line)
	}
	if !strings.HasSuffix(errOut, "[line 3] in script\n") {
		t.Errorf("stderr = %q", errOut)
	}
}

func TestUndefinedGlobal(t *testing.T) {
	chunk := newChunkBuilder().global(OpGetGlobal, "y").print().op(OpReturn).build()

	result, out, _, vm := run(t, chunk)
	if result != ResultRuntimeError {
		t.Fatalf("result = %v, want RuntimeError", result)
	}
	if out != "" {
		t.Errorf("output = %q, want empty", out)
	}
	if vm.Err().Message != "Undefined variable 'y'." {
		t.Errorf("Err().Message = %q", vm.Err().Message)
	}
}

func TestStackOverflow(t *testing.T) {
	chunk := newChunkBuilder().
		constant(NumberValue(1)).constant(NumberValue(2)).constant(NumberValue(3)).
		op(OpReturn).build()

	result, _, _, vm := run(t, chunk, WithStackSize(2))
	if result != ResultRuntimeError {
		t.Fatalf("result = %v, want RuntimeError", result)
	}
	if vm.Err().Message != "Stack overflow." {
		t.Errorf("Err().Message = %q, want Stack overflow.", vm.Err().Message)
	}
}

func TestStackUnderflow(t *testing.T) {
	tests := []struct {
		name  string
		chunk *Chunk
	}{
		{"pop", newChunkBuilder().op(OpPop).op(OpReturn).build()},
		{"add", newChunkBuilder().constant(NumberValue(1)).op(OpAdd).op(OpReturn).build()},
		{"print", newChunkBuilder().print().op(OpReturn).build()},
		{"define", newChunkBuilder().global(OpDefineGlobal, "x").op(OpReturn).build()},
	}

	for _, tc := range tests {
		result, _, _, vm := run(t, tc.chunk)
		if result != ResultRuntimeError || vm.Err().Message != "Stack underflow." {
			t.Errorf("%s: result = %v, err = %v, want Stack underflow.", tc.name, result, vm.Err())
		}
	}
}

func TestUnknownOpcodeHalts(t *testing.T) {
	chunk := newChunkBuilder().op(Opcode(99)).op(OpReturn).build()
	result, _, _, vm := run(t, chunk)
	if result != ResultRuntimeError {
		t.Fatalf("result = %v, want RuntimeError", result)
	}
	if !strings.Contains(vm.Err().Message, "Unknown opcode") {
		t.Errorf("Err().Message = %q", vm.Err().Message)
	}
}

func TestUnknownKernelMethod(t *testing.T) {
	for _, operand := range []int{42, 256, -256, 512} {
		c := NewChunk()
		c.Write(Instruction{Op: OpConstant, Operand: c.AddConstant(StringValue("leak"))}, 1)
		c.Write(Instruction{Op: OpKernelCall, Operand: operand}, 1)
		c.Write(Simple(OpReturn), 1)
		result, out, _, vm := run(t, c)
		if result != ResultRuntimeError || !strings.Contains(vm.Err().Message, "kernel method") {
			t.Errorf("operand %d: result = %v, err = %v", operand, result, vm.Err())
		}
		if out != "" {
			t.Errorf("operand %d: printed %q", operand, out)
		}
	}
}

func TestRunPastEnd(t *testing.T) {
	chunk := newChunkBuilder().constant(NumberValue(1)).op(OpPop).build()
	result, _, _, _ := run(t, chunk)
	if result != ResultRuntimeError {
		t.Errorf("result = %v, want RuntimeError", result)
	}
}

// ---------------------------------------------------------------------------
// Globals
// ---------------------------------------------------------------------------

func TestDefineAndReadGlobal(t *testing.T) {
	chunk := newChunkBuilder().
		constant(NumberValue(1)).global(OpDefineGlobal, "x").
		global(OpGetGlobal, "x").print().
		constant(NumberValue(2)).global(OpDefineGlobal, "x").
		global(OpGetGlobal, "x").print().
		op(OpReturn).build()

	result, out, _, vm := run(t, chunk)
	if result != ResultOK {
		t.Fatalf("result = %v, want Ok", result)
	}
	if out != "1\n2\n" {
		t.Errorf("output = %q, want 1 then 2", out)
	}
	if v, ok := vm.Globals().Get("x"); !ok || !v.Equal(NumberValue(2)) {
		t.Errorf("global x = %v, %v, want 2", v, ok)
	}
	if vm.StackDepth() != 0 {
		t.Errorf("StackDepth = %d, want 0", vm.StackDepth())
	}
}

func TestSharedGlobalsOutliveRun(t *testing.T) {
	globals := NewGlobals()

	first := newChunkBuilder().constant(StringValue("kept")).global(OpDefineGlobal, "g").op(OpReturn).build()
	if result, _, _, _ := run(t, first, WithGlobals(globals)); result != ResultOK {
		t.Fatalf("first run result = %v", result)
	}

	second := newChunkBuilder().global(OpGetGlobal, "g").print().op(OpReturn).build()
	result, out, _, _ := run(t, second, WithGlobals(globals))
	if result != ResultOK || out != "kept\n" {
		t.Errorf("second run result = %v, output = %q", result, out)
	}
}

// ---------------------------------------------------------------------------
// Tracing
// ---------------------------------------------------------------------------

func TestTraceOutput(t *testing.T) {
	chunk := newChunkBuilder().
		constant(NumberValue(1)).global(OpDefineGlobal, "a").
		at(2).global(OpGetGlobal, "a").print().
		op(OpReturn).build()

	var trace bytes.Buffer
	result, out, _, _ := run(t, chunk, WithTrace(&trace))
	if result != ResultOK {
		t.Fatalf("result = %v", result)
	}
	if out != "1\n" {
		t.Errorf("output = %q, trace must not leak into program output", out)
	}

	got := trace.String()
	wants := []string{
		" STACK: \n GLOBALS: \n0001 CONSTANT",
		" STACK: [ 1 ] \n GLOBALS: \n   | DEFINE_GLOBAL",
		" GLOBALS: a => 1; \n0002 GET_GLOBAL",
		"   | KERNEL_CALL",
		"   | RETURN",
	}
	for _, want := range wants {
		if !strings.Contains(got, want) {
			t.Errorf("trace missing %q:\n%s", want, got)
		}
	}
}
