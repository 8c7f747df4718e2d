package driver

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/lox/cache"
	"github.com/chazu/lox/compiler"
	"github.com/chazu/lox/vm"
	"github.com/chazu/lox/vm/dist"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

type harness struct {
	out    bytes.Buffer
	errOut bytes.Buffer
	d      *Driver
}

func newHarness(opts ...Option) *harness {
	h := &harness{}
	h.d = New(append([]Option{WithOutput(&h.out), WithErrorOutput(&h.errOut)}, opts...)...)
	return h
}

func interpret(t *testing.T, source string) (vm.InterpretResult, string, string) {
	t.Helper()
	h := newHarness()
	result := h.d.Interpret(source)
	return result, h.out.String(), h.errOut.String()
}

// ---------------------------------------------------------------------------
// End-to-end programs
// ---------------------------------------------------------------------------

func TestInterpretPrograms(t *testing.T) {
	tests := []struct {
		source string
		want   string
	}{
		{"print 10 - 3;", "7\n"},
		{"print 10 / 2;", "5\n"},
		{"print 3 < 5;", "true\n"},
		{"print 5 > 3;", "true\n"},
		{`print "a" + "b";`, "ab\n"},
		{"print nil == nil;", "true\n"},
		{`print 1 == "1";`, "false\n"},
		{"print -1 + 2;", "1\n"},
		{"print (1 + 2) * 3;", "9\n"},
		{"print 2 * 3 + 4;", "10\n"},
		{"print 1 != 2;", "true\n"},
		{"print 2 >= 2;", "true\n"},
		{"print 3 <= 2;", "false\n"},
		{"print !nil;", "true\n"},
		{"print !!true;", "true\n"},
		{"print --4;", "4\n"},
		{"print 0.1 + 0.2;", "0.30000000000000004\n"},
		{"print 1 / 0;", "inf\n"},
		{`print "multi
line";`, "multi\nline\n"},
		{"var x = 1; print x; var x = 2; print x;", "1\n2\n"},
		{"var x; print x;", "nil\n"},
		{"var a = 3; var b = a * a; print b + a;", "12\n"},
		{"1 + 2; // discarded\nprint 1.;", "1\n"},
	}

	for _, tc := range tests {
		result, out, errOut := interpret(t, tc.source)
		if result != vm.ResultOK {
			t.Errorf("%q: result = %v, want Ok (stderr %q)", tc.source, result, errOut)
			continue
		}
		if out != tc.want {
			t.Errorf("%q: output = %q, want %q", tc.source, out, tc.want)
		}
		if errOut != "" {
			t.Errorf("%q: unexpected diagnostics %q", tc.source, errOut)
		}
	}
}

func TestInterpretUndefinedGlobal(t *testing.T) {
	result, out, errOut := interpret(t, "print y;")
	if result != vm.ResultRuntimeError {
		t.Fatalf("result = %v, want RuntimeError", result)
	}
	if out != "" {
		t.Errorf("output = %q, want nothing", out)
	}
	if errOut != "Undefined variable 'y'.\n[line 1] in script\n" {
		t.Errorf("stderr = %q", errOut)
	}
}

func TestInterpretRuntimeErrorStopsProgram(t *testing.T) {
	result, out, errOut := interpret(t, "print 1;\nprint -\"s\";\nprint 3;")
	if result != vm.ResultRuntimeError {
		t.Fatalf("result = %v, want RuntimeError", result)
	}
	if out != "1\n" {
		t.Errorf("output = %q, want only the first line", out)
	}
	if !strings.Contains(errOut, "Operand must be a number.\n[line 2] in script") {
		t.Errorf("stderr = %q", errOut)
	}
}

func TestInterpretCompileError(t *testing.T) {
	result, out, errOut := interpret(t, "print 1 +;")
	if result != vm.ResultCompileError {
		t.Fatalf("result = %v, want CompileError", result)
	}
	if out != "" {
		t.Errorf("output = %q, a failed compile must not run", out)
	}
	lines := strings.Split(strings.TrimRight(errOut, "\n"), "\n")
	if len(lines) != 1 {
		t.Errorf("got %d diagnostics, want 1: %q", len(lines), errOut)
	}
	if lines[0] != "[line 1] Error at ;: Expect expression." {
		t.Errorf("diagnostic = %q", lines[0])
	}
}

func TestInterpretStackSize(t *testing.T) {
	h := newHarness(WithStackSize(2))
	if result := h.d.Interpret("print 1 + (2 + 3);"); result != vm.ResultRuntimeError {
		t.Errorf("result = %v, want RuntimeError for a 3-deep expression on a 2-slot stack", result)
	}
	if !strings.Contains(h.errOut.String(), "Stack overflow.") {
		t.Errorf("stderr = %q", h.errOut.String())
	}
}

func TestInterpretTrace(t *testing.T) {
	var trace bytes.Buffer
	h := newHarness(WithTrace(&trace))
	if result := h.d.Interpret("print 1;"); result != vm.ResultOK {
		t.Fatalf("result = %v", result)
	}
	if h.out.String() != "1\n" {
		t.Errorf("output = %q", h.out.String())
	}
	if !strings.Contains(trace.String(), "KERNEL_CALL") {
		t.Errorf("trace = %q", trace.String())
	}
}

// ---------------------------------------------------------------------------
// Sessions
// ---------------------------------------------------------------------------

func TestSessionKeepsGlobals(t *testing.T) {
	h := newHarness()
	s := h.d.NewSession()

	steps := []struct {
		source string
		want   vm.InterpretResult
	}{
		{"var x = 1;", vm.ResultOK},
		{"print x;", vm.ResultOK},
		{"print x +;", vm.ResultCompileError},
		{"var y = x + 1; print z;", vm.ResultRuntimeError},
		{"print y;", vm.ResultOK},
	}
	for _, step := range steps {
		if got := s.Interpret(step.source); got != step.want {
			t.Errorf("%q: result = %v, want %v", step.source, got, step.want)
		}
	}

	if h.out.String() != "1\n2\n" {
		t.Errorf("output = %q, want 1 then 2", h.out.String())
	}
	if s.Count() != len(steps) {
		t.Errorf("Count = %d, want %d", s.Count(), len(steps))
	}
	if s.Globals().Len() != 2 {
		t.Errorf("globals = %v, want x and y", s.Globals().Names())
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	h := newHarness()
	a := h.d.NewSession()
	b := h.d.NewSession()

	if a.ID == b.ID {
		t.Error("sessions share an ID")
	}
	a.Interpret("var only = 1;")
	if result := b.Interpret("print only;"); result != vm.ResultRuntimeError {
		t.Errorf("result = %v, want RuntimeError in the other session", result)
	}
}

// ---------------------------------------------------------------------------
// Cache and bytecode images
// ---------------------------------------------------------------------------

func TestCompileUsesCache(t *testing.T) {
	c, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("cache.Open: %v", err)
	}
	defer c.Close()

	// Store a different program under the source's hash: a hit must run
	// the cached chunk instead of compiling.
	planted, err := compiler.Compile("print 2;")
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Put(dist.HashSource("print 1;"), planted); err != nil {
		t.Fatal(err)
	}

	h := newHarness(WithCache(c))
	if result := h.d.Interpret("print 1;"); result != vm.ResultOK {
		t.Fatalf("result = %v", result)
	}
	if h.out.String() != "2\n" {
		t.Errorf("output = %q, want the cached program's output", h.out.String())
	}
}

func TestCompileStoresInCache(t *testing.T) {
	c, err := cache.Open(cache.MemoryPath)
	if err != nil {
		t.Fatalf("cache.Open: %v", err)
	}
	defer c.Close()

	h := newHarness(WithCache(c))
	h.d.Interpret("print 5;")
	h.d.Interpret("print 5 +;")

	if n, _ := c.Len(); n != 1 {
		t.Errorf("cache holds %d chunks, want only the successful compile", n)
	}
	if _, err := c.Get(dist.HashSource("print 5;")); err != nil {
		t.Errorf("Get: %v", err)
	}
}

func TestBuildAndRunImage(t *testing.T) {
	h := newHarness()
	data, result, err := h.d.Build(`var s = "x"; print s + s;`)
	if err != nil || result != vm.ResultOK {
		t.Fatalf("Build = %v, %v", result, err)
	}

	result, err = h.d.RunImage(data)
	if err != nil {
		t.Fatalf("RunImage: %v", err)
	}
	if result != vm.ResultOK || h.out.String() != "xx\n" {
		t.Errorf("RunImage = %v, output %q", result, h.out.String())
	}
}

func TestBuildCompileError(t *testing.T) {
	h := newHarness()
	data, result, err := h.d.Build("var;")
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	if result != vm.ResultCompileError || data != nil {
		t.Errorf("Build = %v, %d bytes, want CompileError and no data", result, len(data))
	}
}

func TestRunImageRejectsGarbage(t *testing.T) {
	h := newHarness()
	if _, err := h.d.RunImage([]byte{0xff, 0x00}); err == nil {
		t.Error("RunImage accepted garbage")
	}
}
