// Package driver wires the compiler to the virtual machine. It is the
// boundary the command line and the REPL talk to: compile source, run a
// chunk, or do both, optionally going through the chunk cache and the
// bytecode file format.
package driver

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/chazu/lox/cache"
	"github.com/chazu/lox/compiler"
	"github.com/chazu/lox/vm"
	"github.com/chazu/lox/vm/dist"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("lox.driver")

// Driver compiles and runs programs with a fixed set of options.
type Driver struct {
	out       io.Writer
	errOut    io.Writer
	trace     io.Writer
	stackSize int
	cache     *cache.Cache
}

// Option configures a Driver.
type Option func(*Driver)

// WithOutput redirects program output.
func WithOutput(w io.Writer) Option {
	return func(d *Driver) { d.out = w }
}

// WithErrorOutput redirects compile and runtime diagnostics.
func WithErrorOutput(w io.Writer) Option {
	return func(d *Driver) { d.errOut = w }
}

// WithTrace turns on execution tracing to w.
func WithTrace(w io.Writer) Option {
	return func(d *Driver) { d.trace = w }
}

// WithStackSize sets the operand stack capacity of every VM.
func WithStackSize(n int) Option {
	return func(d *Driver) { d.stackSize = n }
}

// WithCache looks compiled chunks up in c before compiling and stores
// freshly compiled ones in it.
func WithCache(c *cache.Cache) Option {
	return func(d *Driver) { d.cache = c }
}

// New creates a driver.
func New(opts ...Option) *Driver {
	d := &Driver{
		out:       os.Stdout,
		errOut:    os.Stderr,
		stackSize: vm.DefaultStackSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Compile compiles source. Diagnostics are written to the error output and
// the chunk is nil when compilation fails.
func (d *Driver) Compile(source string) (*vm.Chunk, bool) {
	var hash dist.SourceHash
	if d.cache != nil {
		hash = dist.HashSource(source)
		chunk, err := d.cache.Get(hash)
		if err == nil {
			return chunk, true
		}
		if !errors.Is(err, cache.ErrMiss) {
			log.Warningf("cache lookup failed: %s", err)
		}
	}

	chunk, err := compiler.Compile(source)
	if err != nil {
		d.reportCompileError(err)
		return nil, false
	}

	if d.cache != nil {
		if err := d.cache.Put(hash, chunk); err != nil {
			log.Warningf("cache store failed: %s", err)
		}
	}
	return chunk, true
}

func (d *Driver) reportCompileError(err error) {
	var cerr *compiler.CompileError
	if !errors.As(err, &cerr) {
		fmt.Fprintln(d.errOut, err)
		return
	}
	for _, diag := range cerr.Diagnostics {
		fmt.Fprintln(d.errOut, diag)
	}
	log.Debugf("compilation failed with %d diagnostics", len(cerr.Diagnostics))
}

// Run executes chunk in a fresh VM with its own globals.
func (d *Driver) Run(chunk *vm.Chunk) vm.InterpretResult {
	return d.run(chunk, nil)
}

func (d *Driver) run(chunk *vm.Chunk, globals *vm.Globals) vm.InterpretResult {
	opts := []vm.Option{
		vm.WithOutput(d.out),
		vm.WithErrorOutput(d.errOut),
		vm.WithStackSize(d.stackSize),
		vm.WithGlobals(globals),
	}
	if d.trace != nil {
		opts = append(opts, vm.WithTrace(d.trace))
	}

	result := vm.New(chunk, opts...).Run()
	log.Debugf("run finished: %s", result)
	return result
}

// Interpret compiles and runs source. A program that fails to compile is
// never run.
func (d *Driver) Interpret(source string) vm.InterpretResult {
	chunk, ok := d.Compile(source)
	if !ok {
		return vm.ResultCompileError
	}
	return d.Run(chunk)
}

// Build compiles source into a bytecode image.
func (d *Driver) Build(source string) ([]byte, vm.InterpretResult, error) {
	chunk, ok := d.Compile(source)
	if !ok {
		return nil, vm.ResultCompileError, nil
	}
	data, err := dist.EncodeChunk(chunk, dist.HashSource(source))
	if err != nil {
		return nil, vm.ResultOK, fmt.Errorf("encoding chunk: %w", err)
	}
	return data, vm.ResultOK, nil
}

// RunImage decodes a bytecode image and runs it. The error reports an
// image that cannot be loaded; program failures are in the result.
func (d *Driver) RunImage(data []byte) (vm.InterpretResult, error) {
	chunk, hash, err := dist.DecodeChunk(data)
	if err != nil {
		return vm.ResultRuntimeError, fmt.Errorf("loading image: %w", err)
	}
	log.Debugf("loaded image for source %s", hash)
	return d.Run(chunk), nil
}
