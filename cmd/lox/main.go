// lox CLI - compiles and runs lox programs
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chazu/lox/cache"
	"github.com/chazu/lox/compiler"
	"github.com/chazu/lox/driver"
	"github.com/chazu/lox/lsp"
	"github.com/chazu/lox/manifest"
	"github.com/chazu/lox/vm"
	"github.com/tliron/commonlog"

	_ "github.com/tliron/commonlog/simple"
)

// Exit codes follow sysexits.h.
const (
	exitOK           = 0
	exitUsage        = 64
	exitCompileError = 65
	exitIOError      = 74
	exitRuntimeError = 70
)

// Version is reported by -version and the language server.
const Version = "0.1.0"

// BytecodeExt marks files holding a compiled bytecode image.
const BytecodeExt = ".loxc"

var log = commonlog.GetLogger("lox.cli")

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

type options struct {
	verbose     bool
	interactive bool
	trace       bool
	disasm      bool
	noCache     bool
	lsp         bool
	version     bool
	stackSize   int
	output      string
}

func parseFlags(args []string, stderr io.Writer) (*options, []string, error) {
	fs := flag.NewFlagSet("lox", flag.ContinueOnError)
	fs.SetOutput(stderr)

	opts := &options{}
	fs.BoolVar(&opts.verbose, "v", false, "Verbose logging")
	fs.BoolVar(&opts.interactive, "i", false, "Start interactive REPL even if an entry script is configured")
	fs.BoolVar(&opts.trace, "trace", false, "Trace execution to stderr")
	fs.BoolVar(&opts.disasm, "disasm", false, "Print the compiled chunk instead of running it")
	fs.BoolVar(&opts.noCache, "no-cache", false, "Do not read or write the chunk cache")
	fs.BoolVar(&opts.lsp, "lsp", false, "Run the language server on stdio")
	fs.BoolVar(&opts.version, "version", false, "Print version and exit")
	fs.IntVar(&opts.stackSize, "stack", 0, "Operand stack capacity (default from lox.toml, else 128)")
	fs.StringVar(&opts.output, "o", "", "Write compiled bytecode to this file instead of running")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: lox [options] [script.lox | program%s]\n\n", BytecodeExt)
		fmt.Fprintf(stderr, "Runs a script, a compiled bytecode file, or an interactive REPL.\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  lox                          # Start REPL (:q to quit)\n")
		fmt.Fprintf(stderr, "  lox hello.lox                # Compile and run a script\n")
		fmt.Fprintf(stderr, "  lox -o hello%s hello.lox   # Compile to bytecode\n", BytecodeExt)
		fmt.Fprintf(stderr, "  lox hello%s                 # Run bytecode\n", BytecodeExt)
		fmt.Fprintf(stderr, "  lox -disasm hello.lox        # Show the compiled instructions\n")
		fmt.Fprintf(stderr, "  lox -lsp                     # Serve editors over LSP\n")
	}

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	return opts, fs.Args(), nil
}

// run is main without the process exit, so it can be driven from tests.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	opts, paths, err := parseFlags(args, stderr)
	if err != nil {
		if err == flag.ErrHelp {
			return exitOK
		}
		return exitUsage
	}
	if opts.version {
		fmt.Fprintf(stdout, "lox %s\n", Version)
		return exitOK
	}
	if len(paths) > 1 {
		fmt.Fprintf(stderr, "Error: expected at most one script, got %d\n", len(paths))
		return exitUsage
	}

	if opts.verbose {
		commonlog.Configure(2, nil)
	} else {
		commonlog.Configure(0, nil)
	}

	if opts.lsp {
		if err := lsp.New(Version).Run(); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitIOError
		}
		return exitOK
	}

	m, err := loadManifest()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	stackSize := m.VM.StackSize
	if opts.stackSize > 0 {
		stackSize = opts.stackSize
	}

	driverOpts := []driver.Option{
		driver.WithOutput(stdout),
		driver.WithErrorOutput(stderr),
		driver.WithStackSize(stackSize),
	}
	if opts.trace || m.VM.Trace {
		driverOpts = append(driverOpts, driver.WithTrace(stderr))
	}

	if m.Cache.Enabled && !opts.noCache && !opts.disasm {
		c, err := cache.Open(m.CachePath())
		if err != nil {
			log.Warningf("chunk cache unavailable: %s", err)
		} else {
			defer c.Close()
			driverOpts = append(driverOpts, driver.WithCache(c))
		}
	}

	path := ""
	if len(paths) == 1 {
		path = paths[0]
	} else if !opts.interactive {
		path = m.EntryPath()
	}

	if path == "" {
		return runREPL(replConfig{
			prompt:      m.REPL.Prompt,
			exitCommand: m.REPL.ExitCommand,
		}, stdin, stdout, stderr, driverOpts)
	}

	d := driver.New(driverOpts...)
	switch {
	case strings.HasSuffix(path, BytecodeExt):
		return runImage(d, path, stderr)
	case opts.output != "":
		return buildFile(d, path, opts.output, stderr)
	case opts.disasm:
		return disassembleFile(path, stdout, stderr)
	default:
		return runFile(d, path, stderr)
	}
}

// loadManifest finds lox.toml above the working directory, falling back to
// the built-in defaults.
func loadManifest() (*manifest.Manifest, error) {
	wd, err := os.Getwd()
	if err != nil {
		return manifest.Default(), nil
	}
	m, err := manifest.FindAndLoad(wd)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return manifest.Default(), nil
	}
	log.Debugf("using %s", filepath.Join(m.Dir, manifest.FileName))
	return m, nil
}

func exitCode(result vm.InterpretResult) int {
	switch result {
	case vm.ResultCompileError:
		return exitCompileError
	case vm.ResultRuntimeError:
		return exitRuntimeError
	default:
		return exitOK
	}
}

func runFile(d *driver.Driver, path string, stderr io.Writer) int {
	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitIOError
	}
	return exitCode(d.Interpret(string(source)))
}

func buildFile(d *driver.Driver, path, output string, stderr io.Writer) int {
	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitIOError
	}

	data, result, err := d.Build(string(source))
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitIOError
	}
	if result != vm.ResultOK {
		return exitCode(result)
	}

	if err := os.WriteFile(output, data, 0644); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitIOError
	}
	log.Infof("wrote %s (%d bytes)", output, len(data))
	return exitOK
}

func runImage(d *driver.Driver, path string, stderr io.Writer) int {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitIOError
	}

	result, err := d.RunImage(data)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %s: %v\n", path, err)
		return exitIOError
	}
	return exitCode(result)
}

func disassembleFile(path string, stdout, stderr io.Writer) int {
	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitIOError
	}

	chunk, err := compiler.Compile(string(source))
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitCompileError
	}
	io.WriteString(stdout, chunk.Disassemble(filepath.Base(path)))
	return exitOK
}
