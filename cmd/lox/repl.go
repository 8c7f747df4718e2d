package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chazu/lox/driver"
	"github.com/chazu/lox/vm"
	"golang.org/x/term"
)

type replConfig struct {
	prompt      string
	exitCommand string
}

// lineReader yields one line of input per call and io.EOF at the end.
type lineReader interface {
	ReadLine() (string, error)
}

// scannerReader reads lines from a non-terminal input such as a pipe.
type scannerReader struct {
	scanner *bufio.Scanner
}

func (r *scannerReader) ReadLine() (string, error) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return r.scanner.Text(), nil
}

// runREPL evaluates one line at a time in a single session, so globals
// carry over between lines. On a terminal it shows a prompt and offers line
// editing; on other inputs it reads silently.
func runREPL(cfg replConfig, stdin io.Reader, stdout, stderr io.Writer, driverOpts []driver.Option) int {
	in, out, errOut := lineReader(&scannerReader{scanner: bufio.NewScanner(stdin)}), stdout, stderr
	interactive := false

	if fin, ok := stdin.(*os.File); ok && term.IsTerminal(int(fin.Fd())) {
		if fout, ok := stdout.(*os.File); ok && term.IsTerminal(int(fout.Fd())) {
			oldState, err := term.MakeRaw(int(fin.Fd()))
			if err != nil {
				log.Warningf("cannot enter raw mode: %s", err)
			} else {
				defer term.Restore(int(fin.Fd()), oldState)
				t := term.NewTerminal(struct {
					io.Reader
					io.Writer
				}{fin, fout}, cfg.prompt)
				in, out, errOut = t, t, t
				interactive = true
			}
		}
	}

	opts := append(append([]driver.Option(nil), driverOpts...), driver.WithOutput(out), driver.WithErrorOutput(errOut))
	session := driver.New(opts...).NewSession()

	if interactive {
		fmt.Fprintf(out, "lox REPL (type '%s' to quit, ':help' for commands)\n", cfg.exitCommand)
	}
	log.Debugf("REPL session %s", session.ID)

	for {
		line, err := in.ReadLine()
		if err != nil {
			if err != io.EOF {
				fmt.Fprintf(errOut, "Error: %v\n", err)
				return exitIOError
			}
			break
		}

		line = strings.TrimSpace(line)
		switch {
		case line == cfg.exitCommand:
			return exitOK
		case line == "":
			continue
		case strings.HasPrefix(line, ":"):
			handleREPLCommand(session, line, cfg, out)
		default:
			session.Interpret(line)
		}
	}

	return exitOK
}

func handleREPLCommand(session *driver.Session, line string, cfg replConfig, out io.Writer) {
	switch line {
	case ":globals":
		globals := session.Globals()
		if globals.Len() == 0 {
			fmt.Fprintln(out, "(no globals)")
			return
		}
		for _, name := range globals.Names() {
			v, _ := globals.Get(name)
			fmt.Fprintf(out, "%s => %s\n", name, vm.FormatValue(v))
		}
	case ":help":
		fmt.Fprintln(out, "Commands:")
		fmt.Fprintln(out, "  :globals  List global variables")
		fmt.Fprintln(out, "  :help     Show this help")
		fmt.Fprintf(out, "  %-9s Quit\n", cfg.exitCommand)
	default:
		fmt.Fprintf(out, "Unknown command: %s (try :help)\n", line)
	}
}
