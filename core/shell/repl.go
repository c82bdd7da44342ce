package shell

import (
	"fmt"
	"io"
	"log"

	"github.com/abiosoft/readline"
	"github.com/anmitsu/go-shlex"
)

// Evaluator is the command engine behind the REPL.
type Evaluator interface {
	// Eval runs one tokenized command line.
	Eval(tokens []string, cmdline string) error
	// ExitRequested reports whether the exit builtin ran, and with which
	// code.
	ExitRequested() (int, bool)
	// LastStatus is the exit status of the most recent foreground
	// pipeline.
	LastStatus() int
}

// REPL reads command lines, tokenizes them, and feeds the engine.
type REPL struct {
	Engine   Evaluator
	Readline *readline.Instance

	stderr io.Writer
}

// NewREPL builds a readline-backed prompt loop on the given streams.
func NewREPL(engine Evaluator, prompt string, stdin io.ReadCloser, stdout, stderr io.Writer) (*REPL, error) {
	cfg := &readline.Config{
		Prompt: prompt,
		Stdin:  readline.NewCancelableStdin(stdin),
		Stdout: stdout,
		Stderr: stderr,
	}
	if err := cfg.Init(); err != nil {
		return nil, err
	}

	rl, err := readline.NewEx(cfg)
	if err != nil {
		return nil, err
	}

	return &REPL{Engine: engine, Readline: rl, stderr: stderr}, nil
}

// Run loops until EOF or the exit builtin and returns the shell's exit code.
func (r *REPL) Run() int {
	defer r.Readline.Close()

	for {
		line, err := r.Readline.Readline()

		switch {
		case err == io.EOF:
			// Input closed: quit with the last pipeline's status.
			fmt.Fprintln(r.Readline)
			return r.Engine.LastStatus()

		case err == readline.ErrInterrupt:
			continue // ^C on an empty line redraws the prompt.

		case err != nil:
			log.Printf("readline: %v", err)
			continue

		case len(line) == 0:
			continue
		}

		tokens, err := shlex.Split(line, true)
		if err != nil {
			fmt.Fprintf(r.stderr, "tinysh: syntax error: %v\n", err)
			continue
		}

		if err := r.Engine.Eval(tokens, line); err != nil {
			fmt.Fprintf(r.stderr, "tinysh: %v\n", err)
		}

		if code, quit := r.Engine.ExitRequested(); quit {
			return code
		}
	}
}
