package engine

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	getopt "github.com/pborman/getopt/v2"
	"golang.org/x/sys/unix"
)

// builtinCommand wraps getopt flag handling for builtins that take options.
type builtinCommand struct {
	// Use holds a one line usage string.
	Use string
	// Short holds a one line description of the command.
	Short string

	flags *getopt.Set
}

// Flags gets the command's flag set.
func (b *builtinCommand) Flags() *getopt.Set {
	if b.flags == nil {
		b.flags = getopt.New()
	}
	return b.flags
}

func (b *builtinCommand) printHelp(w io.Writer) {
	fmt.Fprintf(w, "usage: %s\n", b.Use)
	fmt.Fprintln(w, b.Short)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	b.Flags().PrintOptions(w)
}

// Run the command, if flag parsing was successful call the callback.
func (b *builtinCommand) Run(args []string, stderr io.Writer, callback func() int) int {
	opts := b.Flags()
	showHelp := opts.BoolLong("help", 'h', "show this help and exit")

	if err := opts.Getopt(args, nil); err != nil {
		fmt.Fprintf(stderr, "error: %s\n\n", err)
		b.printHelp(stderr)
		return 1
	}
	if *showHelp {
		b.printHelp(stderr)
		return 0
	}
	return callback()
}

// runBuiltin dispatches builtins; it reports whether tokens named one.
// Builtins report their own failures and never take the engine down.
func (e *Engine) runBuiltin(tokens []string) bool {
	switch tokens[0] {
	case "exit", "quit":
		e.builtinExit(tokens)
	case "fg":
		e.builtinFgBg(tokens, true)
	case "bg":
		e.builtinFgBg(tokens, false)
	case "jobs":
		e.builtinJobs(tokens)
	case "cd":
		e.builtinCd(tokens)
	default:
		return false
	}
	return true
}

func (e *Engine) builtinExit(tokens []string) {
	code := 0
	if len(tokens) > 1 {
		parsed, err := strconv.Atoi(tokens[1])
		if err != nil {
			fmt.Fprintf(e.stderr, "exit: %s: numeric argument required\n", tokens[1])
			return
		}
		code = parsed
	}
	e.quitting = true
	e.quitStatus = code
}

// parseJobSpec turns a "%N" argument into a job id.
func parseJobSpec(arg string) (int, bool) {
	if !strings.HasPrefix(arg, "%") {
		return 0, false
	}
	id, err := strconv.Atoi(arg[1:])
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (e *Engine) builtinFgBg(tokens []string, fg bool) {
	name := "bg"
	if fg {
		name = "fg"
	}

	if len(tokens) < 2 {
		fmt.Fprintf(e.stderr, "%s: command requires %%jobid\n", name)
		return
	}
	id, ok := parseJobSpec(tokens[1])
	if !ok {
		fmt.Fprintf(e.stderr, "%s: %s: malformed job spec\n", name, tokens[1])
		return
	}
	job, ok := e.table.ByID(id)
	if !ok {
		fmt.Fprintf(e.stderr, "%s: %s: no such job\n", name, tokens[1])
		return
	}

	// Resume the whole group: every stage of the pipeline continues
	// together.
	if err := unix.Kill(-job.PGID, unix.SIGCONT); err != nil {
		fmt.Fprintf(e.stderr, "%s: job %d: %v\n", name, id, err)
		// The group is gone; if the tracked process is too, the entry
		// is stale and gets dropped.
		if unix.Kill(job.PID, 0) != nil {
			e.table.Remove(job.PID, Outcome{})
		}
		return
	}

	if fg {
		if err := e.table.SetState(id, Foreground); err != nil {
			fmt.Fprintf(e.stderr, "%s: %v\n", name, err)
			return
		}
		e.tty.Give(job.PGID)
		outcome, done := e.table.WaitForeground()
		e.tty.Reclaim()
		if done {
			e.lastStatus = outcome.ExitStatus()
		}
		return
	}

	if err := e.table.SetState(id, Background); err != nil {
		fmt.Fprintf(e.stderr, "%s: %v\n", name, err)
		return
	}
	fmt.Fprintf(e.stdout, "[%d]+ %s\n", job.ID, job.Cmdline)
}

func stateLabel(s State) string {
	if s == Stopped {
		return "Stopped"
	}
	return "Running"
}

func (e *Engine) builtinJobs(tokens []string) {
	cmd := &builtinCommand{
		Use:   "jobs [-l]",
		Short: "List the jobs the shell is tracking.",
	}
	long := cmd.Flags().BoolLong("long", 'l', "also show process ids")

	cmd.Run(tokens, e.stderr, func() int {
		for _, j := range e.table.Jobs() {
			if *long {
				fmt.Fprintf(e.stdout, "[%d]+ %d %s\t%s\n", j.ID, j.PID, stateLabel(j.State), j.Cmdline)
			} else {
				fmt.Fprintf(e.stdout, "[%d]+ %s\t%s\n", j.ID, stateLabel(j.State), j.Cmdline)
			}
		}
		return 0
	})
}

func (e *Engine) builtinCd(tokens []string) {
	switch len(tokens) {
	case 1:
		tokens = append(tokens, os.Getenv("HOME"))
		fallthrough
	case 2:
		if err := os.Chdir(tokens[1]); err != nil {
			fmt.Fprintf(e.stderr, "%s: %v\n", tokens[0], err)
		}
	default:
		fmt.Fprintf(e.stderr, "%s: too many arguments\n", tokens[0])
	}
}
