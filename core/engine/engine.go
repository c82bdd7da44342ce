// Package engine launches pipelines as coordinated OS processes and tracks
// them through a bounded job table, a SIGCHLD reactor, and a terminal
// controller. It consumes parsed pipelines; reading and tokenizing command
// lines is the REPL's job.
package engine

import (
	"os"
	"os/signal"
	"sync"

	"github.com/spf13/afero"
	"github.com/tinysh/tinysh/core/config"
	"github.com/tinysh/tinysh/core/shell"
	"golang.org/x/sys/unix"
)

type Engine struct {
	cfg *config.Configuration
	fs  afero.Fs

	stdin  *os.File
	stdout *os.File
	stderr *os.File

	table   *JobTable
	tty     *TerminalController
	reactor *Reactor

	// reapMu orders the launcher's spawn+register against the reactor's
	// drain; see Reactor.
	reapMu sync.Mutex

	keyboard chan os.Signal

	lastStatus int
	quitting   bool
	quitStatus int
}

// New builds an engine on the real OS: os.Stdin/out/err and the host
// filesystem.
func New(cfg *config.Configuration) *Engine {
	return NewWithIO(cfg, afero.NewOsFs(), os.Stdin, os.Stdout, os.Stderr)
}

// NewWithIO builds an engine with explicit streams; tests hand in pipes.
func NewWithIO(cfg *config.Configuration, fsys afero.Fs, stdin, stdout, stderr *os.File) *Engine {
	e := &Engine{
		cfg:      cfg,
		fs:       fsys,
		stdin:    stdin,
		stdout:   stdout,
		stderr:   stderr,
		table:    NewJobTable(cfg.MaxJobs),
		tty:      NewTerminalController(stdin),
		keyboard: make(chan os.Signal, 16),
	}
	e.reactor = newReactor(e.table, &e.reapMu, stdout)
	return e
}

// Start claims the terminal and begins consuming child notifications.
//
// Keyboard signals are taken with real handlers rather than SIG_IGN: the
// terminal delivers them to whichever group owns it, the engine discards its
// own copies, and exec resets handled signals to their default disposition
// so children behave like ordinary jobs.
func (e *Engine) Start() {
	if e.tty.Enabled() {
		_ = unix.Setpgid(0, 0)
		e.tty.shellPGID = unix.Getpgrp()
		e.tty.Reclaim()
	}

	signal.Notify(e.keyboard, unix.SIGINT, unix.SIGTSTP, unix.SIGTTOU, unix.SIGTTIN)
	go func() {
		for range e.keyboard {
		}
	}()

	e.reactor.Start()
}

// Close detaches signal handling. Live background jobs keep running.
func (e *Engine) Close() {
	e.reactor.Close()
	signal.Stop(e.keyboard)
	close(e.keyboard)
}

// Eval runs one tokenized command line: a builtin, or a pipeline launch.
// User-level failures come back as errors; the engine stays usable.
func (e *Engine) Eval(tokens []string, cmdline string) error {
	if len(tokens) == 0 {
		return nil
	}
	if e.runBuiltin(tokens) {
		return nil
	}

	pl, err := shell.Parse(tokens, cmdline, e.limits())
	if err != nil || pl == nil {
		return err
	}
	return e.Run(pl)
}

func (e *Engine) limits() shell.Limits {
	return shell.Limits{MaxStages: e.cfg.MaxStages, MaxArgs: e.cfg.MaxArgs}
}

func (e *Engine) pathEnv() string {
	if path := os.Getenv("PATH"); path != "" {
		return path
	}
	return e.cfg.PathFallback
}

// LastStatus is the exit status of the most recent foreground pipeline.
func (e *Engine) LastStatus() int {
	return e.lastStatus
}

// ExitRequested reports whether the exit builtin ran, and with which code.
func (e *Engine) ExitRequested() (int, bool) {
	return e.quitStatus, e.quitting
}

// Jobs exposes a snapshot of the job table for reporting.
func (e *Engine) Jobs() []Job {
	return e.table.Jobs()
}
