package engine

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"

	"github.com/tinysh/tinysh/core/shell"
	"golang.org/x/sys/unix"
)

// Reserved statuses, following shell convention.
const (
	statusNotFound = 127
	statusExecFail = 126
)

// Run launches a parsed pipeline: N processes in one fresh process group,
// N-1 pipes between them, the optional redirection on the last stage. For a
// foreground pipeline it then waits until the job leaves the foreground.
//
// Every stage is resolved before anything is spawned, so an unknown command
// aborts the whole pipeline instead of leaving sibling stages blocked on
// pipes that will never fill.
func (e *Engine) Run(pl *shell.Pipeline) error {
	paths := make([]string, len(pl.Stages))
	for i, stage := range pl.Stages {
		path, err := LookPath(e.fs, e.pathEnv(), stage[0])
		switch {
		case errors.Is(err, ErrNotFound):
			e.lastStatus = statusNotFound
			return fmt.Errorf("command not found: %s", stage[0])
		case errors.Is(err, fs.ErrPermission):
			e.lastStatus = statusExecFail
			return fmt.Errorf("permission denied: %s", stage[0])
		case err != nil:
			e.lastStatus = statusExecFail
			return fmt.Errorf("%s: %w", stage[0], err)
		}
		paths[i] = path
	}

	n := len(pl.Stages)

	// Channel i connects stage i's output to stage i+1's input. The
	// parent's copies all close once the stages hold theirs.
	type pipePair struct{ r, w *os.File }
	pipes := make([]pipePair, 0, n-1)
	closePipes := func() {
		for _, p := range pipes {
			p.r.Close()
			p.w.Close()
		}
	}
	for i := 0; i < n-1; i++ {
		r, w, err := os.Pipe()
		if err != nil {
			closePipes()
			return fmt.Errorf("pipe: %w", err)
		}
		pipes = append(pipes, pipePair{r, w})
	}

	var redirect *os.File
	if pl.Redirect != nil {
		flags := os.O_WRONLY | os.O_CREATE
		if pl.Redirect.Append {
			flags |= os.O_APPEND
		} else {
			flags |= os.O_TRUNC
		}
		f, err := os.OpenFile(pl.Redirect.Path, flags, 0666)
		if err != nil {
			closePipes()
			return err
		}
		redirect = f
		defer redirect.Close()
	}

	// Hold the reap lock from before the first fork until the job is
	// registered. The reactor drains under the same lock, so no child can
	// be reaped before its bookkeeping exists.
	e.reapMu.Lock()

	var (
		started  []*exec.Cmd
		leader   int
		startErr error
	)
	for i := range pl.Stages {
		cmd := &exec.Cmd{
			Path:   paths[i],
			Args:   []string(pl.Stages[i]),
			Stderr: e.stderr,
		}

		if i > 0 {
			cmd.Stdin = pipes[i-1].r
		} else {
			cmd.Stdin = e.stdin
		}

		// The last stage writes to exactly one of redirection file,
		// engine stdout; inner stages write to their pipe.
		switch {
		case i == n-1 && redirect != nil:
			cmd.Stdout = redirect
		case i < n-1:
			cmd.Stdout = pipes[i].w
		default:
			cmd.Stdout = e.stdout
		}

		// The kernel moves each child into the pipeline's group between
		// fork and exec; stage processes never run outside it.
		attr := &unix.SysProcAttr{Setpgid: true}
		if i > 0 {
			attr.Pgid = leader
		}
		cmd.SysProcAttr = attr

		if err := cmd.Start(); err != nil {
			startErr = fmt.Errorf("%s: %w", pl.Stages[i][0], err)
			break
		}
		if i == 0 {
			leader = cmd.Process.Pid
		}
		started = append(started, cmd)
	}

	closePipes()

	if len(started) == 0 {
		e.reapMu.Unlock()
		e.lastStatus = statusExecFail
		return startErr
	}

	pids := make([]int, len(started))
	for i, c := range started {
		pids[i] = c.Process.Pid
	}

	state := Foreground
	if pl.Background {
		state = Background
	}
	job := &Job{
		PGID:    leader,
		PID:     pids[len(pids)-1],
		Pids:    pids,
		State:   state,
		Cmdline: pl.Cmdline,
	}

	id, err := e.table.Add(job)
	if err != nil {
		// The group is already running; it must still be reaped even
		// though the table refused it.
		e.reapGroupLocked(leader)
		e.reapMu.Unlock()
		return err
	}

	e.reapMu.Unlock()

	if startErr != nil {
		e.lastStatus = statusExecFail
	}

	if state == Background {
		fmt.Fprintf(e.stdout, "[%d] %d\n", id, leader)
		return startErr
	}

	e.tty.Give(leader)
	outcome, done := e.table.WaitForeground()
	e.tty.Reclaim()
	if done && startErr == nil {
		e.lastStatus = outcome.ExitStatus()
	}
	return startErr
}

// reapGroupLocked terminates and synchronously reaps an unregistered process
// group. Caller holds the reap lock, so the reactor cannot interleave.
func (e *Engine) reapGroupLocked(pgid int) {
	_ = unix.Kill(-pgid, unix.SIGTERM)
	_ = unix.Kill(-pgid, unix.SIGCONT)
	for {
		var ws unix.WaitStatus
		pid, err := unix.Wait4(-pgid, &ws, 0, nil)
		if err == unix.EINTR {
			continue
		}
		if pid <= 0 || err != nil {
			return
		}
	}
}
