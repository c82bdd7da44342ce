package engine

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"

	"github.com/fatih/color"
	"golang.org/x/sys/unix"
)

var colorStopped = color.New(color.FgYellow, color.Bold)

// Reactor is the sole consumer of child-state notifications. SIGCHLD is
// translated into wakeups on a buffered channel; each wakeup drains every
// pending status with a non-blocking wait so no notification is lost when
// several children change state back to back.
type Reactor struct {
	table *JobTable
	out   io.Writer

	// reapMu is shared with the launcher. Holding it across spawn and
	// registration keeps the drain from consuming a termination before
	// the job exists, the same hole sigprocmask closes in a classic
	// handler-based shell.
	reapMu *sync.Mutex

	sigs chan os.Signal
	done chan struct{}
}

func newReactor(table *JobTable, reapMu *sync.Mutex, out io.Writer) *Reactor {
	return &Reactor{
		table:  table,
		out:    out,
		reapMu: reapMu,
		sigs:   make(chan os.Signal, 64),
		done:   make(chan struct{}),
	}
}

// Start subscribes to SIGCHLD and begins consuming notifications.
func (r *Reactor) Start() {
	signal.Notify(r.sigs, unix.SIGCHLD)
	go r.run()
}

// Close unsubscribes and waits for the consumer to finish.
func (r *Reactor) Close() {
	signal.Stop(r.sigs)
	close(r.sigs)
	<-r.done
}

func (r *Reactor) run() {
	defer close(r.done)
	for range r.sigs {
		r.drain()
	}
}

// drain consumes every currently pending child-state change without
// blocking.
func (r *Reactor) drain() {
	r.reapMu.Lock()
	defer r.reapMu.Unlock()

	for {
		var ws unix.WaitStatus
		pid, err := unix.Wait4(-1, &ws, unix.WNOHANG|unix.WUNTRACED|unix.WCONTINUED, nil)
		if err == unix.EINTR {
			continue
		}
		if pid <= 0 || err != nil {
			return
		}
		r.handle(pid, ws)
	}
}

func (r *Reactor) handle(pid int, ws unix.WaitStatus) {
	switch {
	case ws.Stopped():
		job, tracked := r.table.MarkStopped(pid)
		if !tracked {
			return
		}
		fmt.Fprintln(r.out)
		colorStopped.Fprintf(r.out, "[%d]+  Stopped", job.ID)
		fmt.Fprintf(r.out, "\t%s\n", job.Cmdline)

	case ws.Continued():
		// Advisory only: fg/bg set the state at resume time.

	default:
		outcome := outcomeFromStatus(ws)

		// A pid nobody claims is either a foreign child or one whose
		// registration lost a race we deliberately close; stay quiet.
		job, ok := r.table.ByStagePID(pid)
		if !ok {
			return
		}

		fmt.Fprintf(r.out, "[pid %d] %s\n", pid, outcome)

		if job.PID == pid {
			r.table.Remove(pid, outcome)
		}
	}
}

func outcomeFromStatus(ws unix.WaitStatus) Outcome {
	if ws.Signaled() {
		return Outcome{Signaled: true, Signal: ws.Signal()}
	}
	return Outcome{Code: ws.ExitStatus()}
}
