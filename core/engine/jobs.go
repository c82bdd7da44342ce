package engine

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// ErrJobTableFull is returned by Add when every slot is occupied. The caller
// still owns the spawned process group and must reap it.
var ErrJobTableFull = errors.New("too many jobs")

// State is a job's lifecycle state. There is no tombstone state: a job that
// is not in the table does not exist.
type State int

const (
	Foreground State = iota + 1
	Background
	Stopped
)

func (s State) String() string {
	switch s {
	case Foreground:
		return "Foreground"
	case Background:
		return "Background"
	case Stopped:
		return "Stopped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Outcome records how a reaped process ended.
type Outcome struct {
	Code     int
	Signal   unix.Signal
	Signaled bool
}

// ExitStatus follows shell convention: the exit code, or 128 plus the
// signal number for a signal death.
func (o Outcome) ExitStatus() int {
	if o.Signaled {
		return 128 + int(o.Signal)
	}
	return o.Code
}

func (o Outcome) String() string {
	if o.Signaled {
		return fmt.Sprintf("killed by signal %d (%v)", int(o.Signal), o.Signal)
	}
	return fmt.Sprintf("exited with code %d", o.Code)
}

// Job is one launched pipeline. The table owns every Job; callers get
// copies.
type Job struct {
	// ID is the small user-facing handle, unique among live jobs.
	ID int
	// PGID is the process group holding every stage.
	PGID int
	// PID is the tracked process: the pipeline's last stage. Its
	// termination removes the job, and its status is the pipeline's.
	PID int
	// Pids lists every stage process, in stage order, for reporting.
	Pids []int
	// State is mutated by the reactor and the fg/bg builtins only.
	State State
	// Cmdline is the original command text.
	Cmdline string
}

// JobTable is a bounded registry of live jobs. It is the only state shared
// between the synchronous engine and the asynchronous reactor; every method
// locks internally, and the launch/reap ordering is handled by the engine's
// reap lock, not here.
type JobTable struct {
	mu   sync.Mutex
	cond *sync.Cond

	slots  []*Job
	nextID int

	// Result of the most recent job to leave the Foreground state. Valid
	// while no job is in the foreground; fgDone is false if it stopped
	// rather than terminated.
	fgOutcome Outcome
	fgDone    bool
}

// NewJobTable makes a table with the given fixed capacity.
func NewJobTable(capacity int) *JobTable {
	t := &JobTable{
		slots:  make([]*Job, capacity),
		nextID: 1,
	}
	t.cond = sync.NewCond(&t.mu)
	return t
}

// nextIDLocked allocates the next job id, wrapping modulo capacity and
// skipping ids still held by live jobs.
func (t *JobTable) nextIDLocked() int {
	for range t.slots {
		id := t.nextID
		t.nextID++
		if t.nextID > len(t.slots) {
			t.nextID = 1
		}
		if t.byIDLocked(id) == nil {
			return id
		}
	}
	return 0 // unreachable when a free slot exists
}

func (t *JobTable) byIDLocked(id int) *Job {
	for _, j := range t.slots {
		if j != nil && j.ID == id {
			return j
		}
	}
	return nil
}

func (t *JobTable) foregroundLocked() *Job {
	for _, j := range t.slots {
		if j != nil && j.State == Foreground {
			return j
		}
	}
	return nil
}

// Add registers a job and assigns its id. At most one job may be in the
// Foreground state; registering a second is a programming error and is
// reported as such.
func (t *JobTable) Add(job *Job) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if job.State == Foreground && t.foregroundLocked() != nil {
		return 0, errors.New("a foreground job already exists")
	}

	for i, slot := range t.slots {
		if slot != nil {
			continue
		}
		job.ID = t.nextIDLocked()
		t.slots[i] = job
		return job.ID, nil
	}
	return 0, ErrJobTableFull
}

// ByID returns a copy of the job with the given id.
func (t *JobTable) ByID(id int) (Job, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if j := t.byIDLocked(id); j != nil {
		return *j, true
	}
	return Job{}, false
}

// ByPID returns a copy of the job whose tracked process is pid.
func (t *JobTable) ByPID(pid int) (Job, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, j := range t.slots {
		if j != nil && j.PID == pid {
			return *j, true
		}
	}
	return Job{}, false
}

// ByStagePID returns a copy of the job owning pid as any of its stages.
func (t *JobTable) ByStagePID(pid int) (Job, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, j := range t.slots {
		if j == nil {
			continue
		}
		for _, p := range j.Pids {
			if p == pid {
				return *j, true
			}
		}
	}
	return Job{}, false
}

// Jobs returns a snapshot of every live job, ordered by id.
func (t *JobTable) Jobs() []Job {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []Job
	for id := 1; id <= len(t.slots); id++ {
		if j := t.byIDLocked(id); j != nil {
			out = append(out, *j)
		}
	}
	return out
}

// Foreground returns a copy of the foreground job, if any.
func (t *JobTable) Foreground() (Job, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if j := t.foregroundLocked(); j != nil {
		return *j, true
	}
	return Job{}, false
}

// SetState moves a job to the given state. Promoting to Foreground fails if
// another job is already there.
func (t *JobTable) SetState(id int, state State) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	j := t.byIDLocked(id)
	if j == nil {
		return fmt.Errorf("job %d: no such job", id)
	}
	if state == Foreground {
		if fg := t.foregroundLocked(); fg != nil && fg.ID != id {
			return errors.New("a foreground job already exists")
		}
	}
	j.State = state
	t.cond.Broadcast()
	return nil
}

// MarkStopped records a stop notification for the job tracking pid and
// returns a copy of the updated job. Waking the foreground waiter happens
// here: a stopped foreground job has left the foreground.
func (t *JobTable) MarkStopped(pid int) (Job, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, j := range t.slots {
		if j == nil || j.PID != pid {
			continue
		}
		if j.State == Foreground {
			t.fgOutcome = Outcome{}
			t.fgDone = false
		}
		j.State = Stopped
		t.cond.Broadcast()
		return *j, true
	}
	return Job{}, false
}

// Remove deletes the job tracking pid, recording its outcome. Each job is
// removed at most once; the bool reports whether pid was a tracked process.
func (t *JobTable) Remove(pid int, outcome Outcome) (Job, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, j := range t.slots {
		if j == nil || j.PID != pid {
			continue
		}
		if j.State == Foreground {
			t.fgOutcome = outcome
			t.fgDone = true
		}
		t.slots[i] = nil
		t.cond.Broadcast()
		return *j, true
	}
	return Job{}, false
}

// WaitForeground blocks without polling until no job is in the Foreground
// state, then reports how the foreground job left: its outcome and true if
// it terminated, or a zero Outcome and false if it stopped.
func (t *JobTable) WaitForeground() (Outcome, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for t.foregroundLocked() != nil {
		t.cond.Wait()
	}
	return t.fgOutcome, t.fgDone
}
