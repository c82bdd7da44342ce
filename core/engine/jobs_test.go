package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestJobTable_addAssignsIDs(t *testing.T) {
	table := NewJobTable(4)

	for want := 1; want <= 3; want++ {
		id, err := table.Add(&Job{PID: 100 + want, PGID: 100 + want, State: Background})
		require.NoError(t, err)
		assert.Equal(t, want, id)
	}

	jobs := table.Jobs()
	require.Len(t, jobs, 3)
	assert.Equal(t, 1, jobs[0].ID)
	assert.Equal(t, 3, jobs[2].ID)
}

func TestJobTable_full(t *testing.T) {
	table := NewJobTable(2)

	_, err := table.Add(&Job{PID: 1, State: Background})
	require.NoError(t, err)
	_, err = table.Add(&Job{PID: 2, State: Background})
	require.NoError(t, err)

	_, err = table.Add(&Job{PID: 3, State: Background})
	assert.ErrorIs(t, err, ErrJobTableFull)
}

func TestJobTable_idWrapsAndSkipsLiveIDs(t *testing.T) {
	table := NewJobTable(3)

	for pid := 1; pid <= 3; pid++ {
		_, err := table.Add(&Job{PID: pid, State: Background})
		require.NoError(t, err)
	}

	// Free id 2, keep 1 and 3. The counter has wrapped to 1; the next
	// allocation must skip the live ids and hand out 2 again.
	_, ok := table.Remove(2, Outcome{})
	require.True(t, ok)

	id, err := table.Add(&Job{PID: 4, State: Background})
	require.NoError(t, err)
	assert.Equal(t, 2, id)
}

func TestJobTable_singleForeground(t *testing.T) {
	table := NewJobTable(4)

	fgID, err := table.Add(&Job{PID: 1, State: Foreground})
	require.NoError(t, err)

	_, err = table.Add(&Job{PID: 2, State: Foreground})
	assert.Error(t, err)

	bgID, err := table.Add(&Job{PID: 3, State: Background})
	require.NoError(t, err)
	assert.Error(t, table.SetState(bgID, Foreground))

	// Once the first job leaves the foreground, promotion works.
	require.NoError(t, table.SetState(fgID, Stopped))
	assert.NoError(t, table.SetState(bgID, Foreground))
}

func TestJobTable_removeOnlyTrackedPID(t *testing.T) {
	table := NewJobTable(4)

	_, err := table.Add(&Job{PID: 30, Pids: []int{10, 20, 30}, State: Background})
	require.NoError(t, err)

	// Sibling stage pids are not the tracked process.
	_, ok := table.Remove(10, Outcome{})
	assert.False(t, ok)
	_, ok = table.ByStagePID(20)
	assert.True(t, ok)

	removed, ok := table.Remove(30, Outcome{Code: 7})
	require.True(t, ok)
	assert.Equal(t, 30, removed.PID)

	// Removal happens exactly once.
	_, ok = table.Remove(30, Outcome{})
	assert.False(t, ok)
	assert.Empty(t, table.Jobs())
}

func TestJobTable_waitForeground(t *testing.T) {
	table := NewJobTable(4)

	_, err := table.Add(&Job{PID: 42, State: Foreground, Cmdline: "sleep 1"})
	require.NoError(t, err)

	go func() {
		time.Sleep(10 * time.Millisecond)
		table.Remove(42, Outcome{Code: 3})
	}()

	outcome, done := table.WaitForeground()
	assert.True(t, done)
	assert.Equal(t, 3, outcome.ExitStatus())

	_, ok := table.Foreground()
	assert.False(t, ok)
}

func TestJobTable_waitForegroundStop(t *testing.T) {
	table := NewJobTable(4)

	_, err := table.Add(&Job{PID: 42, State: Foreground, Cmdline: "cat"})
	require.NoError(t, err)

	go func() {
		time.Sleep(10 * time.Millisecond)
		table.MarkStopped(42)
	}()

	_, done := table.WaitForeground()
	assert.False(t, done)

	job, ok := table.ByPID(42)
	require.True(t, ok)
	assert.Equal(t, Stopped, job.State)
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "exited with code 0", Outcome{}.String())
	assert.Equal(t, 2, Outcome{Code: 2}.ExitStatus())

	killed := Outcome{Signaled: true, Signal: unix.SIGKILL}
	assert.Equal(t, 137, killed.ExitStatus())
	assert.Contains(t, killed.String(), "killed by signal 9")
}
