package engine

import (
	"os"

	"golang.org/x/sys/unix"
)

// TerminalController decides which process group receives terminal-generated
// signals and keyboard input. When the controlling descriptor is not a
// terminal (tests, piped input) every method is a no-op.
type TerminalController struct {
	fd        int
	shellPGID int
	enabled   bool
}

// NewTerminalController wraps the terminal behind f, normally the shell's
// stdin.
func NewTerminalController(f *os.File) *TerminalController {
	t := &TerminalController{
		fd:        int(f.Fd()),
		shellPGID: unix.Getpgrp(),
	}
	if _, err := unix.IoctlGetTermios(t.fd, unix.TCGETS); err == nil {
		t.enabled = true
	}
	return t
}

// Enabled reports whether a controlling terminal is present.
func (t *TerminalController) Enabled() bool {
	return t.enabled
}

// Give hands the terminal to the job's process group before a foreground
// wait.
func (t *TerminalController) Give(pgid int) {
	if !t.enabled {
		return
	}
	_ = unix.IoctlSetPointerInt(t.fd, unix.TIOCSPGRP, pgid)
}

// Reclaim returns the terminal to the shell's own group once the foreground
// job has exited or stopped.
func (t *TerminalController) Reclaim() {
	t.Give(t.shellPGID)
}
