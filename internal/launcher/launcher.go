// Package launcher implements the Process Launcher from spec.md §4.2:
// composing a service's shell command line, routing it through the
// airup_su setuid helper (unless running in no-user-switching/debug mode),
// and exposing signal/try_wait/wait over the reaped child.
package launcher

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/airup-project/airup/internal/identity"
	"github.com/airup-project/airup/internal/reaper"
)

// Process is a handle to a spawned child: its PID and the means to wait on
// it via the shared reaper Core.
type Process struct {
	PID int
}

// Launcher spawns and supervises raw OS processes on behalf of
// internal/supervisor. NoSu mirrors the original's "no_airupsu" build
// feature: run the composed command directly via /bin/sh -c instead of
// through the airup_su helper, for local/debug use where setuid helpers are
// unavailable.
type Launcher struct {
	reaper *reaper.Core
	noSu   bool
}

// New builds a Launcher backed by core for child-exit notification.
func New(core *reaper.Core, noSu bool) *Launcher {
	return &Launcher{reaper: core, noSu: noSu}
}

// shellCmd builds the airup_su-or-direct /bin/sh -c invocation shared by
// Spawn and RunHook.
func (l *Launcher) shellCmd(ctx context.Context, user identity.Identity, line string) *exec.Cmd {
	if l.noSu {
		return exec.CommandContext(ctx, "/bin/sh", "-c", line)
	}

	return exec.CommandContext(ctx, "airup_su", user.SuFlag(), user.String(), "-c", line)
}

// Spawn composes "{envLiteral} exec {command}" and runs it as user, per
// spec.md §4.2. takeIO controls whether the child inherits this process's
// stdio.
func (l *Launcher) Spawn(ctx context.Context, user identity.Identity, command, envLiteral string, takeIO bool) (*Process, error) {
	cmd := l.shellCmd(ctx, user, envLiteral+" exec "+command)

	if takeIO {
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	}

	// Reset cancellation so a context cancellation (e.g. the Spawn caller's
	// deadline) does not tear the child down behind the supervisor's back;
	// the supervisor controls the child's lifetime explicitly via Signal.
	cmd.Cancel = nil

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("launcher: spawn: %w", err)
	}

	// Hand the child off to the reaper immediately: Process.Wait is never
	// called on cmd.Process directly (that would race the reaper's own
	// wait4), only Release, so the OS process table entry is not held open
	// by this *os.Process value.
	_ = cmd.Process.Release()

	return &Process{PID: cmd.Process.Pid}, nil
}

// RunHook runs command as user and blocks until it completes, per the
// pre_exec/pre_stop/pre_restart/cleanup hooks in spec.md §4.3, which the
// diagram and design notes both describe as synchronous steps rather than
// long-lived children handed to the reaper.
func (l *Launcher) RunHook(ctx context.Context, user identity.Identity, command string) error {
	if command == "" {
		return nil
	}

	if err := l.shellCmd(ctx, user, command).Run(); err != nil {
		return fmt.Errorf("launcher: hook: %w", err)
	}

	return nil
}

// Signal delivers sig to pid directly, per spec.md §4.2's signal(pid, sig).
func (l *Launcher) Signal(pid int, sig syscall.Signal) error {
	return syscall.Kill(pid, sig)
}

// ExitStatus re-exports reaper.ExitStatus so callers only need to import
// this package.
type ExitStatus = reaper.ExitStatus

// TryWait is the non-blocking try_wait(pid) from spec.md §4.2.
func (l *Launcher) TryWait(pid int) (ExitStatus, bool) {
	return l.reaper.TryWait(pid)
}

// Wait returns a channel that receives pid's ExitStatus once the reaper
// reaps it. The caller selects on it alongside other events (inbox
// messages, timers, ctx.Done()) rather than blocking here.
func (l *Launcher) Wait(pid int) <-chan ExitStatus {
	return l.reaper.Wait(pid)
}
