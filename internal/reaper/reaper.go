// Package reaper wraps the PID-1 preconditions from spec.md §4.8: refuse to
// run unless PID==1, block the process's own signal set, and reap every
// child via siderolabs/go-cmd's reaper (the same package
// internal/app/machined/main.go in the teacher repo installs at boot with
// reaper.Run()/reaper.Shutdown()), then fan the reaped exit statuses out to
// whichever launcher call is waiting on a particular PID.
package reaper

import (
	"fmt"
	"os"
	"os/signal"
	"sync"

	goreaper "github.com/siderolabs/go-cmd/pkg/cmd/proc/reaper"
	"golang.org/x/sys/unix"
)

// ExitStatus is the reaped exit state of one child, reported to whichever
// internal/launcher.Wait call is waiting on that PID.
type ExitStatus struct {
	Pid      int
	ExitCode int
	Signaled bool
	Signal   unix.Signal
}

// Core owns the PID-1 signal/reaping bring-up and the per-PID exit
// notification fan-out that replaces the manual WNOHANG poll loop the
// design notes ask to avoid.
type Core struct {
	ch      chan goreaper.ProcessInfo
	mu      sync.Mutex
	waiters map[int][]chan ExitStatus
	done    map[int]ExitStatus

	// blocked relays every signal airupd itself receives into a channel
	// instead of letting the Go runtime take the default action, the
	// Go-idiomatic stand-in for the original's raw sigprocmask(2) full-mask
	// block: Go programs are always multi-threaded, so a literal
	// sigprocmask(2) call (as the Rust/libc source issues) is unsafe here;
	// signal.Notify with no signal list is the documented way to achieve
	// the same effect of intercepting every catchable signal.
	blocked chan os.Signal
}

// Boot enforces the PID-1 precondition (unless debug lifts it for local
// testing), installs the catch-all signal relay (not in debug mode), and
// starts the reaper. The returned stop func must be called at process
// exit: it shuts the reaper down and releases the signal relay.
func Boot(debug bool) (*Core, func(), error) {
	if !debug && os.Getpid() != 1 {
		return nil, nil, fmt.Errorf("reaper: airupd must run as PID 1 (pass --debug to bypass for local testing)")
	}

	c := &Core{
		ch:      make(chan goreaper.ProcessInfo, 64),
		waiters: make(map[int][]chan ExitStatus),
		done:    make(map[int]ExitStatus),
	}

	if !debug {
		c.blocked = make(chan os.Signal, 64)
		signal.Notify(c.blocked)
	}

	goreaper.Run()
	goreaper.Notify(c.ch)

	go c.run()

	stop := func() {
		goreaper.Stop(c.ch)
		goreaper.Shutdown()

		if c.blocked != nil {
			signal.Stop(c.blocked)
		}
	}

	return c, stop, nil
}

func (c *Core) run() {
	for info := range c.ch {
		status := ExitStatus{Pid: info.Pid}

		switch {
		case info.Status.Exited():
			status.ExitCode = info.Status.ExitStatus()
		case info.Status.Signaled():
			status.Signaled = true
			status.Signal = unix.Signal(info.Status.Signal())
		}

		c.mu.Lock()

		if chans, ok := c.waiters[info.Pid]; ok {
			for _, ch := range chans {
				ch <- status
				close(ch)
			}

			delete(c.waiters, info.Pid)
		} else {
			c.done[info.Pid] = status
		}

		c.mu.Unlock()
	}
}

// Wait returns a channel that receives exactly one ExitStatus when pid is
// reaped, then closes. If pid was already reaped since the last TryWait/Wait
// call for it, the channel fires immediately.
func (c *Core) Wait(pid int) <-chan ExitStatus {
	c.mu.Lock()

	if st, ok := c.done[pid]; ok {
		delete(c.done, pid)
		c.mu.Unlock()

		ch := make(chan ExitStatus, 1)
		ch <- st
		close(ch)

		return ch
	}

	ch := make(chan ExitStatus, 1)
	c.waiters[pid] = append(c.waiters[pid], ch)
	c.mu.Unlock()

	return ch
}

// TryWait is the non-blocking counterpart used by the Process Launcher's
// try_wait per spec.md §4.2: it reports (and consumes) a cached exit
// status for pid if one has already been reaped, without blocking.
func (c *Core) TryWait(pid int) (ExitStatus, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.done[pid]
	if ok {
		delete(c.done, pid)
	}

	return st, ok
}
