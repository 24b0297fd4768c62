// Package power implements the Shutdown/Power component from SPEC_FULL.md
// §4.9: broadcasting "down" to every live supervisor, waiting a bounded
// grace window, then handing off to the kernel's reboot syscall.
package power

import (
	"context"
	"os"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/airup-project/airup/internal/registry"
)

// GraceWindow bounds how long Poweroff/Restart wait for services to reach
// Stopped before rebooting regardless. A single wedged service's own
// kill_timeout/die_timer never extends this window.
const GraceWindow = 10 * time.Second

// Controller issues poweroff/restart/ctrlaltdel against the shared
// registry, per SPEC_FULL.md §4.9.
type Controller struct {
	reg *registry.Registry
	log *zap.Logger
}

// New builds a Controller.
func New(reg *registry.Registry, log *zap.Logger) *Controller {
	return &Controller{reg: reg, log: log}
}

// Poweroff broadcasts "down", waits up to GraceWindow, then reboots to
// power-off.
func (c *Controller) Poweroff(ctx context.Context) error {
	c.shutdownAll(ctx)

	return reboot(unix.LINUX_REBOOT_CMD_POWER_OFF)
}

// Restart broadcasts "down", waits up to GraceWindow, then reboots.
func (c *Controller) Restart(ctx context.Context) error {
	c.shutdownAll(ctx)

	return reboot(unix.LINUX_REBOOT_CMD_RESTART)
}

// CtrlAltDel handles the ctrlaltdel control-plane command. Its policy
// defaults to Restart per spec.md §6.
func (c *Controller) CtrlAltDel(ctx context.Context) error {
	return c.Restart(ctx)
}

func (c *Controller) shutdownAll(ctx context.Context) {
	deadline := time.Now().Add(GraceWindow)

	c.reg.Each(func(id string, inbox registry.Inbox) {
		inbox.Send("down")
	})

	for time.Now().Before(deadline) {
		if allStopped(c.reg) {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(50 * time.Millisecond):
		}
	}

	c.log.Warn("grace window elapsed before every service reached Stopped; rebooting anyway")
}

func allStopped(reg *registry.Registry) bool {
	for _, status := range reg.Snapshot() {
		if status != registry.Stopped {
			return false
		}
	}

	return true
}

// reboot invokes the kernel reboot syscall on Linux; elsewhere (debug/test
// builds only) it falls back to os.Exit, mirroring
// original_source/airupd/src/power.rs's non-Linux stub.
func reboot(cmd int) error {
	if runtime.GOOS != "linux" {
		os.Exit(0)

		return nil
	}

	return unix.Reboot(cmd)
}
