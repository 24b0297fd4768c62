// Package bootfail implements the emergency-shell-and-loop rescue path
// from spec.md §7: the last resort when the boot sequence itself fails, in
// a PID-1 process that must never exit.
package bootfail

import (
	"os"
	"os/exec"

	"go.uber.org/zap"
)

// Rescue prints a banner, spawns an interactive /bin/sh with this process's
// stdio, and waits for it to exit. Either way — the shell running to
// completion (an operator exiting it) or failing to spawn at all — it then
// blocks forever: a PID-1 process must never return from main. Called from
// exactly one place, cmd/airupd/main.go, never from inside a supervisor or
// the control plane.
func Rescue(log *zap.Logger, cause error) {
	log.Error("boot sequence failed, dropping to an emergency shell", zap.Error(cause))

	cmd := exec.Command("/bin/sh")
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		log.Error("emergency shell itself could not run; halting", zap.Error(err))
	}

	select {}
}
