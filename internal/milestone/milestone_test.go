package milestone_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/airup-project/airup/internal/launcher"
	"github.com/airup-project/airup/internal/milestone"
	"github.com/airup-project/airup/internal/reaper"
	"github.com/airup-project/airup/internal/registry"
	"github.com/airup-project/airup/internal/supervisor"
)

// TestSerialMilestoneOrdersMembers is spec.md §8 scenario 6: with
// paral=false, the second member's exec must not run until the first
// reaches Running.
func TestSerialMilestoneOrdersMembers(t *testing.T) {
	milestonesRoot := t.TempDir()
	dir := filepath.Join(milestonesRoot, "boot")
	require.NoError(t, os.Mkdir(dir, 0o755))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "milestone.toml"), []byte("paral = false\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "first.svc"), []byte(
		"exec = \"sleep 3600\"\n",
	), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "second.svc"), []byte(
		"exec = \"sleep 3600\"\n",
	), 0o644))

	core, stop, err := reaper.Boot(true)
	require.NoError(t, err)

	defer stop()

	reg := registry.New()
	stageCell := registry.NewStageCell()
	l := launcher.New(core, true)
	svcDir := t.TempDir()
	services := supervisor.NewManager(svcDir, reg, l, zap.NewNop())
	engine := milestone.New(milestonesRoot, reg, stageCell, l, services, zap.NewNop())

	var firstRunningAt, secondRunningAt time.Time

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	monitorDone := make(chan struct{})

	go func() {
		defer close(monitorDone)

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			if firstRunningAt.IsZero() {
				if st, ok := reg.Status("first"); ok && st == registry.Running {
					firstRunningAt = time.Now()
				}
			}

			if secondRunningAt.IsZero() {
				if st, ok := reg.Status("second"); ok && st == registry.Running {
					secondRunningAt = time.Now()

					return
				}
			}

			time.Sleep(time.Millisecond)
		}
	}()

	require.NoError(t, engine.Reach(ctx, "boot"))

	<-monitorDone

	require.False(t, firstRunningAt.IsZero())
	require.False(t, secondRunningAt.IsZero())
	assert.False(t, secondRunningAt.Before(firstRunningAt), "second member reached Running before the first one did")
}
