package supervisor_test

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
	"github.com/airup-project/airup/internal/reaper"
	"github.com/airup-project/airup/internal/registry"
	"github.com/airup-project/airup/internal/supervisor"
)

// TestDependencyChainOrdering is spec.md §8 scenario 1: a.svc depends on
// b.svc; b must reach Running before a's own exec.
func TestDependencyChainOrdering(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.svc"), []byte(
		"exec = \"sh -c 'sleep 0.2'\"\nretry_time = 0\n",
	), 0o644))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.svc"), []byte(
		"exec = \"sh -c 'sleep 0.05'\"\nretry_time = 0\ndependencies = [\"b\"]\n",
	), 0o644))

	core, stop, err := reaper.Boot(true)
	require.NoError(t, err)

	defer stop()

	reg := registry.New()
	l := launcher.New(core, true)
	mgr := supervisor.NewManager(dir, reg, l, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var bRunningAt, aRunningAt time.Time

	monitorDone := make(chan struct{})

	go func() {
		defer close(monitorDone)

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			if bRunningAt.IsZero() {
				if st, ok := reg.Status("b"); ok && st == registry.Running {
					bRunningAt = time.Now()
				}
			}

			if aRunningAt.IsZero() {
				if st, ok := reg.Status("a"); ok && st == registry.Running {
					aRunningAt = time.Now()

					return
				}
			}

			time.Sleep(time.Millisecond)
		}
	}()

	require.NoError(t, mgr.Start(ctx, "a"))
	require.NoError(t, mgr.Resolver().Resolve(ctx, "a", nil))

	<-monitorDone

	require.False(t, bRunningAt.IsZero(), "b never reached Running")
	require.False(t, aRunningAt.IsZero(), "a never reached Running")
	assert.False(t, aRunningAt.Before(bRunningAt), "a reached Running before its dependency b did")
}

// TestStatusOfUnknownService is spec.md §8 scenario 5.
func TestStatusOfUnknownService(t *testing.T) {
	reg := registry.New()

	_, ok := reg.Status("ghost")
	assert.False(t, ok)
	assert.Equal(t, 0, reg.PID("ghost"))
}
