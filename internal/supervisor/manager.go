package supervisor

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/airup-project/airup/internal/config"
	"github.com/airup-project/airup/internal/launcher"
	"github.com/airup-project/airup/internal/registry"
	"github.com/airup-project/airup/internal/resolver"
)

// Manager owns the service-descriptor directory and spawns supervisors on
// demand, for both the Dependency Resolver (spec.md §4.4) and direct
// callers (the Milestone Engine enumerating a milestone's *.svc files, the
// Control Plane's "svc start"). It is the one place that closes the
// otherwise-circular relationship between internal/resolver and
// internal/supervisor: resolver.Resolver never imports this package, it
// only calls the SpawnFunc closure Manager hands it.
type Manager struct {
	svcDir   string
	reg      *registry.Registry
	launcher *launcher.Launcher
	log      *zap.Logger

	resolver *resolver.Resolver
}

// NewManager builds a Manager rooted at svcDir (typically
// "<airup_home>/svc").
func NewManager(svcDir string, reg *registry.Registry, l *launcher.Launcher, log *zap.Logger) *Manager {
	m := &Manager{svcDir: svcDir, reg: reg, launcher: l, log: log}
	m.resolver = resolver.New(reg, m.spawnForResolver)

	return m
}

// Resolver returns the Dependency Resolver backed by this Manager, so a
// caller can resolve IDs against the same spawning logic supervisors use
// for their own dependencies.
func (m *Manager) Resolver() *resolver.Resolver {
	return m.resolver
}

func (m *Manager) spawnForResolver(ctx context.Context, id string, ancestors []string) error {
	return m.spawn(ctx, id, ancestors)
}

// Start spawns a fresh, top-level supervisor for id (no ancestors), for
// direct callers that are not themselves inside a dependency resolution
// chain. It returns as soon as the supervisor's goroutine is started;
// registration happens on that goroutine, so id may not be in the registry
// yet when Start returns, and it is not waited on to reach Running —
// callers that need Running should follow with Resolver().Resolve(ctx, id,
// nil) or registry.WaitRunning.
func (m *Manager) Start(ctx context.Context, id string) error {
	return m.spawn(ctx, id, nil)
}

func (m *Manager) spawn(ctx context.Context, id string, ancestors []string) error {
	return m.StartPath(ctx, filepath.Join(m.svcDir, id+".svc"), ancestors)
}

// StartPath spawns a supervisor for the descriptor at path directly,
// bypassing svcDir — used by the Milestone Engine for a milestone's own
// member services, which live under the milestone's directory rather than
// the globally-reachable "<airup_home>/svc" tree. The spawned supervisor
// still resolves its own `dependencies` field through this Manager's
// resolver, which always looks those up under svcDir per spec.md §4.4.
func (m *Manager) StartPath(ctx context.Context, path string, ancestors []string) error {
	desc, err := config.LoadService(path)
	if err != nil {
		return fmt.Errorf("supervisor: loading %s: %w", path, err)
	}

	sv := newSupervisor(desc, ancestors, m.reg, m.launcher, m.resolver, m.log)

	go sv.Run(ctx)

	return nil
}
