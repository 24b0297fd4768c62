// Package milestone implements the Milestone Engine from spec.md §4.5: it
// parses a milestone directory's descriptor, exports its environment,
// transitions the boot stage, runs its pre_exec hook, recurses into
// dependency milestones, and launches its member services.
package milestone

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/airup-project/airup/internal/config"
	"github.com/airup-project/airup/internal/identity"
	"github.com/airup-project/airup/internal/launcher"
	"github.com/airup-project/airup/internal/registry"
	"github.com/airup-project/airup/internal/supervisor"
)

// Engine reaches milestones under a single milestones root directory,
// launching their member services through a shared supervisor.Manager so
// that a service's own `dependencies` field always resolves against the
// globally-reachable "<airup_home>/svc" tree, per spec.md §4.4.
type Engine struct {
	root     string
	reg      *registry.Registry
	stage    *registry.StageCell
	launcher *launcher.Launcher
	services *supervisor.Manager
	log      *zap.Logger
}

// New builds an Engine. root is "<airup_home>/milestones"; services is the
// shared Manager rooted at "<airup_home>/svc".
func New(root string, reg *registry.Registry, stage *registry.StageCell, l *launcher.Launcher, services *supervisor.Manager, log *zap.Logger) *Engine {
	return &Engine{root: root, reg: reg, stage: stage, launcher: l, services: services, log: log}
}

// Reach runs milestone `name` (a subdirectory of the milestones root) to
// completion, per spec.md §4.5's step order: validate, parse, export env,
// transition stage, pre_exec, dependency milestones, member services.
func (e *Engine) Reach(ctx context.Context, name string) error {
	dir := filepath.Join(e.root, name)

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("milestone: %s: not a directory: %w", name, err)
	}

	ms, err := config.LoadMilestone(dir)
	if err != nil {
		return fmt.Errorf("milestone: %s: %w", name, err)
	}

	for k, v := range ms.EnvList {
		_ = os.Setenv(k, v)
	}

	e.stage.Set(registry.Stage{Kind: registry.Milestones, Milestone: ms.Prompt})
	e.log.Info("reaching milestone", zap.String("milestone", name))

	if ms.HasPreExec {
		if err := e.launcher.RunHook(ctx, identity.Root, ms.PreExec); err != nil {
			e.log.Warn("milestone pre_exec failed", zap.String("milestone", name), zap.Error(err))
		}
	}

	for _, dep := range ms.Dependencies {
		if err := e.Reach(ctx, dep); err != nil {
			return fmt.Errorf("milestone: %s: dependency %s: %w", name, dep, err)
		}
	}

	return e.launchMembers(ctx, ms)
}

// launchMembers enumerates *.svc files directly under the milestone's
// directory and launches one supervisor per file, serially (block for
// Running before the next) or in parallel (fire-and-forget) per ms.Paral.
func (e *Engine) launchMembers(ctx context.Context, ms config.Milestone) error {
	entries, err := os.ReadDir(ms.Dir)
	if err != nil {
		return fmt.Errorf("milestone: listing %s: %w", ms.Dir, err)
	}

	names := make([]string, 0, len(entries))

	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".svc") {
			names = append(names, entry.Name())
		}
	}

	sort.Strings(names)

	var errs *multierror.Error

	for _, name := range names {
		id := strings.TrimSuffix(name, ".svc")
		path := filepath.Join(ms.Dir, name)

		if err := e.services.StartPath(ctx, path, nil); err != nil {
			e.log.Warn("milestone member failed to start", zap.String("service", id), zap.Error(err))
			errs = multierror.Append(errs, err)

			continue
		}

		if !ms.Paral {
			if !e.reg.WaitRunning(id, ctx.Done()) {
				errs = multierror.Append(errs, fmt.Errorf("milestone: %s: %s did not reach Running", ms.Prompt, id))
			}
		}
	}

	return errs.ErrorOrNil()
}
