// Package airupd wires together every component described in spec.md §2's
// boot data flow: Signal Core → Config Loader → Stage Controller (PreStart)
// → Stage Controller (Milestones) → Milestone Engine, with the Control
// Plane started concurrently once PreStart has finished.
package airupd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"github.com/airup-project/airup/internal/config"
	"github.com/airup-project/airup/internal/control"
	"github.com/airup-project/airup/internal/launcher"
	"github.com/airup-project/airup/internal/milestone"
	"github.com/airup-project/airup/internal/power"
	"github.com/airup-project/airup/internal/reaper"
	"github.com/airup-project/airup/internal/registry"
	"github.com/airup-project/airup/internal/stage"
	"github.com/airup-project/airup/internal/supervisor"
)

// Daemon owns every shared structure and component for one airupd process
// lifetime.
type Daemon struct {
	cfg config.Main
	log *zap.Logger

	reaperStop func()

	reg      *registry.Registry
	stage    *registry.StageCell
	services *supervisor.Manager
	engine   *milestone.Engine
	power    *power.Controller
	control  *control.Plane
}

// New boots the Signal/PID-1 Core and Config Loader, then wires the rest
// of the components against the loaded configuration. debug bypasses the
// PID==1 requirement and runs services directly via /bin/sh instead of
// through airup_su, for local development.
func New(configPath string, debug bool, log *zap.Logger) (*Daemon, error) {
	core, stop, err := reaper.Boot(debug)
	if err != nil {
		return nil, fmt.Errorf("airupd: %w", err)
	}

	doc, err := config.Load(configPath)
	if err != nil {
		stop()

		return nil, fmt.Errorf("airupd: loading main config: %w", err)
	}

	main := doc.LoadMain()

	reg := registry.New()
	stageCell := registry.NewStageCell()
	l := launcher.New(core, debug)

	services := supervisor.NewManager(filepath.Join(main.AirupHome, "svc"), reg, l, log)
	engine := milestone.New(filepath.Join(main.AirupHome, "milestones"), reg, stageCell, l, services, log)
	pc := power.New(reg, log)
	plane := control.New(reg, stageCell, services, pc, log)

	return &Daemon{
		cfg:        main,
		log:        log,
		reaperStop: stop,
		reg:        reg,
		stage:      stageCell,
		services:   services,
		engine:     engine,
		power:      pc,
		control:    plane,
	}, nil
}

// Run executes the boot sequence from spec.md §2 and then blocks until ctx
// is canceled: exported environment, PreStart, the Control Plane started
// concurrently, and reaching the target milestone.
func (d *Daemon) Run(ctx context.Context) error {
	if d.cfg.EnvPath != config.DontSetupSentinel {
		_ = os.Setenv("PATH", d.cfg.EnvPath)
	}

	target := TargetMilestone(readKernelCmdline())

	_ = os.Setenv("AIRUP_TARGET_MILESTONE", target)
	_ = os.Setenv("AIRUP_HOME_DIR", d.cfg.AirupHome)
	_ = os.Setenv("AIRUP_PARAL_PRESTART", strconv.FormatBool(d.cfg.PrestartParal))

	stage.RunPrestart(ctx, filepath.Join(d.cfg.AirupHome, "prestart"), d.cfg.PrestartParal, d.log)

	d.log.Info("airup is launching", zap.String("osname", d.cfg.Osname), zap.String("milestone", target))

	go func() {
		if err := d.control.Serve(ctx); err != nil {
			d.log.Error("control plane unavailable, continuing in read-only mode", zap.Error(err))
		}
	}()

	if err := d.engine.Reach(ctx, target); err != nil {
		return fmt.Errorf("airupd: reaching milestone %s: %w", target, err)
	}

	<-ctx.Done()

	return nil
}

// Shutdown releases the PID-1 reaper/signal resources. Call once, after
// Run returns.
func (d *Daemon) Shutdown() {
	d.reaperStop()
}
