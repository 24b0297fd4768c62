// Package supervisor implements the Service Supervisor state machine from
// spec.md §4.3: one goroutine per service, owning its child through
// internal/launcher, driving Readying → spawning → Running → retry or
// Stopped-terminal, and answering down/up/pid control messages on its
// Inbox.
package supervisor

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/airup-project/airup/internal/action"
	"github.com/airup-project/airup/internal/config"
	"github.com/airup-project/airup/internal/identity"
	"github.com/airup-project/airup/internal/launcher"
	"github.com/airup-project/airup/internal/registry"
	"github.com/airup-project/airup/internal/resolver"
)

// dieTimeout is the die_timer duration from spec.md §4.3: how long a
// Stopped service is given to actually exit after SIGKILL before this
// supervisor gives up and deregisters it anyway.
const dieTimeout = 300 * time.Second

// Supervisor is one service's state machine, per spec.md §4.3. Build one
// with newSupervisor (via Manager) and run it with Run in its own
// goroutine.
type Supervisor struct {
	desc      config.Service
	ancestors []string

	reg      *registry.Registry
	launcher *launcher.Launcher
	resolve  *resolver.Resolver
	log      *zap.Logger

	inbox *Inbox
}

func newSupervisor(desc config.Service, ancestors []string, reg *registry.Registry, l *launcher.Launcher, res *resolver.Resolver, log *zap.Logger) *Supervisor {
	return &Supervisor{
		desc:      desc,
		ancestors: ancestors,
		reg:       reg,
		launcher:  l,
		resolve:   res,
		log:       log.With(zap.String("service", desc.ID)),
		inbox:     newInbox(),
	}
}

// Run drives the full state machine from spec.md §4.3's "[new]" entry to
// "delsvc" exit. It returns only when the service is fully torn down or its
// context is canceled (boot-time dependency resolution failing counts as a
// Stopped-terminal transition, per the diagram's "spawn failure ->
// Stopped-terminal (no retry)" — a dependency that never comes up is
// indistinguishable from a spawn failure for this service).
func (s *Supervisor) Run(ctx context.Context) {
	if !s.reg.Register(s.desc.ID, s.inbox) {
		s.log.Debug("supervisor lost the race to register; another one already owns this id")

		return
	}

	defer s.reg.Unregister(s.desc.ID)

	// ResolveAll expects the chain to end with this service's own ID; a
	// top-level supervisor (started with no ancestors) adds it here.
	ancestors := s.ancestors
	if len(ancestors) == 0 || ancestors[len(ancestors)-1] != s.desc.ID {
		ancestors = append(append([]string(nil), ancestors...), s.desc.ID)
	}

	if err := s.resolve.ResolveAll(ctx, s.desc.Dependencies, ancestors); err != nil {
		s.log.Error("dependency resolution failed", zap.Error(err))
		s.reg.SetStatus(s.desc.ID, registry.Stopped)

		return
	}

	retryCount := 0

	for {
		generation := uuid.New()
		log := s.log.With(zap.String("generation", generation.String()))

		pid, err := s.spawnOnce(ctx, log)
		if err != nil {
			log.Error("spawn failed", zap.Error(err))
			s.reg.SetStatus(s.desc.ID, registry.Stopped)

			return
		}

		s.reg.SetPID(s.desc.ID, pid)
		s.inbox.setPID(pid)

		if !s.waitReady(ctx) {
			return
		}

		s.reg.SetStatus(s.desc.ID, registry.Running)
		log.Info("service running", zap.Int("pid", pid))

		outcome := s.runWhileAlive(ctx, pid, log)

		switch outcome {
		case outcomeRetry:
			retryCount++

			if retryCount > s.desc.RetryTime {
				log.Error("service exited too many times, giving up", zap.Int("retry_time", s.desc.RetryTime))
				s.reg.SetStatus(s.desc.ID, registry.Stopped)

				return
			}

			continue
		case outcomeRestart:
			retryCount = 0

			continue
		case outcomeTerminal:
			return
		}
	}
}

type outcome int

const (
	outcomeTerminal outcome = iota
	outcomeRetry
	outcomeRestart
)

// spawnOnce runs pre_exec (if any), spawns the child, and resolves its PID
// either directly or by polling pid_file, per spec.md §4.3's "spawning"
// transition.
func (s *Supervisor) spawnOnce(ctx context.Context, log *zap.Logger) (int, error) {
	if s.desc.PreExec != "" {
		if err := s.runHook(ctx, s.desc.ActionUser, s.desc.PreExec); err != nil {
			return 0, fmt.Errorf("pre_exec: %w", err)
		}
	}

	proc, err := s.launcher.Spawn(ctx, s.desc.User, s.desc.Exec, envLiteral(s.desc.EnvList), s.desc.TakeIO)
	if err != nil {
		return 0, err
	}

	if s.desc.PIDFile == "" {
		return proc.PID, nil
	}

	pidCtx, cancel := context.WithTimeout(ctx, dieTimeout)
	defer cancel()

	pid, err := launcher.ReadPIDFile(pidCtx, s.desc.PIDFile)
	if err != nil {
		log.Warn("pid_file unreadable, falling back to spawned PID", zap.String("pid_file", s.desc.PIDFile), zap.Error(err))

		return proc.PID, nil
	}

	return pid, nil
}

// waitReady blocks for ready_timeout (spec.md §4.3's "Readying -- ready_timeout
// elapsed --> Running"), or returns false early if ctx is canceled.
func (s *Supervisor) waitReady(ctx context.Context) bool {
	if !s.desc.HasReadyTimeout || s.desc.ReadyTimeoutMS <= 0 {
		return true
	}

	timer := time.NewTimer(time.Duration(s.desc.ReadyTimeoutMS) * time.Millisecond)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// runWhileAlive is the Running state: it waits for either the child to
// exit or an inbox message, implementing spec.md §4.3's Running
// transitions.
func (s *Supervisor) runWhileAlive(ctx context.Context, pid int, log *zap.Logger) outcome {
	exitCh := s.launcher.Wait(pid)

	for {
		select {
		case <-exitCh:
			return outcomeRetry
		case k := <-s.inbox.ch:
			switch k {
			case msgDown:
				return s.handleStop(ctx, pid, exitCh, log)
			case msgUp:
				// idempotent no-op per spec.md §4.3.
			}
		case <-ctx.Done():
			return outcomeTerminal
		}
	}
}

// handleStop implements "Running -- inbox \"down\" --> pre_stop -> issue
// stop_way -> Stopped; start kill_timer(kill_timeout)" through to
// die_timer, including the pre_restart/cleanup wiring decided in
// SPEC_FULL.md §4.3: an "up" received before die_timer fires is an
// explicit external restart.
func (s *Supervisor) handleStop(ctx context.Context, pid int, exitCh <-chan launcher.ExitStatus, log *zap.Logger) outcome {
	restartPending := false

	// The control plane's "svc restart" sends "down" then "up" back to
	// back (spec.md §4.7); both may already be queued by the time this
	// handler runs, so a single non-blocking check here catches that
	// common case before falling into the blocking select loop below.
	select {
	case k := <-s.inbox.ch:
		if k == msgUp {
			restartPending = true
		}
	default:
	}

	if restartPending {
		if err := s.runHook(ctx, s.desc.ActionUser, s.desc.PreRestart); err != nil {
			log.Warn("pre_restart failed", zap.Error(err))
		}
	} else if err := s.runHook(ctx, s.desc.ActionUser, s.desc.PreStop); err != nil {
		log.Warn("pre_stop failed", zap.Error(err))
	}

	stopAction := s.desc.StopWay
	if restartPending {
		stopAction = s.desc.RestartWay
	}

	if err := action.Run(ctx, stopAction, pid); err != nil {
		log.Warn("stop_way failed", zap.Error(err))
	}

	s.reg.SetStatus(s.desc.ID, registry.Stopped)

	killTimer := time.NewTimer(time.Duration(s.desc.KillTimeoutMS) * time.Millisecond)
	defer killTimer.Stop()

	for {
		select {
		case <-exitCh:
			return s.finishStop(ctx, pid, log, restartPending)
		case k := <-s.inbox.ch:
			if k == msgUp {
				restartPending = true
			}
		case <-killTimer.C:
			if _, exited := s.launcher.TryWait(pid); !exited {
				_ = s.launcher.Signal(pid, syscall.SIGKILL)
			}

			return s.waitDie(ctx, pid, exitCh, log, restartPending)
		case <-ctx.Done():
			return outcomeTerminal
		}
	}
}

// waitDie implements "Stopped -- die_timer fires --> delsvc" (the
// supervisor's own Run loop performs delsvc via its deferred Unregister),
// while still honoring a late "up" as a restart.
func (s *Supervisor) waitDie(ctx context.Context, pid int, exitCh <-chan launcher.ExitStatus, log *zap.Logger, restartPending bool) outcome {
	dieTimer := time.NewTimer(dieTimeout)
	defer dieTimer.Stop()

	for {
		select {
		case <-exitCh:
			return s.finishStop(ctx, pid, log, restartPending)
		case k := <-s.inbox.ch:
			if k == msgUp {
				restartPending = true
			}
		case <-dieTimer.C:
			log.Warn("service did not die within die_timer, deregistering anyway")

			return outcomeTerminal
		case <-ctx.Done():
			return outcomeTerminal
		}
	}
}

func (s *Supervisor) finishStop(ctx context.Context, pid int, log *zap.Logger, restartPending bool) outcome {
	if !restartPending {
		return outcomeTerminal
	}

	if s.desc.CleanupOnRestart && s.desc.Cleanup != "" {
		if err := s.runHook(ctx, s.desc.ActionUser, s.desc.Cleanup); err != nil {
			log.Warn("cleanup failed", zap.Error(err))
		}
	}

	return outcomeRestart
}

// runHook runs a hook command (pre_exec, pre_stop, pre_restart, cleanup)
// synchronously as actionUser.
func (s *Supervisor) runHook(ctx context.Context, actionUser identity.Identity, command string) error {
	return s.launcher.RunHook(ctx, actionUser, command)
}

// envLiteral composes a deterministic "KEY='VAL' KEY2='VAL2' " shell
// assignment prefix from a service's env_list, per spec.md §4.2.
func envLiteral(env map[string]string) string {
	if len(env) == 0 {
		return ""
	}

	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	var b strings.Builder

	for _, k := range keys {
		b.WriteString(k)
		b.WriteString("='")
		b.WriteString(strings.ReplaceAll(env[k], "'", `'"'"'`))
		b.WriteString("' ")
	}

	return b.String()
}
