// Package resolver implements the Dependency Resolver from spec.md §4.4: a
// service or milestone dependency ID is satisfied if it is already Running
// or Stopped, waited on if it is already spawning, or spawned fresh
// otherwise — with the "already spawning" cycle-break rule from spec.md
// §4.3's ordering notes.
package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/airup-project/airup/internal/registry"
)

// SpawnFunc starts a new supervisor for id. It need not wait for the
// supervisor to register or reach Running; Resolve waits for Running
// itself. ancestors is the chain of service
// IDs currently being resolved, self included as the last element, passed
// straight through so the new supervisor can extend it when it resolves
// its own dependencies.
type SpawnFunc func(ctx context.Context, id string, ancestors []string) error

// Resolver walks dependency IDs against the shared registry, spawning
// supervisors on demand via the injected SpawnFunc. It has no dependency on
// internal/supervisor itself — supervisor.Manager wires the SpawnFunc
// closure, which is what breaks what would otherwise be an import cycle.
type Resolver struct {
	reg   *registry.Registry
	spawn SpawnFunc
}

// New builds a Resolver backed by reg, spawning new supervisors via spawn.
func New(reg *registry.Registry, spawn SpawnFunc) *Resolver {
	return &Resolver{reg: reg, spawn: spawn}
}

// Resolve satisfies dependency id per spec.md §4.4: Running/Stopped
// satisfies immediately; Readying/Working blocks until Running; absent
// spawns a new supervisor and blocks until Running. ancestors is the
// resolution chain leading to this call (not including id); if id already
// appears in it, this is the cyclic-dependency case from spec.md §4.3's
// ordering rules and is treated as satisfied without blocking.
func (r *Resolver) Resolve(ctx context.Context, id string, ancestors []string) error {
	if strings.HasPrefix(id, "alias::") {
		return fmt.Errorf("resolver: alias dependencies are reserved and unimplemented: %s", id)
	}

	for _, a := range ancestors {
		if a == id {
			return nil
		}
	}

	if status, ok := r.reg.Status(id); ok {
		switch status {
		case registry.Running, registry.Stopped:
			return nil
		default:
			if !r.reg.WaitRunning(id, ctx.Done()) {
				return ctx.Err()
			}

			return nil
		}
	}

	chain := make([]string, len(ancestors)+1)
	copy(chain, ancestors)
	chain[len(ancestors)] = id

	if err := r.spawn(ctx, id, chain); err != nil {
		return fmt.Errorf("resolver: spawning %s: %w", id, err)
	}

	if !r.reg.WaitRunning(id, ctx.Done()) {
		return ctx.Err()
	}

	return nil
}

// ResolveAll resolves each of ids in array order, per spec.md §4.3's
// ordering rule: each dependency fully blocks before the next starts.
// ancestors is the resolution chain that led to this dependency list
// (already including the dependent service's own ID).
func (r *Resolver) ResolveAll(ctx context.Context, ids []string, ancestors []string) error {
	for _, id := range ids {
		if err := r.Resolve(ctx, id, ancestors); err != nil {
			return err
		}
	}

	return nil
}
