package registry

import "sync"

// StageKind is the discriminant of the Stage tagged union from spec.md §3:
// {PreStart, Milestones(name), Shutdown, CtrlAltDel}. Modeled as a Go
// struct (StageKind + Milestone) rather than a Rust enum, per the spec's
// design notes on re-architecting sum types.
type StageKind int

const (
	PreStart StageKind = iota
	Milestones
	Shutdown
	CtrlAltDel
)

func (k StageKind) String() string {
	switch k {
	case Milestones:
		return "Milestones"
	case Shutdown:
		return "Shutdown"
	case CtrlAltDel:
		return "CtrlAltDel"
	default:
		return "PreStart"
	}
}

// Stage is the CurrentStage cell's value: a StageKind plus the milestone
// name when Kind is Milestones.
type Stage struct {
	Kind      StageKind
	Milestone string
}

// StageCell is the single-valued CurrentStage cell from spec.md §3,
// enforcing invariant I6: PreStart → Milestones(·) is a one-way transition
// during boot, and Shutdown/CtrlAltDel are terminal.
type StageCell struct {
	mu    sync.RWMutex
	stage Stage
}

// NewStageCell builds a cell initialized to PreStart.
func NewStageCell() *StageCell {
	return &StageCell{stage: Stage{Kind: PreStart}}
}

// Get returns the current stage.
func (c *StageCell) Get() Stage {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.stage
}

// Set transitions the cell, enforcing invariant I6: once the stage has
// left PreStart it never returns to it, and once it is Shutdown or
// CtrlAltDel, no further transition is accepted (both are terminal).
// Returns false if the transition was rejected.
func (c *StageCell) Set(s Stage) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stage.Kind == Shutdown || c.stage.Kind == CtrlAltDel {
		return false
	}

	if s.Kind == PreStart && c.stage.Kind != PreStart {
		return false
	}

	c.stage = s

	return true
}
