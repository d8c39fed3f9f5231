// Package spec defines the execution specification and its time budget.
package spec

import "time"

// ResourceLimit describes hard limits enforced on one process.
// Only the wall-clock budget is enforced; memory, CPU and network are unconstrained.
type ResourceLimit struct {
	WallTimeMs int64
}

// WallTime returns the wall-clock budget as a duration. Zero means unlimited.
func (l ResourceLimit) WallTime() time.Duration {
	if l.WallTimeMs <= 0 {
		return 0
	}
	return time.Duration(l.WallTimeMs) * time.Millisecond
}

// LimitFromDuration converts a timeout into a ResourceLimit.
// Positive durations round up to the next millisecond so they never become unlimited.
func LimitFromDuration(d time.Duration) ResourceLimit {
	if d <= 0 {
		return ResourceLimit{}
	}
	ms := d.Milliseconds()
	if d%time.Millisecond != 0 {
		ms++
	}
	return ResourceLimit{WallTimeMs: ms}
}

// RunSpec is the unified execution specification for one process launch.
type RunSpec struct {
	// Phase labels the invocation in logs ("compile" or "run").
	Phase string
	// WorkDir is the child's working directory; empty inherits the service's.
	WorkDir string
	// Cmd is the argv; Cmd[0] is resolved through PATH unless it contains a separator.
	Cmd []string
	// Env is appended to the service environment.
	Env []string
	// Stdin is fed to the child; empty means the child reads EOF immediately.
	Stdin  string
	Limits ResourceLimit
}
