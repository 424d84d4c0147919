// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"fmt"

	"github.com/atriumxr/atrium/internal/memwatch"
	"github.com/atriumxr/atrium/internal/recovery"
	"github.com/atriumxr/atrium/internal/state"
)

// StateChecker reports unhealthy while the controller sits in the Error
// state.
type StateChecker struct {
	States *state.Machine
}

func (c *StateChecker) Name() string { return "state" }

func (c *StateChecker) Check(_ context.Context) CheckResult {
	current := c.States.Current()
	if current == state.Error {
		return CheckResult{
			Status:  StatusUnhealthy,
			Message: "application is in the Error state",
		}
	}
	return CheckResult{
		Status:  StatusHealthy,
		Message: string(current),
	}
}

// RecoveryChecker reports degraded while a recovery attempt is pending.
type RecoveryChecker struct {
	Recovery *recovery.Engine
}

func (c *RecoveryChecker) Name() string { return "recovery" }

func (c *RecoveryChecker) Check(_ context.Context) CheckResult {
	if c.Recovery.InFlight() {
		return CheckResult{
			Status:  StatusDegraded,
			Message: "recovery attempt in flight",
		}
	}
	if last := c.Recovery.LastError(); last != nil {
		return CheckResult{
			Status:  StatusHealthy,
			Message: fmt.Sprintf("last error kind: %s", last.Kind),
		}
	}
	return CheckResult{Status: StatusHealthy}
}

// MemoryChecker reports degraded above the pressure threshold.
type MemoryChecker struct {
	Sampler   memwatch.Sampler
	Threshold float64
}

func (c *MemoryChecker) Name() string { return "memory" }

func (c *MemoryChecker) Check(_ context.Context) CheckResult {
	used, total, ok := c.Sampler.Sample()
	if !ok || total == 0 {
		return CheckResult{
			Status:  StatusHealthy,
			Message: "not configured (optional)",
		}
	}
	usage := float64(used) / float64(total)
	if usage > c.Threshold {
		return CheckResult{
			Status:  StatusDegraded,
			Message: fmt.Sprintf("memory usage %.2f above threshold %.2f", usage, c.Threshold),
		}
	}
	return CheckResult{
		Status:  StatusHealthy,
		Message: fmt.Sprintf("memory usage %.2f", usage),
	}
}
