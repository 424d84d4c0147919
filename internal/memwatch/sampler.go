// SPDX-License-Identifier: MIT

package memwatch

import "runtime"

// RuntimeSampler reads Go heap usage against a fixed budget. With no budget
// configured the host cannot report a usage ratio and the sampler declares
// itself unavailable, which makes the monitor skip its checks.
type RuntimeSampler struct {
	// BudgetBytes is the memory budget the heap is measured against.
	BudgetBytes uint64
}

// Sample reports current heap usage against the budget.
func (s RuntimeSampler) Sample() (used, total uint64, ok bool) {
	if s.BudgetBytes == 0 {
		return 0, 0, false
	}
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.HeapAlloc, s.BudgetBytes, true
}

// SamplerFunc adapts a function to the Sampler interface.
type SamplerFunc func() (used, total uint64, ok bool)

// Sample implements Sampler.
func (f SamplerFunc) Sample() (used, total uint64, ok bool) { return f() }
