// SPDX-License-Identifier: Apache-2.0

package report

import "github.com/xataio/hwbench/pkg/bench"

type Status string

const (
	StatusRunning   Status = "Running"
	StatusCompleted Status = "Completed"
	StatusCancelled Status = "Cancelled"
	StatusFailed    Status = "Failed"
)

// IsTerminal reports whether no further transition can happen.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusFailed
}

// Fault classifies why a run failed.
type Fault string

const (
	FaultTiming               Fault = "timing"
	FaultInsufficientResource Fault = "insufficient_resource"
	FaultIO                   Fault = "io"
	FaultVerification         Fault = "verification"
	FaultInternal             Fault = "internal"
)

// Failure describes the fault that ended a Failed run.
type Failure struct {
	// The test that faulted.
	Kind bench.Kind `json:"kind"`

	// The class of fault.
	Fault Fault `json:"fault"`

	// A human readable description of the fault.
	Reason string `json:"reason"`
}
