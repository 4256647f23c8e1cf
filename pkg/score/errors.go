// SPDX-License-Identifier: Apache-2.0

package score

import (
	"fmt"

	"github.com/xataio/hwbench/pkg/bench"
)

type MissingMetricError struct {
	Kind bench.Kind
}

func (e MissingMetricError) Error() string {
	return fmt.Sprintf("raw metric for %s has no %s section", e.Kind, e.Kind)
}

type InvalidBaselinesError struct {
	Reason string
}

func (e InvalidBaselinesError) Error() string {
	return fmt.Sprintf("invalid baselines: %s", e.Reason)
}
