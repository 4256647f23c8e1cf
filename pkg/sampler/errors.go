// SPDX-License-Identifier: Apache-2.0

package sampler

import (
	"fmt"
	"time"
)

type TimingFaultError struct {
	Trial   int
	Elapsed time.Duration
}

func (e TimingFaultError) Error() string {
	return fmt.Sprintf("timing fault in trial %d: measured %s, the clock did not advance", e.Trial, e.Elapsed)
}

type InvalidTrialsError struct {
	Trials int
}

func (e InvalidTrialsError) Error() string {
	return fmt.Sprintf("trial count must be at least 1, got %d", e.Trials)
}
