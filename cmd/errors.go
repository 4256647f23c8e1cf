// SPDX-License-Identifier: Apache-2.0

package cmd

import "errors"

var (
	errRunFailed    = errors.New("benchmark run failed")
	errRunCancelled = errors.New("benchmark run was cancelled")
)
