// SPDX-License-Identifier: Apache-2.0

package config

import "fmt"

type InvalidConfigError struct {
	Field  string
	Reason string
}

func (e InvalidConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid configuration: %s", e.Reason)
	}
	return fmt.Sprintf("invalid configuration: %s %s", e.Field, e.Reason)
}
