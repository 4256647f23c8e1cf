// SPDX-License-Identifier: Apache-2.0

package bench

import (
	"fmt"

	"github.com/docker/go-units"
)

type InsufficientResourceError struct {
	Kind      Kind
	Resource  string
	Requested uint64
	Available uint64
}

func (e InsufficientResourceError) Error() string {
	return fmt.Sprintf("%s test needs %s of %s but only %s is available",
		e.Kind,
		units.BytesSize(float64(e.Requested)),
		e.Resource,
		units.BytesSize(float64(e.Available)))
}

type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e IOError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Op, e.Path, e.Err)
}

func (e IOError) Unwrap() error {
	return e.Err
}

type VerificationError struct {
	BufferSize int64
	Offset     int64
}

func (e VerificationError) Error() string {
	return fmt.Sprintf("memory verification failed in %s buffer at offset %d", units.BytesSize(float64(e.BufferSize)), e.Offset)
}

type InvalidOptionError struct {
	Kind   Kind
	Field  string
	Reason string
}

func (e InvalidOptionError) Error() string {
	return fmt.Sprintf("invalid %s test option %s: %s", e.Kind, e.Field, e.Reason)
}
