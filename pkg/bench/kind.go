// SPDX-License-Identifier: Apache-2.0

package bench

import (
	"fmt"
	"strings"
)

// Kind identifies one of the benchmarked subsystems.
type Kind string

const (
	KindCPU    Kind = "cpu"
	KindMemory Kind = "memory"
	KindDisk   Kind = "disk"
)

const numKinds = 3

// Kinds lists every kind in execution order.
var Kinds = [numKinds]Kind{KindCPU, KindMemory, KindDisk}

// ParseKind converts a case-insensitive kind name into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if k.index() < 0 {
		return "", UnknownKindError{Name: s}
	}
	return k, nil
}

func (k Kind) Valid() bool {
	return k.index() >= 0
}

// Title is the display name of the kind.
func (k Kind) Title() string {
	switch k {
	case KindCPU:
		return "CPU"
	case KindMemory:
		return "Memory"
	case KindDisk:
		return "Disk"
	}
	return string(k)
}

func (k Kind) String() string {
	return string(k)
}

func (k Kind) index() int {
	switch k {
	case KindCPU:
		return 0
	case KindMemory:
		return 1
	case KindDisk:
		return 2
	}
	return -1
}

type UnknownKindError struct {
	Name string
}

func (e UnknownKindError) Error() string {
	return fmt.Sprintf("unknown test kind %q, expected one of cpu, memory, disk", e.Name)
}
