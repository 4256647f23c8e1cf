// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/docker/go-units"
)

// Duration is a time.Duration written as a Go duration string ("10s") or a
// number of seconds.
type Duration time.Duration

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		*d = Duration(value * float64(time.Second))
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value, err)
		}
		*d = Duration(parsed)
	default:
		return fmt.Errorf("invalid duration %s", data)
	}
	return nil
}

// ByteSize is a size in bytes written as a number or a human readable
// string. Suffixes are binary: 1KB and 1KiB are both 1024 bytes.
type ByteSize int64

// ParseByteSize parses sizes such as "64KiB", "50MB" or "1048576".
func ParseByteSize(s string) (ByteSize, error) {
	n, err := units.RAMInBytes(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	return ByteSize(n), nil
}

func (b ByteSize) String() string {
	return units.BytesSize(float64(b))
}

// MarshalJSON writes a human readable size when the value is a whole number
// of units and a plain number otherwise.
func (b ByteSize) MarshalJSON() ([]byte, error) {
	s := b.String()
	if parsed, err := ParseByteSize(s); err == nil && parsed == b && !strings.Contains(s, ".") {
		return json.Marshal(s)
	}
	return json.Marshal(int64(b))
}

func (b *ByteSize) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		*b = ByteSize(value)
	case string:
		parsed, err := ParseByteSize(value)
		if err != nil {
			return err
		}
		*b = parsed
	default:
		return fmt.Errorf("invalid size %s", data)
	}
	return nil
}

// Preset is a named duration from the interactive benchmark dialog.
type Preset string

const (
	PresetQuick    Preset = "quick"
	PresetStandard Preset = "standard"
	PresetExtended Preset = "extended"
)

var presetDurations = map[Preset]time.Duration{
	PresetQuick:    5 * time.Second,
	PresetStandard: 10 * time.Second,
	PresetExtended: 30 * time.Second,
}

func (p Preset) Duration() (time.Duration, bool) {
	d, ok := presetDurations[p]
	return d, ok
}

// DiskSizeOptions are the scratch file sizes offered interactively.
var DiskSizeOptions = []ByteSize{10 << 20, 50 << 20, 100 << 20, 500 << 20}
