// SPDX-License-Identifier: Apache-2.0

package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"sigs.k8s.io/yaml"
)

type Format int

const (
	InvalidFormat Format = iota
	JSONFormat
	YAMLFormat
	TextFormat
)

var ErrInvalidFormat = errors.New("invalid report format")

// ParseFormat returns the format named by s: json, yaml or text.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return JSONFormat, nil
	case "yaml", "yml":
		return YAMLFormat, nil
	case "text", "txt":
		return TextFormat, nil
	}
	return InvalidFormat, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
}

// Extension returns the file extension for reports in this format
func (f Format) Extension() string {
	switch f {
	case JSONFormat:
		return "json"
	case YAMLFormat:
		return "yaml"
	case TextFormat:
		return "txt"
	}
	return ""
}

func (f Format) String() string {
	switch f {
	case JSONFormat:
		return "json"
	case YAMLFormat:
		return "yaml"
	case TextFormat:
		return "text"
	}
	return "invalid"
}

// Writer renders reports to an io.Writer in one format.
type Writer struct {
	writer io.Writer
	format Format
}

func NewWriter(w io.Writer, f Format) *Writer {
	return &Writer{
		writer: w,
		format: f,
	}
}

func (w *Writer) Write(r *Report) error {
	switch w.format {
	case JSONFormat:
		enc := json.NewEncoder(w.writer)
		enc.SetIndent("", "  ")
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encode json report: %w", err)
		}
	case YAMLFormat:
		yml, err := yaml.Marshal(r)
		if err != nil {
			return fmt.Errorf("encode yaml report: %w", err)
		}
		if _, err := w.writer.Write(yml); err != nil {
			return fmt.Errorf("write yaml report: %w", err)
		}
	case TextFormat:
		if err := writeText(w.writer, r); err != nil {
			return fmt.Errorf("write text report: %w", err)
		}
	default:
		return ErrInvalidFormat
	}
	return nil
}
