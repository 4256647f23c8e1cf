// SPDX-License-Identifier: Apache-2.0

package report

import (
	"encoding/json"
	"fmt"
	"io"

	"golang.org/x/mod/semver"
	"sigs.k8s.io/yaml"
)

// FormatVersion is the version of the serialized report layout. Readers
// accept any report with the same major version.
const FormatVersion = "1.0.0"

// IncompatibleVersionError is returned when reading a report written with a
// different major format version.
type IncompatibleVersionError struct {
	Version string
}

func (e IncompatibleVersionError) Error() string {
	return fmt.Sprintf("report format version %q is not compatible with %q", e.Version, FormatVersion)
}

// Read decodes a JSON or YAML report and checks its format version.
func Read(r io.Reader) (*Report, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading report: %w", err)
	}
	doc, err := yaml.YAMLToJSON(data)
	if err != nil {
		return nil, fmt.Errorf("decoding report: %w", err)
	}

	var rep Report
	if err := json.Unmarshal(doc, &rep); err != nil {
		return nil, fmt.Errorf("decoding report: %w", err)
	}
	if !compatible(rep.FormatVersion) {
		return nil, IncompatibleVersionError{Version: rep.FormatVersion}
	}
	return &rep, nil
}

func compatible(version string) bool {
	v := ensureVPrefix(version)
	if !semver.IsValid(v) {
		return false
	}
	return semver.Major(v) == semver.Major(ensureVPrefix(FormatVersion))
}

// Ensure that the given version string starts with 'v' as required by
// golang.org/x/mod/semver
func ensureVPrefix(version string) string {
	if len(version) > 0 && version[0] != 'v' {
		return "v" + version
	}
	return version
}
