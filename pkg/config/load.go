// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"sigs.k8s.io/yaml"
)

//go:embed schema.json
var schemaJSON []byte

const schemaURL = "https://raw.githubusercontent.com/xataio/hwbench/main/pkg/config/schema.json"

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, doc); err != nil {
		return nil, err
	}
	return c.Compile(schemaURL)
})

// Schema returns the JSON Schema configuration documents are checked against.
func Schema() []byte {
	return bytes.Clone(schemaJSON)
}

// Load reads a YAML or JSON configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading configuration: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML or JSON configuration document, checks it against
// the schema and validates the result. Fields the document omits take their
// defaults; a preset without an explicit duration sets the duration.
func Parse(data []byte) (*Config, error) {
	doc, err := yaml.YAMLToJSON(data)
	if err != nil {
		return nil, InvalidConfigError{Reason: fmt.Sprintf("malformed document: %s", err)}
	}
	if err := CheckSchema(doc); err != nil {
		return nil, err
	}

	cfg := Default()
	cfg.Duration = 0
	cfg.Preset = ""
	if err := json.Unmarshal(doc, cfg); err != nil {
		return nil, InvalidConfigError{Reason: err.Error()}
	}

	if cfg.Duration == 0 {
		preset := cfg.Preset
		if preset == "" {
			preset = DefaultPreset
		}
		if err := cfg.ApplyPreset(preset); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// CheckSchema validates a JSON document against the configuration schema.
func CheckSchema(doc []byte) error {
	sch, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compiling configuration schema: %w", err)
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(doc))
	if err != nil {
		return InvalidConfigError{Reason: fmt.Sprintf("malformed document: %s", err)}
	}
	if err := sch.Validate(inst); err != nil {
		return InvalidConfigError{Reason: err.Error()}
	}
	return nil
}

// Write stores c as YAML.
func (c *Config) Write(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
