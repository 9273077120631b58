// Package loader reads simulation scenarios from disk.
//
// Two formats are supported. A scenario file (JSON or YAML, selected by
// extension) holds an engine.SimulationInput directly. A SUMO configuration
// (.sumocfg) points to a net file and route files, which are converted into
// the same SimulationInput so that both paths build the network identically.
package loader

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/cxd309/roadsim/internal/engine"
)

// isYAML reports whether path names a YAML file.
func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// ReadScenario decodes the scenario at path. A missing simulation id is
// replaced by a random one.
func ReadScenario(path string) (engine.SimulationInput, error) {
	var input engine.SimulationInput
	data, err := os.ReadFile(path)
	if err != nil {
		return input, fmt.Errorf("reading scenario: %w", err)
	}
	if isYAML(path) {
		err = yaml.Unmarshal(data, &input)
	} else {
		err = json.Unmarshal(data, &input)
	}
	if err != nil {
		return input, fmt.Errorf("parsing scenario %q: %w", path, err)
	}
	if input.Meta.SimulationID == "" {
		input.Meta.SimulationID = uuid.NewString()
	}
	return input, nil
}

// WriteScenario stores input at path, as YAML or indented JSON depending on
// the extension.
func WriteScenario(path string, input engine.SimulationInput) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(input)
	} else {
		data, err = json.MarshalIndent(input, "", "\t")
	}
	if err != nil {
		return fmt.Errorf("encoding scenario: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing scenario: %w", err)
	}
	return nil
}
