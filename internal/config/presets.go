package config

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Preset is one named game-settings template from the presets file. Rooms
// created from a preset skip the raw settings payload.
type Preset struct {
	// Game names the engine factory the preset targets.
	Game string `yaml:"game"`
	// Settings is the engine settings document, passed to the factory
	// as JSON.
	Settings map[string]any `yaml:"settings"`
}

// SettingsJSON renders the preset's settings as the JSON payload the engine
// factory expects.
func (p Preset) SettingsJSON() (json.RawMessage, error) {
	data, err := json.Marshal(p.Settings)
	if err != nil {
		return nil, fmt.Errorf("encoding preset settings: %w", err)
	}
	return data, nil
}

// LoadPresets reads the named presets from a YAML file.
//
// Postcondition: Returns the preset map, which may be empty, or a non-nil
// error if the file cannot be read or parsed.
func LoadPresets(path string) (map[string]Preset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading presets file: %w", err)
	}

	var presets map[string]Preset
	if err := yaml.Unmarshal(data, &presets); err != nil {
		return nil, fmt.Errorf("parsing presets file %s: %w", path, err)
	}

	for name, p := range presets {
		if p.Game == "" {
			return nil, fmt.Errorf("preset %q missing game name", name)
		}
	}
	return presets, nil
}
