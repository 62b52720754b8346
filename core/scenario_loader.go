package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/signalsfoundry/airtraffic-sim/model"
)

// LoadSimulation decodes one simulation definition from r. It checks JSON
// syntax only; structural checks belong to ValidateConfig.
func LoadSimulation(r io.Reader) (*model.SimulationConfig, error) {
	if r == nil {
		return nil, fmt.Errorf("LoadSimulation: reader is nil")
	}

	var cfg model.SimulationConfig
	dec := json.NewDecoder(r)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("LoadSimulation: decode failed: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("LoadSimulation: unexpected data after simulation definition")
	}
	return &cfg, nil
}

// EncodeSimulation writes cfg as indented JSON.
func EncodeSimulation(w io.Writer, cfg *model.SimulationConfig) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("EncodeSimulation: %w", err)
	}
	return nil
}
