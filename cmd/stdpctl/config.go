package main

import (
	"encoding/json"
	"fmt"
	"os"

	"stdpengine/internal/config"
	"stdpengine/internal/sim"
)

// runConfig is the on-disk shape of a simulation config file.
type runConfig struct {
	Engine     json.RawMessage `json:"engine"`
	Simulation json.RawMessage `json:"simulation"`
}

func loadRunConfig(path string) (config.Engine, sim.Config, error) {
	if path == "" {
		return config.Default(), sim.DefaultConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return config.Engine{}, sim.Config{}, err
	}
	return parseRunConfig(data)
}

func parseRunConfig(data []byte) (config.Engine, sim.Config, error) {
	var raw runConfig
	if err := json.Unmarshal(data, &raw); err != nil {
		return config.Engine{}, sim.Config{}, fmt.Errorf("decode run config: %w", err)
	}

	engine := config.Default()
	if len(raw.Engine) > 0 {
		parsed, err := config.Parse(raw.Engine)
		if err != nil {
			return config.Engine{}, sim.Config{}, err
		}
		engine = parsed
	}

	simCfg := sim.DefaultConfig()
	if len(raw.Simulation) > 0 {
		if err := json.Unmarshal(raw.Simulation, &simCfg); err != nil {
			return config.Engine{}, sim.Config{}, fmt.Errorf("decode simulation config: %w", err)
		}
	}
	return engine, simCfg, nil
}
