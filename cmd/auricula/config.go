package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors the command line flags for YAML-based station profiles.
// Flags given explicitly on the command line win over the file.
type fileConfig struct {
	Frequency  float64 `yaml:"frequency_hz"`
	InputRate  float64 `yaml:"input_sample_rate_hz"`
	Deviation  float64 `yaml:"fm_deviation_hz"`
	Deemphasis int     `yaml:"deemphasis_us"`
	AudioRate  int     `yaml:"audio_sample_rate_hz"`
	BlockSize  int     `yaml:"block_size"`
	Gain       int     `yaml:"gain_tenth_db"`
}

func loadFileConfig(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path) //nolint:gosec // CLI tool reads a user-specified profile
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := &fileConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}
