// Package config loads the optional YAML configuration file. Command-line
// flags are applied on top by the cli package; the environment is never read.
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"lambdahash/internal/core"
	"lambdahash/internal/packaging"
	"lambdahash/internal/platform/logger"
)

// File is the on-disk configuration.
type File struct {
	Log       LogSection       `yaml:"log"`
	Hash      HashSection      `yaml:"hash"`
	Artifacts ArtifactsSection `yaml:"artifacts"`
	Package   packaging.Config `yaml:"package"`
}

// LogSection configures the stderr logger.
type LogSection struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// HashSection selects the digest algorithm.
type HashSection struct {
	Algorithm string `yaml:"algorithm"`
}

// ArtifactsSection configures identity resolution.
type ArtifactsSection struct {
	// Strict turns more than one matching artifact into an error.
	Strict bool `yaml:"strict"`
}

// Default returns the configuration used when no file is given.
func Default() File {
	return File{
		Log: LogSection{
			Level:  logger.DefaultLevel,
			Format: logger.FormatJSON,
		},
		Hash: HashSection{
			Algorithm: string(core.DefaultAlgorithm),
		},
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (File, error) {
	cfg := Default()

	cleanPath := filepath.Clean(path)
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := decode(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", cleanPath, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config file %s: %w", cleanPath, err)
	}
	return cfg, nil
}

// decode unmarshals data into cfg, rejecting unknown keys. An empty document
// leaves cfg unchanged.
func decode(data []byte, cfg *File) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return err
	}
	return nil
}

// Validate rejects unknown algorithm, log level, or log format values. The
// package section is validated by the packaging pipeline when it runs.
func (f File) Validate() error {
	if _, err := core.ParseAlgorithm(f.Hash.Algorithm); err != nil {
		return fmt.Errorf("hash.algorithm: %w", err)
	}
	if err := logger.ValidLevel(f.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if err := logger.ValidFormat(f.Log.Format); err != nil {
		return fmt.Errorf("log.format: %w", err)
	}
	return nil
}

// Algorithm returns the parsed digest algorithm.
func (f File) Algorithm() core.Algorithm {
	alg, err := core.ParseAlgorithm(f.Hash.Algorithm)
	if err != nil {
		return core.DefaultAlgorithm
	}
	return alg
}
