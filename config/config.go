// Package config handles moot.toml server configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the server's moot.toml configuration.
type Config struct {
	Database Database `toml:"database"`
	Limits   Limits   `toml:"limits"`

	// Dir is the directory containing the moot.toml file (set at load time).
	Dir string `toml:"-"`
}

// Database configures persistence paths and the checkpoint cadence.
type Database struct {
	Checkpoint         string `toml:"checkpoint"`
	Tasks              string `toml:"tasks"`
	CheckpointInterval int    `toml:"checkpoint-interval-seconds"`
}

// Limits bounds task execution.
type Limits struct {
	FgTicks    int     `toml:"fg-ticks"`
	BgTicks    int     `toml:"bg-ticks"`
	FgSeconds  float64 `toml:"fg-seconds"`
	BgSeconds  float64 `toml:"bg-seconds"`
	SliceTicks int     `toml:"slice-ticks"`
	MaxDepth   int     `toml:"max-depth"`
}

// Default returns the configuration used when no moot.toml exists.
func Default() *Config {
	return &Config{
		Database: Database{
			Checkpoint:         "moot.db",
			Tasks:              "tasks.db",
			CheckpointInterval: 300,
		},
		Limits: Limits{
			FgTicks:    30000,
			BgTicks:    15000,
			FgSeconds:  5,
			BgSeconds:  3,
			SliceTicks: 2000,
			MaxDepth:   50,
		},
	}
}

// Load parses a moot.toml file from the given directory, filling in
// defaults for anything unset.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, "moot.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	c := Default()
	if err := toml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	c.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	applyDefaults(c)
	return c, nil
}

func applyDefaults(c *Config) {
	d := Default()
	if c.Database.Checkpoint == "" {
		c.Database.Checkpoint = d.Database.Checkpoint
	}
	if c.Database.Tasks == "" {
		c.Database.Tasks = d.Database.Tasks
	}
	if c.Database.CheckpointInterval <= 0 {
		c.Database.CheckpointInterval = d.Database.CheckpointInterval
	}
	if c.Limits.FgTicks <= 0 {
		c.Limits.FgTicks = d.Limits.FgTicks
	}
	if c.Limits.BgTicks <= 0 {
		c.Limits.BgTicks = d.Limits.BgTicks
	}
	if c.Limits.FgSeconds <= 0 {
		c.Limits.FgSeconds = d.Limits.FgSeconds
	}
	if c.Limits.BgSeconds <= 0 {
		c.Limits.BgSeconds = d.Limits.BgSeconds
	}
	if c.Limits.SliceTicks <= 0 {
		c.Limits.SliceTicks = d.Limits.SliceTicks
	}
	if c.Limits.MaxDepth <= 0 {
		c.Limits.MaxDepth = d.Limits.MaxDepth
	}
}

// CheckpointPath returns the checkpoint path resolved against Dir.
func (c *Config) CheckpointPath() string {
	return c.resolve(c.Database.Checkpoint)
}

// TasksPath returns the task database path resolved against Dir.
func (c *Config) TasksPath() string {
	return c.resolve(c.Database.Tasks)
}

func (c *Config) resolve(p string) string {
	if filepath.IsAbs(p) || c.Dir == "" {
		return p
	}
	return filepath.Join(c.Dir, p)
}
