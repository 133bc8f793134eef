package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	src := `
[database]
checkpoint = "world.db"
checkpoint-interval-seconds = 60

[limits]
fg-ticks = 60000
`
	if err := os.WriteFile(filepath.Join(dir, "moot.toml"), []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if c.Database.Checkpoint != "world.db" {
		t.Errorf("checkpoint = %q", c.Database.Checkpoint)
	}
	if c.Database.CheckpointInterval != 60 {
		t.Errorf("interval = %d", c.Database.CheckpointInterval)
	}
	if c.Limits.FgTicks != 60000 {
		t.Errorf("fg-ticks = %d", c.Limits.FgTicks)
	}
	// Unset fields pick up defaults.
	if c.Limits.BgTicks != 15000 {
		t.Errorf("bg-ticks = %d, want default", c.Limits.BgTicks)
	}
	if c.Database.Tasks != "tasks.db" {
		t.Errorf("tasks = %q, want default", c.Database.Tasks)
	}
	if got := c.CheckpointPath(); got != filepath.Join(c.Dir, "world.db") {
		t.Errorf("CheckpointPath = %q", got)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Fatal("expected an error for a missing moot.toml")
	}
}

func TestLoadBadToml(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "moot.toml"), []byte("[[[["), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatal("expected a parse error")
	}
}
