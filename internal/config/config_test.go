package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	err := os.WriteFile(path, []byte(`
listen_addr: ":9090"
data_dir: /srv/mapforge/data
tilesheet_path: /srv/mapforge/tiles/tile_config.json
cache_path: /srv/mapforge/cache.db
workers: 2
`), 0o644)
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.ListenAddr != ":9090" || c.DataDir != "/srv/mapforge/data" {
		t.Fatalf("config %+v", c)
	}
	if c.Workers != 2 {
		t.Fatalf("workers %d, want 2", c.Workers)
	}
	// Defaults fill what the file leaves out.
	if c.MaxPending != 8 {
		t.Fatalf("max_pending %d, want default 8", c.MaxPending)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected an error for a missing file")
	}
}
