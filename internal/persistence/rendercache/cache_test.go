package rendercache

import (
	"path/filepath"
	"testing"

	"mapforge.dev/internal/gen/render"
	"mapforge.dev/internal/gen/tile"
)

func sampleResult() *render.Result {
	buf := render.NewBuffer(2, 1)
	buf.Apply([]tile.Command{
		{Layer: tile.LayerTerrain, X: 0, Y: 0, Sheet: tile.Sheet("t_grass")},
		{Layer: tile.LayerFurniture, X: 1, Y: 0, Sheet: tile.SheetID{ID: "vp_door", Postfix: "left"}, Rotation: tile.Deg90},
	})
	return &render.Result{
		Map:    "cabin",
		Seed:   7,
		Buffer: buf,
		Sprites: []render.SpritePlacement{
			{X: 0, Y: 0, Layer: tile.LayerTerrain, Index: 40},
		},
	}
}

func TestCacheRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	c, err := Open(path, "digest-1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	key := Key{Map: "cabin", Seed: 7, Rotation: tile.Deg0}
	c.Put(key, sampleResult())
	c.Flush()

	entry, ok, err := c.Get(key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatalf("expected a hit")
	}
	if entry.Map != "cabin" || entry.Seed != 7 {
		t.Fatalf("entry %+v", entry)
	}
	got := entry.Buffer.At(1, 0).Furniture
	if got == nil || got.Sheet.Full() != "vp_door#left" || got.Rotation != tile.Deg90 {
		t.Fatalf("furniture %+v, want vp_door#left at 90", got)
	}
	if len(entry.Sprites) != 1 || entry.Sprites[0].Index != 40 {
		t.Fatalf("sprites %+v", entry.Sprites)
	}
}

func TestCacheKeysSplitByZLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	c, err := Open(path, "digest-1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	ground := sampleResult()
	basement := sampleResult()
	basement.Z = -1

	c.Put(Key{Map: "cabin", Z: 0, Seed: 7}, ground)
	c.Put(Key{Map: "cabin", Z: -1, Seed: 7}, basement)
	c.Flush()

	entry, ok, err := c.Get(Key{Map: "cabin", Z: -1, Seed: 7})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok || entry.Z != -1 {
		t.Fatalf("basement entry %+v / %v", entry, ok)
	}
	if entry, ok, _ = c.Get(Key{Map: "cabin", Z: 0, Seed: 7}); !ok || entry.Z != 0 {
		t.Fatalf("ground entry %+v / %v", entry, ok)
	}
	if _, ok, _ = c.Get(Key{Map: "cabin", Z: 2, Seed: 7}); ok {
		t.Fatalf("unpopulated z-level reported a hit")
	}
}

func TestCacheMiss(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	c, err := Open(path, "digest-1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	_, ok, err := c.Get(Key{Map: "nowhere", Seed: 1})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatalf("expected a miss")
	}
}

func TestDigestChangePurges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	c, err := Open(path, "digest-1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	key := Key{Map: "cabin", Seed: 7}
	c.Put(key, sampleResult())
	c.Flush()
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Same digest keeps the row.
	c, err = Open(path, "digest-1")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if _, ok, _ := c.Get(key); !ok {
		t.Fatalf("expected the entry to survive a same-digest reopen")
	}
	_ = c.Close()

	// New digest invalidates everything.
	c, err = Open(path, "digest-2")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer c.Close()
	if _, ok, _ := c.Get(key); ok {
		t.Fatalf("expected the cache purged on digest change")
	}
}
