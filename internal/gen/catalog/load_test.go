package catalog

import (
	"encoding/json"
	"errors"
	"math/rand"
	"strings"
	"testing"

	"mapforge.dev/internal/gen/ident"
	"mapforge.dev/internal/gen/mapgen"
	"mapforge.dev/internal/gen/tile"
)

func loadTestdata(t *testing.T) *Catalog {
	t.Helper()
	c, err := Load("testdata/data")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return c
}

func TestLoadRegistersDefinitions(t *testing.T) {
	c := loadTestdata(t)

	if len(c.Digests) != 2 {
		t.Fatalf("got %d digests, want 2 files", len(c.Digests))
	}
	for name, d := range c.Digests {
		if len(d) != 64 {
			t.Fatalf("digest of %s is %q, want sha256 hex", name, d)
		}
	}

	for _, id := range []ident.ID{"t_grass", "t_dirt", "t_wall", "t_floor", "t_door_c", "t_door_o"} {
		if _, ok := c.Terrain[id]; !ok {
			t.Fatalf("terrain %q not loaded", id)
		}
	}
	if _, ok := c.Furniture["f_table"]; !ok {
		t.Fatalf("furniture not loaded")
	}
	if _, ok := c.Fields["fd_smoke"]; !ok {
		t.Fatalf("field type not loaded")
	}
	if _, ok := c.VehicleParts["vp_frame"]; !ok {
		t.Fatalf("vehicle part not loaded")
	}
	if _, ok := c.Vehicles["wagon"]; !ok {
		t.Fatalf("vehicle not loaded")
	}
	if _, ok := c.NestedMaps["shed"]; !ok {
		t.Fatalf("nested mapgen not loaded")
	}
	if p, ok := c.Palettes["cabin_pal"]; !ok || len(p.Parameters) != 1 {
		t.Fatalf("palette not loaded with its parameter: %+v", p)
	}
}

func TestFlagImpliedConnectivity(t *testing.T) {
	c := loadTestdata(t)

	wallGroups := c.ConnectGroups("t_wall", tile.LayerTerrain)
	if _, ok := wallGroups["WALL"]; !ok {
		t.Fatalf("WALL flag did not imply the WALL group: %v", wallGroups)
	}
	wallTo := c.ConnectsTo("t_wall", tile.LayerTerrain)
	if _, ok := wallTo["WALL"]; !ok {
		t.Fatalf("WALL flag did not imply connects_to WALL: %v", wallTo)
	}
	floorGroups := c.ConnectGroups("t_floor", tile.LayerTerrain)
	if _, ok := floorGroups["INDOORFLOOR"]; !ok {
		t.Fatalf("INDOORS flag did not imply INDOORFLOOR: %v", floorGroups)
	}
	if got := c.ConnectGroups("t_grass", tile.LayerTerrain); len(got) != 0 {
		t.Fatalf("plain terrain has groups %v", got)
	}
}

func TestForOmTerrain(t *testing.T) {
	c := loadTestdata(t)
	rng := rand.New(rand.NewSource(1))

	tpl, err := c.ForOmTerrain("cabin", rng)
	if err != nil {
		t.Fatalf("cabin: %v", err)
	}
	if tpl.Weight != 200 || tpl.Width != 2 {
		t.Fatalf("cabin template %+v", tpl)
	}

	// The shared-name form registers the same map under every name.
	for _, name := range []ident.ID{"field", "meadow"} {
		if _, err := c.ForOmTerrain(name, rng); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
	}

	_, err = c.ForOmTerrain("nowhere", rng)
	var mp *mapgen.MissingPredecessorError
	if !errors.As(err, &mp) || mp.Stage != mapgen.PredecessorStageTerrain {
		t.Fatalf("unknown overmap terrain: got %v", err)
	}

	// "lake" exists on the overmap but has no mapgen entry.
	_, err = c.ForOmTerrain("lake", rng)
	if !errors.As(err, &mp) || mp.Stage != mapgen.PredecessorStageMapgen {
		t.Fatalf("terrain without mapgen: got %v", err)
	}
}

func TestMonsterFromGroup(t *testing.T) {
	c := loadTestdata(t)
	rng := rand.New(rand.NewSource(1))

	id, ok := c.MonsterFromGroup("GROUP_ZOMBIE", rng)
	if !ok || id != "mon_zombie" {
		t.Fatalf("got %q/%v, want mon_zombie", id, ok)
	}
	if _, ok := c.MonsterFromGroup("GROUP_GONE", rng); ok {
		t.Fatalf("unknown group reported ok")
	}
}

func TestMonsterGroupClampsNonPositiveWeights(t *testing.T) {
	var raw monsterGroupJSON
	data := []byte(`{
		"id": "GROUP_BROKEN",
		"monsters": [
			{"monster": "mon_rat", "weight": -5},
			{"monster": "mon_dog", "freq": -1}
		]
	}`)
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	g, err := raw.group()
	if err != nil {
		t.Fatalf("group: %v", err)
	}
	for _, m := range g.Monsters {
		if m.Weight != 1 {
			t.Fatalf("entry %q kept weight %d", m.ID, m.Weight)
		}
	}

	c := New()
	c.MonsterGroups[g.ID] = g
	rng := rand.New(rand.NewSource(1))
	id, ok := c.MonsterFromGroup("GROUP_BROKEN", rng)
	if !ok || (id != "mon_rat" && id != "mon_dog") {
		t.Fatalf("draw from clamped group: got %q/%v", id, ok)
	}
}

func TestReplaceRegion(t *testing.T) {
	c := loadTestdata(t)
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 50; i++ {
		got := c.ReplaceRegion("t_region_grass", rng)
		if got != "t_grass" && got != "t_dirt" {
			t.Fatalf("replacement drew %q", got)
		}
	}
	if got := c.ReplaceRegion("t_wall", rng); got != "t_wall" {
		t.Fatalf("non-region id rewritten to %q", got)
	}
	if got := c.ReplaceRegion("t_region_unknown", rng); got != "t_region_unknown" {
		t.Fatalf("unlisted region id rewritten to %q", got)
	}
}

func TestLooksLikeAndAppearance(t *testing.T) {
	c := loadTestdata(t)

	if ll, ok := c.LooksLike("t_door_c"); !ok || ll != "t_door_metal_c" {
		t.Fatalf("looks_like: got %q/%v", ll, ok)
	}
	if _, ok := c.LooksLike("t_grass"); ok {
		t.Fatalf("terrain without looks_like reported one")
	}
	sym, color, ok := c.Appearance("f_table")
	if !ok || sym != "T" || color != "brown" {
		t.Fatalf("appearance: got %q %q %v", sym, color, ok)
	}
}

func TestCarveChunkSplitsGridAndRules(t *testing.T) {
	rows := make([]string, ChunkHeight)
	for i := range rows {
		rows[i] = strings.Repeat("a", ChunkWidth) + strings.Repeat("b", ChunkWidth)
	}
	whole := &mapgen.Template{Weight: 100}
	if err := whole.SetCells(rows); err != nil {
		t.Fatalf("set cells: %v", err)
	}
	whole.Place = []mapgen.PlaceRule{
		{Kind: mapgen.PlaceToilet, X: mapgen.Range{From: 3, To: 3}, Y: mapgen.Range{From: 5, To: 5}},
		{Kind: mapgen.PlaceToilet, X: mapgen.Range{From: 30, To: 30}, Y: mapgen.Range{From: 5, To: 5}},
	}

	left, err := carveChunk(whole, "left", 0, 0)
	if err != nil {
		t.Fatalf("left chunk: %v", err)
	}
	right, err := carveChunk(whole, "right", 1, 0)
	if err != nil {
		t.Fatalf("right chunk: %v", err)
	}

	if left.Width != ChunkWidth || left.Height != ChunkHeight {
		t.Fatalf("left chunk is %dx%d", left.Width, left.Height)
	}
	if left.Cell(0, 0) != 'a' || right.Cell(0, 0) != 'b' {
		t.Fatalf("chunk grids not split: %q %q", left.Cell(0, 0), right.Cell(0, 0))
	}

	// Each chunk keeps only the rule inside its footprint, remapped.
	if len(left.Place) != 1 || left.Place[0].X.From != 3 {
		t.Fatalf("left rules: %+v", left.Place)
	}
	if len(right.Place) != 1 || right.Place[0].X.From != 6 {
		t.Fatalf("right rules: %+v", right.Place)
	}

	if _, err := carveChunk(whole, "off", 0, 1); err == nil {
		t.Fatalf("chunk outside the rows accepted")
	}
}
