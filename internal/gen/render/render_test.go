package render

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"mapforge.dev/internal/gen/catalog"
	"mapforge.dev/internal/gen/ident"
	"mapforge.dev/internal/gen/mapgen"
	"mapforge.dev/internal/gen/tile"
	"mapforge.dev/internal/gen/tilesheet"
)

func template(t *testing.T, id ident.ID, object string) *mapgen.Template {
	t.Helper()
	tpl := &mapgen.Template{ID: id, Weight: 100}
	if err := tpl.DecodeObject(json.RawMessage(object)); err != nil {
		t.Fatalf("template %s: %v", id, err)
	}
	return tpl
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c := catalog.New()
	c.RegisterTemplate("field", template(t, "field", `{
		"fill_ter": "t_grass",
		"rows": ["..", ".."]
	}`))
	c.RegisterTemplate("cabin", template(t, "cabin", `{
		"predecessor_mapgen": "field",
		"rows": [
			"#.",
			"n."
		],
		"terrain": {"#": "t_wall", "n": "t_null", ".": "t_floor"}
	}`))
	return c
}

func TestPredecessorOverlay(t *testing.T) {
	r := &Renderer{Cat: testCatalog(t)}
	res, err := r.Resolve(Request{Map: "cabin", Seed: 3})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	buf := res.Buffer

	if got := buf.At(0, 0).Terrain; got == nil || got.Sheet.ID != "t_wall" {
		t.Fatalf("(0,0) terrain %+v, want t_wall over the predecessor", got)
	}
	// The null cell keeps what the predecessor generated underneath.
	if got := buf.At(0, 1).Terrain; got == nil || got.Sheet.ID != "t_grass" {
		t.Fatalf("(0,1) terrain %+v, want predecessor t_grass", got)
	}
	if got := buf.At(1, 1).Terrain; got == nil || got.Sheet.ID != "t_floor" {
		t.Fatalf("(1,1) terrain %+v, want t_floor", got)
	}
}

func TestMissingPredecessorIsFatal(t *testing.T) {
	c := catalog.New()
	c.RegisterTemplate("cabin", template(t, "cabin", `{
		"predecessor_mapgen": "gone",
		"rows": ["."],
		"terrain": {".": "t_floor"}
	}`))
	r := &Renderer{Cat: c}
	_, err := r.Resolve(Request{Map: "cabin", Seed: 1})
	var mp *mapgen.MissingPredecessorError
	if !errors.As(err, &mp) || mp.OmTerrain != "gone" {
		t.Fatalf("got %v, want MissingPredecessorError for gone", err)
	}
}

func TestResolveNestedMapgenByID(t *testing.T) {
	c := catalog.New()
	c.NestedMaps["shed_1x1"] = template(t, "shed_1x1", `{
		"rows": ["#"],
		"terrain": {"#": "t_wall"}
	}`)
	r := &Renderer{Cat: c}

	res, err := r.Resolve(Request{Map: "shed_1x1", Seed: 1})
	if err != nil {
		t.Fatalf("resolve nested entry: %v", err)
	}
	if got := res.Buffer.At(0, 0).Terrain; got == nil || got.Sheet.ID != "t_wall" {
		t.Fatalf("(0,0) terrain %+v, want t_wall", got)
	}

	// Overmap entries still win over a nested entry with the same id.
	c.RegisterTemplate("shed_1x1", template(t, "shed_1x1", `{
		"rows": ["."],
		"terrain": {".": "t_floor"}
	}`))
	res, err = r.Resolve(Request{Map: "shed_1x1", Seed: 1})
	if err != nil {
		t.Fatalf("resolve overmap entry: %v", err)
	}
	if got := res.Buffer.At(0, 0).Terrain.Sheet.ID; got != "t_floor" {
		t.Fatalf("(0,0) = %q, want the overmap entry's t_floor", got)
	}
}

func TestFillCoversOnlyEmptyCells(t *testing.T) {
	c := catalog.New()
	c.RegisterTemplate("patch", template(t, "patch", `{
		"fill_ter": "t_dirt",
		"rows": ["g."],
		"terrain": {"g": "t_grass"}
	}`))
	r := &Renderer{Cat: c}
	res, err := r.Resolve(Request{Map: "patch", Seed: 1})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got := res.Buffer.At(0, 0).Terrain.Sheet.ID; got != "t_grass" {
		t.Fatalf("(0,0) = %q, want authored t_grass", got)
	}
	if got := res.Buffer.At(1, 0).Terrain.Sheet.ID; got != "t_dirt" {
		t.Fatalf("(1,0) = %q, want fill t_dirt", got)
	}
}

func TestRegionReplacement(t *testing.T) {
	c := catalog.New()
	c.Regions = &catalog.RegionSettings{
		Terrain: map[ident.ID][]catalog.WeightedID{
			"t_region_groundcover": {{ID: "t_grass", Weight: 1}},
		},
	}
	c.RegisterTemplate("meadow", template(t, "meadow", `{
		"rows": ["r"],
		"terrain": {"r": "t_region_groundcover"}
	}`))
	r := &Renderer{Cat: c}
	res, err := r.Resolve(Request{Map: "meadow", Seed: 1})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got := res.Buffer.At(0, 0).Terrain.Sheet.ID; got != "t_grass" {
		t.Fatalf("placeholder resolved to %q, want t_grass", got)
	}
}

func TestSpritePassEndToEnd(t *testing.T) {
	sheet, err := tilesheet.Load("../tilesheet/testdata/tile_config.json")
	if err != nil {
		t.Fatalf("load tilesheet: %v", err)
	}
	c := catalog.New()
	c.RegisterTemplate("yard", template(t, "yard", `{
		"rows": ["g"],
		"terrain": {"g": "t_grass"}
	}`))
	r := &Renderer{Cat: c, Selector: &tilesheet.Selector{Sheet: sheet, App: c}}
	res, err := r.Resolve(Request{Map: "yard", Seed: 9})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(res.Sprites) != 1 {
		t.Fatalf("got %d sprites, want 1", len(res.Sprites))
	}
	sp := res.Sprites[0]
	if sp.Index != 40 && sp.Index != 41 {
		t.Fatalf("sprite index %d, want a t_grass variant", sp.Index)
	}
	if sp.Layer != tile.LayerTerrain || sp.Sheet != "t_grass" {
		t.Fatalf("sprite %+v", sp)
	}
}

func TestSeededResolutionIsReproducible(t *testing.T) {
	c := catalog.New()
	c.RegisterTemplate("lot", template(t, "lot", `{
		"rows": ["dd"],
		"terrain": {"d": ["t_grass", "t_dirt", "t_sand"]}
	}`))
	r := &Renderer{Cat: c}

	first, err := r.Resolve(Request{Map: "lot", Seed: 42})
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := r.Resolve(Request{Map: "lot", Seed: 42})
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	for x := 0; x < 2; x++ {
		a, b := first.Buffer.At(x, 0).Terrain, second.Buffer.At(x, 0).Terrain
		if !reflect.DeepEqual(a, b) {
			t.Fatalf("cell %d differs across identical seeds: %+v vs %+v", x, a, b)
		}
	}
}

func TestPoolResolvesAllInOrder(t *testing.T) {
	c := testCatalog(t)
	p := &Pool{Renderer: &Renderer{Cat: c}, Workers: 4}

	reqs := []Request{
		{Map: "field", Seed: 1},
		{Map: "cabin", Seed: 2},
		{Map: "field", Seed: 3},
	}
	results, err := p.ResolveAll(context.Background(), reqs)
	if err != nil {
		t.Fatalf("resolve all: %v", err)
	}
	for i, res := range results {
		if res == nil || res.Map != reqs[i].Map {
			t.Fatalf("result %d is %+v, want map %s", i, res, reqs[i].Map)
		}
	}
}

func TestPoolJoinsFailures(t *testing.T) {
	c := testCatalog(t)
	p := &Pool{Renderer: &Renderer{Cat: c}, Workers: 2}

	results, err := p.ResolveAll(context.Background(), []Request{
		{Map: "field", Seed: 1},
		{Map: "missing", Seed: 1},
	})
	if err == nil {
		t.Fatalf("missing map did not fail")
	}
	if results[0] == nil {
		t.Fatalf("successful request lost next to a failure")
	}
	if results[1] != nil {
		t.Fatalf("failed request produced a result")
	}
}
