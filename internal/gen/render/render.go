// Package render drives the full pipeline for one map: template lookup,
// predecessor chaining, command folding, region replacement, autotiling
// and sprite selection.
package render

import (
	"fmt"
	"math/rand"

	"mapforge.dev/internal/gen/autotile"
	"mapforge.dev/internal/gen/catalog"
	"mapforge.dev/internal/gen/expr"
	"mapforge.dev/internal/gen/ident"
	"mapforge.dev/internal/gen/mapgen"
	"mapforge.dev/internal/gen/tile"
	"mapforge.dev/internal/gen/tilesheet"
)

// Request asks for one map to be resolved. Z tags the result with the
// requested z-level; generation itself works on a single flat level.
type Request struct {
	Map       ident.ID
	Z         int
	Seed      int64
	Rotation  tile.Rotation
	Neighbors mapgen.Neighbors
}

// SpritePlacement is one drawable sprite in the rendered map.
type SpritePlacement struct {
	X        int           `json:"x"`
	Y        int           `json:"y"`
	Layer    tile.Layer    `json:"layer"`
	Index    int           `json:"index"`
	Rotation tile.Rotation `json:"rotation"`
	Sheet    string        `json:"sheet_id"`
}

// Result is a resolved (and optionally sprited) map.
type Result struct {
	Map      ident.ID
	Z        int
	Seed     int64
	Buffer   *Buffer
	Warnings []mapgen.Warning
	Sprites  []SpritePlacement
}

// Renderer resolves requests against a catalogue and, when a selector is
// set, emits sprite placements. It is stateless across requests and safe
// for concurrent use; each request gets its own generator from the seed.
type Renderer struct {
	Cat      *catalog.Catalog
	Selector *tilesheet.Selector
}

// Resolve runs the request through the pipeline.
func (r *Renderer) Resolve(req Request) (*Result, error) {
	rng := rand.New(rand.NewSource(req.Seed))
	resolver := mapgen.New(r.Cat, rng, req.Neighbors)

	tpl, err := r.templateFor(req.Map, rng)
	if err != nil {
		return nil, err
	}
	buf := NewBuffer(tpl.Width, tpl.Height)
	if err := r.resolveInto(buf, resolver, rng, tpl, req.Rotation, map[ident.ID]bool{}); err != nil {
		return nil, fmt.Errorf("map %q: %w", req.Map, err)
	}
	r.replaceRegions(buf, rng)

	res := &Result{Map: req.Map, Z: req.Z, Seed: req.Seed, Buffer: buf, Warnings: resolver.Warnings()}
	if r.Selector != nil {
		res.Sprites = r.spritePass(buf, rng)
	}
	return res, nil
}

// Params builds only the parameter environment of the map's mapgen entry,
// drawing distribution-valued defaults from the seed without folding any
// cells.
func (r *Renderer) Params(m ident.ID, seed int64) (expr.Env, error) {
	rng := rand.New(rand.NewSource(seed))
	tpl, err := r.templateFor(m, rng)
	if err != nil {
		return nil, err
	}
	resolver := mapgen.New(r.Cat, rng, nil)
	return resolver.Environment(&tpl.Body)
}

// templateFor looks the requested id up as an overmap terrain first and
// falls back to the nested and update entries, which clients may request
// directly by their mapgen id. Predecessor chains stay overmap-only.
func (r *Renderer) templateFor(m ident.ID, rng *rand.Rand) (*mapgen.Template, error) {
	tpl, err := r.Cat.ForOmTerrain(m, rng)
	if err == nil {
		return tpl, nil
	}
	if t, ok := r.Cat.Nested(m); ok {
		return t, nil
	}
	return nil, err
}

// resolveInto applies a template and, first, its predecessor chain into the
// shared buffer. Predecessors draw underneath: the chain is resolved
// bottom-up and each layer's commands overwrite the previous ones, while
// null cells leave the underlying result visible.
func (r *Renderer) resolveInto(buf *Buffer, resolver *mapgen.Resolver, rng *rand.Rand, tpl *mapgen.Template, rot tile.Rotation, visited map[ident.ID]bool) error {
	if tpl.Predecessor != "" {
		if visited[tpl.Predecessor] {
			return &mapgen.CyclicReferenceError{Kind: "predecessor", ID: tpl.Predecessor}
		}
		visited[tpl.Predecessor] = true
		pred, err := r.Cat.ForOmTerrain(tpl.Predecessor, rng)
		if err != nil {
			return err
		}
		if err := r.resolveInto(buf, resolver, rng, pred, rot, visited); err != nil {
			return err
		}
	}

	m, err := resolver.ResolveMap(tpl, rot)
	if err != nil {
		return err
	}
	buf.Apply(m.Commands)
	if m.Fill != nil {
		buf.Fill(tile.ResolvedID{Sheet: tile.Sheet(*m.Fill), Rotation: rot})
	}
	return nil
}

// replaceRegions rewrites t_region_* placeholders left in the buffer
// through the region settings tables.
func (r *Renderer) replaceRegions(buf *Buffer, rng *rand.Rand) {
	for y := 0; y < buf.Height; y++ {
		for x := 0; x < buf.Width; x++ {
			cell := buf.At(x, y)
			for _, layer := range []tile.Layer{tile.LayerTerrain, tile.LayerFurniture} {
				id := cell.Get(layer)
				if id == nil {
					continue
				}
				if replaced := r.Cat.ReplaceRegion(id.Sheet.ID, rng); replaced != id.Sheet.ID {
					id.Sheet.ID = replaced
				}
			}
		}
	}
}

// spritePass classifies every populated layer against its neighbors and
// selects sprites. Cells whose id cannot be drawn at all are skipped.
func (r *Renderer) spritePass(buf *Buffer, rng *rand.Rand) []SpritePlacement {
	var out []SpritePlacement
	for y := 0; y < buf.Height; y++ {
		for x := 0; x < buf.Width; x++ {
			cell := buf.At(x, y)
			for _, layer := range cell.Layers() {
				res := cell.Get(layer)
				hood := autotile.Neighborhood{
					North: sheetID(buf.idAt(x, y-1, layer)),
					East:  sheetID(buf.idAt(x+1, y, layer)),
					South: sheetID(buf.idAt(x, y+1, layer)),
					West:  sheetID(buf.idAt(x-1, y, layer)),
				}
				cat, dir := autotile.Select(r.Cat, layer, res.Sheet.ID, hood)
				pick, ok := r.Selector.Select(*res, cat, dir, rng)
				if !ok {
					continue
				}
				out = append(out, SpritePlacement{
					X: x, Y: y,
					Layer:    layer,
					Index:    pick.Index,
					Rotation: pick.Rotation,
					Sheet:    res.Sheet.Full(),
				})
			}
		}
	}
	return out
}

func sheetID(res *tile.ResolvedID) *ident.ID {
	if res == nil {
		return nil
	}
	return &res.Sheet.ID
}
