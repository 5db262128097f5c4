// Package catalog loads the read-only game data the generation pipeline
// resolves against and serves the lookups the other packages declare.
package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"math/rand"
	"sort"
	"strings"

	"mapforge.dev/internal/gen/ident"
	"mapforge.dev/internal/gen/mapgen"
	"mapforge.dev/internal/gen/tile"
)

// Catalog is the loaded data set. It is immutable after Load and safe for
// concurrent readers.
type Catalog struct {
	Terrain      map[ident.ID]*ObjectDef
	Furniture    map[ident.ID]*ObjectDef
	Fields       map[ident.ID]*ObjectDef
	Monsters     map[ident.ID]*ObjectDef
	VehicleParts map[ident.ID]*ObjectDef

	MonsterGroups map[ident.ID]*MonsterGroup
	Vehicles      map[ident.ID]*mapgen.Vehicle
	Palettes      map[ident.ID]*mapgen.Palette
	NestedMaps    map[ident.ID]*mapgen.Template
	OmTerrains    map[ident.ID]*OvermapTerrainDef
	Regions       *RegionSettings

	// omTemplates indexes mapgen templates by the overmap terrain they
	// generate; multiple weighted candidates may compete for one name.
	omTemplates map[ident.ID][]*mapgen.Template

	// Digests holds the sha256 of every loaded file, keyed by base name.
	Digests map[string]string
}

// New returns an empty catalogue. Load fills one from disk; tools and
// tests may also populate it directly.
func New() *Catalog {
	return &Catalog{
		Terrain:       map[ident.ID]*ObjectDef{},
		Furniture:     map[ident.ID]*ObjectDef{},
		Fields:        map[ident.ID]*ObjectDef{},
		Monsters:      map[ident.ID]*ObjectDef{},
		VehicleParts:  map[ident.ID]*ObjectDef{},
		MonsterGroups: map[ident.ID]*MonsterGroup{},
		Vehicles:      map[ident.ID]*mapgen.Vehicle{},
		Palettes:      map[ident.ID]*mapgen.Palette{},
		NestedMaps:    map[ident.ID]*mapgen.Template{},
		OmTerrains:    map[ident.ID]*OvermapTerrainDef{},
		omTemplates:   map[ident.ID][]*mapgen.Template{},
		Digests:       map[string]string{},
	}
}

// RegisterTemplate binds a mapgen template to an overmap terrain, creating
// the terrain entry when absent.
func (c *Catalog) RegisterTemplate(om ident.ID, tpl *mapgen.Template) {
	if _, ok := c.OmTerrains[om]; !ok {
		c.OmTerrains[om] = &OvermapTerrainDef{ID: om}
	}
	c.omTemplates[om] = append(c.omTemplates[om], tpl)
}

// Digest folds the per-file digests into a single value plus the file
// count, for handshake messages.
func (c *Catalog) Digest() (string, int) {
	names := make([]string, 0, len(c.Digests))
	for n := range c.Digests {
		names = append(names, n)
	}
	sort.Strings(names)
	h := sha256.New()
	for _, n := range names {
		h.Write([]byte(n))
		h.Write([]byte{':'})
		h.Write([]byte(c.Digests[n]))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil)), len(names)
}

// Palette implements mapgen.Catalogue.
func (c *Catalog) Palette(id ident.ID) (*mapgen.Palette, bool) {
	p, ok := c.Palettes[id]
	return p, ok
}

// Nested implements mapgen.Catalogue.
func (c *Catalog) Nested(id ident.ID) (*mapgen.Template, bool) {
	t, ok := c.NestedMaps[id]
	return t, ok
}

// ForOmTerrain implements mapgen.Catalogue: the overmap terrain must exist
// and carry at least one mapgen entry; several entries compete by weight.
func (c *Catalog) ForOmTerrain(om ident.ID, rng *rand.Rand) (*mapgen.Template, error) {
	if _, ok := c.OmTerrains[om]; !ok {
		return nil, &mapgen.MissingPredecessorError{OmTerrain: om, Stage: mapgen.PredecessorStageTerrain}
	}
	candidates := c.omTemplates[om]
	if len(candidates) == 0 {
		return nil, &mapgen.MissingPredecessorError{OmTerrain: om, Stage: mapgen.PredecessorStageMapgen}
	}
	if len(candidates) == 1 {
		return candidates[0], nil
	}
	total := 0
	for _, t := range candidates {
		total += t.Weight
	}
	r := rng.Intn(total)
	for _, t := range candidates {
		if r < t.Weight {
			return t, nil
		}
		r -= t.Weight
	}
	return candidates[len(candidates)-1], nil
}

// MonsterFromGroup implements mapgen.Catalogue.
func (c *Catalog) MonsterFromGroup(group ident.ID, rng *rand.Rand) (ident.ID, bool) {
	g, ok := c.MonsterGroups[group]
	if !ok || len(g.Monsters) == 0 {
		return "", false
	}
	total := 0
	for _, m := range g.Monsters {
		total += m.Weight
	}
	r := rng.Intn(total)
	for _, m := range g.Monsters {
		if r < m.Weight {
			return m.ID, true
		}
		r -= m.Weight
	}
	return g.Monsters[len(g.Monsters)-1].ID, true
}

// Vehicle implements mapgen.Catalogue.
func (c *Catalog) Vehicle(id ident.ID) (*mapgen.Vehicle, bool) {
	v, ok := c.Vehicles[id]
	return v, ok
}

// object finds a definition on the layer an id is drawn on. Vehicle parts
// share the furniture layer with a vp_ prefix.
func (c *Catalog) object(id ident.ID, layer tile.Layer) (*ObjectDef, bool) {
	switch layer {
	case tile.LayerTerrain:
		d, ok := c.Terrain[id]
		return d, ok
	case tile.LayerFurniture:
		if d, ok := c.Furniture[id]; ok {
			return d, ok
		}
		if d, ok := c.Terrain[id]; ok {
			// Pumps and traps collapse onto the furniture layer but stay
			// terrain-defined.
			return d, ok
		}
		d, ok := c.VehicleParts[id]
		return d, ok
	case tile.LayerMonster:
		d, ok := c.Monsters[id]
		return d, ok
	case tile.LayerField:
		d, ok := c.Fields[id]
		return d, ok
	}
	return nil, false
}

// ConnectsTo implements autotile.View.
func (c *Catalog) ConnectsTo(id ident.ID, layer tile.Layer) map[ident.ID]struct{} {
	if d, ok := c.object(id, layer); ok {
		return d.ConnectsTo
	}
	return nil
}

// ConnectGroups implements autotile.View.
func (c *Catalog) ConnectGroups(id ident.ID, layer tile.Layer) map[ident.ID]struct{} {
	if d, ok := c.object(id, layer); ok {
		return d.ConnectGroups
	}
	return nil
}

// anyObject searches every definition table, used by appearance lookups
// that do not know the layer.
func (c *Catalog) anyObject(id ident.ID) (*ObjectDef, bool) {
	for _, m := range []map[ident.ID]*ObjectDef{
		c.Terrain, c.Furniture, c.Fields, c.Monsters, c.VehicleParts,
	} {
		if d, ok := m[id]; ok {
			return d, true
		}
	}
	return nil, false
}

// LooksLike returns the appearance fallback of an id, if it declares one.
func (c *Catalog) LooksLike(id ident.ID) (ident.ID, bool) {
	if d, ok := c.anyObject(id); ok && d.LooksLike != "" {
		return d.LooksLike, true
	}
	return "", false
}

// Appearance returns the ascii symbol and color of an id for the fallback
// sprite table.
func (c *Catalog) Appearance(id ident.ID) (symbol, color string, ok bool) {
	d, ok := c.anyObject(id)
	if !ok {
		return "", "", false
	}
	return d.Symbol, d.Color, true
}

const regionPrefix = "t_region"

// ReplaceRegion resolves t_region_* placeholder ids through the region
// settings tables. Ids without a table entry pass through unchanged.
func (c *Catalog) ReplaceRegion(id ident.ID, rng *rand.Rand) ident.ID {
	if c.Regions == nil || !strings.HasPrefix(string(id), regionPrefix) {
		return id
	}
	for _, table := range []map[ident.ID][]WeightedID{c.Regions.Terrain, c.Regions.Furniture} {
		entries, ok := table[id]
		if !ok || len(entries) == 0 {
			continue
		}
		total := 0
		for _, e := range entries {
			total += e.Weight
		}
		r := rng.Intn(total)
		for _, e := range entries {
			if r < e.Weight {
				// Tables may chain one placeholder onto another.
				if e.ID != id {
					return c.ReplaceRegion(e.ID, rng)
				}
				return e.ID
			}
			r -= e.Weight
		}
	}
	return id
}
