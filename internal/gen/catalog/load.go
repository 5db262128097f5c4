package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"mapforge.dev/internal/gen/ident"
	"mapforge.dev/internal/gen/mapgen"
)

// Submap edge length: multi-name overmap entries are split into chunks of
// this size.
const (
	ChunkWidth  = 24
	ChunkHeight = 24
)

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Load reads every .json file under dataDir (recursively, in path order)
// and assembles the catalogue. Each file holds an array of type-tagged
// definition objects.
func Load(dataDir string) (*Catalog, error) {
	c := New()

	var files []string
	err := filepath.WalkDir(dataDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, ".json") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	for _, path := range files {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		rel, relErr := filepath.Rel(dataDir, path)
		if relErr != nil {
			rel = filepath.Base(path)
		}
		c.Digests[rel] = sha256Hex(raw)
		if err := c.loadFile(raw); err != nil {
			return nil, fmt.Errorf("%s: %w", rel, err)
		}
	}
	return c, nil
}

func (c *Catalog) loadFile(raw []byte) error {
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return err
	}
	for i, entry := range entries {
		var head struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(entry, &head); err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
		if err := c.loadEntry(head.Type, entry); err != nil {
			return fmt.Errorf("entry %d (%s): %w", i, head.Type, err)
		}
	}
	return nil
}

func (c *Catalog) loadEntry(typ string, raw json.RawMessage) error {
	switch typ {
	case "terrain":
		return loadObjects(raw, c.Terrain)
	case "furniture":
		return loadObjects(raw, c.Furniture)
	case "trap":
		// Traps render on the furniture layer and are looked up there.
		return loadObjects(raw, c.Furniture)
	case "field_type":
		return loadObjects(raw, c.Fields)
	case "MONSTER", "monster":
		return loadObjects(raw, c.Monsters)
	case "vehicle_part":
		return loadObjects(raw, c.VehicleParts)
	case "monstergroup":
		var mg monsterGroupJSON
		if err := json.Unmarshal(raw, &mg); err != nil {
			return err
		}
		g, err := mg.group()
		if err != nil {
			return err
		}
		c.MonsterGroups[g.ID] = g
		return nil
	case "vehicle":
		return c.loadVehicle(raw)
	case "palette":
		return c.loadPalette(raw)
	case "mapgen":
		return c.loadMapgen(raw)
	case "overmap_terrain":
		return c.loadOvermapTerrain(raw)
	case "region_settings":
		var rs regionSettingsJSON
		if err := json.Unmarshal(raw, &rs); err != nil {
			return err
		}
		c.Regions = &RegionSettings{
			Terrain:   weightedTable(rs.RegionTerrainAndFurniture.Terrain),
			Furniture: weightedTable(rs.RegionTerrainAndFurniture.Furniture),
		}
		return nil
	case "connect_group":
		// Group declarations carry no data the pipeline reads.
		return nil
	}
	// Unknown types are skipped: game data mixes many kinds in one file.
	return nil
}

func loadObjects(raw json.RawMessage, into map[ident.ID]*ObjectDef) error {
	var obj objectJSON
	if err := json.Unmarshal(raw, &obj); err != nil {
		return err
	}
	defs, err := obj.defs()
	if err != nil {
		return err
	}
	for _, d := range defs {
		into[d.ID] = d
	}
	return nil
}

func (c *Catalog) loadVehicle(raw json.RawMessage) error {
	var v struct {
		ID    ident.ID `json:"id"`
		Parts []struct {
			X       int      `json:"x"`
			Y       int      `json:"y"`
			Part    ident.ID `json:"part"`
			Variant string   `json:"variant"`
		} `json:"parts"`
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	if v.ID == "" {
		return fmt.Errorf("vehicle has no id")
	}
	veh := &mapgen.Vehicle{ID: v.ID}
	for _, p := range v.Parts {
		veh.Parts = append(veh.Parts, mapgen.VehiclePart{
			Part: p.Part, X: p.X, Y: p.Y, Variant: p.Variant,
		})
	}
	c.Vehicles[veh.ID] = veh
	return nil
}

func (c *Catalog) loadPalette(raw json.RawMessage) error {
	var head struct {
		ID ident.ID `json:"id"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return err
	}
	if head.ID == "" {
		return fmt.Errorf("palette has no id")
	}
	p := &mapgen.Palette{ID: head.ID}
	if err := json.Unmarshal(raw, &p.Body); err != nil {
		return fmt.Errorf("palette %q: %w", head.ID, err)
	}
	c.Palettes[p.ID] = p
	return nil
}

func (c *Catalog) loadOvermapTerrain(raw json.RawMessage) error {
	var om struct {
		ID       idList `json:"id"`
		Name     string `json:"name"`
		Symbol   symbolField `json:"sym"`
		Color    colorField  `json:"color"`
		SeeCosts int    `json:"see_cost"`
	}
	if err := json.Unmarshal(raw, &om); err != nil {
		return err
	}
	for _, id := range om.ID {
		c.OmTerrains[id] = &OvermapTerrainDef{
			ID:       id,
			Name:     om.Name,
			Symbol:   string(om.Symbol),
			Color:    string(om.Color),
			SeeCosts: om.SeeCosts,
		}
	}
	return nil
}

// loadMapgen decodes one mapgen entry. The om_terrain key may be a single
// name, a list of names sharing the map, or a grid of names splitting the
// authored rows into chunk templates. Nested and update entries register
// under their own id keys.
func (c *Catalog) loadMapgen(raw json.RawMessage) error {
	var head struct {
		OmTerrain json.RawMessage `json:"om_terrain"`
		NestedID  ident.ID        `json:"nested_mapgen_id"`
		UpdateID  ident.ID        `json:"update_mapgen_id"`
		Weight    int             `json:"weight"`
		Object    json.RawMessage `json:"object"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return err
	}
	if head.Object == nil {
		return fmt.Errorf("mapgen entry has no object")
	}
	weight := head.Weight
	if weight <= 0 {
		weight = 100
	}

	if head.NestedID != "" || head.UpdateID != "" {
		id := head.NestedID
		if id == "" {
			id = head.UpdateID
		}
		tpl := &mapgen.Template{ID: id, Weight: weight}
		if err := tpl.DecodeObject(head.Object); err != nil {
			return fmt.Errorf("mapgen %q: %w", id, err)
		}
		c.NestedMaps[id] = tpl
		return nil
	}

	names, grid, err := decodeOmTerrainKey(head.OmTerrain)
	if err != nil {
		return err
	}

	if grid == nil {
		for _, name := range names {
			tpl := &mapgen.Template{ID: name, Weight: weight}
			if err := tpl.DecodeObject(head.Object); err != nil {
				return fmt.Errorf("mapgen %q: %w", name, err)
			}
			c.omTemplates[name] = append(c.omTemplates[name], tpl)
		}
		return nil
	}

	whole := &mapgen.Template{Weight: weight}
	if err := whole.DecodeObject(head.Object); err != nil {
		return fmt.Errorf("multi-chunk mapgen: %w", err)
	}
	for cy, row := range grid {
		for cx, name := range row {
			chunk, err := carveChunk(whole, name, cx, cy)
			if err != nil {
				return fmt.Errorf("mapgen chunk %q: %w", name, err)
			}
			c.omTemplates[name] = append(c.omTemplates[name], chunk)
		}
	}
	return nil
}

func decodeOmTerrainKey(raw json.RawMessage) (names []ident.ID, grid [][]ident.ID, err error) {
	if raw == nil {
		return nil, nil, fmt.Errorf("mapgen entry has no om_terrain")
	}
	var one ident.ID
	if err := json.Unmarshal(raw, &one); err == nil {
		return []ident.ID{one}, nil, nil
	}
	var flat []ident.ID
	if err := json.Unmarshal(raw, &flat); err == nil {
		return flat, nil, nil
	}
	var nested [][]ident.ID
	if err := json.Unmarshal(raw, &nested); err != nil {
		return nil, nil, fmt.Errorf("om_terrain: %w", err)
	}
	return nil, nested, nil
}

// carveChunk cuts one chunk template out of a multi-name map: the grid
// window and the placement rules remapped into chunk coordinates. Rules
// falling outside the chunk footprint are dropped.
func carveChunk(whole *mapgen.Template, name ident.ID, cx, cy int) (*mapgen.Template, error) {
	offX, offY := cx*ChunkWidth, cy*ChunkHeight
	if offX >= whole.Width || offY >= whole.Height {
		return nil, fmt.Errorf("chunk (%d,%d) outside %dx%d rows", cx, cy, whole.Width, whole.Height)
	}
	chunk := &mapgen.Template{
		ID:          name,
		Weight:      whole.Weight,
		Body:        whole.Body,
		FillTerrain: whole.FillTerrain,
		Predecessor: whole.Predecessor,
	}
	if err := chunk.SetCells(whole.SubGrid(offX, offY, ChunkWidth, ChunkHeight)); err != nil {
		return nil, err
	}
	for _, rule := range whole.Place {
		rule.X.From -= offX
		rule.X.To -= offX
		rule.Y.From -= offY
		rule.Y.To -= offY
		if rule.X.To < 0 || rule.X.From >= ChunkWidth || rule.Y.To < 0 || rule.Y.From >= ChunkHeight {
			continue
		}
		clamp := func(r *mapgen.Range, max int) {
			if r.From < 0 {
				r.From = 0
			}
			if r.To > max {
				r.To = max
			}
		}
		clamp(&rule.X, ChunkWidth-1)
		clamp(&rule.Y, ChunkHeight-1)
		chunk.Place = append(chunk.Place, rule)
	}
	return chunk, nil
}
