package catalog

import (
	"encoding/json"
	"fmt"
	"sort"

	"mapforge.dev/internal/gen/ident"
)

// idList accepts a single id or an array of ids.
type idList []ident.ID

func (l *idList) UnmarshalJSON(data []byte) error {
	var one ident.ID
	if err := json.Unmarshal(data, &one); err == nil {
		*l = idList{one}
		return nil
	}
	var many []ident.ID
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*l = idList(many)
	return nil
}

// colorField accepts a single color name or an array; only the first entry
// drives the fallback sprite.
type colorField string

func (c *colorField) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*c = colorField(one)
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	if len(many) > 0 {
		*c = colorField(many[0])
	}
	return nil
}

// symbolField accepts a single glyph or an array; only the first is kept.
type symbolField string

func (s *symbolField) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*s = symbolField(one)
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	if len(many) > 0 {
		*s = symbolField(many[0])
	}
	return nil
}

// ObjectDef is the shared shape of terrain, furniture, field, monster and
// vehicle-part definitions: the parts of a catalogue object the pipeline
// reads.
type ObjectDef struct {
	ID        ident.ID
	Symbol    string
	Color     string
	LooksLike ident.ID
	Flags     []string

	// Connectivity sets with flag-implied groups already folded in.
	ConnectsTo    map[ident.ID]struct{}
	ConnectGroups map[ident.ID]struct{}
}

// HasFlag reports whether the definition carries flag.
func (d *ObjectDef) HasFlag(flag string) bool {
	for _, f := range d.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

type objectJSON struct {
	ID            idList      `json:"id"`
	Symbol        symbolField `json:"symbol"`
	Color         colorField  `json:"color"`
	LooksLike     ident.ID    `json:"looks_like"`
	Flags         []string    `json:"flags"`
	ConnectsTo    idList      `json:"connects_to"`
	ConnectGroups idList      `json:"connect_groups"`
}

// Flags implying connectivity, matching the game data conventions: wall-ish
// flags join the WALL group in both directions, INDOORS joins INDOORFLOOR.
var (
	wallFlags = map[string]struct{}{
		"WALL":              {},
		"CONNECT_WITH_WALL": {},
		"WIRED_WALL":        {},
	}
	groupWall        = ident.ID("WALL")
	groupIndoorFloor = ident.ID("INDOORFLOOR")
)

func (o *objectJSON) defs() ([]*ObjectDef, error) {
	if len(o.ID) == 0 {
		return nil, fmt.Errorf("definition has no id")
	}
	out := make([]*ObjectDef, 0, len(o.ID))
	for _, id := range o.ID {
		d := &ObjectDef{
			ID:            id,
			Symbol:        string(o.Symbol),
			Color:         string(o.Color),
			LooksLike:     o.LooksLike,
			Flags:         o.Flags,
			ConnectsTo:    make(map[ident.ID]struct{}, len(o.ConnectsTo)+1),
			ConnectGroups: make(map[ident.ID]struct{}, len(o.ConnectGroups)+1),
		}
		for _, g := range o.ConnectsTo {
			d.ConnectsTo[g] = struct{}{}
		}
		for _, g := range o.ConnectGroups {
			d.ConnectGroups[g] = struct{}{}
		}
		for _, f := range o.Flags {
			if _, wall := wallFlags[f]; wall {
				d.ConnectsTo[groupWall] = struct{}{}
				d.ConnectGroups[groupWall] = struct{}{}
			}
			if f == "INDOORS" {
				d.ConnectGroups[groupIndoorFloor] = struct{}{}
			}
		}
		out = append(out, d)
	}
	return out, nil
}

// MonsterGroup is a weighted pool of monster ids.
type MonsterGroup struct {
	ID       ident.ID
	Monsters []WeightedID
}

// WeightedID pairs an id with a draw weight.
type WeightedID struct {
	ID     ident.ID
	Weight int
}

type monsterGroupJSON struct {
	Name     ident.ID `json:"name"`
	ID       ident.ID `json:"id"`
	Monsters []struct {
		Monster ident.ID `json:"monster"`
		Freq    int      `json:"freq"`
		Weight  int      `json:"weight"`
	} `json:"monsters"`
}

func (m *monsterGroupJSON) group() (*MonsterGroup, error) {
	id := m.ID
	if id == "" {
		id = m.Name
	}
	if id == "" {
		return nil, fmt.Errorf("monster group has no id")
	}
	g := &MonsterGroup{ID: id}
	for _, e := range m.Monsters {
		w := e.Weight
		if w == 0 {
			w = e.Freq
		}
		if w <= 0 {
			w = 1
		}
		g.Monsters = append(g.Monsters, WeightedID{ID: e.Monster, Weight: w})
	}
	return g, nil
}

// OvermapTerrainDef is the overmap presence of a terrain id; predecessor
// chains look these up before searching for mapgen entries.
type OvermapTerrainDef struct {
	ID       ident.ID
	Name     string
	Symbol   string
	Color    string
	SeeCosts int
}

// RegionSettings holds the weighted replacement tables for t_region_*
// placeholder ids.
type RegionSettings struct {
	Terrain   map[ident.ID][]WeightedID
	Furniture map[ident.ID][]WeightedID
}

type regionSettingsJSON struct {
	RegionTerrainAndFurniture struct {
		Terrain   map[ident.ID]map[ident.ID]int `json:"terrain"`
		Furniture map[ident.ID]map[ident.ID]int `json:"furniture"`
	} `json:"region_terrain_and_furniture"`
}

func weightedTable(in map[ident.ID]map[ident.ID]int) map[ident.ID][]WeightedID {
	out := make(map[ident.ID][]WeightedID, len(in))
	for key, entries := range in {
		list := make([]WeightedID, 0, len(entries))
		for id, w := range entries {
			if w <= 0 {
				w = 1
			}
			list = append(list, WeightedID{ID: id, Weight: w})
		}
		// Deterministic draw order regardless of map iteration.
		sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
		out[key] = list
	}
	return out
}
