// Package tile defines the leaf types of the generation pipeline: output
// layers, rotations, sheet identifiers and the resolved per-cell fold target.
package tile

import (
	"fmt"
	"strings"

	"mapforge.dev/internal/gen/ident"
)

// Layer is an output layer of a resolved cell. The numeric order is the
// command precedence: lower layers are applied first so later layers can
// overwrite within a cell without disturbing the ones below.
type Layer int

const (
	LayerTerrain Layer = iota
	LayerFurniture
	LayerMonster
	LayerField

	layerCount
)

func (l Layer) String() string {
	switch l {
	case LayerTerrain:
		return "terrain"
	case LayerFurniture:
		return "furniture"
	case LayerMonster:
		return "monster"
	case LayerField:
		return "field"
	}
	return fmt.Sprintf("layer(%d)", int(l))
}

// Null returns the sentinel that suppresses output on this layer.
func (l Layer) Null() ident.ID {
	switch l {
	case LayerTerrain:
		return ident.NullTerrain
	case LayerFurniture:
		return ident.NullFurniture
	case LayerField:
		return ident.NullField
	}
	return ident.NullNested
}

// Rotation is a clockwise quarter-turn count.
type Rotation int

const (
	Deg0 Rotation = iota
	Deg90
	Deg180
	Deg270
)

func (r Rotation) String() string {
	return [...]string{"deg0", "deg90", "deg180", "deg270"}[r&3]
}

// Add composes two rotations.
func (r Rotation) Add(o Rotation) Rotation { return (r + o) & 3 }

// Direction is a cardinal neighbor direction.
type Direction int

const (
	North Direction = iota
	East
	South
	West
)

func (d Direction) String() string {
	return [...]string{"north", "east", "south", "west"}[d&3]
}

// Rotation maps a direction onto the sprite rotation used when a
// directional sprite is drawn facing d.
func (d Direction) Rotation() Rotation { return Rotation(d) & 3 }

// SheetID addresses a sprite in a tilesheet: the catalogue id plus an
// optional prefix and an optional '#'-separated variant postfix.
type SheetID struct {
	ID      ident.ID
	Prefix  string
	Postfix string
}

// Sheet wraps a bare catalogue id.
func Sheet(id ident.ID) SheetID { return SheetID{ID: id} }

// Full renders the lookup key: prefix + id, then "#postfix" when present.
func (s SheetID) Full() string {
	if s.Postfix == "" {
		return s.Prefix + string(s.ID)
	}
	return s.Prefix + string(s.ID) + "#" + s.Postfix
}

// SliceRight drops the rightmost '_'-separated segment of the variant
// postfix and reports whether anything was left to drop. A variant of
// "left_open" degrades to "left", then to none.
func (s SheetID) SliceRight() (SheetID, bool) {
	if s.Postfix == "" {
		return s, false
	}
	if i := strings.LastIndexByte(s.Postfix, '_'); i >= 0 {
		s.Postfix = s.Postfix[:i]
	} else {
		s.Postfix = ""
	}
	return s, true
}

// Command is one placement instruction produced by template resolution.
// Commands are applied to a resolved buffer in layer order.
type Command struct {
	Layer    Layer
	X, Y     int
	Sheet    SheetID
	Rotation Rotation
}

// ResolvedID is the fold result for one layer of one cell.
type ResolvedID struct {
	Sheet    SheetID
	Rotation Rotation
	Broken   bool
	Open     bool
}

// ResolvedTile is the per-cell fold target: at most one resolved id per
// output layer.
type ResolvedTile struct {
	Terrain   *ResolvedID
	Furniture *ResolvedID
	Monster   *ResolvedID
	Field     *ResolvedID
}

// Get returns the slot for l.
func (t *ResolvedTile) Get(l Layer) *ResolvedID {
	switch l {
	case LayerTerrain:
		return t.Terrain
	case LayerFurniture:
		return t.Furniture
	case LayerMonster:
		return t.Monster
	case LayerField:
		return t.Field
	}
	return nil
}

// Set overwrites the slot for l.
func (t *ResolvedTile) Set(l Layer, id *ResolvedID) {
	switch l {
	case LayerTerrain:
		t.Terrain = id
	case LayerFurniture:
		t.Furniture = id
	case LayerMonster:
		t.Monster = id
	case LayerField:
		t.Field = id
	}
}

// Empty reports whether no layer is populated.
func (t *ResolvedTile) Empty() bool {
	return t.Terrain == nil && t.Furniture == nil && t.Monster == nil && t.Field == nil
}

// Layers returns the populated layers in precedence order.
func (t *ResolvedTile) Layers() []Layer {
	out := make([]Layer, 0, int(layerCount))
	for l := LayerTerrain; l < layerCount; l++ {
		if t.Get(l) != nil {
			out = append(out, l)
		}
	}
	return out
}
