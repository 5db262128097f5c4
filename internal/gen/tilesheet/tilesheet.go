// Package tilesheet loads tile configuration files and selects the sprite
// index and visual rotation for resolved tiles.
package tilesheet

import (
	"encoding/json"
	"fmt"
	"os"

	"mapforge.dev/internal/gen/tile"
)

// ShapeKind tells how a sprite entry encodes rotation.
type ShapeKind int

const (
	// ShapeAuto is a single index; the renderer rotates it visually when
	// the tile rotates.
	ShapeAuto ShapeKind = iota
	// ShapePre2 holds two pre-rotated indexes: one for north/south, one
	// for east/west.
	ShapePre2
	// ShapePre4 holds one pre-rotated index per quarter turn.
	ShapePre4
)

// Shape is one drawable sprite entry.
type Shape struct {
	Kind    ShapeKind
	Indexes [4]int
}

// Index resolves the shape under a tile rotation. Pre-rotated shapes bake
// the turn into the index and report Deg0; auto shapes pass the rotation
// through when the sprite rotates.
func (s Shape) Index(rot tile.Rotation, rotates bool) (int, tile.Rotation) {
	switch s.Kind {
	case ShapePre2:
		if rot == tile.Deg90 || rot == tile.Deg270 {
			return s.Indexes[1], tile.Deg0
		}
		return s.Indexes[0], tile.Deg0
	case ShapePre4:
		return s.Indexes[rot&3], tile.Deg0
	}
	if rotates {
		return s.Indexes[0], rot
	}
	return s.Indexes[0], tile.Deg0
}

// WeightedShape pairs a shape with its draw weight.
type WeightedShape struct {
	Shape  Shape
	Weight int
}

// Sprite is one tile entry: weighted foreground and background shapes plus
// the multitile pieces.
type Sprite struct {
	Fg        []WeightedShape
	Bg        []WeightedShape
	Rotates   bool
	Multitile bool
	// Additional holds the multitile pieces and the broken/open overrides,
	// keyed by their authored names.
	Additional map[string]*Sprite
}

// Tilesheet is a loaded tile configuration: sprite entries by id.
type Tilesheet struct {
	Name          string
	TileWidth     int
	TileHeight    int
	sprites       map[string]*Sprite
	fallbackBases map[string]int
}

// Sprite returns the entry for a full sheet key.
func (t *Tilesheet) Sprite(key string) (*Sprite, bool) {
	s, ok := t.sprites[key]
	return s, ok
}

type spriteRef []WeightedShape

func (r *spriteRef) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*r = spriteRef{{Shape: Shape{Kind: ShapeAuto, Indexes: [4]int{n}}, Weight: 1}}
		return nil
	}

	var nums []int
	if err := json.Unmarshal(data, &nums); err == nil {
		shape, err := shapeFromInts(nums)
		if err != nil {
			return err
		}
		*r = spriteRef{{Shape: shape, Weight: 1}}
		return nil
	}

	var weighted []struct {
		Weight int             `json:"weight"`
		Sprite json.RawMessage `json:"sprite"`
	}
	if err := json.Unmarshal(data, &weighted); err != nil {
		return fmt.Errorf("sprite reference: %w", err)
	}
	out := make(spriteRef, 0, len(weighted))
	for _, w := range weighted {
		var n int
		var shape Shape
		if err := json.Unmarshal(w.Sprite, &n); err == nil {
			shape = Shape{Kind: ShapeAuto, Indexes: [4]int{n}}
		} else {
			var nums []int
			if err := json.Unmarshal(w.Sprite, &nums); err != nil {
				return fmt.Errorf("weighted sprite: %w", err)
			}
			shape, err = shapeFromInts(nums)
			if err != nil {
				return err
			}
		}
		weight := w.Weight
		if weight <= 0 {
			weight = 1
		}
		out = append(out, WeightedShape{Shape: shape, Weight: weight})
	}
	*r = out
	return nil
}

func shapeFromInts(nums []int) (Shape, error) {
	var s Shape
	switch len(nums) {
	case 1:
		s.Kind = ShapeAuto
		s.Indexes[0] = nums[0]
	case 2:
		s.Kind = ShapePre2
		copy(s.Indexes[:], nums)
	case 4:
		s.Kind = ShapePre4
		copy(s.Indexes[:], nums)
	default:
		return s, fmt.Errorf("sprite array has %d indexes, want 1, 2 or 4", len(nums))
	}
	return s, nil
}

type tileJSON struct {
	ID              idOrList   `json:"id"`
	Fg              spriteRef  `json:"fg"`
	Bg              spriteRef  `json:"bg"`
	Rotates         bool       `json:"rotates"`
	Multitile       bool       `json:"multitile"`
	AdditionalTiles []tileJSON `json:"additional_tiles"`
}

type idOrList []string

func (l *idOrList) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*l = idOrList{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*l = idOrList(many)
	return nil
}

func (j *tileJSON) sprite() *Sprite {
	s := &Sprite{
		Fg:        []WeightedShape(j.Fg),
		Bg:        []WeightedShape(j.Bg),
		Rotates:   j.Rotates,
		Multitile: j.Multitile,
	}
	if len(j.AdditionalTiles) > 0 {
		s.Additional = make(map[string]*Sprite, len(j.AdditionalTiles))
		for i := range j.AdditionalTiles {
			add := &j.AdditionalTiles[i]
			sub := add.sprite()
			// Pieces inherit the parent's rotation behavior unless they
			// declare their own.
			if !add.Rotates {
				sub.Rotates = j.Rotates
			}
			for _, id := range add.ID {
				s.Additional[id] = sub
			}
		}
	}
	return s
}

type configJSON struct {
	TileInfo []struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"tile_info"`
	Tiles    []tileJSON `json:"tiles"`
	TilesNew []struct {
		File  string     `json:"file"`
		Tiles []tileJSON `json:"tiles"`
	} `json:"tiles-new"`
}

// Load reads a tile configuration file. Both the flat "tiles" form and the
// per-file "tiles-new" form are accepted.
func Load(path string) (*Tilesheet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg configJSON
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	t := &Tilesheet{
		Name:          path,
		sprites:       map[string]*Sprite{},
		fallbackBases: fallbackColorBases,
	}
	if len(cfg.TileInfo) > 0 {
		t.TileWidth = cfg.TileInfo[0].Width
		t.TileHeight = cfg.TileInfo[0].Height
	}
	register := func(tiles []tileJSON) {
		for i := range tiles {
			sp := tiles[i].sprite()
			for _, id := range tiles[i].ID {
				t.sprites[id] = sp
			}
		}
	}
	register(cfg.Tiles)
	for _, sheet := range cfg.TilesNew {
		register(sheet.Tiles)
	}
	if len(t.sprites) == 0 {
		return nil, fmt.Errorf("%s: no tile entries", path)
	}
	return t, nil
}
