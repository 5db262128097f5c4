package render

import (
	"encoding/json"
	"fmt"

	"mapforge.dev/internal/gen/tile"
)

// Buffer is the fold target of map resolution: one ResolvedTile per cell.
// Commands landing outside the bounds are dropped.
type Buffer struct {
	Width, Height int
	tiles         []tile.ResolvedTile
}

// NewBuffer allocates an empty w x h buffer.
func NewBuffer(w, h int) *Buffer {
	return &Buffer{Width: w, Height: h, tiles: make([]tile.ResolvedTile, w*h)}
}

// At returns the cell at (x, y), or nil when out of bounds.
func (b *Buffer) At(x, y int) *tile.ResolvedTile {
	if x < 0 || x >= b.Width || y < 0 || y >= b.Height {
		return nil
	}
	return &b.tiles[y*b.Width+x]
}

// Apply folds commands into the buffer in order; within a cell a later
// command overwrites its layer.
func (b *Buffer) Apply(cmds []tile.Command) {
	for _, c := range cmds {
		cell := b.At(c.X, c.Y)
		if cell == nil {
			continue
		}
		cell.Set(c.Layer, &tile.ResolvedID{Sheet: c.Sheet, Rotation: c.Rotation})
	}
}

// Fill sets the terrain of every cell still lacking one.
func (b *Buffer) Fill(id tile.ResolvedID) {
	for i := range b.tiles {
		if b.tiles[i].Terrain == nil {
			filled := id
			b.tiles[i].Terrain = &filled
		}
	}
}

type bufferJSON struct {
	Width  int                 `json:"width"`
	Height int                 `json:"height"`
	Tiles  []tile.ResolvedTile `json:"tiles"`
}

// MarshalJSON flattens the buffer row-major; the cache stores this form.
func (b *Buffer) MarshalJSON() ([]byte, error) {
	return json.Marshal(bufferJSON{Width: b.Width, Height: b.Height, Tiles: b.tiles})
}

func (b *Buffer) UnmarshalJSON(data []byte) error {
	var raw bufferJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw.Tiles) != raw.Width*raw.Height {
		return fmt.Errorf("buffer: %d tiles for %dx%d", len(raw.Tiles), raw.Width, raw.Height)
	}
	b.Width, b.Height, b.tiles = raw.Width, raw.Height, raw.Tiles
	return nil
}

// idAt serves the autotile pass: the resolved id on a layer at (x, y), or
// nil when empty or out of bounds.
func (b *Buffer) idAt(x, y int, layer tile.Layer) *tile.ResolvedID {
	cell := b.At(x, y)
	if cell == nil {
		return nil
	}
	return cell.Get(layer)
}
