package tilesheet

import (
	"math/rand"

	"mapforge.dev/internal/gen/autotile"
	"mapforge.dev/internal/gen/ident"
	"mapforge.dev/internal/gen/tile"
)

// Appearance is what the selector needs from the catalogue to degrade
// gracefully when a sprite is missing.
type Appearance interface {
	LooksLike(id ident.ID) (ident.ID, bool)
	Appearance(id ident.ID) (symbol, color string, ok bool)
}

// Pick is a selected sprite: sheet index and visual rotation.
type Pick struct {
	Index    int
	Rotation tile.Rotation
}

// Selector resolves sheet ids to sprites through the lookup chain: exact
// key, variant postfix slicing, looks_like fallbacks, then the ascii
// fallback table.
type Selector struct {
	Sheet *Tilesheet
	App   Appearance
}

// find locates the sprite entry for a sheet id.
func (s *Selector) find(id tile.SheetID) (*Sprite, bool) {
	if sp, ok := s.Sheet.Sprite(id.Full()); ok {
		return sp, true
	}
	// Degrade the variant postfix one segment at a time.
	for cur, more := id.SliceRight(); more; cur, more = cur.SliceRight() {
		if sp, ok := s.Sheet.Sprite(cur.Full()); ok {
			return sp, true
		}
	}
	// Follow looks_like references. Ids may point at themselves or at each
	// other; the seen set cuts both.
	seen := map[ident.ID]bool{id.ID: true}
	cur := id.ID
	for {
		next, ok := s.App.LooksLike(cur)
		if !ok || seen[next] {
			return nil, false
		}
		seen[next] = true
		if sp, ok := s.Sheet.Sprite(id.Prefix + string(next)); ok {
			return sp, true
		}
		cur = next
	}
}

// Select picks the sprite for a resolved tile given its autotile
// classification. The bool is false when even the ascii fallback is
// unavailable.
func (s *Selector) Select(res tile.ResolvedID, cat autotile.Category, dir tile.Direction, rng *rand.Rand) (Pick, bool) {
	sp, ok := s.find(res.Sheet)
	if !ok {
		return s.fallback(res.Sheet.ID)
	}

	// Broken and open take priority over connectivity; a sheet without the
	// override draws the base sprite.
	if res.Broken {
		if sub, ok := sp.Additional["broken"]; ok {
			return pickFrom(sub, res.Rotation, rng)
		}
		return pickFrom(sp, res.Rotation, rng)
	}
	if res.Open {
		if sub, ok := sp.Additional["open"]; ok {
			return pickFrom(sub, res.Rotation, rng)
		}
		return pickFrom(sp, res.Rotation, rng)
	}

	if sp.Multitile {
		if sub, ok := sp.Additional[cat.String()]; ok {
			return pickFrom(sub, dir.Rotation(), rng)
		}
	}
	return pickFrom(sp, res.Rotation, rng)
}

func pickFrom(sp *Sprite, rot tile.Rotation, rng *rand.Rand) (Pick, bool) {
	shapes := sp.Fg
	if len(shapes) == 0 {
		shapes = sp.Bg
	}
	if len(shapes) == 0 {
		return Pick{}, false
	}
	shape := drawShape(shapes, rng)
	idx, visual := shape.Index(rot, sp.Rotates)
	return Pick{Index: idx, Rotation: visual}, true
}

func drawShape(shapes []WeightedShape, rng *rand.Rand) Shape {
	if len(shapes) == 1 {
		return shapes[0].Shape
	}
	total := 0
	for _, s := range shapes {
		total += s.Weight
	}
	r := rng.Intn(total)
	for _, s := range shapes {
		if r < s.Weight {
			return s.Shape
		}
		r -= s.Weight
	}
	return shapes[len(shapes)-1].Shape
}

// The ascii fallback sheet holds one 256-glyph block per color; a missing
// sprite draws the catalogue symbol from the block of its color.
var fallbackColorBases = map[string]int{
	"white":      0,
	"light_gray": 256,
	"dark_gray":  512,
	"red":        768,
	"green":      1024,
	"blue":       1280,
	"cyan":       1536,
	"magenta":    1792,
	"brown":      2048,
	"yellow":     2304,
}

func (s *Selector) fallback(id ident.ID) (Pick, bool) {
	symbol, color, ok := s.App.Appearance(id)
	if !ok || symbol == "" {
		return Pick{}, false
	}
	base, ok := s.Sheet.fallbackBases[color]
	if !ok {
		base = 0
	}
	return Pick{Index: base + int(symbol[0])}, true
}
