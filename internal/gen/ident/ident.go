// Package ident holds the identifier types shared across the generation
// pipeline and the reserved null sentinels that suppress tile output.
package ident

import "strings"

// ID names a catalogue object: a terrain, furniture, trap, field, monster,
// monster group, palette, map template or overmap terrain.
type ID string

// ParamID names a palette or template parameter.
type ParamID string

func (id ID) String() string     { return string(id) }
func (p ParamID) String() string { return string(p) }

// Reserved sentinels. Authored data uses these to mean "place nothing";
// resolution must treat them as valid values that produce no command.
const (
	NullTerrain   ID = "t_null"
	NullFurniture ID = "f_null"
	NullTrap      ID = "tr_null"
	NullField     ID = "fd_null"
	NullNested    ID = "null"
)

var nullSet = map[ID]struct{}{
	NullTerrain:   {},
	NullFurniture: {},
	NullTrap:      {},
	NullField:     {},
	NullNested:    {},
}

// IsNull reports whether id is one of the reserved null sentinels.
// All null comparisons in the pipeline go through here.
func IsNull(id ID) bool {
	_, ok := nullSet[id]
	return ok
}

// FirstSegment returns the leading '_'-separated token of id
// ("t_wall_metal" -> "t").
func (id ID) FirstSegment() string {
	s := string(id)
	if i := strings.IndexByte(s, '_'); i >= 0 {
		return s[:i]
	}
	return s
}

// Segments splits id on '_'.
func (id ID) Segments() []string { return strings.Split(string(id), "_") }
