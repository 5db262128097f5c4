// Package autotile classifies a tile against its four cardinal neighbors
// so multitile sprites pick the matching piece and orientation.
package autotile

import (
	"mapforge.dev/internal/gen/ident"
	"mapforge.dev/internal/gen/tile"
)

// Category is the multitile piece selected by the neighborhood.
type Category int

const (
	Unconnected Category = iota
	Center
	Corner
	Edge
	TConnection
	EndPiece
)

func (c Category) String() string {
	switch c {
	case Center:
		return "center"
	case Corner:
		return "corner"
	case Edge:
		return "edge"
	case TConnection:
		return "t_connection"
	case EndPiece:
		return "end_piece"
	}
	return "unconnected"
}

// View exposes the connectivity data of catalogue objects. Implementations
// fold flag-implied groups (a WALL flag implies the WALL group, INDOORS
// implies INDOORFLOOR) into both sets.
type View interface {
	ConnectsTo(id ident.ID, layer tile.Layer) map[ident.ID]struct{}
	ConnectGroups(id ident.ID, layer tile.Layer) map[ident.ID]struct{}
}

// Neighborhood holds the ids occupying the four cardinal neighbors on the
// same layer; nil marks an empty neighbor.
type Neighborhood struct {
	North, East, South, West *ident.ID
}

// Connected reports whether self joins onto other: identical ids always
// connect, otherwise self's connects_to set must intersect other's groups.
func Connected(v View, layer tile.Layer, self ident.ID, other *ident.ID) bool {
	if other == nil {
		return false
	}
	if self == *other {
		return true
	}
	to := v.ConnectsTo(self, layer)
	if len(to) == 0 {
		return false
	}
	for g := range v.ConnectGroups(*other, layer) {
		if _, ok := to[g]; ok {
			return true
		}
	}
	return false
}

// Select classifies self within its neighborhood and returns the piece and
// the direction it faces.
func Select(v View, layer tile.Layer, self ident.ID, n Neighborhood) (Category, tile.Direction) {
	var conn [4]bool
	conn[tile.North] = Connected(v, layer, self, n.North)
	conn[tile.East] = Connected(v, layer, self, n.East)
	conn[tile.South] = Connected(v, layer, self, n.South)
	conn[tile.West] = Connected(v, layer, self, n.West)
	return classify(conn)
}

// classify maps the (north, east, south, west) connection tuple onto a
// piece. The direction conventions follow the legacy tilesheet layout.
func classify(c [4]bool) (Category, tile.Direction) {
	n, e, s, w := c[tile.North], c[tile.East], c[tile.South], c[tile.West]
	count := 0
	for _, b := range c {
		if b {
			count++
		}
	}
	switch count {
	case 4:
		return Center, tile.North
	case 3:
		switch {
		case !s:
			return TConnection, tile.East
		case !w:
			return TConnection, tile.North
		case !n:
			return TConnection, tile.West
		default: // !e
			return TConnection, tile.South
		}
	case 2:
		switch {
		case n && e:
			return Corner, tile.North
		case n && w:
			return Corner, tile.West
		case e && s:
			return Corner, tile.East
		case s && w:
			return Corner, tile.South
		case e && w:
			return Edge, tile.East
		default: // n && s
			return Edge, tile.North
		}
	case 1:
		switch {
		case n:
			return EndPiece, tile.North
		case e:
			return EndPiece, tile.East
		case s:
			return EndPiece, tile.South
		default:
			return EndPiece, tile.West
		}
	}
	return Unconnected, tile.North
}
