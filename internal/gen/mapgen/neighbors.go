package mapgen

import (
	"encoding/json"
	"fmt"
	"strings"

	"mapforge.dev/internal/gen/ident"
)

// NeighborDirection names a slot of the overmap neighborhood.
type NeighborDirection string

const (
	DirNorth     NeighborDirection = "north"
	DirEast      NeighborDirection = "east"
	DirSouth     NeighborDirection = "south"
	DirWest      NeighborDirection = "west"
	DirNorthEast NeighborDirection = "north_east"
	DirNorthWest NeighborDirection = "north_west"
	DirSouthEast NeighborDirection = "south_east"
	DirSouthWest NeighborDirection = "south_west"
	DirAbove     NeighborDirection = "above"
	DirBelow     NeighborDirection = "below"
)

var knownDirections = map[NeighborDirection]struct{}{
	DirNorth: {}, DirEast: {}, DirSouth: {}, DirWest: {},
	DirNorthEast: {}, DirNorthWest: {}, DirSouthEast: {}, DirSouthWest: {},
	DirAbove: {}, DirBelow: {},
}

// KnownDirection reports whether d names a neighborhood slot.
func KnownDirection(d NeighborDirection) bool {
	_, ok := knownDirections[d]
	return ok
}

// Neighbors is the simulated overmap neighborhood a map is resolved in:
// the overmap terrain ids occupying each direction.
type Neighbors map[NeighborDirection][]ident.ID

// MatchMode selects how a neighbor pattern is compared against an overmap
// terrain id.
type MatchMode int

const (
	// MatchContains is the default for bare string patterns.
	MatchContains MatchMode = iota
	MatchExact
	MatchType
	MatchSubtype
	MatchPrefix
)

func (m MatchMode) String() string {
	switch m {
	case MatchExact:
		return "EXACT"
	case MatchType:
		return "TYPE"
	case MatchSubtype:
		return "SUBTYPE"
	case MatchPrefix:
		return "PREFIX"
	}
	return "CONTAINS"
}

func parseMatchMode(s string) (MatchMode, error) {
	switch s {
	case "", "CONTAINS":
		return MatchContains, nil
	case "EXACT":
		return MatchExact, nil
	case "TYPE":
		return MatchType, nil
	case "SUBTYPE":
		return MatchSubtype, nil
	case "PREFIX":
		return MatchPrefix, nil
	}
	return 0, fmt.Errorf("unknown terrain match type %q", s)
}

// TerrainMatch is one pattern an overmap terrain id is tested against.
type TerrainMatch struct {
	Pattern ident.ID
	Mode    MatchMode
}

// Matches applies the pattern under its mode.
func (m TerrainMatch) Matches(id ident.ID) bool {
	p, s := string(m.Pattern), string(id)
	switch m.Mode {
	case MatchExact:
		return s == p
	case MatchType:
		return segmentPrefix(s, p, 1)
	case MatchSubtype:
		return segmentPrefix(s, p, 2)
	case MatchPrefix:
		return strings.HasPrefix(s, p) && (len(s) == len(p) || s[len(p)] == '_')
	}
	return strings.Contains(s, p)
}

// segmentPrefix reports whether the first n '_'-separated segments of id
// equal pattern.
func segmentPrefix(id, pattern string, n int) bool {
	parts := strings.Split(id, "_")
	if len(parts) > n {
		parts = parts[:n]
	}
	return strings.Join(parts, "_") == pattern
}

func (m *TerrainMatch) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*m = TerrainMatch{Pattern: ident.ID(s), Mode: MatchContains}
		return nil
	}
	var obj struct {
		OmTerrain ident.ID `json:"om_terrain"`
		MatchType string   `json:"om_terrain_match_type"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	mode, err := parseMatchMode(obj.MatchType)
	if err != nil {
		return err
	}
	*m = TerrainMatch{Pattern: obj.OmTerrain, Mode: mode}
	return nil
}

// NeighborCondition requires, per direction, that every listed pattern
// matches all terrain ids simulated in that direction. A direction with
// requirements but no simulated neighbors never matches.
type NeighborCondition map[NeighborDirection][]TerrainMatch

// Matches evaluates the condition against a simulated neighborhood.
// An empty condition always holds.
func (c NeighborCondition) Matches(n Neighbors) bool {
	for dir, patterns := range c {
		ids := n[dir]
		if len(ids) == 0 {
			return false
		}
		for _, p := range patterns {
			for _, id := range ids {
				if !p.Matches(id) {
					return false
				}
			}
		}
	}
	return true
}

func decodeNeighborCondition(raw map[string]json.RawMessage) (NeighborCondition, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(NeighborCondition, len(raw))
	for k, v := range raw {
		dir := NeighborDirection(k)
		if _, ok := knownDirections[dir]; !ok {
			return nil, fmt.Errorf("unknown neighbor direction %q", k)
		}
		matches, err := decodeMatchList(v)
		if err != nil {
			return nil, fmt.Errorf("neighbor %q: %w", k, err)
		}
		out[dir] = matches
	}
	return out, nil
}

func decodeMatchList(raw json.RawMessage) ([]TerrainMatch, error) {
	var many []TerrainMatch
	if err := json.Unmarshal(raw, &many); err == nil {
		return many, nil
	}
	var one TerrainMatch
	if err := json.Unmarshal(raw, &one); err != nil {
		return nil, err
	}
	return []TerrainMatch{one}, nil
}
