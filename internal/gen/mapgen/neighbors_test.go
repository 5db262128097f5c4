package mapgen

import (
	"encoding/json"
	"testing"

	"mapforge.dev/internal/gen/ident"
)

func TestTerrainMatchModes(t *testing.T) {
	cases := []struct {
		pattern string
		mode    MatchMode
		id      string
		want    bool
	}{
		{"house", MatchExact, "house", true},
		{"house", MatchExact, "house_w", false},

		{"house", MatchType, "house_w", true},
		{"house", MatchType, "house", true},
		{"house", MatchType, "houseboat_w", false},

		{"house_w", MatchSubtype, "house_w_1", true},
		{"house_w", MatchSubtype, "house_n_1", false},

		{"road", MatchPrefix, "road", true},
		{"road", MatchPrefix, "road_ns", true},
		{"road", MatchPrefix, "roadstop", false},

		{"oad_n", MatchContains, "road_ns", true},
		{"oad_n", MatchContains, "field", false},
	}
	for _, c := range cases {
		m := TerrainMatch{Pattern: ident.ID(c.pattern), Mode: c.mode}
		if got := m.Matches(ident.ID(c.id)); got != c.want {
			t.Fatalf("%s %q vs %q: got %v, want %v", c.mode, c.pattern, c.id, got, c.want)
		}
	}
}

func TestTerrainMatchDecodeDefaultsToContains(t *testing.T) {
	var m TerrainMatch
	if err := json.Unmarshal([]byte(`"road"`), &m); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if m.Mode != MatchContains || m.Pattern != "road" {
		t.Fatalf("bare string decoded to %+v", m)
	}

	if err := json.Unmarshal([]byte(`{"om_terrain": "road", "om_terrain_match_type": "EXACT"}`), &m); err != nil {
		t.Fatalf("decode object: %v", err)
	}
	if m.Mode != MatchExact {
		t.Fatalf("object decoded to %+v", m)
	}

	if err := json.Unmarshal([]byte(`{"om_terrain": "x", "om_terrain_match_type": "FUZZY"}`), &m); err == nil {
		t.Fatalf("unknown match type accepted")
	}
}

func TestNeighborConditionRequiresAllIDs(t *testing.T) {
	cond := NeighborCondition{
		DirNorth: {{Pattern: "road", Mode: MatchType}},
	}
	if !cond.Matches(Neighbors{DirNorth: {"road_ns", "road_ew"}}) {
		t.Fatalf("all-matching neighborhood rejected")
	}
	if cond.Matches(Neighbors{DirNorth: {"road_ns", "field"}}) {
		t.Fatalf("partially matching neighborhood accepted")
	}
	if cond.Matches(Neighbors{}) {
		t.Fatalf("empty direction accepted")
	}
	if !(NeighborCondition{}).Matches(Neighbors{}) {
		t.Fatalf("empty condition rejected")
	}
}
