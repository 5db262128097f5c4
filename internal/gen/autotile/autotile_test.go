package autotile

import (
	"testing"

	"mapforge.dev/internal/gen/ident"
	"mapforge.dev/internal/gen/tile"
)

type fakeView struct {
	connectsTo map[ident.ID]map[ident.ID]struct{}
	groups     map[ident.ID]map[ident.ID]struct{}
}

func (f *fakeView) ConnectsTo(id ident.ID, _ tile.Layer) map[ident.ID]struct{} {
	return f.connectsTo[id]
}

func (f *fakeView) ConnectGroups(id ident.ID, _ tile.Layer) map[ident.ID]struct{} {
	return f.groups[id]
}

func set(ids ...ident.ID) map[ident.ID]struct{} {
	m := make(map[ident.ID]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return m
}

func TestClassifyTable(t *testing.T) {
	// Tuples are (north, east, south, west).
	cases := []struct {
		conn    [4]bool
		cat     Category
		dir     tile.Direction
	}{
		{[4]bool{true, true, true, true}, Center, tile.North},

		{[4]bool{true, true, false, true}, TConnection, tile.East},
		{[4]bool{true, true, true, false}, TConnection, tile.North},
		{[4]bool{false, true, true, true}, TConnection, tile.West},
		{[4]bool{true, false, true, true}, TConnection, tile.South},

		{[4]bool{true, true, false, false}, Corner, tile.North},
		{[4]bool{true, false, false, true}, Corner, tile.West},
		{[4]bool{false, true, true, false}, Corner, tile.East},
		{[4]bool{false, false, true, true}, Corner, tile.South},

		{[4]bool{false, true, false, true}, Edge, tile.East},
		{[4]bool{true, false, true, false}, Edge, tile.North},

		{[4]bool{true, false, false, false}, EndPiece, tile.North},
		{[4]bool{false, true, false, false}, EndPiece, tile.East},
		{[4]bool{false, false, true, false}, EndPiece, tile.South},
		{[4]bool{false, false, false, true}, EndPiece, tile.West},

		{[4]bool{false, false, false, false}, Unconnected, tile.North},
	}
	for _, c := range cases {
		cat, dir := classify(c.conn)
		if cat != c.cat || dir != c.dir {
			t.Fatalf("%v: got %v/%v, want %v/%v", c.conn, cat, dir, c.cat, c.dir)
		}
	}
}

func TestConnectedByIdentityAndGroups(t *testing.T) {
	v := &fakeView{
		connectsTo: map[ident.ID]map[ident.ID]struct{}{
			"t_wall": set("WALL"),
		},
		groups: map[ident.ID]map[ident.ID]struct{}{
			"t_wall":       set("WALL"),
			"t_wall_metal": set("WALL"),
			"t_grass":      set("FLOOR"),
		},
	}
	wall := ident.ID("t_wall_metal")
	grass := ident.ID("t_grass")

	if !Connected(v, tile.LayerTerrain, "t_wall", &wall) {
		t.Fatalf("wall should connect to the WALL group")
	}
	if Connected(v, tile.LayerTerrain, "t_wall", &grass) {
		t.Fatalf("wall should not connect to grass")
	}
	if Connected(v, tile.LayerTerrain, "t_wall", nil) {
		t.Fatalf("empty neighbors never connect")
	}
	// Identical ids connect even with no connectivity data at all.
	if !Connected(v, tile.LayerTerrain, "t_grass", &grass) {
		t.Fatalf("identical ids should connect")
	}
}

func TestSelectCornerFromNorthEast(t *testing.T) {
	v := &fakeView{
		connectsTo: map[ident.ID]map[ident.ID]struct{}{"t_wall": set("WALL")},
		groups:     map[ident.ID]map[ident.ID]struct{}{"t_wall": set("WALL")},
	}
	wall := ident.ID("t_wall")
	cat, dir := Select(v, tile.LayerTerrain, "t_wall", Neighborhood{North: &wall, East: &wall})
	if cat != Corner || dir != tile.North {
		t.Fatalf("got %v/%v, want corner/north", cat, dir)
	}
}
