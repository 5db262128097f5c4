package mapgen

import (
	"encoding/json"
	"fmt"
	"math/rand"

	"mapforge.dev/internal/gen/expr"
	"mapforge.dev/internal/gen/ident"
)

// Range is an authored number-or-range: a scalar n decodes to [n, n].
type Range struct {
	From, To int
}

// Roll draws a value from the inclusive range.
func (r Range) Roll(rng *rand.Rand) int {
	if r.To <= r.From {
		return r.From
	}
	return r.From + rng.Intn(r.To-r.From+1)
}

func (r *Range) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*r = Range{From: n, To: n}
		return nil
	}
	var pair []int
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("number or range: %w", err)
	}
	switch len(pair) {
	case 1:
		*r = Range{From: pair[0], To: pair[0]}
	case 2:
		*r = Range{From: pair[0], To: pair[1]}
	default:
		return fmt.Errorf("range has %d elements, want 1 or 2", len(pair))
	}
	return nil
}

// PlaceKind enumerates the placement rule kinds. The set is closed:
// resolution dispatches with an exhaustive switch.
type PlaceKind int

const (
	PlaceTerrain PlaceKind = iota
	PlaceFurniture
	PlaceTrap
	PlaceField
	PlaceMonster
	PlaceNested
	PlaceSign
	PlaceToilet
	PlaceComputer
	PlaceGasPump
	PlaceItem
	PlaceCorpse
	PlaceVehicle
)

func (k PlaceKind) String() string {
	names := [...]string{
		"terrain", "furniture", "trap", "field", "monster", "nested",
		"sign", "toilet", "computer", "gaspump", "item", "corpse", "vehicle",
	}
	if int(k) < len(names) {
		return names[k]
	}
	return fmt.Sprintf("place(%d)", int(k))
}

// PlaceRule draws one payload at coordinates rolled from X and Y, Repeat
// times, each time gated by Chance out of 100. Exactly the payload field
// of its Kind is populated.
type PlaceRule struct {
	Kind   PlaceKind
	X, Y   Range
	Repeat Range
	Chance int

	Value   expr.Value // terrain, furniture and trap rules
	Field   *FieldSpec
	Monster *MonsterSpec
	Nested  *NestedSpec
	Sign    *SignSpec
	GasPump *GasPumpSpec
	Item    *ItemSpec
	Corpse  *CorpseSpec
	Vehicle *VehicleSpec
}

// placeKeys maps the authored "place_*" object keys onto rule kinds.
// The slice order fixes the decode order so seeded resolution stays
// reproducible.
var placeKeys = []struct {
	key  string
	kind PlaceKind
}{
	{"place_terrain", PlaceTerrain},
	{"place_furniture", PlaceFurniture},
	{"place_traps", PlaceTrap},
	{"place_fields", PlaceField},
	{"place_monster", PlaceMonster},
	{"place_monsters", PlaceMonster},
	{"place_nested", PlaceNested},
	{"place_signs", PlaceSign},
	{"place_toilets", PlaceToilet},
	{"place_computers", PlaceComputer},
	{"place_gaspumps", PlaceGasPump},
	{"place_items", PlaceItem},
	{"place_corpses", PlaceCorpse},
	{"place_vehicles", PlaceVehicle},
}

type placeCommon struct {
	X      Range  `json:"x"`
	Y      Range  `json:"y"`
	Repeat *Range `json:"repeat"`
	Chance *int   `json:"chance"`
}

func (c placeCommon) fill(r *PlaceRule) {
	r.X, r.Y = c.X, c.Y
	r.Repeat = Range{From: 1, To: 1}
	if c.Repeat != nil {
		r.Repeat = *c.Repeat
	}
	r.Chance = 100
	if c.Chance != nil {
		r.Chance = *c.Chance
	}
}

func decodePlaceRule(kind PlaceKind, raw json.RawMessage) (PlaceRule, error) {
	rule := PlaceRule{Kind: kind}
	var common placeCommon
	if err := json.Unmarshal(raw, &common); err != nil {
		return rule, err
	}
	common.fill(&rule)

	switch kind {
	case PlaceTerrain, PlaceFurniture, PlaceTrap:
		var payload struct {
			Ter  *expr.Value `json:"ter"`
			Furn *expr.Value `json:"furn"`
			Trap *expr.Value `json:"trap"`
		}
		if err := json.Unmarshal(raw, &payload); err != nil {
			return rule, err
		}
		switch {
		case payload.Ter != nil:
			rule.Value = *payload.Ter
		case payload.Furn != nil:
			rule.Value = *payload.Furn
		case payload.Trap != nil:
			rule.Value = *payload.Trap
		default:
			return rule, fmt.Errorf("%s rule has no identifier value", kind)
		}
	case PlaceField:
		var payload fieldJSON
		if err := json.Unmarshal(raw, &payload); err != nil {
			return rule, err
		}
		spec, err := payload.spec()
		if err != nil {
			return rule, err
		}
		rule.Field = &spec
	case PlaceMonster:
		var payload monsterJSON
		if err := json.Unmarshal(raw, &payload); err != nil {
			return rule, err
		}
		spec, err := payload.spec()
		if err != nil {
			return rule, err
		}
		rule.Monster = &spec
	case PlaceNested:
		var payload nestedJSON
		if err := json.Unmarshal(raw, &payload); err != nil {
			return rule, err
		}
		spec, err := payload.spec()
		if err != nil {
			return rule, err
		}
		rule.Nested = &spec
	case PlaceSign:
		var payload SignSpec
		if err := json.Unmarshal(raw, &payload); err != nil {
			return rule, err
		}
		rule.Sign = &payload
	case PlaceToilet, PlaceComputer:
		// No payload beyond coordinates.
	case PlaceGasPump:
		var payload gasPumpJSON
		if err := json.Unmarshal(raw, &payload); err != nil {
			return rule, err
		}
		spec, _ := payload.spec()
		rule.GasPump = &spec
	case PlaceItem:
		var payload itemJSON
		if err := json.Unmarshal(raw, &payload); err != nil {
			return rule, err
		}
		spec, err := payload.spec()
		if err != nil {
			return rule, err
		}
		rule.Item = &spec
	case PlaceCorpse:
		var payload corpseJSON
		if err := json.Unmarshal(raw, &payload); err != nil {
			return rule, err
		}
		spec, err := payload.spec()
		if err != nil {
			return rule, err
		}
		rule.Corpse = &spec
	case PlaceVehicle:
		var payload vehicleJSON
		if err := json.Unmarshal(raw, &payload); err != nil {
			return rule, err
		}
		spec, err := payload.spec()
		if err != nil {
			return rule, err
		}
		rule.Vehicle = &spec
	default:
		return rule, fmt.Errorf("unhandled place kind %v", kind)
	}
	return rule, nil
}

// Template is one resolvable map: an id, a character grid, the palette-like
// body the characters are looked up in, placement rules and an optional
// predecessor overmap terrain whose map is resolved underneath first.
type Template struct {
	ID     ident.ID
	Weight int

	Body
	FillTerrain *expr.Value
	Predecessor ident.ID

	Width, Height int
	cells         [][]rune

	Place []PlaceRule
}

// Cell returns the character at (x, y).
func (t *Template) Cell(x, y int) rune { return t.cells[y][x] }

// SetCells installs the grid. Every row must have the same width.
func (t *Template) SetCells(rows []string) error {
	cells := make([][]rune, len(rows))
	width := -1
	for i, row := range rows {
		r := []rune(row)
		if width < 0 {
			width = len(r)
		} else if len(r) != width {
			return fmt.Errorf("row %d has %d cells, want %d", i, len(r), width)
		}
		cells[i] = r
	}
	t.cells = cells
	t.Height = len(cells)
	t.Width = 0
	if width > 0 {
		t.Width = width
	}
	return nil
}

// SubGrid carves the [x0, x0+w) x [y0, y0+h) window out of the grid,
// used when a multi-name overmap entry is split into chunk templates.
func (t *Template) SubGrid(x0, y0, w, h int) []string {
	rows := make([]string, 0, h)
	for y := y0; y < y0+h && y < t.Height; y++ {
		end := x0 + w
		if end > t.Width {
			end = t.Width
		}
		rows = append(rows, string(t.cells[y][x0:end]))
	}
	return rows
}

// DecodeObject fills the template from an authored mapgen "object" block.
func (t *Template) DecodeObject(raw json.RawMessage) error {
	if err := json.Unmarshal(raw, &t.Body); err != nil {
		return err
	}
	var head struct {
		FillTer     *expr.Value `json:"fill_ter"`
		Rows        []string    `json:"rows"`
		Predecessor ident.ID    `json:"predecessor_mapgen"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return err
	}
	t.FillTerrain = head.FillTer
	t.Predecessor = head.Predecessor
	if err := t.SetCells(head.Rows); err != nil {
		return err
	}

	var rest map[string]json.RawMessage
	if err := json.Unmarshal(raw, &rest); err != nil {
		return err
	}
	for _, pk := range placeKeys {
		rawRules, ok := rest[pk.key]
		if !ok {
			continue
		}
		var items []json.RawMessage
		if err := json.Unmarshal(rawRules, &items); err != nil {
			return fmt.Errorf("%s: %w", pk.key, err)
		}
		for i, item := range items {
			rule, err := decodePlaceRule(pk.kind, item)
			if err != nil {
				return fmt.Errorf("%s[%d]: %w", pk.key, i, err)
			}
			t.Place = append(t.Place, rule)
		}
	}
	return nil
}
