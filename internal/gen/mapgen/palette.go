// Package mapgen holds the grid model of map templates and palettes and the
// resolver that turns them into placement commands.
package mapgen

import (
	"bytes"
	"encoding/json"
	"fmt"

	"mapforge.dev/internal/gen/expr"
	"mapforge.dev/internal/gen/ident"
)

// Parameter is one palette parameter. Declaration order is significant:
// a parameter's default may reference parameters declared before it.
type Parameter struct {
	Name    ident.ParamID
	Scope   string
	Default expr.Value
}

// FieldSpec places a field with an intensity and an age.
type FieldSpec struct {
	Field     expr.Value
	Intensity int
	Age       int
}

// MonsterSpec places a single monster or a random pick from a group.
// Exactly one of Monster and Group is set.
type MonsterSpec struct {
	Monster *expr.Value
	Group   *expr.Value
	Chance  Range
}

// NestedSpec includes another template at a cell, gated on the overmap
// neighborhood. Chunks are drawn when the condition holds; else chunks are
// the inverted branch, drawn when it does not.
type NestedSpec struct {
	Chunks     []expr.Weighted
	ElseChunks []expr.Weighted
	Neighbors  NeighborCondition
}

// SignSpec is carried for the authored signage text; signs render as fixed
// furniture.
type SignSpec struct {
	Signage string
}

// GasPumpSpec picks the pump terrain by fuel type.
type GasPumpSpec struct {
	Fuel string
}

// ItemSpec is representation-only: items occupy the model but emit no tile.
type ItemSpec struct {
	Item   expr.Value
	Chance Range
}

// CorpseSpec is representation-only, like items.
type CorpseSpec struct {
	Group expr.Value
}

// VehicleSpec places a vehicle definition from the catalogue.
type VehicleSpec struct {
	Vehicle  expr.Value
	Chance   int
	Rotation int
}

// Body is the shared shape of a palette and of a template's object block:
// ordered parameters, nested palette references and the per-character
// property tables.
type Body struct {
	Parameters []Parameter
	Palettes   []expr.Value

	Terrain   map[rune]expr.Value
	Furniture map[rune]expr.Value
	Traps     map[rune]expr.Value
	Fields    map[rune]FieldSpec
	Monsters  map[rune]MonsterSpec
	Nested    map[rune][]NestedSpec
	Signs     map[rune]SignSpec
	Toilets   map[rune]struct{}
	Computers map[rune]struct{}
	GasPumps  map[rune]GasPumpSpec
	Items     map[rune]ItemSpec
	Corpses   map[rune]CorpseSpec
	Vehicles  map[rune]VehicleSpec
}

// Palette is a reusable body with an id.
type Palette struct {
	ID ident.ID
	Body
}

type bodyJSON struct {
	Parameters json.RawMessage `json:"parameters"`
	Palettes   []expr.Value    `json:"palettes"`

	Terrain   map[string]expr.Value      `json:"terrain"`
	Furniture map[string]expr.Value      `json:"furniture"`
	Traps     map[string]expr.Value      `json:"traps"`
	Fields    map[string]fieldJSON       `json:"fields"`
	Monsters  map[string]monsterJSON     `json:"monster"`
	Nested    map[string]nestedList      `json:"nested"`
	Signs     map[string]SignSpec        `json:"signs"`
	Toilets   map[string]json.RawMessage `json:"toilets"`
	Computers map[string]json.RawMessage `json:"computers"`
	GasPumps  map[string]gasPumpJSON     `json:"gaspumps"`
	Items     map[string]itemJSON        `json:"items"`
	Corpses   map[string]corpseJSON      `json:"corpses"`
	Vehicles  map[string]vehicleJSON     `json:"vehicles"`
}

func (b *Body) UnmarshalJSON(data []byte) error {
	var raw bodyJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	params, err := decodeParameters(raw.Parameters)
	if err != nil {
		return err
	}
	b.Parameters = params
	b.Palettes = raw.Palettes

	b.Terrain, err = charKeys(raw.Terrain)
	if err != nil {
		return fmt.Errorf("terrain: %w", err)
	}
	b.Furniture, err = charKeys(raw.Furniture)
	if err != nil {
		return fmt.Errorf("furniture: %w", err)
	}
	b.Traps, err = charKeys(raw.Traps)
	if err != nil {
		return fmt.Errorf("traps: %w", err)
	}

	if b.Fields, err = convertChars(raw.Fields, fieldJSON.spec); err != nil {
		return fmt.Errorf("fields: %w", err)
	}
	if b.Monsters, err = convertChars(raw.Monsters, monsterJSON.spec); err != nil {
		return fmt.Errorf("monster: %w", err)
	}
	if b.Nested, err = convertChars(raw.Nested, nestedList.specs); err != nil {
		return fmt.Errorf("nested: %w", err)
	}
	if b.Signs, err = convertChars(raw.Signs, func(s SignSpec) (SignSpec, error) { return s, nil }); err != nil {
		return fmt.Errorf("signs: %w", err)
	}
	if b.Toilets, err = convertChars(raw.Toilets, func(json.RawMessage) (struct{}, error) { return struct{}{}, nil }); err != nil {
		return fmt.Errorf("toilets: %w", err)
	}
	if b.Computers, err = convertChars(raw.Computers, func(json.RawMessage) (struct{}, error) { return struct{}{}, nil }); err != nil {
		return fmt.Errorf("computers: %w", err)
	}
	if b.GasPumps, err = convertChars(raw.GasPumps, gasPumpJSON.spec); err != nil {
		return fmt.Errorf("gaspumps: %w", err)
	}
	if b.Items, err = convertChars(raw.Items, itemJSON.spec); err != nil {
		return fmt.Errorf("items: %w", err)
	}
	if b.Corpses, err = convertChars(raw.Corpses, corpseJSON.spec); err != nil {
		return fmt.Errorf("corpses: %w", err)
	}
	if b.Vehicles, err = convertChars(raw.Vehicles, vehicleJSON.spec); err != nil {
		return fmt.Errorf("vehicles: %w", err)
	}
	return nil
}

// decodeParameters walks the object with a token decoder so declaration
// order survives; encoding/json maps would shuffle it.
func decodeParameters(raw json.RawMessage) ([]Parameter, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("parameters: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("parameters: expected object, got %v", tok)
	}
	var out []Parameter
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("parameters: %w", err)
		}
		name := keyTok.(string)
		var decl struct {
			Type    string     `json:"type"`
			Scope   string     `json:"scope"`
			Default expr.Value `json:"default"`
		}
		if err := dec.Decode(&decl); err != nil {
			return nil, fmt.Errorf("parameter %q: %w", name, err)
		}
		out = append(out, Parameter{
			Name:    ident.ParamID(name),
			Scope:   decl.Scope,
			Default: decl.Default,
		})
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("parameters: %w", err)
	}
	return out, nil
}

func charKeys(in map[string]expr.Value) (map[rune]expr.Value, error) {
	return convertChars(in, func(v expr.Value) (expr.Value, error) { return v, nil })
}

func convertChars[I, O any](in map[string]I, conv func(I) (O, error)) (map[rune]O, error) {
	if in == nil {
		return nil, nil
	}
	out := make(map[rune]O, len(in))
	for k, v := range in {
		r := []rune(k)
		if len(r) != 1 {
			return nil, fmt.Errorf("map key %q is not a single character", k)
		}
		o, err := conv(v)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		out[r[0]] = o
	}
	return out, nil
}

type fieldJSON struct {
	Field     expr.Value `json:"field"`
	Intensity int        `json:"intensity"`
	Age       int        `json:"age"`
}

func (f fieldJSON) spec() (FieldSpec, error) {
	return FieldSpec{Field: f.Field, Intensity: f.Intensity, Age: f.Age}, nil
}

func (f *fieldJSON) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		f.Field = expr.Lit(ident.ID(s))
		f.Intensity = 1
		return nil
	}
	type alias fieldJSON
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*f = fieldJSON(a)
	return nil
}

type monsterJSON struct {
	Monster *expr.Value `json:"monster"`
	Group   *expr.Value `json:"group"`
	Chance  *Range      `json:"chance"`
}

func (m monsterJSON) spec() (MonsterSpec, error) {
	if (m.Monster == nil) == (m.Group == nil) {
		return MonsterSpec{}, fmt.Errorf("monster entry needs exactly one of monster or group")
	}
	chance := Range{From: 100, To: 100}
	if m.Chance != nil {
		chance = *m.Chance
	}
	return MonsterSpec{Monster: m.Monster, Group: m.Group, Chance: chance}, nil
}

func (m *monsterJSON) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v := expr.Lit(ident.ID(s))
		m.Monster = &v
		return nil
	}
	type alias monsterJSON
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*m = monsterJSON(a)
	return nil
}

type nestedJSON struct {
	Chunks     []json.RawMessage          `json:"chunks"`
	ElseChunks []json.RawMessage          `json:"else_chunks"`
	Neighbors  map[string]json.RawMessage `json:"neighbors"`
	Invert     bool                       `json:"invert_condition"`
}

// nestedList accepts a single nested entry or an array; the resolver
// draws one entry per placement.
type nestedList []nestedJSON

func (l *nestedList) UnmarshalJSON(data []byte) error {
	var one nestedJSON
	if err := json.Unmarshal(data, &one); err == nil {
		*l = nestedList{one}
		return nil
	}
	var many []nestedJSON
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*l = nestedList(many)
	return nil
}

func (l nestedList) specs() ([]NestedSpec, error) {
	out := make([]NestedSpec, 0, len(l))
	for i, n := range l {
		s, err := n.spec()
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		out = append(out, s)
	}
	return out, nil
}

func (n nestedJSON) spec() (NestedSpec, error) {
	chunks, err := decodeWeightedChunks(n.Chunks)
	if err != nil {
		return NestedSpec{}, fmt.Errorf("chunks: %w", err)
	}
	elseChunks, err := decodeWeightedChunks(n.ElseChunks)
	if err != nil {
		return NestedSpec{}, fmt.Errorf("else_chunks: %w", err)
	}
	cond, err := decodeNeighborCondition(n.Neighbors)
	if err != nil {
		return NestedSpec{}, err
	}
	// invert_condition places the chunks when the condition fails, which
	// is exactly the else slot.
	if n.Invert {
		chunks, elseChunks = elseChunks, chunks
	}
	return NestedSpec{
		Chunks:     chunks,
		ElseChunks: elseChunks,
		Neighbors:  cond,
	}, nil
}

func decodeWeightedChunks(raw []json.RawMessage) ([]expr.Weighted, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	joined, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var v expr.Value
	if err := json.Unmarshal(joined, &v); err != nil {
		return nil, err
	}
	return v.Dist, nil
}

type gasPumpJSON struct {
	Fuel string `json:"fuel"`
}

func (g gasPumpJSON) spec() (GasPumpSpec, error) {
	return GasPumpSpec{Fuel: g.Fuel}, nil
}

type itemJSON struct {
	Item   expr.Value `json:"item"`
	Chance *Range     `json:"chance"`
}

func (i itemJSON) spec() (ItemSpec, error) {
	chance := Range{From: 100, To: 100}
	if i.Chance != nil {
		chance = *i.Chance
	}
	return ItemSpec{Item: i.Item, Chance: chance}, nil
}

func (i *itemJSON) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		i.Item = expr.Lit(ident.ID(s))
		return nil
	}
	type alias itemJSON
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*i = itemJSON(a)
	return nil
}

type corpseJSON struct {
	Group expr.Value `json:"group"`
}

func (c corpseJSON) spec() (CorpseSpec, error) {
	return CorpseSpec{Group: c.Group}, nil
}

type vehicleJSON struct {
	Vehicle  expr.Value `json:"vehicle"`
	Chance   *int       `json:"chance"`
	Rotation int        `json:"rotation"`
}

func (v vehicleJSON) spec() (VehicleSpec, error) {
	chance := 100
	if v.Chance != nil {
		chance = *v.Chance
	}
	return VehicleSpec{Vehicle: v.Vehicle, Chance: chance, Rotation: v.Rotation}, nil
}

func (v *vehicleJSON) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v.Vehicle = expr.Lit(ident.ID(s))
		return nil
	}
	type alias vehicleJSON
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*v = vehicleJSON(a)
	return nil
}
