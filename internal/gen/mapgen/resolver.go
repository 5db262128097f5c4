package mapgen

import (
	"fmt"
	"math/rand"
	"sort"

	"mapforge.dev/internal/gen/expr"
	"mapforge.dev/internal/gen/ident"
	"mapforge.dev/internal/gen/tile"
)

// Fixed furniture ids emitted by the single-purpose placements.
const (
	signFurniture     ident.ID = "f_sign"
	toiletFurniture   ident.ID = "f_toilet"
	computerFurniture ident.ID = "f_console"

	gasPumpTerrain    ident.ID = "t_gas_pump"
	dieselPumpTerrain ident.ID = "t_diesel_pump"
	jp8PumpTerrain    ident.ID = "t_jp8_pump"
)

// Resolver turns templates into placement commands. It is single-use per
// goroutine: the random source is not shared.
type Resolver struct {
	cat       Catalogue
	rng       *rand.Rand
	neighbors Neighbors
	warnings  []Warning
}

// New builds a resolver. neighbors may be nil when no neighborhood is
// simulated; nested conditions with requirements then never match.
func New(cat Catalogue, rng *rand.Rand, neighbors Neighbors) *Resolver {
	return &Resolver{cat: cat, rng: rng, neighbors: neighbors}
}

// Warnings returns the recoverable problems hit since construction.
func (r *Resolver) Warnings() []Warning { return r.warnings }

func (r *Resolver) warn(x, y int, c rune, err error) {
	r.warnings = append(r.warnings, Warning{X: x, Y: y, Char: c, Err: err})
}

// Environment builds the parameter environment of a body: own parameters
// in declaration order, then the referenced palettes merged in list order,
// later values winning on collision.
func (r *Resolver) Environment(b *Body) (expr.Env, error) {
	env, _, err := r.buildEnv(b, map[ident.ID]bool{})
	return env, err
}

func (r *Resolver) buildEnv(b *Body, visited map[ident.ID]bool) (expr.Env, []*Body, error) {
	env := expr.Env{}
	for _, p := range b.Parameters {
		v, err := p.Default.Resolve(env, r.rng)
		if err != nil {
			return nil, nil, fmt.Errorf("parameter %q: %w", p.Name, err)
		}
		env[p.Name] = v
	}
	chain := []*Body{b}
	for _, ref := range b.Palettes {
		id, err := ref.Resolve(env, r.rng)
		if err != nil {
			return nil, nil, err
		}
		if visited[id] {
			return nil, nil, &CyclicReferenceError{Kind: "palette", ID: id}
		}
		pal, ok := r.cat.Palette(id)
		if !ok {
			return nil, nil, &MissingPaletteError{ID: id}
		}
		visited[id] = true
		childEnv, childChain, err := r.buildEnv(&pal.Body, visited)
		delete(visited, id)
		if err != nil {
			return nil, nil, fmt.Errorf("palette %q: %w", id, err)
		}
		for k, v := range childEnv {
			env[k] = v
		}
		chain = append(chain, childChain...)
	}
	return env, chain, nil
}

// findIn walks the body chain, own body first, and returns the first table
// binding c for the kind selected by get.
func findIn[T any](chain []*Body, get func(*Body) map[rune]T, c rune) (T, bool) {
	for _, b := range chain {
		if m := get(b); m != nil {
			if v, ok := m[c]; ok {
				return v, true
			}
		}
	}
	var zero T
	return zero, false
}

// ResolvedMap is the outcome of resolving one template: commands sorted by
// layer plus the fill terrain applied wherever nothing set the terrain.
type ResolvedMap struct {
	Commands []tile.Command
	Fill     *ident.ID
	Rotation tile.Rotation
}

// Resolve produces the commands of a template under a map rotation,
// stable-sorted by output layer. Nested inclusions are expanded and
// translated into the template's coordinate space before the rotation is
// applied.
func (r *Resolver) Resolve(tpl *Template, rot tile.Rotation) ([]tile.Command, error) {
	m, err := r.ResolveMap(tpl, rot)
	if err != nil {
		return nil, err
	}
	return m.Commands, nil
}

// ResolveMap resolves a template together with its fill terrain. The fill
// is drawn from the same environment as the cells so parameterized fills
// stay consistent with the grid.
func (r *Resolver) ResolveMap(tpl *Template, rot tile.Rotation) (*ResolvedMap, error) {
	cmds, fill, err := r.resolveMap(tpl, map[ident.ID]bool{})
	if err != nil {
		return nil, err
	}
	for i := range cmds {
		cmds[i].X, cmds[i].Y = rotateCoord(cmds[i].X, cmds[i].Y, tpl.Width, tpl.Height, rot)
		cmds[i].Rotation = cmds[i].Rotation.Add(rot)
	}
	sort.SliceStable(cmds, func(i, j int) bool { return cmds[i].Layer < cmds[j].Layer })
	return &ResolvedMap{Commands: cmds, Fill: fill, Rotation: rot}, nil
}

// rotateCoord maps local coordinates into the rotated frame.
func rotateCoord(x, y, w, h int, rot tile.Rotation) (int, int) {
	switch rot {
	case tile.Deg90:
		return h - 1 - y, x
	case tile.Deg180:
		return w - 1 - x, h - 1 - y
	case tile.Deg270:
		return y, w - 1 - x
	}
	return x, y
}

// commands resolves a template used as a nested chunk, where fill terrain
// does not apply.
func (r *Resolver) commands(tpl *Template, visited map[ident.ID]bool) ([]tile.Command, error) {
	cmds, _, err := r.resolveMap(tpl, visited)
	return cmds, err
}

func (r *Resolver) resolveMap(tpl *Template, visited map[ident.ID]bool) ([]tile.Command, *ident.ID, error) {
	env, chain, err := r.buildEnv(&tpl.Body, map[ident.ID]bool{})
	if err != nil {
		return nil, nil, err
	}

	var fill *ident.ID
	if tpl.FillTerrain != nil {
		id, err := tpl.FillTerrain.Resolve(env, r.rng)
		if err != nil {
			return nil, nil, fmt.Errorf("fill_ter: %w", err)
		}
		if !ident.IsNull(id) {
			fill = &id
		}
	}

	var out []tile.Command
	for y := 0; y < tpl.Height; y++ {
		for x := 0; x < tpl.Width; x++ {
			cellCmds, err := r.cellCommands(chain, env, tpl.Cell(x, y), x, y, visited)
			if err != nil {
				return nil, nil, fmt.Errorf("cell (%d,%d) %q: %w", x, y, string(tpl.Cell(x, y)), err)
			}
			out = append(out, cellCmds...)
		}
	}

	for i, rule := range tpl.Place {
		repeat := rule.Repeat.Roll(r.rng)
		for n := 0; n < repeat; n++ {
			if r.rng.Intn(101) > rule.Chance {
				continue
			}
			x, y := rule.X.Roll(r.rng), rule.Y.Roll(r.rng)
			ruleCmds, err := r.ruleCommands(&rule, env, x, y, visited)
			if err != nil {
				return nil, nil, fmt.Errorf("place %s[%d]: %w", rule.Kind, i, err)
			}
			out = append(out, ruleCmds...)
		}
	}
	return out, fill, nil
}

// cellCommands resolves every property kind bound to the cell's character.
// Kinds are visited in a fixed order so random draws replay identically
// for a given seed.
func (r *Resolver) cellCommands(chain []*Body, env expr.Env, c rune, x, y int, visited map[ident.ID]bool) ([]tile.Command, error) {
	var out []tile.Command

	emit := func(layer tile.Layer, id ident.ID) {
		if ident.IsNull(id) {
			return
		}
		out = append(out, tile.Command{Layer: layer, X: x, Y: y, Sheet: tile.Sheet(id)})
	}
	resolveEmit := func(layer tile.Layer, v expr.Value) error {
		id, err := v.Resolve(env, r.rng)
		if err != nil {
			return err
		}
		emit(layer, id)
		return nil
	}

	if v, ok := findIn(chain, func(b *Body) map[rune]expr.Value { return b.Terrain }, c); ok {
		if err := resolveEmit(tile.LayerTerrain, v); err != nil {
			return nil, err
		}
	}
	if v, ok := findIn(chain, func(b *Body) map[rune]expr.Value { return b.Furniture }, c); ok {
		if err := resolveEmit(tile.LayerFurniture, v); err != nil {
			return nil, err
		}
	}
	// Traps share the furniture layer.
	if v, ok := findIn(chain, func(b *Body) map[rune]expr.Value { return b.Traps }, c); ok {
		if err := resolveEmit(tile.LayerFurniture, v); err != nil {
			return nil, err
		}
	}
	if f, ok := findIn(chain, func(b *Body) map[rune]FieldSpec { return b.Fields }, c); ok {
		if err := resolveEmit(tile.LayerField, f.Field); err != nil {
			return nil, err
		}
	}
	if m, ok := findIn(chain, func(b *Body) map[rune]MonsterSpec { return b.Monsters }, c); ok {
		cmds, err := r.monsterCommand(&m, env, x, y, c)
		if err != nil {
			return nil, err
		}
		out = append(out, cmds...)
	}
	if n, ok := findIn(chain, func(b *Body) map[rune][]NestedSpec { return b.Nested }, c); ok && len(n) > 0 {
		// A char may carry several alternatives; one is drawn per cell.
		spec := &n[0]
		if len(n) > 1 {
			spec = &n[r.rng.Intn(len(n))]
		}
		cmds, err := r.nestedCommands(spec, env, x, y, visited)
		if err != nil {
			return nil, err
		}
		out = append(out, cmds...)
	}
	if _, ok := findIn(chain, func(b *Body) map[rune]SignSpec { return b.Signs }, c); ok {
		emit(tile.LayerFurniture, signFurniture)
	}
	if _, ok := findIn(chain, func(b *Body) map[rune]struct{} { return b.Toilets }, c); ok {
		emit(tile.LayerFurniture, toiletFurniture)
	}
	if _, ok := findIn(chain, func(b *Body) map[rune]struct{} { return b.Computers }, c); ok {
		emit(tile.LayerFurniture, computerFurniture)
	}
	if g, ok := findIn(chain, func(b *Body) map[rune]GasPumpSpec { return b.GasPumps }, c); ok {
		emit(tile.LayerFurniture, pumpTerrain(g.Fuel))
	}
	if v, ok := findIn(chain, func(b *Body) map[rune]VehicleSpec { return b.Vehicles }, c); ok {
		cmds, err := r.vehicleCommands(&v, env, x, y, c)
		if err != nil {
			return nil, err
		}
		out = append(out, cmds...)
	}
	// Items and corpses are representation-only and emit nothing.
	return out, nil
}

func (r *Resolver) ruleCommands(rule *PlaceRule, env expr.Env, x, y int, visited map[ident.ID]bool) ([]tile.Command, error) {
	emit := func(layer tile.Layer, id ident.ID) []tile.Command {
		if ident.IsNull(id) {
			return nil
		}
		return []tile.Command{{Layer: layer, X: x, Y: y, Sheet: tile.Sheet(id)}}
	}

	switch rule.Kind {
	case PlaceTerrain, PlaceFurniture, PlaceTrap:
		id, err := rule.Value.Resolve(env, r.rng)
		if err != nil {
			return nil, err
		}
		layer := tile.LayerTerrain
		if rule.Kind != PlaceTerrain {
			layer = tile.LayerFurniture
		}
		return emit(layer, id), nil
	case PlaceField:
		id, err := rule.Field.Field.Resolve(env, r.rng)
		if err != nil {
			return nil, err
		}
		return emit(tile.LayerField, id), nil
	case PlaceMonster:
		return r.monsterCommand(rule.Monster, env, x, y, 0)
	case PlaceNested:
		return r.nestedCommands(rule.Nested, env, x, y, visited)
	case PlaceSign:
		return emit(tile.LayerFurniture, signFurniture), nil
	case PlaceToilet:
		return emit(tile.LayerFurniture, toiletFurniture), nil
	case PlaceComputer:
		return emit(tile.LayerFurniture, computerFurniture), nil
	case PlaceGasPump:
		return emit(tile.LayerFurniture, pumpTerrain(rule.GasPump.Fuel)), nil
	case PlaceItem, PlaceCorpse:
		return nil, nil
	case PlaceVehicle:
		return r.vehicleCommands(rule.Vehicle, env, x, y, 0)
	}
	return nil, fmt.Errorf("unhandled place kind %v", rule.Kind)
}

func pumpTerrain(fuel string) ident.ID {
	switch fuel {
	case "diesel":
		return dieselPumpTerrain
	case "jp8":
		return jp8PumpTerrain
	}
	return gasPumpTerrain
}

// monsterCommand rolls the spawn chance before resolving the identifier,
// so the random stream matches regardless of whether the monster exists.
func (r *Resolver) monsterCommand(m *MonsterSpec, env expr.Env, x, y int, c rune) ([]tile.Command, error) {
	if !isRandomHit(r.rng, m.Chance, 100) {
		return nil, nil
	}
	var id ident.ID
	switch {
	case m.Monster != nil:
		got, err := m.Monster.Resolve(env, r.rng)
		if err != nil {
			return nil, err
		}
		id = got
	case m.Group != nil:
		group, err := m.Group.Resolve(env, r.rng)
		if err != nil {
			return nil, err
		}
		got, ok := r.cat.MonsterFromGroup(group, r.rng)
		if !ok {
			r.warn(x, y, c, &MissingEntryError{Kind: "monster group", ID: group})
			return nil, nil
		}
		id = got
	default:
		return nil, nil
	}
	if ident.IsNull(id) {
		return nil, nil
	}
	return []tile.Command{{Layer: tile.LayerMonster, X: x, Y: y, Sheet: tile.Sheet(id)}}, nil
}

// isRandomHit draws the original one-in-(bound-n) spawn gate. A chance at
// or above the bound always hits.
func isRandomHit(rng *rand.Rand, c Range, bound int) bool {
	if c.From == c.To {
		if c.From >= bound {
			return true
		}
		return rng.Intn(bound-c.From)+c.From == c.From
	}
	if c.To <= c.From {
		return c.From >= bound
	}
	return rng.Intn(c.To-c.From)+c.From == c.From
}

func (r *Resolver) nestedCommands(spec *NestedSpec, env expr.Env, x, y int, visited map[ident.ID]bool) ([]tile.Command, error) {
	entries := spec.Chunks
	if !spec.Neighbors.Matches(r.neighbors) {
		entries = spec.ElseChunks
	}
	if len(entries) == 0 {
		return nil, nil
	}
	val, err := expr.Draw(entries, r.rng)
	if err != nil {
		return nil, err
	}
	id, err := val.Resolve(env, r.rng)
	if err != nil {
		return nil, err
	}
	if ident.IsNull(id) {
		return nil, nil
	}
	if visited[id] {
		return nil, &CyclicReferenceError{Kind: "nested chunk", ID: id}
	}
	chunk, ok := r.cat.Nested(id)
	if !ok {
		r.warn(x, y, 0, &MissingEntryError{Kind: "nested chunk", ID: id})
		return nil, nil
	}
	visited[id] = true
	sub, err := r.commands(chunk, visited)
	delete(visited, id)
	if err != nil {
		return nil, fmt.Errorf("nested %q: %w", id, err)
	}
	for i := range sub {
		sub[i].X += x
		sub[i].Y += y
	}
	return sub, nil
}

func (r *Resolver) vehicleCommands(spec *VehicleSpec, env expr.Env, x, y int, c rune) ([]tile.Command, error) {
	if r.rng.Intn(101) > spec.Chance {
		return nil, nil
	}
	id, err := spec.Vehicle.Resolve(env, r.rng)
	if err != nil {
		return nil, err
	}
	if ident.IsNull(id) {
		return nil, nil
	}
	veh, ok := r.cat.Vehicle(id)
	if !ok {
		r.warn(x, y, c, &MissingEntryError{Kind: "vehicle", ID: id})
		return nil, nil
	}
	rot := tile.Rotation((spec.Rotation / 90) & 3)
	out := make([]tile.Command, 0, len(veh.Parts))
	for _, part := range veh.Parts {
		out = append(out, tile.Command{
			Layer:    tile.LayerFurniture,
			X:        x + part.X,
			Y:        y + part.Y,
			Sheet:    tile.SheetID{ID: part.Part, Postfix: part.Variant},
			Rotation: rot,
		})
	}
	return out, nil
}
