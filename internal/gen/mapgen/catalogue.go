package mapgen

import (
	"math/rand"

	"mapforge.dev/internal/gen/ident"
)

// Vehicle is a placeable vehicle definition: parts at mount offsets.
type Vehicle struct {
	ID    ident.ID
	Parts []VehiclePart
}

// VehiclePart is one installed part, optionally with a sprite variant.
type VehiclePart struct {
	Part    ident.ID
	X, Y    int
	Variant string
}

// Catalogue is the read-only data source resolution runs against. The
// concrete catalogue lives one package up; the resolver only needs these
// lookups.
type Catalogue interface {
	// Palette returns a palette definition by id.
	Palette(id ident.ID) (*Palette, bool)

	// Nested returns a nested chunk template by its nested mapgen id.
	Nested(id ident.ID) (*Template, bool)

	// ForOmTerrain returns the map template generating an overmap terrain,
	// drawing from the weighted candidates with rng. The error is a
	// MissingPredecessorError when the chain cannot be followed.
	ForOmTerrain(om ident.ID, rng *rand.Rand) (*Template, error)

	// MonsterFromGroup draws one monster id from a monster group.
	MonsterFromGroup(group ident.ID, rng *rand.Rand) (ident.ID, bool)

	// Vehicle returns a vehicle definition by id.
	Vehicle(id ident.ID) (*Vehicle, bool)
}
