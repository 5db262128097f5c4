package mapgen

import (
	"fmt"

	"mapforge.dev/internal/gen/ident"
)

// MissingPaletteError is fatal: a referenced palette is not in the catalogue.
type MissingPaletteError struct {
	ID ident.ID
}

func (e *MissingPaletteError) Error() string {
	return fmt.Sprintf("palette %q not found", e.ID)
}

// CyclicReferenceError is fatal: a palette, nested chunk or predecessor
// chain revisited an id already on the current path.
type CyclicReferenceError struct {
	Kind string
	ID   ident.ID
}

func (e *CyclicReferenceError) Error() string {
	return fmt.Sprintf("cyclic %s reference through %q", e.Kind, e.ID)
}

// MissingPredecessorError is fatal: a predecessor chain could not be
// followed. Stage tells which lookup failed.
type MissingPredecessorError struct {
	OmTerrain ident.ID
	Stage     string
}

func (e *MissingPredecessorError) Error() string {
	return fmt.Sprintf("predecessor %q: no %s", e.OmTerrain, e.Stage)
}

const (
	// PredecessorStageTerrain marks a miss on the overmap terrain itself.
	PredecessorStageTerrain = "overmap terrain"
	// PredecessorStageMapgen marks a terrain with no mapgen entry.
	PredecessorStageMapgen = "mapgen entry"
)

// MissingEntryError is recoverable: a resolved identifier has no catalogue
// object. The affected cell or rule is skipped and the error surfaces as a
// warning.
type MissingEntryError struct {
	Kind string
	ID   ident.ID
}

func (e *MissingEntryError) Error() string {
	return fmt.Sprintf("%s %q not in catalogue", e.Kind, e.ID)
}

// Warning records a recoverable resolution problem with its location.
type Warning struct {
	X, Y int
	Char rune
	Err  error
}

func (w Warning) String() string {
	if w.Char != 0 {
		return fmt.Sprintf("(%d,%d) %q: %v", w.X, w.Y, string(w.Char), w.Err)
	}
	return fmt.Sprintf("(%d,%d): %v", w.X, w.Y, w.Err)
}
