package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Request validation.
	ErrBadRequest = "E_BAD_REQUEST"

	// Catalogue lookups.
	ErrMapNotFound         = "E_MAP_NOT_FOUND"
	ErrPaletteNotFound     = "E_PALETTE_NOT_FOUND"
	ErrPredecessorNotFound = "E_PREDECESSOR_NOT_FOUND"

	// Resolution failures.
	ErrCyclicReference = "E_CYCLIC_REFERENCE"
	ErrMissingFallback = "E_MISSING_FALLBACK"
	ErrInvalidWeights  = "E_INVALID_WEIGHTS"

	// Server state.
	ErrBusy      = "E_BUSY"
	ErrRateLimit = "E_RATE_LIMIT"
	ErrInternal  = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest:     {},
	ErrBadRequest:          {},
	ErrMapNotFound:         {},
	ErrPaletteNotFound:     {},
	ErrPredecessorNotFound: {},
	ErrCyclicReference:     {},
	ErrMissingFallback:     {},
	ErrInvalidWeights:      {},
	ErrBusy:                {},
	ErrRateLimit:           {},
	ErrInternal:            {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
