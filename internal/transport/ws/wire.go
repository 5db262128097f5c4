package ws

import (
	"errors"
	"fmt"

	"mapforge.dev/internal/gen/expr"
	"mapforge.dev/internal/gen/ident"
	"mapforge.dev/internal/gen/mapgen"
	"mapforge.dev/internal/gen/render"
	"mapforge.dev/internal/gen/tile"
	"mapforge.dev/internal/protocol"
)

// decodeRequest validates the wire form and builds the pipeline request.
func decodeRequest(req protocol.ResolveMsg) (render.Request, error) {
	rr := render.Request{Map: ident.ID(req.Map), Z: req.Z, Seed: req.Seed}

	switch req.Rotation {
	case 0, 90, 180, 270:
		rr.Rotation = tile.Rotation(req.Rotation / 90)
	default:
		return rr, fmt.Errorf("rotation must be 0, 90, 180 or 270, got %d", req.Rotation)
	}

	if len(req.Neighbors) > 0 {
		rr.Neighbors = make(mapgen.Neighbors, len(req.Neighbors))
		for d, ids := range req.Neighbors {
			dir := mapgen.NeighborDirection(d)
			if !mapgen.KnownDirection(dir) {
				return rr, fmt.Errorf("unknown neighbor direction %q", d)
			}
			out := make([]ident.ID, len(ids))
			for i, id := range ids {
				out[i] = ident.ID(id)
			}
			rr.Neighbors[dir] = out
		}
	}
	return rr, nil
}

// encodeResult flattens the resolved buffer into wire cells. Empty layers
// are omitted; sprites ride along only when asked for.
func encodeResult(requestID string, m ident.ID, z int, seed int64, buf *render.Buffer, sprites []render.SpritePlacement, warnings []string, withSprites bool) protocol.ResultMsg {
	msg := protocol.ResultMsg{
		Type:            protocol.TypeResult,
		ProtocolVersion: protocol.Version,
		RequestID:       requestID,
		Map:             string(m),
		Z:               z,
		Seed:            seed,
		Width:           buf.Width,
		Height:          buf.Height,
		Warnings:        warnings,
	}
	for y := 0; y < buf.Height; y++ {
		for x := 0; x < buf.Width; x++ {
			cell := buf.At(x, y)
			for _, l := range cell.Layers() {
				id := cell.Get(l)
				msg.Tiles = append(msg.Tiles, protocol.TileCell{
					X:        x,
					Y:        y,
					Layer:    l.String(),
					ID:       id.Sheet.Full(),
					Rotation: int(id.Rotation) * 90,
					Broken:   id.Broken,
					Open:     id.Open,
				})
			}
		}
	}
	if withSprites {
		for _, sp := range sprites {
			msg.Sprites = append(msg.Sprites, protocol.Sprite{
				X:        sp.X,
				Y:        sp.Y,
				Layer:    sp.Layer.String(),
				Index:    sp.Index,
				Rotation: int(sp.Rotation) * 90,
				Sheet:    sp.Sheet,
			})
		}
	}
	return msg
}

// errorCode maps pipeline failures onto wire codes. A missing predecessor
// at the requested map itself means the map is unknown.
func errorCode(err error, m ident.ID) string {
	var pred *mapgen.MissingPredecessorError
	if errors.As(err, &pred) {
		if pred.OmTerrain == m {
			return protocol.ErrMapNotFound
		}
		return protocol.ErrPredecessorNotFound
	}
	var pal *mapgen.MissingPaletteError
	if errors.As(err, &pal) {
		return protocol.ErrPaletteNotFound
	}
	var cyc *mapgen.CyclicReferenceError
	if errors.As(err, &cyc) {
		return protocol.ErrCyclicReference
	}
	var fb *expr.MissingFallbackError
	var sc *expr.MissingSwitchCaseError
	if errors.As(err, &fb) || errors.As(err, &sc) {
		return protocol.ErrMissingFallback
	}
	var iw *expr.InvalidWeightsError
	if errors.As(err, &iw) {
		return protocol.ErrInvalidWeights
	}
	return protocol.ErrInternal
}
