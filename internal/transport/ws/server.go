// Package ws serves the resolve protocol over a websocket connection:
// a HELLO/WELCOME handshake, then RESOLVE, RENDER and PARAMS requests
// answered with RESULT or ERROR.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"mapforge.dev/internal/gen/ident"
	"mapforge.dev/internal/gen/render"
	"mapforge.dev/internal/persistence/rendercache"
	"mapforge.dev/internal/protocol"
)

type Server struct {
	renderer *render.Renderer
	cache    *rendercache.Cache
	log      *log.Logger
	sessions atomic.Uint64

	resolves  atomic.Uint64
	cacheHits atomic.Uint64

	upgrader websocket.Upgrader
}

func NewServer(r *render.Renderer, cache *rendercache.Cache, logger *log.Logger) *Server {
	s := &Server{
		renderer: r,
		cache:    cache,
		log:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
	return s
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		session, out := s.handshake(conn)
		if session == "" {
			return
		}
		s.log.Printf("session %s: connected from %s", session, r.RemoteAddr)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop. Requests resolve on their own goroutines so a
		// slow map never blocks the connection; the out channel's
		// capacity is the pending-reply bound.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil {
				s.reply(ctx, out, errorReply("", protocol.ErrProtoBadRequest, "malformed message"))
				continue
			}
			if base.ProtocolVersion != protocol.Version {
				s.reply(ctx, out, errorReply("", protocol.ErrProtoBadRequest, "bad protocol_version"))
				continue
			}
			switch base.Type {
			case protocol.TypeResolve, protocol.TypeRender:
				var req protocol.ResolveMsg
				if err := json.Unmarshal(msg, &req); err != nil || req.RequestID == "" || req.Map == "" {
					s.reply(ctx, out, errorReply(req.RequestID, protocol.ErrBadRequest, "resolve: request_id and map are required"))
					continue
				}
				go s.reply(ctx, out, s.handleResolve(req, base.Type == protocol.TypeRender))
			case protocol.TypeParams:
				var req protocol.ParamsMsg
				if err := json.Unmarshal(msg, &req); err != nil || req.RequestID == "" || req.Map == "" {
					s.reply(ctx, out, errorReply(req.RequestID, protocol.ErrBadRequest, "params: request_id and map are required"))
					continue
				}
				go s.reply(ctx, out, s.handleParams(req))
			default:
				s.reply(ctx, out, errorReply("", protocol.ErrProtoBadRequest, fmt.Sprintf("unexpected message type %q", base.Type)))
			}
		}

		s.log.Printf("session %s: closed", session)
	}
}

// reply queues an encoded message, dropping it when the connection is
// going away.
func (s *Server) reply(ctx context.Context, out chan []byte, b []byte) {
	if b == nil {
		return
	}
	select {
	case <-ctx.Done():
	case out <- b:
	}
}

func (s *Server) handshake(conn *websocket.Conn) (session string, out chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return "", nil
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return "", nil
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return "", nil
	}

	maxPending := hello.Capabilities.MaxPending
	if maxPending <= 0 {
		maxPending = 8
	}
	if maxPending > 64 {
		maxPending = 64
	}
	out = make(chan []byte, maxPending)

	session = fmt.Sprintf("S%d", s.sessions.Add(1))

	digest, count := s.renderer.Cat.Digest()
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       session,
		Catalogs: protocol.CatalogDigests{
			Data: protocol.DigestRef{Digest: digest, Count: count},
		},
	}
	if s.renderer.Selector != nil {
		sheet := s.renderer.Selector.Sheet
		welcome.Tilesheet = &protocol.TilesheetInfo{
			Name:       sheet.Name,
			TileWidth:  sheet.TileWidth,
			TileHeight: sheet.TileHeight,
		}
	}
	if err := writeJSON(conn, welcome); err != nil {
		return "", nil
	}

	return session, out
}

// handleResolve runs one request through the pipeline and encodes the
// reply. Sprites are included only for RENDER requests. The cache serves
// only requests without a simulated neighborhood; neighbor conditions are
// not part of the cache key.
func (s *Server) handleResolve(req protocol.ResolveMsg, withSprites bool) []byte {
	rr, err := decodeRequest(req)
	if err != nil {
		return errorReply(req.RequestID, protocol.ErrBadRequest, err.Error())
	}
	s.resolves.Add(1)

	cacheable := s.cache != nil && len(rr.Neighbors) == 0
	key := rendercache.Key{Map: rr.Map, Z: rr.Z, Seed: rr.Seed, Rotation: rr.Rotation}
	if cacheable {
		entry, ok, err := s.cache.Get(key)
		if err != nil {
			s.log.Printf("cache get %s/%d: %v", rr.Map, rr.Seed, err)
		} else if ok {
			s.cacheHits.Add(1)
			return encodeReply(encodeResult(req.RequestID, entry.Map, entry.Z, entry.Seed, entry.Buffer, entry.Sprites, entry.Warnings, withSprites))
		}
	}

	res, err := s.renderer.Resolve(rr)
	if err != nil {
		s.log.Printf("resolve %q (request %s): %v", req.Map, req.RequestID, err)
		return errorReply(req.RequestID, errorCode(err, rr.Map), err.Error())
	}
	if cacheable {
		s.cache.Put(key, res)
	}
	warnings := make([]string, 0, len(res.Warnings))
	for _, w := range res.Warnings {
		warnings = append(warnings, w.String())
	}
	return encodeReply(encodeResult(req.RequestID, res.Map, res.Z, res.Seed, res.Buffer, res.Sprites, warnings, withSprites))
}

// Stats reports request counters for the metrics endpoint.
func (s *Server) Stats() (resolves, cacheHits uint64) {
	return s.resolves.Load(), s.cacheHits.Load()
}

// handleParams resolves only the parameter environment of the map's
// mapgen entry.
func (s *Server) handleParams(req protocol.ParamsMsg) []byte {
	env, err := s.renderer.Params(ident.ID(req.Map), req.Seed)
	if err != nil {
		s.log.Printf("params %q (request %s): %v", req.Map, req.RequestID, err)
		return errorReply(req.RequestID, errorCode(err, ident.ID(req.Map)), err.Error())
	}
	params := make(map[string]string, len(env))
	for k, v := range env {
		params[string(k)] = string(v)
	}
	return encodeReply(protocol.ResultMsg{
		Type:            protocol.TypeResult,
		ProtocolVersion: protocol.Version,
		RequestID:       req.RequestID,
		Map:             string(req.Map),
		Seed:            req.Seed,
		Params:          params,
	})
}

func errorReply(requestID, code, message string) []byte {
	return encodeReply(protocol.ErrorMsg{
		Type:            protocol.TypeError,
		ProtocolVersion: protocol.Version,
		RequestID:       requestID,
		Code:            code,
		Message:         message,
	})
}

func encodeReply(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
