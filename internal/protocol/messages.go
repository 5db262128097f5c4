package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	ClientName      string            `json:"client_name,omitempty"`
	Capabilities    HelloCapabilities `json:"capabilities,omitempty"`
}

type HelloCapabilities struct {
	Sprites    bool `json:"sprites,omitempty"`
	MaxPending int  `json:"max_pending,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	SessionID       string         `json:"session_id"`
	Catalogs        CatalogDigests `json:"catalogs"`
	Tilesheet       *TilesheetInfo `json:"tilesheet,omitempty"`
}

type CatalogDigests struct {
	Data      DigestRef `json:"data"`
	Tilesheet string    `json:"tilesheet_digest,omitempty"`
}

type DigestRef struct {
	Digest string `json:"digest"`
	Count  int    `json:"count"`
}

type TilesheetInfo struct {
	Name       string `json:"name"`
	TileWidth  int    `json:"tile_width"`
	TileHeight int    `json:"tile_height"`
}

// RESOLVE / RENDER (client -> server). RENDER is RESOLVE plus a sprite
// pass over the resolved grid; PARAMS asks only for the parameter
// environment of a map's mapgen entry.
type ResolveMsg struct {
	Type            string              `json:"type"`
	ProtocolVersion string              `json:"protocol_version"`
	RequestID       string              `json:"request_id"`
	Map             string              `json:"map"`
	Z               int                 `json:"z,omitempty"`
	Seed            int64               `json:"seed"`
	Rotation        int                 `json:"rotation,omitempty"`
	Neighbors       map[string][]string `json:"neighbors,omitempty"`
}

type ParamsMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	RequestID       string `json:"request_id"`
	Map             string `json:"map"`
	Seed            int64  `json:"seed"`
}

// RESULT (server -> client)
type ResultMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	RequestID       string            `json:"request_id"`
	Map             string            `json:"map"`
	Z               int               `json:"z,omitempty"`
	Seed            int64             `json:"seed"`
	Width           int               `json:"width,omitempty"`
	Height          int               `json:"height,omitempty"`
	Tiles           []TileCell        `json:"tiles,omitempty"`
	Sprites         []Sprite          `json:"sprites,omitempty"`
	Params          map[string]string `json:"params,omitempty"`
	Warnings        []string          `json:"warnings,omitempty"`
}

// TileCell is one resolved layer entry of one grid cell. Cells with
// nothing on a layer are omitted from the wire form entirely.
type TileCell struct {
	X        int    `json:"x"`
	Y        int    `json:"y"`
	Layer    string `json:"layer"`
	ID       string `json:"id"`
	Rotation int    `json:"rotation,omitempty"`
	Broken   bool   `json:"broken,omitempty"`
	Open     bool   `json:"open,omitempty"`
}

// Sprite is one picked tilesheet index for a cell layer.
type Sprite struct {
	X        int    `json:"x"`
	Y        int    `json:"y"`
	Layer    string `json:"layer"`
	Index    int    `json:"index"`
	Rotation int    `json:"rotation,omitempty"`
	Sheet    string `json:"sheet,omitempty"`
}

// ERROR (server -> client)
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	RequestID       string `json:"request_id,omitempty"`
	Code            string `json:"code"`
	Message         string `json:"message,omitempty"`
}
