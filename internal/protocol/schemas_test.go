package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

func TestSchemas_ValidateSamples(t *testing.T) {
	compile := func(name string) *jsonschema.Schema {
		t.Helper()
		p := filepath.Join("..", "..", "schemas", name)
		s, err := jsonschema.Compile(p)
		if err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
		return s
	}

	validate := func(s *jsonschema.Schema, v any) {
		t.Helper()
		if err := s.Validate(v); err != nil {
			t.Fatalf("validate: %v", err)
		}
	}

	helloSchema := compile("hello.schema.json")
	welcomeSchema := compile("welcome.schema.json")
	resolveSchema := compile("resolve.schema.json")
	resultSchema := compile("result.schema.json")
	errorSchema := compile("error.schema.json")

	var hello any
	_ = json.Unmarshal([]byte(`{
	  "type":"HELLO",
	  "protocol_version":"1.0",
	  "client_name":"viewer",
	  "capabilities":{"sprites":true,"max_pending":8}
	}`), &hello)
	validate(helloSchema, hello)

	var welcome any
	_ = json.Unmarshal([]byte(`{
	  "type":"WELCOME",
	  "protocol_version":"1.0",
	  "session_id":"S1",
	  "catalogs":{
	    "data":{"digest":"deadbeef","count":12},
	    "tilesheet_digest":"deadbeef"
	  },
	  "tilesheet":{"name":"tiles.png","tile_width":32,"tile_height":32}
	}`), &welcome)
	validate(welcomeSchema, welcome)

	var resolve any
	_ = json.Unmarshal([]byte(`{
	  "type":"RESOLVE",
	  "protocol_version":"1.0",
	  "request_id":"R1",
	  "map":"house",
	  "z":-1,
	  "seed":1337,
	  "rotation":90,
	  "neighbors":{"north":["forest"],"east":["road_ns","road_ew"]}
	}`), &resolve)
	validate(resolveSchema, resolve)

	var result any
	_ = json.Unmarshal([]byte(`{
	  "type":"RESULT",
	  "protocol_version":"1.0",
	  "request_id":"R1",
	  "map":"house",
	  "z":-1,
	  "seed":1337,
	  "width":24,
	  "height":24,
	  "tiles":[{"x":0,"y":0,"layer":"terrain","id":"t_floor"}],
	  "sprites":[{"x":0,"y":0,"layer":"terrain","index":42,"rotation":90,"sheet":"t_floor"}],
	  "warnings":["(1,2) 'z': monster group not found: GROUP_NONE"]
	}`), &result)
	validate(resultSchema, result)

	var errMsg any
	_ = json.Unmarshal([]byte(`{
	  "type":"ERROR",
	  "protocol_version":"1.0",
	  "request_id":"R1",
	  "code":"E_MAP_NOT_FOUND",
	  "message":"no overmap terrain: nowhere"
	}`), &errMsg)
	validate(errorSchema, errMsg)
}
