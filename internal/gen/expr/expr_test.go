package expr

import (
	"encoding/json"
	"errors"
	"math/rand"
	"testing"

	"mapforge.dev/internal/gen/ident"
)

func testRNG() *rand.Rand { return rand.New(rand.NewSource(42)) }

func mustResolve(t *testing.T, v Value, env Env) ident.ID {
	t.Helper()
	got, err := v.Resolve(env, testRNG())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	return got
}

func TestLiteralResolvesToItself(t *testing.T) {
	if got := mustResolve(t, Lit("t_grass"), nil); got != "t_grass" {
		t.Fatalf("got %q, want t_grass", got)
	}
}

func TestParamPrefersEnvOverFallback(t *testing.T) {
	fb := ident.ID("t_floor")
	v := Value{Kind: KindParam, Param: "ground", Fallback: &fb}

	if got := mustResolve(t, v, Env{"ground": "t_dirt"}); got != "t_dirt" {
		t.Fatalf("bound param: got %q, want t_dirt", got)
	}
	if got := mustResolve(t, v, Env{}); got != "t_floor" {
		t.Fatalf("fallback: got %q, want t_floor", got)
	}
}

func TestParamWithoutFallbackFails(t *testing.T) {
	v := Value{Kind: KindParam, Param: "ground"}
	_, err := v.Resolve(Env{}, testRNG())
	var mf *MissingFallbackError
	if !errors.As(err, &mf) {
		t.Fatalf("got %v, want MissingFallbackError", err)
	}
	if mf.Param != "ground" {
		t.Fatalf("error names %q, want ground", mf.Param)
	}
}

func TestSwitchSelectsCaseByParam(t *testing.T) {
	fbKey := ident.ID("plain")
	v := Value{Kind: KindSwitch, Switch: &SwitchExpr{
		Param:    "style",
		Fallback: &fbKey,
		Cases: map[ident.ID]ident.ID{
			"plain": "t_wall",
			"metal": "t_wall_metal",
		},
	}}

	if got := mustResolve(t, v, Env{"style": "metal"}); got != "t_wall_metal" {
		t.Fatalf("switch on env: got %q", got)
	}
	// The fallback names a case key, not a final value.
	if got := mustResolve(t, v, Env{}); got != "t_wall" {
		t.Fatalf("switch fallback: got %q, want t_wall", got)
	}

	_, err := v.Resolve(Env{"style": "wood"}, testRNG())
	var mc *MissingSwitchCaseError
	if !errors.As(err, &mc) {
		t.Fatalf("got %v, want MissingSwitchCaseError", err)
	}
	if mc.Case != "wood" {
		t.Fatalf("error names case %q, want wood", mc.Case)
	}
}

func TestDistributionFrequencies(t *testing.T) {
	v := Value{Kind: KindDistribution, Dist: []Weighted{
		{Value: Lit("t_grass"), Weight: 3},
		{Value: Lit("t_dirt"), Weight: 1},
	}}
	rng := testRNG()
	const n = 4000
	grass := 0
	for i := 0; i < n; i++ {
		got, err := v.Resolve(nil, rng)
		if err != nil {
			t.Fatalf("draw %d: %v", i, err)
		}
		if got == "t_grass" {
			grass++
		}
	}
	// Expected 3000 of 4000. A seeded generator keeps this tight.
	if grass < 2800 || grass > 3200 {
		t.Fatalf("t_grass drawn %d times of %d, want about 3000", grass, n)
	}
}

func TestDistributionWithoutPositiveWeightFails(t *testing.T) {
	v := Value{Kind: KindDistribution, Dist: []Weighted{
		{Value: Lit("t_grass"), Weight: 0},
		{Value: Lit("t_dirt"), Weight: -2},
	}}
	_, err := v.Resolve(nil, testRNG())
	var iw *InvalidWeightsError
	if !errors.As(err, &iw) {
		t.Fatalf("got %v, want InvalidWeightsError", err)
	}
}

func TestDistributionEntriesAreExpressions(t *testing.T) {
	v := Value{Kind: KindDistribution, Dist: []Weighted{
		{Value: Value{Kind: KindParam, Param: "ground"}, Weight: 1},
	}}
	if got := mustResolve(t, v, Env{"ground": "t_sand"}); got != "t_sand" {
		t.Fatalf("nested param: got %q", got)
	}
}

func TestUnmarshalAuthoredForms(t *testing.T) {
	decode := func(src string) Value {
		t.Helper()
		var v Value
		if err := json.Unmarshal([]byte(src), &v); err != nil {
			t.Fatalf("decode %s: %v", src, err)
		}
		return v
	}

	if v := decode(`"t_grass"`); v.Kind != KindLiteral || v.Literal != "t_grass" {
		t.Fatalf("literal form decoded to %+v", v)
	}

	v := decode(`{"param": "wall", "fallback": "t_wall"}`)
	if v.Kind != KindParam || v.Param != "wall" || v.Fallback == nil || *v.Fallback != "t_wall" {
		t.Fatalf("param form decoded to %+v", v)
	}

	v = decode(`{"switch": {"param": "style", "fallback": "plain"}, "cases": {"plain": "t_wall"}}`)
	if v.Kind != KindSwitch || v.Switch.Param != "style" || v.Switch.Cases["plain"] != "t_wall" {
		t.Fatalf("switch form decoded to %+v", v)
	}

	v = decode(`{"distribution": [["t_grass", 3], "t_dirt"]}`)
	if v.Kind != KindDistribution || len(v.Dist) != 2 {
		t.Fatalf("distribution form decoded to %+v", v)
	}
	if v.Dist[0].Weight != 3 || v.Dist[1].Weight != 1 {
		t.Fatalf("weights decoded to %d, %d", v.Dist[0].Weight, v.Dist[1].Weight)
	}

	v = decode(`["t_grass", "t_dirt"]`)
	if v.Kind != KindDistribution || len(v.Dist) != 2 {
		t.Fatalf("bare array form decoded to %+v", v)
	}
}
