// Package expr implements the value-expression language used by palettes
// and map templates. An expression resolves to a single identifier against
// a parameter environment and a random source.
package expr

import (
	"encoding/json"
	"fmt"
	"math/rand"

	"mapforge.dev/internal/gen/ident"
)

// Env is a resolved parameter environment: parameter name to chosen value.
type Env map[ident.ParamID]ident.ID

// Kind discriminates the expression forms.
type Kind int

const (
	KindLiteral Kind = iota
	KindParam
	KindSwitch
	KindDistribution
)

// Value is one expression. Exactly the fields of its Kind are populated.
type Value struct {
	Kind Kind

	Literal  ident.ID
	Param    ident.ParamID
	Fallback *ident.ID
	Switch   *SwitchExpr
	Dist     []Weighted
}

// SwitchExpr selects a case by the value of a parameter. The fallback names
// a case key, not a final value.
type SwitchExpr struct {
	Param    ident.ParamID
	Fallback *ident.ID
	Cases    map[ident.ID]ident.ID
}

// Weighted pairs a nested expression with a draw weight.
type Weighted struct {
	Value  Value
	Weight int
}

// Lit builds a literal expression.
func Lit(id ident.ID) Value { return Value{Kind: KindLiteral, Literal: id} }

// MissingFallbackError reports a parameter reference that found neither a
// bound value nor a fallback.
type MissingFallbackError struct {
	Param ident.ParamID
}

func (e *MissingFallbackError) Error() string {
	return fmt.Sprintf("parameter %q is unbound and has no fallback", e.Param)
}

// MissingSwitchCaseError reports a switch whose selected key has no case.
type MissingSwitchCaseError struct {
	Param ident.ParamID
	Case  ident.ID
}

func (e *MissingSwitchCaseError) Error() string {
	return fmt.Sprintf("switch on %q has no case for %q", e.Param, e.Case)
}

// InvalidWeightsError reports a distribution with no drawable weight.
type InvalidWeightsError struct{}

func (e *InvalidWeightsError) Error() string {
	return "distribution has no entry with positive weight"
}

// Resolve reduces the expression to an identifier. Distribution draws use
// rng; every other form is deterministic given env.
func (v Value) Resolve(env Env, rng *rand.Rand) (ident.ID, error) {
	switch v.Kind {
	case KindLiteral:
		return v.Literal, nil

	case KindParam:
		if got, ok := env[v.Param]; ok {
			return got, nil
		}
		if v.Fallback != nil {
			return *v.Fallback, nil
		}
		return "", &MissingFallbackError{Param: v.Param}

	case KindSwitch:
		sw := v.Switch
		key, ok := env[sw.Param]
		if !ok {
			if sw.Fallback == nil {
				return "", &MissingFallbackError{Param: sw.Param}
			}
			key = *sw.Fallback
		}
		out, ok := sw.Cases[key]
		if !ok {
			return "", &MissingSwitchCaseError{Param: sw.Param, Case: key}
		}
		return out, nil

	case KindDistribution:
		picked, err := Draw(v.Dist, rng)
		if err != nil {
			return "", err
		}
		return picked.Resolve(env, rng)
	}
	return "", fmt.Errorf("unknown expression kind %d", v.Kind)
}

// Draw picks one entry from a weighted list. Entries with non-positive
// weight never win; a list with no positive weight is an error.
func Draw(entries []Weighted, rng *rand.Rand) (Value, error) {
	total := 0
	for _, e := range entries {
		if e.Weight > 0 {
			total += e.Weight
		}
	}
	if total <= 0 {
		return Value{}, &InvalidWeightsError{}
	}
	r := rng.Intn(total)
	for _, e := range entries {
		if e.Weight <= 0 {
			continue
		}
		if r < e.Weight {
			return e.Value, nil
		}
		r -= e.Weight
	}
	return Value{}, &InvalidWeightsError{}
}

// UnmarshalJSON accepts the authored forms:
//
//	"t_grass"                                a literal
//	{"param": "wall", "fallback": "t_wall"}  a parameter reference
//	{"switch": {...}, "cases": {...}}        a switch
//	{"distribution": [...]} or [...]         a weighted distribution
//
// Distribution entries are an expression, or [expression, weight].
func (v *Value) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = Lit(ident.ID(s))
		return nil
	}

	var arr []json.RawMessage
	if err := json.Unmarshal(data, &arr); err == nil {
		dist, err := decodeDistribution(arr)
		if err != nil {
			return err
		}
		*v = Value{Kind: KindDistribution, Dist: dist}
		return nil
	}

	var obj struct {
		Param        *ident.ParamID    `json:"param"`
		Fallback     *ident.ID         `json:"fallback"`
		Switch       *switchHeader     `json:"switch"`
		Cases        map[ident.ID]ident.ID `json:"cases"`
		Distribution []json.RawMessage `json:"distribution"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("value expression: %w", err)
	}

	switch {
	case obj.Switch != nil:
		if obj.Cases == nil {
			return fmt.Errorf("switch expression on %q has no cases", obj.Switch.Param)
		}
		*v = Value{Kind: KindSwitch, Switch: &SwitchExpr{
			Param:    obj.Switch.Param,
			Fallback: obj.Switch.Fallback,
			Cases:    obj.Cases,
		}}
	case obj.Param != nil:
		*v = Value{Kind: KindParam, Param: *obj.Param, Fallback: obj.Fallback}
	case obj.Distribution != nil:
		dist, err := decodeDistribution(obj.Distribution)
		if err != nil {
			return err
		}
		*v = Value{Kind: KindDistribution, Dist: dist}
	default:
		return fmt.Errorf("value expression: unrecognized object %s", string(data))
	}
	return nil
}

type switchHeader struct {
	Param    ident.ParamID `json:"param"`
	Fallback *ident.ID     `json:"fallback"`
}

func decodeDistribution(raw []json.RawMessage) ([]Weighted, error) {
	out := make([]Weighted, 0, len(raw))
	for _, r := range raw {
		var pair []json.RawMessage
		if err := json.Unmarshal(r, &pair); err == nil && len(pair) == 2 {
			var w Weighted
			if err := json.Unmarshal(pair[0], &w.Value); err != nil {
				return nil, err
			}
			if err := json.Unmarshal(pair[1], &w.Weight); err != nil {
				return nil, fmt.Errorf("distribution weight: %w", err)
			}
			out = append(out, w)
			continue
		}
		var w Weighted
		if err := json.Unmarshal(r, &w.Value); err != nil {
			return nil, err
		}
		w.Weight = 1
		out = append(out, w)
	}
	return out, nil
}
