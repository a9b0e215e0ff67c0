// Package starlark runs reproduction-number policies written in Starlark.
//
// A policy script defines a function r0(t) returning the basic reproduction
// number on day t, and may declare the days on which that function jumps:
//
//	breakpoints = [60, 150]
//
//	def r0(t):
//	    if t < 60:
//	        return params.r0_before
//	    if t < 150:
//	        return params.r0_after
//	    return 4.0
//
// Scripts see the scenario parameters as the "params" global and the helpers
// step and ramp.
package starlark

import (
	"fmt"
	"sort"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// ParamsInfo is the scenario view exposed to scripts as "params".
type ParamsInfo struct {
	Population     float64
	LockdownDay    float64
	R0Before       float64
	R0After        float64
	VaccinationDay float64
	Extra          map[string]any
}

// ToStarlark converts ParamsInfo to a Starlark struct value.
func (p ParamsInfo) ToStarlark() (starlark.Value, error) {
	fields := starlark.StringDict{
		"population":      starlark.Float(p.Population),
		"lockdown_day":    starlark.Float(p.LockdownDay),
		"r0_before":       starlark.Float(p.R0Before),
		"r0_after":        starlark.Float(p.R0After),
		"vaccination_day": starlark.Float(p.VaccinationDay),
	}
	keys := make([]string, 0, len(p.Extra))
	for k := range p.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, taken := fields[k]; taken {
			return nil, fmt.Errorf("params.%s shadows a built-in field", k)
		}
		v, err := GoToStarlark(p.Extra[k])
		if err != nil {
			return nil, fmt.Errorf("params.%s: %w", k, err)
		}
		fields[k] = v
	}
	return starlarkstruct.FromStringDict(starlark.String("params"), fields), nil
}

// GoToStarlark converts a Go value to a Starlark value.
// Supported types: string, int, int64, float64, bool, []float64, []any, map[string]any
func GoToStarlark(v any) (starlark.Value, error) {
	if v == nil {
		return starlark.None, nil
	}

	switch val := v.(type) {
	case string:
		return starlark.String(val), nil

	case int:
		return starlark.MakeInt(val), nil

	case int64:
		return starlark.MakeInt64(val), nil

	case float64:
		return starlark.Float(val), nil

	case bool:
		return starlark.Bool(val), nil

	case []float64:
		list := make([]starlark.Value, len(val))
		for i, f := range val {
			list[i] = starlark.Float(f)
		}
		return starlark.NewList(list), nil

	case []any:
		list := make([]starlark.Value, len(val))
		for i, item := range val {
			sv, err := GoToStarlark(item)
			if err != nil {
				return nil, fmt.Errorf("list index %d: %w", i, err)
			}
			list[i] = sv
		}
		return starlark.NewList(list), nil

	case map[string]any:
		dict := starlark.NewDict(len(val))
		for k, v := range val {
			sv, err := GoToStarlark(v)
			if err != nil {
				return nil, fmt.Errorf("dict key %q: %w", k, err)
			}
			if err := dict.SetKey(starlark.String(k), sv); err != nil {
				return nil, fmt.Errorf("dict setkey %q: %w", k, err)
			}
		}
		return dict, nil

	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// ToFloat converts a Starlark int or float to float64.
func ToFloat(v starlark.Value) (float64, error) {
	switch val := v.(type) {
	case starlark.Float:
		return float64(val), nil
	case starlark.Int:
		f, ok := starlark.AsFloat(val)
		if !ok {
			return 0, fmt.Errorf("integer %s out of range", val)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("want a number, got %s", v.Type())
	}
}

// ToFloats converts a Starlark list or tuple of numbers to []float64.
func ToFloats(v starlark.Value) ([]float64, error) {
	seq, ok := v.(starlark.Indexable)
	if !ok {
		return nil, fmt.Errorf("want a list of numbers, got %s", v.Type())
	}
	out := make([]float64, seq.Len())
	for i := range out {
		f, err := ToFloat(seq.Index(i))
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", i, err)
		}
		out[i] = f
	}
	return out, nil
}
