package starlark

import (
	"fmt"

	"go.starlark.net/starlark"
)

// Predeclared returns the globals available to policy scripts: params and
// the step and ramp helpers.
func Predeclared(params starlark.Value) starlark.StringDict {
	return starlark.StringDict{
		"params": params,
		"step":   starlark.NewBuiltin("step", stepBuiltin),
		"ramp":   starlark.NewBuiltin("ramp", rampBuiltin),
	}
}

// step(t, day, before, after) returns before for t < day and after otherwise.
func stepBuiltin(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var t, day, before, after starlark.Value
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "t", &t, "day", &day, "before", &before, "after", &after); err != nil {
		return nil, err
	}
	vals, err := floats(b, t, day, before, after)
	if err != nil {
		return nil, err
	}
	if vals[0] < vals[1] {
		return starlark.Float(vals[2]), nil
	}
	return starlark.Float(vals[3]), nil
}

// ramp(t, start, end, before, after) moves linearly from before to after
// between start and end, holding the end values outside that span.
func rampBuiltin(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var t, start, end, before, after starlark.Value
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "t", &t, "start", &start, "end", &end, "before", &before, "after", &after); err != nil {
		return nil, err
	}
	vals, err := floats(b, t, start, end, before, after)
	if err != nil {
		return nil, err
	}
	tt, s, e, lo, hi := vals[0], vals[1], vals[2], vals[3], vals[4]
	switch {
	case e <= s:
		return nil, fmt.Errorf("%s: end (%g) must be after start (%g)", b.Name(), e, s)
	case tt <= s:
		return starlark.Float(lo), nil
	case tt >= e:
		return starlark.Float(hi), nil
	}
	return starlark.Float(lo + (hi-lo)*(tt-s)/(e-s)), nil
}

func floats(b *starlark.Builtin, vs ...starlark.Value) ([]float64, error) {
	out := make([]float64, len(vs))
	for i, v := range vs {
		f, err := ToFloat(v)
		if err != nil {
			return nil, fmt.Errorf("%s: argument %d: %w", b.Name(), i+1, err)
		}
		out[i] = f
	}
	return out, nil
}
