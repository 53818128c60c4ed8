package ir

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// FromCUESource compiles CUE source and converts the resulting value.
// filename is used for error positions only.
func FromCUESource(filename string, src []byte) (IRValue, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile CUE: %w", err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("validate CUE: %w", err)
	}
	return FromCUE(v)
}

// FromCUE converts a concrete CUE value into an IRValue.
// Struct field order follows CUE declaration order, matching the YAML path.
func FromCUE(v cue.Value) (IRValue, error) {
	if err := v.Err(); err != nil {
		return nil, err
	}

	switch v.Kind() {
	case cue.NullKind:
		return IRNull{}, nil

	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, err
		}
		return IRBool(b), nil

	case cue.IntKind:
		i, err := v.Int64()
		if err != nil {
			return nil, err
		}
		return IRInt(i), nil

	case cue.FloatKind:
		f, err := v.Float64()
		if err != nil {
			return nil, err
		}
		return IRFloat(f), nil

	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, err
		}
		return IRString(s), nil

	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, err
		}
		var arr IRArray
		for i := 0; iter.Next(); i++ {
			elem, err := FromCUE(iter.Value())
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr = append(arr, elem)
		}
		if arr == nil {
			arr = IRArray{}
		}
		return arr, nil

	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, err
		}
		obj := IRObject{}
		for iter.Next() {
			elem, err := FromCUE(iter.Value())
			if err != nil {
				return nil, fmt.Errorf("%s: %w", iter.Label(), err)
			}
			obj = append(obj, IRPair{Key: iter.Label(), Value: elem})
		}
		return obj, nil

	default:
		return nil, fmt.Errorf("unsupported or non-concrete CUE value of kind %s at %v", v.Kind(), v.Pos())
	}
}
