package seedcrack

import (
	"fmt"

	"github.com/danmuck/mcsci/internal/extension"
	"github.com/danmuck/mcsci/internal/protocol/value"
)

// decodeHints converts the pillars argument, a pillar_hints array of ten
// (cage_hint, height_hint) tuples, into the search model.
func decodeHints(v value.Value) (*[pillarCount]pillarHint, error) {
	if v.Kind != value.KindArray && v.Kind != value.KindList {
		return nil, fmt.Errorf("%w: pillars must be a pillar_hints array", extension.ErrBadArg)
	}
	if len(v.Elems) != pillarCount {
		return nil, fmt.Errorf("%w: pillars needs %d entries, got %d", extension.ErrBadArg, pillarCount, len(v.Elems))
	}
	var out [pillarCount]pillarHint
	for i, elem := range v.Elems {
		h, err := decodeHint(elem)
		if err != nil {
			return nil, fmt.Errorf("pillars[%d]: %w", i, err)
		}
		out[i] = h
	}
	return &out, nil
}

func decodeHint(v value.Value) (pillarHint, error) {
	if v.Kind != value.KindTuple || len(v.Elems) != 2 {
		return pillarHint{}, fmt.Errorf("%w: expected a (cage_hint, height_hint) tuple", extension.ErrBadArg)
	}
	cage, err := decodeCage(v.Elems[0])
	if err != nil {
		return pillarHint{}, err
	}
	height, err := decodeHeight(v.Elems[1])
	if err != nil {
		return pillarHint{}, err
	}
	return pillarHint{cage: cage, height: height}, nil
}

func decodeCage(v value.Value) (cageHint, error) {
	if v.Kind != value.KindEnum {
		return cageUnknown, fmt.Errorf("%w: expected a cage_hint", extension.ErrBadArg)
	}
	switch v.Ctor {
	case "Unknown":
		return cageUnknown, nil
	case "Caged":
		return cageCaged, nil
	case "Uncaged":
		return cageUncaged, nil
	default:
		return cageUnknown, fmt.Errorf("%w: bad cage_hint %q", extension.ErrBadArg, v.Ctor)
	}
}

func decodeHeight(v value.Value) (heightHint, error) {
	if v.Kind != value.KindEnum {
		return heightHint{}, fmt.Errorf("%w: expected a height_hint", extension.ErrBadArg)
	}
	switch v.Ctor {
	case "Unknown":
		return heightHint{kind: hintUnknown}, nil
	case "Big":
		return heightHint{kind: hintBig}, nil
	case "Medium":
		return heightHint{kind: hintMedium}, nil
	case "Small":
		return heightHint{kind: hintSmall}, nil
	case "MediumBig":
		return heightHint{kind: hintMediumBig}, nil
	case "MediumSmall":
		return heightHint{kind: hintMediumSmall}, nil
	case "Exact":
		h, err := intPayload(v)
		if err != nil {
			return heightHint{}, err
		}
		return heightHint{kind: hintExact, min: h}, nil
	case "Range":
		if len(v.Elems) != 1 || v.Elems[0].Kind != value.KindTuple || len(v.Elems[0].Elems) != 2 {
			return heightHint{}, fmt.Errorf("%w: Range needs an (i32, i32) payload", extension.ErrBadArg)
		}
		lo, err := toI32(v.Elems[0].Elems[0])
		if err != nil {
			return heightHint{}, err
		}
		hi, err := toI32(v.Elems[0].Elems[1])
		if err != nil {
			return heightHint{}, err
		}
		if lo > hi {
			return heightHint{}, fmt.Errorf("%w: Range bounds inverted", extension.ErrBadArg)
		}
		return heightHint{kind: hintRange, min: lo, max: hi}, nil
	default:
		return heightHint{}, fmt.Errorf("%w: bad height_hint %q", extension.ErrBadArg, v.Ctor)
	}
}

func intPayload(v value.Value) (int32, error) {
	if len(v.Elems) != 1 {
		return 0, fmt.Errorf("%w: %s needs an i32 payload", extension.ErrBadArg, v.Ctor)
	}
	return toI32(v.Elems[0])
}

func toI32(v value.Value) (int32, error) {
	switch v.Kind {
	case value.KindI8, value.KindI16, value.KindI32:
		return int32(v.Int), nil
	case value.KindU8, value.KindU16:
		return int32(v.Uint), nil
	default:
		return 0, fmt.Errorf("%w: expected an i32 height", extension.ErrBadArg)
	}
}
