package spp

import "time"

// ParamTypeKind tags the semantic variant a ParameterType carries.
type ParamTypeKind int

const (
	ParamInteger ParamTypeKind = iota
	ParamFloat
	ParamString
	ParamEnumerated
	ParamBoolean
	ParamAbsoluteTime
	ParamRelativeTime
	ParamBinary
)

// EnumLabel is one raw-value -> label entry of an Enumerated parameter
// type. Duplicate labels are permitted; raw value is always preserved
// regardless of whether a label was found for it.
type EnumLabel struct {
	Raw   Value
	Label string
}

// ParameterType is immutable after load: it owns exactly one DataEncoding
// and zero or more Calibrators. The XTCE loader and the programmatic
// construction path both build these.
type ParameterType struct {
	Name     string
	Kind     ParamTypeKind
	Encoding DataEncoding
	Signed   bool // meaningful for ParamInteger only

	DefaultCalibrator  Calibrator          // Integer/Float/Time only
	ContextCalibrators []ContextCalibrator // Integer/Float/Time only

	EnumLabels []EnumLabel // ParamEnumerated only

	TimeEpoch *time.Time // Absolute/RelativeTime only; nil = unspecified
	TimeScale float64    // Absolute/RelativeTime only; 0 treated as 1 by Decode
}

// Decode reads this type's encoding at the cursor and derives the
// engineering value, recording any recoverable condition (enum miss) as a
// warning rather than failing the decode.
func (pt *ParameterType) Decode(st *decodeState) (raw, derived Value, bits int, err error) {
	raw, bits, err = pt.Encoding.decode(st)
	if err != nil {
		return Value{}, Value{}, 0, err
	}

	switch pt.Kind {
	case ParamInteger, ParamFloat:
		derived, err = pt.applyCalibration(raw, st)
		if err != nil {
			return raw, Value{}, bits, err
		}
		return raw, derived, bits, nil

	case ParamEnumerated:
		if rawKey, ok := intKey(raw); ok {
			for _, e := range pt.EnumLabels {
				if labelKey, ok := intKey(e.Raw); ok && labelKey == rawKey {
					return raw, strValue(e.Label), bits, nil
				}
			}
		}
		st.warn(WarningEnumMissing, "enumeration label not found for raw value "+raw.String())
		return raw, raw, bits, nil

	case ParamBoolean:
		nonZero := false
		switch raw.Kind {
		case KindInt:
			nonZero = raw.Int != 0
		case KindUint:
			nonZero = raw.Uint != 0
		}
		return raw, boolValue(nonZero), bits, nil

	case ParamAbsoluteTime, ParamRelativeTime:
		calibrated, err := pt.applyCalibration(raw, st)
		if err != nil {
			return raw, Value{}, bits, err
		}
		cf, _ := calibrated.AsFloat64()
		scale := pt.TimeScale
		if scale == 0 {
			scale = 1
		}
		seconds := cf * scale
		if pt.Kind == ParamAbsoluteTime {
			epoch := time.Unix(0, 0).UTC()
			if pt.TimeEpoch != nil {
				epoch = *pt.TimeEpoch
			}
			derivedTime := epoch.Add(time.Duration(seconds * float64(time.Second)))
			return raw, floatValue(float64(derivedTime.Unix()) + (seconds - float64(int64(seconds)))), bits, nil
		}
		return raw, floatValue(seconds), bits, nil

	case ParamString:
		return bytesValue(raw.Bytes), strValue(raw.Str), bits, nil

	case ParamBinary:
		return raw, raw, bits, nil

	default:
		return raw, raw, bits, nil
	}
}

// applyCalibration implements first-match-wins context calibrator
// resolution, falling back to the default calibrator, falling back to
// pass-through. An enumerated-lookup calibrator miss is recoverable
// rather than fatal, same as a Parameter Type's own built-in
// enum-label lookup.
func (pt *ParameterType) applyCalibration(raw Value, st *decodeState) (Value, error) {
	for _, ctx := range pt.ContextCalibrators {
		ok, err := Evaluate(ctx.Criterion, st.record)
		if err != nil {
			return Value{}, err
		}
		if ok {
			return calibrateOrWarn(ctx.Calibrator, raw, st)
		}
	}
	if pt.DefaultCalibrator != nil {
		return calibrateOrWarn(pt.DefaultCalibrator, raw, st)
	}
	return raw, nil
}

func calibrateOrWarn(c Calibrator, raw Value, st *decodeState) (Value, error) {
	v, err := c.calibrate(raw)
	if err != nil {
		if sentinel, ok := asUnknownEnumSentinel(err); ok {
			st.warn(WarningEnumMissing, "enumeration label not found for raw value "+sentinel.raw.String())
			return raw, nil
		}
		return Value{}, err
	}
	return v, nil
}

func asUnknownEnumSentinel(err error) (unknownEnumSentinel, bool) {
	type unwrapper interface{ Unwrap() error }
	for err != nil {
		if s, ok := err.(unknownEnumSentinel); ok {
			return s, true
		}
		u, ok := err.(unwrapper)
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return unknownEnumSentinel{}, false
}

// Parameter is a named handle onto a ParameterType. Parameter names
// are unique within one space system; the loader enforces this at load
// time.
type Parameter struct {
	Name      string
	TypeRef   string
	ShortDesc string
	LongDesc  string
	resolved  *ParameterType
}
