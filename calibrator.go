package spp

import (
	"fmt"
	"sort"
)

// Calibrator transforms one raw scalar into one derived scalar. The
// four kinds below are the closed set this decoder supports.
type Calibrator interface {
	calibrate(raw Value) (Value, error)
	isCalibrator()
}

// --- Polynomial ----------------------------------------------------------

// PolynomialCalibrator computes derived = sum(coeff[i] * raw^i) in double
// precision.
type PolynomialCalibrator struct {
	Coefficients []float64 // c0..cn
}

func (PolynomialCalibrator) isCalibrator() {}

func (p PolynomialCalibrator) calibrate(raw Value) (Value, error) {
	x, ok := raw.AsFloat64()
	if !ok {
		return Value{}, fmt.Errorf("spp: polynomial calibrator requires a numeric raw value")
	}
	var sum, power float64 = 0, 1
	for _, c := range p.Coefficients {
		sum += c * power
		power *= x
	}
	return floatValue(sum), nil
}

// --- Spline ----------------------------------------------------------------

// SplineInterpolation selects how a SplineCalibrator interpolates between
// its control points.
type SplineInterpolation int

const (
	SplineLinear SplineInterpolation = iota
	SplineZeroOrderHold
)

// SplineExtrapolation selects what a SplineCalibrator does outside its
// control points' domain.
type SplineExtrapolation int

const (
	ExtrapolateLinear SplineExtrapolation = iota
	ExtrapolateClamp
	ExtrapolateError
)

// SplinePoint is one (x,y) control point.
type SplinePoint struct {
	X, Y float64
}

// SplineCalibrator interpolates between ordered control points. Ties on x
// resolve to the last point sharing that x.
type SplineCalibrator struct {
	Points        []SplinePoint // any order; calibrate works on a copy sorted ascending by X
	Interpolation SplineInterpolation
	Extrapolation SplineExtrapolation
}

func (SplineCalibrator) isCalibrator() {}

func (s SplineCalibrator) calibrate(raw Value) (Value, error) {
	x, ok := raw.AsFloat64()
	if !ok {
		return Value{}, fmt.Errorf("spp: spline calibrator requires a numeric raw value")
	}
	pts := dedupeTiesKeepLast(s.Points)
	if len(pts) == 0 {
		return Value{}, fmt.Errorf("spp: spline calibrator has no points")
	}

	second, prev := pts[0], pts[len(pts)-1]
	if len(pts) > 1 {
		second, prev = pts[1], pts[len(pts)-2]
	}
	if x < pts[0].X {
		return s.extrapolate(x, pts[0], second)
	}
	last := pts[len(pts)-1]
	if x > last.X {
		return s.extrapolate(x, last, prev)
	}

	for i := 0; i < len(pts)-1; i++ {
		a, b := pts[i], pts[i+1]
		if x >= a.X && x <= b.X {
			switch s.Interpolation {
			case SplineZeroOrderHold:
				return floatValue(a.Y), nil
			default: // SplineLinear
				if b.X == a.X {
					return floatValue(a.Y), nil
				}
				t := (x - a.X) / (b.X - a.X)
				return floatValue(a.Y + t*(b.Y-a.Y)), nil
			}
		}
	}
	// x equals the last point exactly
	return floatValue(last.Y), nil
}

func (s SplineCalibrator) extrapolate(x float64, near, far SplinePoint) (Value, error) {
	switch s.Extrapolation {
	case ExtrapolateClamp:
		return floatValue(near.Y), nil
	case ExtrapolateError:
		return Value{}, MalformedErr{Reason: fmt.Sprintf("spline calibrator: %g outside control-point domain", x)}
	default: // ExtrapolateLinear: extend the nearest segment's slope
		if far.X == near.X {
			return floatValue(near.Y), nil
		}
		slope := (far.Y - near.Y) / (far.X - near.X)
		return floatValue(near.Y + slope*(x-near.X)), nil
	}
}

// dedupeTiesKeepLast removes duplicate-x points, keeping the last
// occurrence, and returns points sorted ascending by X.
func dedupeTiesKeepLast(pts []SplinePoint) []SplinePoint {
	byX := make(map[float64]float64, len(pts))
	order := make([]float64, 0, len(pts))
	for _, p := range pts {
		if _, seen := byX[p.X]; !seen {
			order = append(order, p.X)
		}
		byX[p.X] = p.Y
	}
	out := make([]SplinePoint, len(order))
	for i, x := range order {
		out[i] = SplinePoint{X: x, Y: byX[x]}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].X < out[j].X })
	return out
}

// --- Discrete lookup -------------------------------------------------------

// DiscreteLookupCase is one (criterion -> value) entry.
type DiscreteLookupCase struct {
	Criterion MatchCriterion
	Value     Value
}

// DiscreteLookupCalibrator evaluates Cases in order; the first whose
// criterion matches over the dedicated single-value record wins. If no
// case matches, NoMatchPassThrough selects between an error and passing
// the raw value through unchanged.
type DiscreteLookupCalibrator struct {
	Cases              []DiscreteLookupCase
	NoMatchPassThrough bool
}

func (DiscreteLookupCalibrator) isCalibrator() {}

func (d DiscreteLookupCalibrator) calibrate(raw Value) (Value, error) {
	probe := newPacketRecord(nil)
	probe.insert(FieldRecord{Name: "_value", Raw: raw, Derived: raw})
	for _, c := range d.Cases {
		ok, err := Evaluate(c.Criterion, probe)
		if err != nil {
			return Value{}, err
		}
		if ok {
			return c.Value, nil
		}
	}
	if d.NoMatchPassThrough {
		return raw, nil
	}
	return Value{}, MalformedErr{Reason: "discrete-lookup calibrator: no case matched and pass-through is disabled"}
}

// --- Enumerated lookup -----------------------------------------------------

// EnumLookupCalibrator maps a raw value directly to a label. Duplicate
// labels are permitted; the label carries no uniqueness constraint.
type EnumLookupCalibrator struct {
	Labels map[int64]string
}

func (EnumLookupCalibrator) isCalibrator() {}

func (e EnumLookupCalibrator) calibrate(raw Value) (Value, error) {
	key, ok := intKey(raw)
	if !ok {
		return Value{}, fmt.Errorf("spp: enumerated-lookup calibrator requires an integer raw value")
	}
	if label, ok := e.Labels[key]; ok {
		return strValue(label), nil
	}
	return Value{}, fmt.Errorf("spp: %w", unknownEnumSentinel{raw: raw})
}

// unknownEnumSentinel signals an enum miss back up to the parameter-type
// layer, which turns it into an UnknownEnumValue warning rather than a
// fatal error.
type unknownEnumSentinel struct{ raw Value }

func (e unknownEnumSentinel) Error() string { return "enumeration label not found" }

func intKey(v Value) (int64, bool) {
	switch v.Kind {
	case KindInt:
		return v.Int, true
	case KindUint:
		return int64(v.Uint), true
	default:
		return 0, false
	}
}

// --- Context calibrator ----------------------------------------------------

// ContextCalibrator wraps a Calibrator with a match criterion over
// already-decoded fields. At decode time the parameter type tries each of
// its context calibrators in order and uses the first whose criterion
// matches; if none match, the default calibrator (if any) applies, else
// the raw value passes through unchanged.
type ContextCalibrator struct {
	Criterion  MatchCriterion
	Calibrator Calibrator
}
