package spp

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// genIntegerParameterType produces a ParameterType wrapping a random valid
// IntegerEncoding, covering every sign convention Load/Save understands.
func genIntegerParameterType(t *rapid.T, name string) *ParameterType {
	sign := rapid.SampledFrom([]SignedEncoding{SignUnsigned, SignTwosComplement, SignOnesComplement, SignMagnitude}).Draw(t, "sign")
	minSize := 1
	if sign != SignUnsigned {
		minSize = 2
	}
	size := rapid.IntRange(minSize, 64).Draw(t, "size")
	return &ParameterType{
		Name:     name,
		Kind:     ParamInteger,
		Encoding: IntegerEncoding{Size: size, Sign: sign},
		Signed:   sign != SignUnsigned,
	}
}

func buildRoundTripSubject(pt *ParameterType) *TypeSystem {
	param := &Parameter{Name: "FIELD", TypeRef: pt.Name, ShortDesc: "a field"}
	root := &SequenceContainer{
		Name:    "ROOT",
		Entries: []Entry{{Kind: EntryParameter, ParameterRef: "FIELD"}},
	}
	cs, err := NewContainerSet([]*SequenceContainer{root}, "ROOT")
	if err != nil {
		panic(err)
	}
	return &TypeSystem{
		SpaceSystemName: "round-trip",
		ParameterTypes:  map[string]*ParameterType{pt.Name: pt},
		Parameters:      map[string]*Parameter{"FIELD": param},
		Containers:      cs,
		RootContainer:   "ROOT",
	}
}

// TestXTCE_RoundTrip_IntegerParameterType exercises Load(Save(ts)) == ts for
// the full space of IntegerEncoding sign conventions and sizes.
func TestXTCE_RoundTrip_IntegerParameterType(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		pt := genIntegerParameterType(t, "T")
		original := buildRoundTripSubject(pt)

		var buf bytes.Buffer
		require.NoError(t, Save(original, &buf))

		roundTripped, err := Load(&buf)
		require.NoError(t, err)

		origEnc := original.ParameterTypes["T"].Encoding.(IntegerEncoding)
		gotEnc := roundTripped.ParameterTypes["T"].Encoding.(IntegerEncoding)
		require.Equal(t, origEnc, gotEnc)
		require.Equal(t, original.ParameterTypes["T"].Signed, roundTripped.ParameterTypes["T"].Signed)
		require.Equal(t, original.RootContainer, roundTripped.RootContainer)
		require.Equal(t, original.Parameters["FIELD"].TypeRef, roundTripped.Parameters["FIELD"].TypeRef)
	})
}

// TestXTCE_RoundTrip_EnumeratedLabels exercises the enum-label list, which
// Save renders through Value.String and Load re-parses through
// parseEnumRawAttr, a lossy-looking but actually-exact path for integers.
func TestXTCE_RoundTrip_EnumeratedLabels(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 6).Draw(t, "n")
		var labels []EnumLabel
		seen := map[int64]bool{}
		for i := 0; i < n; i++ {
			raw := rapid.Int64Range(-1000, 1000).Draw(t, "raw")
			if seen[raw] {
				continue
			}
			seen[raw] = true
			label := rapid.StringMatching(`[A-Z]{1,8}`).Draw(t, "label")
			labels = append(labels, EnumLabel{Raw: intValue(raw), Label: label})
		}

		pt := &ParameterType{
			Name:       "Mode",
			Kind:       ParamEnumerated,
			Encoding:   IntegerEncoding{Size: 16, Sign: SignTwosComplement},
			EnumLabels: labels,
		}
		original := buildRoundTripSubject(pt)

		var buf bytes.Buffer
		require.NoError(t, Save(original, &buf))
		roundTripped, err := Load(&buf)
		require.NoError(t, err)

		gotLabels := roundTripped.ParameterTypes["Mode"].EnumLabels
		require.ElementsMatch(t, labels, gotLabels)
	})
}

// TestXTCE_RoundTrip_PolynomialCalibrator exercises a default calibrator
// surviving Save/Load with its coefficient ordering intact.
func TestXTCE_RoundTrip_PolynomialCalibrator(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 5).Draw(t, "n")
		coeffs := make([]float64, n)
		for i := range coeffs {
			coeffs[i] = rapid.Float64Range(-1000, 1000).Draw(t, "coeff")
		}

		pt := &ParameterType{
			Name:              "Calibrated",
			Kind:              ParamFloat,
			Encoding:          FloatEncoding{Size: 32, Kind: FloatIEEE754},
			DefaultCalibrator: PolynomialCalibrator{Coefficients: coeffs},
		}
		original := buildRoundTripSubject(pt)

		var buf bytes.Buffer
		require.NoError(t, Save(original, &buf))
		roundTripped, err := Load(&buf)
		require.NoError(t, err)

		got, ok := roundTripped.ParameterTypes["Calibrated"].DefaultCalibrator.(PolynomialCalibrator)
		require.True(t, ok)
		require.InDeltaSlice(t, coeffs, got.Coefficients, 1e-9)
	})
}
