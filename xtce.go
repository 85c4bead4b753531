package spp

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
)

// Recognized XTCE namespace URIs. Either is accepted on load; Save
// always writes the current OMG namespace.
const (
	XtceNamespaceCurrent = "http://www.omg.org/spec/XTCE/20180204"
	XtceNamespaceLegacy  = "http://www.omg.org/space/xtce"
)

// Load parses an XTCE XML document from r into a TypeSystem. Element
// matching is namespace-agnostic: documents with or without an "xtce:"
// prefix are both accepted. Before Load returns, parameter-type,
// parameter, entry and base-container references are checked for dangling
// targets, base-container inheritance is checked for cycles, and duplicate
// names are rejected. Parameter names inside match criteria and
// dynamic-size references are not checked at load time, and neither are
// cycles among container-ref entries; those surface when a packet is
// decoded.
func Load(r io.Reader) (*TypeSystem, error) {
	doc := etree.NewDocument()
	if _, err := doc.ReadFrom(r); err != nil {
		return nil, XtceParseErr{Message: "invalid XML: " + err.Error()}
	}
	root := doc.Root()
	if root == nil || localName(root.Tag) != "SpaceSystem" {
		return nil, XtceParseErr{Message: "document root is not a SpaceSystem element"}
	}

	ts := &TypeSystem{
		SpaceSystemName: root.SelectAttrValue("name", ""),
		ParameterTypes:  make(map[string]*ParameterType),
		Parameters:      make(map[string]*Parameter),
	}

	meta := findChild(root, "TelemetryMetaData")
	if meta == nil {
		return nil, XtceParseErr{Element: "SpaceSystem", Message: "missing TelemetryMetaData"}
	}

	if ptSet := findChild(meta, "ParameterTypeSet"); ptSet != nil {
		for _, el := range ptSet.ChildElements() {
			pt, err := parseParameterType(el)
			if err != nil {
				return nil, err
			}
			if _, dup := ts.ParameterTypes[pt.Name]; dup {
				return nil, XtceParseErr{Element: pt.Name, Message: "duplicate parameter type name"}
			}
			ts.ParameterTypes[pt.Name] = pt
		}
	}

	if pSet := findChild(meta, "ParameterSet"); pSet != nil {
		for _, el := range findChildren(pSet, "Parameter") {
			p := &Parameter{
				Name:      el.SelectAttrValue("name", ""),
				TypeRef:   el.SelectAttrValue("parameterTypeRef", ""),
				ShortDesc: el.SelectAttrValue("shortDescription", ""),
			}
			if ld := findChild(el, "LongDescription"); ld != nil {
				p.LongDesc = ld.Text()
			}
			if p.Name == "" {
				return nil, XtceParseErr{Element: "Parameter", Message: "missing name attribute"}
			}
			if _, dup := ts.Parameters[p.Name]; dup {
				return nil, XtceParseErr{Element: p.Name, Message: "duplicate parameter name"}
			}
			ts.Parameters[p.Name] = p
		}
	}

	containerSetEl := findChild(meta, "ContainerSet")
	if containerSetEl == nil {
		return nil, XtceParseErr{Element: "TelemetryMetaData", Message: "missing ContainerSet"}
	}
	var containers []*SequenceContainer
	rootName := ""
	for _, el := range findChildren(containerSetEl, "SequenceContainer") {
		c, err := parseSequenceContainer(el)
		if err != nil {
			return nil, err
		}
		containers = append(containers, c)
		if c.Base == nil && rootName == "" {
			rootName = c.Name
		}
	}
	if rootName == "" {
		return nil, XtceParseErr{Element: "ContainerSet", Message: "no root (base-less) container found"}
	}
	cs, err := NewContainerSet(containers, rootName)
	if err != nil {
		return nil, err
	}
	ts.Containers = cs
	ts.RootContainer = rootName

	if err := ts.Validate(); err != nil {
		return nil, err
	}
	return ts, nil
}

// --- namespace-agnostic element helpers -------------------------------

func localName(tag string) string {
	if idx := strings.IndexByte(tag, ':'); idx >= 0 {
		return tag[idx+1:]
	}
	return tag
}

func findChild(el *etree.Element, name string) *etree.Element {
	for _, c := range el.ChildElements() {
		if localName(c.Tag) == name {
			return c
		}
	}
	return nil
}

func findChildren(el *etree.Element, name string) []*etree.Element {
	var out []*etree.Element
	for _, c := range el.ChildElements() {
		if localName(c.Tag) == name {
			out = append(out, c)
		}
	}
	return out
}

// --- parameter types -----------------------------------------------------

func parseParameterType(el *etree.Element) (*ParameterType, error) {
	name := el.SelectAttrValue("name", "")
	if name == "" {
		return nil, XtceParseErr{Element: localName(el.Tag), Message: "parameter type missing name"}
	}
	switch localName(el.Tag) {
	case "IntegerParameterType":
		enc, err := parseIntegerEncoding(findChild(el, "IntegerDataEncoding"), name)
		if err != nil {
			return nil, err
		}
		pt := &ParameterType{Name: name, Kind: ParamInteger, Encoding: enc, Signed: boolAttr(el, "signed", enc.Sign != SignUnsigned)}
		if err := attachCalibrators(findChild(el, "IntegerDataEncoding"), pt); err != nil {
			return nil, err
		}
		return pt, nil

	case "FloatParameterType":
		encEl := findChild(el, "FloatDataEncoding")
		enc, err := parseFloatEncoding(encEl, name)
		if err != nil {
			return nil, err
		}
		pt := &ParameterType{Name: name, Kind: ParamFloat, Encoding: enc}
		if err := attachCalibrators(encEl, pt); err != nil {
			return nil, err
		}
		return pt, nil

	case "StringParameterType":
		enc, err := parseStringEncoding(findChild(el, "StringDataEncoding"), name)
		if err != nil {
			return nil, err
		}
		return &ParameterType{Name: name, Kind: ParamString, Encoding: enc}, nil

	case "BinaryParameterType":
		enc, err := parseBinaryEncoding(findChild(el, "BinaryDataEncoding"), name)
		if err != nil {
			return nil, err
		}
		return &ParameterType{Name: name, Kind: ParamBinary, Encoding: enc}, nil

	case "BooleanParameterType":
		encEl := findChild(el, "IntegerDataEncoding")
		enc, err := parseIntegerEncoding(encEl, name)
		if err != nil {
			return nil, err
		}
		return &ParameterType{Name: name, Kind: ParamBoolean, Encoding: enc}, nil

	case "EnumeratedParameterType":
		baseEnc := findChild(el, "IntegerDataEncoding")
		var enc DataEncoding
		var err error
		if baseEnc != nil {
			enc, err = parseIntegerEncoding(baseEnc, name)
		} else if se := findChild(el, "StringDataEncoding"); se != nil {
			enc, err = parseStringEncoding(se, name)
		} else if fe := findChild(el, "FloatDataEncoding"); fe != nil {
			enc, err = parseFloatEncoding(fe, name)
		} else {
			return nil, XtceParseErr{Element: name, Message: "EnumeratedParameterType missing a backing data encoding"}
		}
		if err != nil {
			return nil, err
		}
		pt := &ParameterType{Name: name, Kind: ParamEnumerated, Encoding: enc}
		if elist := findChild(el, "EnumerationList"); elist != nil {
			for _, e := range findChildren(elist, "Enumeration") {
				raw, err := parseEnumRawAttr(e.SelectAttrValue("value", "0"))
				if err != nil {
					return nil, XtceParseErr{Element: name, Message: "bad Enumeration value: " + err.Error()}
				}
				pt.EnumLabels = append(pt.EnumLabels, EnumLabel{Raw: raw, Label: e.SelectAttrValue("label", "")})
			}
		}
		return pt, nil

	case "AbsoluteTimeParameterType", "RelativeTimeParameterType":
		kind := ParamAbsoluteTime
		if localName(el.Tag) == "RelativeTimeParameterType" {
			kind = ParamRelativeTime
		}
		encWrap := findChild(el, "Encoding")
		var searchIn *etree.Element = el
		if encWrap != nil {
			searchIn = encWrap
		}
		var enc DataEncoding
		var err error
		if ie := findChild(searchIn, "IntegerDataEncoding"); ie != nil {
			enc, err = parseIntegerEncoding(ie, name)
		} else if fe := findChild(searchIn, "FloatDataEncoding"); fe != nil {
			enc, err = parseFloatEncoding(fe, name)
		} else {
			return nil, XtceParseErr{Element: name, Message: "time parameter type missing a numeric backing encoding"}
		}
		if err != nil {
			return nil, err
		}
		pt := &ParameterType{Name: name, Kind: kind, Encoding: enc, TimeScale: 1}
		if rt := findChild(el, "ReferenceTime"); rt != nil {
			if epochEl := findChild(rt, "Epoch"); epochEl != nil {
				if t, err := time.Parse(time.RFC3339, epochEl.Text()); err == nil {
					pt.TimeEpoch = &t
				}
			}
			if scaleEl := findChild(rt, "Scale"); scaleEl != nil {
				if s, err := strconv.ParseFloat(scaleEl.Text(), 64); err == nil {
					pt.TimeScale = s
				}
			}
		}
		return pt, nil

	default:
		return nil, XtceParseErr{Element: localName(el.Tag), Message: "unrecognized parameter type element"}
	}
}

func parseEnumRawAttr(s string) (Value, error) {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return intValue(i), nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return floatValue(f), nil
	}
	return strValue(s), nil
}

func boolAttr(el *etree.Element, name string, def bool) bool {
	v := el.SelectAttrValue(name, "")
	if v == "" {
		return def
	}
	return v == "true" || v == "1"
}

// --- data encodings ------------------------------------------------------

func parseIntegerEncoding(el *etree.Element, owner string) (IntegerEncoding, error) {
	if el == nil {
		return IntegerEncoding{}, XtceParseErr{Element: owner, Message: "missing IntegerDataEncoding"}
	}
	size, err := strconv.Atoi(el.SelectAttrValue("sizeInBits", "0"))
	if err != nil || size < 1 || size > 64 {
		return IntegerEncoding{}, UnsupportedEncodingErr{Element: "IntegerDataEncoding", Detail: fmt.Sprintf("sizeInBits=%q", el.SelectAttrValue("sizeInBits", ""))}
	}
	sign := SignUnsigned
	switch el.SelectAttrValue("encoding", "unsigned") {
	case "unsigned":
		sign = SignUnsigned
	case "twosComplement":
		sign = SignTwosComplement
	case "onesComplement":
		sign = SignOnesComplement
	case "signMagnitude":
		sign = SignMagnitude
	default:
		return IntegerEncoding{}, UnsupportedEncodingErr{Element: "IntegerDataEncoding", Detail: "encoding=" + el.SelectAttrValue("encoding", "")}
	}
	if sign != SignUnsigned && size < 2 {
		return IntegerEncoding{}, UnsupportedEncodingErr{Element: "IntegerDataEncoding", Detail: "signed encoding requires sizeInBits >= 2"}
	}
	return IntegerEncoding{Size: size, Sign: sign}, nil
}

func parseFloatEncoding(el *etree.Element, owner string) (FloatEncoding, error) {
	if el == nil {
		return FloatEncoding{}, XtceParseErr{Element: owner, Message: "missing FloatDataEncoding"}
	}
	size, err := strconv.Atoi(el.SelectAttrValue("sizeInBits", "0"))
	if err != nil {
		return FloatEncoding{}, UnsupportedEncodingErr{Element: "FloatDataEncoding", Detail: "bad sizeInBits"}
	}
	switch el.SelectAttrValue("encoding", "IEEE754_1985") {
	case "IEEE754_1985", "":
		if size != 16 && size != 32 && size != 64 {
			return FloatEncoding{}, UnsupportedEncodingErr{Element: "FloatDataEncoding", Detail: fmt.Sprintf("IEEE-754 size %d", size)}
		}
		return FloatEncoding{Size: size, Kind: FloatIEEE754}, nil
	case "MIL-1750A":
		if size != 32 {
			return FloatEncoding{}, UnsupportedEncodingErr{Element: "FloatDataEncoding", Detail: fmt.Sprintf("MIL-1750A size %d", size)}
		}
		return FloatEncoding{Size: size, Kind: FloatMIL1750A}, nil
	default:
		return FloatEncoding{}, UnsupportedEncodingErr{Element: "FloatDataEncoding", Detail: "encoding=" + el.SelectAttrValue("encoding", "")}
	}
}

func parseStringEncoding(el *etree.Element, owner string) (StringEncoding, error) {
	if el == nil {
		return StringEncoding{}, XtceParseErr{Element: owner, Message: "missing StringDataEncoding"}
	}
	cs := CharSetUTF8
	switch el.SelectAttrValue("encoding", "UTF-8") {
	case "UTF-8", "":
		cs = CharSetUTF8
	case "UTF-16LE":
		cs = CharSetUTF16LE
	case "UTF-16BE":
		cs = CharSetUTF16BE
	default:
		return StringEncoding{}, UnsupportedEncodingErr{Element: "StringDataEncoding", Detail: "encoding=" + el.SelectAttrValue("encoding", "")}
	}
	se := StringEncoding{CharSet: cs}

	sizeEl := findChild(el, "SizeInBits")
	termEl := findChild(el, "Termination")
	switch {
	case termEl != nil:
		se.LengthMode = StringTerminated
		termBytes, err := hexBytes(termEl.Text())
		if err != nil {
			return StringEncoding{}, XtceParseErr{Element: "StringDataEncoding", Message: "bad Termination: " + err.Error()}
		}
		se.Terminator = termBytes
	case sizeEl != nil:
		if fixed := findChild(sizeEl, "Fixed"); fixed != nil {
			v, err := strconv.Atoi(findChild(fixed, "FixedValue").Text())
			if err != nil {
				return StringEncoding{}, XtceParseErr{Element: "StringDataEncoding", Message: "bad Fixed size"}
			}
			se.LengthMode = StringFixed
			se.FixedBits = v
		} else if dyn := findChild(sizeEl, "DynamicValue"); dyn != nil {
			se.LengthMode = StringPrefixLength
			se.PrefixParam = findChild(dyn, "ParameterInstanceRef").SelectAttrValue("parameterRef", "")
		} else {
			return StringEncoding{}, XtceParseErr{Element: "StringDataEncoding", Message: "SizeInBits has neither Fixed nor DynamicValue"}
		}
	default:
		return StringEncoding{}, XtceParseErr{Element: "StringDataEncoding", Message: "missing SizeInBits or Termination"}
	}
	return se, nil
}

func parseBinaryEncoding(el *etree.Element, owner string) (BinaryEncoding, error) {
	if el == nil {
		return BinaryEncoding{}, XtceParseErr{Element: owner, Message: "missing BinaryDataEncoding"}
	}
	sizeEl := findChild(el, "SizeInBits")
	if sizeEl == nil {
		return BinaryEncoding{}, XtceParseErr{Element: "BinaryDataEncoding", Message: "missing SizeInBits"}
	}
	if fixed := findChild(sizeEl, "FixedValue"); fixed != nil {
		v, err := strconv.Atoi(fixed.Text())
		if err != nil {
			return BinaryEncoding{}, XtceParseErr{Element: "BinaryDataEncoding", Message: "bad FixedValue"}
		}
		return BinaryEncoding{SizeMode: BinaryFixed, FixedBits: v}, nil
	}
	if dyn := findChild(sizeEl, "DynamicValue"); dyn != nil {
		ref := findChild(dyn, "ParameterInstanceRef").SelectAttrValue("parameterRef", "")
		return BinaryEncoding{SizeMode: BinaryDynamicRef, SizeRef: ref}, nil
	}
	return BinaryEncoding{}, XtceParseErr{Element: "BinaryDataEncoding", Message: "SizeInBits has neither FixedValue nor DynamicValue"}
}

func hexBytes(s string) ([]byte, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, " ", ""))
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("odd-length hex string %q", s)
	}
	out := make([]byte, len(s)/2)
	for i := range out {
		v, err := strconv.ParseUint(s[2*i:2*i+2], 16, 8)
		if err != nil {
			return nil, err
		}
		out[i] = byte(v)
	}
	return out, nil
}

// --- calibrators -----------------------------------------------------------

func attachCalibrators(encEl *etree.Element, pt *ParameterType) error {
	if encEl == nil {
		return nil
	}
	if dc := findChild(encEl, "DefaultCalibrator"); dc != nil {
		cal, err := parseCalibrator(firstChildElement(dc))
		if err != nil {
			return err
		}
		pt.DefaultCalibrator = cal
	}
	if ccl := findChild(encEl, "ContextCalibratorList"); ccl != nil {
		for _, cc := range findChildren(ccl, "ContextCalibrator") {
			critEl := findChild(cc, "ContextMatch")
			crit, err := parseMatchCriterion(firstChildElement(critEl))
			if err != nil {
				return err
			}
			calWrap := findChild(cc, "Calibrator")
			cal, err := parseCalibrator(firstChildElement(calWrap))
			if err != nil {
				return err
			}
			pt.ContextCalibrators = append(pt.ContextCalibrators, ContextCalibrator{Criterion: crit, Calibrator: cal})
		}
	}
	return nil
}

func firstChildElement(el *etree.Element) *etree.Element {
	if el == nil {
		return nil
	}
	children := el.ChildElements()
	if len(children) == 0 {
		return nil
	}
	return children[0]
}

func parseCalibrator(el *etree.Element) (Calibrator, error) {
	if el == nil {
		return nil, XtceParseErr{Element: "Calibrator", Message: "empty calibrator element"}
	}
	switch localName(el.Tag) {
	case "PolynomialCalibrator":
		terms := findChildren(el, "Term")
		coeffs := make([]float64, 0, len(terms))
		maxExp := 0
		byExp := map[int]float64{}
		for _, t := range terms {
			exp, _ := strconv.Atoi(t.SelectAttrValue("exponent", "0"))
			coeff, err := strconv.ParseFloat(t.SelectAttrValue("coefficient", "0"), 64)
			if err != nil {
				return nil, XtceParseErr{Element: "Term", Message: "bad coefficient"}
			}
			byExp[exp] = coeff
			if exp > maxExp {
				maxExp = exp
			}
		}
		for i := 0; i <= maxExp; i++ {
			coeffs = append(coeffs, byExp[i])
		}
		return PolynomialCalibrator{Coefficients: coeffs}, nil

	case "SplineCalibrator":
		var pts []SplinePoint
		for _, p := range findChildren(el, "SplinePoint") {
			x, err1 := strconv.ParseFloat(p.SelectAttrValue("raw", "0"), 64)
			y, err2 := strconv.ParseFloat(p.SelectAttrValue("calibrated", "0"), 64)
			if err1 != nil || err2 != nil {
				return nil, XtceParseErr{Element: "SplinePoint", Message: "bad raw/calibrated attribute"}
			}
			pts = append(pts, SplinePoint{X: x, Y: y})
		}
		interp := SplineLinear
		if el.SelectAttrValue("interpolation", "linear") == "zeroOrderHold" {
			interp = SplineZeroOrderHold
		}
		extrap := ExtrapolateLinear
		switch el.SelectAttrValue("extrapolation", "linear") {
		case "clamp":
			extrap = ExtrapolateClamp
		case "error":
			extrap = ExtrapolateError
		}
		return SplineCalibrator{Points: pts, Interpolation: interp, Extrapolation: extrap}, nil

	case "DiscreteLookupCalibrator":
		var cases []DiscreteLookupCase
		for _, dl := range findChildren(el, "DiscreteLookup") {
			crit, err := parseMatchCriterion(firstChildElement(findChild(dl, "Match")))
			if err != nil {
				return nil, err
			}
			valStr := dl.SelectAttrValue("value", "0")
			v, err := strconv.ParseFloat(valStr, 64)
			if err != nil {
				return nil, XtceParseErr{Element: "DiscreteLookup", Message: "bad value"}
			}
			cases = append(cases, DiscreteLookupCase{Criterion: crit, Value: floatValue(v)})
		}
		return DiscreteLookupCalibrator{Cases: cases, NoMatchPassThrough: boolAttr(el, "noMatchPassThrough", false)}, nil

	case "EnumeratedLookupCalibrator":
		labels := make(map[int64]string)
		for _, e := range findChildren(el, "Enumeration") {
			raw, err := strconv.ParseInt(e.SelectAttrValue("value", "0"), 10, 64)
			if err != nil {
				return nil, XtceParseErr{Element: "Enumeration", Message: "bad value"}
			}
			labels[raw] = e.SelectAttrValue("label", "")
		}
		return EnumLookupCalibrator{Labels: labels}, nil

	default:
		return nil, UnsupportedEncodingErr{Element: localName(el.Tag), Detail: "unrecognized calibrator kind"}
	}
}

// --- match criteria --------------------------------------------------------

func parseMatchCriterion(el *etree.Element) (MatchCriterion, error) {
	if el == nil {
		return nil, nil
	}
	switch localName(el.Tag) {
	case "Comparison":
		return parseComparison(el)
	case "ComparisonList":
		var comps []Comparison
		for _, c := range findChildren(el, "Comparison") {
			cmp, err := parseComparison(c)
			if err != nil {
				return nil, err
			}
			comps = append(comps, cmp)
		}
		return ComparisonList{Comparisons: comps}, nil
	case "BooleanExpression":
		be := BooleanExpression{}
		if and := findChild(el, "ANDedConditions"); and != nil {
			for _, c := range and.ChildElements() {
				cond, err := parseMatchCriterion(c)
				if err != nil {
					return nil, err
				}
				be.AndedConditions = append(be.AndedConditions, cond)
			}
		}
		if or := findChild(el, "ORedConditions"); or != nil {
			for _, c := range or.ChildElements() {
				cond, err := parseMatchCriterion(c)
				if err != nil {
					return nil, err
				}
				be.OredConditions = append(be.OredConditions, cond)
			}
		}
		return be, nil
	default:
		return nil, XtceParseErr{Element: localName(el.Tag), Message: "unrecognized match criterion element"}
	}
}

func parseComparison(el *etree.Element) (Comparison, error) {
	op, err := parseCompareOp(el.SelectAttrValue("comparisonOperator", "=="))
	if err != nil {
		return Comparison{}, XtceParseErr{Element: "Comparison", Message: err.Error()}
	}
	raw, err := parseEnumRawAttr(el.SelectAttrValue("value", "0"))
	if err != nil {
		return Comparison{}, XtceParseErr{Element: "Comparison", Message: "bad value attribute"}
	}
	return Comparison{
		Parameter:     el.SelectAttrValue("parameterRef", ""),
		Op:            op,
		Value:         raw,
		UseCalibrated: boolAttr(el, "useCalibratedValue", false),
	}, nil
}

func parseCompareOp(s string) (CompareOp, error) {
	switch s {
	case "==", "equalTo":
		return CmpEQ, nil
	case "!=", "notEqualTo":
		return CmpNE, nil
	case "<", "lessThan":
		return CmpLT, nil
	case "<=", "lessThanOrEqualTo":
		return CmpLE, nil
	case ">", "greaterThan":
		return CmpGT, nil
	case ">=", "greaterThanOrEqualTo":
		return CmpGE, nil
	default:
		return 0, fmt.Errorf("unrecognized comparisonOperator %q", s)
	}
}

// --- sequence containers ---------------------------------------------------

func parseSequenceContainer(el *etree.Element) (*SequenceContainer, error) {
	name := el.SelectAttrValue("name", "")
	if name == "" {
		return nil, XtceParseErr{Element: "SequenceContainer", Message: "missing name"}
	}
	c := &SequenceContainer{Name: name, Abstract: boolAttr(el, "abstract", false)}

	if entryList := findChild(el, "EntryList"); entryList != nil {
		for _, e := range entryList.ChildElements() {
			switch localName(e.Tag) {
			case "ParameterRefEntry":
				c.Entries = append(c.Entries, Entry{Kind: EntryParameter, ParameterRef: e.SelectAttrValue("parameterRef", "")})
			case "ContainerRefEntry":
				c.Entries = append(c.Entries, Entry{Kind: EntryContainer, ContainerRef: e.SelectAttrValue("containerRef", "")})
			default:
				return nil, XtceParseErr{Element: name, Message: "unrecognized entry " + e.Tag}
			}
		}
	}

	if base := findChild(el, "BaseContainer"); base != nil {
		bc := &BaseContainer{ContainerRef: base.SelectAttrValue("containerRef", "")}
		if rc := findChild(base, "RestrictionCriteria"); rc != nil {
			crit, err := parseMatchCriterion(firstChildElement(rc))
			if err != nil {
				return nil, err
			}
			bc.Restriction = crit
		}
		c.Base = bc
	}
	return c, nil
}
