package spp

import (
	"fmt"
	"io"
	"strconv"

	"github.com/beevik/etree"
)

// Save serializes ts back into an XTCE document written to w. It is the
// inverse of Load: a TypeSystem built programmatically (by constructing
// ParameterType, Parameter, and SequenceContainer values directly and
// calling NewContainerSet) can be written out and read back by Load into a
// structurally equal TypeSystem.
func Save(ts *TypeSystem, w io.Writer) error {
	doc := etree.NewDocument()
	doc.Indent(2)

	root := doc.CreateElement("SpaceSystem")
	root.CreateAttr("name", ts.SpaceSystemName)
	root.CreateAttr("xmlns", XtceNamespaceCurrent)

	meta := root.CreateElement("TelemetryMetaData")

	ptSet := meta.CreateElement("ParameterTypeSet")
	for _, pt := range ts.ParameterTypes {
		if err := writeParameterType(ptSet, pt); err != nil {
			return err
		}
	}

	pSet := meta.CreateElement("ParameterSet")
	for _, p := range ts.Parameters {
		pEl := pSet.CreateElement("Parameter")
		pEl.CreateAttr("name", p.Name)
		pEl.CreateAttr("parameterTypeRef", p.TypeRef)
		if p.ShortDesc != "" {
			pEl.CreateAttr("shortDescription", p.ShortDesc)
		}
		if p.LongDesc != "" {
			pEl.CreateElement("LongDescription").SetText(p.LongDesc)
		}
	}

	cSet := meta.CreateElement("ContainerSet")
	for name := range ts.Containers.byName {
		c, _ := ts.Containers.Get(name)
		writeSequenceContainer(cSet, c)
	}

	_, err := doc.WriteTo(w)
	return err
}

func writeParameterType(parent *etree.Element, pt *ParameterType) error {
	switch pt.Kind {
	case ParamInteger:
		el := parent.CreateElement("IntegerParameterType")
		el.CreateAttr("name", pt.Name)
		el.CreateAttr("signed", strconv.FormatBool(pt.Signed))
		enc, ok := pt.Encoding.(IntegerEncoding)
		if !ok {
			return fmt.Errorf("spp: integer parameter type %q has non-integer encoding", pt.Name)
		}
		encEl := writeIntegerEncoding(el, enc)
		writeCalibrators(encEl, pt)

	case ParamFloat:
		el := parent.CreateElement("FloatParameterType")
		el.CreateAttr("name", pt.Name)
		enc, ok := pt.Encoding.(FloatEncoding)
		if !ok {
			return fmt.Errorf("spp: float parameter type %q has non-float encoding", pt.Name)
		}
		encEl := writeFloatEncoding(el, enc)
		writeCalibrators(encEl, pt)

	case ParamString:
		el := parent.CreateElement("StringParameterType")
		el.CreateAttr("name", pt.Name)
		enc, ok := pt.Encoding.(StringEncoding)
		if !ok {
			return fmt.Errorf("spp: string parameter type %q has non-string encoding", pt.Name)
		}
		writeStringEncoding(el, enc)

	case ParamBinary:
		el := parent.CreateElement("BinaryParameterType")
		el.CreateAttr("name", pt.Name)
		enc, ok := pt.Encoding.(BinaryEncoding)
		if !ok {
			return fmt.Errorf("spp: binary parameter type %q has non-binary encoding", pt.Name)
		}
		writeBinaryEncoding(el, enc)

	case ParamBoolean:
		el := parent.CreateElement("BooleanParameterType")
		el.CreateAttr("name", pt.Name)
		enc, ok := pt.Encoding.(IntegerEncoding)
		if !ok {
			return fmt.Errorf("spp: boolean parameter type %q has non-integer encoding", pt.Name)
		}
		writeIntegerEncoding(el, enc)

	case ParamEnumerated:
		el := parent.CreateElement("EnumeratedParameterType")
		el.CreateAttr("name", pt.Name)
		switch enc := pt.Encoding.(type) {
		case IntegerEncoding:
			writeIntegerEncoding(el, enc)
		case StringEncoding:
			writeStringEncoding(el, enc)
		case FloatEncoding:
			writeFloatEncoding(el, enc)
		default:
			return fmt.Errorf("spp: enumerated parameter type %q has an unsupported backing encoding", pt.Name)
		}
		elist := el.CreateElement("EnumerationList")
		for _, lbl := range pt.EnumLabels {
			e := elist.CreateElement("Enumeration")
			e.CreateAttr("value", lbl.Raw.String())
			e.CreateAttr("label", lbl.Label)
		}

	case ParamAbsoluteTime, ParamRelativeTime:
		tag := "AbsoluteTimeParameterType"
		if pt.Kind == ParamRelativeTime {
			tag = "RelativeTimeParameterType"
		}
		el := parent.CreateElement(tag)
		el.CreateAttr("name", pt.Name)
		encWrap := el.CreateElement("Encoding")
		switch enc := pt.Encoding.(type) {
		case IntegerEncoding:
			writeIntegerEncoding(encWrap, enc)
		case FloatEncoding:
			writeFloatEncoding(encWrap, enc)
		default:
			return fmt.Errorf("spp: time parameter type %q has an unsupported backing encoding", pt.Name)
		}
		if pt.TimeEpoch != nil || pt.TimeScale != 0 {
			rt := el.CreateElement("ReferenceTime")
			if pt.TimeEpoch != nil {
				rt.CreateElement("Epoch").SetText(pt.TimeEpoch.Format("2006-01-02T15:04:05Z07:00"))
			}
			if pt.TimeScale != 0 {
				rt.CreateElement("Scale").SetText(strconv.FormatFloat(pt.TimeScale, 'g', -1, 64))
			}
		}

	default:
		return fmt.Errorf("spp: unknown parameter type kind for %q", pt.Name)
	}
	return nil
}

func writeIntegerEncoding(parent *etree.Element, enc IntegerEncoding) *etree.Element {
	el := parent.CreateElement("IntegerDataEncoding")
	el.CreateAttr("sizeInBits", strconv.Itoa(enc.Size))
	names := map[SignedEncoding]string{
		SignUnsigned:       "unsigned",
		SignTwosComplement: "twosComplement",
		SignOnesComplement: "onesComplement",
		SignMagnitude:      "signMagnitude",
	}
	el.CreateAttr("encoding", names[enc.Sign])
	return el
}

func writeFloatEncoding(parent *etree.Element, enc FloatEncoding) *etree.Element {
	el := parent.CreateElement("FloatDataEncoding")
	el.CreateAttr("sizeInBits", strconv.Itoa(enc.Size))
	if enc.Kind == FloatMIL1750A {
		el.CreateAttr("encoding", "MIL-1750A")
	} else {
		el.CreateAttr("encoding", "IEEE754_1985")
	}
	return el
}

func writeStringEncoding(parent *etree.Element, enc StringEncoding) *etree.Element {
	el := parent.CreateElement("StringDataEncoding")
	names := map[CharSet]string{CharSetUTF8: "UTF-8", CharSetUTF16LE: "UTF-16LE", CharSetUTF16BE: "UTF-16BE"}
	el.CreateAttr("encoding", names[enc.CharSet])
	switch enc.LengthMode {
	case StringFixed:
		sz := el.CreateElement("SizeInBits")
		sz.CreateElement("Fixed").CreateElement("FixedValue").SetText(strconv.Itoa(enc.FixedBits))
	case StringTerminated:
		el.CreateElement("Termination").SetText(fmt.Sprintf("%X", enc.Terminator))
	case StringPrefixLength:
		sz := el.CreateElement("SizeInBits")
		dyn := sz.CreateElement("DynamicValue")
		dyn.CreateElement("ParameterInstanceRef").CreateAttr("parameterRef", enc.PrefixParam)
	}
	return el
}

func writeBinaryEncoding(parent *etree.Element, enc BinaryEncoding) *etree.Element {
	el := parent.CreateElement("BinaryDataEncoding")
	sz := el.CreateElement("SizeInBits")
	switch enc.SizeMode {
	case BinaryFixed:
		sz.CreateElement("FixedValue").SetText(strconv.Itoa(enc.FixedBits))
	case BinaryDynamicRef:
		dyn := sz.CreateElement("DynamicValue")
		dyn.CreateElement("ParameterInstanceRef").CreateAttr("parameterRef", enc.SizeRef)
	}
	return el
}

func writeCalibrators(encEl *etree.Element, pt *ParameterType) {
	if pt.DefaultCalibrator != nil {
		wrap := encEl.CreateElement("DefaultCalibrator")
		writeCalibrator(wrap, pt.DefaultCalibrator)
	}
	if len(pt.ContextCalibrators) > 0 {
		list := encEl.CreateElement("ContextCalibratorList")
		for _, cc := range pt.ContextCalibrators {
			ccEl := list.CreateElement("ContextCalibrator")
			match := ccEl.CreateElement("ContextMatch")
			writeMatchCriterion(match, cc.Criterion)
			calWrap := ccEl.CreateElement("Calibrator")
			writeCalibrator(calWrap, cc.Calibrator)
		}
	}
}

func writeCalibrator(parent *etree.Element, cal Calibrator) {
	switch c := cal.(type) {
	case PolynomialCalibrator:
		el := parent.CreateElement("PolynomialCalibrator")
		for exp, coeff := range c.Coefficients {
			t := el.CreateElement("Term")
			t.CreateAttr("exponent", strconv.Itoa(exp))
			t.CreateAttr("coefficient", strconv.FormatFloat(coeff, 'g', -1, 64))
		}
	case SplineCalibrator:
		el := parent.CreateElement("SplineCalibrator")
		if c.Interpolation == SplineZeroOrderHold {
			el.CreateAttr("interpolation", "zeroOrderHold")
		} else {
			el.CreateAttr("interpolation", "linear")
		}
		switch c.Extrapolation {
		case ExtrapolateClamp:
			el.CreateAttr("extrapolation", "clamp")
		case ExtrapolateError:
			el.CreateAttr("extrapolation", "error")
		default:
			el.CreateAttr("extrapolation", "linear")
		}
		for _, p := range c.Points {
			pEl := el.CreateElement("SplinePoint")
			pEl.CreateAttr("raw", strconv.FormatFloat(p.X, 'g', -1, 64))
			pEl.CreateAttr("calibrated", strconv.FormatFloat(p.Y, 'g', -1, 64))
		}
	case DiscreteLookupCalibrator:
		el := parent.CreateElement("DiscreteLookupCalibrator")
		el.CreateAttr("noMatchPassThrough", strconv.FormatBool(c.NoMatchPassThrough))
		for _, dc := range c.Cases {
			dl := el.CreateElement("DiscreteLookup")
			dl.CreateAttr("value", dc.Value.String())
			match := dl.CreateElement("Match")
			writeMatchCriterion(match, dc.Criterion)
		}
	case EnumLookupCalibrator:
		el := parent.CreateElement("EnumeratedLookupCalibrator")
		for raw, label := range c.Labels {
			e := el.CreateElement("Enumeration")
			e.CreateAttr("value", strconv.FormatInt(raw, 10))
			e.CreateAttr("label", label)
		}
	}
}

func writeMatchCriterion(parent *etree.Element, crit MatchCriterion) {
	if crit == nil {
		return
	}
	switch c := crit.(type) {
	case Comparison:
		writeComparison(parent, c)
	case ComparisonList:
		el := parent.CreateElement("ComparisonList")
		for _, cmp := range c.Comparisons {
			writeComparison(el, cmp)
		}
	case BooleanExpression:
		el := parent.CreateElement("BooleanExpression")
		if len(c.AndedConditions) > 0 {
			and := el.CreateElement("ANDedConditions")
			for _, cond := range c.AndedConditions {
				writeMatchCriterion(and, cond)
			}
		}
		if len(c.OredConditions) > 0 {
			or := el.CreateElement("ORedConditions")
			for _, cond := range c.OredConditions {
				writeMatchCriterion(or, cond)
			}
		}
	}
}

func writeComparison(parent *etree.Element, c Comparison) {
	el := parent.CreateElement("Comparison")
	el.CreateAttr("parameterRef", c.Parameter)
	el.CreateAttr("value", c.Value.String())
	el.CreateAttr("useCalibratedValue", strconv.FormatBool(c.UseCalibrated))
	ops := map[CompareOp]string{
		CmpEQ: "==", CmpNE: "!=", CmpLT: "<", CmpLE: "<=", CmpGT: ">", CmpGE: ">=",
	}
	el.CreateAttr("comparisonOperator", ops[c.Op])
}

func writeSequenceContainer(parent *etree.Element, c *SequenceContainer) {
	el := parent.CreateElement("SequenceContainer")
	el.CreateAttr("name", c.Name)
	if c.Abstract {
		el.CreateAttr("abstract", "true")
	}
	entries := el.CreateElement("EntryList")
	for _, e := range c.Entries {
		switch e.Kind {
		case EntryParameter:
			entries.CreateElement("ParameterRefEntry").CreateAttr("parameterRef", e.ParameterRef)
		case EntryContainer:
			entries.CreateElement("ContainerRefEntry").CreateAttr("containerRef", e.ContainerRef)
		}
	}
	if c.Base != nil {
		base := el.CreateElement("BaseContainer")
		base.CreateAttr("containerRef", c.Base.ContainerRef)
		if c.Base.Restriction != nil {
			rc := base.CreateElement("RestrictionCriteria")
			writeMatchCriterion(rc, c.Base.Restriction)
		}
	}
}
