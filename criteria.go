package spp

import (
	"bytes"
	"fmt"
)

// CompareOp is a comparison operator usable in a match criterion.
type CompareOp int

const (
	CmpEQ CompareOp = iota
	CmpNE
	CmpLT
	CmpLE
	CmpGT
	CmpGE
)

// MatchCriterion is a boolean expression evaluated over the in-progress
// Packet Record: a single Comparison, an implicit-AND ComparisonList, or
// a BooleanExpression tree of nested AND/OR groups. Like DataEncoding,
// this is a closed set, so we use an interface with an unexported marker
// rather than open dispatch.
type MatchCriterion interface {
	evaluate(record *PacketRecord) (bool, error)
	isMatchCriterion()
}

// Comparison tests one parameter's value against a literal.
type Comparison struct {
	Parameter     string
	Op            CompareOp
	Value         Value
	UseCalibrated bool
}

func (Comparison) isMatchCriterion() {}

func (c Comparison) evaluate(record *PacketRecord) (bool, error) {
	f, ok := record.Get(c.Parameter)
	if !ok {
		return false, MalformedErr{Reason: fmt.Sprintf("restriction criterion references %q before it is decoded", c.Parameter)}
	}
	lhs := f.Raw
	if c.UseCalibrated {
		lhs = f.Derived
	}
	return compareValues(lhs, c.Value, c.Op)
}

func compareValues(lhs, rhs Value, op CompareOp) (bool, error) {
	// A raw string field is carried as KindBytes (the undecoded buffer);
	// comparing it must stay byte-wise even when the literal on the other
	// side is a KindString attribute value.
	if lhs.Kind == KindBytes || rhs.Kind == KindBytes {
		lb := lhs.Bytes
		if lhs.Kind == KindString {
			lb = []byte(lhs.Str)
		}
		rb := rhs.Bytes
		if rhs.Kind == KindString {
			rb = []byte(rhs.Str)
		}
		cmp := bytes.Compare(lb, rb)
		switch op {
		case CmpEQ:
			return cmp == 0, nil
		case CmpNE:
			return cmp != 0, nil
		case CmpLT:
			return cmp < 0, nil
		case CmpLE:
			return cmp <= 0, nil
		case CmpGT:
			return cmp > 0, nil
		case CmpGE:
			return cmp >= 0, nil
		}
		return false, fmt.Errorf("spp: unknown comparison operator %d", op)
	}

	if lhs.Kind == KindString || rhs.Kind == KindString {
		ls, rs := lhs.Str, rhs.Str
		switch op {
		case CmpEQ:
			return ls == rs, nil
		case CmpNE:
			return ls != rs, nil
		case CmpLT:
			return ls < rs, nil
		case CmpLE:
			return ls <= rs, nil
		case CmpGT:
			return ls > rs, nil
		case CmpGE:
			return ls >= rs, nil
		}
		return false, fmt.Errorf("spp: unknown comparison operator %d", op)
	}

	lf, ok1 := lhs.AsFloat64()
	rf, ok2 := rhs.AsFloat64()
	if !ok1 || !ok2 {
		return false, fmt.Errorf("spp: cannot compare non-numeric, non-string values")
	}
	switch op {
	case CmpEQ:
		return lf == rf, nil
	case CmpNE:
		return lf != rf, nil
	case CmpLT:
		return lf < rf, nil
	case CmpLE:
		return lf <= rf, nil
	case CmpGT:
		return lf > rf, nil
	case CmpGE:
		return lf >= rf, nil
	}
	return false, fmt.Errorf("spp: unknown comparison operator %d", op)
}

// ComparisonList is the implicit AND of its comparisons.
type ComparisonList struct {
	Comparisons []Comparison
}

func (ComparisonList) isMatchCriterion() {}

func (l ComparisonList) evaluate(record *PacketRecord) (bool, error) {
	for _, c := range l.Comparisons {
		ok, err := c.evaluate(record)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// BooleanExpression is a tree of ANDed/ORed nested conditions, each itself
// a MatchCriterion (so groups may nest arbitrarily).
type BooleanExpression struct {
	AndedConditions []MatchCriterion
	OredConditions  []MatchCriterion
}

func (BooleanExpression) isMatchCriterion() {}

func (b BooleanExpression) evaluate(record *PacketRecord) (bool, error) {
	for _, cond := range b.AndedConditions {
		ok, err := cond.evaluate(record)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	if len(b.OredConditions) == 0 {
		return true, nil
	}
	for _, cond := range b.OredConditions {
		ok, err := cond.evaluate(record)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// Evaluate runs crit against record. A nil criterion always matches (used
// for a base container with no restriction).
func Evaluate(crit MatchCriterion, record *PacketRecord) (bool, error) {
	if crit == nil {
		return true, nil
	}
	return crit.evaluate(record)
}
