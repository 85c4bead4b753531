package spp

import "fmt"

/*
Decoder combines the sequence-container inheritance walk with a bit
cursor over one packet's raw bytes to produce a Packet Record. It is
pure with respect to its TypeSystem: no container, parameter type, or
calibrator is ever mutated during a decode, so one Decoder's TypeSystem may
back any number of concurrently running Decoders.
*/
type Decoder struct {
	ts            *TypeSystem
	sink          WarningSink
	apidAllowlist map[int]bool
}

// DecoderOption configures a Decoder using the functional-options pattern.
type DecoderOption func(*Decoder)

// WithWarningSink routes decode-time warnings to sink in addition
// to the package logger.
func WithWarningSink(sink WarningSink) DecoderOption {
	return func(d *Decoder) { d.sink = sink }
}

// WithAPIDAllowlist bounds the APIDs this decoder considers expected; any
// other APID still decodes (if a container matches) but is flagged with an
// UnknownAPID warning.
func WithAPIDAllowlist(apids ...int) DecoderOption {
	return func(d *Decoder) {
		d.apidAllowlist = make(map[int]bool, len(apids))
		for _, a := range apids {
			d.apidAllowlist[a] = true
		}
	}
}

// NewDecoder builds a Decoder over ts, which must already have passed
// TypeSystem.Validate.
func NewDecoder(ts *TypeSystem, opts ...DecoderOption) *Decoder {
	d := &Decoder{ts: ts, sink: discardSink{}}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decode walks pkt's bytes against the Decoder's TypeSystem and returns the
// resulting Packet Record plus any warnings recorded during the decode.
// A fatal error (OutOfDataError, MalformedErr) discards the packet; the
// caller is expected to resynchronize to the next framed packet and
// continue.
func (d *Decoder) Decode(pkt *RawPacket) (*PacketRecord, []Warning, error) {
	st := &decodeState{
		cursor: NewBitCursor(pkt.Raw),
		record: newPacketRecord(pkt.Raw),
		sink:   d.sink,
		apid:   int(pkt.Header.APID),
	}

	if d.apidAllowlist != nil && !d.apidAllowlist[int(pkt.Header.APID)] {
		st.warn(WarningUnknownAPID, fmt.Sprintf("apid %d is not in the pre-declared allowlist", pkt.Header.APID))
	}

	root := d.ts.Containers.Root()
	visiting := map[string]bool{}
	if err := decodeEntries(root, d.ts, st, visiting); err != nil {
		return nil, st.warnBuf, err
	}

	current := root
	for {
		match, err := firstMatchingChild(current, st)
		if err != nil {
			return nil, st.warnBuf, err
		}
		if match == nil {
			break
		}
		current = match
		if err := decodeEntries(current, d.ts, st, visiting); err != nil {
			return nil, st.warnBuf, err
		}
	}
	if current.Abstract {
		return nil, st.warnBuf, MalformedErr{Reason: fmt.Sprintf("no concrete container matched under abstract container %q for apid %d", current.Name, pkt.Header.APID)}
	}

	declaredBits := (PrimaryHeaderLen + int(pkt.Header.PacketDataLength) + 1) * 8
	consumed := st.cursor.Position()
	switch {
	case consumed < declaredBits:
		st.warn(WarningUnderRun, fmt.Sprintf("%d bits under-run", declaredBits-consumed))
	case consumed > declaredBits:
		return st.record, st.warnBuf, MalformedErr{Reason: fmt.Sprintf("decoded %d bits, exceeding declared packet length of %d bits", consumed, declaredBits)}
	}

	return st.record, st.warnBuf, nil
}

// firstMatchingChild evaluates c's children's restriction criteria in
// declaration order against fields decoded so far and returns the first
// match. Multiple matches are a ContainerAmbiguity warning,
// resolved by picking the first declared.
func firstMatchingChild(c *SequenceContainer, st *decodeState) (*SequenceContainer, error) {
	var matched []*SequenceContainer
	for _, child := range c.children {
		var crit MatchCriterion
		if child.Base != nil {
			crit = child.Base.Restriction
		}
		ok, err := Evaluate(crit, st.record)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, child)
		}
	}
	if len(matched) == 0 {
		return nil, nil
	}
	if len(matched) > 1 {
		names := make([]string, len(matched))
		for i, m := range matched {
			names[i] = m.Name
		}
		st.warn(WarningContainerAmbig, fmt.Sprintf("multiple containers matched under %q: %v, selecting %q", c.Name, names, matched[0].Name))
	}
	return matched[0], nil
}

// decodeEntries decodes c's own entry list in order, inlining referenced
// containers' entries. The loader checks only base-container cycles, so an
// entry-reference cycle is caught here and reported as a MalformedErr.
func decodeEntries(c *SequenceContainer, ts *TypeSystem, st *decodeState, visiting map[string]bool) error {
	if visiting[c.Name] {
		return MalformedErr{Reason: "container entry-reference cycle at " + c.Name}
	}
	visiting[c.Name] = true
	defer delete(visiting, c.Name)

	for _, e := range c.Entries {
		switch e.Kind {
		case EntryParameter:
			if err := decodeParameterEntry(e.ParameterRef, ts, st); err != nil {
				return err
			}
		case EntryContainer:
			ref, ok := ts.Containers.Get(e.ContainerRef)
			if !ok {
				return MalformedErr{Reason: fmt.Sprintf("container %q references unknown container %q", c.Name, e.ContainerRef)}
			}
			if err := decodeEntries(ref, ts, st, visiting); err != nil {
				return err
			}
		default:
			return fmt.Errorf("spp: unknown entry kind %d in container %q", e.Kind, c.Name)
		}
	}
	return nil
}

func decodeParameterEntry(name string, ts *TypeSystem, st *decodeState) error {
	p, pt, err := ts.Parameter(name)
	if err != nil {
		return err
	}
	raw, derived, bits, err := pt.Decode(st)
	if err != nil {
		return err
	}
	st.record.insert(FieldRecord{
		Name:      name,
		Raw:       raw,
		Derived:   derived,
		ShortDesc: p.ShortDesc,
		LongDesc:  p.LongDesc,
		BitsUsed:  bits,
	})
	return nil
}
