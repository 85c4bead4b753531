package spp

import "fmt"

const seqCountModulus = 1 << 14

// apidState is the per-APID continuation-segment accumulator.
type apidState struct {
	accumulating bool
	expectedSeq  uint16
	firstHeader  PrimaryHeader
	buf          []byte
}

// Reassembler combines multi-segment APID streams into logical packets
// using the seq_flags state machine. It sits in front of a Decoder;
// callers feed it RawPackets from a Framer and get back fully-assembled
// RawPackets ready to decode.
type Reassembler struct {
	states          map[uint16]*apidState
	secHdrBytes     int
	secHdrBytesAPID map[uint16]int
	sink            WarningSink
}

// ReassemblerOption configures a Reassembler.
type ReassemblerOption func(*Reassembler)

// WithSecondaryHeaderBytes sets the default number of leading bytes
// stripped from every continuation/last segment's user data before it is
// appended.
func WithSecondaryHeaderBytes(n int) ReassemblerOption {
	return func(r *Reassembler) { r.secHdrBytes = n }
}

// WithSecondaryHeaderBytesForAPID overrides the secondary-header strip
// count for one APID, for streams where it varies by source.
func WithSecondaryHeaderBytesForAPID(apid uint16, n int) ReassemblerOption {
	return func(r *Reassembler) {
		if r.secHdrBytesAPID == nil {
			r.secHdrBytesAPID = make(map[uint16]int)
		}
		r.secHdrBytesAPID[apid] = n
	}
}

// WithReassemblerWarningSink routes reassembler warnings to sink.
func WithReassemblerWarningSink(sink WarningSink) ReassemblerOption {
	return func(r *Reassembler) { r.sink = sink }
}

// NewReassembler returns a Reassembler with an empty per-APID state table;
// the table grows only with distinct APIDs actually observed.
func NewReassembler(opts ...ReassemblerOption) *Reassembler {
	r := &Reassembler{states: make(map[uint16]*apidState), sink: discardSink{}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Reassembler) secondaryHeaderBytes(apid uint16) int {
	if n, ok := r.secHdrBytesAPID[apid]; ok {
		return n
	}
	return r.secHdrBytes
}

func (r *Reassembler) warn(kind WarningKind, apid uint16, message string) {
	logWarning(r.sink, Warning{Kind: kind, APID: int(apid), Message: message})
}

// Feed processes one framed packet and returns zero or more fully
// assembled RawPackets. Unsegmented packets pass through
// immediately; first/continuation/last segments are buffered per APID.
func (r *Reassembler) Feed(pkt *RawPacket) ([]*RawPacket, error) {
	apid := pkt.Header.APID
	flags := pkt.Header.SeqFlags
	st, exists := r.states[apid]

	if !exists || !st.accumulating {
		switch flags {
		case SeqFlagUnsegmented:
			return []*RawPacket{pkt}, nil
		case SeqFlagFirst:
			r.states[apid] = &apidState{
				accumulating: true,
				expectedSeq:  wrapSeq(pkt.Header.SeqCount + 1),
				firstHeader:  pkt.Header,
				buf:          append([]byte(nil), pkt.UserData()...),
			}
			return nil, nil
		default: // continuation or last with nothing open
			r.warn(WarningOrphanSegment, apid, fmt.Sprintf("received seq_flags=%02b with no open accumulation", flags))
			return nil, nil
		}
	}

	switch flags {
	case SeqFlagContinuation, SeqFlagLast:
		if pkt.Header.SeqCount != st.expectedSeq {
			r.warn(WarningSequenceGap, apid, fmt.Sprintf("expected seq_count %d, got %d", st.expectedSeq, pkt.Header.SeqCount))
			delete(r.states, apid)
			return nil, nil
		}
		stripped := stripSecondaryHeader(pkt.UserData(), r.secondaryHeaderBytes(apid))
		st.buf = append(st.buf, stripped...)
		st.expectedSeq = wrapSeq(st.expectedSeq + 1)

		if flags == SeqFlagLast {
			assembled := assemblePacket(st.firstHeader, st.buf)
			delete(r.states, apid)
			return []*RawPacket{assembled}, nil
		}
		return nil, nil

	case SeqFlagFirst, SeqFlagUnsegmented:
		r.warn(WarningUnexpectedStart, apid, "new start received while accumulation in progress; emitting partial accumulator")
		partial := assemblePacket(st.firstHeader, st.buf)
		out := []*RawPacket{partial}
		if flags == SeqFlagUnsegmented {
			delete(r.states, apid)
			out = append(out, pkt)
		} else {
			r.states[apid] = &apidState{
				accumulating: true,
				expectedSeq:  wrapSeq(pkt.Header.SeqCount + 1),
				firstHeader:  pkt.Header,
				buf:          append([]byte(nil), pkt.UserData()...),
			}
		}
		return out, nil

	default:
		return nil, fmt.Errorf("spp: unreachable seq_flags %02b", flags)
	}
}

func wrapSeq(n uint16) uint16 {
	return n % seqCountModulus
}

func stripSecondaryHeader(data []byte, n int) []byte {
	if n <= 0 || n > len(data) {
		if n > len(data) {
			return nil
		}
		return data
	}
	return data[n:]
}

// assemblePacket recomputes the effective packet_data_length for a
// reassembled logical packet, preserving the first segment's primary
// header fields otherwise.
func assemblePacket(firstHeader PrimaryHeader, userData []byte) *RawPacket {
	h := firstHeader
	h.SeqFlags = SeqFlagUnsegmented
	h.PacketDataLength = uint16(len(userData) - 1)
	raw := make([]byte, 0, PrimaryHeaderLen+len(userData))
	raw = append(raw, encodePrimaryHeader(h)...)
	raw = append(raw, userData...)
	return &RawPacket{Header: h, Raw: raw}
}

func encodePrimaryHeader(h PrimaryHeader) []byte {
	w0 := uint16(h.Version)<<13 | uint16(h.Type)<<12 | uint16(h.SecHdrFlag)<<11 | h.APID
	w1 := uint16(h.SeqFlags)<<14 | h.SeqCount
	w2 := h.PacketDataLength
	return []byte{
		byte(w0 >> 8), byte(w0),
		byte(w1 >> 8), byte(w1),
		byte(w2 >> 8), byte(w2),
	}
}
