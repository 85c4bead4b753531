package spp

// FieldRecord is one decoded field within a Packet Record: the raw bits as
// interpreted by the data encoding, the derived (engineering) value after
// calibration/label lookup, and the descriptive text carried over from the
// Parameter definition.
type FieldRecord struct {
	Name       string
	Raw        Value
	Derived    Value
	ShortDesc  string
	LongDesc   string
	BitsUsed   int // encoded bit size actually consumed, for bit-accounting
}

// PacketRecord is the result of decoding one logical packet: a
// name-indexed, insertion-ordered mapping from parameter name to its
// decoded field, plus the raw bytes the packet was decoded from.
type PacketRecord struct {
	RawBytes []byte
	Fields   []FieldRecord
	index    map[string]int
}

func newPacketRecord(raw []byte) *PacketRecord {
	return &PacketRecord{RawBytes: raw, index: make(map[string]int)}
}

// Get returns the field named name and whether it has been decoded yet.
func (p *PacketRecord) Get(name string) (FieldRecord, bool) {
	i, ok := p.index[name]
	if !ok {
		return FieldRecord{}, false
	}
	return p.Fields[i], true
}

func (p *PacketRecord) insert(f FieldRecord) {
	p.index[f.Name] = len(p.Fields)
	p.Fields = append(p.Fields, f)
}

// BitsConsumed sums the encoded bit sizes of every decoded field, for the
// bit-accounting universal property.
func (p *PacketRecord) BitsConsumed() int {
	total := 0
	for _, f := range p.Fields {
		total += f.BitsUsed
	}
	return total
}

// decodeState is the per-decode arena threaded through container expansion:
// an insertion-ordered list of decoded fields (the PacketRecord being
// built) plus the cursor over the packet's raw bytes, primary header
// included. Dynamic and
// forward references are resolved by name through this arena rather than
// through a mutable container object graph.
type decodeState struct {
	cursor  *BitCursor
	record  *PacketRecord
	sink    WarningSink
	apid    int
	warnBuf []Warning
}

func (d *decodeState) warn(kind WarningKind, message string) {
	w := Warning{Kind: kind, APID: d.apid, Position: d.cursor.Position(), Message: message}
	d.warnBuf = append(d.warnBuf, w)
	logWarning(d.sink, w)
}

// lookupInt resolves a named already-decoded field to an integer, used by
// dynamic-size/prefix-length encodings. Forward
// references (not yet decoded) are reported as an error by the caller.
func (d *decodeState) lookupInt(name string) (int64, bool) {
	f, ok := d.record.Get(name)
	if !ok {
		return 0, false
	}
	switch f.Raw.Kind {
	case KindInt:
		return f.Raw.Int, true
	case KindUint:
		return int64(f.Raw.Uint), true
	case KindFloat:
		return int64(f.Raw.Float), true
	default:
		return 0, false
	}
}
