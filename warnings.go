package spp

import "github.com/sirupsen/logrus"

// WarningKind names a non-fatal decoding event. Warnings never abort
// decoding; they are sunk to a caller-provided WarningSink and, in
// parallel, logged at Warn level through the package-level _lg logger.
type WarningKind string

const (
	WarningUnknownAPID     WarningKind = "unknown_apid"
	WarningEnumMissing     WarningKind = "enum_missing"
	WarningUnderRun        WarningKind = "under_run"
	WarningSequenceGap     WarningKind = "sequence_gap"
	WarningOrphanSegment   WarningKind = "orphan_segment"
	WarningUnexpectedStart WarningKind = "unexpected_start"
	WarningContainerAmbig  WarningKind = "container_ambiguity"
)

// Warning is a structured observability event.
type Warning struct {
	Kind     WarningKind
	APID     int
	Position int
	Message  string
}

// WarningSink receives warnings as they occur. Implementations must not
// block the decode pipeline; a sink that needs to do I/O should buffer or
// hand off asynchronously.
type WarningSink interface {
	Warn(w Warning)
}

// WarningFunc adapts a plain function to WarningSink.
type WarningFunc func(w Warning)

// Warn implements WarningSink.
func (f WarningFunc) Warn(w Warning) { f(w) }

// _lg is the package-wide logger: every warning is emitted via logrus
// regardless of what the caller's own sink does with it.
var _lg = logrus.New()

// SetLogger installs lg as the package-wide logger.
func SetLogger(lg *logrus.Logger) {
	_lg = lg
}

func logWarning(sink WarningSink, w Warning) {
	_lg.WithFields(logrus.Fields{
		"kind":     w.Kind,
		"apid":     w.APID,
		"position": w.Position,
	}).Warn(w.Message)
	if sink != nil {
		sink.Warn(w)
	}
}

// discardSink is used when the caller supplies no WarningSink.
type discardSink struct{}

func (discardSink) Warn(Warning) {}
