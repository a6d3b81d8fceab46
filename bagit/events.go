package bagit

import (
	"fmt"
)

type EventKind int

const (
	PhaseChanged EventKind = iota + 1
	FileHashed
	FindingRecorded
	WarningRecorded
)

func (kind EventKind) String() string {
	switch kind {
	case PhaseChanged:
		return "PhaseChanged"
	case FileHashed:
		return "FileHashed"
	case FindingRecorded:
		return "FindingRecorded"
	case WarningRecorded:
		return "WarningRecorded"
	}
	return fmt.Sprintf("EventKind(%d)", int(kind))
}

// Operation names carried by events.
const (
	OpBuild    = "build"
	OpValidate = "validate"
	OpUpdate   = "update"
)

// Event is something an operation wants its caller to know about.
// The engine never formats log text itself; it hands events to an
// EventSink and the sink decides what to do with them.
type Event struct {
	Kind      EventKind
	Operation string
	BagDir    string
	Phase     Phase
	// Path is set for FileHashed events.
	Path    string
	Finding *Finding
	Warning *Warning
	// Err is set when Phase is PhaseFailed.
	Err error
}

// EventSink receives events. An operation calls Emit from one
// goroutine at a time.
type EventSink interface {
	Emit(event Event)
}

// DiscardSink drops every event.
type DiscardSink struct{}

func (DiscardSink) Emit(Event) {}

// SinkFunc adapts a function to the EventSink interface.
type SinkFunc func(Event)

func (fn SinkFunc) Emit(event Event) {
	fn(event)
}
