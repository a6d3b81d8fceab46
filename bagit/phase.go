package bagit

import (
	"fmt"
)

// Phase is where an operation is in its run. Phases only move
// forward: Init, Walking, Hashing, then Reconciling (validate) or
// Writing (build and update), then Done or Failed.
type Phase int

const (
	PhaseInit Phase = iota
	PhaseWalking
	PhaseHashing
	PhaseReconciling
	PhaseWriting
	PhaseDone
	PhaseFailed
)

var phaseNames = []string{
	"Init",
	"Walking",
	"Hashing",
	"Reconciling",
	"Writing",
	"Done",
	"Failed",
}

func (phase Phase) String() string {
	if phase >= 0 && int(phase) < len(phaseNames) {
		return phaseNames[phase]
	}
	return fmt.Sprintf("Phase(%d)", int(phase))
}

// Terminal is true for Done and Failed.
func (phase Phase) Terminal() bool {
	return phase == PhaseDone || phase == PhaseFailed
}

func (phase Phase) rank() int {
	switch phase {
	case PhaseReconciling, PhaseWriting:
		return 3
	case PhaseDone, PhaseFailed:
		return 4
	}
	return int(phase)
}

// tracker holds the current phase of one operation and reports every
// change to the sink.
type tracker struct {
	operation string
	bagDir    string
	phase     Phase
	sink      EventSink
}

func newTracker(operation, bagDir string, sink EventSink) *tracker {
	return &tracker{
		operation: operation,
		bagDir:    bagDir,
		phase:     PhaseInit,
		sink:      sink,
	}
}

// enter moves to phase. Moving sideways or backward is ignored.
func (tracker *tracker) enter(phase Phase) {
	if tracker.phase.Terminal() || phase.rank() <= tracker.phase.rank() {
		return
	}
	tracker.phase = phase
	tracker.emit(Event{Kind: PhaseChanged, Phase: phase})
}

// fail moves to Failed and returns err.
func (tracker *tracker) fail(err error) error {
	if !tracker.phase.Terminal() {
		tracker.phase = PhaseFailed
		tracker.emit(Event{Kind: PhaseChanged, Phase: PhaseFailed, Err: err})
	}
	return err
}

func (tracker *tracker) done() {
	tracker.enter(PhaseDone)
}

func (tracker *tracker) emit(event Event) {
	event.Operation = tracker.operation
	event.BagDir = tracker.bagDir
	if event.Phase == PhaseInit {
		event.Phase = tracker.phase
	}
	tracker.sink.Emit(event)
}
