package core

import "pkt.systems/joblog/schema"

// EventSink receives a summary after every batch the builder applies.
type EventSink interface {
	OnBatch(event schema.BatchApplied)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(event schema.BatchApplied)

// OnBatch calls f.
func (f EventSinkFunc) OnBatch(event schema.BatchApplied) {
	f(event)
}
