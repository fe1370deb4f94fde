package joblog

import (
	"pkt.systems/joblog/core"
	"pkt.systems/joblog/schema"
)

type eventFanout struct {
	sinks []core.EventSink
}

func (f eventFanout) OnBatch(event schema.BatchApplied) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnBatch(event)
	}
}
