// Package proc implements the Host/NMP/NLP execution roles: the trace-driven
// Core (in-order and out-of-order variants) and the owning Processor that
// routes instructions between domains and gates context switches on
// quiescence. Core and Processor are mutually referential by design (a core
// calls back into its processor to ask whether it may context-switch, and a
// processor reaches into every core it owns); Go's garbage collector makes
// the pointer cycle unremarkable.
package proc

import "github.com/sarchlab/nmpsim/trace"

// ScheduleQueue buffers trace records redirected to a core that is not
// reading its own trace file directly — either a peer thread's record
// misrouted by multi-threaded trace interleaving, or an instruction handed
// to an NMP/NLP core by the offload bypass path.
type ScheduleQueue struct {
	records []trace.Record
}

// PushBack appends rec to the queue.
func (q *ScheduleQueue) PushBack(rec trace.Record) {
	q.records = append(q.records, rec)
}

// PopFront removes and returns the oldest queued record.
func (q *ScheduleQueue) PopFront() (trace.Record, bool) {
	if len(q.records) == 0 {
		return trace.Record{}, false
	}
	rec := q.records[0]
	q.records = q.records[1:]
	return rec, true
}

// Empty reports whether the queue holds no records.
func (q *ScheduleQueue) Empty() bool { return len(q.records) == 0 }

// Len reports how many records are queued.
func (q *ScheduleQueue) Len() int { return len(q.records) }
