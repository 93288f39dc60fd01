package sim

import "container/heap"

type queuedEvent struct {
	ev  Event
	seq uint64
}

// EventQueue implements heap.Interface with deterministic ordering.
// Order by: timestamp → type priority → insertion sequence.
type EventQueue struct {
	items   []queuedEvent
	nextSeq uint64
}

func (q *EventQueue) Len() int { return len(q.items) }

func (q *EventQueue) Less(i, j int) bool {
	ei, ej := q.items[i], q.items[j]
	if ei.ev.Timestamp() != ej.ev.Timestamp() {
		return ei.ev.Timestamp() < ej.ev.Timestamp()
	}
	priI := EventTypePriority[ei.ev.Type()]
	priJ := EventTypePriority[ej.ev.Type()]
	if priI != priJ {
		return priI < priJ
	}
	return ei.seq < ej.seq
}

func (q *EventQueue) Swap(i, j int) { q.items[i], q.items[j] = q.items[j], q.items[i] }

func (q *EventQueue) Push(x any) {
	q.items = append(q.items, x.(queuedEvent))
}

func (q *EventQueue) Pop() any {
	old := q.items
	n := len(old)
	item := old[n-1]
	q.items = old[0 : n-1]
	return item
}

// Schedule adds an event to the queue.
func (q *EventQueue) Schedule(ev Event) {
	heap.Push(q, queuedEvent{ev: ev, seq: q.nextSeq})
	q.nextSeq++
}

// PopNext removes and returns the next event, or nil when empty.
func (q *EventQueue) PopNext() Event {
	if q.Len() == 0 {
		return nil
	}
	return heap.Pop(q).(queuedEvent).ev
}

// Peek returns the next event without removing it.
func (q *EventQueue) Peek() Event {
	if q.Len() == 0 {
		return nil
	}
	return q.items[0].ev
}
