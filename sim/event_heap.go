package sim

import "container/heap"

// EventHeap is the simulator's pending-event queue. Pop order is total and
// reproducible: earliest timestamp first, the fixed per-kind priority for
// events sharing an instant, and the insertion sequence as the final
// tie-break so equal events drain in the order they were scheduled.
type EventHeap struct {
	inner eventOrder
}

// NewEventHeap returns an empty queue.
func NewEventHeap() *EventHeap {
	return &EventHeap{}
}

// Len reports the number of queued events.
func (h *EventHeap) Len() int { return len(h.inner) }

// Schedule queues an event.
func (h *EventHeap) Schedule(e Event) {
	heap.Push(&h.inner, e)
}

// PopNext removes and returns the next event in the total order, or nil
// when nothing is queued.
func (h *EventHeap) PopNext() Event {
	if len(h.inner) == 0 {
		return nil
	}
	return heap.Pop(&h.inner).(Event)
}

// Peek returns the next event without removing it.
func (h *EventHeap) Peek() Event {
	if len(h.inner) == 0 {
		return nil
	}
	return h.inner[0]
}

// eventOrder implements heap.Interface over the deterministic total order.
type eventOrder []Event

func (o eventOrder) Len() int { return len(o) }

func (o eventOrder) Less(i, j int) bool {
	a, b := o[i], o[j]
	if a.Timestamp() != b.Timestamp() {
		return a.Timestamp() < b.Timestamp()
	}
	if pa, pb := eventKindPriority[a.Kind()], eventKindPriority[b.Kind()]; pa != pb {
		return pa < pb
	}
	return a.Seq() < b.Seq()
}

func (o eventOrder) Swap(i, j int) { o[i], o[j] = o[j], o[i] }

func (o *eventOrder) Push(x any) { *o = append(*o, x.(Event)) }

func (o *eventOrder) Pop() any {
	old := *o
	n := len(old)
	ev := old[n-1]
	*o = old[:n-1]
	return ev
}
