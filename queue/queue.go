// Package queue implements the intrusive doubly-linked list used by the
// scheduler for the ready, wait and zombie queues.
//
// A Link is meant to be embedded once in the struct it links (a process has
// exactly one Link field, since a process is a member of at most one queue
// at any time). Pushing and popping never allocates.
package queue

// Link is embedded in the element type. It carries a back-pointer to the
// owning element so that List can hand back the element on removal without
// a second allocation or a type switch keyed on position.
type Link struct {
	next, prev *Link
	owner      any
	queued     bool
}

// NewLink initializes a Link that will be embedded in owner.
func NewLink(owner any) Link {
	return Link{owner: owner}
}

// Owner returns the element that embeds this Link.
func (l *Link) Owner() any {
	return l.owner
}

// Queued reports whether the link is currently a member of some List.
func (l *Link) Queued() bool {
	return l.queued
}

// List is a FIFO intrusive doubly-linked list of *Link.
type List struct {
	head, tail *Link
	n          int
}

// Len returns the number of elements in the list.
func (q *List) Len() int {
	return q.n
}

// Empty reports whether the list has no elements.
func (q *List) Empty() bool {
	return q.n == 0
}

// PushBack appends e to the tail of the list. e must not already be queued
// anywhere; this is the dynamic half of the "at most one queue" invariant.
func (q *List) PushBack(e *Link) {
	if e.queued {
		panic("queue: element already queued")
	}
	e.prev = q.tail
	e.next = nil
	if q.tail != nil {
		q.tail.next = e
	} else {
		q.head = e
	}
	q.tail = e
	e.queued = true
	q.n++
}

// Front returns the head of the list, or nil if empty. It does not remove it.
func (q *List) Front() *Link {
	return q.head
}

// PopFront removes and returns the head of the list, or nil if empty.
func (q *List) PopFront() *Link {
	e := q.head
	if e == nil {
		return nil
	}
	q.Remove(e)
	return e
}

// Remove detaches e from the list. It is a no-op for an element that is
// not queued anywhere. It does not check which list e belongs to: called
// on the wrong list, it corrupts both, so callers are expected to know
// which list an element is on via its owner's state.
func (q *List) Remove(e *Link) {
	if !e.queued {
		return
	}
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		q.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		q.tail = e.prev
	}
	e.next = nil
	e.prev = nil
	e.queued = false
	q.n--
}

// Each calls f for every element currently in the list, head to tail. f
// must not mutate the list.
func (q *List) Each(f func(e *Link)) {
	for e := q.head; e != nil; e = e.next {
		f(e)
	}
}
