// Package linkedlist implements a keyed, doubly linked sequence that is
// generic over its element type, so richer node types can reuse it.
package linkedlist

import "iter"

// Element is an item that can be threaded onto a List. N is the concrete
// (pointer) type of the element itself.
type Element[N any] interface {
	comparable
	Key() string
	Link() *Links[N]
	SwapPayload(other N)
}

// Links holds the forward and backward references of an element.
type Links[N any] struct {
	next N
	prev N
}

// Next returns the following element, or the zero value at the tail.
func (l *Links[N]) Next() N { return l.next }

// Prev returns the preceding element, or the zero value at the head.
func (l *Links[N]) Prev() N { return l.prev }

// List is an ordered sequence of elements. Key uniqueness is not enforced
// here; callers that need it must check before inserting.
type List[N Element[N]] struct {
	head N
	len  int
}

// Head returns the first element, or the zero value if the list is empty.
func (l *List[N]) Head() N { return l.head }

// IsEmpty reports whether the list has no elements.
func (l *List[N]) IsEmpty() bool {
	var zero N
	return l.head == zero
}

// Len returns the number of elements.
func (l *List[N]) Len() int { return l.len }

// Search scans from the head and returns the first element with the given
// key, or the zero value.
func (l *List[N]) Search(key string) N {
	var zero N
	for n := l.head; n != zero; n = n.Link().next {
		if n.Key() == key {
			return n
		}
	}
	return zero
}

// Prepend makes n the new head. n must not be linked elsewhere.
func (l *List[N]) Prepend(n N) {
	var zero N
	ln := n.Link()
	ln.prev = zero
	ln.next = l.head
	if l.head != zero {
		l.head.Link().prev = n
	}
	l.head = n
	l.len++
}

// InsertAfter splices n directly after anchor, which must belong to l.
func (l *List[N]) InsertAfter(anchor, n N) {
	var zero N
	al, ln := anchor.Link(), n.Link()
	ln.prev = anchor
	ln.next = al.next
	if al.next != zero {
		al.next.Link().prev = n
	}
	al.next = n
	l.len++
}

// Delete unlinks n, relinking its neighbors. When n was the head its
// successor is promoted. n's own links are cleared.
func (l *List[N]) Delete(n N) {
	var zero N
	ln := n.Link()
	switch {
	case ln.prev != zero:
		ln.prev.Link().next = ln.next
	case l.head == n:
		l.head = ln.next
	default:
		return
	}
	if ln.next != zero {
		ln.next.Link().prev = ln.prev
	}
	ln.next, ln.prev = zero, zero
	l.len--
}

// Swap exchanges the payloads of a and b. The link structure is untouched.
func (l *List[N]) Swap(a, b N) {
	if a == b {
		return
	}
	a.SwapPayload(b)
}

// All iterates the list from head to tail.
func (l *List[N]) All() iter.Seq[N] {
	return func(yield func(N) bool) {
		var zero N
		for n := l.head; n != zero; n = n.Link().next {
			if !yield(n) {
				return
			}
		}
	}
}

// Keys returns the keys in list order.
func (l *List[N]) Keys() []string {
	keys := make([]string, 0, l.len)
	for n := range l.All() {
		keys = append(keys, n.Key())
	}
	return keys
}
