// Package ring provides a fixed-capacity FIFO buffer used for every capped
// history in the engine.
package ring

// #region buffer

// Buffer holds at most Cap() elements. Pushing onto a full buffer overwrites
// the oldest element and hands it back to the caller.
type Buffer[T any] struct {
	items []T
	head  int // index of the oldest element
	size  int
}

// New creates a buffer with the given capacity. Capacities below 1 are raised to 1.
func New[T any](capacity int) *Buffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer[T]{items: make([]T, capacity)}
}

// #endregion buffer

// #region push

// Push appends v. When the buffer was full the evicted oldest element is
// returned with ok=true.
func (b *Buffer[T]) Push(v T) (evicted T, ok bool) {
	n := len(b.items)
	if b.size < n {
		b.items[(b.head+b.size)%n] = v
		b.size++
		return evicted, false
	}
	evicted = b.items[b.head]
	b.items[b.head] = v
	b.head = (b.head + 1) % n
	return evicted, true
}

// #endregion push

// #region accessors

// Len returns the number of stored elements.
func (b *Buffer[T]) Len() int { return b.size }

// Cap returns the fixed capacity.
func (b *Buffer[T]) Cap() int { return len(b.items) }

// At returns the i-th element, 0 being the oldest. It panics when i is out of range.
func (b *Buffer[T]) At(i int) T {
	if i < 0 || i >= b.size {
		panic("ring: index out of range")
	}
	return b.items[(b.head+i)%len(b.items)]
}

// Items returns a copy of the contents, oldest first.
func (b *Buffer[T]) Items() []T {
	out := make([]T, b.size)
	for i := range out {
		out[i] = b.items[(b.head+i)%len(b.items)]
	}
	return out
}

// Last returns up to n of the newest elements, oldest first.
func (b *Buffer[T]) Last(n int) []T {
	if n > b.size {
		n = b.size
	}
	if n <= 0 {
		return []T{}
	}
	out := make([]T, n)
	start := b.size - n
	for i := range out {
		out[i] = b.items[(b.head+start+i)%len(b.items)]
	}
	return out
}

// Newest returns the most recently pushed element.
func (b *Buffer[T]) Newest() (T, bool) {
	var zero T
	if b.size == 0 {
		return zero, false
	}
	return b.items[(b.head+b.size-1)%len(b.items)], true
}

// Reset drops all elements and keeps the capacity.
func (b *Buffer[T]) Reset() {
	var zero T
	for i := range b.items {
		b.items[i] = zero
	}
	b.head, b.size = 0, 0
}

// #endregion accessors
