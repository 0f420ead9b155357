package diesel

import (
	"github.com/pkg/errors"
)

// ImageHandle names an entry of the bindless table. Index is what shaders
// use; the generation makes a handle to a removed entry harmless.
type ImageHandle struct {
	index uint32
	gen   uint32
}

// Index returns the array element the entry occupies.
func (h ImageHandle) Index() int { return int(h.index) }

// Valid reports whether h was returned by an add. The zero handle is not.
func (h ImageHandle) Valid() bool { return h.gen != 0 }

type slot[T any] struct {
	value T
	gen   uint32
	used  bool
}

// slotMap is a dense array with a free stack. Removing an entry leaves a
// hole that is reused, most recently freed first, before the array grows,
// so indices never move.
type slotMap[T any] struct {
	slots    []slot[T]
	free     []uint32
	capacity int
}

func newSlotMap[T any](capacity int) *slotMap[T] {
	return &slotMap[T]{capacity: capacity}
}

func (m *slotMap[T]) insert(v T) (ImageHandle, error) {
	var i uint32
	if n := len(m.free); n > 0 {
		i = m.free[n-1]
		m.free = m.free[:n-1]
	} else {
		if len(m.slots) >= m.capacity {
			return ImageHandle{}, errors.Wrapf(ErrCapacity, "bindless table of %d entries is full", m.capacity)
		}
		i = uint32(len(m.slots))
		m.slots = append(m.slots, slot[T]{})
	}
	s := &m.slots[i]
	s.gen++
	s.value, s.used = v, true
	return ImageHandle{index: i, gen: s.gen}, nil
}

// remove frees the entry of h. Stale handles are ignored and reported.
func (m *slotMap[T]) remove(h ImageHandle) bool {
	if !m.live(h) {
		return false
	}
	s := &m.slots[h.index]
	var zero T
	s.value, s.used = zero, false
	m.free = append(m.free, h.index)
	return true
}

func (m *slotMap[T]) get(h ImageHandle) (T, bool) {
	if !m.live(h) {
		var zero T
		return zero, false
	}
	return m.slots[h.index].value, true
}

func (m *slotMap[T]) live(h ImageHandle) bool {
	return h.gen != 0 && int(h.index) < len(m.slots) &&
		m.slots[h.index].used && m.slots[h.index].gen == h.gen
}

// len returns the number of live entries.
func (m *slotMap[T]) len() int { return len(m.slots) - len(m.free) }

// fill returns capacity values: each live entry at its index, empty for
// holes and the unused tail.
func (m *slotMap[T]) fill(empty T) []T {
	out := make([]T, m.capacity)
	for i := range out {
		out[i] = empty
	}
	for i, s := range m.slots {
		if s.used {
			out[i] = s.value
		}
	}
	return out
}
