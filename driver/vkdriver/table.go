package vkdriver

import (
	"github.com/andewx/diesel/driver"
)

// table maps driver handles of one kind to their Vulkan objects. Access is
// guarded by Driver.mu.
type table[H ~uint64, V any] struct {
	kind  string
	items map[H]V
}

func newTable[H ~uint64, V any](kind string) table[H, V] {
	return table[H, V]{kind: kind, items: map[H]V{}}
}

// add registers v under a fresh handle from d.
func add[H ~uint64, V any](d *Driver, t *table[H, V], v V) H {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.next++
	h := H(d.next)
	t.items[h] = v
	return h
}

// lookup returns the object behind h.
func lookup[H ~uint64, V any](d *Driver, t *table[H, V], h H) (V, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := t.items[h]
	return v, ok
}

// must is lookup for recording calls, which have no error return. An
// unknown handle is a programming error.
func must[H ~uint64, V any](d *Driver, t *table[H, V], h H) V {
	v, ok := lookup(d, t, h)
	if !ok {
		panic(badHandle(t.kind, driver.Handle(h)))
	}
	return v
}

// take removes h and returns its object.
func take[H ~uint64, V any](d *Driver, t *table[H, V], h H) (V, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := t.items[h]
	delete(t.items, h)
	return v, ok
}

func (t *table[H, V]) count() int { return len(t.items) }
