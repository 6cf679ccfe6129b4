// Package resource provides the per-instance handle table: integer handles
// the guest holds against host-owned values. Handles never cross a
// serialization boundary; the schema layer rejects them on any such path.
package resource

import (
	"sync"
)

// Handle identifies one table entry. Zero is never a valid handle.
type Handle uint32

// entry pairs a stored value with its type discriminator.
type entry struct {
	typeID uint32
	value  any
}

// Dropper is implemented by values that need cleanup when their handle is
// removed.
type Dropper interface {
	Drop()
}

// Table is a concurrent handle table.
type Table struct {
	mu      sync.RWMutex
	entries map[Handle]entry
	next    Handle
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{entries: make(map[Handle]entry)}
}

// Insert adds a value and returns its handle.
func (t *Table) Insert(typeID uint32, value any) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	h := t.next
	t.entries[h] = entry{typeID: typeID, value: value}
	return h
}

// Get retrieves a value by handle.
func (t *Table) Get(h Handle) (any, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[h]
	return e.value, ok
}

// GetTyped retrieves a value only if it matches the expected type.
func (t *Table) GetTyped(h Handle, typeID uint32) (any, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[h]
	if !ok || e.typeID != typeID {
		return nil, false
	}
	return e.value, true
}

// Remove drops a handle, invoking Drop on the value if implemented.
func (t *Table) Remove(h Handle) (any, bool) {
	t.mu.Lock()
	e, ok := t.entries[h]
	if ok {
		delete(t.entries, h)
	}
	t.mu.Unlock()
	if !ok {
		return nil, false
	}
	if d, isDropper := e.value.(Dropper); isDropper {
		d.Drop()
	}
	return e.value, true
}

// Len reports the number of live handles.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Clear drops every handle, invoking Drop where implemented.
func (t *Table) Clear() {
	t.mu.Lock()
	entries := t.entries
	t.entries = make(map[Handle]entry)
	t.mu.Unlock()
	for _, e := range entries {
		if d, ok := e.value.(Dropper); ok {
			d.Drop()
		}
	}
}
