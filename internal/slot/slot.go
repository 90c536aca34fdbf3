// Package slot provides slot-indexed registries with per-pass cursors.
//
// A Registry keeps an ordered, growable array of slots. During one
// composition pass a cursor walks the slots in hook-call order: the first
// pass constructs an entry in each slot, later passes find the slot already
// populated and return the stored entry without constructing again. This is
// what makes a builder function re-runnable with stable node identity, as
// long as it issues hooks in the same order every time.
//
// Registries are not safe for concurrent passes; one pass at a time.
package slot

import "fmt"

// Registry is an ordered slot array with a monotonically advancing cursor.
type Registry[T any] struct {
	entries []T
	filled  []bool
	alias   []bool // Slot holds an entry first stored at an earlier slot
	cursor  int
}

// New creates an empty registry.
func New[T any]() *Registry[T] {
	return &Registry[T]{}
}

// Reset rewinds the cursor to slot 0 for a fresh pass.
// Stored entries are kept.
func (r *Registry[T]) Reset() {
	r.cursor = 0
}

// Cursor returns the index the next allocation will use.
func (r *Registry[T]) Cursor() int {
	return r.cursor
}

// Len returns the number of slots ever allocated (populated or not).
func (r *Registry[T]) Len() int {
	return len(r.entries)
}

// Next returns the entry at the cursor's slot, constructing and storing it
// if the slot is empty, then advances the cursor.
//
// created reports whether construct ran. If construct fails the slot stays
// empty and the cursor does not move.
func (r *Registry[T]) Next(construct func(index int) (T, error)) (entry T, index int, created bool, err error) {
	index = r.cursor
	if r.populated(index) {
		r.cursor++
		return r.entries[index], index, false, nil
	}

	entry, err = construct(index)
	if err != nil {
		var zero T
		return zero, index, false, fmt.Errorf("slot %d: %w", index, err)
	}

	r.store(index, entry, false)
	r.cursor++
	return entry, index, true, nil
}

// NextUnique is Next with deduplication of freshly constructed entries.
//
// After construct runs, existing entries are scanned with same; on the
// first collision the new entry is discarded and the earlier one is stored
// at this slot as an alias and returned with duplicate=true. The cursor
// advances either way. A later pass hitting an alias slot returns the
// earlier entry without constructing (created=false, duplicate=false).
func (r *Registry[T]) NextUnique(
	construct func(index int) (T, error),
	same func(existing, fresh T) bool,
) (entry T, index int, created, duplicate bool, err error) {
	index = r.cursor
	if r.populated(index) {
		r.cursor++
		return r.entries[index], index, false, false, nil
	}

	fresh, err := construct(index)
	if err != nil {
		var zero T
		return zero, index, false, false, fmt.Errorf("slot %d: %w", index, err)
	}

	for i, ok := range r.filled {
		if !ok || r.alias[i] {
			continue
		}
		if same(r.entries[i], fresh) {
			r.store(index, r.entries[i], true)
			r.cursor++
			return r.entries[i], index, false, true, nil
		}
	}

	r.store(index, fresh, false)
	r.cursor++
	return fresh, index, true, false, nil
}

// At returns the entry stored at index.
func (r *Registry[T]) At(index int) (T, bool) {
	if !r.populated(index) {
		var zero T
		return zero, false
	}
	return r.entries[index], true
}

// Entries returns populated slots in slot order, aliases included.
func (r *Registry[T]) Entries() []T {
	out := make([]T, 0, len(r.entries))
	for i, ok := range r.filled {
		if ok {
			out = append(out, r.entries[i])
		}
	}
	return out
}

// Unique returns populated slots in slot order, skipping aliases.
func (r *Registry[T]) Unique() []T {
	out := make([]T, 0, len(r.entries))
	for i, ok := range r.filled {
		if ok && !r.alias[i] {
			out = append(out, r.entries[i])
		}
	}
	return out
}

// Find returns the first non-alias entry matching pred.
func (r *Registry[T]) Find(pred func(T) bool) (T, int, bool) {
	for i, ok := range r.filled {
		if ok && !r.alias[i] && pred(r.entries[i]) {
			return r.entries[i], i, true
		}
	}
	var zero T
	return zero, -1, false
}

func (r *Registry[T]) populated(index int) bool {
	return index >= 0 && index < len(r.filled) && r.filled[index]
}

func (r *Registry[T]) store(index int, entry T, alias bool) {
	for len(r.entries) <= index {
		var zero T
		r.entries = append(r.entries, zero)
		r.filled = append(r.filled, false)
		r.alias = append(r.alias, false)
	}
	r.entries[index] = entry
	r.filled[index] = true
	r.alias[index] = alias
}
