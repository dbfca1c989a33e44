// Package handle implements the generational index map that backs every
// opaque handle the core gives out.
package handle

// ID identifies a slot in a Table. The low 32 bits hold the slot index and
// the high 32 bits hold the slot generation. The zero ID is never issued.
type ID uint64

func makeID(index, generation uint32) ID {
	return ID(uint64(generation)<<32 | uint64(index))
}

// Index returns the slot index encoded in the ID.
func (id ID) Index() uint32 {
	return uint32(id)
}

// Generation returns the slot generation encoded in the ID.
func (id ID) Generation() uint32 {
	return uint32(id >> 32)
}

// IsZero reports whether the ID is the zero ID.
func (id ID) IsZero() bool {
	return id == 0
}

type slot[T any] struct {
	generation uint32
	live       bool
	value      T
}

// Table maps IDs to values. Removing a value bumps the generation of its
// slot, so IDs issued before the removal never resolve again even after the
// slot is reused.
type Table[T any] struct {
	slots []slot[T]
	free  []uint32
	live  int
}

// Insert stores v and returns its ID.
func (t *Table[T]) Insert(v T) ID {
	var index uint32
	if n := len(t.free); n > 0 {
		index = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		index = uint32(len(t.slots))
		// generation 0 is reserved so that the zero ID stays invalid
		t.slots = append(t.slots, slot[T]{generation: 1})
	}

	s := &t.slots[index]
	s.live = true
	s.value = v
	t.live++
	return makeID(index, s.generation)
}

// Get returns the value stored under id.
func (t *Table[T]) Get(id ID) (T, bool) {
	s := t.lookup(id)
	if s == nil {
		var zero T
		return zero, false
	}
	return s.value, true
}

// Set replaces the value stored under id. It reports false if id is stale.
func (t *Table[T]) Set(id ID, v T) bool {
	s := t.lookup(id)
	if s == nil {
		return false
	}
	s.value = v
	return true
}

// Remove deletes the value stored under id and returns it.
func (t *Table[T]) Remove(id ID) (T, bool) {
	var zero T
	s := t.lookup(id)
	if s == nil {
		return zero, false
	}

	v := s.value
	s.value = zero
	s.live = false
	s.generation++
	if s.generation == 0 {
		s.generation = 1
	}
	t.free = append(t.free, id.Index())
	t.live--
	return v, true
}

// Contains reports whether id currently resolves.
func (t *Table[T]) Contains(id ID) bool {
	return t.lookup(id) != nil
}

// Len returns the number of live entries.
func (t *Table[T]) Len() int {
	return t.live
}

// Cap returns the number of slots ever allocated, live or free.
func (t *Table[T]) Cap() int {
	return len(t.slots)
}

// Each calls fn for every live entry in slot order. fn must not insert into
// or remove from the table.
func (t *Table[T]) Each(fn func(ID, T)) {
	for i := range t.slots {
		s := &t.slots[i]
		if s.live {
			fn(makeID(uint32(i), s.generation), s.value)
		}
	}
}

// IDs returns the IDs of every live entry in slot order.
func (t *Table[T]) IDs() []ID {
	ids := make([]ID, 0, t.live)
	t.Each(func(id ID, _ T) {
		ids = append(ids, id)
	})
	return ids
}

func (t *Table[T]) lookup(id ID) *slot[T] {
	if id.IsZero() {
		return nil
	}
	index := id.Index()
	if int(index) >= len(t.slots) {
		return nil
	}
	s := &t.slots[index]
	if !s.live || s.generation != id.Generation() {
		return nil
	}
	return s
}
