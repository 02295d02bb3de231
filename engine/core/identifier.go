package core

import "fmt"

// Identifiers hands out small integer ids for owners and reuses released
// ones. Id 0 is never handed out so it can stand for "no object".
type Identifiers[T any] struct {
	owners []*T
}

func NewIdentifiers[T any]() *Identifiers[T] {
	return &Identifiers[T]{
		owners: make([]*T, 1, 100),
	}
}

func (ids *Identifiers[T]) Acquire(owner T) uint64 {
	length := uint64(len(ids.owners))
	for i := uint64(1); i < length; i++ {
		// Existing free spot. Take it.
		if ids.owners[i] == nil {
			ids.owners[i] = &owner
			return i
		}
	}

	// If here, no existing free slots. Need a new id, so push one.
	ids.owners = append(ids.owners, &owner)
	return uint64(len(ids.owners)) - 1
}

func (ids *Identifiers[T]) Get(id uint64) (T, bool) {
	var zero T
	if id == 0 || id >= uint64(len(ids.owners)) || ids.owners[id] == nil {
		return zero, false
	}
	return *ids.owners[id], true
}

// Release frees id and returns its owner.
func (ids *Identifiers[T]) Release(id uint64) (T, error) {
	var zero T
	if id == 0 || id >= uint64(len(ids.owners)) {
		return zero, fmt.Errorf("identifier release: id '%d' out of range (max=%d)", id, len(ids.owners)-1)
	}
	owner := ids.owners[id]
	if owner == nil {
		return zero, fmt.Errorf("identifier release: id '%d' is not in use", id)
	}
	// Just zero out the entry, making it available for use.
	ids.owners[id] = nil
	return *owner, nil
}

func (ids *Identifiers[T]) Len() int {
	n := 0
	for _, o := range ids.owners {
		if o != nil {
			n++
		}
	}
	return n
}
