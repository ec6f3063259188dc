// Package mem implements an in-memory snapshot that stages writes on top of
// a parent store. It backs the all-or-nothing execution of ledger operations
// and is also handy in tests.
package mem

import (
	"go.dedis.ch/arena/core/store"
)

// Snapshot is an in-memory overlay over a parent readable store. Writes only
// touch the overlay so that the parent stays pristine until the delta is
// explicitly applied.
//
// - implements store.Snapshot
type Snapshot struct {
	parent  store.Readable
	updates map[string][]byte
	deleted map[string]struct{}
}

// NewSnapshot creates an empty snapshot without a parent.
func NewSnapshot() *Snapshot {
	return NewStaging(nil)
}

// NewStaging creates a snapshot staged on top of the parent store.
func NewStaging(parent store.Readable) *Snapshot {
	return &Snapshot{
		parent:  parent,
		updates: make(map[string][]byte),
		deleted: make(map[string]struct{}),
	}
}

// Get implements store.Readable. It returns the staged value of the key, or
// the parent's value if the key has not been written.
func (s *Snapshot) Get(key []byte) ([]byte, error) {
	str := string(key)

	if _, ok := s.deleted[str]; ok {
		return nil, nil
	}

	val, ok := s.updates[str]
	if ok {
		return val, nil
	}

	if s.parent == nil {
		return nil, nil
	}

	return s.parent.Get(key)
}

// Set implements store.Writable. It stages the value for the key.
func (s *Snapshot) Set(key, value []byte) error {
	str := string(key)

	delete(s.deleted, str)
	s.updates[str] = append([]byte{}, value...)

	return nil
}

// Delete implements store.Writable. It stages the removal of the key.
func (s *Snapshot) Delete(key []byte) error {
	str := string(key)

	delete(s.updates, str)
	s.deleted[str] = struct{}{}

	return nil
}

// ForEachUpdate iterates over the staged writes in an unspecified order. The
// iteration stops when the callback returns an error.
func (s *Snapshot) ForEachUpdate(fn func(key, value []byte) error) error {
	for key, value := range s.updates {
		err := fn([]byte(key), value)
		if err != nil {
			return err
		}
	}

	return nil
}

// ForEachDelete iterates over the staged removals in an unspecified order.
// The iteration stops when the callback returns an error.
func (s *Snapshot) ForEachDelete(fn func(key []byte) error) error {
	for key := range s.deleted {
		err := fn([]byte(key))
		if err != nil {
			return err
		}
	}

	return nil
}
