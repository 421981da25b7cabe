// Package binding provides observable values with by-value change detection.
//
// A Value notifies its watchers only when its content changes, not when a new
// reference with equal content is stored. Callers that mutate a shared
// container in place (a slice returned by Get, say) call Touch afterwards to
// have the mutation detected.
package binding

import (
	"reflect"
	"sort"
	"sync"

	"github.com/mitchellh/hashstructure/v2"
)

// Value is an observable value of type T. The zero value is not usable; use New.
type Value[T any] struct {
	mu       sync.Mutex
	v        T
	sum      uint64
	hashed   bool
	version  uint64
	nextID   int
	watchers map[int]func(T)
}

// New returns a Value holding v.
func New[T any](v T) *Value[T] {
	b := &Value[T]{v: v, watchers: make(map[int]func(T))}
	b.sum, b.hashed = fingerprint(v)
	return b
}

// Get returns the current value. Reference types are shared, not copied.
func (b *Value[T]) Get() T {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.v
}

// Version counts the changes delivered to watchers so far.
func (b *Value[T]) Version() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.version
}

// Set stores v and notifies watchers if it differs by value from the previous
// content. It reports whether a change was delivered.
func (b *Value[T]) Set(v T) bool {
	b.mu.Lock()
	sum, ok := fingerprint(v)
	changed := true
	switch {
	case ok && b.hashed:
		changed = sum != b.sum
	default:
		changed = !reflect.DeepEqual(b.v, v)
	}
	b.v, b.sum, b.hashed = v, sum, ok
	return b.commit(changed)
}

// Update applies fn to the stored value in place and then behaves like Touch.
func (b *Value[T]) Update(fn func(*T)) bool {
	b.mu.Lock()
	fn(&b.v)
	return b.recheck()
}

// Touch re-examines the stored value after an in-place mutation and notifies
// watchers if its content changed since the last notification. Without a
// usable hash every Touch counts as a change.
func (b *Value[T]) Touch() bool {
	b.mu.Lock()
	return b.recheck()
}

// recheck must be called with b.mu held; it releases it.
func (b *Value[T]) recheck() bool {
	sum, ok := fingerprint(b.v)
	changed := !ok || !b.hashed || sum != b.sum
	b.sum, b.hashed = sum, ok
	return b.commit(changed)
}

// commit must be called with b.mu held; it releases it before running
// watchers so they may read or write the value.
func (b *Value[T]) commit(changed bool) bool {
	if !changed {
		b.mu.Unlock()
		return false
	}
	b.version++
	v := b.v
	ids := make([]int, 0, len(b.watchers))
	for id := range b.watchers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(T), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, b.watchers[id])
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
	return true
}

// Watch registers fn to be called with the new value after every change, in
// registration order, on the goroutine that made the change. The returned
// function unregisters fn and is safe to call more than once.
func (b *Value[T]) Watch(fn func(T)) (cancel func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.watchers[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.watchers, id)
			b.mu.Unlock()
		})
	}
}

// Watchers returns the number of registered watchers.
func (b *Value[T]) Watchers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.watchers)
}

func fingerprint(v any) (uint64, bool) {
	sum, err := hashstructure.Hash(v, hashstructure.FormatV2, nil)
	if err != nil {
		return 0, false
	}
	return sum, true
}
