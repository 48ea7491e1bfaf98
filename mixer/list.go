package mixer

import "sync/atomic"

// list is an immutable slice published with atomic pointer. Readers load
// the snapshot once and never see partial updates. Writers must be
// serialized by the caller.
type list[T comparable] struct {
	p atomic.Pointer[[]T]
}

func (l *list[T]) load() []T {
	if p := l.p.Load(); p != nil {
		return *p
	}
	return nil
}

func (l *list[T]) contains(v T) bool {
	return l.index(v) >= 0
}

func (l *list[T]) index(v T) int {
	for i, item := range l.load() {
		if item == v {
			return i
		}
	}
	return -1
}

// add installs a copy of the list with v appended.
func (l *list[T]) add(v T) {
	old := l.load()
	next := make([]T, 0, len(old)+1)
	next = append(next, old...)
	next = append(next, v)
	l.p.Store(&next)
}

// remove installs a copy of the list without v. It returns false if v is
// not in the list.
func (l *list[T]) remove(v T) bool {
	i := l.index(v)
	if i < 0 {
		return false
	}
	old := l.load()
	next := make([]T, 0, len(old)-1)
	next = append(next, old[:i]...)
	next = append(next, old[i+1:]...)
	l.p.Store(&next)
	return true
}

// reset installs an empty list and returns the old one.
func (l *list[T]) reset() []T {
	old := l.load()
	l.p.Store(&[]T{})
	return old
}
