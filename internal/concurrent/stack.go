// Package concurrent provides the lock-free work-queue primitive shared by
// the task executor: a generic Treiber stack of pending instance paths,
// modernized from a Node/unsafe.Pointer/CAS collection into
// atomic.Pointer[T] generics.
package concurrent

import "sync/atomic"

type node[T any] struct {
	val  T
	next atomic.Pointer[node[T]]
}

// Stack is a lock-free LIFO collection safe for concurrent Push/Pop from
// any number of goroutines. The zero value is an empty, ready-to-use stack.
//
// The executor's work list is populated once, in full, before any worker
// goroutine starts draining it; no producer runs concurrently with the
// consumers. Under that access pattern a stack observes exactly the same
// externally visible properties a FIFO queue would (every pushed item is
// popped exactly once, no item is lost or duplicated, popping continues
// until empty) — so a Treiber stack serves without the tail-pointer
// bookkeeping a queue would additionally need.
type Stack[T any] struct {
	top atomic.Pointer[node[T]]
}

// Push adds val to the stack.
func (s *Stack[T]) Push(val T) {
	n := &node[T]{val: val}
	for {
		old := s.top.Load()
		n.next.Store(old)
		if s.top.CompareAndSwap(old, n) {
			return
		}
	}
}

// Pop removes and returns an element from the stack. ok is false if the
// stack was empty.
func (s *Stack[T]) Pop() (val T, ok bool) {
	for {
		old := s.top.Load()
		if old == nil {
			return val, false
		}
		next := old.next.Load()
		if s.top.CompareAndSwap(old, next) {
			return old.val, true
		}
	}
}

// Len walks the stack to count its elements. It is not linearizable with
// concurrent Push/Pop and exists only for diagnostics and tests.
func (s *Stack[T]) Len() int {
	n := 0
	for cur := s.top.Load(); cur != nil; cur = cur.next.Load() {
		n++
	}
	return n
}
