package util

import "github.com/samber/mo"

// Stack is a LIFO of T. The zero value is an empty stack.
type Stack[T any] struct {
	items []T
}

func (s *Stack[T]) Push(item T) {
	s.items = append(s.items, item)
}

// Pop removes the top element. It is absent when the stack is empty.
func (s *Stack[T]) Pop() mo.Option[T] {
	if len(s.items) == 0 {
		return mo.None[T]()
	}
	top := s.items[len(s.items)-1]
	s.items = s.items[:len(s.items)-1]
	return mo.Some(top)
}

// Peek returns the top element without removing it.
func (s *Stack[T]) Peek() mo.Option[T] {
	if len(s.items) == 0 {
		return mo.None[T]()
	}
	return mo.Some(s.items[len(s.items)-1])
}

func (s *Stack[T]) Len() int {
	return len(s.items)
}
