package sets

// CappedSet is a set that refuses new items once it reaches its capacity.
type CappedSet[T comparable] struct {
	items map[T]struct{}
	cap   int
}

func NewCappedSet[T comparable](cap int) *CappedSet[T] {
	return &CappedSet[T]{
		items: make(map[T]struct{}),
		cap:   cap,
	}
}

func (s *CappedSet[T]) Len() int {
	return len(s.items)
}

// Add inserts item and reports whether it was stored.
// Returns false if the set is at capacity or already contains item.
func (s *CappedSet[T]) Add(item T) bool {
	if _, ok := s.items[item]; ok {
		return false
	}
	if len(s.items) >= s.cap {
		return false
	}
	s.items[item] = struct{}{}
	return true
}

// Remove deletes item and reports whether it was present.
func (s *CappedSet[T]) Remove(item T) bool {
	if _, ok := s.items[item]; !ok {
		return false
	}
	delete(s.items, item)
	return true
}

func (s *CappedSet[T]) Has(item T) bool {
	_, ok := s.items[item]
	return ok
}

func (s *CappedSet[T]) Clear() {
	clear(s.items)
}

func (s *CappedSet[T]) UnsortedList() []T {
	list := make([]T, 0, len(s.items))
	for item := range s.items {
		list = append(list, item)
	}
	return list
}
