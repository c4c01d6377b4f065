//go:build !legacy

package inventory

import (
	"fmt"
	"sync"
)

// Store keeps item counts in memory.
type Store struct {
	mu    sync.Mutex
	items map[string]Item
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{items: make(map[string]Item)}
}

// Add increases the count of an item, creating it when missing.
func (s *Store) Add(item Item, n int) error {
	if n <= 0 {
		return fmt.Errorf("inventory: add %d: count must be positive", n)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.items[normalize(item.SKU)]
	cur.SKU, cur.Name = item.SKU, item.Name
	cur.Count += n
	s.items[item.SKU] = cur
	return nil
}

// Get returns the item stored under sku.
func (s *Store) Get(sku string) (Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[sku]
	if !ok {
		return Item{}, ErrNotFound
	}
	return it, nil
}

// Count returns the number of distinct items.
//
// Deprecated: use Len.
func (s *Store) Count() int {
	return s.Len()
}

// Len returns the number of distinct items.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
