// Package store holds the catalog items browsed in the current session.
// Items keep their insertion order: pages are appended, and an item seen again
// replaces its earlier copy in place, so the displayed prefix never reorders.
package store

import (
	"errors"
	"fmt"
	"sync"

	"github.com/h0rv/postergrid/internal/domain"
	"github.com/sahilm/fuzzy"
)

var (
	// ErrItemNotFound indicates the requested item does not exist.
	ErrItemNotFound = errors.New("item not found")
	// ErrNoRollback indicates there is no optimistic update to revert.
	ErrNoRollback = errors.New("no rollback state available")
	// ErrInvalidStatus indicates an unknown list status.
	ErrInvalidStatus = errors.New("invalid list status")
)

// Store manages the item list of one catalog query.
type Store struct {
	mu sync.RWMutex

	query  domain.Query
	viewer string

	// items is display order; index maps an item ID to its position.
	items []domain.Item
	index map[string]int

	page        int
	hasNextPage bool

	rollback *rollbackState
}

type rollbackState struct {
	pos  int
	item domain.Item
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		index: make(map[string]int),
	}
}

// SetQuery sets the catalog query the items belong to.
func (s *Store) SetQuery(q domain.Query) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.query = q
}

// Query returns the current catalog query.
func (s *Store) Query() domain.Query {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.query
}

// SetViewer sets the authenticated user's name, empty when anonymous.
func (s *Store) SetViewer(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewer = name
}

// Viewer returns the authenticated user's name.
func (s *Store) Viewer() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.viewer
}

// Append adds a page of items. Items whose ID is already present replace the
// stored copy at its original position; everything else is appended. Items
// without an ID are always appended.
//
// It returns the IDs of the items replaced in place.
func (s *Store) Append(items []domain.Item) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var replaced []string
	for _, item := range items {
		if item.ID == "" {
			s.items = append(s.items, item)
			continue
		}
		if pos, ok := s.index[item.ID]; ok {
			s.replace(pos, item)
			replaced = append(replaced, item.ID)
			continue
		}
		s.index[item.ID] = len(s.items)
		s.items = append(s.items, item)
	}
	return replaced
}

// replace swaps the item at pos on a fresh copy of the list, so slices
// previously returned by Items keep their contents.
func (s *Store) replace(pos int, item domain.Item) {
	next := make([]domain.Item, len(s.items), cap(s.items))
	copy(next, s.items)
	next[pos] = item
	s.items = next
}

// Items returns the items in display order. The result must not be modified.
func (s *Store) Items() []domain.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.items[:len(s.items):len(s.items)]
}

// Len returns the number of stored items.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Item returns the item with the given ID.
func (s *Store) Item(id string) (domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pos, ok := s.index[id]
	if !ok {
		return domain.Item{}, fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}
	return s.items[pos], nil
}

// Filter returns the items whose title fuzzily matches pattern, best match
// first. An empty pattern returns every item in display order.
func (s *Store) Filter(pattern string) []domain.Item {
	items := s.Items()
	if pattern == "" {
		return items
	}

	matches := fuzzy.FindFrom(pattern, titles(items))
	out := make([]domain.Item, 0, len(matches))
	for _, m := range matches {
		out = append(out, items[m.Index])
	}
	return out
}

type titles []domain.Item

func (t titles) String(i int) string { return t[i].Title }
func (t titles) Len() int            { return len(t) }

// SetListStatus optimistically sets the viewer's list status of an item.
// The previous item is kept until Commit or Rollback.
func (s *Store) SetListStatus(id, status string) error {
	if !validStatus(status) {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	return s.update(id, func(item *domain.Item) {
		item.ListStatus = status
	})
}

// SetNotes optimistically sets the viewer's notes on an item.
func (s *Store) SetNotes(id, notes string) error {
	return s.update(id, func(item *domain.Item) {
		item.Notes = notes
	})
}

func (s *Store) update(id string, fn func(*domain.Item)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.index[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}

	s.rollback = &rollbackState{pos: pos, item: s.items[pos]}

	item := s.items[pos]
	item.Genres = append([]string(nil), item.Genres...)
	fn(&item)
	s.replace(pos, item)
	return nil
}

// Rollback reverts the last optimistic update. Call it when the mutation
// failed on the server.
func (s *Store) Rollback() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rollback == nil {
		return ErrNoRollback
	}
	s.replace(s.rollback.pos, s.rollback.item)
	s.rollback = nil
	return nil
}

// Commit discards the rollback state of the last optimistic update.
func (s *Store) Commit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rollback = nil
}

// SetPagination records the last loaded page and whether another exists.
func (s *Store) SetPagination(page int, hasNextPage bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.page = page
	s.hasNextPage = hasNextPage
}

// Pagination returns the last loaded page (0 before the first load) and
// whether another page exists.
func (s *Store) Pagination() (page int, hasNextPage bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.page, s.hasNextPage
}

// NextPage returns the page number to request next.
func (s *Store) NextPage() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.page + 1
}

// Clear drops the items and pagination, keeping the query and viewer.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	s.index = make(map[string]int)
	s.page = 0
	s.hasNextPage = false
	s.rollback = nil
}

func validStatus(status string) bool {
	for _, st := range domain.ListStatusCycle {
		if st == status {
			return true
		}
	}
	return false
}
