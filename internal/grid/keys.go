package grid

import "strconv"

// Item is the read-only view the grid needs of a caller's data record.
type Item interface {
	GetID() string
	GetTitle() string
	GetPoster() string
}

// Cell is one entry of the memoized cell list: the wrapper the grid renders
// around an item.
type Cell[T Item] struct {
	Key      string
	Index    int
	Priority bool
	Item     T
}

// Key returns the render key for item at index i.
// Items with a non-empty ID are keyed by it; others fall back to title and
// index, which is unique because the index is.
func Key(item Item, i int) string {
	if id := item.GetID(); id != "" {
		return "item-" + id
	}
	return item.GetTitle() + "-" + strconv.Itoa(i)
}

// AssignKeys builds the cell list for items, marking the first priorityCount
// cells as priority.
func AssignKeys[T Item](items []T, priorityCount int) []Cell[T] {
	cells := make([]Cell[T], len(items))
	for i, item := range items {
		cells[i] = Cell[T]{
			Key:      Key(item, i),
			Index:    i,
			Priority: i < priorityCount,
			Item:     item,
		}
	}
	return cells
}

// DuplicateKeys returns every key that appears more than once in cells, in
// order of first repetition.
func DuplicateKeys[T Item](cells []Cell[T]) []string {
	seen := make(map[string]int, len(cells))
	var dups []string
	for _, c := range cells {
		seen[c.Key]++
		if seen[c.Key] == 2 {
			dups = append(dups, c.Key)
		}
	}
	return dups
}

// PosterURLs returns the non-empty poster URLs of items, in display order.
func PosterURLs[T Item](items []T) []string {
	urls := make([]string, 0, len(items))
	for _, item := range items {
		if u := item.GetPoster(); u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

// memoKey identifies an item slice by its backing array and length, plus the
// priority count. Appending always changes the length, so a grown list never
// matches a stale memo.
type memoKey[T Item] struct {
	data     *T
	n        int
	priority int
}

func newMemoKey[T Item](items []T, priority int) memoKey[T] {
	k := memoKey[T]{n: len(items), priority: priority}
	if len(items) > 0 {
		k.data = &items[0]
	}
	return k
}
