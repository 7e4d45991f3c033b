// Package tui provides the Bubble Tea screens of postergrid: the catalog,
// genre and sort pickers, the browse grid and the detail view.
package tui

import "github.com/h0rv/postergrid/internal/domain"

// CatalogSelectedMsg is emitted when the user picks a catalog type.
type CatalogSelectedMsg struct {
	Type string
}

// GenreSelectedMsg is emitted when the user picks a genre. An empty Genre
// browses every genre.
type GenreSelectedMsg struct {
	Genre string
}

// SortSelectedMsg is emitted when the user picks an ordering.
type SortSelectedMsg struct {
	Sort string
}

// ErrorMsg is emitted when a screen hits an error it cannot recover from.
type ErrorMsg struct {
	Err error
}

// QuitMsg is emitted when the user requests to quit.
type QuitMsg struct{}

type (
	openDetailMsg  struct{ item domain.Item }
	closeDetailMsg struct{ changed string }
	itemChangedMsg struct{ id string }
)
