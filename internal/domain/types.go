// Package domain defines the normalized domain types for the media catalog.
// These types represent the core concepts independent of the AniList GraphQL API structure.
package domain

// Item represents a single catalog entry (an anime or manga) in a normalized format.
type Item struct {
	ID          string   // AniList media ID (may be empty for entries synthesized without an ID)
	Title       string   // Preferred display title
	Poster      string   // Cover image URL, empty if the entry has no cover
	Year        int      // Season or start year, 0 if unknown
	Rating      int      // Average score 0-100, 0 if unrated
	Format      string   // TV, MOVIE, MANGA, NOVEL, ...
	Status      string   // FINISHED, RELEASING, ...
	Episodes    int      // Episode count (anime) or chapter count (manga), 0 if unknown
	Genres      []string // Genre names
	Description string   // Plain-text synopsis
	URL         string   // AniList site URL
	ListStatus  string   // Viewer's list status (CURRENT, PLANNING, ...), empty if not on a list
	Notes       string   // Viewer's private notes on the list entry
}

// GetID returns the item's stable identifier.
func (i Item) GetID() string { return i.ID }

// GetTitle returns the item's display title.
func (i Item) GetTitle() string { return i.Title }

// GetPoster returns the item's cover image URL.
func (i Item) GetPoster() string { return i.Poster }

// Review represents a user review of a catalog entry.
type Review struct {
	ID        string // AniList review ID
	Author    string // Reviewer name (may be empty if the user was deleted)
	Summary   string // One-line summary
	Body      string // Review text
	Score     int    // Reviewer score 0-100
	CreatedAt int64  // Unix seconds
}

// Query describes which slice of the catalog to browse.
type Query struct {
	Type  string // MediaType: ANIME or MANGA
	Genre string // Genre filter, empty for all genres
	Sort  string // MediaSort value
}

// MediaType constants.
const (
	MediaTypeAnime = "ANIME"
	MediaTypeManga = "MANGA"
)

// MediaTypes lists the supported catalog types in display order.
var MediaTypes = []string{MediaTypeAnime, MediaTypeManga}

// Sort constants for commonly used orderings.
const (
	SortTrending   = "TRENDING_DESC"
	SortPopularity = "POPULARITY_DESC"
	SortScore      = "SCORE_DESC"
	SortNewest     = "START_DATE_DESC"
	SortTitle      = "TITLE_ROMAJI"
)

// Sorts lists the supported orderings in display order.
var Sorts = []string{SortTrending, SortPopularity, SortScore, SortNewest, SortTitle}

// ListStatus constants for the viewer's list entries.
const (
	ListStatusPlanning  = "PLANNING"
	ListStatusCurrent   = "CURRENT"
	ListStatusCompleted = "COMPLETED"
	ListStatusDropped   = "DROPPED"
)

// ListStatusCycle is the order in which the list status key cycles through statuses.
var ListStatusCycle = []string{ListStatusPlanning, ListStatusCurrent, ListStatusCompleted, ListStatusDropped}

// NextListStatus returns the status following current in ListStatusCycle.
// Entries not on a list start at PLANNING.
func NextListStatus(current string) string {
	for i, s := range ListStatusCycle {
		if s == current {
			return ListStatusCycle[(i+1)%len(ListStatusCycle)]
		}
	}
	return ListStatusPlanning
}
