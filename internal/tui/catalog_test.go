package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/h0rv/postergrid/internal/anilist"
	"github.com/h0rv/postergrid/internal/domain"
	"github.com/h0rv/postergrid/internal/grid"
	"github.com/h0rv/postergrid/internal/store"
)

// fakeCatalog is an AniList stand-in serving a catalog of total numbered
// titles.
type fakeCatalog struct {
	*httptest.Server

	mu        sync.Mutex
	total     int
	pages     []int
	saves     []map[string]any
	failPages map[int]bool
	failSave  bool
}

func newFakeCatalog(t *testing.T, total int) *fakeCatalog {
	t.Helper()
	f := &fakeCatalog{total: total, failPages: map[int]bool{}}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeCatalog) serve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query     string         `json:"query"`
		Variables map[string]any `json:"variables"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	write := func(v any) { _ = json.NewEncoder(w).Encode(v) }
	fail := func(msg string) { write(map[string]any{"errors": []map[string]any{{"message": msg}}}) }

	switch {
	case strings.Contains(req.Query, "SaveMediaListEntry"):
		f.saves = append(f.saves, req.Variables)
		if f.failSave {
			fail("Unauthorized.")
			return
		}
		write(map[string]any{"data": map[string]any{"SaveMediaListEntry": map[string]any{"id": 1}}})

	case strings.Contains(req.Query, "GenreCollection"):
		write(map[string]any{"data": map[string]any{"GenreCollection": []string{"Action", "Drama"}}})

	case strings.Contains(req.Query, "reviews("):
		write(map[string]any{"data": map[string]any{"Media": map[string]any{"reviews": map[string]any{"nodes": []map[string]any{{
			"id": 7, "summary": "Still holds up", "body": "A <i>classic</i>.", "score": 90,
			"createdAt": time.Now().Add(-48 * time.Hour).Unix(), "user": map[string]any{"name": "spike"},
		}}}}}})

	case strings.Contains(req.Query, "Media(id:"):
		id := int(req.Variables["id"].(float64))
		write(map[string]any{"data": map[string]any{"Media": map[string]any{
			"id":             id,
			"siteUrl":        fmt.Sprintf("https://anilist.co/anime/%d", id),
			"title":          map[string]any{"userPreferred": fmt.Sprintf("Title %03d", id)},
			"format":         "TV",
			"averageScore":   72,
			"description":    "Fresh description.",
			"mediaListEntry": map[string]any{"status": "CURRENT", "notes": "from server"},
		}}})

	case strings.Contains(req.Query, "Viewer"):
		write(map[string]any{"data": map[string]any{"Viewer": map[string]any{"id": 1, "name": "faye"}}})

	case strings.Contains(req.Query, "Page("):
		page := int(req.Variables["page"].(float64))
		perPage := int(req.Variables["perPage"].(float64))
		f.pages = append(f.pages, page)
		if f.failPages[page] {
			fail("Too Many Requests.")
			return
		}

		var media []map[string]any
		for id := (page-1)*perPage + 1; id <= min(page*perPage, f.total); id++ {
			media = append(media, map[string]any{
				"id":           id,
				"siteUrl":      fmt.Sprintf("https://anilist.co/anime/%d", id),
				"title":        map[string]any{"userPreferred": fmt.Sprintf("Title %03d", id)},
				"format":       "TV",
				"averageScore": 70,
				"seasonYear":   2000 + id,
			})
		}
		write(map[string]any{"data": map[string]any{"Page": map[string]any{
			"pageInfo": map[string]any{"hasNextPage": page*perPage < f.total, "currentPage": page},
			"media":    media,
		}}})

	default:
		fail("unexpected query")
	}
}

func (f *fakeCatalog) requestedPages() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.pages...)
}

func (f *fakeCatalog) savedVariables() []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]any(nil), f.saves...)
}

func (f *fakeCatalog) setFailSave(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failSave = fail
}

func (f *fakeCatalog) setFailPage(page int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failPages[page] = true
}

func immediateTick(_ time.Duration, fn func(time.Time) tea.Msg) tea.Cmd {
	return func() tea.Msg { return fn(time.Now()) }
}

func testQuery() domain.Query {
	return domain.Query{Type: domain.MediaTypeAnime, Sort: domain.SortTrending}
}

// newUnloadedBrowse creates a browse model over srv without loading anything.
func newUnloadedBrowse(t *testing.T, srv *fakeCatalog, token string) BrowseModel {
	t.Helper()
	s := store.New()
	s.SetQuery(testQuery())

	return NewBrowseModel(context.Background(), s, anilist.New(srv.URL, token), BrowseOptions{
		PageSize: 8,
		Grid: grid.Config{
			DetectorOpts: []grid.DetectorOpt{grid.WithTick(immediateTick)},
		},
	})
}

// newTestBrowse creates a sized browse model with the first page loaded.
func newTestBrowse(t *testing.T, srv *fakeCatalog, token string) BrowseModel {
	t.Helper()
	m := newUnloadedBrowse(t, srv, token)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})
	return settle(t, m, m.fetchPage(m.generation, 1))
}

func update(t *testing.T, m BrowseModel, msg tea.Msg) (BrowseModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	bm, ok := next.(BrowseModel)
	require.True(t, ok, "Update returned %T", next)
	return bm, cmd
}

// settle runs cmd and feeds the browse messages it produces back into m
// until no command is left. Other messages are dropped.
func settle(t *testing.T, m BrowseModel, cmd tea.Cmd) BrowseModel {
	t.Helper()
	queue := []tea.Cmd{cmd}
	for i := 0; len(queue) > 0; i++ {
		require.Less(t, i, 100, "commands did not settle")
		c := queue[0]
		queue = queue[1:]
		if c == nil {
			continue
		}
		switch msg := c().(type) {
		case tea.BatchMsg:
			queue = append(queue, msg...)
		case pageLoadedMsg, loadMoreMsg, statusSavedMsg, grid.TickMsg, itemChangedMsg:
			var next tea.Cmd
			m, next = update(t, m, msg)
			queue = append(queue, next)
		}
	}
	return m
}

func press(keys string) tea.KeyMsg {
	switch keys {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(keys)}
}
