package grid

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedGeometry = ResolverFunc(func(int) Geometry {
	return Geometry{Columns: 4, CellWidth: 19, ItemHeight: 6, Gap: 1}
})

type renderRecorder struct {
	calls    map[int]int
	priority map[int]bool
}

func newRenderRecorder() *renderRecorder {
	return &renderRecorder{calls: map[int]int{}, priority: map[int]bool{}}
}

func (r *renderRecorder) render(item testItem, priority bool, index int, _ Size) string {
	r.calls[index]++
	r.priority[index] = priority
	return item.title
}

func (r *renderRecorder) total() int {
	n := 0
	for _, c := range r.calls {
		n += c
	}
	return n
}

type fakePreloader struct {
	urls     []string
	priority int
	calls    int
}

func (p *fakePreloader) Preload(urls []string, priority int) tea.Cmd {
	p.urls = urls
	p.priority = priority
	p.calls++
	return nil
}

func newTestGrid(rec *renderRecorder, onLoadMore LoadMoreFunc, cfg Config) Model[testItem] {
	if cfg.Resolver == nil {
		cfg.Resolver = fixedGeometry
	}
	cfg.DetectorOpts = append(cfg.DetectorOpts, WithTick(immediateTick))
	m := New(rec.render, onLoadMore, cfg)
	m.SetSize(79, 12)
	return m
}

func press(keys string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(keys)}
}

func TestModel_EmptyState(t *testing.T) {
	rec := newRenderRecorder()
	counter := &loadCounter{}
	m := newTestGrid(rec, counter.loadMore, Config{
		EmptyText: "No titles match.",
		Style:     lipgloss.NewStyle().Padding(0, 1),
	})
	m.SetItems([]testItem{})
	m.SetLoadState(true, false)

	view := m.View()
	assert.Contains(t, view, "No titles match.")
	assert.NotContains(t, view, "╭", "no cells in the empty state")
	assert.NotContains(t, view, "More available")

	m, cmd := m.Update(press("j"))
	assert.Nil(t, cmd, "scroll keys do nothing without items")
	m, cmd = m.Update(tea.MouseMsg{Button: tea.MouseButtonWheelDown, Action: tea.MouseActionPress})
	assert.Nil(t, cmd)

	assert.Equal(t, 0, rec.total())
	assert.Equal(t, 0, counter.calls)
	assert.Equal(t, StateIdle, m.Detector().State())

	_, ok := m.Selected()
	assert.False(t, ok)
}

func TestModel_PriorityCount(t *testing.T) {
	rec := newRenderRecorder()
	m := newTestGrid(rec, nil, Config{PriorityCount: 12})
	m.SetItems(makeItems(15))

	for i := range 15 {
		assert.Equal(t, 1, rec.calls[i], "item %d rendered once", i)
		assert.Equal(t, i < 12, rec.priority[i], "item %d priority", i)
	}
}

func TestModel_DefaultPriorityCount(t *testing.T) {
	rec := newRenderRecorder()
	m := newTestGrid(rec, nil, Config{})
	m.SetItems(makeItems(14))

	assert.True(t, rec.priority[DefaultPriorityCount-1])
	assert.False(t, rec.priority[DefaultPriorityCount])
}

func TestModel_AppendRendersOnlyNewCells(t *testing.T) {
	rec := newRenderRecorder()
	m := newTestGrid(rec, nil, Config{PriorityCount: 4})

	items := makeItems(20)
	m.SetItems(items[:10])
	require.Equal(t, 10, rec.total())
	keys := make([]string, 10)
	for i, c := range m.Cells() {
		keys[i] = c.Key
	}

	m.SetItems(items[:16])
	assert.Equal(t, 16, rec.total(), "only the six appended items are rendered")
	for i := range keys {
		assert.Equal(t, keys[i], m.Cells()[i].Key)
		assert.Equal(t, 1, rec.calls[i])
	}
}

func TestModel_SameListIsMemoized(t *testing.T) {
	rec := newRenderRecorder()
	pre := &fakePreloader{}
	m := newTestGrid(rec, nil, Config{Preloader: pre})

	items := makeItems(8)
	m.SetItems(items)
	cells := m.Cells()
	m.SetItems(items)

	assert.Equal(t, 8, rec.total())
	assert.Equal(t, 1, pre.calls)
	assert.Same(t, &cells[0], &m.Cells()[0], "cell list reused")
}

func TestModel_SelectionRestylesWithoutRerender(t *testing.T) {
	rec := newRenderRecorder()
	m := newTestGrid(rec, nil, Config{})
	m.SetItems(makeItems(8))

	m, _ = m.Update(press("l"))
	m, _ = m.Update(press("j"))

	assert.Equal(t, 5, m.SelectedIndex())
	assert.Equal(t, 8, rec.total())
}

func TestModel_Invalidate(t *testing.T) {
	rec := newRenderRecorder()
	m := newTestGrid(rec, nil, Config{})
	items := makeItems(6)
	m.SetItems(items)

	m.Invalidate(Key(items[2], 2))
	assert.Equal(t, 2, rec.calls[2])
	assert.Equal(t, 1, rec.calls[3])

	m.Invalidate()
	assert.Equal(t, 13, rec.total())
}

func TestModel_PreloadsNonEmptyPosters(t *testing.T) {
	pre := &fakePreloader{}
	m := newTestGrid(newRenderRecorder(), nil, Config{Preloader: pre, PriorityCount: 2})

	items := makeItems(4)
	items[1].poster = ""
	m.SetItems(items)

	assert.Equal(t, []string{items[0].poster, items[2].poster, items[3].poster}, pre.urls)
	assert.Equal(t, 2, pre.priority)
}

func TestModel_FallbackColumns(t *testing.T) {
	m := newTestGrid(newRenderRecorder(), nil, Config{
		Resolver: ResolverFunc(func(int) Geometry {
			return Geometry{Columns: 0, CellWidth: 10, ItemHeight: 4}
		}),
	})

	assert.Equal(t, 3, m.Geometry().Columns)
}

func TestModel_PageHeight(t *testing.T) {
	m := newTestGrid(newRenderRecorder(), nil, Config{})
	m.SetItems(makeItems(10))

	// 3 rows of 6 lines with 2 gap lines.
	assert.Equal(t, 20, m.TotalHeight())
	assert.Equal(t, 20, m.viewport.TotalLineCount())
}

func TestModel_LoadingFooter(t *testing.T) {
	m := newTestGrid(newRenderRecorder(), nil, Config{})
	m.SetItems(makeItems(4))
	m.viewport.Height = 40

	assert.NotContains(t, m.View(), "More available")
	assert.NotContains(t, m.View(), "Loading more")

	m.SetLoadState(true, false)
	assert.Contains(t, m.View(), "More available, scroll down to load")

	m.SetLoadState(true, true)
	assert.Contains(t, m.View(), "Loading more...")
	assert.NotContains(t, m.View(), "More available")
}

func TestModel_ScrollTriggersLoadMore(t *testing.T) {
	counter := &loadCounter{}
	m := newTestGrid(newRenderRecorder(), counter.loadMore, Config{Metrics: nearBottom})
	m.SetItems(makeItems(12))
	m.SetLoadState(true, false)

	for range 5 {
		var cmd tea.Cmd
		m, cmd = m.Update(press("j"))
		require.NotNil(t, cmd)
		m, _ = m.Update(cmd())
	}
	assert.Equal(t, 1, counter.calls)

	m.SetLoadState(true, true)
	m.SetLoadState(true, false)
	m, cmd := m.Update(press("k"))
	m, _ = m.Update(cmd())
	assert.Equal(t, 2, counter.calls)
}

func TestModel_ViewportMetricsDriveDetector(t *testing.T) {
	counter := &loadCounter{}
	m := newTestGrid(newRenderRecorder(), counter.loadMore, Config{
		DetectorOpts: []DetectorOpt{WithThreshold(2)},
	})
	m.SetItems(makeItems(40)) // 10 rows, 69 lines, page is 12 lines tall
	m.SetLoadState(true, false)

	m, cmd := m.Update(press("j"))
	m, _ = m.Update(cmd())
	assert.Equal(t, 0, counter.calls, "top of a long page is not near the end")

	m, cmd = m.Update(press("G"))
	m, _ = m.Update(cmd())
	assert.Equal(t, 1, counter.calls)
	assert.Equal(t, 39, m.SelectedIndex())
}

func TestModel_CloseStopsLoadMore(t *testing.T) {
	counter := &loadCounter{}
	m := newTestGrid(newRenderRecorder(), counter.loadMore, Config{Metrics: nearBottom})
	m.SetItems(makeItems(12))
	m.SetLoadState(true, false)

	m, cmd := m.Update(press("j"))
	m.Close()
	m, _ = m.Update(cmd())

	assert.Equal(t, 0, counter.calls)
	assert.True(t, m.Detector().Closed())
}

func TestModel_LoadMoreKeyUsesGate(t *testing.T) {
	counter := &loadCounter{}
	m := newTestGrid(newRenderRecorder(), counter.loadMore, Config{})
	m.SetItems(makeItems(3))
	m.SetLoadState(true, false)

	m.LoadMore()
	m.LoadMore()
	assert.Equal(t, 1, counter.calls)

	m.SetLoadState(false, false)
	m.LoadMore()
	assert.Equal(t, 1, counter.calls)
}

func TestModel_DuplicateKeysWarn(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	m := newTestGrid(newRenderRecorder(), nil, Config{Logger: logger})

	items := []testItem{{id: "1", title: "A"}, {id: "1", title: "B"}, {id: "2", title: "C"}}
	require.NotPanics(t, func() {
		m.SetItems(items)
		m.View()
	})

	assert.Contains(t, buf.String(), "duplicate render keys")
	assert.Equal(t, 1, strings.Count(buf.String(), "duplicate render keys"))

	// Same duplicates after an append are not reported again.
	m.SetItems(append(items, testItem{id: "3", title: "D"}))
	assert.Equal(t, 1, strings.Count(buf.String(), "duplicate render keys"))
}

func TestModel_DuplicateKeysRenderEachCell(t *testing.T) {
	rec := newRenderRecorder()
	m := newTestGrid(rec, nil, Config{})
	items := []testItem{{id: "1", title: "Alpha"}, {id: "1", title: "Bravo"}, {id: "2", title: "Charlie"}}
	m.SetItems(items)

	view := m.View()
	assert.Contains(t, view, "Alpha")
	assert.Contains(t, view, "Bravo")

	key := Key(items[1], 1)
	require.Equal(t, key, Key(items[0], 0))
	assert.Equal(t, 1, m.cache[key].index, "last rendered cell owns the entry")
	assert.Contains(t, m.cache[key].body, "Bravo")
}

func TestModel_Navigation(t *testing.T) {
	m := newTestGrid(newRenderRecorder(), nil, Config{})
	m.SetItems(makeItems(10)) // rows: 0-3, 4-7, 8-9

	steps := []struct {
		key  string
		want int
	}{
		{"l", 1},
		{"l", 2},
		{"l", 3},
		{"j", 7},
		{"j", 9}, // partial last row
		{"j", 9},
		{"k", 5},
		{"h", 4},
		{"h", 3},
		{"g", 0},
		{"h", 0},
		{"G", 9},
		{"l", 9},
	}

	for _, s := range steps {
		m, _ = m.Update(press(s.key))
		assert.Equal(t, s.want, m.SelectedIndex(), "after %q", s.key)
	}

	item, ok := m.Selected()
	require.True(t, ok)
	assert.Equal(t, "Title 9", item.title)
}

func TestModel_SelectionScrollsPage(t *testing.T) {
	m := newTestGrid(newRenderRecorder(), nil, Config{})
	m.SetItems(makeItems(40))

	m, _ = m.Update(press("G"))
	assert.Positive(t, m.viewport.YOffset)
	assert.Greater(t, m.ScrollPercent(), 0.9)

	m, _ = m.Update(press("g"))
	assert.Equal(t, 0, m.viewport.YOffset)
}

func TestModel_ShrinkingListClampsSelection(t *testing.T) {
	m := newTestGrid(newRenderRecorder(), nil, Config{})
	m.SetItems(makeItems(10))
	m.Select(9)

	m.SetItems(makeItems(4))
	assert.Equal(t, 3, m.SelectedIndex())
}

func TestFit(t *testing.T) {
	got := fit("a very long first line\nsecond\nthird\nfourth", Size{Width: 8, Height: 3})
	lines := strings.Split(got, "\n")

	require.Len(t, lines, 3)
	assert.LessOrEqual(t, lipgloss.Width(lines[0]), 8)
	assert.Equal(t, "second", lines[1])

	assert.Equal(t, "x\n\n", fit("x", Size{Width: 5, Height: 3}))
}
