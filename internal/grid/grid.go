// Package grid renders a growing list of items as a responsive grid inside a
// single page viewport, and requests more items as the page nears its end.
//
// The grid renders every item it is given. Geometry comes from a [Resolver],
// render keys from [Key], and load-more requests from a debounced [Detector]
// gated to one request per loading cycle.
package grid

import (
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"
)

const (
	// DefaultPriorityCount is how many leading items are rendered as priority.
	DefaultPriorityCount = 12
	// fallbackColumns replaces a non-positive column count from a resolver.
	fallbackColumns = 3
	// DefaultEmptyText is shown when there are no items.
	DefaultEmptyText = "Nothing to show."
)

var (
	cellStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240"))

	selectedCellStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("205"))

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	emptyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

// Size is the inner size available to a rendered item, excluding the cell
// border.
type Size struct {
	Width  int
	Height int
}

// RenderFunc renders the body of one cell. Callers must pass a function whose
// output depends only on its arguments (and on state the caller invalidates
// with [Model.Invalidate]): rendered bodies are cached by render key, and the
// function itself is not part of the cache key.
type RenderFunc[T Item] func(item T, priority bool, index int, size Size) string

// Preloader receives the poster URLs of the current item list, with the
// number of leading priority items.
type Preloader interface {
	Preload(urls []string, priority int) tea.Cmd
}

// Config holds the optional collaborators and settings of a [Model].
type Config struct {
	// PriorityCount is how many leading items render with priority = true.
	// Zero means [DefaultPriorityCount]; negative means none.
	PriorityCount int
	// Resolver maps the container width to a geometry. Nil means
	// [NewResponsive].
	Resolver Resolver
	// Preloader receives poster URLs whenever the item list changes. Optional.
	Preloader Preloader
	// Metrics overrides the page metrics source. Nil means the grid's own
	// viewport.
	Metrics MetricsProvider
	// DetectorOpts configure the scroll-proximity detector.
	DetectorOpts []DetectorOpt
	// Style is applied to the container in every state.
	Style lipgloss.Style
	// EmptyText replaces [DefaultEmptyText].
	EmptyText string
	// Logger defaults to [slog.Default].
	Logger *slog.Logger
}

type cachedCell struct {
	size     Size
	priority bool
	// index tells duplicate keys apart; the last cell rendered owns the entry.
	index int
	body  string
}

// Model is a Bubble Tea component showing items as a grid on one scrollable
// page.
type Model[T Item] struct {
	cfg      Config
	keymap   KeyMap
	render   RenderFunc[T]
	resolver Resolver
	logger   *slog.Logger

	detector Detector
	viewport viewport.Model
	spinner  spinner.Model

	items []T
	memo  memoKey[T]
	cells []Cell[T]
	cache map[string]cachedCell
	body  string
	dups  string

	geometry Geometry
	width    int
	height   int
	hasMore  bool
	loading  bool
	selected int
}

// New creates a grid. render must satisfy the [RenderFunc] contract.
// onLoadMore is called at most once per loading cycle and may be nil.
func New[T Item](render RenderFunc[T], onLoadMore LoadMoreFunc, cfg Config) Model[T] {
	if cfg.PriorityCount == 0 {
		cfg.PriorityCount = DefaultPriorityCount
	}
	if cfg.PriorityCount < 0 {
		cfg.PriorityCount = 0
	}
	if cfg.EmptyText == "" {
		cfg.EmptyText = DefaultEmptyText
	}

	resolver := cfg.Resolver
	if resolver == nil {
		resolver = NewResponsive()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	vp := viewport.New(0, 0)
	vp.MouseWheelEnabled = true
	vp.MouseWheelDelta = 3

	return Model[T]{
		cfg:      cfg,
		keymap:   DefaultKeyMap(),
		render:   render,
		resolver: resolver,
		logger:   logger,
		detector: NewDetector(onLoadMore, cfg.DetectorOpts...),
		viewport: vp,
		spinner:  sp,
		cache:    make(map[string]cachedCell),
	}
}

// Init starts the loading spinner.
func (m Model[T]) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles navigation, scrolling, debounce ticks and spinner ticks.
func (m Model[T]) Update(msg tea.Msg) (Model[T], tea.Cmd) {
	switch msg := msg.(type) {
	case TickMsg:
		cmd := m.detector.Update(msg, m.metrics())
		return m, cmd

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.hasMore && m.loading && len(m.items) > 0 {
			m.setContent()
		}
		return m, cmd

	case tea.KeyMsg:
		if len(m.items) == 0 {
			return m, nil
		}
		if !m.handleKey(msg) {
			return m, nil
		}
		cmd := m.detector.Scroll()
		return m, cmd

	case tea.MouseMsg:
		if len(m.items) == 0 {
			return m, nil
		}
		if !tea.MouseEvent(msg).IsWheel() {
			return m, nil
		}
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		scroll := m.detector.Scroll()
		return m, tea.Batch(cmd, scroll)
	}

	return m, nil
}

// handleKey applies a navigation key and reports whether it was one.
func (m *Model[T]) handleKey(msg tea.KeyMsg) bool {
	cols := m.columns()
	last := len(m.items) - 1
	rowsPerPage := max(m.viewport.Height/max(m.geometry.ItemHeight+m.geometry.Gap, 1), 1)

	switch {
	case key.Matches(msg, m.keymap.Left):
		m.selected--
	case key.Matches(msg, m.keymap.Right):
		m.selected++
	case key.Matches(msg, m.keymap.Up):
		if m.selected-cols >= 0 {
			m.selected -= cols
		}
	case key.Matches(msg, m.keymap.Down):
		if m.selected+cols <= last {
			m.selected += cols
		} else if m.selected/cols < last/cols {
			// Partial last row: land on its last item.
			m.selected = last
		}
	case key.Matches(msg, m.keymap.PageUp):
		m.selected -= rowsPerPage * cols
	case key.Matches(msg, m.keymap.PageDown):
		m.selected += rowsPerPage * cols
	case key.Matches(msg, m.keymap.Top):
		m.selected = 0
	case key.Matches(msg, m.keymap.Bottom):
		m.selected = last
	default:
		return false
	}

	m.selected = min(max(m.selected, 0), last)
	m.refreshContent()
	m.ensureSelectedVisible()
	return true
}

// View renders the grid, or the empty-state placeholder when there are no
// items.
func (m Model[T]) View() string {
	if len(m.items) == 0 {
		placeholder := lipgloss.Place(
			max(m.width, 1), max(m.height, 1),
			lipgloss.Center, lipgloss.Center,
			emptyStyle.Render(m.cfg.EmptyText),
		)
		return m.cfg.Style.Render(placeholder)
	}
	return m.cfg.Style.Render(m.viewport.View())
}

// SetSize sets the container size and re-resolves the geometry.
func (m *Model[T]) SetSize(width, height int) {
	m.width = max(width, 0)
	m.height = max(height, 0)

	g := m.resolver.Resolve(m.width)
	if g.Columns <= 0 {
		g.Columns = fallbackColumns
	}
	if g.CellWidth != m.geometry.CellWidth || g.ItemHeight != m.geometry.ItemHeight {
		clear(m.cache)
	}
	m.geometry = g

	m.viewport.Width = m.width
	m.viewport.Height = m.height
	m.refreshContent()
	m.ensureSelectedVisible()
}

// SetItems replaces the item list. The cell list is recomputed only when the
// slice or the priority count changed; cached cell bodies are kept for every
// key that survives.
func (m *Model[T]) SetItems(items []T) tea.Cmd {
	mk := newMemoKey(items, m.cfg.PriorityCount)
	if mk == m.memo && m.cells != nil {
		return nil
	}

	m.items = items
	m.memo = mk
	m.cells = AssignKeys(items, m.cfg.PriorityCount)

	if dups := DuplicateKeys(m.cells); len(dups) > 0 {
		joined := strings.Join(dups, ",")
		if joined != m.dups {
			m.logger.Warn("duplicate render keys", slog.Any("keys", dups), slog.Int("items", len(items)))
			m.dups = joined
		}
	} else {
		m.dups = ""
	}

	if m.selected >= len(items) {
		m.selected = max(len(items)-1, 0)
	}

	m.refreshContent()

	if m.cfg.Preloader == nil || len(items) == 0 {
		return nil
	}
	return m.cfg.Preloader.Preload(PosterURLs(items), m.cfg.PriorityCount)
}

// SetLoadState reports the owner's load state to the grid and its detector.
func (m *Model[T]) SetLoadState(hasMore, loading bool) {
	changed := hasMore != m.hasMore || loading != m.loading
	m.hasMore = hasMore
	m.loading = loading
	m.detector.Sync(hasMore, loading)
	if changed {
		m.setContent()
	}
}

// LoadMore requests more items through the load-more gate, regardless of
// scroll position.
func (m *Model[T]) LoadMore() tea.Cmd {
	return m.detector.Trigger()
}

// Invalidate drops cached cell bodies for keys, or all of them when no keys
// are given, and re-renders.
func (m *Model[T]) Invalidate(keys ...string) {
	if len(keys) == 0 {
		clear(m.cache)
	}
	for _, k := range keys {
		delete(m.cache, k)
	}
	m.refreshContent()
}

// Close tears down the scroll-proximity detector. A closed grid never
// requests more items.
func (m *Model[T]) Close() {
	m.detector.Close()
}

// Selected returns the selected item, if any.
func (m Model[T]) Selected() (T, bool) {
	var zero T
	if len(m.items) == 0 {
		return zero, false
	}
	return m.items[m.selected], true
}

// SelectedIndex returns the index of the selected item.
func (m Model[T]) SelectedIndex() int { return m.selected }

// Select moves the selection to index i, clamped to the item range.
func (m *Model[T]) Select(i int) {
	m.selected = min(max(i, 0), max(len(m.items)-1, 0))
	m.refreshContent()
	m.ensureSelectedVisible()
}

// Cells returns the memoized cell list.
func (m Model[T]) Cells() []Cell[T] { return m.cells }

// Geometry returns the current geometry.
func (m Model[T]) Geometry() Geometry { return m.geometry }

// TotalHeight returns the height of the grid body for the current items.
func (m Model[T]) TotalHeight() int { return TotalHeight(len(m.items), m.geometry) }

// Detector returns a copy of the scroll-proximity detector.
func (m Model[T]) Detector() Detector { return m.detector }

// ScrollPercent returns the page scroll position in [0, 1].
func (m Model[T]) ScrollPercent() float64 { return m.viewport.ScrollPercent() }

// KeyMap returns the grid's key bindings.
func (m Model[T]) KeyMap() KeyMap { return m.keymap }

func (m Model[T]) metrics() MetricsProvider {
	if m.cfg.Metrics != nil {
		return m.cfg.Metrics
	}
	return StaticMetrics(ViewportMetrics(m.viewport))
}

func (m Model[T]) columns() int {
	if m.geometry.Columns <= 0 {
		return fallbackColumns
	}
	return m.geometry.Columns
}

// refreshContent rebuilds the page content from the cell cache.
func (m *Model[T]) refreshContent() {
	if len(m.items) == 0 {
		m.body = ""
		m.viewport.SetContent("")
		return
	}

	m.body = m.renderBody()
	m.setContent()
}

// setContent pushes the cached body plus the load-more footer into the page.
func (m *Model[T]) setContent() {
	if len(m.items) == 0 {
		return
	}
	content := m.body
	if m.hasMore {
		content += "\n\n" + m.renderFooter()
	}
	m.viewport.SetContent(content)
}

func (m *Model[T]) renderBody() string {
	g := m.geometry
	cols := m.columns()
	inner := Size{
		Width:  max(g.CellWidth-2, 1),
		Height: max(g.ItemHeight-2, 1),
	}

	gapCol := strings.Repeat(" ", max(g.Gap, 0))
	rows := make([]string, 0, RowCount(len(m.cells), cols))
	for start := 0; start < len(m.cells); start += cols {
		end := min(start+cols, len(m.cells))
		parts := make([]string, 0, 2*(end-start))
		for i := start; i < end; i++ {
			if i > start && gapCol != "" {
				parts = append(parts, gapCol)
			}
			parts = append(parts, m.renderCell(m.cells[i], inner, i == m.selected))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, parts...))
	}

	body := strings.Join(rows, "\n"+strings.Repeat("\n", max(g.Gap, 0)))

	// Keep the page at least as tall as the computed grid height.
	if missing := TotalHeight(len(m.cells), g) - lipgloss.Height(body); missing > 0 {
		body += strings.Repeat("\n", missing)
	}
	return body
}

func (m *Model[T]) renderCell(c Cell[T], inner Size, selected bool) string {
	cached, ok := m.cache[c.Key]
	if !ok || cached.size != inner || cached.priority != c.Priority || cached.index != c.Index {
		cached = cachedCell{
			size:     inner,
			priority: c.Priority,
			index:    c.Index,
			body:     fit(m.render(c.Item, c.Priority, c.Index, inner), inner),
		}
		m.cache[c.Key] = cached
	}

	style := cellStyle
	if selected {
		style = selectedCellStyle
	}
	return style.Width(inner.Width).Height(inner.Height).Render(cached.body)
}

func (m Model[T]) renderFooter() string {
	if m.loading {
		return m.spinner.View() + " Loading more..."
	}
	return footerStyle.Render("More available, scroll down to load")
}

func (m *Model[T]) ensureSelectedVisible() {
	if len(m.items) == 0 || m.viewport.Height <= 0 {
		return
	}
	row := m.selected / m.columns()
	top := RowTop(row, m.geometry)
	bottom := top + m.geometry.ItemHeight

	switch {
	case top < m.viewport.YOffset:
		m.viewport.SetYOffset(top)
	case bottom > m.viewport.YOffset+m.viewport.Height:
		m.viewport.SetYOffset(bottom - m.viewport.Height)
	}
}

// fit clips s to exactly size.Height lines of at most size.Width columns.
func fit(s string, size Size) string {
	lines := strings.Split(s, "\n")
	if len(lines) > size.Height {
		lines = lines[:size.Height]
	}
	for i, line := range lines {
		if lipgloss.Width(line) > size.Width {
			lines[i] = truncate.StringWithTail(line, uint(size.Width), "…")
		}
	}
	for len(lines) < size.Height {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}
