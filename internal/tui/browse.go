package tui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"
	"github.com/pkg/browser"

	"github.com/h0rv/postergrid/internal/anilist"
	"github.com/h0rv/postergrid/internal/domain"
	"github.com/h0rv/postergrid/internal/grid"
	"github.com/h0rv/postergrid/internal/preload"
	"github.com/h0rv/postergrid/internal/store"
)

const (
	// DefaultPageSize is how many items each load requests.
	DefaultPageSize = 24
	// headerLines is the title line plus the hint line.
	headerLines = 2
)

// openURL opens a page in the user's browser. Tests replace it.
var openURL = browser.OpenURL

// BrowseOptions configures a BrowseModel.
type BrowseOptions struct {
	// PageSize is how many items each load requests. Zero means
	// DefaultPageSize.
	PageSize int
	// Grid configures the poster grid. Its Preloader is set from Posters.
	Grid grid.Config
	// Posters preloads poster images. Optional.
	Posters *preload.Preloader
}

// BrowseModel shows the selected catalog slice as a poster grid and loads
// further pages as the user scrolls.
type BrowseModel struct {
	store    *store.Store
	client   *anilist.Client
	ctx      context.Context
	posters  *preload.Preloader
	pageSize int

	keymap      KeyMap
	help        HelpModel
	spinner     spinner.Model
	filterInput textinput.Model
	grid        grid.Model[domain.Item]

	width      int
	height     int
	showHelp   bool
	filterMode bool
	filterText string

	loading     bool // first page or refresh in flight
	loadingMore bool
	generation  int // bumped by refresh; stale pages are dropped
	saving      bool
	toast       string
	toastErr    bool
}

// NewBrowseModel creates the browse screen for the query held by s.
func NewBrowseModel(ctx context.Context, s *store.Store, client *anilist.Client, opts BrowseOptions) BrowseModel {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.Posters != nil {
		opts.Grid.Preloader = opts.Posters
	}
	if opts.Grid.EmptyText == "" {
		opts.Grid.EmptyText = "No titles match."
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = accentStyle

	ti := textinput.New()
	ti.Placeholder = "Filter titles..."
	ti.Prompt = "/ "

	keymap := DefaultKeyMap()
	m := BrowseModel{
		store:       s,
		client:      client,
		ctx:         ctx,
		posters:     opts.Posters,
		pageSize:    opts.PageSize,
		keymap:      keymap,
		help:        NewHelpModel(keymap),
		spinner:     sp,
		filterInput: ti,
		grid:        grid.New(renderItem(opts.Posters), requestLoadMore, opts.Grid),
	}

	if s.Len() == 0 {
		m.loading = true
		m.grid.SetLoadState(false, true)
	} else {
		_, hasMore := s.Pagination()
		m.grid.SetLoadState(hasMore, false)
		m.grid.SetItems(s.Items())
	}
	return m
}

type (
	loadMoreMsg   struct{}
	pageLoadedMsg struct {
		generation int
		page       int
		items      []domain.Item
		hasMore    bool
		err        error
	}
	statusSavedMsg struct {
		id     string
		status string
		err    error
	}
)

// requestLoadMore is the grid's load-more callback. The grid gates it to one
// call per loading cycle; the page itself is fetched when the message
// arrives.
func requestLoadMore() tea.Cmd {
	return func() tea.Msg { return loadMoreMsg{} }
}

// Init starts the spinners and loads the first page if the store is empty.
func (m BrowseModel) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick, m.grid.Init(), tea.WindowSize()}
	if m.loading {
		cmds = append(cmds, m.fetchPage(m.generation, 1))
	}
	return tea.Batch(cmds...)
}

// Update handles messages.
func (m BrowseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil

	case loadMoreMsg:
		return m.loadMore()

	case pageLoadedMsg:
		return m.pageLoaded(msg)

	case statusSavedMsg:
		return m.statusSaved(msg)

	case itemChangedMsg:
		cmd := m.applyFilter()
		m.grid.Invalidate(itemKey(msg.id))
		return m, cmd

	case preload.LoadedMsg:
		m.postersLoaded(msg)
		return m, nil

	case spinner.TickMsg:
		var cmd, gridCmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.grid, gridCmd = m.grid.Update(msg)
		return m, tea.Batch(cmd, gridCmd)

	case grid.TickMsg:
		var cmd tea.Cmd
		m.grid, cmd = m.grid.Update(msg)
		return m, cmd

	case tea.MouseMsg:
		if m.showHelp || m.filterMode {
			return m, nil
		}
		var cmd tea.Cmd
		m.grid, cmd = m.grid.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	}

	return m, nil
}

func (m BrowseModel) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.grid.Close()
		return m, tea.Quit
	}

	if m.showHelp {
		switch msg.String() {
		case "?", "q", "esc":
			m.showHelp = false
		}
		return m, nil
	}

	if m.filterMode {
		return m.handleFilterKey(msg)
	}

	m.toast = ""

	switch {
	case key.Matches(msg, m.keymap.Quit):
		m.grid.Close()
		return m, tea.Quit

	case key.Matches(msg, m.keymap.Help):
		m.showHelp = true

	case key.Matches(msg, m.keymap.Filter):
		m.filterMode = true
		m.filterInput.SetValue(m.filterText)
		m.resize()
		cmd := m.filterInput.Focus()
		return m, cmd

	case key.Matches(msg, m.keymap.Refresh):
		return m.refresh()

	case key.Matches(msg, m.keymap.LoadMore):
		cmd := m.grid.LoadMore()
		return m, cmd

	case key.Matches(msg, m.keymap.Open):
		if item, ok := m.grid.Selected(); ok && item.URL != "" {
			if err := openURL(item.URL); err != nil {
				m.setToast(fmt.Sprintf("Open failed: %v", err), true)
			}
		}

	case key.Matches(msg, m.keymap.Detail):
		if item, ok := m.grid.Selected(); ok {
			return m, func() tea.Msg { return openDetailMsg{item: item} }
		}

	case key.Matches(msg, m.keymap.Status):
		return m.cycleStatus()

	default:
		var cmd tea.Cmd
		m.grid, cmd = m.grid.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m BrowseModel) handleFilterKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keymap.ApplyFilter):
		m.filterMode = false
		m.filterInput.Blur()
		m.resize()
		return m, nil

	case key.Matches(msg, m.keymap.CancelFilter):
		m.filterMode = false
		m.filterInput.Blur()
		m.filterInput.SetValue("")
		m.filterText = ""
		m.resize()
		cmd := m.applyFilter()
		return m, cmd
	}

	var cmd tea.Cmd
	m.filterInput, cmd = m.filterInput.Update(msg)
	if v := m.filterInput.Value(); v != m.filterText {
		m.filterText = v
		m.grid.Select(0)
		filterCmd := m.applyFilter()
		return m, tea.Batch(cmd, filterCmd)
	}
	return m, cmd
}

func (m BrowseModel) loadMore() (tea.Model, tea.Cmd) {
	if m.loading || m.loadingMore {
		return m, nil
	}
	_, hasMore := m.store.Pagination()
	if !hasMore {
		m.grid.SetLoadState(false, false)
		return m, nil
	}

	m.loadingMore = true
	m.grid.SetLoadState(true, true)
	return m, m.fetchPage(m.generation, m.store.NextPage())
}

func (m BrowseModel) refresh() (tea.Model, tea.Cmd) {
	m.generation++
	m.loading = true
	m.loadingMore = false
	m.grid.SetLoadState(false, true)
	return m, m.fetchPage(m.generation, 1)
}

func (m BrowseModel) pageLoaded(msg pageLoadedMsg) (tea.Model, tea.Cmd) {
	if msg.generation != m.generation {
		return m, nil
	}

	refresh := msg.page == 1
	m.loading = false
	m.loadingMore = false

	if msg.err != nil {
		slog.Error("load page", slog.Int("page", msg.page), slog.Any("error", msg.err))
		_, hasMore := m.store.Pagination()
		m.grid.SetLoadState(hasMore, false)
		m.setToast(fmt.Sprintf("Load failed: %v", msg.err), true)
		return m, nil
	}

	if refresh {
		m.store.Clear()
		m.grid.Invalidate()
	}
	replaced := m.store.Append(msg.items)
	m.store.SetPagination(msg.page, msg.hasMore)
	m.grid.SetLoadState(msg.hasMore, false)

	slog.Debug("page loaded",
		slog.Int("page", msg.page),
		slog.Int("items", len(msg.items)),
		slog.Int("total", m.store.Len()),
		slog.Bool("has_more", msg.hasMore),
	)

	cmd := m.applyFilter()
	if len(replaced) > 0 {
		keys := make([]string, len(replaced))
		for i, id := range replaced {
			keys[i] = itemKey(id)
		}
		m.grid.Invalidate(keys...)
	}
	return m, cmd
}

func (m BrowseModel) cycleStatus() (tea.Model, tea.Cmd) {
	item, ok := m.grid.Selected()
	if !ok || m.saving {
		return m, nil
	}
	if !m.client.HasToken() {
		m.setToast("Set ANILIST_TOKEN to edit your list", true)
		return m, nil
	}
	if item.ID == "" {
		return m, nil
	}

	next := domain.NextListStatus(item.ListStatus)
	if err := m.store.SetListStatus(item.ID, next); err != nil {
		m.setToast(err.Error(), true)
		return m, nil
	}
	m.saving = true
	cmd := m.applyFilter()
	m.grid.Invalidate(itemKey(item.ID))

	client, ctx, id := m.client, m.ctx, item.ID
	save := func() tea.Msg {
		err := client.SaveListStatus(ctx, id, next)
		return statusSavedMsg{id: id, status: next, err: err}
	}
	return m, tea.Batch(cmd, save)
}

func (m BrowseModel) statusSaved(msg statusSavedMsg) (tea.Model, tea.Cmd) {
	m.saving = false
	if msg.err != nil {
		slog.Error("save list status", slog.String("id", msg.id), slog.Any("error", msg.err))
		if err := m.store.Rollback(); err != nil {
			slog.Warn("rollback list status", slog.Any("error", err))
		}
		cmd := m.applyFilter()
		m.grid.Invalidate(itemKey(msg.id))
		m.setToast(fmt.Sprintf("Save failed: %v", msg.err), true)
		return m, cmd
	}

	m.store.Commit()
	m.setToast("Saved as "+strings.ToLower(msg.status), false)
	return m, nil
}

// postersLoaded re-renders the cells whose poster just finished loading.
func (m *BrowseModel) postersLoaded(msg preload.LoadedMsg) {
	done := make(map[string]bool, len(msg.Posters))
	for _, p := range msg.Posters {
		if p.Ok() {
			done[p.URL] = true
		}
	}
	if len(done) == 0 {
		return
	}

	var keys []string
	for _, c := range m.grid.Cells() {
		if done[c.Item.Poster] {
			keys = append(keys, c.Key)
		}
	}
	if len(keys) > 0 {
		m.grid.Invalidate(keys...)
	}
}

// applyFilter hands the grid the stored items, narrowed by the filter.
func (m *BrowseModel) applyFilter() tea.Cmd {
	return m.grid.SetItems(m.store.Filter(m.filterText))
}

func (m *BrowseModel) setToast(text string, isErr bool) {
	m.toast = text
	m.toastErr = isErr
}

func (m *BrowseModel) resize() {
	h := m.height - headerLines
	if m.filterMode {
		h--
	}
	m.grid.SetSize(m.width, max(h, 1))
}

// fetchPage loads page of the store's query. It reads everything it needs
// before returning so the command does not touch the model.
func (m BrowseModel) fetchPage(generation, page int) tea.Cmd {
	client, ctx, q, perPage := m.client, m.ctx, m.store.Query(), m.pageSize
	return func() tea.Msg {
		items, hasMore, err := client.Page(ctx, q, page, perPage)
		return pageLoadedMsg{
			generation: generation,
			page:       page,
			items:      items,
			hasMore:    hasMore,
			err:        err,
		}
	}
}

// View renders the browse screen.
func (m BrowseModel) View() string {
	width := m.width
	if width == 0 {
		width = 80
	}
	height := m.height
	if height == 0 {
		height = 24
	}
	bodyHeight := max(height-headerLines, 1)

	sections := []string{m.renderHeader(width), m.renderHints(width)}
	if m.filterMode {
		sections = append(sections, m.filterInput.View())
		bodyHeight = max(bodyHeight-1, 1)
	}

	switch {
	case m.showHelp:
		sections = append(sections, lipgloss.Place(width, bodyHeight, lipgloss.Center, lipgloss.Center, m.help.View(width)))
	case m.loading && m.store.Len() == 0:
		sections = append(sections, lipgloss.Place(width, bodyHeight, lipgloss.Center, lipgloss.Center, m.spinner.View()+" Loading..."))
	default:
		sections = append(sections, m.grid.View())
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderHeader renders the query on the left and counts on the right.
func (m BrowseModel) renderHeader(width int) string {
	q := m.store.Query()
	genre := q.Genre
	if genre == "" {
		genre = "All genres"
	}
	title := fmt.Sprintf("%s · %s · %s", titleCase(q.Type), genre, SortLabel(q.Sort))

	var status []string
	if m.loading {
		status = append(status, m.spinner.View()+"refreshing")
	}
	count := humanize.Comma(int64(m.store.Len())) + " items"
	if m.filterText != "" {
		count = fmt.Sprintf("%s of %s", humanize.Comma(int64(len(m.grid.Cells()))), count)
		status = append(status, "/"+m.filterText)
	}
	status = append(status, count)
	if viewer := m.store.Viewer(); viewer != "" {
		status = append(status, "@"+viewer)
	}

	right := strings.Join(status, " | ")
	padding := max(width-lipgloss.Width(title)-lipgloss.Width(right)-1, 1)
	return headerTitleStyle.Render(title) + strings.Repeat(" ", padding) + dimStyle.Render(right)
}

// renderHints renders key hints on the left and a toast or the position on
// the right.
func (m BrowseModel) renderHints(width int) string {
	left := m.help.ShortView(width / 2)

	var right string
	switch {
	case m.toast != "" && m.toastErr:
		right = ErrorStyle.Render(m.toast)
	case m.toast != "":
		right = successStyle.Render(m.toast)
	case len(m.grid.Cells()) > 0:
		right = dimStyle.Render(fmt.Sprintf("%d/%d", m.grid.SelectedIndex()+1, len(m.grid.Cells())))
	}

	padding := max(width-lipgloss.Width(left)-lipgloss.Width(right)-1, 1)
	return left + strings.Repeat(" ", padding) + right
}

// Close stops the grid from requesting more items.
func (m *BrowseModel) Close() {
	m.grid.Close()
}

// renderItem returns the cell renderer. Its output depends on the item, its
// position and whether posters has the item's poster cached; postersLoaded
// invalidates cells when the latter changes.
func renderItem(posters *preload.Preloader) grid.RenderFunc[domain.Item] {
	return func(item domain.Item, priority bool, index int, size grid.Size) string {
		lines := make([]string, 0, size.Height)

		// Poster block stand-in: a marker and the rank.
		mark := "□"
		if posters != nil && item.Poster != "" {
			if _, ok := posters.Get(item.Poster); ok {
				mark = "▣"
			} else if priority {
				mark = "◌"
			}
		}
		top := dimStyle.Render(fmt.Sprintf("%s #%d", mark, index+1))
		if item.Rating > 0 {
			top += " " + ratingStyle.Render(fmt.Sprintf("★ %d%%", item.Rating))
		}
		lines = append(lines, top)

		textLines := 3
		for len(lines) < size.Height-textLines {
			lines = append(lines, "")
		}

		title := wordwrap.String(item.Title, size.Width)
		titleLines := strings.SplitN(title, "\n", 3)
		if len(titleLines) > 2 {
			titleLines = titleLines[:2]
			titleLines[1] = truncate.String(titleLines[1], uint(max(size.Width-1, 0))) + "…"
		}
		for _, l := range titleLines {
			lines = append(lines, cellTitleStyle.Render(l))
		}

		var meta []string
		if item.Year > 0 {
			meta = append(meta, fmt.Sprint(item.Year))
		}
		if item.Format != "" {
			meta = append(meta, item.Format)
		}
		if item.ListStatus != "" {
			meta = append(meta, listStatusStyle.Render(strings.ToLower(item.ListStatus)))
		}
		lines = append(lines, dimStyle.Render(strings.Join(meta, " · ")))

		return strings.Join(lines, "\n")
	}
}

func itemKey(id string) string {
	return grid.Key(domain.Item{ID: id}, 0)
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return s[:1] + strings.ToLower(s[1:])
}
