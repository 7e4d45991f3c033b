package tui

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/h0rv/postergrid/internal/anilist"
	"github.com/h0rv/postergrid/internal/config"
	"github.com/h0rv/postergrid/internal/domain"
	"github.com/h0rv/postergrid/internal/grid"
	"github.com/h0rv/postergrid/internal/preload"
	"github.com/h0rv/postergrid/internal/store"
)

// AppScreen represents the different screens in the application flow.
type AppScreen int

const (
	ScreenLoading AppScreen = iota
	ScreenCatalog
	ScreenGenre
	ScreenSort
	ScreenBrowse
	ScreenDetail
)

// AppOptions holds the values given on the command line or in the config
// file. Each non-empty value skips its picker.
type AppOptions struct {
	Type string
	// Genre is a genre name, or config.AllGenres to browse every genre.
	Genre  string
	Sort   string
	Browse BrowseOptions
}

// AppModel is the root Bubble Tea model that manages screen transitions.
// It runs catalog selection -> genre selection -> sort selection -> browse,
// skipping every step whose value is already known.
type AppModel struct {
	client *anilist.Client
	store  *store.Store
	ctx    context.Context
	opts   AppOptions

	query       domain.Query
	genreChosen bool

	currentScreen AppScreen
	currentModel  tea.Model
	err           error
	loadingMsg    string

	// Kept so the grid survives a trip to the detail view.
	browseModel *BrowseModel
}

// NewAppModel creates the root model.
func NewAppModel(ctx context.Context, client *anilist.Client, s *store.Store, opts AppOptions) AppModel {
	m := AppModel{
		client:        client,
		store:         s,
		ctx:           ctx,
		opts:          opts,
		query:         domain.Query{Type: opts.Type, Sort: opts.Sort},
		currentScreen: ScreenLoading,
		loadingMsg:    "Connecting to AniList...",
	}
	switch opts.Genre {
	case "":
	case config.AllGenres:
		m.genreChosen = true
	default:
		m.query.Genre = opts.Genre
		m.genreChosen = true
	}
	return m
}

// Init fetches the viewer, when logged in, and moves to the first screen.
func (m AppModel) Init() tea.Cmd {
	cmds := []tea.Cmd{advance}
	if m.client.HasToken() {
		cmds = append(cmds, m.fetchViewer())
	}
	return tea.Batch(cmds...)
}

// Update handles messages and transitions between screens.
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" && m.currentScreen != ScreenBrowse {
			if m.browseModel != nil {
				m.browseModel.Close()
			}
			return m, tea.Quit
		}

	case ErrorMsg:
		m.err = msg.Err
		return m, nil

	case QuitMsg:
		if m.browseModel != nil {
			m.browseModel.Close()
		}
		return m, tea.Quit

	case advanceMsg:
		return m.next()

	case viewerLoadedMsg:
		if msg.err != nil {
			slog.Warn("fetch viewer", slog.Any("error", msg.err))
			return m, nil
		}
		m.store.SetViewer(msg.name)
		return m, nil

	case CatalogSelectedMsg:
		m.query.Type = msg.Type
		m.currentModel = nil
		return m.next()

	case genresLoadedMsg:
		m.currentScreen = ScreenGenre
		picker := NewGenrePicker(msg.genres)
		m.currentModel = picker
		return m, picker.Init()

	case GenreSelectedMsg:
		m.query.Genre = msg.Genre
		m.genreChosen = true
		m.currentModel = nil
		return m.next()

	case SortSelectedMsg:
		m.query.Sort = msg.Sort
		m.currentModel = nil
		return m.next()

	case openDetailMsg:
		m.currentScreen = ScreenDetail
		detail := NewDetailModel(m.ctx, msg.item, m.client, m.store, m.opts.Browse.Posters)
		m.currentModel = detail
		return m, detail.Init()

	case closeDetailMsg:
		m.currentScreen = ScreenBrowse
		m.currentModel = *m.browseModel
		cmds := []tea.Cmd{tea.WindowSize()}
		if msg.changed != "" {
			id := msg.changed
			cmds = append(cmds, func() tea.Msg { return itemChangedMsg{id: id} })
		}
		return m, tea.Batch(cmds...)

	case spinner.TickMsg:
		// Both screens run spinners; each ignores the other's ids.
		if m.browseModel != nil && m.currentScreen != ScreenBrowse {
			browseCmd := m.updateBrowse(msg)
			var cmd tea.Cmd
			if m.currentModel != nil {
				m.currentModel, cmd = m.currentModel.Update(msg)
			}
			return m, tea.Batch(browseCmd, cmd)
		}

	case preload.LoadedMsg, pageLoadedMsg, statusSavedMsg, loadMoreMsg, grid.TickMsg:
		// Browse results keep arriving while the detail view is open.
		if m.browseModel != nil && m.currentScreen != ScreenBrowse {
			cmd := m.updateBrowse(msg)
			return m, cmd
		}
	}

	if m.currentModel != nil {
		var cmd tea.Cmd
		m.currentModel, cmd = m.currentModel.Update(msg)
		if m.currentScreen == ScreenBrowse {
			if bm, ok := m.currentModel.(BrowseModel); ok {
				m.browseModel = &bm
			}
		}
		return m, cmd
	}

	return m, nil
}

// updateBrowse feeds msg to the browse model kept behind another screen.
func (m *AppModel) updateBrowse(msg tea.Msg) tea.Cmd {
	updated, cmd := m.browseModel.Update(msg)
	bm := updated.(BrowseModel)
	m.browseModel = &bm
	return cmd
}

// next shows the first screen whose value is still missing, or the browse
// screen once the query is complete.
func (m AppModel) next() (tea.Model, tea.Cmd) {
	switch {
	case m.query.Type == "":
		m.currentScreen = ScreenCatalog
		picker := NewCatalogPicker()
		m.currentModel = picker
		return m, picker.Init()

	case !m.genreChosen:
		m.currentScreen = ScreenLoading
		m.loadingMsg = "Loading genres..."
		return m, m.fetchGenres()

	case m.query.Sort == "":
		m.currentScreen = ScreenSort
		picker := NewSortPicker()
		m.currentModel = picker
		return m, picker.Init()
	}

	slog.Info("browse",
		slog.String("type", m.query.Type),
		slog.String("genre", m.query.Genre),
		slog.String("sort", m.query.Sort),
	)
	m.store.Clear()
	m.store.SetQuery(m.query)

	m.currentScreen = ScreenBrowse
	browse := NewBrowseModel(m.ctx, m.store, m.client, m.opts.Browse)
	m.browseModel = &browse
	m.currentModel = browse
	return m, browse.Init()
}

// View renders the current screen.
func (m AppModel) View() string {
	if m.err != nil {
		return ErrorStyle.Render(fmt.Sprintf("Error: %v\n\nPress Ctrl+C to quit", m.err))
	}
	if m.currentModel != nil {
		return m.currentModel.View()
	}
	return m.loadingMsg + "\n\nPress Ctrl+C to quit"
}

// Screen returns the current screen.
func (m AppModel) Screen() AppScreen { return m.currentScreen }

func (m AppModel) fetchGenres() tea.Cmd {
	client, ctx := m.client, m.ctx
	return func() tea.Msg {
		genres, err := client.Genres(ctx)
		if err != nil {
			return ErrorMsg{Err: fmt.Errorf("failed to load genres: %w", err)}
		}
		return genresLoadedMsg{genres: genres}
	}
}

func (m AppModel) fetchViewer() tea.Cmd {
	client, ctx := m.client, m.ctx
	return func() tea.Msg {
		name, err := client.Viewer(ctx)
		return viewerLoadedMsg{name: name, err: err}
	}
}

func advance() tea.Msg { return advanceMsg{} }

// Custom messages for app transitions.
type (
	advanceMsg      struct{}
	genresLoadedMsg struct{ genres []string }
	viewerLoadedMsg struct {
		name string
		err  error
	}
)
