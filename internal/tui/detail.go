package tui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/muesli/reflow/wordwrap"

	"github.com/h0rv/postergrid/internal/anilist"
	"github.com/h0rv/postergrid/internal/domain"
	"github.com/h0rv/postergrid/internal/preload"
	"github.com/h0rv/postergrid/internal/store"
)

const (
	leftPanelRatio = 0.35
	minLeftWidth   = 30
	maxLeftWidth   = 50
	borderSize     = 2
	noteHeight     = 6
	reviewLimit    = 5
)

// DetailModel shows one item: metadata on the left, description and reviews
// on the right, and an editor for the viewer's private note.
type DetailModel struct {
	client  *anilist.Client
	store   *store.Store
	posters *preload.Preloader
	ctx     context.Context

	item    domain.Item
	reviews []domain.Review

	keymap    DetailKeyMap
	help      HelpModel
	spinner   spinner.Model
	noteInput textarea.Model
	viewport  viewport.Model

	noteMode       bool
	confirmExit    bool
	saving         bool
	loadingReviews bool
	reviewsError   string
	errorMsg       string
	successMsg     string
	changed        bool

	width  int
	height int
}

// NewDetailModel creates the detail view for item. posters may be nil.
func NewDetailModel(ctx context.Context, item domain.Item, client *anilist.Client, s *store.Store, posters *preload.Preloader) DetailModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = accentStyle

	ta := textarea.New()
	ta.Placeholder = "Private note, only you can see it..."
	ta.CharLimit = 2000
	ta.SetHeight(noteHeight)
	ta.SetWidth(40)
	ta.ShowLineNumbers = false
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.FocusedStyle.Base = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("228"))
	ta.BlurredStyle.Base = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240"))

	vp := viewport.New(40, 10)
	vp.MouseWheelEnabled = true
	vp.MouseWheelDelta = 3

	keymap := DefaultDetailKeyMap()
	m := DetailModel{
		client:         client,
		store:          s,
		posters:        posters,
		ctx:            ctx,
		item:           item,
		keymap:         keymap,
		help:           NewHelpModel(keymap),
		spinner:        sp,
		noteInput:      ta,
		viewport:       vp,
		loadingReviews: item.ID != "",
	}
	m.updateViewportContent()
	return m
}

type (
	reviewsLoadedMsg struct {
		reviews []domain.Review
		err     error
	}
	noteSavedMsg   struct{ err error }
	mediaLoadedMsg struct {
		item domain.Item
		err  error
	}
)

// Init loads the reviews and refreshes the item.
func (m DetailModel) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick, tea.WindowSize()}
	if m.loadingReviews {
		cmds = append(cmds, m.loadReviews(), m.loadMedia())
	}
	return tea.Batch(cmds...)
}

// Update handles messages.
func (m DetailModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeComponents()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case reviewsLoadedMsg:
		m.loadingReviews = false
		if msg.err != nil {
			m.reviewsError = msg.err.Error()
			m.updateViewportContent()
			return m, nil
		}
		m.reviews = msg.reviews
		m.updateViewportContent()
		return m, nil

	case noteSavedMsg:
		return m.noteSaved(msg)

	case mediaLoadedMsg:
		return m.mediaLoaded(msg)

	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.MouseMsg:
		if !m.noteMode {
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	if m.noteMode {
		var cmd tea.Cmd
		m.noteInput, cmd = m.noteInput.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *DetailModel) resizeComponents() {
	leftWidth := min(max(int(float64(m.width)*leftPanelRatio), minLeftWidth), maxLeftWidth)
	rightWidth := max(m.width-leftWidth-1, 30)
	contentHeight := max(m.height-2, 10) // header and footer

	m.viewport.Width = rightWidth - borderSize - 2
	m.viewport.Height = max(contentHeight-borderSize-1, 3) // panel title
	m.noteInput.SetWidth(rightWidth - borderSize - 4)

	m.updateViewportContent()
}

func (m DetailModel) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	if m.confirmExit {
		switch msg.String() {
		case "y", "Y":
			m.confirmExit = false
			m.noteMode = false
			m.noteInput.Blur()
			return m, m.close()
		case "n", "N", "esc":
			m.confirmExit = false
			return m, nil
		case "s", "S":
			m.confirmExit = false
			return m.saveNote()
		}
		return m, nil
	}

	if m.noteMode {
		switch {
		case key.Matches(msg, m.keymap.CancelNote):
			if m.noteInput.Value() != m.item.Notes {
				m.confirmExit = true
				return m, nil
			}
			m.noteMode = false
			m.noteInput.Blur()
			return m, nil
		case key.Matches(msg, m.keymap.SaveNote):
			return m.saveNote()
		}
		var cmd tea.Cmd
		m.noteInput, cmd = m.noteInput.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keymap.Back):
		return m, m.close()
	case key.Matches(msg, m.keymap.Open):
		if m.item.URL != "" {
			if err := openURL(m.item.URL); err != nil {
				m.errorMsg = fmt.Sprintf("Open failed: %v", err)
			}
		}
	case key.Matches(msg, m.keymap.Note):
		if !m.client.HasToken() {
			m.errorMsg = "Set ANILIST_TOKEN to write notes"
			return m, nil
		}
		m.noteMode = true
		m.errorMsg = ""
		m.successMsg = ""
		m.noteInput.SetValue(m.item.Notes)
		cmd := m.noteInput.Focus()
		return m, cmd
	case key.Matches(msg, m.keymap.Down):
		m.viewport.LineDown(1)
	case key.Matches(msg, m.keymap.Up):
		m.viewport.LineUp(1)
	case key.Matches(msg, m.keymap.HalfDown):
		m.viewport.HalfViewDown()
	case key.Matches(msg, m.keymap.HalfUp):
		m.viewport.HalfViewUp()
	case key.Matches(msg, m.keymap.Top):
		m.viewport.GotoTop()
	case key.Matches(msg, m.keymap.Bottom):
		m.viewport.GotoBottom()
	}

	return m, nil
}

func (m DetailModel) close() tea.Cmd {
	changed := ""
	if m.changed {
		changed = m.item.ID
	}
	return func() tea.Msg { return closeDetailMsg{changed: changed} }
}

// saveNote stores the note optimistically and sends it to AniList.
func (m DetailModel) saveNote() (tea.Model, tea.Cmd) {
	notes := strings.TrimSpace(m.noteInput.Value())
	if err := m.store.SetNotes(m.item.ID, notes); err != nil {
		m.errorMsg = err.Error()
		return m, nil
	}
	m.item.Notes = notes
	m.saving = true
	m.noteMode = false
	m.noteInput.Blur()

	client, ctx, id := m.client, m.ctx, m.item.ID
	return m, func() tea.Msg {
		return noteSavedMsg{err: client.SaveNotes(ctx, id, notes)}
	}
}

func (m DetailModel) noteSaved(msg noteSavedMsg) (tea.Model, tea.Cmd) {
	m.saving = false
	if msg.err != nil {
		slog.Error("save note", slog.String("id", m.item.ID), slog.Any("error", msg.err))
		if err := m.store.Rollback(); err != nil {
			slog.Warn("rollback note", slog.Any("error", err))
		}
		if item, err := m.store.Item(m.item.ID); err == nil {
			m.item = item
		}
		m.errorMsg = fmt.Sprintf("Failed: %v", msg.err)
		return m, nil
	}

	m.store.Commit()
	m.changed = true
	m.successMsg = "Note saved"
	return m, nil
}

// mediaLoaded applies a fresh copy of the item unless the user is editing or
// saving it.
func (m DetailModel) mediaLoaded(msg mediaLoadedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		slog.Warn("refresh item", slog.String("id", m.item.ID), slog.Any("error", msg.err))
		return m, nil
	}
	if m.noteMode || m.saving || msg.item.ID != m.item.ID {
		return m, nil
	}

	m.store.Append([]domain.Item{msg.item})
	m.item = msg.item
	m.changed = true
	m.updateViewportContent()
	return m, nil
}

func (m DetailModel) loadMedia() tea.Cmd {
	client, ctx, id := m.client, m.ctx, m.item.ID
	return func() tea.Msg {
		item, err := client.Media(ctx, id)
		return mediaLoadedMsg{item: item, err: err}
	}
}

func (m DetailModel) loadReviews() tea.Cmd {
	client, ctx, id := m.client, m.ctx, m.item.ID
	return func() tea.Msg {
		reviews, err := client.Reviews(ctx, id, reviewLimit)
		return reviewsLoadedMsg{reviews: reviews, err: err}
	}
}

// View renders the split detail view.
func (m DetailModel) View() string {
	width := m.width
	if width == 0 {
		width = 100
	}
	height := m.height
	if height == 0 {
		height = 30
	}

	leftWidth := min(max(int(float64(width)*leftPanelRatio), minLeftWidth), maxLeftWidth)
	rightWidth := width - leftWidth - 1
	contentHeight := max(height-2, 10)

	leftPanel := panelBorderStyle.
		Width(leftWidth - borderSize).
		Height(contentHeight - borderSize).
		Render(m.renderLeftPanel(leftWidth-borderSize, contentHeight-borderSize))

	rightBorder := focusedPanelBorderStyle
	if m.noteMode {
		rightBorder = panelBorderStyle
	}
	rightPanel := rightBorder.
		Width(rightWidth - borderSize).
		Height(contentHeight - borderSize).
		Render(m.renderRightPanel())

	panels := lipgloss.JoinHorizontal(lipgloss.Top, leftPanel, " ", rightPanel)
	return lipgloss.JoinVertical(lipgloss.Left, m.renderHeader(width), panels, m.renderFooter(width))
}

func (m DetailModel) renderHeader(width int) string {
	switch {
	case m.confirmExit:
		return warningStyle.Render("Unsaved note! [Y]discard [N]keep editing [S]save")
	case m.noteMode:
		return dimStyle.Render("[ctrl+s]save [esc]cancel") + "  " + reviewAuthorStyle.Render("Editing note...")
	}
	return dimStyle.Render(m.help.ShortView(width))
}

func (m DetailModel) renderFooter(width int) string {
	var left, right string
	switch {
	case m.saving:
		left = m.spinner.View() + " Saving..."
	case m.successMsg != "":
		left = successStyle.Render("✓ " + m.successMsg)
	case m.errorMsg != "":
		left = ErrorStyle.Render("✗ " + m.errorMsg)
	case m.noteMode:
		left = dimStyle.Render(fmt.Sprintf("%d chars", len(m.noteInput.Value())))
	}

	if !m.noteMode && m.viewport.TotalLineCount() > m.viewport.Height {
		switch {
		case m.viewport.AtTop():
			right = "TOP"
		case m.viewport.AtBottom():
			right = "END"
		default:
			right = fmt.Sprintf("%d%%", int(m.viewport.ScrollPercent()*100))
		}
	}

	padding := max(width-lipgloss.Width(left)-lipgloss.Width(right)-2, 1)
	return left + strings.Repeat(" ", padding) + dimStyle.Render(right)
}

// renderLeftPanel renders the metadata panel.
func (m DetailModel) renderLeftPanel(width, height int) string {
	var b strings.Builder
	item := m.item

	b.WriteString(detailTitleStyle.Render(wordwrap.String(item.Title, max(width-2, 1))))
	b.WriteString("\n\n")

	field := func(label, value string) {
		if value == "" {
			return
		}
		b.WriteString(detailLabelStyle.Render(label + ": "))
		b.WriteString(detailValueStyle.Render(value))
		b.WriteString("\n")
	}

	field("Format", item.Format)
	if item.Year > 0 {
		field("Year", fmt.Sprint(item.Year))
	}
	field("Status", strings.ToLower(item.Status))
	if item.Episodes > 0 {
		field("Length", humanize.Comma(int64(item.Episodes)))
	}
	if item.Rating > 0 {
		field("Score", fmt.Sprintf("%d%%", item.Rating))
	}
	if len(item.Genres) > 0 {
		field("Genres", wordwrap.String(strings.Join(item.Genres, ", "), max(width-10, 10)))
	}
	field("On list", strings.ToLower(item.ListStatus))
	field("Poster", m.posterInfo())

	if item.Notes != "" {
		b.WriteString("\n")
		b.WriteString(detailLabelStyle.Render("Note:"))
		b.WriteString("\n")
		lines := strings.Split(wordwrap.String(item.Notes, max(width-2, 1)), "\n")
		if room := height - strings.Count(b.String(), "\n") - 1; len(lines) > room && room > 0 {
			lines = append(lines[:room-1], "...")
		}
		b.WriteString(strings.Join(lines, "\n"))
	}

	return b.String()
}

// posterInfo describes the preloaded poster, if any.
func (m DetailModel) posterInfo() string {
	if m.item.Poster == "" {
		return "none"
	}
	if m.posters == nil {
		return ""
	}
	p, ok := m.posters.Get(m.item.Poster)
	if !ok {
		return "not loaded"
	}
	info := humanize.Bytes(uint64(p.Size))
	if p.ContentType != "" {
		info += " " + p.ContentType
	}
	return info
}

// renderRightPanel renders the description and reviews, or the note editor.
func (m DetailModel) renderRightPanel() string {
	var b strings.Builder

	title := "About"
	if n := len(m.reviews); n > 0 {
		title = fmt.Sprintf("About · %d reviews", n)
	}
	b.WriteString(detailLabelStyle.Render(title))
	b.WriteString("\n")

	if m.noteMode {
		b.WriteString("\n")
		b.WriteString(reviewAuthorStyle.Render("Private note"))
		b.WriteString("\n\n")
		b.WriteString(m.noteInput.View())
		b.WriteString("\n\n")
		b.WriteString(dimStyle.Render("ctrl+s to save • esc to cancel"))
		return b.String()
	}

	b.WriteString(m.viewport.View())
	return b.String()
}

// updateViewportContent lays out the description followed by the reviews.
func (m *DetailModel) updateViewportContent() {
	var b strings.Builder
	wrapWidth := max(m.viewport.Width-2, 30)

	if m.item.Description != "" {
		b.WriteString(detailValueStyle.Render(wordwrap.String(m.item.Description, wrapWidth)))
	} else {
		b.WriteString(dimStyle.Render("No description."))
	}

	switch {
	case m.loadingReviews:
		b.WriteString("\n\n")
		b.WriteString(m.spinner.View() + " Loading reviews...")
	case m.reviewsError != "":
		b.WriteString("\n\n")
		b.WriteString(ErrorStyle.Render("Reviews: " + m.reviewsError))
	}

	for _, r := range m.reviews {
		b.WriteString("\n\n")
		b.WriteString(dimStyle.Render(strings.Repeat("─", min(20, wrapWidth))))
		b.WriteString("\n\n")

		author := r.Author
		if author == "" {
			author = "(deleted)"
		}
		b.WriteString(reviewAuthorStyle.Render(author))
		if r.Score > 0 {
			b.WriteString(" ")
			b.WriteString(ratingStyle.Render(fmt.Sprintf("%d/100", r.Score)))
		}
		if r.CreatedAt > 0 {
			b.WriteString(" ")
			b.WriteString(dimStyle.Render(humanize.Time(time.Unix(r.CreatedAt, 0))))
		}
		b.WriteString("\n")
		if r.Summary != "" {
			b.WriteString(detailValueStyle.Italic(true).Render(wordwrap.String(r.Summary, wrapWidth)))
			b.WriteString("\n")
		}
		b.WriteString(detailValueStyle.Render(wordwrap.String(r.Body, wrapWidth)))
	}

	m.viewport.SetContent(b.String())
}
