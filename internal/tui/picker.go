package tui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/h0rv/postergrid/internal/domain"
)

// choice is one entry of a picker.
type choice struct {
	value string
	label string
	hint  string
}

func (c choice) FilterValue() string { return c.label }

type choiceDelegate struct{}

func (d choiceDelegate) Height() int                             { return 1 }
func (d choiceDelegate) Spacing() int                            { return 0 }
func (d choiceDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }
func (d choiceDelegate) Render(w io.Writer, m list.Model, index int, listItem list.Item) {
	c, ok := listItem.(choice)
	if !ok {
		return
	}

	hint := ""
	if c.hint != "" {
		hint = " " + dimStyle.Render("("+c.hint+")")
	}

	if index == m.Index() {
		fmt.Fprint(w, SelectedItemStyle.Render("> "+c.label)+hint)
		return
	}
	fmt.Fprint(w, NormalItemStyle.Render("  "+c.label)+hint)
}

// PickerModel lets the user pick one of a fixed set of choices. The catalog,
// genre and sort screens are pickers that differ in their choices and in the
// message they emit.
type PickerModel struct {
	list   list.Model
	choose func(value string) tea.Msg
	err    error
}

func newPicker(title string, choices []choice, choose func(string) tea.Msg) PickerModel {
	items := make([]list.Item, len(choices))
	for i, c := range choices {
		items[i] = c
	}

	// Resized by the first WindowSizeMsg.
	l := list.New(items, choiceDelegate{}, 80, 20)
	l.Title = title
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(len(choices) > 8)
	l.Styles.Title = TitleStyle
	l.Styles.PaginationStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	l.Styles.HelpStyle = HelpStyle

	return PickerModel{list: l, choose: choose}
}

// NewCatalogPicker creates the catalog type picker.
func NewCatalogPicker() PickerModel {
	choices := []choice{
		{value: domain.MediaTypeAnime, label: "Anime", hint: "series and films"},
		{value: domain.MediaTypeManga, label: "Manga", hint: "manga, manhwa and novels"},
	}
	return newPicker("Browse", choices, func(v string) tea.Msg {
		return CatalogSelectedMsg{Type: v}
	})
}

// NewGenrePicker creates the genre picker. The first entry browses all
// genres.
func NewGenrePicker(genres []string) PickerModel {
	choices := make([]choice, 0, len(genres)+1)
	choices = append(choices, choice{label: "All genres"})
	for _, g := range genres {
		choices = append(choices, choice{value: g, label: g})
	}
	return newPicker("Select Genre", choices, func(v string) tea.Msg {
		return GenreSelectedMsg{Genre: v}
	})
}

// NewSortPicker creates the ordering picker.
func NewSortPicker() PickerModel {
	choices := make([]choice, len(domain.Sorts))
	for i, s := range domain.Sorts {
		choices[i] = choice{value: s, label: SortLabel(s)}
	}
	return newPicker("Sort By", choices, func(v string) tea.Msg {
		return SortSelectedMsg{Sort: v}
	})
}

// SortLabel returns the display name of an AniList sort value.
func SortLabel(sort string) string {
	switch sort {
	case domain.SortTrending:
		return "Trending"
	case domain.SortPopularity:
		return "Popular"
	case domain.SortScore:
		return "Top rated"
	case domain.SortNewest:
		return "Newest"
	case domain.SortTitle:
		return "Title"
	}
	return sort
}

// Init requests the window size so the list fills the terminal.
func (m PickerModel) Init() tea.Cmd {
	return tea.WindowSize()
}

// Update handles messages.
func (m PickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.list.SettingFilter() {
			break
		}
		switch msg.String() {
		case "enter":
			if c, ok := m.list.SelectedItem().(choice); ok {
				return m, func() tea.Msg { return m.choose(c.value) }
			}
		case "q":
			return m, func() tea.Msg { return QuitMsg{} }
		case "esc":
			if m.list.FilterState() == list.Unfiltered {
				return m, func() tea.Msg { return QuitMsg{} }
			}
		}

	case tea.WindowSizeMsg:
		m.list.SetWidth(msg.Width - 2)
		m.list.SetHeight(msg.Height - 2)
		return m, nil

	case ErrorMsg:
		m.err = msg.Err
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the model.
func (m PickerModel) View() string {
	if m.err != nil {
		return ErrorStyle.Render(fmt.Sprintf("Error: %v", m.err))
	}
	return m.list.View()
}
