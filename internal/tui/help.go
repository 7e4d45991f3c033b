package tui

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/lipgloss"
)

// HelpOverlayStyle is the frame around the help overlay.
var HelpOverlayStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(lipgloss.Color("62")).
	Padding(1, 2)

// HelpModel renders the full help of a key map as an overlay.
type HelpModel struct {
	help   help.Model
	keymap help.KeyMap
}

// NewHelpModel creates a help overlay for keymap.
func NewHelpModel(keymap help.KeyMap) HelpModel {
	h := help.New()
	h.ShowAll = true
	return HelpModel{help: h, keymap: keymap}
}

// View renders the overlay to fit width.
func (m HelpModel) View(width int) string {
	m.help.Width = max(width-6, 0) // border and padding
	return HelpOverlayStyle.Render(m.help.View(m.keymap))
}

// ShortView renders the one-line help.
func (m HelpModel) ShortView(width int) string {
	m.help.ShowAll = false
	m.help.Width = width
	return m.help.View(m.keymap)
}
