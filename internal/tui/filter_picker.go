package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lotas/trackerguard/internal/catalog"
	"github.com/lotas/trackerguard/internal/types"
)

type FilterOption struct {
	Label  string
	Filter catalog.Filter
}

type FilterPicker struct {
	Options []FilterOption
	Cursor  int
	Width   int
	Height  int
}

// NewFilterPicker lists the fixed filters followed by one entry per category.
func NewFilterPicker(current catalog.Filter, categories []*types.Category) FilterPicker {
	options := []FilterOption{
		{"All trackers", catalog.ShowAll()},
		{"Blocked", catalog.ShowBlocked()},
		{"With warnings", catalog.ShowWarnings()},
	}
	for _, c := range categories {
		options = append(options, FilterOption{"Category: " + c.Name, catalog.ShowCategory(c.ID)})
	}
	cursor := 0
	for i, opt := range options {
		if opt.Filter.String() == current.String() {
			cursor = i
			break
		}
	}
	return FilterPicker{Options: options, Cursor: cursor}
}

func (m *FilterPicker) MoveUp() {
	if m.Cursor > 0 {
		m.Cursor--
	}
}

func (m *FilterPicker) MoveDown() {
	if m.Cursor < len(m.Options)-1 {
		m.Cursor++
	}
}

func (m FilterPicker) Selected() FilterOption {
	return m.Options[m.Cursor]
}

func (m FilterPicker) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	selectedStyle := lipgloss.NewStyle().Bold(true).Reverse(true).Padding(0, 1)
	normalStyle := lipgloss.NewStyle().Padding(0, 1)
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(1, 2)

	var b strings.Builder
	b.WriteString(titleStyle.Render("Select filter:") + "\n\n")

	for i, opt := range m.Options {
		label := opt.Label
		if i == m.Cursor {
			label = selectedStyle.Render(label)
		} else {
			label = normalStyle.Render("  " + label)
		}
		b.WriteString(label + "\n")
	}

	b.WriteString("\n" + normalStyle.Render("↑↓ navigate · enter select · esc cancel"))

	return boxStyle.Render(b.String())
}
