package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lotas/trackerguard/internal/override"
	"github.com/lotas/trackerguard/internal/types"
)

// DetailModel shows information about the selected item.
type DetailModel struct {
	Width      int
	Height     int
	Scroll     int // scroll offset
	ContentLen int // total lines in content
}

// ScrollUp adjusts the scroll offset upward.
func (m *DetailModel) ScrollUp() {
	if m.Scroll > 0 {
		m.Scroll--
	}
}

// ScrollDown adjusts the scroll offset downward.
func (m *DetailModel) ScrollDown() {
	if m.Scroll < m.ContentLen-m.Height {
		m.Scroll++
	}
	if m.Scroll < 0 {
		m.Scroll = 0
	}
}

// ResetScroll resets the scroll offset to 0.
func (m *DetailModel) ResetScroll() {
	m.Scroll = 0
}

func (m DetailModel) ViewTracker(t *types.Tracker, overlay types.SmartBlockOverlay, active bool) string {
	if t == nil {
		return ""
	}

	labelStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("245"))
	valueStyle := lipgloss.NewStyle()
	blockedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	allowedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	warnStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)

	var b strings.Builder

	b.WriteString(labelStyle.Render("Tracker") + "\n")
	name := t.Name
	if m.Width > 3 && len(name) > m.Width-2 {
		name = name[:m.Width-3] + "…"
	}
	b.WriteString(valueStyle.Render(name) + "\n\n")

	b.WriteString(labelStyle.Render("ID") + "\n")
	b.WriteString(valueStyle.Render(fmt.Sprintf("%d in %s", t.ID, t.CategoryID)) + "\n\n")

	decision, blocked := override.Layer(t, overlay, active)
	b.WriteString(labelStyle.Render("State") + "\n")
	if blocked {
		b.WriteString(blockedStyle.Render("Blocked"))
	} else {
		b.WriteString(allowedStyle.Render("Allowed"))
	}
	b.WriteString(valueStyle.Render(" by "+decision.String()) + "\n\n")

	manual := "off"
	if t.Blocked {
		manual = "on"
	}
	b.WriteString(labelStyle.Render("Manual block") + "\n")
	b.WriteString(valueStyle.Render(manual) + "\n")

	var layers []string
	if t.SSBlocked {
		layers = append(layers, "restricted on this site")
	}
	if t.SSAllowed {
		layers = append(layers, "trusted on this site")
	}
	if overlay.IsBlocked(t.ID) {
		layers = append(layers, "smart-blocked")
	}
	if overlay.IsUnblocked(t.ID) {
		layers = append(layers, "smart-unblocked")
	}
	if len(layers) > 0 {
		b.WriteString("\n" + labelStyle.Render("Overrides") + "\n")
		for _, l := range layers {
			b.WriteString("  " + l + "\n")
		}
		if !active && (overlay.IsBlocked(t.ID) || overlay.IsUnblocked(t.ID)) {
			b.WriteString(valueStyle.Render("  (smart block inactive)") + "\n")
		}
	}

	var warnings []string
	if t.Warnings.Compatibility {
		warnings = append(warnings, "Blocking may break the page")
	}
	if t.Warnings.Insecure {
		warnings = append(warnings, "Loaded insecurely")
	}
	if t.Warnings.Slow {
		warnings = append(warnings, "Slow to load")
	}
	if len(warnings) > 0 {
		b.WriteString("\n" + labelStyle.Render("Warnings") + "\n")
		for _, w := range warnings {
			b.WriteString(warnStyle.Render(w) + "\n")
		}
	}

	return b.String()
}

// ViewScrolled applies scroll offset and height truncation to the content string.
func (m *DetailModel) ViewScrolled(content string) string {
	if content == "" {
		return content
	}

	lines := strings.Split(content, "\n")
	m.ContentLen = len(lines)

	maxScroll := m.ContentLen - m.Height
	if maxScroll < 0 {
		maxScroll = 0
	}
	if m.Scroll > maxScroll {
		m.Scroll = maxScroll
	}
	if m.Scroll < 0 {
		m.Scroll = 0
	}

	end := m.Scroll + m.Height
	if m.Height <= 0 || end > len(lines) {
		end = len(lines)
	}
	return strings.Join(lines[m.Scroll:end], "\n")
}

func (m DetailModel) ViewCategory(c *types.Category) string {
	if c == nil {
		return ""
	}

	labelStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("245"))
	valueStyle := lipgloss.NewStyle()

	var b strings.Builder

	b.WriteString(labelStyle.Render("Category") + "\n")
	b.WriteString(valueStyle.Render(c.Name) + "\n\n")

	b.WriteString(labelStyle.Render("Trackers") + "\n")
	b.WriteString(valueStyle.Render(fmt.Sprintf("%d shown of %d", c.NumShown, len(c.Trackers))) + "\n\n")

	b.WriteString(labelStyle.Render("Blocked") + "\n")
	b.WriteString(valueStyle.Render(fmt.Sprintf("%d", c.NumBlocked)) + "\n")

	var warned int
	for _, t := range c.Trackers {
		if t.ShouldShow && t.Warnings.Any() {
			warned++
		}
	}
	if warned > 0 {
		b.WriteString("\n" + labelStyle.Render("Issues") + "\n")
		b.WriteString(fmt.Sprintf("  %d with warnings\n", warned))
	}

	return b.String()
}
