package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/lotas/trackerguard/internal/notify"
	"github.com/lotas/trackerguard/internal/types"
)

// TreeWidthPct is the percentage of terminal width used for the tree pane.
const TreeWidthPct = 60

// renderHeader draws the top bar: page host and site policy on the left,
// counters and connection state on the right.
func renderHeader(page types.PageContext, policy types.SitePolicy, c types.Counters, status string, width int) string {
	hostStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	countStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	pausedStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))

	host := page.Host
	if host == "" {
		host = "(no page)"
	}
	left := " " + hostStyle.Render(host)
	switch policy {
	case types.PolicyTrusted:
		left += " " + lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Render("trusted")
	case types.PolicyRestricted:
		left += " " + lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("restricted")
	}
	if page.PausedBlocking {
		left += " " + pausedStyle.Render("paused")
	}

	stats := fmt.Sprintf("%d of %d blocked", c.Blocked, c.Total)
	if c.SSBlocked > 0 || c.SSAllowed > 0 {
		stats += fmt.Sprintf(" · %d restricted · %d trusted", c.SSBlocked, c.SSAllowed)
	}
	if c.SBBlocked > 0 || c.SBAllowed > 0 {
		stats += fmt.Sprintf(" · smart %d/%d", c.SBBlocked, c.SBAllowed)
	}
	left += "   " + countStyle.Render(stats)

	right := dimStyle.Render(status)
	gap := width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	padding := lipgloss.NewStyle().Width(gap)

	return left + padding.Render("") + right + " "
}

// renderBanner draws the notification banner, or nothing when hidden.
func renderBanner(n types.NotificationState, width int) string {
	if !n.Shown {
		return ""
	}
	style := lipgloss.NewStyle().Bold(true).Padding(0, 1).
		Foreground(lipgloss.Color("0")).
		Background(lipgloss.Color("214"))
	if n.Classes == notify.ClassesSuccess {
		style = style.Background(lipgloss.Color("42"))
	}
	if width > 0 {
		style = style.Width(width)
	}
	return style.Render(n.Text + "  (x to dismiss)")
}
