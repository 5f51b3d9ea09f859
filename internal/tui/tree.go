package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lotas/trackerguard/internal/override"
	"github.com/lotas/trackerguard/internal/types"
)

// TreeNode represents a visible row in the tree.
type TreeNode struct {
	Category *types.Category // non-nil for category headers
	Tracker  *types.Tracker  // non-nil for tracker rows
}

// TreeModel manages the collapsible category/tracker tree.
type TreeModel struct {
	Categories []*types.Category
	Expanded   map[string]bool // category ID -> expanded
	Overlay    types.SmartBlockOverlay
	Active     bool // smart-block overlay in effect
	Cursor     int
	Offset     int // scroll offset
	Width      int
	Height     int
}

func NewTreeModel(categories []*types.Category) TreeModel {
	expanded := make(map[string]bool, len(categories))
	for _, c := range categories {
		expanded[c.ID] = true
	}
	return TreeModel{Categories: categories, Expanded: expanded}
}

// SetCategories swaps in a new snapshot of the catalog, keeping the
// expanded state and clamping the cursor. Unknown categories start expanded.
func (m *TreeModel) SetCategories(categories []*types.Category, overlay types.SmartBlockOverlay, active bool) {
	m.Categories = categories
	m.Overlay = overlay
	m.Active = active
	if m.Expanded == nil {
		m.Expanded = make(map[string]bool, len(categories))
	}
	for _, c := range categories {
		if _, ok := m.Expanded[c.ID]; !ok {
			m.Expanded[c.ID] = true
		}
	}
	nodes := m.VisibleNodes()
	if m.Cursor >= len(nodes) {
		m.Cursor = len(nodes) - 1
	}
	if m.Cursor < 0 {
		m.Cursor = 0
	}
	if m.Offset > m.Cursor {
		m.Offset = m.Cursor
	}
}

// VisibleNodes returns the flat list of currently visible nodes. Categories
// with nothing visible under the active filter are left out.
func (m TreeModel) VisibleNodes() []TreeNode {
	var nodes []TreeNode
	for _, c := range m.Categories {
		if c.NumShown == 0 {
			continue
		}
		nodes = append(nodes, TreeNode{Category: c})
		if !m.Expanded[c.ID] {
			continue
		}
		for _, t := range c.Trackers {
			if t.ShouldShow {
				nodes = append(nodes, TreeNode{Tracker: t})
			}
		}
	}
	return nodes
}

// SelectedNode returns the currently selected node, or nil.
func (m TreeModel) SelectedNode() *TreeNode {
	nodes := m.VisibleNodes()
	if m.Cursor >= 0 && m.Cursor < len(nodes) {
		return &nodes[m.Cursor]
	}
	return nil
}

// CurrentCategory returns the category under the cursor, or the parent
// category of the tracker under the cursor.
func (m TreeModel) CurrentCategory() *types.Category {
	node := m.SelectedNode()
	if node == nil {
		return nil
	}
	if node.Category != nil {
		return node.Category
	}
	for _, c := range m.Categories {
		if c.ID == node.Tracker.CategoryID {
			return c
		}
	}
	return nil
}

// MoveUp moves the cursor up.
func (m *TreeModel) MoveUp() {
	if m.Cursor > 0 {
		m.Cursor--
	}
	if m.Cursor < m.Offset {
		m.Offset = m.Cursor
	}
}

// MoveDown moves the cursor down.
func (m *TreeModel) MoveDown() {
	nodes := m.VisibleNodes()
	if m.Cursor < len(nodes)-1 {
		m.Cursor++
	}
	m.scrollIntoView()
}

func (m *TreeModel) scrollIntoView() {
	visibleRows := m.Height - 2 // account for padding
	if visibleRows < 1 {
		visibleRows = 1
	}
	if m.Cursor >= m.Offset+visibleRows {
		m.Offset = m.Cursor - visibleRows + 1
	}
}

// Toggle expands/collapses the selected category.
func (m *TreeModel) Toggle() {
	node := m.SelectedNode()
	if node == nil || node.Category == nil {
		return
	}
	m.Expanded[node.Category.ID] = !m.Expanded[node.Category.ID]
}

// CollapseOrParent collapses the selected category if expanded, or jumps to
// the parent category header if the cursor is on a tracker.
func (m *TreeModel) CollapseOrParent() {
	node := m.SelectedNode()
	if node == nil {
		return
	}
	if node.Category != nil {
		m.Expanded[node.Category.ID] = false
		return
	}
	nodes := m.VisibleNodes()
	for i := m.Cursor - 1; i >= 0; i-- {
		if nodes[i].Category != nil {
			m.Cursor = i
			if m.Cursor < m.Offset {
				m.Offset = m.Cursor
			}
			return
		}
	}
}

// ExpandOrEnter expands the selected category if collapsed, or moves into
// its first tracker if already expanded.
func (m *TreeModel) ExpandOrEnter() {
	node := m.SelectedNode()
	if node == nil || node.Category == nil {
		return
	}
	if !m.Expanded[node.Category.ID] {
		m.Expanded[node.Category.ID] = true
		return
	}
	nodes := m.VisibleNodes()
	if m.Cursor+1 < len(nodes) && nodes[m.Cursor+1].Tracker != nil {
		m.Cursor++
		m.scrollIntoView()
	}
}

// View renders the tree.
func (m TreeModel) View() string {
	nodes := m.VisibleNodes()
	if len(nodes) == 0 {
		return "No trackers match."
	}

	visibleRows := m.Height
	if visibleRows < 1 {
		visibleRows = 20
	}

	var b strings.Builder
	end := m.Offset + visibleRows
	if end > len(nodes) {
		end = len(nodes)
	}

	cursorStyle := lipgloss.NewStyle().Bold(true).Reverse(true)
	categoryStyle := lipgloss.NewStyle().Bold(true)
	countStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	blockedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("196")) // red
	warnStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("214"))    // orange

	for i := m.Offset; i < end; i++ {
		node := nodes[i]
		var line string

		if node.Category != nil {
			icon := "▶"
			if m.Expanded[node.Category.ID] {
				icon = "▼"
			}
			line = categoryStyle.Render(fmt.Sprintf("%s %s", icon, node.Category.Name)) +
				countStyle.Render(fmt.Sprintf(" (%d/%d blocked)", node.Category.NumBlocked, node.Category.NumShown))
		} else if node.Tracker != nil {
			t := node.Tracker
			decision, blocked := override.Layer(t, m.Overlay, m.Active)
			box := "[ ]"
			if blocked {
				box = blockedStyle.Render("[x]")
			}
			line = "  " + box + " " + t.Name
			if mark := layerMark(decision); mark != "" {
				line += " " + layerStyle(decision).Render(mark)
			}
			if t.Warnings.Any() {
				line += " " + warnStyle.Render("⚠")
			}
		}

		if i == m.Cursor {
			for lipgloss.Width(line) < m.Width {
				line += " "
			}
			line = cursorStyle.Render(line)
		}

		b.WriteString(line)
		if i < end-1 {
			b.WriteString("\n")
		}
	}

	return b.String()
}

// layerMark is the short tag shown next to trackers decided by something
// other than the manual flag.
func layerMark(d override.Decision) string {
	switch d {
	case override.DecidedSiteRestrict:
		return "restricted"
	case override.DecidedSiteTrust:
		return "trusted"
	case override.DecidedSmartBlock, override.DecidedSmartUnblock:
		return "smart"
	default:
		return ""
	}
}

func layerStyle(d override.Decision) lipgloss.Style {
	switch d {
	case override.DecidedSiteRestrict:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	case override.DecidedSiteTrust:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("33"))
	}
}
