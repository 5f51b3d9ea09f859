package tui

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/lotas/trackerguard/internal/applog"
	"github.com/lotas/trackerguard/internal/catalog"
	"github.com/lotas/trackerguard/internal/pagefile"
	"github.com/lotas/trackerguard/internal/panel"
	"github.com/lotas/trackerguard/internal/server"
	"github.com/lotas/trackerguard/internal/types"
)

// --- Messages ---

type pageLoadedMsg struct {
	data panel.PageData
	err  error
}

// SourceMode distinguishes live vs offline.
type SourceMode int

const (
	ModeOffline SourceMode = iota
	ModeLive
)

// Messages from the WebSocket server
type wsDisconnectedMsg struct{}
type wsIncomingMsg struct{ msg server.IncomingMsg }

// dispatchMsg carries deferred panel work onto the Update goroutine.
type dispatchMsg struct{ fn func() }

// PreferencesMsg replaces the banner preferences of the running panel.
type PreferencesMsg types.Preferences

// --- Command helpers ---

var cmdCounter atomic.Int64

func nextCmdID() string {
	return fmt.Sprintf("cmd-%d", cmdCounter.Add(1))
}

func sendCmd(srv *server.Server, msg server.OutgoingMsg) tea.Cmd {
	return func() tea.Msg {
		if msg.ID == "" {
			msg.ID = nextCmdID()
		}
		if err := srv.Send(msg); err != nil {
			applog.Error("tui.send", err, "id", msg.ID)
		}
		return nil
	}
}

// Dispatcher routes deferred panel work into a running program. Pass its
// Dispatch method as panel.Options.Dispatch and Attach the program before
// calling Run.
type Dispatcher struct {
	prog atomic.Pointer[tea.Program]
}

// Attach sets the program that receives dispatched work.
func (d *Dispatcher) Attach(p *tea.Program) { d.prog.Store(p) }

// Dispatch queues fn for the program's Update loop. Work arriving before a
// program is attached is dropped.
func (d *Dispatcher) Dispatch(fn func()) {
	p := d.prog.Load()
	if p == nil {
		applog.Info("tui.dispatch.dropped")
		return
	}
	p.Send(dispatchMsg{fn: fn})
}

// --- Model ---

// Options configures the terminal panel. A non-nil Server selects live
// mode, otherwise PagePath is read once at startup.
type Options struct {
	Panel    *panel.Panel
	Server   *server.Server
	PagePath string
	PauseFor time.Duration // duration of a timed pause (P)
}

type Model struct {
	panel    *panel.Panel
	pagePath string
	pauseFor time.Duration

	// UI state
	tree             TreeModel
	detail           DetailModel
	filterPicker     FilterPicker
	showFilterPicker bool
	searching        bool
	search           string
	loading          bool
	err              error
	message          string // result of the last command
	width            int
	height           int

	// Live mode
	mode      SourceMode
	server    *server.Server
	port      int
	connected bool
}

func NewModel(opts Options) Model {
	m := Model{
		panel:    opts.Panel,
		pagePath: opts.PagePath,
		pauseFor: opts.PauseFor,
		server:   opts.Server,
		loading:  true,
	}
	if m.panel == nil {
		m.panel = panel.New(panel.Options{})
	}
	if m.pauseFor <= 0 {
		m.pauseFor = 30 * time.Minute
	}
	if opts.Server != nil {
		m.mode = ModeLive
		m.port = opts.Server.Port()
	}
	m.tree = NewTreeModel(nil)
	return m
}

func (m Model) Init() tea.Cmd {
	if m.mode == ModeLive {
		return tea.Batch(
			listenWebSocket(m.server),
			startWSServer(m.server),
		)
	}
	return loadPage(m.pagePath)
}

func startWSServer(srv *server.Server) tea.Cmd {
	return func() tea.Msg {
		if err := srv.ListenAndServe(context.Background()); err != nil {
			applog.Error("tui.listen", err)
		}
		return wsDisconnectedMsg{}
	}
}

func loadPage(path string) tea.Cmd {
	return func() tea.Msg {
		data, err := pagefile.Read(path)
		return pageLoadedMsg{data: data, err: err}
	}
}

func listenWebSocket(srv *server.Server) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-srv.Messages()
		if !ok {
			return wsDisconnectedMsg{}
		}
		return wsIncomingMsg{msg: msg}
	}
}

// Panel returns the panel driven by the model.
func (m Model) Panel() *panel.Panel { return m.panel }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		treeWidth := m.width * TreeWidthPct / 100
		detailWidth := m.width - treeWidth - 3 // borders
		paneHeight := m.height - 6             // top bar, banner, bottom bar
		m.tree.Width = treeWidth
		m.tree.Height = paneHeight
		m.detail.Width = detailWidth
		m.detail.Height = paneHeight
		m.filterPicker.Width = m.width
		m.filterPicker.Height = m.height
		return m, nil

	case tea.KeyMsg:
		if m.showFilterPicker {
			return m.updateFilterPicker(msg)
		}
		if m.searching {
			return m.updateSearch(msg)
		}
		return m.updateTree(msg)

	case pageLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.panel.Load(msg.data)
		m.sync()
		return m, nil

	case wsIncomingMsg:
		m.connected = true
		reply, ok := server.Dispatch(m.panel, msg.msg)
		if msg.msg.Type == server.MsgPageContext {
			m.loading = false
			m.tree = NewTreeModel(nil)
		}
		m.sync()
		cmds := []tea.Cmd{listenWebSocket(m.server)}
		if ok {
			cmds = append(cmds, sendCmd(m.server, reply))
		}
		return m, tea.Batch(cmds...)

	case wsDisconnectedMsg:
		m.connected = false
		return m, nil

	case dispatchMsg:
		msg.fn()
		m.sync()
		return m, nil

	case PreferencesMsg:
		m.panel.SetPreferences(types.Preferences(msg))
		return m, nil
	}

	return m, nil
}

func (m Model) updateFilterPicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		m.filterPicker.MoveUp()
	case "down", "j":
		m.filterPicker.MoveDown()
	case "enter":
		m.panel.SetVisibility(m.filterPicker.Selected().Filter)
		m.showFilterPicker = false
		m.tree.Cursor, m.tree.Offset = 0, 0
		m.sync()
	case "esc":
		m.showFilterPicker = false
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.searching = false
		if m.search == "" {
			m.panel.SetVisibility(catalog.ShowAll())
		} else {
			m.panel.SetVisibility(catalog.ShowMatching(m.search))
		}
		m.tree.Cursor, m.tree.Offset = 0, 0
		m.sync()
	case tea.KeyEsc:
		m.searching = false
		m.search = ""
	case tea.KeyBackspace:
		if r := []rune(m.search); len(r) > 0 {
			m.search = string(r[:len(r)-1])
		}
	case tea.KeyCtrlC:
		return m, tea.Quit
	case tea.KeyRunes, tea.KeySpace:
		m.search += string(msg.Runes)
	}
	return m, nil
}

func (m Model) updateTree(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch key {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "up", "k":
		m.tree.MoveUp()
		m.detail.ResetScroll()
		return m, nil
	case "down", "j":
		m.tree.MoveDown()
		m.detail.ResetScroll()
		return m, nil
	case "enter":
		m.tree.Toggle()
		return m, nil
	case "h":
		m.tree.CollapseOrParent()
		return m, nil
	case "l":
		m.tree.ExpandOrEnter()
		return m, nil
	case "J":
		m.detail.ScrollDown()
		return m, nil
	case "K":
		m.detail.ScrollUp()
		return m, nil
	}

	if m.loading || m.err != nil {
		return m, nil
	}

	m.message = ""
	switch key {
	case " ":
		node := m.tree.SelectedNode()
		switch {
		case node == nil:
		case node.Tracker != nil:
			m.toggleTracker(node.Tracker)
		case node.Category != nil:
			m.toggleCategory(node.Category)
		}
	case "c":
		if c := m.tree.CurrentCategory(); c != nil {
			m.toggleCategory(c)
		}
	case "a":
		cnt := m.panel.Counters()
		if m.panel.BlockAll(cnt.Blocked < cnt.Total) == catalog.OutcomeNoOp {
			m.message = "no visible trackers"
		}
	case "t":
		m.setPolicy(types.Whitelist)
	case "r":
		m.setPolicy(types.Blacklist)
	case "p":
		m.panel.PauseBlocking(!m.panel.Page().PausedBlocking, 0)
	case "P":
		m.panel.PauseBlocking(true, m.pauseFor)
		m.message = fmt.Sprintf("paused for %s", m.pauseFor)
	case "x":
		m.panel.CloseNotification()
	case "f":
		m.showFilterPicker = true
		m.filterPicker = NewFilterPicker(m.panel.Filter(), m.panel.Categories())
		m.filterPicker.Width = m.width
		m.filterPicker.Height = m.height
		return m, nil
	case "/":
		m.searching = true
		m.search = ""
		return m, nil
	case "esc":
		if m.panel.Filter().Mode != types.FilterAll {
			m.panel.SetVisibility(catalog.ShowAll())
		}
	default:
		return m, nil
	}
	m.sync()
	return m, nil
}

func (m *Model) toggleTracker(t *types.Tracker) {
	outcome, err := m.panel.SetTrackerBlocked(t.CategoryID, t.ID, !t.Blocked)
	switch {
	case err != nil:
		m.message = err.Error()
	case outcome == catalog.OutcomeNoOp:
		m.message = "ignored: blocking is paused or the site has a policy"
	}
}

func (m *Model) toggleCategory(c *types.Category) {
	if _, err := m.panel.SetCategoryBlocked(c.ID, c.NumBlocked < c.NumShown); err != nil {
		m.message = err.Error()
	}
}

func (m *Model) setPolicy(kind types.ListKind) {
	st, changed := m.panel.SetPolicy(kind, "")
	if !changed {
		m.message = "no host for this page"
		return
	}
	m.message = "site policy: " + st.Policy.String()
}

// sync refreshes the tree from the panel's current snapshot.
func (m *Model) sync() {
	page := m.panel.Page()
	m.tree.SetCategories(m.panel.Categories(), page.SmartBlock, page.SmartBlockActive)
}

func (m Model) View() string {
	if m.loading {
		if m.mode == ModeLive {
			return fmt.Sprintf("\n  Waiting for extension connection on :%d...\n", m.port)
		}
		return "\n  Loading page data...\n"
	}

	if m.showFilterPicker {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, m.filterPicker.View())
	}

	if m.err != nil {
		return fmt.Sprintf("\n  Error: %v\n\n  Press 'q' to quit.\n", m.err)
	}

	var status string
	if m.mode == ModeLive {
		if m.connected {
			status = "Live ● connected"
		} else {
			status = "Live ○ disconnected"
		}
	} else {
		status = "Offline: " + m.pagePath
	}
	topBar := renderHeader(m.panel.Page(), m.panel.Policy(), m.panel.Counters(), status, m.width)
	banner := renderBanner(m.panel.Notification(), m.width)

	treeBorder := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Width(m.tree.Width).
		Height(m.tree.Height)

	detailBorder := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(m.detail.Width).
		Height(m.detail.Height)

	var detailContent string
	if node := m.tree.SelectedNode(); node != nil {
		page := m.panel.Page()
		if node.Tracker != nil {
			detailContent = m.detail.ViewTracker(node.Tracker, page.SmartBlock, page.SmartBlockActive)
		} else if node.Category != nil {
			detailContent = m.detail.ViewCategory(node.Category)
		}
	}

	left := treeBorder.Render(m.tree.View())
	right := detailBorder.Render(m.detail.ViewScrolled(detailContent))
	panes := lipgloss.JoinHorizontal(lipgloss.Top, left, right)

	bottomBarStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Padding(0, 1)
	var bottomText string
	switch {
	case m.searching:
		bottomText = "search: " + m.search + "▏ enter apply · esc cancel"
	default:
		bottomText = "space toggle · c category · a all · t trust · r restrict · p/P pause · f filter · / search · x dismiss · q quit"
		bottomText += fmt.Sprintf("  [filter: %s]", m.panel.Filter())
		if m.message != "" {
			bottomText += "  " + m.message
		}
	}
	bottomBar := bottomBarStyle.Render(bottomText)

	rows := []string{topBar}
	if banner != "" {
		rows = append(rows, banner)
	}
	rows = append(rows, panes, bottomBar)
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}
