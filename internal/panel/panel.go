// Package panel is the state container for one page view. Every command
// runs synchronously: the store is updated, counters are recomputed, the
// reconciler sees the change and the resulting patch is handed to the
// persister without waiting for it.
//
// A Panel is driven from a single goroutine. Deferred work (the timed pause
// re-toggle) is routed back through the Dispatch hook.
package panel

import (
	"time"

	"github.com/lotas/trackerguard/internal/analyzer"
	"github.com/lotas/trackerguard/internal/applog"
	"github.com/lotas/trackerguard/internal/catalog"
	"github.com/lotas/trackerguard/internal/notify"
	"github.com/lotas/trackerguard/internal/pause"
	"github.com/lotas/trackerguard/internal/sitepolicy"
	"github.com/lotas/trackerguard/internal/types"
)

// PageData is everything fetched for a page on navigation.
type PageData struct {
	Page           types.PageContext
	Categories     []*types.Category
	Whitelist      []string
	Blacklist      []string
	SelectedAppIDs types.SelectedAppIDs
	Pending        types.PendingReloadChanges
}

// Options configures a Panel. Zero values are usable.
type Options struct {
	Preferences types.Preferences
	Persister   notify.Persister
	Scheduler   *pause.Scheduler
	// Dispatch runs fn on the panel's goroutine. Defaults to calling fn
	// directly, which is only correct when nothing else touches the panel.
	Dispatch func(fn func())
}

// Panel owns the state of the currently displayed page.
type Panel struct {
	page     types.PageContext
	store    catalog.Store
	selected types.SelectedAppIDs
	lists    *sitepolicy.Lists
	notify   *notify.Reconciler
	counters types.Counters
	filter   catalog.Filter

	persist   notify.Persister
	scheduler *pause.Scheduler
	dispatch  func(fn func())
}

type discard struct{}

func (discard) Persist(types.Patch) {}

// New creates an empty panel.
func New(opts Options) *Panel {
	p := &Panel{
		persist:   opts.Persister,
		scheduler: opts.Scheduler,
		dispatch:  opts.Dispatch,
		selected:  types.SelectedAppIDs{},
		lists:     sitepolicy.NewLists(nil, nil),
	}
	if p.persist == nil {
		p.persist = discard{}
	}
	if p.scheduler == nil {
		p.scheduler = pause.New()
	}
	if p.dispatch == nil {
		p.dispatch = func(fn func()) { fn() }
	}
	p.notify = notify.New(opts.Preferences, nil, p.persist)
	return p
}

// Load replaces the panel state wholesale for a newly displayed page and
// restores the reload banner if changes are still pending.
func (p *Panel) Load(d PageData) {
	p.page = d.Page
	p.filter = catalog.ShowAll()
	p.store = catalog.New(d.Categories, p.page.SmartBlock, p.page.SmartBlockActive)
	p.selected = d.SelectedAppIDs.Clone()
	p.lists = sitepolicy.NewLists(d.Whitelist, d.Blacklist)
	p.notify = notify.New(p.notify.Preferences(), d.Pending, p.persist)
	p.recompute()
	p.notify.RestoreOnOpen()
	applog.Info("panel.load", "host", p.page.Host, "trackers", p.counters.Total, "policy", p.Policy())
}

// SetPreferences updates the banner preferences.
func (p *Panel) SetPreferences(prefs types.Preferences) {
	p.notify.SetPreferences(prefs)
}

// BlockAll blocks or unblocks every visible tracker. With nothing visible
// it is a no-op and nothing is persisted.
func (p *Panel) BlockAll(blocked bool) catalog.Outcome {
	store, sel, outcome := p.store.BlockAll(blocked, p.page.SmartBlock, p.page.SmartBlockActive, p.selected)
	if outcome == catalog.OutcomeNoOp {
		applog.Debug("panel.block_all.noop", "filter", p.filter)
		return outcome
	}
	p.store, p.selected = store, sel
	p.recompute()
	p.notify.RecordChange(notify.Change{Kind: types.ChangeBlockAll, RequiresReload: true})
	p.persistSelected()
	applog.Info("panel.block_all", "blocked", blocked, "filter", p.filter)
	return outcome
}

// SetCategoryBlocked blocks or unblocks the visible trackers of a category.
func (p *Panel) SetCategoryBlocked(categoryID string, blocked bool) (catalog.Outcome, error) {
	store, sel, outcome, err := p.store.SetCategoryBlocked(categoryID, blocked, p.page.SmartBlock, p.page.SmartBlockActive, p.selected)
	if err != nil || outcome == catalog.OutcomeNoOp {
		return outcome, err
	}
	p.store, p.selected = store, sel
	p.recompute()
	p.notify.RecordChange(notify.Change{Kind: types.CategoryChange(categoryID), RequiresReload: true})
	p.persistSelected()
	applog.Info("panel.block_category", "category", categoryID, "blocked", blocked)
	return outcome, nil
}

// SetTrackerBlocked toggles a single tracker. It is a no-op while the page
// is paused or under a site policy; nothing is persisted in that case.
func (p *Panel) SetTrackerBlocked(categoryID string, trackerID int, blocked bool) (catalog.Outcome, error) {
	guard := catalog.Guard{PausedBlocking: p.page.PausedBlocking, SitePolicy: p.Policy()}
	req := catalog.TrackerRequest{TrackerID: trackerID, CategoryID: categoryID, Blocked: blocked}
	store, sel, outcome, err := p.store.SetTrackerBlocked(req, guard, p.page.SmartBlock, p.page.SmartBlockActive, p.selected)
	if err != nil || outcome == catalog.OutcomeNoOp {
		return outcome, err
	}
	p.store, p.selected = store, sel
	p.recompute()
	p.notify.RecordChange(notify.Change{Kind: types.TrackerChange(trackerID), RequiresReload: true})
	p.persistSelected()
	applog.Info("panel.block_tracker", "tracker", trackerID, "blocked", blocked)
	return outcome, nil
}

// SetVisibility applies a filter, replacing the previous one.
func (p *Panel) SetVisibility(f catalog.Filter) {
	p.filter = f
	p.store = p.store.SetVisibility(f, p.page.SmartBlock, p.page.SmartBlockActive)
	p.recompute()
}

// SetPolicy toggles the page host (or explicitHost) on a site list. When
// no host can be derived the lists are left alone, nothing is recorded and
// changed is false.
func (p *Panel) SetPolicy(kind types.ListKind, explicitHost string) (st types.SitePolicyState, changed bool) {
	st, changed = p.lists.SetPolicy(p.page, kind, explicitHost)
	if !changed {
		applog.Info("panel.site_policy.no_host", "list", kind, "url", p.page.URL)
		return st, false
	}
	p.notify.RecordChange(notify.Change{Kind: types.ChangeKind(kind), RequiresReload: true})
	p.persist.Persist(p.lists.Patch())
	applog.Info("panel.site_policy", "list", kind, "policy", st.Policy)
	return st, true
}

// AddHost adds a manually entered host from the list editor.
func (p *Panel) AddHost(kind types.ListKind, input string) (sitepolicy.AddResult, error) {
	res, err := p.lists.AddHost(kind, input)
	if err != nil {
		applog.Info("panel.add_host.rejected", "list", kind, "input", input, "reason", err)
		return res, err
	}
	p.persist.Persist(p.lists.Patch())
	return res, nil
}

// RemoveHost removes a host from a site list.
func (p *Panel) RemoveHost(kind types.ListKind, input string) bool {
	if !p.lists.RemoveHost(kind, input) {
		return false
	}
	p.persist.Persist(p.lists.Patch())
	return true
}

// PauseBlocking pauses or resumes blocking for every site. A positive
// duration schedules a re-toggle once it elapses.
func (p *Panel) PauseBlocking(paused bool, d time.Duration) {
	p.page.PausedBlocking = paused
	p.notify.RecordChange(notify.Change{Kind: types.ChangePause, RequiresReload: true})
	p.persist.Persist(types.Patch{
		types.KeyPausedBlocking:        paused,
		types.KeyPausedBlockingTimeout: int(d / time.Second),
	})
	applog.Info("panel.pause", "paused", paused, "for", d)
	if paused && d > 0 {
		p.scheduler.Schedule(d, func() {
			p.dispatch(func() { p.PauseBlocking(!p.page.PausedBlocking, 0) })
		})
	}
}

// UpdateSmartBlock swaps in a new smart-block overlay from the background.
func (p *Panel) UpdateSmartBlock(overlay types.SmartBlockOverlay, active bool) {
	p.page.SmartBlock = overlay
	p.page.SmartBlockActive = active
	p.store = p.store.Recount(overlay, active)
	p.recompute()
}

// OpenPanel is called when the panel is (re)opened.
func (p *Panel) OpenPanel() types.NotificationState {
	return p.notify.RestoreOnOpen()
}

// CloseNotification hides the banner without clearing pending changes.
func (p *Panel) CloseNotification() types.NotificationState {
	return p.notify.Close()
}

// AcknowledgeReload clears pending changes after the page reloaded.
func (p *Panel) AcknowledgeReload() types.NotificationState {
	return p.notify.AcknowledgeReload()
}

// ShowStatus shows a non-reload message such as a sign-in result. Override
// bypasses the banner preference.
func (p *Panel) ShowStatus(text, classes string, override bool) types.NotificationState {
	return p.notify.RecordChange(notify.Change{
		Kind:       types.ChangeLogin,
		Text:       text,
		Classes:    classes,
		FilterKind: string(types.ChangeLogin),
		Override:   override,
	})
}

func (p *Panel) recompute() {
	p.counters = analyzer.Aggregate(p.store.Categories(), p.page.SmartBlock, p.page.SmartBlockActive)
}

func (p *Panel) persistSelected() {
	p.persist.Persist(types.Patch{types.KeySelectedAppIDs: p.selected.Clone()})
}

// Page returns the current page context.
func (p *Panel) Page() types.PageContext { return p.page }

// Categories returns the current categories. Callers must not modify them.
func (p *Panel) Categories() []*types.Category { return p.store.Categories() }

// Store returns the current catalog snapshot.
func (p *Panel) Store() catalog.Store { return p.store }

// Counters returns the page-wide counters.
func (p *Panel) Counters() types.Counters { return p.counters }

// Selected returns a copy of the forced-blocked index.
func (p *Panel) Selected() types.SelectedAppIDs { return p.selected.Clone() }

// Filter returns the active visibility filter.
func (p *Panel) Filter() catalog.Filter { return p.filter }

// Policy derives the page's site policy from the lists.
func (p *Panel) Policy() types.SitePolicy {
	return p.lists.Policy(sitepolicy.DeriveHost(p.page, ""))
}

// SiteState returns the page's policy and both lists.
func (p *Panel) SiteState() types.SitePolicyState { return p.lists.State(p.page) }

// Notification returns the banner state.
func (p *Panel) Notification() types.NotificationState { return p.notify.State() }

// Pending returns the changes awaiting a reload.
func (p *Panel) Pending() types.PendingReloadChanges { return p.notify.Pending() }
