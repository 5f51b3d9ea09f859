// Package notify tracks changes that need a page reload and decides whether
// the panel banner is visible.
package notify

import (
	"github.com/lotas/trackerguard/internal/applog"
	"github.com/lotas/trackerguard/internal/types"
)

// Banner texts and classes. Translation happens in the view layer.
const (
	ReloadText     = "Reload the page to apply your changes."
	ClassesReload  = "alert"
	ClassesSuccess = "success"
	FilterReload   = "reload"
)

// Persister mirrors state to the background process. Calls never block and
// report nothing back.
type Persister interface {
	Persist(types.Patch)
}

// Change is one event the reconciler observes.
type Change struct {
	Kind           types.ChangeKind
	RequiresReload bool
	Text           string
	Classes        string
	FilterKind     string
	// Override forces the banner regardless of preferences. Reserved for
	// security and account messages.
	Override bool
}

// Reconciler owns the pending reload changes and the banner state.
// Not safe for concurrent use.
type Reconciler struct {
	prefs   types.Preferences
	pending types.PendingReloadChanges
	state   types.NotificationState
	persist Persister
}

// New creates a reconciler seeded with persisted pending changes.
func New(prefs types.Preferences, pending types.PendingReloadChanges, persist Persister) *Reconciler {
	if pending == nil {
		pending = types.PendingReloadChanges{}
	}
	return &Reconciler{
		prefs:   prefs,
		pending: pending.Clone(),
		persist: persist,
	}
}

// SetPreferences replaces the banner preferences. The current banner is
// left as is until the next change.
func (r *Reconciler) SetPreferences(p types.Preferences) {
	r.prefs = p
}

// Preferences returns the current banner preferences.
func (r *Reconciler) Preferences() types.Preferences {
	return r.prefs
}

// State returns the banner state.
func (r *Reconciler) State() types.NotificationState {
	return r.state
}

// Pending returns a copy of the pending reload changes.
func (r *Reconciler) Pending() types.PendingReloadChanges {
	return r.pending.Clone()
}

// RecordChange applies a change and returns the new banner state.
func (r *Reconciler) RecordChange(c Change) types.NotificationState {
	if c.RequiresReload {
		return r.recordReload(c)
	}
	if r.prefs.TrackersBannerEnabled || c.Override {
		r.show(c.Text, classesOr(c.Classes, ClassesSuccess), c.FilterKind)
	} else {
		r.hide()
	}
	return r.state
}

func (r *Reconciler) recordReload(c Change) types.NotificationState {
	if c.Kind != "" {
		if r.pending[c.Kind] {
			delete(r.pending, c.Kind)
		} else {
			r.pending[c.Kind] = true
			switch c.Kind {
			case types.ChangeWhitelist:
				delete(r.pending, types.ChangeBlacklist)
			case types.ChangeBlacklist:
				delete(r.pending, types.ChangeWhitelist)
			}
		}
	}
	r.persistPending()

	if !(r.prefs.ReloadBannerEnabled || c.Override) || (len(r.pending) == 0 && c.Text == "") {
		r.hide()
		return r.state
	}
	text := c.Text
	if text == "" {
		text = ReloadText
	}
	filter := c.FilterKind
	if filter == "" {
		filter = FilterReload
	}
	r.show(text, classesOr(c.Classes, ClassesReload), filter)
	return r.state
}

// Close hides the banner. Pending changes stay until the page reloads.
func (r *Reconciler) Close() types.NotificationState {
	r.state = types.NotificationState{
		Status:     types.BannerDismissed,
		FilterKind: r.state.FilterKind,
	}
	return r.state
}

// RestoreOnOpen resets the ephemeral banner when the panel reopens. An
// outstanding reload always brings the banner back, even after Close.
func (r *Reconciler) RestoreOnOpen() types.NotificationState {
	if len(r.pending) > 0 {
		r.show(ReloadText, ClassesReload, FilterReload)
	} else {
		r.hide()
	}
	return r.state
}

// AcknowledgeReload clears every pending change after the page reloaded.
func (r *Reconciler) AcknowledgeReload() types.NotificationState {
	hadPending := len(r.pending) > 0
	r.pending = types.PendingReloadChanges{}
	if hadPending {
		r.persistPending()
	}
	r.hide()
	return r.state
}

func (r *Reconciler) show(text, classes, filter string) {
	r.state = types.NotificationState{
		Status:     types.BannerShown,
		Shown:      true,
		Text:       text,
		Classes:    classes,
		FilterKind: filter,
	}
}

func (r *Reconciler) hide() {
	r.state = types.NotificationState{Status: types.BannerIdle}
}

func (r *Reconciler) persistPending() {
	changes := make(map[string]bool, len(r.pending))
	for k, v := range r.pending {
		changes[string(k)] = v
	}
	applog.Info("notify.pending", "count", len(changes))
	if r.persist == nil {
		return
	}
	r.persist.Persist(types.Patch{
		types.KeyNeedsReload: map[string]any{"changes": changes},
	})
}

func classesOr(classes, fallback string) string {
	if classes != "" {
		return classes
	}
	return fallback
}
