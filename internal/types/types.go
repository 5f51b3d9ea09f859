package types

import (
	"sort"
	"strconv"
)

// Tracker represents a single third-party script or resource detected on the page.
type Tracker struct {
	ID         int
	CategoryID string
	Name       string
	Blocked    bool // manual block flag
	SSAllowed  bool // site-specific trust
	SSBlocked  bool // site-specific restrict
	ShouldShow bool // visibility projection from the active filter
	Warnings   Warnings
}

// Warnings are the per-tracker notices surfaced by the background process.
type Warnings struct {
	Compatibility bool
	Insecure      bool
	Slow          bool
}

// Any reports whether at least one warning is set.
func (w Warnings) Any() bool {
	return w.Compatibility || w.Insecure || w.Slow
}

// Category groups trackers by purpose (advertising, analytics, ...).
// NumShown and NumBlocked are caches over the visible trackers.
type Category struct {
	ID         string
	Name       string
	Trackers   []*Tracker
	NumShown   int
	NumBlocked int
}

// SmartBlockOverlay is the automated allow/block layer supplied by the
// background process. Nil maps behave as empty.
type SmartBlockOverlay struct {
	Blocked   map[int]struct{}
	Unblocked map[int]struct{}
}

// IsBlocked reports whether the overlay force-blocks the tracker.
func (o SmartBlockOverlay) IsBlocked(id int) bool {
	_, ok := o.Blocked[id]
	return ok
}

// IsUnblocked reports whether the overlay force-allows the tracker.
func (o SmartBlockOverlay) IsUnblocked(id int) bool {
	_, ok := o.Unblocked[id]
	return ok
}

// NewOverlay builds an overlay from id slices.
func NewOverlay(blocked, unblocked []int) SmartBlockOverlay {
	o := SmartBlockOverlay{
		Blocked:   make(map[int]struct{}, len(blocked)),
		Unblocked: make(map[int]struct{}, len(unblocked)),
	}
	for _, id := range blocked {
		o.Blocked[id] = struct{}{}
	}
	for _, id := range unblocked {
		o.Unblocked[id] = struct{}{}
	}
	return o
}

// SitePolicy is the page host's list membership. It is always derived from
// the page host and the two lists, never stored on its own.
type SitePolicy int

const (
	PolicyNone SitePolicy = iota
	PolicyRestricted
	PolicyTrusted
)

func (p SitePolicy) String() string {
	switch p {
	case PolicyRestricted:
		return "restricted"
	case PolicyTrusted:
		return "trusted"
	default:
		return "none"
	}
}

// ListKind names one of the two site lists.
type ListKind string

const (
	Whitelist ListKind = "whitelist"
	Blacklist ListKind = "blacklist"
)

// Other returns the opposite list.
func (k ListKind) Other() ListKind {
	if k == Whitelist {
		return Blacklist
	}
	return Whitelist
}

// SitePolicyState is the resolver's view for the current page.
type SitePolicyState struct {
	Policy    SitePolicy
	Whitelist []string
	Blacklist []string
}

// SelectedAppIDs indexes the trackers currently forced-blocked by the user.
type SelectedAppIDs map[int]int

// Clone returns an independent copy.
func (s SelectedAppIDs) Clone() SelectedAppIDs {
	out := make(SelectedAppIDs, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Sorted returns the ids in ascending order.
func (s SelectedAppIDs) Sorted() []int {
	ids := make([]int, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// ChangeKind identifies a blocking-relevant change awaiting a page reload.
type ChangeKind string

const (
	ChangeWhitelist ChangeKind = "whitelist"
	ChangeBlacklist ChangeKind = "blacklist"
	ChangePause     ChangeKind = "pause"
	ChangeBlockAll  ChangeKind = "blockAll"
	ChangeLogin     ChangeKind = "login"
)

// TrackerChange is the change kind for a single tracker toggle.
func TrackerChange(id int) ChangeKind {
	return ChangeKind("tracker:" + strconv.Itoa(id))
}

// CategoryChange is the change kind for a category-wide toggle.
func CategoryChange(id string) ChangeKind {
	return ChangeKind("category:" + id)
}

// PendingReloadChanges holds the changes not yet applied because the page
// has not been reloaded.
type PendingReloadChanges map[ChangeKind]bool

// Clone returns an independent copy.
func (p PendingReloadChanges) Clone() PendingReloadChanges {
	out := make(PendingReloadChanges, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Kinds returns the pending kinds sorted by name.
func (p PendingReloadChanges) Kinds() []ChangeKind {
	kinds := make([]ChangeKind, 0, len(p))
	for k := range p {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// BannerStatus is the reconciler's state.
type BannerStatus int

const (
	BannerIdle BannerStatus = iota
	BannerShown
	BannerDismissed
)

func (s BannerStatus) String() string {
	switch s {
	case BannerShown:
		return "shown"
	case BannerDismissed:
		return "dismissed"
	default:
		return "idle"
	}
}

// NotificationState is the transient banner. Not persisted.
type NotificationState struct {
	Status     BannerStatus
	Shown      bool
	Text       string
	Classes    string
	FilterKind string
}

// Counters is the page-wide summary shown in the panel header.
type Counters struct {
	Total     int
	Blocked   int
	SSBlocked int
	SSAllowed int
	SBBlocked int
	SBAllowed int
}

// PageContext is supplied by the background process on every navigation.
type PageContext struct {
	TabID            int
	Host             string
	URL              string
	PausedBlocking   bool
	SmartBlock       SmartBlockOverlay
	SmartBlockActive bool
}

// Preferences are the user's banner toggles.
type Preferences struct {
	ReloadBannerEnabled   bool
	TrackersBannerEnabled bool
}

// Patch is a partial panel-data update for the persistence channel.
type Patch map[string]any

// Keys returns the patch keys sorted by name.
func (p Patch) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Patch keys understood by the background process.
const (
	KeySelectedAppIDs        = "selected_app_ids"
	KeySiteWhitelist         = "site_whitelist"
	KeySiteBlacklist         = "site_blacklist"
	KeyNeedsReload           = "needsReload"
	KeyPausedBlocking        = "paused_blocking"
	KeyPausedBlockingTimeout = "paused_blocking_timeout"
)

// FilterMode controls which trackers are visible.
type FilterMode int

const (
	FilterAll FilterMode = iota
	FilterCategory
	FilterBlocked
	FilterWarning
	FilterName
)
