package catalog

import (
	"github.com/lotas/trackerguard/internal/types"
)

// Outcome reports whether a guarded mutation changed anything.
type Outcome int

const (
	OutcomeApplied Outcome = iota
	OutcomeNoOp
)

func (o Outcome) String() string {
	if o == OutcomeNoOp {
		return "no-op"
	}
	return "applied"
}

// Guard carries the page-level state that suspends per-tracker decisions.
type Guard struct {
	PausedBlocking bool
	SitePolicy     types.SitePolicy
}

// Suspended reports whether per-tracker blocking is irrelevant for the page.
func (g Guard) Suspended() bool {
	return g.PausedBlocking || g.SitePolicy != types.PolicyNone
}

// TrackerRequest identifies a single tracker toggle.
type TrackerRequest struct {
	TrackerID  int
	CategoryID string
	Blocked    bool
}

// BlockAll sets the manual flag on every visible tracker and keeps the
// selected index in sync. Site-specific overrides are not consulted when
// assigning the flag; they only affect the recomputed counts. With no
// visible tracker the inputs are returned untouched and the outcome is
// OutcomeNoOp.
func (s Store) BlockAll(blocked bool, overlay types.SmartBlockOverlay, active bool, selected types.SelectedAppIDs) (Store, types.SelectedAppIDs, Outcome) {
	if !anyVisible(s.categories) {
		return s, selected, OutcomeNoOp
	}
	sel := selected.Clone()
	out := make([]*types.Category, len(s.categories))
	for i, c := range s.categories {
		out[i] = setCategory(c, blocked, overlay, active, sel)
	}
	return Store{categories: out}, sel, OutcomeApplied
}

// SetCategoryBlocked is BlockAll scoped to one category.
func (s Store) SetCategoryBlocked(categoryID string, blocked bool, overlay types.SmartBlockOverlay, active bool, selected types.SelectedAppIDs) (Store, types.SelectedAppIDs, Outcome, error) {
	idx := s.indexOf(categoryID)
	if idx < 0 {
		return s, selected, OutcomeNoOp, categoryNotFound(categoryID)
	}
	if !hasVisible(s.categories[idx]) {
		return s, selected, OutcomeNoOp, nil
	}
	sel := selected.Clone()
	out := make([]*types.Category, len(s.categories))
	copy(out, s.categories)
	out[idx] = setCategory(s.categories[idx], blocked, overlay, active, sel)
	return Store{categories: out}, sel, OutcomeApplied, nil
}

// SetTrackerBlocked updates one tracker. While the page is paused or under
// a site policy the call is a no-op and the inputs are returned untouched.
// Hidden trackers are not changed either.
func (s Store) SetTrackerBlocked(req TrackerRequest, guard Guard, overlay types.SmartBlockOverlay, active bool, selected types.SelectedAppIDs) (Store, types.SelectedAppIDs, Outcome, error) {
	if guard.Suspended() {
		return s, selected, OutcomeNoOp, nil
	}
	idx := s.indexOf(req.CategoryID)
	if idx < 0 {
		return s, selected, OutcomeNoOp, categoryNotFound(req.CategoryID)
	}
	c := s.categories[idx]
	tIdx := -1
	for i, t := range c.Trackers {
		if t.ID == req.TrackerID {
			tIdx = i
			break
		}
	}
	if tIdx < 0 {
		return s, selected, OutcomeNoOp, trackerNotFound(req.CategoryID, req.TrackerID)
	}
	if !c.Trackers[tIdx].ShouldShow {
		return s, selected, OutcomeNoOp, nil
	}

	nc := *c
	nc.Trackers = make([]*types.Tracker, len(c.Trackers))
	copy(nc.Trackers, c.Trackers)
	nt := *c.Trackers[tIdx]
	nt.Blocked = req.Blocked
	nc.Trackers[tIdx] = &nt
	recount(&nc, overlay, active)

	sel := selected.Clone()
	syncSelected(sel, &nt)

	out := make([]*types.Category, len(s.categories))
	copy(out, s.categories)
	out[idx] = &nc
	return Store{categories: out}, sel, OutcomeApplied, nil
}

func (s Store) indexOf(categoryID string) int {
	for i, c := range s.categories {
		if c.ID == categoryID {
			return i
		}
	}
	return -1
}

// setCategory returns c unchanged when it has no visible trackers, otherwise
// a copy with every visible tracker's flag set and caches recomputed.
func setCategory(c *types.Category, blocked bool, overlay types.SmartBlockOverlay, active bool, sel types.SelectedAppIDs) *types.Category {
	if !hasVisible(c) {
		return c
	}
	nc := *c
	nc.Trackers = make([]*types.Tracker, len(c.Trackers))
	for i, t := range c.Trackers {
		if !t.ShouldShow {
			nc.Trackers[i] = t
			continue
		}
		nt := *t
		nt.Blocked = blocked
		syncSelected(sel, &nt)
		nc.Trackers[i] = &nt
	}
	recount(&nc, overlay, active)
	return &nc
}

func anyVisible(cats []*types.Category) bool {
	for _, c := range cats {
		if hasVisible(c) {
			return true
		}
	}
	return false
}

func hasVisible(c *types.Category) bool {
	for _, t := range c.Trackers {
		if t.ShouldShow {
			return true
		}
	}
	return false
}

func syncSelected(sel types.SelectedAppIDs, t *types.Tracker) {
	if t.Blocked {
		sel[t.ID] = 1
	} else {
		delete(sel, t.ID)
	}
}
