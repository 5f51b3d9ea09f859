// Package catalog holds the per-page categories and trackers and applies
// blocking and visibility mutations to them.
//
// A Store is an immutable snapshot: every mutation returns a new Store that
// shares untouched categories and trackers with its parent. Only the
// categories and trackers a mutation changes are copied, so callers may keep
// older snapshots around (undo, diffing) without paying for deep clones.
package catalog

import (
	"github.com/lotas/trackerguard/internal/override"
	"github.com/lotas/trackerguard/internal/types"
)

// Store is a snapshot of the page's categories.
type Store struct {
	categories []*types.Category
}

// New builds a store from freshly fetched categories. The input is copied
// and every category's caches are recomputed.
func New(categories []*types.Category, overlay types.SmartBlockOverlay, active bool) Store {
	out := make([]*types.Category, 0, len(categories))
	for _, c := range categories {
		nc := &types.Category{
			ID:       c.ID,
			Name:     c.Name,
			Trackers: make([]*types.Tracker, 0, len(c.Trackers)),
		}
		for _, t := range c.Trackers {
			nt := *t
			if nt.CategoryID == "" {
				nt.CategoryID = c.ID
			}
			nc.Trackers = append(nc.Trackers, &nt)
		}
		recount(nc, overlay, active)
		out = append(out, nc)
	}
	return Store{categories: out}
}

// Categories returns the snapshot's categories. Callers must not modify them.
func (s Store) Categories() []*types.Category {
	return s.categories
}

// Category looks up a category by id.
func (s Store) Category(id string) (*types.Category, bool) {
	for _, c := range s.categories {
		if c.ID == id {
			return c, true
		}
	}
	return nil, false
}

// Tracker looks up a tracker by id across all categories.
func (s Store) Tracker(id int) (*types.Tracker, bool) {
	for _, c := range s.categories {
		for _, t := range c.Trackers {
			if t.ID == id {
				return t, true
			}
		}
	}
	return nil, false
}

// Len returns the total number of trackers.
func (s Store) Len() int {
	n := 0
	for _, c := range s.categories {
		n += len(c.Trackers)
	}
	return n
}

// Recount returns a store whose category caches reflect the given overlay.
// Used after the smart-block overlay changes.
func (s Store) Recount(overlay types.SmartBlockOverlay, active bool) Store {
	out := make([]*types.Category, len(s.categories))
	for i, c := range s.categories {
		nc := *c
		recount(&nc, overlay, active)
		out[i] = &nc
	}
	return Store{categories: out}
}

// recount recomputes NumShown and NumBlocked in place. Only call on a
// category owned by the caller.
func recount(c *types.Category, overlay types.SmartBlockOverlay, active bool) {
	c.NumShown = 0
	c.NumBlocked = 0
	for _, t := range c.Trackers {
		if !t.ShouldShow {
			continue
		}
		c.NumShown++
		if override.EffectiveBlocked(t, overlay, active) {
			c.NumBlocked++
		}
	}
}
