package analyzer

import (
	"fmt"

	"github.com/lotas/trackerguard/internal/override"
	"github.com/lotas/trackerguard/internal/types"
)

// Aggregate tallies page-wide counters over every tracker, visible or not.
// Smart-block membership is counted even when the overlay is inactive.
func Aggregate(categories []*types.Category, overlay types.SmartBlockOverlay, active bool) types.Counters {
	var c types.Counters
	for _, cat := range categories {
		for _, t := range cat.Trackers {
			c.Total++
			if override.EffectiveBlocked(t, overlay, active) {
				c.Blocked++
			}
			if t.SSBlocked {
				c.SSBlocked++
			}
			if t.SSAllowed {
				c.SSAllowed++
			}
			if overlay.IsBlocked(t.ID) {
				c.SBBlocked++
			}
			if overlay.IsUnblocked(t.ID) {
				c.SBAllowed++
			}
		}
	}
	return c
}

// CheckInvariants verifies every category's cached counts against its
// trackers and returns the first mismatch.
func CheckInvariants(categories []*types.Category, overlay types.SmartBlockOverlay, active bool) error {
	for _, cat := range categories {
		shown, blocked := 0, 0
		for _, t := range cat.Trackers {
			if !t.ShouldShow {
				continue
			}
			shown++
			if override.EffectiveBlocked(t, overlay, active) {
				blocked++
			}
		}
		if cat.NumShown != shown {
			return fmt.Errorf("category %q: num_shown=%d, want %d", cat.ID, cat.NumShown, shown)
		}
		if cat.NumBlocked != blocked {
			return fmt.Errorf("category %q: num_blocked=%d, want %d", cat.ID, cat.NumBlocked, blocked)
		}
	}
	return nil
}

// Summary formats counters the way the panel header shows them.
func Summary(c types.Counters) string {
	return fmt.Sprintf("%d of %d blocked", c.Blocked, c.Total)
}
