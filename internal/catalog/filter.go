package catalog

import (
	"strings"

	"github.com/lotas/trackerguard/internal/override"
	"github.com/lotas/trackerguard/internal/types"
)

// Filter selects the visible trackers. Exactly one mode applies at a time.
type Filter struct {
	Mode       types.FilterMode
	CategoryID string // FilterCategory
	Text       string // FilterName
}

func ShowAll() Filter                 { return Filter{Mode: types.FilterAll} }
func ShowCategory(id string) Filter   { return Filter{Mode: types.FilterCategory, CategoryID: id} }
func ShowBlocked() Filter             { return Filter{Mode: types.FilterBlocked} }
func ShowWarnings() Filter            { return Filter{Mode: types.FilterWarning} }
func ShowMatching(text string) Filter { return Filter{Mode: types.FilterName, Text: text} }

// Match reports whether the tracker is visible under the filter.
func (f Filter) Match(t *types.Tracker, overlay types.SmartBlockOverlay, active bool) bool {
	switch f.Mode {
	case types.FilterCategory:
		return t.CategoryID == f.CategoryID
	case types.FilterBlocked:
		return override.EffectiveBlocked(t, overlay, active)
	case types.FilterWarning:
		return t.Warnings.Any()
	case types.FilterName:
		q := strings.ToLower(strings.TrimSpace(f.Text))
		return q == "" || strings.Contains(strings.ToLower(t.Name), q)
	default:
		return true
	}
}

func (f Filter) String() string {
	switch f.Mode {
	case types.FilterCategory:
		return "category:" + f.CategoryID
	case types.FilterBlocked:
		return "blocked"
	case types.FilterWarning:
		return "warning"
	case types.FilterName:
		return "name:" + f.Text
	default:
		return "all"
	}
}

// SetVisibility replaces every tracker's ShouldShow with the filter result
// and recomputes the caches of all categories.
func (s Store) SetVisibility(f Filter, overlay types.SmartBlockOverlay, active bool) Store {
	out := make([]*types.Category, len(s.categories))
	for i, c := range s.categories {
		nc := *c
		nc.Trackers = make([]*types.Tracker, len(c.Trackers))
		for j, t := range c.Trackers {
			show := f.Match(t, overlay, active)
			if show == t.ShouldShow {
				nc.Trackers[j] = t
				continue
			}
			nt := *t
			nt.ShouldShow = show
			nc.Trackers[j] = &nt
		}
		recount(&nc, overlay, active)
		out[i] = &nc
	}
	return Store{categories: out}
}
