// Package override resolves a tracker's effective blocking state from the
// manual flag, site-specific trust/restrict and the smart-block overlay.
package override

import "github.com/lotas/trackerguard/internal/types"

// Decision names the layer that decided a tracker's state.
type Decision int

const (
	DecidedManual Decision = iota
	DecidedSiteRestrict
	DecidedSmartBlock
	DecidedSmartUnblock
	DecidedSiteTrust
)

func (d Decision) String() string {
	switch d {
	case DecidedSiteRestrict:
		return "site-restrict"
	case DecidedSmartBlock:
		return "smart-block"
	case DecidedSmartUnblock:
		return "smart-unblock"
	case DecidedSiteTrust:
		return "site-trust"
	default:
		return "manual"
	}
}

// Layer returns the deciding layer and the resulting state.
// Precedence: site restrict, smart block (only when active), site trust,
// then the manual flag.
func Layer(t *types.Tracker, overlay types.SmartBlockOverlay, active bool) (Decision, bool) {
	if t.SSBlocked {
		return DecidedSiteRestrict, true
	}
	if active {
		if overlay.IsBlocked(t.ID) {
			return DecidedSmartBlock, true
		}
		if overlay.IsUnblocked(t.ID) {
			return DecidedSmartUnblock, false
		}
	}
	if t.SSAllowed {
		return DecidedSiteTrust, false
	}
	return DecidedManual, t.Blocked
}

// EffectiveBlocked reports whether the tracker ends up blocked.
func EffectiveBlocked(t *types.Tracker, overlay types.SmartBlockOverlay, active bool) bool {
	_, blocked := Layer(t, overlay, active)
	return blocked
}
