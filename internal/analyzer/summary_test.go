package analyzer

import (
	"testing"

	"github.com/lotas/trackerguard/internal/types"
)

func TestAggregate(t *testing.T) {
	cats := []*types.Category{
		{ID: "ads", Trackers: []*types.Tracker{
			{ID: 1, Blocked: true},
			{ID: 2, Blocked: true, SSAllowed: true},
			{ID: 3, SSBlocked: true},
		}},
		{ID: "analytics", Trackers: []*types.Tracker{
			{ID: 4, Blocked: true},
			{ID: 5},
		}},
	}
	overlay := types.NewOverlay([]int{5}, []int{4})

	c := Aggregate(cats, overlay, true)
	if c.Total != 5 {
		t.Errorf("total: got %d, want 5", c.Total)
	}
	// 1 manual, 3 restricted, 5 smart-blocked; 2 trusted, 4 smart-unblocked.
	if c.Blocked != 3 {
		t.Errorf("blocked: got %d, want 3", c.Blocked)
	}
	if c.SSBlocked != 1 {
		t.Errorf("ss_blocked: got %d, want 1", c.SSBlocked)
	}
	if c.SSAllowed != 1 {
		t.Errorf("ss_allowed: got %d, want 1", c.SSAllowed)
	}
	if c.SBBlocked != 1 || c.SBAllowed != 1 {
		t.Errorf("sb: got %d/%d, want 1/1", c.SBBlocked, c.SBAllowed)
	}
}

func TestAggregate_InactiveOverlayStillCounted(t *testing.T) {
	cats := []*types.Category{
		{ID: "ads", Trackers: []*types.Tracker{{ID: 1}, {ID: 2, Blocked: true}}},
	}
	overlay := types.NewOverlay([]int{1}, []int{2})

	c := Aggregate(cats, overlay, false)
	if c.Blocked != 1 {
		t.Errorf("blocked: got %d, want 1", c.Blocked)
	}
	if c.SBBlocked != 1 || c.SBAllowed != 1 {
		t.Errorf("sb: got %d/%d, want 1/1", c.SBBlocked, c.SBAllowed)
	}
}

func TestAggregate_IgnoresVisibility(t *testing.T) {
	cats := []*types.Category{
		{ID: "ads", Trackers: []*types.Tracker{{ID: 1, Blocked: true, ShouldShow: false}}},
	}
	c := Aggregate(cats, types.SmartBlockOverlay{}, false)
	if c.Total != 1 || c.Blocked != 1 {
		t.Errorf("got %d/%d, want 1/1", c.Blocked, c.Total)
	}
}

func TestCheckInvariants(t *testing.T) {
	cats := []*types.Category{
		{ID: "ads", NumShown: 1, NumBlocked: 1, Trackers: []*types.Tracker{
			{ID: 1, Blocked: true, ShouldShow: true},
			{ID: 2, Blocked: true},
		}},
	}
	if err := CheckInvariants(cats, types.SmartBlockOverlay{}, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cats[0].NumBlocked = 2
	if err := CheckInvariants(cats, types.SmartBlockOverlay{}, false); err == nil {
		t.Fatal("expected mismatch error")
	}
}

func TestSummary(t *testing.T) {
	if got := Summary(types.Counters{Total: 6, Blocked: 4}); got != "4 of 6 blocked" {
		t.Errorf("got %q", got)
	}
}
