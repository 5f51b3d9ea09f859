package catalog

import (
	"errors"
	"testing"

	"github.com/lotas/trackerguard/internal/analyzer"
	"github.com/lotas/trackerguard/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoCategories() []*types.Category {
	return []*types.Category{
		{ID: "advertising", Trackers: []*types.Tracker{
			{ID: 1, Name: "DoubleClick", ShouldShow: true},
			{ID: 2, Name: "AdNexus", ShouldShow: true},
			{ID: 3, Name: "Criteo", ShouldShow: true, Warnings: types.Warnings{Slow: true}},
		}},
		{ID: "site_analytics", Trackers: []*types.Tracker{
			{ID: 4, Name: "Google Analytics", ShouldShow: true},
			{ID: 5, Name: "Hotjar", ShouldShow: true},
			{ID: 6, Name: "Mixpanel", ShouldShow: true},
		}},
	}
}

func assertInvariants(t *testing.T, s Store, overlay types.SmartBlockOverlay, active bool) {
	t.Helper()
	require.NoError(t, analyzer.CheckInvariants(s.Categories(), overlay, active))
}

func TestNew_FillsCategoryAndCaches(t *testing.T) {
	cats := twoCategories()
	cats[0].Trackers[0].Blocked = true
	s := New(cats, types.SmartBlockOverlay{}, false)

	c, ok := s.Category("advertising")
	require.True(t, ok)
	assert.Equal(t, 3, c.NumShown)
	assert.Equal(t, 1, c.NumBlocked)
	assert.Equal(t, "advertising", c.Trackers[0].CategoryID)
	assert.Equal(t, 6, s.Len())

	// Input is copied.
	cats[0].Trackers[0].Blocked = false
	tr, _ := s.Tracker(1)
	assert.True(t, tr.Blocked)
}

func TestBlockAll_AllVisible(t *testing.T) {
	s := New(twoCategories(), types.SmartBlockOverlay{}, false)

	next, sel, outcome := s.BlockAll(true, types.SmartBlockOverlay{}, false, types.SelectedAppIDs{})
	assert.Equal(t, OutcomeApplied, outcome)
	for _, c := range next.Categories() {
		assert.Equal(t, 3, c.NumBlocked, c.ID)
	}
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, sel.Sorted())
	assertInvariants(t, next, types.SmartBlockOverlay{}, false)

	// Original snapshot untouched.
	for _, c := range s.Categories() {
		assert.Equal(t, 0, c.NumBlocked)
	}

	back, sel, _ := next.BlockAll(false, types.SmartBlockOverlay{}, false, sel)
	assert.Empty(t, sel)
	for _, c := range back.Categories() {
		assert.Equal(t, 0, c.NumBlocked)
	}
}

func TestBlockAll_SkipsHiddenTrackers(t *testing.T) {
	cats := twoCategories()
	cats[0].Trackers[1].ShouldShow = false
	s := New(cats, types.SmartBlockOverlay{}, false)

	next, sel, _ := s.BlockAll(true, types.SmartBlockOverlay{}, false, types.SelectedAppIDs{})
	hidden, _ := next.Tracker(2)
	assert.False(t, hidden.Blocked)
	assert.NotContains(t, sel, 2)
	c, _ := next.Category("advertising")
	assert.Equal(t, 2, c.NumBlocked)
	assert.Equal(t, 2, c.NumShown)
	assertInvariants(t, next, types.SmartBlockOverlay{}, false)
}

func TestBlockAll_NoVisibleTrackersSharesCategories(t *testing.T) {
	cats := twoCategories()
	for _, tr := range cats[1].Trackers {
		tr.ShouldShow = false
	}
	s := New(cats, types.SmartBlockOverlay{}, false)
	next, _, _ := s.BlockAll(true, types.SmartBlockOverlay{}, false, nil)

	assert.Same(t, s.Categories()[1], next.Categories()[1])
	assert.NotSame(t, s.Categories()[0], next.Categories()[0])
}

func TestBlockAll_NothingVisibleIsNoOp(t *testing.T) {
	s := New(twoCategories(), types.SmartBlockOverlay{}, false)
	s = s.SetVisibility(ShowMatching("zzz"), types.SmartBlockOverlay{}, false)
	sel := types.SelectedAppIDs{1: 1}

	next, gotSel, outcome := s.BlockAll(true, types.SmartBlockOverlay{}, false, sel)
	assert.Equal(t, OutcomeNoOp, outcome)
	assert.Equal(t, sel, gotSel)
	for i := range s.Categories() {
		assert.Same(t, s.Categories()[i], next.Categories()[i])
	}

	next, gotSel, outcome, err := s.SetCategoryBlocked("advertising", true, types.SmartBlockOverlay{}, false, sel)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoOp, outcome)
	assert.Equal(t, sel, gotSel)
	assert.Same(t, s.Categories()[0], next.Categories()[0])
}

func TestBlockAll_AppliesPrecedenceToCounts(t *testing.T) {
	cats := twoCategories()
	cats[0].Trackers[0].SSBlocked = true
	cats[0].Trackers[1].SSAllowed = true
	overlay := types.NewOverlay(nil, []int{3})
	s := New(cats, overlay, true)

	next, _, _ := s.BlockAll(false, overlay, true, nil)
	c, _ := next.Category("advertising")
	assert.Equal(t, 1, c.NumBlocked, "restricted tracker stays blocked")

	next, _, _ = next.BlockAll(true, overlay, true, nil)
	c, _ = next.Category("advertising")
	// 1 restricted, 2 trusted, 3 smart-unblocked.
	assert.Equal(t, 1, c.NumBlocked)
	assertInvariants(t, next, overlay, true)
}

func TestSetCategoryBlocked_TrustWinsInCount(t *testing.T) {
	cats := twoCategories()
	cats[1].Trackers[0].SSAllowed = true
	s := New(cats, types.SmartBlockOverlay{}, false)

	next, sel, _, err := s.SetCategoryBlocked("site_analytics", true, types.SmartBlockOverlay{}, false, types.SelectedAppIDs{})
	require.NoError(t, err)

	c, _ := next.Category("site_analytics")
	assert.Equal(t, 2, c.NumBlocked)
	trusted, _ := next.Tracker(4)
	assert.True(t, trusted.Blocked, "bulk assignment still sets the manual flag")
	assert.Equal(t, []int{4, 5, 6}, sel.Sorted())

	other, _ := next.Category("advertising")
	assert.Equal(t, 0, other.NumBlocked)
	assert.Same(t, s.Categories()[0], next.Categories()[0])
}

func TestSetCategoryBlocked_UnknownCategory(t *testing.T) {
	s := New(twoCategories(), types.SmartBlockOverlay{}, false)
	sel := types.SelectedAppIDs{1: 1}

	next, gotSel, _, err := s.SetCategoryBlocked("social_media", true, types.SmartBlockOverlay{}, false, sel)
	var nf *ReferenceNotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "social_media", nf.CategoryID)
	assert.Equal(t, ErrCodeReferenceNotFound, nf.Code)
	assert.Equal(t, s.Categories(), next.Categories())
	assert.Equal(t, sel, gotSel)
}

func TestSetTrackerBlocked(t *testing.T) {
	s := New(twoCategories(), types.SmartBlockOverlay{}, false)

	next, sel, outcome, err := s.SetTrackerBlocked(
		TrackerRequest{TrackerID: 5, CategoryID: "site_analytics", Blocked: true},
		Guard{}, types.SmartBlockOverlay{}, false, types.SelectedAppIDs{},
	)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)
	assert.Equal(t, []int{5}, sel.Sorted())
	c, _ := next.Category("site_analytics")
	assert.Equal(t, 1, c.NumBlocked)
	assertInvariants(t, next, types.SmartBlockOverlay{}, false)

	next, sel, _, err = next.SetTrackerBlocked(
		TrackerRequest{TrackerID: 5, CategoryID: "site_analytics", Blocked: false},
		Guard{}, types.SmartBlockOverlay{}, false, sel,
	)
	require.NoError(t, err)
	assert.Empty(t, sel)
	c, _ = next.Category("site_analytics")
	assert.Equal(t, 0, c.NumBlocked)
}

func TestSetTrackerBlocked_Guarded(t *testing.T) {
	s := New(twoCategories(), types.SmartBlockOverlay{}, false)
	req := TrackerRequest{TrackerID: 1, CategoryID: "advertising", Blocked: true}

	for _, g := range []Guard{
		{PausedBlocking: true},
		{SitePolicy: types.PolicyTrusted},
		{SitePolicy: types.PolicyRestricted},
	} {
		next, sel, outcome, err := s.SetTrackerBlocked(req, g, types.SmartBlockOverlay{}, false, types.SelectedAppIDs{})
		require.NoError(t, err)
		assert.Equal(t, OutcomeNoOp, outcome)
		assert.Empty(t, sel)
		tr, _ := next.Tracker(1)
		assert.False(t, tr.Blocked)
	}
}

func TestSetTrackerBlocked_Errors(t *testing.T) {
	s := New(twoCategories(), types.SmartBlockOverlay{}, false)

	_, _, _, err := s.SetTrackerBlocked(TrackerRequest{TrackerID: 1, CategoryID: "nope"}, Guard{}, types.SmartBlockOverlay{}, false, nil)
	var nf *ReferenceNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Zero(t, nf.TrackerID)

	_, _, _, err = s.SetTrackerBlocked(TrackerRequest{TrackerID: 42, CategoryID: "advertising"}, Guard{}, types.SmartBlockOverlay{}, false, nil)
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, 42, nf.TrackerID)
	assert.Contains(t, err.Error(), "tracker 42")
}

func TestSetTrackerBlocked_HiddenIsNoOp(t *testing.T) {
	cats := twoCategories()
	cats[0].Trackers[0].ShouldShow = false
	s := New(cats, types.SmartBlockOverlay{}, false)

	_, sel, outcome, err := s.SetTrackerBlocked(TrackerRequest{TrackerID: 1, CategoryID: "advertising", Blocked: true}, Guard{}, types.SmartBlockOverlay{}, false, types.SelectedAppIDs{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoOp, outcome)
	assert.Empty(t, sel)
}

func TestSetTrackerBlocked_SharesUntouchedTrackers(t *testing.T) {
	s := New(twoCategories(), types.SmartBlockOverlay{}, false)
	next, _, _, err := s.SetTrackerBlocked(TrackerRequest{TrackerID: 2, CategoryID: "advertising", Blocked: true}, Guard{}, types.SmartBlockOverlay{}, false, nil)
	require.NoError(t, err)

	before, after := s.Categories()[0], next.Categories()[0]
	assert.Same(t, before.Trackers[0], after.Trackers[0])
	assert.NotSame(t, before.Trackers[1], after.Trackers[1])
	assert.Same(t, s.Categories()[1], next.Categories()[1])
}

func TestRecount_AfterOverlayChange(t *testing.T) {
	s := New(twoCategories(), types.SmartBlockOverlay{}, false)
	overlay := types.NewOverlay([]int{1, 4}, nil)

	next := s.Recount(overlay, true)
	for _, c := range next.Categories() {
		assert.Equal(t, 1, c.NumBlocked, c.ID)
	}
	assertInvariants(t, next, overlay, true)
}
