package sitepolicy

import (
	"errors"
	"strings"
	"testing"

	"github.com/lotas/trackerguard/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveHost(t *testing.T) {
	tests := []struct {
		name     string
		page     types.PageContext
		explicit string
		want     string
	}{
		{"explicit wins", types.PageContext{Host: "www.news.com"}, "other.org", "other.org"},
		{"strip www", types.PageContext{Host: "www.news.com", URL: "https://www.news.com/a"}, "", "news.com"},
		{"host from url", types.PageContext{URL: "https://www.shop.io/cart"}, "", "shop.io"},
		{"chrome extension", types.PageContext{Host: "abc", URL: "chrome-extension://abcdefgh/panel.html"}, "", "abcdefgh"},
		{"moz extension", types.PageContext{URL: "moz-extension://1234-uuid/options.html"}, "", "1234-uuid"},
		{"edge extension", types.PageContext{URL: "ms-browser-extension://edgeid/x"}, "", "edgeid"},
		{"empty", types.PageContext{}, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveHost(tt.page, tt.explicit))
		})
	}
}

func TestSetPolicy_ToggleAndExclusivity(t *testing.T) {
	l := NewLists(nil, nil)
	page := types.PageContext{Host: "www.example.com", URL: "https://www.example.com/"}

	st, changed := l.SetPolicy(page, types.Whitelist, "")
	assert.True(t, changed)
	assert.Equal(t, types.PolicyTrusted, st.Policy)
	assert.Equal(t, []string{"example.com"}, st.Whitelist)

	st, _ = l.SetPolicy(page, types.Blacklist, "")
	assert.Equal(t, types.PolicyRestricted, st.Policy)
	assert.Empty(t, st.Whitelist)
	assert.Equal(t, []string{"example.com"}, st.Blacklist)

	st, _ = l.SetPolicy(page, types.Blacklist, "")
	assert.Equal(t, types.PolicyNone, st.Policy)
	assert.Empty(t, st.Blacklist)
}

func TestSetPolicy_TwiceRestoresMembership(t *testing.T) {
	l := NewLists([]string{"a.com"}, []string{"b.com"})
	page := types.PageContext{Host: "c.com"}

	before := l.State(page)
	l.SetPolicy(page, types.Whitelist, "h.net")
	l.SetPolicy(page, types.Whitelist, "h.net")
	assert.Equal(t, before, l.State(page))

	l.SetPolicy(page, types.Whitelist, "a.com")
	l.SetPolicy(page, types.Whitelist, "a.com")
	assert.Equal(t, before, l.State(page))
}

func TestSetPolicy_ExplicitHostDoesNotChangePagePolicy(t *testing.T) {
	l := NewLists(nil, nil)
	page := types.PageContext{Host: "news.com"}
	st, _ := l.SetPolicy(page, types.Whitelist, "other.com")
	assert.Equal(t, types.PolicyNone, st.Policy)
	assert.True(t, l.Contains(types.Whitelist, "other.com"))
}

func TestSetPolicy_NoDerivableHostLeavesListsAlone(t *testing.T) {
	l := NewLists([]string{"a.com"}, nil)
	for _, page := range []types.PageContext{{}, {URL: "moz-extension:"}} {
		st, changed := l.SetPolicy(page, types.Whitelist, "")
		assert.False(t, changed)
		assert.Equal(t, types.PolicyNone, st.Policy)
		assert.Equal(t, []string{"a.com"}, st.Whitelist)
	}
}

func TestNewLists_NeverBoth(t *testing.T) {
	l := NewLists([]string{"x.com"}, []string{"x.com", "y.com"})
	assert.Equal(t, []string{"x.com"}, l.Hosts(types.Whitelist))
	assert.Equal(t, []string{"y.com"}, l.Hosts(types.Blacklist))
}

func TestPolicy_Wildcards(t *testing.T) {
	l := NewLists([]string{"*.trusted.com"}, []string{"ads.*.net", "exact.org"})

	assert.Equal(t, types.PolicyTrusted, l.Policy("a.trusted.com"))
	assert.Equal(t, types.PolicyNone, l.Policy("trusted.com"))
	assert.Equal(t, types.PolicyRestricted, l.Policy("ads.foo.net"))
	assert.Equal(t, types.PolicyRestricted, l.Policy("exact.org"))
	assert.Equal(t, types.PolicyNone, l.Policy("other.org"))
	assert.Equal(t, types.PolicyNone, l.Policy(""))
}

func TestValidateHost(t *testing.T) {
	valid := map[string]string{
		"EXAMPLE.COM":             "example.com",
		"https://www.example.com": "example.com",
		"  sub.domain.co.uk ":     "sub.domain.co.uk",
		"localhost:8080":          "localhost:8080",
		"127.0.0.1":               "127.0.0.1",
		"*.example.com":           "*.example.com",
		"cdn-*.example.org":       "cdn-*.example.org",
		"example.com:443":         "example.com:443",
	}
	for in, want := range valid {
		got, err := ValidateHost(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	invalid := []string{
		"",
		"exa mple.com",
		"example.com/path",
		"example",
		"-bad-.com",
		"*",
		"*.*",
		"**.example.com",
		"ex@mple.com",
		strings.Repeat("a", MaxHostLength) + ".com",
	}
	for _, in := range invalid {
		_, err := ValidateHost(in)
		var ih *InvalidHostError
		require.True(t, errors.As(err, &ih), "%q should be invalid", in)
		assert.Equal(t, ErrCodeInvalidHost, ih.Code)
	}
}

func TestValidateHost_LengthCountsRawInput(t *testing.T) {
	long := "https://www." + strings.Repeat("a", MaxHostLength-15) + ".com"
	require.GreaterOrEqual(t, len(long), MaxHostLength)
	require.Less(t, len(NormalizeHost(long)), MaxHostLength)

	_, err := ValidateHost(long)
	var ih *InvalidHostError
	require.ErrorAs(t, err, &ih)
	assert.Equal(t, "host too long", ih.Reason)

	fits := "https://" + strings.Repeat("a", MaxHostLength-13) + ".com"
	require.Less(t, len(fits), MaxHostLength)
	_, err = ValidateHost(fits)
	assert.NoError(t, err)
}

func TestAddHost_NormalizedDuplicate(t *testing.T) {
	l := NewLists(nil, nil)

	res, err := l.AddHost(types.Whitelist, "EXAMPLE.COM")
	require.NoError(t, err)
	assert.Equal(t, "example.com", res.Host)
	assert.Nil(t, res.Warning)

	_, err = l.AddHost(types.Whitelist, "www.example.com")
	var dup *DuplicateHostError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, types.Whitelist, dup.List)
	assert.Equal(t, []string{"example.com"}, l.Hosts(types.Whitelist))
}

func TestAddHost_CrossListMoves(t *testing.T) {
	l := NewLists([]string{"example.com"}, nil)

	res, err := l.AddHost(types.Blacklist, "example.com")
	require.NoError(t, err)
	require.NotNil(t, res.Warning)
	assert.Equal(t, types.Whitelist, res.Warning.From)
	assert.Equal(t, types.Blacklist, res.Warning.To)
	assert.Equal(t, ErrCodeCrossList, res.Warning.Code)
	assert.Empty(t, l.Hosts(types.Whitelist))
	assert.Equal(t, []string{"example.com"}, l.Hosts(types.Blacklist))
}

func TestAddHost_InvalidDoesNotMutate(t *testing.T) {
	l := NewLists([]string{"a.com"}, nil)
	_, err := l.AddHost(types.Blacklist, "not a host")
	require.Error(t, err)
	assert.Equal(t, []string{"a.com"}, l.Hosts(types.Whitelist))
	assert.Empty(t, l.Hosts(types.Blacklist))
}

func TestRemoveHost(t *testing.T) {
	l := NewLists([]string{"a.com"}, nil)
	assert.False(t, l.RemoveHost(types.Blacklist, "a.com"))
	assert.True(t, l.RemoveHost(types.Whitelist, "WWW.A.COM"))
	assert.Empty(t, l.Hosts(types.Whitelist))
}

func TestPatchAndClone(t *testing.T) {
	l := NewLists([]string{"b.com", "a.com"}, []string{"c.com"})
	p := l.Patch()
	assert.Equal(t, []string{"a.com", "b.com"}, p[types.KeySiteWhitelist])
	assert.Equal(t, []string{"c.com"}, p[types.KeySiteBlacklist])

	c := l.Clone()
	c.Toggle(types.Whitelist, "a.com")
	assert.True(t, l.Contains(types.Whitelist, "a.com"))
}
