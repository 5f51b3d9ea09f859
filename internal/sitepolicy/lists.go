package sitepolicy

import (
	"sort"

	"github.com/lotas/trackerguard/internal/types"
)

// Lists holds the trusted and restricted hosts. A host is never on both.
// Not safe for concurrent use.
type Lists struct {
	white map[string]struct{}
	black map[string]struct{}
}

// AddResult describes a successful list-editor add.
type AddResult struct {
	Host    string
	Warning *CrossListWarning // set when the host was moved off the other list
}

// NewLists builds lists from persisted slices. A host present in both keeps
// its whitelist membership.
func NewLists(whitelist, blacklist []string) *Lists {
	l := &Lists{
		white: make(map[string]struct{}, len(whitelist)),
		black: make(map[string]struct{}, len(blacklist)),
	}
	for _, h := range whitelist {
		l.white[h] = struct{}{}
	}
	for _, h := range blacklist {
		if _, ok := l.white[h]; ok {
			continue
		}
		l.black[h] = struct{}{}
	}
	return l
}

func (l *Lists) set(kind types.ListKind) map[string]struct{} {
	if kind == types.Whitelist {
		return l.white
	}
	return l.black
}

// Contains reports exact membership.
func (l *Lists) Contains(kind types.ListKind, host string) bool {
	_, ok := l.set(kind)[host]
	return ok
}

// Hosts returns the list sorted.
func (l *Lists) Hosts(kind types.ListKind) []string {
	set := l.set(kind)
	out := make([]string, 0, len(set))
	for h := range set {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}

// Toggle removes host from the other list, then flips its membership in
// kind. It returns true when the host ends up on kind.
func (l *Lists) Toggle(kind types.ListKind, host string) bool {
	delete(l.set(kind.Other()), host)
	set := l.set(kind)
	if _, ok := set[host]; ok {
		delete(set, host)
		return false
	}
	set[host] = struct{}{}
	return true
}

// SetPolicy toggles the derived host of page (or explicitHost) on kind and
// returns the page's resulting policy state. changed is false when no host
// could be derived; the lists are untouched then.
func (l *Lists) SetPolicy(page types.PageContext, kind types.ListKind, explicitHost string) (st types.SitePolicyState, changed bool) {
	host := DeriveHost(page, explicitHost)
	if host == "" {
		return l.State(page), false
	}
	l.Toggle(kind, host)
	return l.State(page), true
}

// Policy derives the policy for a host. Exact entries are checked before
// wildcard patterns, whitelist before blacklist.
func (l *Lists) Policy(host string) types.SitePolicy {
	if host == "" {
		return types.PolicyNone
	}
	if _, ok := l.white[host]; ok {
		return types.PolicyTrusted
	}
	if _, ok := l.black[host]; ok {
		return types.PolicyRestricted
	}
	for _, p := range l.Hosts(types.Whitelist) {
		if IsWildcard(p) && matchWildcard(p, host) {
			return types.PolicyTrusted
		}
	}
	for _, p := range l.Hosts(types.Blacklist) {
		if IsWildcard(p) && matchWildcard(p, host) {
			return types.PolicyRestricted
		}
	}
	return types.PolicyNone
}

// State returns the policy state for page.
func (l *Lists) State(page types.PageContext) types.SitePolicyState {
	return types.SitePolicyState{
		Policy:    l.Policy(DeriveHost(page, "")),
		Whitelist: l.Hosts(types.Whitelist),
		Blacklist: l.Hosts(types.Blacklist),
	}
}

// AddHost validates and adds a manually entered host. Validation failures
// leave the lists untouched.
func (l *Lists) AddHost(kind types.ListKind, input string) (AddResult, error) {
	host, err := ValidateHost(input)
	if err != nil {
		return AddResult{}, err
	}
	if l.Contains(kind, host) {
		return AddResult{}, &DuplicateHostError{Code: ErrCodeDuplicateHost, Host: host, List: kind}
	}
	res := AddResult{Host: host}
	other := kind.Other()
	if l.Contains(other, host) {
		delete(l.set(other), host)
		res.Warning = &CrossListWarning{Code: ErrCodeCrossList, Host: host, From: other, To: kind}
	}
	l.set(kind)[host] = struct{}{}
	return res, nil
}

// RemoveHost deletes a host from kind and reports whether it was present.
func (l *Lists) RemoveHost(kind types.ListKind, input string) bool {
	host := NormalizeHost(input)
	set := l.set(kind)
	if _, ok := set[host]; !ok {
		return false
	}
	delete(set, host)
	return true
}

// Patch is the persistence patch for both lists.
func (l *Lists) Patch() types.Patch {
	return types.Patch{
		types.KeySiteWhitelist: l.Hosts(types.Whitelist),
		types.KeySiteBlacklist: l.Hosts(types.Blacklist),
	}
}

// Clone returns an independent copy.
func (l *Lists) Clone() *Lists {
	return NewLists(l.Hosts(types.Whitelist), l.Hosts(types.Blacklist))
}
