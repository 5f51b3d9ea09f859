package sitepolicy

import (
	"regexp"
	"strings"

	"github.com/moby/patternmatcher"
)

// MaxHostLength is the longest accepted entry, exclusive.
const MaxHostLength = 2083

var (
	allowedChars = regexp.MustCompile(`^[a-zA-Z0-9\-.:*]+$`)
	domainHost   = regexp.MustCompile(`^([a-z0-9]([a-z0-9-]*[a-z0-9])?\.)+[a-z]{2,63}(:[0-9]{1,5})?$`)
	ipv4Host     = regexp.MustCompile(`^([0-9]{1,3}\.){3}[0-9]{1,3}(:[0-9]{1,5})?$`)
	localHost    = regexp.MustCompile(`^localhost(:[0-9]{1,5})?$`)
	hasLiteral   = regexp.MustCompile(`[a-z0-9]`)
)

// ValidateHost normalises user input for the trust/restrict list editor and
// checks it is either a plain host or a wildcard pattern.
func ValidateHost(input string) (string, error) {
	if len(strings.TrimSpace(input)) >= MaxHostLength {
		return "", invalidHost(input, "host too long")
	}
	host := NormalizeHost(input)
	switch {
	case host == "":
		return "", invalidHost(input, "empty host")
	case len(host) >= MaxHostLength:
		return "", invalidHost(input, "host too long")
	case !allowedChars.MatchString(host):
		return "", invalidHost(input, "unsupported characters")
	}
	if IsWildcard(host) {
		if err := validateWildcard(host); err != nil {
			return "", invalidHost(input, err.Error())
		}
		return host, nil
	}
	if !domainHost.MatchString(host) && !ipv4Host.MatchString(host) && !localHost.MatchString(host) {
		return "", invalidHost(input, "not a valid host")
	}
	return host, nil
}

// IsWildcard reports whether the entry is a pattern rather than a host.
func IsWildcard(host string) bool {
	return strings.Contains(host, "*")
}

type wildcardError string

func (e wildcardError) Error() string { return string(e) }

func validateWildcard(pattern string) error {
	if strings.Contains(pattern, "**") {
		return wildcardError("repeated wildcard")
	}
	if !hasLiteral.MatchString(pattern) {
		return wildcardError("wildcard matches every host")
	}
	pm, err := patternmatcher.New([]string{pattern})
	if err != nil {
		return err
	}
	// Patterns compile lazily; force it so bad input is reported here.
	if _, err := pm.MatchesOrParentMatches("example.com"); err != nil {
		return err
	}
	return nil
}

// matchWildcard reports whether host matches the pattern. Invalid patterns
// never match.
func matchWildcard(pattern, host string) bool {
	pm, err := patternmatcher.New([]string{pattern})
	if err != nil {
		return false
	}
	ok, err := pm.MatchesOrParentMatches(host)
	return err == nil && ok
}
