// Package sitepolicy keeps the trusted (whitelist) and restricted
// (blacklist) site lists and derives the current page's policy from them.
package sitepolicy

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/lotas/trackerguard/internal/types"
)

// Extension pages have no meaningful host; their id is used instead.
var extensionSchemes = []string{"chrome-extension:", "moz-extension:", "ms-browser-extension:"}

var schemePrefix = regexp.MustCompile(`^https?://`)

// DeriveHost picks the list key for a page. An explicit host wins; extension
// pages use the extension id; everything else uses the page host without a
// leading "www.".
func DeriveHost(page types.PageContext, explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, scheme := range extensionSchemes {
		if strings.HasPrefix(page.URL, scheme) {
			parts := strings.Split(page.URL, "/")
			if len(parts) > 2 {
				return parts[2]
			}
			return ""
		}
	}
	host := page.Host
	if host == "" {
		if u, err := url.Parse(page.URL); err == nil {
			host = u.Host
		}
	}
	return strings.TrimPrefix(host, "www.")
}

// NormalizeHost lower-cases user input and strips any http(s) scheme and a
// leading "www.".
func NormalizeHost(input string) string {
	h := strings.ToLower(strings.TrimSpace(input))
	h = schemePrefix.ReplaceAllString(h, "")
	return strings.TrimPrefix(h, "www.")
}
