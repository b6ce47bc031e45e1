package settings

import (
	"net/url"
	"strings"
)

var engines = map[string]string{
	"google":     "https://www.google.com/search?q=",
	"duckduckgo": "https://duckduckgo.com/?q=",
	"bing":       "https://www.bing.com/search?q=",
	"brave":      "https://search.brave.com/search?q=",
	"ecosia":     "https://www.ecosia.org/search?q=",
}

var schemes = []string{"http://", "https://", "about:", "chrome://", "file://", "data:", "view-source:"}

// FormatQuery turns address-bar input into a URL. Input that already looks
// like an address is returned as a URL; anything else becomes a search on
// engine. An unknown engine searches with the default one.
func FormatQuery(input, engine string) string {
	in := strings.TrimSpace(input)
	if in == "" {
		return ""
	}
	lower := strings.ToLower(in)
	for _, s := range schemes {
		if strings.HasPrefix(lower, s) {
			return in
		}
	}
	if looksLikeHost(in) {
		return "https://" + in
	}
	base, ok := engines[engine]
	if !ok {
		base = engines[DefaultSearchEngine]
	}
	return base + url.QueryEscape(in)
}

func looksLikeHost(in string) bool {
	if strings.ContainsAny(in, " \t") {
		return false
	}
	host := in
	if i := strings.IndexAny(host, "/?#"); i >= 0 {
		host = host[:i]
	}
	if h, _, ok := strings.Cut(host, ":"); ok {
		host = h
	}
	if host == "localhost" {
		return true
	}
	if !strings.Contains(host, ".") || strings.HasPrefix(host, ".") || strings.HasSuffix(host, ".") {
		return false
	}
	u, err := url.Parse("https://" + in)
	return err == nil && u.Hostname() != ""
}
