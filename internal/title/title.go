// Package title derives a short human-friendly title for an entry from the
// frontmost application, its window title and, for browsers, the page URL.
package title

import (
	"net/url"
	"path"
	"regexp"
	"strings"

	"glimpse/internal/textutil"
)

// Untitled is returned when nothing better can be derived.
const Untitled = "Untitled Activity"

const maxTitleRunes = 160

// DefaultBrowsers lists the applications treated as browsers.
var DefaultBrowsers = []string{
	"Safari", "Google Chrome", "Chromium", "Firefox", "Arc",
	"Brave Browser", "Microsoft Edge", "Opera", "Vivaldi",
}

var placeholders = map[string]struct{}{
	"new tab":         {},
	"new private tab": {},
	"new window":      {},
	"start page":      {},
	"untitled":        {},
	"blank page":      {},
	"about:blank":     {},
	"about:newtab":    {},
	"about:home":      {},
}

// browserVendorSuffixes catch window-title suffixes that do not repeat the
// application name verbatim (Firefox reports "Mozilla Firefox").
var browserVendorSuffixes = []string{
	"mozilla firefox", "firefox", "google chrome", "chromium", "safari",
	"microsoft edge", "brave", "opera", "vivaldi", "arc",
}

var titleSeparators = []string{" - ", " \u2014 ", " \u2013 ", " | "}

var filenamePattern = regexp.MustCompile(`^[\p{L}\p{N}_()\[\]~+@.,' -]*[\p{L}\p{N}_)\]-]\.[A-Za-z][A-Za-z0-9]{0,7}$`)

var hostLikeExtensions = map[string]struct{}{
	"com": {}, "org": {}, "net": {}, "io": {}, "dev": {}, "app": {}, "edu": {}, "gov": {},
}

// Deriver applies the title cascade for a configured set of browsers.
type Deriver struct {
	browsers map[string]struct{}
}

// New returns a Deriver recognizing the given browser names
// (case-insensitive). An empty list uses DefaultBrowsers.
func New(browsers []string) *Deriver {
	if len(browsers) == 0 {
		browsers = DefaultBrowsers
	}
	set := make(map[string]struct{}, len(browsers))
	for _, b := range browsers {
		if key := strings.ToLower(strings.TrimSpace(b)); key != "" {
			set[key] = struct{}{}
		}
	}
	return &Deriver{browsers: set}
}

// Derive uses the default browser list.
func Derive(app, windowTitle, pageURL string) string {
	return New(nil).Derive(app, windowTitle, pageURL)
}

// IsBrowser reports whether app is one of the configured browsers.
func (d *Deriver) IsBrowser(app string) bool {
	_, ok := d.browsers[strings.ToLower(strings.TrimSpace(app))]
	return ok
}

// Derive returns the title for an entry. Output is NFC-normalized with
// whitespace collapsed and is never empty.
func (d *Deriver) Derive(app, windowTitle, pageURL string) string {
	app = textutil.Normalize(app)
	windowTitle = textutil.Normalize(windowTitle)
	pageURL = strings.TrimSpace(pageURL)

	if d.IsBrowser(app) {
		if t := browserTitle(app, windowTitle, pageURL); t != "" {
			return finish(t)
		}
	} else {
		if t := filenameInTitle(windowTitle); t != "" {
			return finish(t)
		}
		if windowTitle != "" {
			return finish(windowTitle)
		}
	}
	if app != "" {
		return finish(app)
	}
	return Untitled
}

func finish(s string) string {
	s = textutil.Truncate(textutil.Normalize(s), maxTitleRunes)
	if s == "" {
		return Untitled
	}
	return s
}

func browserTitle(app, windowTitle, pageURL string) string {
	cleaned := cleanTabTitle(windowTitle, app, pageURL)
	if cleaned != "" && !sameURL(cleaned, pageURL) && !isPlaceholder(cleaned) {
		return cleaned
	}
	u := parseURL(pageURL)
	if u == nil {
		return ""
	}
	segments := pathSegments(u)
	if len(segments) > 0 {
		if last := segments[len(segments)-1]; looksLikeFilename(last) {
			return last
		}
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if host == "" {
		return ""
	}
	if len(segments) > 0 {
		return host + "/" + segments[0]
	}
	return host
}

// cleanTabTitle strips trailing " - Browser" style suffixes and a trailing
// copy of the page URL from a browser window title.
func cleanTabTitle(windowTitle, app, pageURL string) string {
	t := windowTitle
	for {
		head, tail, ok := splitLastSeparator(t)
		if !ok {
			break
		}
		if !isBrowserSuffix(tail, app) && !sameURL(tail, pageURL) {
			break
		}
		t = head
	}
	return strings.TrimSpace(t)
}

func splitLastSeparator(s string) (string, string, bool) {
	best := -1
	sepLen := 0
	for _, sep := range titleSeparators {
		if i := strings.LastIndex(s, sep); i > best {
			best = i
			sepLen = len(sep)
		}
	}
	if best <= 0 {
		return s, "", false
	}
	return s[:best], strings.TrimSpace(s[best+sepLen:]), true
}

func isBrowserSuffix(tail, app string) bool {
	lower := strings.ToLower(strings.TrimSpace(tail))
	if lower == "" {
		return false
	}
	if app != "" && lower == strings.ToLower(app) {
		return true
	}
	for _, vendor := range browserVendorSuffixes {
		if lower == vendor {
			return true
		}
	}
	return false
}

func isPlaceholder(s string) bool {
	_, ok := placeholders[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

func sameURL(candidate, pageURL string) bool {
	if pageURL == "" || candidate == "" {
		return false
	}
	trim := func(s string) string {
		s = strings.ToLower(strings.TrimSpace(s))
		s = strings.TrimPrefix(s, "https://")
		s = strings.TrimPrefix(s, "http://")
		return strings.TrimSuffix(s, "/")
	}
	return trim(candidate) == trim(pageURL)
}

func parseURL(raw string) *url.URL {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		if err == nil && u.Scheme == "" {
			if retry, retryErr := url.Parse("https://" + raw); retryErr == nil && retry.Host != "" {
				return retry
			}
		}
		return nil
	}
	return u
}

func pathSegments(u *url.URL) []string {
	var out []string
	for _, seg := range strings.Split(u.EscapedPath(), "/") {
		if seg == "" {
			continue
		}
		if unescaped, err := url.PathUnescape(seg); err == nil {
			seg = unescaped
		}
		if seg = strings.TrimSpace(seg); seg != "" {
			out = append(out, seg)
		}
	}
	return out
}

func looksLikeFilename(token string) bool {
	token = strings.TrimSpace(token)
	if token == "" || !filenamePattern.MatchString(token) {
		return false
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(token), "."))
	_, hostLike := hostLikeExtensions[ext]
	return !hostLike
}

// filenameInTitle returns the first filename-looking token of a window title,
// e.g. "main.go" from "main.go - glimpse - Visual Studio Code".
func filenameInTitle(windowTitle string) string {
	for _, field := range strings.Fields(windowTitle) {
		token := strings.Trim(field, "\"'`*\u25cf\u2022:;,")
		if looksLikeFilename(token) {
			return token
		}
	}
	return ""
}
