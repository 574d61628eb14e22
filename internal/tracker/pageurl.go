package tracker

import (
	"net/url"
	"strings"
)

// UTM holds campaign parameters extracted verbatim from the landing URL.
type UTM struct {
	Source   string
	Medium   string
	Campaign string
	Content  string
	Term     string
}

// ClickIDs holds ad-platform click identifiers extracted verbatim.
type ClickIDs struct {
	Gclid   string
	Fbclid  string
	Msclkid string
	Ttclid  string
	LiFatID string
	Twclid  string
}

// PageInfo is the normalized view of a target or referrer URL.
type PageInfo struct {
	Domain string
	Path   string
	Query  string
	UTM    UTM
	Clicks ClickIDs
}

// NormalizeOptions carries deployment-level normalization flags.
type NormalizeOptions struct {
	RemoveTrailingSlash bool
}

// NormalizePage resolves rawURL against https://{hostname} (localhost when no
// hostname is given) and canonicalizes it: leading www. stripped from the
// domain, /undefined collapsed to empty, the hash fragment appended to the
// path, and the raw query kept without its leading question mark. Unparseable
// input yields a zero PageInfo rather than an error. Referrers go through the
// same function, independently of the target URL.
func NormalizePage(rawURL, hostname string, opts NormalizeOptions) PageInfo {
	base := "https://localhost"
	if hostname != "" {
		base = "https://" + hostname
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return PageInfo{}
	}

	raw := strings.TrimSpace(rawURL)
	u, err := baseURL.Parse(raw)
	if err != nil {
		// Invalid percent escapes: keep the raw bytes instead of rejecting
		// the hit.
		u, err = baseURL.Parse(strings.ReplaceAll(raw, "%", "%25"))
		if err != nil {
			return PageInfo{}
		}
	}

	path := u.Path
	if path == "/undefined" {
		path = ""
	}
	if u.Fragment != "" {
		path += "#" + u.Fragment
	}
	if opts.RemoveTrailingSlash && len(path) > 1 && !strings.HasPrefix(path, "#") && strings.HasSuffix(path, "/") {
		path = strings.TrimSuffix(path, "/")
	}

	q := u.Query()

	return PageInfo{
		Domain: strings.TrimPrefix(strings.ToLower(u.Hostname()), "www."),
		Path:   path,
		Query:  u.RawQuery,
		UTM: UTM{
			Source:   q.Get("utm_source"),
			Medium:   q.Get("utm_medium"),
			Campaign: q.Get("utm_campaign"),
			Content:  q.Get("utm_content"),
			Term:     q.Get("utm_term"),
		},
		Clicks: ClickIDs{
			Gclid:   q.Get("gclid"),
			Fbclid:  q.Get("fbclid"),
			Msclkid: q.Get("msclkid"),
			Ttclid:  q.Get("ttclid"),
			LiFatID: q.Get("li_fat_id"),
			Twclid:  q.Get("twclid"),
		},
	}
}

// SafeDecode percent-decodes s, falling back to the original string when the
// encoding is invalid.
func SafeDecode(s string) string {
	decoded, err := url.PathUnescape(s)
	if err != nil {
		return s
	}
	return decoded
}
