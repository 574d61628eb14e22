package enrich

import (
	"context"
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Location is the geo portion of the client context. Empty values mean the
// lookup failed or was skipped; that is never an error.
type Location struct {
	Country string `json:"country"`
	Region  string `json:"region"`
	City    string `json:"city"`
}

// ClientInfo is the resolved client context for one hit.
type ClientInfo struct {
	IP        string
	UserAgent string
	Browser   string
	OS        string
	Device    string
	Location  Location
}

// Request carries the raw material the enricher works from. Payload overrides
// win over headers so server-side trackers can relay the real client.
type Request struct {
	RemoteIP     string
	ForwardedFor string
	UserAgent    string
	OverrideIP   string
	OverrideUA   string
	Screen       string
}

// GeoLocator resolves an IP to a location. Implementations must swallow
// failures and return an empty Location instead.
type GeoLocator interface {
	Lookup(ctx context.Context, ip string) Location
}

// Enricher resolves client context and applies the bot and blocklist gates.
type Enricher struct {
	logger  *zap.Logger
	geo     GeoLocator
	blocked []netip.Prefix
}

// New builds an Enricher. blockedIPs accepts single addresses and CIDR
// ranges; geo may be nil, in which case locations stay empty.
func New(logger *zap.Logger, geo GeoLocator, blockedIPs []string) (*Enricher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	prefixes := make([]netip.Prefix, 0, len(blockedIPs))
	for _, entry := range blockedIPs {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if p, err := netip.ParsePrefix(entry); err == nil {
			prefixes = append(prefixes, p)
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("enrich: invalid blocked ip %q: %w", entry, err)
		}
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}

	return &Enricher{logger: logger, geo: geo, blocked: prefixes}, nil
}

// Resolve computes the full client context. Geolocation failures degrade to
// an empty location; this method never fails.
func (e *Enricher) Resolve(ctx context.Context, req Request) ClientInfo {
	ip := req.OverrideIP
	if ip == "" {
		ip = firstForwardedHop(req.ForwardedFor)
	}
	if ip == "" {
		ip = req.RemoteIP
	}

	ua := req.OverrideUA
	if ua == "" {
		ua = req.UserAgent
	}

	info := ClientInfo{
		IP:        ip,
		UserAgent: ua,
		Browser:   parseBrowser(ua),
		OS:        parseOS(ua),
		Device:    deviceType(req.Screen, ua),
	}

	if e.geo != nil && ip != "" && !isPrivateIP(ip) {
		info.Location = e.geo.Lookup(ctx, ip)
	}

	return info
}

// IsBlockedIP reports whether ip falls inside a configured blocklist range.
func (e *Enricher) IsBlockedIP(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range e.blocked {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

var botMarkers = []string{
	"bot", "crawler", "spider", "crawling",
	"headless", "phantom", "selenium", "puppeteer", "playwright",
	"curl", "wget", "python-requests", "python-urllib", "go-http-client",
	"lighthouse", "pingdom", "uptimerobot",
}

// IsBot classifies obviously automated user agents. An empty user agent is
// treated as automated as well: real browsers always send one.
func (e *Enricher) IsBot(userAgent string) bool {
	if strings.TrimSpace(userAgent) == "" {
		return true
	}
	ua := strings.ToLower(userAgent)
	for _, marker := range botMarkers {
		if strings.Contains(ua, marker) {
			return true
		}
	}
	return false
}

func firstForwardedHop(header string) string {
	if header == "" {
		return ""
	}
	first, _, _ := strings.Cut(header, ",")
	return strings.TrimSpace(first)
}

func isPrivateIP(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	return addr.IsPrivate() || addr.IsLoopback() || addr.IsLinkLocalUnicast() || addr.IsUnspecified()
}

func parseBrowser(ua string) string {
	l := strings.ToLower(ua)
	switch {
	case l == "":
		return ""
	case strings.Contains(l, "edg/") || strings.Contains(l, "edge/"):
		return "edge"
	case strings.Contains(l, "opr/") || strings.Contains(l, "opera"):
		return "opera"
	case strings.Contains(l, "samsungbrowser"):
		return "samsung"
	case strings.Contains(l, "firefox/"):
		return "firefox"
	case strings.Contains(l, "chrome/") || strings.Contains(l, "crios/"):
		return "chrome"
	case strings.Contains(l, "safari/"):
		return "safari"
	case strings.Contains(l, "msie") || strings.Contains(l, "trident/"):
		return "ie"
	default:
		return ""
	}
}

func parseOS(ua string) string {
	l := strings.ToLower(ua)
	switch {
	case l == "":
		return ""
	case strings.Contains(l, "iphone") || strings.Contains(l, "ipad") || strings.Contains(l, "ipod"):
		return "ios"
	case strings.Contains(l, "android"):
		return "android"
	case strings.Contains(l, "windows"):
		return "windows"
	case strings.Contains(l, "mac os x") || strings.Contains(l, "macintosh"):
		return "macos"
	case strings.Contains(l, "cros"):
		return "chromeos"
	case strings.Contains(l, "linux"):
		return "linux"
	default:
		return ""
	}
}

// deviceType prefers the reported screen width over user agent sniffing.
func deviceType(screen, ua string) string {
	if w, ok := screenWidth(screen); ok {
		switch {
		case w <= 512:
			return "mobile"
		case w <= 992:
			return "tablet"
		case w <= 1920:
			return "laptop"
		default:
			return "desktop"
		}
	}

	l := strings.ToLower(ua)
	switch {
	case strings.Contains(l, "ipad") || strings.Contains(l, "tablet"):
		return "tablet"
	case strings.Contains(l, "mobile") || strings.Contains(l, "iphone") || strings.Contains(l, "android"):
		return "mobile"
	case l == "":
		return ""
	default:
		return "desktop"
	}
}

func screenWidth(screen string) (int, bool) {
	raw, _, ok := strings.Cut(screen, "x")
	if !ok {
		return 0, false
	}
	w, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || w <= 0 {
		return 0, false
	}
	return w, true
}
