package enrich

import (
	"context"
	"testing"
)

const chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
const iphoneUA = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"

type staticGeo struct {
	loc    Location
	called bool
}

func (s *staticGeo) Lookup(ctx context.Context, ip string) Location {
	s.called = true
	return s.loc
}

func newEnricher(t *testing.T, geo GeoLocator, blocked []string) *Enricher {
	t.Helper()
	e, err := New(nil, geo, blocked)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return e
}

func TestResolve_IPPrecedence(t *testing.T) {
	e := newEnricher(t, nil, nil)

	info := e.Resolve(context.Background(), Request{
		RemoteIP:     "10.0.0.1",
		ForwardedFor: "203.0.113.9, 10.0.0.2",
		UserAgent:    chromeUA,
	})
	if info.IP != "203.0.113.9" {
		t.Fatalf("expected first forwarded hop, got %q", info.IP)
	}

	info = e.Resolve(context.Background(), Request{
		RemoteIP:     "10.0.0.1",
		ForwardedFor: "203.0.113.9",
		OverrideIP:   "198.51.100.7",
		UserAgent:    chromeUA,
	})
	if info.IP != "198.51.100.7" {
		t.Fatalf("expected payload override to win, got %q", info.IP)
	}

	info = e.Resolve(context.Background(), Request{RemoteIP: "10.0.0.1", UserAgent: chromeUA})
	if info.IP != "10.0.0.1" {
		t.Fatalf("expected remote addr fallback, got %q", info.IP)
	}
}

func TestResolve_UserAgentParsing(t *testing.T) {
	e := newEnricher(t, nil, nil)

	info := e.Resolve(context.Background(), Request{RemoteIP: "1.2.3.4", UserAgent: chromeUA, Screen: "1920x1080"})
	if info.Browser != "chrome" || info.OS != "windows" {
		t.Fatalf("chrome ua: got browser=%q os=%q", info.Browser, info.OS)
	}
	if info.Device != "laptop" {
		t.Fatalf("1920 wide screen: got device=%q", info.Device)
	}

	info = e.Resolve(context.Background(), Request{RemoteIP: "1.2.3.4", UserAgent: iphoneUA, Screen: "390x844"})
	if info.Browser != "safari" || info.OS != "ios" || info.Device != "mobile" {
		t.Fatalf("iphone ua: got browser=%q os=%q device=%q", info.Browser, info.OS, info.Device)
	}
}

func TestResolve_PrivateIPSkipsGeo(t *testing.T) {
	geo := &staticGeo{loc: Location{Country: "DE"}}
	e := newEnricher(t, geo, nil)

	info := e.Resolve(context.Background(), Request{RemoteIP: "192.168.1.5", UserAgent: chromeUA})
	if geo.called {
		t.Fatal("expected private ip to skip the geo lookup")
	}
	if info.Location.Country != "" {
		t.Fatalf("expected empty location, got %q", info.Location.Country)
	}

	info = e.Resolve(context.Background(), Request{RemoteIP: "203.0.113.9", UserAgent: chromeUA})
	if !geo.called {
		t.Fatal("expected public ip to hit the geo lookup")
	}
	if info.Location.Country != "DE" {
		t.Fatalf("expected geo result, got %q", info.Location.Country)
	}
}

func TestIsBot(t *testing.T) {
	e := newEnricher(t, nil, nil)

	bots := []string{
		"",
		"Googlebot/2.1 (+http://www.google.com/bot.html)",
		"curl/8.4.0",
		"Mozilla/5.0 HeadlessChrome/120.0.0.0",
		"python-requests/2.31",
	}
	for _, ua := range bots {
		if !e.IsBot(ua) {
			t.Fatalf("expected %q to classify as a bot", ua)
		}
	}

	if e.IsBot(chromeUA) || e.IsBot(iphoneUA) {
		t.Fatal("expected real browser user agents to pass")
	}
}

func TestIsBlockedIP(t *testing.T) {
	e := newEnricher(t, nil, []string{"203.0.113.0/24", "198.51.100.7"})

	if !e.IsBlockedIP("203.0.113.55") {
		t.Fatal("expected cidr match to block")
	}
	if !e.IsBlockedIP("198.51.100.7") {
		t.Fatal("expected single address match to block")
	}
	if e.IsBlockedIP("8.8.8.8") {
		t.Fatal("expected unlisted ip to pass")
	}
	if e.IsBlockedIP("not-an-ip") {
		t.Fatal("expected unparseable ip to pass")
	}
}

func TestNew_RejectsBadBlocklistEntry(t *testing.T) {
	if _, err := New(nil, nil, []string{"definitely-not-an-ip"}); err == nil {
		t.Fatal("expected an error for an invalid blocklist entry")
	}
}
