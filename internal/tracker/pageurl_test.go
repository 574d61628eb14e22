package tracker

import "testing"

func TestNormalizePage_FullURL(t *testing.T) {
	page := NormalizePage("https://www.example.com/a/b?x=1&utm_source=nl#sec", "example.com", NormalizeOptions{})

	if page.Domain != "example.com" {
		t.Fatalf("domain: got %q", page.Domain)
	}
	if page.Path != "/a/b#sec" {
		t.Fatalf("path: got %q", page.Path)
	}
	if page.Query != "x=1&utm_source=nl" {
		t.Fatalf("query: got %q", page.Query)
	}
	if page.UTM.Source != "nl" {
		t.Fatalf("utm_source: got %q", page.UTM.Source)
	}
}

func TestNormalizePage_RelativeAgainstHostname(t *testing.T) {
	page := NormalizePage("/pricing?plan=pro", "shop.example.com", NormalizeOptions{})

	if page.Domain != "shop.example.com" {
		t.Fatalf("domain: got %q", page.Domain)
	}
	if page.Path != "/pricing" {
		t.Fatalf("path: got %q", page.Path)
	}
	if page.Query != "plan=pro" {
		t.Fatalf("query: got %q", page.Query)
	}
}

func TestNormalizePage_NoHostnameFallsBackToLocalhost(t *testing.T) {
	page := NormalizePage("/a", "", NormalizeOptions{})
	if page.Domain != "localhost" {
		t.Fatalf("domain: got %q", page.Domain)
	}
}

func TestNormalizePage_UndefinedPathBecomesEmpty(t *testing.T) {
	page := NormalizePage("/undefined", "example.com", NormalizeOptions{})
	if page.Path != "" {
		t.Fatalf("expected empty path, got %q", page.Path)
	}
}

func TestNormalizePage_FragmentOnly(t *testing.T) {
	page := NormalizePage("https://example.com/docs/#install", "example.com", NormalizeOptions{RemoveTrailingSlash: true})
	// Trailing slash sits before the fragment, so nothing is stripped.
	if page.Path != "/docs/#install" {
		t.Fatalf("path: got %q", page.Path)
	}
}

func TestNormalizePage_TrailingSlash(t *testing.T) {
	with := NormalizePage("https://example.com/a/b/", "example.com", NormalizeOptions{})
	if with.Path != "/a/b/" {
		t.Fatalf("expected slash kept by default, got %q", with.Path)
	}

	without := NormalizePage("https://example.com/a/b/", "example.com", NormalizeOptions{RemoveTrailingSlash: true})
	if without.Path != "/a/b" {
		t.Fatalf("expected slash stripped, got %q", without.Path)
	}

	root := NormalizePage("https://example.com/", "example.com", NormalizeOptions{RemoveTrailingSlash: true})
	if root.Path != "/" {
		t.Fatalf("expected bare root kept, got %q", root.Path)
	}
}

func TestNormalizePage_InvalidPercentEncodingKeepsRawBytes(t *testing.T) {
	page := NormalizePage("/a%zzb", "example.com", NormalizeOptions{})
	if page.Path != "/a%zzb" {
		t.Fatalf("expected raw path preserved, got %q", page.Path)
	}
}

func TestNormalizePage_ClickIdentifiers(t *testing.T) {
	page := NormalizePage("https://example.com/?gclid=g1&fbclid=f1&msclkid=m1&ttclid=t1&li_fat_id=l1&twclid=w1", "example.com", NormalizeOptions{})

	got := page.Clicks
	want := ClickIDs{Gclid: "g1", Fbclid: "f1", Msclkid: "m1", Ttclid: "t1", LiFatID: "l1", Twclid: "w1"}
	if got != want {
		t.Fatalf("click ids: got %+v, want %+v", got, want)
	}
}

func TestNormalizePage_Referrer(t *testing.T) {
	ref := NormalizePage("https://ref.com/page?y=2", "example.com", NormalizeOptions{})

	if ref.Domain != "ref.com" {
		t.Fatalf("referrer domain: got %q", ref.Domain)
	}
	if ref.Path != "/page" {
		t.Fatalf("referrer path: got %q", ref.Path)
	}
	if ref.Query != "y=2" {
		t.Fatalf("referrer query: got %q", ref.Query)
	}
}

func TestNormalizePage_StripsWWW(t *testing.T) {
	page := NormalizePage("https://WWW.Example.com/x", "example.com", NormalizeOptions{})
	if page.Domain != "example.com" {
		t.Fatalf("domain: got %q", page.Domain)
	}
}

func TestSafeDecode(t *testing.T) {
	if got := SafeDecode("caf%C3%A9"); got != "café" {
		t.Fatalf("decode: got %q", got)
	}
	if got := SafeDecode("50%_off"); got != "50%_off" {
		t.Fatalf("expected invalid encoding returned untouched, got %q", got)
	}
}
