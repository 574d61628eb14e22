package tracker

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

var tokenSecret = []byte("0123456789abcdef0123456789abcdef")

func sampleClaims() CacheClaims {
	return CacheClaims{
		SourceID:  uuid.MustParse("0d4b1f6e-9a14-4a6a-b2f0-1f2e3d4c5b6a"),
		SessionID: DeriveID("session"),
		VisitID:   DeriveID("visit"),
		IssuedAt:  time.Date(2026, time.March, 3, 10, 0, 0, 0, time.UTC).Unix(),
	}
}

func TestCacheToken_RoundTrip(t *testing.T) {
	claims := sampleClaims()

	token, err := EncodeCacheToken(claims, tokenSecret)
	if err != nil {
		t.Fatalf("EncodeCacheToken returned error: %v", err)
	}

	decoded := DecodeCacheToken(token, tokenSecret)
	if decoded == nil {
		t.Fatal("expected a freshly issued token to decode")
	}
	if *decoded != claims {
		t.Fatalf("round trip mismatch: got %+v, want %+v", *decoded, claims)
	}
}

func TestCacheToken_DecodeFailuresYieldNil(t *testing.T) {
	token, err := EncodeCacheToken(sampleClaims(), tokenSecret)
	if err != nil {
		t.Fatalf("EncodeCacheToken returned error: %v", err)
	}

	cases := map[string]struct {
		token  string
		secret []byte
	}{
		"missing":      {"", tokenSecret},
		"garbage":      {"not-a-token", tokenSecret},
		"wrong secret": {token, []byte("another-secret-another-secret-00")},
		"truncated":    {token[:len(token)-10], tokenSecret},
		"no secret":    {token, nil},
	}

	for name, tc := range cases {
		if got := DecodeCacheToken(tc.token, tc.secret); got != nil {
			t.Fatalf("%s: expected nil, got %+v", name, got)
		}
	}
}

func TestCacheToken_ZeroClaimsStillDecode(t *testing.T) {
	token, err := EncodeCacheToken(CacheClaims{}, tokenSecret)
	if err != nil {
		t.Fatalf("EncodeCacheToken returned error: %v", err)
	}
	// Zero UUIDs are still well-formed uuids, so the shape check passes.
	if DecodeCacheToken(token, tokenSecret) == nil {
		t.Fatal("expected zero-value claims to survive a round trip")
	}
}
