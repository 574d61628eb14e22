package tracker

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// VisitIdleWindow bounds how long a visit survives without activity. A hit
// arriving later than this after the visit's iat starts a new visit,
// regardless of the hourly salt.
const VisitIdleWindow = 30 * time.Minute

// idNamespace seeds deterministic UUID derivation. Changing it invalidates
// every stored session and visit id.
var idNamespace = uuid.MustParse("5f1a76f2-8139-4cbe-8f4a-6a1dbd3c90e7")

// DeriveID maps an ordered list of parts onto a stable UUID.
func DeriveID(parts ...string) uuid.UUID {
	return uuid.NewSHA1(idNamespace, []byte(strings.Join(parts, "\x1f")))
}

// MonthSalt rotates at the start of every UTC month. It bounds how long an
// (ip, user agent) pair maps to the same session identity.
func MonthSalt(now time.Time) string {
	t := now.UTC()
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return DeriveID(strconv.FormatInt(start.Unix(), 10)).String()
}

// HourSalt rotates at the start of every UTC hour. It keeps visit ids from
// repeating indefinitely when no cache token is presented; the idle window is
// the authoritative visit boundary.
func HourSalt(now time.Time) string {
	start := now.UTC().Truncate(time.Hour)
	return DeriveID(strconv.FormatInt(start.Unix(), 10)).String()
}

// ResolveInput collects everything identity derivation depends on. Resolve is
// pure: equal inputs always produce equal outputs.
type ResolveInput struct {
	SourceID   uuid.UUID
	IP         string
	UserAgent  string
	DistinctID string
	// HasClientTime disables idle rotation: an explicit client timestamp
	// means the client, not the server clock, owns event ordering.
	HasClientTime bool
	Cache         *CacheClaims
	Now           time.Time
}

// Identity is the resolved pseudonymous identity for one hit.
type Identity struct {
	SessionID uuid.UUID
	VisitID   uuid.UUID
	IssuedAt  int64
}

// Resolve derives the session and visit identifiers for a hit.
//
// The session id is a pure function of (source, distinctId) when a distinct
// id was supplied, and of (source, ip, userAgent, monthSalt) otherwise. The
// visit id and iat are carried over from a valid cache token when present,
// then rotated if the idle window has elapsed.
func Resolve(in ResolveInput) Identity {
	var sessionID uuid.UUID
	if in.DistinctID != "" {
		sessionID = DeriveID(in.SourceID.String(), in.DistinctID)
	} else {
		sessionID = DeriveID(in.SourceID.String(), in.IP, in.UserAgent, MonthSalt(in.Now))
	}

	visitID := uuid.Nil
	iat := in.Now.Unix()
	if in.Cache != nil {
		visitID = in.Cache.VisitID
		iat = in.Cache.IssuedAt
	} else {
		visitID = DeriveID(sessionID.String(), HourSalt(in.Now))
	}

	if !in.HasClientTime && in.Now.Unix()-iat > int64(VisitIdleWindow/time.Second) {
		// The hour salt alone cannot rotate a visit whose stale id was derived
		// in the same UTC hour; the reset iat goes into the derivation so a
		// forced rotation always yields a fresh id.
		iat = in.Now.Unix()
		visitID = DeriveID(sessionID.String(), HourSalt(in.Now), strconv.FormatInt(iat, 10))
	}

	return Identity{SessionID: sessionID, VisitID: visitID, IssuedAt: iat}
}
