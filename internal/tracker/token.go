package tracker

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// CacheClaims is the decoded content of a cache token. It is never persisted;
// it exists only to let repeat hits from one page load skip identity
// recomputation and storage lookups.
type CacheClaims struct {
	SourceID  uuid.UUID
	SessionID uuid.UUID
	VisitID   uuid.UUID
	IssuedAt  int64
}

type tokenClaims struct {
	SourceID  string `json:"sourceId"`
	SessionID string `json:"sessionId"`
	VisitID   string `json:"visitId"`
	jwt.RegisteredClaims
}

// EncodeCacheToken signs the claims with HS256. Issued at the end of every
// successful response so the client always carries the freshest identity.
func EncodeCacheToken(c CacheClaims, secret []byte) (string, error) {
	claims := &tokenClaims{
		SourceID:  c.SourceID.String(),
		SessionID: c.SessionID.String(),
		VisitID:   c.VisitID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(time.Unix(c.IssuedAt, 0)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// DecodeCacheToken verifies signature and shape. Any failure — missing,
// malformed, forged, wrong secret — yields nil, never an error: the pipeline
// treats it as a cache miss and performs full resolution.
func DecodeCacheToken(token string, secret []byte) *CacheClaims {
	if token == "" || len(secret) == 0 {
		return nil
	}

	parsed, err := jwt.ParseWithClaims(token, &tokenClaims{}, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !parsed.Valid {
		return nil
	}

	tc, ok := parsed.Claims.(*tokenClaims)
	if !ok || tc.IssuedAt == nil {
		return nil
	}

	sourceID, err := uuid.Parse(tc.SourceID)
	if err != nil {
		return nil
	}
	sessionID, err := uuid.Parse(tc.SessionID)
	if err != nil {
		return nil
	}
	visitID, err := uuid.Parse(tc.VisitID)
	if err != nil {
		return nil
	}

	return &CacheClaims{
		SourceID:  sourceID,
		SessionID: sessionID,
		VisitID:   visitID,
		IssuedAt:  tc.IssuedAt.Unix(),
	}
}
