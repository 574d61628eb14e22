package tracker

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrValidation marks client errors that map to a 400 with no side effects.
var ErrValidation = errors.New("invalid payload")

const (
	TypeEvent    = "event"
	TypeIdentify = "identify"
)

// SourceKind tags which identifier a hit is attributed to.
type SourceKind string

const (
	SourceWebsite SourceKind = "website"
	SourceLink    SourceKind = "link"
	SourcePixel   SourceKind = "pixel"
)

// Source is the tagged source identifier parsed out of the exactly-one-of
// website|link|pixel fields at validation time.
type Source struct {
	Kind SourceKind
	ID   uuid.UUID
}

// Envelope is the wire shape of a tracking request.
type Envelope struct {
	Type    string  `json:"type"`
	Payload Payload `json:"payload"`
}

// Payload carries the hit itself. Exactly one of Website, Link or Pixel must
// be present.
type Payload struct {
	Website string `json:"website,omitempty"`
	Link    string `json:"link,omitempty"`
	Pixel   string `json:"pixel,omitempty"`

	Data      map[string]any `json:"data,omitempty"`
	Hostname  string         `json:"hostname,omitempty"`
	Language  string         `json:"language,omitempty"`
	Referrer  string         `json:"referrer,omitempty"`
	Screen    string         `json:"screen,omitempty"`
	Title     string         `json:"title,omitempty"`
	URL       string         `json:"url,omitempty"`
	Name      string         `json:"name,omitempty"`
	Tag       string         `json:"tag,omitempty"`
	IP        string         `json:"ip,omitempty"`
	UserAgent string         `json:"userAgent,omitempty"`
	Timestamp int64          `json:"timestamp,omitempty"`
	ID        string         `json:"id,omitempty"`
}

const (
	maxHostnameLen = 100
	maxLanguageLen = 35
	maxScreenLen   = 11
	maxNameLen     = 50
	maxTagLen      = 50
)

// Validate schema-checks the envelope and resolves the source identifier.
// Failures wrap ErrValidation and must cause no side effects downstream.
func (e *Envelope) Validate() (*Payload, Source, error) {
	if e.Type != TypeEvent && e.Type != TypeIdentify {
		return nil, Source{}, fmt.Errorf("%w: type must be %q or %q", ErrValidation, TypeEvent, TypeIdentify)
	}

	p := &e.Payload

	if len(p.Hostname) > maxHostnameLen {
		return nil, Source{}, fmt.Errorf("%w: hostname exceeds %d characters", ErrValidation, maxHostnameLen)
	}
	if len(p.Language) > maxLanguageLen {
		return nil, Source{}, fmt.Errorf("%w: language exceeds %d characters", ErrValidation, maxLanguageLen)
	}
	if len(p.Screen) > maxScreenLen {
		return nil, Source{}, fmt.Errorf("%w: screen exceeds %d characters", ErrValidation, maxScreenLen)
	}
	if len(p.Name) > maxNameLen {
		return nil, Source{}, fmt.Errorf("%w: name exceeds %d characters", ErrValidation, maxNameLen)
	}
	if len(p.Tag) > maxTagLen {
		return nil, Source{}, fmt.Errorf("%w: tag exceeds %d characters", ErrValidation, maxTagLen)
	}
	if p.Timestamp < 0 {
		return nil, Source{}, fmt.Errorf("%w: timestamp must be unix seconds", ErrValidation)
	}

	src, err := resolveSource(p)
	if err != nil {
		return nil, Source{}, err
	}

	return p, src, nil
}

func resolveSource(p *Payload) (Source, error) {
	var (
		src   Source
		count int
	)

	for _, candidate := range []struct {
		kind SourceKind
		raw  string
	}{
		{SourceWebsite, p.Website},
		{SourceLink, p.Link},
		{SourcePixel, p.Pixel},
	} {
		if candidate.raw == "" {
			continue
		}
		count++
		id, err := uuid.Parse(candidate.raw)
		if err != nil {
			return Source{}, fmt.Errorf("%w: %s must be a valid uuid", ErrValidation, candidate.kind)
		}
		src = Source{Kind: candidate.kind, ID: id}
	}

	if count != 1 {
		return Source{}, fmt.Errorf("%w: exactly one of website, link or pixel is required", ErrValidation)
	}

	return src, nil
}
