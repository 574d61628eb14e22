package tracker

import (
	"errors"
	"strings"
	"testing"
)

const (
	websiteID = "0d4b1f6e-9a14-4a6a-b2f0-1f2e3d4c5b6a"
	linkID    = "7a1c2b3d-4e5f-4a6b-8c9d-0e1f2a3b4c5d"
)

func TestValidate_EventWithWebsite(t *testing.T) {
	env := Envelope{Type: TypeEvent, Payload: Payload{Website: websiteID, URL: "/"}}

	p, src, err := env.Validate()
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if src.Kind != SourceWebsite {
		t.Fatalf("expected website source, got %s", src.Kind)
	}
	if src.ID.String() != websiteID {
		t.Fatalf("source id: got %s", src.ID)
	}
	if p.URL != "/" {
		t.Fatal("expected payload passed through")
	}
}

func TestValidate_RejectsUnknownType(t *testing.T) {
	env := Envelope{Type: "telemetry", Payload: Payload{Website: websiteID}}
	if _, _, err := env.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestValidate_ExactlyOneSource(t *testing.T) {
	cases := map[string]Payload{
		"none":             {},
		"website and link": {Website: websiteID, Link: linkID},
		"all three":        {Website: websiteID, Link: linkID, Pixel: websiteID},
	}

	for name, p := range cases {
		env := Envelope{Type: TypeEvent, Payload: p}
		if _, _, err := env.Validate(); !errors.Is(err, ErrValidation) {
			t.Fatalf("%s: expected ErrValidation, got %v", name, err)
		}
	}
}

func TestValidate_RejectsMalformedUUID(t *testing.T) {
	env := Envelope{Type: TypeEvent, Payload: Payload{Website: "not-a-uuid"}}
	if _, _, err := env.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestValidate_FieldLimits(t *testing.T) {
	cases := map[string]Payload{
		"hostname": {Website: websiteID, Hostname: strings.Repeat("a", 101)},
		"language": {Website: websiteID, Language: strings.Repeat("a", 36)},
		"screen":   {Website: websiteID, Screen: strings.Repeat("1", 12)},
		"name":     {Website: websiteID, Name: strings.Repeat("a", 51)},
		"tag":      {Website: websiteID, Tag: strings.Repeat("a", 51)},
	}

	for name, p := range cases {
		env := Envelope{Type: TypeEvent, Payload: p}
		if _, _, err := env.Validate(); !errors.Is(err, ErrValidation) {
			t.Fatalf("%s: expected ErrValidation, got %v", name, err)
		}
	}
}

func TestValidate_LinkSource(t *testing.T) {
	env := Envelope{Type: TypeEvent, Payload: Payload{Link: linkID}}

	_, src, err := env.Validate()
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if src.Kind != SourceLink {
		t.Fatalf("expected link source, got %s", src.Kind)
	}
}

func TestValidate_IdentifyEnvelope(t *testing.T) {
	env := Envelope{Type: TypeIdentify, Payload: Payload{
		Website: websiteID,
		ID:      "user-42",
		Data:    map[string]any{"plan": "pro"},
	}}

	p, _, err := env.Validate()
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if p.ID != "user-42" {
		t.Fatal("expected distinct id passed through")
	}
}
