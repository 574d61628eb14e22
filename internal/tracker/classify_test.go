package tracker

import (
	"testing"

	"github.com/google/uuid"
)

func TestClassify_Precedence(t *testing.T) {
	id := uuid.New()

	cases := []struct {
		name  string
		src   Source
		event string
		want  string
	}{
		{"pageview by default", Source{Kind: SourceWebsite, ID: id}, "", EventTypePageView},
		{"custom when named", Source{Kind: SourceWebsite, ID: id}, "signup", EventTypeCustom},
		{"link beats custom", Source{Kind: SourceLink, ID: id}, "signup", EventTypeLink},
		{"pixel beats custom", Source{Kind: SourcePixel, ID: id}, "signup", EventTypePixel},
		{"plain link", Source{Kind: SourceLink, ID: id}, "", EventTypeLink},
	}

	for _, tc := range cases {
		if got := Classify(tc.src, tc.event); got != tc.want {
			t.Fatalf("%s: got %q, want %q", tc.name, got, tc.want)
		}
	}
}
