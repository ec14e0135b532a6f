package youtube

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestExtractVideoID(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42s", "dQw4w9WgXcQ"},
		{"dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"  https://youtu.be/dQw4w9WgXcQ  ", "dQw4w9WgXcQ"},
	}
	for _, tc := range cases {
		got, err := ExtractVideoID(tc.in)
		if err != nil {
			t.Errorf("ExtractVideoID(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ExtractVideoID(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestExtractVideoIDRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "https://example.com/watch?v=nope", "tooshort"} {
		if _, err := ExtractVideoID(in); err == nil {
			t.Errorf("ExtractVideoID(%q) should fail", in)
		}
	}
}

func TestFetchTranscript(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/watch"):
			// Watch page with a German track first; the English one
			// must win.
			w.Write([]byte(`<html>..."captionTracks":[` +
				`{"baseUrl":"/api/timedtext?v=abc&lang=de","languageCode":"de"},` +
				`{"baseUrl":"/api/timedtext?v=abc&lang=en","languageCode":"en"}]...</html>`))
		case strings.HasPrefix(r.URL.Path, "/api/timedtext"):
			if lang := r.URL.Query().Get("lang"); lang != "en" {
				t.Errorf("fetched %q track, want en", lang)
			}
			w.Write([]byte(`<?xml version="1.0"?><transcript>` +
				`<text start="0.5" dur="3">Hello &amp; welcome</text>` +
				`<text start="61.2" dur="3">one minute in</text>` +
				`<text start="90.0" dur="3">mid-minute</text>` +
				`</transcript>`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := &Client{baseURL: srv.URL, client: srv.Client()}
	got, err := c.FetchTranscript(context.Background(), "abc")
	if err != nil {
		t.Fatalf("FetchTranscript: %v", err)
	}

	if !strings.Contains(got, "Hello & welcome") {
		t.Errorf("entities not unescaped: %q", got)
	}
	if !strings.Contains(got, "[1:00] one minute in") {
		t.Errorf("minute marker missing near boundary: %q", got)
	}
	if strings.Contains(got, "[1:00] mid-minute") {
		t.Errorf("marker must only appear near minute boundaries: %q", got)
	}
}

func TestFetchTranscriptNoCaptions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>no captions here</html>`))
	}))
	defer srv.Close()

	c := &Client{baseURL: srv.URL, client: srv.Client()}
	if _, err := c.FetchTranscript(context.Background(), "abc"); err == nil {
		t.Fatal("expected error for a video without caption tracks")
	}
}
