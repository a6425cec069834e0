package ics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const icsTimestamp = "20060102T150405Z"

func TestClientUpcomingFiltersWindow(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	inWindow := now.Add(5 * time.Minute)
	outOfWindow := now.Add(15 * time.Minute)

	body := icsDoc(
		"BEGIN:VEVENT",
		"UID:soon",
		"SUMMARY:Starting soon",
		"DTSTART:"+inWindow.Format(icsTimestamp),
		"DTEND:"+inWindow.Add(30*time.Minute).Format(icsTimestamp),
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:later",
		"SUMMARY:Starting later",
		"DTSTART:"+outOfWindow.Format(icsTimestamp),
		"DTEND:"+outOfWindow.Add(30*time.Minute).Format(icsTimestamp),
		"END:VEVENT",
	)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(body)
	}))
	defer ts.Close()

	f := NewFetcher(t.TempDir(), 2*time.Second)
	c := NewClient(f, Source{ID: "test", URL: ts.URL}, 10*time.Minute, time.UTC)

	occs := c.Upcoming(context.Background(), now)
	if len(occs) != 1 {
		t.Fatalf("expected 1 occurrence in window, got %d", len(occs))
	}
	if occs[0].UID != "soon" {
		t.Fatalf("UID = %q, want %q", occs[0].UID, "soon")
	}
	if !occs[0].Start.Equal(inWindow) {
		t.Fatalf("Start = %v, want %v", occs[0].Start, inWindow)
	}
}

func TestClientUpcomingAbsorbsFetchFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer ts.Close()

	f := NewFetcher(t.TempDir(), 2*time.Second)
	c := NewClient(f, Source{ID: "test", URL: ts.URL}, 10*time.Minute, time.UTC)

	if occs := c.Upcoming(context.Background(), time.Now()); len(occs) != 0 {
		t.Fatalf("expected empty result on fetch failure, got %d occurrences", len(occs))
	}
}

func TestClientUpcomingAbsorbsMalformedBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("definitely not an ICS document"))
	}))
	defer ts.Close()

	f := NewFetcher(t.TempDir(), 2*time.Second)
	c := NewClient(f, Source{ID: "test", URL: ts.URL}, 10*time.Minute, time.UTC)

	if occs := c.Upcoming(context.Background(), time.Now()); len(occs) != 0 {
		t.Fatalf("expected empty result on parse failure, got %d occurrences", len(occs))
	}
}

func TestClientUpcomingAbsorbsUnreachableHost(t *testing.T) {
	f := NewFetcher(t.TempDir(), 500*time.Millisecond)
	c := NewClient(f, Source{ID: "test", URL: "http://127.0.0.1:1/feed.ics"}, 10*time.Minute, time.UTC)

	if occs := c.Upcoming(context.Background(), time.Now()); len(occs) != 0 {
		t.Fatalf("expected empty result for unreachable host, got %d occurrences", len(occs))
	}
}
