package ics

import (
	"context"
	"time"

	appLog "remindd/internal/log"
	"remindd/internal/model"
)

// Client bundles one feed source with a Fetcher and the reminder-window
// parameters. It is the unit a reminder session polls: one call per tick,
// no state beyond the HTTP cache.
type Client struct {
	fetcher *Fetcher
	source  Source
	window  time.Duration
	display *time.Location
}

// NewClient creates a Client for the given source.
//
// window is the reminder lookahead W; display is the timezone occurrence
// times are rendered in (nil means UTC).
func NewClient(fetcher *Fetcher, source Source, window time.Duration, display *time.Location) *Client {
	if display == nil {
		display = time.UTC
	}
	return &Client{
		fetcher: fetcher,
		source:  source,
		window:  window,
		display: display,
	}
}

// Source returns the feed source this client polls.
func (c *Client) Source() Source {
	return c.source
}

// Upcoming performs one retrieval of the feed and returns the occurrences
// whose start falls within (now, now+window].
//
// It never returns an error: network failures, bad statuses and malformed
// documents are logged and yield an empty slice, so a transient feed outage
// costs the caller one empty poll cycle rather than a crash. The next tick
// retries naturally.
func (c *Client) Upcoming(ctx context.Context, now time.Time) []model.Occurrence {
	res, err := c.fetcher.Fetch(ctx, c.source)
	if err != nil {
		appLog.Error("feed fetch failed", err, "id", c.source.ID, "url", redactURL(c.source.URL))
		return nil
	}

	events, err := Parse(c.source, res.Body)
	if err != nil {
		appLog.Error("feed parse failed", err, "id", c.source.ID, "url", redactURL(c.source.URL))
		return nil
	}

	return ExpandUpcoming(events, UpcomingConfig{
		Now:             now,
		Window:          c.window,
		DisplayLocation: c.display,
	})
}
