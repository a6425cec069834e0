package ics

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	appLog "remindd/internal/log"
)

// Warmer periodically fetches the feed on a cron schedule so the
// conditional-GET cache stays fresh even when no client is connected.
// Sessions still fetch on their own ticks; the warmer only makes those
// fetches more likely to resolve as cheap 304s or cache fallbacks.
type Warmer struct {
	fetcher *Fetcher
	source  Source
	cron    *cron.Cron
}

// NewWarmer creates a Warmer for the given source.
func NewWarmer(fetcher *Fetcher, source Source) *Warmer {
	return &Warmer{
		fetcher: fetcher,
		source:  source,
		cron:    cron.New(),
	}
}

// Start registers the warm job under the given cron spec (e.g. "@every 15m"
// or "*/15 * * * *") and starts the scheduler. Jobs stop when ctx is done.
func (w *Warmer) Start(ctx context.Context, spec string) error {
	_, err := w.cron.AddFunc(spec, func() {
		fetchCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()

		if _, err := w.fetcher.Fetch(fetchCtx, w.source); err != nil {
			appLog.Warn("cache warm fetch failed", "err", err, "id", w.source.ID)
			return
		}
		appLog.Debug("cache warm fetch completed", "id", w.source.ID)
	})
	if err != nil {
		return err
	}

	w.cron.Start()

	go func() {
		<-ctx.Done()
		w.Stop()
	}()

	appLog.Info("feed cache warmer started", "id", w.source.ID, "spec", spec)
	return nil
}

// Stop halts the scheduler. Running jobs finish; no new jobs fire.
func (w *Warmer) Stop() {
	w.cron.Stop()
}
