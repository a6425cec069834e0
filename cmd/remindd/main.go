package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"remindd/internal/config"
	"remindd/internal/ics"
	appLog "remindd/internal/log"
	"remindd/internal/web"
)

type flagConfig struct {
	configPath string
	listen     string
}

func main() {
	appLog.Info("remindd starting", "version", "0.1.0")

	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	appLog.SetLevel(conf.LogLevel)

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	if conf.Feed.URL == "" {
		appLog.Error("no feed configured", errors.New("feed.url is empty"), "config_path", flags.configPath)
		os.Exit(1)
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"feed_id", conf.Feed.ID,
		"window_minutes", conf.WindowMinutes,
		"poll_seconds", conf.PollSeconds,
		"fetch_timeout_seconds", conf.FetchTimeoutSeconds,
		"timezone", conf.Timezone,
		"warm_cron", conf.WarmCron,
	)

	// Root context with cancellation on SIGINT/SIGTERM. Cancelling it tears
	// down the warmer and every in-flight reminder session.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	loc := resolveLocationOrUTC(conf.Timezone)

	source := ics.Source{ID: conf.Feed.ID, URL: conf.Feed.URL}
	fetcher := ics.NewFetcher(conf.CacheDir, time.Duration(conf.FetchTimeoutSeconds)*time.Second)
	client := ics.NewClient(fetcher, source, time.Duration(conf.WindowMinutes)*time.Minute, loc)

	if conf.WarmCron != "" {
		warmer := ics.NewWarmer(fetcher, source)
		if err := warmer.Start(ctx, conf.WarmCron); err != nil {
			appLog.Error("failed to start cache warmer", err, "spec", conf.WarmCron)
			os.Exit(1)
		}
	}

	srv := &http.Server{
		Addr:    conf.Listen,
		Handler: web.NewServer(conf, client.Upcoming).Handler(),
		// Session streams are long-lived; only bound the request read side.
		ReadHeaderTimeout: 10 * time.Second,
		// Tie every request context to the root context so a shutdown
		// signal terminates open reminder sessions, not just the listener.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+conf.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Error("HTTP server failed", err, "listen", conf.Listen)
			os.Exit(1)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Error("HTTP server shutdown failed", err)
	}

	appLog.Info("remindd exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/remindd/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")

	flag.Parse()

	return cfg
}

func resolveLocationOrUTC(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to UTC", err, "name", name)
		return time.UTC
	}
	return loc
}
