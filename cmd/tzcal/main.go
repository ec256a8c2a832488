package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"tzcal/internal/config"
	"tzcal/internal/ics"
	appLog "tzcal/internal/log"
	"tzcal/internal/registry"
	"tzcal/internal/web"
)

type flagConfig struct {
	configPath string
	listen     string
	once       bool
	export     string
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		appLog.Warn("failed to load .env", "err", err)
	}

	appLog.Info("tzcal starting", "version", "0.1.0")

	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if level, err := appLog.ParseLevel(conf.LogLevel); err == nil {
		appLog.SetLevel(level)
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"refresh", conf.RefreshCron,
		"active", conf.Active,
		"calendars", len(conf.Calendars),
		"once", flags.once,
		"export", flags.export,
	)

	reg, err := buildRegistry(conf)
	if err != nil {
		appLog.Error("failed to build calendars", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fetcher := ics.NewFetcher(nil)

	if flags.once || flags.export != "" {
		direct := func(fn func(*registry.Registry) error) error { return fn(reg) }
		if err := syncSources(ctx, conf, fetcher, direct, time.Now()); err != nil {
			appLog.Warn("some sources failed", "err", err)
		}
		if flags.export != "" {
			err = exportCalendar(os.Stdout, reg, flags.export)
		} else {
			err = printAgenda(os.Stdout, reg, time.Now(), 7)
		}
		if err != nil {
			appLog.Error("one-shot run failed", err)
			os.Exit(1)
		}
		return
	}

	srv := web.NewServer(conf, reg)
	refresh := func() {
		if err := syncSources(ctx, conf, fetcher, srv.Do, time.Now()); err != nil {
			appLog.Warn("some sources failed", "err", err)
		}
	}
	refresh()

	sched := cron.New()
	if _, err := sched.AddFunc(conf.RefreshCron, refresh); err != nil {
		appLog.Error("invalid refresh schedule", err, "refresh", conf.RefreshCron)
		os.Exit(1)
	}
	sched.Start()

	if err := srv.ListenAndServe(ctx); err != nil {
		appLog.Error("HTTP server failed", err)
	}

	<-sched.Stop().Done()
	appLog.Info("tzcal exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", envOr("TZCAL_CONFIG", "tzcal.yaml"), "Path to config file")
	flag.StringVar(&cfg.listen, "listen", os.Getenv("TZCAL_LISTEN"), "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Import sources, print the coming week's agenda and exit")
	flag.StringVar(&cfg.export, "export", "", "Import sources, write the named calendar as ICS to stdout and exit")

	flag.Parse()

	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
