package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"eventtz/internal/backend"
	"eventtz/internal/config"
	appLog "eventtz/internal/log"
	"eventtz/internal/web"
)

var version = "0.1.0-dev"

type flagConfig struct {
	configPath string
	envPath    string
	listen     string
}

func main() {
	flags := parseFlags()

	if err := config.LoadDotenv(flags.envPath); err != nil {
		appLog.Error("failed to load env file", err, "env_path", flags.envPath)
		os.Exit(1)
	}

	conf, err := config.Load(flags.configPath)
	switch {
	case err != nil && conf == nil:
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	case err != nil:
		appLog.Warn("can't write default config, running with defaults", "config_path", flags.configPath, "err", err.Error())
	}
	if err := conf.ApplyEnv(); err != nil {
		appLog.Error("invalid environment override", err)
		os.Exit(1)
	}

	// CLI --listen overrides config file and environment.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	level, err := appLog.ParseLevel(conf.LogLevel)
	if err != nil {
		appLog.Warn("unknown log level, keeping info", "log_level", conf.LogLevel)
	} else {
		appLog.SetLevel(level)
	}

	appLog.Info("eventtz starting", "version", version)
	appLog.Info("effective config",
		"listen", conf.Listen,
		"backend_url", conf.BackendURL,
		"request_timeout", conf.RequestTimeout.String(),
		"default_timezone", conf.DefaultTimezone,
		"refresh", conf.RefreshCron,
		"import_horizon_days", conf.ImportHorizonDays,
		"allow_private_feeds", conf.AllowPrivateFeeds,
		"basic_auth", conf.BasicAuth != nil,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := backend.New(backend.NewHTTPTransport(conf.BackendURL, conf.RequestTimeout))
	srv := web.NewServer(conf, client)

	if _, err := srv.RefreshProfiles(ctx); err != nil {
		// Not fatal: the backend may come up after us.
		appLog.Warn("initial profile load failed", "err", err.Error())
	}

	scheduler, err := srv.StartRefresh(ctx)
	if err != nil {
		appLog.Error("failed to schedule profile refresh", err)
		os.Exit(1)
	}
	defer func() { <-scheduler.Stop().Done() }()

	if err := srv.Run(ctx); err != nil {
		appLog.Error("http server failed", err)
		stop()
		<-scheduler.Stop().Done()
		os.Exit(1)
	}
	appLog.Info("eventtz exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "eventtz.yaml", "Path to config file (created with defaults if missing)")
	flag.StringVar(&cfg.envPath, "env", ".env", "Path to a dotenv file with EVENTTZ_* overrides (ignored if missing)")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")

	flag.Parse()

	return cfg
}
