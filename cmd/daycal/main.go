package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	"daycal/internal/config"
	"daycal/internal/days"
	"daycal/internal/generate"
	appLog "daycal/internal/log"
	"daycal/internal/web"
)

// flagConfig holds CLI flag values that override the config file.
type flagConfig struct {
	configPath string
	listen     string
	rulesPath  string
	outputPath string
	once       bool
	diff       bool
	offline    bool
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	applyFlags(conf, flags)
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	appLog.Info("effective config",
		"listen", conf.Listen,
		"locale", conf.Locale,
		"start_year", conf.StartYear,
		"end_year", conf.EndYear,
		"rules_path", conf.RulesPath,
		"output_path", conf.OutputPath,
		"regenerate", conf.Regenerate,
		"offline", conf.Lookup.Offline,
		"once", flags.once,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if flags.once {
		if err := runOnce(ctx, conf, flags.diff); err != nil {
			appLog.Error("failed to build calendar", err, "path", conf.OutputPath)
			os.Exit(1)
		}
		return
	}

	if err := serve(ctx, conf); err != nil {
		appLog.Error("server stopped", err)
		os.Exit(1)
	}
	appLog.Info("daycal exiting")
}

func runOnce(ctx context.Context, conf *config.Config, diff bool) error {
	res, err := generate.Run(ctx, conf, diff)
	if err != nil {
		return err
	}
	if res.Changes != nil {
		appLog.Info("calendar diff",
			"added", len(res.Changes.Added),
			"removed", len(res.Changes.Removed),
			"changed", len(res.Changes.Changed),
		)
		for _, uid := range res.Changes.Changed {
			appLog.Debug("event changed", "uid", uid)
		}
	}
	return nil
}

// serve starts the web API and, if configured, rewrites the output file on
// the regenerate schedule until ctx is canceled.
func serve(ctx context.Context, conf *config.Config) error {
	rules, err := days.Load(conf.RulesPath)
	if err != nil {
		return err
	}

	if conf.Regenerate != "" {
		c := cron.New()
		_, err := c.AddFunc(conf.Regenerate, func() {
			if err := runOnce(ctx, conf, true); err != nil {
				appLog.Error("scheduled regeneration failed", err, "path", conf.OutputPath)
			}
		})
		if err != nil {
			return err
		}
		c.Start()
		defer func() { <-c.Stop().Done() }()
		appLog.Info("scheduled regeneration enabled", "schedule", conf.Regenerate)
	}

	return web.StartServer(ctx, conf, rules, generate.NewLookup(conf))
}

func applyFlags(conf *config.Config, flags flagConfig) {
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.rulesPath != "" {
		conf.RulesPath = flags.rulesPath
	}
	if flags.outputPath != "" {
		conf.OutputPath = flags.outputPath
	}
	if flags.offline {
		conf.Lookup.Offline = true
	}
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "daycal.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.StringVar(&cfg.rulesPath, "rules", "", "Rule list (JSON or YAML); overrides config if set")
	flag.StringVar(&cfg.outputPath, "out", "", "Output .ics path; overrides config if set")
	flag.BoolVar(&cfg.once, "once", false, "Generate the calendar once and exit")
	flag.BoolVar(&cfg.diff, "diff", false, "With -once, report changes against the existing output")
	flag.BoolVar(&cfg.offline, "offline", false, "Do not fetch descriptions; use event names")

	flag.Parse()

	return cfg
}
