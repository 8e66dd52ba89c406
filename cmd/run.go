package cmd

import (
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"podbot/config"
	"podbot/db"
	"podbot/feed"
	"podbot/models"
	"podbot/pipeline"
	"podbot/post"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func runCmd() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Process all feeds once and publish new episodes",
		Description: `Fetches every enabled feed, filters out episodes that are too
		old or already announced, and publishes the rest to the feed's
		configured targets. Old publication records are cleaned up at the end
		of the run unless --skip-clean or --dry-run is set.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "settings",
				Aliases: []string{"s"},
				Value:   "podbot.toml",
				Usage:   "Path to the settings file",
				EnvVars: []string{"PODBOT_SETTINGS"},
			},
			&cli.StringFlag{
				Name:    "database",
				Aliases: []string{"d"},
				Usage:   "Override the database file from the settings file",
				EnvVars: []string{"PODBOT_DATABASE"},
			},
			&cli.BoolFlag{
				Name:    "debug",
				Usage:   "Enable debug logging",
				EnvVars: []string{"PODBOT_DEBUG"},
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Run the full decision path but do not post or write records",
			},
			&cli.BoolFlag{
				Name:  "skip-clean",
				Usage: "Skip database clean-up after processing",
			},
		},
		Action: func(ctx *cli.Context) error {
			settings, err := loadSettings(ctx)
			if err != nil {
				return err
			}

			store, err := db.Open(settings.DatabaseFile)
			if err != nil {
				return err
			}
			defer store.Close()

			runCtx, stop := signal.NotifyContext(ctx.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			runner := newRunner(settings, store)

			log.Info("Starting")
			if ctx.Bool("dry-run") {
				log.Info("Running in dry-run mode")
			}

			summary := runner.Run(runCtx, settings.Feeds, pipeline.Options{
				DryRun:    ctx.Bool("dry-run"),
				SkipClean: ctx.Bool("skip-clean"),
				CleanDays: settings.DatabaseCleanDays,
			})
			logSummary(summary)

			log.Info("Finishing")
			return nil
		},
	}
}

func loadSettings(ctx *cli.Context) (*config.Settings, error) {
	settings, err := config.Load(ctx.String("settings"))
	if err != nil {
		return nil, err
	}

	if database := ctx.String("database"); database != "" {
		settings.DatabaseFile = database
	}

	configureLogging(settings, ctx.Bool("debug"))
	return settings, nil
}

func configureLogging(settings *config.Settings, debug bool) {
	if debug {
		log.SetLevel(log.DebugLevel)
	}

	if settings.LogFile == "" {
		return
	}

	if dir := filepath.Dir(settings.LogFile); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Warn("Failed to create log directory: ", err)
			return
		}
	}

	f, err := os.OpenFile(settings.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		log.Warn("Failed to open log file: ", err)
		return
	}
	log.SetOutput(io.MultiWriter(os.Stderr, f))
}

func newRunner(settings *config.Settings, store *db.Store) *pipeline.Runner {
	return pipeline.New(
		store,
		feed.NewFetcher(settings.UserAgent),
		post.NewRenderer(),
		pipeline.NewTargetFactory(),
	)
}

func logSummary(summary *models.RunSummary) {
	for _, fs := range summary.Feeds {
		if fs.FetchFailed {
			log.WithFields(log.Fields{
				"feed": fs.Feed,
			}).Warn("Feed fetch failed")
			continue
		}
		for kind, ts := range fs.Targets {
			log.WithFields(log.Fields{
				"feed":      fs.Feed,
				"target":    kind,
				"published": ts.Published,
				"skipped":   ts.Skipped,
				"failed":    ts.Failed,
			}).Info("Feed summary")
		}
	}
}
