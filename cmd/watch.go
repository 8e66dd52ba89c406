package cmd

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"podbot/db"
	"podbot/pipeline"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func watchCmd() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Process feeds repeatedly on a cron schedule",
		Description: `Runs the same pipeline as the run command on a cron schedule
		until interrupted. An initial pass runs at startup, then subsequent
		passes follow the schedule. Overlapping passes are prevented: if a
		pass is still running when the next one fires, the new one is skipped.`,
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
			&cli.StringFlag{
				Name:    "cron",
				Value:   "@hourly",
				Usage:   "Cron expression controlling how often feeds are processed",
				EnvVars: []string{"PODBOT_CRON"},
			},
			&cli.BoolFlag{
				Name:    "debug",
				Usage:   "Enable debug logging",
				EnvVars: []string{"PODBOT_DEBUG"},
			},
			&cli.BoolFlag{
				Name:  "skip-clean",
				Usage: "Skip database clean-up after each pass",
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
			opts := pipeline.Options{
				SkipClean: ctx.Bool("skip-clean"),
				CleanDays: settings.DatabaseCleanDays,
			}

			var busy sync.Mutex
			pass := func() {
				if !busy.TryLock() {
					log.Warn("Previous pass still running, skipping this one")
					return
				}
				defer busy.Unlock()
				logSummary(runner.Run(runCtx, settings.Feeds, opts))
			}

			scheduler := cron.New()
			if _, err := scheduler.AddFunc(ctx.String("cron"), pass); err != nil {
				return err
			}

			log.WithFields(log.Fields{
				"schedule": ctx.String("cron"),
			}).Info("Watching feeds")

			// Initial pass on startup, then follow the schedule
			pass()
			scheduler.Start()

			<-runCtx.Done()
			log.Info("Gracefully shutting down...")

			// Wait for a running cron pass to finish its in-flight episode
			<-scheduler.Stop().Done()
			busy.Lock()

			log.Info("Done!")
			return nil
		},
	}
}
