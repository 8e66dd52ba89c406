package cmd

import (
	"os"

	"github.com/urfave/cli/v2"

	log "github.com/sirupsen/logrus"
)

func RootApp() *cli.App {
	return &cli.App{
		Name:  "podbot",
		Usage: "Announce new podcast episodes on Bluesky and Mastodon",
		Description: `Fetches configured podcast RSS/Atom feeds, works out which
		episodes have not been announced yet, and publishes a formatted post
		for each new episode to the feed's Bluesky and/or Mastodon accounts.

		Published episodes are recorded in an SQLite database so each episode
		is announced at most once per target, even across repeated runs.

		Flags can generally be set via environment variables, e.g.:

		--settings => PODBOT_SETTINGS=podbot.toml
		--database => PODBOT_DATABASE=dbfiles/feed_info.sqlite3
		`,
		Commands: []*cli.Command{
			runCmd(),
			watchCmd(),
			migrateCmd(),
			tidyCmd(),
		},
		Action: func(ctx *cli.Context) error {
			// Show help if no command is specified
			return ctx.App.Run([]string{"", "help"})
		},
	}
}

func Execute() {
	if err := RootApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
