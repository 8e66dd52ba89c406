package cmd

import (
	"fmt"

	"podbot/db"

	"github.com/urfave/cli/v2"
)

func tidyCmd() *cli.Command {
	return &cli.Command{
		Name:  "tidy",
		Usage: "Tidy up the database",
		Description: `Tidy up the database by removing publication records that are old.

		Removes records older than the given number of days. Running regularly
		keeps the database size down; the run command does the same clean-up
		automatically unless told not to.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "database",
				Aliases: []string{"d"},
				Value:   "dbfiles/feed_info.sqlite3",
				Usage:   "SQLite database file location",
				EnvVars: []string{"PODBOT_DATABASE"},
			},
			&cli.IntFlag{
				Name:  "days",
				Value: 90,
				Usage: "Delete records older than this many days",
			},
		},
		Action: func(ctx *cli.Context) error {
			database := ctx.String("database")
			fmt.Println("Database configured: ", database)

			store, err := db.Open(database)
			if err != nil {
				return err
			}
			defer store.Close()

			deleted, err := store.Purge(ctx.Context, ctx.Int("days"))
			if err != nil {
				return err
			}

			fmt.Println("Deleted records: ", deleted)
			return nil
		},
	}
}
