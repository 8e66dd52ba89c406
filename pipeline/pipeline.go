// Package pipeline sequences fetching, filtering, rendering and publishing
// for every configured feed, and owns the dry-run and skip-clean modes.
package pipeline

import (
	"context"
	"time"

	"podbot/config"
	"podbot/feed"
	"podbot/models"
	"podbot/post"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

// Store is the publication ledger the pipeline consults and appends to.
type Store interface {
	Exists(ctx context.Context, feedName, guid string, target models.TargetKind) (bool, error)
	Record(ctx context.Context, feedName, guid string, target models.TargetKind, postedAt time.Time) error
	Purge(ctx context.Context, olderThanDays int) (int64, error)
	LastModified(ctx context.Context, feedName string) (time.Time, error)
	SetLastModified(ctx context.Context, feedName string, modified time.Time) error
}

// Fetcher retrieves parsed feed entries.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]models.Episode, error)
	LastModified(ctx context.Context, url string) (time.Time, error)
}

// Renderer renders a target-specific announcement.
type Renderer interface {
	Render(templateFile, podcastName string, episode models.Episode, limits post.Limits) (string, error)
}

// Options selects the execution mode for one run.
type Options struct {
	DryRun    bool
	SkipClean bool
	CleanDays int
}

// Runner drives the whole announcement pipeline.
type Runner struct {
	store    Store
	fetcher  Fetcher
	renderer Renderer
	targets  TargetFactory
	now      func() time.Time
}

func New(store Store, fetcher Fetcher, renderer Renderer, targets TargetFactory) *Runner {
	return &Runner{
		store:    store,
		fetcher:  fetcher,
		renderer: renderer,
		targets:  targets,
		now:      time.Now,
	}
}

// Run processes every feed in configured order and returns a summary. Feed,
// episode and target failures are logged and counted; they never escape the
// runner. Cancelling the context finishes the in-flight episode and skips
// the rest.
func (r *Runner) Run(ctx context.Context, feeds []config.Feed, opts Options) *models.RunSummary {
	summary := &models.RunSummary{}

	for i := range feeds {
		if ctx.Err() != nil {
			log.Info("Shutdown requested, skipping remaining feeds")
			break
		}
		r.processFeed(ctx, &feeds[i], summary.Feed(feeds[i].ShortName), opts)
	}

	r.cleanup(ctx, summary, opts)

	return summary
}

func (r *Runner) processFeed(ctx context.Context, feedCfg *config.Feed, fs *models.FeedSummary, opts Options) {
	logger := log.WithFields(log.Fields{
		"feed": feedCfg.ShortName,
	})

	if !feedCfg.Enabled {
		logger.Info("Feed disabled, skipping")
		return
	}

	logger.Info("Processing feed ", feedCfg.Name)

	current := r.checkModified(ctx, feedCfg, logger)
	if current != nil && current.IsZero() {
		// Feed unchanged since the last run
		return
	}

	episodes, err := r.fetcher.Fetch(ctx, feedCfg.URL)
	if err != nil {
		logger.Error("Failed to fetch feed: ", err)
		fs.FetchFailed = true
		return
	}
	fs.Fetched = len(episodes)

	candidates := feed.Filter(episodes, r.now(), feedCfg.RecentDays, feedCfg.MaxEpisodes, feedCfg.GUIDFilter)
	fs.Candidates = len(candidates)

	if len(candidates) == 0 {
		logger.Info("No new episodes")
	} else {
		// Feeds list newest first; publish oldest first so an interrupted
		// run resumes deterministically.
		lo.Reverse(candidates)

		publications := r.targets(feedCfg)

		for i := range candidates {
			if ctx.Err() != nil {
				logger.Info("Shutdown requested, stopping before next episode")
				return
			}
			r.processEpisode(ctx, feedCfg, &candidates[i], publications, fs, opts)
		}
	}

	if !opts.DryRun && current != nil {
		if err := r.store.SetLastModified(ctx, feedCfg.ShortName, *current); err != nil {
			logger.Warn("Failed to store feed last-modified time: ", err)
		}
	}
}

// checkModified probes the feed's Last-Modified header. It returns nil when
// the probe is unusable (process regardless), a zero time when the feed has
// not changed since the last run, and the current header time otherwise.
func (r *Runner) checkModified(ctx context.Context, feedCfg *config.Feed, logger *log.Entry) *time.Time {
	current, err := r.fetcher.LastModified(ctx, feedCfg.URL)
	if err != nil || current.IsZero() {
		return nil
	}
	// Last-Modified headers and the store both carry second precision
	current = current.Truncate(time.Second)

	previous, err := r.store.LastModified(ctx, feedCfg.ShortName)
	if err != nil {
		logger.Warn("Failed to read feed last-modified time: ", err)
		return &current
	}

	if !previous.IsZero() && !current.After(previous) {
		logger.Info("Feed not modified since last run, skipping")
		zero := time.Time{}
		return &zero
	}

	return &current
}

func (r *Runner) processEpisode(ctx context.Context, feedCfg *config.Feed, episode *models.Episode, publications []Publication, fs *models.FeedSummary, opts Options) {
	for _, pub := range publications {
		kind := pub.Target.Kind()
		ts := fs.Target(kind)
		logger := log.WithFields(log.Fields{
			"feed":   feedCfg.ShortName,
			"guid":   episode.GUID,
			"target": kind,
		})

		exists, err := r.store.Exists(ctx, feedCfg.ShortName, episode.GUID, kind)
		if err != nil {
			// A broken ledger means we cannot rule out a duplicate
			// publish; stop working on this episode entirely.
			logger.Error("Failed to check publication history: ", err)
			return
		}
		if exists {
			logger.Debug("Episode already published, skipping")
			ts.Skipped++
			continue
		}

		text, err := r.renderer.Render(pub.TemplateFile, feedCfg.Name, *episode, pub.Limits)
		if err != nil {
			logger.Error("Failed to render post: ", err)
			ts.Failed++
			continue
		}

		if opts.DryRun {
			logger.Info("Dry run, would publish: ", text)
			ts.Published++
			continue
		}

		if err := pub.Target.Authenticate(ctx); err != nil {
			logger.Warn("Target unavailable: ", err)
			ts.Failed++
			continue
		}

		postID, err := pub.Target.Publish(ctx, text, *episode)
		if err != nil {
			logger.Error("Failed to publish episode: ", err)
			ts.Failed++
			continue
		}

		if err := r.store.Record(ctx, feedCfg.ShortName, episode.GUID, kind, r.now()); err != nil {
			// Published but unrecorded: the next run would publish again.
			// Surface loudly and stop this episode.
			logger.Error("Published but failed to record publication: ", err)
			ts.Failed++
			return
		}

		logger.Info("Published episode as ", postID)
		ts.Published++
	}
}

func (r *Runner) cleanup(ctx context.Context, summary *models.RunSummary, opts Options) {
	if opts.DryRun || opts.SkipClean {
		log.Debug("Skipping database cleanup")
		return
	}

	purged, err := r.store.Purge(ctx, opts.CleanDays)
	if err != nil {
		// Cleanup failures are logged and non-fatal
		log.Error("Failed to clean database: ", err)
		return
	}

	summary.Purged = purged
	if purged > 0 {
		log.WithFields(log.Fields{
			"purged": purged,
		}).Info("Cleaned old publication records")
	}
}
