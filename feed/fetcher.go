package feed

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"podbot/models"

	"github.com/cenkalti/backoff/v4"
	"github.com/mmcdole/gofeed"
	log "github.com/sirupsen/logrus"
)

// FetchError wraps a fetch or parse failure for one feed. A fetch failure
// aborts that feed only; other feeds keep running.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch feed %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Fetcher retrieves and parses podcast RSS/Atom feeds.
type Fetcher struct {
	parser    *gofeed.Parser
	client    *http.Client
	userAgent string
}

func NewFetcher(userAgent string) *Fetcher {
	client := &http.Client{Timeout: 30 * time.Second}
	parser := gofeed.NewParser()
	parser.Client = client
	parser.UserAgent = userAgent

	return &Fetcher{
		parser:    parser,
		client:    client,
		userAgent: userAgent,
	}
}

// Fetch retrieves the feed and returns its entries in feed order, newest
// first by convention. Transient failures are retried with exponential
// backoff before giving up with a FetchError.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]models.Episode, error) {
	// Set up exponential backoff for transient fetch failures
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 10 * time.Second
	bo.MaxElapsedTime = time.Minute

	var parsed *gofeed.Feed
	operation := func() error {
		var err error
		parsed, err = f.parser.ParseURLWithContext(url, ctx)
		if err != nil {
			log.WithFields(log.Fields{
				"url": url,
			}).Debug("Feed fetch attempt failed: ", err)
		}
		return err
	}

	if err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(bo, 3), ctx)); err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}

	episodes := make([]models.Episode, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		episodes = append(episodes, itemToEpisode(item))
	}

	return episodes, nil
}

// LastModified probes the feed with a HEAD request and returns the
// Last-Modified header. When the server does not supply one the current
// time is returned so the feed is always considered updated.
func (f *Fetcher) LastModified(ctx context.Context, url string) (time.Time, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return time.Time{}, err
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return time.Time{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		if value := resp.Header.Get("Last-Modified"); value != "" {
			if modified, err := http.ParseTime(value); err == nil {
				return modified, nil
			}
		}
	}

	return time.Now().UTC(), nil
}

func itemToEpisode(item *gofeed.Item) models.Episode {
	episode := models.Episode{
		GUID:        strings.TrimSpace(item.GUID),
		Title:       strings.TrimSpace(item.Title),
		Description: strings.TrimSpace(item.Description),
		Link:        strings.TrimSpace(item.Link),
	}

	if episode.GUID == "" {
		episode.GUID = episode.Link
	}
	if item.Content != "" {
		episode.Description = strings.TrimSpace(item.Content)
	}
	if item.PublishedParsed != nil {
		episode.Published = *item.PublishedParsed
	}
	if len(item.Enclosures) > 0 {
		episode.EnclosureURL = strings.TrimSpace(item.Enclosures[0].URL)
	}
	if item.ITunesExt != nil {
		episode.Duration = parseDuration(item.ITunesExt.Duration)
	}

	return episode
}

// parseDuration handles the two itunes:duration forms, plain seconds and
// colon separated [HH:]MM:SS.
func parseDuration(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}

	if !strings.Contains(value, ":") {
		seconds, err := strconv.Atoi(value)
		if err != nil {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}

	parts := strings.Split(value, ":")
	if len(parts) > 3 {
		return 0
	}

	var total time.Duration
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return 0
		}
		total = total*60 + time.Duration(n)*time.Second
	}

	return total
}
