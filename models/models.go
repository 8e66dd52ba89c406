package models

import "time"

// TargetKind identifies a social network a feed can publish to.
type TargetKind string

const (
	TargetBluesky  TargetKind = "bluesky"
	TargetMastodon TargetKind = "mastodon"
)

// Episode is a single entry from a podcast feed. Episodes only exist in
// memory for the duration of a run and are rebuilt from the feed each time.
// The GUID is unique within its feed, not globally.
type Episode struct {
	GUID         string        `json:"guid"`
	Title        string        `json:"title"`
	Description  string        `json:"description"`
	Link         string        `json:"link"`
	EnclosureURL string        `json:"enclosureUrl,omitempty"`
	Published    time.Time     `json:"published"`
	Duration     time.Duration `json:"duration,omitempty"`
}

// TargetSummary counts outcomes for one target within one feed.
type TargetSummary struct {
	Published int `json:"published"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// FeedSummary reports what happened to a single feed during a run.
type FeedSummary struct {
	Feed        string                        `json:"feed"`
	Fetched     int                           `json:"fetched"`
	Candidates  int                           `json:"candidates"`
	FetchFailed bool                          `json:"fetchFailed,omitempty"`
	Targets     map[TargetKind]*TargetSummary `json:"targets"`
}

// Target returns the summary for kind, creating it on first use.
func (f *FeedSummary) Target(kind TargetKind) *TargetSummary {
	if f.Targets == nil {
		f.Targets = make(map[TargetKind]*TargetSummary)
	}
	ts, ok := f.Targets[kind]
	if !ok {
		ts = &TargetSummary{}
		f.Targets[kind] = ts
	}
	return ts
}

// RunSummary is the operator-facing result of a full pipeline run.
// Per-episode and per-target failures are counted here instead of
// aborting the run.
type RunSummary struct {
	Feeds  []*FeedSummary `json:"feeds"`
	Purged int64          `json:"purged"`
}

// Feed appends and returns a fresh summary for the named feed.
func (s *RunSummary) Feed(name string) *FeedSummary {
	fs := &FeedSummary{Feed: name}
	s.Feeds = append(s.Feeds, fs)
	return fs
}
