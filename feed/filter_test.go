package feed_test

import (
	"testing"
	"time"

	"podbot/feed"
	"podbot/models"

	"github.com/stretchr/testify/assert"
)

func episodeAt(guid string, published time.Time) models.Episode {
	return models.Episode{GUID: guid, Title: guid, Published: published}
}

func TestFilterRecencyWindow(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	episodes := []models.Episode{
		episodeAt("fresh", now.AddDate(0, 0, -1)),
		episodeAt("stale", now.AddDate(0, 0, -6)),
		episodeAt("ancient", now.AddDate(0, 0, -10)),
	}

	candidates := feed.Filter(episodes, now, 5, 20, "")

	assert.Len(t, candidates, 1)
	assert.Equal(t, "fresh", candidates[0].GUID)
}

func TestFilterDropsUnparsableTimestamps(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	episodes := []models.Episode{
		episodeAt("dated", now.AddDate(0, 0, -1)),
		{GUID: "undated", Title: "no timestamp"},
	}

	candidates := feed.Filter(episodes, now, 5, 20, "")

	assert.Len(t, candidates, 1)
	assert.Equal(t, "dated", candidates[0].GUID)
}

func TestFilterGUIDSubstring(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		guidFilter string
		expected   []string
	}{
		{
			name:       "empty filter keeps everything",
			guidFilter: "",
			expected:   []string{"apm-podcast-1", "other-2", "APM-Podcast-3"},
		},
		{
			name:       "substring match",
			guidFilter: "apm-podcast",
			expected:   []string{"apm-podcast-1", "APM-Podcast-3"},
		},
		{
			name:       "match is case insensitive",
			guidFilter: "APM-PODCAST",
			expected:   []string{"apm-podcast-1", "APM-Podcast-3"},
		},
		{
			name:       "no matches",
			guidFilter: "missing",
			expected:   []string{},
		},
	}

	episodes := []models.Episode{
		episodeAt("apm-podcast-1", now.AddDate(0, 0, -1)),
		episodeAt("other-2", now.AddDate(0, 0, -1)),
		episodeAt("APM-Podcast-3", now.AddDate(0, 0, -2)),
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candidates := feed.Filter(episodes, now, 5, 20, tt.guidFilter)

			guids := make([]string, 0, len(candidates))
			for _, candidate := range candidates {
				guids = append(guids, candidate.GUID)
			}
			assert.Equal(t, tt.expected, guids)
		})
	}
}

func TestFilterMaxEpisodesCap(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	episodes := make([]models.Episode, 0, 30)
	for i := 0; i < 30; i++ {
		episodes = append(episodes, episodeAt(string(rune('a'+i%26))+"-episode", now.Add(-time.Duration(i)*time.Hour)))
	}

	candidates := feed.Filter(episodes, now, 5, 20, "")

	assert.Len(t, candidates, 20)
	// Order preserved: the cap takes the first entries in feed order
	assert.Equal(t, episodes[0].GUID, candidates[0].GUID)
	assert.Equal(t, episodes[19].GUID, candidates[19].GUID)
}

func TestFilterPreservesFeedOrder(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	episodes := []models.Episode{
		episodeAt("first", now.Add(-1*time.Hour)),
		episodeAt("second", now.Add(-2*time.Hour)),
		episodeAt("third", now.Add(-3*time.Hour)),
	}

	candidates := feed.Filter(episodes, now, 5, 20, "")

	assert.Equal(t, "first", candidates[0].GUID)
	assert.Equal(t, "second", candidates[1].GUID)
	assert.Equal(t, "third", candidates[2].GUID)
}
