package feed

import (
	"strings"
	"time"

	"podbot/models"

	"github.com/samber/lo"
)

// Filter narrows raw feed entries down to announcement candidates. It drops
// entries published before now minus recentDays, drops entries without a
// parsable timestamp, keeps only GUIDs containing guidFilter when the filter
// is non-empty, and caps the result at maxEpisodes. Feed order is preserved;
// feeds are assumed newest first and the filter never re-sorts.
func Filter(episodes []models.Episode, now time.Time, recentDays int, maxEpisodes int, guidFilter string) []models.Episode {
	cutoff := now.AddDate(0, 0, -recentDays)
	guidFilter = strings.ToLower(strings.TrimSpace(guidFilter))

	kept := lo.Filter(episodes, func(episode models.Episode, _ int) bool {
		if episode.Published.IsZero() {
			return false
		}
		if episode.Published.Before(cutoff) {
			return false
		}
		if guidFilter != "" && !strings.Contains(strings.ToLower(episode.GUID), guidFilter) {
			return false
		}
		return true
	})

	if maxEpisodes > 0 && len(kept) > maxEpisodes {
		kept = kept[:maxEpisodes]
	}

	return kept
}
