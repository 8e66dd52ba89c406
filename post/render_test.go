package post_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"podbot/models"
	"podbot/post"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemplate(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "post.txt.tmpl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testEpisode() models.Episode {
	return models.Episode{
		GUID:        "guid-1",
		Title:       "Episode 42: The Answer",
		Description: "<p>A <b>great</b> episode about everything.</p>",
		Link:        "https://example.com/42",
		Published:   time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC),
		Duration:    62 * time.Minute,
	}
}

func TestRender(t *testing.T) {
	template := writeTemplate(t, "{{.PodcastName}}: {{.Title}}\n\n{{.Description}}\n\n{{.Link}}")
	renderer := post.NewRenderer()

	text, err := renderer.Render(template, "My Podcast", testEpisode(), post.Limits{})
	require.NoError(t, err)

	assert.Contains(t, text, "My Podcast: Episode 42: The Answer")
	assert.Contains(t, text, "A great episode about everything.")
	assert.Contains(t, text, "https://example.com/42")
	assert.NotContains(t, text, "<p>")
	assert.NotContains(t, text, "<b>")
}

func TestRenderCleansInlineMarkup(t *testing.T) {
	template := writeTemplate(t, "{{.Description}}")
	renderer := post.NewRenderer()

	episode := testEpisode()
	episode.Description = `<p>A <b>great</b> episode with <a href="https://example.com/notes">show notes</a> &amp; more.</p>`

	text, err := renderer.Render(template, "My Podcast", episode, post.Limits{})
	require.NoError(t, err)

	// Inline tags vanish cleanly, without injecting stray punctuation,
	// and entities come back as their plain characters
	assert.Equal(t, "A great episode with show notes & more.", text)
}

func TestRenderNormalizesSmartQuotes(t *testing.T) {
	template := writeTemplate(t, "{{.Title}} {{.Description}}")
	renderer := post.NewRenderer()

	episode := testEpisode()
	episode.Title = "It’s “Live”"
	episode.Description = "Don’t miss it"

	text, err := renderer.Render(template, "My Podcast", episode, post.Limits{})
	require.NoError(t, err)

	assert.Contains(t, text, `It's "Live"`)
	assert.Contains(t, text, "Don't miss it")
}

func TestRenderTruncatesDescription(t *testing.T) {
	template := writeTemplate(t, "{{.Description}}")
	renderer := post.NewRenderer()

	episode := testEpisode()
	episode.Description = "one two three four five six seven eight nine ten"

	text, err := renderer.Render(template, "My Podcast", episode, post.Limits{MaxDescriptionLength: 20})
	require.NoError(t, err)

	assert.LessOrEqual(t, len(text), 23)
	assert.Contains(t, text, "...")
	// Truncation backs up to a word boundary instead of splitting mid-word
	assert.Equal(t, "one two three four...", text)
}

func TestRenderMissingTemplateFile(t *testing.T) {
	renderer := post.NewRenderer()

	_, err := renderer.Render("does/not/exist.tmpl", "My Podcast", testEpisode(), post.Limits{})
	require.Error(t, err)

	var templateErr *post.TemplateError
	assert.ErrorAs(t, err, &templateErr)
}

func TestRenderUnresolvedPlaceholder(t *testing.T) {
	template := writeTemplate(t, "{{.NoSuchField}}")
	renderer := post.NewRenderer()

	_, err := renderer.Render(template, "My Podcast", testEpisode(), post.Limits{})
	require.Error(t, err)

	var templateErr *post.TemplateError
	assert.ErrorAs(t, err, &templateErr)
}

func TestRenderInvalidTemplateSyntax(t *testing.T) {
	template := writeTemplate(t, "{{.Title")
	renderer := post.NewRenderer()

	_, err := renderer.Render(template, "My Podcast", testEpisode(), post.Limits{})

	var templateErr *post.TemplateError
	assert.ErrorAs(t, err, &templateErr)
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		max      int
		expected string
	}{
		{
			name:     "no limit",
			text:     "anything at all",
			max:      0,
			expected: "anything at all",
		},
		{
			name:     "within budget",
			text:     "short",
			max:      10,
			expected: "short",
		},
		{
			name:     "cut at word boundary",
			text:     "the quick brown fox jumps",
			max:      12,
			expected: "the quick...",
		},
		{
			name:     "hard cut without boundary",
			text:     "supercalifragilistic",
			max:      8,
			expected: "supercal...",
		},
		{
			name:     "trailing punctuation removed",
			text:     "first part, second part",
			max:      12,
			expected: "first part...",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, post.Truncate(tt.text, tt.max))
		})
	}
}
