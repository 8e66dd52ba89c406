// Package post renders episode announcements from plain-text templates.
package post

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"
	"unicode/utf8"

	"podbot/models"

	"github.com/jaytaylor/html2text"
	"github.com/microcosm-cc/bluemonday"
)

// TemplateError reports a template that could not be read or rendered. It
// is scoped to one episode and one target; other episodes and targets keep
// processing.
type TemplateError struct {
	Template string
	Err      error
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("template %s: %v", e.Template, e.Err)
}

func (e *TemplateError) Unwrap() error {
	return e.Err
}

// Limits caps how many characters of the title and description survive into
// the rendered post. Zero means unlimited.
type Limits struct {
	MaxTitleLength       int
	MaxDescriptionLength int
}

// Context is the data a post template renders against. Title and
// Description are truncated to the target's limits before substitution.
type Context struct {
	PodcastName string
	Title       string
	Description string
	Link        string
	Episode     string
	Published   string
	Duration    string
}

// Renderer turns an episode into announcement text for one target.
type Renderer struct {
	stripTags *bluemonday.Policy
}

func NewRenderer() *Renderer {
	return &Renderer{
		stripTags: bluemonday.StripTagsPolicy(),
	}
}

// Render loads the template file and renders it against the episode. Any
// read, parse or missing-placeholder failure comes back as a TemplateError.
func (r *Renderer) Render(templateFile, podcastName string, episode models.Episode, limits Limits) (string, error) {
	data, err := os.ReadFile(templateFile)
	if err != nil {
		return "", &TemplateError{Template: templateFile, Err: err}
	}

	tmpl, err := template.New(filepath.Base(templateFile)).
		Option("missingkey=error").
		Parse(string(data))
	if err != nil {
		return "", &TemplateError{Template: templateFile, Err: err}
	}

	context := Context{
		PodcastName: podcastName,
		Title:       Truncate(unsmartQuotes(episode.Title), limits.MaxTitleLength),
		Description: Truncate(r.plainDescription(episode.Description), limits.MaxDescriptionLength),
		Link:        episode.Link,
		Episode:     episode.EnclosureURL,
		Published:   episode.Published.Format("2006-01-02"),
		Duration:    formatDuration(episode.Duration),
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, context); err != nil {
		return "", &TemplateError{Template: templateFile, Err: err}
	}

	return strings.TrimSpace(buf.String()), nil
}

// plainDescription strips markup from a feed description. Podcast feeds
// routinely ship HTML show notes; posts want plain text. Tags are removed
// before the html2text pass, which then decodes entities and collapses
// whitespace on the remaining text.
func (r *Renderer) plainDescription(description string) string {
	sanitized := r.stripTags.Sanitize(description)

	text, err := html2text.FromString(sanitized, html2text.Options{
		TextOnly: true,
	})
	if err != nil || strings.TrimSpace(text) == "" {
		text = sanitized
	}

	return unsmartQuotes(strings.TrimSpace(text))
}

// unsmartQuotes replaces typographic quotes with their plain equivalents.
func unsmartQuotes(text string) string {
	replacer := strings.NewReplacer(
		"’", "'",
		"‘", "'",
		"“", `"`,
		"”", `"`,
	)
	return replacer.Replace(text)
}

// Truncate cuts text down to max characters, backing up to the last word
// boundary when one exists within the budget and marking the cut with an
// ellipsis. Zero or negative max leaves the text untouched.
func Truncate(text string, max int) string {
	if max <= 0 || utf8.RuneCountInString(text) <= max {
		return text
	}

	cut := string([]rune(text)[:max])
	if idx := strings.LastIndexAny(cut, " \t\n"); idx > 0 {
		cut = cut[:idx]
	}

	return strings.TrimRight(cut, " \t\n.,;:") + "..."
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return ""
	}

	total := int(d.Seconds())
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	return fmt.Sprintf("%dm %ds", minutes, seconds)
}
