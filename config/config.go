package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// DefaultUserAgent is sent with every feed request unless overridden.
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:132.0) Gecko/20100101 Firefox/132.0"

// Error reports configuration that cannot be used at all. It is fatal and
// aborts the run before any feed is processed.
type Error struct {
	Reason string
}

func (e *Error) Error() string {
	return "invalid configuration: " + e.Reason
}

func errorf(format string, args ...any) *Error {
	return &Error{Reason: fmt.Sprintf(format, args...)}
}

// BlueskyTarget configures publishing to a Bluesky account.
type BlueskyTarget struct {
	Enabled              bool   `toml:"enabled"`
	Username             string `toml:"username"`
	AppPassword          string `toml:"app_password"`
	APIURL               string `toml:"api_url"`
	TemplateFile         string `toml:"template_file"`
	MaxTitleLength       int    `toml:"max_title_length"`
	MaxDescriptionLength int    `toml:"max_description_length"`
	UseSessionToken      bool   `toml:"use_session_token"`
	SessionFile          string `toml:"session_file"`
}

// MastodonTarget configures publishing to a Mastodon account. Exactly one of
// the two authentication modes must be configured: a secrets file holding an
// access token, or static client credentials plus access token.
type MastodonTarget struct {
	Enabled              bool   `toml:"enabled"`
	APIURL               string `toml:"api_url"`
	UseOAuth             bool   `toml:"use_oauth"`
	SecretsFile          string `toml:"secrets_file"`
	ClientID             string `toml:"client_id"`
	ClientSecret         string `toml:"client_secret"`
	AccessToken          string `toml:"access_token"`
	TemplateFile         string `toml:"template_file"`
	MaxTitleLength       int    `toml:"max_title_length"`
	MaxDescriptionLength int    `toml:"max_description_length"`
}

// Feed holds one podcast feed and its processing policy. ShortName is the
// partition key in the episode database and must be unique across feeds.
type Feed struct {
	Name        string          `toml:"name"`
	ShortName   string          `toml:"short_name"`
	URL         string          `toml:"feed_url"`
	Enabled     bool            `toml:"enabled"`
	RecentDays  int             `toml:"recent_days"`
	MaxEpisodes int             `toml:"max_episodes"`
	GUIDFilter  string          `toml:"guid_filter"`
	Bluesky     *BlueskyTarget  `toml:"bluesky"`
	Mastodon    *MastodonTarget `toml:"mastodon"`
}

// Settings represents the top-level configuration.
type Settings struct {
	DatabaseFile      string `toml:"database_file"`
	DatabaseCleanDays int    `toml:"database_clean_days"`
	LogFile           string `toml:"log_file"`
	UserAgent         string `toml:"user_agent"`
	Feeds             []Feed `toml:"feeds"`
}

// Load reads, defaults and validates the settings file.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading settings file: %w", err)
	}

	var settings Settings
	if err := toml.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("error parsing settings file: %w", err)
	}

	settings.applyDefaults()

	if err := settings.validate(); err != nil {
		return nil, err
	}

	return &settings, nil
}

func (s *Settings) applyDefaults() {
	if s.DatabaseFile == "" {
		s.DatabaseFile = "dbfiles/feed_info.sqlite3"
	}
	if s.DatabaseCleanDays == 0 {
		s.DatabaseCleanDays = 90
	}
	if s.UserAgent == "" {
		s.UserAgent = DefaultUserAgent
	}

	for i := range s.Feeds {
		feed := &s.Feeds[i]
		if feed.RecentDays == 0 {
			feed.RecentDays = 5
		}
		if feed.MaxEpisodes == 0 {
			feed.MaxEpisodes = 20
		}
		if bsky := feed.Bluesky; bsky != nil {
			if bsky.APIURL == "" {
				bsky.APIURL = "https://bsky.social"
			}
			if bsky.TemplateFile == "" {
				bsky.TemplateFile = "templates/post-bluesky.txt.tmpl"
			}
			if bsky.MaxDescriptionLength == 0 {
				bsky.MaxDescriptionLength = 150
			}
			if bsky.SessionFile == "" {
				bsky.SessionFile = "dbfiles/bluesky_sessions.json"
			}
		}
		if m := feed.Mastodon; m != nil {
			if m.TemplateFile == "" {
				m.TemplateFile = "templates/post-mastodon.txt.tmpl"
			}
			if m.MaxDescriptionLength == 0 {
				m.MaxDescriptionLength = 250
			}
		}
	}
}

func (s *Settings) validate() error {
	if len(s.Feeds) == 0 {
		return errorf("no feeds configured")
	}

	shortNames := make(map[string]bool, len(s.Feeds))
	for i := range s.Feeds {
		feed := &s.Feeds[i]

		if strings.TrimSpace(feed.Name) == "" {
			return errorf("feed %d: missing name", i)
		}
		if strings.TrimSpace(feed.ShortName) == "" {
			return errorf("feed %q: missing short_name", feed.Name)
		}
		if shortNames[feed.ShortName] {
			return errorf("feed %q: duplicate short_name %q", feed.Name, feed.ShortName)
		}
		shortNames[feed.ShortName] = true
		if strings.TrimSpace(feed.URL) == "" {
			return errorf("feed %q: missing feed_url", feed.Name)
		}

		if err := validateBluesky(feed); err != nil {
			return err
		}
		if err := validateMastodon(feed); err != nil {
			return err
		}
	}

	return nil
}

func validateBluesky(feed *Feed) error {
	bsky := feed.Bluesky
	if bsky == nil || !bsky.Enabled {
		return nil
	}
	if strings.TrimSpace(bsky.Username) == "" {
		return errorf("feed %q: bluesky target is missing username", feed.Name)
	}
	if strings.TrimSpace(bsky.AppPassword) == "" {
		return errorf("feed %q: bluesky target is missing app_password", feed.Name)
	}
	return nil
}

func validateMastodon(feed *Feed) error {
	m := feed.Mastodon
	if m == nil || !m.Enabled {
		return nil
	}
	if strings.TrimSpace(m.APIURL) == "" {
		return errorf("feed %q: mastodon target is missing api_url", feed.Name)
	}

	hasSecretsFile := strings.TrimSpace(m.SecretsFile) != ""
	hasStatic := strings.TrimSpace(m.ClientSecret) != "" || strings.TrimSpace(m.AccessToken) != ""

	// OAuth secrets file and static credentials are mutually exclusive
	// authentication modes; configuring both is rejected rather than
	// silently picking one.
	if hasSecretsFile && hasStatic {
		return errorf("feed %q: mastodon target configures both a secrets file and static credentials", feed.Name)
	}

	if m.UseOAuth {
		if !hasSecretsFile {
			return errorf("feed %q: mastodon target requires secrets_file when use_oauth is set", feed.Name)
		}
		return nil
	}

	if !hasStatic {
		return errorf("feed %q: mastodon target has no usable authentication mode", feed.Name)
	}
	if strings.TrimSpace(m.ClientSecret) == "" || strings.TrimSpace(m.AccessToken) == "" {
		return errorf("feed %q: mastodon target requires both client_secret and access_token", feed.Name)
	}
	return nil
}
