package social

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"podbot/models"

	"github.com/mattn/go-mastodon"
)

// MastodonConfig carries the credentials for one Mastodon target. Exactly
// one authentication mode is used: a secrets file holding an access token,
// or static client credentials plus access token. The configuration layer
// rejects anything else before a target is ever constructed.
type MastodonConfig struct {
	Server       string
	UseOAuth     bool
	SecretsFile  string
	ClientID     string
	ClientSecret string
	AccessToken  string
}

// Mastodon publishes episode announcements to a Mastodon account.
type Mastodon struct {
	cfg MastodonConfig

	authOnce sync.Once
	authErr  error
	client   *mastodon.Client
}

func NewMastodon(cfg MastodonConfig) *Mastodon {
	return &Mastodon{cfg: cfg}
}

func (m *Mastodon) Kind() models.TargetKind {
	return models.TargetMastodon
}

// Authenticate builds the client on first use and verifies the credentials
// against the instance. The outcome is cached for the run.
func (m *Mastodon) Authenticate(ctx context.Context) error {
	m.authOnce.Do(func() {
		m.authErr = m.login(ctx)
	})
	if m.authErr != nil {
		return &AuthError{Target: models.TargetMastodon, Err: m.authErr}
	}
	return nil
}

func (m *Mastodon) login(ctx context.Context) error {
	config := &mastodon.Config{
		Server:       m.cfg.Server,
		ClientID:     m.cfg.ClientID,
		ClientSecret: m.cfg.ClientSecret,
		AccessToken:  m.cfg.AccessToken,
	}

	if m.cfg.UseOAuth {
		token, err := readSecretsFile(m.cfg.SecretsFile)
		if err != nil {
			return err
		}
		config.AccessToken = token
	}

	client := mastodon.NewClient(config)

	// Verify the token actually works before the first publish
	if _, err := client.GetAccountCurrentUser(ctx); err != nil {
		return fmt.Errorf("failed to verify credentials: %w", err)
	}

	m.client = client
	return nil
}

// readSecretsFile reads an access token from a single-line secrets file.
func readSecretsFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read secrets file: %w", err)
	}

	token := strings.TrimSpace(strings.SplitN(string(data), "\n", 2)[0])
	if token == "" {
		return "", fmt.Errorf("secrets file %s is empty", path)
	}
	return token, nil
}

// Publish posts the announcement text as a status and returns its ID.
func (m *Mastodon) Publish(ctx context.Context, text string, _ models.Episode) (string, error) {
	if m.client == nil {
		return "", &PublishError{Target: models.TargetMastodon, Err: fmt.Errorf("not authenticated")}
	}

	status, err := m.client.PostStatus(ctx, &mastodon.Toot{Status: text})
	if err != nil {
		return "", &PublishError{Target: models.TargetMastodon, Err: err}
	}

	return string(status.ID), nil
}
