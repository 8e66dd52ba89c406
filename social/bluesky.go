package social

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"podbot/models"

	"github.com/bluesky-social/indigo/api/atproto"
	"github.com/bluesky-social/indigo/api/bsky"
	lexutil "github.com/bluesky-social/indigo/lex/util"
	"github.com/bluesky-social/indigo/xrpc"
	log "github.com/sirupsen/logrus"
)

const DefaultPDSHost = "https://bsky.social"

const postCollection = "app.bsky.feed.post"

// BlueskyConfig carries the credentials and options for one Bluesky target.
type BlueskyConfig struct {
	Host            string
	Identifier      string
	AppPassword     string
	UseSessionToken bool
}

// Bluesky publishes episode announcements to a Bluesky account over xrpc.
// When session tokens are enabled it resumes a cached session before
// falling back to a full app-password login.
type Bluesky struct {
	cfg   BlueskyConfig
	cache *SessionCache

	authOnce sync.Once
	authErr  error
	xrpc     *xrpc.Client
}

func NewBluesky(cfg BlueskyConfig, cache *SessionCache) *Bluesky {
	if cfg.Host == "" {
		cfg.Host = DefaultPDSHost
	}
	return &Bluesky{cfg: cfg, cache: cache}
}

func (b *Bluesky) Kind() models.TargetKind {
	return models.TargetBluesky
}

// Authenticate logs in on first use and caches the outcome for the run.
func (b *Bluesky) Authenticate(ctx context.Context) error {
	b.authOnce.Do(func() {
		b.authErr = b.login(ctx)
	})
	if b.authErr != nil {
		return &AuthError{Target: models.TargetBluesky, Err: b.authErr}
	}
	return nil
}

func (b *Bluesky) login(ctx context.Context) error {
	if b.cfg.UseSessionToken && b.cache != nil {
		err := b.resumeSession(ctx)
		if err == nil {
			return nil
		}
		log.WithFields(log.Fields{
			"account": b.cfg.Identifier,
		}).Debug("Cached session unusable, falling back to app password login: ", err)
	}

	auth, err := atproto.ServerCreateSession(ctx, &xrpc.Client{Host: b.cfg.Host}, &atproto.ServerCreateSession_Input{
		Identifier: b.cfg.Identifier,
		Password:   b.cfg.AppPassword,
	})
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	b.xrpc = &xrpc.Client{
		Host: b.cfg.Host,
		Auth: &xrpc.AuthInfo{
			AccessJwt:  auth.AccessJwt,
			RefreshJwt: auth.RefreshJwt,
			Handle:     auth.Handle,
			Did:        auth.Did,
		},
		Client: http.DefaultClient,
	}

	b.saveSession()
	return nil
}

// resumeSession refreshes a cached session. The refresh endpoint expects
// the refresh token in place of the access token.
func (b *Bluesky) resumeSession(ctx context.Context) error {
	cached, ok, err := b.cache.Load(b.cfg.Identifier)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("no cached session")
	}

	client := &xrpc.Client{
		Host: b.cfg.Host,
		Auth: &xrpc.AuthInfo{
			AccessJwt:  cached.RefreshJwt,
			RefreshJwt: cached.RefreshJwt,
			Handle:     cached.Handle,
			Did:        cached.Did,
		},
		Client: http.DefaultClient,
	}

	refreshed, err := atproto.ServerRefreshSession(ctx, client)
	if err != nil {
		return fmt.Errorf("failed to refresh session: %w", err)
	}

	client.Auth = &xrpc.AuthInfo{
		AccessJwt:  refreshed.AccessJwt,
		RefreshJwt: refreshed.RefreshJwt,
		Handle:     refreshed.Handle,
		Did:        refreshed.Did,
	}

	b.xrpc = client
	b.saveSession()
	return nil
}

func (b *Bluesky) saveSession() {
	if !b.cfg.UseSessionToken || b.cache == nil || b.xrpc == nil || b.xrpc.Auth == nil {
		return
	}

	err := b.cache.Save(b.cfg.Identifier, &Session{
		Handle:     b.xrpc.Auth.Handle,
		Did:        b.xrpc.Auth.Did,
		AccessJwt:  b.xrpc.Auth.AccessJwt,
		RefreshJwt: b.xrpc.Auth.RefreshJwt,
		SavedAt:    time.Now().UTC(),
	})
	if err != nil {
		log.WithFields(log.Fields{
			"account": b.cfg.Identifier,
		}).Warn("Failed to save session cache: ", err)
	}
}

// Publish posts the announcement text with an "Episode Download" link
// appended as a richtext facet. Returns the at:// URI of the new record.
func (b *Bluesky) Publish(ctx context.Context, text string, episode models.Episode) (string, error) {
	if b.xrpc == nil || b.xrpc.Auth == nil {
		return "", &PublishError{Target: models.TargetBluesky, Err: errors.New("not authenticated")}
	}

	resp, err := atproto.RepoCreateRecord(ctx, b.xrpc, &atproto.RepoCreateRecord_Input{
		Collection: postCollection,
		Repo:       b.xrpc.Auth.Did,
		Record: &lexutil.LexiconTypeDecoder{
			Val: buildPost(text, episode, time.Now().UTC()),
		},
	})
	if err != nil {
		return "", &PublishError{Target: models.TargetBluesky, Err: err}
	}

	return resp.Uri, nil
}

func buildPost(text string, episode models.Episode, createdAt time.Time) *bsky.FeedPost {
	post := &bsky.FeedPost{
		CreatedAt: FormatTime(createdAt),
		Text:      text,
	}

	url := episode.EnclosureURL
	if url == "" {
		url = episode.Link
	}
	if url == "" {
		return post
	}

	const linkText = "Episode Download"
	body := text + "\n"
	start := int64(len(body))

	post.Text = body + linkText
	post.Facets = []*bsky.RichtextFacet{
		{
			Index: &bsky.RichtextFacet_ByteSlice{
				ByteStart: start,
				ByteEnd:   start + int64(len(linkText)),
			},
			Features: []*bsky.RichtextFacet_Features_Elem{
				{
					RichtextFacet_Link: &bsky.RichtextFacet_Link{Uri: url},
				},
			},
		},
	}

	return post
}

// FormatTime formats a time.Time into the format expected by AT Protocol
func FormatTime(t time.Time) string {
	return t.Format("2006-01-02T15:04:05.000Z")
}
