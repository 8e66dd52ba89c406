package pipeline

import (
	"sync"

	"podbot/config"
	"podbot/post"
	"podbot/social"
)

// Publication couples a target with the feed's rendering settings for it.
type Publication struct {
	Target       social.Target
	TemplateFile string
	Limits       post.Limits
}

// TargetFactory builds the enabled publications for a feed, in the fixed
// order the pipeline publishes them: Bluesky first, then Mastodon.
type TargetFactory func(feedCfg *config.Feed) []Publication

// NewTargetFactory wires real Bluesky and Mastodon clients from feed
// configuration. Session caches are shared across feeds pointing at the
// same session file, one cache instance per file per run.
func NewTargetFactory() TargetFactory {
	var mu sync.Mutex
	caches := map[string]*social.SessionCache{}

	sessionCache := func(path string) *social.SessionCache {
		mu.Lock()
		defer mu.Unlock()
		cache, ok := caches[path]
		if !ok {
			cache = social.NewSessionCache(path)
			caches[path] = cache
		}
		return cache
	}

	return func(feedCfg *config.Feed) []Publication {
		var publications []Publication

		if bsky := feedCfg.Bluesky; bsky != nil && bsky.Enabled {
			var cache *social.SessionCache
			if bsky.UseSessionToken {
				cache = sessionCache(bsky.SessionFile)
			}
			publications = append(publications, Publication{
				Target: social.NewBluesky(social.BlueskyConfig{
					Host:            bsky.APIURL,
					Identifier:      bsky.Username,
					AppPassword:     bsky.AppPassword,
					UseSessionToken: bsky.UseSessionToken,
				}, cache),
				TemplateFile: bsky.TemplateFile,
				Limits: post.Limits{
					MaxTitleLength:       bsky.MaxTitleLength,
					MaxDescriptionLength: bsky.MaxDescriptionLength,
				},
			})
		}

		if m := feedCfg.Mastodon; m != nil && m.Enabled {
			publications = append(publications, Publication{
				Target: social.NewMastodon(social.MastodonConfig{
					Server:       m.APIURL,
					UseOAuth:     m.UseOAuth,
					SecretsFile:  m.SecretsFile,
					ClientID:     m.ClientID,
					ClientSecret: m.ClientSecret,
					AccessToken:  m.AccessToken,
				}),
				TemplateFile: m.TemplateFile,
				Limits: post.Limits{
					MaxTitleLength:       m.MaxTitleLength,
					MaxDescriptionLength: m.MaxDescriptionLength,
				},
			})
		}

		return publications
	}
}
