// Package social implements the publication targets a feed can announce
// episodes to. Each target wraps an authenticated client and fails
// independently of the others.
package social

import (
	"context"
	"fmt"

	"podbot/models"
)

// Target is the capability every social network implementation provides.
// Authenticate is lazy and memoized: the first call does the real login and
// every later call returns the cached outcome, so a target that fails to
// authenticate is skipped for the remainder of the run.
type Target interface {
	Kind() models.TargetKind
	Authenticate(ctx context.Context) error
	Publish(ctx context.Context, text string, episode models.Episode) (string, error)
}

// AuthError reports a failed login. It is scoped to the target for the
// whole run.
type AuthError struct {
	Target models.TargetKind
	Err    error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s authentication failed: %v", e.Target, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// PublishError reports a failed post. It is scoped to one episode and one
// target; the pipeline does not retry within a run.
type PublishError struct {
	Target models.TargetKind
	Err    error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("%s publish failed: %v", e.Target, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}
