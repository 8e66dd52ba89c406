package social

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Session holds the reusable Bluesky credentials for one account.
type Session struct {
	Handle     string    `json:"handle"`
	Did        string    `json:"did"`
	AccessJwt  string    `json:"accessJwt"`
	RefreshJwt string    `json:"refreshJwt"`
	SavedAt    time.Time `json:"savedAt"`
}

// SessionCache persists Bluesky sessions to a JSON file keyed by account
// identifier, so repeated runs can resume a session instead of performing a
// full app-password login every time. One cache instance is shared per run;
// the mutex serializes refresh-on-expiry per file.
type SessionCache struct {
	path string
	mu   sync.Mutex
}

func NewSessionCache(path string) *SessionCache {
	return &SessionCache{path: path}
}

// Load returns the cached session for the account. A missing file or
// unknown account is a cache miss, not an error.
func (c *SessionCache) Load(account string) (*Session, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sessions, err := c.read()
	if err != nil {
		return nil, false, err
	}

	session, ok := sessions[account]
	if !ok {
		return nil, false, nil
	}
	return session, true, nil
}

// Save stores the session for the account, replacing any previous one.
func (c *SessionCache) Save(account string, session *Session) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sessions, err := c.read()
	if err != nil {
		return err
	}
	sessions[account] = session

	if dir := filepath.Dir(c.path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create session cache directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(sessions, "", "  ")
	if err != nil {
		return err
	}

	// Sessions are credentials, keep the file private
	return os.WriteFile(c.path, data, 0o600)
}

func (c *SessionCache) read() (map[string]*Session, error) {
	data, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		return map[string]*Session{}, nil
	}
	if err != nil {
		return nil, err
	}

	sessions := map[string]*Session{}
	if err := json.Unmarshal(data, &sessions); err != nil {
		return nil, fmt.Errorf("failed to parse session cache: %w", err)
	}
	return sessions, nil
}
