// Package session maps browser sessions to live games.
package session

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	constants "campusguesser/internal/constants"
	game "campusguesser/internal/game"
	util "campusguesser/internal/util"
)

// Registry holds at most one live game per browser session. Stale games
// are swept by a cleanup ticker.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*game.Session
	ttl      time.Duration
}

func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{
		sessions: make(map[string]*game.Session),
		ttl:      ttl,
	}
}

// EnsureID returns the request's session cookie, minting one when absent.
func (r *Registry) EnsureID(c *gin.Context, maxAge time.Duration, secure bool) string {
	sessionID, err := c.Cookie(constants.SessionCookieName)
	if err != nil || len(sessionID) < 10 {
		sessionID = uuid.NewString()
		c.SetSameSite(http.SameSiteStrictMode)
		c.SetCookie(constants.SessionCookieName, sessionID, int(maxAge.Seconds()), "/", "", secure, true)
		util.LogInfo("Created new session: %s", sessionID)
	}
	return sessionID
}

func (r *Registry) Get(sessionID string) (*game.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[sessionID]
	return s, ok
}

// Put installs a game for the session, stopping any game it replaces.
func (r *Registry) Put(sessionID string, s *game.Session) {
	r.mu.Lock()
	old := r.sessions[sessionID]
	r.sessions[sessionID] = s
	r.mu.Unlock()
	if old != nil {
		old.Stop()
	}
}

func (r *Registry) Delete(sessionID string) {
	r.mu.Lock()
	old := r.sessions[sessionID]
	delete(r.sessions, sessionID)
	r.mu.Unlock()
	if old != nil {
		old.Stop()
	}
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Cleanup drops games idle past the registry TTL.
func (r *Registry) Cleanup() {
	cutoff := time.Now().Add(-r.ttl)

	r.mu.Lock()
	var stale []*game.Session
	for sessionID, s := range r.sessions {
		if s.LastAccess().Before(cutoff) {
			stale = append(stale, s)
			delete(r.sessions, sessionID)
		}
	}
	r.mu.Unlock()

	for _, s := range stale {
		s.Stop()
	}
	if len(stale) > 0 {
		util.LogInfo("Cleaned up %d stale sessions", len(stale))
	}
}

// StartCleanup runs Cleanup on a fixed interval.
func (r *Registry) StartCleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for range ticker.C {
			r.Cleanup()
		}
	}()
	util.LogInfo("Started session cleanup goroutine")
}
