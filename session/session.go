package session

import (
	"sync"
	"time"
)

// State holds the process-wide session: the central-service auth token, the
// user it belongs to, and the user-controlled sync switch. It is created
// empty at process start, populated on login, and cleared on logout or when
// the central service rejects the token.
//
// State is injected into the components that need it; nothing in this
// package holds a package-level instance.
type State struct {
	mu          sync.RWMutex
	token       string
	userId      int
	userName    string
	syncEnabled bool
	lastSyncAt  *time.Time
}

func NewState() *State {
	return &State{syncEnabled: true}
}

// SetAuthenticated records a fresh login.
func (s *State) SetAuthenticated(token string, userId int, userName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.userId = userId
	s.userName = userName
}

// Clear drops the token and user. Called on logout and on a remote 401.
func (s *State) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.userId = 0
	s.userName = ""
}

func (s *State) CurrentToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *State) CurrentUser() (int, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userId, s.userName
}

func (s *State) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != ""
}

func (s *State) IsSyncEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.syncEnabled
}

func (s *State) SetSyncEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncEnabled = enabled
}

func (s *State) LastSyncAt() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastSyncAt == nil {
		return nil
	}
	t := *s.lastSyncAt
	return &t
}

func (s *State) MarkSynced(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSyncAt = &at
}
