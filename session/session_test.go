package session

import (
	"sync"
	"testing"
	"time"
)

func TestState_Lifecycle(t *testing.T) {
	s := NewState()

	if s.IsAuthenticated() {
		t.Fatal("fresh state must not be authenticated")
	}
	if !s.IsSyncEnabled() {
		t.Fatal("sync should default to enabled")
	}
	if s.LastSyncAt() != nil {
		t.Fatal("fresh state must have no sync timestamp")
	}

	s.SetAuthenticated("tok-1", 7, "aung")
	if !s.IsAuthenticated() || s.CurrentToken() != "tok-1" {
		t.Fatal("login did not stick")
	}
	id, name := s.CurrentUser()
	if id != 7 || name != "aung" {
		t.Fatalf("unexpected user: %d %s", id, name)
	}

	now := time.Now()
	s.MarkSynced(now)
	if got := s.LastSyncAt(); got == nil || !got.Equal(now) {
		t.Fatalf("unexpected last sync: %v", got)
	}

	s.Clear()
	if s.IsAuthenticated() || s.CurrentToken() != "" {
		t.Fatal("clear did not drop the token")
	}
	id, _ = s.CurrentUser()
	if id != 0 {
		t.Fatal("clear did not drop the user")
	}
}

func TestState_ConcurrentAccess(t *testing.T) {
	s := NewState()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.SetAuthenticated("tok", 1, "u")
			s.SetSyncEnabled(true)
			s.Clear()
		}()
		go func() {
			defer wg.Done()
			_ = s.CurrentToken()
			_ = s.IsSyncEnabled()
			_ = s.LastSyncAt()
		}()
	}
	wg.Wait()
}
