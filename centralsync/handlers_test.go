package centralsync

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestSyncNowHandler_OfflineSkipsPull(t *testing.T) {
	gin.SetMode(gin.TestMode)

	remote := &fakeRemote{}
	sched := &fakeScheduler{}
	c := NewCoordinator(loggedIn(), remote, &fakeStore{}, sched, fakeConnectivity{online: false})

	w := httptest.NewRecorder()
	g, _ := gin.CreateTestContext(w)
	g.Request = httptest.NewRequest(http.MethodPost, "/sync/now", nil)

	c.SyncNowHandler()(g)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusOK)
	}
	if remote.listCalls != 0 {
		t.Errorf("pull was attempted while offline")
	}
}
