package centralsync

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/changes_backend/models"
	"bitbucket.org/mmdatafocus/changes_backend/session"
)

type fakeRemote struct {
	pages      []listResponse
	listErr    error
	listCalls  int
	lastParams url.Values

	pushEnvelope pushEnvelope
	pushErr      error
	pushCalls    int
	lastTicket   string
}

func (f *fakeRemote) ListChangeRequests(ctx context.Context, token string, params url.Values) (listResponse, error) {
	f.listCalls++
	f.lastParams = params
	if f.listErr != nil {
		return listResponse{}, f.listErr
	}
	if f.listCalls > len(f.pages) {
		return listResponse{}, nil
	}
	return f.pages[f.listCalls-1], nil
}

func (f *fakeRemote) SubmitInspection(ctx context.Context, token string, ticketId string, payload InspectionPayload) (pushEnvelope, error) {
	f.pushCalls++
	f.lastTicket = ticketId
	return f.pushEnvelope, f.pushErr
}

func (f *fakeRemote) SubmitSchedule(ctx context.Context, token string, ticketId string, payload SchedulePayload) (pushEnvelope, error) {
	f.pushCalls++
	f.lastTicket = ticketId
	return f.pushEnvelope, f.pushErr
}

func (f *fakeRemote) SubmitImplementationResult(ctx context.Context, token string, ticketId string, payload ImplementationResultPayload) (pushEnvelope, error) {
	f.pushCalls++
	f.lastTicket = ticketId
	return f.pushEnvelope, f.pushErr
}

func (f *fakeRemote) PushToExternalSystem(ctx context.Context, token string, payload ExternalPushPayload) (pushEnvelope, error) {
	f.pushCalls++
	return f.pushEnvelope, f.pushErr
}

type fakeStore struct {
	upserts     []models.RemoteChangeSnapshot
	applied     bool
	upsertErr   error
	marked      []int
	markedStamp time.Time
}

func (f *fakeStore) UpsertFromRemote(ctx context.Context, snapshot models.RemoteChangeSnapshot) (bool, error) {
	if f.upsertErr != nil {
		return false, f.upsertErr
	}
	f.upserts = append(f.upserts, snapshot)
	return f.applied, nil
}

func (f *fakeStore) MarkPushed(ctx context.Context, changeId int, remoteStamp time.Time) error {
	f.marked = append(f.marked, changeId)
	f.markedStamp = remoteStamp
	return nil
}

type fakeScheduler struct {
	armed    bool
	disarmed bool
	interval time.Duration
}

func (f *fakeScheduler) Arm(interval time.Duration, task func()) {
	f.armed = true
	f.interval = interval
}

func (f *fakeScheduler) Disarm() {
	f.disarmed = true
	f.armed = false
}

type fakeConnectivity struct{ online bool }

func (f fakeConnectivity) Available() bool { return f.online }

func loggedIn() *session.State {
	s := session.NewState()
	s.SetAuthenticated("token-1", 7, "Aye Chan")
	return s
}

func rawRecord(t *testing.T, r remoteChange) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func newTestCoordinator(sess *session.State, remote RemoteService, store Store) (*Coordinator, *fakeScheduler) {
	sched := &fakeScheduler{}
	return NewCoordinator(sess, remote, store, sched, fakeConnectivity{online: true}), sched
}

func TestPull_RequiresToken(t *testing.T) {
	remote := &fakeRemote{}
	c, _ := newTestCoordinator(session.NewState(), remote, &fakeStore{})

	_, err := c.Pull(context.Background())
	if !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if remote.listCalls != 0 {
		t.Errorf("remote was called %d times before auth check", remote.listCalls)
	}
}

func TestPull_EmptyResultIsNoOp(t *testing.T) {
	remote := &fakeRemote{pages: []listResponse{{}}}
	store := &fakeStore{applied: true}
	c, _ := newTestCoordinator(loggedIn(), remote, store)

	stats, err := c.Pull(context.Background())
	if err != nil {
		t.Fatalf("Pull: %v", err)
	}
	if stats.Applied != 0 || stats.SkippedStale != 0 || len(stats.Errors) != 0 {
		t.Errorf("expected zero stats, got %+v", stats)
	}
	if len(store.upserts) != 0 {
		t.Errorf("store was written on an empty pull")
	}
}

func TestPull_UpsertsEveryRecord(t *testing.T) {
	page := listResponse{
		Data: []json.RawMessage{
			rawRecord(t, remoteChange{TicketId: "CHG-1", Title: "Patch web tier", Status: "SUBMITTED", UpdatedAt: "2026-08-01T10:00:00Z"}),
			rawRecord(t, remoteChange{TicketId: "CHG-2", Title: "Replace switch", Status: "SCHEDULED", UpdatedAt: "2026-08-02T10:00:00Z"}),
		},
	}
	remote := &fakeRemote{pages: []listResponse{page}}
	store := &fakeStore{applied: true}
	c, _ := newTestCoordinator(loggedIn(), remote, store)

	stats, err := c.Pull(context.Background())
	if err != nil {
		t.Fatalf("Pull: %v", err)
	}
	if stats.Applied != 2 {
		t.Errorf("Applied = %d, want 2", stats.Applied)
	}
	if len(store.upserts) != 2 {
		t.Fatalf("store received %d upserts, want 2", len(store.upserts))
	}
	if store.upserts[0].TicketId != "CHG-1" || store.upserts[0].Status != "SUBMITTED" {
		t.Errorf("first snapshot mismatched: %+v", store.upserts[0])
	}
}

func TestPull_StaleRecordsCountedNotApplied(t *testing.T) {
	page := listResponse{
		Data: []json.RawMessage{
			rawRecord(t, remoteChange{TicketId: "CHG-1", UpdatedAt: "2020-01-01T00:00:00Z"}),
		},
	}
	remote := &fakeRemote{pages: []listResponse{page}}
	store := &fakeStore{applied: false}
	c, _ := newTestCoordinator(loggedIn(), remote, store)

	stats, err := c.Pull(context.Background())
	if err != nil {
		t.Fatalf("Pull: %v", err)
	}
	if stats.Applied != 0 || stats.SkippedStale != 1 {
		t.Errorf("stats = %+v, want 1 stale skip", stats)
	}
}

func TestPull_BadRecordDoesNotAbortPage(t *testing.T) {
	page := listResponse{
		Data: []json.RawMessage{
			rawRecord(t, remoteChange{Title: "no ticket id", UpdatedAt: "2026-08-01T10:00:00Z"}),
			rawRecord(t, remoteChange{TicketId: "CHG-2", UpdatedAt: "2026-08-01T10:00:00Z"}),
		},
	}
	remote := &fakeRemote{pages: []listResponse{page}}
	store := &fakeStore{applied: true}
	c, _ := newTestCoordinator(loggedIn(), remote, store)

	stats, err := c.Pull(context.Background())
	if err != nil {
		t.Fatalf("Pull: %v", err)
	}
	if stats.Applied != 1 {
		t.Errorf("Applied = %d, want 1", stats.Applied)
	}
	if len(stats.Errors) != 1 || stats.Errors[0].Code != "missing_id" {
		t.Errorf("errors = %+v, want one missing_id", stats.Errors)
	}
}

func TestPull_FollowsCursor(t *testing.T) {
	hasMore := true
	first := listResponse{
		Data:       []json.RawMessage{rawRecord(t, remoteChange{TicketId: "CHG-1", UpdatedAt: "2026-08-01T10:00:00Z"})},
		NextCursor: "page2",
		HasMore:    &hasMore,
	}
	second := listResponse{
		Data: []json.RawMessage{rawRecord(t, remoteChange{TicketId: "CHG-2", UpdatedAt: "2026-08-01T11:00:00Z"})},
	}
	remote := &fakeRemote{pages: []listResponse{first, second}}
	store := &fakeStore{applied: true}
	c, _ := newTestCoordinator(loggedIn(), remote, store)

	stats, err := c.Pull(context.Background())
	if err != nil {
		t.Fatalf("Pull: %v", err)
	}
	if remote.listCalls != 2 {
		t.Errorf("listCalls = %d, want 2", remote.listCalls)
	}
	if stats.Applied != 2 {
		t.Errorf("Applied = %d, want 2", stats.Applied)
	}
	if got := remote.lastParams.Get("cursor"); got != "page2" {
		t.Errorf("cursor param = %q, want page2", got)
	}
}

func TestPull_SessionExpiredClearsSession(t *testing.T) {
	sess := loggedIn()
	remote := &fakeRemote{listErr: ErrSessionExpired}
	c, sched := newTestCoordinator(sess, remote, &fakeStore{})

	_, err := c.Pull(context.Background())
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	if sess.IsAuthenticated() {
		t.Errorf("session still authenticated after remote 401")
	}
	if !sched.disarmed {
		t.Errorf("scheduler not disarmed after session expiry")
	}
}

func TestPushAction_RequiresToken(t *testing.T) {
	remote := &fakeRemote{}
	c, _ := newTestCoordinator(session.NewState(), remote, &fakeStore{})

	err := c.PushAction(context.Background(), PushRequest{
		Kind:       models.PushActionInspect,
		TicketId:   "CHG-1",
		Inspection: &InspectionPayload{Impact: 3, Likelihood: 2, Exposure: 1},
	})
	if !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if remote.pushCalls != 0 {
		t.Errorf("remote was called before auth check")
	}
}

func TestPushAction_OfflineNotAttempted(t *testing.T) {
	remote := &fakeRemote{}
	store := &fakeStore{}
	sched := &fakeScheduler{}
	c := NewCoordinator(loggedIn(), remote, store, sched, fakeConnectivity{online: false})

	err := c.PushAction(context.Background(), PushRequest{
		Kind:       models.PushActionInspect,
		TicketId:   "CHG-2",
		Inspection: &InspectionPayload{Impact: 3, Likelihood: 2, Exposure: 1},
	})
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected ErrNetwork, got %v", err)
	}
	if remote.pushCalls != 0 {
		t.Errorf("remote was called while offline")
	}
	if len(store.marked) != 0 {
		t.Errorf("local state was stamped for a push that never ran")
	}
}

func TestPushAction_SessionExpiredClearsSessionAndLeavesLocalState(t *testing.T) {
	sess := loggedIn()
	remote := &fakeRemote{pushErr: ErrSessionExpired}
	store := &fakeStore{}
	c, _ := newTestCoordinator(sess, remote, store)

	err := c.PushAction(context.Background(), PushRequest{
		Kind:     models.PushActionSchedule,
		ChangeId: 5,
		TicketId: "CHG-5",
		Schedule: &SchedulePayload{ScheduledDate: "2026-09-10T01:00:00Z"},
	})
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	if sess.IsAuthenticated() {
		t.Errorf("session still authenticated after remote 401")
	}
	if len(store.marked) != 0 {
		t.Errorf("local state was mutated on a failed push")
	}
}

func TestPushAction_NetworkErrorSurfacesAndLeavesLocalState(t *testing.T) {
	sess := loggedIn()
	remote := &fakeRemote{pushErr: ErrNetwork}
	store := &fakeStore{}
	c, _ := newTestCoordinator(sess, remote, store)

	err := c.PushAction(context.Background(), PushRequest{
		Kind:     models.PushActionPushExternal,
		External: &ExternalPushPayload{TicketId: "CHG-9", System: "cmdb"},
	})
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected ErrNetwork, got %v", err)
	}
	if !sess.IsAuthenticated() {
		t.Errorf("session cleared on a plain network failure")
	}
	if len(store.marked) != 0 {
		t.Errorf("local state was mutated on a failed push")
	}
}

func TestPushAction_SuccessMarksPushed(t *testing.T) {
	remote := &fakeRemote{pushEnvelope: pushEnvelope{Success: true, UpdatedAt: "2026-09-01T08:00:00Z"}}
	store := &fakeStore{}
	c, _ := newTestCoordinator(loggedIn(), remote, store)

	err := c.PushAction(context.Background(), PushRequest{
		Kind:           models.PushActionImplementationResult,
		ChangeId:       11,
		TicketId:       "CHG-11",
		Implementation: &ImplementationResultPayload{Succeeded: true, ResidualImpact: 1, ResidualLikelihood: 1, ResidualExposure: 1},
	})
	if err != nil {
		t.Fatalf("PushAction: %v", err)
	}
	if len(store.marked) != 1 || store.marked[0] != 11 {
		t.Fatalf("marked = %v, want [11]", store.marked)
	}
	want := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	if !store.markedStamp.Equal(want) {
		t.Errorf("markedStamp = %v, want %v", store.markedStamp, want)
	}
	if remote.lastTicket != "CHG-11" {
		t.Errorf("remote ticket = %q, want CHG-11", remote.lastTicket)
	}
}

func TestPushAction_MissingPayloadRejected(t *testing.T) {
	remote := &fakeRemote{}
	c, _ := newTestCoordinator(loggedIn(), remote, &fakeStore{})

	if err := c.PushAction(context.Background(), PushRequest{Kind: models.PushActionInspect}); err == nil {
		t.Fatalf("expected error for missing payload")
	}
	if remote.pushCalls != 0 {
		t.Errorf("remote was called with a missing payload")
	}
}

func TestSyncNow_OfflineIsNoOp(t *testing.T) {
	remote := &fakeRemote{}
	sched := &fakeScheduler{}
	c := NewCoordinator(loggedIn(), remote, &fakeStore{}, sched, fakeConnectivity{online: false})

	if err := c.SyncNow(context.Background()); err != nil {
		t.Fatalf("SyncNow: %v", err)
	}
	if remote.listCalls != 0 {
		t.Errorf("remote was called while offline")
	}
}

func TestSyncNow_SwallowsNetworkError(t *testing.T) {
	remote := &fakeRemote{listErr: ErrNetwork}
	c, _ := newTestCoordinator(loggedIn(), remote, &fakeStore{})

	if err := c.SyncNow(context.Background()); err != nil {
		t.Fatalf("network failure should be swallowed, got %v", err)
	}
}

func TestSyncNow_SurfacesSessionExpiry(t *testing.T) {
	remote := &fakeRemote{listErr: ErrSessionExpired}
	c, _ := newTestCoordinator(loggedIn(), remote, &fakeStore{})

	if err := c.SyncNow(context.Background()); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
}

func TestSyncNow_MarksSessionSynced(t *testing.T) {
	sess := loggedIn()
	remote := &fakeRemote{pages: []listResponse{{}}}
	c, _ := newTestCoordinator(sess, remote, &fakeStore{})

	if err := c.SyncNow(context.Background()); err != nil {
		t.Fatalf("SyncNow: %v", err)
	}
	if sess.LastSyncAt() == nil {
		t.Errorf("LastSyncAt not recorded after a successful pass")
	}
}

func TestInitializeSync_Gating(t *testing.T) {
	t.Setenv("OFFLINE_MODE_ENABLED", "true")

	cases := []struct {
		name        string
		sess        func() *session.State
		syncEnabled bool
		wantArmed   bool
	}{
		{"authenticated and enabled", loggedIn, true, true},
		{"not authenticated", session.NewState, true, false},
		{"sync disabled", loggedIn, false, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sess := tc.sess()
			sess.SetSyncEnabled(tc.syncEnabled)
			c, sched := newTestCoordinator(sess, &fakeRemote{}, &fakeStore{})

			c.InitializeSync()
			if sched.armed != tc.wantArmed {
				t.Errorf("armed = %v, want %v", sched.armed, tc.wantArmed)
			}
		})
	}
}

func TestInitializeSync_DisabledGlobally(t *testing.T) {
	t.Setenv("OFFLINE_MODE_ENABLED", "false")

	c, sched := newTestCoordinator(loggedIn(), &fakeRemote{}, &fakeStore{})
	c.InitializeSync()
	if sched.armed {
		t.Errorf("scheduler armed while offline mode is globally disabled")
	}
}

func TestStopSync_Disarms(t *testing.T) {
	c, sched := newTestCoordinator(loggedIn(), &fakeRemote{}, &fakeStore{})
	c.StopSync()
	if !sched.disarmed {
		t.Errorf("scheduler not disarmed")
	}
}

func TestPull_SendsUpdatedSince(t *testing.T) {
	sess := loggedIn()
	last := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	sess.MarkSynced(last)

	remote := &fakeRemote{pages: []listResponse{{}}}
	c, _ := newTestCoordinator(sess, remote, &fakeStore{})

	if _, err := c.Pull(context.Background()); err != nil {
		t.Fatalf("Pull: %v", err)
	}
	if got := remote.lastParams.Get("updated_since"); got != "2026-08-30T12:00:00Z" {
		t.Errorf("updated_since = %q", got)
	}
}
