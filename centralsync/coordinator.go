package centralsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/changes_backend/config"
	"bitbucket.org/mmdatafocus/changes_backend/models"
	"bitbucket.org/mmdatafocus/changes_backend/session"
	"github.com/sirupsen/logrus"
)

// Store is the local cache surface the coordinator writes through. Both the
// coordinator and the workflow layer go through the same upsert entry point
// so a pull cannot silently undo an in-flight local transition.
type Store interface {
	UpsertFromRemote(ctx context.Context, snapshot models.RemoteChangeSnapshot) (bool, error)
	MarkPushed(ctx context.Context, changeId int, remoteStamp time.Time) error
}

// Scheduler arms and disarms the recurring background pass. The coordinator
// decides whether to arm it, never how it runs.
type Scheduler interface {
	Arm(interval time.Duration, task func())
	Disarm()
}

// Connectivity reports whether the central system is reachable.
type Connectivity interface {
	Available() bool
}

type Coordinator struct {
	session      *session.State
	remote       RemoteService
	store        Store
	scheduler    Scheduler
	connectivity Connectivity
	logger       *logrus.Logger
	pageSize     int
}

func NewCoordinator(sess *session.State, remote RemoteService, store Store, scheduler Scheduler, connectivity Connectivity) *Coordinator {
	return &Coordinator{
		session:      sess,
		remote:       remote,
		store:        store,
		scheduler:    scheduler,
		connectivity: connectivity,
		logger:       config.GetLogger(),
		pageSize:     200,
	}
}

// NewDefaultCoordinator wires the production collaborators.
func NewDefaultCoordinator(sess *session.State) *Coordinator {
	monitor := newConnectivityMonitor()
	monitor.Start(context.Background())
	return NewCoordinator(sess, NewCentralClient(), gormStore{}, newTickerScheduler(), monitor)
}

// InitializeSync arms the periodic background pass. No-op when offline mode
// is globally disabled, when nobody is logged in, or when the user turned
// sync off.
func (c *Coordinator) InitializeSync() {
	if !config.OfflineModeEnabled() {
		return
	}
	if !c.session.IsAuthenticated() {
		return
	}
	if !c.session.IsSyncEnabled() {
		return
	}
	interval := config.SyncInterval()
	c.scheduler.Arm(interval, func() {
		_ = c.SyncNow(context.Background())
	})
	c.logger.WithFields(logrus.Fields{"interval": interval.String()}).Info("central sync armed")
}

// StopSync disarms the periodic pass. In-flight operations finish on their
// own.
func (c *Coordinator) StopSync() {
	c.scheduler.Disarm()
}

// SyncNow runs an immediate one-shot pull. A no-op when the central system
// is unreachable; not queued, not retried. Transport failures are logged and
// swallowed, the next tick retries. Session expiry surfaces so the caller
// can force re-authentication.
func (c *Coordinator) SyncNow(ctx context.Context) error {
	if !c.connectivity.Available() {
		return nil
	}

	stats, err := c.Pull(ctx)
	if err != nil {
		if errors.Is(err, ErrNetwork) {
			config.LogError(c.logger, "coordinator.go", "SyncNow", "Pull", nil, err)
			return nil
		}
		return err
	}

	c.session.MarkSynced(time.Now().UTC())
	c.logger.WithFields(logrus.Fields{
		"applied": stats.Applied,
		"skipped": stats.SkippedStale,
		"errors":  len(stats.Errors),
	}).Info("central sync pull finished")
	return nil
}

// Pull fetches the remote change-request list and upserts every record into
// the local cache, last-writer-wins by remote timestamp. A per-record
// failure is captured and the pass continues; the existing cache rows are
// never touched on failure.
func (c *Coordinator) Pull(ctx context.Context) (PullStats, error) {
	token, err := c.requireToken()
	if err != nil {
		return PullStats{}, err
	}

	var stats PullStats

	params := url.Values{}
	params.Set("limit", fmt.Sprint(c.pageSize))
	if last := c.session.LastSyncAt(); last != nil {
		params.Set("updated_since", last.UTC().Format(time.RFC3339))
	}

	cursor := ""
	for {
		if cursor != "" {
			params.Set("cursor", cursor)
		}

		resp, err := c.remote.ListChangeRequests(ctx, token, params)
		if err != nil {
			if errors.Is(err, ErrSessionExpired) {
				c.expireSession()
			}
			return stats, err
		}

		for _, raw := range resp.records() {
			var record remoteChange
			if err := json.Unmarshal(raw, &record); err != nil {
				stats.Errors = append(stats.Errors, PullError{Code: "invalid_payload", Message: err.Error(), Payload: raw})
				continue
			}
			if strings.TrimSpace(record.TicketId) == "" {
				stats.Errors = append(stats.Errors, PullError{Code: "missing_id", Message: "ticket id missing", Payload: raw})
				continue
			}

			applied, err := c.store.UpsertFromRemote(ctx, models.RemoteChangeSnapshot{
				TicketId:      record.TicketId,
				Title:         record.Title,
				Rationale:     record.Rationale,
				AffectedAsset: record.AffectedAsset,
				ChangeType:    record.ChangeType,
				Status:        record.Status,
				Notes:         record.Notes,
				ProposedDate:  record.ProposedDate,
				ScheduledDate: record.ScheduledDate,
				UpdatedAt:     record.UpdatedAt,
			})
			if err != nil {
				stats.Errors = append(stats.Errors, PullError{TicketId: record.TicketId, Code: "upsert_failed", Message: err.Error(), Payload: raw})
				continue
			}
			if applied {
				stats.Applied++
			} else {
				stats.SkippedStale++
			}
		}

		if resp.NextCursor == "" || (resp.HasMore != nil && !*resp.HasMore) {
			return stats, nil
		}
		cursor = resp.NextCursor
	}
}

// PushAction sends one discrete remote write. A failed push leaves local
// state untouched; the caller decides whether to retry.
func (c *Coordinator) PushAction(ctx context.Context, req PushRequest) error {
	token, err := c.requireToken()
	if err != nil {
		return err
	}
	if !c.connectivity.Available() {
		return fmt.Errorf("%w: central system is unreachable", ErrNetwork)
	}

	var envelope pushEnvelope
	switch req.Kind {
	case models.PushActionInspect:
		if req.Inspection == nil {
			return errors.New("inspection payload is required")
		}
		envelope, err = c.remote.SubmitInspection(ctx, token, req.TicketId, *req.Inspection)
	case models.PushActionSchedule:
		if req.Schedule == nil {
			return errors.New("schedule payload is required")
		}
		envelope, err = c.remote.SubmitSchedule(ctx, token, req.TicketId, *req.Schedule)
	case models.PushActionImplementationResult:
		if req.Implementation == nil {
			return errors.New("implementation payload is required")
		}
		envelope, err = c.remote.SubmitImplementationResult(ctx, token, req.TicketId, *req.Implementation)
	case models.PushActionPushExternal:
		if req.External == nil {
			return errors.New("external payload is required")
		}
		envelope, err = c.remote.PushToExternalSystem(ctx, token, *req.External)
	default:
		return fmt.Errorf("unknown push action %q", req.Kind)
	}

	if err != nil {
		if errors.Is(err, ErrSessionExpired) {
			c.expireSession()
		} else {
			config.LogError(c.logger, "coordinator.go", "PushAction", string(req.Kind), req.TicketId, err)
		}
		return err
	}

	if req.ChangeId != 0 {
		stamp := models.NormalizeTimestampOr(envelope.UpdatedAt, time.Now().UTC())
		if err := c.store.MarkPushed(ctx, req.ChangeId, stamp); err != nil {
			config.LogError(c.logger, "coordinator.go", "PushAction", "MarkPushed", req.ChangeId, err)
		}
	}
	return nil
}

func (c *Coordinator) requireToken() (string, error) {
	token := c.session.CurrentToken()
	if token == "" {
		return "", ErrUnauthenticated
	}
	return token, nil
}

// expireSession is the single place session invalidation happens on a remote
// 401.
func (c *Coordinator) expireSession() {
	c.session.Clear()
	c.scheduler.Disarm()
	c.logger.Warn("central session expired; local session cleared")
}
