package centralsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/changes_backend/config"
	"bitbucket.org/mmdatafocus/changes_backend/models"
	"github.com/bsm/redislock"
	"gorm.io/gorm"
)

// ProcessSyncRun executes one queued sync run end to end: marks it running,
// pulls from the central system, records per-record failures, and finalizes
// the run row. Safe to redeliver; finished runs are skipped.
func (c *Coordinator) ProcessSyncRun(ctx context.Context, payload SyncPubSubPayload) error {
	if payload.RunId == 0 {
		return errors.New("invalid payload")
	}

	db := config.GetDB().WithContext(ctx)

	var run models.SyncRun
	if err := db.Take(&run, payload.RunId).Error; err != nil {
		return err
	}

	if run.Status == models.SyncRunStatusSuccess || run.Status == models.SyncRunStatusFailed || run.Status == models.SyncRunStatusPartial {
		return nil
	}

	// Best-effort lock so concurrent deliveries of the same run do not
	// double-pull. A lock failure still lets the run proceed.
	lockKey := fmt.Sprintf("SyncRun:%d", run.ID)
	if lock, err := config.GetRedisLock().Obtain(ctx, lockKey, 5*time.Minute, nil); err == nil {
		defer lock.Release(ctx)
	} else if errors.Is(err, redislock.ErrNotObtained) {
		return nil
	}

	now := time.Now()
	startedAt := run.StartedAt
	if startedAt == nil {
		startedAt = &now
	}

	if err := db.Model(&run).Updates(map[string]interface{}{
		"status":     models.SyncRunStatusRunning,
		"started_at": startedAt,
	}).Error; err != nil {
		return err
	}

	stats, pullErr := c.Pull(ctx)

	for _, pe := range stats.Errors {
		_ = createSyncError(ctx, db, run.ID, pe.TicketId, pe.Code, pe.Message, pe.Payload, true)
	}
	errorCount := len(stats.Errors)
	if pullErr != nil {
		errorCount++
		_ = createSyncError(ctx, db, run.ID, "", "pull_failed", pullErr.Error(), nil, !errors.Is(pullErr, ErrUnauthenticated))
	}

	finishedAt := time.Now()
	status := models.SyncRunStatusSuccess
	if errorCount > 0 && stats.Applied == 0 {
		status = models.SyncRunStatusFailed
	} else if errorCount > 0 {
		status = models.SyncRunStatusPartial
	}

	if err := db.Model(&run).Updates(map[string]interface{}{
		"status":         status,
		"finished_at":    finishedAt,
		"duration_ms":    finishedAt.Sub(*startedAt).Milliseconds(),
		"records_pulled": stats.Applied,
		"skipped_stale":  stats.SkippedStale,
		"error_count":    errorCount,
	}).Error; err != nil {
		return err
	}

	if status == models.SyncRunStatusSuccess {
		c.session.MarkSynced(finishedAt.UTC())
	}

	return pullErr
}

func createSyncError(ctx context.Context, db *gorm.DB, runId uint, ticketId, code, message string, payload []byte, retryable bool) error {
	record := models.SyncRunError{
		SyncRunId:   runId,
		TicketId:    ticketId,
		ErrorCode:   code,
		Message:     message,
		PayloadJSON: payload,
		Retryable:   retryable,
	}
	return db.WithContext(ctx).Create(&record).Error
}
