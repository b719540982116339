package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/changes_backend/config"
	"bitbucket.org/mmdatafocus/changes_backend/utils"
)

// SyncRun records one pull/push pass against the central system.
type SyncRun struct {
	ID            uint          `gorm:"primary_key" json:"id"`
	Status        SyncRunStatus `gorm:"size:20;not null;index" json:"status"`
	Trigger       string        `gorm:"size:20" json:"trigger"`
	StartedAt     *time.Time    `json:"started_at"`
	FinishedAt    *time.Time    `json:"finished_at"`
	DurationMs    int64         `json:"duration_ms"`
	RecordsPulled int           `json:"records_pulled"`
	RecordsPushed int           `json:"records_pushed"`
	SkippedStale  int           `json:"skipped_stale"`
	ErrorCount    int           `json:"error_count"`
	CursorAfter   string        `gorm:"size:255" json:"cursor_after"`
	CorrelationId string        `gorm:"size:64" json:"correlation_id"`
	CreatedAt     time.Time     `gorm:"autoCreateTime" json:"created_at"`
}

// SyncRunError captures a per-record failure without aborting the pass.
type SyncRunError struct {
	ID          uint      `gorm:"primary_key" json:"id"`
	SyncRunId   uint      `gorm:"index;not null" json:"sync_run_id"`
	TicketId    string    `gorm:"size:40" json:"ticket_id"`
	ErrorCode   string    `gorm:"size:50;not null" json:"error_code"`
	Message     string    `gorm:"type:text" json:"message"`
	PayloadJSON []byte    `gorm:"type:mediumblob" json:"payload_json"`
	Retryable   bool      `json:"retryable"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func CreateSyncRun(ctx context.Context, trigger string) (*SyncRun, error) {

	db := config.GetDB()
	run := SyncRun{
		Status:        SyncRunStatusQueued,
		Trigger:       trigger,
		CorrelationId: correlationIdFromContextOrNew(ctx),
	}
	if err := db.WithContext(ctx).Create(&run).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

func GetSyncRun(ctx context.Context, id uint) (*SyncRun, error) {

	db := config.GetDB()
	var result SyncRun

	err := db.WithContext(ctx).First(&result, id).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &result, nil
}

func ListSyncRuns(ctx context.Context, limit int) ([]*SyncRun, error) {

	if limit <= 0 || limit > 100 {
		limit = 20
	}
	db := config.GetDB()
	var results []*SyncRun

	err := db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func ListSyncRunErrors(ctx context.Context, runId uint) ([]*SyncRunError, error) {

	db := config.GetDB()
	var results []*SyncRunError

	err := db.WithContext(ctx).Where("sync_run_id = ?", runId).Order("id").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
