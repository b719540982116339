package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/changes_backend/config"
	"gorm.io/gorm"
)

// ApprovalHistoryEntry is the append-only ledger of status moves. Entries are
// never updated or deleted; the current state of a change is always
// reproducible by replaying its entries in order.
type ApprovalHistoryEntry struct {
	ID              int          `gorm:"primary_key" json:"id"`
	ChangeRequestId int          `gorm:"index;not null" json:"change_request_id"`
	FromStatus      ChangeStatus `gorm:"size:20" json:"from_status"`
	ToStatus        ChangeStatus `gorm:"size:20;not null" json:"to_status"`
	ActorId         int          `gorm:"index;not null" json:"actor_id"`
	ActorName       string       `gorm:"size:100" json:"actor_name"`
	Note            string       `gorm:"type:text" json:"note"`
	CorrelationId   string       `gorm:"size:64" json:"correlation_id"`
	CreatedAt       time.Time    `gorm:"autoCreateTime" json:"created_at"`
}

func (e ApprovalHistoryEntry) GetCursor() string {
	return e.CreatedAt.String()
}

// AppendApprovalHistory writes one ledger entry inside the caller's
// transaction so the status move and its record commit together.
func AppendApprovalHistory(tx *gorm.DB, changeRequestId int, from ChangeStatus, to ChangeStatus, actorId int, actorName string, note string) error {
	if changeRequestId == 0 {
		return errors.New("change request id is required")
	}
	entry := ApprovalHistoryEntry{
		ChangeRequestId: changeRequestId,
		FromStatus:      from,
		ToStatus:        to,
		ActorId:         actorId,
		ActorName:       actorName,
		Note:            note,
		CorrelationId:   correlationIdFromContextOrNew(tx.Statement.Context),
	}
	return tx.Create(&entry).Error
}

func GetApprovalHistory(ctx context.Context, changeRequestId int) ([]*ApprovalHistoryEntry, error) {

	db := config.GetDB()
	var results []*ApprovalHistoryEntry

	err := db.WithContext(ctx).
		Where("change_request_id = ?", changeRequestId).
		Order("id").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// ScanApprovalHistory streams the full ledger in insertion order without
// loading it all at once. Used by the export endpoint.
func ScanApprovalHistory(ctx context.Context, batchSize int, fn func(entries []*ApprovalHistoryEntry) error) error {

	db := config.GetDB()
	var batch []*ApprovalHistoryEntry

	result := db.WithContext(ctx).
		Order("id").
		FindInBatches(&batch, batchSize, func(tx *gorm.DB, _ int) error {
			return fn(batch)
		})
	return result.Error
}

// ReplayStatus derives the current status from the ledger alone.
func ReplayStatus(entries []*ApprovalHistoryEntry) (ChangeStatus, bool) {
	if len(entries) == 0 {
		return "", false
	}
	return entries[len(entries)-1].ToStatus, true
}
