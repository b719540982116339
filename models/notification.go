package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/changes_backend/config"
	"bitbucket.org/mmdatafocus/changes_backend/utils"
	"gorm.io/gorm"
)

type NotificationRecord struct {
	ID              int              `gorm:"primary_key" json:"id"`
	ChangeRequestId int              `gorm:"index" json:"change_request_id"`
	TicketId        string           `gorm:"size:40" json:"ticket_id"`
	RecipientId     int              `gorm:"index;not null" json:"recipient_id"`
	Kind            NotificationKind `gorm:"size:30;not null" json:"kind"`
	FromStatus      ChangeStatus     `gorm:"size:20" json:"from_status"`
	ToStatus        ChangeStatus     `gorm:"size:20" json:"to_status"`
	Message         string           `gorm:"type:text;not null" json:"message"`
	IsRead          *bool            `gorm:"not null" json:"is_read"`
	ReadAt          *time.Time       `json:"read_at"`
	CreatedAt       time.Time        `gorm:"autoCreateTime" json:"created_at"`
}

// EmitNotification writes the record. Callers on the workflow path treat
// failures here as best-effort.
func EmitNotification(tx *gorm.DB, record NotificationRecord) error {
	if record.RecipientId == 0 {
		return errors.New("recipient is required")
	}
	if record.IsRead == nil {
		record.IsRead = utils.NewFalse()
	}
	return tx.Create(&record).Error
}

func ListNotifications(ctx context.Context, unreadOnly bool) ([]*NotificationRecord, error) {

	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId == 0 {
		return nil, errors.New("user id is required")
	}

	db := config.GetDB()
	var results []*NotificationRecord

	dbCtx := db.WithContext(ctx).Where("recipient_id = ?", userId)
	if unreadOnly {
		dbCtx = dbCtx.Where("is_read = ?", false)
	}
	err := dbCtx.Order("created_at DESC").Limit(200).Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func MarkNotificationRead(ctx context.Context, id int) (*NotificationRecord, error) {

	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId == 0 {
		return nil, errors.New("user id is required")
	}

	db := config.GetDB()
	var record NotificationRecord

	err := db.WithContext(ctx).
		Where("id = ? AND recipient_id = ?", id, userId).
		Take(&record).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}

	now := time.Now().UTC()
	if err := db.WithContext(ctx).Model(&record).Updates(map[string]interface{}{
		"is_read": true,
		"read_at": now,
	}).Error; err != nil {
		return nil, err
	}
	record.IsRead = utils.NewTrue()
	record.ReadAt = &now
	return &record, nil
}
