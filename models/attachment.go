package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/changes_backend/config"
	"bitbucket.org/mmdatafocus/changes_backend/utils"
)

// Attachment stores metadata for a file uploaded against a change request
// (implementation plans, rollback scripts, screenshots). The bytes live in
// cloud storage.
type Attachment struct {
	ID              int       `gorm:"primary_key" json:"id"`
	ChangeRequestId int       `gorm:"index;not null" json:"change_request_id"`
	FileName        string    `gorm:"size:255;not null" json:"file_name"`
	ObjectName      string    `gorm:"size:255;not null" json:"object_name"`
	ContentType     string    `gorm:"size:100" json:"content_type"`
	SizeBytes       int64     `json:"size_bytes"`
	ThumbnailObject string    `gorm:"size:255" json:"thumbnail_object"`
	UploadedBy      int       `gorm:"not null" json:"uploaded_by"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type NewAttachment struct {
	ChangeRequestId int
	FileName        string
	ObjectName      string
	ContentType     string
	SizeBytes       int64
	ThumbnailObject string
}

func CreateAttachment(ctx context.Context, input *NewAttachment) (*Attachment, error) {

	db := config.GetDB()

	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId == 0 {
		return nil, errors.New("user id is required")
	}
	if err := utils.ValidateResourceId[ChangeRequest](ctx, input.ChangeRequestId); err != nil {
		return nil, err
	}

	attachment := Attachment{
		ChangeRequestId: input.ChangeRequestId,
		FileName:        input.FileName,
		ObjectName:      input.ObjectName,
		ContentType:     input.ContentType,
		SizeBytes:       input.SizeBytes,
		ThumbnailObject: input.ThumbnailObject,
		UploadedBy:      userId,
	}
	if err := db.WithContext(ctx).Create(&attachment).Error; err != nil {
		return nil, err
	}
	return &attachment, nil
}

func GetAttachments(ctx context.Context, changeRequestId int) ([]*Attachment, error) {

	db := config.GetDB()
	var results []*Attachment

	err := db.WithContext(ctx).
		Where("change_request_id = ?", changeRequestId).
		Order("id").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func DeleteAttachment(ctx context.Context, id int) (*Attachment, error) {

	db := config.GetDB()
	var result Attachment

	err := db.WithContext(ctx).First(&result, id).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	if err := db.WithContext(ctx).Delete(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}
