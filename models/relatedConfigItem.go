package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/changes_backend/config"
	"bitbucket.org/mmdatafocus/changes_backend/utils"
)

// RelatedConfigItem ties a change request to an affected configuration item
// (server, application, network device).
type RelatedConfigItem struct {
	ID              int          `gorm:"primary_key" json:"id"`
	ChangeRequestId int          `gorm:"index;not null" json:"change_request_id"`
	Name            string       `gorm:"size:255;not null" json:"name" binding:"required"`
	CiType          string       `gorm:"size:50" json:"ci_type"`
	Relation        RelationKind `gorm:"size:20;not null" json:"relation" binding:"required"`
	CreatedAt       time.Time    `gorm:"autoCreateTime" json:"created_at"`
}

type NewRelatedConfigItem struct {
	Name     string       `json:"name" binding:"required"`
	CiType   string       `json:"ci_type"`
	Relation RelationKind `json:"relation" binding:"required"`
}

func CreateRelatedConfigItem(ctx context.Context, changeRequestId int, input *NewRelatedConfigItem) (*RelatedConfigItem, error) {

	if _, err := ParseRelationKind(string(input.Relation)); err != nil {
		return nil, err
	}

	db := config.GetDB()
	record := RelatedConfigItem{
		ChangeRequestId: changeRequestId,
		Name:            input.Name,
		CiType:          input.CiType,
		Relation:        input.Relation,
	}
	if err := db.WithContext(ctx).Create(&record).Error; err != nil {
		return nil, err
	}

	_ = ChangeRequest{ID: changeRequestId}.RemoveInstanceRedis()

	return &record, nil
}

func DeleteRelatedConfigItem(ctx context.Context, id int) (*RelatedConfigItem, error) {

	db := config.GetDB()
	var record RelatedConfigItem
	if err := db.WithContext(ctx).First(&record, id).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	if err := db.WithContext(ctx).Delete(&record).Error; err != nil {
		return nil, err
	}

	_ = ChangeRequest{ID: record.ChangeRequestId}.RemoveInstanceRedis()

	return &record, nil
}

func GetRelatedConfigItems(ctx context.Context, changeRequestId int) ([]*RelatedConfigItem, error) {

	db := config.GetDB()
	var results []*RelatedConfigItem

	err := db.WithContext(ctx).
		Where("change_request_id = ?", changeRequestId).
		Order("id").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
