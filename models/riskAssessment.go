package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/changes_backend/config"
	"bitbucket.org/mmdatafocus/changes_backend/risk"
	"bitbucket.org/mmdatafocus/changes_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RiskAssessment is single-slot per change request: re-assessing replaces the
// previous row rather than adding one.
type RiskAssessment struct {
	ID              int        `gorm:"primary_key" json:"id"`
	ChangeRequestId int        `gorm:"uniqueIndex;not null" json:"change_request_id"`
	Impact          int        `gorm:"not null" json:"impact" binding:"required"`
	Likelihood      int        `gorm:"not null" json:"likelihood" binding:"required"`
	Exposure        int        `gorm:"not null" json:"exposure" binding:"required"`
	RawScore        int        `gorm:"not null" json:"raw_score"`
	Band            risk.Level `gorm:"size:20;not null" json:"band"`

	// Residual values record the remaining risk after mitigation, scored at
	// implementation completion.
	ResidualImpact     int        `json:"residual_impact"`
	ResidualLikelihood int        `json:"residual_likelihood"`
	ResidualExposure   int        `json:"residual_exposure"`
	ResidualRawScore   int        `json:"residual_raw_score"`
	ResidualBand       risk.Level `gorm:"size:20" json:"residual_band"`

	EstimatedDowntimeMinutes decimal.Decimal `gorm:"type:decimal(10,2)" json:"estimated_downtime_minutes"`
	EstimatedCost            decimal.Decimal `gorm:"type:decimal(14,2)" json:"estimated_cost"`

	AssessorId   int       `gorm:"not null" json:"assessor_id"`
	AssessorName string    `gorm:"size:100" json:"assessor_name"`
	AssessedAt   time.Time `gorm:"autoUpdateTime" json:"assessed_at"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type NewRiskAssessment struct {
	Impact                   int             `json:"impact" binding:"required"`
	Likelihood               int             `json:"likelihood" binding:"required"`
	Exposure                 int             `json:"exposure" binding:"required"`
	EstimatedDowntimeMinutes decimal.Decimal `json:"estimated_downtime_minutes"`
	EstimatedCost            decimal.Decimal `json:"estimated_cost"`
}

type ResidualRiskInput struct {
	Impact     int `json:"impact" binding:"required"`
	Likelihood int `json:"likelihood" binding:"required"`
	Exposure   int `json:"exposure" binding:"required"`
}

// ReplaceRiskAssessment scores the input and upserts the change's single
// assessment slot.
func ReplaceRiskAssessment(ctx context.Context, changeRequestId int, input *NewRiskAssessment) (*RiskAssessment, error) {

	db := config.GetDB()

	rawScore, band, err := risk.Score(input.Impact, input.Likelihood, input.Exposure)
	if err != nil {
		return nil, err
	}

	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId == 0 {
		return nil, errors.New("user id is required")
	}
	userName, _ := utils.GetUserNameFromContext(ctx)

	if err := utils.ValidateResourceId[ChangeRequest](ctx, changeRequestId); err != nil {
		return nil, err
	}

	assessment := RiskAssessment{
		ChangeRequestId:          changeRequestId,
		Impact:                   input.Impact,
		Likelihood:               input.Likelihood,
		Exposure:                 input.Exposure,
		RawScore:                 rawScore,
		Band:                     band,
		EstimatedDowntimeMinutes: input.EstimatedDowntimeMinutes,
		EstimatedCost:            input.EstimatedCost,
		AssessorId:               userId,
		AssessorName:             userName,
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing RiskAssessment
		err := tx.Where("change_request_id = ?", changeRequestId).Take(&existing).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err == nil {
			assessment.ID = existing.ID
			assessment.CreatedAt = existing.CreatedAt
			return tx.Save(&assessment).Error
		}
		return tx.Create(&assessment).Error
	})
	if err != nil {
		return nil, err
	}

	_ = utils.RemoveRedisItem[ChangeRequest](changeRequestId)
	return &assessment, nil
}

// SetResidualRisk scores the post-mitigation inputs into the change's
// assessment slot. When no inspection was recorded locally (the change may
// have been pulled with its inspection held by the central system) the slot
// is created carrying only the residual values.
func SetResidualRisk(tx *gorm.DB, changeRequestId int, input ResidualRiskInput) (*RiskAssessment, error) {

	residualRaw, residualBand, err := risk.Score(input.Impact, input.Likelihood, input.Exposure)
	if err != nil {
		return nil, err
	}

	var existing RiskAssessment
	if err := tx.Where("change_request_id = ?", changeRequestId).Take(&existing).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		created := RiskAssessment{
			ChangeRequestId:    changeRequestId,
			ResidualImpact:     input.Impact,
			ResidualLikelihood: input.Likelihood,
			ResidualExposure:   input.Exposure,
			ResidualRawScore:   residualRaw,
			ResidualBand:       residualBand,
		}
		if err := tx.Create(&created).Error; err != nil {
			return nil, err
		}
		return &created, nil
	}

	if err := tx.Model(&existing).Updates(map[string]interface{}{
		"residual_impact":     input.Impact,
		"residual_likelihood": input.Likelihood,
		"residual_exposure":   input.Exposure,
		"residual_raw_score":  residualRaw,
		"residual_band":       residualBand,
	}).Error; err != nil {
		return nil, err
	}

	existing.ResidualImpact = input.Impact
	existing.ResidualLikelihood = input.Likelihood
	existing.ResidualExposure = input.Exposure
	existing.ResidualRawScore = residualRaw
	existing.ResidualBand = residualBand
	return &existing, nil
}

func GetRiskAssessment(ctx context.Context, changeRequestId int) (*RiskAssessment, error) {

	db := config.GetDB()
	var result RiskAssessment

	err := db.WithContext(ctx).
		Where("change_request_id = ?", changeRequestId).
		Take(&result).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &result, nil
}
