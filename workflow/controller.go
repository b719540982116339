package workflow

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/changes_backend/config"
	"bitbucket.org/mmdatafocus/changes_backend/models"
	"bitbucket.org/mmdatafocus/changes_backend/utils"
)

type changeEvent struct {
	ChangeRequestId int                 `json:"change_request_id"`
	TicketId        string              `json:"ticket_id"`
	FromStatus      models.ChangeStatus `json:"from_status"`
	ToStatus        models.ChangeStatus `json:"to_status"`
	Emergency       bool                `json:"emergency"`
	ActorId         int                 `json:"actor_id"`
	OccurredAt      time.Time           `json:"occurred_at"`
}

// ApplyTransition moves one change request through the state machine.
// Lock, load, validate, mutate, append audit, commit. The notification and
// the event publish run after commit and are best-effort.
func ApplyTransition(ctx context.Context, changeId int, action Action, input TransitionInput) (*models.ChangeRequest, error) {

	logger := config.GetLogger()
	db := config.GetDB()

	if input.ActorId == 0 {
		if userId, ok := utils.GetUserIdFromContext(ctx); ok {
			input.ActorId = userId
		}
	}
	if input.ActorName == "" {
		input.ActorName, _ = utils.GetUserNameFromContext(ctx)
	}

	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	defer tx.Rollback()

	if err := AcquireChangeLock(tx, changeId); err != nil {
		config.LogError(logger, "controller.go", "ApplyTransition", "AcquireChangeLock", changeId, err)
		return nil, err
	}
	// RELEASE_LOCK must run on the live tx connection; once Commit or
	// Rollback finishes the tx it can no longer reach that connection and
	// the advisory lock would sit on the pooled connection.
	released := false
	defer func() {
		if !released {
			ReleaseChangeLock(tx, changeId)
		}
	}()

	var change models.ChangeRequest
	if err := tx.First(&change, changeId).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}

	plan, err := planTransition(&change, action, input, time.Now())
	if err != nil {
		return nil, err
	}

	if err := tx.Model(&models.ChangeRequest{}).
		Where("id = ?", changeId).
		Updates(plan.Updates).Error; err != nil {
		config.LogError(logger, "controller.go", "ApplyTransition", "Updates", plan.Updates, err)
		return nil, err
	}

	if plan.Residual != nil {
		if _, err := models.SetResidualRisk(tx, changeId, *plan.Residual); err != nil {
			config.LogError(logger, "controller.go", "ApplyTransition", "SetResidualRisk", plan.Residual, err)
			return nil, err
		}
	}

	if err := models.AppendApprovalHistory(tx, changeId, plan.From, plan.To,
		input.ActorId, input.ActorName, plan.AuditNote); err != nil {
		config.LogError(logger, "controller.go", "ApplyTransition", "AppendApprovalHistory", changeId, err)
		return nil, err
	}

	ReleaseChangeLock(tx, changeId)
	released = true

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	_ = change.RemoveInstanceRedis()

	// notification for the submitter, best-effort after commit
	message := fmt.Sprintf("Change %s moved from %s to %s", change.TicketId, plan.From, plan.To)
	if plan.Emergency {
		message = fmt.Sprintf("%s %s", emergencyAuditTag, message)
	}
	if err := models.EmitNotification(db.WithContext(ctx), models.NotificationRecord{
		ChangeRequestId: change.ID,
		TicketId:        change.TicketId,
		RecipientId:     change.RequesterId,
		Kind:            plan.NotifyKind,
		FromStatus:      plan.From,
		ToStatus:        plan.To,
		Message:         message,
	}); err != nil {
		config.LogError(logger, "controller.go", "ApplyTransition", "EmitNotification", change.ID, err)
	}

	publishChangeEvent(ctx, changeEvent{
		ChangeRequestId: change.ID,
		TicketId:        change.TicketId,
		FromStatus:      plan.From,
		ToStatus:        plan.To,
		Emergency:       plan.Emergency,
		ActorId:         input.ActorId,
		OccurredAt:      time.Now().UTC(),
	})

	return models.GetChangeRequest(ctx, changeId)
}

func publishChangeEvent(ctx context.Context, event changeEvent) {
	logger := config.GetLogger()
	if err := config.PublishJSON(ctx, config.ChangeEventsTopic(), event); err != nil {
		config.LogError(logger, "controller.go", "publishChangeEvent", "PublishJSON", event.TicketId, err)
	}
}

// NotifyReviewers fans an approval-needed notification out to every active
// reviewer. Called when a change enters review.
func NotifyReviewers(ctx context.Context, change *models.ChangeRequest) {
	logger := config.GetLogger()
	db := config.GetDB()

	reviewers, err := models.ListUsersByRole(ctx, models.UserRoleReviewer)
	if err != nil {
		config.LogError(logger, "controller.go", "NotifyReviewers", "ListUsersByRole", nil, err)
		return
	}
	recipientIds := make([]int, 0, len(reviewers))
	for _, reviewer := range reviewers {
		recipientIds = append(recipientIds, reviewer.ID)
	}
	for _, recipientId := range utils.UniqueSlice(recipientIds) {
		if err := models.EmitNotification(db.WithContext(ctx), models.NotificationRecord{
			ChangeRequestId: change.ID,
			TicketId:        change.TicketId,
			RecipientId:     recipientId,
			Kind:            models.NotificationKindApprovalNeeded,
			FromStatus:      models.ChangeStatusSubmitted,
			ToStatus:        models.ChangeStatusInReview,
			Message:         fmt.Sprintf("Change %s is awaiting review", change.TicketId),
		}); err != nil {
			config.LogError(logger, "controller.go", "NotifyReviewers", "EmitNotification", recipientId, err)
		}
	}
}
