package workflow

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/changes_backend/models"
)

type Action string

const (
	ActionStartReview         Action = "StartReview"
	ActionApprove             Action = "Approve"
	ActionReject              Action = "Reject"
	ActionSchedule            Action = "Schedule"
	ActionBeginImplementation Action = "BeginImplementation"
	ActionMarkComplete        Action = "MarkComplete"
	ActionMarkFailed          Action = "MarkFailed"
	ActionClose               Action = "Close"
)

func ParseAction(str string) (Action, error) {
	switch Action(str) {
	case ActionStartReview, ActionApprove, ActionReject, ActionSchedule,
		ActionBeginImplementation, ActionMarkComplete, ActionMarkFailed, ActionClose:
		return Action(str), nil
	}
	return "", fmt.Errorf("%w: unknown action %q", ErrInvalidTransition, str)
}

var (
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrMissingPrecondition = errors.New("missing precondition")
)

// emergencyAuditTag marks audit entries written through the override path.
const emergencyAuditTag = "[EMERGENCY]"

var transitions = map[models.ChangeStatus]map[Action]models.ChangeStatus{
	models.ChangeStatusSubmitted: {
		ActionStartReview: models.ChangeStatusInReview,
	},
	models.ChangeStatusInReview: {
		ActionApprove: models.ChangeStatusApproved,
		ActionReject:  models.ChangeStatusSubmitted,
	},
	models.ChangeStatusApproved: {
		ActionSchedule: models.ChangeStatusScheduled,
	},
	models.ChangeStatusScheduled: {
		ActionBeginImplementation: models.ChangeStatusImplementing,
	},
	models.ChangeStatusImplementing: {
		ActionMarkComplete: models.ChangeStatusCompleted,
		ActionMarkFailed:   models.ChangeStatusFailed,
	},
	models.ChangeStatusCompleted: {
		ActionClose: models.ChangeStatusClosed,
	},
	models.ChangeStatusFailed: {
		ActionClose: models.ChangeStatusClosed,
	},
}

// NextStatus resolves the destination of one action against the legality
// table. Emergency overrides are handled by planTransition, not here.
func NextStatus(current models.ChangeStatus, action Action) (models.ChangeStatus, error) {
	if next, ok := transitions[current][action]; ok {
		return next, nil
	}
	return "", fmt.Errorf("%w: %s from %s", ErrInvalidTransition, action, current)
}

// LegalActions lists the actions available from the change's current status,
// including the emergency fast path when it applies.
func LegalActions(change *models.ChangeRequest) []Action {
	var actions []Action
	for _, action := range []Action{
		ActionStartReview, ActionApprove, ActionReject, ActionSchedule,
		ActionBeginImplementation, ActionMarkComplete, ActionMarkFailed, ActionClose,
	} {
		if _, ok := transitions[change.Status][action]; ok {
			actions = append(actions, action)
			continue
		}
		if change.ChangeType == models.ChangeTypeEmergency &&
			!change.Status.IsTerminal() &&
			(action == ActionMarkComplete || action == ActionMarkFailed) {
			actions = append(actions, action)
		}
	}
	return actions
}

// TransitionInput carries the per-action payload.
type TransitionInput struct {
	Notes         string
	ScheduledDate *time.Time
	Residual      *models.ResidualRiskInput
	ActorId       int
	ActorName     string
}

// TransitionPlan is the validated outcome of one action: the destination
// status, the field mutations, and the audit note. Effects are applied by
// ApplyTransition.
type TransitionPlan struct {
	From       models.ChangeStatus
	To         models.ChangeStatus
	Updates    map[string]interface{}
	AuditNote  string
	Emergency  bool
	Residual   *models.ResidualRiskInput
	NotifyKind models.NotificationKind
}

// planTransition validates an action against the current snapshot and builds
// the mutation set. Pure: no database access, no clock beyond the supplied
// now.
func planTransition(change *models.ChangeRequest, action Action, input TransitionInput, now time.Time) (*TransitionPlan, error) {

	plan := &TransitionPlan{
		From:       change.Status,
		Updates:    map[string]interface{}{},
		AuditNote:  strings.TrimSpace(input.Notes),
		NotifyKind: models.NotificationKindStatusChanged,
	}

	next, err := NextStatus(change.Status, action)
	if err != nil {
		// Emergency changes may jump from any non-terminal status straight
		// to Completed or Failed, skipping every intermediate state and its
		// preconditions.
		if change.ChangeType == models.ChangeTypeEmergency &&
			!change.Status.IsTerminal() &&
			(action == ActionMarkComplete || action == ActionMarkFailed) {
			plan.Emergency = true
			if action == ActionMarkComplete {
				plan.To = models.ChangeStatusCompleted
			} else {
				plan.To = models.ChangeStatusFailed
			}
			plan.AuditNote = strings.TrimSpace(emergencyAuditTag + " " + plan.AuditNote)
			applyStatusFields(plan, change, action, input, now)
			return plan, nil
		}
		return nil, err
	}
	plan.To = next

	switch action {
	case ActionReject:
		if strings.TrimSpace(input.Notes) == "" {
			return nil, fmt.Errorf("%w: revision notes are required to reject", ErrMissingPrecondition)
		}
		plan.NotifyKind = models.NotificationKindChangeRejected
	case ActionSchedule:
		if input.ScheduledDate == nil && change.ScheduledDate == nil {
			return nil, fmt.Errorf("%w: confirmed schedule date is required", ErrMissingPrecondition)
		}
		plan.NotifyKind = models.NotificationKindChangeScheduled
	case ActionBeginImplementation:
		if strings.TrimSpace(change.ImplementationPlan) == "" {
			return nil, fmt.Errorf("%w: implementation plan is required", ErrMissingPrecondition)
		}
		if strings.TrimSpace(change.RollbackPlan) == "" {
			return nil, fmt.Errorf("%w: rollback plan is required", ErrMissingPrecondition)
		}
	case ActionMarkComplete:
		if input.Residual == nil ||
			input.Residual.Impact == 0 || input.Residual.Likelihood == 0 || input.Residual.Exposure == 0 {
			return nil, fmt.Errorf("%w: residual risk inputs are required to complete", ErrMissingPrecondition)
		}
	}

	applyStatusFields(plan, change, action, input, now)
	return plan, nil
}

func applyStatusFields(plan *TransitionPlan, change *models.ChangeRequest, action Action, input TransitionInput, now time.Time) {
	plan.Updates["status"] = plan.To

	switch action {
	case ActionReject:
		plan.Updates["revision"] = change.Revision + 1
		plan.Updates["revision_notes"] = strings.TrimSpace(input.Notes)
	case ActionSchedule:
		if input.ScheduledDate != nil {
			plan.Updates["scheduled_date"] = input.ScheduledDate.UTC()
		}
	case ActionMarkComplete:
		plan.Updates["implemented_at"] = now.UTC()
		plan.Updates["implementation_ok"] = true
		plan.Residual = input.Residual
	case ActionMarkFailed:
		plan.Updates["implemented_at"] = now.UTC()
		plan.Updates["implementation_ok"] = false
	case ActionClose:
		plan.Updates["closed_at"] = now.UTC()
	}
}
