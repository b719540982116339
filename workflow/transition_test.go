package workflow

import (
	"errors"
	"strings"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/changes_backend/models"
)

var allStatuses = []models.ChangeStatus{
	models.ChangeStatusSubmitted,
	models.ChangeStatusInReview,
	models.ChangeStatusApproved,
	models.ChangeStatusScheduled,
	models.ChangeStatusImplementing,
	models.ChangeStatusCompleted,
	models.ChangeStatusFailed,
	models.ChangeStatusClosed,
}

var allActions = []Action{
	ActionStartReview, ActionApprove, ActionReject, ActionSchedule,
	ActionBeginImplementation, ActionMarkComplete, ActionMarkFailed, ActionClose,
}

func TestNextStatus_FullTable(t *testing.T) {
	legal := map[models.ChangeStatus]map[Action]models.ChangeStatus{
		models.ChangeStatusSubmitted:    {ActionStartReview: models.ChangeStatusInReview},
		models.ChangeStatusInReview:     {ActionApprove: models.ChangeStatusApproved, ActionReject: models.ChangeStatusSubmitted},
		models.ChangeStatusApproved:     {ActionSchedule: models.ChangeStatusScheduled},
		models.ChangeStatusScheduled:    {ActionBeginImplementation: models.ChangeStatusImplementing},
		models.ChangeStatusImplementing: {ActionMarkComplete: models.ChangeStatusCompleted, ActionMarkFailed: models.ChangeStatusFailed},
		models.ChangeStatusCompleted:    {ActionClose: models.ChangeStatusClosed},
		models.ChangeStatusFailed:       {ActionClose: models.ChangeStatusClosed},
	}

	for _, from := range allStatuses {
		for _, action := range allActions {
			want, ok := legal[from][action]
			got, err := NextStatus(from, action)
			if ok {
				if err != nil {
					t.Errorf("%s + %s: unexpected error: %v", from, action, err)
				} else if got != want {
					t.Errorf("%s + %s: got %s, want %s", from, action, got, want)
				}
				continue
			}
			if !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("%s + %s: expected ErrInvalidTransition, got %v (status %q)", from, action, err, got)
			}
		}
	}
}

func TestPlanTransition_ApproveFromSubmitted(t *testing.T) {
	change := &models.ChangeRequest{Status: models.ChangeStatusSubmitted, ChangeType: models.ChangeTypeStandard}
	_, err := planTransition(change, ActionApprove, TransitionInput{}, time.Now())
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestPlanTransition_RejectRequiresNotes(t *testing.T) {
	change := &models.ChangeRequest{Status: models.ChangeStatusInReview, ChangeType: models.ChangeTypeStandard}
	_, err := planTransition(change, ActionReject, TransitionInput{}, time.Now())
	if !errors.Is(err, ErrMissingPrecondition) {
		t.Fatalf("expected ErrMissingPrecondition, got %v", err)
	}
}

func TestPlanTransition_RejectIncrementsRevision(t *testing.T) {
	change := &models.ChangeRequest{Status: models.ChangeStatusInReview, ChangeType: models.ChangeTypeStandard, Revision: 2}
	plan, err := planTransition(change, ActionReject, TransitionInput{Notes: "missing rollback detail"}, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.To != models.ChangeStatusSubmitted {
		t.Errorf("got destination %s, want Submitted", plan.To)
	}
	if got := plan.Updates["revision"]; got != 3 {
		t.Errorf("got revision %v, want 3", got)
	}
	if got := plan.Updates["revision_notes"]; got != "missing rollback detail" {
		t.Errorf("got revision_notes %v", got)
	}
	if plan.NotifyKind != models.NotificationKindChangeRejected {
		t.Errorf("got notify kind %s", plan.NotifyKind)
	}
}

func TestPlanTransition_ScheduleRequiresDate(t *testing.T) {
	change := &models.ChangeRequest{Status: models.ChangeStatusApproved, ChangeType: models.ChangeTypeStandard}
	_, err := planTransition(change, ActionSchedule, TransitionInput{}, time.Now())
	if !errors.Is(err, ErrMissingPrecondition) {
		t.Fatalf("expected ErrMissingPrecondition, got %v", err)
	}

	date := time.Date(2025, 3, 10, 2, 0, 0, 0, time.UTC)
	plan, err := planTransition(change, ActionSchedule, TransitionInput{ScheduledDate: &date}, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := plan.Updates["scheduled_date"]; got != date {
		t.Errorf("got scheduled_date %v, want %v", got, date)
	}
}

func TestPlanTransition_BeginImplementationRequiresPlans(t *testing.T) {
	change := &models.ChangeRequest{
		Status:     models.ChangeStatusScheduled,
		ChangeType: models.ChangeTypeStandard,
	}
	if _, err := planTransition(change, ActionBeginImplementation, TransitionInput{}, time.Now()); !errors.Is(err, ErrMissingPrecondition) {
		t.Fatalf("expected ErrMissingPrecondition without plans, got %v", err)
	}

	change.ImplementationPlan = "patch and restart"
	if _, err := planTransition(change, ActionBeginImplementation, TransitionInput{}, time.Now()); !errors.Is(err, ErrMissingPrecondition) {
		t.Fatalf("expected ErrMissingPrecondition without rollback plan, got %v", err)
	}

	change.RollbackPlan = "restore snapshot"
	plan, err := planTransition(change, ActionBeginImplementation, TransitionInput{}, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.To != models.ChangeStatusImplementing {
		t.Errorf("got destination %s, want Implementing", plan.To)
	}
}

func TestPlanTransition_CompleteRequiresResidual(t *testing.T) {
	change := &models.ChangeRequest{Status: models.ChangeStatusImplementing, ChangeType: models.ChangeTypeStandard}

	if _, err := planTransition(change, ActionMarkComplete, TransitionInput{}, time.Now()); !errors.Is(err, ErrMissingPrecondition) {
		t.Fatalf("expected ErrMissingPrecondition, got %v", err)
	}
	partial := &models.ResidualRiskInput{Impact: 2, Likelihood: 1}
	if _, err := planTransition(change, ActionMarkComplete, TransitionInput{Residual: partial}, time.Now()); !errors.Is(err, ErrMissingPrecondition) {
		t.Fatalf("expected ErrMissingPrecondition for partial residual, got %v", err)
	}

	full := &models.ResidualRiskInput{Impact: 2, Likelihood: 1, Exposure: 1}
	plan, err := planTransition(change, ActionMarkComplete, TransitionInput{Residual: full}, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.Residual != full {
		t.Error("residual input not carried into the plan")
	}
	if got := plan.Updates["implementation_ok"]; got != true {
		t.Errorf("got implementation_ok %v, want true", got)
	}
}

// A change pulled from the central system may reach Implementing with its
// inspection held remotely. Residual inputs are the only completion
// precondition; the missing local inspection must not block the plan.
func TestPlanTransition_CompleteWithoutLocalInspection(t *testing.T) {
	change := &models.ChangeRequest{
		Status:     models.ChangeStatusImplementing,
		ChangeType: models.ChangeTypeStandard,
		TicketId:   "CHG-77",
	}

	residual := &models.ResidualRiskInput{Impact: 1, Likelihood: 2, Exposure: 2}
	plan, err := planTransition(change, ActionMarkComplete, TransitionInput{Residual: residual}, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.To != models.ChangeStatusCompleted {
		t.Errorf("got destination %s, want %s", plan.To, models.ChangeStatusCompleted)
	}
	if plan.Residual != residual {
		t.Error("residual input not carried into the plan")
	}
}

func TestPlanTransition_EmergencyScheduledToCompleted(t *testing.T) {
	change := &models.ChangeRequest{Status: models.ChangeStatusScheduled, ChangeType: models.ChangeTypeEmergency}
	plan, err := planTransition(change, ActionMarkComplete, TransitionInput{Notes: "hotfix applied"}, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.To != models.ChangeStatusCompleted {
		t.Errorf("got destination %s, want Completed", plan.To)
	}
	if !plan.Emergency {
		t.Error("plan not flagged as emergency")
	}
	if !strings.HasPrefix(plan.AuditNote, emergencyAuditTag) {
		t.Errorf("audit note %q lacks the emergency tag", plan.AuditNote)
	}
}

func TestPlanTransition_EmergencyFromAnyNonTerminal(t *testing.T) {
	for _, from := range allStatuses {
		change := &models.ChangeRequest{Status: from, ChangeType: models.ChangeTypeEmergency}
		_, err := planTransition(change, ActionMarkFailed, TransitionInput{Notes: "abort"}, time.Now())
		if from.IsTerminal() {
			if !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("%s: expected ErrInvalidTransition from terminal status, got %v", from, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: unexpected error: %v", from, err)
		}
	}
}

func TestPlanTransition_EmergencyDoesNotUnlockOtherActions(t *testing.T) {
	change := &models.ChangeRequest{Status: models.ChangeStatusSubmitted, ChangeType: models.ChangeTypeEmergency}
	if _, err := planTransition(change, ActionApprove, TransitionInput{}, time.Now()); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestPlanTransition_CloseStampsClosedAt(t *testing.T) {
	now := time.Date(2025, 4, 1, 9, 30, 0, 0, time.UTC)
	for _, from := range []models.ChangeStatus{models.ChangeStatusCompleted, models.ChangeStatusFailed} {
		change := &models.ChangeRequest{Status: from, ChangeType: models.ChangeTypeStandard}
		plan, err := planTransition(change, ActionClose, TransitionInput{}, now)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", from, err)
		}
		if got := plan.Updates["closed_at"]; got != now {
			t.Errorf("%s: got closed_at %v, want %v", from, got, now)
		}
	}
}

// A normal chain from submission to closure replays as a legal path.
func TestPlanTransition_FullChainReplay(t *testing.T) {
	date := time.Date(2025, 5, 2, 1, 0, 0, 0, time.UTC)
	change := &models.ChangeRequest{
		Status:             models.ChangeStatusSubmitted,
		ChangeType:         models.ChangeTypeMajor,
		ImplementationPlan: "apply firmware update",
		RollbackPlan:       "reflash previous firmware",
	}
	steps := []struct {
		action Action
		input  TransitionInput
	}{
		{ActionStartReview, TransitionInput{}},
		{ActionApprove, TransitionInput{}},
		{ActionSchedule, TransitionInput{ScheduledDate: &date}},
		{ActionBeginImplementation, TransitionInput{}},
		{ActionMarkComplete, TransitionInput{Residual: &models.ResidualRiskInput{Impact: 1, Likelihood: 1, Exposure: 1}}},
		{ActionClose, TransitionInput{}},
	}

	var ledger []*models.ApprovalHistoryEntry
	for _, step := range steps {
		plan, err := planTransition(change, step.action, step.input, time.Now())
		if err != nil {
			t.Fatalf("%s from %s: %v", step.action, change.Status, err)
		}
		ledger = append(ledger, &models.ApprovalHistoryEntry{FromStatus: plan.From, ToStatus: plan.To})
		change.Status = plan.To
	}

	// every ledger edge must be legal per the table
	for _, entry := range ledger {
		if _, err := NextStatus(entry.FromStatus, actionFor(t, entry.FromStatus, entry.ToStatus)); err != nil {
			t.Errorf("ledger edge %s -> %s is not legal: %v", entry.FromStatus, entry.ToStatus, err)
		}
	}
	if got, ok := models.ReplayStatus(ledger); !ok || got != models.ChangeStatusClosed {
		t.Errorf("replayed status %q ok=%v, want Closed", got, ok)
	}
}

func actionFor(t *testing.T, from models.ChangeStatus, to models.ChangeStatus) Action {
	t.Helper()
	for _, action := range allActions {
		if next, err := NextStatus(from, action); err == nil && next == to {
			return action
		}
	}
	t.Fatalf("no action moves %s to %s", from, to)
	return ""
}
