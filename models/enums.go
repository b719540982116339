package models

import (
	"errors"
	"strings"
)

type ChangeStatus string

const (
	ChangeStatusSubmitted    ChangeStatus = "Submitted"
	ChangeStatusInReview     ChangeStatus = "InReview"
	ChangeStatusApproved     ChangeStatus = "Approved"
	ChangeStatusScheduled    ChangeStatus = "Scheduled"
	ChangeStatusImplementing ChangeStatus = "Implementing"
	ChangeStatusCompleted    ChangeStatus = "Completed"
	ChangeStatusFailed       ChangeStatus = "Failed"
	ChangeStatusClosed       ChangeStatus = "Closed"
)

func (s ChangeStatus) IsTerminal() bool {
	return s == ChangeStatusClosed
}

// ParseChangeStatus validates a client-supplied status string.
func ParseChangeStatus(str string) (ChangeStatus, error) {
	switch ChangeStatus(str) {
	case ChangeStatusSubmitted, ChangeStatusInReview, ChangeStatusApproved,
		ChangeStatusScheduled, ChangeStatusImplementing, ChangeStatusCompleted,
		ChangeStatusFailed, ChangeStatusClosed:
		return ChangeStatus(str), nil
	}
	return "", errors.New("invalid change status")
}

var remoteStatusNames = map[string]ChangeStatus{
	"SUBMITTED":    ChangeStatusSubmitted,
	"IN_REVIEW":    ChangeStatusInReview,
	"INREVIEW":     ChangeStatusInReview,
	"APPROVED":     ChangeStatusApproved,
	"SCHEDULED":    ChangeStatusScheduled,
	"IMPLEMENTING": ChangeStatusImplementing,
	"IN_PROGRESS":  ChangeStatusImplementing,
	"COMPLETED":    ChangeStatusCompleted,
	"FAILED":       ChangeStatusFailed,
	"CLOSED":       ChangeStatusClosed,
}

// ChangeStatusFromRemote maps the central system's status names onto ours.
// Unknown values pass through unchanged so a newer server does not break
// older clients.
func ChangeStatusFromRemote(remote string) ChangeStatus {
	if mapped, ok := remoteStatusNames[strings.ToUpper(strings.TrimSpace(remote))]; ok {
		return mapped
	}
	return ChangeStatus(strings.TrimSpace(remote))
}

type ChangeType string

const (
	ChangeTypeStandard  ChangeType = "Standard"
	ChangeTypeMinor     ChangeType = "Minor"
	ChangeTypeMajor     ChangeType = "Major"
	ChangeTypeEmergency ChangeType = "Emergency"
)

func ParseChangeType(str string) (ChangeType, error) {
	switch ChangeType(str) {
	case ChangeTypeStandard, ChangeTypeMinor, ChangeTypeMajor, ChangeTypeEmergency:
		return ChangeType(str), nil
	}
	return "", errors.New("invalid change type")
}

type RelationKind string

const (
	RelationKindDependsOn   RelationKind = "DependsOn"
	RelationKindInstalledOn RelationKind = "InstalledOn"
	RelationKindConnectedTo RelationKind = "ConnectedTo"
	RelationKindRunsOn      RelationKind = "RunsOn"
)

func ParseRelationKind(str string) (RelationKind, error) {
	switch RelationKind(str) {
	case RelationKindDependsOn, RelationKindInstalledOn, RelationKindConnectedTo, RelationKindRunsOn:
		return RelationKind(str), nil
	}
	return "", errors.New("invalid relation kind")
}

type UserRole string

const (
	UserRoleRequester  UserRole = "Requester"
	UserRoleReviewer   UserRole = "Reviewer"
	UserRoleTechnician UserRole = "Technician"
	UserRoleAdmin      UserRole = "Admin"
)

type NotificationKind string

const (
	NotificationKindStatusChanged   NotificationKind = "StatusChanged"
	NotificationKindApprovalNeeded  NotificationKind = "ApprovalNeeded"
	NotificationKindChangeRejected  NotificationKind = "ChangeRejected"
	NotificationKindChangeScheduled NotificationKind = "ChangeScheduled"
	NotificationKindSyncFailed      NotificationKind = "SyncFailed"
)

type SyncRunStatus string

const (
	SyncRunStatusQueued  SyncRunStatus = "Queued"
	SyncRunStatusRunning SyncRunStatus = "Running"
	SyncRunStatusSuccess SyncRunStatus = "Success"
	SyncRunStatusPartial SyncRunStatus = "Partial"
	SyncRunStatusFailed  SyncRunStatus = "Failed"
)

// PushActionKind names the discrete remote writes the central system accepts.
type PushActionKind string

const (
	PushActionInspect              PushActionKind = "Inspect"
	PushActionSchedule             PushActionKind = "Schedule"
	PushActionImplementationResult PushActionKind = "ImplementationResult"
	PushActionPushExternal         PushActionKind = "PushExternal"
)
