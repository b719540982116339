package models

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/changes_backend/config"
	"bitbucket.org/mmdatafocus/changes_backend/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ChangeRequest struct {
	ID                 int          `gorm:"primary_key" json:"id"`
	TicketId           string       `gorm:"size:40;uniqueIndex;not null" json:"ticket_id"`
	Title              string       `gorm:"size:255;not null" json:"title" binding:"required"`
	Rationale          string       `gorm:"type:text" json:"rationale"`
	Purpose            string       `gorm:"type:text" json:"purpose"`
	ImplementationPlan string       `gorm:"type:text" json:"implementation_plan"`
	RollbackPlan       string       `gorm:"type:text" json:"rollback_plan"`
	AffectedAsset      string       `gorm:"size:255" json:"affected_asset"`
	ChangeType         ChangeType   `gorm:"size:20;not null" json:"change_type" binding:"required"`
	Status             ChangeStatus `gorm:"size:20;not null;index" json:"status"`
	RequesterId        int          `gorm:"index;not null" json:"requester_id"`
	RequesterName      string       `gorm:"size:100" json:"requester_name"`
	TechnicianId       int          `gorm:"index" json:"technician_id"`
	Revision           int          `gorm:"not null;default:0" json:"revision"`
	RevisionNotes      string       `gorm:"type:text" json:"revision_notes"`
	ProposedDate       *time.Time   `json:"proposed_date"`
	ScheduledDate      *time.Time   `json:"scheduled_date"`
	ImplementedAt      *time.Time   `json:"implemented_at"`
	ClosedAt           *time.Time   `json:"closed_at"`
	ImplementationOk   *bool        `json:"implementation_ok"`
	Notes              string       `gorm:"type:text" json:"notes"`
	// RemoteUpdatedAt is the central system's last-modified stamp for this
	// record. Pulls only overwrite when the incoming stamp is newer.
	RemoteUpdatedAt *time.Time `gorm:"index" json:"remote_updated_at"`

	RelatedConfigItems []RelatedConfigItem `gorm:"foreignKey:ChangeRequestId" json:"related_config_items"`
	RiskAssessment     *RiskAssessment     `gorm:"foreignKey:ChangeRequestId" json:"risk_assessment"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewChangeRequest struct {
	Title              string                 `json:"title" binding:"required"`
	Rationale          string                 `json:"rationale"`
	Purpose            string                 `json:"purpose"`
	ImplementationPlan string                 `json:"implementation_plan"`
	RollbackPlan       string                 `json:"rollback_plan"`
	AffectedAsset      string                 `json:"affected_asset"`
	ChangeType         ChangeType             `json:"change_type" binding:"required"`
	TechnicianId       int                    `json:"technician_id"`
	ProposedDate       *time.Time             `json:"proposed_date"`
	Notes              string                 `json:"notes"`
	ConfigItems        []NewRelatedConfigItem `json:"config_items"`
}

func (cr ChangeRequest) GetId() int {
	return cr.ID
}

func (cr ChangeRequest) RemoveInstanceRedis() error {
	return utils.RemoveRedisItem[ChangeRequest](cr.ID)
}

// newTicketId produces a locally unique ticket reference. The central system
// keeps its own numbering; locally created changes carry a CHG- prefix until
// pushed.
func newTicketId() string {
	return "CHG-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString()[:13], "-", ""))
}

func CreateChangeRequest(ctx context.Context, input *NewChangeRequest) (*ChangeRequest, error) {

	db := config.GetDB()

	if _, err := ParseChangeType(string(input.ChangeType)); err != nil {
		return nil, err
	}

	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId == 0 {
		return nil, errors.New("user id is required")
	}
	userName, _ := utils.GetUserNameFromContext(ctx)

	change := ChangeRequest{
		TicketId:           newTicketId(),
		Title:              html.EscapeString(strings.TrimSpace(input.Title)),
		Rationale:          input.Rationale,
		Purpose:            input.Purpose,
		ImplementationPlan: input.ImplementationPlan,
		RollbackPlan:       input.RollbackPlan,
		AffectedAsset:      input.AffectedAsset,
		ChangeType:         input.ChangeType,
		Status:             ChangeStatusSubmitted,
		RequesterId:        userId,
		RequesterName:      userName,
		TechnicianId:       input.TechnicianId,
		ProposedDate:       input.ProposedDate,
		Notes:              input.Notes,
	}
	for _, item := range input.ConfigItems {
		if _, err := ParseRelationKind(string(item.Relation)); err != nil {
			return nil, err
		}
		change.RelatedConfigItems = append(change.RelatedConfigItems, RelatedConfigItem{
			Name:     strings.TrimSpace(item.Name),
			CiType:   item.CiType,
			Relation: item.Relation,
		})
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&change).Error; err != nil {
			return err
		}
		entry := ApprovalHistoryEntry{
			ChangeRequestId: change.ID,
			FromStatus:      "",
			ToStatus:        ChangeStatusSubmitted,
			ActorId:         userId,
			ActorName:       userName,
			Note:            "Change request created",
			CorrelationId:   correlationIdFromContextOrNew(ctx),
		}
		return tx.Create(&entry).Error
	})
	if err != nil {
		return nil, err
	}
	return &change, nil
}

func GetChangeRequest(ctx context.Context, id int) (*ChangeRequest, error) {

	cached, _ := utils.RetrieveRedis[ChangeRequest](id)
	if cached != nil {
		return cached, nil
	}

	db := config.GetDB()
	var result ChangeRequest

	err := db.WithContext(ctx).
		Preload("RelatedConfigItems").
		Preload("RiskAssessment").
		First(&result, id).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}

	_ = utils.StoreRedis[ChangeRequest](&result, result.ID)
	return &result, nil
}

func GetChangeRequestByTicket(ctx context.Context, ticketId string) (*ChangeRequest, error) {

	db := config.GetDB()
	var result ChangeRequest

	err := db.WithContext(ctx).
		Preload("RelatedConfigItems").
		Preload("RiskAssessment").
		Where("ticket_id = ?", ticketId).
		Take(&result).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &result, nil
}

func ListChangeRequests(ctx context.Context, status *ChangeStatus, changeType *ChangeType, requesterId *int) ([]*ChangeRequest, error) {

	db := config.GetDB()
	var results []*ChangeRequest

	dbCtx := db.WithContext(ctx).Model(&ChangeRequest{})
	if status != nil && *status != "" {
		dbCtx = dbCtx.Where("status = ?", *status)
	}
	if changeType != nil && *changeType != "" {
		dbCtx = dbCtx.Where("change_type = ?", *changeType)
	}
	if requesterId != nil && *requesterId > 0 {
		dbCtx = dbCtx.Where("requester_id = ?", *requesterId)
	}

	err := dbCtx.Preload("RiskAssessment").Order("updated_at DESC").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// UpdateChangeRequestDetails edits the editable fields. Status moves only
// through the workflow package.
func UpdateChangeRequestDetails(ctx context.Context, id int, input *NewChangeRequest) (*ChangeRequest, error) {

	db := config.GetDB()

	existing, err := GetChangeRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.Status.IsTerminal() {
		return nil, errors.New("closed change request cannot be edited")
	}

	updates := map[string]interface{}{
		"title":               html.EscapeString(strings.TrimSpace(input.Title)),
		"rationale":           input.Rationale,
		"purpose":             input.Purpose,
		"implementation_plan": input.ImplementationPlan,
		"rollback_plan":       input.RollbackPlan,
		"affected_asset":      input.AffectedAsset,
		"technician_id":       input.TechnicianId,
		"proposed_date":       input.ProposedDate,
		"notes":               input.Notes,
	}
	if err := db.WithContext(ctx).Model(&ChangeRequest{}).Where("id = ?", id).
		Updates(updates).Error; err != nil {
		return nil, err
	}

	_ = existing.RemoveInstanceRedis()
	return GetChangeRequest(ctx, id)
}

// RemoteChangeSnapshot is a pulled record after field normalization.
type RemoteChangeSnapshot struct {
	TicketId      string
	Title         string
	Rationale     string
	AffectedAsset string
	ChangeType    string
	Status        string
	Notes         string
	ProposedDate  string
	ScheduledDate string
	UpdatedAt     string
}

// UpsertChangeRequestFromRemote applies a pulled record with last-writer-wins
// on the remote timestamp. Returns false when the local copy is same-or-newer
// and the record was skipped.
func UpsertChangeRequestFromRemote(ctx context.Context, db *gorm.DB, snapshot RemoteChangeSnapshot) (bool, error) {

	ticketId := strings.TrimSpace(snapshot.TicketId)
	if ticketId == "" {
		return false, errors.New("ticket id missing")
	}

	remoteStamp, err := NormalizeTimestamp(snapshot.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("ticket %s: %w", ticketId, err)
	}

	var existing ChangeRequest
	err = db.WithContext(ctx).Where("ticket_id = ?", ticketId).Take(&existing).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}
	found := err == nil

	if found {
		if existing.RemoteUpdatedAt != nil && !remoteStamp.After(*existing.RemoteUpdatedAt) {
			return false, nil
		}
		// A local write newer than the pulled record wins; the next push
		// carries it to the central system instead.
		if existing.UpdatedAt.After(remoteStamp) {
			return false, nil
		}
	}

	status := ChangeStatusFromRemote(snapshot.Status)
	title := strings.TrimSpace(snapshot.Title)
	if title == "" {
		title = "Change " + ticketId
	}

	var proposedDate, scheduledDate *time.Time
	if t, err := NormalizeTimestamp(snapshot.ProposedDate); err == nil {
		proposedDate = &t
	}
	if t, err := NormalizeTimestamp(snapshot.ScheduledDate); err == nil {
		scheduledDate = &t
	}

	if !found {
		changeType := ChangeType(strings.TrimSpace(snapshot.ChangeType))
		if _, err := ParseChangeType(string(changeType)); err != nil {
			changeType = ChangeTypeStandard
		}
		change := ChangeRequest{
			TicketId:        ticketId,
			Title:           title,
			Rationale:       snapshot.Rationale,
			AffectedAsset:   snapshot.AffectedAsset,
			ChangeType:      changeType,
			Status:          status,
			Notes:           snapshot.Notes,
			ProposedDate:    proposedDate,
			ScheduledDate:   scheduledDate,
			RemoteUpdatedAt: &remoteStamp,
		}
		if err := db.WithContext(ctx).Create(&change).Error; err != nil {
			return false, err
		}
		return true, nil
	}

	updates := map[string]interface{}{
		"title":             title,
		"rationale":         snapshot.Rationale,
		"affected_asset":    snapshot.AffectedAsset,
		"status":            status,
		"notes":             snapshot.Notes,
		"proposed_date":     proposedDate,
		"scheduled_date":    scheduledDate,
		"remote_updated_at": remoteStamp,
	}
	if err := db.WithContext(ctx).Model(&ChangeRequest{}).
		Where("id = ?", existing.ID).
		Updates(updates).Error; err != nil {
		return false, err
	}

	_ = existing.RemoveInstanceRedis()
	return true, nil
}

// MarkChangeRequestPushed stamps the remote timestamp after a successful push
// so the next pull does not bounce the record back.
func MarkChangeRequestPushed(ctx context.Context, db *gorm.DB, id int, remoteStamp time.Time) error {
	if err := db.WithContext(ctx).Model(&ChangeRequest{}).
		Where("id = ?", id).
		Update("remote_updated_at", remoteStamp.UTC()).Error; err != nil {
		return err
	}
	return utils.RemoveRedisItem[ChangeRequest](id)
}
