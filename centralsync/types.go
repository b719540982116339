package centralsync

import (
	"encoding/json"

	"bitbucket.org/mmdatafocus/changes_backend/models"
	"github.com/shopspring/decimal"
)

// remoteChange is one change-request record as the central system serves it.
// Status arrives uppercase; timestamps arrive as epoch millis or ISO-8601
// depending on the endpoint version.
type remoteChange struct {
	TicketId      string `json:"ticket_id"`
	Title         string `json:"title"`
	Rationale     string `json:"rationale"`
	AffectedAsset string `json:"affected_asset"`
	ChangeType    string `json:"change_type"`
	Status        string `json:"status"`
	Notes         string `json:"notes"`
	ProposedDate  string `json:"proposed_date"`
	ScheduledDate string `json:"scheduled_date"`
	UpdatedAt     string `json:"updated_at"`
}

type listResponse struct {
	Data       []json.RawMessage `json:"data"`
	Items      []json.RawMessage `json:"items"`
	NextCursor string            `json:"next_cursor"`
	HasMore    *bool             `json:"has_more"`
}

func (r listResponse) records() []json.RawMessage {
	if len(r.Data) > 0 {
		return r.Data
	}
	return r.Items
}

// pushEnvelope is the central system's uniform write response.
type pushEnvelope struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	UpdatedAt string `json:"updated_at"`
}

type InspectionPayload struct {
	Impact       int             `json:"impact"`
	Likelihood   int             `json:"likelihood"`
	Exposure     int             `json:"exposure"`
	CostEstimate decimal.Decimal `json:"cost_estimate"`
	TimeEstimate decimal.Decimal `json:"time_estimate"`
	AssessorName string          `json:"assessor_name"`
}

type SchedulePayload struct {
	ScheduledDate string `json:"scheduled_date"`
	TechnicianId  int    `json:"technician_id"`
}

type ImplementationResultPayload struct {
	Succeeded          bool   `json:"succeeded"`
	ResidualImpact     int    `json:"residual_impact"`
	ResidualLikelihood int    `json:"residual_likelihood"`
	ResidualExposure   int    `json:"residual_exposure"`
	Notes              string `json:"notes"`
}

type ExternalPushPayload struct {
	TicketId string `json:"ticket_id"`
	System   string `json:"system"`
	Summary  string `json:"summary"`
}

// PushRequest names one discrete remote write tied to a lifecycle
// transition. Exactly one payload field matching Kind must be set.
type PushRequest struct {
	Kind           models.PushActionKind
	ChangeId       int
	TicketId       string
	Inspection     *InspectionPayload
	Schedule       *SchedulePayload
	Implementation *ImplementationResultPayload
	External       *ExternalPushPayload
}

// PullStats summarizes one pull pass.
type PullStats struct {
	Applied      int
	SkippedStale int
	Errors       []PullError
}

type PullError struct {
	TicketId string
	Code     string
	Message  string
	Payload  []byte
}

type PubSubPushEnvelope struct {
	Message struct {
		Data []byte `json:"data"`
		ID   string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

type SyncPubSubPayload struct {
	RunId   uint   `json:"run_id"`
	Trigger string `json:"trigger"`
}

type SyncRunResponse struct {
	ID            uint    `json:"id"`
	Status        string  `json:"status"`
	StartedAt     *string `json:"startedAt"`
	FinishedAt    *string `json:"finishedAt"`
	DurationMs    int64   `json:"durationMs"`
	RecordsPulled int     `json:"recordsPulled"`
	RecordsPushed int     `json:"recordsPushed"`
	SkippedStale  int     `json:"skippedStale"`
	ErrorCount    int     `json:"errorCount"`
	TriggeredBy   string  `json:"triggeredBy"`
}

type SyncRunDetailResponse struct {
	SyncRunResponse
	Errors []SyncErrorResponse `json:"errors"`
}

type SyncErrorResponse struct {
	ID        uint   `json:"id"`
	TicketId  string `json:"ticketId"`
	ErrorCode string `json:"errorCode"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

type SyncHistoryResponse struct {
	Items []SyncRunResponse `json:"items"`
}
