package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"bitbucket.org/mmdatafocus/changes_backend/centralsync"
	"bitbucket.org/mmdatafocus/changes_backend/models"
	"bitbucket.org/mmdatafocus/changes_backend/utils"
	"github.com/gin-gonic/gin"
)

// PushHandlers exposes the discrete remote writes. Unlike the background
// pull, these surface every failure to the caller so the user knows the
// central system has not seen their work yet.
type PushHandlers struct {
	sync *centralsync.Coordinator
}

func NewPushHandlers(sync *centralsync.Coordinator) *PushHandlers {
	return &PushHandlers{sync: sync}
}

func (h *PushHandlers) loadChange(c *gin.Context) (*models.ChangeRequest, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return nil, false
	}
	change, err := models.GetChangeRequest(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return nil, false
	}
	return change, true
}

func (h *PushHandlers) SubmitInspectionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		change, ok := h.loadChange(c)
		if !ok {
			return
		}

		assessment, err := models.GetRiskAssessment(c.Request.Context(), change.ID)
		if err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": "change has no risk assessment"})
			return
		}

		req := centralsync.PushRequest{
			Kind:     models.PushActionInspect,
			ChangeId: change.ID,
			TicketId: change.TicketId,
			Inspection: &centralsync.InspectionPayload{
				Impact:       assessment.Impact,
				Likelihood:   assessment.Likelihood,
				Exposure:     assessment.Exposure,
				CostEstimate: assessment.EstimatedCost,
				TimeEstimate: assessment.EstimatedDowntimeMinutes,
				AssessorName: assessment.AssessorName,
			},
		}
		h.finish(c, h.sync.PushAction(c.Request.Context(), req))
	}
}

func (h *PushHandlers) SubmitScheduleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		change, ok := h.loadChange(c)
		if !ok {
			return
		}
		if change.ScheduledDate == nil {
			c.JSON(http.StatusConflict, gin.H{"error": "change has no confirmed schedule"})
			return
		}

		req := centralsync.PushRequest{
			Kind:     models.PushActionSchedule,
			ChangeId: change.ID,
			TicketId: change.TicketId,
			Schedule: &centralsync.SchedulePayload{
				ScheduledDate: change.ScheduledDate.UTC().Format(time.RFC3339),
				TechnicianId:  change.TechnicianId,
			},
		}
		h.finish(c, h.sync.PushAction(c.Request.Context(), req))
	}
}

func (h *PushHandlers) SubmitImplementationResultHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		change, ok := h.loadChange(c)
		if !ok {
			return
		}
		if change.ImplementationOk == nil {
			c.JSON(http.StatusConflict, gin.H{"error": "change has no implementation result"})
			return
		}

		payload := &centralsync.ImplementationResultPayload{
			Succeeded: utils.DereferencePtr(change.ImplementationOk),
			Notes:     change.Notes,
		}
		if assessment, err := models.GetRiskAssessment(c.Request.Context(), change.ID); err == nil {
			payload.ResidualImpact = assessment.ResidualImpact
			payload.ResidualLikelihood = assessment.ResidualLikelihood
			payload.ResidualExposure = assessment.ResidualExposure
		}

		req := centralsync.PushRequest{
			Kind:           models.PushActionImplementationResult,
			ChangeId:       change.ID,
			TicketId:       change.TicketId,
			Implementation: payload,
		}
		h.finish(c, h.sync.PushAction(c.Request.Context(), req))
	}
}

type externalPushRequest struct {
	System  string `json:"system" binding:"required"`
	Summary string `json:"summary"`
}

func (h *PushHandlers) PushToExternalSystemHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		change, ok := h.loadChange(c)
		if !ok {
			return
		}

		var body externalPushRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		summary := body.Summary
		if summary == "" {
			summary = change.Title
		}

		req := centralsync.PushRequest{
			Kind:     models.PushActionPushExternal,
			ChangeId: change.ID,
			TicketId: change.TicketId,
			External: &centralsync.ExternalPushPayload{
				TicketId: change.TicketId,
				System:   body.System,
				Summary:  summary,
			},
		}
		h.finish(c, h.sync.PushAction(c.Request.Context(), req))
	}
}

func (h *PushHandlers) finish(c *gin.Context, err error) {
	if err == nil {
		c.JSON(http.StatusOK, gin.H{"success": true})
		return
	}
	switch {
	case errors.Is(err, centralsync.ErrUnauthenticated), errors.Is(err, centralsync.ErrSessionExpired):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, centralsync.ErrNetwork):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, centralsync.ErrRemoteRejected):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
