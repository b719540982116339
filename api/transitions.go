package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"bitbucket.org/mmdatafocus/changes_backend/models"
	"bitbucket.org/mmdatafocus/changes_backend/workflow"
	"github.com/gin-gonic/gin"
)

type transitionRequest struct {
	Action        string                    `json:"action" binding:"required"`
	Notes         string                    `json:"notes"`
	ScheduledDate string                    `json:"scheduled_date"`
	Residual      *models.ResidualRiskInput `json:"residual"`
}

// TransitionHandler drives a change request through its lifecycle. The
// workflow layer owns legality; this handler only translates the request and
// the error.
func TransitionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}

		var req transitionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		action, err := workflow.ParseAction(req.Action)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		input := workflow.TransitionInput{
			Notes:    req.Notes,
			Residual: req.Residual,
		}
		if req.ScheduledDate != "" {
			date, err := models.NormalizeTimestamp(req.ScheduledDate)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid scheduled_date"})
				return
			}
			input.ScheduledDate = &date
		}

		change, err := workflow.ApplyTransition(c.Request.Context(), id, action, input)
		if err != nil {
			switch {
			case errors.Is(err, workflow.ErrInvalidTransition):
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			case errors.Is(err, workflow.ErrMissingPrecondition):
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			}
			return
		}

		if action == workflow.ActionStartReview {
			workflow.NotifyReviewers(c.Request.Context(), change)
		}

		c.JSON(http.StatusOK, change)
	}
}

// TransitionOptionsHandler lists the actions legal from the change's current
// status, so clients can render buttons without replicating the table.
func TransitionOptionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}

		change, err := models.GetChangeRequest(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":  change.Status,
			"actions": workflow.LegalActions(change),
			"asOf":    time.Now().UTC().Format(time.RFC3339),
		})
	}
}
