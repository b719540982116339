package centralsync

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/changes_backend/models"
	"github.com/gin-gonic/gin"
)

// StatusHandler reports the sync switch and last successful pass.
func (c *Coordinator) StatusHandler() gin.HandlerFunc {
	return func(g *gin.Context) {
		g.JSON(http.StatusOK, gin.H{
			"enabled":       c.session.IsSyncEnabled(),
			"authenticated": c.session.IsAuthenticated(),
			"online":        c.connectivity.Available(),
			"lastSyncAt":    formatTime(c.session.LastSyncAt()),
		})
	}
}

// UpdateSettingsHandler flips the user-controlled sync switch. Turning it on
// re-arms the periodic pass; turning it off disarms it.
func (c *Coordinator) UpdateSettingsHandler() gin.HandlerFunc {
	return func(g *gin.Context) {
		var req struct {
			Enabled bool `json:"enabled"`
		}
		if err := g.ShouldBindJSON(&req); err != nil {
			g.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		c.session.SetSyncEnabled(req.Enabled)
		if req.Enabled {
			c.InitializeSync()
		} else {
			c.StopSync()
		}
		g.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// TriggerSyncHandler queues a manual sync run and hands it to Pub/Sub.
func (c *Coordinator) TriggerSyncHandler() gin.HandlerFunc {
	return func(g *gin.Context) {
		if !c.session.IsAuthenticated() {
			g.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		run, err := models.CreateSyncRun(g.Request.Context(), "manual")
		if err != nil {
			g.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		_ = PublishSyncRun(g.Request.Context(), run.ID, run.Trigger)

		g.JSON(http.StatusOK, gin.H{"id": run.ID})
	}
}

// SyncNowHandler runs one pull inline and reports the outcome. Unlike the
// queued trigger this surfaces auth failures to the caller. Offline the pull
// is not attempted at all.
func (c *Coordinator) SyncNowHandler() gin.HandlerFunc {
	return func(g *gin.Context) {
		if !c.connectivity.Available() {
			g.JSON(http.StatusOK, gin.H{"skipped": true, "reason": "offline"})
			return
		}

		stats, err := c.Pull(g.Request.Context())
		if err != nil {
			g.JSON(statusForSyncError(err), gin.H{"error": err.Error()})
			return
		}
		c.session.MarkSynced(time.Now().UTC())
		g.JSON(http.StatusOK, gin.H{
			"applied":      stats.Applied,
			"skippedStale": stats.SkippedStale,
			"errorCount":   len(stats.Errors),
		})
	}
}

func SyncHistoryHandler() gin.HandlerFunc {
	return func(g *gin.Context) {
		limit := 20
		if v := strings.TrimSpace(g.Query("limit")); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
				limit = n
			}
		}

		runs, err := models.ListSyncRuns(g.Request.Context(), limit)
		if err != nil {
			g.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		items := make([]SyncRunResponse, 0, len(runs))
		for _, run := range runs {
			items = append(items, mapRunToResponse(*run))
		}
		g.JSON(http.StatusOK, SyncHistoryResponse{Items: items})
	}
}

func SyncRunDetailHandler() gin.HandlerFunc {
	return func(g *gin.Context) {
		id, err := strconv.Atoi(g.Param("id"))
		if err != nil {
			g.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
			return
		}

		run, err := models.GetSyncRun(g.Request.Context(), uint(id))
		if err != nil {
			g.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}

		errs, err := models.ListSyncRunErrors(g.Request.Context(), run.ID)
		if err != nil {
			g.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		g.JSON(http.StatusOK, SyncRunDetailResponse{
			SyncRunResponse: mapRunToResponse(*run),
			Errors:          mapErrors(errs),
		})
	}
}

// RetrySyncRunHandler queues a fresh run referencing a finished one.
func RetrySyncRunHandler() gin.HandlerFunc {
	return func(g *gin.Context) {
		id, err := strconv.Atoi(g.Param("id"))
		if err != nil {
			g.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
			return
		}

		if _, err := models.GetSyncRun(g.Request.Context(), uint(id)); err != nil {
			g.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}

		run, err := models.CreateSyncRun(g.Request.Context(), "retry")
		if err != nil {
			g.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		_ = PublishSyncRun(g.Request.Context(), run.ID, run.Trigger)

		g.JSON(http.StatusOK, gin.H{"id": run.ID})
	}
}

func statusForSyncError(err error) int {
	switch {
	case errors.Is(err, ErrUnauthenticated), errors.Is(err, ErrSessionExpired):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNetwork):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrRemoteRejected):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func mapRunToResponse(run models.SyncRun) SyncRunResponse {
	return SyncRunResponse{
		ID:            run.ID,
		Status:        string(run.Status),
		StartedAt:     formatTime(run.StartedAt),
		FinishedAt:    formatTime(run.FinishedAt),
		DurationMs:    run.DurationMs,
		RecordsPulled: run.RecordsPulled,
		RecordsPushed: run.RecordsPushed,
		SkippedStale:  run.SkippedStale,
		ErrorCount:    run.ErrorCount,
		TriggeredBy:   run.Trigger,
	}
}

func mapErrors(errorsList []*models.SyncRunError) []SyncErrorResponse {
	out := make([]SyncErrorResponse, 0, len(errorsList))
	for _, errItem := range errorsList {
		out = append(out, SyncErrorResponse{
			ID:        errItem.ID,
			TicketId:  errItem.TicketId,
			ErrorCode: errItem.ErrorCode,
			Message:   errItem.Message,
			Retryable: errItem.Retryable,
		})
	}
	return out
}
