package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"bitbucket.org/mmdatafocus/changes_backend/models"
	"bitbucket.org/mmdatafocus/changes_backend/utils"
	"github.com/gin-gonic/gin"
)

func CreateChangeRequestHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewChangeRequest
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		change, err := models.CreateChangeRequest(c.Request.Context(), &input)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, change)
	}
}

// GetChangeRequestHandler resolves either a local numeric id or a central
// ticket id like CHG-1024.
func GetChangeRequestHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var (
			change *models.ChangeRequest
			err    error
		)
		if id, convErr := strconv.Atoi(c.Param("id")); convErr == nil {
			change, err = models.GetChangeRequest(c.Request.Context(), id)
		} else {
			change, err = models.GetChangeRequestByTicket(c.Request.Context(), c.Param("id"))
		}
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, change)
	}
}

func ListChangeRequestsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var status *models.ChangeStatus
		if v := strings.TrimSpace(c.Query("status")); v != "" {
			parsed, err := models.ParseChangeStatus(v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			status = &parsed
		}

		var changeType *models.ChangeType
		if v := strings.TrimSpace(c.Query("type")); v != "" {
			parsed, err := models.ParseChangeType(v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			changeType = &parsed
		}

		var requesterId *int
		if v := strings.TrimSpace(c.Query("requester_id")); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid requester_id"})
				return
			}
			requesterId = &n
		}

		changes, err := models.ListChangeRequests(c.Request.Context(), status, changeType, requesterId)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": changes})
	}
}

func UpdateChangeRequestHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}

		var input models.NewChangeRequest
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		change, err := models.UpdateChangeRequestDetails(c.Request.Context(), id, &input)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, change)
	}
}

func AddRelatedConfigItemHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}

		if err := utils.ValidateResourceId[models.ChangeRequest](c.Request.Context(), id); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}

		var input models.NewRelatedConfigItem
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		item, err := models.CreateRelatedConfigItem(c.Request.Context(), id, &input)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, item)
	}
}

func ListRelatedConfigItemsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}

		items, err := models.GetRelatedConfigItems(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": items})
	}
}

func RemoveRelatedConfigItemHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		itemId, err := strconv.Atoi(c.Param("itemId"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}

		item, err := models.DeleteRelatedConfigItem(c.Request.Context(), itemId)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusOK, item)
	}
}

func ListApprovalHistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}

		entries, err := models.GetApprovalHistory(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": entries})
	}
}
