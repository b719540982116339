package api

import (
	"fmt"
	"net/http"
	"time"

	"bitbucket.org/mmdatafocus/changes_backend/models"
	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

// ExportApprovalHistoryHandler streams the full transition audit trail as an
// xlsx workbook. Entries are scanned in batches so a long-lived install does
// not load the whole ledger into memory.
func ExportApprovalHistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		f := excelize.NewFile()
		sheet := "Sheet1"
		if _, err := f.NewSheet(sheet); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		f.SetCellValue(sheet, "A1", "ChangeRequestId")
		f.SetCellValue(sheet, "B1", "FromStatus")
		f.SetCellValue(sheet, "C1", "ToStatus")
		f.SetCellValue(sheet, "D1", "Actor")
		f.SetCellValue(sheet, "E1", "Note")
		f.SetCellValue(sheet, "F1", "CorrelationId")
		f.SetCellValue(sheet, "G1", "At")

		row := 2
		err := models.ScanApprovalHistory(c.Request.Context(), 500, func(entries []*models.ApprovalHistoryEntry) error {
			for _, e := range entries {
				f.SetCellValue(sheet, "A"+fmt.Sprint(row), e.ChangeRequestId)
				f.SetCellValue(sheet, "B"+fmt.Sprint(row), string(e.FromStatus))
				f.SetCellValue(sheet, "C"+fmt.Sprint(row), string(e.ToStatus))
				f.SetCellValue(sheet, "D"+fmt.Sprint(row), e.ActorName)
				f.SetCellValue(sheet, "E"+fmt.Sprint(row), e.Note)
				f.SetCellValue(sheet, "F"+fmt.Sprint(row), e.CorrelationId)
				f.SetCellValue(sheet, "G"+fmt.Sprint(row), e.CreatedAt.UTC().Format(time.RFC3339))
				row++
			}
			return nil
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", "attachment; filename=approval-history.xlsx")
		if err := f.Write(c.Writer); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to write file"})
		}
	}
}
