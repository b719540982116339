package models

import (
	"log"

	"bitbucket.org/mmdatafocus/changes_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&ChangeRequest{}, &RelatedConfigItem{},
		&ApprovalHistoryEntry{},
		&RiskAssessment{},
		&NotificationRecord{},
		&Attachment{},
		&SyncRun{}, &SyncRunError{},
		&User{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
