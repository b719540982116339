package workflow

import (
	"fmt"

	"gorm.io/gorm"
)

// AcquireChangeLock serializes transitions per change request across
// instances using MySQL advisory locks.
// NOTE: GET_LOCK is connection-scoped, so this must be called on the same
// *gorm.DB that will run the transition transaction.
func AcquireChangeLock(tx *gorm.DB, changeId int) error {
	lockName := fmt.Sprintf("change:%d", changeId)
	var ok int
	if err := tx.Raw("SELECT GET_LOCK(?, 30)", lockName).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("could not acquire transition lock for change_id=%d", changeId)
	}
	return nil
}

func ReleaseChangeLock(tx *gorm.DB, changeId int) {
	lockName := fmt.Sprintf("change:%d", changeId)
	var _ok int
	_ = tx.Raw("SELECT RELEASE_LOCK(?)", lockName).Scan(&_ok).Error
}
