package workflow

import (
	"fmt"

	"gorm.io/gorm"
)

func postingLockName(businessId string) string {
	return fmt.Sprintf("posting:%s", businessId)
}

// AcquireBusinessPostingLock takes a MySQL advisory lock so only one ledger
// posting runs at a time for a business, across all instances. GET_LOCK is
// scoped to the connection, so acquire and release must happen on the same
// transaction that does the posting.
func AcquireBusinessPostingLock(tx *gorm.DB, businessId string) error {
	var acquired int
	if err := tx.Raw("SELECT GET_LOCK(?, 30)", postingLockName(businessId)).Scan(&acquired).Error; err != nil {
		return err
	}
	if acquired != 1 {
		return fmt.Errorf("could not acquire posting lock for business_id=%s", businessId)
	}
	return nil
}

// ReleaseBusinessPostingLock is deferred inside the posting transaction; a
// failed release is harmless because the lock dies with the connection.
func ReleaseBusinessPostingLock(tx *gorm.DB, businessId string) {
	var released int
	_ = tx.Raw("SELECT RELEASE_LOCK(?)", postingLockName(businessId)).Scan(&released).Error
}
