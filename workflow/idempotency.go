package workflow

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/pos_backend/config"
	"bitbucket.org/mmdatafocus/pos_backend/models"
	"bitbucket.org/mmdatafocus/pos_backend/utils"
	"gorm.io/gorm"
)

var ErrIdempotencyInProgress = errors.New("idempotency in progress")

// BeginIdempotency inserts STARTED. If SUCCEEDED exists, returns (true, nil) meaning "skip safely".
func BeginIdempotency(tx *gorm.DB, businessId, handlerName, messageId string) (skip bool, err error) {
	key := models.IdempotencyKey{
		BusinessId:  businessId,
		HandlerName: handlerName,
		MessageId:   messageId,
		Status:      models.IdempotencyStatusStarted,
	}
	if err := tx.Create(&key).Error; err == nil {
		return false, nil
	} else if !utils.IsDuplicateKeyErr(err) {
		return false, err
	}

	var existing models.IdempotencyKey
	if err := tx.Where("business_id = ? AND handler_name = ? AND message_id = ?", businessId, handlerName, messageId).
		First(&existing).Error; err != nil {
		return false, err
	}

	switch existing.Status {
	case models.IdempotencyStatusSucceeded:
		return true, nil
	case models.IdempotencyStatusStarted:
		// Another request may be mid-flight; a stale row means the previous
		// attempt died before commit, so reuse it.
		if time.Since(existing.UpdatedAt) < 5*time.Minute {
			return false, ErrIdempotencyInProgress
		}
		return false, tx.Model(&models.IdempotencyKey{}).
			Where("id = ?", existing.ID).
			Updates(map[string]interface{}{"status": models.IdempotencyStatusStarted, "last_error": nil}).Error
	default:
		return false, tx.Model(&models.IdempotencyKey{}).
			Where("id = ?", existing.ID).
			Updates(map[string]interface{}{"status": models.IdempotencyStatusStarted, "last_error": nil}).Error
	}
}

func MarkIdempotencySucceeded(tx *gorm.DB, businessId, handlerName, messageId string) error {
	return tx.Model(&models.IdempotencyKey{}).
		Where("business_id = ? AND handler_name = ? AND message_id = ?", businessId, handlerName, messageId).
		Updates(map[string]interface{}{"status": models.IdempotencyStatusSucceeded, "last_error": nil}).Error
}

// MarkIdempotencyFailed records a FAILED marker outside the posting
// transaction. By the time it runs the STARTED row has rolled back with the
// failed transaction, so this upserts on a fresh connection rather than
// updating in place.
func MarkIdempotencyFailed(ctx context.Context, businessId, handlerName, messageId string, cause error) {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}

	db := config.GetDB().WithContext(ctx)
	key := models.IdempotencyKey{
		BusinessId:  businessId,
		HandlerName: handlerName,
		MessageId:   messageId,
		Status:      models.IdempotencyStatusFailed,
		LastError:   &msg,
	}
	err := db.Create(&key).Error
	if err != nil && utils.IsDuplicateKeyErr(err) {
		err = db.Model(&models.IdempotencyKey{}).
			Where("business_id = ? AND handler_name = ? AND message_id = ? AND status <> ?",
				businessId, handlerName, messageId, models.IdempotencyStatusSucceeded).
			Updates(map[string]interface{}{"status": models.IdempotencyStatusFailed, "last_error": &msg}).Error
	}
	if err != nil {
		logger := config.GetLogger()
		config.LogError(logger, "idempotency.go", "MarkIdempotencyFailed",
			"Could not record failed idempotency key", businessId, err)
	}
}
