package workflow

import (
	"context"
	"errors"

	"bitbucket.org/mmdatafocus/pos_backend/config"
	"bitbucket.org/mmdatafocus/pos_backend/models"
	"bitbucket.org/mmdatafocus/pos_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// StockDrift reports a product whose cached stock disagrees with the sum of
// its ledger movements. An empty result means the core consistency invariant
// holds for every product.
type StockDrift struct {
	ProductId   int             `json:"product_id"`
	Sku         string          `json:"sku"`
	CachedStock decimal.Decimal `json:"cached_stock"`
	LedgerStock decimal.Decimal `json:"ledger_stock"`
}

// CheckStockConsistency recomputes per-product stock from the movements
// ledger and compares it to the cached product.stock. Intended for an admin
// trigger or a nightly run.
func CheckStockConsistency(ctx context.Context) ([]StockDrift, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	logger := config.GetLogger()

	var products []models.Product
	if err := db.WithContext(ctx).Where("business_id = ?", businessId).Find(&products).Error; err != nil {
		return nil, err
	}

	drifts := make([]StockDrift, 0)
	for _, product := range products {
		ledgerStock, err := sumMovements(db.WithContext(ctx), businessId, product.ID)
		if err != nil {
			return nil, err
		}
		if !ledgerStock.Equal(product.Stock) {
			drifts = append(drifts, StockDrift{
				ProductId:   product.ID,
				Sku:         product.Sku,
				CachedStock: product.Stock,
				LedgerStock: ledgerStock,
			})
		}
	}

	if len(drifts) > 0 {
		logger.WithFields(logrus.Fields{
			"business_id": businessId,
			"drift_count": len(drifts),
		}).Warn("stock cache drift detected")
	}

	return drifts, nil
}

// RebuildStockCache rewrites each drifted product's cached stock from the
// ledger, the ledger being the source of truth. Serialized with the posting
// lock so a concurrent sale cannot interleave.
func RebuildStockCache(ctx context.Context) (int, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return 0, errors.New("business id is required")
	}

	db := config.GetDB()
	repaired := 0

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquireBusinessPostingLock(tx, businessId); err != nil {
			return err
		}
		defer ReleaseBusinessPostingLock(tx, businessId)

		var products []models.Product
		if err := tx.Where("business_id = ?", businessId).Find(&products).Error; err != nil {
			return err
		}
		for _, product := range products {
			ledgerStock, err := sumMovements(tx, businessId, product.ID)
			if err != nil {
				return err
			}
			if ledgerStock.Equal(product.Stock) {
				continue
			}
			err = tx.Model(&models.Product{}).
				Where("business_id = ? AND id = ?", businessId, product.ID).
				Update("stock", ledgerStock).Error
			if err != nil {
				return err
			}
			repaired++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return repaired, nil
}

func sumMovements(tx *gorm.DB, businessId string, productId int) (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	err := tx.Model(&models.StockMovement{}).
		Select("COALESCE(SUM(qty), 0) AS total").
		Where("business_id = ? AND product_id = ?", businessId, productId).
		Scan(&result).Error
	if err != nil {
		return decimal.Zero, err
	}
	return result.Total, nil
}
