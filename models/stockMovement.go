package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/pos_backend/config"
	"bitbucket.org/mmdatafocus/pos_backend/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// StockMovement is the append-only stock ledger. newStock of movement N
// equals previousStock + qty, and equals the product's cached stock at
// commit time.
type StockMovement struct {
	ID            string            `gorm:"size:36;primary_key" json:"id"` // uuid
	BusinessId    string            `gorm:"index:idx_stock_move_biz_product,priority:1;not null" json:"business_id"`
	ProductId     int               `gorm:"index:idx_stock_move_biz_product,priority:2;not null" json:"product_id"`
	Kind          StockMovementKind `gorm:"type:enum('Sale','Purchase','Adjustment','ReturnIn','ReturnOut');not null" json:"kind"`
	Qty           decimal.Decimal   `gorm:"type:decimal(20,4);not null" json:"qty"` // signed
	PreviousStock decimal.Decimal   `gorm:"type:decimal(20,4);not null" json:"previous_stock"`
	NewStock      decimal.Decimal   `gorm:"type:decimal(20,4);not null" json:"new_stock"`
	ReferenceType ReferenceType     `gorm:"size:20;not null" json:"reference_type"`
	ReferenceId   int               `gorm:"index;not null" json:"reference_id"`
	CorrelationId string            `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt     time.Time         `gorm:"autoCreateTime" json:"created_at"`
}

// ApplyStockMovement appends one movement and updates the product's cached
// stock as a single unit inside the caller's transaction. The product row is
// locked first, so concurrent sales of the last unit serialize here.
// Sale movements that would drive stock negative fail with
// InsufficientStockError and write nothing.
func ApplyStockMovement(tx *gorm.DB, ctx context.Context, businessId string, productId int,
	kind StockMovementKind, qty decimal.Decimal, refType ReferenceType, refId int) (*StockMovement, error) {

	if qty.IsZero() {
		return nil, errors.New("stock movement qty cannot be zero")
	}

	product, err := getProductForUpdate(tx, businessId, productId)
	if err != nil {
		return nil, err
	}

	previousStock := product.Stock
	newStock := previousStock.Add(qty)

	if kind == StockMovementKindSale && newStock.IsNegative() {
		return nil, &utils.InsufficientStockError{
			ProductId: productId,
			Requested: qty.Neg(),
			Available: previousStock,
		}
	}

	movement := StockMovement{
		ID:            uuid.NewString(),
		BusinessId:    businessId,
		ProductId:     productId,
		Kind:          kind,
		Qty:           qty,
		PreviousStock: previousStock,
		NewStock:      newStock,
		ReferenceType: refType,
		ReferenceId:   refId,
		CorrelationId: correlationIdFromContextOrNew(ctx),
	}
	if err := tx.Create(&movement).Error; err != nil {
		return nil, err
	}

	err = tx.Model(&Product{}).
		Where("business_id = ? AND id = ?", businessId, productId).
		Update("stock", newStock).Error
	if err != nil {
		return nil, err
	}

	return &movement, nil
}

// GetStockMovements returns the ledger for one product, oldest first.
func GetStockMovements(ctx context.Context, productId int) ([]*StockMovement, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	var movements []*StockMovement
	err := db.WithContext(ctx).
		Where("business_id = ? AND product_id = ?", businessId, productId).
		Order("created_at, id").
		Find(&movements).Error
	if err != nil {
		return nil, err
	}
	return movements, nil
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}
