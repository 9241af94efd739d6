package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/pos_backend/config"
	"bitbucket.org/mmdatafocus/pos_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PurchaseOrder struct {
	ID                   int                   `gorm:"primary_key" json:"id"`
	BusinessId           string                `gorm:"size:64;index:uniq_po_number,unique;not null" json:"business_id"`
	OrderNumber          string                `gorm:"size:100;index:uniq_po_number,unique;not null" json:"order_number" binding:"required"`
	SupplierId           int                   `gorm:"index;not null" json:"supplier_id" binding:"required"`
	OrderDate            time.Time             `gorm:"not null" json:"order_date"`
	ExpectedDeliveryDate *time.Time            `gorm:"default:null" json:"expected_delivery_date"`
	TotalAmount          decimal.Decimal       `gorm:"type:decimal(20,4);default:0" json:"total_amount"`
	CurrentStatus        PurchaseOrderStatus   `gorm:"type:enum('Pending','Received','Completed','Cancelled');default:Pending" json:"current_status"`
	Notes                string                `gorm:"type:text;default:null" json:"notes"`
	Details              []PurchaseOrderDetail `gorm:"foreignkey:PurchaseOrderId" json:"details"`
	CreatedAt            time.Time             `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time             `gorm:"autoUpdateTime" json:"updated_at"`
}

// PurchaseOrderDetail tracks cumulative receipt: 0 <= received_qty <=
// detail_qty, bumped across possibly many goods receipts.
type PurchaseOrderDetail struct {
	ID              int             `gorm:"primary_key" json:"id"`
	PurchaseOrderId int             `gorm:"index;not null" json:"purchase_order_id"`
	ProductId       int             `gorm:"index;not null" json:"product_id"`
	DetailQty       decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"detail_qty"`
	CostPrice       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"cost_price"`
	ReceivedQty     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"received_qty"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewPurchaseOrderDetail struct {
	ProductId int             `json:"product_id" binding:"required"`
	Qty       decimal.Decimal `json:"qty" binding:"required"`
	CostPrice decimal.Decimal `json:"cost_price"`
}

type NewPurchaseOrder struct {
	OrderNumber          string                   `json:"order_number" binding:"required"`
	SupplierId           int                      `json:"supplier_id" binding:"required"`
	OrderDate            time.Time                `json:"order_date" binding:"required"`
	ExpectedDeliveryDate *time.Time               `json:"expected_delivery_date"`
	Notes                string                   `json:"notes"`
	Details              []NewPurchaseOrderDetail `json:"details" binding:"required,dive"`
}

func (input NewPurchaseOrder) validate(ctx context.Context, businessId string, _ int) error {
	if err := utils.ValidateResourceId[Supplier](ctx, businessId, input.SupplierId); err != nil {
		return errors.New("supplier not found")
	}
	if len(input.Details) == 0 {
		return errors.New("purchase order has no lines")
	}
	for i, detail := range input.Details {
		if !detail.Qty.IsPositive() {
			return fmt.Errorf("line %d: qty must be positive", i)
		}
		if detail.CostPrice.IsNegative() {
			return fmt.Errorf("line %d: cost price cannot be negative", i)
		}
		if err := utils.ValidateResourceId[Product](ctx, businessId, detail.ProductId); err != nil {
			return fmt.Errorf("line %d: product %d not found", i, detail.ProductId)
		}
	}
	return nil
}

func CreatePurchaseOrder(ctx context.Context, input *NewPurchaseOrder) (*PurchaseOrder, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	var details []PurchaseOrderDetail
	var totalAmount decimal.Decimal
	for _, line := range input.Details {
		details = append(details, PurchaseOrderDetail{
			ProductId: line.ProductId,
			DetailQty: line.Qty,
			CostPrice: line.CostPrice,
		})
		totalAmount = totalAmount.Add(line.Qty.Mul(line.CostPrice))
	}

	order := PurchaseOrder{
		BusinessId:           businessId,
		OrderNumber:          input.OrderNumber,
		SupplierId:           input.SupplierId,
		OrderDate:            input.OrderDate,
		ExpectedDeliveryDate: input.ExpectedDeliveryDate,
		TotalAmount:          totalAmount,
		CurrentStatus:        PurchaseOrderStatusPending,
		Notes:                input.Notes,
		Details:              details,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&order).Error; err != nil {
		if utils.IsDuplicateKeyErr(err) {
			return nil, utils.ErrorDuplicateReference
		}
		return nil, err
	}

	return &order, nil
}

func GetPurchaseOrder(ctx context.Context, id int) (*PurchaseOrder, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	return utils.FetchModel[PurchaseOrder](ctx, businessId, id, "Details")
}

// GetPurchaseOrderForUpdate locks the order row for the caller's posting
// transaction and loads its details. Receipt clamping must read through
// this, never through a pre-transaction snapshot.
func GetPurchaseOrderForUpdate(tx *gorm.DB, businessId string, id int) (*PurchaseOrder, error) {
	var order PurchaseOrder
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("business_id = ?", businessId).
		First(&order, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	err = tx.Where("purchase_order_id = ?", order.ID).
		Order("id").
		Find(&order.Details).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func GetPurchaseOrders(ctx context.Context, status *PurchaseOrderStatus) ([]*PurchaseOrder, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Preload("Details").Where("business_id = ?", businessId)
	if status != nil {
		dbCtx = dbCtx.Where("current_status = ?", *status)
	}

	var orders []*PurchaseOrder
	err := dbCtx.Order("order_date DESC").Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// CancelPurchaseOrder cancels a pending order. Orders with any received
// goods cannot be cancelled (the transition table rejects it).
func CancelPurchaseOrder(ctx context.Context, id int) (*PurchaseOrder, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	order, err := utils.FetchModel[PurchaseOrder](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	if !order.CurrentStatus.CanTransitionTo(PurchaseOrderStatusCancelled) {
		return nil, fmt.Errorf("purchase order %s cannot move from %s to %s",
			order.OrderNumber, order.CurrentStatus, PurchaseOrderStatusCancelled)
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(order).
		Update("CurrentStatus", PurchaseOrderStatusCancelled).Error
	if err != nil {
		return nil, err
	}
	order.CurrentStatus = PurchaseOrderStatusCancelled

	return order, nil
}

// ChangePoCurrentStatus recomputes the order status from cumulative received
// quantities: Completed when every line is fully received, Received when
// anything has arrived, otherwise unchanged. Regressions are rejected by the
// transition table.
func ChangePoCurrentStatus(tx *gorm.DB, ctx context.Context, businessId string, poId int) (*PurchaseOrder, error) {

	var order PurchaseOrder
	err := tx.Preload("Details").
		Where("business_id = ? AND id = ?", businessId, poId).
		First(&order).Error
	if err != nil {
		return nil, errors.New("purchase order not found at ChangePoCurrentStatus")
	}

	allReceived := true
	anyReceived := false

	for _, detail := range order.Details {
		if detail.ReceivedQty.IsPositive() {
			anyReceived = true
		}
		if detail.ReceivedQty.LessThan(detail.DetailQty) {
			allReceived = false
		}
	}

	status := order.CurrentStatus
	if allReceived {
		status = PurchaseOrderStatusCompleted
	} else if anyReceived {
		status = PurchaseOrderStatusReceived
	}

	if status == order.CurrentStatus {
		return &order, nil
	}
	if !order.CurrentStatus.CanTransitionTo(status) {
		return nil, fmt.Errorf("purchase order %s cannot move from %s to %s",
			order.OrderNumber, order.CurrentStatus, status)
	}

	err = tx.Model(&order).Update("CurrentStatus", status).Error
	if err != nil {
		return nil, err
	}
	order.CurrentStatus = status

	return &order, nil
}
