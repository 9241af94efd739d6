package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/pos_backend/config"
	"bitbucket.org/mmdatafocus/pos_backend/models"
	"bitbucket.org/mmdatafocus/pos_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ReceivedLine struct {
	PurchaseItemId int             `json:"purchase_item_id" binding:"required"`
	ReceivedQty    decimal.Decimal `json:"received_qty"`
}

type GoodsReceiptInput struct {
	PurchaseOrderId int            `json:"purchase_order_id" binding:"required"`
	Lines           []ReceivedLine `json:"lines" binding:"required,dive"`
	ReceivedDate    time.Time      `json:"received_date"`
}

// ReceiveGoods records a (possibly partial) goods receipt against a purchase
// order: each line's quantity is clamped to what is still outstanding, stock
// moves in through the ledger, cumulative received quantities are bumped and
// the order status is recomputed. The order is re-read under a row lock
// inside the transaction, so clamping always sees the latest received
// quantities. One transaction covers all of it.
func ReceiveGoods(ctx context.Context, input *GoodsReceiptInput) (*models.PurchaseOrder, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	// A repeated purchase item id would clamp twice against the same
	// outstanding quantity. Reject the document instead of guessing.
	seen := make(map[int]bool, len(input.Lines))
	for _, line := range input.Lines {
		if seen[line.PurchaseItemId] {
			return nil, fmt.Errorf("duplicate purchase item %d in receipt lines", line.PurchaseItemId)
		}
		seen[line.PurchaseItemId] = true
	}

	if release, err := utils.BusinessLock(ctx, businessId, "posting", "receiving.go", "ReceiveGoods"); err == nil {
		defer release()
	}

	db := config.GetDB()
	var updated *models.PurchaseOrder
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquireBusinessPostingLock(tx, businessId); err != nil {
			return err
		}
		defer ReleaseBusinessPostingLock(tx, businessId)

		order, err := models.GetPurchaseOrderForUpdate(tx, businessId, input.PurchaseOrderId)
		if err != nil {
			return err
		}
		switch order.CurrentStatus {
		case models.PurchaseOrderStatusCompleted:
			return fmt.Errorf("purchase order %s is already fully received", order.OrderNumber)
		case models.PurchaseOrderStatusCancelled:
			return fmt.Errorf("purchase order %s is cancelled", order.OrderNumber)
		}

		detailsById := make(map[int]*models.PurchaseOrderDetail, len(order.Details))
		for i := range order.Details {
			detailsById[order.Details[i].ID] = &order.Details[i]
		}

		// Clamp every line to [0, ordered - already received] against the
		// locked rows before anything touches the ledger.
		var totalQty decimal.Decimal
		for _, line := range input.Lines {
			detail, found := detailsById[line.PurchaseItemId]
			if !found {
				return fmt.Errorf("purchase item %d does not belong to order %s", line.PurchaseItemId, order.OrderNumber)
			}
			remaining := detail.DetailQty.Sub(detail.ReceivedQty)
			qty := line.ReceivedQty
			if qty.IsNegative() {
				qty = decimal.Zero
			}
			if qty.GreaterThan(remaining) {
				qty = remaining
			}
			if qty.IsZero() {
				continue
			}

			_, err := models.ApplyStockMovement(tx, ctx, businessId, detail.ProductId,
				models.StockMovementKindPurchase, qty, models.ReferenceTypePurchase, order.ID)
			if err != nil {
				return err
			}
			err = tx.Model(&models.PurchaseOrderDetail{}).
				Where("id = ?", detail.ID).
				Update("received_qty", detail.ReceivedQty.Add(qty)).Error
			if err != nil {
				return err
			}
			totalQty = totalQty.Add(qty)
		}
		if totalQty.IsZero() {
			return utils.ErrorEmptyReceipt
		}

		updated, err = models.ChangePoCurrentStatus(tx, ctx, businessId, order.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}
