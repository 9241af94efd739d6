package workflow

import (
	"context"
	"errors"
	"fmt"

	"bitbucket.org/mmdatafocus/pos_backend/config"
	"bitbucket.org/mmdatafocus/pos_backend/models"
	"bitbucket.org/mmdatafocus/pos_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ReturnLine struct {
	BillItemId int             `json:"bill_item_id" binding:"required"`
	ReturnQty  decimal.Decimal `json:"return_qty"`
}

type ReturnInput struct {
	OriginalBillNumber string              `json:"original_bill_number" binding:"required"`
	ReturnBillNumber   string              `json:"return_bill_number" binding:"required"`
	Lines              []ReturnLine        `json:"lines" binding:"required,dive"`
	RefundMethod       models.RefundMethod `json:"refund_method" binding:"required"`
	Notes              string              `json:"notes"`
}

// ProcessReturn reverses part or all of a committed sale. The original bill
// is never edited: the return is a new bill with negative quantities and a
// negative total referencing the original. Stock comes back through the
// ledger; credit refunds pay down the customer's balance. Refunds are valued
// at the original discounted unit price (BillItem.Subtotal / Qty), not list
// price; returning a line in full refunds its subtotal exactly. The original
// bill is read under a row lock inside the transaction, so clamping never
// works off a stale snapshot.
func ProcessReturn(ctx context.Context, input *ReturnInput) (*models.Bill, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	// A repeated bill item id would clamp twice against the same sold
	// quantity. Reject the document instead of guessing.
	seen := make(map[int]bool, len(input.Lines))
	for _, line := range input.Lines {
		if seen[line.BillItemId] {
			return nil, fmt.Errorf("duplicate bill item %d in return lines", line.BillItemId)
		}
		seen[line.BillItemId] = true
	}

	if release, err := utils.BusinessLock(ctx, businessId, "posting", "returns.go", "ProcessReturn"); err == nil {
		defer release()
	}

	db := config.GetDB()
	var returnBill models.Bill
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquireBusinessPostingLock(tx, businessId); err != nil {
			return err
		}
		defer ReleaseBusinessPostingLock(tx, businessId)

		original, err := models.GetBillForUpdateByNumber(tx, businessId, input.OriginalBillNumber)
		if err != nil {
			return err
		}
		if original.CurrentStatus == models.BillStatusHeld {
			return errors.New("held bills cannot be returned")
		}
		if !original.Total.IsPositive() {
			return errors.New("cannot return a return bill")
		}
		if input.RefundMethod == models.RefundMethodCredit && original.CustomerId <= 0 {
			return utils.ErrorNoCreditAccount
		}

		itemsById := make(map[int]*models.BillItem, len(original.Items))
		for i := range original.Items {
			itemsById[original.Items[i].ID] = &original.Items[i]
		}

		type refundLine struct {
			item   *models.BillItem
			qty    decimal.Decimal
			amount decimal.Decimal
		}
		lines := make([]refundLine, 0, len(input.Lines))
		var refundAmount decimal.Decimal
		for _, line := range input.Lines {
			item, found := itemsById[line.BillItemId]
			if !found {
				return fmt.Errorf("bill item %d does not belong to bill %s", line.BillItemId, original.BillNumber)
			}
			qty := line.ReturnQty
			if qty.IsNegative() {
				qty = decimal.Zero
			}
			if qty.GreaterThan(item.Qty) {
				qty = item.Qty
			}
			if qty.IsZero() {
				continue
			}
			// Refund at the price actually paid per unit, discounts
			// included. A full-line return refunds the line subtotal
			// exactly so rounding never strands a fraction.
			var amount decimal.Decimal
			if qty.Equal(item.Qty) {
				amount = item.Subtotal
			} else {
				amount = item.Subtotal.DivRound(item.Qty, 4).Mul(qty)
			}
			lines = append(lines, refundLine{item: item, qty: qty, amount: amount})
			refundAmount = refundAmount.Add(amount)
		}
		if refundAmount.IsZero() {
			return utils.ErrorEmptyReturn
		}

		items := make([]models.BillItem, 0, len(lines))
		for _, line := range lines {
			items = append(items, models.BillItem{
				ProductId:   line.item.ProductId,
				ProductName: line.item.ProductName,
				Qty:         line.qty.Neg(),
				UnitPrice:   line.item.Subtotal.DivRound(line.item.Qty, 4),
				Discount:    decimal.Zero,
				Subtotal:    line.amount.Neg(),
			})
		}

		paymentMethod := models.PaymentMethodCash
		paidAmount := refundAmount.Neg()
		creditAmount := decimal.Zero
		if input.RefundMethod == models.RefundMethodCredit {
			paymentMethod = models.PaymentMethodCredit
			paidAmount = decimal.Zero
			creditAmount = refundAmount.Neg()
		}

		returnBill = models.Bill{
			BusinessId:      businessId,
			BillNumber:      input.ReturnBillNumber,
			CustomerId:      original.CustomerId,
			Subtotal:        refundAmount.Neg(),
			Total:           refundAmount.Neg(),
			PaymentMethod:   paymentMethod,
			PaidAmount:      paidAmount,
			CreditAmount:    creditAmount,
			CurrentStatus:   models.BillStatusCompleted,
			ReferenceBillId: original.ID,
			Notes:           input.Notes,
			Items:           items,
		}
		if err := tx.Create(&returnBill).Error; err != nil {
			if utils.IsDuplicateKeyErr(err) {
				return utils.ErrorDuplicateReference
			}
			return err
		}

		for _, line := range lines {
			_, err := models.ApplyStockMovement(tx, ctx, businessId, line.item.ProductId,
				models.StockMovementKindReturnIn, line.qty, models.ReferenceTypeReturn, returnBill.ID)
			if err != nil {
				return err
			}
		}

		if input.RefundMethod == models.RefundMethodCredit {
			_, err := models.ApplyCreditEntry(tx, ctx, businessId, original.CustomerId,
				models.CreditEntryKindPayment, refundAmount, models.ReferenceTypeReturn, returnBill.ID)
			if err != nil {
				return err
			}
		}

		// The original keeps its amounts untouched; only its lifecycle flag
		// moves to Refunded.
		return tx.Model(&models.Bill{}).
			Where("business_id = ? AND id = ?", businessId, original.ID).
			Update("current_status", models.BillStatusRefunded).Error
	})
	if err != nil {
		return nil, err
	}

	return &returnBill, nil
}
