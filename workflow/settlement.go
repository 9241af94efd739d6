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

const settleHandlerName = "pos.settle"

// PaymentOutcome is the normalized result of validating a payment
// instruction against a bill total. CreditAmount is what will be charged to
// the customer's credit line (limit enforcement happens in the credit
// ledger, inside the settlement transaction).
type PaymentOutcome struct {
	Method       models.PaymentMethod
	PaidAmount   decimal.Decimal
	ChangeAmount decimal.Decimal
	CreditAmount decimal.Decimal
}

// ValidatePaymentInstruction is pure: it decides the payment outcome for a
// total without touching the database. Each method branch is checked
// exhaustively; malformed instructions never reach the ledger layer.
func ValidatePaymentInstruction(input *models.PosCheckoutInput, total decimal.Decimal) (*PaymentOutcome, error) {

	outcome := &PaymentOutcome{Method: input.PaymentMethod}

	switch input.PaymentMethod {
	case models.PaymentMethodCash, models.PaymentMethodCard:
		if input.PaidAmount.LessThan(total) {
			return nil, &utils.InsufficientPaymentError{Total: total, Paid: input.PaidAmount}
		}
		outcome.PaidAmount = input.PaidAmount
		outcome.ChangeAmount = input.PaidAmount.Sub(total)

	case models.PaymentMethodCredit:
		if input.CustomerId <= 0 {
			return nil, utils.ErrorNoCustomerSelected
		}
		outcome.CreditAmount = total

	case models.PaymentMethodSplit:
		if len(input.SplitPayments) == 0 {
			return nil, errors.New("split payment has no components")
		}
		var tendered, creditLeg decimal.Decimal
		for i, part := range input.SplitPayments {
			if !part.Amount.IsPositive() {
				return nil, fmt.Errorf("split component %d: amount must be positive", i)
			}
			switch part.Method {
			case models.PaymentMethodCash, models.PaymentMethodCard:
				tendered = tendered.Add(part.Amount)
			case models.PaymentMethodCredit:
				creditLeg = creditLeg.Add(part.Amount)
			default:
				return nil, fmt.Errorf("split component %d: invalid method %q", i, part.Method)
			}
		}
		if creditLeg.IsPositive() && input.CustomerId <= 0 {
			return nil, utils.ErrorNoCustomerSelected
		}
		covered := tendered.Add(creditLeg)
		if covered.LessThan(total) {
			return nil, &utils.InsufficientPaymentError{Total: total, Paid: covered}
		}
		outcome.PaidAmount = tendered
		outcome.CreditAmount = creditLeg
		outcome.ChangeAmount = covered.Sub(total)

	default:
		return nil, fmt.Errorf("invalid payment method %q", input.PaymentMethod)
	}

	return outcome, nil
}

// SettleBill turns a validated cart into a committed sale: one transaction
// covering the bill, its items, every sale stock movement and any credit
// charge. A retry carrying the bill number of an already-committed sale
// returns that sale without posting anything twice.
func SettleBill(ctx context.Context, input *models.PosCheckoutInput) (*models.Bill, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.Validate(ctx, businessId); err != nil {
		return nil, err
	}

	totals := input.ComputeTotals()
	outcome, err := ValidatePaymentInstruction(input, totals.GrandTotal)
	if err != nil {
		return nil, err
	}

	// Redis lock is a best-effort optimization; the MySQL advisory lock
	// inside the transaction is what actually serializes posting.
	if release, lockErr := utils.BusinessLock(ctx, businessId, "posting", "settlement.go", "SettleBill"); lockErr == nil {
		defer release()
	}

	db := config.GetDB()
	var bill models.Bill
	var alreadyCommitted bool

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquireBusinessPostingLock(tx, businessId); err != nil {
			return err
		}
		defer ReleaseBusinessPostingLock(tx, businessId)

		skip, err := BeginIdempotency(tx, businessId, settleHandlerName, input.BillNumber)
		if err != nil {
			return err
		}
		if skip {
			alreadyCommitted = true
			return nil
		}

		if input.HeldBillId > 0 {
			if err := models.DeleteHeldBillTx(tx, businessId, input.HeldBillId); err != nil {
				return err
			}
		}

		items, err := input.BuildBillItems(tx, businessId)
		if err != nil {
			return err
		}

		var splits []models.BillSplitPayment
		for _, part := range input.SplitPayments {
			splits = append(splits, models.BillSplitPayment{Method: part.Method, Amount: part.Amount})
		}

		bill = models.Bill{
			BusinessId:          businessId,
			BillNumber:          input.BillNumber,
			CustomerId:          input.CustomerId,
			Subtotal:            totals.Subtotal,
			ItemDiscountTotal:   totals.ItemDiscountTotal,
			OrderDiscount:       input.OrderDiscount,
			OrderDiscountType:   input.OrderDiscountType,
			OrderDiscountAmount: totals.OrderDiscountAmount,
			TaxAmount:           totals.TaxAmount,
			Total:               totals.GrandTotal,
			PaymentMethod:       outcome.Method,
			PaidAmount:          outcome.PaidAmount,
			ChangeAmount:        outcome.ChangeAmount,
			CreditAmount:        outcome.CreditAmount,
			CurrentStatus:       models.BillStatusCompleted,
			Notes:               input.Notes,
			Items:               items,
			SplitPayments:       splits,
		}
		if err := tx.Create(&bill).Error; err != nil {
			if utils.IsDuplicateKeyErr(err) {
				return utils.ErrorDuplicateReference
			}
			return err
		}

		// Decrement stock for every line. Any failure rolls the whole
		// settlement back; partial decrements must never persist.
		for _, item := range bill.Items {
			_, err := models.ApplyStockMovement(tx, ctx, businessId, item.ProductId,
				models.StockMovementKindSale, item.Qty.Neg(), models.ReferenceTypeBill, bill.ID)
			if err != nil {
				return err
			}
		}

		if outcome.CreditAmount.IsPositive() {
			_, err := models.ApplyCreditEntry(tx, ctx, businessId, input.CustomerId,
				models.CreditEntryKindCharge, outcome.CreditAmount, models.ReferenceTypeBill, bill.ID)
			if err != nil {
				return err
			}
		}

		return MarkIdempotencySucceeded(tx, businessId, settleHandlerName, input.BillNumber)
	})
	if err != nil {
		// The STARTED marker rolled back with the transaction; record the
		// failure so retries show what went wrong last time. Not for
		// in-progress collisions, those resolve on their own.
		if !errors.Is(err, ErrIdempotencyInProgress) {
			MarkIdempotencyFailed(ctx, businessId, settleHandlerName, input.BillNumber, err)
		}
		return nil, err
	}

	if alreadyCommitted {
		return models.GetBillByNumber(ctx, input.BillNumber)
	}

	return &bill, nil
}
