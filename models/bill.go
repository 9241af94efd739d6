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

// Bill is immutable once completed. Returns never edit a bill; they create a
// negative counter-bill referencing the original, so history stays
// append-only. Invariant: total = subtotal - itemDiscountTotal -
// orderDiscountAmount + tax.
type Bill struct {
	ID                  int                `gorm:"primary_key" json:"id"`
	BusinessId          string             `gorm:"size:64;index:uniq_bill_number,unique;not null" json:"business_id"`
	BillNumber          string             `gorm:"size:100;index:uniq_bill_number,unique;not null" json:"bill_number" binding:"required"`
	CustomerId          int                `gorm:"index;default:null" json:"customer_id"`
	Subtotal            decimal.Decimal    `gorm:"type:decimal(20,4);default:0" json:"subtotal"`
	ItemDiscountTotal   decimal.Decimal    `gorm:"type:decimal(20,4);default:0" json:"item_discount_total"`
	OrderDiscount       decimal.Decimal    `gorm:"type:decimal(20,4);default:0" json:"order_discount"`
	OrderDiscountType   *DiscountType      `gorm:"type:enum('P','A');default:null" json:"order_discount_type"`
	OrderDiscountAmount decimal.Decimal    `gorm:"type:decimal(20,4);default:0" json:"order_discount_amount"`
	TaxAmount           decimal.Decimal    `gorm:"type:decimal(20,4);default:0" json:"tax_amount"`
	Total               decimal.Decimal    `gorm:"type:decimal(20,4);default:0" json:"total"`
	PaymentMethod       PaymentMethod      `gorm:"type:enum('Cash','Card','Credit','Split');default:Cash" json:"payment_method"`
	PaidAmount          decimal.Decimal    `gorm:"type:decimal(20,4);default:0" json:"paid_amount"`
	ChangeAmount        decimal.Decimal    `gorm:"type:decimal(20,4);default:0" json:"change_amount"`
	CreditAmount        decimal.Decimal    `gorm:"type:decimal(20,4);default:0" json:"credit_amount"`
	CurrentStatus       BillStatus         `gorm:"type:enum('Held','Completed','Refunded');default:Held" json:"current_status"`
	ReferenceBillId     int                `gorm:"index;default:null" json:"reference_bill_id"`
	Notes               string             `gorm:"type:text;default:null" json:"notes"`
	Items               []BillItem         `gorm:"foreignkey:BillId" json:"items"`
	SplitPayments       []BillSplitPayment `gorm:"foreignkey:BillId" json:"split_payments"`
	CreatedAt           time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

// BillItem snapshots name and price at sale time so later catalog edits
// never rewrite history. Subtotal = unitPrice*qty - discount.
type BillItem struct {
	ID          int             `gorm:"primary_key" json:"id"`
	BillId      int             `gorm:"index;not null" json:"bill_id"`
	ProductId   int             `gorm:"index;not null" json:"product_id"`
	ProductName string          `gorm:"size:100;not null" json:"product_name"`
	Qty         decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"qty"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"unit_price"`
	Discount    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"discount"`
	Subtotal    decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"subtotal"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type BillSplitPayment struct {
	ID     int             `gorm:"primary_key" json:"id"`
	BillId int             `gorm:"index;not null" json:"bill_id"`
	Method PaymentMethod   `gorm:"type:enum('Cash','Card','Credit');not null" json:"method"`
	Amount decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
}

type NewCartItem struct {
	ProductId int             `json:"product_id" binding:"required"`
	Qty       decimal.Decimal `json:"qty" binding:"required"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Discount  decimal.Decimal `json:"discount"`
}

type NewSplitPayment struct {
	Method PaymentMethod   `json:"method" binding:"required"`
	Amount decimal.Decimal `json:"amount" binding:"required"`
}

// PosCheckoutInput is the cart plus payment instruction for one sale. The
// bill number is generated by the caller; a collision fails the checkout.
type PosCheckoutInput struct {
	BillNumber        string            `json:"bill_number" binding:"required"`
	CustomerId        int               `json:"customer_id"`
	HeldBillId        int               `json:"held_bill_id"`
	Items             []NewCartItem     `json:"items" binding:"required,dive"`
	OrderDiscount     decimal.Decimal   `json:"order_discount"`
	OrderDiscountType *DiscountType     `json:"order_discount_type"`
	TaxAmount         decimal.Decimal   `json:"tax_amount"`
	PaymentMethod     PaymentMethod     `json:"payment_method" binding:"required"`
	PaidAmount        decimal.Decimal   `json:"paid_amount"`
	SplitPayments     []NewSplitPayment `json:"split_payments"`
	Notes             string            `json:"notes"`
}

// Validate normalizes and checks the cart before any ledger work: quantities
// must be positive, discounts are clamped, referenced products and the
// customer must exist. Ledger-level errors stay reserved for true invariant
// violations.
func (input *PosCheckoutInput) Validate(ctx context.Context, businessId string) error {
	if len(input.Items) == 0 {
		return errors.New("cart is empty")
	}
	for i := range input.Items {
		item := &input.Items[i]
		if !item.Qty.IsPositive() {
			return fmt.Errorf("item %d: qty must be positive", i)
		}
		if item.UnitPrice.IsNegative() {
			return fmt.Errorf("item %d: unit price cannot be negative", i)
		}
		item.Discount = utils.ClampLineDiscount(item.UnitPrice, item.Qty, item.Discount)
		if err := utils.ValidateResourceId[Product](ctx, businessId, item.ProductId); err != nil {
			return fmt.Errorf("item %d: product %d not found", i, item.ProductId)
		}
	}
	if input.CustomerId > 0 {
		if err := utils.ValidateResourceId[Customer](ctx, businessId, input.CustomerId); err != nil {
			return errors.New("customer not found")
		}
	}
	if input.OrderDiscountType != nil &&
		*input.OrderDiscountType != DiscountTypePercentage && *input.OrderDiscountType != DiscountTypeAmount {
		return errors.New("invalid order discount type")
	}
	if input.OrderDiscount.IsNegative() || input.TaxAmount.IsNegative() {
		return errors.New("discount and tax cannot be negative")
	}
	return nil
}

func (input *PosCheckoutInput) cartLines() []utils.CartLine {
	lines := make([]utils.CartLine, 0, len(input.Items))
	for _, item := range input.Items {
		lines = append(lines, utils.CartLine{
			ProductId: item.ProductId,
			Qty:       item.Qty,
			UnitPrice: item.UnitPrice,
			Discount:  item.Discount,
		})
	}
	return lines
}

// ComputeTotals folds the cart into order totals. Pure; no DB access.
func (input *PosCheckoutInput) ComputeTotals() utils.CartTotals {
	discountType := ""
	if input.OrderDiscountType != nil {
		discountType = string(*input.OrderDiscountType)
	}
	return utils.CalculateCartTotals(input.cartLines(), input.OrderDiscount, discountType, input.TaxAmount)
}

// BuildBillItems materializes cart lines into bill items with product name
// snapshots taken now.
func (input *PosCheckoutInput) BuildBillItems(tx *gorm.DB, businessId string) ([]BillItem, error) {
	items := make([]BillItem, 0, len(input.Items))
	for _, line := range input.Items {
		var product Product
		if err := tx.Where("business_id = ?", businessId).First(&product, line.ProductId).Error; err != nil {
			return nil, utils.ErrorRecordNotFound
		}
		items = append(items, BillItem{
			ProductId:   line.ProductId,
			ProductName: product.Name,
			Qty:         line.Qty,
			UnitPrice:   line.UnitPrice,
			Discount:    line.Discount,
			Subtotal:    utils.CalculateLineSubtotal(line.UnitPrice, line.Qty, line.Discount),
		})
	}
	return items, nil
}

// HoldBill parks a cart without touching stock or credit. Held bills are
// resumable; settling a resumed cart deletes the held bill in the same
// transaction (see workflow.SettleBill).
func HoldBill(ctx context.Context, input *PosCheckoutInput) (*Bill, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.Validate(ctx, businessId); err != nil {
		return nil, err
	}

	totals := input.ComputeTotals()

	db := config.GetDB()
	var bill Bill
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Re-holding a resumed cart overwrites the previous held bill.
		if input.HeldBillId > 0 {
			if err := deleteHeldBill(tx, businessId, input.HeldBillId); err != nil {
				return err
			}
		}

		items, err := input.BuildBillItems(tx, businessId)
		if err != nil {
			return err
		}

		bill = Bill{
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
			PaymentMethod:       PaymentMethodCash,
			PaidAmount:          decimal.Zero,
			CurrentStatus:       BillStatusHeld,
			Notes:               input.Notes,
			Items:               items,
		}
		if err := tx.Create(&bill).Error; err != nil {
			if utils.IsDuplicateKeyErr(err) {
				return utils.ErrorDuplicateReference
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &bill, nil
}

// GetHeldBills lists resumable carts, newest first.
func GetHeldBills(ctx context.Context) ([]*Bill, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	var bills []*Bill
	err := db.WithContext(ctx).Preload("Items").
		Where("business_id = ? AND current_status = ?", businessId, BillStatusHeld).
		Order("created_at DESC").
		Find(&bills).Error
	if err != nil {
		return nil, err
	}
	return bills, nil
}

func GetBill(ctx context.Context, id int) (*Bill, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	return utils.FetchModel[Bill](ctx, businessId, id, "Items", "SplitPayments")
}

func GetBillByNumber(ctx context.Context, billNumber string) (*Bill, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	var bill Bill
	err := db.WithContext(ctx).Preload("Items").Preload("SplitPayments").
		Where("business_id = ? AND bill_number = ?", businessId, billNumber).
		First(&bill).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorBillNotFound
		}
		return nil, err
	}
	return &bill, nil
}

// GetBillForUpdateByNumber locks the bill row for the caller's posting
// transaction and loads its items. Return clamping must read through this
// so concurrent returns see each other's writes.
func GetBillForUpdateByNumber(tx *gorm.DB, businessId string, billNumber string) (*Bill, error) {
	var bill Bill
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("business_id = ? AND bill_number = ?", businessId, billNumber).
		First(&bill).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorBillNotFound
		}
		return nil, err
	}
	err = tx.Where("bill_id = ?", bill.ID).Order("id").Find(&bill.Items).Error
	if err != nil {
		return nil, err
	}
	return &bill, nil
}

// GetBills lists recent bills, newest first, optionally filtered by status.
func GetBills(ctx context.Context, status *BillStatus, limit int) ([]*Bill, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if limit <= 0 {
		limit = 50
	} else if limit > 100 {
		limit = 100
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Preload("Items").Where("business_id = ?", businessId)
	if status != nil {
		dbCtx = dbCtx.Where("current_status = ?", *status)
	}

	var bills []*Bill
	err := dbCtx.Order("created_at DESC").Limit(limit).Find(&bills).Error
	if err != nil {
		return nil, err
	}
	return bills, nil
}

// deleteHeldBill removes a held bill and its items. Only held bills may be
// deleted; completed bills are permanent.
func deleteHeldBill(tx *gorm.DB, businessId string, billId int) error {
	var held Bill
	err := tx.Where("business_id = ? AND current_status = ?", businessId, BillStatusHeld).
		First(&held, billId).Error
	if err != nil {
		return errors.New("held bill not found")
	}
	if err := tx.Where("bill_id = ?", held.ID).Delete(&BillItem{}).Error; err != nil {
		return err
	}
	return tx.Delete(&held).Error
}

// DeleteHeldBillTx is the exported hook used by the settlement workflow to
// clear a resumed held bill inside the settlement transaction.
func DeleteHeldBillTx(tx *gorm.DB, businessId string, billId int) error {
	return deleteHeldBill(tx, businessId, billId)
}
