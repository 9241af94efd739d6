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

// CreditEntry is the append-only customer credit ledger.
// Running balance = sum(Charge) - sum(Payment) and always equals the
// customer's cached current_credit.
type CreditEntry struct {
	ID              string          `gorm:"size:36;primary_key" json:"id"` // uuid
	BusinessId      string          `gorm:"index:idx_credit_entry_biz_customer,priority:1;not null" json:"business_id"`
	CustomerId      int             `gorm:"index:idx_credit_entry_biz_customer,priority:2;not null" json:"customer_id"`
	Kind            CreditEntryKind `gorm:"type:enum('Charge','Payment');not null" json:"kind"`
	Amount          decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"` // always positive
	PreviousBalance decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"previous_balance"`
	NewBalance      decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"new_balance"`
	ReferenceType   ReferenceType   `gorm:"size:20;not null" json:"reference_type"`
	ReferenceId     int             `gorm:"index;not null" json:"reference_id"`
	CorrelationId   string          `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// ApplyCreditEntry appends one entry and updates the customer's cached
// balance inside the caller's transaction. Charges are rejected past the
// credit limit, payments are rejected past the outstanding balance.
func ApplyCreditEntry(tx *gorm.DB, ctx context.Context, businessId string, customerId int,
	kind CreditEntryKind, amount decimal.Decimal, refType ReferenceType, refId int) (*CreditEntry, error) {

	if !amount.IsPositive() {
		return nil, errors.New("credit entry amount must be positive")
	}

	customer, err := getCustomerForUpdate(tx, businessId, customerId)
	if err != nil {
		return nil, err
	}

	previousBalance := customer.CurrentCredit
	var newBalance decimal.Decimal

	switch kind {
	case CreditEntryKindCharge:
		newBalance = previousBalance.Add(amount)
		if newBalance.GreaterThan(customer.CreditLimit) {
			return nil, &utils.CreditLimitExceededError{
				CustomerId:  customerId,
				Balance:     previousBalance,
				Amount:      amount,
				CreditLimit: customer.CreditLimit,
			}
		}
	case CreditEntryKindPayment:
		if amount.GreaterThan(previousBalance) {
			return nil, &utils.OverpaymentError{
				CustomerId: customerId,
				Balance:    previousBalance,
				Amount:     amount,
			}
		}
		newBalance = previousBalance.Sub(amount)
	default:
		return nil, errors.New("invalid credit entry kind")
	}

	entry := CreditEntry{
		ID:              uuid.NewString(),
		BusinessId:      businessId,
		CustomerId:      customerId,
		Kind:            kind,
		Amount:          amount,
		PreviousBalance: previousBalance,
		NewBalance:      newBalance,
		ReferenceType:   refType,
		ReferenceId:     refId,
		CorrelationId:   correlationIdFromContextOrNew(ctx),
	}
	if err := tx.Create(&entry).Error; err != nil {
		return nil, err
	}

	err = tx.Model(&Customer{}).
		Where("business_id = ? AND id = ?", businessId, customerId).
		Update("current_credit", newBalance).Error
	if err != nil {
		return nil, err
	}

	return &entry, nil
}

// RecordCreditPayment posts a standalone balance payment (customer paying
// down credit at the counter, outside any bill).
func RecordCreditPayment(ctx context.Context, customerId int, amount decimal.Decimal) (*CreditEntry, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	var entry *CreditEntry
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		entry, err = ApplyCreditEntry(tx, ctx, businessId, customerId,
			CreditEntryKindPayment, amount, ReferenceTypeAdjustment, customerId)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// GetCreditEntries returns the credit ledger for one customer, oldest first.
func GetCreditEntries(ctx context.Context, customerId int) ([]*CreditEntry, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	var entries []*CreditEntry
	err := db.WithContext(ctx).
		Where("business_id = ? AND customer_id = ?", businessId, customerId).
		Order("created_at, id").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
