package utils

import (
	"errors"
	"fmt"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
)

var ErrorRecordNotFound = errors.New("record not found")

// Recoverable business errors. The HTTP layer maps these to 4xx responses
// and the caller corrects its input; none of them should crash the process.
var (
	ErrorNoCustomerSelected = errors.New("credit payment requires a customer")
	ErrorNoCreditAccount    = errors.New("original sale has no customer credit account")
	ErrorEmptyReturn        = errors.New("return has no returnable quantity")
	ErrorEmptyReceipt       = errors.New("goods receipt has no received quantity")
	ErrorBillNotFound       = errors.New("bill not found")
	ErrorDuplicateReference = errors.New("duplicate reference number")
)

// InsufficientStockError is returned when a sale movement would drive
// product stock below zero.
type InsufficientStockError struct {
	ProductId int
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %s, available %s",
		e.ProductId, e.Requested.String(), e.Available.String())
}

// InsufficientPaymentError is returned when tendered amounts do not cover the bill total.
type InsufficientPaymentError struct {
	Total decimal.Decimal
	Paid  decimal.Decimal
}

func (e *InsufficientPaymentError) Error() string {
	return fmt.Sprintf("insufficient payment: total %s, paid %s", e.Total.String(), e.Paid.String())
}

// CreditLimitExceededError is returned when a credit charge would push the
// customer balance past the credit limit.
type CreditLimitExceededError struct {
	CustomerId  int
	Balance     decimal.Decimal
	Amount      decimal.Decimal
	CreditLimit decimal.Decimal
}

func (e *CreditLimitExceededError) Error() string {
	return fmt.Sprintf("credit limit exceeded for customer %d: balance %s + charge %s > limit %s",
		e.CustomerId, e.Balance.String(), e.Amount.String(), e.CreditLimit.String())
}

// OverpaymentError is returned when a credit payment would drive the
// customer balance negative.
type OverpaymentError struct {
	CustomerId int
	Balance    decimal.Decimal
	Amount     decimal.Decimal
}

func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("overpayment for customer %d: payment %s exceeds balance %s",
		e.CustomerId, e.Amount.String(), e.Balance.String())
}

// IsDuplicateKeyErr reports whether err is a MySQL 1062 duplicate-key error.
// Unique indexes back our duplicate-reference detection, so this is how a
// bill number or order number collision surfaces.
func IsDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}
