package models

import (
	"encoding/json"
	"fmt"
)

type StockMovementKind string

const (
	StockMovementKindSale       StockMovementKind = "Sale"
	StockMovementKindPurchase   StockMovementKind = "Purchase"
	StockMovementKindAdjustment StockMovementKind = "Adjustment"
	StockMovementKindReturnIn   StockMovementKind = "ReturnIn"
	StockMovementKindReturnOut  StockMovementKind = "ReturnOut"
)

func (k *StockMovementKind) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	switch StockMovementKind(str) {
	case StockMovementKindSale, StockMovementKindPurchase, StockMovementKindAdjustment,
		StockMovementKindReturnIn, StockMovementKindReturnOut:
		*k = StockMovementKind(str)
	default:
		return fmt.Errorf("invalid stock movement kind %q", str)
	}
	return nil
}

type CreditEntryKind string

const (
	CreditEntryKindCharge  CreditEntryKind = "Charge"
	CreditEntryKindPayment CreditEntryKind = "Payment"
)

func (k *CreditEntryKind) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	switch CreditEntryKind(str) {
	case CreditEntryKindCharge, CreditEntryKindPayment:
		*k = CreditEntryKind(str)
	default:
		return fmt.Errorf("invalid credit entry kind %q", str)
	}
	return nil
}

// ReferenceType names the document a ledger movement points back at.
type ReferenceType string

const (
	ReferenceTypeBill       ReferenceType = "bill"
	ReferenceTypePurchase   ReferenceType = "purchase"
	ReferenceTypeReturn     ReferenceType = "return"
	ReferenceTypeAdjustment ReferenceType = "adjustment"
)

type PaymentMethod string

const (
	PaymentMethodCash   PaymentMethod = "Cash"
	PaymentMethodCard   PaymentMethod = "Card"
	PaymentMethodCredit PaymentMethod = "Credit"
	PaymentMethodSplit  PaymentMethod = "Split"
)

func (m *PaymentMethod) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	switch PaymentMethod(str) {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodCredit, PaymentMethodSplit:
		*m = PaymentMethod(str)
	default:
		return fmt.Errorf("invalid payment method %q", str)
	}
	return nil
}

type BillStatus string

const (
	BillStatusHeld      BillStatus = "Held"
	BillStatusCompleted BillStatus = "Completed"
	BillStatusRefunded  BillStatus = "Refunded"
)

func (s *BillStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	switch BillStatus(str) {
	case BillStatusHeld, BillStatusCompleted, BillStatusRefunded:
		*s = BillStatus(str)
	default:
		return fmt.Errorf("invalid bill status %q", str)
	}
	return nil
}

type PurchaseOrderStatus string

const (
	PurchaseOrderStatusPending   PurchaseOrderStatus = "Pending"
	PurchaseOrderStatusReceived  PurchaseOrderStatus = "Received"
	PurchaseOrderStatusCompleted PurchaseOrderStatus = "Completed"
	PurchaseOrderStatusCancelled PurchaseOrderStatus = "Cancelled"
)

// poStatusTransitions is the only legal movement between purchase order
// states. Orders never regress: once Completed or Cancelled they are final.
var poStatusTransitions = map[PurchaseOrderStatus][]PurchaseOrderStatus{
	PurchaseOrderStatusPending:   {PurchaseOrderStatusReceived, PurchaseOrderStatusCompleted, PurchaseOrderStatusCancelled},
	PurchaseOrderStatusReceived:  {PurchaseOrderStatusCompleted},
	PurchaseOrderStatusCompleted: {},
	PurchaseOrderStatusCancelled: {},
}

// CanTransitionTo reports whether the status may move to next. Staying in the
// same state is always allowed (a partial receipt on an already-Received
// order keeps it Received).
func (s PurchaseOrderStatus) CanTransitionTo(next PurchaseOrderStatus) bool {
	if s == next {
		return true
	}
	for _, allowed := range poStatusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s *PurchaseOrderStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	switch PurchaseOrderStatus(str) {
	case PurchaseOrderStatusPending, PurchaseOrderStatusReceived,
		PurchaseOrderStatusCompleted, PurchaseOrderStatusCancelled:
		*s = PurchaseOrderStatus(str)
	default:
		return fmt.Errorf("invalid purchase order status %q", str)
	}
	return nil
}

type RefundMethod string

const (
	RefundMethodCash   RefundMethod = "Cash"
	RefundMethodCredit RefundMethod = "Credit"
)

func (m *RefundMethod) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	switch RefundMethod(str) {
	case RefundMethodCash, RefundMethodCredit:
		*m = RefundMethod(str)
	default:
		return fmt.Errorf("invalid refund method %q", str)
	}
	return nil
}

type DiscountType string

const (
	DiscountTypePercentage DiscountType = "P"
	DiscountTypeAmount     DiscountType = "A"
)

type MemberLevel string

const (
	MemberLevelStandard MemberLevel = "Standard"
	MemberLevelSilver   MemberLevel = "Silver"
	MemberLevelGold     MemberLevel = "Gold"
)

type IdempotencyStatus string

const (
	IdempotencyStatusStarted   IdempotencyStatus = "STARTED"
	IdempotencyStatusSucceeded IdempotencyStatus = "SUCCEEDED"
	IdempotencyStatusFailed    IdempotencyStatus = "FAILED"
)
