package utils

import (
	"github.com/shopspring/decimal"
)

// CartLine is the in-memory shape the pricing helpers operate on.
// Quantities and prices are snapshots supplied by the caller; nothing here
// touches the database.
type CartLine struct {
	ProductId int
	Qty       decimal.Decimal
	UnitPrice decimal.Decimal
	Discount  decimal.Decimal
}

type CartTotals struct {
	Subtotal            decimal.Decimal
	ItemDiscountTotal   decimal.Decimal
	OrderDiscountAmount decimal.Decimal
	TaxAmount           decimal.Decimal
	GrandTotal          decimal.Decimal
}

// ClampLineDiscount limits a line discount to [0, unitPrice*qty].
func ClampLineDiscount(unitPrice, qty, discount decimal.Decimal) decimal.Decimal {
	gross := unitPrice.Mul(qty)
	if discount.IsNegative() {
		return decimal.Zero
	}
	if discount.GreaterThan(gross) {
		return gross
	}
	return discount
}

// CalculateLineSubtotal returns unitPrice*qty minus the clamped discount.
func CalculateLineSubtotal(unitPrice, qty, discount decimal.Decimal) decimal.Decimal {
	return unitPrice.Mul(qty).Sub(ClampLineDiscount(unitPrice, qty, discount))
}

// CalculateDiscountAmount computes an order-level discount against a subtotal.
// discountType "P" is a percentage of the subtotal, "A" is a flat amount
// capped at the subtotal so a discount can never exceed what is being bought.
func CalculateDiscountAmount(subTotal decimal.Decimal, discount decimal.Decimal, discountType string) decimal.Decimal {

	var discountAmount decimal.Decimal

	decimalOneHundred := decimal.NewFromFloat(100)

	if discount.GreaterThan(decimal.NewFromFloat(0.0)) {
		if discountType == "P" {
			discountAmount = subTotal.Mul(discount).DivRound(decimalOneHundred, 4)
		} else {
			discountAmount = discount
			if discountAmount.GreaterThan(subTotal) {
				discountAmount = subTotal
			}
		}
	} else {
		discountAmount = decimal.NewFromFloat(0.0)
	}

	return discountAmount
}

// CalculateCartTotals folds the cart lines into order totals:
// subtotal is the pre-discount gross, grand total is floored at zero.
func CalculateCartTotals(lines []CartLine, orderDiscount decimal.Decimal, orderDiscountType string, taxAmount decimal.Decimal) CartTotals {

	var subtotal, itemDiscountTotal decimal.Decimal

	for _, line := range lines {
		subtotal = subtotal.Add(line.UnitPrice.Mul(line.Qty))
		itemDiscountTotal = itemDiscountTotal.Add(ClampLineDiscount(line.UnitPrice, line.Qty, line.Discount))
	}

	// Order-level discounts apply after line discounts: a 10% order discount
	// on a 300 cart with 30 of line discounts takes 10% of 270.
	discountedSubtotal := subtotal.Sub(itemDiscountTotal)
	orderDiscountAmount := CalculateDiscountAmount(discountedSubtotal, orderDiscount, orderDiscountType)

	grandTotal := discountedSubtotal.Sub(orderDiscountAmount).Add(taxAmount)
	if grandTotal.IsNegative() {
		grandTotal = decimal.Zero
	}

	return CartTotals{
		Subtotal:            subtotal,
		ItemDiscountTotal:   itemDiscountTotal,
		OrderDiscountAmount: orderDiscountAmount,
		TaxAmount:           taxAmount,
		GrandTotal:          grandTotal,
	}
}
