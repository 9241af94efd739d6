package utils

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(value string) decimal.Decimal {
	out, err := decimal.NewFromString(value)
	if err != nil {
		panic(err)
	}
	return out
}

func TestClampLineDiscount(t *testing.T) {
	cases := []struct {
		name      string
		unitPrice string
		qty       string
		discount  string
		want      string
	}{
		{"within range", "100", "3", "30", "30"},
		{"negative discount clamps to zero", "100", "3", "-5", "0"},
		{"discount above gross clamps to gross", "100", "3", "500", "300"},
		{"exactly gross", "100", "2", "200", "200"},
		{"zero qty", "100", "0", "10", "0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ClampLineDiscount(d(tc.unitPrice), d(tc.qty), d(tc.discount))
			if !got.Equal(d(tc.want)) {
				t.Fatalf("ClampLineDiscount(%s,%s,%s) = %s; want %s", tc.unitPrice, tc.qty, tc.discount, got, tc.want)
			}
		})
	}
}

func TestCalculateLineSubtotal(t *testing.T) {
	got := CalculateLineSubtotal(d("100"), d("3"), d("30"))
	if !got.Equal(d("270")) {
		t.Fatalf("line subtotal = %s; want 270", got)
	}
	// Oversized discount cannot push a line negative.
	got = CalculateLineSubtotal(d("100"), d("1"), d("150"))
	if !got.Equal(d("0")) {
		t.Fatalf("line subtotal with oversized discount = %s; want 0", got)
	}
}

func TestCalculateDiscountAmount(t *testing.T) {
	if got := CalculateDiscountAmount(d("270"), d("10"), "P"); !got.Equal(d("27")) {
		t.Fatalf("10%% of 270 = %s; want 27", got)
	}
	if got := CalculateDiscountAmount(d("200"), d("50"), "A"); !got.Equal(d("50")) {
		t.Fatalf("flat 50 of 200 = %s; want 50", got)
	}
	// Flat discount is capped at the subtotal.
	if got := CalculateDiscountAmount(d("200"), d("500"), "A"); !got.Equal(d("200")) {
		t.Fatalf("flat 500 of 200 = %s; want 200", got)
	}
	if got := CalculateDiscountAmount(d("200"), d("0"), "P"); !got.IsZero() {
		t.Fatalf("zero discount = %s; want 0", got)
	}
	if got := CalculateDiscountAmount(d("200"), d("-10"), "A"); !got.IsZero() {
		t.Fatalf("negative discount = %s; want 0", got)
	}
}

func TestCalculateCartTotals(t *testing.T) {
	// One item: unitPrice 100, qty 3, line discount 30, order discount 10%.
	lines := []CartLine{
		{ProductId: 1, Qty: d("3"), UnitPrice: d("100"), Discount: d("30")},
	}
	totals := CalculateCartTotals(lines, d("10"), "P", decimal.Zero)

	if !totals.Subtotal.Equal(d("300")) {
		t.Fatalf("subtotal = %s; want 300", totals.Subtotal)
	}
	if !totals.ItemDiscountTotal.Equal(d("30")) {
		t.Fatalf("item discount total = %s; want 30", totals.ItemDiscountTotal)
	}
	if !totals.OrderDiscountAmount.Equal(d("27")) {
		t.Fatalf("order discount = %s; want 27", totals.OrderDiscountAmount)
	}
	if !totals.GrandTotal.Equal(d("243")) {
		t.Fatalf("grand total = %s; want 243", totals.GrandTotal)
	}
}

func TestCalculateCartTotals_MultipleLinesWithTax(t *testing.T) {
	lines := []CartLine{
		{ProductId: 1, Qty: d("2"), UnitPrice: d("1500"), Discount: d("0")},
		{ProductId: 2, Qty: d("1"), UnitPrice: d("800"), Discount: d("100")},
	}
	totals := CalculateCartTotals(lines, d("200"), "A", d("190"))

	if !totals.Subtotal.Equal(d("3800")) {
		t.Fatalf("subtotal = %s; want 3800", totals.Subtotal)
	}
	if !totals.ItemDiscountTotal.Equal(d("100")) {
		t.Fatalf("item discount total = %s; want 100", totals.ItemDiscountTotal)
	}
	if !totals.OrderDiscountAmount.Equal(d("200")) {
		t.Fatalf("order discount = %s; want 200", totals.OrderDiscountAmount)
	}
	// 3800 - 100 - 200 + 190
	if !totals.GrandTotal.Equal(d("3690")) {
		t.Fatalf("grand total = %s; want 3690", totals.GrandTotal)
	}
}

func TestCalculateCartTotals_FloorsAtZero(t *testing.T) {
	lines := []CartLine{
		{ProductId: 1, Qty: d("1"), UnitPrice: d("100"), Discount: d("0")},
	}
	// Flat order discount eats the whole cart; tax of zero keeps it at zero.
	totals := CalculateCartTotals(lines, d("100"), "A", decimal.Zero)
	if !totals.GrandTotal.IsZero() {
		t.Fatalf("grand total = %s; want 0", totals.GrandTotal)
	}
}
