package workflow

import (
	"errors"
	"testing"

	"bitbucket.org/mmdatafocus/pos_backend/models"
	"bitbucket.org/mmdatafocus/pos_backend/utils"
	"github.com/shopspring/decimal"
)

func d(value string) decimal.Decimal {
	out, err := decimal.NewFromString(value)
	if err != nil {
		panic(err)
	}
	return out
}

func TestValidatePaymentInstruction_CashExactAndChange(t *testing.T) {
	input := &models.PosCheckoutInput{
		PaymentMethod: models.PaymentMethodCash,
		PaidAmount:    d("300"),
	}
	outcome, err := ValidatePaymentInstruction(input, d("243"))
	if err != nil {
		t.Fatalf("ValidatePaymentInstruction: %v", err)
	}
	if !outcome.ChangeAmount.Equal(d("57")) {
		t.Fatalf("change = %s; want 57", outcome.ChangeAmount)
	}
	if !outcome.PaidAmount.Equal(d("300")) {
		t.Fatalf("paid = %s; want 300", outcome.PaidAmount)
	}
	if !outcome.CreditAmount.IsZero() {
		t.Fatalf("credit amount = %s; want 0", outcome.CreditAmount)
	}
}

func TestValidatePaymentInstruction_CashShort(t *testing.T) {
	input := &models.PosCheckoutInput{
		PaymentMethod: models.PaymentMethodCash,
		PaidAmount:    d("200"),
	}
	_, err := ValidatePaymentInstruction(input, d("243"))
	var payErr *utils.InsufficientPaymentError
	if !errors.As(err, &payErr) {
		t.Fatalf("expected InsufficientPaymentError; got %v", err)
	}
	if !payErr.Total.Equal(d("243")) || !payErr.Paid.Equal(d("200")) {
		t.Fatalf("error carries total=%s paid=%s; want 243/200", payErr.Total, payErr.Paid)
	}
}

func TestValidatePaymentInstruction_CardRequiresFullPayment(t *testing.T) {
	input := &models.PosCheckoutInput{
		PaymentMethod: models.PaymentMethodCard,
		PaidAmount:    d("243"),
	}
	outcome, err := ValidatePaymentInstruction(input, d("243"))
	if err != nil {
		t.Fatalf("ValidatePaymentInstruction: %v", err)
	}
	if !outcome.ChangeAmount.IsZero() {
		t.Fatalf("change = %s; want 0", outcome.ChangeAmount)
	}
}

func TestValidatePaymentInstruction_CreditNeedsCustomer(t *testing.T) {
	input := &models.PosCheckoutInput{
		PaymentMethod: models.PaymentMethodCredit,
	}
	_, err := ValidatePaymentInstruction(input, d("100"))
	if !errors.Is(err, utils.ErrorNoCustomerSelected) {
		t.Fatalf("expected ErrorNoCustomerSelected; got %v", err)
	}

	input.CustomerId = 7
	outcome, err := ValidatePaymentInstruction(input, d("100"))
	if err != nil {
		t.Fatalf("ValidatePaymentInstruction: %v", err)
	}
	if !outcome.CreditAmount.Equal(d("100")) {
		t.Fatalf("credit amount = %s; want 100", outcome.CreditAmount)
	}
	if !outcome.PaidAmount.IsZero() {
		t.Fatalf("paid = %s; want 0", outcome.PaidAmount)
	}
}

func TestValidatePaymentInstruction_Split(t *testing.T) {
	input := &models.PosCheckoutInput{
		PaymentMethod: models.PaymentMethodSplit,
		CustomerId:    3,
		SplitPayments: []models.NewSplitPayment{
			{Method: models.PaymentMethodCash, Amount: d("100")},
			{Method: models.PaymentMethodCard, Amount: d("100")},
			{Method: models.PaymentMethodCredit, Amount: d("50")},
		},
	}
	outcome, err := ValidatePaymentInstruction(input, d("243"))
	if err != nil {
		t.Fatalf("ValidatePaymentInstruction: %v", err)
	}
	if !outcome.PaidAmount.Equal(d("200")) {
		t.Fatalf("tendered = %s; want 200", outcome.PaidAmount)
	}
	if !outcome.CreditAmount.Equal(d("50")) {
		t.Fatalf("credit leg = %s; want 50", outcome.CreditAmount)
	}
	if !outcome.ChangeAmount.Equal(d("7")) {
		t.Fatalf("change = %s; want 7", outcome.ChangeAmount)
	}
}

func TestValidatePaymentInstruction_SplitErrors(t *testing.T) {
	t.Run("no components", func(t *testing.T) {
		input := &models.PosCheckoutInput{PaymentMethod: models.PaymentMethodSplit}
		if _, err := ValidatePaymentInstruction(input, d("100")); err == nil {
			t.Fatal("expected error for empty split")
		}
	})

	t.Run("non-positive component", func(t *testing.T) {
		input := &models.PosCheckoutInput{
			PaymentMethod: models.PaymentMethodSplit,
			SplitPayments: []models.NewSplitPayment{
				{Method: models.PaymentMethodCash, Amount: d("0")},
			},
		}
		if _, err := ValidatePaymentInstruction(input, d("100")); err == nil {
			t.Fatal("expected error for zero component amount")
		}
	})

	t.Run("nested split method", func(t *testing.T) {
		input := &models.PosCheckoutInput{
			PaymentMethod: models.PaymentMethodSplit,
			SplitPayments: []models.NewSplitPayment{
				{Method: models.PaymentMethodSplit, Amount: d("100")},
			},
		}
		if _, err := ValidatePaymentInstruction(input, d("100")); err == nil {
			t.Fatal("expected error for split inside split")
		}
	})

	t.Run("credit leg without customer", func(t *testing.T) {
		input := &models.PosCheckoutInput{
			PaymentMethod: models.PaymentMethodSplit,
			SplitPayments: []models.NewSplitPayment{
				{Method: models.PaymentMethodCash, Amount: d("100")},
				{Method: models.PaymentMethodCredit, Amount: d("100")},
			},
		}
		_, err := ValidatePaymentInstruction(input, d("200"))
		if !errors.Is(err, utils.ErrorNoCustomerSelected) {
			t.Fatalf("expected ErrorNoCustomerSelected; got %v", err)
		}
	})

	t.Run("components cover less than total", func(t *testing.T) {
		input := &models.PosCheckoutInput{
			PaymentMethod: models.PaymentMethodSplit,
			SplitPayments: []models.NewSplitPayment{
				{Method: models.PaymentMethodCash, Amount: d("100")},
			},
		}
		_, err := ValidatePaymentInstruction(input, d("243"))
		var payErr *utils.InsufficientPaymentError
		if !errors.As(err, &payErr) {
			t.Fatalf("expected InsufficientPaymentError; got %v", err)
		}
	})
}

func TestValidatePaymentInstruction_UnknownMethod(t *testing.T) {
	input := &models.PosCheckoutInput{PaymentMethod: models.PaymentMethod("Barter")}
	if _, err := ValidatePaymentInstruction(input, d("100")); err == nil {
		t.Fatal("expected error for unknown payment method")
	}
}
