package models_test

import (
	"errors"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/pos_backend/models"
	"bitbucket.org/mmdatafocus/pos_backend/utils"
	"bitbucket.org/mmdatafocus/pos_backend/workflow"
)

// Regression: receiving 6 of 10 keeps the order Received; receiving the
// remaining 4 completes it. Stock rises with each receipt, over-receipts
// clamp to what is still outstanding.
func TestGoodsReceipt_PartialThenCompleted(t *testing.T) {
	ctx := setupPosIntegration(t)

	product, err := models.CreateProduct(ctx, &models.NewProduct{
		Sku:       "COF-001",
		Name:      "Arabica Coffee 250g",
		CostPrice: d("4400"),
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	supplier, err := models.CreateSupplier(ctx, &models.NewSupplier{Name: "Golden Valley Trading"})
	if err != nil {
		t.Fatalf("CreateSupplier: %v", err)
	}

	order, err := models.CreatePurchaseOrder(ctx, &models.NewPurchaseOrder{
		OrderNumber: "PO-0001",
		SupplierId:  supplier.ID,
		OrderDate:   time.Now().UTC(),
		Details: []models.NewPurchaseOrderDetail{
			{ProductId: product.ID, Qty: d("10"), CostPrice: d("4400")},
		},
	})
	if err != nil {
		t.Fatalf("CreatePurchaseOrder: %v", err)
	}
	if order.CurrentStatus != models.PurchaseOrderStatusPending {
		t.Fatalf("new order status = %s; want Pending", order.CurrentStatus)
	}
	if !order.TotalAmount.Equal(d("44000")) {
		t.Fatalf("order total = %s; want 44000", order.TotalAmount)
	}
	detailId := order.Details[0].ID

	// Partial receipt: 6 of 10.
	received, err := workflow.ReceiveGoods(ctx, &workflow.GoodsReceiptInput{
		PurchaseOrderId: order.ID,
		Lines:           []workflow.ReceivedLine{{PurchaseItemId: detailId, ReceivedQty: d("6")}},
	})
	if err != nil {
		t.Fatalf("ReceiveGoods (partial): %v", err)
	}
	if received.CurrentStatus != models.PurchaseOrderStatusReceived {
		t.Fatalf("status after partial receipt = %s; want Received", received.CurrentStatus)
	}
	afterPartial, err := models.GetProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if !afterPartial.Stock.Equal(d("6")) {
		t.Fatalf("stock after partial receipt = %s; want 6", afterPartial.Stock)
	}

	// Second receipt asks for 5, only 4 are outstanding: clamp, complete.
	completed, err := workflow.ReceiveGoods(ctx, &workflow.GoodsReceiptInput{
		PurchaseOrderId: order.ID,
		Lines:           []workflow.ReceivedLine{{PurchaseItemId: detailId, ReceivedQty: d("5")}},
	})
	if err != nil {
		t.Fatalf("ReceiveGoods (completing): %v", err)
	}
	if completed.CurrentStatus != models.PurchaseOrderStatusCompleted {
		t.Fatalf("status after full receipt = %s; want Completed", completed.CurrentStatus)
	}
	if !completed.Details[0].ReceivedQty.Equal(d("10")) {
		t.Fatalf("received qty = %s; want 10", completed.Details[0].ReceivedQty)
	}
	afterFull, err := models.GetProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if !afterFull.Stock.Equal(d("10")) {
		t.Fatalf("stock after full receipt = %s; want 10", afterFull.Stock)
	}

	// A completed order accepts no further receipts.
	_, err = workflow.ReceiveGoods(ctx, &workflow.GoodsReceiptInput{
		PurchaseOrderId: order.ID,
		Lines:           []workflow.ReceivedLine{{PurchaseItemId: detailId, ReceivedQty: d("1")}},
	})
	if err == nil {
		t.Fatal("expected error when receiving against a completed order")
	}

	movements, err := models.GetStockMovements(ctx, product.ID)
	if err != nil {
		t.Fatalf("GetStockMovements: %v", err)
	}
	if len(movements) != 2 {
		t.Fatalf("got %d movements; want 2", len(movements))
	}
	for _, m := range movements {
		if m.Kind != models.StockMovementKindPurchase {
			t.Fatalf("movement kind = %s; want Purchase", m.Kind)
		}
		if m.ReferenceType != models.ReferenceTypePurchase || m.ReferenceId != order.ID {
			t.Fatalf("movement reference = %s/%d; want purchase/%d", m.ReferenceType, m.ReferenceId, order.ID)
		}
	}
}

// Regression: a receipt whose every line clamps to zero posts nothing.
func TestGoodsReceipt_AllZeroLinesRejected(t *testing.T) {
	ctx := setupPosIntegration(t)

	product, err := models.CreateProduct(ctx, &models.NewProduct{Sku: "TEA-001", Name: "Green Tea 100g"})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	supplier, err := models.CreateSupplier(ctx, &models.NewSupplier{Name: "Hilltop Estates"})
	if err != nil {
		t.Fatalf("CreateSupplier: %v", err)
	}
	order, err := models.CreatePurchaseOrder(ctx, &models.NewPurchaseOrder{
		OrderNumber: "PO-0002",
		SupplierId:  supplier.ID,
		OrderDate:   time.Now().UTC(),
		Details: []models.NewPurchaseOrderDetail{
			{ProductId: product.ID, Qty: d("5"), CostPrice: d("2000")},
		},
	})
	if err != nil {
		t.Fatalf("CreatePurchaseOrder: %v", err)
	}

	_, err = workflow.ReceiveGoods(ctx, &workflow.GoodsReceiptInput{
		PurchaseOrderId: order.ID,
		Lines:           []workflow.ReceivedLine{{PurchaseItemId: order.Details[0].ID, ReceivedQty: d("-3")}},
	})
	if !errors.Is(err, utils.ErrorEmptyReceipt) {
		t.Fatalf("expected ErrorEmptyReceipt; got %v", err)
	}

	after, err := models.GetProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if !after.Stock.IsZero() {
		t.Fatalf("stock = %s; want 0", after.Stock)
	}
}

// Regression: cancellation follows the transition table. Pending cancels,
// Received does not, and a cancelled order accepts no receipts.
func TestPurchaseOrder_CancelLifecycle(t *testing.T) {
	ctx := setupPosIntegration(t)

	product, err := models.CreateProduct(ctx, &models.NewProduct{Sku: "MLK-001", Name: "Condensed Milk 390g"})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	supplier, err := models.CreateSupplier(ctx, &models.NewSupplier{Name: "Dairyland Ltd"})
	if err != nil {
		t.Fatalf("CreateSupplier: %v", err)
	}

	pending, err := models.CreatePurchaseOrder(ctx, &models.NewPurchaseOrder{
		OrderNumber: "PO-0003",
		SupplierId:  supplier.ID,
		OrderDate:   time.Now().UTC(),
		Details:     []models.NewPurchaseOrderDetail{{ProductId: product.ID, Qty: d("4"), CostPrice: d("1100")}},
	})
	if err != nil {
		t.Fatalf("CreatePurchaseOrder: %v", err)
	}
	cancelled, err := models.CancelPurchaseOrder(ctx, pending.ID)
	if err != nil {
		t.Fatalf("CancelPurchaseOrder: %v", err)
	}
	if cancelled.CurrentStatus != models.PurchaseOrderStatusCancelled {
		t.Fatalf("status = %s; want Cancelled", cancelled.CurrentStatus)
	}

	// No receipts against a cancelled order.
	_, err = workflow.ReceiveGoods(ctx, &workflow.GoodsReceiptInput{
		PurchaseOrderId: pending.ID,
		Lines:           []workflow.ReceivedLine{{PurchaseItemId: pending.Details[0].ID, ReceivedQty: d("1")}},
	})
	if err == nil {
		t.Fatal("expected error when receiving against a cancelled order")
	}

	// A partially received order cannot be cancelled.
	partial, err := models.CreatePurchaseOrder(ctx, &models.NewPurchaseOrder{
		OrderNumber: "PO-0004",
		SupplierId:  supplier.ID,
		OrderDate:   time.Now().UTC(),
		Details:     []models.NewPurchaseOrderDetail{{ProductId: product.ID, Qty: d("4"), CostPrice: d("1100")}},
	})
	if err != nil {
		t.Fatalf("CreatePurchaseOrder: %v", err)
	}
	if _, err := workflow.ReceiveGoods(ctx, &workflow.GoodsReceiptInput{
		PurchaseOrderId: partial.ID,
		Lines:           []workflow.ReceivedLine{{PurchaseItemId: partial.Details[0].ID, ReceivedQty: d("2")}},
	}); err != nil {
		t.Fatalf("ReceiveGoods: %v", err)
	}
	if _, err := models.CancelPurchaseOrder(ctx, partial.ID); err == nil {
		t.Fatal("expected error cancelling a partially received order")
	}
}

// Regression: duplicate order numbers are rejected per business.
func TestPurchaseOrder_DuplicateOrderNumber(t *testing.T) {
	ctx := setupPosIntegration(t)

	product, err := models.CreateProduct(ctx, &models.NewProduct{Sku: "SUG-001", Name: "Sugar 1kg"})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	supplier, err := models.CreateSupplier(ctx, &models.NewSupplier{Name: "Delta Commodities"})
	if err != nil {
		t.Fatalf("CreateSupplier: %v", err)
	}
	input := &models.NewPurchaseOrder{
		OrderNumber: "PO-0005",
		SupplierId:  supplier.ID,
		OrderDate:   time.Now().UTC(),
		Details:     []models.NewPurchaseOrderDetail{{ProductId: product.ID, Qty: d("1"), CostPrice: d("1800")}},
	}
	if _, err := models.CreatePurchaseOrder(ctx, input); err != nil {
		t.Fatalf("CreatePurchaseOrder: %v", err)
	}
	if _, err := models.CreatePurchaseOrder(ctx, input); !errors.Is(err, utils.ErrorDuplicateReference) {
		t.Fatalf("expected ErrorDuplicateReference; got %v", err)
	}
}

// Regression: two lines naming the same purchase item must fail up front.
// Each would clamp against the same outstanding quantity, so letting them
// through would post stock twice.
func TestGoodsReceipt_DuplicateLinesRejected(t *testing.T) {
	ctx := setupPosIntegration(t)

	product, err := models.CreateProduct(ctx, &models.NewProduct{
		Sku:       "RCE-001",
		Name:      "Jasmine Rice 5kg",
		CostPrice: d("9000"),
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	supplier, err := models.CreateSupplier(ctx, &models.NewSupplier{Name: "Ayeyarwady Mills"})
	if err != nil {
		t.Fatalf("CreateSupplier: %v", err)
	}
	order, err := models.CreatePurchaseOrder(ctx, &models.NewPurchaseOrder{
		OrderNumber: "PO-0010",
		SupplierId:  supplier.ID,
		OrderDate:   time.Now().UTC(),
		Details: []models.NewPurchaseOrderDetail{
			{ProductId: product.ID, Qty: d("10"), CostPrice: d("9000")},
		},
	})
	if err != nil {
		t.Fatalf("CreatePurchaseOrder: %v", err)
	}
	detailId := order.Details[0].ID

	_, err = workflow.ReceiveGoods(ctx, &workflow.GoodsReceiptInput{
		PurchaseOrderId: order.ID,
		Lines: []workflow.ReceivedLine{
			{PurchaseItemId: detailId, ReceivedQty: d("10")},
			{PurchaseItemId: detailId, ReceivedQty: d("10")},
		},
	})
	if err == nil {
		t.Fatal("expected error for duplicate receipt lines")
	}

	// Nothing posted: stock and the order are untouched.
	after, err := models.GetProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if !after.Stock.IsZero() {
		t.Fatalf("stock = %s; want 0", after.Stock)
	}
	reloaded, err := models.GetPurchaseOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("GetPurchaseOrder: %v", err)
	}
	if reloaded.CurrentStatus != models.PurchaseOrderStatusPending {
		t.Fatalf("order status = %s; want Pending", reloaded.CurrentStatus)
	}
	if !reloaded.Details[0].ReceivedQty.IsZero() {
		t.Fatalf("received qty = %s; want 0", reloaded.Details[0].ReceivedQty)
	}
}
