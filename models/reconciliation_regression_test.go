package models_test

import (
	"testing"

	"bitbucket.org/mmdatafocus/pos_backend/config"
	"bitbucket.org/mmdatafocus/pos_backend/models"
	"bitbucket.org/mmdatafocus/pos_backend/workflow"
)

// Regression: the consistency check reports cached stock that drifted from
// the movements ledger, and the rebuild repairs it from the ledger.
func TestStockReconciliation_DetectsAndRepairsDrift(t *testing.T) {
	ctx := setupPosIntegration(t)

	product, err := models.CreateProduct(ctx, &models.NewProduct{
		Sku:          "COF-001",
		Name:         "Arabica Coffee 250g",
		OpeningStock: d("10"),
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}

	drifts, err := workflow.CheckStockConsistency(ctx)
	if err != nil {
		t.Fatalf("CheckStockConsistency: %v", err)
	}
	if len(drifts) != 0 {
		t.Fatalf("expected no drift on a fresh product; got %+v", drifts)
	}

	// Corrupt the cache behind the ledger's back.
	db := config.GetDB()
	err = db.Model(&models.Product{}).
		Where("id = ?", product.ID).
		Update("stock", d("99")).Error
	if err != nil {
		t.Fatalf("corrupt cached stock: %v", err)
	}

	drifts, err = workflow.CheckStockConsistency(ctx)
	if err != nil {
		t.Fatalf("CheckStockConsistency: %v", err)
	}
	if len(drifts) != 1 {
		t.Fatalf("got %d drifts; want 1", len(drifts))
	}
	if !drifts[0].CachedStock.Equal(d("99")) || !drifts[0].LedgerStock.Equal(d("10")) {
		t.Fatalf("drift cached/ledger = %s/%s; want 99/10", drifts[0].CachedStock, drifts[0].LedgerStock)
	}

	repaired, err := workflow.RebuildStockCache(ctx)
	if err != nil {
		t.Fatalf("RebuildStockCache: %v", err)
	}
	if repaired != 1 {
		t.Fatalf("repaired %d products; want 1", repaired)
	}

	after, err := models.GetProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if !after.Stock.Equal(d("10")) {
		t.Fatalf("stock after rebuild = %s; want 10", after.Stock)
	}

	drifts, err = workflow.CheckStockConsistency(ctx)
	if err != nil {
		t.Fatalf("CheckStockConsistency after rebuild: %v", err)
	}
	if len(drifts) != 0 {
		t.Fatalf("expected no drift after rebuild; got %+v", drifts)
	}
}
