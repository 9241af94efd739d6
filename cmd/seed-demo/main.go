// seed-demo loads a small demo catalog into one business: a handful of
// products with opening stock, two credit customers, a supplier and an open
// purchase order. Safe to rerun; existing rows are left alone.
//
// Usage (from backend directory):
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-demo --business-id demo
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/pos_backend/config"
	"bitbucket.org/mmdatafocus/pos_backend/models"
	"bitbucket.org/mmdatafocus/pos_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func main() {
	businessID := flag.String("business-id", "demo", "Business id to seed")
	flag.Parse()

	if strings.TrimSpace(*businessID) == "" {
		fmt.Fprintln(os.Stderr, "--business-id is required")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	models.MigrateTable()

	ctx := utils.SetBusinessIdInContext(context.Background(), strings.TrimSpace(*businessID))
	ctx = utils.SetUserNameInContext(ctx, "SeedDemo")

	products := []models.NewProduct{
		{Sku: "COF-001", Barcode: "8850001000011", Name: "Arabica Coffee 250g", Unit: "pcs", CostPrice: decimal.NewFromInt(4500), SellingPrice: decimal.NewFromInt(6500), OpeningStock: decimal.NewFromInt(40), ReorderLevel: decimal.NewFromInt(10)},
		{Sku: "TEA-001", Barcode: "8850001000028", Name: "Green Tea 100g", Unit: "pcs", CostPrice: decimal.NewFromInt(2000), SellingPrice: decimal.NewFromInt(3200), OpeningStock: decimal.NewFromInt(60), ReorderLevel: decimal.NewFromInt(15)},
		{Sku: "MLK-001", Barcode: "8850001000035", Name: "Condensed Milk 390g", Unit: "can", CostPrice: decimal.NewFromInt(1100), SellingPrice: decimal.NewFromInt(1600), OpeningStock: decimal.NewFromInt(120), ReorderLevel: decimal.NewFromInt(24)},
		{Sku: "SUG-001", Name: "Sugar 1kg", Unit: "bag", CostPrice: decimal.NewFromInt(1800), SellingPrice: decimal.NewFromInt(2500), OpeningStock: decimal.NewFromInt(80), ReorderLevel: decimal.NewFromInt(20)},
	}
	for _, p := range products {
		created, err := models.CreateProduct(ctx, &p)
		if err != nil {
			if isAlreadySeeded(err) {
				fmt.Printf("product %s already exists; skipping\n", p.Sku)
				continue
			}
			fmt.Fprintf(os.Stderr, "seed product %s: %v\n", p.Sku, err)
			os.Exit(1)
		}
		fmt.Printf("created product %d %s (opening stock %s)\n", created.ID, created.Sku, p.OpeningStock)
	}

	customers := []models.NewCustomer{
		{Name: "Aye Aye Khine", Phone: "09790001111", CreditLimit: decimal.NewFromInt(100000), MemberLevel: models.MemberLevelGold},
		{Name: "Ko Min Thant", Phone: "09790002222", CreditLimit: decimal.NewFromInt(50000), MemberLevel: models.MemberLevelStandard},
	}
	for _, cu := range customers {
		if exists, err := rowExists(ctx, db, &models.Customer{}, *businessID, "phone = ?", cu.Phone); err != nil {
			fmt.Fprintf(os.Stderr, "lookup customer %s: %v\n", cu.Name, err)
			os.Exit(1)
		} else if exists {
			fmt.Printf("customer %s already exists; skipping\n", cu.Name)
			continue
		}
		created, err := models.CreateCustomer(ctx, &cu)
		if err != nil {
			fmt.Fprintf(os.Stderr, "seed customer %s: %v\n", cu.Name, err)
			os.Exit(1)
		}
		fmt.Printf("created customer %d %s (limit %s)\n", created.ID, created.Name, cu.CreditLimit)
	}

	supplierInput := models.NewSupplier{Name: "Golden Valley Trading", Phone: "092001111", Address: "Yangon"}
	var supplier *models.Supplier
	if exists, err := rowExists(ctx, db, &models.Supplier{}, *businessID, "name = ?", supplierInput.Name); err != nil {
		fmt.Fprintf(os.Stderr, "lookup supplier: %v\n", err)
		os.Exit(1)
	} else if !exists {
		supplier, err = models.CreateSupplier(ctx, &supplierInput)
		if err != nil {
			fmt.Fprintf(os.Stderr, "seed supplier: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("created supplier %d %s\n", supplier.ID, supplier.Name)
	} else {
		fmt.Printf("supplier %s already exists; skipping\n", supplierInput.Name)
	}

	if supplier != nil {
		var coffee models.Product
		err := db.WithContext(ctx).Where("business_id = ? AND sku = ?", *businessID, "COF-001").First(&coffee).Error
		if err != nil {
			fmt.Fprintf(os.Stderr, "lookup seeded product: %v\n", err)
			os.Exit(1)
		}
		po := models.NewPurchaseOrder{
			OrderNumber: "PO-DEMO-0001",
			SupplierId:  supplier.ID,
			OrderDate:   time.Now().UTC(),
			Notes:       "Demo replenishment order",
			Details: []models.NewPurchaseOrderDetail{
				{ProductId: coffee.ID, Qty: decimal.NewFromInt(25), CostPrice: decimal.NewFromInt(4400)},
			},
		}
		created, err := models.CreatePurchaseOrder(ctx, &po)
		if err != nil {
			if isAlreadySeeded(err) {
				fmt.Println("purchase order PO-DEMO-0001 already exists; skipping")
			} else {
				fmt.Fprintf(os.Stderr, "seed purchase order: %v\n", err)
				os.Exit(1)
			}
		} else {
			fmt.Printf("created purchase order %d %s\n", created.ID, created.OrderNumber)
		}
	}

	fmt.Println("demo seed complete")
}

func isAlreadySeeded(err error) bool {
	return errors.Is(err, utils.ErrorDuplicateReference) ||
		utils.IsDuplicateKeyErr(err) ||
		strings.Contains(err.Error(), "already exists")
}

func rowExists(ctx context.Context, db *gorm.DB, model interface{}, businessId string, query string, args ...interface{}) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Model(model).
		Where("business_id = ?", businessId).
		Where(query, args...).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
