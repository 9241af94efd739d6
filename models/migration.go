package models

import (
	"log"

	"bitbucket.org/mmdatafocus/pos_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Product{}, &Customer{}, &Supplier{},
		&StockMovement{}, &CreditEntry{},
		&Bill{}, &BillItem{}, &BillSplitPayment{},
		&PurchaseOrder{}, &PurchaseOrderDetail{},
		&IdempotencyKey{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
