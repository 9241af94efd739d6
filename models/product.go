package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/pos_backend/config"
	"bitbucket.org/mmdatafocus/pos_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Product struct {
	ID           int             `gorm:"primary_key" json:"id"`
	BusinessId   string          `gorm:"size:64;index:uniq_product_sku,unique;not null" json:"business_id"`
	Sku          string          `gorm:"size:100;index:uniq_product_sku,unique;not null" json:"sku" binding:"required"`
	Barcode      string          `gorm:"index;size:100;default:null" json:"barcode"`
	Name         string          `gorm:"size:100;not null" json:"name" binding:"required"`
	Unit         string          `gorm:"size:20;default:pcs" json:"unit"`
	CostPrice    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"cost_price"`
	SellingPrice decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"selling_price"`
	// Stock is the cached on-hand quantity; stock_movements is the source of
	// truth. The two are kept in step inside every posting transaction.
	Stock        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"stock"`
	ReorderLevel decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"reorder_level"`
	IsActive     *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProduct struct {
	Sku          string          `json:"sku" binding:"required"`
	Barcode      string          `json:"barcode"`
	Name         string          `json:"name" binding:"required"`
	Unit         string          `json:"unit"`
	CostPrice    decimal.Decimal `json:"cost_price"`
	SellingPrice decimal.Decimal `json:"selling_price"`
	ReorderLevel decimal.Decimal `json:"reorder_level"`
	OpeningStock decimal.Decimal `json:"opening_stock"`
	IsActive     *bool           `json:"is_active"`
}

func (input NewProduct) validate(ctx context.Context, businessId string, id int) error {
	if input.SellingPrice.IsNegative() || input.CostPrice.IsNegative() {
		return errors.New("prices cannot be negative")
	}
	if input.OpeningStock.IsNegative() {
		return errors.New("opening stock cannot be negative")
	}
	count, err := utils.ResourceCountWhere[Product](ctx, businessId, "sku = ? AND id != ?", input.Sku, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return errors.New("sku already in use")
	}
	return nil
}

func CreateProduct(ctx context.Context, input *NewProduct) (*Product, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	db := config.GetDB()

	product := Product{
		BusinessId:   businessId,
		Sku:          input.Sku,
		Barcode:      input.Barcode,
		Name:         input.Name,
		Unit:         input.Unit,
		CostPrice:    input.CostPrice,
		SellingPrice: input.SellingPrice,
		ReorderLevel: input.ReorderLevel,
		IsActive:     input.IsActive,
	}
	if product.Unit == "" {
		product.Unit = "pcs"
	}
	if product.IsActive == nil {
		product.IsActive = utils.NewTrue()
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&product).Error; err != nil {
			if utils.IsDuplicateKeyErr(err) {
				return utils.ErrorDuplicateReference
			}
			return err
		}
		if input.OpeningStock.IsPositive() {
			_, err := ApplyStockMovement(tx, ctx, businessId, product.ID,
				StockMovementKindAdjustment, input.OpeningStock, ReferenceTypeAdjustment, product.ID)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &product, nil
}

func UpdateProduct(ctx context.Context, id int, input *NewProduct) (*Product, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, id); err != nil {
		return nil, err
	}

	product, err := utils.FetchModel[Product](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	// Stock is deliberately absent here: it only moves through the ledger.
	err = db.WithContext(ctx).Model(product).
		Updates(map[string]interface{}{
			"Sku":          input.Sku,
			"Barcode":      input.Barcode,
			"Name":         input.Name,
			"Unit":         input.Unit,
			"CostPrice":    input.CostPrice,
			"SellingPrice": input.SellingPrice,
			"ReorderLevel": input.ReorderLevel,
			"IsActive":     input.IsActive,
		}).Error
	if err != nil {
		return nil, err
	}

	return product, nil
}

func GetProduct(ctx context.Context, id int) (*Product, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	return utils.FetchModel[Product](ctx, businessId, id)
}

// GetProducts searches products by sku, barcode or name prefix.
func GetProducts(ctx context.Context, query *string) ([]*Product, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if query != nil && *query != "" {
		like := *query + "%"
		dbCtx = dbCtx.Where("sku = ? OR barcode = ? OR name LIKE ?", *query, *query, like)
	}

	var products []*Product
	err := dbCtx.Order("name").Limit(config.SearchLimit).Find(&products).Error
	if err != nil {
		return nil, err
	}
	return products, nil
}

// GetReorderProducts lists active products at or below their reorder level.
func GetReorderProducts(ctx context.Context) ([]*Product, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	var products []*Product
	err := db.WithContext(ctx).
		Where("business_id = ? AND is_active = ? AND stock <= reorder_level", businessId, true).
		Order("name").
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	return products, nil
}

// getProductForUpdate locks the product row for the rest of the transaction.
// Every stock read used for an invariant check must come through here so the
// check and the write see the same row version.
func getProductForUpdate(tx *gorm.DB, businessId string, productId int) (*Product, error) {
	var product Product
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("business_id = ?", businessId).
		First(&product, productId).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &product, nil
}
