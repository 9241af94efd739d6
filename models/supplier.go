package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/pos_backend/config"
	"bitbucket.org/mmdatafocus/pos_backend/utils"
)

type Supplier struct {
	ID         int       `gorm:"primary_key" json:"id"`
	BusinessId string    `gorm:"size:64;index;not null" json:"business_id"`
	Name       string    `gorm:"size:100;not null" json:"name" binding:"required"`
	Phone      string    `gorm:"size:20;default:null" json:"phone"`
	Email      string    `gorm:"size:100;default:null" json:"email"`
	Address    string    `gorm:"type:text" json:"address"`
	IsActive   *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewSupplier struct {
	Name     string `json:"name" binding:"required"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	Address  string `json:"address"`
	IsActive *bool  `json:"is_active"`
}

func CreateSupplier(ctx context.Context, input *NewSupplier) (*Supplier, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	supplier := Supplier{
		BusinessId: businessId,
		Name:       input.Name,
		Phone:      input.Phone,
		Email:      input.Email,
		Address:    input.Address,
		IsActive:   input.IsActive,
	}
	if supplier.IsActive == nil {
		supplier.IsActive = utils.NewTrue()
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&supplier).Error; err != nil {
		return nil, err
	}

	return &supplier, nil
}

func UpdateSupplier(ctx context.Context, id int, input *NewSupplier) (*Supplier, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	supplier, err := utils.FetchModel[Supplier](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(supplier).
		Updates(map[string]interface{}{
			"Name":     input.Name,
			"Phone":    input.Phone,
			"Email":    input.Email,
			"Address":  input.Address,
			"IsActive": input.IsActive,
		}).Error
	if err != nil {
		return nil, err
	}

	return supplier, nil
}

func GetSupplier(ctx context.Context, id int) (*Supplier, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	return utils.FetchModel[Supplier](ctx, businessId, id)
}

func GetSuppliers(ctx context.Context, name *string) ([]*Supplier, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if name != nil && *name != "" {
		dbCtx = dbCtx.Where("name LIKE ?", *name+"%")
	}

	var suppliers []*Supplier
	err := dbCtx.Order("name").Limit(config.SearchLimit).Find(&suppliers).Error
	if err != nil {
		return nil, err
	}
	return suppliers, nil
}
