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

type Customer struct {
	ID          int             `gorm:"primary_key" json:"id"`
	BusinessId  string          `gorm:"size:64;index;not null" json:"business_id"`
	Name        string          `gorm:"size:100;not null" json:"name" binding:"required"`
	Phone       string          `gorm:"size:20;index;default:null" json:"phone"`
	Email       string          `gorm:"size:100;default:null" json:"email"`
	CreditLimit decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"credit_limit"`
	// CurrentCredit is the cached outstanding balance; credit_entries is the
	// source of truth. 0 <= current_credit <= credit_limit always.
	CurrentCredit decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"current_credit"`
	LoyaltyPoints int             `gorm:"default:0" json:"loyalty_points"`
	MemberLevel   MemberLevel     `gorm:"type:enum('Standard','Silver','Gold');default:Standard" json:"member_level"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewCustomer struct {
	Name          string          `json:"name" binding:"required"`
	Phone         string          `json:"phone"`
	Email         string          `json:"email"`
	CreditLimit   decimal.Decimal `json:"credit_limit"`
	LoyaltyPoints int             `json:"loyalty_points"`
	MemberLevel   MemberLevel     `json:"member_level"`
}

func (input NewCustomer) validate(ctx context.Context, businessId string, _ int) error {
	if input.CreditLimit.IsNegative() {
		return errors.New("credit limit cannot be negative")
	}
	return nil
}

func CreateCustomer(ctx context.Context, input *NewCustomer) (*Customer, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	customer := Customer{
		BusinessId:    businessId,
		Name:          input.Name,
		Phone:         input.Phone,
		Email:         input.Email,
		CreditLimit:   input.CreditLimit,
		LoyaltyPoints: input.LoyaltyPoints,
		MemberLevel:   input.MemberLevel,
	}
	if customer.MemberLevel == "" {
		customer.MemberLevel = MemberLevelStandard
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&customer).Error; err != nil {
		return nil, err
	}

	return &customer, nil
}

func UpdateCustomer(ctx context.Context, id int, input *NewCustomer) (*Customer, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, id); err != nil {
		return nil, err
	}

	customer, err := utils.FetchModel[Customer](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	// Lowering the limit below the outstanding balance would break the
	// balance invariant for every future charge check.
	if input.CreditLimit.LessThan(customer.CurrentCredit) {
		return nil, errors.New("credit limit cannot be below the outstanding balance")
	}

	db := config.GetDB()
	// CurrentCredit moves only through the credit ledger.
	err = db.WithContext(ctx).Model(customer).
		Updates(map[string]interface{}{
			"Name":          input.Name,
			"Phone":         input.Phone,
			"Email":         input.Email,
			"CreditLimit":   input.CreditLimit,
			"LoyaltyPoints": input.LoyaltyPoints,
			"MemberLevel":   input.MemberLevel,
		}).Error
	if err != nil {
		return nil, err
	}

	return customer, nil
}

func GetCustomer(ctx context.Context, id int) (*Customer, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	return utils.FetchModel[Customer](ctx, businessId, id)
}

func GetCustomers(ctx context.Context, query *string) ([]*Customer, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if query != nil && *query != "" {
		like := *query + "%"
		dbCtx = dbCtx.Where("phone = ? OR name LIKE ?", *query, like)
	}

	var customers []*Customer
	err := dbCtx.Order("name").Limit(config.SearchLimit).Find(&customers).Error
	if err != nil {
		return nil, err
	}
	return customers, nil
}

// getCustomerForUpdate locks the customer row for the rest of the
// transaction so balance checks and the balance write are one unit.
func getCustomerForUpdate(tx *gorm.DB, businessId string, customerId int) (*Customer, error) {
	var customer Customer
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("business_id = ?", businessId).
		First(&customer, customerId).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &customer, nil
}
