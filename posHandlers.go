package main

import (
	"errors"
	"net/http"
	"strconv"

	"bitbucket.org/mmdatafocus/pos_backend/models"
	"bitbucket.org/mmdatafocus/pos_backend/utils"
	"bitbucket.org/mmdatafocus/pos_backend/workflow"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// respondError maps the workflow/model error taxonomy onto HTTP statuses.
// Typed business errors carry enough detail for the terminal to show a
// meaningful message (how much stock is left, how short the payment is).
func respondError(c *gin.Context, err error) {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": utils.ProcessValidationErrors(err)})
		return
	}

	var stockErr *utils.InsufficientStockError
	if errors.As(err, &stockErr) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":      stockErr.Error(),
			"product_id": stockErr.ProductId,
			"requested":  stockErr.Requested,
			"available":  stockErr.Available,
		})
		return
	}
	var payErr *utils.InsufficientPaymentError
	if errors.As(err, &payErr) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": payErr.Error(),
			"total": payErr.Total,
			"paid":  payErr.Paid,
		})
		return
	}
	var creditErr *utils.CreditLimitExceededError
	if errors.As(err, &creditErr) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":        creditErr.Error(),
			"customer_id":  creditErr.CustomerId,
			"balance":      creditErr.Balance,
			"amount":       creditErr.Amount,
			"credit_limit": creditErr.CreditLimit,
		})
		return
	}
	var overErr *utils.OverpaymentError
	if errors.As(err, &overErr) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":       overErr.Error(),
			"customer_id": overErr.CustomerId,
			"balance":     overErr.Balance,
			"amount":      overErr.Amount,
		})
		return
	}

	switch {
	case errors.Is(err, utils.ErrorRecordNotFound),
		errors.Is(err, utils.ErrorBillNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, utils.ErrorDuplicateReference),
		errors.Is(err, workflow.ErrIdempotencyInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}

func pathId(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func posCheckoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.PosCheckoutInput
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, err)
			return
		}
		bill, err := workflow.SettleBill(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
		c.JSON(http.StatusCreated, gin.H{
			"bill":           bill,
			"correlation_id": cid,
		})
	}
}

func holdBillHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.PosCheckoutInput
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, err)
			return
		}
		bill, err := models.HoldBill(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"bill": bill})
	}
}

func heldBillsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		bills, err := models.GetHeldBills(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"bills": bills})
	}
}

func processReturnHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input workflow.ReturnInput
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, err)
			return
		}
		returnBill, err := workflow.ProcessReturn(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
		c.JSON(http.StatusCreated, gin.H{
			"bill":           returnBill,
			"correlation_id": cid,
		})
	}
}

func listBillsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var status *models.BillStatus
		if s := c.Query("status"); s != "" {
			switch models.BillStatus(s) {
			case models.BillStatusHeld, models.BillStatusCompleted, models.BillStatusRefunded:
				bs := models.BillStatus(s)
				status = &bs
			default:
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid bill status"})
				return
			}
		}
		limit := 0
		if v := c.Query("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				limit = n
			}
		}
		bills, err := models.GetBills(c.Request.Context(), status, limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"bills": bills})
	}
}

func getBillHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		bill, err := models.GetBill(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"bill": bill})
	}
}
