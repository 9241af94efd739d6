package main

import (
	"net/http"
	"time"

	"bitbucket.org/mmdatafocus/pos_backend/models"
	"bitbucket.org/mmdatafocus/pos_backend/utils"
	"bitbucket.org/mmdatafocus/pos_backend/workflow"
	"github.com/gin-gonic/gin"
)

func createProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewProduct
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, err)
			return
		}
		product, err := models.CreateProduct(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"product": product})
	}
}

func updateProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var input models.NewProduct
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, err)
			return
		}
		product, err := models.UpdateProduct(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"product": product})
	}
}

func getProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		product, err := models.GetProduct(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"product": product})
	}
}

func listProductsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var query *string
		if q := c.Query("q"); q != "" {
			query = &q
		}
		products, err := models.GetProducts(c.Request.Context(), query)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"products": products})
	}
}

func reorderProductsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		products, err := models.GetReorderProducts(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"products": products})
	}
}

func stockMovementsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		movements, err := models.GetStockMovements(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"movements": movements})
	}
}

func createCustomerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewCustomer
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, err)
			return
		}
		customer, err := models.CreateCustomer(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"customer": customer})
	}
}

func updateCustomerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var input models.NewCustomer
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, err)
			return
		}
		customer, err := models.UpdateCustomer(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"customer": customer})
	}
}

func getCustomerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		customer, err := models.GetCustomer(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"customer": customer})
	}
}

func listCustomersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var query *string
		if q := c.Query("q"); q != "" {
			query = &q
		}
		customers, err := models.GetCustomers(c.Request.Context(), query)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"customers": customers})
	}
}

func creditEntriesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		entries, err := models.GetCreditEntries(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"entries": entries})
	}
}

type creditPaymentRequest struct {
	Amount string `json:"amount" binding:"required"`
}

func creditPaymentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var req creditPaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, err)
			return
		}
		amount, err := utils.ParseDecimal(req.Amount)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
			return
		}
		entry, err := models.RecordCreditPayment(c.Request.Context(), id, amount)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"entry": entry})
	}
}

func createSupplierHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewSupplier
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, err)
			return
		}
		supplier, err := models.CreateSupplier(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"supplier": supplier})
	}
}

func updateSupplierHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var input models.NewSupplier
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, err)
			return
		}
		supplier, err := models.UpdateSupplier(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"supplier": supplier})
	}
}

func getSupplierHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		supplier, err := models.GetSupplier(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"supplier": supplier})
	}
}

func listSuppliersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var name *string
		if q := c.Query("q"); q != "" {
			name = &q
		}
		suppliers, err := models.GetSuppliers(c.Request.Context(), name)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"suppliers": suppliers})
	}
}

func createPurchaseOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewPurchaseOrder
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, err)
			return
		}
		order, err := models.CreatePurchaseOrder(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"purchase_order": order})
	}
}

func listPurchaseOrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var status *models.PurchaseOrderStatus
		if s := c.Query("status"); s != "" {
			switch models.PurchaseOrderStatus(s) {
			case models.PurchaseOrderStatusPending, models.PurchaseOrderStatusReceived,
				models.PurchaseOrderStatusCompleted, models.PurchaseOrderStatusCancelled:
				ps := models.PurchaseOrderStatus(s)
				status = &ps
			default:
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid purchase order status"})
				return
			}
		}
		orders, err := models.GetPurchaseOrders(c.Request.Context(), status)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"purchase_orders": orders})
	}
}

func getPurchaseOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		order, err := models.GetPurchaseOrder(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"purchase_order": order})
	}
}

func cancelPurchaseOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		order, err := models.CancelPurchaseOrder(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"purchase_order": order})
	}
}

type receiveGoodsRequest struct {
	Lines        []workflow.ReceivedLine `json:"lines" binding:"required,dive"`
	ReceivedDate time.Time               `json:"received_date"`
}

func receiveGoodsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var req receiveGoodsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, err)
			return
		}
		input := workflow.GoodsReceiptInput{
			PurchaseOrderId: id,
			Lines:           req.Lines,
			ReceivedDate:    req.ReceivedDate,
		}
		order, err := workflow.ReceiveGoods(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{
			"purchase_order": order,
			"correlation_id": cid,
		})
	}
}

func stockConsistencyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		drifts, err := workflow.CheckStockConsistency(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"consistent": len(drifts) == 0,
			"drifts":     drifts,
		})
	}
}

func stockRebuildHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		repaired, err := workflow.RebuildStockCache(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"repaired": repaired})
	}
}
