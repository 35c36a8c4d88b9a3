package public

import (
	"strconv"
	"strings"

	"github.com/shipcycle/internal/constants"
	"github.com/shipcycle/internal/http/response"
	"github.com/shipcycle/internal/models"
	"github.com/shipcycle/internal/repository"
	"github.com/shipcycle/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// OrderItemRequest 订单项请求
type OrderItemRequest struct {
	ProductName string      `json:"product_name" binding:"required"`
	SKU         string      `json:"sku"`
	Attributes  models.JSON `json:"attributes"`
	Tags        []string    `json:"tags"`
	UnitPrice   string      `json:"unit_price" binding:"required"`
	Quantity    int         `json:"quantity" binding:"required"`
}

// CreateOrderRequest 创建订单请求
type CreateOrderRequest struct {
	Items           []OrderItemRequest `json:"items" binding:"required"`
	DeliveryAddress string             `json:"delivery_address" binding:"required"`
	ContactPhone    string             `json:"contact_phone"`
	ContactEmail    string             `json:"contact_email"`
	Currency        string             `json:"currency"`
}

// CreateOrder 创建订单
func (h *Handler) CreateOrder(c *gin.Context) {
	customerID, ok := getCustomerID(c)
	if !ok {
		return
	}

	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}

	items := make([]service.CreateOrderItem, 0, len(req.Items))
	for _, item := range req.Items {
		unitPrice, err := decimal.NewFromString(strings.TrimSpace(item.UnitPrice))
		if err != nil {
			respondError(c, response.CodeBadRequest, "unit price invalid", nil)
			return
		}
		items = append(items, service.CreateOrderItem{
			ProductName: item.ProductName,
			SKU:         item.SKU,
			Attributes:  item.Attributes,
			Tags:        item.Tags,
			UnitPrice:   unitPrice,
			Quantity:    item.Quantity,
		})
	}

	order, err := h.OrderService.CreateOrder(service.CreateOrderInput{
		CustomerID:      customerID,
		DeliveryAddress: req.DeliveryAddress,
		ContactPhone:    req.ContactPhone,
		ContactEmail:    req.ContactEmail,
		Currency:        req.Currency,
		Items:           items,
	})
	if err != nil {
		respondOrderError(c, err)
		return
	}

	response.Success(c, order)
}

// ListOrders 获取订单列表
func (h *Handler) ListOrders(c *gin.Context) {
	customerID, ok := getCustomerID(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	orders, total, err := h.OrderService.ListCustomerOrders(repository.OrderListFilter{
		Page:       page,
		PageSize:   pageSize,
		CustomerID: customerID,
		Status:     strings.TrimSpace(c.Query("status")),
		OrderNo:    strings.TrimSpace(c.Query("order_no")),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "order list failed", err)
		return
	}

	response.SuccessWithPage(c, orders, response.BuildPagination(page, pageSize, total))
}

// GetOrder 获取订单详情
func (h *Handler) GetOrder(c *gin.Context) {
	customerID, ok := getCustomerID(c)
	if !ok {
		return
	}
	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	order, err := h.OrderService.GetOrderForCustomer(orderID, customerID)
	if err != nil {
		respondOrderError(c, err)
		return
	}

	response.Success(c, order)
}

// CancelOrder 客户取消订单，仅发货前允许
func (h *Handler) CancelOrder(c *gin.Context) {
	customerID, ok := getCustomerID(c)
	if !ok {
		return
	}
	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}

	if _, err := h.OrderService.GetOrderForCustomer(orderID, customerID); err != nil {
		respondOrderError(c, err)
		return
	}

	order, err := h.OrderService.CancelOrder(orderID, constants.ActorCustomer, req.Reason)
	if err != nil {
		respondOrderError(c, err)
		return
	}

	response.Success(c, order)
}

// GetOrderTracking 获取订单轨迹快照
func (h *Handler) GetOrderTracking(c *gin.Context) {
	customerID, ok := getCustomerID(c)
	if !ok {
		return
	}
	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if _, err := h.OrderService.GetOrderForCustomer(orderID, customerID); err != nil {
		respondOrderError(c, err)
		return
	}

	snapshot, err := h.OrderService.GetTrackingSnapshot(c.Request.Context(), orderID)
	if err != nil {
		respondOrderError(c, err)
		return
	}

	response.Success(c, snapshot)
}

func parseIDParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "id invalid", nil)
		return 0, false
	}
	return uint(id), true
}
