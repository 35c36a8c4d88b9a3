package admin

import (
	"strconv"
	"strings"

	"github.com/shipcycle/internal/constants"
	"github.com/shipcycle/internal/http/response"
	"github.com/shipcycle/internal/repository"

	"github.com/gin-gonic/gin"
)

// AdminListOrders 获取全量订单列表
func (h *Handler) AdminListOrders(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	filter := repository.OrderListFilter{
		Page:     page,
		PageSize: pageSize,
		Status:   strings.TrimSpace(c.Query("status")),
		OrderNo:  strings.TrimSpace(c.Query("order_no")),
	}
	if customerID, err := strconv.ParseUint(c.Query("customer_id"), 10, 64); err == nil && customerID > 0 {
		filter.CustomerID = uint(customerID)
	}

	orders, total, err := h.OrderService.ListAdminOrders(filter)
	if err != nil {
		respondError(c, response.CodeInternal, "order list failed", err)
		return
	}

	response.SuccessWithPage(c, orders, response.BuildPagination(page, pageSize, total))
}

// AdminGetOrder 获取订单详情
func (h *Handler) AdminGetOrder(c *gin.Context) {
	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	order, err := h.OrderService.GetOrder(orderID)
	if err != nil {
		respondLifecycleError(c, err, "order fetch failed")
		return
	}

	response.Success(c, order)
}

// AdminGetOrderTracking 获取订单完整轨迹
func (h *Handler) AdminGetOrderTracking(c *gin.Context) {
	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	events, err := h.OrderService.GetTrackingHistory(orderID)
	if err != nil {
		respondLifecycleError(c, err, "tracking fetch failed")
		return
	}

	response.Success(c, events)
}

// AdminConfirmOrder 管理员确认订单
func (h *Handler) AdminConfirmOrder(c *gin.Context) {
	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	order, err := h.OrderService.ConfirmOrder(orderID, constants.ActorAdmin)
	if err != nil {
		respondLifecycleError(c, err, "order update failed")
		return
	}

	response.Success(c, order)
}

// AdminCancelOrderRequest 管理员取消订单请求
type AdminCancelOrderRequest struct {
	Reason string `json:"reason"`
}

// AdminCancelOrder 管理员取消订单，仅发货前允许
func (h *Handler) AdminCancelOrder(c *gin.Context) {
	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req AdminCancelOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}

	order, err := h.OrderService.CancelOrder(orderID, constants.ActorAdmin, req.Reason)
	if err != nil {
		respondLifecycleError(c, err, "order update failed")
		return
	}

	response.Success(c, order)
}

// AdminListReturns 获取全量退货单列表
func (h *Handler) AdminListReturns(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	returns, total, err := h.ReturnService.ListReturns(repository.ReturnListFilter{
		Page:     page,
		PageSize: pageSize,
		Status:   strings.TrimSpace(c.Query("status")),
		ReturnNo: strings.TrimSpace(c.Query("return_no")),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "return list failed", err)
		return
	}

	response.SuccessWithPage(c, returns, response.BuildPagination(page, pageSize, total))
}

// AdminListRefunds 获取全量退款记录列表
func (h *Handler) AdminListRefunds(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	refunds, total, err := h.RefundService.ListRefunds(repository.RefundListFilter{
		Page:     page,
		PageSize: pageSize,
		Status:   strings.TrimSpace(c.Query("status")),
		Provider: strings.TrimSpace(c.Query("provider")),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "refund list failed", err)
		return
	}

	response.SuccessWithPage(c, refunds, response.BuildPagination(page, pageSize, total))
}

func parseIDParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "id invalid", nil)
		return 0, false
	}
	return uint(id), true
}
