package ops

import (
	"strconv"
	"strings"

	"github.com/shipcycle/internal/constants"
	"github.com/shipcycle/internal/http/response"
	"github.com/shipcycle/internal/repository"

	"github.com/gin-gonic/gin"
)

// ListOrders 获取运营侧订单列表。
// 配送员仅能看到指派给自己的订单，厂商可见全量。
func (h *Handler) ListOrders(c *gin.Context) {
	accountID, ok := getAccountID(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	filter := repository.OrderListFilter{
		Page:     page,
		PageSize: pageSize,
		Status:   strings.TrimSpace(c.Query("status")),
		OrderNo:  strings.TrimSpace(c.Query("order_no")),
	}
	if getAccountRole(c) == constants.ActorDeliveryPartner {
		filter.DeliveryAgentID = accountID
	}

	orders, total, err := h.OrderService.ListAgentOrders(filter)
	if err != nil {
		respondError(c, response.CodeInternal, "order list failed", err)
		return
	}

	response.SuccessWithPage(c, orders, response.BuildPagination(page, pageSize, total))
}

// GetOrder 获取订单详情
func (h *Handler) GetOrder(c *gin.Context) {
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

// StartProcessing 厂商开始备货
func (h *Handler) StartProcessing(c *gin.Context) {
	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	order, err := h.OrderService.StartProcessing(orderID, getAccountRole(c))
	if err != nil {
		respondLifecycleError(c, err, "order update failed")
		return
	}

	response.Success(c, order)
}

// DispatchRequest 发货请求
type DispatchRequest struct {
	AgentID uint `json:"agent_id"`
}

// Dispatch 订单发出配送。
// 配送员自提单时取本人账号为配送员；厂商派单时在请求体指定配送员。
func (h *Handler) Dispatch(c *gin.Context) {
	accountID, ok := getAccountID(c)
	if !ok {
		return
	}
	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req DispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}

	agentID := req.AgentID
	if getAccountRole(c) == constants.ActorDeliveryPartner {
		agentID = accountID
	}
	if agentID == 0 {
		respondError(c, response.CodeBadRequest, "agent id required", nil)
		return
	}

	order, err := h.OrderService.StartDelivery(orderID, agentID, getAccountRole(c))
	if err != nil {
		respondLifecycleError(c, err, "order update failed")
		return
	}

	response.Success(c, order)
}

// MarkNearLocation 配送员标记接近收货地点，触发签发送达口令
func (h *Handler) MarkNearLocation(c *gin.Context) {
	accountID, ok := getAccountID(c)
	if !ok {
		return
	}
	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	order, err := h.OrderService.MarkNearLocation(orderID, accountID, getAccountRole(c))
	if err != nil {
		respondLifecycleError(c, err, "order update failed")
		return
	}

	response.Success(c, order)
}

// CompleteDeliveryRequest 送达确认请求
type CompleteDeliveryRequest struct {
	Code string `json:"code" binding:"required"`
}

// CompleteDelivery 配送员凭客户口令确认送达
func (h *Handler) CompleteDelivery(c *gin.Context) {
	accountID, ok := getAccountID(c)
	if !ok {
		return
	}
	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req CompleteDeliveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}

	order, err := h.OrderService.CompleteDelivery(orderID, accountID, req.Code, getAccountRole(c))
	if err != nil {
		respondLifecycleError(c, err, "order update failed")
		return
	}

	response.Success(c, order)
}
