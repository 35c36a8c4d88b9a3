package public

import (
	"strconv"
	"strings"

	"github.com/shipcycle/internal/http/response"
	"github.com/shipcycle/internal/repository"
	"github.com/shipcycle/internal/service"

	"github.com/gin-gonic/gin"
)

// RequestReturnRequest 发起退货请求
type RequestReturnRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// RequestReturn 客户对已送达订单发起退货
func (h *Handler) RequestReturn(c *gin.Context) {
	customerID, ok := getCustomerID(c)
	if !ok {
		return
	}
	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req RequestReturnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}

	ret, err := h.ReturnService.RequestReturn(service.RequestReturnInput{
		OrderID:    orderID,
		CustomerID: customerID,
		Reason:     req.Reason,
	})
	if err != nil {
		respondReturnError(c, err)
		return
	}

	response.Success(c, ret)
}

// ListReturns 获取退货单列表
func (h *Handler) ListReturns(c *gin.Context) {
	customerID, ok := getCustomerID(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	returns, total, err := h.ReturnService.ListReturns(repository.ReturnListFilter{
		Page:       page,
		PageSize:   pageSize,
		CustomerID: customerID,
		Status:     strings.TrimSpace(c.Query("status")),
		ReturnNo:   strings.TrimSpace(c.Query("return_no")),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "return list failed", err)
		return
	}

	response.SuccessWithPage(c, returns, response.BuildPagination(page, pageSize, total))
}

// GetReturn 获取退货单详情
func (h *Handler) GetReturn(c *gin.Context) {
	customerID, ok := getCustomerID(c)
	if !ok {
		return
	}
	returnID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	ret, err := h.ReturnService.GetReturnForCustomer(returnID, customerID)
	if err != nil {
		respondReturnError(c, err)
		return
	}

	response.Success(c, ret)
}

// CancelReturn 客户撤销退货申请，仅审核前允许
func (h *Handler) CancelReturn(c *gin.Context) {
	customerID, ok := getCustomerID(c)
	if !ok {
		return
	}
	returnID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	ret, err := h.ReturnService.CancelReturn(returnID, customerID)
	if err != nil {
		respondReturnError(c, err)
		return
	}

	response.Success(c, ret)
}

// GetReturnRefund 查询退货单关联的退款记录
func (h *Handler) GetReturnRefund(c *gin.Context) {
	customerID, ok := getCustomerID(c)
	if !ok {
		return
	}
	returnID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if _, err := h.ReturnService.GetReturnForCustomer(returnID, customerID); err != nil {
		respondReturnError(c, err)
		return
	}

	refund, err := h.RefundService.GetRefundByReturn(returnID)
	if err != nil {
		respondReturnError(c, err)
		return
	}

	response.Success(c, refund)
}
