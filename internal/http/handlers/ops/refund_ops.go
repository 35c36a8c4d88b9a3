package ops

import (
	"strconv"
	"strings"

	"github.com/shipcycle/internal/http/response"
	"github.com/shipcycle/internal/repository"

	"github.com/gin-gonic/gin"
)

// ListRefunds 获取退款记录列表
func (h *Handler) ListRefunds(c *gin.Context) {
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

// GetRefund 获取退款记录详情
func (h *Handler) GetRefund(c *gin.Context) {
	refundID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	refund, err := h.RefundService.GetRefund(refundID)
	if err != nil {
		respondLifecycleError(c, err, "refund fetch failed")
		return
	}

	response.Success(c, refund)
}

// ApproveRefund 审批通过退款并投递异步执行
func (h *Handler) ApproveRefund(c *gin.Context) {
	refundID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	refund, err := h.RefundService.ApproveRefund(refundID, getAccountRole(c))
	if err != nil {
		respondLifecycleError(c, err, "refund update failed")
		return
	}

	response.Success(c, refund)
}

// RejectRefundRequest 驳回退款请求
type RejectRefundRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// RejectRefund 驳回退款，必须给出理由
func (h *Handler) RejectRefund(c *gin.Context) {
	refundID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req RejectRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}

	refund, err := h.RefundService.RejectRefund(refundID, getAccountRole(c), req.Reason)
	if err != nil {
		respondLifecycleError(c, err, "refund update failed")
		return
	}

	response.Success(c, refund)
}

// RetryRefund 对失败退款发起重试
func (h *Handler) RetryRefund(c *gin.Context) {
	refundID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	refund, err := h.RefundService.RetryRefund(refundID, getAccountRole(c))
	if err != nil {
		respondLifecycleError(c, err, "refund update failed")
		return
	}

	response.Success(c, refund)
}
