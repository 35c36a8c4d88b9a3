package ops

import (
	"strconv"
	"strings"
	"time"

	"github.com/shipcycle/internal/http/response"
	"github.com/shipcycle/internal/repository"
	"github.com/shipcycle/internal/service"

	"github.com/gin-gonic/gin"
)

// ListReturns 获取运营侧退货单列表
func (h *Handler) ListReturns(c *gin.Context) {
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

// GetReturn 获取退货单详情
func (h *Handler) GetReturn(c *gin.Context) {
	returnID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	ret, err := h.ReturnService.GetReturn(returnID)
	if err != nil {
		respondLifecycleError(c, err, "return fetch failed")
		return
	}

	response.Success(c, ret)
}

// ApproveReturnRequest 审核通过退货请求，必须同时安排取件
type ApproveReturnRequest struct {
	PickupDate time.Time `json:"pickup_date" binding:"required"`
	PickupSlot string    `json:"pickup_slot" binding:"required"`
}

// ApproveReturn 厂商审核通过退货申请
func (h *Handler) ApproveReturn(c *gin.Context) {
	returnID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req ApproveReturnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}

	ret, err := h.ReturnService.ApproveReturn(returnID, getAccountRole(c), service.PickupSchedule{
		Date: req.PickupDate,
		Slot: req.PickupSlot,
	})
	if err != nil {
		respondLifecycleError(c, err, "return update failed")
		return
	}

	response.Success(c, ret)
}

// RejectReturnRequest 驳回退货请求
type RejectReturnRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// RejectReturn 厂商驳回退货申请，必须给出理由
func (h *Handler) RejectReturn(c *gin.Context) {
	returnID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req RejectReturnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}

	ret, err := h.ReturnService.RejectReturn(returnID, getAccountRole(c), req.Reason)
	if err != nil {
		respondLifecycleError(c, err, "return update failed")
		return
	}

	response.Success(c, ret)
}

// StartPickup 配送员上门取件
func (h *Handler) StartPickup(c *gin.Context) {
	accountID, ok := getAccountID(c)
	if !ok {
		return
	}
	returnID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	ret, err := h.ReturnService.StartPickup(returnID, accountID, getAccountRole(c))
	if err != nil {
		respondLifecycleError(c, err, "return update failed")
		return
	}

	response.Success(c, ret)
}

// MarkPickupNearLocation 配送员标记接近取件地点
func (h *Handler) MarkPickupNearLocation(c *gin.Context) {
	accountID, ok := getAccountID(c)
	if !ok {
		return
	}
	returnID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	ret, err := h.ReturnService.MarkPickupNearLocation(returnID, accountID, getAccountRole(c))
	if err != nil {
		respondLifecycleError(c, err, "return update failed")
		return
	}

	response.Success(c, ret)
}

// GeneratePickupOTP 签发取件口令
func (h *Handler) GeneratePickupOTP(c *gin.Context) {
	accountID, ok := getAccountID(c)
	if !ok {
		return
	}
	returnID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	ret, err := h.ReturnService.GeneratePickupOTP(returnID, accountID, getAccountRole(c))
	if err != nil {
		respondLifecycleError(c, err, "return update failed")
		return
	}

	response.Success(c, ret)
}

// CompletePickupRequest 取件确认请求
type CompletePickupRequest struct {
	Code string `json:"code" binding:"required"`
}

// CompletePickup 配送员凭客户口令确认取件，成功后生成待审批退款
func (h *Handler) CompletePickup(c *gin.Context) {
	accountID, ok := getAccountID(c)
	if !ok {
		return
	}
	returnID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req CompletePickupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}

	ret, err := h.ReturnService.CompletePickup(returnID, accountID, req.Code, getAccountRole(c))
	if err != nil {
		respondLifecycleError(c, err, "return update failed")
		return
	}

	response.Success(c, ret)
}
