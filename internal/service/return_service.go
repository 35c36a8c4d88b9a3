package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shipcycle/internal/cache"
	"github.com/shipcycle/internal/constants"
	"github.com/shipcycle/internal/logger"
	"github.com/shipcycle/internal/models"
	"github.com/shipcycle/internal/queue"
	"github.com/shipcycle/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ReturnService 退货服务
type ReturnService struct {
	returnRepo   repository.ReturnRepository
	orderRepo    repository.OrderRepository
	refundRepo   repository.RefundRepository
	trackingRepo repository.TrackingRepository
	otpService   *OTPService
	queueClient  *queue.Client
	windowDays   int
}

// NewReturnService 创建退货服务
func NewReturnService(returnRepo repository.ReturnRepository, orderRepo repository.OrderRepository, refundRepo repository.RefundRepository, trackingRepo repository.TrackingRepository, otpService *OTPService, queueClient *queue.Client, windowDays int) *ReturnService {
	if windowDays <= 0 {
		windowDays = constants.ReturnWindowDays
	}
	return &ReturnService{
		returnRepo:   returnRepo,
		orderRepo:    orderRepo,
		refundRepo:   refundRepo,
		trackingRepo: trackingRepo,
		otpService:   otpService,
		queueClient:  queueClient,
		windowDays:   windowDays,
	}
}

// RequestReturnInput 发起退货输入
type RequestReturnInput struct {
	OrderID    uint
	CustomerID uint
	Reason     string
}

// RequestReturn 客户发起退货。
// 仅已送达订单可退，且须落在交付后的退货窗口内；一单同时只允许一条未终结退货单。
func (s *ReturnService) RequestReturn(input RequestReturnInput) (*models.ReturnRequest, error) {
	if strings.TrimSpace(input.Reason) == "" {
		return nil, ErrPreconditionFailed
	}

	order, err := s.orderRepo.GetByIDAndCustomer(input.OrderID, input.CustomerID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if order.Status != constants.OrderStatusDelivered || order.DeliveredAt == nil {
		return nil, ErrPreconditionFailed
	}

	now := time.Now()
	if !WithinReturnWindow(*order.DeliveredAt, now, s.windowDays) {
		return nil, ErrReturnWindowClosed
	}

	existing, err := s.returnRepo.GetOpenByOrder(order.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrReturnAlreadyOpen
	}

	ret := &models.ReturnRequest{
		ReturnNo:   generateReturnNo(),
		OrderID:    order.ID,
		CustomerID: input.CustomerID,
		Status:     constants.ReturnStatusRequested,
		Reason:     strings.TrimSpace(input.Reason),
	}

	err = models.DB.Transaction(func(tx *gorm.DB) error {
		returnRepo := s.returnRepo.WithTx(tx)
		if err := returnRepo.Create(ret); err != nil {
			return err
		}
		trackingRepo := s.trackingRepo.WithTx(tx)
		return trackingRepo.Append(&models.TrackingEvent{
			OrderID:    order.ID,
			ReturnID:   &ret.ID,
			EventType:  constants.TrackingEventTransition,
			ToStatus:   constants.ReturnStatusRequested,
			Actor:      constants.ActorCustomer,
			Note:       ret.Reason,
			OccurredAt: now,
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Infow("return_requested",
		"return_id", ret.ID,
		"return_no", ret.ReturnNo,
		"order_id", order.ID,
		"customer_id", input.CustomerID,
	)
	return ret, nil
}

// PickupSchedule 审核通过时必须给出的上门取件安排
type PickupSchedule struct {
	Date time.Time
	Slot string
}

// ApproveReturn 厂商审核通过（return_requested → approved）。
// 审核通过即安排取件，取件日期与时间段为必填。
func (s *ReturnService) ApproveReturn(returnID uint, actor string, schedule PickupSchedule) (*models.ReturnRequest, error) {
	if schedule.Date.IsZero() || strings.TrimSpace(schedule.Slot) == "" {
		return nil, ErrPreconditionFailed
	}
	now := time.Now()
	return s.transition(returnID, constants.ReturnStatusApproved, actor, "", map[string]interface{}{
		"reviewed_at": now,
		"pickup_date": schedule.Date,
		"pickup_slot": strings.TrimSpace(schedule.Slot),
	})
}

// RejectReturn 厂商驳回退货（return_requested → rejected）
func (s *ReturnService) RejectReturn(returnID uint, actor, reason string) (*models.ReturnRequest, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, ErrPreconditionFailed
	}
	now := time.Now()
	return s.transition(returnID, constants.ReturnStatusRejected, actor, reason, map[string]interface{}{
		"reviewed_at":   now,
		"reject_reason": strings.TrimSpace(reason),
	})
}

// CancelReturn 客户撤回退货申请。仅审核前（return_requested）可撤回。
func (s *ReturnService) CancelReturn(returnID, customerID uint) (*models.ReturnRequest, error) {
	ret, err := s.returnRepo.GetByIDAndCustomer(returnID, customerID)
	if err != nil {
		return nil, err
	}
	if ret == nil {
		return nil, ErrReturnNotFound
	}
	now := time.Now()
	return s.transition(ret.ID, constants.ReturnStatusCancelled, constants.ActorCustomer, "", map[string]interface{}{
		"cancelled_at": now,
	})
}

// StartPickup 配送员上门取件（approved → out_for_pickup）
func (s *ReturnService) StartPickup(returnID uint, agentID uint, actor string) (*models.ReturnRequest, error) {
	if agentID == 0 {
		return nil, ErrPreconditionFailed
	}
	now := time.Now()
	return s.transition(returnID, constants.ReturnStatusOutForPickup, actor, "", map[string]interface{}{
		"pickup_agent_id":   agentID,
		"out_for_pickup_at": now,
	})
}

// MarkPickupNearLocation 配送员到达取件地附近（out_for_pickup → pickup_near_location）
func (s *ReturnService) MarkPickupNearLocation(returnID uint, agentID uint, actor string) (*models.ReturnRequest, error) {
	if _, err := s.loadAgentReturn(returnID, agentID); err != nil {
		return nil, err
	}
	return s.transition(returnID, constants.ReturnStatusPickupNearLocation, actor, "", nil)
}

// GeneratePickupOTP 签发取件口令（pickup_near_location → pickup_otp_generated）。
// 口令发给客户，客户当面出示以证明货物确已交还。
// 已处于 pickup_otp_generated 时允许重入：只重签口令，作为口令过期后的恢复通道。
func (s *ReturnService) GeneratePickupOTP(returnID uint, agentID uint, actor string) (*models.ReturnRequest, error) {
	ret, err := s.loadAgentReturn(returnID, agentID)
	if err != nil {
		return nil, err
	}

	updated := ret
	if ret.Status != constants.ReturnStatusPickupOTPGenerated {
		updated, err = s.transition(ret.ID, constants.ReturnStatusPickupOTPGenerated, actor, "", nil)
		if err != nil {
			return nil, err
		}
	}

	if _, err := s.otpService.Issue(IssueInput{
		OrderID:  ret.OrderID,
		ReturnID: &ret.ID,
		Purpose:  constants.OTPPurposePickup,
		Actor:    actor,
	}); err != nil {
		logger.Errorw("pickup_otp_issue_failed", "return_id", ret.ID, "error", err)
		return nil, err
	}
	return updated, nil
}

// CompletePickup 配送员提交取件口令完成取件。
// 校验通过后退货单落 pickup_completed 并随即进入 refund_requested，同时创建待审退款记录。
func (s *ReturnService) CompletePickup(returnID uint, agentID uint, code string, actor string) (*models.ReturnRequest, error) {
	ret, err := s.loadAgentReturn(returnID, agentID)
	if err != nil {
		return nil, err
	}
	if ret.Status != constants.ReturnStatusPickupOTPGenerated {
		if IsReturnTerminal(ret.Status) {
			return nil, ErrAlreadyFinalized
		}
		return nil, invalidTransitionError(ret.Status, constants.ReturnStatusPickupCompleted, NextReturnStatuses(ret.Status))
	}
	if !ActorAllowedForReturnTransition(ret.Status, constants.ReturnStatusPickupCompleted, actor) {
		return nil, ErrActorNotAllowed
	}

	order, err := s.orderRepo.GetByID(ret.OrderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}

	if _, err := s.otpService.Verify(ret.OrderID, constants.OTPPurposePickup, code); err != nil {
		return nil, err
	}

	now := time.Now()
	refund := &models.RefundRecord{
		RefundNo:       generateRefundNo(),
		ReturnID:       ret.ID,
		OrderID:        ret.OrderID,
		Status:         constants.RefundStatusPending,
		Currency:       order.Currency,
		Amount:         order.TotalAmount,
		IdempotencyKey: uuid.NewString(),
	}

	err = models.DB.Transaction(func(tx *gorm.DB) error {
		returnRepo := s.returnRepo.WithTx(tx)
		ok, err := returnRepo.UpdateStatusIf(ret.ID, constants.ReturnStatusPickupOTPGenerated, constants.ReturnStatusPickupCompleted, map[string]interface{}{
			"pickup_completed_at": now,
		})
		if err != nil {
			return err
		}
		if !ok {
			return s.staleReturnError(ret.ID)
		}
		ok, err = returnRepo.UpdateStatusIf(ret.ID, constants.ReturnStatusPickupCompleted, constants.ReturnStatusRefundRequested, nil)
		if err != nil {
			return err
		}
		if !ok {
			return s.staleReturnError(ret.ID)
		}

		refundRepo := s.refundRepo.WithTx(tx)
		if err := refundRepo.Create(refund); err != nil {
			return err
		}

		trackingRepo := s.trackingRepo.WithTx(tx)
		if err := trackingRepo.Append(&models.TrackingEvent{
			OrderID:    ret.OrderID,
			ReturnID:   &ret.ID,
			EventType:  constants.TrackingEventTransition,
			FromStatus: constants.ReturnStatusPickupOTPGenerated,
			ToStatus:   constants.ReturnStatusPickupCompleted,
			Actor:      actor,
			OccurredAt: now,
		}); err != nil {
			return err
		}
		return trackingRepo.Append(&models.TrackingEvent{
			OrderID:    ret.OrderID,
			ReturnID:   &ret.ID,
			EventType:  constants.TrackingEventTransition,
			FromStatus: constants.ReturnStatusPickupCompleted,
			ToStatus:   constants.ReturnStatusRefundRequested,
			Actor:      constants.ActorSystem,
			OccurredAt: now,
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Infow("return_pickup_completed",
		"return_id", ret.ID,
		"order_id", ret.OrderID,
		"refund_id", refund.ID,
		"refund_no", refund.RefundNo,
	)
	return s.returnRepo.GetByID(ret.ID)
}

// GetReturn 获取退货单详情
func (s *ReturnService) GetReturn(returnID uint) (*models.ReturnRequest, error) {
	ret, err := s.returnRepo.GetByID(returnID)
	if err != nil {
		return nil, err
	}
	if ret == nil {
		return nil, ErrReturnNotFound
	}
	return ret, nil
}

// GetReturnForCustomer 获取客户自己的退货单详情
func (s *ReturnService) GetReturnForCustomer(returnID, customerID uint) (*models.ReturnRequest, error) {
	ret, err := s.returnRepo.GetByIDAndCustomer(returnID, customerID)
	if err != nil {
		return nil, err
	}
	if ret == nil {
		return nil, ErrReturnNotFound
	}
	return ret, nil
}

// ListReturns 退货单列表
func (s *ReturnService) ListReturns(filter repository.ReturnListFilter) ([]models.ReturnRequest, int64, error) {
	return s.returnRepo.List(filter)
}

// transition 执行一次带守卫的退货状态迁移
func (s *ReturnService) transition(returnID uint, toStatus, actor, note string, updates map[string]interface{}) (*models.ReturnRequest, error) {
	ret, err := s.returnRepo.GetByID(returnID)
	if err != nil {
		return nil, err
	}
	if ret == nil {
		return nil, ErrReturnNotFound
	}

	fromStatus := ret.Status
	if IsReturnTerminal(fromStatus) {
		return nil, ErrAlreadyFinalized
	}
	if !CanTransitionReturn(fromStatus, toStatus) {
		return nil, invalidTransitionError(fromStatus, toStatus, NextReturnStatuses(fromStatus))
	}
	if !ActorAllowedForReturnTransition(fromStatus, toStatus, actor) {
		return nil, ErrActorNotAllowed
	}

	now := time.Now()
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		returnRepo := s.returnRepo.WithTx(tx)
		ok, err := returnRepo.UpdateStatusIf(returnID, fromStatus, toStatus, updates)
		if err != nil {
			return err
		}
		if !ok {
			return s.staleReturnError(returnID)
		}
		trackingRepo := s.trackingRepo.WithTx(tx)
		return trackingRepo.Append(&models.TrackingEvent{
			OrderID:    ret.OrderID,
			ReturnID:   &ret.ID,
			EventType:  constants.TrackingEventTransition,
			FromStatus: fromStatus,
			ToStatus:   toStatus,
			Actor:      actor,
			Note:       note,
			OccurredAt: now,
		})
	})
	if err != nil {
		return nil, err
	}

	if err := cache.DelTrackingSnapshot(context.Background(), ret.OrderID); err != nil {
		logger.Warnw("tracking_snapshot_del_failed", "order_id", ret.OrderID, "error", err)
	}

	logger.Infow("return_status_changed",
		"return_id", returnID,
		"from", fromStatus,
		"to", toStatus,
		"actor", actor,
	)
	return s.returnRepo.GetByID(returnID)
}

// staleReturnError 条件更新落空时回读最新状态，便于调用方按最新状态重试
func (s *ReturnService) staleReturnError(returnID uint) error {
	current, err := s.returnRepo.GetByID(returnID)
	if err != nil || current == nil {
		return ErrConcurrentModification
	}
	return staleStateError(current.Status, NextReturnStatuses(current.Status))
}

// loadAgentReturn 加载退货单并校验取件配送员归属
func (s *ReturnService) loadAgentReturn(returnID, agentID uint) (*models.ReturnRequest, error) {
	ret, err := s.returnRepo.GetByID(returnID)
	if err != nil {
		return nil, err
	}
	if ret == nil {
		return nil, ErrReturnNotFound
	}
	if agentID != 0 && ret.PickupAgentID != nil && *ret.PickupAgentID != agentID {
		return nil, ErrActorNotAllowed
	}
	return ret, nil
}

func generateReturnNo() string {
	now := time.Now().Format("20060102150405")
	return fmt.Sprintf("SCR%s%s", now, randNumeric(6))
}

func generateRefundNo() string {
	now := time.Now().Format("20060102150405")
	return fmt.Sprintf("SCF%s%s", now, randNumeric(6))
}
