package service

import (
	"strings"
	"time"

	"github.com/shipcycle/internal/constants"
	"github.com/shipcycle/internal/logger"
	"github.com/shipcycle/internal/models"
	"github.com/shipcycle/internal/queue"
	"github.com/shipcycle/internal/repository"

	"gorm.io/gorm"
)

// RefundProvider 退款通道接口
type RefundProvider interface {
	Name() string
	Execute(refund *models.RefundRecord) (providerRef string, err error)
}

// RefundService 退款服务
type RefundService struct {
	refundRepo   repository.RefundRepository
	trackingRepo repository.TrackingRepository
	queueClient  *queue.Client
	provider     RefundProvider
}

// NewRefundService 创建退款服务
func NewRefundService(refundRepo repository.RefundRepository, trackingRepo repository.TrackingRepository, queueClient *queue.Client, provider RefundProvider) *RefundService {
	return &RefundService{
		refundRepo:   refundRepo,
		trackingRepo: trackingRepo,
		queueClient:  queueClient,
		provider:     provider,
	}
}

// ApproveRefund 厂商审批退款（pending → approved），随后异步执行打款
func (s *RefundService) ApproveRefund(refundID uint, actor string) (*models.RefundRecord, error) {
	now := time.Now()
	refund, err := s.transition(refundID, constants.RefundStatusApproved, actor, "", map[string]interface{}{
		"approved_at": now,
	})
	if err != nil {
		return nil, err
	}

	if err := s.queueClient.EnqueueRefundExecute(queue.RefundExecutePayload{RefundID: refundID}, 0); err != nil {
		logger.Errorw("refund_execute_enqueue_failed", "refund_id", refundID, "error", err)
	}
	return refund, nil
}

// RejectRefund 厂商驳回退款（pending → rejected）
func (s *RefundService) RejectRefund(refundID uint, actor, reason string) (*models.RefundRecord, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, ErrPreconditionFailed
	}
	return s.transition(refundID, constants.RefundStatusRejected, actor, reason, map[string]interface{}{
		"failure_reason": strings.TrimSpace(reason),
	})
}

// RetryRefund 重试失败的退款（failed → processing，由 worker 再次执行）
func (s *RefundService) RetryRefund(refundID uint, actor string) (*models.RefundRecord, error) {
	refund, err := s.refundRepo.GetByID(refundID)
	if err != nil {
		return nil, err
	}
	if refund == nil {
		return nil, ErrRefundNotFound
	}
	if refund.Status != constants.RefundStatusFailed {
		if IsRefundTerminal(refund.Status) {
			return nil, ErrAlreadyFinalized
		}
		return nil, invalidTransitionError(refund.Status, constants.RefundStatusProcessing, NextRefundStatuses(refund.Status))
	}
	if !ActorAllowedForRefundTransition(constants.RefundStatusFailed, constants.RefundStatusProcessing, actor) {
		return nil, ErrActorNotAllowed
	}

	if err := s.queueClient.EnqueueRefundExecute(queue.RefundExecutePayload{RefundID: refundID}, 0); err != nil {
		logger.Errorw("refund_retry_enqueue_failed", "refund_id", refundID, "error", err)
		return nil, err
	}
	logger.Infow("refund_retry_enqueued", "refund_id", refundID, "actor", actor)
	return refund, nil
}

// Execute 执行一笔已审批或失败待重试的退款。
// 由 worker 调用：先以条件更新抢占 processing，未抢到说明另有执行者在途。
// 通道侧已有流水号的记录不再重复提交，直接按成功收敛。
func (s *RefundService) Execute(refundID uint) error {
	refund, err := s.refundRepo.GetByID(refundID)
	if err != nil {
		return err
	}
	if refund == nil {
		return ErrRefundNotFound
	}

	switch refund.Status {
	case constants.RefundStatusCompleted, constants.RefundStatusRejected:
		return ErrAlreadyFinalized
	case constants.RefundStatusApproved, constants.RefundStatusFailed:
	case constants.RefundStatusProcessing:
		return ErrConcurrentModification
	default:
		return ErrInvalidTransition
	}

	now := time.Now()
	ok, err := s.refundRepo.UpdateStatusIf(refundID, refund.Status, constants.RefundStatusProcessing, map[string]interface{}{
		"processed_at": now,
	})
	if err != nil {
		return err
	}
	if !ok {
		return s.staleRefundError(refundID)
	}
	if err := s.refundRepo.IncrementAttempt(refundID); err != nil {
		logger.Warnw("refund_attempt_increment_failed", "refund_id", refundID, "error", err)
	}
	s.appendTrackingEvent(refund, refund.Status, constants.RefundStatusProcessing, constants.ActorSystem, "")

	if refund.ProviderRef != "" {
		return s.complete(refund, refund.Provider, refund.ProviderRef)
	}

	providerRef, execErr := s.provider.Execute(refund)
	if execErr != nil {
		if _, err := s.refundRepo.UpdateStatusIf(refundID, constants.RefundStatusProcessing, constants.RefundStatusFailed, map[string]interface{}{
			"failed_at":      time.Now(),
			"failure_reason": execErr.Error(),
		}); err != nil {
			logger.Errorw("refund_fail_mark_failed", "refund_id", refundID, "error", err)
			return err
		}
		s.appendTrackingEvent(refund, constants.RefundStatusProcessing, constants.RefundStatusFailed, constants.ActorSystem, execErr.Error())
		logger.Errorw("refund_provider_execute_failed",
			"refund_id", refundID,
			"provider", s.provider.Name(),
			"error", execErr,
		)
		return ErrExternalDependency
	}

	return s.complete(refund, s.provider.Name(), providerRef)
}

// GetRefund 获取退款记录详情
func (s *RefundService) GetRefund(refundID uint) (*models.RefundRecord, error) {
	refund, err := s.refundRepo.GetByID(refundID)
	if err != nil {
		return nil, err
	}
	if refund == nil {
		return nil, ErrRefundNotFound
	}
	return refund, nil
}

// GetRefundByReturn 获取退货单对应的退款记录
func (s *RefundService) GetRefundByReturn(returnID uint) (*models.RefundRecord, error) {
	refund, err := s.refundRepo.GetByReturnID(returnID)
	if err != nil {
		return nil, err
	}
	if refund == nil {
		return nil, ErrRefundNotFound
	}
	return refund, nil
}

// ListRefunds 退款记录列表
func (s *RefundService) ListRefunds(filter repository.RefundListFilter) ([]models.RefundRecord, int64, error) {
	return s.refundRepo.List(filter)
}

func (s *RefundService) complete(refund *models.RefundRecord, provider, providerRef string) error {
	ok, err := s.refundRepo.UpdateStatusIf(refund.ID, constants.RefundStatusProcessing, constants.RefundStatusCompleted, map[string]interface{}{
		"provider":     provider,
		"provider_ref": providerRef,
		"completed_at": time.Now(),
	})
	if err != nil {
		return err
	}
	if !ok {
		return s.staleRefundError(refund.ID)
	}
	s.appendTrackingEvent(refund, constants.RefundStatusProcessing, constants.RefundStatusCompleted, constants.ActorSystem, "")
	logger.Infow("refund_completed",
		"refund_id", refund.ID,
		"refund_no", refund.RefundNo,
		"provider", provider,
		"provider_ref", providerRef,
	)
	return nil
}

// transition 执行一次带守卫的退款状态迁移
func (s *RefundService) transition(refundID uint, toStatus, actor, note string, updates map[string]interface{}) (*models.RefundRecord, error) {
	refund, err := s.refundRepo.GetByID(refundID)
	if err != nil {
		return nil, err
	}
	if refund == nil {
		return nil, ErrRefundNotFound
	}

	fromStatus := refund.Status
	if IsRefundTerminal(fromStatus) {
		return nil, ErrAlreadyFinalized
	}
	if !CanTransitionRefund(fromStatus, toStatus) {
		return nil, invalidTransitionError(fromStatus, toStatus, NextRefundStatuses(fromStatus))
	}
	if !ActorAllowedForRefundTransition(fromStatus, toStatus, actor) {
		return nil, ErrActorNotAllowed
	}

	err = models.DB.Transaction(func(tx *gorm.DB) error {
		refundRepo := s.refundRepo.WithTx(tx)
		ok, err := refundRepo.UpdateStatusIf(refundID, fromStatus, toStatus, updates)
		if err != nil {
			return err
		}
		if !ok {
			return s.staleRefundError(refundID)
		}
		trackingRepo := s.trackingRepo.WithTx(tx)
		return trackingRepo.Append(&models.TrackingEvent{
			OrderID:    refund.OrderID,
			ReturnID:   &refund.ReturnID,
			EventType:  constants.TrackingEventRefundUpdate,
			FromStatus: fromStatus,
			ToStatus:   toStatus,
			Actor:      actor,
			Note:       note,
			OccurredAt: time.Now(),
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Infow("refund_status_changed",
		"refund_id", refundID,
		"from", fromStatus,
		"to", toStatus,
		"actor", actor,
	)
	return s.refundRepo.GetByID(refundID)
}

// staleRefundError 条件更新落空时回读最新状态，便于调用方按最新状态重试
func (s *RefundService) staleRefundError(refundID uint) error {
	current, err := s.refundRepo.GetByID(refundID)
	if err != nil || current == nil {
		return ErrConcurrentModification
	}
	return staleStateError(current.Status, NextRefundStatuses(current.Status))
}

func (s *RefundService) appendTrackingEvent(refund *models.RefundRecord, from, to, actor, note string) {
	if err := s.trackingRepo.Append(&models.TrackingEvent{
		OrderID:    refund.OrderID,
		ReturnID:   &refund.ReturnID,
		EventType:  constants.TrackingEventRefundUpdate,
		FromStatus: from,
		ToStatus:   to,
		Actor:      actor,
		Note:       note,
		OccurredAt: time.Now(),
	}); err != nil {
		logger.Warnw("refund_tracking_append_failed", "refund_id", refund.ID, "error", err)
	}
}
