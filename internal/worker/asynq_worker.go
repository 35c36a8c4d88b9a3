package worker

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/shipcycle/internal/constants"
	"github.com/shipcycle/internal/logger"
	"github.com/shipcycle/internal/provider"
	"github.com/shipcycle/internal/queue"
	"github.com/shipcycle/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskOrderStatusNotify, c.handleOrderStatusNotify)
	mux.HandleFunc(queue.TaskOTPNotify, c.handleOTPNotify)
	mux.HandleFunc(queue.TaskRefundExecute, c.handleRefundExecute)
}

func (c *Consumer) handleOrderStatusNotify(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_order_status_notify_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.OrderStatusNotifyPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_order_status_notify_unmarshal_failed", "error", err)
		return err
	}
	if payload.OrderID == 0 {
		logger.Debugw("worker_order_status_notify_skip_invalid_payload", "order_id", payload.OrderID)
		return nil
	}

	order, err := c.OrderRepo.GetByID(payload.OrderID)
	if err != nil {
		logger.Warnw("worker_order_status_notify_fetch_order_failed", "order_id", payload.OrderID, "error", err)
		return err
	}
	if order == nil {
		logger.Debugw("worker_order_status_notify_skip_order_not_found", "order_id", payload.OrderID)
		return nil
	}

	receiverEmail, err := c.OrderRepo.ResolveReceiverEmailByOrderID(order.ID)
	if err != nil {
		logger.Warnw("worker_order_status_notify_resolve_receiver_failed", "order_id", order.ID, "error", err)
		return err
	}
	if receiverEmail == "" {
		logger.Debugw("worker_order_status_notify_skip_empty_receiver", "order_id", order.ID, "order_no", order.OrderNo)
		return nil
	}
	if c.NotifyService == nil {
		logger.Warnw("worker_order_status_notify_skip_notify_service_nil", "order_id", order.ID)
		return nil
	}

	status := payload.Status
	if status == "" {
		status = order.Status
	}
	err = c.NotifyService.SendOrderStatusEmail(receiverEmail, service.OrderStatusNotifyInput{
		OrderNo:  order.OrderNo,
		Status:   status,
		Amount:   order.TotalAmount,
		Currency: order.Currency,
	})
	if err != nil {
		if isEmailSkippableError(err) {
			logger.Debugw("worker_order_status_notify_skip_email", "order_id", order.ID, "reason", err.Error())
			return nil
		}
		logger.Warnw("worker_order_status_notify_send_failed",
			"order_id", order.ID,
			"order_no", order.OrderNo,
			"status", status,
			"error", err,
		)
		return err
	}
	return nil
}

func (c *Consumer) handleOTPNotify(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_otp_notify_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.OTPNotifyPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_otp_notify_unmarshal_failed", "error", err)
		return err
	}
	if payload.ChallengeID == 0 {
		logger.Debugw("worker_otp_notify_skip_invalid_payload", "challenge_id", payload.ChallengeID)
		return nil
	}

	challenge, err := c.OTPRepo.GetByID(payload.ChallengeID)
	if err != nil {
		logger.Warnw("worker_otp_notify_fetch_challenge_failed", "challenge_id", payload.ChallengeID, "error", err)
		return err
	}
	if challenge == nil {
		logger.Debugw("worker_otp_notify_skip_challenge_not_found", "challenge_id", payload.ChallengeID)
		return nil
	}
	// 已被顶替或消费的挑战不再下发
	if challenge.Status != constants.OTPStatusActive {
		logger.Debugw("worker_otp_notify_skip_inactive_challenge", "challenge_id", challenge.ID, "status", challenge.Status)
		return nil
	}

	order, err := c.OrderRepo.GetByID(challenge.OrderID)
	if err != nil {
		logger.Warnw("worker_otp_notify_fetch_order_failed", "order_id", challenge.OrderID, "error", err)
		return err
	}
	if order == nil {
		logger.Debugw("worker_otp_notify_skip_order_not_found", "order_id", challenge.OrderID)
		return nil
	}

	receiverEmail, err := c.OrderRepo.ResolveReceiverEmailByOrderID(order.ID)
	if err != nil {
		logger.Warnw("worker_otp_notify_resolve_receiver_failed", "order_id", order.ID, "error", err)
		return err
	}
	if receiverEmail == "" {
		logger.Debugw("worker_otp_notify_skip_empty_receiver", "order_id", order.ID, "order_no", order.OrderNo)
		return nil
	}
	if c.NotifyService == nil {
		logger.Warnw("worker_otp_notify_skip_notify_service_nil", "order_id", order.ID)
		return nil
	}

	if err := c.NotifyService.SendOTPCode(receiverEmail, order.OrderNo, challenge.Purpose, challenge.Code); err != nil {
		if isEmailSkippableError(err) {
			logger.Debugw("worker_otp_notify_skip_email", "challenge_id", challenge.ID, "reason", err.Error())
			return nil
		}
		logger.Warnw("worker_otp_notify_send_failed",
			"challenge_id", challenge.ID,
			"order_id", order.ID,
			"purpose", challenge.Purpose,
			"error", err,
		)
		return err
	}
	return nil
}

func (c *Consumer) handleRefundExecute(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_refund_execute_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.RefundExecutePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_refund_execute_unmarshal_failed", "error", err)
		return err
	}
	if payload.RefundID == 0 {
		logger.Debugw("worker_refund_execute_skip_invalid_payload", "refund_id", payload.RefundID)
		return nil
	}
	if c.RefundService == nil {
		logger.Warnw("worker_refund_execute_skip_refund_service_nil", "refund_id", payload.RefundID)
		return nil
	}

	if err := c.RefundService.Execute(payload.RefundID); err != nil {
		switch {
		case errors.Is(err, service.ErrRefundNotFound):
			logger.Debugw("worker_refund_execute_skip_not_found", "refund_id", payload.RefundID)
			return nil
		case errors.Is(err, service.ErrAlreadyFinalized):
			logger.Debugw("worker_refund_execute_skip_finalized", "refund_id", payload.RefundID)
			return nil
		case errors.Is(err, service.ErrConcurrentModification):
			logger.Debugw("worker_refund_execute_skip_in_flight", "refund_id", payload.RefundID)
			return nil
		case errors.Is(err, service.ErrExternalDependency):
			// 通道侧失败已落 failed，走人工或重试入口，不再占用队列重试
			logger.Warnw("worker_refund_execute_provider_failed", "refund_id", payload.RefundID, "error", err)
			return nil
		default:
			logger.Warnw("worker_refund_execute_failed", "refund_id", payload.RefundID, "error", err)
			return err
		}
	}
	return nil
}

func isEmailSkippableError(err error) bool {
	return errors.Is(err, service.ErrEmailServiceDisabled) ||
		errors.Is(err, service.ErrEmailServiceNotConfigured) ||
		errors.Is(err, service.ErrEmailRecipientRejected) ||
		errors.Is(err, service.ErrInvalidEmail)
}
