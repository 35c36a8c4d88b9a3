package queue

import (
	"encoding/json"

	"github.com/shipcycle/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskOrderStatusNotify 订单状态邮件通知任务
	TaskOrderStatusNotify = constants.TaskOrderStatusNotify
	// TaskOTPNotify 口令下发任务
	TaskOTPNotify = constants.TaskOTPNotify
	// TaskRefundExecute 退款执行任务
	TaskRefundExecute = constants.TaskRefundExecute
)

// OrderStatusNotifyPayload 订单状态通知任务载荷
type OrderStatusNotifyPayload struct {
	OrderID uint   `json:"order_id"`
	Status  string `json:"status"`
}

// OTPNotifyPayload 口令下发任务载荷
type OTPNotifyPayload struct {
	ChallengeID uint `json:"challenge_id"`
}

// RefundExecutePayload 退款执行任务载荷
type RefundExecutePayload struct {
	RefundID uint `json:"refund_id"`
}

// NewOrderStatusNotifyTask 创建订单状态通知任务
func NewOrderStatusNotifyTask(payload OrderStatusNotifyPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOrderStatusNotify, body), nil
}

// NewOTPNotifyTask 创建口令下发任务
func NewOTPNotifyTask(payload OTPNotifyPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOTPNotify, body), nil
}

// NewRefundExecuteTask 创建退款执行任务
func NewRefundExecuteTask(payload RefundExecutePayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRefundExecute, body), nil
}
