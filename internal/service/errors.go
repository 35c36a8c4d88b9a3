package service

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrOrderNotFound 订单不存在
	ErrOrderNotFound = errors.New("order not found")
	// ErrReturnNotFound 退货单不存在
	ErrReturnNotFound = errors.New("return request not found")
	// ErrRefundNotFound 退款记录不存在
	ErrRefundNotFound = errors.New("refund record not found")
	// ErrInvalidTransition 状态迁移不被状态机允许
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrPreconditionFailed 迁移前置条件不满足
	ErrPreconditionFailed = errors.New("transition precondition failed")
	// ErrActorNotAllowed 当前角色无权执行该迁移
	ErrActorNotAllowed = errors.New("actor not allowed for transition")
	// ErrConcurrentModification 并发写入冲突，调用方应重读后重试
	ErrConcurrentModification = errors.New("concurrent modification detected")
	// ErrAlreadyFinalized 目标记录已处于终态
	ErrAlreadyFinalized = errors.New("record already finalized")
	// ErrOTPMismatch 口令不匹配
	ErrOTPMismatch = errors.New("otp code mismatch")
	// ErrOTPExpired 口令已过期
	ErrOTPExpired = errors.New("otp code expired")
	// ErrOTPNotFound 无存活口令挑战
	ErrOTPNotFound = errors.New("no active otp challenge")
	// ErrReturnWindowClosed 超出退货窗口
	ErrReturnWindowClosed = errors.New("return window closed")
	// ErrReturnAlreadyOpen 订单已存在未终结的退货单
	ErrReturnAlreadyOpen = errors.New("return request already open")
	// ErrExternalDependency 外部依赖调用失败
	ErrExternalDependency = errors.New("external dependency failure")
	// ErrEmailServiceDisabled 邮件服务未启用
	ErrEmailServiceDisabled = errors.New("email service disabled")
	// ErrEmailServiceNotConfigured 邮件服务配置不完整
	ErrEmailServiceNotConfigured = errors.New("email service not configured")
	// ErrInvalidEmail 邮箱地址非法
	ErrInvalidEmail = errors.New("invalid email address")
	// ErrEmailRecipientRejected 收件地址被服务商拒收
	ErrEmailRecipientRejected = errors.New("email recipient rejected")
)

// invalidTransitionError 带上当前状态与合法后继，方便调用方纠正后重试
func invalidTransitionError(current, requested string, expectedNext []string) error {
	next := "none"
	if len(expectedNext) > 0 {
		next = strings.Join(expectedNext, "/")
	}
	return fmt.Errorf("%w: current status %s, expected next %s, requested %s",
		ErrInvalidTransition, current, next, requested)
}

// staleStateError 并发冲突时回读最新状态返回给调用方
func staleStateError(current string, expectedNext []string) error {
	next := "none"
	if len(expectedNext) > 0 {
		next = strings.Join(expectedNext, "/")
	}
	return fmt.Errorf("%w: current status %s, expected next %s",
		ErrConcurrentModification, current, next)
}
