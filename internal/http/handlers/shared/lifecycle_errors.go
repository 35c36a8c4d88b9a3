package shared

import (
	"errors"

	"github.com/shipcycle/internal/http/response"
	"github.com/shipcycle/internal/service"

	"github.com/gin-gonic/gin"
)

// MappedServiceError 定义业务错误到接口错误响应的映射关系。
// Msg 留空时直接透出 err.Error()，用于需要把状态上下文带给调用方的错误。
type MappedServiceError struct {
	Target error
	Code   int
	Msg    string
}

// LifecycleErrorRules 订单/退货/退款生命周期错误的统一映射表。
// 迁移类冲突透出服务层错误原文，调用方能看到当前状态与合法后继再重试。
var LifecycleErrorRules = []MappedServiceError{
	{Target: service.ErrOrderNotFound, Code: response.CodeNotFound, Msg: "order not found"},
	{Target: service.ErrReturnNotFound, Code: response.CodeNotFound, Msg: "return request not found"},
	{Target: service.ErrRefundNotFound, Code: response.CodeNotFound, Msg: "refund record not found"},
	{Target: service.ErrInvalidTransition, Code: response.CodeConflict},
	{Target: service.ErrAlreadyFinalized, Code: response.CodeConflict, Msg: "record already finalized"},
	{Target: service.ErrConcurrentModification, Code: response.CodeConflict},
	{Target: service.ErrActorNotAllowed, Code: response.CodeForbidden, Msg: "operation not allowed for this role"},
	{Target: service.ErrPreconditionFailed, Code: response.CodeBadRequest, Msg: "transition precondition failed"},
	{Target: service.ErrOTPMismatch, Code: response.CodeBadRequest, Msg: "verification code mismatch"},
	{Target: service.ErrOTPExpired, Code: response.CodeBadRequest, Msg: "verification code expired"},
	{Target: service.ErrOTPNotFound, Code: response.CodeBadRequest, Msg: "no active verification code"},
	{Target: service.ErrReturnWindowClosed, Code: response.CodeBadRequest, Msg: "return window closed"},
	{Target: service.ErrReturnAlreadyOpen, Code: response.CodeConflict, Msg: "return request already open"},
	{Target: service.ErrExternalDependency, Code: response.CodeInternal, Msg: "external dependency failure"},
}

// RespondLifecycleError 按映射表返回生命周期错误，未命中走兜底。
func RespondLifecycleError(c *gin.Context, err error, fallbackMsg string) {
	for _, rule := range LifecycleErrorRules {
		if errors.Is(err, rule.Target) {
			msg := rule.Msg
			if msg == "" {
				msg = err.Error()
			}
			RespondError(c, rule.Code, msg, nil)
			return
		}
	}
	RespondError(c, response.CodeInternal, fallbackMsg, err)
}
