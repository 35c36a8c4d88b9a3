package public

import (
	"github.com/shipcycle/internal/http/handlers/shared"
	"github.com/shipcycle/internal/provider"

	"github.com/gin-gonic/gin"
)

// Handler 客户侧接口处理器入口
// 说明：该处理器仅用于客户（下单方）API。
type Handler struct {
	*provider.Container
}

// New 创建客户侧处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}

func respondError(c *gin.Context, code int, msg string, err error) {
	shared.RespondError(c, code, msg, err)
}

func normalizePagination(page, pageSize int) (int, int) {
	return shared.NormalizePagination(page, pageSize)
}
