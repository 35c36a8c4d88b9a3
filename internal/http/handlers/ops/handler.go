package ops

import (
	"strconv"

	handlershared "github.com/shipcycle/internal/http/handlers/shared"
	"github.com/shipcycle/internal/http/response"
	"github.com/shipcycle/internal/provider"

	"github.com/gin-gonic/gin"
)

// Handler 运营侧接口处理器入口
// 说明：该处理器用于配送员与厂商侧 API。
type Handler struct {
	*provider.Container
}

// New 创建运营侧处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}

func respondError(c *gin.Context, code int, msg string, err error) {
	handlershared.RespondError(c, code, msg, err)
}

func normalizePagination(page, pageSize int) (int, int) {
	return handlershared.NormalizePagination(page, pageSize)
}

func getAccountID(c *gin.Context) (uint, bool) {
	return handlershared.GetAccountID(c)
}

func getAccountRole(c *gin.Context) string {
	return handlershared.GetAccountRole(c)
}

func parseIDParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "id invalid", nil)
		return 0, false
	}
	return uint(id), true
}
