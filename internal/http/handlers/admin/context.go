package admin

import (
	handlershared "github.com/shipcycle/internal/http/handlers/shared"

	"github.com/gin-gonic/gin"
)

func getAccountID(c *gin.Context) (uint, bool) {
	return handlershared.GetAccountID(c)
}

func getAccountRole(c *gin.Context) string {
	return handlershared.GetAccountRole(c)
}

func normalizePagination(page, pageSize int) (int, int) {
	return handlershared.NormalizePagination(page, pageSize)
}
