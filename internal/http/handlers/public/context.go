package public

import (
	handlershared "github.com/shipcycle/internal/http/handlers/shared"

	"github.com/gin-gonic/gin"
)

func getCustomerID(c *gin.Context) (uint, bool) {
	return handlershared.GetContextUintWithKeys(c, "account_id", "account id invalid", "account id type invalid")
}
