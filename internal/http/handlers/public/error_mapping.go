package public

import (
	handlershared "github.com/shipcycle/internal/http/handlers/shared"

	"github.com/gin-gonic/gin"
)

func respondOrderError(c *gin.Context, err error) {
	handlershared.RespondLifecycleError(c, err, "order operation failed")
}

func respondReturnError(c *gin.Context, err error) {
	handlershared.RespondLifecycleError(c, err, "return operation failed")
}
