package ops

import (
	handlershared "github.com/shipcycle/internal/http/handlers/shared"

	"github.com/gin-gonic/gin"
)

func respondLifecycleError(c *gin.Context, err error, fallbackMsg string) {
	handlershared.RespondLifecycleError(c, err, fallbackMsg)
}
