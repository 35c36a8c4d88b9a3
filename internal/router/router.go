package router

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shipcycle/internal/authz"
	"github.com/shipcycle/internal/cache"
	"github.com/shipcycle/internal/config"
	adminhandlers "github.com/shipcycle/internal/http/handlers/admin"
	opshandlers "github.com/shipcycle/internal/http/handlers/ops"
	publichandlers "github.com/shipcycle/internal/http/handlers/public"
	"github.com/shipcycle/internal/http/response"
	"github.com/shipcycle/internal/logger"
	"github.com/shipcycle/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	// 初始化 Handler（按客户/运营/管理分组）
	publicHandler := publichandlers.New(c)
	opsHandler := opshandlers.New(c)
	adminHandler := adminhandlers.New(c)

	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "sc"
	}
	redisClient := cache.Client()
	otpVerifyRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:otp_verify", redisPrefix),
		WindowSeconds: cfg.Security.OTPRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.OTPRateLimit.MaxAttempts,
		Message:       "too many verification attempts",
	}

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	// API 路由组
	apiV1 := r.Group("/api/v1")
	apiV1.Use(JWTAuthMiddleware(c.TokenService), RBACMiddleware(c.AuthzService))
	{
		// 客户接口
		apiV1.POST("/orders", publicHandler.CreateOrder)
		apiV1.GET("/orders", publicHandler.ListOrders)
		apiV1.GET("/orders/:id", publicHandler.GetOrder)
		apiV1.POST("/orders/:id/cancel", publicHandler.CancelOrder)
		apiV1.GET("/orders/:id/tracking", publicHandler.GetOrderTracking)
		apiV1.POST("/orders/:id/returns", publicHandler.RequestReturn)
		apiV1.GET("/returns", publicHandler.ListReturns)
		apiV1.GET("/returns/:id", publicHandler.GetReturn)
		apiV1.POST("/returns/:id/cancel", publicHandler.CancelReturn)
		apiV1.GET("/returns/:id/refund", publicHandler.GetReturnRefund)

		// 运营接口（配送员 / 厂商）
		ops := apiV1.Group("/ops")
		{
			ops.GET("/orders", opsHandler.ListOrders)
			ops.GET("/orders/:id", opsHandler.GetOrder)
			ops.POST("/orders/:id/process", opsHandler.StartProcessing)
			ops.POST("/orders/:id/dispatch", opsHandler.Dispatch)
			ops.POST("/orders/:id/near-location", opsHandler.MarkNearLocation)
			ops.POST("/orders/:id/deliver", RateLimitMiddleware(redisClient, otpVerifyRule, KeyByIP), opsHandler.CompleteDelivery)

			ops.GET("/returns", opsHandler.ListReturns)
			ops.GET("/returns/:id", opsHandler.GetReturn)
			ops.POST("/returns/:id/approve", opsHandler.ApproveReturn)
			ops.POST("/returns/:id/reject", opsHandler.RejectReturn)
			ops.POST("/returns/:id/pickup", opsHandler.StartPickup)
			ops.POST("/returns/:id/pickup/near-location", opsHandler.MarkPickupNearLocation)
			ops.POST("/returns/:id/pickup/otp", opsHandler.GeneratePickupOTP)
			ops.POST("/returns/:id/pickup/complete", RateLimitMiddleware(redisClient, otpVerifyRule, KeyByIP), opsHandler.CompletePickup)

			ops.GET("/refunds", opsHandler.ListRefunds)
			ops.GET("/refunds/:id", opsHandler.GetRefund)
			ops.POST("/refunds/:id/approve", opsHandler.ApproveRefund)
			ops.POST("/refunds/:id/reject", opsHandler.RejectRefund)
			ops.POST("/refunds/:id/retry", opsHandler.RetryRefund)
		}

		// 管理接口
		admin := apiV1.Group("/admin")
		{
			admin.GET("/orders", adminHandler.AdminListOrders)
			admin.GET("/orders/:id", adminHandler.AdminGetOrder)
			admin.GET("/orders/:id/tracking", adminHandler.AdminGetOrderTracking)
			admin.POST("/orders/:id/confirm", adminHandler.AdminConfirmOrder)
			admin.POST("/orders/:id/cancel", adminHandler.AdminCancelOrder)
			admin.GET("/returns", adminHandler.AdminListReturns)
			admin.GET("/refunds", adminHandler.AdminListRefunds)

			// 权限管理
			admin.GET("/authz/me", adminHandler.GetAuthzMe)
			admin.GET("/authz/roles", adminHandler.ListAuthzRoles)
			admin.POST("/authz/roles", adminHandler.CreateAuthzRole)
			admin.DELETE("/authz/roles/:role", adminHandler.DeleteAuthzRole)
			admin.GET("/authz/roles/:role/policies", adminHandler.GetAuthzRolePolicies)
			admin.POST("/authz/policies", adminHandler.GrantAuthzPolicy)
			admin.DELETE("/authz/policies", adminHandler.RevokeAuthzPolicy)
			admin.GET("/authz/accounts/:id/roles", adminHandler.GetAuthzAccountRoles)
			admin.PUT("/authz/accounts/:id/roles", adminHandler.SetAuthzAccountRoles)
			admin.GET("/authz/permissions/catalog", func(ctx *gin.Context) {
				response.Success(ctx, buildPermissionCatalog(r))
			})
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}

type permissionCatalogItem struct {
	Module     string `json:"module"`
	Method     string `json:"method"`
	Object     string `json:"object"`
	Permission string `json:"permission"`
}

// buildPermissionCatalog 汇总可授权的接口清单，供角色策略配置使用
func buildPermissionCatalog(engine *gin.Engine) []permissionCatalogItem {
	if engine == nil {
		return []permissionCatalogItem{}
	}

	routes := engine.Routes()
	seen := make(map[string]struct{}, len(routes))
	items := make([]permissionCatalogItem, 0, len(routes))

	for _, item := range routes {
		method := strings.ToUpper(strings.TrimSpace(item.Method))
		if method == "" || method == "OPTIONS" || method == "HEAD" {
			continue
		}
		if !strings.HasPrefix(item.Path, "/api/v1/") {
			continue
		}
		object := authz.NormalizeObject(item.Path)
		permission := method + ":" + object
		if _, exists := seen[permission]; exists {
			continue
		}
		seen[permission] = struct{}{}
		items = append(items, permissionCatalogItem{
			Module:     derivePermissionModule(object),
			Method:     method,
			Object:     object,
			Permission: permission,
		})
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Module == items[j].Module {
			if items[i].Object == items[j].Object {
				return items[i].Method < items[j].Method
			}
			return items[i].Object < items[j].Object
		}
		return items[i].Module < items[j].Module
	})

	return items
}

func derivePermissionModule(object string) string {
	normalized := strings.TrimPrefix(strings.TrimSpace(object), "/")
	if normalized == "" {
		return "system"
	}
	segments := strings.Split(normalized, "/")
	if len(segments) <= 1 {
		return segments[0]
	}
	if segments[0] == "admin" || segments[0] == "ops" {
		if segments[1] == "authz" {
			return "authz"
		}
		return segments[1]
	}
	return segments[0]
}
