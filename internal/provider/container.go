package provider

import (
	"errors"

	"github.com/shipcycle/internal/authz"
	"github.com/shipcycle/internal/cache"
	"github.com/shipcycle/internal/config"
	"github.com/shipcycle/internal/logger"
	"github.com/shipcycle/internal/models"
	"github.com/shipcycle/internal/payment/ledger"
	"github.com/shipcycle/internal/payment/wechatpay"
	"github.com/shipcycle/internal/queue"
	"github.com/shipcycle/internal/repository"
	"github.com/shipcycle/internal/service"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client

	// Repositories
	OrderRepo    repository.OrderRepository
	ReturnRepo   repository.ReturnRepository
	RefundRepo   repository.RefundRepository
	TrackingRepo repository.TrackingRepository
	OTPRepo      repository.OTPChallengeRepository

	// Services
	AuthzService  *authz.Service
	TokenService  *service.TokenService
	NotifyService *service.NotifyService
	OTPService    *service.OTPService
	OrderService  *service.OrderService
	ReturnService *service.ReturnService
	RefundService *service.RefundService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}
	if queueClient == nil {
		qc, err := queue.NewClient(&config.QueueConfig{Enabled: false})
		if err != nil {
			logger.Errorw("provider_init_disabled_queue_client_failed", "error", err)
			panic(err)
		}
		queueClient = qc
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化 Services
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.OrderRepo = repository.NewOrderRepository(db)
	c.ReturnRepo = repository.NewReturnRepository(db)
	c.RefundRepo = repository.NewRefundRepository(db)
	c.TrackingRepo = repository.NewTrackingRepository(db)
	c.OTPRepo = repository.NewOTPChallengeRepository(db)
}

func (c *Container) initServices() {
	authzService, err := authz.NewService(models.DB)
	if err != nil {
		logger.Errorw("provider_init_authz_failed", "error", err)
		panic(err)
	}
	c.AuthzService = authzService
	if err := c.AuthzService.BootstrapBuiltinRoles(); err != nil {
		logger.Errorw("provider_bootstrap_builtin_roles_failed", "error", err)
		panic(err)
	}

	c.TokenService = service.NewTokenService(c.Config)
	c.NotifyService = service.NewNotifyService(&c.Config.Email)
	c.OTPService = service.NewOTPService(c.OTPRepo, c.TrackingRepo, c.QueueClient, c.Config.OTP.ExpireMinutes, c.Config.OTP.Length)
	c.OrderService = service.NewOrderService(c.OrderRepo, c.TrackingRepo, c.OTPService, c.QueueClient)
	c.ReturnService = service.NewReturnService(c.ReturnRepo, c.OrderRepo, c.RefundRepo, c.TrackingRepo, c.OTPService, c.QueueClient, c.Config.Return.WindowDays)
	c.RefundService = service.NewRefundService(c.RefundRepo, c.TrackingRepo, c.QueueClient, c.buildRefundProvider())
}

// buildRefundProvider 按配置选择退款执行通道。
// 配置不完整时降级为占位通道，退款执行会失败落 failed，待补齐配置后重试。
func (c *Container) buildRefundProvider() service.RefundProvider {
	switch c.Config.Refund.Provider {
	case "wechat":
		refundProvider, err := wechatpay.NewProvider(wechatpay.Config{
			MerchantID:         c.Config.Refund.Wechat.MerchantID,
			MerchantSerialNo:   c.Config.Refund.Wechat.MerchantSerialNo,
			MerchantPrivateKey: c.Config.Refund.Wechat.PrivateKeyPEM,
			APIV3Key:           c.Config.Refund.Wechat.APIv3Key,
			NotifyURL:          c.Config.Refund.Wechat.NotifyURL,
		}, c.OrderRepo)
		if err != nil {
			logger.Warnw("provider_init_wechat_refund_failed", "error", err)
			return unconfiguredRefundProvider{}
		}
		return refundProvider
	default:
		refundProvider, err := ledger.NewProvider(ledger.Config{
			Endpoint:  c.Config.Refund.Ledger.Endpoint,
			Token:     c.Config.Refund.Ledger.Token,
			TimeoutMS: c.Config.Refund.Ledger.TimeoutMS,
		})
		if err != nil {
			logger.Warnw("provider_init_ledger_refund_failed", "error", err)
			return unconfiguredRefundProvider{}
		}
		return refundProvider
	}
}

type unconfiguredRefundProvider struct{}

func (unconfiguredRefundProvider) Name() string {
	return "unconfigured"
}

func (unconfiguredRefundProvider) Execute(*models.RefundRecord) (string, error) {
	return "", errors.New("refund provider not configured")
}
