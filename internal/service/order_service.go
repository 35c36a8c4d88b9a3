package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/shipcycle/internal/cache"
	"github.com/shipcycle/internal/constants"
	"github.com/shipcycle/internal/logger"
	"github.com/shipcycle/internal/models"
	"github.com/shipcycle/internal/queue"
	"github.com/shipcycle/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderService 订单服务
type OrderService struct {
	orderRepo    repository.OrderRepository
	trackingRepo repository.TrackingRepository
	otpService   *OTPService
	queueClient  *queue.Client
}

// NewOrderService 创建订单服务
func NewOrderService(orderRepo repository.OrderRepository, trackingRepo repository.TrackingRepository, otpService *OTPService, queueClient *queue.Client) *OrderService {
	return &OrderService{
		orderRepo:    orderRepo,
		trackingRepo: trackingRepo,
		otpService:   otpService,
		queueClient:  queueClient,
	}
}

// CreateOrderInput 创建订单输入
type CreateOrderInput struct {
	CustomerID      uint
	DeliveryAddress string
	ContactPhone    string
	ContactEmail    string
	Currency        string
	Items           []CreateOrderItem
}

// CreateOrderItem 创建订单项输入
type CreateOrderItem struct {
	ProductName string
	SKU         string
	Attributes  models.JSON
	Tags        []string
	UnitPrice   decimal.Decimal
	Quantity    int
}

// CreateOrder 创建订单，初始状态为 pending
func (s *OrderService) CreateOrder(input CreateOrderInput) (*models.Order, error) {
	if input.CustomerID == 0 || len(input.Items) == 0 {
		return nil, ErrPreconditionFailed
	}
	if strings.TrimSpace(input.DeliveryAddress) == "" {
		return nil, ErrPreconditionFailed
	}

	currency := strings.TrimSpace(input.Currency)
	if currency == "" {
		currency = constants.SiteCurrencyDefault
	}

	total := decimal.Zero
	items := make([]models.OrderItem, 0, len(input.Items))
	for _, in := range input.Items {
		if strings.TrimSpace(in.ProductName) == "" || in.Quantity <= 0 {
			return nil, ErrPreconditionFailed
		}
		if in.UnitPrice.IsNegative() {
			return nil, ErrPreconditionFailed
		}
		lineTotal := in.UnitPrice.Mul(decimal.NewFromInt(int64(in.Quantity)))
		total = total.Add(lineTotal)
		items = append(items, models.OrderItem{
			ProductName:    strings.TrimSpace(in.ProductName),
			SKU:            strings.TrimSpace(in.SKU),
			AttributesJSON: in.Attributes,
			Tags:           in.Tags,
			UnitPrice:      models.NewMoneyFromDecimal(in.UnitPrice),
			Quantity:       in.Quantity,
			TotalPrice:     models.NewMoneyFromDecimal(lineTotal),
		})
	}

	now := time.Now()
	order := &models.Order{
		OrderNo:         generateOrderNo(),
		CustomerID:      input.CustomerID,
		Status:          constants.OrderStatusPending,
		Currency:        currency,
		TotalAmount:     models.NewMoneyFromDecimal(total),
		DeliveryAddress: strings.TrimSpace(input.DeliveryAddress),
		ContactPhone:    strings.TrimSpace(input.ContactPhone),
		ContactEmail:    strings.TrimSpace(input.ContactEmail),
	}

	err := models.DB.Transaction(func(tx *gorm.DB) error {
		orderRepo := s.orderRepo.WithTx(tx)
		if err := orderRepo.Create(order, items); err != nil {
			return err
		}
		trackingRepo := s.trackingRepo.WithTx(tx)
		return trackingRepo.Append(&models.TrackingEvent{
			OrderID:    order.ID,
			EventType:  constants.TrackingEventTransition,
			ToStatus:   constants.OrderStatusPending,
			Actor:      constants.ActorCustomer,
			OccurredAt: now,
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Infow("order_created",
		"order_id", order.ID,
		"order_no", order.OrderNo,
		"customer_id", order.CustomerID,
		"total_amount", order.TotalAmount.String(),
	)
	return order, nil
}

// ConfirmOrder 平台确认订单（pending → confirmed）
func (s *OrderService) ConfirmOrder(orderID uint, actor string) (*models.Order, error) {
	now := time.Now()
	return s.transition(orderID, constants.OrderStatusConfirmed, actor, "", map[string]interface{}{
		"confirmed_at": now,
	})
}

// StartProcessing 厂商开始备货（confirmed → processing）
func (s *OrderService) StartProcessing(orderID uint, actor string) (*models.Order, error) {
	return s.transition(orderID, constants.OrderStatusProcessing, actor, "", nil)
}

// StartDelivery 配送员领单发出配送（processing → out_for_delivery）。
// 同一配送员重复领单视为幂等，不再追加轨迹。
func (s *OrderService) StartDelivery(orderID uint, agentID uint, actor string) (*models.Order, error) {
	if agentID == 0 {
		return nil, ErrPreconditionFailed
	}

	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if order.Status == constants.OrderStatusOutForDelivery {
		if order.DeliveryAgentID != nil && *order.DeliveryAgentID == agentID {
			return order, nil
		}
		return nil, ErrActorNotAllowed
	}

	now := time.Now()
	return s.transition(orderID, constants.OrderStatusOutForDelivery, actor, "", map[string]interface{}{
		"delivery_agent_id":   agentID,
		"out_for_delivery_at": now,
	})
}

// MarkNearLocation 配送员到达附近（out_for_delivery → near_location）。
// 迁移成功后自动签发交付口令并异步通知客户。
// 已处于 near_location 时允许重入：不再迁移，只重签口令，作为口令过期后的恢复通道。
func (s *OrderService) MarkNearLocation(orderID uint, agentID uint, actor string) (*models.Order, error) {
	order, err := s.loadAgentOrder(orderID, agentID)
	if err != nil {
		return nil, err
	}

	updated := order
	if order.Status != constants.OrderStatusNearLocation {
		updated, err = s.transition(order.ID, constants.OrderStatusNearLocation, actor, "", nil)
		if err != nil {
			return nil, err
		}
	}

	if _, err := s.otpService.Issue(IssueInput{
		OrderID: order.ID,
		Purpose: constants.OTPPurposeDelivery,
		Actor:   actor,
	}); err != nil {
		logger.Errorw("delivery_otp_issue_failed", "order_id", order.ID, "error", err)
		return nil, err
	}
	return updated, nil
}

// CompleteDelivery 配送员提交客户口令完成交付（near_location → delivered）。
// 口令校验通过才允许落 delivered，校验失败不改变订单状态。
func (s *OrderService) CompleteDelivery(orderID uint, agentID uint, code string, actor string) (*models.Order, error) {
	order, err := s.loadAgentOrder(orderID, agentID)
	if err != nil {
		return nil, err
	}
	if order.Status != constants.OrderStatusNearLocation {
		if IsOrderTerminal(order.Status) {
			return nil, ErrAlreadyFinalized
		}
		return nil, invalidTransitionError(order.Status, constants.OrderStatusDelivered, NextOrderStatuses(order.Status))
	}

	if _, err := s.otpService.Verify(order.ID, constants.OTPPurposeDelivery, code); err != nil {
		return nil, err
	}

	now := time.Now()
	return s.transition(order.ID, constants.OrderStatusDelivered, actor, "", map[string]interface{}{
		"delivered_at": now,
	})
}

// CancelOrder 取消订单。delivered 之前的任意状态都可取消，谁能取消由角色表控制。
func (s *OrderService) CancelOrder(orderID uint, actor, reason string) (*models.Order, error) {
	now := time.Now()
	return s.transition(orderID, constants.OrderStatusCancelled, actor, reason, map[string]interface{}{
		"cancelled_at":  now,
		"cancel_reason": strings.TrimSpace(reason),
	})
}

// GetOrder 获取订单详情
func (s *OrderService) GetOrder(orderID uint) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// GetOrderForCustomer 获取客户自己的订单详情
func (s *OrderService) GetOrderForCustomer(orderID, customerID uint) (*models.Order, error) {
	order, err := s.orderRepo.GetByIDAndCustomer(orderID, customerID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// ListCustomerOrders 客户订单列表
func (s *OrderService) ListCustomerOrders(filter repository.OrderListFilter) ([]models.Order, int64, error) {
	return s.orderRepo.ListByCustomer(filter)
}

// ListAgentOrders 配送员订单列表
func (s *OrderService) ListAgentOrders(filter repository.OrderListFilter) ([]models.Order, int64, error) {
	return s.orderRepo.ListByAgent(filter)
}

// ListAdminOrders 管理端订单列表
func (s *OrderService) ListAdminOrders(filter repository.OrderListFilter) ([]models.Order, int64, error) {
	return s.orderRepo.ListAdmin(filter)
}

// GetTrackingHistory 获取订单轨迹
func (s *OrderService) GetTrackingHistory(orderID uint) ([]models.TrackingEvent, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return s.trackingRepo.ListByOrder(orderID)
}

// GetTrackingSnapshot 获取订单轨迹快照，优先命中 Redis。
func (s *OrderService) GetTrackingSnapshot(ctx context.Context, orderID uint) (*cache.TrackingSnapshot, error) {
	snapshot, hit, err := cache.GetTrackingSnapshot(ctx, orderID)
	if err != nil {
		logger.Warnw("tracking_snapshot_get_failed", "order_id", orderID, "error", err)
	}
	if hit {
		return snapshot, nil
	}

	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	events, err := s.trackingRepo.ListByOrder(orderID)
	if err != nil {
		return nil, err
	}

	snapshot = cache.BuildTrackingSnapshot(order, events)
	if err := cache.SetTrackingSnapshot(ctx, snapshot); err != nil {
		logger.Warnw("tracking_snapshot_set_failed", "order_id", orderID, "error", err)
	}
	return snapshot, nil
}

// transition 执行一次带守卫的订单状态迁移。
// 先按当前快照校验状态机与角色，再以条件更新落库；条件更新落空视为并发冲突。
func (s *OrderService) transition(orderID uint, toStatus, actor, note string, updates map[string]interface{}) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}

	fromStatus := order.Status
	if IsOrderTerminal(fromStatus) {
		return nil, ErrAlreadyFinalized
	}
	if !CanTransitionOrder(fromStatus, toStatus) {
		return nil, invalidTransitionError(fromStatus, toStatus, NextOrderStatuses(fromStatus))
	}
	if !ActorAllowedForOrderTransition(fromStatus, toStatus, actor) {
		return nil, ErrActorNotAllowed
	}

	now := time.Now()
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		orderRepo := s.orderRepo.WithTx(tx)
		ok, err := orderRepo.UpdateStatusIf(orderID, fromStatus, toStatus, updates)
		if err != nil {
			return err
		}
		if !ok {
			return s.staleOrderError(orderID)
		}
		trackingRepo := s.trackingRepo.WithTx(tx)
		return trackingRepo.Append(&models.TrackingEvent{
			OrderID:    orderID,
			EventType:  constants.TrackingEventTransition,
			FromStatus: fromStatus,
			ToStatus:   toStatus,
			Actor:      actor,
			Note:       note,
			OccurredAt: now,
		})
	})
	if err != nil {
		return nil, err
	}

	if err := cache.DelTrackingSnapshot(context.Background(), orderID); err != nil {
		logger.Warnw("tracking_snapshot_del_failed", "order_id", orderID, "error", err)
	}

	if err := s.queueClient.EnqueueOrderStatusNotify(queue.OrderStatusNotifyPayload{
		OrderID: orderID,
		Status:  toStatus,
	}); err != nil {
		logger.Warnw("order_status_notify_enqueue_failed", "order_id", orderID, "status", toStatus, "error", err)
	}

	logger.Infow("order_status_changed",
		"order_id", orderID,
		"from", fromStatus,
		"to", toStatus,
		"actor", actor,
	)
	return s.orderRepo.GetByID(orderID)
}

// staleOrderError 条件更新落空时回读最新状态，便于调用方按最新状态重试
func (s *OrderService) staleOrderError(orderID uint) error {
	current, err := s.orderRepo.GetByID(orderID)
	if err != nil || current == nil {
		return ErrConcurrentModification
	}
	return staleStateError(current.Status, NextOrderStatuses(current.Status))
}

// loadAgentOrder 加载订单并校验配送员归属
func (s *OrderService) loadAgentOrder(orderID, agentID uint) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if agentID != 0 && order.DeliveryAgentID != nil && *order.DeliveryAgentID != agentID {
		return nil, ErrActorNotAllowed
	}
	return order, nil
}

func generateOrderNo() string {
	now := time.Now().Format("20060102150405")
	randPart := randNumeric(6)
	return fmt.Sprintf("SC%s%s", now, randPart)
}

func randNumeric(length int) string {
	var b strings.Builder
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			b.WriteString("0")
			continue
		}
		b.WriteString(fmt.Sprintf("%d", n.Int64()))
	}
	return b.String()
}
