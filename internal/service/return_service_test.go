package service

import (
	"errors"
	"testing"
	"time"

	"github.com/shipcycle/internal/constants"
	"github.com/shipcycle/internal/models"
	"github.com/shipcycle/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupReturnServiceTest(t *testing.T) (*ReturnService, *OTPService, *gorm.DB) {
	t.Helper()
	db := setupServiceTestDB(t, "return_service_test")
	orderRepo := repository.NewOrderRepository(db)
	returnRepo := repository.NewReturnRepository(db)
	refundRepo := repository.NewRefundRepository(db)
	trackingRepo := repository.NewTrackingRepository(db)
	otpRepo := repository.NewOTPChallengeRepository(db)
	queueClient := newDisabledQueueClient(t)
	otpService := NewOTPService(otpRepo, trackingRepo, queueClient, 10, 6)
	svc := NewReturnService(returnRepo, orderRepo, refundRepo, trackingRepo, otpService, queueClient, 14)
	return svc, otpService, db
}

func seedDeliveredOrder(t *testing.T, db *gorm.DB, deliveredAgo time.Duration) *models.Order {
	t.Helper()
	deliveredAt := time.Now().Add(-deliveredAgo)
	agentID := uint(42)
	order := &models.Order{
		OrderNo:         "SC20260830" + randNumeric(12),
		CustomerID:      7,
		Status:          constants.OrderStatusDelivered,
		Currency:        "CNY",
		TotalAmount:     models.NewMoneyFromDecimal(decimal.NewFromInt(319)),
		DeliveryAddress: "朝阳区建国路 88 号",
		ContactEmail:    "customer@example.com",
		DeliveryAgentID: &agentID,
		DeliveredAt:     &deliveredAt,
	}
	if err := db.Create(order).Error; err != nil {
		t.Fatalf("seed delivered order failed: %v", err)
	}
	return order
}

func requestTestReturn(t *testing.T, svc *ReturnService, orderID uint) *models.ReturnRequest {
	t.Helper()
	ret, err := svc.RequestReturn(RequestReturnInput{OrderID: orderID, CustomerID: 7, Reason: "商品有划痕"})
	if err != nil {
		t.Fatalf("request return failed: %v", err)
	}
	return ret
}

func testPickupSchedule() PickupSchedule {
	return PickupSchedule{Date: time.Now().Add(24 * time.Hour), Slot: "09:00-12:00"}
}

func TestRequestReturnWithinWindow(t *testing.T) {
	svc, _, db := setupReturnServiceTest(t)
	order := seedDeliveredOrder(t, db, 3*24*time.Hour)

	ret := requestTestReturn(t, svc, order.ID)
	if ret.Status != constants.ReturnStatusRequested {
		t.Fatalf("status want return_requested got %s", ret.Status)
	}
	if ret.ReturnNo == "" {
		t.Fatalf("return_no should be generated")
	}
}

func TestRequestReturnOutsideWindow(t *testing.T) {
	svc, _, db := setupReturnServiceTest(t)
	order := seedDeliveredOrder(t, db, 15*24*time.Hour)

	if _, err := svc.RequestReturn(RequestReturnInput{OrderID: order.ID, CustomerID: 7, Reason: "too late"}); !errors.Is(err, ErrReturnWindowClosed) {
		t.Fatalf("want ErrReturnWindowClosed got %v", err)
	}
}

func TestRequestReturnRejectsUndeliveredOrder(t *testing.T) {
	svc, _, db := setupReturnServiceTest(t)
	order := &models.Order{
		OrderNo:    "SC20260830" + randNumeric(12),
		CustomerID: 7,
		Status:     constants.OrderStatusOutForDelivery,
		Currency:   "CNY",
	}
	if err := db.Create(order).Error; err != nil {
		t.Fatalf("seed order failed: %v", err)
	}

	if _, err := svc.RequestReturn(RequestReturnInput{OrderID: order.ID, CustomerID: 7, Reason: "early"}); !errors.Is(err, ErrPreconditionFailed) {
		t.Fatalf("want ErrPreconditionFailed got %v", err)
	}
}

func TestRequestReturnRejectsSecondOpenReturn(t *testing.T) {
	svc, _, db := setupReturnServiceTest(t)
	order := seedDeliveredOrder(t, db, 24*time.Hour)
	requestTestReturn(t, svc, order.ID)

	if _, err := svc.RequestReturn(RequestReturnInput{OrderID: order.ID, CustomerID: 7, Reason: "again"}); !errors.Is(err, ErrReturnAlreadyOpen) {
		t.Fatalf("want ErrReturnAlreadyOpen got %v", err)
	}
}

func TestRequestReturnAllowedAfterRejection(t *testing.T) {
	svc, _, db := setupReturnServiceTest(t)
	order := seedDeliveredOrder(t, db, 24*time.Hour)
	first := requestTestReturn(t, svc, order.ID)

	if _, err := svc.RejectReturn(first.ID, constants.ActorManufacturer, "描述与实物不符"); err != nil {
		t.Fatalf("reject failed: %v", err)
	}

	// 被驳回的退货单不再占用开放名额
	second := requestTestReturn(t, svc, order.ID)
	if second.ID == first.ID {
		t.Fatalf("second request should create a new return")
	}
}

func TestCancelReturnOnlyBeforeReview(t *testing.T) {
	svc, _, db := setupReturnServiceTest(t)
	order := seedDeliveredOrder(t, db, 24*time.Hour)
	ret := requestTestReturn(t, svc, order.ID)

	cancelled, err := svc.CancelReturn(ret.ID, 7)
	if err != nil {
		t.Fatalf("cancel return failed: %v", err)
	}
	if cancelled.Status != constants.ReturnStatusCancelled {
		t.Fatalf("status want return_cancelled got %s", cancelled.Status)
	}

	// 审核通过后不可再撤回
	order2 := seedDeliveredOrder(t, db, 24*time.Hour)
	ret2 := requestTestReturn(t, svc, order2.ID)
	if _, err := svc.ApproveReturn(ret2.ID, constants.ActorManufacturer, testPickupSchedule()); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if _, err := svc.CancelReturn(ret2.ID, 7); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("want ErrInvalidTransition got %v", err)
	}
}

func TestApproveReturnRequiresPickupSchedule(t *testing.T) {
	svc, _, db := setupReturnServiceTest(t)
	order := seedDeliveredOrder(t, db, 24*time.Hour)
	ret := requestTestReturn(t, svc, order.ID)

	if _, err := svc.ApproveReturn(ret.ID, constants.ActorManufacturer, PickupSchedule{}); !errors.Is(err, ErrPreconditionFailed) {
		t.Fatalf("approve without schedule want ErrPreconditionFailed got %v", err)
	}
	if _, err := svc.ApproveReturn(ret.ID, constants.ActorManufacturer, PickupSchedule{Date: time.Now().Add(24 * time.Hour), Slot: "  "}); !errors.Is(err, ErrPreconditionFailed) {
		t.Fatalf("approve with blank slot want ErrPreconditionFailed got %v", err)
	}

	approved, err := svc.ApproveReturn(ret.ID, constants.ActorManufacturer, testPickupSchedule())
	if err != nil {
		t.Fatalf("approve with schedule failed: %v", err)
	}
	if approved.PickupDate == nil {
		t.Fatalf("pickup_date should be persisted")
	}
	if approved.PickupSlot != "09:00-12:00" {
		t.Fatalf("pickup_slot want 09:00-12:00 got %s", approved.PickupSlot)
	}
}

func TestReturnTransitionRejectsWrongActor(t *testing.T) {
	svc, _, db := setupReturnServiceTest(t)
	order := seedDeliveredOrder(t, db, 24*time.Hour)
	ret := requestTestReturn(t, svc, order.ID)

	// 客户不能审核自己的退货
	if _, err := svc.ApproveReturn(ret.ID, constants.ActorCustomer, testPickupSchedule()); !errors.Is(err, ErrActorNotAllowed) {
		t.Fatalf("customer approve want ErrActorNotAllowed got %v", err)
	}
	if _, err := svc.ApproveReturn(ret.ID, constants.ActorManufacturer, testPickupSchedule()); err != nil {
		t.Fatalf("approve failed: %v", err)
	}

	// 厂商不能替配送员走取件链
	if _, err := svc.StartPickup(ret.ID, 42, constants.ActorManufacturer); !errors.Is(err, ErrActorNotAllowed) {
		t.Fatalf("manufacturer pickup want ErrActorNotAllowed got %v", err)
	}
}

func TestRejectReturnRequiresReason(t *testing.T) {
	svc, _, db := setupReturnServiceTest(t)
	order := seedDeliveredOrder(t, db, 24*time.Hour)
	ret := requestTestReturn(t, svc, order.ID)

	if _, err := svc.RejectReturn(ret.ID, constants.ActorManufacturer, "  "); !errors.Is(err, ErrPreconditionFailed) {
		t.Fatalf("want ErrPreconditionFailed got %v", err)
	}
}

func TestPickupChainCreatesRefund(t *testing.T) {
	svc, otpSvc, db := setupReturnServiceTest(t)
	order := seedDeliveredOrder(t, db, 24*time.Hour)
	ret := requestTestReturn(t, svc, order.ID)

	if _, err := svc.ApproveReturn(ret.ID, constants.ActorManufacturer, testPickupSchedule()); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if _, err := svc.StartPickup(ret.ID, 42, constants.ActorDeliveryPartner); err != nil {
		t.Fatalf("start pickup failed: %v", err)
	}
	if _, err := svc.MarkPickupNearLocation(ret.ID, 42, constants.ActorDeliveryPartner); err != nil {
		t.Fatalf("mark pickup near location failed: %v", err)
	}
	if _, err := svc.GeneratePickupOTP(ret.ID, 42, constants.ActorDeliveryPartner); err != nil {
		t.Fatalf("generate pickup otp failed: %v", err)
	}

	challenge, err := otpSvc.GetActiveChallenge(order.ID, constants.OTPPurposePickup)
	if err != nil {
		t.Fatalf("get pickup challenge failed: %v", err)
	}
	if challenge == nil {
		t.Fatalf("pickup otp should be issued")
	}

	completed, err := svc.CompletePickup(ret.ID, 42, challenge.Code, constants.ActorDeliveryPartner)
	if err != nil {
		t.Fatalf("complete pickup failed: %v", err)
	}
	if completed.Status != constants.ReturnStatusRefundRequested {
		t.Fatalf("status want refund_requested got %s", completed.Status)
	}
	if completed.PickupCompletedAt == nil {
		t.Fatalf("pickup_completed_at should be set")
	}

	var refund models.RefundRecord
	if err := db.Where("return_id = ?", ret.ID).First(&refund).Error; err != nil {
		t.Fatalf("load refund record failed: %v", err)
	}
	if refund.Status != constants.RefundStatusPending {
		t.Fatalf("refund status want pending got %s", refund.Status)
	}
	if refund.Amount.String() != order.TotalAmount.String() {
		t.Fatalf("refund amount want %s got %s", order.TotalAmount.String(), refund.Amount.String())
	}
	if refund.IdempotencyKey == "" {
		t.Fatalf("idempotency_key should be generated")
	}
}

func TestCompletePickupRejectsWrongCodeAndForeignAgent(t *testing.T) {
	svc, otpSvc, db := setupReturnServiceTest(t)
	order := seedDeliveredOrder(t, db, 24*time.Hour)
	ret := requestTestReturn(t, svc, order.ID)

	if _, err := svc.ApproveReturn(ret.ID, constants.ActorManufacturer, testPickupSchedule()); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if _, err := svc.StartPickup(ret.ID, 42, constants.ActorDeliveryPartner); err != nil {
		t.Fatalf("start pickup failed: %v", err)
	}
	if _, err := svc.MarkPickupNearLocation(ret.ID, 42, constants.ActorDeliveryPartner); err != nil {
		t.Fatalf("mark pickup near location failed: %v", err)
	}
	if _, err := svc.GeneratePickupOTP(ret.ID, 42, constants.ActorDeliveryPartner); err != nil {
		t.Fatalf("generate pickup otp failed: %v", err)
	}

	challenge, err := otpSvc.GetActiveChallenge(order.ID, constants.OTPPurposePickup)
	if err != nil || challenge == nil {
		t.Fatalf("get pickup challenge failed: %v", err)
	}

	if _, err := svc.CompletePickup(ret.ID, 99, challenge.Code, constants.ActorDeliveryPartner); !errors.Is(err, ErrActorNotAllowed) {
		t.Fatalf("want ErrActorNotAllowed got %v", err)
	}

	wrong := "000000"
	if wrong == challenge.Code {
		wrong = "000001"
	}
	if _, err := svc.CompletePickup(ret.ID, 42, wrong, constants.ActorDeliveryPartner); !errors.Is(err, ErrOTPMismatch) {
		t.Fatalf("want ErrOTPMismatch got %v", err)
	}

	loaded, err := svc.GetReturn(ret.ID)
	if err != nil {
		t.Fatalf("get return failed: %v", err)
	}
	if loaded.Status != constants.ReturnStatusPickupOTPGenerated {
		t.Fatalf("failed verify must not change status, got %s", loaded.Status)
	}
}

func TestGeneratePickupOTPReissuesExpiredCode(t *testing.T) {
	svc, otpSvc, db := setupReturnServiceTest(t)
	order := seedDeliveredOrder(t, db, 24*time.Hour)
	ret := requestTestReturn(t, svc, order.ID)

	if _, err := svc.ApproveReturn(ret.ID, constants.ActorManufacturer, testPickupSchedule()); err != nil {
		t.Fatalf("approve return failed: %v", err)
	}
	if _, err := svc.StartPickup(ret.ID, 42, constants.ActorDeliveryPartner); err != nil {
		t.Fatalf("start pickup failed: %v", err)
	}
	if _, err := svc.MarkPickupNearLocation(ret.ID, 42, constants.ActorDeliveryPartner); err != nil {
		t.Fatalf("mark pickup near location failed: %v", err)
	}
	if _, err := svc.GeneratePickupOTP(ret.ID, 42, constants.ActorDeliveryPartner); err != nil {
		t.Fatalf("generate pickup otp failed: %v", err)
	}

	first, err := otpSvc.GetActiveChallenge(order.ID, constants.OTPPurposePickup)
	if err != nil || first == nil {
		t.Fatalf("get pickup challenge failed: %v", err)
	}

	// 把口令改成已过期，验证会失败但不允许流程卡死
	expired := time.Now().Add(-time.Minute)
	if err := db.Model(&models.OTPChallenge{}).
		Where("order_id = ? AND purpose = ?", order.ID, constants.OTPPurposePickup).
		Update("expires_at", expired).Error; err != nil {
		t.Fatalf("backdate challenge failed: %v", err)
	}
	if _, err := svc.CompletePickup(ret.ID, 42, first.Code, constants.ActorDeliveryPartner); !errors.Is(err, ErrOTPExpired) {
		t.Fatalf("want ErrOTPExpired got %v", err)
	}

	// 重入生成接口重签口令，状态不动
	if _, err := svc.GeneratePickupOTP(ret.ID, 42, constants.ActorDeliveryPartner); err != nil {
		t.Fatalf("regenerate pickup otp failed: %v", err)
	}
	fresh, err := otpSvc.GetActiveChallenge(order.ID, constants.OTPPurposePickup)
	if err != nil || fresh == nil {
		t.Fatalf("reissued pickup challenge missing: %v", err)
	}

	completed, err := svc.CompletePickup(ret.ID, 42, fresh.Code, constants.ActorDeliveryPartner)
	if err != nil {
		t.Fatalf("complete pickup with reissued code failed: %v", err)
	}
	if completed.Status != constants.ReturnStatusRefundRequested {
		t.Fatalf("status want refund_requested got %s", completed.Status)
	}
}

func TestPickupChainRejectsSkippedState(t *testing.T) {
	svc, _, db := setupReturnServiceTest(t)
	order := seedDeliveredOrder(t, db, 24*time.Hour)
	ret := requestTestReturn(t, svc, order.ID)

	// 未审核通过不可直接上门取件
	if _, err := svc.StartPickup(ret.ID, 42, constants.ActorDeliveryPartner); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("want ErrInvalidTransition got %v", err)
	}
}
