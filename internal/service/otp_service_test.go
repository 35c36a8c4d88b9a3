package service

import (
	"errors"
	"testing"
	"time"

	"github.com/shipcycle/internal/config"
	"github.com/shipcycle/internal/constants"
	"github.com/shipcycle/internal/models"
	"github.com/shipcycle/internal/queue"
	"github.com/shipcycle/internal/repository"

	"gorm.io/gorm"
)

func setupOTPServiceTest(t *testing.T) (*OTPService, *gorm.DB) {
	t.Helper()
	db := setupServiceTestDB(t, "otp_service_test")
	otpRepo := repository.NewOTPChallengeRepository(db)
	trackingRepo := repository.NewTrackingRepository(db)
	return NewOTPService(otpRepo, trackingRepo, newDisabledQueueClient(t), 10, 6), db
}

func seedOTPTestOrder(t *testing.T, db *gorm.DB) *models.Order {
	t.Helper()
	order := &models.Order{
		OrderNo:         "SC20260830120000000001",
		CustomerID:      7,
		Status:          constants.OrderStatusNearLocation,
		Currency:        "CNY",
		DeliveryAddress: "海淀区中关村大街 1 号",
	}
	if err := db.Create(order).Error; err != nil {
		t.Fatalf("seed order failed: %v", err)
	}
	return order
}

func TestIssueGeneratesNumericCode(t *testing.T) {
	svc, db := setupOTPServiceTest(t)
	order := seedOTPTestOrder(t, db)

	challenge, err := svc.Issue(IssueInput{OrderID: order.ID, Purpose: constants.OTPPurposeDelivery, Actor: constants.ActorSystem})
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if len(challenge.Code) != 6 {
		t.Fatalf("code length want 6 got %d", len(challenge.Code))
	}
	for _, ch := range challenge.Code {
		if ch < '0' || ch > '9' {
			t.Fatalf("code must be numeric, got %s", challenge.Code)
		}
	}
	if challenge.Status != constants.OTPStatusActive {
		t.Fatalf("status want active got %s", challenge.Status)
	}
	if !challenge.ExpiresAt.After(time.Now()) {
		t.Fatalf("expires_at should be in the future")
	}
}

func TestIssueSupersedesPreviousChallenge(t *testing.T) {
	svc, db := setupOTPServiceTest(t)
	order := seedOTPTestOrder(t, db)

	first, err := svc.Issue(IssueInput{OrderID: order.ID, Purpose: constants.OTPPurposeDelivery, Actor: constants.ActorSystem})
	if err != nil {
		t.Fatalf("first issue failed: %v", err)
	}
	second, err := svc.Issue(IssueInput{OrderID: order.ID, Purpose: constants.OTPPurposeDelivery, Actor: constants.ActorSystem})
	if err != nil {
		t.Fatalf("second issue failed: %v", err)
	}

	var reloaded models.OTPChallenge
	if err := db.First(&reloaded, first.ID).Error; err != nil {
		t.Fatalf("reload first challenge failed: %v", err)
	}
	if reloaded.Status != constants.OTPStatusSuperseded {
		t.Fatalf("first challenge want superseded got %s", reloaded.Status)
	}

	// 旧口令被顶替后不再可用
	if _, err := svc.Verify(order.ID, constants.OTPPurposeDelivery, first.Code); err == nil && first.Code != second.Code {
		t.Fatalf("superseded code must not verify")
	}
	if _, err := svc.Verify(order.ID, constants.OTPPurposeDelivery, second.Code); err != nil {
		t.Fatalf("latest code should verify: %v", err)
	}
}

func TestIssueKeepsPurposesIndependent(t *testing.T) {
	svc, db := setupOTPServiceTest(t)
	order := seedOTPTestOrder(t, db)
	returnID := uint(33)

	delivery, err := svc.Issue(IssueInput{OrderID: order.ID, Purpose: constants.OTPPurposeDelivery, Actor: constants.ActorSystem})
	if err != nil {
		t.Fatalf("issue delivery failed: %v", err)
	}
	pickup, err := svc.Issue(IssueInput{OrderID: order.ID, ReturnID: &returnID, Purpose: constants.OTPPurposePickup, Actor: constants.ActorSystem})
	if err != nil {
		t.Fatalf("issue pickup failed: %v", err)
	}

	var reloaded models.OTPChallenge
	if err := db.First(&reloaded, delivery.ID).Error; err != nil {
		t.Fatalf("reload delivery challenge failed: %v", err)
	}
	if reloaded.Status != constants.OTPStatusActive {
		t.Fatalf("pickup issue must not supersede delivery challenge, got %s", reloaded.Status)
	}
	if pickup.ReturnID == nil || *pickup.ReturnID != returnID {
		t.Fatalf("pickup challenge should carry return_id")
	}
}

func TestIssueFailsWhenNotifyEnqueueFails(t *testing.T) {
	db := setupServiceTestDB(t, "otp_service_test")
	otpRepo := repository.NewOTPChallengeRepository(db)
	trackingRepo := repository.NewTrackingRepository(db)
	// 指向无人监听的端口，入队必然失败
	brokenQueue, err := queue.NewClient(&config.QueueConfig{Enabled: true, Host: "127.0.0.1", Port: 1})
	if err != nil {
		t.Fatalf("new queue client failed: %v", err)
	}
	t.Cleanup(func() { brokenQueue.Close() })
	svc := NewOTPService(otpRepo, trackingRepo, brokenQueue, 10, 6)
	order := seedOTPTestOrder(t, db)

	if _, err := svc.Issue(IssueInput{OrderID: order.ID, Purpose: constants.OTPPurposeDelivery, Actor: constants.ActorSystem}); !errors.Is(err, ErrExternalDependency) {
		t.Fatalf("want ErrExternalDependency got %v", err)
	}

	// 通知没发出去的口令不能留在存活态
	active, err := svc.GetActiveChallenge(order.ID, constants.OTPPurposeDelivery)
	if err != nil {
		t.Fatalf("get active challenge failed: %v", err)
	}
	if active != nil {
		t.Fatalf("failed issue must not leave an active challenge, got id %d", active.ID)
	}
}

func TestVerifyRejectsMismatchAndCountsAttempt(t *testing.T) {
	svc, db := setupOTPServiceTest(t)
	order := seedOTPTestOrder(t, db)

	challenge, err := svc.Issue(IssueInput{OrderID: order.ID, Purpose: constants.OTPPurposeDelivery, Actor: constants.ActorSystem})
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	wrong := "000000"
	if wrong == challenge.Code {
		wrong = "000001"
	}
	if _, err := svc.Verify(order.ID, constants.OTPPurposeDelivery, wrong); !errors.Is(err, ErrOTPMismatch) {
		t.Fatalf("want ErrOTPMismatch got %v", err)
	}

	var reloaded models.OTPChallenge
	if err := db.First(&reloaded, challenge.ID).Error; err != nil {
		t.Fatalf("reload challenge failed: %v", err)
	}
	if reloaded.AttemptCount != 1 {
		t.Fatalf("attempt_count want 1 got %d", reloaded.AttemptCount)
	}
	if reloaded.Status != constants.OTPStatusActive {
		t.Fatalf("mismatch must not consume challenge, got %s", reloaded.Status)
	}
}

func TestVerifyConsumesOnce(t *testing.T) {
	svc, db := setupOTPServiceTest(t)
	order := seedOTPTestOrder(t, db)

	challenge, err := svc.Issue(IssueInput{OrderID: order.ID, Purpose: constants.OTPPurposeDelivery, Actor: constants.ActorSystem})
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	consumed, err := svc.Verify(order.ID, constants.OTPPurposeDelivery, challenge.Code)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if consumed.Status != constants.OTPStatusConsumed {
		t.Fatalf("status want consumed got %s", consumed.Status)
	}
	if consumed.ConsumedAt == nil {
		t.Fatalf("consumed_at should be set")
	}

	// 单次使用：同一口令二次提交报找不到存活挑战
	if _, err := svc.Verify(order.ID, constants.OTPPurposeDelivery, challenge.Code); !errors.Is(err, ErrOTPNotFound) {
		t.Fatalf("want ErrOTPNotFound got %v", err)
	}
}

func TestVerifyMarksExpiredChallenge(t *testing.T) {
	svc, db := setupOTPServiceTest(t)
	order := seedOTPTestOrder(t, db)

	challenge, err := svc.Issue(IssueInput{OrderID: order.ID, Purpose: constants.OTPPurposeDelivery, Actor: constants.ActorSystem})
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if err := db.Model(&models.OTPChallenge{}).Where("id = ?", challenge.ID).
		Update("expires_at", time.Now().Add(-time.Minute)).Error; err != nil {
		t.Fatalf("backdate expires_at failed: %v", err)
	}

	if _, err := svc.Verify(order.ID, constants.OTPPurposeDelivery, challenge.Code); !errors.Is(err, ErrOTPExpired) {
		t.Fatalf("want ErrOTPExpired got %v", err)
	}

	var reloaded models.OTPChallenge
	if err := db.First(&reloaded, challenge.ID).Error; err != nil {
		t.Fatalf("reload challenge failed: %v", err)
	}
	if reloaded.Status != constants.OTPStatusExpired {
		t.Fatalf("status want expired got %s", reloaded.Status)
	}
}

func TestVerifyWithoutActiveChallenge(t *testing.T) {
	svc, db := setupOTPServiceTest(t)
	order := seedOTPTestOrder(t, db)

	if _, err := svc.Verify(order.ID, constants.OTPPurposeDelivery, "123456"); !errors.Is(err, ErrOTPNotFound) {
		t.Fatalf("want ErrOTPNotFound got %v", err)
	}
}
