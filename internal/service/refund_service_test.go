package service

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shipcycle/internal/constants"
	"github.com/shipcycle/internal/models"
	"github.com/shipcycle/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// fakeRefundProvider 测试用退款通道
type fakeRefundProvider struct {
	name     string
	err      error
	calls    int
	lastRef  string
	seenKeys []string
}

func (p *fakeRefundProvider) Name() string { return p.name }

func (p *fakeRefundProvider) Execute(refund *models.RefundRecord) (string, error) {
	p.calls++
	p.seenKeys = append(p.seenKeys, refund.IdempotencyKey)
	if p.err != nil {
		return "", p.err
	}
	p.lastRef = fmt.Sprintf("%s-ref-%d", p.name, p.calls)
	return p.lastRef, nil
}

func setupRefundServiceTest(t *testing.T, provider RefundProvider) (*RefundService, *gorm.DB) {
	t.Helper()
	db := setupServiceTestDB(t, "refund_service_test")
	refundRepo := repository.NewRefundRepository(db)
	trackingRepo := repository.NewTrackingRepository(db)
	return NewRefundService(refundRepo, trackingRepo, newDisabledQueueClient(t), provider), db
}

func seedRefundRecord(t *testing.T, db *gorm.DB, status string) *models.RefundRecord {
	t.Helper()
	refund := &models.RefundRecord{
		RefundNo:       "SCF20260830" + randNumeric(12),
		ReturnID:       11,
		OrderID:        21,
		Status:         status,
		Currency:       "CNY",
		Amount:         models.NewMoneyFromDecimal(decimal.NewFromInt(319)),
		IdempotencyKey: uuid.NewString(),
	}
	if err := db.Create(refund).Error; err != nil {
		t.Fatalf("seed refund failed: %v", err)
	}
	return refund
}

func TestApproveRefundFromPending(t *testing.T) {
	provider := &fakeRefundProvider{name: "ledger"}
	svc, db := setupRefundServiceTest(t, provider)
	refund := seedRefundRecord(t, db, constants.RefundStatusPending)

	approved, err := svc.ApproveRefund(refund.ID, constants.ActorManufacturer)
	if err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if approved.Status != constants.RefundStatusApproved {
		t.Fatalf("status want approved got %s", approved.Status)
	}
	if approved.ApprovedAt == nil {
		t.Fatalf("approved_at should be set")
	}
}

func TestRejectRefundRequiresReason(t *testing.T) {
	svc, db := setupRefundServiceTest(t, &fakeRefundProvider{name: "ledger"})
	refund := seedRefundRecord(t, db, constants.RefundStatusPending)

	if _, err := svc.RejectRefund(refund.ID, constants.ActorManufacturer, " "); !errors.Is(err, ErrPreconditionFailed) {
		t.Fatalf("want ErrPreconditionFailed got %v", err)
	}

	rejected, err := svc.RejectRefund(refund.ID, constants.ActorManufacturer, "货损由客户造成")
	if err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	if rejected.Status != constants.RefundStatusRejected {
		t.Fatalf("status want rejected got %s", rejected.Status)
	}
	if rejected.FailureReason != "货损由客户造成" {
		t.Fatalf("failure_reason want recorded reason got %s", rejected.FailureReason)
	}
}

func TestExecuteCompletesApprovedRefund(t *testing.T) {
	provider := &fakeRefundProvider{name: "ledger"}
	svc, db := setupRefundServiceTest(t, provider)
	refund := seedRefundRecord(t, db, constants.RefundStatusApproved)

	if err := svc.Execute(refund.ID); err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if provider.calls != 1 {
		t.Fatalf("provider calls want 1 got %d", provider.calls)
	}
	if provider.seenKeys[0] != refund.IdempotencyKey {
		t.Fatalf("provider should receive the stored idempotency key")
	}

	loaded, err := svc.GetRefund(refund.ID)
	if err != nil {
		t.Fatalf("get refund failed: %v", err)
	}
	if loaded.Status != constants.RefundStatusCompleted {
		t.Fatalf("status want completed got %s", loaded.Status)
	}
	if loaded.Provider != "ledger" || loaded.ProviderRef != provider.lastRef {
		t.Fatalf("provider fields not recorded: %s / %s", loaded.Provider, loaded.ProviderRef)
	}
	if loaded.CompletedAt == nil || loaded.ProcessedAt == nil {
		t.Fatalf("processed_at and completed_at should be set")
	}
	if loaded.AttemptCount != 1 {
		t.Fatalf("attempt_count want 1 got %d", loaded.AttemptCount)
	}
}

func TestExecuteFailureThenRetrySucceeds(t *testing.T) {
	provider := &fakeRefundProvider{name: "ledger", err: errors.New("ledger timeout")}
	svc, db := setupRefundServiceTest(t, provider)
	refund := seedRefundRecord(t, db, constants.RefundStatusApproved)

	if err := svc.Execute(refund.ID); !errors.Is(err, ErrExternalDependency) {
		t.Fatalf("want ErrExternalDependency got %v", err)
	}

	failed, err := svc.GetRefund(refund.ID)
	if err != nil {
		t.Fatalf("get refund failed: %v", err)
	}
	if failed.Status != constants.RefundStatusFailed {
		t.Fatalf("status want failed got %s", failed.Status)
	}
	if failed.FailureReason != "ledger timeout" {
		t.Fatalf("failure_reason want ledger timeout got %s", failed.FailureReason)
	}
	if failed.FailedAt == nil {
		t.Fatalf("failed_at should be set")
	}

	if _, err := svc.RetryRefund(refund.ID, constants.ActorManufacturer); err != nil {
		t.Fatalf("retry failed: %v", err)
	}

	// 通道恢复后重试成功
	provider.err = nil
	if err := svc.Execute(refund.ID); err != nil {
		t.Fatalf("execute after retry failed: %v", err)
	}
	loaded, err := svc.GetRefund(refund.ID)
	if err != nil {
		t.Fatalf("get refund failed: %v", err)
	}
	if loaded.Status != constants.RefundStatusCompleted {
		t.Fatalf("status want completed got %s", loaded.Status)
	}
	if loaded.AttemptCount != 2 {
		t.Fatalf("attempt_count want 2 got %d", loaded.AttemptCount)
	}
}

func TestExecuteSkipsResubmitWhenProviderRefExists(t *testing.T) {
	provider := &fakeRefundProvider{name: "ledger"}
	svc, db := setupRefundServiceTest(t, provider)
	refund := seedRefundRecord(t, db, constants.RefundStatusFailed)
	if err := db.Model(&models.RefundRecord{}).Where("id = ?", refund.ID).
		Updates(map[string]interface{}{"provider": "ledger", "provider_ref": "ledger-ref-old"}).Error; err != nil {
		t.Fatalf("seed provider_ref failed: %v", err)
	}

	if err := svc.Execute(refund.ID); err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	// 通道侧已有流水号，不再重复提交
	if provider.calls != 0 {
		t.Fatalf("provider must not be called again, calls=%d", provider.calls)
	}

	loaded, err := svc.GetRefund(refund.ID)
	if err != nil {
		t.Fatalf("get refund failed: %v", err)
	}
	if loaded.Status != constants.RefundStatusCompleted {
		t.Fatalf("status want completed got %s", loaded.Status)
	}
	if loaded.ProviderRef != "ledger-ref-old" {
		t.Fatalf("provider_ref want preserved got %s", loaded.ProviderRef)
	}
}

func TestExecuteGuardsTerminalAndInFlightStates(t *testing.T) {
	svc, db := setupRefundServiceTest(t, &fakeRefundProvider{name: "ledger"})

	completed := seedRefundRecord(t, db, constants.RefundStatusCompleted)
	if err := svc.Execute(completed.ID); !errors.Is(err, ErrAlreadyFinalized) {
		t.Fatalf("completed: want ErrAlreadyFinalized got %v", err)
	}

	processing := seedRefundRecord(t, db, constants.RefundStatusProcessing)
	if err := svc.Execute(processing.ID); !errors.Is(err, ErrConcurrentModification) {
		t.Fatalf("processing: want ErrConcurrentModification got %v", err)
	}

	pending := seedRefundRecord(t, db, constants.RefundStatusPending)
	if err := svc.Execute(pending.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("pending: want ErrInvalidTransition got %v", err)
	}
}

func TestRefundTransitionRejectsWrongActor(t *testing.T) {
	svc, db := setupRefundServiceTest(t, &fakeRefundProvider{name: "ledger"})

	// 退款审核只归厂商
	pending := seedRefundRecord(t, db, constants.RefundStatusPending)
	if _, err := svc.ApproveRefund(pending.ID, constants.ActorCustomer); !errors.Is(err, ErrActorNotAllowed) {
		t.Fatalf("customer approve want ErrActorNotAllowed got %v", err)
	}
	if _, err := svc.RejectRefund(pending.ID, constants.ActorDeliveryPartner, "货损由客户造成"); !errors.Is(err, ErrActorNotAllowed) {
		t.Fatalf("delivery partner reject want ErrActorNotAllowed got %v", err)
	}

	failed := seedRefundRecord(t, db, constants.RefundStatusFailed)
	if _, err := svc.RetryRefund(failed.ID, constants.ActorCustomer); !errors.Is(err, ErrActorNotAllowed) {
		t.Fatalf("customer retry want ErrActorNotAllowed got %v", err)
	}
	if _, err := svc.RetryRefund(failed.ID, constants.ActorManufacturer); err != nil {
		t.Fatalf("manufacturer retry failed: %v", err)
	}
}

func TestRetryRefundOnlyFromFailed(t *testing.T) {
	svc, db := setupRefundServiceTest(t, &fakeRefundProvider{name: "ledger"})

	pending := seedRefundRecord(t, db, constants.RefundStatusPending)
	if _, err := svc.RetryRefund(pending.ID, constants.ActorAdmin); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("pending: want ErrInvalidTransition got %v", err)
	}

	completed := seedRefundRecord(t, db, constants.RefundStatusCompleted)
	if _, err := svc.RetryRefund(completed.ID, constants.ActorAdmin); !errors.Is(err, ErrAlreadyFinalized) {
		t.Fatalf("completed: want ErrAlreadyFinalized got %v", err)
	}
}
