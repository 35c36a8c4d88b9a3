package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shipcycle/internal/provider"
	"github.com/shipcycle/internal/queue"
	"github.com/shipcycle/internal/service"

	"github.com/hibiken/asynq"
)

func TestIsEmailSkippableError(t *testing.T) {
	skippable := []error{
		service.ErrEmailServiceDisabled,
		service.ErrEmailServiceNotConfigured,
		service.ErrEmailRecipientRejected,
		service.ErrInvalidEmail,
		fmt.Errorf("wrap: %w", service.ErrEmailServiceDisabled),
	}
	for _, err := range skippable {
		if !isEmailSkippableError(err) {
			t.Fatalf("error should be skippable: %v", err)
		}
	}
	if isEmailSkippableError(errors.New("smtp dial failed")) {
		t.Fatalf("transport error should not be skippable")
	}
}

func TestHandlersRejectMalformedPayload(t *testing.T) {
	consumer := NewConsumer(&provider.Container{})

	if err := consumer.handleRefundExecute(context.Background(), asynq.NewTask(queue.TaskRefundExecute, []byte("{not json"))); err == nil {
		t.Fatalf("malformed refund payload should fail")
	}
	if err := consumer.handleOTPNotify(context.Background(), asynq.NewTask(queue.TaskOTPNotify, []byte("{not json"))); err == nil {
		t.Fatalf("malformed otp payload should fail")
	}
	if err := consumer.handleOrderStatusNotify(context.Background(), asynq.NewTask(queue.TaskOrderStatusNotify, []byte("{not json"))); err == nil {
		t.Fatalf("malformed order payload should fail")
	}
}

func TestHandlersSkipZeroIDs(t *testing.T) {
	consumer := NewConsumer(&provider.Container{})

	if err := consumer.handleRefundExecute(context.Background(), asynq.NewTask(queue.TaskRefundExecute, []byte(`{"refund_id":0}`))); err != nil {
		t.Fatalf("zero refund_id should be skipped: %v", err)
	}
	if err := consumer.handleOTPNotify(context.Background(), asynq.NewTask(queue.TaskOTPNotify, []byte(`{"challenge_id":0}`))); err != nil {
		t.Fatalf("zero challenge_id should be skipped: %v", err)
	}
	if err := consumer.handleOrderStatusNotify(context.Background(), asynq.NewTask(queue.TaskOrderStatusNotify, []byte(`{"order_id":0}`))); err != nil {
		t.Fatalf("zero order_id should be skipped: %v", err)
	}
}
