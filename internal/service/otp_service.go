package service

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/shipcycle/internal/constants"
	"github.com/shipcycle/internal/logger"
	"github.com/shipcycle/internal/models"
	"github.com/shipcycle/internal/queue"
	"github.com/shipcycle/internal/repository"

	"gorm.io/gorm"
)

// OTPService 口令挑战服务
type OTPService struct {
	otpRepo       repository.OTPChallengeRepository
	trackingRepo  repository.TrackingRepository
	queueClient   *queue.Client
	expireMinutes int
	codeLength    int
}

// NewOTPService 创建口令挑战服务
func NewOTPService(otpRepo repository.OTPChallengeRepository, trackingRepo repository.TrackingRepository, queueClient *queue.Client, expireMinutes, codeLength int) *OTPService {
	if expireMinutes <= 0 {
		expireMinutes = 10
	}
	if codeLength <= 0 {
		codeLength = constants.OTPCodeLength
	}
	return &OTPService{
		otpRepo:       otpRepo,
		trackingRepo:  trackingRepo,
		queueClient:   queueClient,
		expireMinutes: expireMinutes,
		codeLength:    codeLength,
	}
}

// IssueInput 签发口令输入
type IssueInput struct {
	OrderID  uint
	ReturnID *uint
	Purpose  string
	Actor    string
}

// Issue 为订单签发口令挑战。
// 同单同用途的旧存活挑战会被顶替，任一时刻每个 (订单, 用途) 至多一条存活挑战。
func (s *OTPService) Issue(input IssueInput) (*models.OTPChallenge, error) {
	if input.OrderID == 0 {
		return nil, ErrOrderNotFound
	}
	if input.Purpose != constants.OTPPurposeDelivery && input.Purpose != constants.OTPPurposePickup {
		return nil, ErrPreconditionFailed
	}

	code, err := s.generateCode()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	challenge := &models.OTPChallenge{
		OrderID:   input.OrderID,
		ReturnID:  input.ReturnID,
		Purpose:   input.Purpose,
		Code:      code,
		Status:    constants.OTPStatusActive,
		ExpiresAt: now.Add(time.Duration(s.expireMinutes) * time.Minute),
		IssuedAt:  now,
	}

	err = models.DB.Transaction(func(tx *gorm.DB) error {
		otpRepo := s.otpRepo.WithTx(tx)
		if err := otpRepo.SupersedeActive(input.OrderID, input.Purpose, now); err != nil {
			return err
		}
		if err := otpRepo.Create(challenge); err != nil {
			return err
		}
		trackingRepo := s.trackingRepo.WithTx(tx)
		return trackingRepo.Append(&models.TrackingEvent{
			OrderID:    input.OrderID,
			ReturnID:   input.ReturnID,
			EventType:  constants.TrackingEventOTPIssued,
			Actor:      input.Actor,
			Note:       input.Purpose,
			OccurredAt: now,
		})
	})
	if err != nil {
		return nil, err
	}

	// 通知排队失败视为签发失败：客户收不到口令，挑战留着只会堵死交付。
	// 顶掉刚建的挑战，让调用方重签。
	if err := s.queueClient.EnqueueOTPNotify(queue.OTPNotifyPayload{ChallengeID: challenge.ID}); err != nil {
		logger.Errorw("otp_notify_enqueue_failed",
			"order_id", input.OrderID,
			"purpose", input.Purpose,
			"challenge_id", challenge.ID,
			"error", err,
		)
		if supersedeErr := s.otpRepo.SupersedeActive(input.OrderID, input.Purpose, time.Now()); supersedeErr != nil {
			logger.Warnw("otp_supersede_failed", "challenge_id", challenge.ID, "error", supersedeErr)
		}
		return nil, fmt.Errorf("%w: otp notify enqueue: %v", ErrExternalDependency, err)
	}

	logger.Infow("otp_challenge_issued",
		"order_id", input.OrderID,
		"purpose", input.Purpose,
		"challenge_id", challenge.ID,
		"expires_at", challenge.ExpiresAt,
	)
	return challenge, nil
}

// Verify 校验并消费口令。
// 口令一次性有效：校验命中即消费，过期挑战惰性标记为 expired。
func (s *OTPService) Verify(orderID uint, purpose, code string) (*models.OTPChallenge, error) {
	challenge, err := s.otpRepo.GetActive(orderID, purpose)
	if err != nil {
		return nil, err
	}
	if challenge == nil {
		return nil, ErrOTPNotFound
	}

	now := time.Now()
	if now.After(challenge.ExpiresAt) {
		if err := s.otpRepo.MarkExpired(challenge.ID); err != nil {
			logger.Warnw("otp_mark_expired_failed", "challenge_id", challenge.ID, "error", err)
		}
		return nil, ErrOTPExpired
	}

	supplied := strings.TrimSpace(code)
	if subtle.ConstantTimeCompare([]byte(supplied), []byte(challenge.Code)) != 1 {
		if err := s.otpRepo.IncrementAttempt(challenge.ID); err != nil {
			logger.Warnw("otp_attempt_increment_failed", "challenge_id", challenge.ID, "error", err)
		}
		logger.Warnw("otp_verify_mismatch",
			"order_id", orderID,
			"purpose", purpose,
			"challenge_id", challenge.ID,
		)
		return nil, ErrOTPMismatch
	}

	ok, err := s.otpRepo.MarkConsumed(challenge.ID, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		// 并发校验只允许一次成功
		return nil, ErrConcurrentModification
	}

	if err := s.trackingRepo.Append(&models.TrackingEvent{
		OrderID:    orderID,
		ReturnID:   challenge.ReturnID,
		EventType:  constants.TrackingEventOTPVerified,
		Actor:      constants.ActorDeliveryPartner,
		Note:       purpose,
		OccurredAt: now,
	}); err != nil {
		logger.Warnw("otp_tracking_append_failed", "challenge_id", challenge.ID, "error", err)
	}

	logger.Infow("otp_challenge_consumed",
		"order_id", orderID,
		"purpose", purpose,
		"challenge_id", challenge.ID,
	)
	challenge.Status = constants.OTPStatusConsumed
	challenge.ConsumedAt = &now
	return challenge, nil
}

// GetActiveChallenge 查询订单当前存活挑战
func (s *OTPService) GetActiveChallenge(orderID uint, purpose string) (*models.OTPChallenge, error) {
	return s.otpRepo.GetActive(orderID, purpose)
}

func (s *OTPService) generateCode() (string, error) {
	var b strings.Builder
	for i := 0; i < s.codeLength; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("generate otp code: %w", err)
		}
		b.WriteString(fmt.Sprintf("%d", n.Int64()))
	}
	return b.String(), nil
}
