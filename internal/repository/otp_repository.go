package repository

import (
	"errors"
	"time"

	"github.com/shipcycle/internal/constants"
	"github.com/shipcycle/internal/models"

	"gorm.io/gorm"
)

// OTPChallengeRepository 口令挑战数据访问接口
type OTPChallengeRepository interface {
	Create(challenge *models.OTPChallenge) error
	GetByID(id uint) (*models.OTPChallenge, error)
	GetActive(orderID uint, purpose string) (*models.OTPChallenge, error)
	SupersedeActive(orderID uint, purpose string, at time.Time) error
	MarkConsumed(id uint, consumedAt time.Time) (bool, error)
	MarkExpired(id uint) error
	IncrementAttempt(id uint) error
	ListByOrder(orderID uint) ([]models.OTPChallenge, error)
	WithTx(tx *gorm.DB) *GormOTPChallengeRepository
}

// GormOTPChallengeRepository GORM 实现
type GormOTPChallengeRepository struct {
	db *gorm.DB
}

// NewOTPChallengeRepository 创建口令挑战仓库
func NewOTPChallengeRepository(db *gorm.DB) *GormOTPChallengeRepository {
	return &GormOTPChallengeRepository{db: db}
}

// WithTx 绑定事务
func (r *GormOTPChallengeRepository) WithTx(tx *gorm.DB) *GormOTPChallengeRepository {
	if tx == nil {
		return r
	}
	return &GormOTPChallengeRepository{db: tx}
}

// Create 创建口令挑战记录
func (r *GormOTPChallengeRepository) Create(challenge *models.OTPChallenge) error {
	return r.db.Create(challenge).Error
}

// GetByID 按主键获取挑战记录
func (r *GormOTPChallengeRepository) GetByID(id uint) (*models.OTPChallenge, error) {
	var record models.OTPChallenge
	if err := r.db.First(&record, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// GetActive 获取订单在指定用途下的存活挑战
func (r *GormOTPChallengeRepository) GetActive(orderID uint, purpose string) (*models.OTPChallenge, error) {
	var record models.OTPChallenge
	if err := r.db.Where("order_id = ? AND purpose = ? AND status = ?", orderID, purpose, constants.OTPStatusActive).
		Order("issued_at desc, id desc").
		First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// SupersedeActive 将同单同用途的存活挑战全部标记为被顶替
func (r *GormOTPChallengeRepository) SupersedeActive(orderID uint, purpose string, at time.Time) error {
	return r.db.Model(&models.OTPChallenge{}).
		Where("order_id = ? AND purpose = ? AND status = ?", orderID, purpose, constants.OTPStatusActive).
		Updates(map[string]interface{}{
			"status":        constants.OTPStatusSuperseded,
			"superseded_at": at,
		}).Error
}

// MarkConsumed 标记挑战已消费（仅存活状态可消费，返回是否命中）
func (r *GormOTPChallengeRepository) MarkConsumed(id uint, consumedAt time.Time) (bool, error) {
	result := r.db.Model(&models.OTPChallenge{}).
		Where("id = ? AND status = ?", id, constants.OTPStatusActive).
		Updates(map[string]interface{}{
			"status":      constants.OTPStatusConsumed,
			"consumed_at": consumedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// MarkExpired 标记挑战已过期
func (r *GormOTPChallengeRepository) MarkExpired(id uint) error {
	return r.db.Model(&models.OTPChallenge{}).
		Where("id = ? AND status = ?", id, constants.OTPStatusActive).
		Update("status", constants.OTPStatusExpired).Error
}

// IncrementAttempt 增加校验尝试次数
func (r *GormOTPChallengeRepository) IncrementAttempt(id uint) error {
	return r.db.Model(&models.OTPChallenge{}).
		Where("id = ?", id).
		UpdateColumn("attempt_count", gorm.Expr("attempt_count + 1")).Error
}

// ListByOrder 获取订单全部挑战记录
func (r *GormOTPChallengeRepository) ListByOrder(orderID uint) ([]models.OTPChallenge, error) {
	var records []models.OTPChallenge
	if err := r.db.Where("order_id = ?", orderID).
		Order("id desc").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
