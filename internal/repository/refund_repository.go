package repository

import (
	"errors"

	"github.com/shipcycle/internal/models"

	"gorm.io/gorm"
)

// RefundRepository 退款记录数据访问接口
type RefundRepository interface {
	Create(refund *models.RefundRecord) error
	GetByID(id uint) (*models.RefundRecord, error)
	GetByRefundNo(refundNo string) (*models.RefundRecord, error)
	GetByReturnID(returnID uint) (*models.RefundRecord, error)
	GetByIdempotencyKey(key string) (*models.RefundRecord, error)
	List(filter RefundListFilter) ([]models.RefundRecord, int64, error)
	UpdateStatusIf(id uint, fromStatus, toStatus string, updates map[string]interface{}) (bool, error)
	IncrementAttempt(id uint) error
	WithTx(tx *gorm.DB) *GormRefundRepository
}

// GormRefundRepository GORM 实现
type GormRefundRepository struct {
	db *gorm.DB
}

// NewRefundRepository 创建退款记录仓库
func NewRefundRepository(db *gorm.DB) *GormRefundRepository {
	return &GormRefundRepository{db: db}
}

// WithTx 绑定事务
func (r *GormRefundRepository) WithTx(tx *gorm.DB) *GormRefundRepository {
	if tx == nil {
		return r
	}
	return &GormRefundRepository{db: tx}
}

// Create 创建退款记录
func (r *GormRefundRepository) Create(refund *models.RefundRecord) error {
	return r.db.Create(refund).Error
}

// GetByID 根据 ID 获取退款记录
func (r *GormRefundRepository) GetByID(id uint) (*models.RefundRecord, error) {
	var refund models.RefundRecord
	if err := r.db.First(&refund, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &refund, nil
}

// GetByRefundNo 根据退款单编号获取退款记录
func (r *GormRefundRepository) GetByRefundNo(refundNo string) (*models.RefundRecord, error) {
	var refund models.RefundRecord
	if err := r.db.Where("refund_no = ?", refundNo).First(&refund).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &refund, nil
}

// GetByReturnID 获取退货单对应的退款记录
func (r *GormRefundRepository) GetByReturnID(returnID uint) (*models.RefundRecord, error) {
	var refund models.RefundRecord
	if err := r.db.Where("return_id = ?", returnID).Order("id desc").First(&refund).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &refund, nil
}

// GetByIdempotencyKey 根据幂等键获取退款记录
func (r *GormRefundRepository) GetByIdempotencyKey(key string) (*models.RefundRecord, error) {
	var refund models.RefundRecord
	if err := r.db.Where("idempotency_key = ?", key).First(&refund).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &refund, nil
}

// List 退款记录列表
func (r *GormRefundRepository) List(filter RefundListFilter) ([]models.RefundRecord, int64, error) {
	var refunds []models.RefundRecord
	query := r.db.Model(&models.RefundRecord{})

	if filter.OrderID != 0 {
		query = query.Where("order_id = ?", filter.OrderID)
	}
	if filter.ReturnID != 0 {
		query = query.Where("return_id = ?", filter.ReturnID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Provider != "" {
		query = query.Where("provider = ?", filter.Provider)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	if err := query.Order("id desc").Find(&refunds).Error; err != nil {
		return nil, 0, err
	}
	return refunds, total, nil
}

// UpdateStatusIf 条件更新退款状态（乐观并发控制）
func (r *GormRefundRepository) UpdateStatusIf(id uint, fromStatus, toStatus string, updates map[string]interface{}) (bool, error) {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["status"] = toStatus
	result := r.db.Model(&models.RefundRecord{}).
		Where("id = ? AND status = ?", id, fromStatus).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// IncrementAttempt 增加执行次数
func (r *GormRefundRepository) IncrementAttempt(id uint) error {
	return r.db.Model(&models.RefundRecord{}).
		Where("id = ?", id).
		UpdateColumn("attempt_count", gorm.Expr("attempt_count + 1")).Error
}
