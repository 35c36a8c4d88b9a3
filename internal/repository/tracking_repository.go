package repository

import (
	"github.com/shipcycle/internal/models"

	"gorm.io/gorm"
)

// TrackingRepository 轨迹事件数据访问接口（只追加，不更新）
type TrackingRepository interface {
	Append(event *models.TrackingEvent) error
	ListByOrder(orderID uint) ([]models.TrackingEvent, error)
	List(filter TrackingListFilter) ([]models.TrackingEvent, int64, error)
	WithTx(tx *gorm.DB) *GormTrackingRepository
}

// GormTrackingRepository GORM 实现
type GormTrackingRepository struct {
	db *gorm.DB
}

// NewTrackingRepository 创建轨迹事件仓库
func NewTrackingRepository(db *gorm.DB) *GormTrackingRepository {
	return &GormTrackingRepository{db: db}
}

// WithTx 绑定事务
func (r *GormTrackingRepository) WithTx(tx *gorm.DB) *GormTrackingRepository {
	if tx == nil {
		return r
	}
	return &GormTrackingRepository{db: tx}
}

// Append 追加轨迹事件
func (r *GormTrackingRepository) Append(event *models.TrackingEvent) error {
	return r.db.Create(event).Error
}

// ListByOrder 获取订单全部轨迹（按发生顺序）
func (r *GormTrackingRepository) ListByOrder(orderID uint) ([]models.TrackingEvent, error) {
	var events []models.TrackingEvent
	if err := r.db.Where("order_id = ?", orderID).
		Order("occurred_at asc, id asc").
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// List 轨迹事件列表
func (r *GormTrackingRepository) List(filter TrackingListFilter) ([]models.TrackingEvent, int64, error) {
	var events []models.TrackingEvent
	query := r.db.Model(&models.TrackingEvent{})

	if filter.OrderID != 0 {
		query = query.Where("order_id = ?", filter.OrderID)
	}
	if filter.ReturnID != 0 {
		query = query.Where("return_id = ?", filter.ReturnID)
	}
	if filter.EventType != "" {
		query = query.Where("event_type = ?", filter.EventType)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	if err := query.Order("id desc").Find(&events).Error; err != nil {
		return nil, 0, err
	}
	return events, total, nil
}
