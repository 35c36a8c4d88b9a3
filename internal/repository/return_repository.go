package repository

import (
	"errors"

	"github.com/shipcycle/internal/constants"
	"github.com/shipcycle/internal/models"

	"gorm.io/gorm"
)

// ReturnRepository 退货单数据访问接口
type ReturnRepository interface {
	Create(ret *models.ReturnRequest) error
	GetByID(id uint) (*models.ReturnRequest, error)
	GetByReturnNo(returnNo string) (*models.ReturnRequest, error)
	GetByIDAndCustomer(id uint, customerID uint) (*models.ReturnRequest, error)
	GetOpenByOrder(orderID uint) (*models.ReturnRequest, error)
	List(filter ReturnListFilter) ([]models.ReturnRequest, int64, error)
	UpdateStatusIf(id uint, fromStatus, toStatus string, updates map[string]interface{}) (bool, error)
	WithTx(tx *gorm.DB) *GormReturnRepository
}

// GormReturnRepository GORM 实现
type GormReturnRepository struct {
	db *gorm.DB
}

// NewReturnRepository 创建退货单仓库
func NewReturnRepository(db *gorm.DB) *GormReturnRepository {
	return &GormReturnRepository{db: db}
}

// WithTx 绑定事务
func (r *GormReturnRepository) WithTx(tx *gorm.DB) *GormReturnRepository {
	if tx == nil {
		return r
	}
	return &GormReturnRepository{db: tx}
}

// Create 创建退货单
func (r *GormReturnRepository) Create(ret *models.ReturnRequest) error {
	return r.db.Create(ret).Error
}

// GetByID 根据 ID 获取退货单
func (r *GormReturnRepository) GetByID(id uint) (*models.ReturnRequest, error) {
	var ret models.ReturnRequest
	if err := r.db.Preload("Refund").First(&ret, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &ret, nil
}

// GetByReturnNo 根据退货单编号获取退货单
func (r *GormReturnRepository) GetByReturnNo(returnNo string) (*models.ReturnRequest, error) {
	var ret models.ReturnRequest
	if err := r.db.Preload("Refund").Where("return_no = ?", returnNo).First(&ret).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &ret, nil
}

// GetByIDAndCustomer 获取客户退货单详情
func (r *GormReturnRepository) GetByIDAndCustomer(id uint, customerID uint) (*models.ReturnRequest, error) {
	var ret models.ReturnRequest
	if err := r.db.Preload("Refund").
		Where("id = ? AND customer_id = ?", id, customerID).
		First(&ret).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &ret, nil
}

// GetOpenByOrder 获取订单当前未终结的退货单。
// rejected/cancelled 视为终结，refund_requested 之后由退款流程接管。
func (r *GormReturnRepository) GetOpenByOrder(orderID uint) (*models.ReturnRequest, error) {
	var ret models.ReturnRequest
	if err := r.db.Where("order_id = ? AND status NOT IN ?", orderID, []string{
		constants.ReturnStatusRejected,
		constants.ReturnStatusCancelled,
	}).
		Order("id desc").
		First(&ret).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &ret, nil
}

// List 退货单列表
func (r *GormReturnRepository) List(filter ReturnListFilter) ([]models.ReturnRequest, int64, error) {
	var rets []models.ReturnRequest
	query := r.db.Model(&models.ReturnRequest{})

	if filter.CustomerID != 0 {
		query = query.Where("customer_id = ?", filter.CustomerID)
	}
	if filter.OrderID != 0 {
		query = query.Where("order_id = ?", filter.OrderID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.ReturnNo != "" {
		query = query.Where("return_no = ?", filter.ReturnNo)
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

	if err := query.Preload("Refund").Order("id desc").Find(&rets).Error; err != nil {
		return nil, 0, err
	}
	return rets, total, nil
}

// UpdateStatusIf 条件更新退货单状态（乐观并发控制）
func (r *GormReturnRepository) UpdateStatusIf(id uint, fromStatus, toStatus string, updates map[string]interface{}) (bool, error) {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["status"] = toStatus
	result := r.db.Model(&models.ReturnRequest{}).
		Where("id = ? AND status = ?", id, fromStatus).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
