package models

import (
	"time"

	"gorm.io/gorm"
)

// Order 订单表
type Order struct {
	ID               uint           `gorm:"primarykey" json:"id"`                                      // 主键
	OrderNo          string         `gorm:"uniqueIndex;not null" json:"order_no"`                      // 订单编号
	CustomerID       uint           `gorm:"index;not null" json:"customer_id"`                         // 客户ID
	Status           string         `gorm:"index;not null" json:"status"`                              // 订单状态
	Currency         string         `gorm:"not null" json:"currency"`                                  // 币种
	TotalAmount      Money          `gorm:"type:decimal(20,2);not null;default:0" json:"total_amount"` // 实付金额
	DeliveryAddress  string         `gorm:"type:varchar(500);not null" json:"delivery_address"`        // 收货地址
	ContactPhone     string         `gorm:"type:varchar(32)" json:"contact_phone,omitempty"`           // 联系电话
	ContactEmail     string         `gorm:"index" json:"contact_email,omitempty"`                      // 联系邮箱
	DeliveryAgentID  *uint          `gorm:"index" json:"delivery_agent_id,omitempty"`                  // 配送员ID
	ConfirmedAt      *time.Time     `gorm:"index" json:"confirmed_at"`                                 // 确认时间
	OutForDeliveryAt *time.Time     `gorm:"index" json:"out_for_delivery_at"`                          // 发出配送时间
	DeliveredAt      *time.Time     `gorm:"index" json:"delivered_at"`                                 // 送达时间
	CancelledAt      *time.Time     `gorm:"index" json:"cancelled_at"`                                 // 取消时间
	CancelReason     string         `gorm:"type:varchar(200)" json:"cancel_reason,omitempty"`          // 取消原因
	CreatedAt        time.Time      `gorm:"index" json:"created_at"`                                   // 创建时间
	UpdatedAt        time.Time      `gorm:"index" json:"updated_at"`                                   // 更新时间
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`                                            // 软删除时间

	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"` // 订单项
	// 关联
	Returns []ReturnRequest `gorm:"foreignKey:OrderID" json:"returns,omitempty"` // 退货单
}

// TableName 指定表名
func (Order) TableName() string {
	return "orders"
}
