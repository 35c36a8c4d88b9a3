package models

import (
	"time"

	"gorm.io/gorm"
)

// ReturnRequest 退货单表
type ReturnRequest struct {
	ID                uint           `gorm:"primarykey" json:"id"`                             // 主键
	ReturnNo          string         `gorm:"uniqueIndex;not null" json:"return_no"`            // 退货单编号
	OrderID           uint           `gorm:"index;not null" json:"order_id"`                   // 订单ID
	CustomerID        uint           `gorm:"index;not null" json:"customer_id"`                // 客户ID
	Status            string         `gorm:"index;not null" json:"status"`                     // 退货状态
	Reason            string         `gorm:"type:varchar(500);not null" json:"reason"`         // 退货原因
	RejectReason      string         `gorm:"type:varchar(500)" json:"reject_reason,omitempty"` // 驳回原因
	PickupAgentID     *uint          `gorm:"index" json:"pickup_agent_id,omitempty"`           // 取件配送员ID
	PickupDate        *time.Time     `gorm:"index" json:"pickup_date,omitempty"`               // 取件日期
	PickupSlot        string         `gorm:"type:varchar(50)" json:"pickup_slot,omitempty"`    // 取件时间段
	ReviewedAt        *time.Time     `gorm:"index" json:"reviewed_at"`                         // 审核时间
	OutForPickupAt    *time.Time     `gorm:"index" json:"out_for_pickup_at"`                   // 上门取件时间
	PickupCompletedAt *time.Time     `gorm:"index" json:"pickup_completed_at"`                 // 取件完成时间
	CancelledAt       *time.Time     `gorm:"index" json:"cancelled_at"`                        // 取消时间
	CreatedAt         time.Time      `gorm:"index" json:"created_at"`                          // 创建时间
	UpdatedAt         time.Time      `gorm:"index" json:"updated_at"`                          // 更新时间
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"-"`                                   // 软删除时间

	// 关联
	Refund *RefundRecord `gorm:"foreignKey:ReturnID" json:"refund,omitempty"` // 退款记录
}

// TableName 指定表名
func (ReturnRequest) TableName() string {
	return "return_requests"
}
