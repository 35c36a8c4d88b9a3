package models

import (
	"time"

	"gorm.io/gorm"
)

// RefundRecord 退款记录表
type RefundRecord struct {
	ID             uint           `gorm:"primarykey" json:"id"`                              // 主键
	RefundNo       string         `gorm:"uniqueIndex;not null" json:"refund_no"`             // 退款单编号
	ReturnID       uint           `gorm:"index;not null" json:"return_id"`                   // 退货单ID
	OrderID        uint           `gorm:"index;not null" json:"order_id"`                    // 订单ID
	Status         string         `gorm:"index;not null" json:"status"`                      // 退款状态
	Currency       string         `gorm:"not null" json:"currency"`                          // 币种
	Amount         Money          `gorm:"type:decimal(20,2);not null;default:0" json:"amount"` // 退款金额
	Provider       string         `gorm:"index" json:"provider,omitempty"`                   // 退款通道
	ProviderRef    string         `gorm:"index" json:"provider_ref,omitempty"`               // 通道侧流水号
	IdempotencyKey string         `gorm:"uniqueIndex;not null" json:"-"`                     // 幂等键（不返回给前端）
	FailureReason  string         `gorm:"type:varchar(500)" json:"failure_reason,omitempty"` // 失败原因
	AttemptCount   int            `gorm:"default:0" json:"attempt_count"`                    // 执行次数
	ApprovedAt     *time.Time     `gorm:"index" json:"approved_at"`                          // 审批时间
	ProcessedAt    *time.Time     `gorm:"index" json:"processed_at"`                         // 开始执行时间
	CompletedAt    *time.Time     `gorm:"index" json:"completed_at"`                         // 完成时间
	FailedAt       *time.Time     `gorm:"index" json:"failed_at"`                            // 失败时间
	CreatedAt      time.Time      `gorm:"index" json:"created_at"`                           // 创建时间
	UpdatedAt      time.Time      `gorm:"index" json:"updated_at"`                           // 更新时间
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`                                    // 软删除时间
}

// TableName 指定表名
func (RefundRecord) TableName() string {
	return "refund_records"
}
