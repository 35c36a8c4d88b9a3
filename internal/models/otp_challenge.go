package models

import (
	"time"

	"gorm.io/gorm"
)

// OTPChallenge 口令挑战记录
type OTPChallenge struct {
	ID           uint           `gorm:"primarykey" json:"id"`           // 主键
	OrderID      uint           `gorm:"index;not null" json:"order_id"` // 订单ID
	ReturnID     *uint          `gorm:"index" json:"return_id"`         // 退货单ID（取件口令）
	Purpose      string         `gorm:"index;not null" json:"purpose"`  // 用途（delivery/pickup）
	Code         string         `gorm:"not null" json:"-"`              // 口令（不返回给前端）
	Status       string         `gorm:"index;not null" json:"status"`   // 挑战状态
	ExpiresAt    time.Time      `gorm:"index" json:"expires_at"`        // 过期时间
	ConsumedAt   *time.Time     `gorm:"index" json:"consumed_at"`       // 消费时间
	SupersededAt *time.Time     `gorm:"index" json:"superseded_at"`     // 被顶替时间
	AttemptCount int            `gorm:"default:0" json:"attempt_count"` // 校验尝试次数
	IssuedAt     time.Time      `gorm:"index" json:"issued_at"`         // 签发时间
	CreatedAt    time.Time      `gorm:"index" json:"created_at"`        // 创建时间
	UpdatedAt    time.Time      `gorm:"index" json:"updated_at"`        // 更新时间
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`                 // 软删除时间
}

// TableName 指定表名
func (OTPChallenge) TableName() string {
	return "otp_challenges"
}
