package models

import (
	"time"
)

// TrackingEvent 订单轨迹事件表（只追加）
type TrackingEvent struct {
	ID         uint      `gorm:"primarykey" json:"id"`                          // 主键
	OrderID    uint      `gorm:"index;not null" json:"order_id"`                // 订单ID
	ReturnID   *uint     `gorm:"index" json:"return_id,omitempty"`              // 退货单ID
	EventType  string    `gorm:"index;not null" json:"event_type"`              // 事件类型
	FromStatus string    `gorm:"type:varchar(50)" json:"from_status,omitempty"` // 原状态
	ToStatus   string    `gorm:"type:varchar(50)" json:"to_status,omitempty"`   // 新状态
	Actor      string    `gorm:"type:varchar(50);index" json:"actor"`           // 操作角色
	Note       string    `gorm:"type:varchar(500)" json:"note,omitempty"`       // 备注
	MetaJSON   JSON      `gorm:"type:json" json:"meta,omitempty"`               // 附加信息
	OccurredAt time.Time `gorm:"index;not null" json:"occurred_at"`             // 发生时间
	CreatedAt  time.Time `gorm:"index" json:"created_at"`                       // 创建时间
}

// TableName 指定表名
func (TrackingEvent) TableName() string {
	return "tracking_events"
}
