package models

import (
	"time"

	"gorm.io/gorm"
)

// OrderItem 订单项表
type OrderItem struct {
	ID             uint           `gorm:"primarykey" json:"id"`                                     // 主键
	OrderID        uint           `gorm:"index;not null" json:"order_id"`                           // 订单ID
	ProductName    string         `gorm:"type:varchar(200);not null" json:"product_name"`           // 商品名称快照
	SKU            string         `gorm:"type:varchar(100);index" json:"sku,omitempty"`             // 商品编码快照
	AttributesJSON JSON           `gorm:"type:json" json:"attributes"`                              // 规格快照
	Tags           StringArray    `gorm:"type:json" json:"tags"`                                    // 标签快照
	UnitPrice      Money          `gorm:"type:decimal(20,2);not null;default:0" json:"unit_price"`  // 单价
	Quantity       int            `gorm:"not null" json:"quantity"`                                 // 数量
	TotalPrice     Money          `gorm:"type:decimal(20,2);not null;default:0" json:"total_price"` // 小计
	CreatedAt      time.Time      `gorm:"index" json:"created_at"`                                  // 创建时间
	UpdatedAt      time.Time      `gorm:"index" json:"updated_at"`                                  // 更新时间
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`                                           // 软删除时间
}

// TableName 指定表名
func (OrderItem) TableName() string {
	return "order_items"
}
