package repository

import "time"

// OrderListFilter 查询订单列表的过滤条件
type OrderListFilter struct {
	Page            int
	PageSize        int
	CustomerID      uint
	DeliveryAgentID uint
	Status          string
	OrderNo         string
	CreatedFrom     *time.Time
	CreatedTo       *time.Time
}

// ReturnListFilter 查询退货单列表的过滤条件
type ReturnListFilter struct {
	Page        int
	PageSize    int
	CustomerID  uint
	OrderID     uint
	Status      string
	ReturnNo    string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// RefundListFilter 查询退款记录列表的过滤条件
type RefundListFilter struct {
	Page        int
	PageSize    int
	OrderID     uint
	ReturnID    uint
	Status      string
	Provider    string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// TrackingListFilter 查询轨迹事件列表的过滤条件
type TrackingListFilter struct {
	Page      int
	PageSize  int
	OrderID   uint
	ReturnID  uint
	EventType string
}
