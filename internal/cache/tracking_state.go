package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/shipcycle/internal/models"
)

const trackingSnapshotTTL = 5 * time.Minute

// TrackingSnapshot 订单轨迹快照
// 供高频查询的轨迹接口走 Redis，状态变更时删除
type TrackingSnapshot struct {
	OrderID   uint                   `json:"order_id"`
	Status    string                 `json:"status"`
	Events    []TrackingSnapshotItem `json:"events"`
	UpdatedAt int64                  `json:"updated_at"`
}

// TrackingSnapshotItem 单条轨迹事件
type TrackingSnapshotItem struct {
	EventType  string `json:"event_type"`
	FromStatus string `json:"from_status,omitempty"`
	ToStatus   string `json:"to_status,omitempty"`
	Actor      string `json:"actor"`
	Note       string `json:"note,omitempty"`
	OccurredAt int64  `json:"occurred_at"`
}

func trackingSnapshotKey(orderID uint) string {
	return fmt.Sprintf("tracking:order:%d", orderID)
}

// BuildTrackingSnapshot 从订单与轨迹事件构建快照
func BuildTrackingSnapshot(order *models.Order, events []models.TrackingEvent) *TrackingSnapshot {
	if order == nil {
		return nil
	}
	snapshot := &TrackingSnapshot{
		OrderID:   order.ID,
		Status:    order.Status,
		Events:    make([]TrackingSnapshotItem, 0, len(events)),
		UpdatedAt: time.Now().Unix(),
	}
	for _, event := range events {
		snapshot.Events = append(snapshot.Events, TrackingSnapshotItem{
			EventType:  event.EventType,
			FromStatus: event.FromStatus,
			ToStatus:   event.ToStatus,
			Actor:      event.Actor,
			Note:       event.Note,
			OccurredAt: event.OccurredAt.Unix(),
		})
	}
	return snapshot
}

// GetTrackingSnapshot 获取订单轨迹快照
func GetTrackingSnapshot(ctx context.Context, orderID uint) (*TrackingSnapshot, bool, error) {
	if orderID == 0 {
		return nil, false, nil
	}
	var snapshot TrackingSnapshot
	hit, err := GetJSON(ctx, trackingSnapshotKey(orderID), &snapshot)
	if err != nil || !hit {
		return nil, hit, err
	}
	return &snapshot, true, nil
}

// SetTrackingSnapshot 写入订单轨迹快照
func SetTrackingSnapshot(ctx context.Context, snapshot *TrackingSnapshot) error {
	if snapshot == nil || snapshot.OrderID == 0 {
		return nil
	}
	return SetJSON(ctx, trackingSnapshotKey(snapshot.OrderID), snapshot, trackingSnapshotTTL)
}

// DelTrackingSnapshot 删除订单轨迹快照
func DelTrackingSnapshot(ctx context.Context, orderID uint) error {
	if orderID == 0 {
		return nil
	}
	return Del(ctx, trackingSnapshotKey(orderID))
}
