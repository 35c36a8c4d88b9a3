package service

import (
	"sort"
	"time"

	"github.com/shipcycle/internal/constants"
)

// orderTransitions 订单状态机迁移表
var orderTransitions = map[string]map[string]bool{
	constants.OrderStatusPending: {
		constants.OrderStatusConfirmed: true,
		constants.OrderStatusCancelled: true,
	},
	constants.OrderStatusConfirmed: {
		constants.OrderStatusProcessing: true,
		constants.OrderStatusCancelled:  true,
	},
	constants.OrderStatusProcessing: {
		constants.OrderStatusOutForDelivery: true,
		constants.OrderStatusCancelled:      true,
	},
	constants.OrderStatusOutForDelivery: {
		constants.OrderStatusNearLocation: true,
		constants.OrderStatusCancelled:    true,
	},
	constants.OrderStatusNearLocation: {
		constants.OrderStatusDelivered: true,
		constants.OrderStatusCancelled: true,
	},
}

// returnTransitions 退货状态机迁移表
var returnTransitions = map[string]map[string]bool{
	constants.ReturnStatusRequested: {
		constants.ReturnStatusApproved:  true,
		constants.ReturnStatusRejected:  true,
		constants.ReturnStatusCancelled: true,
	},
	constants.ReturnStatusApproved: {
		constants.ReturnStatusOutForPickup: true,
	},
	constants.ReturnStatusOutForPickup: {
		constants.ReturnStatusPickupNearLocation: true,
	},
	constants.ReturnStatusPickupNearLocation: {
		constants.ReturnStatusPickupOTPGenerated: true,
	},
	constants.ReturnStatusPickupOTPGenerated: {
		constants.ReturnStatusPickupCompleted: true,
	},
	constants.ReturnStatusPickupCompleted: {
		constants.ReturnStatusRefundRequested: true,
	},
}

// refundTransitions 退款状态机迁移表
var refundTransitions = map[string]map[string]bool{
	constants.RefundStatusPending: {
		constants.RefundStatusApproved: true,
		constants.RefundStatusRejected: true,
	},
	constants.RefundStatusApproved: {
		constants.RefundStatusProcessing: true,
	},
	constants.RefundStatusProcessing: {
		constants.RefundStatusCompleted: true,
		constants.RefundStatusFailed:    true,
	},
	constants.RefundStatusFailed: {
		constants.RefundStatusProcessing: true,
	},
}

// orderTransitionActors 订单迁移允许的角色
var orderTransitionActors = map[string]map[string][]string{
	constants.OrderStatusPending: {
		constants.OrderStatusConfirmed: {constants.ActorAdmin, constants.ActorSystem},
		constants.OrderStatusCancelled: {constants.ActorCustomer, constants.ActorAdmin},
	},
	constants.OrderStatusConfirmed: {
		constants.OrderStatusProcessing: {constants.ActorManufacturer},
		constants.OrderStatusCancelled:  {constants.ActorCustomer, constants.ActorAdmin},
	},
	constants.OrderStatusProcessing: {
		constants.OrderStatusOutForDelivery: {constants.ActorDeliveryPartner, constants.ActorManufacturer},
		constants.OrderStatusCancelled:      {constants.ActorAdmin},
	},
	constants.OrderStatusOutForDelivery: {
		constants.OrderStatusNearLocation: {constants.ActorDeliveryPartner},
		constants.OrderStatusCancelled:    {constants.ActorAdmin},
	},
	constants.OrderStatusNearLocation: {
		constants.OrderStatusDelivered: {constants.ActorDeliveryPartner},
		constants.OrderStatusCancelled: {constants.ActorAdmin},
	},
}

// returnTransitionActors 退货迁移允许的角色
var returnTransitionActors = map[string]map[string][]string{
	constants.ReturnStatusRequested: {
		constants.ReturnStatusApproved:  {constants.ActorManufacturer, constants.ActorAdmin},
		constants.ReturnStatusRejected:  {constants.ActorManufacturer, constants.ActorAdmin},
		constants.ReturnStatusCancelled: {constants.ActorCustomer},
	},
	constants.ReturnStatusApproved: {
		constants.ReturnStatusOutForPickup: {constants.ActorDeliveryPartner},
	},
	constants.ReturnStatusOutForPickup: {
		constants.ReturnStatusPickupNearLocation: {constants.ActorDeliveryPartner},
	},
	constants.ReturnStatusPickupNearLocation: {
		constants.ReturnStatusPickupOTPGenerated: {constants.ActorDeliveryPartner},
	},
	constants.ReturnStatusPickupOTPGenerated: {
		constants.ReturnStatusPickupCompleted: {constants.ActorDeliveryPartner},
	},
	constants.ReturnStatusPickupCompleted: {
		constants.ReturnStatusRefundRequested: {constants.ActorSystem},
	},
}

// refundTransitionActors 退款迁移允许的角色。
// approved 之后的推进只归厂商与系统（worker 执行通道调用）。
var refundTransitionActors = map[string]map[string][]string{
	constants.RefundStatusPending: {
		constants.RefundStatusApproved: {constants.ActorManufacturer},
		constants.RefundStatusRejected: {constants.ActorManufacturer},
	},
	constants.RefundStatusApproved: {
		constants.RefundStatusProcessing: {constants.ActorSystem},
	},
	constants.RefundStatusProcessing: {
		constants.RefundStatusCompleted: {constants.ActorSystem},
		constants.RefundStatusFailed:    {constants.ActorSystem},
	},
	constants.RefundStatusFailed: {
		constants.RefundStatusProcessing: {constants.ActorManufacturer, constants.ActorSystem},
	},
}

// CanTransitionOrder 判断订单状态迁移是否被状态机允许
func CanTransitionOrder(from, to string) bool {
	targets, ok := orderTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// CanTransitionReturn 判断退货状态迁移是否被状态机允许
func CanTransitionReturn(from, to string) bool {
	targets, ok := returnTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// CanTransitionRefund 判断退款状态迁移是否被状态机允许
func CanTransitionRefund(from, to string) bool {
	targets, ok := refundTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// ActorAllowedForOrderTransition 判断角色是否允许执行订单迁移
func ActorAllowedForOrderTransition(from, to, actor string) bool {
	targets, ok := orderTransitionActors[from]
	if !ok {
		return false
	}
	for _, allowed := range targets[to] {
		if allowed == actor {
			return true
		}
	}
	return false
}

// ActorAllowedForReturnTransition 判断角色是否允许执行退货迁移
func ActorAllowedForReturnTransition(from, to, actor string) bool {
	targets, ok := returnTransitionActors[from]
	if !ok {
		return false
	}
	for _, allowed := range targets[to] {
		if allowed == actor {
			return true
		}
	}
	return false
}

// ActorAllowedForRefundTransition 判断角色是否允许执行退款迁移
func ActorAllowedForRefundTransition(from, to, actor string) bool {
	targets, ok := refundTransitionActors[from]
	if !ok {
		return false
	}
	for _, allowed := range targets[to] {
		if allowed == actor {
			return true
		}
	}
	return false
}

func sortedTargets(table map[string]map[string]bool, from string) []string {
	targets := table[from]
	if len(targets) == 0 {
		return nil
	}
	out := make([]string, 0, len(targets))
	for status := range targets {
		out = append(out, status)
	}
	sort.Strings(out)
	return out
}

// NextOrderStatuses 返回订单状态的合法后继，按字典序排序
func NextOrderStatuses(from string) []string {
	return sortedTargets(orderTransitions, from)
}

// NextReturnStatuses 返回退货状态的合法后继，按字典序排序
func NextReturnStatuses(from string) []string {
	return sortedTargets(returnTransitions, from)
}

// NextRefundStatuses 返回退款状态的合法后继，按字典序排序
func NextRefundStatuses(from string) []string {
	return sortedTargets(refundTransitions, from)
}

// IsOrderTerminal 判断订单状态是否为终态
func IsOrderTerminal(status string) bool {
	return status == constants.OrderStatusDelivered || status == constants.OrderStatusCancelled
}

// IsReturnTerminal 判断退货状态是否为终态
func IsReturnTerminal(status string) bool {
	return status == constants.ReturnStatusRejected ||
		status == constants.ReturnStatusCancelled ||
		status == constants.ReturnStatusRefundRequested
}

// IsRefundTerminal 判断退款状态是否为终态
func IsRefundTerminal(status string) bool {
	return status == constants.RefundStatusCompleted || status == constants.RefundStatusRejected
}

// WithinReturnWindow 判断退货请求是否落在交付后的退货窗口内。
// 按整天向下取整计算：第 windowDays 天仍可退，第 windowDays+1 天不可退。
func WithinReturnWindow(deliveredAt, requestedAt time.Time, windowDays int) bool {
	if requestedAt.Before(deliveredAt) {
		return true
	}
	elapsedDays := int(requestedAt.Sub(deliveredAt).Hours() / 24)
	return elapsedDays <= windowDays
}
