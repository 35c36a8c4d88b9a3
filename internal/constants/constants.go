package constants

// 订单状态常量
const (
	OrderStatusPending        = "pending"
	OrderStatusConfirmed      = "confirmed"
	OrderStatusProcessing     = "processing"
	OrderStatusOutForDelivery = "out_for_delivery"
	OrderStatusNearLocation   = "near_location"
	OrderStatusDelivered      = "delivered"
	OrderStatusCancelled      = "cancelled"
)

// 退货单状态常量
const (
	ReturnStatusRequested          = "return_requested"
	ReturnStatusApproved           = "approved"
	ReturnStatusRejected           = "rejected"
	ReturnStatusCancelled          = "cancelled"
	ReturnStatusOutForPickup       = "out_for_pickup"
	ReturnStatusPickupNearLocation = "pickup_near_location"
	ReturnStatusPickupOTPGenerated = "pickup_otp_generated"
	ReturnStatusPickupCompleted    = "pickup_completed"
	ReturnStatusRefundRequested    = "refund_requested"
)

// 退款状态常量
const (
	RefundStatusPending    = "pending"
	RefundStatusApproved   = "approved"
	RefundStatusRejected   = "rejected"
	RefundStatusProcessing = "processing"
	RefundStatusCompleted  = "completed"
	RefundStatusFailed     = "failed"
)

// 口令挑战用途常量
const (
	OTPPurposeDelivery = "delivery"
	OTPPurposePickup   = "pickup"
)

// 口令挑战状态常量
const (
	OTPStatusActive     = "active"
	OTPStatusConsumed   = "consumed"
	OTPStatusSuperseded = "superseded"
	OTPStatusExpired    = "expired"
)

// 操作角色常量
const (
	ActorCustomer        = "customer"
	ActorDeliveryPartner = "delivery_partner"
	ActorManufacturer    = "manufacturer"
	ActorAdmin           = "admin"
	ActorSystem          = "system"
)

// 退款通道常量
const (
	RefundProviderLedger   = "ledger"
	RefundProviderWechat   = "wechat"
	RefundProviderOriginal = "original"
)

// 退货窗口常量
const (
	ReturnWindowDays = 14
)

// 口令常量
const (
	OTPCodeLength = 6
)

// 轨迹事件类型常量
const (
	TrackingEventTransition   = "transition"
	TrackingEventOTPIssued    = "otp_issued"
	TrackingEventOTPVerified  = "otp_verified"
	TrackingEventRefundUpdate = "refund_update"
)

// 队列常量
const (
	QueueDefault          = "default"
	TaskOTPNotify         = "otp:notify"
	TaskRefundExecute     = "refund:execute"
	TaskOrderStatusNotify = "order:status_notify"
)

// 缓存默认配置常量
const (
	RedisPrefixDefault = "sc"
)

// 币种常量
const (
	SiteCurrencyDefault = "CNY"
)
