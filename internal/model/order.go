package model

import (
	"time"
)

// 订单状态
// 正向流转：WAIT_BUYER_PAY -> TRADE_BUYER_PAID -> TRADE_FINISHED
// 支付前关闭：WAIT_BUYER_PAY -> TRADE_CLOSED_BY_USER
// 支付后退款关闭：TRADE_BUYER_PAID -> TRADE_CLOSED
type OrderState int

const (
	OrderStateTradeClosedByUser OrderState = -10 // 付款以前，买家或卖家主动关闭交易
	OrderStateTradeClosed       OrderState = -5  // 付款以后用户退款成功，交易关闭
	OrderStateWaitBuyerPay      OrderState = 0   // 等待买家付款
	OrderStateWaitPayReturn     OrderState = 5   // 用户支付同步返回成功，等待网关回调确认
	OrderStateTradeBuyerPaid    OrderState = 10  // 买家已付款
	OrderStateTradeFinished     OrderState = 25  // 交易完成（已结算）
)

var orderStateNames = map[OrderState]string{
	OrderStateTradeClosedByUser: "已取消",
	OrderStateTradeClosed:       "已关闭",
	OrderStateWaitBuyerPay:      "待支付",
	OrderStateWaitPayReturn:     "待确认",
	OrderStateTradeBuyerPaid:    "已支付",
	OrderStateTradeFinished:     "完成",
}

func (s OrderState) String() string {
	if name, ok := orderStateNames[s]; ok {
		return name
	}
	return "未知"
}

// IsTerminal 终态订单不允许再流转
func (s OrderState) IsTerminal() bool {
	return s == OrderStateTradeFinished ||
		s == OrderStateTradeClosed ||
		s == OrderStateTradeClosedByUser
}

var validOrderTransitions = map[OrderState][]OrderState{
	OrderStateWaitBuyerPay:   {OrderStateWaitPayReturn, OrderStateTradeBuyerPaid, OrderStateTradeClosedByUser},
	OrderStateWaitPayReturn:  {OrderStateTradeBuyerPaid, OrderStateTradeClosedByUser},
	OrderStateTradeBuyerPaid: {OrderStateTradeFinished, OrderStateTradeClosed},
}

func CanOrderTransition(from, to OrderState) bool {
	for _, s := range validOrderTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// 退款状态
type RefundState int

const (
	RefundStateNoRefund     RefundState = 0  // 无退款
	RefundStateRefunding    RefundState = 25 // 全额退款中
	RefundStateRefunded     RefundState = 30 // 已全额退款
	RefundStateRefundFailed RefundState = 35 // 全额退款失败
)

// 支付方式
const (
	PaymentMethodWxpay   = "wxpay"
	PaymentMethodAlipay  = "alipay"
	PaymentMethodCredit  = "credit"
	PaymentMethodCash    = "cash"
	PaymentMethodOffline = "offline"
)

// OnlinePaymentMethods 在线支付渠道，结算时只有在线支付收入计入俱乐部余额
var OnlinePaymentMethods = []string{PaymentMethodWxpay, PaymentMethodAlipay}

// 订单类型
const (
	OrderTypeActivity = 0  // 参加活动
	OrderTypeConsume  = 10 // 消费
	OrderTypeMatch    = 20 // 赛事报名
)

// TeamOrder 活动/赛事报名订单
// order_no 一经生成不可变，网关回调通过 order_no 寻址
type TeamOrder struct {
	ID             int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderNo        string      `gorm:"type:varchar(64);uniqueIndex;not null" json:"order_no"`
	TeamID         int64       `gorm:"index;not null" json:"team_id"`
	UserID         int64       `gorm:"index;not null" json:"user_id"`
	OrderType      int         `gorm:"index;not null;default:0" json:"order_type"`
	ActivityID     int64       `gorm:"index;not null;default:0" json:"activity_id"` // 活动或赛事ID
	Title          string      `gorm:"type:varchar(250)" json:"title"`
	TotalFee       int64       `gorm:"not null" json:"total_fee"`             // 订单金额（分）
	PaymentFee     int64       `gorm:"not null;default:0" json:"payment_fee"` // 实付金额（分）
	CreditFee      int64       `gorm:"not null;default:0" json:"credit_fee"`  // 余额抵扣金额（分）
	PaymentMethod  string      `gorm:"type:varchar(20)" json:"payment_method"`
	GatewayTradeNo string      `gorm:"type:varchar(64)" json:"gateway_trade_no"`
	State          OrderState  `gorm:"index;not null;default:0" json:"state"`
	RefundState    RefundState `gorm:"not null;default:0" json:"refund_state"`
	RefundedFee    int64       `gorm:"not null;default:0" json:"refunded_fee"`
	Note           string      `gorm:"type:varchar(256)" json:"note"`
	PaidAt         *time.Time  `json:"paid_at"`
	FinishedAt     *time.Time  `json:"finished_at"`
	RefundedAt     *time.Time  `json:"refunded_at"`
	CreatedAt      time.Time   `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt      time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

func (TeamOrder) TableName() string {
	return "team_order"
}

// IsOnlinePaid 是否为已支付的在线支付订单
func (o *TeamOrder) IsOnlinePaid() bool {
	if o.State < OrderStateTradeBuyerPaid {
		return false
	}
	for _, m := range OnlinePaymentMethods {
		if o.PaymentMethod == m {
			return true
		}
	}
	return false
}
