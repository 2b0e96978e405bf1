package model

import (
	"time"
)

// 活动成员状态
type ActivityMemberState int

const (
	ActivityMemberCancelled   ActivityMemberState = -1 // 用户取消
	ActivityMemberWaitConfirm ActivityMemberState = 0  // 在线支付未完成前
	ActivityMemberConfirmed   ActivityMemberState = 1  // 支付成功或无需支付
	ActivityMemberRejected    ActivityMemberState = 2
	ActivityMemberBlocked     ActivityMemberState = 3 // 黑名单，不允许再报名
)

var activityMemberStateNames = map[ActivityMemberState]string{
	ActivityMemberCancelled:   "已取消",
	ActivityMemberWaitConfirm: "待确认",
	ActivityMemberConfirmed:   "已确认",
	ActivityMemberRejected:    "拒绝",
	ActivityMemberBlocked:     "黑名单",
}

func (s ActivityMemberState) String() string {
	if name, ok := activityMemberStateNames[s]; ok {
		return name
	}
	return "未知"
}

// ActivityMember 活动报名记录，(activity_id, user_id) 唯一
//
// state 只能经由结算服务流转，payment_state 跟随订单状态。
// 无需支付的报名不创建订单（order_id=0）。
type ActivityMember struct {
	ID            int64               `gorm:"primaryKey;autoIncrement" json:"id"`
	ActivityID    int64               `gorm:"uniqueIndex:uk_activity_user;not null" json:"activity_id"`
	UserID        int64               `gorm:"uniqueIndex:uk_activity_user;not null" json:"user_id"`
	TeamID        int64               `gorm:"index;not null" json:"team_id"`
	UsersCount    int                 `gorm:"not null;default:1" json:"users_count"` // 报名人数（含代报）
	FreeTimes     int                 `gorm:"not null;default:0" json:"free_times"`  // 使用次卡点数
	Price         int64               `gorm:"not null;default:0" json:"price"`       // 报名时价格（分）
	TotalFee      int64               `gorm:"not null;default:0" json:"total_fee"`   // 应付总金额（分）
	OrderID       int64               `gorm:"default:0" json:"order_id"`
	OrderNo       string              `gorm:"type:varchar(64);default:''" json:"order_no"`
	PaymentMethod string              `gorm:"type:varchar(20)" json:"payment_method"`
	PaymentState  OrderState          `gorm:"not null;default:0" json:"payment_state"`
	State         ActivityMemberState `gorm:"index;not null;default:0" json:"state"`
	Nickname      string              `gorm:"type:varchar(128)" json:"nickname"`
	Mobile        string              `gorm:"type:varchar(20)" json:"mobile"`
	PaidAt        *time.Time          `json:"paid_at"`
	ConfirmedAt   *time.Time          `json:"confirmed_at"`
	CreatedAt     time.Time           `gorm:"autoCreateTime" json:"created_at"`
}

func (ActivityMember) TableName() string {
	return "activity_member"
}

// NeedRefund 已支付成员退出或活动取消时需要退款
func (m *ActivityMember) NeedRefund() bool {
	return m.PaymentState == OrderStateTradeBuyerPaid && m.OrderID > 0
}
