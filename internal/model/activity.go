package model

import (
	"time"
)

// 活动状态
type ActivityState int

const (
	ActivityStateClosed    ActivityState = -1
	ActivityStateCancelled ActivityState = 0
	ActivityStateOpening   ActivityState = 1
	ActivityStateFinished  ActivityState = 2
)

var activityStateNames = map[ActivityState]string{
	ActivityStateClosed:    "已关闭",
	ActivityStateCancelled: "已取消",
	ActivityStateOpening:   "进行中",
	ActivityStateFinished:  "已结束",
}

func (s ActivityState) String() string {
	if name, ok := activityStateNames[s]; ok {
		return name
	}
	return "未知"
}

// 支付方式
const (
	ActivityPaymentOnline = 0 // 在线支付
	ActivityPaymentCash   = 1 // 线下支付
)

// 重复类型
const (
	RepeatTypeNone  = ""
	RepeatTypeDay   = "day"
	RepeatTypeWeek  = "week"
	RepeatTypeMonth = "month"
)

// 退款策略
const (
	RefundBeforeStart   = 0 // 开始前可以退款
	RefundBeforeJoinEnd = 1 // 报名截止前可退
	RefundNever         = 2 // 不能退款
)

// Activity 活动场次
//
// members_count 恒等于 confirmed 状态成员的 users_count 之和，
// 只允许在事务内重算，不允许在内存中读改写。
type Activity struct {
	ID           int64         `gorm:"primaryKey;autoIncrement" json:"id"`
	TeamID       int64         `gorm:"index;not null" json:"team_id"`
	CreatorID    int64         `gorm:"index;not null" json:"creator_id"`
	Title        string        `gorm:"type:varchar(180);not null" json:"title"`
	Description  string        `gorm:"type:text" json:"description"`
	PaymentType  int           `gorm:"not null;default:0" json:"payment_type"`
	Price        int64         `gorm:"not null;default:0" json:"price"` // 报名价格（分）
	MaxMembers   int           `gorm:"not null;default:0" json:"max_members"`
	MembersCount int           `gorm:"not null;default:0" json:"members_count"`
	CommentsCount int          `gorm:"not null;default:0" json:"comments_count"`
	RefundType   int           `gorm:"not null;default:1" json:"refund_type"`
	StartTime    time.Time     `json:"start_time"`
	EndTime      time.Time     `json:"end_time"`
	JoinStart    *time.Time    `json:"join_start"`
	JoinEnd      *time.Time    `json:"join_end"`
	RepeatType   string        `gorm:"type:varchar(10);default:''" json:"repeat_type"`
	RepeatEnd    *time.Time    `json:"repeat_end"`
	ParentID     int64         `gorm:"index;default:0" json:"parent_id"`
	State        ActivityState `gorm:"index;not null;default:1" json:"state"`

	// 结算后回填的收入汇总
	OnlinePaidAmount int64 `gorm:"not null;default:0" json:"online_paid_amount"` // 在线支付收入（分）
	CreditPaidAmount int64 `gorm:"not null;default:0" json:"credit_paid_amount"` // 余额支付收入（分）
	CashPaidAmount   int64 `gorm:"not null;default:0" json:"cash_paid_amount"`   // 现金支付收入（分）
	FreeTimesAmount  int   `gorm:"not null;default:0" json:"free_times_amount"`  // 次卡支付数量

	CancelledAt  *time.Time `json:"cancelled_at"`
	CancelReason string     `gorm:"type:varchar(256)" json:"cancel_reason"`
	FinishedAt   *time.Time `json:"finished_at"` // 结算时间
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Activity) TableName() string {
	return "activity"
}

func (a *Activity) IsEnded(now time.Time) bool {
	return !a.EndTime.IsZero() && now.After(a.EndTime)
}

func (a *Activity) IsStarted(now time.Time) bool {
	return !a.StartTime.IsZero() && now.After(a.StartTime)
}

// CanCancel 结束前且未结算可以取消
func (a *Activity) CanCancel(now time.Time) bool {
	if a.State == ActivityStateFinished || a.State == ActivityStateCancelled {
		return false
	}
	return !a.IsEnded(now)
}

// 报名受限原因，接口原样透出
const (
	ReasonActivityClosed = "活动已经取消或结束"
	ReasonJoinDeadline   = "活动已报名截止"
	ReasonActivityFull   = "活动人数已满"
)

// CanApply 判断活动是否可报名，reason 为不可报名原因
func (a *Activity) CanApply(now time.Time) (bool, string) {
	if a.State != ActivityStateOpening {
		return false, ReasonActivityClosed
	}

	deadline := a.StartTime
	if a.JoinEnd != nil {
		deadline = *a.JoinEnd
	}
	if deadline.Before(now) {
		return false, ReasonJoinDeadline
	}

	if a.MaxMembers > 0 && a.MembersCount >= a.MaxMembers {
		return false, ReasonActivityFull
	}

	return true, ""
}

// RepeatPeriod 下一期活动的时间偏移量；非循环活动返回 false
func (a *Activity) RepeatPeriod() (years, months, days int, ok bool) {
	switch a.RepeatType {
	case RepeatTypeDay:
		return 0, 0, 1, true
	case RepeatTypeWeek:
		return 0, 0, 7, true
	case RepeatTypeMonth:
		return 0, 1, 0, true
	default:
		return 0, 0, 0, false
	}
}
