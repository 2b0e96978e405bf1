package model

import (
	"time"
)

// 参赛成员状态
// leave 是退款完成前的过渡状态，退款成功后成员记录才会删除
type MatchMemberState int

const (
	MatchMemberBanned     MatchMemberState = -1
	MatchMemberWaitPay    MatchMemberState = 0
	MatchMemberWaitReview MatchMemberState = 5
	MatchMemberNormal     MatchMemberState = 10
	MatchMemberLeave      MatchMemberState = 15
)

var matchMemberStateNames = map[MatchMemberState]string{
	MatchMemberBanned:     "禁赛",
	MatchMemberWaitPay:    "待支付",
	MatchMemberWaitReview: "待审核",
	MatchMemberNormal:     "正常",
	MatchMemberLeave:      "退赛",
}

func (s MatchMemberState) String() string {
	if name, ok := matchMemberStateNames[s]; ok {
		return name
	}
	return "未知"
}

// MatchMember 参赛者信息
// pt_order_no 是派队网关的订单引用，仅在 total_fee>0 时生成
type MatchMember struct {
	ID         int64            `gorm:"primaryKey;autoIncrement" json:"id"`
	MatchID    int64            `gorm:"index:idx_match_user;not null" json:"match_id"`
	UserID     int64            `gorm:"index:idx_match_user;not null" json:"user_id"`
	GroupID    int64            `gorm:"default:0" json:"group_id"`
	Name       string           `gorm:"type:varchar(128)" json:"name"`
	Mobile     string           `gorm:"type:varchar(11)" json:"mobile"`
	OrderID    int64            `gorm:"default:0" json:"order_id"`
	PtOrderNo  string           `gorm:"type:varchar(128);index" json:"pt_order_no"`
	TotalFee   int64            `gorm:"not null;default:0" json:"total_fee"` // 订单金额（分）
	State      MatchMemberState `gorm:"index;not null;default:0" json:"state"`
	CreatedAt  time.Time        `gorm:"autoCreateTime" json:"created_at"`
}

func (MatchMember) TableName() string {
	return "match_member"
}

// Refundable 取消赛事时需要处理退款的成员区间
func (m *MatchMember) Refundable() bool {
	return m.State >= MatchMemberWaitPay && m.State <= MatchMemberNormal
}
