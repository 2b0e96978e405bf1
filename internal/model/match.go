package model

import (
	"time"
)

// 赛事状态
type MatchState int

const (
	MatchStateClosed     MatchState = -1
	MatchStateCancelled  MatchState = 0
	MatchStateWaitReview MatchState = 5
	MatchStateRejected   MatchState = 10
	MatchStateInReview   MatchState = 15
	MatchStateOpening    MatchState = 20
	MatchStateFinished   MatchState = 100
)

var matchStateNames = map[MatchState]string{
	MatchStateClosed:     "已关闭",
	MatchStateCancelled:  "已取消",
	MatchStateWaitReview: "等待审核",
	MatchStateRejected:   "审核拒绝",
	MatchStateInReview:   "正在审核",
	MatchStateOpening:    "进行中",
	MatchStateFinished:   "已结束",
}

func (s MatchState) String() string {
	if name, ok := matchStateNames[s]; ok {
		return name
	}
	return "未知"
}

// 分组方式
const (
	MatchGroupTypeNone    = 0 // 不分组
	MatchGroupTypeGrouped = 1 // 分组
)

// Match 赛事
type Match struct {
	ID           int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	TeamID       int64      `gorm:"index;not null" json:"team_id"`
	UserID       int64      `gorm:"index;not null" json:"user_id"`
	Title        string     `gorm:"type:varchar(180);not null" json:"title"`
	Description  string     `gorm:"type:text" json:"description"`
	JoinType     int        `gorm:"not null;default:0" json:"join_type"` // 0 个人 1 团队
	GroupType    int        `gorm:"not null;default:0" json:"group_type"`
	MaxMembers   int        `gorm:"not null;default:0" json:"max_members"`
	MembersCount int        `gorm:"not null;default:0" json:"members_count"`
	Price        int64      `gorm:"not null;default:0" json:"price"` // 报名费（分）
	RefundType   int        `gorm:"not null;default:1" json:"refund_type"`
	StartTime    time.Time  `json:"start_time"`
	EndTime      time.Time  `json:"end_time"`
	JoinStart    *time.Time `json:"join_start"`
	JoinEnd      *time.Time `json:"join_end"`
	State        MatchState `gorm:"index;not null;default:5" json:"state"`
	PushedAt     *time.Time `gorm:"column:pushed" json:"pushed"` // 开赛通知推送标记
	CancelledAt  *time.Time `json:"cancelled_at"`
	CancelReason string     `gorm:"type:varchar(256)" json:"cancel_reason"`
	FinishedAt   *time.Time `json:"finished_at"` // 结算时间
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Match) TableName() string {
	return "match"
}

// CanCancel 上架后结束前可以取消
func (m *Match) CanCancel() bool {
	return m.State > MatchStateCancelled && m.State <= MatchStateOpening
}

// CanLeave 根据退款策略判断当前是否可退赛
func (m *Match) CanLeave(now time.Time) bool {
	if m.State != MatchStateOpening {
		return false
	}

	switch m.RefundType {
	case RefundBeforeStart:
		return m.StartTime.After(now)
	case RefundBeforeJoinEnd:
		return m.JoinEnd != nil && m.JoinEnd.After(now)
	default:
		return false
	}
}

// 报名受限原因，接口原样透出
const (
	ReasonMatchFinished  = "赛事已结束"
	ReasonMatchCancelled = "赛事已取消"
	ReasonMatchNotOpen   = "赛事尚未通过审核"
	ReasonJoinNotStarted = "报名未开始"
	ReasonJoinEnded      = "报名已截止"
	ReasonMatchFull      = "已报满"
	ReasonGroupNotFound  = "赛事分组不存在"
	ReasonGroupFull      = "赛事分组已报满"
)

// CanJoin 判断赛事是否可报名
func (m *Match) CanJoin(now time.Time) (bool, string) {
	switch {
	case m.State == MatchStateFinished:
		return false, ReasonMatchFinished
	case m.State == MatchStateCancelled:
		return false, ReasonMatchCancelled
	case m.State != MatchStateOpening:
		return false, ReasonMatchNotOpen
	case m.JoinStart != nil && m.JoinStart.After(now):
		return false, ReasonJoinNotStarted
	case m.JoinEnd != nil && m.JoinEnd.Before(now):
		return false, ReasonJoinEnded
	case m.JoinEnd == nil && m.StartTime.Before(now):
		return false, ReasonJoinEnded
	case m.MaxMembers > 0 && m.MembersCount >= m.MaxMembers:
		return false, ReasonMatchFull
	}
	return true, ""
}

// CanApplySettlement 报名截止后可以申请结算
func (m *Match) CanApplySettlement(now time.Time) bool {
	return m.JoinEnd != nil && !m.JoinEnd.After(now)
}

// MatchGroup 赛事分组，分组赛价格与人数限制独立
type MatchGroup struct {
	ID           int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	MatchID      int64  `gorm:"index;not null" json:"match_id"`
	Name         string `gorm:"type:varchar(128)" json:"name"`
	Price        int64  `gorm:"not null;default:0" json:"price"` // 分组报名费（分）
	MaxMembers   int    `gorm:"not null;default:0" json:"max_members"`
	MembersCount int    `gorm:"not null;default:0" json:"members_count"`
}

func (MatchGroup) TableName() string {
	return "match_group"
}

// MatchAgainst 对战结果记录
type MatchAgainst struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	MatchID       int64     `gorm:"index;not null" json:"match_id"`
	Round         int       `gorm:"not null;default:1" json:"round"`
	LeftMemberID  int64     `gorm:"not null" json:"left_member_id"`
	RightMemberID int64     `gorm:"not null" json:"right_member_id"`
	LeftScore     int       `gorm:"not null;default:0" json:"left_score"`
	RightScore    int       `gorm:"not null;default:0" json:"right_score"`
	WinMemberID   int64     `gorm:"not null;default:0" json:"win_member_id"` // 平局为 0
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (MatchAgainst) TableName() string {
	return "match_against"
}

// DecideWinner 根据双方比分计算胜者，平局返回 0
func (a *MatchAgainst) DecideWinner() int64 {
	switch {
	case a.LeftScore > a.RightScore:
		return a.LeftMemberID
	case a.LeftScore < a.RightScore:
		return a.RightMemberID
	default:
		return 0
	}
}
