package model

import (
	"time"
)

// 结算申请状态
type ApplicationState int

const (
	ApplicationDisapproved ApplicationState = -1
	ApplicationRequesting  ApplicationState = 1
	ApplicationApproved    ApplicationState = 2
	ApplicationFinished    ApplicationState = 10
)

var applicationStateNames = map[ApplicationState]string{
	ApplicationDisapproved: "已驳回",
	ApplicationRequesting:  "已请求",
	ApplicationApproved:    "已批准",
	ApplicationFinished:    "已经结束",
}

func (s ApplicationState) String() string {
	if name, ok := applicationStateNames[s]; ok {
		return name
	}
	return "未知"
}

// SettlementApplication 赛事结算申请
//
// 主办方提交申请，管理员审核通过后添加结算任务。
// 同一赛事同时最多存在一条 processing >= requesting 的申请，
// 检查和插入在同一事务内完成。
type SettlementApplication struct {
	ID         int64            `gorm:"primaryKey;autoIncrement" json:"id"`
	MatchID    int64            `gorm:"index;not null" json:"match_id"`
	TeamID     int64            `gorm:"index;not null" json:"team_id"`
	UserID     int64            `gorm:"not null" json:"user_id"`
	Balance    int64            `gorm:"not null;default:0" json:"balance"` // 结算金额（分）
	Processing ApplicationState `gorm:"index;not null;default:1" json:"processing"`
	AdminID    int64            `gorm:"default:0" json:"admin_id"`
	ApprovedAt *time.Time       `json:"approved_at"`
	CreatedAt  time.Time        `gorm:"autoCreateTime" json:"created_at"`
}

func (SettlementApplication) TableName() string {
	return "settlement_application"
}

func (a *SettlementApplication) IsRequesting() bool {
	return a.Processing == ApplicationRequesting
}
