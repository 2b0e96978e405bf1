package model

import (
	"time"
)

// Team 俱乐部（主办方）
// credit 是俱乐部账户余额，是整个结算引擎的核心争用资源，
// 所有变更必须在行锁事务内以 credit = credit + delta 方式执行
type Team struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name          string    `gorm:"type:varchar(128);not null" json:"name"`
	OwnerID       int64     `gorm:"index;not null" json:"owner_id"`
	Credit        int64     `gorm:"not null;default:0" json:"credit"`         // 余额（分）
	TotalReceipts int64     `gorm:"not null;default:0" json:"total_receipts"` // 累计收入（分）
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Team) TableName() string {
	return "team"
}

// 账户变更原因
const (
	AccountChangeSettlement = 0 // 活动/赛事结算
	AccountChangeRecharge   = 1 // 充值
	AccountChangeWithdraw   = 2 // 提现
)

// TeamAccountLog 俱乐部账户流水
//
// 只追加，不修改，不删除。每次结算产生且仅产生一条记录，
// 记录变更前后余额便于对账。
type TeamAccountLog struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TeamID       int64     `gorm:"index;not null" json:"team_id"`
	CreditChange int64     `gorm:"not null" json:"credit_change"` // 正数入账，负数出账（分）
	ChangeType   int       `gorm:"not null" json:"change_type"`
	CreditBefore int64     `gorm:"not null" json:"credit_before"`
	CreditAfter  int64     `gorm:"not null" json:"credit_after"`
	Note         string    `gorm:"type:varchar(256)" json:"note"`
	ActivityID   int64     `gorm:"index;default:0" json:"activity_id"` // 关联活动或赛事
	OperatorID   int64     `gorm:"default:0" json:"operator_id"`
	CreatedAt    time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (TeamAccountLog) TableName() string {
	return "team_account_log"
}
