package service

import (
	"context"
	"time"

	"gorm.io/gorm"

	"sportclub/internal/model"
	"sportclub/internal/parteam"
)

// 服务层依赖按使用方声明为窄接口，repository 的具体类型天然满足，
// 测试时用内存实现替换。

type ActivityRepo interface {
	GetByID(tx *gorm.DB, id int64) (*model.Activity, error)
	GetByIDForUpdate(tx *gorm.DB, id int64) (*model.Activity, error)
	Create(tx *gorm.DB, activity *model.Activity) error
	UpdateState(tx *gorm.DB, id int64, from, to model.ActivityState, updates map[string]interface{}) error
	RecountMembers(tx *gorm.DB, activityID int64) (int, error)
	UpdateSettleAmounts(tx *gorm.DB, id int64, online, credit, cash int64, freeTimes int, finishedAt time.Time) error
	ExistsNext(tx *gorm.DB, parentID int64, startTime time.Time) (bool, error)
	FindFinishable(tx *gorm.DB, now time.Time, limit int) ([]*model.Activity, error)
}

type ActivityMemberRepo interface {
	Create(tx *gorm.DB, member *model.ActivityMember) error
	GetByID(tx *gorm.DB, id int64) (*model.ActivityMember, error)
	GetByActivityUser(tx *gorm.DB, activityID, userID int64) (*model.ActivityMember, error)
	GetByOrderNo(tx *gorm.DB, orderNo string) (*model.ActivityMember, error)
	ListByActivity(tx *gorm.DB, activityID int64, states ...model.ActivityMemberState) ([]*model.ActivityMember, error)
	UpdateState(tx *gorm.DB, id int64, from, to model.ActivityMemberState, updates map[string]interface{}) error
	MarkPaid(tx *gorm.DB, id int64, method string, paidAt time.Time) error
	UpdatePaymentState(tx *gorm.DB, id int64, state model.OrderState) error
	SumFreeTimes(tx *gorm.DB, activityID int64) (int, error)
}

type MatchRepo interface {
	GetByID(tx *gorm.DB, id int64) (*model.Match, error)
	GetByIDForUpdate(tx *gorm.DB, id int64) (*model.Match, error)
	UpdateState(tx *gorm.DB, id int64, from, to model.MatchState, updates map[string]interface{}) error
	RecountMembers(tx *gorm.DB, matchID int64) (int, error)
	MarkPushed(tx *gorm.DB, id int64, pushedAt time.Time) error
	FindStartingUnpushed(tx *gorm.DB, from, to time.Time, limit int) ([]*model.Match, error)
	GetGroupByID(tx *gorm.DB, groupID int64) (*model.MatchGroup, error)
	CreateGroup(tx *gorm.DB, group *model.MatchGroup) error
	ListGroups(tx *gorm.DB, matchID int64) ([]*model.MatchGroup, error)
	RecountGroupMembers(tx *gorm.DB, groupID int64) (int, error)
	CreateAgainst(tx *gorm.DB, against *model.MatchAgainst) error
	ListAgainst(tx *gorm.DB, matchID int64) ([]*model.MatchAgainst, error)
}

type MatchMemberRepo interface {
	Create(tx *gorm.DB, member *model.MatchMember) error
	GetByID(tx *gorm.DB, id int64) (*model.MatchMember, error)
	GetActiveByMatchUser(tx *gorm.DB, matchID, userID int64) (*model.MatchMember, error)
	GetByPtOrderNo(tx *gorm.DB, ptOrderNo string) (*model.MatchMember, error)
	ListByMatch(tx *gorm.DB, matchID int64, states ...model.MatchMemberState) ([]*model.MatchMember, error)
	UpdateState(tx *gorm.DB, id int64, from, to model.MatchMemberState, updates map[string]interface{}) error
	Delete(tx *gorm.DB, id int64) error
}

type OrderRepo interface {
	Create(tx *gorm.DB, order *model.TeamOrder) error
	GetByID(tx *gorm.DB, id int64) (*model.TeamOrder, error)
	GetByOrderNo(tx *gorm.DB, orderNo string) (*model.TeamOrder, error)
	GetByOrderNoForUpdate(tx *gorm.DB, orderNo string) (*model.TeamOrder, error)
	MarkPaid(tx *gorm.DB, id int64, from model.OrderState, method, gatewayTradeNo string, paidAt time.Time) error
	SetGatewayTradeNo(tx *gorm.DB, id int64, gatewayTradeNo string) error
	MarkRefunding(tx *gorm.DB, id int64) error
	MarkRefunded(tx *gorm.DB, id int64, refundedFee int64, refundedAt time.Time) error
	MarkRefundFailed(tx *gorm.DB, id int64, note string) error
	FoldNotPaid(tx *gorm.DB, id int64, note string) error
	CloseUnpaid(tx *gorm.DB, id int64, note string) error
	Finish(tx *gorm.DB, id int64, finishedAt time.Time) error
	SumPaidByActivity(tx *gorm.DB, activityID int64, orderType int, methods []string) (int64, error)
	ListPaidByActivity(tx *gorm.DB, activityID int64, orderType int) ([]*model.TeamOrder, error)
}

type TeamRepo interface {
	GetByID(tx *gorm.DB, id int64) (*model.Team, error)
	GetByIDForUpdate(tx *gorm.DB, id int64) (*model.Team, error)
	AddCredit(tx *gorm.DB, id int64, delta int64) error
	AddReceipts(tx *gorm.DB, id int64, delta int64) error
	CreateAccountLog(tx *gorm.DB, accountLog *model.TeamAccountLog) error
	ListAccountLogs(tx *gorm.DB, teamID int64, limit, offset int) ([]*model.TeamAccountLog, error)
	CountSettlementLogs(tx *gorm.DB, activityID int64) (int64, error)
}

type SettlementRepo interface {
	Create(tx *gorm.DB, app *model.SettlementApplication) error
	GetByID(tx *gorm.DB, id int64) (*model.SettlementApplication, error)
	ExistsActive(tx *gorm.DB, matchID int64) (bool, error)
	UpdateProcessing(tx *gorm.DB, id int64, from, to model.ApplicationState, updates map[string]interface{}) error
	Approve(tx *gorm.DB, id, adminID int64, approvedAt time.Time) error
	Disapprove(tx *gorm.DB, id, adminID int64) error
}

type OutboxRepo interface {
	Create(tx *gorm.DB, msg *model.OutboxMessage) error
}

// Locker 报名互斥锁
type Locker interface {
	WithJoinLock(ctx context.Context, scope string, targetID, userID int64, fn func() error) error
}

// ParteamGateway 派队网关接口
type ParteamGateway interface {
	UserInfoList(ctx context.Context, userIDs []int64) (map[int64]parteam.User, error)
	OrderRefund(ctx context.Context, userID int64, orderNo string, refundFee int64, notifyURL string, role int) error
	Push(ctx context.Context, message *parteam.PushMessage) error
	CreateOrder(ctx context.Context, req *parteam.CreateOrderRequest) (string, error)
}
