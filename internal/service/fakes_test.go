package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"sportclub/internal/model"
	"sportclub/internal/parteam"
	"sportclub/internal/repository"
)

// 内存假实现，事务退化为直接执行，repository 的守卫语义
// （条件更新未命中返回 ErrStateChanged）照常保留。

type memStore struct {
	seq             int64
	activities      map[int64]*model.Activity
	activityMembers map[int64]*model.ActivityMember
	matches         map[int64]*model.Match
	groups          map[int64]*model.MatchGroup
	matchMembers    map[int64]*model.MatchMember
	orders          map[int64]*model.TeamOrder
	teams           map[int64]*model.Team
	accountLogs     []*model.TeamAccountLog
	againsts        []*model.MatchAgainst
	applications    map[int64]*model.SettlementApplication
	outbox          []*model.OutboxMessage
	enqueued        []enqueuedTask
}

type enqueuedTask struct {
	Name    string
	Key     string
	Payload string
}

func newMemStore() *memStore {
	return &memStore{
		activities:      make(map[int64]*model.Activity),
		activityMembers: make(map[int64]*model.ActivityMember),
		matches:         make(map[int64]*model.Match),
		groups:          make(map[int64]*model.MatchGroup),
		matchMembers:    make(map[int64]*model.MatchMember),
		orders:          make(map[int64]*model.TeamOrder),
		teams:           make(map[int64]*model.Team),
		applications:    make(map[int64]*model.SettlementApplication),
	}
}

func (s *memStore) nextID() int64 {
	s.seq++
	return s.seq
}

func (s *memStore) tasksByName(name string) []enqueuedTask {
	var out []enqueuedTask
	for _, t := range s.enqueued {
		if t.Name == name {
			out = append(out, t)
		}
	}
	return out
}

// ---- 事务 / 锁 / 队列 ----

type fakeTxManager struct{}

func (fakeTxManager) Transaction(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeLocker struct{}

func (fakeLocker) WithJoinLock(_ context.Context, _ string, _, _ int64, fn func() error) error {
	return fn()
}

type fakeEnqueuer struct{ s *memStore }

func (e *fakeEnqueuer) Enqueue(tx *gorm.DB, name, key string, payload interface{}, maxRetry int) error {
	return e.EnqueueAt(tx, name, key, payload, maxRetry, time.Now())
}

func (e *fakeEnqueuer) EnqueueAt(_ *gorm.DB, name, key string, payload interface{}, _ int, _ time.Time) error {
	for _, t := range e.s.enqueued {
		if t.Key == key {
			return nil // task_key 冲突按幂等忽略
		}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	e.s.enqueued = append(e.s.enqueued, enqueuedTask{Name: name, Key: key, Payload: string(data)})
	return nil
}

// ---- 网关 ----

type fakeGateway struct {
	refundErr     error
	createErr     error
	refundCalls   []string // 每次退款的 orderNo
	pushCalls     []*parteam.PushMessage
	createdOrders int
	users         map[int64]parteam.User
}

func (g *fakeGateway) UserInfoList(_ context.Context, userIDs []int64) (map[int64]parteam.User, error) {
	if g.users != nil {
		return g.users, nil
	}
	users := make(map[int64]parteam.User)
	for _, id := range userIDs {
		users[id] = parteam.User{UserID: id, Mobile: fmt.Sprintf("1380000%04d", id)}
	}
	return users, nil
}

func (g *fakeGateway) OrderRefund(_ context.Context, _ int64, orderNo string, _ int64, _ string, _ int) error {
	g.refundCalls = append(g.refundCalls, orderNo)
	return g.refundErr
}

func (g *fakeGateway) Push(_ context.Context, message *parteam.PushMessage) error {
	g.pushCalls = append(g.pushCalls, message)
	return nil
}

func (g *fakeGateway) CreateOrder(_ context.Context, _ *parteam.CreateOrderRequest) (string, error) {
	if g.createErr != nil {
		return "", g.createErr
	}
	g.createdOrders++
	return fmt.Sprintf("PT%08d", g.createdOrders), nil
}

// ---- 活动 ----

type fakeActivityRepo struct{ s *memStore }

func (r *fakeActivityRepo) GetByID(_ *gorm.DB, id int64) (*model.Activity, error) {
	a, ok := r.s.activities[id]
	if !ok {
		return nil, repository.ErrActivityNotFound
	}
	c := *a
	return &c, nil
}

func (r *fakeActivityRepo) GetByIDForUpdate(tx *gorm.DB, id int64) (*model.Activity, error) {
	return r.GetByID(tx, id)
}

func (r *fakeActivityRepo) Create(_ *gorm.DB, a *model.Activity) error {
	if a.ID == 0 {
		a.ID = r.s.nextID()
	}
	c := *a
	r.s.activities[a.ID] = &c
	return nil
}

func (r *fakeActivityRepo) UpdateState(_ *gorm.DB, id int64, from, to model.ActivityState, updates map[string]interface{}) error {
	a, ok := r.s.activities[id]
	if !ok || a.State != from {
		return repository.ErrStateChanged
	}
	a.State = to
	if v, ok := updates["cancel_reason"]; ok {
		a.CancelReason = v.(string)
	}
	return nil
}

func (r *fakeActivityRepo) RecountMembers(_ *gorm.DB, activityID int64) (int, error) {
	total := 0
	for _, m := range r.s.activityMembers {
		if m.ActivityID == activityID && m.State == model.ActivityMemberConfirmed {
			total += m.UsersCount
		}
	}
	if a, ok := r.s.activities[activityID]; ok {
		a.MembersCount = total
	}
	return total, nil
}

func (r *fakeActivityRepo) UpdateSettleAmounts(_ *gorm.DB, id int64, online, credit, cash int64, freeTimes int, finishedAt time.Time) error {
	a, ok := r.s.activities[id]
	if !ok {
		return repository.ErrActivityNotFound
	}
	a.OnlinePaidAmount = online
	a.CreditPaidAmount = credit
	a.CashPaidAmount = cash
	a.FreeTimesAmount = freeTimes
	a.FinishedAt = &finishedAt
	return nil
}

func (r *fakeActivityRepo) ExistsNext(_ *gorm.DB, parentID int64, startTime time.Time) (bool, error) {
	for _, a := range r.s.activities {
		if a.ParentID == parentID && a.StartTime.Equal(startTime) {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeActivityRepo) FindFinishable(_ *gorm.DB, now time.Time, _ int) ([]*model.Activity, error) {
	var out []*model.Activity
	for _, a := range r.s.activities {
		if a.State == model.ActivityStateOpening && !a.EndTime.After(now) {
			c := *a
			out = append(out, &c)
		}
	}
	return out, nil
}

// ---- 活动成员 ----

type fakeActivityMemberRepo struct{ s *memStore }

func (r *fakeActivityMemberRepo) Create(_ *gorm.DB, m *model.ActivityMember) error {
	if m.ID == 0 {
		m.ID = r.s.nextID()
	}
	c := *m
	r.s.activityMembers[m.ID] = &c
	return nil
}

func (r *fakeActivityMemberRepo) GetByID(_ *gorm.DB, id int64) (*model.ActivityMember, error) {
	m, ok := r.s.activityMembers[id]
	if !ok {
		return nil, repository.ErrMemberNotFound
	}
	c := *m
	return &c, nil
}

func (r *fakeActivityMemberRepo) GetByActivityUser(_ *gorm.DB, activityID, userID int64) (*model.ActivityMember, error) {
	for _, m := range r.s.activityMembers {
		if m.ActivityID == activityID && m.UserID == userID {
			c := *m
			return &c, nil
		}
	}
	return nil, repository.ErrMemberNotFound
}

func (r *fakeActivityMemberRepo) GetByOrderNo(_ *gorm.DB, orderNo string) (*model.ActivityMember, error) {
	for _, m := range r.s.activityMembers {
		if m.OrderNo == orderNo {
			c := *m
			return &c, nil
		}
	}
	return nil, repository.ErrMemberNotFound
}

func (r *fakeActivityMemberRepo) ListByActivity(_ *gorm.DB, activityID int64, states ...model.ActivityMemberState) ([]*model.ActivityMember, error) {
	var out []*model.ActivityMember
	for _, m := range r.s.activityMembers {
		if m.ActivityID != activityID {
			continue
		}
		if len(states) > 0 && !containsActivityState(states, m.State) {
			continue
		}
		c := *m
		out = append(out, &c)
	}
	return out, nil
}

func containsActivityState(states []model.ActivityMemberState, s model.ActivityMemberState) bool {
	for _, st := range states {
		if st == s {
			return true
		}
	}
	return false
}

func (r *fakeActivityMemberRepo) UpdateState(_ *gorm.DB, id int64, from, to model.ActivityMemberState, updates map[string]interface{}) error {
	m, ok := r.s.activityMembers[id]
	if !ok || m.State != from {
		return repository.ErrStateChanged
	}
	m.State = to
	if v, ok := updates["users_count"]; ok {
		m.UsersCount = v.(int)
	}
	if v, ok := updates["total_fee"]; ok {
		m.TotalFee = v.(int64)
	}
	if v, ok := updates["order_id"]; ok {
		m.OrderID = v.(int64)
	}
	if v, ok := updates["order_no"]; ok {
		m.OrderNo = v.(string)
	}
	return nil
}

func (r *fakeActivityMemberRepo) MarkPaid(_ *gorm.DB, id int64, method string, paidAt time.Time) error {
	m, ok := r.s.activityMembers[id]
	if !ok || m.State != model.ActivityMemberWaitConfirm {
		return repository.ErrStateChanged
	}
	m.State = model.ActivityMemberConfirmed
	m.PaymentState = model.OrderStateTradeBuyerPaid
	m.PaymentMethod = method
	m.PaidAt = &paidAt
	m.ConfirmedAt = &paidAt
	return nil
}

func (r *fakeActivityMemberRepo) UpdatePaymentState(_ *gorm.DB, id int64, state model.OrderState) error {
	m, ok := r.s.activityMembers[id]
	if !ok {
		return repository.ErrMemberNotFound
	}
	m.PaymentState = state
	return nil
}

func (r *fakeActivityMemberRepo) SumFreeTimes(_ *gorm.DB, activityID int64) (int, error) {
	total := 0
	for _, m := range r.s.activityMembers {
		if m.ActivityID == activityID && m.State == model.ActivityMemberConfirmed {
			total += m.FreeTimes
		}
	}
	return total, nil
}

// ---- 赛事 ----

type fakeMatchRepo struct{ s *memStore }

func (r *fakeMatchRepo) GetByID(_ *gorm.DB, id int64) (*model.Match, error) {
	m, ok := r.s.matches[id]
	if !ok {
		return nil, repository.ErrMatchNotFound
	}
	c := *m
	return &c, nil
}

func (r *fakeMatchRepo) GetByIDForUpdate(tx *gorm.DB, id int64) (*model.Match, error) {
	return r.GetByID(tx, id)
}

func (r *fakeMatchRepo) UpdateState(_ *gorm.DB, id int64, from, to model.MatchState, updates map[string]interface{}) error {
	m, ok := r.s.matches[id]
	if !ok || m.State != from {
		return repository.ErrStateChanged
	}
	m.State = to
	if v, ok := updates["cancel_reason"]; ok {
		m.CancelReason = v.(string)
	}
	return nil
}

func (r *fakeMatchRepo) RecountMembers(_ *gorm.DB, matchID int64) (int, error) {
	total := 0
	for _, m := range r.s.matchMembers {
		if m.MatchID == matchID && m.State >= model.MatchMemberWaitPay && m.State <= model.MatchMemberNormal {
			total++
		}
	}
	if match, ok := r.s.matches[matchID]; ok {
		match.MembersCount = total
	}
	return total, nil
}

func (r *fakeMatchRepo) MarkPushed(_ *gorm.DB, id int64, pushedAt time.Time) error {
	m, ok := r.s.matches[id]
	if !ok || m.PushedAt != nil {
		return repository.ErrStateChanged
	}
	m.PushedAt = &pushedAt
	return nil
}

func (r *fakeMatchRepo) FindStartingUnpushed(_ *gorm.DB, from, to time.Time, _ int) ([]*model.Match, error) {
	var out []*model.Match
	for _, m := range r.s.matches {
		if m.State == model.MatchStateOpening && m.PushedAt == nil &&
			!m.StartTime.Before(from) && !m.StartTime.After(to) {
			c := *m
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *fakeMatchRepo) GetGroupByID(_ *gorm.DB, groupID int64) (*model.MatchGroup, error) {
	g, ok := r.s.groups[groupID]
	if !ok {
		return nil, repository.ErrGroupNotFound
	}
	c := *g
	return &c, nil
}

func (r *fakeMatchRepo) RecountGroupMembers(_ *gorm.DB, groupID int64) (int, error) {
	total := 0
	for _, m := range r.s.matchMembers {
		if m.GroupID == groupID && m.State >= model.MatchMemberWaitPay && m.State <= model.MatchMemberNormal {
			total++
		}
	}
	if g, ok := r.s.groups[groupID]; ok {
		g.MembersCount = total
	}
	return total, nil
}

func (r *fakeMatchRepo) CreateGroup(_ *gorm.DB, g *model.MatchGroup) error {
	if g.ID == 0 {
		g.ID = r.s.nextID()
	}
	c := *g
	r.s.groups[g.ID] = &c
	return nil
}

func (r *fakeMatchRepo) ListGroups(_ *gorm.DB, matchID int64) ([]*model.MatchGroup, error) {
	var out []*model.MatchGroup
	for _, g := range r.s.groups {
		if g.MatchID == matchID {
			c := *g
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *fakeMatchRepo) CreateAgainst(_ *gorm.DB, a *model.MatchAgainst) error {
	if a.ID == 0 {
		a.ID = r.s.nextID()
	}
	c := *a
	r.s.againsts = append(r.s.againsts, &c)
	return nil
}

func (r *fakeMatchRepo) ListAgainst(_ *gorm.DB, matchID int64) ([]*model.MatchAgainst, error) {
	var out []*model.MatchAgainst
	for _, a := range r.s.againsts {
		if a.MatchID == matchID {
			c := *a
			out = append(out, &c)
		}
	}
	return out, nil
}

// ---- 参赛成员 ----

type fakeMatchMemberRepo struct{ s *memStore }

func (r *fakeMatchMemberRepo) Create(_ *gorm.DB, m *model.MatchMember) error {
	if m.ID == 0 {
		m.ID = r.s.nextID()
	}
	c := *m
	r.s.matchMembers[m.ID] = &c
	return nil
}

func (r *fakeMatchMemberRepo) GetByID(_ *gorm.DB, id int64) (*model.MatchMember, error) {
	m, ok := r.s.matchMembers[id]
	if !ok {
		return nil, repository.ErrMemberNotFound
	}
	c := *m
	return &c, nil
}

func (r *fakeMatchMemberRepo) GetActiveByMatchUser(_ *gorm.DB, matchID, userID int64) (*model.MatchMember, error) {
	for _, m := range r.s.matchMembers {
		if m.MatchID == matchID && m.UserID == userID &&
			m.State >= model.MatchMemberWaitPay && m.State <= model.MatchMemberNormal {
			c := *m
			return &c, nil
		}
	}
	return nil, repository.ErrMemberNotFound
}

func (r *fakeMatchMemberRepo) GetByPtOrderNo(_ *gorm.DB, ptOrderNo string) (*model.MatchMember, error) {
	for _, m := range r.s.matchMembers {
		if m.PtOrderNo == ptOrderNo {
			c := *m
			return &c, nil
		}
	}
	return nil, repository.ErrMemberNotFound
}

func (r *fakeMatchMemberRepo) ListByMatch(_ *gorm.DB, matchID int64, states ...model.MatchMemberState) ([]*model.MatchMember, error) {
	var out []*model.MatchMember
	for _, m := range r.s.matchMembers {
		if m.MatchID != matchID {
			continue
		}
		if len(states) > 0 && !containsMatchState(states, m.State) {
			continue
		}
		c := *m
		out = append(out, &c)
	}
	return out, nil
}

func containsMatchState(states []model.MatchMemberState, s model.MatchMemberState) bool {
	for _, st := range states {
		if st == s {
			return true
		}
	}
	return false
}

func (r *fakeMatchMemberRepo) UpdateState(_ *gorm.DB, id int64, from, to model.MatchMemberState, updates map[string]interface{}) error {
	m, ok := r.s.matchMembers[id]
	if !ok || m.State != from {
		return repository.ErrStateChanged
	}
	m.State = to
	if v, ok := updates["pt_order_no"]; ok {
		m.PtOrderNo = v.(string)
	}
	return nil
}

func (r *fakeMatchMemberRepo) Delete(_ *gorm.DB, id int64) error {
	delete(r.s.matchMembers, id)
	return nil
}

// ---- 订单 ----

type fakeOrderRepo struct{ s *memStore }

func (r *fakeOrderRepo) Create(_ *gorm.DB, o *model.TeamOrder) error {
	if o.ID == 0 {
		o.ID = r.s.nextID()
	}
	c := *o
	r.s.orders[o.ID] = &c
	return nil
}

func (r *fakeOrderRepo) GetByID(_ *gorm.DB, id int64) (*model.TeamOrder, error) {
	o, ok := r.s.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	c := *o
	return &c, nil
}

func (r *fakeOrderRepo) GetByOrderNo(_ *gorm.DB, orderNo string) (*model.TeamOrder, error) {
	for _, o := range r.s.orders {
		if o.OrderNo == orderNo {
			c := *o
			return &c, nil
		}
	}
	return nil, repository.ErrOrderNotFound
}

func (r *fakeOrderRepo) GetByOrderNoForUpdate(tx *gorm.DB, orderNo string) (*model.TeamOrder, error) {
	return r.GetByOrderNo(tx, orderNo)
}

func (r *fakeOrderRepo) MarkPaid(_ *gorm.DB, id int64, from model.OrderState, method, gatewayTradeNo string, paidAt time.Time) error {
	o, ok := r.s.orders[id]
	if !ok || o.State != from || !model.CanOrderTransition(from, model.OrderStateTradeBuyerPaid) {
		return repository.ErrStateChanged
	}
	o.State = model.OrderStateTradeBuyerPaid
	o.PaymentMethod = method
	o.GatewayTradeNo = gatewayTradeNo
	o.PaymentFee = o.TotalFee - o.CreditFee
	o.PaidAt = &paidAt
	return nil
}

func (r *fakeOrderRepo) SetGatewayTradeNo(_ *gorm.DB, id int64, gatewayTradeNo string) error {
	o, ok := r.s.orders[id]
	if !ok {
		return repository.ErrOrderNotFound
	}
	o.GatewayTradeNo = gatewayTradeNo
	return nil
}

func (r *fakeOrderRepo) MarkRefunding(_ *gorm.DB, id int64) error {
	o, ok := r.s.orders[id]
	if !ok || o.State != model.OrderStateTradeBuyerPaid || o.RefundState != model.RefundStateNoRefund {
		return repository.ErrStateChanged
	}
	o.RefundState = model.RefundStateRefunding
	return nil
}

func (r *fakeOrderRepo) MarkRefunded(_ *gorm.DB, id int64, refundedFee int64, refundedAt time.Time) error {
	o, ok := r.s.orders[id]
	if !ok || o.RefundState != model.RefundStateRefunding {
		return repository.ErrStateChanged
	}
	o.State = model.OrderStateTradeClosed
	o.RefundState = model.RefundStateRefunded
	o.RefundedFee = refundedFee
	o.RefundedAt = &refundedAt
	return nil
}

func (r *fakeOrderRepo) MarkRefundFailed(_ *gorm.DB, id int64, note string) error {
	o, ok := r.s.orders[id]
	if !ok {
		return repository.ErrOrderNotFound
	}
	o.RefundState = model.RefundStateRefundFailed
	o.Note = note
	return nil
}

func (r *fakeOrderRepo) FoldNotPaid(_ *gorm.DB, id int64, note string) error {
	o, ok := r.s.orders[id]
	if !ok {
		return repository.ErrOrderNotFound
	}
	o.State = model.OrderStateTradeClosedByUser
	o.RefundState = model.RefundStateNoRefund
	o.Note = note
	return nil
}

func (r *fakeOrderRepo) CloseUnpaid(_ *gorm.DB, id int64, note string) error {
	o, ok := r.s.orders[id]
	if !ok {
		return repository.ErrOrderNotFound
	}
	if o.State != model.OrderStateWaitBuyerPay && o.State != model.OrderStateWaitPayReturn {
		return repository.ErrStateChanged
	}
	o.State = model.OrderStateTradeClosedByUser
	o.Note = note
	return nil
}

func (r *fakeOrderRepo) Finish(_ *gorm.DB, id int64, finishedAt time.Time) error {
	o, ok := r.s.orders[id]
	if !ok || o.State != model.OrderStateTradeBuyerPaid {
		return repository.ErrStateChanged
	}
	o.State = model.OrderStateTradeFinished
	o.FinishedAt = &finishedAt
	return nil
}

func (r *fakeOrderRepo) SumPaidByActivity(_ *gorm.DB, activityID int64, orderType int, methods []string) (int64, error) {
	var total int64
	for _, o := range r.s.orders {
		if o.ActivityID != activityID || o.OrderType != orderType {
			continue
		}
		if o.State != model.OrderStateTradeBuyerPaid && o.State != model.OrderStateTradeFinished {
			continue
		}
		for _, m := range methods {
			if o.PaymentMethod == m {
				total += o.TotalFee
				break
			}
		}
	}
	return total, nil
}

func (r *fakeOrderRepo) ListPaidByActivity(_ *gorm.DB, activityID int64, orderType int) ([]*model.TeamOrder, error) {
	var out []*model.TeamOrder
	for _, o := range r.s.orders {
		if o.ActivityID == activityID && o.OrderType == orderType && o.State == model.OrderStateTradeBuyerPaid {
			c := *o
			out = append(out, &c)
		}
	}
	return out, nil
}

// ---- 俱乐部 ----

type fakeTeamRepo struct{ s *memStore }

func (r *fakeTeamRepo) GetByID(_ *gorm.DB, id int64) (*model.Team, error) {
	t, ok := r.s.teams[id]
	if !ok {
		return nil, repository.ErrTeamNotFound
	}
	c := *t
	return &c, nil
}

func (r *fakeTeamRepo) GetByIDForUpdate(tx *gorm.DB, id int64) (*model.Team, error) {
	return r.GetByID(tx, id)
}

func (r *fakeTeamRepo) AddCredit(_ *gorm.DB, id int64, delta int64) error {
	t, ok := r.s.teams[id]
	if !ok {
		return repository.ErrTeamNotFound
	}
	t.Credit += delta
	return nil
}

func (r *fakeTeamRepo) AddReceipts(_ *gorm.DB, id int64, delta int64) error {
	t, ok := r.s.teams[id]
	if !ok {
		return repository.ErrTeamNotFound
	}
	t.TotalReceipts += delta
	return nil
}

func (r *fakeTeamRepo) CreateAccountLog(_ *gorm.DB, accountLog *model.TeamAccountLog) error {
	c := *accountLog
	c.ID = r.s.nextID()
	r.s.accountLogs = append(r.s.accountLogs, &c)
	return nil
}

func (r *fakeTeamRepo) ListAccountLogs(_ *gorm.DB, teamID int64, limit, offset int) ([]*model.TeamAccountLog, error) {
	var out []*model.TeamAccountLog
	for i := len(r.s.accountLogs) - 1; i >= 0; i-- {
		if r.s.accountLogs[i].TeamID == teamID {
			c := *r.s.accountLogs[i]
			out = append(out, &c)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeTeamRepo) CountSettlementLogs(_ *gorm.DB, activityID int64) (int64, error) {
	var count int64
	for _, l := range r.s.accountLogs {
		if l.ActivityID == activityID && l.ChangeType == model.AccountChangeSettlement {
			count++
		}
	}
	return count, nil
}

// ---- 结算申请 ----

type fakeSettlementRepo struct{ s *memStore }

func (r *fakeSettlementRepo) Create(_ *gorm.DB, app *model.SettlementApplication) error {
	if app.ID == 0 {
		app.ID = r.s.nextID()
	}
	c := *app
	r.s.applications[app.ID] = &c
	return nil
}

func (r *fakeSettlementRepo) GetByID(_ *gorm.DB, id int64) (*model.SettlementApplication, error) {
	a, ok := r.s.applications[id]
	if !ok {
		return nil, repository.ErrApplicationNotFound
	}
	c := *a
	return &c, nil
}

func (r *fakeSettlementRepo) ExistsActive(_ *gorm.DB, matchID int64) (bool, error) {
	for _, a := range r.s.applications {
		if a.MatchID == matchID &&
			(a.Processing == model.ApplicationRequesting || a.Processing == model.ApplicationApproved) {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeSettlementRepo) UpdateProcessing(_ *gorm.DB, id int64, from, to model.ApplicationState, _ map[string]interface{}) error {
	a, ok := r.s.applications[id]
	if !ok || a.Processing != from {
		return repository.ErrStateChanged
	}
	a.Processing = to
	return nil
}

func (r *fakeSettlementRepo) Approve(tx *gorm.DB, id, adminID int64, approvedAt time.Time) error {
	if err := r.UpdateProcessing(tx, id, model.ApplicationRequesting, model.ApplicationApproved, nil); err != nil {
		return err
	}
	a := r.s.applications[id]
	a.AdminID = adminID
	a.ApprovedAt = &approvedAt
	return nil
}

func (r *fakeSettlementRepo) Disapprove(tx *gorm.DB, id, adminID int64) error {
	if err := r.UpdateProcessing(tx, id, model.ApplicationRequesting, model.ApplicationDisapproved, nil); err != nil {
		return err
	}
	r.s.applications[id].AdminID = adminID
	return nil
}

// ---- 外发 ----

type fakeOutboxRepo struct{ s *memStore }

func (r *fakeOutboxRepo) Create(_ *gorm.DB, msg *model.OutboxMessage) error {
	c := *msg
	c.ID = r.s.nextID()
	r.s.outbox = append(r.s.outbox, &c)
	return nil
}
