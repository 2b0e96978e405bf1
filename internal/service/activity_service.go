package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"sportclub/internal/apperr"
	"sportclub/internal/config"
	"sportclub/internal/model"
	"sportclub/internal/parteam"
	"sportclub/internal/repository"
	"sportclub/internal/task"
	"sportclub/pkg/idgen"
)

// ActivityService 活动生命周期与结算
//
// 状态流转一律走条件更新，退款一律走后台任务，
// 同步接口里绝不调用派队退款。
type ActivityService struct {
	cfg        *config.Config
	txm        repository.TxManager
	locker     Locker
	activities ActivityRepo
	members    ActivityMemberRepo
	orders     OrderRepo
	teams      TeamRepo
	outbox     OutboxRepo
	gateway    ParteamGateway
	tasks      task.Enqueuer
}

func NewActivityService(
	cfg *config.Config,
	txm repository.TxManager,
	locker Locker,
	activities ActivityRepo,
	members ActivityMemberRepo,
	orders OrderRepo,
	teams TeamRepo,
	outbox OutboxRepo,
	gateway ParteamGateway,
	tasks task.Enqueuer,
) *ActivityService {
	return &ActivityService{
		cfg:        cfg,
		txm:        txm,
		locker:     locker,
		activities: activities,
		members:    members,
		orders:     orders,
		teams:      teams,
		outbox:     outbox,
		gateway:    gateway,
		tasks:      tasks,
	}
}

// JoinActivityRequest 活动报名请求
type JoinActivityRequest struct {
	ActivityID int64  `json:"activity_id" binding:"required"`
	UserID     int64  `json:"user_id" binding:"required"`
	UsersCount int    `json:"users_count"` // 含代报人数，默认 1
	FreeTimes  int    `json:"free_times"`  // 使用次卡抵扣的人数
	Nickname   string `json:"nickname"`
	Mobile     string `json:"mobile"`
}

// JoinActivityResult 报名结果，在线支付时携带待支付订单
type JoinActivityResult struct {
	Member *model.ActivityMember `json:"member"`
	Order  *model.TeamOrder      `json:"order,omitempty"`
}

// Join 活动报名
//
// 免费或线下收费的报名直接确认，在线收费的报名创建待支付订单，
// 成员停留在待确认状态，由支付回调转正。
func (s *ActivityService) Join(ctx context.Context, req *JoinActivityRequest) (*JoinActivityResult, error) {
	if req.UsersCount <= 0 {
		req.UsersCount = 1
	}
	if req.FreeTimes < 0 || req.FreeTimes > req.UsersCount {
		return nil, apperr.Validation("次卡抵扣人数不合法")
	}

	var result *JoinActivityResult
	err := s.locker.WithJoinLock(ctx, "activity", req.ActivityID, req.UserID, func() error {
		return s.txm.Transaction(ctx, func(tx *gorm.DB) error {
			activity, err := s.activities.GetByIDForUpdate(tx, req.ActivityID)
			if err != nil {
				return err
			}

			ok, reason := activity.CanApply(time.Now())
			if !ok {
				return apperr.State(reason)
			}
			if activity.MaxMembers > 0 && activity.MembersCount+req.UsersCount > activity.MaxMembers {
				return apperr.State(model.ReasonActivityFull)
			}

			existing, err := s.members.GetByActivityUser(tx, req.ActivityID, req.UserID)
			if err != nil && !errors.Is(err, repository.ErrMemberNotFound) {
				return err
			}
			if existing != nil {
				switch existing.State {
				case model.ActivityMemberBlocked:
					return apperr.State("已被加入黑名单，不能报名")
				case model.ActivityMemberCancelled, model.ActivityMemberRejected:
					// 取消过的成员重新报名，复用原记录
				default:
					return apperr.Conflict("已报名该活动")
				}
			}

			totalFee := activity.Price * int64(req.UsersCount-req.FreeTimes)
			if totalFee < 0 {
				totalFee = 0
			}

			member := &model.ActivityMember{
				ActivityID: req.ActivityID,
				UserID:     req.UserID,
				TeamID:     activity.TeamID,
				UsersCount: req.UsersCount,
				FreeTimes:  req.FreeTimes,
				Price:      activity.Price,
				TotalFee:   totalFee,
				Nickname:   req.Nickname,
				Mobile:     req.Mobile,
			}

			var order *model.TeamOrder
			now := time.Now()

			if activity.PaymentType == model.ActivityPaymentCash || totalFee == 0 {
				// 无需在线支付，直接确认，不创建订单
				member.State = model.ActivityMemberConfirmed
				member.ConfirmedAt = &now
				if totalFee > 0 {
					member.PaymentMethod = model.PaymentMethodCash
				}
			} else {
				order = &model.TeamOrder{
					OrderNo:    idgen.GenerateOrderNo(),
					TeamID:     activity.TeamID,
					UserID:     req.UserID,
					OrderType:  model.OrderTypeActivity,
					ActivityID: req.ActivityID,
					Title:      activity.Title,
					TotalFee:   totalFee,
					State:      model.OrderStateWaitBuyerPay,
				}
				if err := s.orders.Create(tx, order); err != nil {
					return err
				}
				member.State = model.ActivityMemberWaitConfirm
				member.OrderID = order.ID
				member.OrderNo = order.OrderNo
			}

			if existing != nil {
				err = s.members.UpdateState(tx, existing.ID, existing.State, member.State, map[string]interface{}{
					"users_count":  member.UsersCount,
					"free_times":   member.FreeTimes,
					"price":        member.Price,
					"total_fee":    member.TotalFee,
					"order_id":     member.OrderID,
					"order_no":     member.OrderNo,
					"confirmed_at": member.ConfirmedAt,
				})
				if err != nil {
					return err
				}
				member.ID = existing.ID
			} else if err := s.members.Create(tx, member); err != nil {
				return err
			}

			if member.State == model.ActivityMemberConfirmed {
				if _, err := s.activities.RecountMembers(tx, req.ActivityID); err != nil {
					return err
				}
			}

			result = &JoinActivityResult{Member: member, Order: order}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// PaymentCallback 支付回调
//
// 以 order_no 寻址，重复回调按幂等处理：订单已是已支付
// 或终态时直接返回成功，不产生第二次副作用。
func (s *ActivityService) PaymentCallback(ctx context.Context, orderNo, method, gatewayTradeNo string, paidAt time.Time) error {
	return s.txm.Transaction(ctx, func(tx *gorm.DB) error {
		order, err := s.orders.GetByOrderNoForUpdate(tx, orderNo)
		if err != nil {
			return err
		}

		if order.State == model.OrderStateTradeBuyerPaid || order.State.IsTerminal() {
			log.Printf("[Activity] 重复支付回调, orderNo=%s, state=%s", orderNo, order.State)
			return nil
		}
		if order.State != model.OrderStateWaitBuyerPay && order.State != model.OrderStateWaitPayReturn {
			return apperr.State(fmt.Sprintf("订单状态不允许支付确认: %s", order.State))
		}

		if err := s.orders.MarkPaid(tx, order.ID, order.State, method, gatewayTradeNo, paidAt); err != nil {
			return err
		}

		member, err := s.members.GetByOrderNo(tx, orderNo)
		if err != nil {
			return err
		}
		if err := s.members.MarkPaid(tx, member.ID, method, paidAt); err != nil {
			return err
		}

		_, err = s.activities.RecountMembers(tx, member.ActivityID)
		return err
	})
}

// Leave 退出活动
//
// 未支付成员直接取消并关闭订单；已支付成员校验退款窗口后
// 取消并入队退款任务。
func (s *ActivityService) Leave(ctx context.Context, activityID, userID int64) error {
	return s.txm.Transaction(ctx, func(tx *gorm.DB) error {
		activity, err := s.activities.GetByIDForUpdate(tx, activityID)
		if err != nil {
			return err
		}

		member, err := s.members.GetByActivityUser(tx, activityID, userID)
		if err != nil {
			return err
		}

		switch member.State {
		case model.ActivityMemberCancelled:
			return nil
		case model.ActivityMemberWaitConfirm:
			if err := s.members.UpdateState(tx, member.ID, member.State, model.ActivityMemberCancelled, nil); err != nil {
				return err
			}
			if member.OrderID > 0 {
				if err := s.orders.CloseUnpaid(tx, member.OrderID, "用户取消报名"); err != nil &&
					!errors.Is(err, repository.ErrStateChanged) {
					return err
				}
			}
			return nil
		case model.ActivityMemberConfirmed:
			// 继续走退出流程
		default:
			return apperr.State("当前状态不能退出活动")
		}

		if member.NeedRefund() && !canRefundActivity(activity, time.Now()) {
			return apperr.State("不在可退款时间内")
		}

		if err := s.members.UpdateState(tx, member.ID, member.State, model.ActivityMemberCancelled, nil); err != nil {
			return err
		}

		if member.NeedRefund() {
			if err := s.orders.MarkRefunding(tx, member.OrderID); err != nil {
				return err
			}
			if err := s.enqueueRefund(tx, member, parteam.RefundRoleUser); err != nil {
				return err
			}
		}

		_, err = s.activities.RecountMembers(tx, activityID)
		return err
	})
}

func canRefundActivity(a *model.Activity, now time.Time) bool {
	switch a.RefundType {
	case model.RefundBeforeStart:
		return a.StartTime.After(now)
	case model.RefundBeforeJoinEnd:
		return a.JoinEnd != nil && a.JoinEnd.After(now)
	default:
		return false
	}
}

// Cancel 取消活动
//
// 取消后所有已支付成员各入队一条退款任务，未支付成员关单。
// 返回入队的退款任务数。
func (s *ActivityService) Cancel(ctx context.Context, activityID, operatorID int64, reason string) (int, error) {
	refunds := 0
	err := s.txm.Transaction(ctx, func(tx *gorm.DB) error {
		activity, err := s.activities.GetByIDForUpdate(tx, activityID)
		if err != nil {
			return err
		}
		if !activity.CanCancel(time.Now()) {
			return apperr.State("活动当前状态不允许取消")
		}

		now := time.Now()
		err = s.activities.UpdateState(tx, activityID, activity.State, model.ActivityStateCancelled,
			map[string]interface{}{
				"cancelled_at":  now,
				"cancel_reason": reason,
			})
		if err != nil {
			if errors.Is(err, repository.ErrStateChanged) {
				return apperr.State("活动状态已变更")
			}
			return err
		}

		members, err := s.members.ListByActivity(tx, activityID,
			model.ActivityMemberWaitConfirm, model.ActivityMemberConfirmed)
		if err != nil {
			return err
		}

		for _, m := range members {
			if err := s.members.UpdateState(tx, m.ID, m.State, model.ActivityMemberCancelled, nil); err != nil {
				return err
			}
			switch {
			case m.NeedRefund():
				if err := s.orders.MarkRefunding(tx, m.OrderID); err != nil {
					return err
				}
				if err := s.enqueueRefund(tx, m, parteam.RefundRoleSponsor); err != nil {
					return err
				}
				refunds++
			case m.OrderID > 0:
				if err := s.orders.CloseUnpaid(tx, m.OrderID, "活动取消"); err != nil &&
					!errors.Is(err, repository.ErrStateChanged) {
					return err
				}
			}
		}

		_, err = s.activities.RecountMembers(tx, activityID)
		return err
	})
	if err != nil {
		return 0, err
	}
	log.Printf("[Activity] 活动已取消, activityID=%d, 退款任务数=%d", activityID, refunds)
	return refunds, nil
}

// refundPayload 活动退款任务参数
type refundPayload struct {
	OrderID  int64 `json:"order_id"`
	MemberID int64 `json:"member_id"`
	Role     int   `json:"role"`
}

func (s *ActivityService) enqueueRefund(tx *gorm.DB, m *model.ActivityMember, role int) error {
	key := fmt.Sprintf("%s:%d", task.TaskActivityRefund, m.OrderID)
	return s.tasks.Enqueue(tx, task.TaskActivityRefund, key,
		&refundPayload{OrderID: m.OrderID, MemberID: m.ID, Role: role},
		s.cfg.Business.TaskMaxRetry)
}

// HandleRefundTask 活动退款任务
//
// 网关返回「订单未支付」时折算为本地关单后正常结束；
// 其它业务拒绝是永久失败；网络错误返回可重试错误。
func (s *ActivityService) HandleRefundTask(ctx context.Context, payload string) error {
	var p refundPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return apperr.Permanent("解析退款任务参数失败", err)
	}

	order, err := s.orders.GetByID(nil, p.OrderID)
	if err != nil {
		return apperr.Permanent("退款订单不存在", err)
	}
	if order.RefundState == model.RefundStateRefunded {
		return nil
	}
	if order.RefundState != model.RefundStateRefunding {
		return apperr.Permanent(fmt.Sprintf("订单不在退款中状态: refund_state=%d", order.RefundState), nil)
	}

	refNo := order.GatewayTradeNo
	if refNo == "" {
		refNo = order.OrderNo
	}

	err = s.gateway.OrderRefund(ctx, order.UserID, refNo, order.TotalFee, s.refundNotifyURL(), p.Role)
	switch {
	case err == nil:
		return s.txm.Transaction(ctx, func(tx *gorm.DB) error {
			now := time.Now()
			if err := s.orders.MarkRefunded(tx, order.ID, order.TotalFee, now); err != nil {
				if errors.Is(err, repository.ErrStateChanged) {
					return nil
				}
				return err
			}
			if err := s.members.UpdatePaymentState(tx, p.MemberID, model.OrderStateTradeClosed); err != nil {
				return err
			}
			return s.publishRefundEvent(tx, order, "REFUNDED")
		})
	case errors.Is(err, parteam.ErrNotPaid):
		// 网关侧未支付，折算为本地关单，任务正常结束
		log.Printf("[Activity] 退款订单网关未支付, orderID=%d", order.ID)
		return s.txm.Transaction(ctx, func(tx *gorm.DB) error {
			if err := s.orders.FoldNotPaid(tx, order.ID, "网关订单未支付"); err != nil {
				return err
			}
			return s.members.UpdatePaymentState(tx, p.MemberID, model.OrderStateTradeClosedByUser)
		})
	case errors.Is(err, parteam.ErrRefund):
		if e := s.orders.MarkRefundFailed(nil, order.ID, err.Error()); e != nil {
			log.Printf("[Activity] 标记退款失败出错, orderID=%d, err=%v", order.ID, e)
		}
		return apperr.Permanent("网关拒绝退款", err)
	default:
		return apperr.Transient("调用退款接口失败", err)
	}
}

func (s *ActivityService) refundNotifyURL() string {
	if s.cfg.Parteam.NotifyBaseURL == "" {
		return ""
	}
	return s.cfg.Parteam.NotifyBaseURL + "/api/v1/callback/refund"
}

// Finish 活动结算
//
// 到达结束时间后执行：汇总各渠道收入，在线收入计入俱乐部余额
// 并落一条账户流水，订单转入完成态，活动转入已结束。
// 状态条件更新保证重复结算只会入账一次。
func (s *ActivityService) Finish(ctx context.Context, activityID int64) error {
	return s.txm.Transaction(ctx, func(tx *gorm.DB) error {
		activity, err := s.activities.GetByIDForUpdate(tx, activityID)
		if err != nil {
			return err
		}
		if activity.State != model.ActivityStateOpening {
			return apperr.State("活动不在进行中，无法结算")
		}
		if !activity.IsEnded(time.Now()) {
			return apperr.State("活动尚未结束")
		}

		online, err := s.orders.SumPaidByActivity(tx, activityID, model.OrderTypeActivity, model.OnlinePaymentMethods)
		if err != nil {
			return err
		}
		creditPaid, err := s.orders.SumPaidByActivity(tx, activityID, model.OrderTypeActivity,
			[]string{model.PaymentMethodCredit})
		if err != nil {
			return err
		}
		cash, err := s.orders.SumPaidByActivity(tx, activityID, model.OrderTypeActivity,
			[]string{model.PaymentMethodCash, model.PaymentMethodOffline})
		if err != nil {
			return err
		}
		freeTimes, err := s.members.SumFreeTimes(tx, activityID)
		if err != nil {
			return err
		}

		now := time.Now()

		if online > 0 {
			team, err := s.teams.GetByIDForUpdate(tx, activity.TeamID)
			if err != nil {
				return err
			}
			if err := s.teams.AddCredit(tx, team.ID, online); err != nil {
				return err
			}
			if err := s.teams.AddReceipts(tx, team.ID, online); err != nil {
				return err
			}
			err = s.teams.CreateAccountLog(tx, &model.TeamAccountLog{
				TeamID:       team.ID,
				CreditChange: online,
				ChangeType:   model.AccountChangeSettlement,
				CreditBefore: team.Credit,
				CreditAfter:  team.Credit + online,
				Note:         fmt.Sprintf("活动结算: %s", activity.Title),
				ActivityID:   activityID,
			})
			if err != nil {
				return err
			}
		}

		orders, err := s.orders.ListPaidByActivity(tx, activityID, model.OrderTypeActivity)
		if err != nil {
			return err
		}
		for _, o := range orders {
			if err := s.orders.Finish(tx, o.ID, now); err != nil &&
				!errors.Is(err, repository.ErrStateChanged) {
				return err
			}
		}

		err = s.activities.UpdateState(tx, activityID, model.ActivityStateOpening, model.ActivityStateFinished, nil)
		if err != nil {
			if errors.Is(err, repository.ErrStateChanged) {
				return apperr.State("活动状态已变更")
			}
			return err
		}
		if err := s.activities.UpdateSettleAmounts(tx, activityID, online, creditPaid, cash, freeTimes, now); err != nil {
			return err
		}

		if err := s.publishSettlementEvent(tx, activity, online, creditPaid, cash, freeTimes); err != nil {
			return err
		}

		return s.generateNext(tx, activity)
	})
}

// generateNext 循环活动生成下一期
//
// 下一期开始时间超过 repeat_end 时停止续期；
// parent_id + start_time 查重保证重复结算不会生成重复场次。
func (s *ActivityService) generateNext(tx *gorm.DB, a *model.Activity) error {
	years, months, days, ok := a.RepeatPeriod()
	if !ok {
		return nil
	}

	nextStart := a.StartTime.AddDate(years, months, days)
	nextEnd := a.EndTime.AddDate(years, months, days)
	if a.RepeatEnd != nil && nextStart.After(*a.RepeatEnd) {
		return nil
	}

	parentID := a.ParentID
	if parentID == 0 {
		parentID = a.ID
	}

	exists, err := s.activities.ExistsNext(tx, parentID, nextStart)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	next := &model.Activity{
		TeamID:      a.TeamID,
		CreatorID:   a.CreatorID,
		Title:       a.Title,
		Description: a.Description,
		PaymentType: a.PaymentType,
		Price:       a.Price,
		MaxMembers:  a.MaxMembers,
		RefundType:  a.RefundType,
		StartTime:   nextStart,
		EndTime:     nextEnd,
		RepeatType:  a.RepeatType,
		RepeatEnd:   a.RepeatEnd,
		ParentID:    parentID,
		State:       model.ActivityStateOpening,
	}
	if a.JoinStart != nil {
		t := a.JoinStart.AddDate(years, months, days)
		next.JoinStart = &t
	}
	if a.JoinEnd != nil {
		t := a.JoinEnd.AddDate(years, months, days)
		next.JoinEnd = &t
	}

	if err := s.activities.Create(tx, next); err != nil {
		return err
	}
	log.Printf("[Activity] 循环活动已生成下一期, parentID=%d, nextID=%d, start=%s",
		parentID, next.ID, nextStart.Format(time.RFC3339))
	return nil
}

// finishPayload 活动结算任务参数
type finishPayload struct {
	ActivityID int64 `json:"activity_id"`
}

// HandleFinishTask 活动结算任务，活动已不在进行中视为已处理
func (s *ActivityService) HandleFinishTask(ctx context.Context, payload string) error {
	var p finishPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return apperr.Permanent("解析结算任务参数失败", err)
	}

	err := s.Finish(ctx, p.ActivityID)
	if err != nil && apperr.KindOf(err) == apperr.KindState {
		log.Printf("[Activity] 结算任务跳过, activityID=%d, reason=%v", p.ActivityID, err)
		return nil
	}
	return err
}

// ScanFinishable 扫描到期活动并逐个入队结算任务
func (s *ActivityService) ScanFinishable(ctx context.Context) error {
	activities, err := s.activities.FindFinishable(nil, time.Now(), 200)
	if err != nil {
		return err
	}
	for _, a := range activities {
		key := fmt.Sprintf("%s:%d", task.TaskActivityFinish, a.ID)
		if err := s.tasks.Enqueue(nil, task.TaskActivityFinish, key,
			&finishPayload{ActivityID: a.ID}, s.cfg.Business.TaskMaxRetry); err != nil {
			log.Printf("[Activity] 入队结算任务失败, activityID=%d, err=%v", a.ID, err)
		}
	}
	return nil
}

// AccountLogs 查询俱乐部账户流水，按创建时间倒序分页
func (s *ActivityService) AccountLogs(ctx context.Context, teamID int64, limit, offset int) ([]*model.TeamAccountLog, error) {
	if _, err := s.teams.GetByID(nil, teamID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.teams.ListAccountLogs(nil, teamID, limit, offset)
}

// settlementEvent 结算完成事件
type settlementEvent struct {
	ActivityID int64  `json:"activity_id"`
	TeamID     int64  `json:"team_id"`
	Title      string `json:"title"`
	Online     int64  `json:"online_paid_amount"`
	Credit     int64  `json:"credit_paid_amount"`
	Cash       int64  `json:"cash_paid_amount"`
	FreeTimes  int    `json:"free_times_amount"`
	FinishedAt int64  `json:"finished_at"`
}

func (s *ActivityService) publishSettlementEvent(tx *gorm.DB, a *model.Activity, online, credit, cash int64, freeTimes int) error {
	data, err := json.Marshal(&settlementEvent{
		ActivityID: a.ID,
		TeamID:     a.TeamID,
		Title:      a.Title,
		Online:     online,
		Credit:     credit,
		Cash:       cash,
		FreeTimes:  freeTimes,
		FinishedAt: time.Now().Unix(),
	})
	if err != nil {
		return err
	}
	return s.outbox.Create(tx, &model.OutboxMessage{
		MessageKey: fmt.Sprintf("activity:%d", a.ID),
		Topic:      s.cfg.Kafka.Topic.SettlementEvent,
		Payload:    string(data),
		Status:     model.OutboxStatusPending,
	})
}

// refundEvent 退款完成事件
type refundEvent struct {
	OrderID    int64  `json:"order_id"`
	OrderNo    string `json:"order_no"`
	UserID     int64  `json:"user_id"`
	RefundFee  int64  `json:"refund_fee"`
	Result     string `json:"result"`
	RefundedAt int64  `json:"refunded_at"`
}

func (s *ActivityService) publishRefundEvent(tx *gorm.DB, order *model.TeamOrder, result string) error {
	data, err := json.Marshal(&refundEvent{
		OrderID:    order.ID,
		OrderNo:    order.OrderNo,
		UserID:     order.UserID,
		RefundFee:  order.TotalFee,
		Result:     result,
		RefundedAt: time.Now().Unix(),
	})
	if err != nil {
		return err
	}
	return s.outbox.Create(tx, &model.OutboxMessage{
		MessageKey: order.OrderNo,
		Topic:      s.cfg.Kafka.Topic.RefundEvent,
		Payload:    string(data),
		Status:     model.OutboxStatusPending,
	})
}
