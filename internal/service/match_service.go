package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/samber/lo"
	"gorm.io/gorm"

	"sportclub/internal/apperr"
	"sportclub/internal/config"
	"sportclub/internal/model"
	"sportclub/internal/parteam"
	"sportclub/internal/repository"
	"sportclub/internal/task"
	"sportclub/pkg/idgen"
)

// MatchService 赛事生命周期、结算申请与退款
type MatchService struct {
	cfg         *config.Config
	txm         repository.TxManager
	locker      Locker
	matches     MatchRepo
	members     MatchMemberRepo
	orders      OrderRepo
	teams       TeamRepo
	settlements SettlementRepo
	outbox      OutboxRepo
	gateway     ParteamGateway
	tasks       task.Enqueuer
}

func NewMatchService(
	cfg *config.Config,
	txm repository.TxManager,
	locker Locker,
	matches MatchRepo,
	members MatchMemberRepo,
	orders OrderRepo,
	teams TeamRepo,
	settlements SettlementRepo,
	outbox OutboxRepo,
	gateway ParteamGateway,
	tasks task.Enqueuer,
) *MatchService {
	return &MatchService{
		cfg:         cfg,
		txm:         txm,
		locker:      locker,
		matches:     matches,
		members:     members,
		orders:      orders,
		teams:       teams,
		settlements: settlements,
		outbox:      outbox,
		gateway:     gateway,
		tasks:       tasks,
	}
}

// JoinMatchRequest 赛事报名请求
type JoinMatchRequest struct {
	MatchID int64  `json:"match_id" binding:"required"`
	UserID  int64  `json:"user_id" binding:"required"`
	GroupID int64  `json:"group_id"` // 分组赛必填
	Name    string `json:"name"`
	Mobile  string `json:"mobile"`
}

// JoinMatchResult 报名结果，收费赛事携带派队订单号
type JoinMatchResult struct {
	Member    *model.MatchMember `json:"member"`
	Order     *model.TeamOrder   `json:"order,omitempty"`
	PtOrderNo string             `json:"pt_order_no,omitempty"`
}

// Join 赛事报名
//
// 收费报名先在本地落成员与订单，事务提交后再到派队预注册
// 支付订单。预注册失败时做补偿：关闭本地订单并移除成员，
// 避免把外部 HTTP 调用裹进数据库事务。
func (s *MatchService) Join(ctx context.Context, req *JoinMatchRequest) (*JoinMatchResult, error) {
	var (
		result *JoinMatchResult
		fee    int64
		match  *model.Match
	)

	err := s.locker.WithJoinLock(ctx, "match", req.MatchID, req.UserID, func() error {
		return s.txm.Transaction(ctx, func(tx *gorm.DB) error {
			var err error
			match, err = s.matches.GetByIDForUpdate(tx, req.MatchID)
			if err != nil {
				return err
			}

			ok, reason := match.CanJoin(time.Now())
			if !ok {
				return apperr.State(reason)
			}

			fee = match.Price
			if match.GroupType == model.MatchGroupTypeGrouped {
				if req.GroupID == 0 {
					return apperr.Validation("分组赛必须选择分组")
				}
				group, err := s.matches.GetGroupByID(tx, req.GroupID)
				if err != nil || group.MatchID != req.MatchID {
					return apperr.State(model.ReasonGroupNotFound)
				}
				if group.MaxMembers > 0 && group.MembersCount >= group.MaxMembers {
					return apperr.State(model.ReasonGroupFull)
				}
				fee = group.Price
			}

			_, err = s.members.GetActiveByMatchUser(tx, req.MatchID, req.UserID)
			if err == nil {
				return apperr.Conflict("已报名该赛事")
			}
			if !errors.Is(err, repository.ErrMemberNotFound) {
				return err
			}

			member := &model.MatchMember{
				MatchID:  req.MatchID,
				UserID:   req.UserID,
				GroupID:  req.GroupID,
				Name:     req.Name,
				Mobile:   req.Mobile,
				TotalFee: fee,
			}

			var order *model.TeamOrder
			if fee > 0 {
				order = &model.TeamOrder{
					OrderNo:    idgen.GenerateOrderNo(),
					TeamID:     match.TeamID,
					UserID:     req.UserID,
					OrderType:  model.OrderTypeMatch,
					ActivityID: req.MatchID,
					Title:      match.Title,
					TotalFee:   fee,
					State:      model.OrderStateWaitBuyerPay,
				}
				if err := s.orders.Create(tx, order); err != nil {
					return err
				}
				member.State = model.MatchMemberWaitPay
				member.OrderID = order.ID
			} else {
				member.State = model.MatchMemberNormal
			}

			if err := s.members.Create(tx, member); err != nil {
				return err
			}

			if _, err := s.matches.RecountMembers(tx, req.MatchID); err != nil {
				return err
			}
			if req.GroupID > 0 {
				if _, err := s.matches.RecountGroupMembers(tx, req.GroupID); err != nil {
					return err
				}
			}

			result = &JoinMatchResult{Member: member, Order: order}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	if fee == 0 {
		return result, nil
	}

	// 事务已提交，到派队预注册支付订单
	ptOrderNo, err := s.gateway.CreateOrder(ctx, &parteam.CreateOrderRequest{
		OrderValue: req.MatchID,
		EachFee:    fee,
		Num:        1,
		TotalFee:   fee,
		Subject:    match.Title,
		UserID:     req.UserID,
		NotifyURL:  s.joinNotifyURL(),
		ExpireAt:   time.Now().Add(30 * time.Minute),
		TradeType:  "APP",
	})
	if err != nil {
		log.Printf("[Match] 派队预下单失败, matchID=%d, userID=%d, err=%v", req.MatchID, req.UserID, err)
		s.compensateJoin(ctx, result.Member, result.Order)
		return nil, apperr.Transient("预注册支付订单失败", err)
	}

	if err := s.savePtOrderNo(ctx, result.Member.ID, result.Order.ID, ptOrderNo); err != nil {
		return nil, err
	}
	result.Member.PtOrderNo = ptOrderNo
	result.PtOrderNo = ptOrderNo
	return result, nil
}

// compensateJoin 预下单失败的补偿：关单、移除成员、重算人数
func (s *MatchService) compensateJoin(ctx context.Context, member *model.MatchMember, order *model.TeamOrder) {
	err := s.txm.Transaction(ctx, func(tx *gorm.DB) error {
		if order != nil {
			if err := s.orders.CloseUnpaid(tx, order.ID, "预下单失败"); err != nil &&
				!errors.Is(err, repository.ErrStateChanged) {
				return err
			}
		}
		if err := s.members.Delete(tx, member.ID); err != nil {
			return err
		}
		if _, err := s.matches.RecountMembers(tx, member.MatchID); err != nil {
			return err
		}
		if member.GroupID > 0 {
			if _, err := s.matches.RecountGroupMembers(tx, member.GroupID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Printf("[Match] 报名补偿失败, memberID=%d, err=%v", member.ID, err)
	}
}

func (s *MatchService) savePtOrderNo(ctx context.Context, memberID, orderID int64, ptOrderNo string) error {
	return s.txm.Transaction(ctx, func(tx *gorm.DB) error {
		if err := s.members.UpdateState(tx, memberID, model.MatchMemberWaitPay, model.MatchMemberWaitPay,
			map[string]interface{}{"pt_order_no": ptOrderNo}); err != nil {
			return err
		}
		return s.orders.SetGatewayTradeNo(tx, orderID, ptOrderNo)
	})
}

// PaymentCallback 派队支付回调，以 pt_order_no 寻址
//
// 重复回调幂等：成员已是正常状态直接返回成功。
func (s *MatchService) PaymentCallback(ctx context.Context, ptOrderNo, method string, paidAt time.Time) error {
	var (
		match  *model.Match
		member *model.MatchMember
	)

	err := s.txm.Transaction(ctx, func(tx *gorm.DB) error {
		var err error
		member, err = s.members.GetByPtOrderNo(tx, ptOrderNo)
		if err != nil {
			return err
		}
		if member.State == model.MatchMemberNormal {
			log.Printf("[Match] 重复支付回调, ptOrderNo=%s", ptOrderNo)
			return nil
		}
		if member.State != model.MatchMemberWaitPay {
			return apperr.State(fmt.Sprintf("成员状态不允许支付确认: %s", member.State))
		}

		order, err := s.orders.GetByID(tx, member.OrderID)
		if err != nil {
			return err
		}
		if order.State == model.OrderStateWaitBuyerPay || order.State == model.OrderStateWaitPayReturn {
			if err := s.orders.MarkPaid(tx, order.ID, order.State, method, ptOrderNo, paidAt); err != nil {
				return err
			}
		}

		if err := s.members.UpdateState(tx, member.ID, model.MatchMemberWaitPay, model.MatchMemberNormal, nil); err != nil {
			return err
		}
		if _, err := s.matches.RecountMembers(tx, member.MatchID); err != nil {
			return err
		}
		if member.GroupID > 0 {
			if _, err := s.matches.RecountGroupMembers(tx, member.GroupID); err != nil {
				return err
			}
		}

		match, err = s.matches.GetByID(tx, member.MatchID)
		return err
	})
	if err != nil {
		return err
	}

	if match != nil && member.State != model.MatchMemberNormal {
		s.enqueuePaySuccessPush(match, member, ptOrderNo)
	}
	return nil
}

func (s *MatchService) enqueuePaySuccessPush(match *model.Match, member *model.MatchMember, ptOrderNo string) {
	key := fmt.Sprintf("%s:pay:%s", task.TaskPushSend, ptOrderNo)
	err := s.tasks.Enqueue(nil, task.TaskPushSend, key, &pushPayload{
		MatchID:  match.ID,
		PushType: string(parteam.PushPaySuccess),
		UserIDs:  []int64{member.UserID},
		MatchFee: member.TotalFee,
	}, s.cfg.Business.TaskMaxRetry)
	if err != nil {
		log.Printf("[Match] 入队支付成功推送失败, memberID=%d, err=%v", member.ID, err)
	}
}

// Leave 退赛
//
// 待支付成员直接移除并关单；已支付成员在退款窗口内
// 标记为退赛并入队退款任务，退款完成后记录才会删除。
// insists 为 true 时放弃退款强制退赛，不受退款窗口限制。
func (s *MatchService) Leave(ctx context.Context, matchID, userID int64, insists bool) error {
	return s.txm.Transaction(ctx, func(tx *gorm.DB) error {
		match, err := s.matches.GetByIDForUpdate(tx, matchID)
		if err != nil {
			return err
		}

		member, err := s.members.GetActiveByMatchUser(tx, matchID, userID)
		if err != nil {
			return err
		}

		if member.State == model.MatchMemberWaitPay {
			if member.OrderID > 0 {
				if err := s.orders.CloseUnpaid(tx, member.OrderID, "用户退赛"); err != nil &&
					!errors.Is(err, repository.ErrStateChanged) {
					return err
				}
			}
			if err := s.members.Delete(tx, member.ID); err != nil {
				return err
			}
			return s.recount(tx, matchID, member.GroupID)
		}

		if insists {
			// 强制退赛：放弃退款，直接移除
			if err := s.members.Delete(tx, member.ID); err != nil {
				return err
			}
			log.Printf("[Match] 成员强制退赛, matchID=%d, userID=%d, memberID=%d", matchID, userID, member.ID)
			return s.recount(tx, matchID, member.GroupID)
		}

		if !match.CanLeave(time.Now()) {
			return apperr.State("当前不可退赛")
		}

		if err := s.members.UpdateState(tx, member.ID, member.State, model.MatchMemberLeave, nil); err != nil {
			return err
		}

		if member.OrderID > 0 && member.TotalFee > 0 {
			if err := s.orders.MarkRefunding(tx, member.OrderID); err != nil {
				return err
			}
			if err := s.enqueueRefund(tx, member, parteam.RefundRoleUser); err != nil {
				return err
			}
		} else {
			// 免费成员直接移除
			if err := s.members.Delete(tx, member.ID); err != nil {
				return err
			}
		}

		return s.recount(tx, matchID, member.GroupID)
	})
}

func (s *MatchService) recount(tx *gorm.DB, matchID, groupID int64) error {
	if _, err := s.matches.RecountMembers(tx, matchID); err != nil {
		return err
	}
	if groupID > 0 {
		if _, err := s.matches.RecountGroupMembers(tx, groupID); err != nil {
			return err
		}
	}
	return nil
}

// Cancel 取消赛事
//
// 所有已支付成员各入队一条退款任务，主办方退款通知由
// 退款任务在退款成功后再推送。返回入队的退款任务数。
func (s *MatchService) Cancel(ctx context.Context, matchID, operatorID int64, reason string) (int, error) {
	refunds := 0

	err := s.txm.Transaction(ctx, func(tx *gorm.DB) error {
		match, err := s.matches.GetByIDForUpdate(tx, matchID)
		if err != nil {
			return err
		}
		if !match.CanCancel() {
			return apperr.State("赛事当前状态不允许取消")
		}

		now := time.Now()
		err = s.matches.UpdateState(tx, matchID, match.State, model.MatchStateCancelled,
			map[string]interface{}{
				"cancelled_at":  now,
				"cancel_reason": reason,
			})
		if err != nil {
			if errors.Is(err, repository.ErrStateChanged) {
				return apperr.State("赛事状态已变更")
			}
			return err
		}

		members, err := s.members.ListByMatch(tx, matchID,
			model.MatchMemberWaitPay, model.MatchMemberWaitReview, model.MatchMemberNormal)
		if err != nil {
			return err
		}

		for _, m := range members {
			if m.State == model.MatchMemberWaitPay {
				if m.OrderID > 0 {
					if err := s.orders.CloseUnpaid(tx, m.OrderID, "赛事取消"); err != nil &&
						!errors.Is(err, repository.ErrStateChanged) {
						return err
					}
				}
				if err := s.members.Delete(tx, m.ID); err != nil {
					return err
				}
				continue
			}

			if m.OrderID > 0 && m.TotalFee > 0 {
				if err := s.members.UpdateState(tx, m.ID, m.State, model.MatchMemberLeave, nil); err != nil {
					return err
				}
				if err := s.orders.MarkRefunding(tx, m.OrderID); err != nil {
					return err
				}
				if err := s.enqueueRefund(tx, m, parteam.RefundRoleSponsor); err != nil {
					return err
				}
				refunds++
			} else {
				if err := s.members.Delete(tx, m.ID); err != nil {
					return err
				}
			}
		}

		_, err = s.matches.RecountMembers(tx, matchID)
		return err
	})
	if err != nil {
		return 0, err
	}

	log.Printf("[Match] 赛事已取消, matchID=%d, 退款任务数=%d", matchID, refunds)
	return refunds, nil
}

// matchRefundPayload 赛事退款任务参数
type matchRefundPayload struct {
	MemberID int64 `json:"member_id"`
	OrderID  int64 `json:"order_id"`
	Role     int   `json:"role"`
}

func (s *MatchService) enqueueRefund(tx *gorm.DB, m *model.MatchMember, role int) error {
	key := fmt.Sprintf("%s:%d", task.TaskMatchRefund, m.OrderID)
	return s.tasks.Enqueue(tx, task.TaskMatchRefund, key,
		&matchRefundPayload{MemberID: m.ID, OrderID: m.OrderID, Role: role},
		s.cfg.Business.TaskMaxRetry)
}

// HandleRefundTask 赛事退款任务
//
// 成功后删除成员记录；网关回告「订单未支付」时折算为
// 本地关单并同样删除成员；网络错误重试。
func (s *MatchService) HandleRefundTask(ctx context.Context, payload string) error {
	var p matchRefundPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return apperr.Permanent("解析退款任务参数失败", err)
	}

	member, err := s.members.GetByID(nil, p.MemberID)
	if err != nil {
		if errors.Is(err, repository.ErrMemberNotFound) {
			// 成员已删除，说明退款已处理完
			return nil
		}
		return apperr.Transient("读取成员失败", err)
	}

	order, err := s.orders.GetByID(nil, p.OrderID)
	if err != nil {
		return apperr.Permanent("退款订单不存在", err)
	}
	if order.RefundState == model.RefundStateRefunded {
		return s.finalizeRefund(ctx, member, order, false, p.Role)
	}
	if order.RefundState != model.RefundStateRefunding {
		return apperr.Permanent(fmt.Sprintf("订单不在退款中状态: refund_state=%d", order.RefundState), nil)
	}

	refNo := member.PtOrderNo
	if refNo == "" {
		refNo = order.OrderNo
	}

	err = s.gateway.OrderRefund(ctx, member.UserID, refNo, order.TotalFee, s.refundNotifyURL(), p.Role)
	switch {
	case err == nil:
		return s.finalizeRefund(ctx, member, order, true, p.Role)
	case errors.Is(err, parteam.ErrNotPaid):
		log.Printf("[Match] 退款订单网关未支付, orderID=%d, memberID=%d", order.ID, member.ID)
		return s.txm.Transaction(ctx, func(tx *gorm.DB) error {
			if err := s.orders.FoldNotPaid(tx, order.ID, "网关订单未支付"); err != nil {
				return err
			}
			if err := s.members.Delete(tx, member.ID); err != nil {
				return err
			}
			return s.recount(tx, member.MatchID, member.GroupID)
		})
	case errors.Is(err, parteam.ErrRefund):
		if e := s.orders.MarkRefundFailed(nil, order.ID, err.Error()); e != nil {
			log.Printf("[Match] 标记退款失败出错, orderID=%d, err=%v", order.ID, e)
		}
		return apperr.Permanent("网关拒绝退款", err)
	default:
		return apperr.Transient("调用退款接口失败", err)
	}
}

// finalizeRefund 退款成功后的收尾：关单、删成员、重算人数、
// 落退款事件。主办方发起的退款在此时才推送退款通知，
// 保证用户收到通知时退款确已到账。
func (s *MatchService) finalizeRefund(ctx context.Context, member *model.MatchMember, order *model.TeamOrder, markOrder bool, role int) error {
	return s.txm.Transaction(ctx, func(tx *gorm.DB) error {
		if markOrder {
			now := time.Now()
			if err := s.orders.MarkRefunded(tx, order.ID, order.TotalFee, now); err != nil &&
				!errors.Is(err, repository.ErrStateChanged) {
				return err
			}
		}
		if err := s.members.Delete(tx, member.ID); err != nil {
			return err
		}
		if err := s.recount(tx, member.MatchID, member.GroupID); err != nil {
			return err
		}
		if role == parteam.RefundRoleSponsor {
			key := fmt.Sprintf("%s:cancel:%d", task.TaskPushSend, member.ID)
			if err := s.tasks.Enqueue(tx, task.TaskPushSend, key, &pushPayload{
				MatchID:  member.MatchID,
				PushType: string(parteam.PushSponsorRefund),
				UserIDs:  []int64{member.UserID},
				OrderNo:  member.PtOrderNo,
			}, s.cfg.Business.TaskMaxRetry); err != nil {
				return err
			}
		}
		return s.publishRefundEvent(tx, order)
	})
}

func (s *MatchService) publishRefundEvent(tx *gorm.DB, order *model.TeamOrder) error {
	data, err := json.Marshal(&refundEvent{
		OrderID:    order.ID,
		OrderNo:    order.OrderNo,
		UserID:     order.UserID,
		RefundFee:  order.TotalFee,
		Result:     "REFUNDED",
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

func (s *MatchService) refundNotifyURL() string {
	if s.cfg.Parteam.NotifyBaseURL == "" {
		return ""
	}
	return s.cfg.Parteam.NotifyBaseURL + "/api/v1/callback/refund"
}

func (s *MatchService) joinNotifyURL() string {
	if s.cfg.Parteam.NotifyBaseURL == "" {
		return ""
	}
	return s.cfg.Parteam.NotifyBaseURL + "/api/v1/callback/match/pay"
}

// ApplySettlement 主办方提交结算申请
//
// 报名截止后才能申请，同一赛事同时最多存在一条在途申请，
// 查重与插入在同一事务内完成。
func (s *MatchService) ApplySettlement(ctx context.Context, matchID, userID int64) (*model.SettlementApplication, error) {
	var app *model.SettlementApplication
	err := s.txm.Transaction(ctx, func(tx *gorm.DB) error {
		match, err := s.matches.GetByIDForUpdate(tx, matchID)
		if err != nil {
			return err
		}
		if match.State != model.MatchStateOpening {
			return apperr.State("赛事当前状态不允许申请结算")
		}
		if !match.CanApplySettlement(time.Now()) {
			return apperr.State("报名截止前不能申请结算")
		}

		exists, err := s.settlements.ExistsActive(tx, matchID)
		if err != nil {
			return err
		}
		if exists {
			return apperr.Conflict("结算申请已存在")
		}

		balance, err := s.orders.SumPaidByActivity(tx, matchID, model.OrderTypeMatch,
			append(append([]string{}, model.OnlinePaymentMethods...), model.PaymentMethodCredit))
		if err != nil {
			return err
		}

		app = &model.SettlementApplication{
			MatchID:    matchID,
			TeamID:     match.TeamID,
			UserID:     userID,
			Balance:    balance,
			Processing: model.ApplicationRequesting,
		}
		return s.settlements.Create(tx, app)
	})
	if err != nil {
		return nil, err
	}
	return app, nil
}

// ApproveSettlement 管理员批准结算申请并入队结算任务
func (s *MatchService) ApproveSettlement(ctx context.Context, applicationID, adminID int64) error {
	return s.txm.Transaction(ctx, func(tx *gorm.DB) error {
		app, err := s.settlements.GetByID(tx, applicationID)
		if err != nil {
			return err
		}
		if err := s.settlements.Approve(tx, app.ID, adminID, time.Now()); err != nil {
			if errors.Is(err, repository.ErrStateChanged) {
				return apperr.State("申请状态已变更")
			}
			return err
		}

		key := fmt.Sprintf("%s:%d", task.TaskMatchSettlement, app.ID)
		return s.tasks.Enqueue(tx, task.TaskMatchSettlement, key,
			&settlementPayload{ApplicationID: app.ID}, s.cfg.Business.TaskMaxRetry)
	})
}

// DisapproveSettlement 管理员驳回结算申请
func (s *MatchService) DisapproveSettlement(ctx context.Context, applicationID, adminID int64) error {
	return s.txm.Transaction(ctx, func(tx *gorm.DB) error {
		if err := s.settlements.Disapprove(tx, applicationID, adminID); err != nil {
			if errors.Is(err, repository.ErrStateChanged) {
				return apperr.State("申请状态已变更")
			}
			return err
		}
		return nil
	})
}

// settlementPayload 赛事结算任务参数
type settlementPayload struct {
	ApplicationID int64 `json:"application_id"`
}

// HandleSettlementTask 赛事结算任务
//
// 申请 approved -> finished 的条件流转是幂等闸门，
// 重复执行不会二次入账。
func (s *MatchService) HandleSettlementTask(ctx context.Context, payload string) error {
	var p settlementPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return apperr.Permanent("解析结算任务参数失败", err)
	}

	return s.txm.Transaction(ctx, func(tx *gorm.DB) error {
		app, err := s.settlements.GetByID(tx, p.ApplicationID)
		if err != nil {
			return apperr.Permanent("结算申请不存在", err)
		}
		if app.Processing == model.ApplicationFinished {
			return nil
		}
		if app.Processing != model.ApplicationApproved {
			return apperr.Permanent("结算申请未批准", nil)
		}

		err = s.settlements.UpdateProcessing(tx, app.ID,
			model.ApplicationApproved, model.ApplicationFinished, nil)
		if err != nil {
			if errors.Is(err, repository.ErrStateChanged) {
				return nil
			}
			return err
		}

		match, err := s.matches.GetByIDForUpdate(tx, app.MatchID)
		if err != nil {
			return err
		}

		now := time.Now()

		if app.Balance > 0 {
			team, err := s.teams.GetByIDForUpdate(tx, app.TeamID)
			if err != nil {
				return err
			}
			if err := s.teams.AddCredit(tx, team.ID, app.Balance); err != nil {
				return err
			}
			if err := s.teams.AddReceipts(tx, team.ID, app.Balance); err != nil {
				return err
			}
			err = s.teams.CreateAccountLog(tx, &model.TeamAccountLog{
				TeamID:       team.ID,
				CreditChange: app.Balance,
				ChangeType:   model.AccountChangeSettlement,
				CreditBefore: team.Credit,
				CreditAfter:  team.Credit + app.Balance,
				Note:         fmt.Sprintf("赛事结算: %s", match.Title),
				ActivityID:   match.ID,
				OperatorID:   app.AdminID,
			})
			if err != nil {
				return err
			}
		}

		orders, err := s.orders.ListPaidByActivity(tx, match.ID, model.OrderTypeMatch)
		if err != nil {
			return err
		}
		for _, o := range orders {
			if err := s.orders.Finish(tx, o.ID, now); err != nil &&
				!errors.Is(err, repository.ErrStateChanged) {
				return err
			}
		}

		if match.State == model.MatchStateOpening {
			err = s.matches.UpdateState(tx, match.ID, model.MatchStateOpening, model.MatchStateFinished,
				map[string]interface{}{"finished_at": now})
			if err != nil && !errors.Is(err, repository.ErrStateChanged) {
				return err
			}
		}

		return s.publishSettlementEvent(tx, match, app)
	})
}

func (s *MatchService) publishSettlementEvent(tx *gorm.DB, match *model.Match, app *model.SettlementApplication) error {
	data, err := json.Marshal(map[string]interface{}{
		"match_id":       match.ID,
		"team_id":        match.TeamID,
		"application_id": app.ID,
		"balance":        app.Balance,
		"finished_at":    time.Now().Unix(),
	})
	if err != nil {
		return err
	}
	return s.outbox.Create(tx, &model.OutboxMessage{
		MessageKey: fmt.Sprintf("match:%d", match.ID),
		Topic:      s.cfg.Kafka.Topic.SettlementEvent,
		Payload:    string(data),
		Status:     model.OutboxStatusPending,
	})
}

// RecordAgainstRequest 对战结果录入请求
type RecordAgainstRequest struct {
	MatchID       int64 `json:"match_id" binding:"required"`
	Round         int   `json:"round"`
	LeftMemberID  int64 `json:"left_member_id" binding:"required"`
	RightMemberID int64 `json:"right_member_id" binding:"required"`
	LeftScore     int   `json:"left_score"`
	RightScore    int   `json:"right_score"`
}

// RecordAgainst 录入对战结果，胜者按双方比分判定，平局记 0
func (s *MatchService) RecordAgainst(ctx context.Context, req *RecordAgainstRequest) (*model.MatchAgainst, error) {
	if req.LeftMemberID == req.RightMemberID {
		return nil, apperr.Validation("对战双方不能相同")
	}
	if req.Round <= 0 {
		req.Round = 1
	}

	var (
		against *model.MatchAgainst
		userIDs []int64
	)
	err := s.txm.Transaction(ctx, func(tx *gorm.DB) error {
		left, err := s.members.GetByID(tx, req.LeftMemberID)
		if err != nil || left.MatchID != req.MatchID {
			return apperr.Validation("对战成员不在该赛事中")
		}
		right, err := s.members.GetByID(tx, req.RightMemberID)
		if err != nil || right.MatchID != req.MatchID {
			return apperr.Validation("对战成员不在该赛事中")
		}

		against = &model.MatchAgainst{
			MatchID:       req.MatchID,
			Round:         req.Round,
			LeftMemberID:  req.LeftMemberID,
			RightMemberID: req.RightMemberID,
			LeftScore:     req.LeftScore,
			RightScore:    req.RightScore,
		}
		against.WinMemberID = against.DecideWinner()

		userIDs = []int64{left.UserID, right.UserID}
		return s.matches.CreateAgainst(tx, against)
	})
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%s:schedule:%d", task.TaskPushSend, against.ID)
	if err := s.tasks.Enqueue(nil, task.TaskPushSend, key, &pushPayload{
		MatchID:  req.MatchID,
		PushType: string(parteam.PushNewSchedule),
		UserIDs:  userIDs,
	}, s.cfg.Business.TaskMaxRetry); err != nil {
		log.Printf("[Match] 入队赛程推送失败, againstID=%d, err=%v", against.ID, err)
	}

	return against, nil
}

// CreateGroupRequest 新建分组请求
type CreateGroupRequest struct {
	MatchID    int64  `json:"match_id" binding:"required"`
	Name       string `json:"name" binding:"required"`
	Price      int64  `json:"price"`
	MaxMembers int    `json:"max_members"`
}

// CreateGroup 赛事分组，仅分组赛且未开赛可建
func (s *MatchService) CreateGroup(ctx context.Context, req *CreateGroupRequest) (*model.MatchGroup, error) {
	if req.Price < 0 {
		return nil, apperr.Validation("分组报名费不能为负")
	}

	var group *model.MatchGroup
	err := s.txm.Transaction(ctx, func(tx *gorm.DB) error {
		match, err := s.matches.GetByID(tx, req.MatchID)
		if err != nil {
			return err
		}
		if match.GroupType != model.MatchGroupTypeGrouped {
			return apperr.State("非分组赛不能建分组")
		}
		if match.State != model.MatchStateWaitReview && match.State != model.MatchStateOpening {
			return apperr.State("赛事当前状态不允许建分组")
		}

		group = &model.MatchGroup{
			MatchID:    req.MatchID,
			Name:       req.Name,
			Price:      req.Price,
			MaxMembers: req.MaxMembers,
		}
		return s.matches.CreateGroup(tx, group)
	})
	if err != nil {
		return nil, err
	}
	return group, nil
}

// MatchSchedule 赛事分组与对战表
type MatchSchedule struct {
	Groups  []*model.MatchGroup   `json:"groups"`
	Against []*model.MatchAgainst `json:"against"`
}

// Schedule 查询赛事分组与已录入的对战结果
func (s *MatchService) Schedule(ctx context.Context, matchID int64) (*MatchSchedule, error) {
	if _, err := s.matches.GetByID(nil, matchID); err != nil {
		return nil, err
	}
	groups, err := s.matches.ListGroups(nil, matchID)
	if err != nil {
		return nil, err
	}
	against, err := s.matches.ListAgainst(nil, matchID)
	if err != nil {
		return nil, err
	}
	return &MatchSchedule{Groups: groups, Against: against}, nil
}

// pushPayload 推送任务参数
type pushPayload struct {
	MatchID  int64   `json:"match_id"`
	PushType string  `json:"push_type"`
	UserIDs  []int64 `json:"user_ids"`
	MatchFee int64   `json:"match_fee,omitempty"`
	OrderNo  string  `json:"order_no,omitempty"`
}

// HandlePushTask 推送任务，先批量换取派队用户信息再推送
func (s *MatchService) HandlePushTask(ctx context.Context, payload string) error {
	var p pushPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return apperr.Permanent("解析推送任务参数失败", err)
	}
	if len(p.UserIDs) == 0 {
		return nil
	}

	match, err := s.matches.GetByID(nil, p.MatchID)
	if err != nil {
		return apperr.Permanent("赛事不存在", err)
	}
	team, err := s.teams.GetByID(nil, match.TeamID)
	if err != nil {
		return apperr.Permanent("俱乐部不存在", err)
	}

	users, err := s.gateway.UserInfoList(ctx, p.UserIDs)
	if err != nil {
		return apperr.Transient("获取用户信息失败", err)
	}

	userInfos := lo.FilterMap(p.UserIDs, func(id int64, _ int) (parteam.UserInfo, bool) {
		u, ok := users[id]
		if !ok {
			return parteam.UserInfo{}, false
		}
		return parteam.UserInfo{UserID: u.UserID, Mobile: u.Mobile}, true
	})
	if len(userInfos) == 0 {
		return nil
	}

	err = s.gateway.Push(ctx, &parteam.PushMessage{
		UserInfos:   userInfos,
		MatchID:     match.ID,
		MatchName:   match.Title,
		SponsorName: team.Name,
		PushType:    parteam.PushType(p.PushType),
		MatchFee:    p.MatchFee,
		OrderNo:     p.OrderNo,
	})
	if err != nil {
		return apperr.Transient("推送失败", err)
	}
	return nil
}

// ScanMatchStart 扫描临近开赛且未推送提醒的赛事
//
// 推送标记的条件更新先行，保证同一赛事至多推送一次。
func (s *MatchService) ScanMatchStart(ctx context.Context) error {
	ahead := time.Duration(s.cfg.Business.StartNotifyAheadH) * time.Hour
	if ahead <= 0 {
		ahead = 2 * time.Hour
	}

	now := time.Now()
	matches, err := s.matches.FindStartingUnpushed(nil, now.Add(-10*time.Minute), now.Add(ahead), 200)
	if err != nil {
		return err
	}

	for _, m := range matches {
		if err := s.matches.MarkPushed(nil, m.ID, now); err != nil {
			if !errors.Is(err, repository.ErrStateChanged) {
				log.Printf("[Match] 标记开赛推送失败, matchID=%d, err=%v", m.ID, err)
			}
			continue
		}

		members, err := s.members.ListByMatch(nil, m.ID, model.MatchMemberNormal)
		if err != nil {
			log.Printf("[Match] 读取参赛成员失败, matchID=%d, err=%v", m.ID, err)
			continue
		}
		if len(members) == 0 {
			continue
		}

		userIDs := lo.Map(members, func(mm *model.MatchMember, _ int) int64 { return mm.UserID })
		key := fmt.Sprintf("%s:start:%d", task.TaskPushSend, m.ID)
		if err := s.tasks.Enqueue(nil, task.TaskPushSend, key, &pushPayload{
			MatchID:  m.ID,
			PushType: string(parteam.PushMatchStart),
			UserIDs:  userIDs,
		}, s.cfg.Business.TaskMaxRetry); err != nil {
			log.Printf("[Match] 入队开赛推送失败, matchID=%d, err=%v", m.ID, err)
		}
	}
	return nil
}
