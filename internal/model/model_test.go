package model

import (
	"testing"
	"time"
)

func TestActivityCanApply(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	tests := []struct {
		name       string
		activity   Activity
		wantOK     bool
		wantReason string
	}{
		{
			name:     "进行中未满可报名",
			activity: Activity{State: ActivityStateOpening, StartTime: future, MaxMembers: 10, MembersCount: 5},
			wantOK:   true,
		},
		{
			name:       "已取消",
			activity:   Activity{State: ActivityStateCancelled, StartTime: future},
			wantOK:     false,
			wantReason: ReasonActivityClosed,
		},
		{
			name:       "已结束",
			activity:   Activity{State: ActivityStateFinished, StartTime: future},
			wantOK:     false,
			wantReason: ReasonActivityClosed,
		},
		{
			name:       "报名截止时间已过",
			activity:   Activity{State: ActivityStateOpening, StartTime: future, JoinEnd: &past},
			wantOK:     false,
			wantReason: ReasonJoinDeadline,
		},
		{
			name:       "无截止时间时以开始时间为准",
			activity:   Activity{State: ActivityStateOpening, StartTime: past},
			wantOK:     false,
			wantReason: ReasonJoinDeadline,
		},
		{
			name:       "人数已满",
			activity:   Activity{State: ActivityStateOpening, StartTime: future, MaxMembers: 2, MembersCount: 2},
			wantOK:     false,
			wantReason: ReasonActivityFull,
		},
		{
			name:     "不限人数",
			activity: Activity{State: ActivityStateOpening, StartTime: future, MaxMembers: 0, MembersCount: 100},
			wantOK:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := tt.activity.CanApply(now)
			if ok != tt.wantOK {
				t.Fatalf("CanApply() ok = %v, want %v", ok, tt.wantOK)
			}
			if reason != tt.wantReason {
				t.Fatalf("CanApply() reason = %q, want %q", reason, tt.wantReason)
			}
		})
	}
}

func TestActivityRepeatPeriod(t *testing.T) {
	tests := []struct {
		repeatType string
		days       int
		months     int
		ok         bool
	}{
		{RepeatTypeDay, 1, 0, true},
		{RepeatTypeWeek, 7, 0, true},
		{RepeatTypeMonth, 0, 1, true},
		{RepeatTypeNone, 0, 0, false},
		{"yearly", 0, 0, false},
	}

	for _, tt := range tests {
		a := Activity{RepeatType: tt.repeatType}
		_, months, days, ok := a.RepeatPeriod()
		if ok != tt.ok || days != tt.days || months != tt.months {
			t.Fatalf("RepeatPeriod(%q) = (%d, %d, %v), want (%d, %d, %v)",
				tt.repeatType, months, days, ok, tt.months, tt.days, tt.ok)
		}
	}
}

func TestMatchCanJoin(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	tests := []struct {
		name       string
		match      Match
		wantOK     bool
		wantReason string
	}{
		{
			name:   "进行中可报名",
			match:  Match{State: MatchStateOpening, StartTime: future, JoinEnd: &future},
			wantOK: true,
		},
		{
			name:       "已结束",
			match:      Match{State: MatchStateFinished},
			wantOK:     false,
			wantReason: ReasonMatchFinished,
		},
		{
			name:       "已取消",
			match:      Match{State: MatchStateCancelled},
			wantOK:     false,
			wantReason: ReasonMatchCancelled,
		},
		{
			name:       "未过审",
			match:      Match{State: MatchStateWaitReview},
			wantOK:     false,
			wantReason: ReasonMatchNotOpen,
		},
		{
			name:       "报名未开始",
			match:      Match{State: MatchStateOpening, JoinStart: &future},
			wantOK:     false,
			wantReason: ReasonJoinNotStarted,
		},
		{
			name:       "报名已截止",
			match:      Match{State: MatchStateOpening, JoinEnd: &past},
			wantOK:     false,
			wantReason: ReasonJoinEnded,
		},
		{
			name:       "无截止时间且已开赛",
			match:      Match{State: MatchStateOpening, StartTime: past},
			wantOK:     false,
			wantReason: ReasonJoinEnded,
		},
		{
			name:       "已报满",
			match:      Match{State: MatchStateOpening, StartTime: future, JoinEnd: &future, MaxMembers: 8, MembersCount: 8},
			wantOK:     false,
			wantReason: ReasonMatchFull,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := tt.match.CanJoin(now)
			if ok != tt.wantOK || reason != tt.wantReason {
				t.Fatalf("CanJoin() = (%v, %q), want (%v, %q)", ok, reason, tt.wantOK, tt.wantReason)
			}
		})
	}
}

func TestMatchCanLeave(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	tests := []struct {
		name  string
		match Match
		want  bool
	}{
		{"开始前可退", Match{State: MatchStateOpening, RefundType: RefundBeforeStart, StartTime: future}, true},
		{"开始后不可退", Match{State: MatchStateOpening, RefundType: RefundBeforeStart, StartTime: past}, false},
		{"截止前可退", Match{State: MatchStateOpening, RefundType: RefundBeforeJoinEnd, JoinEnd: &future}, true},
		{"截止后不可退", Match{State: MatchStateOpening, RefundType: RefundBeforeJoinEnd, JoinEnd: &past}, false},
		{"不可退款类型", Match{State: MatchStateOpening, RefundType: RefundNever, StartTime: future}, false},
		{"非进行中不可退", Match{State: MatchStateCancelled, RefundType: RefundBeforeStart, StartTime: future}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.match.CanLeave(now); got != tt.want {
				t.Fatalf("CanLeave() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOrderStateTransitions(t *testing.T) {
	tests := []struct {
		from, to OrderState
		want     bool
	}{
		{OrderStateWaitBuyerPay, OrderStateTradeBuyerPaid, true},
		{OrderStateWaitBuyerPay, OrderStateWaitPayReturn, true},
		{OrderStateWaitBuyerPay, OrderStateTradeClosedByUser, true},
		{OrderStateWaitPayReturn, OrderStateTradeBuyerPaid, true},
		{OrderStateTradeBuyerPaid, OrderStateTradeFinished, true},
		{OrderStateTradeBuyerPaid, OrderStateTradeClosed, true},
		// 非法流转
		{OrderStateWaitBuyerPay, OrderStateTradeFinished, false},
		{OrderStateWaitBuyerPay, OrderStateTradeClosed, false},
		{OrderStateTradeBuyerPaid, OrderStateTradeClosedByUser, false},
		{OrderStateTradeFinished, OrderStateTradeBuyerPaid, false},
		{OrderStateTradeClosed, OrderStateWaitBuyerPay, false},
	}

	for _, tt := range tests {
		if got := CanOrderTransition(tt.from, tt.to); got != tt.want {
			t.Fatalf("CanOrderTransition(%v, %v) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestOrderStateIsTerminal(t *testing.T) {
	terminal := []OrderState{OrderStateTradeFinished, OrderStateTradeClosed, OrderStateTradeClosedByUser}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Fatalf("%v 应为终态", s)
		}
	}
	active := []OrderState{OrderStateWaitBuyerPay, OrderStateWaitPayReturn, OrderStateTradeBuyerPaid}
	for _, s := range active {
		if s.IsTerminal() {
			t.Fatalf("%v 不应为终态", s)
		}
	}
}

func TestActivityMemberNeedRefund(t *testing.T) {
	tests := []struct {
		name   string
		member ActivityMember
		want   bool
	}{
		{"已支付有订单", ActivityMember{PaymentState: OrderStateTradeBuyerPaid, OrderID: 1}, true},
		{"已支付无订单", ActivityMember{PaymentState: OrderStateTradeBuyerPaid, OrderID: 0}, false},
		{"未支付", ActivityMember{PaymentState: OrderStateWaitBuyerPay, OrderID: 1}, false},
		{"已退款", ActivityMember{PaymentState: OrderStateTradeClosed, OrderID: 1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.member.NeedRefund(); got != tt.want {
				t.Fatalf("NeedRefund() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMatchAgainstDecideWinner(t *testing.T) {
	tests := []struct {
		name    string
		against MatchAgainst
		want    int64
	}{
		{"左胜", MatchAgainst{LeftMemberID: 1, RightMemberID: 2, LeftScore: 3, RightScore: 1}, 1},
		{"右胜", MatchAgainst{LeftMemberID: 1, RightMemberID: 2, LeftScore: 1, RightScore: 3}, 2},
		{"平局", MatchAgainst{LeftMemberID: 1, RightMemberID: 2, LeftScore: 2, RightScore: 2}, 0},
		{"零比零", MatchAgainst{LeftMemberID: 1, RightMemberID: 2}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.against.DecideWinner(); got != tt.want {
				t.Fatalf("DecideWinner() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMatchMemberRefundable(t *testing.T) {
	tests := []struct {
		state MatchMemberState
		want  bool
	}{
		{MatchMemberWaitPay, true},
		{MatchMemberWaitReview, true},
		{MatchMemberNormal, true},
		{MatchMemberBanned, false},
		{MatchMemberLeave, false},
	}

	for _, tt := range tests {
		m := MatchMember{State: tt.state}
		if got := m.Refundable(); got != tt.want {
			t.Fatalf("Refundable(%v) = %v, want %v", tt.state, got, tt.want)
		}
	}
}
