package parteam

// 推送类型
type PushType string

const (
	PushPaySuccess    PushType = "PAY_SUCCESS"    // 报名支付成功
	PushMatchStart    PushType = "MATCH_START"    // 赛事开始前提醒
	PushNewSchedule   PushType = "NEW_SCHEDULE"   // 主办方发布新赛程
	PushSponsorRefund PushType = "SPONSOR_REFUND" // 主办方发起退款
)

// UserInfo 推送目标用户
type UserInfo struct {
	UserID int64  `json:"userId"`
	Mobile string `json:"mobile"`
}

// PushMessage 赛事推送消息体
type PushMessage struct {
	UserInfos   []UserInfo `json:"userInfos"`
	MatchID     int64      `json:"matchId"`
	MatchName   string     `json:"matchName"`
	SponsorName string     `json:"sponsorName"`
	PushType    PushType   `json:"pushType"`
	MatchFee    int64      `json:"matchFee,omitempty"` // 仅支付成功推送携带（分）
	OrderNo     string     `json:"orderNo,omitempty"`  // 仅退款推送携带
}

// User 派队用户信息
type User struct {
	UserID   int64  `json:"userId"`
	NickName string `json:"nickName"`
	Mobile   string `json:"mobile"`
	Gender   int    `json:"gender"`
}

// 退款发起角色
const (
	RefundRoleUser    = 1 // 用户
	RefundRoleSponsor = 2 // 赛事方
)
