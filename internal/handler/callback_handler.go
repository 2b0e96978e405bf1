package handler

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"log"
	"time"

	"github.com/gin-gonic/gin"

	"sportclub/internal/config"
	"sportclub/internal/service"
	"sportclub/pkg/response"
)

// CallbackHandler 支付网关回调
//
// 回调处理必须幂等，网关会对同一笔支付重复通知。
// 验签失败返回签名错误，不做任何状态变更。
type CallbackHandler struct {
	cfg      *config.Config
	activity *service.ActivityService
	match    *service.MatchService
}

func NewCallbackHandler(cfg *config.Config, activity *service.ActivityService, match *service.MatchService) *CallbackHandler {
	return &CallbackHandler{cfg: cfg, activity: activity, match: match}
}

// activityPayNotify 活动支付回调报文
type activityPayNotify struct {
	OrderNo        string `json:"order_no" binding:"required"`
	PaymentMethod  string `json:"payment_method" binding:"required"`
	GatewayTradeNo string `json:"gateway_trade_no"`
	PaidAt         int64  `json:"paid_at"`
	Sign           string `json:"sign" binding:"required"`
}

func (h *CallbackHandler) sign(orderNo string) string {
	sum := md5.Sum([]byte(orderNo + h.cfg.Business.CallbackSecret))
	return hex.EncodeToString(sum[:])
}

// ActivityPayNotify 活动订单支付回调
func (h *CallbackHandler) ActivityPayNotify(c *gin.Context) {
	var req activityPayNotify
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	if req.Sign != h.sign(req.OrderNo) {
		log.Printf("[Callback] 活动支付回调验签失败, orderNo=%s", req.OrderNo)
		response.BusinessError(c, response.CodeSignatureError, "签名错误")
		return
	}

	paidAt := time.Now()
	if req.PaidAt > 0 {
		paidAt = time.Unix(req.PaidAt, 0)
	}

	err := h.activity.PaymentCallback(c.Request.Context(), req.OrderNo, req.PaymentMethod, req.GatewayTradeNo, paidAt)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, nil)
}

// matchPayNotify 派队支付回调报文，信封与请求方向一致
type matchPayNotify struct {
	Version   int `json:"version"`
	Attribute struct {
		UserID        int64  `json:"userId"`
		OrderNo       string `json:"orderNo"`
		PaymentMethod string `json:"paymentMethod"`
		OrderState    int    `json:"orderState"` // 2 已支付 4 已关闭
	} `json:"attribute"`
}

const (
	ptOrderStatePaid   = 2
	ptOrderStateClosed = 4
)

// MatchPayNotify 派队赛事订单支付回调
func (h *CallbackHandler) MatchPayNotify(c *gin.Context) {
	var req matchPayNotify
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}
	if req.Attribute.OrderNo == "" {
		response.ParamError(c, "orderNo 不能为空")
		return
	}

	switch req.Attribute.OrderState {
	case ptOrderStatePaid:
		err := h.match.PaymentCallback(c.Request.Context(),
			req.Attribute.OrderNo, req.Attribute.PaymentMethod, time.Now())
		if err != nil {
			writeError(c, err)
			return
		}
	case ptOrderStateClosed:
		log.Printf("[Callback] 派队订单已关闭, ptOrderNo=%s", req.Attribute.OrderNo)
	default:
		response.ParamError(c, fmt.Sprintf("未知的订单状态: %d", req.Attribute.OrderState))
		return
	}

	response.Success(c, nil)
}
