package parteam

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// 派队接口
//
// 固定信封 {code, message, attribute}，code==200 为成功。
// 退款接口的 1005（订单未支付）是永久失败，调用方折算为本地关单，
// 网络错误和 5xx 是临时失败，由任务执行器重试。

// 业务错误码
const (
	codeOK            = 200
	CodeOrderGenFail  = 1001 // 订单生成失败
	CodeRefundFail    = 1002 // 退款失败
	CodeOrderNotFound = 1003 // 没有该订单
	CodeUserMismatch  = 1004 // 申请退款人与支付人不一致
	CodeNotPaid       = 1005 // 该订单不是已支付状态
	CodeFeeExceeded   = 1006 // 退款数额不能大于付款数额
	CodeNotMatchOrder = 1007 // 必须是赛事订单可以退款
)

var (
	// ErrRequestFailed 接口请求异常（网络/HTTP 层），可重试
	ErrRequestFailed = errors.New("派队接口请求异常")
	// ErrRefund 退款业务拒绝，不可重试
	ErrRefund = errors.New("派队退款失败")
	// ErrNotPaid 订单未支付，调用方应关闭本地订单后继续
	ErrNotPaid = errors.New("订单未支付")
)

type envelope struct {
	Code      int             `json:"code"`
	Message   string          `json:"message"`
	Attribute json.RawMessage `json:"attribute"`
}

type Client struct {
	host       string
	httpClient *http.Client
}

func NewClient(host string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		host:       strings.TrimRight(host, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) doRequest(ctx context.Context, path string, data map[string]interface{}) (*envelope, error) {
	body := map[string]interface{}{"version": 1}
	for k, v := range data {
		body[k] = v
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("序列化请求失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// 超时与网络错误均按临时失败处理
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: HTTPStatus=%d", ErrRequestFailed, resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}

	env := &envelope{}
	if err := json.Unmarshal(raw, env); err != nil {
		return nil, fmt.Errorf("%w: 解析返回失败: %v", ErrRequestFailed, err)
	}

	return env, nil
}

// UserInfoList 批量获取派队用户信息
func (c *Client) UserInfoList(ctx context.Context, userIDs []int64) (map[int64]User, error) {
	if len(userIDs) == 0 {
		return nil, errors.New("userIDs 不能为空")
	}

	ids := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		ids = append(ids, strconv.FormatInt(id, 10))
	}

	env, err := c.doRequest(ctx, "/match/openapi/getUserInfoList.do",
		map[string]interface{}{"userIds": strings.Join(ids, ",")})
	if err != nil {
		return nil, err
	}
	if env.Code != codeOK {
		return nil, fmt.Errorf("%w: code=%d, message=%s", ErrRequestFailed, env.Code, env.Message)
	}

	var attr struct {
		UserInfoList []User `json:"userInfoList"`
	}
	if err := json.Unmarshal(env.Attribute, &attr); err != nil {
		return nil, fmt.Errorf("%w: 解析用户列表失败: %v", ErrRequestFailed, err)
	}

	users := make(map[int64]User, len(attr.UserInfoList))
	for _, u := range attr.UserInfoList {
		users[u.UserID] = u
	}
	return users, nil
}

// OrderRefund 调用退款接口
//
// refundFee 单位为分。code 1005 返回 ErrNotPaid，
// 其它业务码返回 ErrRefund，传输层错误返回 ErrRequestFailed。
func (c *Client) OrderRefund(ctx context.Context, userID int64, orderNo string, refundFee int64, notifyURL string, role int) error {
	data := map[string]interface{}{
		"applyRefundOrderType": role,
		"orderNo":              orderNo,
		"refundTotalFee":       refundFee,
		"userId":               userID,
	}
	if notifyURL != "" {
		data["notifyUrl"] = notifyURL
	}

	env, err := c.doRequest(ctx, "/match/openapi/applyRefundOrder.do", data)
	if err != nil {
		return err
	}

	switch env.Code {
	case codeOK:
		return nil
	case CodeNotPaid:
		return fmt.Errorf("%w: code=%d, message=%s", ErrNotPaid, env.Code, env.Message)
	default:
		log.Printf("[Parteam] 调用退款接口失败: code=%d, message=%s", env.Code, env.Message)
		return fmt.Errorf("%w: code=%d, message=%s", ErrRefund, env.Code, env.Message)
	}
}

// Push 调用推送接口，发送赛事推送消息
func (c *Client) Push(ctx context.Context, message *PushMessage) error {
	data := map[string]interface{}{
		"userInfos":   message.UserInfos,
		"matchId":     message.MatchID,
		"matchName":   message.MatchName,
		"sponsorName": message.SponsorName,
		"pushType":    message.PushType,
	}
	if message.MatchFee > 0 {
		data["matchFee"] = message.MatchFee
	}
	if message.OrderNo != "" {
		data["orderNo"] = message.OrderNo
	}

	env, err := c.doRequest(ctx, "/match/openapi/matchPush.do", data)
	if err != nil {
		return err
	}
	if env.Code != codeOK {
		return fmt.Errorf("%w: code=%d, message=%s", ErrRequestFailed, env.Code, env.Message)
	}
	return nil
}

// CreateOrderRequest 预下单请求
type CreateOrderRequest struct {
	OrderValue int64  // 赛事ID
	EachFee    int64  // 单价（分）
	Num        int    // 数量
	TotalFee   int64  // 总价（分）
	Subject    string // 标题
	UserID     int64
	NotifyURL  string
	ExpireAt   time.Time
	TradeType  string // APP / WEB
}

// CreateOrder 在派队预注册支付订单，返回 orderNo 作为 pt_order_no
func (c *Client) CreateOrder(ctx context.Context, req *CreateOrderRequest) (string, error) {
	env, err := c.doRequest(ctx, "/match/openapi/createOrderInfo.do", map[string]interface{}{
		"orderValue":  req.OrderValue,
		"eachFee":     req.EachFee,
		"num":         req.Num,
		"totalFee":    req.TotalFee,
		"subject":     req.Subject,
		"userId":      req.UserID,
		"notifyUrl":   req.NotifyURL,
		"expDatetime": req.ExpireAt.Format("20060102150405"),
		"tradeType":   req.TradeType,
	})
	if err != nil {
		return "", err
	}
	if env.Code != codeOK {
		return "", fmt.Errorf("%w: code=%d, message=%s", ErrRequestFailed, env.Code, env.Message)
	}

	var attr struct {
		OrderNo string `json:"orderNo"`
	}
	if err := json.Unmarshal(env.Attribute, &attr); err != nil || attr.OrderNo == "" {
		return "", fmt.Errorf("%w: 返回未包含 orderNo", ErrRequestFailed)
	}
	return attr.OrderNo, nil
}
