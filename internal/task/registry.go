package task

import (
	"context"
	"fmt"
	"time"
)

// 任务名
const (
	TaskActivityFinish  = "activity.finish"
	TaskActivityRefund  = "activity.refund"
	TaskMatchRefund     = "match.refund"
	TaskMatchSettlement = "match.settlement"
	TaskPushSend        = "push.send"
)

// Handler 任务处理函数，payload 为入队时序列化的 JSON
type Handler func(ctx context.Context, payload string) error

// Policy 任务重试策略
type Policy struct {
	MaxRetry    int           // 临时失败的最大重试次数
	BackoffBase time.Duration // 退避基数，第 n 次重试等待 BackoffBase * 2^n
}

// DefaultPolicy 退款类任务的缺省策略
var DefaultPolicy = Policy{MaxRetry: 5, BackoffBase: 30 * time.Second}

type registration struct {
	policy  Policy
	handler Handler
}

// Registry 任务注册表
//
// 所有任务名在启动时显式注册，执行器遇到未注册的任务名
// 直接标记失败而不是静默丢弃。
type Registry struct {
	handlers map[string]registration
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]registration)}
}

func (r *Registry) Register(name string, policy Policy, handler Handler) {
	if _, ok := r.handlers[name]; ok {
		panic(fmt.Sprintf("任务重复注册: %s", name))
	}
	r.handlers[name] = registration{policy: policy, handler: handler}
}

func (r *Registry) lookup(name string) (registration, bool) {
	reg, ok := r.handlers[name]
	return reg, ok
}
