package apperr

import (
	"errors"
	"fmt"
)

// Kind 业务错误分类
//
// 同步接口直接返回 Validation/State/Conflict；
// 后台任务里只有 GatewayTransient 会触发重试，
// GatewayPermanent 转换为本地状态变更后不再重试。
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindState
	KindConflict
	KindGatewayTransient
	KindGatewayPermanent
	KindConsistency
)

var kindNames = map[Kind]string{
	KindUnknown:          "UNKNOWN",
	KindValidation:       "VALIDATION",
	KindState:            "STATE",
	KindConflict:         "CONFLICT",
	KindGatewayTransient: "GATEWAY_TRANSIENT",
	KindGatewayPermanent: "GATEWAY_PERMANENT",
	KindConsistency:      "CONSISTENCY",
}

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", kindNames[e.Kind], e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", kindNames[e.Kind], e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Validation(message string) *Error {
	return New(KindValidation, message)
}

func State(message string) *Error {
	return New(KindState, message)
}

func Conflict(message string) *Error {
	return New(KindConflict, message)
}

func Transient(message string, err error) *Error {
	return Wrap(KindGatewayTransient, message, err)
}

func Permanent(message string, err error) *Error {
	return Wrap(KindGatewayPermanent, message, err)
}

func Consistency(message string) *Error {
	return New(KindConsistency, message)
}

// KindOf 取出错误分类，非业务错误归为 UNKNOWN
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsRetryable 任务执行器依据此判断是否重试
func IsRetryable(err error) bool {
	return KindOf(err) == KindGatewayTransient
}
