package model

import (
	"time"
)

// 任务状态
const (
	TaskStatusPending   = "PENDING"
	TaskStatusRunning   = "RUNNING"
	TaskStatusSucceeded = "SUCCEEDED"
	TaskStatusFailed    = "FAILED"
)

// TaskMessage 持久化任务队列
//
// 金融副作用（退款、结算）一律通过任务异步执行：
// 业务事务内落一行任务记录，worker 认领后执行，
// 临时失败按指数退避重试，超过上限标记 FAILED 等待人工介入。
type TaskMessage struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TaskKey    string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"task_key"`
	Name       string    `gorm:"type:varchar(64);index;not null" json:"name"`
	Payload    string    `gorm:"type:text;not null" json:"payload"`
	Status     string    `gorm:"type:varchar(20);index;not null;default:PENDING" json:"status"`
	RetryCount int       `gorm:"not null;default:0" json:"retry_count"`
	MaxRetry   int       `gorm:"not null;default:0" json:"max_retry"`
	LastError  string    `gorm:"type:varchar(512)" json:"last_error"`
	NextRunAt  time.Time `gorm:"index;not null" json:"next_run_at"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (TaskMessage) TableName() string {
	return "task_message"
}

// 外发事件状态
const (
	OutboxStatusPending = "PENDING"
	OutboxStatusSent    = "SENT"
	OutboxStatusFailed  = "FAILED"
)

// OutboxMessage 领域事件外发表
// 结算/退款完成事件与金融状态变更同事务落库，由发送任务投递到 Kafka
type OutboxMessage struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	MessageKey string    `gorm:"type:varchar(64);not null" json:"message_key"`
	Topic      string    `gorm:"type:varchar(64);not null" json:"topic"`
	Payload    string    `gorm:"type:text;not null" json:"payload"`
	Status     string    `gorm:"type:varchar(20);index;not null;default:PENDING" json:"status"`
	RetryCount int       `gorm:"not null;default:0" json:"retry_count"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (OutboxMessage) TableName() string {
	return "outbox_message"
}
