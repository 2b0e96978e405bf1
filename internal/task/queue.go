package task

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"sportclub/internal/model"
)

// Enqueuer 服务层入队接口，tx 传入则任务与业务变更同事务落库
type Enqueuer interface {
	Enqueue(tx *gorm.DB, name, taskKey string, payload interface{}, maxRetry int) error
	EnqueueAt(tx *gorm.DB, name, taskKey string, payload interface{}, maxRetry int, runAt time.Time) error
}

// Queue 基于 task_message 表的持久化任务队列
//
// task_key 唯一约束保证同一业务动作至多入队一次，
// 重复入队按冲突忽略处理（幂等）。
type Queue struct {
	db *gorm.DB
}

func NewQueue(db *gorm.DB) *Queue {
	return &Queue{db: db}
}

func (q *Queue) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return q.db
}

func (q *Queue) Enqueue(tx *gorm.DB, name, taskKey string, payload interface{}, maxRetry int) error {
	return q.EnqueueAt(tx, name, taskKey, payload, maxRetry, time.Now())
}

func (q *Queue) EnqueueAt(tx *gorm.DB, name, taskKey string, payload interface{}, maxRetry int, runAt time.Time) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("序列化任务参数失败: %w", err)
	}

	msg := &model.TaskMessage{
		TaskKey:   taskKey,
		Name:      name,
		Payload:   string(data),
		Status:    model.TaskStatusPending,
		MaxRetry:  maxRetry,
		NextRunAt: runAt,
	}

	// task_key 冲突说明任务已存在，按幂等处理
	return q.conn(tx).Clauses(clause.OnConflict{DoNothing: true}).Create(msg).Error
}

// fetchDue 取到期的待执行任务
func (q *Queue) fetchDue(now time.Time, limit int) ([]*model.TaskMessage, error) {
	var tasks []*model.TaskMessage
	err := q.db.
		Where("status = ? AND next_run_at <= ?", model.TaskStatusPending, now).
		Order("next_run_at asc").
		Limit(limit).
		Find(&tasks).Error
	return tasks, err
}

var errClaimLost = errors.New("任务已被其他 worker 认领")

// claim 认领任务，PENDING -> RUNNING 条件更新防止多 worker 重复执行
func (q *Queue) claim(id int64) error {
	result := q.db.Model(&model.TaskMessage{}).
		Where("id = ? AND status = ?", id, model.TaskStatusPending).
		Update("status", model.TaskStatusRunning)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errClaimLost
	}
	return nil
}

func (q *Queue) markSucceeded(id int64) error {
	return q.db.Model(&model.TaskMessage{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     model.TaskStatusSucceeded,
			"last_error": "",
		}).Error
}

// markRetry 退避后重新排队
func (q *Queue) markRetry(id int64, lastError string, nextRunAt time.Time) error {
	return q.db.Model(&model.TaskMessage{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      model.TaskStatusPending,
			"retry_count": gorm.Expr("retry_count + 1"),
			"last_error":  lastError,
			"next_run_at": nextRunAt,
		}).Error
}

func (q *Queue) markFailed(id int64, lastError string) error {
	return q.db.Model(&model.TaskMessage{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     model.TaskStatusFailed,
			"last_error": lastError,
		}).Error
}
