package repository

import (
	"gorm.io/gorm"

	"sportclub/internal/model"
)

// OutboxRepository 领域事件外发表数据访问
type OutboxRepository struct {
	db *gorm.DB
}

func NewOutboxRepository(db *gorm.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

func (r *OutboxRepository) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

// Create 与业务变更同事务落库
func (r *OutboxRepository) Create(tx *gorm.DB, msg *model.OutboxMessage) error {
	return r.conn(tx).Create(msg).Error
}

// FetchPending 取待发送消息
func (r *OutboxRepository) FetchPending(limit int) ([]*model.OutboxMessage, error) {
	var messages []*model.OutboxMessage
	err := r.db.
		Where("status = ?", model.OutboxStatusPending).
		Order("id asc").
		Limit(limit).
		Find(&messages).Error
	return messages, err
}

func (r *OutboxRepository) MarkAsSent(id int64) error {
	return r.db.Model(&model.OutboxMessage{}).
		Where("id = ?", id).
		Update("status", model.OutboxStatusSent).Error
}

func (r *OutboxRepository) IncrRetry(id int64) error {
	return r.db.Model(&model.OutboxMessage{}).
		Where("id = ?", id).
		Update("retry_count", gorm.Expr("retry_count + 1")).Error
}

func (r *OutboxRepository) MarkAsFailed(id int64) error {
	return r.db.Model(&model.OutboxMessage{}).
		Where("id = ?", id).
		Update("status", model.OutboxStatusFailed).Error
}
