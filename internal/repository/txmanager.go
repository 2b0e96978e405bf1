package repository

import (
	"context"

	"gorm.io/gorm"
)

// TxManager 事务边界
//
// 服务层通过它开启事务，repository 的方法接收 tx 参数，
// tx 为 nil 时退回各自持有的连接。
type TxManager interface {
	Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type GormTxManager struct {
	db *gorm.DB
}

func NewGormTxManager(db *gorm.DB) *GormTxManager {
	return &GormTxManager{db: db}
}

func (m *GormTxManager) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return m.db.WithContext(ctx).Transaction(fn)
}
