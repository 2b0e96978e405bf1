package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"sportclub/internal/model"
)

// SettlementRepository 结算申请数据访问
type SettlementRepository struct {
	db *gorm.DB
}

func NewSettlementRepository(db *gorm.DB) *SettlementRepository {
	return &SettlementRepository{db: db}
}

func (r *SettlementRepository) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *SettlementRepository) Create(tx *gorm.DB, app *model.SettlementApplication) error {
	return r.conn(tx).Create(app).Error
}

func (r *SettlementRepository) GetByID(tx *gorm.DB, id int64) (*model.SettlementApplication, error) {
	var app model.SettlementApplication
	err := r.conn(tx).Where("id = ?", id).First(&app).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrApplicationNotFound
		}
		return nil, err
	}
	return &app, nil
}

// ExistsActive 同一赛事是否已有在途申请（requesting/approved）
// 必须与 Create 同一事务调用
func (r *SettlementRepository) ExistsActive(tx *gorm.DB, matchID int64) (bool, error) {
	var count int64
	err := tx.Model(&model.SettlementApplication{}).
		Where("match_id = ? AND processing IN ?", matchID,
			[]model.ApplicationState{model.ApplicationRequesting, model.ApplicationApproved}).
		Count(&count).Error
	return count > 0, err
}

// UpdateProcessing 条件流转申请状态
func (r *SettlementRepository) UpdateProcessing(tx *gorm.DB, id int64, from, to model.ApplicationState, updates map[string]interface{}) error {
	values := map[string]interface{}{"processing": to}
	for k, v := range updates {
		values[k] = v
	}
	result := r.conn(tx).Model(&model.SettlementApplication{}).
		Where("id = ? AND processing = ?", id, from).
		Updates(values)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStateChanged
	}
	return nil
}

// Approve 审批通过
func (r *SettlementRepository) Approve(tx *gorm.DB, id, adminID int64, approvedAt time.Time) error {
	return r.UpdateProcessing(tx, id, model.ApplicationRequesting, model.ApplicationApproved,
		map[string]interface{}{
			"admin_id":    adminID,
			"approved_at": approvedAt,
		})
}

// Disapprove 驳回
func (r *SettlementRepository) Disapprove(tx *gorm.DB, id, adminID int64) error {
	return r.UpdateProcessing(tx, id, model.ApplicationRequesting, model.ApplicationDisapproved,
		map[string]interface{}{"admin_id": adminID})
}
