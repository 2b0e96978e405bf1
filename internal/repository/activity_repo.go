package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"sportclub/internal/model"
)

// ActivityRepository 活动数据访问
type ActivityRepository struct {
	db *gorm.DB
}

func NewActivityRepository(db *gorm.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

func (r *ActivityRepository) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *ActivityRepository) GetByID(tx *gorm.DB, id int64) (*model.Activity, error) {
	var activity model.Activity
	err := r.conn(tx).Where("id = ?", id).First(&activity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrActivityNotFound
		}
		return nil, err
	}
	return &activity, nil
}

// GetByIDForUpdate 行锁读取，必须在事务内调用
func (r *ActivityRepository) GetByIDForUpdate(tx *gorm.DB, id int64) (*model.Activity, error) {
	var activity model.Activity
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).First(&activity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrActivityNotFound
		}
		return nil, err
	}
	return &activity, nil
}

func (r *ActivityRepository) Create(tx *gorm.DB, activity *model.Activity) error {
	return r.conn(tx).Create(activity).Error
}

// UpdateState 条件更新活动状态，from 不匹配返回 ErrStateChanged
func (r *ActivityRepository) UpdateState(tx *gorm.DB, id int64, from, to model.ActivityState, updates map[string]interface{}) error {
	values := map[string]interface{}{"state": to}
	for k, v := range updates {
		values[k] = v
	}
	result := r.conn(tx).Model(&model.Activity{}).
		Where("id = ? AND state = ?", id, from).
		Updates(values)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStateChanged
	}
	return nil
}

// RecountMembers 以 confirmed 成员人数之和重算 members_count
//
// 不做增量加减，重算保证计数器与成员表最终一致。
func (r *ActivityRepository) RecountMembers(tx *gorm.DB, activityID int64) (int, error) {
	var total int64
	err := tx.Model(&model.ActivityMember{}).
		Where("activity_id = ? AND state = ?", activityID, model.ActivityMemberConfirmed).
		Select("COALESCE(SUM(users_count), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	err = tx.Model(&model.Activity{}).
		Where("id = ?", activityID).
		Update("members_count", total).Error
	return int(total), err
}

// UpdateSettleAmounts 结算时回填收入汇总
func (r *ActivityRepository) UpdateSettleAmounts(tx *gorm.DB, id int64, online, credit, cash int64, freeTimes int, finishedAt time.Time) error {
	return r.conn(tx).Model(&model.Activity{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"online_paid_amount": online,
			"credit_paid_amount": credit,
			"cash_paid_amount":   cash,
			"free_times_amount":  freeTimes,
			"finished_at":        finishedAt,
		}).Error
}

// ExistsNext 循环活动是否已有下一期（parent_id + start_time 匹配）
func (r *ActivityRepository) ExistsNext(tx *gorm.DB, parentID int64, startTime time.Time) (bool, error) {
	var count int64
	err := r.conn(tx).Model(&model.Activity{}).
		Where("parent_id = ? AND start_time = ?", parentID, startTime).
		Count(&count).Error
	return count > 0, err
}

// FindFinishable 扫描已到结束时间但仍是进行中的活动
func (r *ActivityRepository) FindFinishable(tx *gorm.DB, now time.Time, limit int) ([]*model.Activity, error) {
	var activities []*model.Activity
	err := r.conn(tx).
		Where("state = ? AND end_time <= ?", model.ActivityStateOpening, now).
		Order("end_time asc").
		Limit(limit).
		Find(&activities).Error
	return activities, err
}
