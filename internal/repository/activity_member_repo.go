package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"sportclub/internal/model"
)

// ActivityMemberRepository 活动报名记录数据访问
type ActivityMemberRepository struct {
	db *gorm.DB
}

func NewActivityMemberRepository(db *gorm.DB) *ActivityMemberRepository {
	return &ActivityMemberRepository{db: db}
}

func (r *ActivityMemberRepository) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *ActivityMemberRepository) Create(tx *gorm.DB, member *model.ActivityMember) error {
	return r.conn(tx).Create(member).Error
}

func (r *ActivityMemberRepository) GetByID(tx *gorm.DB, id int64) (*model.ActivityMember, error) {
	var member model.ActivityMember
	err := r.conn(tx).Where("id = ?", id).First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}
	return &member, nil
}

func (r *ActivityMemberRepository) GetByActivityUser(tx *gorm.DB, activityID, userID int64) (*model.ActivityMember, error) {
	var member model.ActivityMember
	err := r.conn(tx).
		Where("activity_id = ? AND user_id = ?", activityID, userID).
		First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}
	return &member, nil
}

func (r *ActivityMemberRepository) GetByOrderNo(tx *gorm.DB, orderNo string) (*model.ActivityMember, error) {
	var member model.ActivityMember
	err := r.conn(tx).Where("order_no = ?", orderNo).First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}
	return &member, nil
}

// ListByActivity 按状态列出活动成员，states 为空则不过滤
func (r *ActivityMemberRepository) ListByActivity(tx *gorm.DB, activityID int64, states ...model.ActivityMemberState) ([]*model.ActivityMember, error) {
	query := r.conn(tx).Where("activity_id = ?", activityID)
	if len(states) > 0 {
		query = query.Where("state IN ?", states)
	}
	var members []*model.ActivityMember
	err := query.Order("id asc").Find(&members).Error
	return members, err
}

// UpdateState 条件更新成员状态
func (r *ActivityMemberRepository) UpdateState(tx *gorm.DB, id int64, from, to model.ActivityMemberState, updates map[string]interface{}) error {
	values := map[string]interface{}{"state": to}
	for k, v := range updates {
		values[k] = v
	}
	result := r.conn(tx).Model(&model.ActivityMember{}).
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

// MarkPaid 支付回调确认成员，payment_state 与 state 一并流转
func (r *ActivityMemberRepository) MarkPaid(tx *gorm.DB, id int64, method string, paidAt time.Time) error {
	result := r.conn(tx).Model(&model.ActivityMember{}).
		Where("id = ? AND state = ?", id, model.ActivityMemberWaitConfirm).
		Updates(map[string]interface{}{
			"state":          model.ActivityMemberConfirmed,
			"payment_state":  model.OrderStateTradeBuyerPaid,
			"payment_method": method,
			"paid_at":        paidAt,
			"confirmed_at":   paidAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStateChanged
	}
	return nil
}

// UpdatePaymentState 仅同步订单支付状态
func (r *ActivityMemberRepository) UpdatePaymentState(tx *gorm.DB, id int64, state model.OrderState) error {
	return r.conn(tx).Model(&model.ActivityMember{}).
		Where("id = ?", id).
		Update("payment_state", state).Error
}

// SumFreeTimes 统计 confirmed 成员使用的次卡点数
func (r *ActivityMemberRepository) SumFreeTimes(tx *gorm.DB, activityID int64) (int, error) {
	var total int64
	err := r.conn(tx).Model(&model.ActivityMember{}).
		Where("activity_id = ? AND state = ?", activityID, model.ActivityMemberConfirmed).
		Select("COALESCE(SUM(free_times), 0)").
		Scan(&total).Error
	return int(total), err
}
