package repository

import (
	"errors"

	"gorm.io/gorm"

	"sportclub/internal/model"
)

// MatchMemberRepository 参赛成员数据访问
type MatchMemberRepository struct {
	db *gorm.DB
}

func NewMatchMemberRepository(db *gorm.DB) *MatchMemberRepository {
	return &MatchMemberRepository{db: db}
}

func (r *MatchMemberRepository) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *MatchMemberRepository) Create(tx *gorm.DB, member *model.MatchMember) error {
	return r.conn(tx).Create(member).Error
}

func (r *MatchMemberRepository) GetByID(tx *gorm.DB, id int64) (*model.MatchMember, error) {
	var member model.MatchMember
	err := r.conn(tx).Where("id = ?", id).First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}
	return &member, nil
}

// GetActiveByMatchUser 查找用户在赛事中未退出的报名记录
func (r *MatchMemberRepository) GetActiveByMatchUser(tx *gorm.DB, matchID, userID int64) (*model.MatchMember, error) {
	var member model.MatchMember
	err := r.conn(tx).
		Where("match_id = ? AND user_id = ? AND state IN ?", matchID, userID,
			[]model.MatchMemberState{model.MatchMemberWaitPay, model.MatchMemberWaitReview, model.MatchMemberNormal}).
		First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}
	return &member, nil
}

func (r *MatchMemberRepository) GetByPtOrderNo(tx *gorm.DB, ptOrderNo string) (*model.MatchMember, error) {
	var member model.MatchMember
	err := r.conn(tx).Where("pt_order_no = ?", ptOrderNo).First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}
	return &member, nil
}

// ListByMatch 按状态列出参赛成员，states 为空则不过滤
func (r *MatchMemberRepository) ListByMatch(tx *gorm.DB, matchID int64, states ...model.MatchMemberState) ([]*model.MatchMember, error) {
	query := r.conn(tx).Where("match_id = ?", matchID)
	if len(states) > 0 {
		query = query.Where("state IN ?", states)
	}
	var members []*model.MatchMember
	err := query.Order("id asc").Find(&members).Error
	return members, err
}

// UpdateState 条件更新成员状态
func (r *MatchMemberRepository) UpdateState(tx *gorm.DB, id int64, from, to model.MatchMemberState, updates map[string]interface{}) error {
	values := map[string]interface{}{"state": to}
	for k, v := range updates {
		values[k] = v
	}
	result := r.conn(tx).Model(&model.MatchMember{}).
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

// Delete 删除成员记录（退款完成后的最后一步）
func (r *MatchMemberRepository) Delete(tx *gorm.DB, id int64) error {
	return r.conn(tx).Delete(&model.MatchMember{}, id).Error
}
