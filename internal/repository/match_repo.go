package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"sportclub/internal/model"
)

// MatchRepository 赛事数据访问，含分组与对战记录
type MatchRepository struct {
	db *gorm.DB
}

func NewMatchRepository(db *gorm.DB) *MatchRepository {
	return &MatchRepository{db: db}
}

func (r *MatchRepository) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *MatchRepository) GetByID(tx *gorm.DB, id int64) (*model.Match, error) {
	var match model.Match
	err := r.conn(tx).Where("id = ?", id).First(&match).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	return &match, nil
}

// GetByIDForUpdate 行锁读取，必须在事务内调用
func (r *MatchRepository) GetByIDForUpdate(tx *gorm.DB, id int64) (*model.Match, error) {
	var match model.Match
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).First(&match).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	return &match, nil
}

func (r *MatchRepository) Create(tx *gorm.DB, match *model.Match) error {
	return r.conn(tx).Create(match).Error
}

// UpdateState 条件更新赛事状态
func (r *MatchRepository) UpdateState(tx *gorm.DB, id int64, from, to model.MatchState, updates map[string]interface{}) error {
	values := map[string]interface{}{"state": to}
	for k, v := range updates {
		values[k] = v
	}
	result := r.conn(tx).Model(&model.Match{}).
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

// RecountMembers 重算赛事报名人数（待支付与正常成员均占名额）
func (r *MatchRepository) RecountMembers(tx *gorm.DB, matchID int64) (int, error) {
	var total int64
	err := tx.Model(&model.MatchMember{}).
		Where("match_id = ? AND state IN ?", matchID,
			[]model.MatchMemberState{model.MatchMemberWaitPay, model.MatchMemberWaitReview, model.MatchMemberNormal}).
		Count(&total).Error
	if err != nil {
		return 0, err
	}
	err = tx.Model(&model.Match{}).
		Where("id = ?", matchID).
		Update("members_count", total).Error
	return int(total), err
}

// MarkPushed 记录开赛通知已发送，避免重复推送
func (r *MatchRepository) MarkPushed(tx *gorm.DB, id int64, pushedAt time.Time) error {
	result := r.conn(tx).Model(&model.Match{}).
		Where("id = ? AND pushed IS NULL", id).
		Update("pushed", pushedAt)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStateChanged
	}
	return nil
}

// FindStartingUnpushed 扫描即将开赛且未推送通知的赛事
func (r *MatchRepository) FindStartingUnpushed(tx *gorm.DB, from, to time.Time, limit int) ([]*model.Match, error) {
	var matches []*model.Match
	err := r.conn(tx).
		Where("state = ? AND pushed IS NULL AND start_time BETWEEN ? AND ?",
			model.MatchStateOpening, from, to).
		Order("start_time asc").
		Limit(limit).
		Find(&matches).Error
	return matches, err
}

// ---- 分组 ----

func (r *MatchRepository) GetGroupByID(tx *gorm.DB, groupID int64) (*model.MatchGroup, error) {
	var group model.MatchGroup
	err := r.conn(tx).Where("id = ?", groupID).First(&group).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, err
	}
	return &group, nil
}

func (r *MatchRepository) CreateGroup(tx *gorm.DB, group *model.MatchGroup) error {
	return r.conn(tx).Create(group).Error
}

func (r *MatchRepository) ListGroups(tx *gorm.DB, matchID int64) ([]*model.MatchGroup, error) {
	var groups []*model.MatchGroup
	err := r.conn(tx).Where("match_id = ?", matchID).Order("id asc").Find(&groups).Error
	return groups, err
}

// RecountGroupMembers 重算分组人数
func (r *MatchRepository) RecountGroupMembers(tx *gorm.DB, groupID int64) (int, error) {
	var total int64
	err := tx.Model(&model.MatchMember{}).
		Where("group_id = ? AND state IN ?", groupID,
			[]model.MatchMemberState{model.MatchMemberWaitPay, model.MatchMemberWaitReview, model.MatchMemberNormal}).
		Count(&total).Error
	if err != nil {
		return 0, err
	}
	err = tx.Model(&model.MatchGroup{}).
		Where("id = ?", groupID).
		Update("members_count", total).Error
	return int(total), err
}

// ---- 对战记录 ----

func (r *MatchRepository) CreateAgainst(tx *gorm.DB, against *model.MatchAgainst) error {
	return r.conn(tx).Create(against).Error
}

func (r *MatchRepository) ListAgainst(tx *gorm.DB, matchID int64) ([]*model.MatchAgainst, error) {
	var records []*model.MatchAgainst
	err := r.conn(tx).Where("match_id = ?", matchID).
		Order("round asc, id asc").Find(&records).Error
	return records, err
}
