package repository

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"sportclub/internal/model"
)

// TeamRepository 俱乐部账户数据访问
//
// credit 变更必须在行锁事务内进行：先 GetByIDForUpdate 拿到快照，
// 再 AddCredit 原子加减，再用快照写流水。
type TeamRepository struct {
	db *gorm.DB
}

func NewTeamRepository(db *gorm.DB) *TeamRepository {
	return &TeamRepository{db: db}
}

func (r *TeamRepository) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *TeamRepository) GetByID(tx *gorm.DB, id int64) (*model.Team, error) {
	var team model.Team
	err := r.conn(tx).Where("id = ?", id).First(&team).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, err
	}
	return &team, nil
}

// GetByIDForUpdate 行锁读取，必须在事务内调用
func (r *TeamRepository) GetByIDForUpdate(tx *gorm.DB, id int64) (*model.Team, error) {
	var team model.Team
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).First(&team).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, err
	}
	return &team, nil
}

// AddCredit 原子增减余额，delta 为正入账、为负出账
func (r *TeamRepository) AddCredit(tx *gorm.DB, id int64, delta int64) error {
	return r.conn(tx).Model(&model.Team{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"credit": gorm.Expr("credit + ?", delta),
		}).Error
}

// AddReceipts 累计收入
func (r *TeamRepository) AddReceipts(tx *gorm.DB, id int64, delta int64) error {
	return r.conn(tx).Model(&model.Team{}).
		Where("id = ?", id).
		Update("total_receipts", gorm.Expr("total_receipts + ?", delta)).Error
}

// CreateAccountLog 追加账户流水
func (r *TeamRepository) CreateAccountLog(tx *gorm.DB, accountLog *model.TeamAccountLog) error {
	return r.conn(tx).Create(accountLog).Error
}

// ListAccountLogs 查询流水
func (r *TeamRepository) ListAccountLogs(tx *gorm.DB, teamID int64, limit, offset int) ([]*model.TeamAccountLog, error) {
	var logs []*model.TeamAccountLog
	err := r.conn(tx).
		Where("team_id = ?", teamID).
		Order("id desc").
		Limit(limit).Offset(offset).
		Find(&logs).Error
	return logs, err
}

// CountSettlementLogs 统计某活动/赛事产生的结算流水条数（幂等校验用）
func (r *TeamRepository) CountSettlementLogs(tx *gorm.DB, activityID int64) (int64, error) {
	var count int64
	err := r.conn(tx).Model(&model.TeamAccountLog{}).
		Where("activity_id = ? AND change_type = ?", activityID, model.AccountChangeSettlement).
		Count(&count).Error
	return count, err
}
