package repository

import "errors"

var (
	ErrActivityNotFound    = errors.New("活动不存在")
	ErrMatchNotFound       = errors.New("赛事不存在")
	ErrGroupNotFound       = errors.New("赛事分组不存在")
	ErrMemberNotFound      = errors.New("报名记录不存在")
	ErrOrderNotFound       = errors.New("订单不存在")
	ErrTeamNotFound        = errors.New("俱乐部不存在")
	ErrApplicationNotFound = errors.New("结算申请不存在")

	// ErrStateChanged 条件更新未命中任何行，说明状态已被并发修改
	ErrStateChanged = errors.New("状态已变更")
)
