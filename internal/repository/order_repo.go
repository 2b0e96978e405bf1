package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"sportclub/internal/model"
)

// OrderRepository 订单数据访问
type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *OrderRepository) Create(tx *gorm.DB, order *model.TeamOrder) error {
	return r.conn(tx).Create(order).Error
}

func (r *OrderRepository) GetByID(tx *gorm.DB, id int64) (*model.TeamOrder, error) {
	var order model.TeamOrder
	err := r.conn(tx).Where("id = ?", id).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

func (r *OrderRepository) GetByOrderNo(tx *gorm.DB, orderNo string) (*model.TeamOrder, error) {
	var order model.TeamOrder
	err := r.conn(tx).Where("order_no = ?", orderNo).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

// GetByOrderNoForUpdate 行锁读取，回调处理必须走这里
func (r *OrderRepository) GetByOrderNoForUpdate(tx *gorm.DB, orderNo string) (*model.TeamOrder, error) {
	var order model.TeamOrder
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("order_no = ?", orderNo).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

// UpdateState 条件更新订单状态，附带状态机合法性校验
func (r *OrderRepository) UpdateState(tx *gorm.DB, id int64, from, to model.OrderState, updates map[string]interface{}) error {
	if !model.CanOrderTransition(from, to) {
		return ErrStateChanged
	}
	values := map[string]interface{}{"state": to}
	for k, v := range updates {
		values[k] = v
	}
	result := r.conn(tx).Model(&model.TeamOrder{}).
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

// MarkPaid 回调确认支付
func (r *OrderRepository) MarkPaid(tx *gorm.DB, id int64, from model.OrderState, method, gatewayTradeNo string, paidAt time.Time) error {
	return r.UpdateState(tx, id, from, model.OrderStateTradeBuyerPaid, map[string]interface{}{
		"payment_method":   method,
		"payment_fee":      gorm.Expr("total_fee - credit_fee"),
		"gateway_trade_no": gatewayTradeNo,
		"paid_at":          paidAt,
	})
}

// SetGatewayTradeNo 回填网关侧订单号
func (r *OrderRepository) SetGatewayTradeNo(tx *gorm.DB, id int64, gatewayTradeNo string) error {
	return r.conn(tx).Model(&model.TeamOrder{}).
		Where("id = ?", id).
		Update("gateway_trade_no", gatewayTradeNo).Error
}

// MarkRefunding 发起退款前标记退款中
func (r *OrderRepository) MarkRefunding(tx *gorm.DB, id int64) error {
	result := r.conn(tx).Model(&model.TeamOrder{}).
		Where("id = ? AND state = ? AND refund_state = ?",
			id, model.OrderStateTradeBuyerPaid, model.RefundStateNoRefund).
		Update("refund_state", model.RefundStateRefunding)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStateChanged
	}
	return nil
}

// MarkRefunded 退款完成，订单转入 TRADE_CLOSED
func (r *OrderRepository) MarkRefunded(tx *gorm.DB, id int64, refundedFee int64, refundedAt time.Time) error {
	result := r.conn(tx).Model(&model.TeamOrder{}).
		Where("id = ? AND refund_state = ?", id, model.RefundStateRefunding).
		Updates(map[string]interface{}{
			"state":        model.OrderStateTradeClosed,
			"refund_state": model.RefundStateRefunded,
			"refunded_fee": refundedFee,
			"refunded_at":  refundedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStateChanged
	}
	return nil
}

// MarkRefundFailed 退款永久失败
func (r *OrderRepository) MarkRefundFailed(tx *gorm.DB, id int64, note string) error {
	return r.conn(tx).Model(&model.TeamOrder{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"refund_state": model.RefundStateRefundFailed,
			"note":         note,
		}).Error
}

// FoldNotPaid 网关回告「订单未支付」时把本地订单折算为用户关闭
//
// 本地已支付但网关未支付说明回调与实际支付状态不一致，
// 以网关为准关闭本地订单，退款流程就此终止。
func (r *OrderRepository) FoldNotPaid(tx *gorm.DB, id int64, note string) error {
	return r.conn(tx).Model(&model.TeamOrder{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"state":        model.OrderStateTradeClosedByUser,
			"refund_state": model.RefundStateNoRefund,
			"note":         note,
		}).Error
}

// CloseUnpaid 关闭未支付订单
func (r *OrderRepository) CloseUnpaid(tx *gorm.DB, id int64, note string) error {
	result := r.conn(tx).Model(&model.TeamOrder{}).
		Where("id = ? AND state IN ?", id,
			[]model.OrderState{model.OrderStateWaitBuyerPay, model.OrderStateWaitPayReturn}).
		Updates(map[string]interface{}{
			"state": model.OrderStateTradeClosedByUser,
			"note":  note,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStateChanged
	}
	return nil
}

// Finish 结算时订单转入完成态
func (r *OrderRepository) Finish(tx *gorm.DB, id int64, finishedAt time.Time) error {
	return r.UpdateState(tx, id, model.OrderStateTradeBuyerPaid, model.OrderStateTradeFinished,
		map[string]interface{}{"finished_at": finishedAt})
}

// SumPaidByActivity 按支付方式汇总活动的已支付/已完成订单金额（分）
func (r *OrderRepository) SumPaidByActivity(tx *gorm.DB, activityID int64, orderType int, methods []string) (int64, error) {
	var total int64
	err := r.conn(tx).Model(&model.TeamOrder{}).
		Where("activity_id = ? AND order_type = ? AND payment_method IN ? AND state IN ?",
			activityID, orderType, methods,
			[]model.OrderState{model.OrderStateTradeBuyerPaid, model.OrderStateTradeFinished}).
		Select("COALESCE(SUM(total_fee), 0)").
		Scan(&total).Error
	return total, err
}

// ListPaidByActivity 列出活动的已支付订单
func (r *OrderRepository) ListPaidByActivity(tx *gorm.DB, activityID int64, orderType int) ([]*model.TeamOrder, error) {
	var orders []*model.TeamOrder
	err := r.conn(tx).
		Where("activity_id = ? AND order_type = ? AND state = ?",
			activityID, orderType, model.OrderStateTradeBuyerPaid).
		Find(&orders).Error
	return orders, err
}
