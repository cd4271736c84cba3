package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/life2you_mini/stockledger/internal/model"
)

// FullyRecoveredRatio 动态成本摊薄到0后浮动盈亏比例的哨兵值，
// 表示成本已全部收回，继续上涨的收益率没有意义
var FullyRecoveredRatio = decimal.NewFromInt(999999)

// TradeRequest 一次成交对持仓的更新请求
type TradeRequest struct {
	StockCode             string
	StockName             string
	Volume                int64
	Price                 decimal.Decimal
	Action                model.Action
	PositionRatio         decimal.Decimal // 本次操作比例(%)
	OriginalPositionRatio decimal.Decimal // 减仓后应记录的原始仓位比例，仅 trim 使用
}

// PositionLedger 持仓账本，负责把成交结果落到持仓记录上。
// 方法只操作传入的记录，不触碰存储；事务提交由调用方负责。
type PositionLedger struct {
	logger *zap.Logger
}

// NewPositionLedger 创建持仓账本
func NewPositionLedger(logger *zap.Logger) *PositionLedger {
	return &PositionLedger{logger: logger}
}

// ApplyTrade 将一次成交应用到持仓上。
// pos 为 nil 表示当前无持仓；返回 nil 表示清仓，持仓记录应删除。
func (l *PositionLedger) ApplyTrade(pos *model.Position, req TradeRequest) (*model.Position, decimal.Decimal, error) {
	if !req.Action.Valid() {
		return nil, decimal.Zero, ErrUnknownAction
	}
	if req.Action == model.ActionHold {
		// hold 不做任何持仓变更
		return pos, decimal.Zero, nil
	}
	if req.Volume <= 0 {
		return nil, decimal.Zero, fmt.Errorf("%w: %d", ErrInvalidActionVolume, req.Volume)
	}

	if pos == nil {
		if req.Action.IsExit() {
			return nil, decimal.Zero, fmt.Errorf("股票 %s %w", req.StockCode, ErrNoPositionForExit)
		}
		now := time.Now()
		pos = &model.Position{
			StockCode: req.StockCode,
			StockName: req.StockName,
			CreatedAt: now,
		}
	}

	outcome, err := ApplyCostBasis(pos.TotalVolume, pos.OriginalCost, pos.DynamicCost, req.Volume, req.Price, req.Action)
	if err != nil {
		return nil, decimal.Zero, err
	}

	pos.TotalVolume = outcome.TotalVolume
	pos.OriginalCost = outcome.OriginalCost
	pos.DynamicCost = outcome.DynamicCost
	pos.UpdatedAt = time.Now()

	// 原始买入仓位比例的维护独立于成本计算：
	// 买入建立基准，加仓累加，减仓由状态机算出剩余比例覆盖，清仓清除
	switch req.Action {
	case model.ActionBuy:
		pos.OriginalPositionRatio = req.PositionRatio
	case model.ActionAdd:
		pos.OriginalPositionRatio = pos.OriginalPositionRatio.Add(req.PositionRatio)
	case model.ActionTrim:
		pos.OriginalPositionRatio = req.OriginalPositionRatio
	}

	if outcome.Liquidated {
		pos.OriginalPositionRatio = decimal.Zero
		l.logger.Info("持仓数量为0，删除持仓记录",
			zap.String("stock_code", pos.StockCode),
			zap.String("realized_profit", outcome.RealizedProfit.String()))
		return nil, outcome.RealizedProfit, nil
	}

	// 持仓金额：卖出/减仓后按动态成本计算，买入/加仓按原始成本
	costBasis := pos.OriginalCost
	if req.Action.IsExit() {
		costBasis = pos.DynamicCost
	}
	pos.TotalAmount = decimal.NewFromInt(pos.TotalVolume).Mul(costBasis)

	// 已知最新价时顺带刷新市值和浮动盈亏
	if pos.LatestPrice.IsPositive() {
		l.refreshMarketValue(pos, pos.LatestPrice)
	}

	return pos, outcome.RealizedProfit, nil
}

// RefreshPrice 用最新价格刷新持仓的市值和浮动盈亏
func (l *PositionLedger) RefreshPrice(pos *model.Position, latestPrice decimal.Decimal) {
	l.refreshMarketValue(pos, latestPrice)
	pos.UpdatedAt = time.Now()
}

func (l *PositionLedger) refreshMarketValue(pos *model.Position, latestPrice decimal.Decimal) {
	decVolume := decimal.NewFromInt(pos.TotalVolume)
	pos.LatestPrice = latestPrice
	pos.MarketValue = decVolume.Mul(latestPrice)
	costValue := decVolume.Mul(pos.DynamicCost)
	pos.FloatingProfit = pos.MarketValue.Sub(costValue)

	switch {
	case pos.TotalVolume > 0 && !pos.DynamicCost.IsPositive():
		// 动态成本摊薄到0以下，收益率无穷大，置为哨兵值
		pos.FloatingProfitRatio = FullyRecoveredRatio
	case pos.TotalVolume > 0:
		pos.FloatingProfitRatio = pos.FloatingProfit.Div(costValue)
	default:
		pos.FloatingProfitRatio = decimal.Zero
	}
}
