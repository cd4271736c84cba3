package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/life2you_mini/stockledger/internal/model"
	"github.com/life2you_mini/stockledger/internal/storage"
)

// StrategyUpdate 策略的可更新字段，nil 表示不修改
type StrategyUpdate struct {
	StockName       *string
	StockCode       *string
	Action          *model.Action
	PositionRatio   *decimal.Decimal
	PriceMin        *decimal.Decimal
	PriceMax        *decimal.Decimal
	TakeProfitPrice *decimal.Decimal
	StopLossPrice   *decimal.Decimal
	OtherConditions *string
	Reason          *string
	TargetVolume    *int64
	IsActive        *bool
}

// CreateStrategy 创建新策略。策略内容由外部解析层产出，引擎只负责落库。
func (e *Engine) CreateStrategy(ctx context.Context, strategy *model.Strategy) (*model.Strategy, error) {
	if strategy.StockCode == "" || strategy.StockName == "" {
		return nil, fmt.Errorf("股票代码和名称不能为空")
	}
	if !strategy.Action.Valid() {
		return nil, fmt.Errorf("无效的交易动作: %s", strategy.Action)
	}
	if strategy.PositionRatio.IsNegative() || strategy.PositionRatio.GreaterThan(oneHundred) {
		return nil, fmt.Errorf("仓位比例必须在0到100之间: %s", strategy.PositionRatio.String())
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	id, err := e.store.NextStrategyID(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	strategy = strategy.Clone()
	strategy.ID = id
	strategy.ExecutionStatus = model.StatusPending
	strategy.IsActive = true
	strategy.CreatedAt = now
	strategy.UpdatedAt = now

	if err := e.store.Apply(ctx, &storage.ChangeSet{UpsertStrategies: []*model.Strategy{strategy}}); err != nil {
		return nil, err
	}
	e.logger.Info("创建策略成功",
		zap.Int64("strategy_id", id),
		zap.String("stock_code", strategy.StockCode),
		zap.String("action", string(strategy.Action)))
	return strategy, nil
}

// GetStrategy 获取单个策略
func (e *Engine) GetStrategy(ctx context.Context, id int64) (*model.Strategy, error) {
	return e.store.GetStrategy(ctx, id)
}

// ListStrategies 按条件查询策略
func (e *Engine) ListStrategies(ctx context.Context, filter storage.StrategyFilter) ([]*model.Strategy, error) {
	return e.store.ListStrategies(ctx, filter)
}

// UpdateStrategy 更新策略字段
func (e *Engine) UpdateStrategy(ctx context.Context, id int64, update StrategyUpdate) (*model.Strategy, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	strategy, err := e.store.GetStrategy(ctx, id)
	if err != nil {
		return nil, err
	}
	applyStrategyUpdate(strategy, update)
	strategy.UpdatedAt = time.Now()

	if err := e.store.Apply(ctx, &storage.ChangeSet{UpsertStrategies: []*model.Strategy{strategy}}); err != nil {
		return nil, err
	}
	e.logger.Info("策略更新成功", zap.Int64("strategy_id", id))
	return strategy, nil
}

// CheckStrategyExists 按名称+代码+动作查找有效策略，不存在时返回 nil
func (e *Engine) CheckStrategyExists(ctx context.Context, stockName, stockCode string, action model.Action) (*model.Strategy, error) {
	active := true
	strategies, err := e.store.ListStrategies(ctx, storage.StrategyFilter{
		StockName: stockName,
		StockCode: stockCode,
		Action:    action,
		IsActive:  &active,
	})
	if err != nil {
		return nil, err
	}
	if len(strategies) == 0 {
		return nil, nil
	}
	return strategies[0], nil
}

// UpdateStrategyByKey 按名称+代码+动作定位有效策略并更新操作参数
func (e *Engine) UpdateStrategyByKey(ctx context.Context, stockName, stockCode string, action model.Action, update StrategyUpdate) (*model.Strategy, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	strategy, err := e.CheckStrategyExists(ctx, stockName, stockCode, action)
	if err != nil {
		return nil, err
	}
	if strategy == nil {
		return nil, fmt.Errorf("未找到匹配的策略: %s %s %s", stockName, stockCode, action)
	}

	applyStrategyUpdate(strategy, update)
	strategy.UpdatedAt = time.Now()

	if err := e.store.Apply(ctx, &storage.ChangeSet{UpsertStrategies: []*model.Strategy{strategy}}); err != nil {
		return nil, err
	}
	return strategy, nil
}

// DeactivateStrategy 设置策略为失效（软删除，不物理删除）
func (e *Engine) DeactivateStrategy(ctx context.Context, id int64) (*model.Strategy, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	strategy, err := e.store.GetStrategy(ctx, id)
	if err != nil {
		return nil, err
	}
	if !strategy.IsActive {
		return strategy, nil
	}
	strategy.IsActive = false
	strategy.UpdatedAt = time.Now()

	if err := e.store.Apply(ctx, &storage.ChangeSet{UpsertStrategies: []*model.Strategy{strategy}}); err != nil {
		return nil, err
	}
	e.logger.Info("策略已失效", zap.Int64("strategy_id", id))
	return strategy, nil
}

// IsNotFound 判断是否为记录不存在错误
func IsNotFound(err error) bool {
	return errors.Is(err, storage.ErrStrategyNotFound) ||
		errors.Is(err, storage.ErrExecutionNotFound) ||
		errors.Is(err, storage.ErrPositionNotFound) ||
		errors.Is(err, storage.ErrAccountNotFound)
}

func applyStrategyUpdate(strategy *model.Strategy, update StrategyUpdate) {
	if update.StockName != nil {
		strategy.StockName = *update.StockName
	}
	if update.StockCode != nil {
		strategy.StockCode = *update.StockCode
	}
	if update.Action != nil {
		strategy.Action = *update.Action
	}
	if update.PositionRatio != nil {
		strategy.PositionRatio = *update.PositionRatio
	}
	if update.PriceMin != nil {
		strategy.PriceMin = update.PriceMin
	}
	if update.PriceMax != nil {
		strategy.PriceMax = update.PriceMax
	}
	if update.TakeProfitPrice != nil {
		strategy.TakeProfitPrice = update.TakeProfitPrice
	}
	if update.StopLossPrice != nil {
		strategy.StopLossPrice = update.StopLossPrice
	}
	if update.OtherConditions != nil {
		strategy.OtherConditions = *update.OtherConditions
	}
	if update.Reason != nil {
		strategy.Reason = *update.Reason
	}
	if update.TargetVolume != nil {
		strategy.TargetVolume = *update.TargetVolume
	}
	if update.IsActive != nil {
		strategy.IsActive = *update.IsActive
	}
}
