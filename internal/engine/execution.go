package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/life2you_mini/stockledger/internal/ledger"
	"github.com/life2you_mini/stockledger/internal/model"
	"github.com/life2you_mini/stockledger/internal/storage"
)

var oneHundred = decimal.NewFromInt(100)

// CreateExecutionRequest 创建执行记录的请求
type CreateExecutionRequest struct {
	StrategyID    int64
	Price         decimal.Decimal
	Volume        int64                 // 0 表示按策略比例自动计算
	StatusHint    model.ExecutionStatus // 调用方给出的执行状态，空则按执行记录重算
	Remarks       string
	ExecutionTime time.Time // 零值表示当前时间
}

// UpdateExecutionFields 执行记录的可更新字段，nil 表示不修改
type UpdateExecutionFields struct {
	ExecutionPrice *decimal.Decimal
	Volume         *int64
	ExecutionTime  *time.Time
	Result         *model.ExecutionResult
	Remarks        *string
}

// CreateExecution 执行一条策略并记录执行结果。
// 资金或持仓更新失败时整个操作回退，不会留下孤立的执行记录。
func (e *Engine) CreateExecution(ctx context.Context, req CreateExecutionRequest) (*model.Execution, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	strategy, err := e.store.GetStrategy(ctx, req.StrategyID)
	if err != nil {
		return nil, fmt.Errorf("策略ID %d 不存在: %w", req.StrategyID, err)
	}
	if !req.Price.IsPositive() && strategy.Action != model.ActionHold {
		return nil, fmt.Errorf("执行价格必须大于0")
	}

	acct, _, err := e.loadOrCreateAccount(ctx)
	if err != nil {
		return nil, err
	}
	positions, err := e.store.ListPositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("获取持仓列表失败: %w", err)
	}
	// 自动计算交易量依赖最新的资产总值
	e.account.RecomputeTotals(acct, positions)

	var pos *model.Position
	for _, p := range positions {
		if p.StockCode == strategy.StockCode {
			pos = p
			break
		}
	}

	volume := req.Volume
	if volume == 0 {
		volume, err = e.resolveVolume(strategy, acct, pos, req.Price)
		if err != nil {
			return nil, err
		}
	}

	// 记录成交时生效的原始买入仓位比例
	ratioAtTrade := decimal.Zero
	if pos != nil {
		ratioAtTrade = pos.OriginalPositionRatio
	}

	changes := &storage.ChangeSet{}

	if strategy.Action != model.ActionHold {
		if volume <= 0 {
			return nil, fmt.Errorf("%w: %d", ledger.ErrInvalidActionVolume, volume)
		}
		amount := req.Price.Mul(decimal.NewFromInt(volume))

		// 买入先扣款，资金不足直接失败
		if strategy.Action.IsEntry() {
			if err := e.account.Debit(acct, amount); err != nil {
				return nil, err
			}
		}

		tradeReq := ledger.TradeRequest{
			StockCode:     strategy.StockCode,
			StockName:     strategy.StockName,
			Volume:        volume,
			Price:         req.Price,
			Action:        strategy.Action,
			PositionRatio: strategy.PositionRatio,
		}
		if strategy.Action == model.ActionTrim {
			// 减仓后原始仓位比例缩减为剩余部分
			remainder := ratioAtTrade.Sub(strategy.PositionRatio)
			if remainder.IsNegative() {
				remainder = decimal.Zero
			}
			tradeReq.OriginalPositionRatio = remainder
		}

		newPos, realized, err := e.positions.ApplyTrade(pos, tradeReq)
		if err != nil {
			return nil, err
		}
		if newPos == nil {
			changes.DeletePositions = append(changes.DeletePositions, strategy.StockCode)
		} else {
			changes.UpsertPositions = append(changes.UpsertPositions, newPos)
		}

		// 卖出在持仓更新成功后回笼资金
		if strategy.Action.IsExit() {
			e.account.Credit(acct, amount)
		}

		// 用更新后的持仓重算总资产
		updated := make([]*model.Position, 0, len(positions))
		for _, p := range positions {
			if p.StockCode == strategy.StockCode {
				continue
			}
			updated = append(updated, p)
		}
		if newPos != nil {
			updated = append(updated, newPos)
		}
		e.account.RecomputeTotals(acct, updated)
		changes.Account = acct

		if !realized.IsZero() {
			e.logger.Info("实现盈亏",
				zap.String("stock_code", strategy.StockCode),
				zap.String("realized_profit", realized.String()))
		}
	}

	id, err := e.store.NextExecutionID(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	executionTime := req.ExecutionTime
	if executionTime.IsZero() {
		executionTime = now
	}
	execution := &model.Execution{
		ID:                    id,
		StrategyID:            strategy.ID,
		StockCode:             strategy.StockCode,
		StockName:             strategy.StockName,
		Action:                strategy.Action,
		ExecutionPrice:        req.Price,
		Volume:                volume,
		PositionRatio:         strategy.PositionRatio,
		OriginalPositionRatio: ratioAtTrade,
		ExecutionTime:         executionTime,
		ExecutionResult:       model.ResultSuccess,
		Remarks:               req.Remarks,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	changes.InsertExecutions = append(changes.InsertExecutions, execution)

	// 执行状态：信任调用方给出的状态，否则按全部执行记录重算
	if req.StatusHint.Valid() {
		strategy.ExecutionStatus = req.StatusHint
	} else {
		existing, err := e.store.ListExecutions(ctx, storage.ExecutionFilter{StrategyID: strategy.ID})
		if err != nil {
			return nil, fmt.Errorf("查询执行记录列表失败: %w", err)
		}
		strategy.ExecutionStatus = computeStatus(append(existing, execution), strategy.TargetVolume)
	}
	strategy.UpdatedAt = now
	changes.UpsertStrategies = append(changes.UpsertStrategies, strategy)

	if err := e.store.Apply(ctx, changes); err != nil {
		return nil, err
	}

	e.logger.Info("创建执行记录成功",
		zap.Int64("execution_id", execution.ID),
		zap.Int64("strategy_id", strategy.ID),
		zap.String("stock_code", strategy.StockCode),
		zap.String("action", string(strategy.Action)),
		zap.Int64("volume", volume),
		zap.String("price", req.Price.String()),
		zap.String("execution_status", string(strategy.ExecutionStatus)))
	return execution, nil
}

// resolveVolume 按动作类型的交易量策略计算交易量。
// buy/add 按总资产比例，sell 按持仓比例，
// trim 按原始买入仓位比例折算（缺少原始比例时回退到 sell 公式），hold 为0。
func (e *Engine) resolveVolume(
	strategy *model.Strategy,
	acct *model.Account,
	pos *model.Position,
	price decimal.Decimal,
) (int64, error) {
	ratio := strategy.PositionRatio

	switch strategy.Action {
	case model.ActionBuy, model.ActionAdd:
		// 总资产 × 比例 / 价格，向下取整
		return acct.TotalAssets.Mul(ratio).Div(oneHundred).Div(price).IntPart(), nil

	case model.ActionSell, model.ActionTrim:
		if pos == nil {
			return 0, fmt.Errorf("股票 %s %w", strategy.StockCode, ledger.ErrNoPositionForExit)
		}
		held := decimal.NewFromInt(pos.TotalVolume)
		if strategy.Action == model.ActionTrim {
			if pos.OriginalPositionRatio.IsPositive() {
				// 减仓比例相对于原始买入仓位比例，而不是当前总资产或持仓
				return held.Mul(ratio).Div(pos.OriginalPositionRatio).IntPart(), nil
			}
			e.logger.Warn("减仓缺少原始买入仓位比例，回退到按持仓比例卖出",
				zap.Int64("strategy_id", strategy.ID),
				zap.String("stock_code", strategy.StockCode),
				zap.Error(ledger.ErrMissingOriginalRatio))
		}
		return held.Mul(ratio).Div(oneHundred).IntPart(), nil

	case model.ActionHold:
		return 0, nil
	}

	return 0, ledger.ErrUnknownAction
}

// computeStatus 按执行记录集合重算策略执行状态。
// 没有记录为 pending；已执行量达到目标量为 completed；否则为 partial。
// hold 和失败的记录不计入已执行量；目标量为0视为无目标，不会自动完成。
func computeStatus(executions []*model.Execution, targetVolume int64) model.ExecutionStatus {
	if len(executions) == 0 {
		return model.StatusPending
	}
	var executed int64
	for _, execution := range executions {
		if execution.Action == model.ActionHold || execution.ExecutionResult == model.ResultFailed {
			continue
		}
		executed += execution.Volume
	}
	if targetVolume > 0 && executed >= targetVolume {
		return model.StatusCompleted
	}
	return model.StatusPartial
}

// GetExecution 获取单条执行记录
func (e *Engine) GetExecution(ctx context.Context, id int64) (*model.Execution, error) {
	return e.store.GetExecution(ctx, id)
}

// ListExecutions 按条件查询执行记录
func (e *Engine) ListExecutions(ctx context.Context, filter storage.ExecutionFilter) ([]*model.Execution, error) {
	return e.store.ListExecutions(ctx, filter)
}

// BatchListExecutions 批量获取多个策略的执行记录
func (e *Engine) BatchListExecutions(ctx context.Context, strategyIDs []int64, limit int) (map[int64][]*model.Execution, error) {
	result := make(map[int64][]*model.Execution, len(strategyIDs))
	for _, id := range strategyIDs {
		executions, err := e.store.ListExecutions(ctx, storage.ExecutionFilter{
			StrategyID: id,
			Limit:      limit,
		})
		if err != nil {
			return nil, err
		}
		result[id] = executions
	}
	return result, nil
}

// UpdateExecution 修正执行记录，并按剩余记录重算策略执行状态。
// 修正不会重放账务影响，只保证状态与执行量一致。
func (e *Engine) UpdateExecution(ctx context.Context, id int64, fields UpdateExecutionFields) (*model.Execution, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	execution, err := e.store.GetExecution(ctx, id)
	if err != nil {
		return nil, err
	}

	if fields.ExecutionPrice != nil {
		execution.ExecutionPrice = *fields.ExecutionPrice
	}
	if fields.Volume != nil {
		execution.Volume = *fields.Volume
	}
	if fields.ExecutionTime != nil {
		execution.ExecutionTime = *fields.ExecutionTime
	}
	if fields.Result != nil {
		execution.ExecutionResult = *fields.Result
	}
	if fields.Remarks != nil {
		execution.Remarks = *fields.Remarks
	}
	execution.UpdatedAt = time.Now()

	changes := &storage.ChangeSet{UpdateExecutions: []*model.Execution{execution}}
	if err := e.recomputeStrategyStatus(ctx, execution.StrategyID, execution, 0, changes); err != nil {
		return nil, err
	}
	if err := e.store.Apply(ctx, changes); err != nil {
		return nil, err
	}

	e.logger.Info("更新执行记录成功", zap.Int64("execution_id", id))
	return execution, nil
}

// DeleteExecution 删除执行记录，并按剩余记录重算策略执行状态
func (e *Engine) DeleteExecution(ctx context.Context, id int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	execution, err := e.store.GetExecution(ctx, id)
	if err != nil {
		return err
	}

	changes := &storage.ChangeSet{DeleteExecutions: []int64{id}}
	if err := e.recomputeStrategyStatus(ctx, execution.StrategyID, nil, id, changes); err != nil {
		return err
	}
	if err := e.store.Apply(ctx, changes); err != nil {
		return err
	}

	e.logger.Info("删除执行记录成功", zap.Int64("execution_id", id))
	return nil
}

// recomputeStrategyStatus 用待提交的记录变更叠加现有记录，重算策略状态并追加到变更集。
// replaced 非 nil 时替换同ID记录，removed 非0时剔除该ID。
func (e *Engine) recomputeStrategyStatus(
	ctx context.Context,
	strategyID int64,
	replaced *model.Execution,
	removed int64,
	changes *storage.ChangeSet,
) error {
	strategy, err := e.store.GetStrategy(ctx, strategyID)
	if errors.Is(err, storage.ErrStrategyNotFound) {
		// 策略已被物理清理时只改记录本身
		e.logger.Warn("执行记录对应的策略不存在，跳过状态重算", zap.Int64("strategy_id", strategyID))
		return nil
	}
	if err != nil {
		return err
	}

	existing, err := e.store.ListExecutions(ctx, storage.ExecutionFilter{StrategyID: strategyID})
	if err != nil {
		return fmt.Errorf("查询执行记录列表失败: %w", err)
	}
	effective := make([]*model.Execution, 0, len(existing))
	for _, execution := range existing {
		if execution.ID == removed {
			continue
		}
		if replaced != nil && execution.ID == replaced.ID {
			effective = append(effective, replaced)
			continue
		}
		effective = append(effective, execution)
	}

	status := computeStatus(effective, strategy.TargetVolume)
	if status != strategy.ExecutionStatus {
		strategy.ExecutionStatus = status
		strategy.UpdatedAt = time.Now()
		changes.UpsertStrategies = append(changes.UpsertStrategies, strategy)
		e.logger.Info("重算策略执行状态",
			zap.Int64("strategy_id", strategyID),
			zap.String("execution_status", string(status)))
	}
	return nil
}
