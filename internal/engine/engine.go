package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/life2you_mini/stockledger/internal/ledger"
	"github.com/life2you_mini/stockledger/internal/model"
	"github.com/life2you_mini/stockledger/internal/storage"
)

// Engine 策略执行引擎。
// 所有改变持仓/账户/执行记录的逻辑操作都在同一把锁内完成：
// 先读出当前记录，在内存里算出全部新状态，最后作为一个变更集整体提交，
// 保证执行记录与账务状态要么同时落库要么都不落库。
type Engine struct {
	mu            sync.Mutex
	logger        *zap.Logger
	store         storage.Storage
	positions     *ledger.PositionLedger
	account       *ledger.AccountLedger
	initialAssets decimal.Decimal
}

// NewEngine 创建策略执行引擎
func NewEngine(store storage.Storage, logger *zap.Logger, initialAssets decimal.Decimal) *Engine {
	return &Engine{
		logger:        logger,
		store:         store,
		positions:     ledger.NewPositionLedger(logger.With(zap.String("component", "position_ledger"))),
		account:       ledger.NewAccountLedger(logger.With(zap.String("component", "account_ledger"))),
		initialAssets: initialAssets,
	}
}

// loadOrCreateAccount 读取账户，首次访问时按配置的初始资金创建
func (e *Engine) loadOrCreateAccount(ctx context.Context) (*model.Account, bool, error) {
	acct, err := e.store.GetAccount(ctx)
	if errors.Is(err, storage.ErrAccountNotFound) {
		e.logger.Info("账户不存在，按初始资金创建", zap.String("initial_assets", e.initialAssets.String()))
		return ledger.NewAccount(e.initialAssets), true, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("获取账户信息失败: %w", err)
	}
	return acct, false, nil
}

// GetAccountFunds 获取账户资金信息，同时按持仓市值重算资产总值
func (e *Engine) GetAccountFunds(ctx context.Context) (*model.Account, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	acct, _, err := e.loadOrCreateAccount(ctx)
	if err != nil {
		return nil, err
	}
	positions, err := e.store.ListPositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("获取持仓列表失败: %w", err)
	}
	e.account.RecomputeTotals(acct, positions)

	if err := e.store.Apply(ctx, &storage.ChangeSet{Account: acct}); err != nil {
		return nil, err
	}
	e.logger.Info("账户资金信息",
		zap.String("total_assets", acct.TotalAssets.String()),
		zap.String("available_funds", acct.AvailableFunds.String()),
		zap.String("frozen_funds", acct.FrozenFunds.String()),
		zap.String("total_profit_ratio", acct.TotalProfitRatio.String()))
	return acct, nil
}

// UpdateFunds 管理性覆盖可用资金和冻结资金
func (e *Engine) UpdateFunds(ctx context.Context, available, frozen decimal.Decimal) (*model.Account, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	acct, _, err := e.loadOrCreateAccount(ctx)
	if err != nil {
		return nil, err
	}
	positions, err := e.store.ListPositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("获取持仓列表失败: %w", err)
	}
	e.account.SetFunds(acct, available, frozen, positions)

	if err := e.store.Apply(ctx, &storage.ChangeSet{Account: acct}); err != nil {
		return nil, err
	}
	return acct, nil
}

// FreezeFunds 冻结资金
func (e *Engine) FreezeFunds(ctx context.Context, amount decimal.Decimal) (*model.Account, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	acct, _, err := e.loadOrCreateAccount(ctx)
	if err != nil {
		return nil, err
	}
	if err := e.account.Freeze(acct, amount); err != nil {
		return nil, err
	}
	if err := e.store.Apply(ctx, &storage.ChangeSet{Account: acct}); err != nil {
		return nil, err
	}
	return acct, nil
}

// UnfreezeFunds 解冻资金
func (e *Engine) UnfreezeFunds(ctx context.Context, amount decimal.Decimal) (*model.Account, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	acct, _, err := e.loadOrCreateAccount(ctx)
	if err != nil {
		return nil, err
	}
	if err := e.account.Unfreeze(acct, amount); err != nil {
		return nil, err
	}
	if err := e.store.Apply(ctx, &storage.ChangeSet{Account: acct}); err != nil {
		return nil, err
	}
	return acct, nil
}

// GetPosition 查询单个持仓快照
func (e *Engine) GetPosition(ctx context.Context, stockCode string) (*model.Position, error) {
	return e.store.GetPosition(ctx, stockCode)
}

// ListPositions 查询所有持仓快照
func (e *Engine) ListPositions(ctx context.Context) ([]*model.Position, error) {
	return e.store.ListPositions(ctx)
}

// RefreshPositions 用最新行情批量刷新持仓市值，最后重算账户总资产。
// 与交易执行走同一把锁，防止刷新覆盖并发成交刚算好的成本。
// prices 中缺失的股票保持原状。返回实际刷新的持仓数。
func (e *Engine) RefreshPositions(ctx context.Context, prices map[string]decimal.Decimal) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	positions, err := e.store.ListPositions(ctx)
	if err != nil {
		return 0, fmt.Errorf("获取持仓列表失败: %w", err)
	}
	if len(positions) == 0 {
		return 0, nil
	}

	changes := &storage.ChangeSet{}
	updated := 0
	for _, pos := range positions {
		price, ok := prices[pos.StockCode]
		if !ok || !price.IsPositive() {
			continue
		}
		e.positions.RefreshPrice(pos, price)
		changes.UpsertPositions = append(changes.UpsertPositions, pos)
		updated++
	}
	if updated == 0 {
		return 0, nil
	}

	acct, _, err := e.loadOrCreateAccount(ctx)
	if err != nil {
		return 0, err
	}
	e.account.RecomputeTotals(acct, positions)
	changes.Account = acct

	if err := e.store.Apply(ctx, changes); err != nil {
		return 0, err
	}
	return updated, nil
}
