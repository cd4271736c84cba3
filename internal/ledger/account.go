package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/life2you_mini/stockledger/internal/model"
)

// AccountLedger 账户资金账本。
// 与持仓账本一样只操作传入的记录，原子性由调用方的事务单元保证。
type AccountLedger struct {
	logger *zap.Logger
}

// NewAccountLedger 创建账户资金账本
func NewAccountLedger(logger *zap.Logger) *AccountLedger {
	return &AccountLedger{logger: logger}
}

// NewAccount 按初始资金创建账户记录
func NewAccount(initialAssets decimal.Decimal) *model.Account {
	now := time.Now()
	return &model.Account{
		InitialAssets:  initialAssets,
		TotalAssets:    initialAssets,
		AvailableFunds: initialAssets,
		FrozenFunds:    decimal.Zero,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Freeze 冻结资金，可用资金不足时失败
func (l *AccountLedger) Freeze(acct *model.Account, amount decimal.Decimal) error {
	if amount.GreaterThan(acct.AvailableFunds) {
		return fmt.Errorf("%w：需要 %s，实际可用 %s",
			ErrInsufficientFunds, amount.String(), acct.AvailableFunds.String())
	}
	acct.AvailableFunds = acct.AvailableFunds.Sub(amount)
	acct.FrozenFunds = acct.FrozenFunds.Add(amount)
	acct.UpdateProfit()
	acct.UpdatedAt = time.Now()

	l.logger.Info("冻结资金",
		zap.String("amount", amount.String()),
		zap.String("available_funds", acct.AvailableFunds.String()),
		zap.String("frozen_funds", acct.FrozenFunds.String()))
	return nil
}

// Unfreeze 解冻资金，冻结资金不足时失败
func (l *AccountLedger) Unfreeze(acct *model.Account, amount decimal.Decimal) error {
	if amount.GreaterThan(acct.FrozenFunds) {
		return fmt.Errorf("%w：需要解冻 %s，实际冻结 %s",
			ErrInsufficientFrozenFunds, amount.String(), acct.FrozenFunds.String())
	}
	acct.FrozenFunds = acct.FrozenFunds.Sub(amount)
	acct.AvailableFunds = acct.AvailableFunds.Add(amount)
	acct.UpdateProfit()
	acct.UpdatedAt = time.Now()

	l.logger.Info("解冻资金",
		zap.String("amount", amount.String()),
		zap.String("available_funds", acct.AvailableFunds.String()),
		zap.String("frozen_funds", acct.FrozenFunds.String()))
	return nil
}

// SetFunds 管理性覆盖可用/冻结资金，随后按持仓市值重算总资产
func (l *AccountLedger) SetFunds(acct *model.Account, available, frozen decimal.Decimal, positions []*model.Position) {
	acct.AvailableFunds = available
	acct.FrozenFunds = frozen
	l.RecomputeTotals(acct, positions)

	l.logger.Info("更新账户资金",
		zap.String("available_funds", available.String()),
		zap.String("frozen_funds", frozen.String()),
		zap.String("total_assets", acct.TotalAssets.String()))
}

// Debit 买入/加仓前扣减可用资金，不足时失败
func (l *AccountLedger) Debit(acct *model.Account, amount decimal.Decimal) error {
	if amount.GreaterThan(acct.AvailableFunds) {
		return fmt.Errorf("%w：需要 %s，实际可用 %s",
			ErrInsufficientFunds, amount.String(), acct.AvailableFunds.String())
	}
	acct.AvailableFunds = acct.AvailableFunds.Sub(amount)
	acct.UpdatedAt = time.Now()
	return nil
}

// Credit 卖出/减仓成功后回笼可用资金
func (l *AccountLedger) Credit(acct *model.Account, amount decimal.Decimal) {
	acct.AvailableFunds = acct.AvailableFunds.Add(amount)
	acct.UpdatedAt = time.Now()
}

// RecomputeTotals 重算总资产（可用+冻结+持仓市值）及盈亏
func (l *AccountLedger) RecomputeTotals(acct *model.Account, positions []*model.Position) {
	totalMarketValue := decimal.Zero
	for _, pos := range positions {
		totalMarketValue = totalMarketValue.Add(pos.MarketValue)
	}
	acct.TotalAssets = acct.AvailableFunds.Add(acct.FrozenFunds).Add(totalMarketValue)
	acct.UpdateProfit()
	acct.UpdatedAt = time.Now()
}
