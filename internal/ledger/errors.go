package ledger

import "errors"

// 账务错误类型，调用方通过 errors.Is 判断
var (
	// ErrInsufficientPosition 卖出/减仓数量超过当前持仓量
	ErrInsufficientPosition = errors.New("卖出数量超过当前持仓量")
	// ErrNoPositionForExit 无持仓时发起卖出/减仓
	ErrNoPositionForExit = errors.New("没有持仓，无法卖出")
	// ErrInsufficientFunds 可用资金不足
	ErrInsufficientFunds = errors.New("可用资金不足")
	// ErrInsufficientFrozenFunds 冻结资金不足
	ErrInsufficientFrozenFunds = errors.New("冻结资金不足")
	// ErrInvalidActionVolume 计算出的交易量为零或负数
	ErrInvalidActionVolume = errors.New("无效的交易数量")
	// ErrMissingOriginalRatio 减仓缺少原始买入仓位比例，回退到按持仓比例卖出
	ErrMissingOriginalRatio = errors.New("缺少原始买入仓位比例")
	// ErrUnknownAction 未知的交易动作
	ErrUnknownAction = errors.New("未知的交易动作")
)
