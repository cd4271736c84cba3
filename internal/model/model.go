package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Action 交易动作类型
type Action string

// 交易动作常量
const (
	ActionBuy  Action = "buy"  // 买入建仓
	ActionSell Action = "sell" // 卖出
	ActionAdd  Action = "add"  // 加仓
	ActionTrim Action = "trim" // 减仓（按原始仓位比例）
	ActionHold Action = "hold" // 持有观望
)

// Valid 判断动作是否合法
func (a Action) Valid() bool {
	switch a {
	case ActionBuy, ActionSell, ActionAdd, ActionTrim, ActionHold:
		return true
	}
	return false
}

// IsEntry 是否为建仓/加仓动作
func (a Action) IsEntry() bool {
	return a == ActionBuy || a == ActionAdd
}

// IsExit 是否为卖出/减仓动作
func (a Action) IsExit() bool {
	return a == ActionSell || a == ActionTrim
}

// ExecutionStatus 策略执行状态
type ExecutionStatus string

// 策略执行状态常量
const (
	StatusPending   ExecutionStatus = "pending"   // 未执行
	StatusPartial   ExecutionStatus = "partial"   // 部分执行
	StatusCompleted ExecutionStatus = "completed" // 已完成
)

// Valid 判断执行状态是否合法
func (s ExecutionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusPartial, StatusCompleted:
		return true
	}
	return false
}

// ExecutionResult 单次执行结果
type ExecutionResult string

// 执行结果常量
const (
	ResultSuccess ExecutionResult = "success"
	ResultFailed  ExecutionResult = "failed"
	ResultPartial ExecutionResult = "partial"
)

// Position 股票持仓
type Position struct {
	StockCode             string          `json:"stock_code"`              // 股票代码
	StockName             string          `json:"stock_name"`              // 股票名称
	TotalVolume           int64           `json:"total_volume"`            // 持仓数量
	OriginalCost          decimal.Decimal `json:"original_cost"`           // 原始平均成本
	DynamicCost           decimal.Decimal `json:"dynamic_cost"`            // 动态成本价（随已实现盈亏摊薄）
	TotalAmount           decimal.Decimal `json:"total_amount"`            // 持仓金额
	LatestPrice           decimal.Decimal `json:"latest_price"`            // 最新价格
	MarketValue           decimal.Decimal `json:"market_value"`            // 市值
	FloatingProfit        decimal.Decimal `json:"floating_profit"`         // 浮动盈亏
	FloatingProfitRatio   decimal.Decimal `json:"floating_profit_ratio"`   // 浮动盈亏比例
	OriginalPositionRatio decimal.Decimal `json:"original_position_ratio"` // 原始买入仓位比例（减仓基准）
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

// Clone 返回持仓的深拷贝
func (p *Position) Clone() *Position {
	cp := *p
	return &cp
}

// Account 账户资金（单例）
type Account struct {
	InitialAssets    decimal.Decimal `json:"initial_assets"`     // 初始资金（不可变基准）
	TotalAssets      decimal.Decimal `json:"total_assets"`       // 资产总值
	AvailableFunds   decimal.Decimal `json:"available_funds"`    // 可用资金
	FrozenFunds      decimal.Decimal `json:"frozen_funds"`       // 冻结资金
	TotalProfit      decimal.Decimal `json:"total_profit"`       // 总盈亏
	TotalProfitRatio decimal.Decimal `json:"total_profit_ratio"` // 总收益率(%)
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Clone 返回账户的深拷贝
func (a *Account) Clone() *Account {
	cp := *a
	return &cp
}

// UpdateProfit 按初始资金重算总盈亏和收益率
func (a *Account) UpdateProfit() {
	a.TotalProfit = a.TotalAssets.Sub(a.InitialAssets)
	if a.InitialAssets.IsPositive() {
		a.TotalProfitRatio = a.TotalProfit.Div(a.InitialAssets).Mul(decimal.NewFromInt(100))
	} else {
		a.TotalProfitRatio = decimal.Zero
	}
}

// Strategy 股票交易策略
type Strategy struct {
	ID              int64            `json:"id"`
	StockName       string           `json:"stock_name"`
	StockCode       string           `json:"stock_code"`
	Action          Action           `json:"action"`
	PositionRatio   decimal.Decimal  `json:"position_ratio"`              // 操作比例(%)，语义随动作而异
	PriceMin        *decimal.Decimal `json:"price_min,omitempty"`         // 最小执行价
	PriceMax        *decimal.Decimal `json:"price_max,omitempty"`         // 最大执行价
	TakeProfitPrice *decimal.Decimal `json:"take_profit_price,omitempty"` // 止盈价
	StopLossPrice   *decimal.Decimal `json:"stop_loss_price,omitempty"`   // 止损价
	OtherConditions string           `json:"other_conditions,omitempty"`  // 其他操作条件
	Reason          string           `json:"reason,omitempty"`            // 操作理由
	TargetVolume    int64            `json:"target_volume"`               // 目标交易量（执行状态重算基准）
	ExecutionStatus ExecutionStatus  `json:"execution_status"`
	IsActive        bool             `json:"is_active"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// Clone 返回策略的深拷贝
func (s *Strategy) Clone() *Strategy {
	cp := *s
	if s.PriceMin != nil {
		v := *s.PriceMin
		cp.PriceMin = &v
	}
	if s.PriceMax != nil {
		v := *s.PriceMax
		cp.PriceMax = &v
	}
	if s.TakeProfitPrice != nil {
		v := *s.TakeProfitPrice
		cp.TakeProfitPrice = &v
	}
	if s.StopLossPrice != nil {
		v := *s.StopLossPrice
		cp.StopLossPrice = &v
	}
	return &cp
}

// Execution 策略执行记录（只追加）
type Execution struct {
	ID                    int64           `json:"id"`
	StrategyID            int64           `json:"strategy_id"`
	StockCode             string          `json:"stock_code"`
	StockName             string          `json:"stock_name"`
	Action                Action          `json:"action"`
	ExecutionPrice        decimal.Decimal `json:"execution_price"`
	Volume                int64           `json:"volume"`
	PositionRatio         decimal.Decimal `json:"position_ratio"`          // 成交时的仓位比例
	OriginalPositionRatio decimal.Decimal `json:"original_position_ratio"` // 成交时的原始买入仓位比例
	ExecutionTime         time.Time       `json:"execution_time"`
	ExecutionResult       ExecutionResult `json:"execution_result"`
	Remarks               string          `json:"remarks,omitempty"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

// Clone 返回执行记录的深拷贝
func (e *Execution) Clone() *Execution {
	cp := *e
	return &cp
}
