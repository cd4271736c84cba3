package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/life2you_mini/stockledger/internal/model"
)

// CostOutcome 一次成交对成本字段的影响
type CostOutcome struct {
	TotalVolume    int64           // 成交后持仓数量
	OriginalCost   decimal.Decimal // 成交后原始平均成本
	DynamicCost    decimal.Decimal // 成交后动态成本
	RealizedProfit decimal.Decimal // 本次实现盈亏（仅卖出/减仓非零）
	Liquidated     bool            // 是否清仓（清仓时成本字段已归零）
}

// ApplyCostBasis 按股票软件风格的动态成本算法计算一次成交后的成本状态。
//
// 买入/加仓：原始成本取成交前后的量价加权平均，动态成本重置为原始成本。
// 卖出/减仓：先按动态成本计算实现盈亏，再将剩余持仓的动态成本摊薄为
// (动态成本×原持仓 − 实现盈亏) / 剩余数量，负值钳位为0；清仓时成本全部归零。
// hold 不改变任何字段。
//
// 所有成本运算使用 decimal，禁止二进制浮点参与。
func ApplyCostBasis(
	totalVolume int64,
	originalCost decimal.Decimal,
	dynamicCost decimal.Decimal,
	volume int64,
	price decimal.Decimal,
	action model.Action,
) (CostOutcome, error) {
	decVolume := decimal.NewFromInt(volume)
	decTotal := decimal.NewFromInt(totalVolume)

	switch action {
	case model.ActionBuy, model.ActionAdd:
		newTotal := totalVolume + volume
		var newCost decimal.Decimal
		if newTotal > 0 {
			totalCost := originalCost.Mul(decTotal).Add(price.Mul(decVolume))
			newCost = totalCost.Div(decimal.NewFromInt(newTotal))
		} else {
			newCost = price
		}
		return CostOutcome{
			TotalVolume:    newTotal,
			OriginalCost:   newCost,
			DynamicCost:    newCost,
			RealizedProfit: decimal.Zero,
		}, nil

	case model.ActionSell, model.ActionTrim:
		if volume > totalVolume {
			return CostOutcome{}, ErrInsufficientPosition
		}
		realized := price.Sub(dynamicCost).Mul(decVolume)
		remaining := totalVolume - volume
		if remaining == 0 {
			// 清仓：重置所有成本
			return CostOutcome{
				TotalVolume:    0,
				OriginalCost:   decimal.Zero,
				DynamicCost:    decimal.Zero,
				RealizedProfit: realized,
				Liquidated:     true,
			}, nil
		}
		newDynamic := dynamicCost.Mul(decTotal).Sub(realized).Div(decimal.NewFromInt(remaining))
		// 动态成本只反映剩余持仓的内在成本，摊薄到负数时钳位为0
		if newDynamic.IsNegative() {
			newDynamic = decimal.Zero
		}
		return CostOutcome{
			TotalVolume:    remaining,
			OriginalCost:   originalCost,
			DynamicCost:    newDynamic,
			RealizedProfit: realized,
		}, nil

	case model.ActionHold:
		// hold 不参与成本计算
		return CostOutcome{
			TotalVolume:    totalVolume,
			OriginalCost:   originalCost,
			DynamicCost:    dynamicCost,
			RealizedProfit: decimal.Zero,
		}, nil
	}

	return CostOutcome{}, ErrUnknownAction
}
