package ledger

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/life2you_mini/stockledger/internal/model"
)

func d(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func assertDecimalEqual(t *testing.T, expected, actual decimal.Decimal) {
	t.Helper()
	assert.True(t, expected.Equal(actual),
		"期望 %s，实际 %s", expected.String(), actual.String())
}

func TestApplyCostBasis_Buy(t *testing.T) {
	tests := []struct {
		name             string
		totalVolume      int64
		originalCost     string
		dynamicCost      string
		volume           int64
		price            string
		expectVolume     int64
		expectOriginal   string
		expectDynamic    string
	}{
		{
			name:           "首次买入",
			totalVolume:    0,
			originalCost:   "0",
			dynamicCost:    "0",
			volume:         100,
			price:          "10",
			expectVolume:   100,
			expectOriginal: "10",
			expectDynamic:  "10",
		},
		{
			name:           "加仓后成本为量价加权平均",
			totalVolume:    100,
			originalCost:   "10",
			dynamicCost:    "10",
			volume:         100,
			price:          "12",
			expectVolume:   200,
			expectOriginal: "11",
			expectDynamic:  "11",
		},
		{
			name:           "买入重置动态成本",
			totalVolume:    100,
			originalCost:   "10",
			dynamicCost:    "8",
			volume:         100,
			price:          "10",
			expectVolume:   200,
			expectOriginal: "10",
			expectDynamic:  "10",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome, err := ApplyCostBasis(
				tt.totalVolume, d(tt.originalCost), d(tt.dynamicCost),
				tt.volume, d(tt.price), model.ActionBuy)
			require.NoError(t, err)
			assert.Equal(t, tt.expectVolume, outcome.TotalVolume)
			assertDecimalEqual(t, d(tt.expectOriginal), outcome.OriginalCost)
			assertDecimalEqual(t, d(tt.expectDynamic), outcome.DynamicCost)
			assertDecimalEqual(t, decimal.Zero, outcome.RealizedProfit)
			assert.False(t, outcome.Liquidated)
		})
	}
}

func TestApplyCostBasis_Sell(t *testing.T) {
	t.Run("部分卖出摊薄动态成本", func(t *testing.T) {
		// 持仓200股动态成本11，15元卖出50股：实现盈亏200，
		// 剩余动态成本 (11×200−200)/150
		outcome, err := ApplyCostBasis(200, d("11"), d("11"), 50, d("15"), model.ActionSell)
		require.NoError(t, err)
		assert.Equal(t, int64(150), outcome.TotalVolume)
		assertDecimalEqual(t, d("200"), outcome.RealizedProfit)
		assertDecimalEqual(t, d("11"), outcome.OriginalCost)
		expected := d("2000").Div(d("150"))
		assertDecimalEqual(t, expected, outcome.DynamicCost)
	})

	t.Run("清仓重置所有成本", func(t *testing.T) {
		outcome, err := ApplyCostBasis(100, d("10"), d("9"), 100, d("12"), model.ActionSell)
		require.NoError(t, err)
		assert.Equal(t, int64(0), outcome.TotalVolume)
		assertDecimalEqual(t, decimal.Zero, outcome.OriginalCost)
		assertDecimalEqual(t, decimal.Zero, outcome.DynamicCost)
		assertDecimalEqual(t, d("300"), outcome.RealizedProfit)
		assert.True(t, outcome.Liquidated)
	})

	t.Run("卖出超过持仓量失败", func(t *testing.T) {
		_, err := ApplyCostBasis(100, d("10"), d("10"), 101, d("12"), model.ActionSell)
		assert.ErrorIs(t, err, ErrInsufficientPosition)
	})

	t.Run("动态成本摊薄到负数时钳位为0", func(t *testing.T) {
		// 动态成本1，100元卖出50股，实现盈亏4950超过剩余成本
		outcome, err := ApplyCostBasis(100, d("10"), d("1"), 50, d("100"), model.ActionSell)
		require.NoError(t, err)
		assertDecimalEqual(t, decimal.Zero, outcome.DynamicCost)
	})
}

func TestApplyCostBasis_TrimSharesSellPath(t *testing.T) {
	// trim 与 sell 共用同一条成本计算路径，包括负数钳位
	sellOutcome, err := ApplyCostBasis(100, d("10"), d("1"), 50, d("100"), model.ActionSell)
	require.NoError(t, err)
	trimOutcome, err := ApplyCostBasis(100, d("10"), d("1"), 50, d("100"), model.ActionTrim)
	require.NoError(t, err)

	assertDecimalEqual(t, sellOutcome.DynamicCost, trimOutcome.DynamicCost)
	assertDecimalEqual(t, sellOutcome.RealizedProfit, trimOutcome.RealizedProfit)
	assert.Equal(t, sellOutcome.TotalVolume, trimOutcome.TotalVolume)
}

func TestApplyCostBasis_Hold(t *testing.T) {
	outcome, err := ApplyCostBasis(100, d("10"), d("9"), 0, d("12"), model.ActionHold)
	require.NoError(t, err)
	assert.Equal(t, int64(100), outcome.TotalVolume)
	assertDecimalEqual(t, d("10"), outcome.OriginalCost)
	assertDecimalEqual(t, d("9"), outcome.DynamicCost)
}

func TestApplyCostBasis_UnknownAction(t *testing.T) {
	_, err := ApplyCostBasis(100, d("10"), d("10"), 10, d("12"), model.Action("short"))
	assert.ErrorIs(t, err, ErrUnknownAction)
}

// 加权成本不变量：任意买入序列后，原始成本等于全部买入的量价加权平均
func TestApplyCostBasis_WeightedCostInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	tolerance := d("0.000001")

	for round := 0; round < 20; round++ {
		var totalVolume int64
		originalCost := decimal.Zero
		dynamicCost := decimal.Zero

		// 暴力重算基准
		sumAmount := decimal.Zero
		var sumVolume int64

		steps := 5 + rng.Intn(45)
		for i := 0; i < steps; i++ {
			volume := int64(1 + rng.Intn(1000))
			// 价格范围 0.01 ~ 100.00，两位小数
			price := decimal.New(int64(1+rng.Intn(10000)), -2)

			action := model.ActionBuy
			if i > 0 {
				action = model.ActionAdd
			}
			outcome, err := ApplyCostBasis(totalVolume, originalCost, dynamicCost, volume, price, action)
			require.NoError(t, err)
			totalVolume = outcome.TotalVolume
			originalCost = outcome.OriginalCost
			dynamicCost = outcome.DynamicCost

			sumAmount = sumAmount.Add(price.Mul(decimal.NewFromInt(volume)))
			sumVolume += volume

			expected := sumAmount.Div(decimal.NewFromInt(sumVolume))
			diff := expected.Sub(originalCost).Abs()
			assert.True(t, diff.LessThan(tolerance),
				"第%d轮第%d步：期望加权成本 %s，实际 %s", round, i, expected.String(), originalCost.String())
		}

		assert.GreaterOrEqual(t, totalVolume, int64(0))
	}
}

// 完整场景：买入→加仓→卖出，对应常见的调仓序列
func TestApplyCostBasis_Scenario(t *testing.T) {
	// 买入100股@10
	outcome, err := ApplyCostBasis(0, decimal.Zero, decimal.Zero, 100, d("10"), model.ActionBuy)
	require.NoError(t, err)
	assertDecimalEqual(t, d("10"), outcome.OriginalCost)

	// 加仓100股@12，加权成本11
	outcome, err = ApplyCostBasis(outcome.TotalVolume, outcome.OriginalCost, outcome.DynamicCost, 100, d("12"), model.ActionAdd)
	require.NoError(t, err)
	assert.Equal(t, int64(200), outcome.TotalVolume)
	assertDecimalEqual(t, d("11"), outcome.OriginalCost)

	// 卖出50股@15：实现盈亏 (15−11)×50=200，动态成本 (11×200−200)/150
	outcome, err = ApplyCostBasis(outcome.TotalVolume, outcome.OriginalCost, outcome.DynamicCost, 50, d("15"), model.ActionSell)
	require.NoError(t, err)
	assert.Equal(t, int64(150), outcome.TotalVolume)
	assertDecimalEqual(t, d("200"), outcome.RealizedProfit)
	assertDecimalEqual(t, d("2000").Div(d("150")), outcome.DynamicCost)
	// 原始成本不受卖出影响
	assertDecimalEqual(t, d("11"), outcome.OriginalCost)
}
