package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/life2you_mini/stockledger/internal/mocks"
	"github.com/life2you_mini/stockledger/internal/model"
	"github.com/life2you_mini/stockledger/internal/quote"
)

func newTestMonitor(t *testing.T, refresher PositionRefresher, quotes quote.Source) *PriceMonitor {
	return NewPriceMonitor(refresher, quotes, 0, zaptest.NewLogger(t))
}

// at 构造北京时间的时间点
func at(weekday time.Weekday, hour, minute int) time.Time {
	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		loc = time.FixedZone("CST", 8*3600)
	}
	// 2025-06-02 是周一
	base := time.Date(2025, 6, 2, hour, minute, 0, 0, loc)
	return base.AddDate(0, 0, int(weekday-time.Monday))
}

func TestIsTradingTime(t *testing.T) {
	tests := []struct {
		name   string
		now    time.Time
		expect bool
	}{
		{"周一早盘开盘", at(time.Monday, 9, 30), true},
		{"周一早盘收盘", at(time.Monday, 11, 30), true},
		{"周一午休", at(time.Monday, 12, 0), false},
		{"周一午盘", at(time.Monday, 14, 0), true},
		{"周一午盘收盘", at(time.Monday, 15, 0), true},
		{"周一收盘后", at(time.Monday, 15, 1), false},
		{"周一开盘前", at(time.Monday, 9, 29), false},
		{"周五午盘", at(time.Friday, 14, 0), true},
		{"周六盘中时刻", at(time.Saturday, 10, 0), false},
		{"周日盘中时刻", at(time.Sunday, 10, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestMonitor(t, new(mocks.PositionRefresher), new(mocks.QuoteSource))
			m.now = func() time.Time { return tt.now }
			assert.Equal(t, tt.expect, m.IsTradingTime())
		})
	}
}

func TestCurrentInterval(t *testing.T) {
	t.Run("交易时段用短间隔", func(t *testing.T) {
		m := newTestMonitor(t, new(mocks.PositionRefresher), new(mocks.QuoteSource))
		m.now = func() time.Time { return at(time.Monday, 10, 0) }
		assert.Equal(t, TradingInterval, m.CurrentInterval())
	})

	t.Run("非交易时段用长间隔", func(t *testing.T) {
		m := newTestMonitor(t, new(mocks.PositionRefresher), new(mocks.QuoteSource))
		m.now = func() time.Time { return at(time.Saturday, 10, 0) }
		assert.Equal(t, NonTradingInterval, m.CurrentInterval())
	})

	t.Run("配置的固定间隔优先", func(t *testing.T) {
		m := NewPriceMonitor(new(mocks.PositionRefresher), new(mocks.QuoteSource), time.Minute, zaptest.NewLogger(t))
		m.now = func() time.Time { return at(time.Monday, 10, 0) }
		assert.Equal(t, time.Minute, m.CurrentInterval())
	})
}

func TestRefreshOnce(t *testing.T) {
	ctx := context.Background()

	t.Run("去重取价并整批应用", func(t *testing.T) {
		refresher := new(mocks.PositionRefresher)
		quotes := new(mocks.QuoteSource)
		m := newTestMonitor(t, refresher, quotes)

		refresher.On("ListPositions", ctx).Return([]*model.Position{
			{StockCode: "600000"},
			{StockCode: "000001"},
			{StockCode: "600000"}, // 重复代码只取一次行情
		}, nil)
		quotes.On("GetLatestPrice", ctx, "600000").Return(decimal.RequireFromString("10.5"), nil).Once()
		quotes.On("GetLatestPrice", ctx, "000001").Return(decimal.RequireFromString("8.2"), nil).Once()
		refresher.On("RefreshPositions", ctx, map[string]decimal.Decimal{
			"600000": decimal.RequireFromString("10.5"),
			"000001": decimal.RequireFromString("8.2"),
		}).Return(2, nil)

		require.NoError(t, m.refreshOnce(ctx))
		refresher.AssertExpectations(t)
		quotes.AssertExpectations(t)
	})

	t.Run("单只股票取价失败不影响整批", func(t *testing.T) {
		refresher := new(mocks.PositionRefresher)
		quotes := new(mocks.QuoteSource)
		m := newTestMonitor(t, refresher, quotes)

		refresher.On("ListPositions", ctx).Return([]*model.Position{
			{StockCode: "600000"},
			{StockCode: "000001"},
		}, nil)
		quotes.On("GetLatestPrice", ctx, "600000").Return(decimal.RequireFromString("10.5"), nil)
		quotes.On("GetLatestPrice", ctx, "000001").Return(decimal.Zero, quote.ErrUnavailable)
		refresher.On("RefreshPositions", ctx, map[string]decimal.Decimal{
			"600000": decimal.RequireFromString("10.5"),
		}).Return(1, nil)

		require.NoError(t, m.refreshOnce(ctx))
		refresher.AssertExpectations(t)
	})

	t.Run("全部取价失败时不应用", func(t *testing.T) {
		refresher := new(mocks.PositionRefresher)
		quotes := new(mocks.QuoteSource)
		m := newTestMonitor(t, refresher, quotes)

		refresher.On("ListPositions", ctx).Return([]*model.Position{{StockCode: "600000"}}, nil)
		quotes.On("GetLatestPrice", ctx, "600000").Return(decimal.Zero, quote.ErrUnavailable)

		require.NoError(t, m.refreshOnce(ctx))
		refresher.AssertNotCalled(t, "RefreshPositions", mock.Anything, mock.Anything)
	})

	t.Run("没有持仓时不取行情", func(t *testing.T) {
		refresher := new(mocks.PositionRefresher)
		quotes := new(mocks.QuoteSource)
		m := newTestMonitor(t, refresher, quotes)

		refresher.On("ListPositions", ctx).Return([]*model.Position{}, nil)

		require.NoError(t, m.refreshOnce(ctx))
		quotes.AssertNotCalled(t, "GetLatestPrice", mock.Anything, mock.Anything)
	})
}

func TestStart_StopsOnContextCancel(t *testing.T) {
	refresher := new(mocks.PositionRefresher)
	quotes := new(mocks.QuoteSource)
	m := NewPriceMonitor(refresher, quotes, time.Hour, zaptest.NewLogger(t))

	refresher.On("ListPositions", mock.Anything).Return([]*model.Position{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- m.Start(ctx)
	}()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("更新循环没有在上下文取消后退出")
	}
}
