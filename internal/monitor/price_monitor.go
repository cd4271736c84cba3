package monitor

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/life2you_mini/stockledger/internal/model"
	"github.com/life2you_mini/stockledger/internal/quote"
)

// 常量定义
const (
	TradingInterval    = 30 * time.Second // 交易时段更新间隔
	NonTradingInterval = 5 * time.Minute  // 非交易时段更新间隔
)

// A股交易时段
var (
	morningStart   = sessionTime{9, 30}
	morningEnd     = sessionTime{11, 30}
	afternoonStart = sessionTime{13, 0}
	afternoonEnd   = sessionTime{15, 0}
)

type sessionTime struct {
	hour, minute int
}

func (s sessionTime) minutes() int {
	return s.hour*60 + s.minute
}

// PositionRefresher 持仓刷新入口。
// 刷新必须走与交易执行相同的事务入口，不允许直接改持仓字段。
type PositionRefresher interface {
	ListPositions(ctx context.Context) ([]*model.Position, error)
	RefreshPositions(ctx context.Context, prices map[string]decimal.Decimal) (int, error)
}

// PriceMonitor 股价自动更新器。
// 单协程循环：按交易时段选择更新间隔，批量拉取去重后的股票行情，
// 整批应用后再休眠，两轮之间检查停止信号。
type PriceMonitor struct {
	logger         *zap.Logger
	refresher      PositionRefresher
	quotes         quote.Source
	customInterval time.Duration // 配置的固定间隔，0表示按交易时段自动调整
	location       *time.Location
	now            func() time.Time
}

// NewPriceMonitor 创建股价更新器。interval 为0时按交易时段自动调整间隔。
func NewPriceMonitor(
	refresher PositionRefresher,
	quotes quote.Source,
	interval time.Duration,
	logger *zap.Logger,
) *PriceMonitor {
	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		loc = time.FixedZone("CST", 8*3600)
	}
	return &PriceMonitor{
		logger:         logger,
		refresher:      refresher,
		quotes:         quotes,
		customInterval: interval,
		location:       loc,
		now:            time.Now,
	}
}

// IsTradingTime 判断当前是否为交易时间（工作日的两个交易时段）
func (m *PriceMonitor) IsTradingTime() bool {
	now := m.now().In(m.location)
	weekday := now.Weekday()
	if weekday == time.Saturday || weekday == time.Sunday {
		return false
	}

	minutes := now.Hour()*60 + now.Minute()
	inMorning := minutes >= morningStart.minutes() && minutes <= morningEnd.minutes()
	inAfternoon := minutes >= afternoonStart.minutes() && minutes <= afternoonEnd.minutes()
	return inMorning || inAfternoon
}

// CurrentInterval 获取当前应该使用的更新间隔
func (m *PriceMonitor) CurrentInterval() time.Duration {
	if m.customInterval > 0 {
		return m.customInterval
	}
	if m.IsTradingTime() {
		return TradingInterval
	}
	return NonTradingInterval
}

// Start 启动更新循环，ctx 取消后在两轮之间退出
func (m *PriceMonitor) Start(ctx context.Context) error {
	m.logger.Info("股价更新器启动")

	// 立即执行一次刷新
	if err := m.refreshOnce(ctx); err != nil {
		m.logger.Error("首次刷新持仓市值失败", zap.Error(err))
	}

	for {
		interval := m.CurrentInterval()
		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			m.logger.Info("股价更新器已停止")
			return nil
		case <-timer.C:
			if err := m.refreshOnce(ctx); err != nil {
				// 单轮失败不终止循环，下个周期重试
				m.logger.Error("刷新持仓市值失败", zap.Error(err))
			}
		}
	}
}

// refreshOnce 执行一轮刷新：去重股票代码、逐个取价、整批应用
func (m *PriceMonitor) refreshOnce(ctx context.Context) error {
	positions, err := m.refresher.ListPositions(ctx)
	if err != nil {
		return err
	}
	if len(positions) == 0 {
		m.logger.Debug("当前没有需要更新的持仓")
		return nil
	}

	// 按代码去重，避免重复请求行情
	codes := make(map[string]struct{}, len(positions))
	for _, pos := range positions {
		codes[pos.StockCode] = struct{}{}
	}

	prices := make(map[string]decimal.Decimal, len(codes))
	for code := range codes {
		price, err := m.quotes.GetLatestPrice(ctx, code)
		if err != nil {
			// 单只股票取价失败不影响整批
			m.logger.Warn("获取股票行情失败，本轮跳过",
				zap.String("stock_code", code),
				zap.Error(err))
			continue
		}
		prices[code] = price
	}
	if len(prices) == 0 {
		m.logger.Warn("本轮未获取到任何行情")
		return nil
	}

	updated, err := m.refresher.RefreshPositions(ctx, prices)
	if err != nil {
		return err
	}
	m.logger.Info("成功更新持仓市值",
		zap.Int("updated", updated),
		zap.Bool("trading_time", m.IsTradingTime()))
	return nil
}
