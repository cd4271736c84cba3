package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/life2you_mini/stockledger/internal/config"
	"github.com/life2you_mini/stockledger/internal/engine"
	"github.com/life2you_mini/stockledger/internal/monitor"
	"github.com/life2you_mini/stockledger/internal/quote"
	"github.com/life2you_mini/stockledger/internal/storage"
)

// LedgerService 持仓账务服务
type LedgerService struct {
	ctx          context.Context
	cancel       context.CancelFunc
	logger       *zap.Logger
	store        storage.Storage
	engine       *engine.Engine
	priceMonitor *monitor.PriceMonitor
	done         chan struct{}
}

// NewLedgerService 创建持仓账务服务
func NewLedgerService(
	parentCtx context.Context,
	cfg *config.Config,
	logger *zap.Logger,
) (*LedgerService, error) {
	// 创建服务上下文
	ctx, cancel := context.WithCancel(parentCtx)

	// 初始化存储后端
	store, err := newStorage(cfg, logger)
	if err != nil {
		cancel()
		return nil, err
	}
	if err := store.Initialize(ctx); err != nil {
		cancel()
		return nil, fmt.Errorf("初始化存储失败: %w", err)
	}

	initialAssets, err := cfg.InitialAssetsDecimal()
	if err != nil {
		cancel()
		return nil, err
	}

	// 创建执行引擎
	eng := engine.NewEngine(store, logger.With(zap.String("component", "engine")), initialAssets)

	// 创建行情源和股价更新器
	quoteSource := quote.NewHTTPSource(
		time.Duration(cfg.Quote.TimeoutSeconds)*time.Second,
		logger.With(zap.String("component", "quote")),
	)
	priceMonitor := monitor.NewPriceMonitor(
		eng,
		quoteSource,
		time.Duration(cfg.Monitor.RefreshIntervalSeconds)*time.Second,
		logger.With(zap.String("component", "price_monitor")),
	)

	return &LedgerService{
		ctx:          ctx,
		cancel:       cancel,
		logger:       logger,
		store:        store,
		engine:       eng,
		priceMonitor: priceMonitor,
		done:         make(chan struct{}),
	}, nil
}

// newStorage 按配置创建存储后端
func newStorage(cfg *config.Config, logger *zap.Logger) (storage.Storage, error) {
	switch cfg.Storage.Backend {
	case storage.BackendRedis:
		return storage.NewRedisStorage(storage.RedisOptions{
			Addr:      fmt.Sprintf("%s:%d", cfg.Storage.Redis.Host, cfg.Storage.Redis.Port),
			Password:  cfg.Storage.Redis.Password,
			DB:        cfg.Storage.Redis.DB,
			KeyPrefix: cfg.Storage.Redis.KeyPrefix,
		}, logger.With(zap.String("component", "storage")))
	case storage.BackendMemory:
		return storage.NewMemoryStorage(logger.With(zap.String("component", "storage"))), nil
	}
	return nil, fmt.Errorf("不支持的存储后端: %s", cfg.Storage.Backend)
}

// Engine 返回执行引擎，供外部接入层（路由、解析层）调用
func (s *LedgerService) Engine() *engine.Engine {
	return s.engine
}

// Start 启动服务
func (s *LedgerService) Start() {
	s.logger.Info("启动持仓账务服务")

	// 启动股价更新器
	go func() {
		defer close(s.done)
		if err := s.priceMonitor.Start(s.ctx); err != nil {
			s.logger.Error("股价更新器启动失败", zap.Error(err))
		}
	}()
}

// Stop 停止服务
func (s *LedgerService) Stop(ctx context.Context) error {
	s.logger.Info("停止持仓账务服务")
	s.cancel()

	// 等待更新器在两轮之间退出
	select {
	case <-s.done:
	case <-ctx.Done():
		s.logger.Warn("等待股价更新器退出超时")
	}

	if err := s.store.Close(ctx); err != nil {
		return err
	}
	s.logger.Info("持仓账务服务已停止")
	return nil
}
