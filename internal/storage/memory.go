package storage

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/life2you_mini/stockledger/internal/model"
)

// MemoryStorage 内存存储实现，主要用于测试和单机试运行
type MemoryStorage struct {
	mu              sync.RWMutex
	logger          *zap.Logger
	account         *model.Account
	positions       map[string]*model.Position
	strategies      map[int64]*model.Strategy
	executions      map[int64]*model.Execution
	nextStrategyID  int64
	nextExecutionID int64
}

// NewMemoryStorage 创建内存存储
func NewMemoryStorage(logger *zap.Logger) *MemoryStorage {
	return &MemoryStorage{
		logger:     logger,
		positions:  make(map[string]*model.Position),
		strategies: make(map[int64]*model.Strategy),
		executions: make(map[int64]*model.Execution),
	}
}

// Initialize 初始化内存存储
func (s *MemoryStorage) Initialize(ctx context.Context) error {
	s.logger.Info("内存存储初始化成功")
	return nil
}

// Close 关闭内存存储
func (s *MemoryStorage) Close(ctx context.Context) error {
	return nil
}

// Health 健康检查
func (s *MemoryStorage) Health(ctx context.Context) error {
	return nil
}

// GetAccount 获取账户记录
func (s *MemoryStorage) GetAccount(ctx context.Context) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.account == nil {
		return nil, ErrAccountNotFound
	}
	return s.account.Clone(), nil
}

// GetPosition 获取单个持仓
func (s *MemoryStorage) GetPosition(ctx context.Context, stockCode string) (*model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pos, ok := s.positions[stockCode]
	if !ok {
		return nil, ErrPositionNotFound
	}
	return pos.Clone(), nil
}

// ListPositions 获取所有持仓
func (s *MemoryStorage) ListPositions(ctx context.Context) ([]*model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*model.Position, 0, len(s.positions))
	for _, pos := range s.positions {
		result = append(result, pos.Clone())
	}
	return result, nil
}

// GetStrategy 获取单个策略
func (s *MemoryStorage) GetStrategy(ctx context.Context, id int64) (*model.Strategy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	strategy, ok := s.strategies[id]
	if !ok {
		return nil, ErrStrategyNotFound
	}
	return strategy.Clone(), nil
}

// ListStrategies 按条件查询策略
func (s *MemoryStorage) ListStrategies(ctx context.Context, filter StrategyFilter) ([]*model.Strategy, error) {
	s.mu.RLock()
	all := make([]*model.Strategy, 0, len(s.strategies))
	for _, strategy := range s.strategies {
		all = append(all, strategy.Clone())
	}
	s.mu.RUnlock()
	return filterStrategies(all, filter), nil
}

// NextStrategyID 分配策略ID
func (s *MemoryStorage) NextStrategyID(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextStrategyID++
	return s.nextStrategyID, nil
}

// GetExecution 获取单条执行记录
func (s *MemoryStorage) GetExecution(ctx context.Context, id int64) (*model.Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	execution, ok := s.executions[id]
	if !ok {
		return nil, ErrExecutionNotFound
	}
	return execution.Clone(), nil
}

// ListExecutions 按条件查询执行记录
func (s *MemoryStorage) ListExecutions(ctx context.Context, filter ExecutionFilter) ([]*model.Execution, error) {
	s.mu.RLock()
	all := make([]*model.Execution, 0, len(s.executions))
	for _, execution := range s.executions {
		all = append(all, execution.Clone())
	}
	s.mu.RUnlock()
	return filterExecutions(all, filter), nil
}

// NextExecutionID 分配执行记录ID
func (s *MemoryStorage) NextExecutionID(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextExecutionID++
	return s.nextExecutionID, nil
}

// Apply 在单个锁内提交全部变更
func (s *MemoryStorage) Apply(ctx context.Context, changes *ChangeSet) error {
	if changes == nil || changes.Empty() {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if changes.Account != nil {
		s.account = changes.Account.Clone()
	}
	for _, pos := range changes.UpsertPositions {
		s.positions[pos.StockCode] = pos.Clone()
	}
	for _, code := range changes.DeletePositions {
		delete(s.positions, code)
	}
	for _, strategy := range changes.UpsertStrategies {
		s.strategies[strategy.ID] = strategy.Clone()
	}
	for _, execution := range changes.InsertExecutions {
		s.executions[execution.ID] = execution.Clone()
	}
	for _, execution := range changes.UpdateExecutions {
		s.executions[execution.ID] = execution.Clone()
	}
	for _, id := range changes.DeleteExecutions {
		delete(s.executions, id)
	}
	return nil
}
