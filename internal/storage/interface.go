package storage

import (
	"context"
	"errors"
	"time"

	"github.com/life2you_mini/stockledger/internal/model"
)

// 存储后端类型常量
const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// 存储层错误
var (
	ErrAccountNotFound   = errors.New("账户信息不存在")
	ErrPositionNotFound  = errors.New("持仓不存在")
	ErrStrategyNotFound  = errors.New("策略不存在")
	ErrExecutionNotFound = errors.New("执行记录不存在")
)

// StrategyFilter 策略查询条件
type StrategyFilter struct {
	StockCode string
	StockName string
	Action    model.Action
	IsActive  *bool // nil 表示不限
	StartTime time.Time
	EndTime   time.Time
	Order     string // asc/desc，默认desc
}

// ExecutionFilter 执行记录查询条件
type ExecutionFilter struct {
	StrategyID int64
	StockCode  string
	Action     model.Action
	Result     model.ExecutionResult
	StartTime  time.Time
	EndTime    time.Time
	SortBy     string // execution_time/created_at，默认execution_time
	Order      string // asc/desc，默认desc
	Limit      int
}

// ChangeSet 一次逻辑操作产生的全部记录变更，由存储层原子提交。
// 执行记录与持仓/账户变更要么全部落库要么全部不落库。
type ChangeSet struct {
	Account          *model.Account
	UpsertPositions  []*model.Position
	DeletePositions  []string // 按股票代码删除
	UpsertStrategies []*model.Strategy
	InsertExecutions []*model.Execution
	UpdateExecutions []*model.Execution
	DeleteExecutions []int64
}

// Empty 判断变更集是否为空
func (c *ChangeSet) Empty() bool {
	return c.Account == nil &&
		len(c.UpsertPositions) == 0 && len(c.DeletePositions) == 0 &&
		len(c.UpsertStrategies) == 0 &&
		len(c.InsertExecutions) == 0 && len(c.UpdateExecutions) == 0 &&
		len(c.DeleteExecutions) == 0
}

// Storage 定义存储层接口，可以有多种实现（Redis、内存等）
type Storage interface {
	// 基础操作
	Initialize(ctx context.Context) error
	Close(ctx context.Context) error
	Health(ctx context.Context) error

	// 账户操作（单条记录）
	GetAccount(ctx context.Context) (*model.Account, error)

	// 持仓操作
	GetPosition(ctx context.Context, stockCode string) (*model.Position, error)
	ListPositions(ctx context.Context) ([]*model.Position, error)

	// 策略操作
	GetStrategy(ctx context.Context, id int64) (*model.Strategy, error)
	ListStrategies(ctx context.Context, filter StrategyFilter) ([]*model.Strategy, error)
	NextStrategyID(ctx context.Context) (int64, error)

	// 执行记录操作
	GetExecution(ctx context.Context, id int64) (*model.Execution, error)
	ListExecutions(ctx context.Context, filter ExecutionFilter) ([]*model.Execution, error)
	NextExecutionID(ctx context.Context) (int64, error)

	// Apply 原子提交一个变更集
	Apply(ctx context.Context, changes *ChangeSet) error
}
