package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/life2you_mini/stockledger/internal/model"
)

// Redis 键常量（拼接在配置的key_prefix之后）
const (
	keyAccount        = "account"
	keyPositionPrefix = "position:"
	keyPositionCodes  = "position:codes"

	keyStrategyPrefix = "strategy:"
	keyStrategyIDs    = "strategy:ids"
	keyStrategySeq    = "strategy:seq"

	keyExecutionPrefix = "execution:"
	keyExecutionIDs    = "execution:ids"
	keyExecutionSeq    = "execution:seq"
)

// RedisOptions Redis连接配置
type RedisOptions struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// RedisStorage Redis存储实现
type RedisStorage struct {
	client    *redis.Client
	keyPrefix string
	logger    *zap.Logger
}

// NewRedisStorage 创建Redis存储并测试连接
func NewRedisStorage(opts RedisOptions, logger *zap.Logger) (*RedisStorage, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
		MaxRetries:   3,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis连接失败: %w", err)
	}

	return &RedisStorage{
		client:    client,
		keyPrefix: opts.KeyPrefix,
		logger:    logger,
	}, nil
}

// Initialize 初始化Redis存储
func (s *RedisStorage) Initialize(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		s.logger.Error("Redis连接失败", zap.Error(err))
		return fmt.Errorf("redis连接失败: %w", err)
	}
	s.logger.Info("Redis存储初始化成功")
	return nil
}

// Close 关闭Redis连接
func (s *RedisStorage) Close(ctx context.Context) error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("关闭Redis连接失败: %w", err)
	}
	s.logger.Info("Redis连接已关闭")
	return nil
}

// Health 检查Redis健康状态
func (s *RedisStorage) Health(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStorage) key(parts ...string) string {
	k := s.keyPrefix
	for _, p := range parts {
		k += p
	}
	return k
}

func (s *RedisStorage) getJSON(ctx context.Context, key string, dest interface{}, notFound error) error {
	data, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return notFound
	}
	if err != nil {
		return fmt.Errorf("读取 %s 失败: %w", key, err)
	}
	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return fmt.Errorf("反序列化 %s 失败: %w", key, err)
	}
	return nil
}

// GetAccount 获取账户记录
func (s *RedisStorage) GetAccount(ctx context.Context) (*model.Account, error) {
	var acct model.Account
	if err := s.getJSON(ctx, s.key(keyAccount), &acct, ErrAccountNotFound); err != nil {
		return nil, err
	}
	return &acct, nil
}

// GetPosition 获取单个持仓
func (s *RedisStorage) GetPosition(ctx context.Context, stockCode string) (*model.Position, error) {
	var pos model.Position
	if err := s.getJSON(ctx, s.key(keyPositionPrefix, stockCode), &pos, ErrPositionNotFound); err != nil {
		return nil, err
	}
	return &pos, nil
}

// ListPositions 获取所有持仓
func (s *RedisStorage) ListPositions(ctx context.Context) ([]*model.Position, error) {
	codes, err := s.client.SMembers(ctx, s.key(keyPositionCodes)).Result()
	if err != nil {
		return nil, fmt.Errorf("读取持仓代码集合失败: %w", err)
	}

	positions := make([]*model.Position, 0, len(codes))
	for _, code := range codes {
		pos, err := s.GetPosition(ctx, code)
		if errors.Is(err, ErrPositionNotFound) {
			// 集合与记录不一致时跳过
			s.logger.Warn("持仓集合中的代码没有对应记录", zap.String("stock_code", code))
			continue
		}
		if err != nil {
			return nil, err
		}
		positions = append(positions, pos)
	}
	return positions, nil
}

// GetStrategy 获取单个策略
func (s *RedisStorage) GetStrategy(ctx context.Context, id int64) (*model.Strategy, error) {
	var strategy model.Strategy
	key := s.key(keyStrategyPrefix, strconv.FormatInt(id, 10))
	if err := s.getJSON(ctx, key, &strategy, ErrStrategyNotFound); err != nil {
		return nil, err
	}
	return &strategy, nil
}

// ListStrategies 按条件查询策略
func (s *RedisStorage) ListStrategies(ctx context.Context, filter StrategyFilter) ([]*model.Strategy, error) {
	ids, err := s.client.SMembers(ctx, s.key(keyStrategyIDs)).Result()
	if err != nil {
		return nil, fmt.Errorf("读取策略ID集合失败: %w", err)
	}

	strategies := make([]*model.Strategy, 0, len(ids))
	for _, raw := range ids {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		strategy, err := s.GetStrategy(ctx, id)
		if errors.Is(err, ErrStrategyNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		strategies = append(strategies, strategy)
	}
	return filterStrategies(strategies, filter), nil
}

// NextStrategyID 分配策略ID
func (s *RedisStorage) NextStrategyID(ctx context.Context) (int64, error) {
	id, err := s.client.Incr(ctx, s.key(keyStrategySeq)).Result()
	if err != nil {
		return 0, fmt.Errorf("分配策略ID失败: %w", err)
	}
	return id, nil
}

// GetExecution 获取单条执行记录
func (s *RedisStorage) GetExecution(ctx context.Context, id int64) (*model.Execution, error) {
	var execution model.Execution
	key := s.key(keyExecutionPrefix, strconv.FormatInt(id, 10))
	if err := s.getJSON(ctx, key, &execution, ErrExecutionNotFound); err != nil {
		return nil, err
	}
	return &execution, nil
}

// ListExecutions 按条件查询执行记录
func (s *RedisStorage) ListExecutions(ctx context.Context, filter ExecutionFilter) ([]*model.Execution, error) {
	ids, err := s.client.SMembers(ctx, s.key(keyExecutionIDs)).Result()
	if err != nil {
		return nil, fmt.Errorf("读取执行记录ID集合失败: %w", err)
	}

	executions := make([]*model.Execution, 0, len(ids))
	for _, raw := range ids {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		execution, err := s.GetExecution(ctx, id)
		if errors.Is(err, ErrExecutionNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		executions = append(executions, execution)
	}
	return filterExecutions(executions, filter), nil
}

// NextExecutionID 分配执行记录ID
func (s *RedisStorage) NextExecutionID(ctx context.Context) (int64, error) {
	id, err := s.client.Incr(ctx, s.key(keyExecutionSeq)).Result()
	if err != nil {
		return 0, fmt.Errorf("分配执行记录ID失败: %w", err)
	}
	return id, nil
}

// Apply 用TxPipeline原子提交全部变更
func (s *RedisStorage) Apply(ctx context.Context, changes *ChangeSet) error {
	if changes == nil || changes.Empty() {
		return nil
	}

	pipe := s.client.TxPipeline()

	if changes.Account != nil {
		data, err := json.Marshal(changes.Account)
		if err != nil {
			return fmt.Errorf("序列化账户失败: %w", err)
		}
		pipe.Set(ctx, s.key(keyAccount), data, 0)
	}

	for _, pos := range changes.UpsertPositions {
		data, err := json.Marshal(pos)
		if err != nil {
			return fmt.Errorf("序列化持仓失败: %w", err)
		}
		pipe.Set(ctx, s.key(keyPositionPrefix, pos.StockCode), data, 0)
		pipe.SAdd(ctx, s.key(keyPositionCodes), pos.StockCode)
	}
	for _, code := range changes.DeletePositions {
		pipe.Del(ctx, s.key(keyPositionPrefix, code))
		pipe.SRem(ctx, s.key(keyPositionCodes), code)
	}

	for _, strategy := range changes.UpsertStrategies {
		data, err := json.Marshal(strategy)
		if err != nil {
			return fmt.Errorf("序列化策略失败: %w", err)
		}
		id := strconv.FormatInt(strategy.ID, 10)
		pipe.Set(ctx, s.key(keyStrategyPrefix, id), data, 0)
		pipe.SAdd(ctx, s.key(keyStrategyIDs), id)
	}

	insertOrUpdate := append([]*model.Execution{}, changes.InsertExecutions...)
	insertOrUpdate = append(insertOrUpdate, changes.UpdateExecutions...)
	for _, execution := range insertOrUpdate {
		data, err := json.Marshal(execution)
		if err != nil {
			return fmt.Errorf("序列化执行记录失败: %w", err)
		}
		id := strconv.FormatInt(execution.ID, 10)
		pipe.Set(ctx, s.key(keyExecutionPrefix, id), data, 0)
		pipe.SAdd(ctx, s.key(keyExecutionIDs), id)
	}
	for _, id := range changes.DeleteExecutions {
		raw := strconv.FormatInt(id, 10)
		pipe.Del(ctx, s.key(keyExecutionPrefix, raw))
		pipe.SRem(ctx, s.key(keyExecutionIDs), raw)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("提交变更集失败: %w", err)
	}
	return nil
}
