package mocks

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/life2you_mini/stockledger/internal/model"
)

// PositionRefresher 持仓刷新入口Mock
type PositionRefresher struct {
	mock.Mock
}

// ListPositions Mock实现
func (m *PositionRefresher) ListPositions(ctx context.Context) ([]*model.Position, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Position), args.Error(1)
}

// RefreshPositions Mock实现
func (m *PositionRefresher) RefreshPositions(ctx context.Context, prices map[string]decimal.Decimal) (int, error) {
	args := m.Called(ctx, prices)
	return args.Int(0), args.Error(1)
}
