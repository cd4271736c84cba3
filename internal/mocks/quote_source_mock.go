package mocks

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// QuoteSource 行情源Mock
type QuoteSource struct {
	mock.Mock
}

// GetLatestPrice Mock实现
func (m *QuoteSource) GetLatestPrice(ctx context.Context, stockCode string) (decimal.Decimal, error) {
	args := m.Called(ctx, stockCode)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}
