package storage

import (
	"sort"

	"github.com/life2you_mini/stockledger/internal/model"
)

// 过滤和排序逻辑在内存中完成，Redis与内存后端共用

func filterStrategies(strategies []*model.Strategy, filter StrategyFilter) []*model.Strategy {
	result := make([]*model.Strategy, 0, len(strategies))
	for _, s := range strategies {
		if filter.StockCode != "" && s.StockCode != filter.StockCode {
			continue
		}
		if filter.StockName != "" && s.StockName != filter.StockName {
			continue
		}
		if filter.Action != "" && s.Action != filter.Action {
			continue
		}
		if filter.IsActive != nil && s.IsActive != *filter.IsActive {
			continue
		}
		if !filter.StartTime.IsZero() && s.CreatedAt.Before(filter.StartTime) {
			continue
		}
		if !filter.EndTime.IsZero() && s.CreatedAt.After(filter.EndTime) {
			continue
		}
		result = append(result, s)
	}

	asc := filter.Order == "asc"
	// 排序规则：1.是否有效 2.更新时间 3.创建时间
	sort.SliceStable(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.IsActive != b.IsActive {
			return a.IsActive
		}
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			if asc {
				return a.UpdatedAt.Before(b.UpdatedAt)
			}
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		if asc {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
	return result
}

func filterExecutions(executions []*model.Execution, filter ExecutionFilter) []*model.Execution {
	result := make([]*model.Execution, 0, len(executions))
	for _, e := range executions {
		if filter.StrategyID != 0 && e.StrategyID != filter.StrategyID {
			continue
		}
		if filter.StockCode != "" && e.StockCode != filter.StockCode {
			continue
		}
		if filter.Action != "" && e.Action != filter.Action {
			continue
		}
		if filter.Result != "" && e.ExecutionResult != filter.Result {
			continue
		}
		if !filter.StartTime.IsZero() && e.ExecutionTime.Before(filter.StartTime) {
			continue
		}
		if !filter.EndTime.IsZero() && e.ExecutionTime.After(filter.EndTime) {
			continue
		}
		result = append(result, e)
	}

	asc := filter.Order == "asc"
	byCreated := filter.SortBy == "created_at"
	sort.SliceStable(result, func(i, j int) bool {
		a, b := result[i], result[j]
		ta, tb := a.ExecutionTime, b.ExecutionTime
		if byCreated {
			ta, tb = a.CreatedAt, b.CreatedAt
		}
		if asc {
			return ta.Before(tb)
		}
		return ta.After(tb)
	})

	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result
}
