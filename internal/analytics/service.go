package analytics

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/singleflight"
)

// Dashboard bundles the KPI figures shown on the home screen.
type Dashboard struct {
	Year                int               `json:"year"`
	MonthlyRevenue      []MonthRevenue    `json:"monthly_revenue"`
	Outstanding         float64           `json:"outstanding"`
	OverdueCount        int               `json:"overdue_count"`
	ExpensesByCategory  []CategoryExpense `json:"expenses_by_category"`
	QuoteFunnel         QuoteFunnel       `json:"quote_funnel"`
	QuoteConversionRate float64           `json:"quote_conversion_rate"`
}

// Service assembles dashboards from SQL aggregates behind the versioned
// cache. Concurrent rebuilds of the same key collapse into one query.
type Service struct {
	repo  Repository
	cache *Cache
	group singleflight.Group
}

// NewService constructs a Service.
func NewService(repo Repository, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

// Dashboard returns the KPI set for the given year.
func (s *Service) Dashboard(ctx context.Context, year int) (*Dashboard, error) {
	key, err := s.cache.BuildKey(ctx, "analytics", "dashboard", fmt.Sprintf("%d", year))
	if err != nil {
		return nil, err
	}

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		var d Dashboard
		err := s.cache.FetchJSON(ctx, key, &d, func(ctx context.Context) (interface{}, error) {
			return s.build(ctx, year)
		})
		if err != nil {
			return nil, err
		}
		return &d, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Dashboard), nil
}

func (s *Service) build(ctx context.Context, year int) (*Dashboard, error) {
	revenue, err := s.repo.MonthlyRevenue(ctx, year)
	if err != nil {
		return nil, err
	}
	outstanding, err := s.repo.OutstandingReceivables(ctx)
	if err != nil {
		return nil, err
	}
	overdue, err := s.repo.OverdueCount(ctx)
	if err != nil {
		return nil, err
	}
	expenses, err := s.repo.ExpensesByCategory(ctx, year)
	if err != nil {
		return nil, err
	}
	funnel, err := s.repo.QuoteFunnel(ctx, year)
	if err != nil {
		return nil, err
	}

	d := &Dashboard{
		Year:               year,
		MonthlyRevenue:     revenue,
		Outstanding:        outstanding,
		OverdueCount:       overdue,
		ExpensesByCategory: expenses,
		QuoteFunnel:        *funnel,
	}
	if funnel.Sent > 0 {
		rate := float64(funnel.Accepted) / float64(funnel.Sent) * 100
		d.QuoteConversionRate = math.Round(rate*10) / 10
	}
	return d, nil
}

// Invalidate bumps the cache version after a mutation that changes the
// figures.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}
