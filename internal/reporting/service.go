package reporting

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/openshelf/openshelf/internal/loans"
)

const topBorrowerLimit = 10

// Service composes the loan and fine projections into dashboard aggregates.
type Service struct {
	repo  Repository
	cache *Cache
	group singleflight.Group
	now   func() time.Time
}

// NewService wires a Repository with a Cache helper.
func NewService(repo Repository, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache, now: time.Now}
}

// WithClock overrides the time source. Test use only.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Dashboard returns the aggregates for the overview screen. Results are
// cached per day-of-computation and concurrent cold-cache requests collapse
// into one build via singleflight.
func (s *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	now := s.now()
	key := "reports:dashboard:" + now.Format("2006-01-02")

	result, err, _ := s.group.Do(key, func() (interface{}, error) {
		var dash Dashboard
		err := s.cache.FetchJSON(ctx, key, &dash, func(ctx context.Context) (interface{}, error) {
			return s.build(ctx, now)
		})
		return dash, err
	})
	if err != nil {
		return Dashboard{}, err
	}
	return result.(Dashboard), nil
}

func (s *Service) build(ctx context.Context, now time.Time) (Dashboard, error) {
	counts, err := s.statusCounts(ctx, now)
	if err != nil {
		return Dashboard{}, err
	}
	histogram, err := s.monthlyHistogram(ctx, now)
	if err != nil {
		return Dashboard{}, err
	}
	borrowers, err := s.repo.TopBorrowers(ctx, topBorrowerLimit)
	if err != nil {
		return Dashboard{}, err
	}
	byKind, err := s.repo.FineTotalsByKind(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	byState, err := s.repo.FineTotalsByState(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	if borrowers == nil {
		borrowers = []BorrowerCount{}
	}
	return Dashboard{
		StatusCounts:      counts,
		MonthlyLoans:      histogram,
		TopBorrowers:      borrowers,
		FineTotalsByKind:  byKind,
		FineTotalsByState: byState,
	}, nil
}

// statusCounts folds every loan through the same effective-status derivation
// the loan listings use, so "overdue" here always reflects current time.
func (s *Service) statusCounts(ctx context.Context, now time.Time) (map[string]int, error) {
	facts, err := s.repo.LoanStatusFacts(ctx)
	if err != nil {
		return nil, err
	}
	counts := map[string]int{
		string(loans.EffectiveActive):   0,
		string(loans.EffectiveOverdue):  0,
		string(loans.EffectiveReturned): 0,
		string(loans.EffectiveLost):     0,
	}
	for _, f := range facts {
		status := loans.EffectiveStatus(loans.Loan{
			Status: loans.LoanStatus(f.Status),
			DueAt:  f.DueAt,
		}, now)
		counts[string(status)]++
	}
	return counts, nil
}

// monthlyHistogram renders twelve trailing-month buckets, oldest first,
// with empty months zero-filled.
func (s *Service) monthlyHistogram(ctx context.Context, now time.Time) ([]MonthBucket, error) {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -11, 0)
	counts, err := s.repo.MonthlyLoanCounts(ctx, start)
	if err != nil {
		return nil, err
	}

	byMonth := make(map[string]int, len(counts))
	for _, c := range counts {
		byMonth[c.Month.Format("2006-01")] = c.Count
	}

	buckets := make([]MonthBucket, 0, 12)
	for i := 0; i < 12; i++ {
		month := start.AddDate(0, i, 0).Format("2006-01")
		buckets = append(buckets, MonthBucket{Month: month, Count: byMonth[month]})
	}
	return buckets, nil
}
