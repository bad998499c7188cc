package reporting

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository exposes the read-only projections the aggregator folds over.
type Repository interface {
	LoanStatusFacts(ctx context.Context) ([]LoanFact, error)
	MonthlyLoanCounts(ctx context.Context, from time.Time) ([]MonthCount, error)
	TopBorrowers(ctx context.Context, limit int) ([]BorrowerCount, error)
	FineTotalsByKind(ctx context.Context) (map[string]float64, error)
	FineTotalsByState(ctx context.Context) (map[string]float64, error)
}

var _ Repository = (*pgRepository)(nil)

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a pool-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

func (r *pgRepository) LoanStatusFacts(ctx context.Context) ([]LoanFact, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, due_at FROM loans`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var facts []LoanFact
	for rows.Next() {
		var f LoanFact
		if err := rows.Scan(&f.Status, &f.DueAt); err != nil {
			return nil, err
		}
		facts = append(facts, f)
	}
	return facts, rows.Err()
}

func (r *pgRepository) MonthlyLoanCounts(ctx context.Context, from time.Time) ([]MonthCount, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT date_trunc('month', loaned_at) AS month, COUNT(*)
		 FROM loans
		 WHERE loaned_at >= $1
		 GROUP BY month
		 ORDER BY month`, from)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var counts []MonthCount
	for rows.Next() {
		var c MonthCount
		if err := rows.Scan(&c.Month, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

func (r *pgRepository) TopBorrowers(ctx context.Context, limit int) ([]BorrowerCount, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT person_id, COUNT(*) AS loan_count
		 FROM loans
		 GROUP BY person_id
		 ORDER BY loan_count DESC, person_id
		 LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var borrowers []BorrowerCount
	for rows.Next() {
		var b BorrowerCount
		if err := rows.Scan(&b.PersonID, &b.LoanCount); err != nil {
			return nil, err
		}
		borrowers = append(borrowers, b)
	}
	return borrowers, rows.Err()
}

func (r *pgRepository) FineTotalsByKind(ctx context.Context) (map[string]float64, error) {
	return r.sumGrouped(ctx, `SELECT kind, COALESCE(SUM(amount), 0) FROM fines GROUP BY kind`)
}

func (r *pgRepository) FineTotalsByState(ctx context.Context) (map[string]float64, error) {
	return r.sumGrouped(ctx, `SELECT state, COALESCE(SUM(amount), 0) FROM fines GROUP BY state`)
}

func (r *pgRepository) sumGrouped(ctx context.Context, query string) (map[string]float64, error) {
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	totals := make(map[string]float64)
	for rows.Next() {
		var key string
		var sum float64
		if err := rows.Scan(&key, &sum); err != nil {
			return nil, err
		}
		totals[key] = sum
	}
	return totals, rows.Err()
}
