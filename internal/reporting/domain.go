// Package reporting serves read-only dashboard aggregates over loans and
// fines. It performs no writes and tolerates snapshot-stale reads, so the
// aggregates sit behind a short-TTL cache.
package reporting

import "time"

// LoanFact is the minimal projection needed to derive an effective status.
type LoanFact struct {
	Status string
	DueAt  time.Time
}

// MonthCount is one histogram bucket keyed by the first day of the month.
type MonthCount struct {
	Month time.Time
	Count int
}

// BorrowerCount ranks a borrower by total loan count.
type BorrowerCount struct {
	PersonID  int64 `json:"person_id"`
	LoanCount int   `json:"loan_count"`
}

// MonthBucket is one rendered histogram bucket.
type MonthBucket struct {
	Month string `json:"month"`
	Count int    `json:"count"`
}

// Dashboard aggregates everything the overview screen renders.
type Dashboard struct {
	StatusCounts      map[string]int     `json:"status_counts"`
	MonthlyLoans      []MonthBucket      `json:"monthly_loans"`
	TopBorrowers      []BorrowerCount    `json:"top_borrowers"`
	FineTotalsByKind  map[string]float64 `json:"fine_totals_by_kind"`
	FineTotalsByState map[string]float64 `json:"fine_totals_by_state"`
}
