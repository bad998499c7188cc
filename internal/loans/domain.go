// Package loans owns the loan lifecycle: creation against available copies,
// the return and loss transitions, per-person exclusivity, and the derived
// overdue view. It is the only writer of copy availability and the only
// producer of fines.
package loans

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/openshelf/openshelf/internal/fines"
	"github.com/openshelf/openshelf/internal/shared"
)

// LoanStatus enumerates stored loan statuses. OVERDUE is deliberately absent:
// it is a read-time view derived from the due date, never a stored transition,
// so there is no scheduler mutating rows at midnight.
type LoanStatus string

const (
	StatusActive   LoanStatus = "ACTIVE"
	StatusReturned LoanStatus = "RETURNED"
	StatusLost     LoanStatus = "LOST"
)

// EffectiveLoanStatus is the loan status as of "now", including the derived
// OVERDUE view. All read paths report this, never the stored enum directly.
type EffectiveLoanStatus string

const (
	EffectiveActive   EffectiveLoanStatus = "ACTIVE"
	EffectiveOverdue  EffectiveLoanStatus = "OVERDUE"
	EffectiveReturned EffectiveLoanStatus = "RETURNED"
	EffectiveLost     EffectiveLoanStatus = "LOST"
)

// Loan records one copy borrowed by one person for a bounded period.
type Loan struct {
	ID            int64
	Reference     uuid.UUID
	PersonID      int64
	CatalogItemID int64
	CopyID        int64
	LoanedAt      time.Time
	DueAt         time.Time
	ReturnedAt    *time.Time
	Status        LoanStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Terminal reports whether the loan reached RETURNED or LOST. Terminal loans
// are immutable.
func (l Loan) Terminal() bool {
	return l.Status == StatusReturned || l.Status == StatusLost
}

// EffectiveStatus derives the status of a loan as of now. Terminal statuses
// pass through; an active loan is OVERDUE once today is past the due date.
func EffectiveStatus(l Loan, now time.Time) EffectiveLoanStatus {
	switch l.Status {
	case StatusReturned:
		return EffectiveReturned
	case StatusLost:
		return EffectiveLost
	}
	if fines.WholeDaysBetween(l.DueAt, now) > 0 {
		return EffectiveOverdue
	}
	return EffectiveActive
}

// CreateLoanInput describes a new loan request.
type CreateLoanInput struct {
	PersonID      int64
	CatalogItemID int64
	LoanedAt      time.Time
	DueAt         time.Time
}

// ListLoansRequest filters loan listings by effective status and borrower.
// Zero values mean no filter.
type ListLoansRequest struct {
	Status   EffectiveLoanStatus
	PersonID int64
	Limit    int
	Offset   int
}

var (
	// ErrInvalidDateRange indicates the due date is not after the loan date.
	ErrInvalidDateRange = fmt.Errorf("%w: due date must be after loan date", shared.ErrValidation)
	// ErrInvalidStatusFilter indicates an unknown effective status filter.
	ErrInvalidStatusFilter = fmt.Errorf("%w: unknown loan status filter", shared.ErrValidation)
	// ErrBorrowerHasActiveLoan indicates the person already holds a non-terminal loan.
	ErrBorrowerHasActiveLoan = fmt.Errorf("%w: borrower already has an active loan", shared.ErrStateConflict)
	// ErrLoanNotFound indicates the loan does not exist.
	ErrLoanNotFound = fmt.Errorf("%w: loan does not exist", shared.ErrNotFound)
	// ErrLoanAlreadyTerminal indicates the loan was already returned or lost.
	ErrLoanAlreadyTerminal = fmt.Errorf("%w: loan is already returned or lost", shared.ErrStateConflict)
	// ErrConcurrentModification indicates the command lost a write race and may
	// be retried once by the caller.
	ErrConcurrentModification = fmt.Errorf("%w: loan command lost a write race", shared.ErrConcurrent)
)
