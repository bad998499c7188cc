// Package fines owns monetary penalties for late returns and lost copies:
// the pure fee calculator, the fine ledger with its settlement lifecycle,
// and the process-wide fee configuration.
package fines

import (
	"fmt"
	"time"

	"github.com/openshelf/openshelf/internal/shared"
)

// FineKind enumerates the reasons a fine exists.
type FineKind string

const (
	KindLate FineKind = "LATE"
	KindLost FineKind = "LOST"
)

// FineState enumerates settlement states. PAID and CONDONED are terminal.
type FineState string

const (
	StatePending  FineState = "PENDING"
	StatePaid     FineState = "PAID"
	StateCondoned FineState = "CONDONED"
)

// Fine is a monetary penalty tied to one loan.
type Fine struct {
	ID        int64
	LoanID    int64
	PersonID  int64
	Kind      FineKind
	Amount    float64
	Note      string
	State     FineState
	CreatedAt time.Time
	SettledAt *time.Time
}

// Settled reports whether the fine reached a terminal settlement state.
func (f Fine) Settled() bool {
	return f.State == StatePaid || f.State == StateCondoned
}

// FineConfig holds the two administratively editable fee parameters. It is
// read on every computation so a rate change applies without restart.
type FineConfig struct {
	LateFeePerDay float64
	LossFee       float64
	UpdatedAt     time.Time
}

// RecordFineInput describes a fine to append to the ledger.
type RecordFineInput struct {
	LoanID   int64
	PersonID int64
	Kind     FineKind
	Amount   float64
	Note     string
}

// ListFinesRequest filters ledger queries. Zero values mean no filter.
type ListFinesRequest struct {
	PersonID int64
	LoanID   int64
	State    FineState
}

var (
	// ErrInvalidRate indicates a negative fee rate or flat fee.
	ErrInvalidRate = fmt.Errorf("%w: fee rate must not be negative", shared.ErrValidation)
	// ErrInvalidOutcome indicates a settlement outcome other than PAID or CONDONED.
	ErrInvalidOutcome = fmt.Errorf("%w: settlement outcome must be PAID or CONDONED", shared.ErrValidation)
	// ErrFineNotFound indicates the fine does not exist.
	ErrFineNotFound = fmt.Errorf("%w: fine does not exist", shared.ErrNotFound)
	// ErrFineAlreadySettled indicates the fine left the PENDING state earlier.
	ErrFineAlreadySettled = fmt.Errorf("%w: fine is already settled", shared.ErrStateConflict)
	// ErrDuplicateFineKind indicates the loan already carries a fine of this kind.
	ErrDuplicateFineKind = fmt.Errorf("%w: loan already has a fine of this kind", shared.ErrStateConflict)
)
