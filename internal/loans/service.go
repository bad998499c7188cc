package loans

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/openshelf/openshelf/internal/fines"
	"github.com/openshelf/openshelf/internal/observability"
)

// Notifier receives loan lifecycle events after the transaction commits.
// Implementations must be best-effort: they are called outside the unit of
// work and their failures never affect the committed command.
type Notifier interface {
	LoanCreated(ctx context.Context, loan Loan)
	LoanReturned(ctx context.Context, loan Loan, fine *fines.Fine)
	LoanLost(ctx context.Context, loan Loan, fine fines.Fine)
}

// Service owns loan creation and the return and loss transitions.
type Service struct {
	repo     Repository
	metrics  *observability.Metrics
	notifier Notifier
	now      func() time.Time
}

// NewService wires a Repository with optional metrics and notifier.
func NewService(repo Repository, metrics *observability.Metrics, notifier Notifier) *Service {
	return &Service{repo: repo, metrics: metrics, notifier: notifier, now: time.Now}
}

// WithClock overrides the time source. Test use only.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CreateLoan loans one available copy of a catalog item to a person.
// Preconditions, first failure wins: the due date must be after the loan
// date, the borrower must hold no non-terminal loan, and an available copy
// must exist. The checks, the copy claim and the loan insert are one
// transaction; the partial unique indexes close the remaining races.
func (s *Service) CreateLoan(ctx context.Context, input CreateLoanInput) (Loan, error) {
	if fines.WholeDaysBetween(input.LoanedAt, input.DueAt) <= 0 {
		return Loan{}, ErrInvalidDateRange
	}

	var loan Loan
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		active, err := tx.HasActiveLoan(ctx, input.PersonID)
		if err != nil {
			return err
		}
		if active {
			return ErrBorrowerHasActiveLoan
		}

		copy, err := tx.AllocateCopy(ctx, input.CatalogItemID)
		if err != nil {
			return err
		}
		if err := tx.ClaimCopy(ctx, copy.ID); err != nil {
			return err
		}

		loan, err = tx.InsertLoan(ctx, NewLoanRecord{
			Reference:     uuid.New(),
			PersonID:      input.PersonID,
			CatalogItemID: input.CatalogItemID,
			CopyID:        copy.ID,
			LoanedAt:      input.LoanedAt,
			DueAt:         input.DueAt,
		})
		return err
	})
	if err != nil {
		return Loan{}, err
	}

	s.metrics.CountLoanEvent("created")
	if s.notifier != nil {
		s.notifier.LoanCreated(ctx, loan)
	}
	return loan, nil
}

// RegisterReturn closes a loan as RETURNED as of now. A late return past the
// due date records a PENDING LATE fine; an on-time return records nothing.
// The copy goes back into circulation in the same transaction.
func (s *Service) RegisterReturn(ctx context.Context, loanID int64, lateFeePerDay float64) (Loan, error) {
	if lateFeePerDay < 0 {
		return Loan{}, fines.ErrInvalidRate
	}

	var loan Loan
	var fine *fines.Fine
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		l, err := tx.GetLoanForUpdate(ctx, loanID)
		if err != nil {
			return err
		}
		if l.Terminal() {
			return ErrLoanAlreadyTerminal
		}

		now := s.now()
		if err := tx.FinalizeLoan(ctx, l.ID, StatusReturned, now); err != nil {
			return err
		}

		amount, err := fines.LateFee(l.DueAt, now, lateFeePerDay)
		if err != nil {
			return err
		}
		if amount > 0 {
			f, err := tx.RecordFine(ctx, fines.RecordFineInput{
				LoanID:   l.ID,
				PersonID: l.PersonID,
				Kind:     fines.KindLate,
				Amount:   amount,
				Note:     fmt.Sprintf("returned %d day(s) past due", fines.WholeDaysBetween(l.DueAt, now)),
			}, now)
			if err != nil {
				return err
			}
			fine = &f
		}

		if err := tx.ReleaseCopy(ctx, l.CopyID); err != nil {
			return err
		}

		l.Status = StatusReturned
		l.ReturnedAt = &now
		loan = l
		return nil
	})
	if err != nil {
		return Loan{}, err
	}

	s.metrics.CountLoanEvent("returned")
	if fine != nil {
		s.metrics.CountFineRecorded(string(fines.KindLate))
	}
	if s.notifier != nil {
		s.notifier.LoanReturned(ctx, loan, fine)
	}
	return loan, nil
}

// RegisterLoss closes a loan as LOST as of now. The copy stays out of
// circulation permanently and a LOST fine is always recorded, even for a
// zero fee: a loss is always logged.
func (s *Service) RegisterLoss(ctx context.Context, loanID int64, lossFee float64) (Loan, error) {
	amount, err := fines.LossFee(lossFee)
	if err != nil {
		return Loan{}, err
	}

	var loan Loan
	var fine fines.Fine
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		l, err := tx.GetLoanForUpdate(ctx, loanID)
		if err != nil {
			return err
		}
		if l.Terminal() {
			return ErrLoanAlreadyTerminal
		}

		now := s.now()
		if err := tx.FinalizeLoan(ctx, l.ID, StatusLost, now); err != nil {
			return err
		}

		fine, err = tx.RecordFine(ctx, fines.RecordFineInput{
			LoanID:   l.ID,
			PersonID: l.PersonID,
			Kind:     fines.KindLost,
			Amount:   amount,
			Note:     "copy reported lost",
		}, now)
		if err != nil {
			return err
		}

		l.Status = StatusLost
		l.ReturnedAt = &now
		loan = l
		return nil
	})
	if err != nil {
		return Loan{}, err
	}

	s.metrics.CountLoanEvent("lost")
	s.metrics.CountFineRecorded(string(fines.KindLost))
	if s.notifier != nil {
		s.notifier.LoanLost(ctx, loan, fine)
	}
	return loan, nil
}

// HasActiveLoan reports whether a person holds a non-terminal loan. The UI
// uses it to block new-loan attempts early; CreateLoan re-checks inside its
// transaction regardless.
func (s *Service) HasActiveLoan(ctx context.Context, personID int64) (bool, error) {
	return s.repo.HasActiveLoan(ctx, personID)
}

// GetLoan returns one loan by id.
func (s *Service) GetLoan(ctx context.Context, id int64) (Loan, error) {
	return s.repo.GetLoan(ctx, id)
}

// ListLoans returns loans filtered by effective status as of now. ACTIVE and
// OVERDUE are both stored as ACTIVE, so those filters add a due-date bound to
// the query itself. The bound must stay in the query: limit and offset then
// address the effective rows, not the stored-ACTIVE superset.
func (s *Service) ListLoans(ctx context.Context, req ListLoansRequest) ([]Loan, error) {
	filter := ListFilter{PersonID: req.PersonID, Limit: req.Limit, Offset: req.Offset}
	switch req.Status {
	case "":
	case EffectiveActive:
		filter.Status = StatusActive
		filter.DueOnOrAfter = startOfDay(s.now())
	case EffectiveOverdue:
		filter.Status = StatusActive
		filter.DueBefore = startOfDay(s.now())
	case EffectiveReturned:
		filter.Status = StatusReturned
	case EffectiveLost:
		filter.Status = StatusLost
	default:
		return nil, ErrInvalidStatusFilter
	}
	return s.repo.ListLoans(ctx, filter)
}

// startOfDay truncates to midnight so the due-date bounds agree with the
// whole-calendar-day arithmetic in EffectiveStatus: a loan is overdue iff its
// due date falls on an earlier calendar day than now.
func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
