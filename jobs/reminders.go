package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/openshelf/openshelf/internal/fines"
	"github.com/openshelf/openshelf/internal/loans"
	"github.com/openshelf/openshelf/internal/shared"
)

// ReminderNotifier delivers one overdue reminder. Satisfied by notify.Notifier.
type ReminderNotifier interface {
	OverdueReminder(ctx context.Context, loan loans.Loan, daysLate int, perDayRate float64)
}

// ReminderScanner walks the currently overdue loans and queues one reminder
// email per borrower. It only reads loan state: "overdue" stays a derived
// view and no loan row is ever mutated by the scheduler.
type ReminderScanner struct {
	logger   *slog.Logger
	loans    *loans.Service
	fines    *fines.Service
	notifier ReminderNotifier
	now      func() time.Time
}

// NewReminderScanner constructs a ReminderScanner.
func NewReminderScanner(logger *slog.Logger, loanSvc *loans.Service, fineSvc *fines.Service, notifier ReminderNotifier) *ReminderScanner {
	return &ReminderScanner{logger: logger, loans: loanSvc, fines: fineSvc, notifier: notifier, now: time.Now}
}

// HandleOverdueScan processes TaskTypeOverdueScan tasks. The scan pages
// through the overdue listing until exhausted so no borrower past the first
// page is skipped.
func (s *ReminderScanner) HandleOverdueScan(ctx context.Context, _ *asynq.Task) error {
	cfg, err := s.fines.GetConfig(ctx)
	if err != nil {
		return err
	}

	now := s.now()
	reminded := 0
	for offset := 0; ; offset += shared.MaxPageSize {
		overdue, err := s.loans.ListLoans(ctx, loans.ListLoansRequest{
			Status: loans.EffectiveOverdue,
			Limit:  shared.MaxPageSize,
			Offset: offset,
		})
		if err != nil {
			return err
		}
		for _, loan := range overdue {
			daysLate := fines.WholeDaysBetween(loan.DueAt, now)
			s.notifier.OverdueReminder(ctx, loan, daysLate, cfg.LateFeePerDay)
		}
		reminded += len(overdue)
		if len(overdue) < shared.MaxPageSize {
			break
		}
	}
	s.logger.Info("overdue scan complete", slog.Int("reminders", reminded))
	return nil
}
