// Package notify sends best-effort borrower emails for loan lifecycle
// events. Delivery is queued through asynq; every failure is logged and
// swallowed so a notification can never undo a committed loan or fine.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/openshelf/openshelf/internal/fines"
	"github.com/openshelf/openshelf/internal/loans"
	"github.com/openshelf/openshelf/jobs"
)

// Person is the external identity projection the notifier needs.
type Person struct {
	ID    int64
	Name  string
	Email string
}

// PersonDirectory resolves borrower ids to contact details. Owned by the
// identity component; the engine only reads it.
type PersonDirectory interface {
	GetPerson(ctx context.Context, id int64) (Person, error)
}

// TaskEnqueuer is the slice of asynq.Client the notifier uses.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Notifier implements loans.Notifier over the task queue.
type Notifier struct {
	logger   *slog.Logger
	queue    TaskEnqueuer
	people   PersonDirectory
	currency *message.Printer
}

var _ loans.Notifier = (*Notifier)(nil)

// NewNotifier constructs a Notifier.
func NewNotifier(logger *slog.Logger, queue TaskEnqueuer, people PersonDirectory) *Notifier {
	return &Notifier{
		logger:   logger,
		queue:    queue,
		people:   people,
		currency: message.NewPrinter(language.English),
	}
}

// LoanCreated emails a confirmation with the due date.
func (n *Notifier) LoanCreated(ctx context.Context, loan loans.Loan) {
	n.send(ctx, loan.PersonID, "Loan confirmation",
		fmt.Sprintf("Your loan %s was registered on %s and is due back on %s.",
			loan.Reference, loan.LoanedAt.Format("2006-01-02"), loan.DueAt.Format("2006-01-02")))
}

// LoanReturned emails a receipt, including the late fine when one was recorded.
func (n *Notifier) LoanReturned(ctx context.Context, loan loans.Loan, fine *fines.Fine) {
	body := fmt.Sprintf("Your loan %s was returned.", loan.Reference)
	if fine != nil {
		body += n.currency.Sprintf(" A late fine of $%.2f is pending settlement.", fine.Amount)
	}
	n.send(ctx, loan.PersonID, "Return receipt", body)
}

// LoanLost emails the loss fee notice.
func (n *Notifier) LoanLost(ctx context.Context, loan loans.Loan, fine fines.Fine) {
	n.send(ctx, loan.PersonID, "Lost copy notice",
		n.currency.Sprintf("Your loan %s was closed as lost. A replacement fee of $%.2f is pending settlement.",
			loan.Reference, fine.Amount))
}

// OverdueReminder emails a reminder for a currently overdue loan.
func (n *Notifier) OverdueReminder(ctx context.Context, loan loans.Loan, daysLate int, perDayRate float64) {
	n.send(ctx, loan.PersonID, "Overdue loan reminder",
		n.currency.Sprintf("Your loan %s is %d day(s) overdue. The accruing late fee is $%.2f so far; please return the copy.",
			loan.Reference, daysLate, float64(daysLate)*perDayRate))
}

func (n *Notifier) send(ctx context.Context, personID int64, subject, body string) {
	person, err := n.people.GetPerson(ctx, personID)
	if err != nil {
		n.logger.Warn("notify: person lookup failed", slog.Int64("person_id", personID), slog.Any("error", err))
		return
	}
	if person.Email == "" {
		return
	}

	task, err := jobs.NewSendEmailTask(jobs.SendEmailPayload{
		To:      person.Email,
		Subject: subject,
		Body:    fmt.Sprintf("Dear %s,\n\n%s\n", person.Name, body),
	})
	if err != nil {
		n.logger.Warn("notify: build task", slog.Any("error", err))
		return
	}
	if _, err := n.queue.EnqueueContext(ctx, task, asynq.Queue(jobs.QueueDefault), asynq.MaxRetry(3)); err != nil {
		n.logger.Warn("notify: enqueue failed", slog.String("subject", subject), slog.Any("error", err))
	}
}
