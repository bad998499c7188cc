package fines

import (
	"context"
	"time"

	"github.com/openshelf/openshelf/internal/observability"
)

// Service owns fine settlement, ledger queries and the fee configuration.
// Fine creation happens inside the loan manager's transactions via TxLedger.
type Service struct {
	repo    Repository
	metrics *observability.Metrics
	now     func() time.Time
}

// NewService wires a Repository with optional metrics.
func NewService(repo Repository, metrics *observability.Metrics) *Service {
	return &Service{repo: repo, metrics: metrics, now: time.Now}
}

// WithClock overrides the time source. Test use only.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Settle marks a PENDING fine PAID or CONDONED. Terminal either way; a second
// settlement attempt fails with ErrFineAlreadySettled.
func (s *Service) Settle(ctx context.Context, fineID int64, outcome FineState) (Fine, error) {
	if outcome != StatePaid && outcome != StateCondoned {
		return Fine{}, ErrInvalidOutcome
	}

	var settled Fine
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxLedger) error {
		fine, err := tx.GetFineForUpdate(ctx, fineID)
		if err != nil {
			return err
		}
		if fine.Settled() {
			return ErrFineAlreadySettled
		}
		settledAt := s.now()
		if err := tx.SetSettlement(ctx, fineID, outcome, settledAt); err != nil {
			return err
		}
		fine.State = outcome
		fine.SettledAt = &settledAt
		settled = fine
		return nil
	})
	if err != nil {
		return Fine{}, err
	}

	s.metrics.CountFineSettled(string(outcome))
	return settled, nil
}

// GetFine returns one fine by id.
func (s *Service) GetFine(ctx context.Context, id int64) (Fine, error) {
	return s.repo.GetFine(ctx, id)
}

// ListFines returns fines filtered by person, loan and state.
func (s *Service) ListFines(ctx context.Context, req ListFinesRequest) ([]Fine, error) {
	return s.repo.ListFines(ctx, req)
}

// SumAmountsByState aggregates fine amounts, optionally filtered by state.
func (s *Service) SumAmountsByState(ctx context.Context, state FineState) (float64, error) {
	return s.repo.SumAmountsByState(ctx, state)
}

// GetConfig returns the current fee configuration.
func (s *Service) GetConfig(ctx context.Context) (FineConfig, error) {
	return s.repo.GetConfig(ctx)
}

// UpdateConfig replaces the two fee parameters. Future computations pick up
// the new rates immediately.
func (s *Service) UpdateConfig(ctx context.Context, lateFeePerDay, lossFee float64) (FineConfig, error) {
	if lateFeePerDay < 0 || lossFee < 0 {
		return FineConfig{}, ErrInvalidRate
	}
	return s.repo.UpdateConfig(ctx, FineConfig{LateFeePerDay: lateFeePerDay, LossFee: lossFee})
}
