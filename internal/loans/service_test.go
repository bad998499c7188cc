package loans

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openshelf/openshelf/internal/fines"
	"github.com/openshelf/openshelf/internal/inventory"
	"github.com/openshelf/openshelf/internal/shared"
)

// memRepo is an in-memory Repository and TxRepository. Commands run through
// the same code paths as the Postgres implementation, minus rollback; tests
// only exercise failures that occur before any mutation.
type memRepo struct {
	copies     map[int64]*inventory.Copy
	loans      map[int64]*Loan
	fines      map[int64]*fines.Fine
	nextLoanID int64
	nextFineID int64
}

func newMemRepo() *memRepo {
	return &memRepo{
		copies: make(map[int64]*inventory.Copy),
		loans:  make(map[int64]*Loan),
		fines:  make(map[int64]*fines.Fine),
	}
}

func (r *memRepo) addCopy(id, catalogItemID int64) {
	r.copies[id] = &inventory.Copy{ID: id, CatalogItemID: catalogItemID, Status: inventory.StatusAvailable}
}

func (r *memRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, r)
}

func (r *memRepo) HasActiveLoan(ctx context.Context, personID int64) (bool, error) {
	for _, l := range r.loans {
		if l.PersonID == personID && l.Status == StatusActive {
			return true, nil
		}
	}
	return false, nil
}

func (r *memRepo) AllocateCopy(ctx context.Context, catalogItemID int64) (inventory.Copy, error) {
	var ids []int64
	for id, c := range r.copies {
		if c.CatalogItemID == catalogItemID && c.Status == inventory.StatusAvailable {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return inventory.Copy{}, inventory.ErrNoCopyAvailable
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return *r.copies[ids[0]], nil
}

func (r *memRepo) ClaimCopy(ctx context.Context, copyID int64) error {
	c, ok := r.copies[copyID]
	if !ok {
		return inventory.ErrCopyNotFound
	}
	if c.Status != inventory.StatusAvailable {
		return inventory.ErrCopyAlreadyLoaned
	}
	c.Status = inventory.StatusLoaned
	return nil
}

func (r *memRepo) ReleaseCopy(ctx context.Context, copyID int64) error {
	c, ok := r.copies[copyID]
	if !ok {
		return inventory.ErrCopyNotFound
	}
	c.Status = inventory.StatusAvailable
	return nil
}

func (r *memRepo) InsertLoan(ctx context.Context, rec NewLoanRecord) (Loan, error) {
	r.nextLoanID++
	l := Loan{
		ID:            r.nextLoanID,
		Reference:     rec.Reference,
		PersonID:      rec.PersonID,
		CatalogItemID: rec.CatalogItemID,
		CopyID:        rec.CopyID,
		LoanedAt:      rec.LoanedAt,
		DueAt:         rec.DueAt,
		Status:        StatusActive,
	}
	r.loans[l.ID] = &l
	return l, nil
}

func (r *memRepo) GetLoan(ctx context.Context, id int64) (Loan, error) {
	l, ok := r.loans[id]
	if !ok {
		return Loan{}, ErrLoanNotFound
	}
	return *l, nil
}

func (r *memRepo) GetLoanForUpdate(ctx context.Context, id int64) (Loan, error) {
	return r.GetLoan(ctx, id)
}

func (r *memRepo) FinalizeLoan(ctx context.Context, id int64, status LoanStatus, returnedAt time.Time) error {
	l, ok := r.loans[id]
	if !ok {
		return ErrLoanNotFound
	}
	if l.Status != StatusActive {
		return ErrLoanAlreadyTerminal
	}
	l.Status = status
	l.ReturnedAt = &returnedAt
	return nil
}

func (r *memRepo) RecordFine(ctx context.Context, input fines.RecordFineInput, createdAt time.Time) (fines.Fine, error) {
	for _, f := range r.fines {
		if f.LoanID == input.LoanID && f.Kind == input.Kind {
			return fines.Fine{}, fines.ErrDuplicateFineKind
		}
	}
	r.nextFineID++
	f := fines.Fine{
		ID:        r.nextFineID,
		LoanID:    input.LoanID,
		PersonID:  input.PersonID,
		Kind:      input.Kind,
		Amount:    input.Amount,
		Note:      input.Note,
		State:     fines.StatePending,
		CreatedAt: createdAt,
	}
	r.fines[f.ID] = &f
	return f, nil
}

// ListLoans mirrors the SQL contract: due-date bounds narrow the rows before
// limit and offset apply.
func (r *memRepo) ListLoans(ctx context.Context, filter ListFilter) ([]Loan, error) {
	var out []Loan
	for _, l := range r.loans {
		if filter.Status != "" && l.Status != filter.Status {
			continue
		}
		if filter.PersonID != 0 && l.PersonID != filter.PersonID {
			continue
		}
		if !filter.DueBefore.IsZero() && !l.DueAt.Before(filter.DueBefore) {
			continue
		}
		if !filter.DueOnOrAfter.IsZero() && l.DueAt.Before(filter.DueOnOrAfter) {
			continue
		}
		out = append(out, *l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	limit, offset := shared.ClampPage(filter.Limit, filter.Offset)
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type eventNotifier struct {
	created  []Loan
	returned []Loan
	lost     []Loan
}

func (n *eventNotifier) LoanCreated(ctx context.Context, loan Loan) {
	n.created = append(n.created, loan)
}

func (n *eventNotifier) LoanReturned(ctx context.Context, loan Loan, fine *fines.Fine) {
	n.returned = append(n.returned, loan)
}

func (n *eventNotifier) LoanLost(ctx context.Context, loan Loan, fine fines.Fine) {
	n.lost = append(n.lost, loan)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestService(repo *memRepo, now time.Time) (*Service, *eventNotifier) {
	notifier := &eventNotifier{}
	svc := NewService(repo, nil, notifier).WithClock(fixedClock(now))
	return svc, notifier
}

func TestCreateLoanPicksLowestAvailableCopy(t *testing.T) {
	repo := newMemRepo()
	repo.addCopy(7, 1)
	repo.addCopy(3, 1)
	repo.copies[3].Status = inventory.StatusLoaned
	repo.addCopy(5, 1)
	svc, notifier := newTestService(repo, day(2024, time.January, 2))

	loan, err := svc.CreateLoan(context.Background(), CreateLoanInput{
		PersonID:      1,
		CatalogItemID: 1,
		LoanedAt:      day(2024, time.January, 1),
		DueAt:         day(2024, time.January, 15),
	})
	require.NoError(t, err)
	require.Equal(t, int64(5), loan.CopyID)
	require.Equal(t, StatusActive, loan.Status)
	require.NotEqual(t, "00000000-0000-0000-0000-000000000000", loan.Reference.String())
	require.Equal(t, inventory.StatusLoaned, repo.copies[5].Status)
	require.Len(t, notifier.created, 1)
}

func TestCreateLoanRejectsInvalidDateRange(t *testing.T) {
	repo := newMemRepo()
	repo.addCopy(1, 1)
	svc, _ := newTestService(repo, day(2024, time.January, 1))

	_, err := svc.CreateLoan(context.Background(), CreateLoanInput{
		PersonID:      1,
		CatalogItemID: 1,
		LoanedAt:      day(2024, time.January, 15),
		DueAt:         day(2024, time.January, 15),
	})
	require.ErrorIs(t, err, ErrInvalidDateRange)
	require.Empty(t, repo.loans)
}

func TestCreateLoanEnforcesBorrowerExclusivity(t *testing.T) {
	repo := newMemRepo()
	repo.addCopy(1, 1)
	repo.addCopy(2, 2)
	svc, _ := newTestService(repo, day(2024, time.January, 2))

	input := CreateLoanInput{PersonID: 9, CatalogItemID: 1, LoanedAt: day(2024, time.January, 1), DueAt: day(2024, time.January, 15)}
	_, err := svc.CreateLoan(context.Background(), input)
	require.NoError(t, err)

	// Any item: exclusivity is system-wide, not per catalog item.
	input.CatalogItemID = 2
	_, err = svc.CreateLoan(context.Background(), input)
	require.ErrorIs(t, err, ErrBorrowerHasActiveLoan)
}

func TestCreateLoanFailsWithoutAvailableCopyThenSucceedsAfterReturn(t *testing.T) {
	repo := newMemRepo()
	repo.addCopy(1, 1)
	svc, _ := newTestService(repo, day(2024, time.January, 2))

	first, err := svc.CreateLoan(context.Background(), CreateLoanInput{
		PersonID: 1, CatalogItemID: 1, LoanedAt: day(2024, time.January, 1), DueAt: day(2024, time.January, 15),
	})
	require.NoError(t, err)

	_, err = svc.CreateLoan(context.Background(), CreateLoanInput{
		PersonID: 2, CatalogItemID: 1, LoanedAt: day(2024, time.January, 1), DueAt: day(2024, time.January, 15),
	})
	require.ErrorIs(t, err, inventory.ErrNoCopyAvailable)

	_, err = svc.RegisterReturn(context.Background(), first.ID, 0.50)
	require.NoError(t, err)

	second, err := svc.CreateLoan(context.Background(), CreateLoanInput{
		PersonID: 2, CatalogItemID: 1, LoanedAt: day(2024, time.January, 2), DueAt: day(2024, time.January, 16),
	})
	require.NoError(t, err)
	require.Equal(t, first.CopyID, second.CopyID)
}

func TestRegisterReturnLateRecordsFineAndFreesCopy(t *testing.T) {
	repo := newMemRepo()
	repo.addCopy(1, 1)
	svc, notifier := newTestService(repo, day(2024, time.January, 2))

	loan, err := svc.CreateLoan(context.Background(), CreateLoanInput{
		PersonID: 1, CatalogItemID: 1, LoanedAt: day(2024, time.January, 1), DueAt: day(2024, time.January, 15),
	})
	require.NoError(t, err)

	svc.WithClock(fixedClock(day(2024, time.January, 20)))
	returned, err := svc.RegisterReturn(context.Background(), loan.ID, 0.50)
	require.NoError(t, err)
	require.Equal(t, StatusReturned, returned.Status)
	require.NotNil(t, returned.ReturnedAt)
	require.Equal(t, inventory.StatusAvailable, repo.copies[1].Status)

	require.Len(t, repo.fines, 1)
	for _, f := range repo.fines {
		require.Equal(t, fines.KindLate, f.Kind)
		require.InDelta(t, 5*0.50, f.Amount, 1e-9)
		require.Equal(t, fines.StatePending, f.State)
		require.Equal(t, loan.PersonID, f.PersonID)
	}
	require.Len(t, notifier.returned, 1)
}

func TestRegisterReturnOnDueDateRecordsNoFine(t *testing.T) {
	repo := newMemRepo()
	repo.addCopy(1, 1)
	svc, _ := newTestService(repo, day(2024, time.January, 2))

	loan, err := svc.CreateLoan(context.Background(), CreateLoanInput{
		PersonID: 1, CatalogItemID: 1, LoanedAt: day(2024, time.January, 1), DueAt: day(2024, time.January, 15),
	})
	require.NoError(t, err)

	svc.WithClock(fixedClock(day(2024, time.January, 15)))
	_, err = svc.RegisterReturn(context.Background(), loan.ID, 0.50)
	require.NoError(t, err)
	require.Empty(t, repo.fines)
}

func TestRegisterReturnRejectsNegativeRateBeforeMutation(t *testing.T) {
	repo := newMemRepo()
	repo.addCopy(1, 1)
	svc, _ := newTestService(repo, day(2024, time.January, 2))

	loan, err := svc.CreateLoan(context.Background(), CreateLoanInput{
		PersonID: 1, CatalogItemID: 1, LoanedAt: day(2024, time.January, 1), DueAt: day(2024, time.January, 15),
	})
	require.NoError(t, err)

	_, err = svc.RegisterReturn(context.Background(), loan.ID, -1)
	require.ErrorIs(t, err, fines.ErrInvalidRate)
	require.Equal(t, StatusActive, repo.loans[loan.ID].Status)
}

func TestRegisterReturnUnknownLoan(t *testing.T) {
	svc, _ := newTestService(newMemRepo(), day(2024, time.January, 2))
	_, err := svc.RegisterReturn(context.Background(), 42, 0.50)
	require.ErrorIs(t, err, ErrLoanNotFound)
}

func TestRegisterLossAlwaysFinesAndKeepsCopyOut(t *testing.T) {
	repo := newMemRepo()
	repo.addCopy(1, 1)
	svc, notifier := newTestService(repo, day(2024, time.January, 2))

	loan, err := svc.CreateLoan(context.Background(), CreateLoanInput{
		PersonID: 1, CatalogItemID: 1, LoanedAt: day(2024, time.January, 1), DueAt: day(2024, time.January, 15),
	})
	require.NoError(t, err)

	lost, err := svc.RegisterLoss(context.Background(), loan.ID, 25)
	require.NoError(t, err)
	require.Equal(t, StatusLost, lost.Status)
	require.Equal(t, inventory.StatusLoaned, repo.copies[1].Status)

	require.Len(t, repo.fines, 1)
	for _, f := range repo.fines {
		require.Equal(t, fines.KindLost, f.Kind)
		require.Equal(t, 25.0, f.Amount)
		require.Equal(t, fines.StatePending, f.State)
	}
	require.Len(t, notifier.lost, 1)

	// A lost loan is terminal: returning it afterwards must fail.
	_, err = svc.RegisterReturn(context.Background(), loan.ID, 0.50)
	require.ErrorIs(t, err, ErrLoanAlreadyTerminal)
}

func TestRegisterLossWithZeroFeeStillLogsFine(t *testing.T) {
	repo := newMemRepo()
	repo.addCopy(1, 1)
	svc, _ := newTestService(repo, day(2024, time.January, 2))

	loan, err := svc.CreateLoan(context.Background(), CreateLoanInput{
		PersonID: 1, CatalogItemID: 1, LoanedAt: day(2024, time.January, 1), DueAt: day(2024, time.January, 15),
	})
	require.NoError(t, err)

	_, err = svc.RegisterLoss(context.Background(), loan.ID, 0)
	require.NoError(t, err)
	require.Len(t, repo.fines, 1)
}

func TestRegisterReturnTwiceRejected(t *testing.T) {
	repo := newMemRepo()
	repo.addCopy(1, 1)
	svc, _ := newTestService(repo, day(2024, time.January, 2))

	loan, err := svc.CreateLoan(context.Background(), CreateLoanInput{
		PersonID: 1, CatalogItemID: 1, LoanedAt: day(2024, time.January, 1), DueAt: day(2024, time.January, 15),
	})
	require.NoError(t, err)

	_, err = svc.RegisterReturn(context.Background(), loan.ID, 0.50)
	require.NoError(t, err)
	_, err = svc.RegisterReturn(context.Background(), loan.ID, 0.50)
	require.ErrorIs(t, err, ErrLoanAlreadyTerminal)
}

func TestHasActiveLoanClearsAfterReturn(t *testing.T) {
	repo := newMemRepo()
	repo.addCopy(1, 1)
	svc, _ := newTestService(repo, day(2024, time.January, 2))

	loan, err := svc.CreateLoan(context.Background(), CreateLoanInput{
		PersonID: 1, CatalogItemID: 1, LoanedAt: day(2024, time.January, 1), DueAt: day(2024, time.January, 15),
	})
	require.NoError(t, err)

	active, err := svc.HasActiveLoan(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, active)

	_, err = svc.RegisterReturn(context.Background(), loan.ID, 0.50)
	require.NoError(t, err)

	active, err = svc.HasActiveLoan(context.Background(), 1)
	require.NoError(t, err)
	require.False(t, active)
}

func TestListLoansOverduePagingAddressesEffectiveRows(t *testing.T) {
	repo := newMemRepo()
	now := day(2024, time.June, 15)
	svc, _ := newTestService(repo, now)

	// 120 stored-ACTIVE loans, the even-numbered 60 overdue. A page must
	// hold only overdue rows and offsets must walk the overdue set, not the
	// stored-ACTIVE superset.
	for i := 0; i < 120; i++ {
		due := day(2024, time.June, 20)
		if i%2 == 0 {
			due = day(2024, time.June, 1)
		}
		repo.nextLoanID++
		id := repo.nextLoanID
		repo.loans[id] = &Loan{ID: id, PersonID: id, Status: StatusActive, DueAt: due}
	}

	seen := make(map[int64]bool)
	for offset := 0; ; offset += 50 {
		page, err := svc.ListLoans(context.Background(), ListLoansRequest{
			Status: EffectiveOverdue,
			Limit:  50,
			Offset: offset,
		})
		require.NoError(t, err)
		for _, l := range page {
			require.Equal(t, EffectiveOverdue, EffectiveStatus(l, now))
			require.False(t, seen[l.ID])
			seen[l.ID] = true
		}
		if len(page) < 50 {
			break
		}
	}
	require.Len(t, seen, 60)
}

func TestListLoansSplitsActiveAndOverdue(t *testing.T) {
	repo := newMemRepo()
	repo.addCopy(1, 1)
	repo.addCopy(2, 1)
	svc, _ := newTestService(repo, day(2024, time.January, 2))

	_, err := svc.CreateLoan(context.Background(), CreateLoanInput{
		PersonID: 1, CatalogItemID: 1, LoanedAt: day(2024, time.January, 1), DueAt: day(2024, time.January, 10),
	})
	require.NoError(t, err)
	_, err = svc.CreateLoan(context.Background(), CreateLoanInput{
		PersonID: 2, CatalogItemID: 1, LoanedAt: day(2024, time.January, 1), DueAt: day(2024, time.February, 1),
	})
	require.NoError(t, err)

	svc.WithClock(fixedClock(day(2024, time.January, 20)))

	overdue, err := svc.ListLoans(context.Background(), ListLoansRequest{Status: EffectiveOverdue})
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	require.Equal(t, int64(1), overdue[0].PersonID)

	active, err := svc.ListLoans(context.Background(), ListLoansRequest{Status: EffectiveActive})
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, int64(2), active[0].PersonID)

	_, err = svc.ListLoans(context.Background(), ListLoansRequest{Status: "BOGUS"})
	require.ErrorIs(t, err, ErrInvalidStatusFilter)
}
