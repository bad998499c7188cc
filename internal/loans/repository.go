package loans

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openshelf/openshelf/internal/fines"
	"github.com/openshelf/openshelf/internal/inventory"
	"github.com/openshelf/openshelf/internal/platform/db"
	"github.com/openshelf/openshelf/internal/shared"
)

// Names of the constraints the loan invariants lean on. The partial unique
// indexes make exclusivity and single-allocation hold at the store even when
// two transactions pass the in-transaction checks simultaneously.
const (
	constraintOneActivePerPerson = "uq_loans_one_active_per_person"
	constraintOneActivePerCopy   = "uq_loans_one_active_per_copy"
)

// Repository defines loan data access.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetLoan(ctx context.Context, id int64) (Loan, error)
	ListLoans(ctx context.Context, filter ListFilter) ([]Loan, error)
	HasActiveLoan(ctx context.Context, personID int64) (bool, error)
}

// ListFilter narrows loan listings by stored status, borrower and due date.
// The due-date bounds let the effective ACTIVE/OVERDUE split happen in the
// query, so limit and offset address the filtered rows. Zero values mean no
// filter.
type ListFilter struct {
	Status       LoanStatus
	PersonID     int64
	DueBefore    time.Time
	DueOnOrAfter time.Time
	Limit        int
	Offset       int
}

// NewLoanRecord is the row inserted for a freshly created loan.
type NewLoanRecord struct {
	Reference     uuid.UUID
	PersonID      int64
	CatalogItemID int64
	CopyID        int64
	LoanedAt      time.Time
	DueAt         time.Time
}

// TxRepository is the transactional surface of one loan command. Copy and
// ledger operations delegate to the inventory and fines packages over the
// same transaction, so the whole unit of work commits or rolls back together.
type TxRepository interface {
	HasActiveLoan(ctx context.Context, personID int64) (bool, error)
	AllocateCopy(ctx context.Context, catalogItemID int64) (inventory.Copy, error)
	ClaimCopy(ctx context.Context, copyID int64) error
	ReleaseCopy(ctx context.Context, copyID int64) error
	InsertLoan(ctx context.Context, rec NewLoanRecord) (Loan, error)
	GetLoanForUpdate(ctx context.Context, id int64) (Loan, error)
	FinalizeLoan(ctx context.Context, id int64, status LoanStatus, returnedAt time.Time) error
	RecordFine(ctx context.Context, input fines.RecordFineInput, createdAt time.Time) (fines.Fine, error)
}

var (
	_ Repository   = (*pgRepository)(nil)
	_ TxRepository = (*pgTxRepository)(nil)
)

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a pool-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

type pgTxRepository struct {
	tx     pgx.Tx
	copies *inventory.TxRepository
	ledger *fines.TxRepository
}

// WithTx runs a loan command as one repeatable-read transaction and maps
// store-level conflicts onto the loan error taxonomy.
func (r *pgRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgTxRepository{
			tx:     tx,
			copies: inventory.NewTxRepository(tx),
			ledger: fines.NewTxRepository(tx),
		})
	})
	switch {
	case err == nil:
		return nil
	case db.IsUniqueViolation(err, constraintOneActivePerPerson):
		return ErrBorrowerHasActiveLoan
	case db.IsUniqueViolation(err, constraintOneActivePerCopy),
		db.IsSerializationFailure(err),
		errors.Is(err, db.ErrConflict):
		return ErrConcurrentModification
	default:
		return err
	}
}

const loanColumns = `id, reference, person_id, catalog_item_id, copy_id, loaned_at, due_at, returned_at, status, created_at, updated_at`

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func scanLoan(row pgx.Row) (Loan, error) {
	var l Loan
	err := row.Scan(&l.ID, &l.Reference, &l.PersonID, &l.CatalogItemID, &l.CopyID,
		&l.LoanedAt, &l.DueAt, &l.ReturnedAt, &l.Status, &l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Loan{}, ErrLoanNotFound
	}
	if err != nil {
		return Loan{}, err
	}
	return l, nil
}

func (r *pgRepository) GetLoan(ctx context.Context, id int64) (Loan, error) {
	return scanLoan(r.pool.QueryRow(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = $1`, id))
}

func (r *pgRepository) ListLoans(ctx context.Context, filter ListFilter) ([]Loan, error) {
	limit, offset := shared.ClampPage(filter.Limit, filter.Offset)
	rows, err := r.pool.Query(ctx,
		`SELECT `+loanColumns+` FROM loans
		 WHERE ($1 = '' OR status = $1)
		   AND ($2 = 0 OR person_id = $2)
		   AND ($3::timestamptz IS NULL OR due_at < $3)
		   AND ($4::timestamptz IS NULL OR due_at >= $4)
		 ORDER BY id
		 LIMIT $5 OFFSET $6`,
		string(filter.Status), filter.PersonID,
		nullableTime(filter.DueBefore), nullableTime(filter.DueOnOrAfter), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var loans []Loan
	for rows.Next() {
		var l Loan
		if err := rows.Scan(&l.ID, &l.Reference, &l.PersonID, &l.CatalogItemID, &l.CopyID,
			&l.LoanedAt, &l.DueAt, &l.ReturnedAt, &l.Status, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		loans = append(loans, l)
	}
	return loans, rows.Err()
}

func (r *pgRepository) HasActiveLoan(ctx context.Context, personID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM loans WHERE person_id = $1 AND status = 'ACTIVE')`, personID).Scan(&exists)
	return exists, err
}

func (r *pgTxRepository) HasActiveLoan(ctx context.Context, personID int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM loans WHERE person_id = $1 AND status = 'ACTIVE')`, personID).Scan(&exists)
	return exists, err
}

func (r *pgTxRepository) AllocateCopy(ctx context.Context, catalogItemID int64) (inventory.Copy, error) {
	return r.copies.AllocateAvailableCopy(ctx, catalogItemID)
}

func (r *pgTxRepository) ClaimCopy(ctx context.Context, copyID int64) error {
	return r.copies.MarkLoaned(ctx, copyID)
}

func (r *pgTxRepository) ReleaseCopy(ctx context.Context, copyID int64) error {
	return r.copies.MarkAvailable(ctx, copyID)
}

func (r *pgTxRepository) InsertLoan(ctx context.Context, rec NewLoanRecord) (Loan, error) {
	return scanLoan(r.tx.QueryRow(ctx,
		`INSERT INTO loans (reference, person_id, catalog_item_id, copy_id, loaned_at, due_at, status)
		 VALUES ($1, $2, $3, $4, $5, $6, 'ACTIVE')
		 RETURNING `+loanColumns,
		rec.Reference, rec.PersonID, rec.CatalogItemID, rec.CopyID, rec.LoanedAt, rec.DueAt))
}

func (r *pgTxRepository) GetLoanForUpdate(ctx context.Context, id int64) (Loan, error) {
	return scanLoan(r.tx.QueryRow(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = $1 FOR UPDATE`, id))
}

func (r *pgTxRepository) FinalizeLoan(ctx context.Context, id int64, status LoanStatus, returnedAt time.Time) error {
	tag, err := r.tx.Exec(ctx,
		`UPDATE loans SET status = $2, returned_at = $3, updated_at = now() WHERE id = $1 AND status = 'ACTIVE'`,
		id, string(status), returnedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrLoanAlreadyTerminal
	}
	return nil
}

func (r *pgTxRepository) RecordFine(ctx context.Context, input fines.RecordFineInput, createdAt time.Time) (fines.Fine, error) {
	return r.ledger.RecordFine(ctx, input, createdAt)
}
