package fines

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openshelf/openshelf/internal/platform/db"
)

// Name of the unique index backing the one-fine-per-(loan, kind) rule.
const constraintLoanKind = "uq_fines_loan_kind"

// Repository defines fine ledger data access.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxLedger) error) error
	GetFine(ctx context.Context, id int64) (Fine, error)
	ListFines(ctx context.Context, req ListFinesRequest) ([]Fine, error)
	SumAmountsByState(ctx context.Context, state FineState) (float64, error)
	GetConfig(ctx context.Context) (FineConfig, error)
	UpdateConfig(ctx context.Context, cfg FineConfig) (FineConfig, error)
}

// TxLedger exposes the transactional ledger operations.
type TxLedger interface {
	RecordFine(ctx context.Context, input RecordFineInput, createdAt time.Time) (Fine, error)
	GetFineForUpdate(ctx context.Context, id int64) (Fine, error)
	SetSettlement(ctx context.Context, id int64, state FineState, settledAt time.Time) error
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var (
	_ Repository = (*pgRepository)(nil)
	_ TxLedger   = (*TxRepository)(nil)
)

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a pool-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

// TxRepository runs ledger operations against an already-open transaction.
// The loan manager composes it into return and loss units of work.
type TxRepository struct {
	q querier
}

// NewTxRepository wraps an open transaction.
func NewTxRepository(tx pgx.Tx) *TxRepository {
	return &TxRepository{q: tx}
}

func (r *pgRepository) WithTx(ctx context.Context, fn func(context.Context, TxLedger) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewTxRepository(tx))
	})
}

const fineColumns = `id, loan_id, person_id, kind, amount, note, state, created_at, settled_at`

func scanFine(row pgx.Row) (Fine, error) {
	var f Fine
	err := row.Scan(&f.ID, &f.LoanID, &f.PersonID, &f.Kind, &f.Amount, &f.Note, &f.State, &f.CreatedAt, &f.SettledAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Fine{}, ErrFineNotFound
	}
	if err != nil {
		return Fine{}, err
	}
	return f, nil
}

func (r *pgRepository) GetFine(ctx context.Context, id int64) (Fine, error) {
	return scanFine(r.pool.QueryRow(ctx, `SELECT `+fineColumns+` FROM fines WHERE id = $1`, id))
}

func (r *pgRepository) ListFines(ctx context.Context, req ListFinesRequest) ([]Fine, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+fineColumns+` FROM fines
		 WHERE ($1 = 0 OR person_id = $1)
		   AND ($2 = 0 OR loan_id = $2)
		   AND ($3 = '' OR state = $3)
		 ORDER BY id`,
		req.PersonID, req.LoanID, string(req.State))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var fines []Fine
	for rows.Next() {
		var f Fine
		if err := rows.Scan(&f.ID, &f.LoanID, &f.PersonID, &f.Kind, &f.Amount, &f.Note, &f.State, &f.CreatedAt, &f.SettledAt); err != nil {
			return nil, err
		}
		fines = append(fines, f)
	}
	return fines, rows.Err()
}

func (r *pgRepository) SumAmountsByState(ctx context.Context, state FineState) (float64, error) {
	var sum float64
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM fines WHERE ($1 = '' OR state = $1)`, string(state)).Scan(&sum)
	return sum, err
}

func (r *pgRepository) GetConfig(ctx context.Context) (FineConfig, error) {
	var cfg FineConfig
	err := r.pool.QueryRow(ctx,
		`SELECT late_fee_per_day, loss_fee, updated_at FROM fine_config WHERE id = 1`).
		Scan(&cfg.LateFeePerDay, &cfg.LossFee, &cfg.UpdatedAt)
	if err != nil {
		return FineConfig{}, err
	}
	return cfg, nil
}

func (r *pgRepository) UpdateConfig(ctx context.Context, cfg FineConfig) (FineConfig, error) {
	var out FineConfig
	err := r.pool.QueryRow(ctx,
		`UPDATE fine_config SET late_fee_per_day = $1, loss_fee = $2, updated_at = now()
		 WHERE id = 1
		 RETURNING late_fee_per_day, loss_fee, updated_at`,
		cfg.LateFeePerDay, cfg.LossFee).
		Scan(&out.LateFeePerDay, &out.LossFee, &out.UpdatedAt)
	if err != nil {
		return FineConfig{}, err
	}
	return out, nil
}

// RecordFine appends a PENDING fine. The unique index on (loan_id, kind)
// turns a duplicate into ErrDuplicateFineKind even under concurrent writers.
func (r *TxRepository) RecordFine(ctx context.Context, input RecordFineInput, createdAt time.Time) (Fine, error) {
	f, err := scanFine(r.q.QueryRow(ctx,
		`INSERT INTO fines (loan_id, person_id, kind, amount, note, state, created_at)
		 VALUES ($1, $2, $3, $4, $5, 'PENDING', $6)
		 RETURNING `+fineColumns,
		input.LoanID, input.PersonID, string(input.Kind), input.Amount, input.Note, createdAt))
	if db.IsUniqueViolation(err, constraintLoanKind) {
		return Fine{}, ErrDuplicateFineKind
	}
	return f, err
}

func (r *TxRepository) GetFineForUpdate(ctx context.Context, id int64) (Fine, error) {
	return scanFine(r.q.QueryRow(ctx, `SELECT `+fineColumns+` FROM fines WHERE id = $1 FOR UPDATE`, id))
}

func (r *TxRepository) SetSettlement(ctx context.Context, id int64, state FineState, settledAt time.Time) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE fines SET state = $2, settled_at = $3 WHERE id = $1 AND state = 'PENDING'`,
		id, string(state), settledAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrFineAlreadySettled
	}
	return nil
}
