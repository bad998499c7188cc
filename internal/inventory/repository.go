package inventory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines copy inventory data access.
type Repository interface {
	GetCopy(ctx context.Context, id int64) (Copy, error)
	IsAvailable(ctx context.Context, id int64) (bool, error)
	ListByCatalogItem(ctx context.Context, catalogItemID int64) ([]Copy, error)
	MarkLoaned(ctx context.Context, id int64) error
	MarkAvailable(ctx context.Context, id int64) error
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ Repository = (*pgRepository)(nil)

type pgRepository struct {
	q querier
}

// NewRepository constructs a pool-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{q: pool}
}

// TxRepository exposes the copy operations the loan manager composes into its
// transactions. It runs against an already-open pgx.Tx and never commits.
type TxRepository struct {
	pgRepository
}

// NewTxRepository wraps an open transaction.
func NewTxRepository(tx pgx.Tx) *TxRepository {
	return &TxRepository{pgRepository{q: tx}}
}

func (r *pgRepository) GetCopy(ctx context.Context, id int64) (Copy, error) {
	var c Copy
	err := r.q.QueryRow(ctx,
		`SELECT id, catalog_item_id, barcode, status, created_at, updated_at FROM copies WHERE id = $1`, id).
		Scan(&c.ID, &c.CatalogItemID, &c.Barcode, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Copy{}, ErrCopyNotFound
	}
	if err != nil {
		return Copy{}, err
	}
	return c, nil
}

func (r *pgRepository) IsAvailable(ctx context.Context, id int64) (bool, error) {
	c, err := r.GetCopy(ctx, id)
	if err != nil {
		return false, err
	}
	return c.Status == StatusAvailable, nil
}

func (r *pgRepository) ListByCatalogItem(ctx context.Context, catalogItemID int64) ([]Copy, error) {
	rows, err := r.q.Query(ctx,
		`SELECT id, catalog_item_id, barcode, status, created_at, updated_at FROM copies WHERE catalog_item_id = $1 ORDER BY id`,
		catalogItemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var copies []Copy
	for rows.Next() {
		var c Copy
		if err := rows.Scan(&c.ID, &c.CatalogItemID, &c.Barcode, &c.Status, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		copies = append(copies, c)
	}
	return copies, rows.Err()
}

// MarkLoaned transitions an AVAILABLE copy to LOANED. The guard lives in the
// statement so a concurrent allocator cannot loan the same copy twice.
func (r *pgRepository) MarkLoaned(ctx context.Context, id int64) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE copies SET status = 'LOANED', updated_at = now() WHERE id = $1 AND status = 'AVAILABLE'`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetCopy(ctx, id); err != nil {
			return err
		}
		return ErrCopyAlreadyLoaned
	}
	return nil
}

// MarkAvailable transitions a copy back to AVAILABLE. A no-op when the copy is
// already available.
func (r *pgRepository) MarkAvailable(ctx context.Context, id int64) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE copies SET status = 'AVAILABLE', updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCopyNotFound
	}
	return nil
}

// AllocateAvailableCopy locks and returns the lowest-id AVAILABLE copy of a
// catalog item. The row lock serialises competing allocations of the last copy.
func (r *TxRepository) AllocateAvailableCopy(ctx context.Context, catalogItemID int64) (Copy, error) {
	var c Copy
	err := r.q.QueryRow(ctx,
		`SELECT id, catalog_item_id, barcode, status, created_at, updated_at
		 FROM copies
		 WHERE catalog_item_id = $1 AND status = 'AVAILABLE'
		 ORDER BY id
		 LIMIT 1
		 FOR UPDATE`, catalogItemID).
		Scan(&c.ID, &c.CatalogItemID, &c.Barcode, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Copy{}, ErrNoCopyAvailable
	}
	if err != nil {
		return Copy{}, err
	}
	return c, nil
}
