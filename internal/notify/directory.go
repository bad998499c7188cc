package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openshelf/openshelf/internal/shared"
)

// ErrPersonNotFound indicates the borrower does not exist in the directory.
var ErrPersonNotFound = fmt.Errorf("%w: person does not exist", shared.ErrNotFound)

type pgDirectory struct {
	pool *pgxpool.Pool
}

// NewDirectory constructs a directory over the shared people table.
func NewDirectory(pool *pgxpool.Pool) PersonDirectory {
	return &pgDirectory{pool: pool}
}

func (d *pgDirectory) GetPerson(ctx context.Context, id int64) (Person, error) {
	var p Person
	err := d.pool.QueryRow(ctx, `SELECT id, name, email FROM people WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return Person{}, ErrPersonNotFound
	}
	if err != nil {
		return Person{}, err
	}
	return p, nil
}
