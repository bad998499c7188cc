// Package inventory tracks each physical copy of a catalog item and its
// availability. Availability is a two-valued flag; transition legality is
// owned by the loan manager calling the guarded operations here.
package inventory

import (
	"fmt"
	"time"

	"github.com/openshelf/openshelf/internal/shared"
)

// CopyStatus enumerates copy availability states.
type CopyStatus string

const (
	StatusAvailable CopyStatus = "AVAILABLE"
	StatusLoaned    CopyStatus = "LOANED"
)

// Copy is one physical instance of a catalog item.
type Copy struct {
	ID            int64
	CatalogItemID int64
	Barcode       string
	Status        CopyStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

var (
	// ErrCopyNotFound indicates the copy does not exist.
	ErrCopyNotFound = fmt.Errorf("%w: copy does not exist", shared.ErrNotFound)
	// ErrCopyAlreadyLoaned indicates the copy is not available to loan out.
	ErrCopyAlreadyLoaned = fmt.Errorf("%w: copy is already loaned", shared.ErrStateConflict)
	// ErrNoCopyAvailable indicates no available copy exists for a catalog item.
	ErrNoCopyAvailable = fmt.Errorf("%w: no available copy for catalog item", shared.ErrStateConflict)
)
