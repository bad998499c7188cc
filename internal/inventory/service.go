package inventory

import "context"

// Service exposes copy availability to the rest of the application. Writes go
// through the loan manager's transactions; the standalone mark operations
// exist for catalog tooling and tests.
type Service struct {
	repo Repository
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// GetCopy returns one copy by id.
func (s *Service) GetCopy(ctx context.Context, id int64) (Copy, error) {
	return s.repo.GetCopy(ctx, id)
}

// IsAvailable reports whether the copy can be loaned out.
func (s *Service) IsAvailable(ctx context.Context, id int64) (bool, error) {
	return s.repo.IsAvailable(ctx, id)
}

// ListByCatalogItem returns every copy of a catalog item.
func (s *Service) ListByCatalogItem(ctx context.Context, catalogItemID int64) ([]Copy, error) {
	return s.repo.ListByCatalogItem(ctx, catalogItemID)
}

// MarkLoaned flags a copy as loaned out.
func (s *Service) MarkLoaned(ctx context.Context, id int64) error {
	return s.repo.MarkLoaned(ctx, id)
}

// MarkAvailable flags a copy as back in circulation.
func (s *Service) MarkAvailable(ctx context.Context, id int64) error {
	return s.repo.MarkAvailable(ctx, id)
}
