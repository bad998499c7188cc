package shared

const (
	// DefaultPageSize bounds listings when the caller specifies no limit.
	DefaultPageSize = 50
	// MaxPageSize is the hard ceiling for one listing page.
	MaxPageSize = 200
)

// ClampPage normalises limit and offset values for paginated listings.
func ClampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
