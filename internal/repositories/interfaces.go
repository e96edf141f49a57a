package repositories

import (
	"context"
	"errors"

	domain "github.com/laminate-navigator/api/internal/domain"
)

// ErrCatalogUnavailable indicates the catalog collaborator failed or returned
// no usable data. Turn processing treats it as terminal for the turn.
var ErrCatalogUnavailable = errors.New("catalog: unavailable")

// CatalogRepository fetches the full laminate catalog snapshot. The snapshot
// is consumed wholesale per resolution; implementations must not retain or
// mutate returned slices.
type CatalogRepository interface {
	FetchCatalog(ctx context.Context) ([]domain.CatalogEntry, error)
}
