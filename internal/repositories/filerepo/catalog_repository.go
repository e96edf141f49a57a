package filerepo

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	domain "github.com/laminate-navigator/api/internal/domain"
	"github.com/laminate-navigator/api/internal/repositories"
)

// CatalogRepository serves the catalog from a local JSON snapshot. The file is
// re-read on every fetch so edits show up without a restart; there is no
// caching by design.
type CatalogRepository struct {
	path            string
	productLinkBase string
}

// NewCatalogRepository constructs the snapshot-backed repository.
func NewCatalogRepository(path, productLinkBase string) (*CatalogRepository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("file catalog: path is required")
	}
	return &CatalogRepository{path: path, productLinkBase: productLinkBase}, nil
}

type snapshot struct {
	Laminates []repositories.RawLaminate `json:"laminates"`
}

// FetchCatalog implements repositories.CatalogRepository.
func (r *CatalogRepository) FetchCatalog(ctx context.Context) ([]domain.CatalogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", repositories.ErrCatalogUnavailable, r.path, err)
	}

	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", repositories.ErrCatalogUnavailable, r.path, err)
	}
	if len(snap.Laminates) == 0 {
		return nil, fmt.Errorf("%w: snapshot %s holds no laminates", repositories.ErrCatalogUnavailable, r.path)
	}

	return repositories.MapRawLaminates(snap.Laminates, r.productLinkBase), nil
}
