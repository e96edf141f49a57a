package firestorerepo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/iterator"
	"google.golang.org/grpc/status"

	domain "github.com/laminate-navigator/api/internal/domain"
	pfirestore "github.com/laminate-navigator/api/internal/platform/firestore"
	"github.com/laminate-navigator/api/internal/repositories"
)

// CatalogRepository reads the laminate catalog from a Firestore collection.
type CatalogRepository struct {
	provider        *pfirestore.Provider
	collection      string
	productLinkBase string
}

// NewCatalogRepository constructs a Firestore-backed catalog repository.
func NewCatalogRepository(provider *pfirestore.Provider, collection, productLinkBase string) (*CatalogRepository, error) {
	if provider == nil {
		return nil, errors.New("firestore catalog: provider is required")
	}
	collection = strings.TrimSpace(collection)
	if collection == "" {
		return nil, errors.New("firestore catalog: collection is required")
	}
	return &CatalogRepository{
		provider:        provider,
		collection:      collection,
		productLinkBase: productLinkBase,
	}, nil
}

type laminateDocument struct {
	Name       string   `firestore:"name"`
	SKU        string   `firestore:"sku"`
	Hexcode    []string `firestore:"hexcode"`
	CoverImage string   `firestore:"coverImage"`
}

// FetchCatalog implements repositories.CatalogRepository.
func (r *CatalogRepository) FetchCatalog(ctx context.Context) ([]domain.CatalogEntry, error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", repositories.ErrCatalogUnavailable, err)
	}

	iter := client.Collection(r.collection).Documents(ctx)
	defer iter.Stop()

	var items []repositories.RawLaminate
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: list %s (%s): %v", repositories.ErrCatalogUnavailable, r.collection, status.Code(err), err)
		}

		var doc laminateDocument
		if err := snap.DataTo(&doc); err != nil {
			// A single undecodable document must not take down the snapshot.
			continue
		}
		items = append(items, repositories.RawLaminate{
			ID:         snap.Ref.ID,
			Name:       doc.Name,
			SKU:        doc.SKU,
			Hexcode:    doc.Hexcode,
			CoverImage: doc.CoverImage,
		})
	}

	if len(items) == 0 {
		return nil, fmt.Errorf("%w: collection %s is empty", repositories.ErrCatalogUnavailable, r.collection)
	}

	return repositories.MapRawLaminates(items, r.productLinkBase), nil
}
