package repositories

import (
	"strings"

	domain "github.com/laminate-navigator/api/internal/domain"
)

// RawLaminate mirrors the JSON shape produced by the catalog collaborators.
type RawLaminate struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	SKU        string   `json:"sku"`
	Hexcode    []string `json:"hexcode"`
	CoverImage string   `json:"coverImage"`
}

// MapRawLaminates converts collaborator payload items into catalog entries,
// building product links from the configured base URL. Items without an ID are
// dropped; hex validation is deliberately left to the ranker, which excludes
// malformed codes per entry rather than per snapshot.
func MapRawLaminates(items []RawLaminate, linkBase string) []domain.CatalogEntry {
	linkBase = strings.TrimRight(strings.TrimSpace(linkBase), "/")

	entries := make([]domain.CatalogEntry, 0, len(items))
	for _, item := range items {
		id := strings.TrimSpace(item.ID)
		if id == "" {
			continue
		}
		entry := domain.CatalogEntry{
			ID:       id,
			Name:     strings.TrimSpace(item.Name),
			SKU:      strings.TrimSpace(item.SKU),
			Hexcodes: item.Hexcode,
			ImageRef: strings.TrimSpace(item.CoverImage),
		}
		if linkBase != "" {
			entry.Link = linkBase + "/" + id
		}
		entries = append(entries, entry)
	}
	return entries
}
