package services

import (
	"fmt"
	"math"
	"sort"

	domain "github.com/laminate-navigator/api/internal/domain"
	"github.com/laminate-navigator/api/internal/platform/color"
)

type ranker struct{}

// NewRanker constructs the catalog ranker.
func NewRanker() Ranker {
	return ranker{}
}

// Rank implements the Ranker contract. Entries without a usable hex code are
// excluded outright; malformed codes are dropped per code, never failing the
// whole ranking. The first entry seen for a product name wins, even when a
// later duplicate would score closer.
func (ranker) Rank(targetHex string, catalog []domain.CatalogEntry) (domain.Ranking, error) {
	target, err := color.ParseHex(targetHex)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTargetColor, targetHex)
	}

	seenNames := make(map[string]struct{}, len(catalog))
	ranked := make(domain.Ranking, 0, len(catalog))

	for _, entry := range catalog {
		if len(entry.Hexcodes) == 0 {
			continue
		}

		best := math.Inf(1)
		scored := false
		for _, code := range entry.Hexcodes {
			if !domain.HasHexMarker(code) {
				continue
			}
			rgb, err := color.ParseHex(code)
			if err != nil {
				continue
			}
			if d := color.Distance(target, rgb); d < best {
				best = d
			}
			scored = true
		}
		if !scored {
			continue
		}

		if _, dup := seenNames[entry.Name]; dup {
			continue
		}
		seenNames[entry.Name] = struct{}{}

		ranked = append(ranked, domain.RankedEntry{
			Name:     entry.Name,
			SKU:      entry.SKU,
			Link:     entry.Link,
			Distance: best,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Distance < ranked[j].Distance
	})

	return ranked, nil
}
