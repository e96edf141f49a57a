package services

import (
	"errors"
	"fmt"
	"time"

	domain "github.com/laminate-navigator/api/internal/domain"
	"github.com/laminate-navigator/api/internal/platform/color"
)

type pageCursor struct {
	ranker Ranker
	clock  func() time.Time
}

// NewPageCursor constructs a cursor backed by the supplied ranker.
func NewPageCursor(ranker Ranker, clock func() time.Time) (PageCursor, error) {
	if ranker == nil {
		return nil, errors.New("page cursor: ranker is required")
	}
	if clock == nil {
		clock = time.Now
	}
	return &pageCursor{ranker: ranker, clock: func() time.Time { return clock().UTC() }}, nil
}

// NextBatch implements the PageCursor contract. The index advances by the
// batch size unconditionally, even past the end of the ranking, so an
// exhausted color key keeps answering with empty batches instead of wrapping
// or erroring.
func (c *pageCursor) NextBatch(colorKey string, catalog []domain.CatalogEntry, batchSize int, pages map[string]*domain.PageState) ([]domain.RankedEntry, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("page cursor: batch size must be greater than zero, got %d", batchSize)
	}
	if pages == nil {
		return nil, errors.New("page cursor: page state map is required")
	}

	key := color.NormalizeKey(colorKey)
	state, ok := pages[key]
	if !ok {
		ranking, err := c.ranker.Rank(key, catalog)
		if err != nil {
			return nil, err
		}
		state = &domain.PageState{Ranking: ranking}
		pages[key] = state
	}

	start := state.NextIndex
	end := start + batchSize
	state.NextIndex = end
	state.LastAccess = c.clock()

	if start >= len(state.Ranking) {
		return []domain.RankedEntry{}, nil
	}
	if end > len(state.Ranking) {
		end = len(state.Ranking)
	}

	batch := make([]domain.RankedEntry, end-start)
	copy(batch, state.Ranking[start:end])
	return batch, nil
}
