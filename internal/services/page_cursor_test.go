package services

import (
	"errors"
	"reflect"
	"testing"
	"time"

	domain "github.com/laminate-navigator/api/internal/domain"
)

func testCatalog(n int) []domain.CatalogEntry {
	catalog := make([]domain.CatalogEntry, 0, n)
	codes := []string{"#000001", "#000002", "#000003", "#000004", "#000005", "#000006", "#000007"}
	names := []string{"Alpha", "Beta", "Gamma", "Delta", "Epsilon", "Zeta", "Eta"}
	for i := 0; i < n; i++ {
		catalog = append(catalog, domain.CatalogEntry{
			ID:       names[i],
			Name:     names[i],
			Hexcodes: []string{codes[i]},
		})
	}
	return catalog
}

func newTestCursor(t *testing.T) PageCursor {
	t.Helper()
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	cursor, err := NewPageCursor(NewRanker(), func() time.Time { return now })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return cursor
}

func TestNextBatchPaginationExhaustiveness(t *testing.T) {
	cursor := newTestCursor(t)
	catalog := testCatalog(5)
	pages := make(map[string]*domain.PageState)

	// batchSize 2 over a ranking of 5: [0,1], [2,3], [4], then empty forever.
	first, err := cursor.NextBatch("#000000", catalog, 2, pages)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := cursor.NextBatch("#000000", catalog, 2, pages)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	third, err := cursor.NextBatch("#000000", catalog, 2, pages)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fourth, err := cursor.NextBatch("#000000", catalog, 2, pages)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(first) != 2 || len(second) != 2 || len(third) != 1 || len(fourth) != 0 {
		t.Fatalf("unexpected batch lengths %d/%d/%d/%d", len(first), len(second), len(third), len(fourth))
	}

	var concatenated []domain.RankedEntry
	concatenated = append(concatenated, first...)
	concatenated = append(concatenated, second...)
	concatenated = append(concatenated, third...)

	full := pages["#000000"].Ranking
	if !reflect.DeepEqual(concatenated, []domain.RankedEntry(full)) {
		t.Fatalf("concatenated batches differ from the full ranking:\n%v\n%v", concatenated, full)
	}

	// The key stays exhausted; it never wraps.
	fifth, err := cursor.NextBatch("#000000", catalog, 2, pages)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fifth) != 0 {
		t.Fatalf("expected empty batch after exhaustion, got %d entries", len(fifth))
	}
}

func TestNextBatchRanksLazilyOnce(t *testing.T) {
	counter := &countingRanker{inner: NewRanker()}
	cursor, err := NewPageCursor(counter, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	catalog := testCatalog(4)
	pages := make(map[string]*domain.PageState)

	for i := 0; i < 3; i++ {
		if _, err := cursor.NextBatch("#000000", catalog, 2, pages); err != nil {
			t.Fatalf("unexpected error on call %d: %v", i, err)
		}
	}
	if counter.calls != 1 {
		t.Fatalf("expected exactly one ranking computation, got %d", counter.calls)
	}
}

func TestNextBatchNormalisesColorKey(t *testing.T) {
	cursor := newTestCursor(t)
	catalog := testCatalog(4)
	pages := make(map[string]*domain.PageState)

	if _, err := cursor.NextBatch("#0000ff", catalog, 2, pages); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := cursor.NextBatch("#0000FF", catalog, 2, pages); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(pages) != 1 {
		t.Fatalf("expected a single cursor for both casings, got %d", len(pages))
	}
	if pages["#0000FF"] == nil {
		t.Fatalf("expected canonical upper-case key, got %v", pages)
	}
	if pages["#0000FF"].NextIndex != 4 {
		t.Fatalf("expected NextIndex 4 after two batches of 2, got %d", pages["#0000FF"].NextIndex)
	}
}

func TestNextBatchIndexAdvancesUnconditionally(t *testing.T) {
	cursor := newTestCursor(t)
	catalog := testCatalog(3)
	pages := make(map[string]*domain.PageState)

	for i := 0; i < 4; i++ {
		if _, err := cursor.NextBatch("#000000", catalog, 4, pages); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if got := pages["#000000"].NextIndex; got != 16 {
		t.Fatalf("expected NextIndex to keep advancing past the end (16), got %d", got)
	}
}

func TestNextBatchValidation(t *testing.T) {
	cursor := newTestCursor(t)
	catalog := testCatalog(2)

	if _, err := cursor.NextBatch("#000000", catalog, 0, map[string]*domain.PageState{}); err == nil {
		t.Fatalf("expected error for zero batch size")
	}
	if _, err := cursor.NextBatch("#000000", catalog, 2, nil); err == nil {
		t.Fatalf("expected error for nil page state map")
	}
	if _, err := cursor.NextBatch("bogus", catalog, 2, map[string]*domain.PageState{}); !errors.Is(err, ErrInvalidTargetColor) {
		t.Fatalf("expected ErrInvalidTargetColor, got %v", err)
	}
}

func TestNextBatchFailedRankingStoresNothing(t *testing.T) {
	cursor := newTestCursor(t)
	pages := make(map[string]*domain.PageState)

	if _, err := cursor.NextBatch("bogus", testCatalog(2), 2, pages); err == nil {
		t.Fatalf("expected ranking failure")
	}
	if len(pages) != 0 {
		t.Fatalf("expected no cursor stored after a failed ranking, got %d", len(pages))
	}
}

type countingRanker struct {
	inner Ranker
	calls int
}

func (c *countingRanker) Rank(targetHex string, catalog []domain.CatalogEntry) (domain.Ranking, error) {
	c.calls++
	return c.inner.Rank(targetHex, catalog)
}
