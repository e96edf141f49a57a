package services

import (
	"context"
	"errors"

	domain "github.com/laminate-navigator/api/internal/domain"
)

var (
	// ErrInvalidTargetColor indicates a ranking was requested against a hex
	// code that does not parse. Callers are expected to validate first.
	ErrInvalidTargetColor = errors.New("ranker: invalid target color")
	// ErrAgentResponse indicates the language-model collaborator returned
	// something other than the strict two-field JSON contract.
	ErrAgentResponse = errors.New("agent: invalid response")
	// ErrEmptyPhrase indicates the user submitted a blank message.
	ErrEmptyPhrase = errors.New("conversation: phrase is required")
)

// Ranker scores a catalog snapshot against a target color. Rank is pure:
// identical inputs always yield the identical ordered result.
type Ranker interface {
	Rank(targetHex string, catalog []domain.CatalogEntry) (domain.Ranking, error)
}

// PageCursor serves sequential, non-overlapping batches from per-color
// rankings, computing each ranking lazily on first access and reusing it on
// every subsequent request for the same color key.
type PageCursor interface {
	NextBatch(colorKey string, catalog []domain.CatalogEntry, batchSize int, pages map[string]*domain.PageState) ([]domain.RankedEntry, error)
}

// ColorResolution is the validated outcome of one agent collaborator call.
type ColorResolution struct {
	ColorKey    string
	Description string
}

// AgentResolver turns a natural-language phrase into a representative color.
type AgentResolver interface {
	Resolve(ctx context.Context, phrase string, history []domain.Message) (ColorResolution, error)
}

// TurnResult is everything one successful conversation turn produces.
type TurnResult struct {
	ColorKey     string
	Description  string
	Matches      []domain.RankedEntry
	Continuation bool
}

// ConversationService routes a single user turn: reuse of the previous color
// on "show more" phrases, or resolution of a new color via the agent.
type ConversationService interface {
	ProcessTurn(ctx context.Context, state *domain.ConversationState, phrase string, batchSize int) (TurnResult, error)
}
