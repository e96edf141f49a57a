package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/laminate-navigator/api/internal/domain"
	"github.com/laminate-navigator/api/internal/platform/textutil"
	"github.com/laminate-navigator/api/internal/repositories"
)

// Trigger substrings that switch a turn into continuation mode. Matching is
// case-insensitive anywhere in the phrase.
var continuationTriggers = []string{"other option", "more"}

// ConversationServiceDeps bundles constructor inputs for the conversation service.
type ConversationServiceDeps struct {
	Catalog  repositories.CatalogRepository
	Resolver AgentResolver
	Ranker   Ranker
	Cursor   PageCursor
	// HistoryLimit caps the transcript at this many user/agent pairs; zero
	// keeps the full transcript.
	HistoryLimit int
	Clock        func() time.Time
}

type conversationService struct {
	catalog      repositories.CatalogRepository
	resolver     AgentResolver
	ranker       Ranker
	cursor       PageCursor
	historyLimit int
	clock        func() time.Time
}

// NewConversationService constructs the per-turn router.
func NewConversationService(deps ConversationServiceDeps) (ConversationService, error) {
	if deps.Catalog == nil {
		return nil, errors.New("conversation service: catalog repository is required")
	}
	if deps.Resolver == nil {
		return nil, errors.New("conversation service: agent resolver is required")
	}
	if deps.Ranker == nil {
		return nil, errors.New("conversation service: ranker is required")
	}
	if deps.Cursor == nil {
		return nil, errors.New("conversation service: page cursor is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &conversationService{
		catalog:      deps.Catalog,
		resolver:     deps.Resolver,
		ranker:       deps.Ranker,
		cursor:       deps.Cursor,
		historyLimit: deps.HistoryLimit,
		clock:        func() time.Time { return clock().UTC() },
	}, nil
}

// ProcessTurn implements the ConversationService contract. All fallible work
// happens before the first state mutation: a failed turn leaves History,
// LastColorKey, and Pages exactly as they were.
func (s *conversationService) ProcessTurn(ctx context.Context, state *domain.ConversationState, phrase string, batchSize int) (TurnResult, error) {
	if state == nil {
		return TurnResult{}, errors.New("conversation service: state is required")
	}
	phrase = strings.TrimSpace(phrase)
	if phrase == "" {
		return TurnResult{}, ErrEmptyPhrase
	}
	if batchSize <= 0 {
		return TurnResult{}, fmt.Errorf("conversation service: batch size must be greater than zero, got %d", batchSize)
	}
	if state.Pages == nil {
		state.Pages = make(map[string]*domain.PageState)
	}

	continuation := isContinuation(phrase) && state.LastColorKey != ""

	var resolution ColorResolution
	if continuation {
		resolution = ColorResolution{
			ColorKey:    state.LastColorKey,
			Description: fmt.Sprintf("Showing more options for color %s.", state.LastColorKey),
		}
	} else {
		var err error
		resolution, err = s.resolver.Resolve(ctx, phrase, state.History)
		if err != nil {
			return TurnResult{}, err
		}
	}

	catalog, err := s.catalog.FetchCatalog(ctx)
	if err != nil {
		if errors.Is(err, repositories.ErrCatalogUnavailable) {
			return TurnResult{}, err
		}
		return TurnResult{}, fmt.Errorf("%w: %v", repositories.ErrCatalogUnavailable, err)
	}

	var batch []domain.RankedEntry
	if continuation {
		// Lazy ranking inside the cursor; a ranking failure stores nothing.
		batch, err = s.cursor.NextBatch(resolution.ColorKey, catalog, batchSize, state.Pages)
		if err != nil {
			return TurnResult{}, err
		}
	} else {
		// A fresh resolution always restarts pagination for its color, even
		// when that color was paginated earlier in the session.
		ranking, err := s.ranker.Rank(resolution.ColorKey, catalog)
		if err != nil {
			return TurnResult{}, err
		}
		state.Pages[resolution.ColorKey] = &domain.PageState{
			Ranking:    ranking,
			LastAccess: s.clock(),
		}
		state.LastColorKey = resolution.ColorKey

		batch, err = s.cursor.NextBatch(resolution.ColorKey, catalog, batchSize, state.Pages)
		if err != nil {
			return TurnResult{}, err
		}
	}

	state.History = append(state.History,
		domain.Message{Speaker: domain.SpeakerUser, Text: phrase},
		domain.Message{Speaker: domain.SpeakerAgent, Text: resolution.Description},
	)
	if s.historyLimit > 0 {
		if max := s.historyLimit * 2; len(state.History) > max {
			state.History = append(state.History[:0:0], state.History[len(state.History)-max:]...)
		}
	}

	return TurnResult{
		ColorKey:     resolution.ColorKey,
		Description:  resolution.Description,
		Matches:      batch,
		Continuation: continuation,
	}, nil
}

func isContinuation(phrase string) bool {
	return textutil.ContainsAnyFold(phrase, continuationTriggers)
}
