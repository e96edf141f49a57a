package domain

import (
	"strings"
	"time"
)

// CatalogEntry is a single laminate product as returned by the catalog
// collaborator. Entries are fetched wholesale per resolution and never cached
// across turns.
type CatalogEntry struct {
	ID       string
	Name     string
	SKU      string
	Hexcodes []string
	ImageRef string
	Link     string
}

// RankedEntry is a catalog entry scored against a target color. One entry is
// emitted per unique product name; the first occurrence in catalog order wins
// regardless of its distance.
type RankedEntry struct {
	Name     string  `json:"name"`
	SKU      string  `json:"sku"`
	Link     string  `json:"link"`
	Distance float64 `json:"distance"`
}

// Ranking is an ordered sequence of ranked entries, ascending by distance with
// ties broken by catalog iteration order.
type Ranking []RankedEntry

// PageState tracks pagination progress for one color key within a session.
// NextIndex only ever grows; the cursor keeps advancing past the end of the
// ranking so that exhausted keys keep returning empty batches.
type PageState struct {
	Ranking    Ranking
	NextIndex  int
	LastAccess time.Time
}

// Speaker identifies the author of a conversation message.
type Speaker string

const (
	SpeakerUser  Speaker = "user"
	SpeakerAgent Speaker = "agent"
)

// Message is a single entry in a session transcript.
type Message struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
}

// ConversationState holds everything the router needs across turns of one
// session. LastColorKey is updated only when a new color is resolved, never on
// "show more" turns. History is appended only at the end of successful turns.
type ConversationState struct {
	History      []Message
	LastColorKey string
	Pages        map[string]*PageState
}

// NewConversationState returns an empty state ready for its first turn.
func NewConversationState() *ConversationState {
	return &ConversationState{
		Pages: make(map[string]*PageState),
	}
}

// Reset clears the transcript, the remembered color, and all pagination
// cursors unconditionally.
func (s *ConversationState) Reset() {
	s.History = nil
	s.LastColorKey = ""
	s.Pages = make(map[string]*PageState)
}

// HasHexMarker reports whether the raw code carries the leading hex marker.
// Codes without it are ignored when scoring an entry.
func HasHexMarker(code string) bool {
	return strings.HasPrefix(code, "#")
}
