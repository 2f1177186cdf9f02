package repository

import (
	"context"
	"errors"

	"github.com/mvelloso/studydeck/internal/models"
)

// ErrRevisionMismatch is returned by Update when the deck's stored revision
// no longer matches the revision the caller read. The caller is expected to
// re-read the deck and retry.
var ErrRevisionMismatch = errors.New("deck revision mismatch")

// DeckRepository handles deck data access. A deck and its cards and
// subscribers form one document: Get loads it whole, Update replaces it
// whole under optimistic concurrency.
type DeckRepository interface {
	// Insert stores a new deck with all of its cards and subscribers.
	Insert(ctx context.Context, deck models.Deck) error

	// Get loads a deck document by id. Returns (nil, nil) when the deck
	// does not exist.
	Get(ctx context.Context, id string) (*models.Deck, error)

	// List returns deck summaries matching the filter, without cards or
	// subscribers loaded. The visible set is always bounded to decks the
	// requester owns plus public decks.
	List(ctx context.Context, filter models.DeckFilter) ([]models.Deck, error)

	// Update replaces the deck document conditional on deck.Revision
	// matching the stored revision; the stored revision is incremented.
	// Returns ErrRevisionMismatch when another writer got there first.
	Update(ctx context.Context, deck models.Deck) error

	// Delete removes a deck and cascades to its cards and subscribers.
	Delete(ctx context.Context, id string) error
}
