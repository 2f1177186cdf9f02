package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultNewCardsPerDay limits how many unseen cards enter a study
	// session when the owner has not configured a value.
	DefaultNewCardsPerDay = 20
	// DefaultMaxReviewsPerDay limits due non-new cards per session.
	DefaultMaxReviewsPerDay = 100
)

type Deck struct {
	ID          string `json:"id"`
	OwnerID     string `json:"owner_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	// Cards are kept in insertion order. Order carries no scheduling
	// meaning but selection within a study set must be reproducible.
	Cards []Card `json:"cards,omitempty"`

	NewCardsPerDay   int `json:"new_cards_per_day"`
	MaxReviewsPerDay int `json:"max_reviews_per_day"`

	IsPublic    bool     `json:"is_public"`
	Subscribers []string `json:"subscribers,omitempty"`

	// Derived counters, recomputed before every write. Never hand-edited.
	TotalCards      int `json:"total_cards"`
	NewCards        int `json:"new_cards"`
	LearningCards   int `json:"learning_cards"`
	ReviewCards     int `json:"review_cards"`
	MasteredCards   int `json:"mastered_cards"`
	SubscriberCount int `json:"subscriber_count"`

	// Revision is the optimistic-concurrency token, incremented on every
	// persisted write of the deck document.
	Revision  int64     `json:"revision"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeckSettings carries the study-pacing knobs on create. Nil means "use the
// default"; zero is a valid value that pauses the corresponding partition.
type DeckSettings struct {
	NewCardsPerDay   *int `json:"new_cards_per_day,omitempty"`
	MaxReviewsPerDay *int `json:"max_reviews_per_day,omitempty"`
}

// DeckPatch is a partial update of deck metadata and settings. Nil fields
// are left unchanged.
type DeckPatch struct {
	Name             *string `json:"name,omitempty"`
	Description      *string `json:"description,omitempty"`
	NewCardsPerDay   *int    `json:"new_cards_per_day,omitempty"`
	MaxReviewsPerDay *int    `json:"max_reviews_per_day,omitempty"`
	IsPublic         *bool   `json:"is_public,omitempty"`
}

// DeckFilter narrows ListDecks results. RequesterID always bounds the
// visible set to owned-or-public decks.
type DeckFilter struct {
	RequesterID string
	OwnerID     string
	PublicOnly  bool
	Name        string
	Limit       int
	Offset      int
}

// CardContent is the owner-editable portion of a card.
type CardContent struct {
	Front    string   `json:"front"`
	Back     string   `json:"back"`
	ImageURL string   `json:"image_url,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// NewDeck creates an empty private deck with default pacing settings. The
// revision starts at 1 so the document returned on create matches the
// stored concurrency token.
func NewDeck(ownerID, name, description string, now time.Time) Deck {
	return Deck{
		ID:               uuid.NewString(),
		OwnerID:          ownerID,
		Name:             name,
		Description:      description,
		NewCardsPerDay:   DefaultNewCardsPerDay,
		MaxReviewsPerDay: DefaultMaxReviewsPerDay,
		Revision:         1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// CardIndex returns the position of the card with the given id, or -1.
func (d Deck) CardIndex(cardID string) int {
	for i, c := range d.Cards {
		if c.ID == cardID {
			return i
		}
	}
	return -1
}

// HasSubscriber reports whether userID is in the deck's subscriber set.
func (d Deck) HasSubscriber(userID string) bool {
	for _, s := range d.Subscribers {
		if s == userID {
			return true
		}
	}
	return false
}

// CanRead reports whether userID may view the deck and study it. Public
// decks are readable by anyone; private decks only by their owner.
func (d Deck) CanRead(userID string) bool {
	return d.OwnerID == userID || d.IsPublic
}

// Validate checks the structural invariants of a deck, including all of
// its cards.
func (d Deck) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("deck id is empty")
	}
	if d.OwnerID == "" {
		return fmt.Errorf("deck owner is empty")
	}
	if d.Name == "" {
		return fmt.Errorf("deck name is empty")
	}
	if d.NewCardsPerDay < 0 {
		return fmt.Errorf("new cards per day is negative")
	}
	if d.MaxReviewsPerDay < 0 {
		return fmt.Errorf("max reviews per day is negative")
	}
	seen := make(map[string]bool, len(d.Cards))
	for _, c := range d.Cards {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("card %s: %w", c.ID, err)
		}
		if seen[c.ID] {
			return fmt.Errorf("duplicate card id %s", c.ID)
		}
		seen[c.ID] = true
	}
	return nil
}
