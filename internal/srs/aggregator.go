package srs

import (
	"github.com/mvelloso/studydeck/internal/models"
)

// Recompute rebuilds the deck's derived counters from its cards and
// subscriber set and returns the updated deck. It is idempotent and never
// errors; invalid card data is rejected earlier by card validation, not
// repaired here.
func Recompute(deck models.Deck) models.Deck {
	deck.TotalCards = len(deck.Cards)
	deck.NewCards = 0
	deck.LearningCards = 0
	deck.ReviewCards = 0
	deck.MasteredCards = 0
	for _, c := range deck.Cards {
		switch c.Status {
		case models.StatusNew:
			deck.NewCards++
		case models.StatusLearning:
			deck.LearningCards++
		case models.StatusReview:
			deck.ReviewCards++
		case models.StatusMastered:
			deck.MasteredCards++
		}
	}
	deck.SubscriberCount = len(deck.Subscribers)
	return deck
}
