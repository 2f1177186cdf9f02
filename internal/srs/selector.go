package srs

import (
	"time"

	"github.com/mvelloso/studydeck/internal/models"
)

// SelectDue returns the cards eligible for study at asOf, bounded by the
// deck's pacing settings: due new cards first (up to NewCardsPerDay), then
// due learning/review/mastered cards (up to MaxReviewsPerDay). Both groups
// keep insertion order so a study set is reproducible for a given deck
// state and time. A zero cap pauses the corresponding group.
func SelectDue(deck models.Deck, asOf time.Time) []models.Card {
	var dueNew, dueOthers []models.Card
	for _, c := range deck.Cards {
		if c.NextReviewDate.After(asOf) {
			continue
		}
		if c.Status == models.StatusNew {
			dueNew = append(dueNew, c)
		} else {
			dueOthers = append(dueOthers, c)
		}
	}

	if len(dueNew) > deck.NewCardsPerDay {
		dueNew = dueNew[:deck.NewCardsPerDay]
	}
	if len(dueOthers) > deck.MaxReviewsPerDay {
		dueOthers = dueOthers[:deck.MaxReviewsPerDay]
	}

	selected := make([]models.Card, 0, len(dueNew)+len(dueOthers))
	selected = append(selected, dueNew...)
	selected = append(selected, dueOthers...)
	return selected
}
