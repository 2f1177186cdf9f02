// Package srs implements the spaced-repetition core: the SM-2 review
// scheduler, due-card selection and deck counter recomputation. Everything
// here is pure; callers pass the reference time explicitly and own
// persistence.
package srs

import (
	"math"
	"time"

	"github.com/mvelloso/studydeck/internal/errors"
	"github.com/mvelloso/studydeck/internal/models"
)

// MasteredIntervalDays is the interval above which a card counts as mastered.
const MasteredIntervalDays = 21

// Review applies a single review with the given quality (0=total failure,
// 5=perfect recall) to a card and returns the card's next scheduling state.
// The input card is not mutated.
//
// The ease factor is recomputed on every review, including failures, and is
// clamped at models.MinEaseFactor. A quality below 3 resets the repetition
// streak and schedules the card again tomorrow; successes walk the card
// through the 1-day, 6-day and ease-multiplied intervals of SM-2.
func Review(card models.Card, quality int, now time.Time) (models.Card, error) {
	if quality < 0 || quality > 5 {
		return models.Card{}, errors.NewValidationError("quality", "must be between 0 and 5")
	}

	ease := card.EaseFactor + (0.1 - float64(5-quality)*(0.08+float64(5-quality)*0.02))
	if ease < models.MinEaseFactor {
		ease = models.MinEaseFactor
	}

	if quality < 3 {
		card.Repetitions = 0
		card.Interval = 1
		card.Status = models.StatusLearning
		card.IncorrectReviews++
	} else {
		switch {
		case card.Repetitions == 0:
			card.Interval = 1
			card.Repetitions = 1
			card.Status = models.StatusLearning
		case card.Repetitions == 1:
			card.Interval = 6
			card.Repetitions = 2
			card.Status = models.StatusReview
		default:
			card.Interval = int(math.Round(float64(card.Interval) * ease))
			card.Repetitions++
			if card.Interval > MasteredIntervalDays {
				card.Status = models.StatusMastered
			} else {
				card.Status = models.StatusReview
			}
		}
		card.CorrectReviews++
	}

	card.EaseFactor = ease
	reviewed := now
	card.LastReviewDate = &reviewed
	card.NextReviewDate = now.AddDate(0, 0, card.Interval)
	card.TotalReviews++
	card.AverageQuality = (card.AverageQuality*float64(card.TotalReviews-1) + float64(quality)) / float64(card.TotalReviews)

	return card, nil
}
