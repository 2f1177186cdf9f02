package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CardStatus is the coarse lifecycle stage of a card, derived from its
// review history. It is only ever changed by applying a review.
type CardStatus string

const (
	StatusNew      CardStatus = "new"
	StatusLearning CardStatus = "learning"
	StatusReview   CardStatus = "review"
	StatusMastered CardStatus = "mastered"
)

// Valid reports whether s is one of the four known statuses.
func (s CardStatus) Valid() bool {
	switch s {
	case StatusNew, StatusLearning, StatusReview, StatusMastered:
		return true
	}
	return false
}

const (
	// InitialEaseFactor is the ease factor assigned to freshly created cards.
	InitialEaseFactor = 2.5
	// MinEaseFactor is the floor below which the ease factor never drops.
	MinEaseFactor = 1.3
)

type Card struct {
	ID       string   `json:"id"`
	Front    string   `json:"front"`
	Back     string   `json:"back"`
	ImageURL string   `json:"image_url,omitempty"`
	Tags     []string `json:"tags,omitempty"`

	EaseFactor     float64    `json:"ease_factor"`
	Interval       int        `json:"interval"`
	Repetitions    int        `json:"repetitions"`
	NextReviewDate time.Time  `json:"next_review_date"`
	LastReviewDate *time.Time `json:"last_review_date,omitempty"`

	TotalReviews     int     `json:"total_reviews"`
	CorrectReviews   int     `json:"correct_reviews"`
	IncorrectReviews int     `json:"incorrect_reviews"`
	AverageQuality   float64 `json:"average_quality"`

	Status    CardStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
}

// NewCard creates a card in its initial scheduling state: due immediately,
// never reviewed.
func NewCard(front, back string, now time.Time) Card {
	return Card{
		ID:             uuid.NewString(),
		Front:          front,
		Back:           back,
		EaseFactor:     InitialEaseFactor,
		Interval:       0,
		Repetitions:    0,
		NextReviewDate: now,
		Status:         StatusNew,
		CreatedAt:      now,
	}
}

// Validate checks the structural invariants of a card.
func (c Card) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("card id is empty")
	}
	if c.Front == "" {
		return fmt.Errorf("card front is empty")
	}
	if c.Back == "" {
		return fmt.Errorf("card back is empty")
	}
	if !c.Status.Valid() {
		return fmt.Errorf("card status %q is not valid", c.Status)
	}
	if c.EaseFactor < MinEaseFactor {
		return fmt.Errorf("ease factor %.2f below minimum %.2f", c.EaseFactor, MinEaseFactor)
	}
	if c.Interval < 0 || c.Repetitions < 0 {
		return fmt.Errorf("negative scheduling state")
	}
	if c.TotalReviews != c.CorrectReviews+c.IncorrectReviews {
		return fmt.Errorf("review counters inconsistent: %d != %d + %d",
			c.TotalReviews, c.CorrectReviews, c.IncorrectReviews)
	}
	if c.AverageQuality < 0 || c.AverageQuality > 5 {
		return fmt.Errorf("average quality %.2f outside [0,5]", c.AverageQuality)
	}
	return nil
}
