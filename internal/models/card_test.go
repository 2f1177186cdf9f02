package models_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvelloso/studydeck/internal/models"
)

var now = time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

func TestNewCard_InitialState(t *testing.T) {
	card := models.NewCard("What is the capital of Peru?", "Lima", now)

	assert.NotEmpty(t, card.ID)
	assert.Equal(t, models.StatusNew, card.Status)
	assert.Equal(t, models.InitialEaseFactor, card.EaseFactor)
	assert.Equal(t, 0, card.Interval)
	assert.Equal(t, 0, card.Repetitions)
	assert.Equal(t, now, card.NextReviewDate, "a fresh card is due immediately")
	assert.Nil(t, card.LastReviewDate)
	require.NoError(t, card.Validate())
}

func TestNewCard_UniqueIDs(t *testing.T) {
	a := models.NewCard("front", "back", now)
	b := models.NewCard("front", "back", now)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestCardValidate(t *testing.T) {
	valid := models.NewCard("front", "back", now)

	tests := []struct {
		name    string
		mutate  func(*models.Card)
		wantErr string
	}{
		{
			name:    "valid card",
			mutate:  func(c *models.Card) {},
			wantErr: "",
		},
		{
			name:    "empty front",
			mutate:  func(c *models.Card) { c.Front = "" },
			wantErr: "front",
		},
		{
			name:    "empty back",
			mutate:  func(c *models.Card) { c.Back = "" },
			wantErr: "back",
		},
		{
			name:    "unknown status",
			mutate:  func(c *models.Card) { c.Status = "archived" },
			wantErr: "status",
		},
		{
			name:    "ease below floor",
			mutate:  func(c *models.Card) { c.EaseFactor = 1.2 },
			wantErr: "ease factor",
		},
		{
			name:    "negative interval",
			mutate:  func(c *models.Card) { c.Interval = -1 },
			wantErr: "negative",
		},
		{
			name: "counter mismatch",
			mutate: func(c *models.Card) {
				c.TotalReviews = 3
				c.CorrectReviews = 1
				c.IncorrectReviews = 1
			},
			wantErr: "counters inconsistent",
		},
		{
			name:    "average quality out of range",
			mutate:  func(c *models.Card) { c.AverageQuality = 5.5 },
			wantErr: "average quality",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			card := valid
			tt.mutate(&card)
			err := card.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestCardStatusValid(t *testing.T) {
	for _, s := range []models.CardStatus{models.StatusNew, models.StatusLearning, models.StatusReview, models.StatusMastered} {
		assert.True(t, s.Valid(), "%s should be valid", s)
	}
	assert.False(t, models.CardStatus("archived").Valid())
	assert.False(t, models.CardStatus("").Valid())
}
