package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/mvelloso/studydeck/internal/clock"
	"github.com/mvelloso/studydeck/internal/errors"
	"github.com/mvelloso/studydeck/internal/logger"
	"github.com/mvelloso/studydeck/internal/models"
	"github.com/mvelloso/studydeck/internal/repository"
	"github.com/mvelloso/studydeck/internal/srs"
)

// StudyService drives review sessions: picking due cards and applying
// review outcomes under optimistic concurrency.
type StudyService interface {
	// GetDueCards returns the bounded study set for the deck at asOf.
	// A zero asOf means "now".
	GetDueCards(ctx context.Context, deckID, requesterID string, asOf time.Time) ([]models.Card, error)

	// SubmitReview applies a quality rating to a card and persists the
	// deck, retrying the read-compute-write cycle on revision conflicts.
	SubmitReview(ctx context.Context, deckID, cardID, requesterID string, quality int) (*models.Card, error)
}

type studyService struct {
	repo          repository.DeckRepository
	clk           clock.Clock
	retryAttempts int
}

// NewStudyService creates a new StudyService. retryAttempts bounds how many
// times a review is retried when concurrent writers race on the same deck.
func NewStudyService(repo repository.DeckRepository, clk clock.Clock, retryAttempts int) StudyService {
	if retryAttempts < 1 {
		retryAttempts = 1
	}
	return &studyService{repo: repo, clk: clk, retryAttempts: retryAttempts}
}

func (s *studyService) GetDueCards(ctx context.Context, deckID, requesterID string, asOf time.Time) ([]models.Card, error) {
	log := logger.FromContext(ctx)
	log.Debug("getting due cards: deck=%s, requester=%s", deckID, requesterID)

	deck, err := s.repo.Get(ctx, deckID)
	if err != nil {
		log.Error("failed to get deck: %v", err)
		return nil, errors.NewInternalError(err)
	}
	if deck == nil {
		return nil, errors.NewNotFoundError("deck", deckID)
	}
	if !deck.CanRead(requesterID) {
		return nil, errors.NewPermissionError("deck is private")
	}

	if asOf.IsZero() {
		asOf = s.clk.Now()
	}
	due := srs.SelectDue(*deck, asOf)
	log.Debug("selected %d due cards", len(due))
	return due, nil
}

func (s *studyService) SubmitReview(ctx context.Context, deckID, cardID, requesterID string, quality int) (*models.Card, error) {
	log := logger.FromContext(ctx)
	log.Debug("submitting review: deck=%s, card=%s, quality=%d", deckID, cardID, quality)

	// Reject bad input before touching any state.
	if quality < 0 || quality > 5 {
		return nil, errors.NewValidationError("quality", "must be between 0 and 5")
	}

	for attempt := 1; attempt <= s.retryAttempts; attempt++ {
		deck, err := s.repo.Get(ctx, deckID)
		if err != nil {
			log.Error("failed to get deck: %v", err)
			return nil, errors.NewInternalError(err)
		}
		if deck == nil {
			return nil, errors.NewNotFoundError("deck", deckID)
		}
		if !deck.CanRead(requesterID) {
			return nil, errors.NewPermissionError("deck is private")
		}
		idx := deck.CardIndex(cardID)
		if idx < 0 {
			return nil, errors.NewNotFoundError("card", cardID)
		}

		now := s.clk.Now()
		updated, err := srs.Review(deck.Cards[idx], quality, now)
		if err != nil {
			return nil, err
		}
		deck.Cards[idx] = updated
		*deck = srs.Recompute(*deck)
		deck.UpdatedAt = now

		err = s.repo.Update(ctx, *deck)
		if err == repository.ErrRevisionMismatch {
			log.Debug("revision conflict on deck %s, attempt %d/%d", deckID, attempt, s.retryAttempts)
			continue
		}
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("deck", deckID)
		}
		if err != nil {
			log.Error("failed to persist review: %v", err)
			return nil, errors.NewInternalError(err)
		}

		log.Info("review applied: deck=%s, card=%s, interval=%d, status=%s",
			deckID, cardID, updated.Interval, updated.Status)
		return &updated, nil
	}

	log.Warn("review retries exhausted: deck=%s, card=%s", deckID, cardID)
	return nil, errors.NewConflictError("deck", deckID)
}
