package services

import (
	"context"
	"database/sql"
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mvelloso/studydeck/internal/clock"
	"github.com/mvelloso/studydeck/internal/errors"
	"github.com/mvelloso/studydeck/internal/logger"
	"github.com/mvelloso/studydeck/internal/models"
	"github.com/mvelloso/studydeck/internal/repository"
	"github.com/mvelloso/studydeck/internal/srs"
)

// DeckService handles deck ownership, card editing and subscriptions.
type DeckService interface {
	CreateDeck(ctx context.Context, ownerID, name, description string, settings models.DeckSettings) (*models.Deck, error)
	GetDeck(ctx context.Context, deckID, requesterID string) (*models.Deck, error)
	ListDecks(ctx context.Context, requesterID string, filter models.DeckFilter) ([]models.Deck, error)
	UpdateDeck(ctx context.Context, deckID, requesterID string, patch models.DeckPatch) (*models.Deck, error)
	DeleteDeck(ctx context.Context, deckID, requesterID string) error
	AddCard(ctx context.Context, deckID, requesterID string, content models.CardContent) (*models.Card, error)
	UpdateCard(ctx context.Context, deckID, cardID, requesterID string, content models.CardContent) (*models.Card, error)
	RemoveCard(ctx context.Context, deckID, cardID, requesterID string) error
	Subscribe(ctx context.Context, deckID, requesterID string) (*models.Deck, error)
	Unsubscribe(ctx context.Context, deckID, requesterID string) (*models.Deck, error)
}

type deckService struct {
	repo      repository.DeckRepository
	clk       clock.Clock
	sanitizer *bluemonday.Policy
}

// NewDeckService creates a new DeckService
func NewDeckService(repo repository.DeckRepository, clk clock.Clock) DeckService {
	return &deckService{
		repo: repo,
		clk:  clk,
		// Card and deck text is plain text; strip all markup on the way in.
		sanitizer: bluemonday.StrictPolicy(),
	}
}

func (s *deckService) CreateDeck(ctx context.Context, ownerID, name, description string, settings models.DeckSettings) (*models.Deck, error) {
	log := logger.FromContext(ctx)
	log.Debug("creating deck: owner=%s, name=%s", ownerID, name)

	if ownerID == "" {
		return nil, errors.NewValidationError("owner_id", "is required")
	}
	name = s.cleanText(name)
	if name == "" {
		return nil, errors.NewValidationError("name", "is required")
	}

	deck := models.NewDeck(ownerID, name, s.cleanText(description), s.clk.Now())
	if settings.NewCardsPerDay != nil {
		if *settings.NewCardsPerDay < 0 {
			return nil, errors.NewValidationError("new_cards_per_day", "must not be negative")
		}
		deck.NewCardsPerDay = *settings.NewCardsPerDay
	}
	if settings.MaxReviewsPerDay != nil {
		if *settings.MaxReviewsPerDay < 0 {
			return nil, errors.NewValidationError("max_reviews_per_day", "must not be negative")
		}
		deck.MaxReviewsPerDay = *settings.MaxReviewsPerDay
	}
	deck = srs.Recompute(deck)

	if err := s.repo.Insert(ctx, deck); err != nil {
		log.Error("failed to insert deck: %v", err)
		return nil, errors.NewInternalError(err)
	}

	log.Info("deck created: id=%s, owner=%s", deck.ID, ownerID)
	return &deck, nil
}

func (s *deckService) GetDeck(ctx context.Context, deckID, requesterID string) (*models.Deck, error) {
	deck, err := s.loadDeck(ctx, deckID)
	if err != nil {
		return nil, err
	}
	if !deck.CanRead(requesterID) {
		return nil, errors.NewPermissionError("deck is private")
	}
	return deck, nil
}

func (s *deckService) ListDecks(ctx context.Context, requesterID string, filter models.DeckFilter) ([]models.Deck, error) {
	log := logger.FromContext(ctx)
	log.Debug("listing decks: requester=%s", requesterID)

	filter.RequesterID = requesterID
	decks, err := s.repo.List(ctx, filter)
	if err != nil {
		log.Error("failed to list decks: %v", err)
		return nil, errors.NewInternalError(err)
	}
	return decks, nil
}

func (s *deckService) UpdateDeck(ctx context.Context, deckID, requesterID string, patch models.DeckPatch) (*models.Deck, error) {
	log := logger.FromContext(ctx)
	log.Debug("updating deck: id=%s, requester=%s", deckID, requesterID)

	deck, err := s.loadOwnedDeck(ctx, deckID, requesterID)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		name := s.cleanText(*patch.Name)
		if name == "" {
			return nil, errors.NewValidationError("name", "is required")
		}
		deck.Name = name
	}
	if patch.Description != nil {
		deck.Description = s.cleanText(*patch.Description)
	}
	if patch.NewCardsPerDay != nil {
		if *patch.NewCardsPerDay < 0 {
			return nil, errors.NewValidationError("new_cards_per_day", "must not be negative")
		}
		deck.NewCardsPerDay = *patch.NewCardsPerDay
	}
	if patch.MaxReviewsPerDay != nil {
		if *patch.MaxReviewsPerDay < 0 {
			return nil, errors.NewValidationError("max_reviews_per_day", "must not be negative")
		}
		deck.MaxReviewsPerDay = *patch.MaxReviewsPerDay
	}
	if patch.IsPublic != nil {
		deck.IsPublic = *patch.IsPublic
		if !deck.IsPublic {
			// Going private drops the subscriber list.
			deck.Subscribers = nil
		}
	}

	if err := s.saveDeck(ctx, deck); err != nil {
		return nil, err
	}
	log.Info("deck updated: id=%s", deckID)
	return deck, nil
}

func (s *deckService) DeleteDeck(ctx context.Context, deckID, requesterID string) error {
	log := logger.FromContext(ctx)
	log.Debug("deleting deck: id=%s, requester=%s", deckID, requesterID)

	if _, err := s.loadOwnedDeck(ctx, deckID, requesterID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, deckID); err != nil {
		if err == sql.ErrNoRows {
			return errors.NewNotFoundError("deck", deckID)
		}
		log.Error("failed to delete deck: %v", err)
		return errors.NewInternalError(err)
	}
	log.Info("deck deleted: id=%s", deckID)
	return nil
}

func (s *deckService) AddCard(ctx context.Context, deckID, requesterID string, content models.CardContent) (*models.Card, error) {
	log := logger.FromContext(ctx)
	log.Debug("adding card: deck=%s, requester=%s", deckID, requesterID)

	deck, err := s.loadOwnedDeck(ctx, deckID, requesterID)
	if err != nil {
		return nil, err
	}
	clean, err := s.cleanContent(content)
	if err != nil {
		return nil, err
	}

	card := models.NewCard(clean.Front, clean.Back, s.clk.Now())
	card.ImageURL = clean.ImageURL
	card.Tags = clean.Tags
	deck.Cards = append(deck.Cards, card)

	if err := s.saveDeck(ctx, deck); err != nil {
		return nil, err
	}
	log.Info("card added: deck=%s, card=%s", deckID, card.ID)
	return &card, nil
}

func (s *deckService) UpdateCard(ctx context.Context, deckID, cardID, requesterID string, content models.CardContent) (*models.Card, error) {
	log := logger.FromContext(ctx)
	log.Debug("updating card: deck=%s, card=%s", deckID, cardID)

	deck, err := s.loadOwnedDeck(ctx, deckID, requesterID)
	if err != nil {
		return nil, err
	}
	idx := deck.CardIndex(cardID)
	if idx < 0 {
		return nil, errors.NewNotFoundError("card", cardID)
	}
	clean, err := s.cleanContent(content)
	if err != nil {
		return nil, err
	}

	// Only content changes; scheduling state belongs to the review flow.
	deck.Cards[idx].Front = clean.Front
	deck.Cards[idx].Back = clean.Back
	deck.Cards[idx].ImageURL = clean.ImageURL
	deck.Cards[idx].Tags = clean.Tags

	if err := s.saveDeck(ctx, deck); err != nil {
		return nil, err
	}
	card := deck.Cards[idx]
	log.Info("card updated: deck=%s, card=%s", deckID, cardID)
	return &card, nil
}

func (s *deckService) RemoveCard(ctx context.Context, deckID, cardID, requesterID string) error {
	log := logger.FromContext(ctx)
	log.Debug("removing card: deck=%s, card=%s", deckID, cardID)

	deck, err := s.loadOwnedDeck(ctx, deckID, requesterID)
	if err != nil {
		return err
	}
	idx := deck.CardIndex(cardID)
	if idx < 0 {
		return errors.NewNotFoundError("card", cardID)
	}
	deck.Cards = append(deck.Cards[:idx], deck.Cards[idx+1:]...)

	if err := s.saveDeck(ctx, deck); err != nil {
		return err
	}
	log.Info("card removed: deck=%s, card=%s", deckID, cardID)
	return nil
}

func (s *deckService) Subscribe(ctx context.Context, deckID, requesterID string) (*models.Deck, error) {
	log := logger.FromContext(ctx)
	log.Debug("subscribing: deck=%s, user=%s", deckID, requesterID)

	deck, err := s.loadDeck(ctx, deckID)
	if err != nil {
		return nil, err
	}
	if !deck.IsPublic {
		return nil, errors.NewPermissionError("cannot subscribe to a private deck")
	}
	if deck.OwnerID == requesterID {
		return nil, errors.NewValidationError("requester_id", "owner cannot subscribe to own deck")
	}
	if deck.HasSubscriber(requesterID) {
		return deck, nil
	}
	deck.Subscribers = append(deck.Subscribers, requesterID)

	if err := s.saveDeck(ctx, deck); err != nil {
		return nil, err
	}
	log.Info("subscribed: deck=%s, user=%s", deckID, requesterID)
	return deck, nil
}

func (s *deckService) Unsubscribe(ctx context.Context, deckID, requesterID string) (*models.Deck, error) {
	log := logger.FromContext(ctx)
	log.Debug("unsubscribing: deck=%s, user=%s", deckID, requesterID)

	deck, err := s.loadDeck(ctx, deckID)
	if err != nil {
		return nil, err
	}
	if !deck.IsPublic {
		return nil, errors.NewPermissionError("cannot unsubscribe from a private deck")
	}
	if !deck.HasSubscriber(requesterID) {
		return deck, nil
	}
	subs := deck.Subscribers[:0]
	for _, u := range deck.Subscribers {
		if u != requesterID {
			subs = append(subs, u)
		}
	}
	deck.Subscribers = subs

	if err := s.saveDeck(ctx, deck); err != nil {
		return nil, err
	}
	log.Info("unsubscribed: deck=%s, user=%s", deckID, requesterID)
	return deck, nil
}

func (s *deckService) loadDeck(ctx context.Context, deckID string) (*models.Deck, error) {
	deck, err := s.repo.Get(ctx, deckID)
	if err != nil {
		logger.FromContext(ctx).Error("failed to get deck: %v", err)
		return nil, errors.NewInternalError(err)
	}
	if deck == nil {
		return nil, errors.NewNotFoundError("deck", deckID)
	}
	return deck, nil
}

func (s *deckService) loadOwnedDeck(ctx context.Context, deckID, requesterID string) (*models.Deck, error) {
	deck, err := s.loadDeck(ctx, deckID)
	if err != nil {
		return nil, err
	}
	if deck.OwnerID != requesterID {
		return nil, errors.NewPermissionError("only the deck owner may modify it")
	}
	return deck, nil
}

// saveDeck recomputes the derived counters and writes the deck back under
// its current revision. Owner edits are not retried on conflict; the caller
// re-issues the request.
func (s *deckService) saveDeck(ctx context.Context, deck *models.Deck) error {
	*deck = srs.Recompute(*deck)
	deck.UpdatedAt = s.clk.Now()
	if err := s.repo.Update(ctx, *deck); err != nil {
		if err == repository.ErrRevisionMismatch {
			return errors.NewConflictError("deck", deck.ID)
		}
		if err == sql.ErrNoRows {
			return errors.NewNotFoundError("deck", deck.ID)
		}
		logger.FromContext(ctx).Error("failed to update deck: %v", err)
		return errors.NewInternalError(err)
	}
	deck.Revision++
	return nil
}

func (s *deckService) cleanText(text string) string {
	return strings.TrimSpace(s.sanitizer.Sanitize(text))
}

// cleanURL validates an image reference. URLs are kept verbatim so query
// strings survive the round trip; the strict text policy would escape them.
func cleanURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", errors.NewValidationError("image_url", "must be an http or https URL")
	}
	return u.String(), nil
}

func (s *deckService) cleanContent(content models.CardContent) (models.CardContent, error) {
	content.Front = s.cleanText(content.Front)
	content.Back = s.cleanText(content.Back)
	imageURL, err := cleanURL(content.ImageURL)
	if err != nil {
		return content, err
	}
	content.ImageURL = imageURL
	if content.Front == "" {
		return content, errors.NewValidationError("front", "is required")
	}
	if content.Back == "" {
		return content, errors.NewValidationError("back", "is required")
	}
	tags := content.Tags[:0]
	for _, tag := range content.Tags {
		if t := s.cleanText(tag); t != "" {
			tags = append(tags, t)
		}
	}
	content.Tags = tags
	return content, nil
}
