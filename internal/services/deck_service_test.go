package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mvelloso/studydeck/internal/clock"
	apperrors "github.com/mvelloso/studydeck/internal/errors"
	"github.com/mvelloso/studydeck/internal/models"
	"github.com/mvelloso/studydeck/internal/repository"
	"github.com/mvelloso/studydeck/internal/services"
	"github.com/mvelloso/studydeck/internal/testutil/mocks"
)

var deckTime = time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

func newDeckService(repo repository.DeckRepository) services.DeckService {
	return services.NewDeckService(repo, clock.NewFixed(deckTime))
}

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }
func boolPtr(v bool) *bool    { return &v }

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	appErr, ok := err.(*apperrors.AppError)
	require.True(t, ok, "expected AppError, got %T", err)
	assert.Equal(t, code, appErr.Code)
}

func TestCreateDeck_Defaults(t *testing.T) {
	repo := new(mocks.MockDeckRepository)
	repo.On("Insert", mock.Anything, mock.AnythingOfType("models.Deck")).Return(nil)

	svc := newDeckService(repo)
	deck, err := svc.CreateDeck(context.Background(), "owner", "Spanish vocab", "common words", models.DeckSettings{})

	require.NoError(t, err)
	assert.Equal(t, "owner", deck.OwnerID)
	assert.Equal(t, models.DefaultNewCardsPerDay, deck.NewCardsPerDay)
	assert.Equal(t, models.DefaultMaxReviewsPerDay, deck.MaxReviewsPerDay)
	assert.False(t, deck.IsPublic)
	assert.Equal(t, deckTime, deck.CreatedAt)
	assert.Equal(t, int64(1), deck.Revision, "returned revision must match the persisted token")
	repo.AssertExpectations(t)
}

func TestCreateDeck_CustomSettings(t *testing.T) {
	repo := new(mocks.MockDeckRepository)
	repo.On("Insert", mock.Anything, mock.AnythingOfType("models.Deck")).Return(nil)

	svc := newDeckService(repo)
	deck, err := svc.CreateDeck(context.Background(), "owner", "deck", "", models.DeckSettings{
		NewCardsPerDay:   intPtr(0),
		MaxReviewsPerDay: intPtr(50),
	})

	require.NoError(t, err)
	assert.Equal(t, 0, deck.NewCardsPerDay, "zero is a valid pause setting")
	assert.Equal(t, 50, deck.MaxReviewsPerDay)
}

func TestCreateDeck_Validation(t *testing.T) {
	repo := new(mocks.MockDeckRepository)
	svc := newDeckService(repo)

	tests := []struct {
		name     string
		ownerID  string
		deckName string
		settings models.DeckSettings
	}{
		{name: "empty owner", ownerID: "", deckName: "deck"},
		{name: "empty name", ownerID: "owner", deckName: ""},
		{name: "markup-only name", ownerID: "owner", deckName: "<script>x</script>"},
		{name: "negative new cards", ownerID: "owner", deckName: "deck",
			settings: models.DeckSettings{NewCardsPerDay: intPtr(-1)}},
		{name: "negative max reviews", ownerID: "owner", deckName: "deck",
			settings: models.DeckSettings{MaxReviewsPerDay: intPtr(-10)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateDeck(context.Background(), tt.ownerID, tt.deckName, "", tt.settings)
			assertCode(t, err, apperrors.ErrCodeValidation)
		})
	}
	repo.AssertNotCalled(t, "Insert")
}

func TestCreateDeck_SanitizesMarkup(t *testing.T) {
	repo := new(mocks.MockDeckRepository)
	repo.On("Insert", mock.Anything, mock.AnythingOfType("models.Deck")).Return(nil)

	svc := newDeckService(repo)
	deck, err := svc.CreateDeck(context.Background(), "owner", "<b>Spanish</b>", "<i>words</i>", models.DeckSettings{})

	require.NoError(t, err)
	assert.Equal(t, "Spanish", deck.Name)
	assert.Equal(t, "words", deck.Description)
}

func TestGetDeck_Permissions(t *testing.T) {
	repo := new(mocks.MockDeckRepository)
	private := models.NewDeck("owner", "deck", "", deckTime)
	repo.On("Get", mock.Anything, private.ID).Return(&private, nil)
	repo.On("Get", mock.Anything, "missing").Return(nil, nil)

	svc := newDeckService(repo)

	deck, err := svc.GetDeck(context.Background(), private.ID, "owner")
	require.NoError(t, err)
	assert.Equal(t, private.ID, deck.ID)

	_, err = svc.GetDeck(context.Background(), private.ID, "stranger")
	assertCode(t, err, apperrors.ErrCodePermission)

	_, err = svc.GetDeck(context.Background(), "missing", "owner")
	assertCode(t, err, apperrors.ErrCodeNotFound)
}

func TestUpdateDeck_OwnerOnly(t *testing.T) {
	repo := new(mocks.MockDeckRepository)
	deck := models.NewDeck("owner", "deck", "", deckTime)
	repo.On("Get", mock.Anything, deck.ID).Return(&deck, nil)

	svc := newDeckService(repo)
	_, err := svc.UpdateDeck(context.Background(), deck.ID, "stranger", models.DeckPatch{Name: strPtr("hijacked")})

	assertCode(t, err, apperrors.ErrCodePermission)
	repo.AssertNotCalled(t, "Update")
}

func TestUpdateDeck_AppliesPatch(t *testing.T) {
	repo := new(mocks.MockDeckRepository)
	deck := models.NewDeck("owner", "deck", "", deckTime)
	repo.On("Get", mock.Anything, deck.ID).Return(&deck, nil)
	repo.On("Update", mock.Anything, mock.MatchedBy(func(d models.Deck) bool {
		return d.Name == "renamed" && d.NewCardsPerDay == 5 && d.IsPublic
	})).Return(nil)

	svc := newDeckService(repo)
	updated, err := svc.UpdateDeck(context.Background(), deck.ID, "owner", models.DeckPatch{
		Name:           strPtr("renamed"),
		NewCardsPerDay: intPtr(5),
		IsPublic:       boolPtr(true),
	})

	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Name)
	assert.Equal(t, 5, updated.NewCardsPerDay)
	assert.True(t, updated.IsPublic)
	repo.AssertExpectations(t)
}

func TestUpdateDeck_GoingPrivateDropsSubscribers(t *testing.T) {
	repo := new(mocks.MockDeckRepository)
	deck := models.NewDeck("owner", "deck", "", deckTime)
	deck.IsPublic = true
	deck.Subscribers = []string{"u1", "u2"}
	repo.On("Get", mock.Anything, deck.ID).Return(&deck, nil)
	repo.On("Update", mock.Anything, mock.MatchedBy(func(d models.Deck) bool {
		return !d.IsPublic && len(d.Subscribers) == 0 && d.SubscriberCount == 0
	})).Return(nil)

	svc := newDeckService(repo)
	updated, err := svc.UpdateDeck(context.Background(), deck.ID, "owner", models.DeckPatch{IsPublic: boolPtr(false)})

	require.NoError(t, err)
	assert.Empty(t, updated.Subscribers)
	repo.AssertExpectations(t)
}

func TestDeleteDeck_OwnerOnly(t *testing.T) {
	repo := new(mocks.MockDeckRepository)
	deck := models.NewDeck("owner", "deck", "", deckTime)
	repo.On("Get", mock.Anything, deck.ID).Return(&deck, nil)
	repo.On("Delete", mock.Anything, deck.ID).Return(nil)

	svc := newDeckService(repo)

	err := svc.DeleteDeck(context.Background(), deck.ID, "stranger")
	assertCode(t, err, apperrors.ErrCodePermission)

	err = svc.DeleteDeck(context.Background(), deck.ID, "owner")
	require.NoError(t, err)
	repo.AssertNumberOfCalls(t, "Delete", 1)
}

func TestAddCard_Success(t *testing.T) {
	repo := new(mocks.MockDeckRepository)
	deck := models.NewDeck("owner", "deck", "", deckTime)
	repo.On("Get", mock.Anything, deck.ID).Return(&deck, nil)
	repo.On("Update", mock.Anything, mock.MatchedBy(func(d models.Deck) bool {
		return d.TotalCards == 1 && d.NewCards == 1
	})).Return(nil)

	svc := newDeckService(repo)
	card, err := svc.AddCard(context.Background(), deck.ID, "owner", models.CardContent{
		Front: "hola",
		Back:  "hello",
		Tags:  []string{"greetings"},
	})

	require.NoError(t, err)
	assert.Equal(t, models.StatusNew, card.Status)
	assert.Equal(t, models.InitialEaseFactor, card.EaseFactor)
	assert.Equal(t, deckTime, card.NextReviewDate)
	assert.Equal(t, []string{"greetings"}, card.Tags)
	repo.AssertExpectations(t)
}

func TestAddCard_Validation(t *testing.T) {
	repo := new(mocks.MockDeckRepository)
	deck := models.NewDeck("owner", "deck", "", deckTime)
	repo.On("Get", mock.Anything, deck.ID).Return(&deck, nil)

	svc := newDeckService(repo)

	_, err := svc.AddCard(context.Background(), deck.ID, "owner", models.CardContent{Front: "", Back: "b"})
	assertCode(t, err, apperrors.ErrCodeValidation)

	_, err = svc.AddCard(context.Background(), deck.ID, "owner", models.CardContent{Front: "f", Back: ""})
	assertCode(t, err, apperrors.ErrCodeValidation)
	repo.AssertNotCalled(t, "Update")
}

func TestAddCard_ImageURLKeepsQueryString(t *testing.T) {
	repo := new(mocks.MockDeckRepository)
	deck := models.NewDeck("owner", "deck", "", deckTime)
	repo.On("Get", mock.Anything, deck.ID).Return(&deck, nil)
	repo.On("Update", mock.Anything, mock.AnythingOfType("models.Deck")).Return(nil)

	svc := newDeckService(repo)
	card, err := svc.AddCard(context.Background(), deck.ID, "owner", models.CardContent{
		Front:    "hola",
		Back:     "hello",
		ImageURL: "https://example.com/img.png?w=100&h=200",
	})

	require.NoError(t, err)
	assert.Equal(t, "https://example.com/img.png?w=100&h=200", card.ImageURL,
		"image URLs must round-trip without escaping")
}

func TestAddCard_RejectsNonHTTPImageURL(t *testing.T) {
	repo := new(mocks.MockDeckRepository)
	deck := models.NewDeck("owner", "deck", "", deckTime)
	repo.On("Get", mock.Anything, deck.ID).Return(&deck, nil)

	svc := newDeckService(repo)
	for _, raw := range []string{"javascript:alert(1)", "ftp://example.com/x.png", "::not-a-url"} {
		_, err := svc.AddCard(context.Background(), deck.ID, "owner", models.CardContent{
			Front:    "hola",
			Back:     "hello",
			ImageURL: raw,
		})
		assertCode(t, err, apperrors.ErrCodeValidation)
	}
	repo.AssertNotCalled(t, "Update")
}

func TestUpdateCard_PreservesSchedulingState(t *testing.T) {
	repo := new(mocks.MockDeckRepository)
	deck := models.NewDeck("owner", "deck", "", deckTime)
	card := models.NewCard("old front", "old back", deckTime)
	card.Repetitions = 3
	card.Interval = 12
	card.Status = models.StatusReview
	deck.Cards = []models.Card{card}
	repo.On("Get", mock.Anything, deck.ID).Return(&deck, nil)
	repo.On("Update", mock.Anything, mock.AnythingOfType("models.Deck")).Return(nil)

	svc := newDeckService(repo)
	updated, err := svc.UpdateCard(context.Background(), deck.ID, card.ID, "owner", models.CardContent{
		Front: "new front",
		Back:  "new back",
	})

	require.NoError(t, err)
	assert.Equal(t, "new front", updated.Front)
	assert.Equal(t, 3, updated.Repetitions, "content edits must not touch scheduling state")
	assert.Equal(t, 12, updated.Interval)
	assert.Equal(t, models.StatusReview, updated.Status)
}

func TestRemoveCard(t *testing.T) {
	repo := new(mocks.MockDeckRepository)
	deck := models.NewDeck("owner", "deck", "", deckTime)
	card := models.NewCard("front", "back", deckTime)
	deck.Cards = []models.Card{card}
	repo.On("Get", mock.Anything, deck.ID).Return(&deck, nil)
	repo.On("Update", mock.Anything, mock.MatchedBy(func(d models.Deck) bool {
		return d.TotalCards == 0 && len(d.Cards) == 0
	})).Return(nil)

	svc := newDeckService(repo)

	err := svc.RemoveCard(context.Background(), deck.ID, "missing", "owner")
	assertCode(t, err, apperrors.ErrCodeNotFound)

	err = svc.RemoveCard(context.Background(), deck.ID, card.ID, "owner")
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestSubscribe(t *testing.T) {
	repo := new(mocks.MockDeckRepository)
	deck := models.NewDeck("owner", "deck", "", deckTime)
	deck.IsPublic = true
	repo.On("Get", mock.Anything, deck.ID).Return(&deck, nil)
	repo.On("Update", mock.Anything, mock.MatchedBy(func(d models.Deck) bool {
		return d.SubscriberCount == 1 && d.HasSubscriber("learner")
	})).Return(nil)

	svc := newDeckService(repo)
	updated, err := svc.Subscribe(context.Background(), deck.ID, "learner")

	require.NoError(t, err)
	assert.True(t, updated.HasSubscriber("learner"))
	assert.Equal(t, 1, updated.SubscriberCount)
	repo.AssertExpectations(t)
}

func TestSubscribe_PrivateDeckDenied(t *testing.T) {
	repo := new(mocks.MockDeckRepository)
	deck := models.NewDeck("owner", "deck", "", deckTime)
	repo.On("Get", mock.Anything, deck.ID).Return(&deck, nil)

	svc := newDeckService(repo)
	_, err := svc.Subscribe(context.Background(), deck.ID, "learner")

	assertCode(t, err, apperrors.ErrCodePermission)
	repo.AssertNotCalled(t, "Update")
}

func TestSubscribe_OwnerRejected(t *testing.T) {
	repo := new(mocks.MockDeckRepository)
	deck := models.NewDeck("owner", "deck", "", deckTime)
	deck.IsPublic = true
	repo.On("Get", mock.Anything, deck.ID).Return(&deck, nil)

	svc := newDeckService(repo)
	_, err := svc.Subscribe(context.Background(), deck.ID, "owner")

	assertCode(t, err, apperrors.ErrCodeValidation)
}

func TestSubscribe_Idempotent(t *testing.T) {
	repo := new(mocks.MockDeckRepository)
	deck := models.NewDeck("owner", "deck", "", deckTime)
	deck.IsPublic = true
	deck.Subscribers = []string{"learner"}
	deck.SubscriberCount = 1
	repo.On("Get", mock.Anything, deck.ID).Return(&deck, nil)

	svc := newDeckService(repo)
	updated, err := svc.Subscribe(context.Background(), deck.ID, "learner")

	require.NoError(t, err)
	assert.Equal(t, 1, updated.SubscriberCount)
	repo.AssertNotCalled(t, "Update")
}

func TestUnsubscribe(t *testing.T) {
	repo := new(mocks.MockDeckRepository)
	deck := models.NewDeck("owner", "deck", "", deckTime)
	deck.IsPublic = true
	deck.Subscribers = []string{"learner", "other"}
	repo.On("Get", mock.Anything, deck.ID).Return(&deck, nil)
	repo.On("Update", mock.Anything, mock.MatchedBy(func(d models.Deck) bool {
		return d.SubscriberCount == 1 && !d.HasSubscriber("learner")
	})).Return(nil)

	svc := newDeckService(repo)
	updated, err := svc.Unsubscribe(context.Background(), deck.ID, "learner")

	require.NoError(t, err)
	assert.False(t, updated.HasSubscriber("learner"))
	assert.True(t, updated.HasSubscriber("other"))
	repo.AssertExpectations(t)
}

func TestSaveDeck_ConflictMapped(t *testing.T) {
	repo := new(mocks.MockDeckRepository)
	deck := models.NewDeck("owner", "deck", "", deckTime)
	repo.On("Get", mock.Anything, deck.ID).Return(&deck, nil)
	repo.On("Update", mock.Anything, mock.AnythingOfType("models.Deck")).Return(repository.ErrRevisionMismatch)

	svc := newDeckService(repo)
	_, err := svc.UpdateDeck(context.Background(), deck.ID, "owner", models.DeckPatch{Name: strPtr("renamed")})

	assertCode(t, err, apperrors.ErrCodeConflict)
}
