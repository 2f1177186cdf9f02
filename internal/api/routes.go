package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	// Logging wraps recovery so panics are logged with the request-scoped
	// fields and still produce a completion line.
	r.Use(loggingMiddleware)
	r.Use(recoveryMiddleware)

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(userMiddleware)

		r.Post("/decks", s.handleCreateDeck)
		r.Get("/decks", s.handleListDecks)
		r.Get("/decks/{deckID}", s.handleGetDeck)
		r.Patch("/decks/{deckID}", s.handleUpdateDeck)
		r.Delete("/decks/{deckID}", s.handleDeleteDeck)

		r.Post("/decks/{deckID}/cards", s.handleAddCard)
		r.Patch("/decks/{deckID}/cards/{cardID}", s.handleUpdateCard)
		r.Delete("/decks/{deckID}/cards/{cardID}", s.handleRemoveCard)

		r.Get("/decks/{deckID}/due", s.handleDueCards)
		r.Post("/decks/{deckID}/cards/{cardID}/review", s.handleSubmitReview)

		r.Post("/decks/{deckID}/subscribe", s.handleSubscribe)
		r.Post("/decks/{deckID}/unsubscribe", s.handleUnsubscribe)
	})

	return r
}
