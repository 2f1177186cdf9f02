package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/mvelloso/studydeck/internal/logger"
	"github.com/mvelloso/studydeck/internal/models"
)

type createDeckRequest struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Settings    models.DeckSettings `json:"settings"`
}

func (s *Server) handleCreateDeck(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	log.Debug("creating deck")

	var req createDeckRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, err)
		return
	}

	deck, err := s.DeckService.CreateDeck(r.Context(), userFromContext(r.Context()), req.Name, req.Description, req.Settings)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusCreated, deck)
}

func (s *Server) handleListDecks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.DeckFilter{
		OwnerID:    q.Get("owner"),
		PublicOnly: q.Get("public") == "true",
		Name:       q.Get("name"),
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	decks, err := s.DeckService.ListDecks(r.Context(), userFromContext(r.Context()), filter)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]any{"decks": decks})
}

func (s *Server) handleGetDeck(w http.ResponseWriter, r *http.Request) {
	deck, err := s.DeckService.GetDeck(r.Context(), chi.URLParam(r, "deckID"), userFromContext(r.Context()))
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, deck)
}

func (s *Server) handleUpdateDeck(w http.ResponseWriter, r *http.Request) {
	var patch models.DeckPatch
	if err := decodeJSON(r, &patch); err != nil {
		handleError(w, r, err)
		return
	}

	deck, err := s.DeckService.UpdateDeck(r.Context(), chi.URLParam(r, "deckID"), userFromContext(r.Context()), patch)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, deck)
}

func (s *Server) handleDeleteDeck(w http.ResponseWriter, r *http.Request) {
	if err := s.DeckService.DeleteDeck(r.Context(), chi.URLParam(r, "deckID"), userFromContext(r.Context())); err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusNoContent, nil)
}

func (s *Server) handleAddCard(w http.ResponseWriter, r *http.Request) {
	var content models.CardContent
	if err := decodeJSON(r, &content); err != nil {
		handleError(w, r, err)
		return
	}

	card, err := s.DeckService.AddCard(r.Context(), chi.URLParam(r, "deckID"), userFromContext(r.Context()), content)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusCreated, card)
}

func (s *Server) handleUpdateCard(w http.ResponseWriter, r *http.Request) {
	var content models.CardContent
	if err := decodeJSON(r, &content); err != nil {
		handleError(w, r, err)
		return
	}

	card, err := s.DeckService.UpdateCard(r.Context(), chi.URLParam(r, "deckID"), chi.URLParam(r, "cardID"),
		userFromContext(r.Context()), content)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, card)
}

func (s *Server) handleRemoveCard(w http.ResponseWriter, r *http.Request) {
	err := s.DeckService.RemoveCard(r.Context(), chi.URLParam(r, "deckID"), chi.URLParam(r, "cardID"),
		userFromContext(r.Context()))
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusNoContent, nil)
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	deck, err := s.DeckService.Subscribe(r.Context(), chi.URLParam(r, "deckID"), userFromContext(r.Context()))
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, deck)
}

func (s *Server) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	deck, err := s.DeckService.Unsubscribe(r.Context(), chi.URLParam(r, "deckID"), userFromContext(r.Context()))
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, deck)
}
