package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mvelloso/studydeck/internal/errors"
	"github.com/mvelloso/studydeck/internal/logger"
)

func (s *Server) handleDueCards(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	var asOf time.Time
	if v := r.URL.Query().Get("as_of"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			log.Warn("invalid as_of value: %s", v)
			handleError(w, r, errors.NewBadRequestError("as_of must be an RFC 3339 timestamp"))
			return
		}
		asOf = t
	}

	cards, err := s.StudyService.GetDueCards(r.Context(), chi.URLParam(r, "deckID"), userFromContext(r.Context()), asOf)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]any{"cards": cards})
}

type reviewRequest struct {
	Quality int `json:"quality"`
}

func (s *Server) handleSubmitReview(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	var req reviewRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, err)
		return
	}

	log = log.WithFields(map[string]any{
		"deck_id": chi.URLParam(r, "deckID"),
		"card_id": chi.URLParam(r, "cardID"),
		"quality": req.Quality,
	})
	log.Debug("reviewing card")

	card, err := s.StudyService.SubmitReview(r.Context(), chi.URLParam(r, "deckID"), chi.URLParam(r, "cardID"),
		userFromContext(r.Context()), req.Quality)
	if err != nil {
		handleError(w, r, err)
		return
	}

	log.Info("card reviewed successfully")
	respondJSON(w, r, http.StatusOK, card)
}
