package api

import (
	"encoding/json"
	"net/http"

	"github.com/mvelloso/studydeck/internal/db"
	"github.com/mvelloso/studydeck/internal/errors"
	"github.com/mvelloso/studydeck/internal/logger"
	"github.com/mvelloso/studydeck/internal/services"
)

type Server struct {
	DeckService  services.DeckService
	StudyService services.StudyService
	DB           *db.DB
}

// respondJSON writes v as a JSON response with the given status.
func respondJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.FromContext(r.Context()).Error("failed to encode response: %v", err)
	}
}

// decodeJSON parses the request body into v, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.NewBadRequestError("invalid JSON body")
	}
	return nil
}
