package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"quizmaster-service/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

// writeError translates domain errors to HTTP statuses in one place so
// handlers can bubble errors up unchanged.
func writeError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		writeMessage(w, http.StatusBadRequest, verr.Message)
	case errors.Is(err, domain.ErrInvalidCredentials):
		writeMessage(w, http.StatusUnauthorized, "invalid email or password")
	case errors.Is(err, domain.ErrUnauthorized):
		writeMessage(w, http.StatusForbidden, "not allowed")
	case errors.Is(err, domain.ErrQuizNotAvailable):
		writeMessage(w, http.StatusForbidden, "quiz is not currently available")
	case errors.Is(err, domain.ErrAttemptSubmitted):
		writeMessage(w, http.StatusConflict, "attempt already submitted")
	case domain.IsNotFound(err):
		writeMessage(w, http.StatusNotFound, err.Error())
	default:
		log.Printf("internal error: %v", err)
		writeMessage(w, http.StatusInternalServerError, "internal server error")
	}
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return domain.Validationf("invalid request body")
	}
	return nil
}
