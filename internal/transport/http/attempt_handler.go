package http

import (
	"log"
	"net/http"
	"strconv"

	"quizmaster-service/internal/app"
)

func (s *Server) handleStartAttempt(w http.ResponseWriter, r *http.Request) {
	quizID, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := s.attempts.Start(r.Context(), callerFrom(r.Context()).UserID, quizID)
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusCreated
	if result.AlreadyStarted {
		status = http.StatusOK
	}
	writeJSON(w, status, result)
}

type submitRequest struct {
	// Answers maps question id to selected option ids. Keys arrive as
	// strings because JSON object keys always do.
	Answers map[string][]int64 `json:"answers"`
}

func (s *Server) handleSubmitAttempt(w http.ResponseWriter, r *http.Request) {
	attemptID, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req submitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	answers := make(map[int64][]int64, len(req.Answers))
	for key, selected := range req.Answers {
		questionID, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			continue
		}
		answers[questionID] = selected
	}

	result, err := s.attempts.Submit(r.Context(), attemptID, callerFrom(r.Context()).UserID, answers)
	if err != nil {
		writeError(w, err)
		return
	}

	// Push the new score to live leaderboard watchers; a failed refresh
	// never fails the submit.
	attempt, aerr := s.attempts.Result(r.Context(), attemptID, callerFrom(r.Context()).UserID)
	if aerr == nil {
		if rerr := s.hub.Refresh(r.Context(), attempt.QuizID); rerr != nil {
			log.Printf("leaderboard refresh for quiz %d: %v", attempt.QuizID, rerr)
		}
		s.cache.Invalidate(r.Context(), leaderboardKey(attempt.QuizID))
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleAttemptResult(w http.ResponseWriter, r *http.Request) {
	attemptID, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	attempt, err := s.attempts.Result(r.Context(), attemptID, callerFrom(r.Context()).UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attempt)
}

func (s *Server) handleUserAttempts(w http.ResponseWriter, r *http.Request) {
	attempts, err := s.stats.UserAttempts(r.Context(), callerFrom(r.Context()).UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"attempts": attempts})
}

func (s *Server) handleFilterScores(w http.ResponseWriter, r *http.Request) {
	filter := app.ScoreFilter{Date: r.URL.Query().Get("date")}
	if raw := r.URL.Query().Get("min_score"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			filter.MinScore = &v
		}
	}
	if raw := r.URL.Query().Get("max_score"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			filter.MaxScore = &v
		}
	}
	attempts, err := s.stats.FilterScores(r.Context(), callerFrom(r.Context()).UserID, filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"attempts": attempts})
}
