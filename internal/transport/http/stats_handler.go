package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
)

func leaderboardKey(quizID int64) string {
	return "stats:leaderboard:" + strconv.FormatInt(quizID, 10)
}

// cached renders v-producing loads through the stats cache so repeated
// dashboard hits do not recompute aggregations.
func (s *Server) cached(w http.ResponseWriter, r *http.Request, key string, load func(ctx context.Context) (any, error)) {
	payload, err := s.cache.GetOrLoad(r.Context(), key, func(ctx context.Context) ([]byte, error) {
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	quizID, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	s.cached(w, r, leaderboardKey(quizID), func(ctx context.Context) (any, error) {
		return s.stats.QuizLeaderboard(ctx, quizID)
	})
}

func (s *Server) handleUserSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.stats.Summary(r.Context(), callerFrom(r.Context()).UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleSiteStats(w http.ResponseWriter, r *http.Request) {
	s.cached(w, r, "stats:site", func(ctx context.Context) (any, error) {
		return s.stats.Site(ctx)
	})
}

func (s *Server) handleTopQuizzes(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 5)
	s.cached(w, r, "stats:top:"+strconv.Itoa(limit), func(ctx context.Context) (any, error) {
		top, err := s.stats.TopQuizzes(ctx, limit)
		if err != nil {
			return nil, err
		}
		return map[string]any{"quizzes": top}, nil
	})
}

func (s *Server) handleSubjectAverages(w http.ResponseWriter, r *http.Request) {
	s.cached(w, r, "stats:subject-averages", func(ctx context.Context) (any, error) {
		averages, err := s.stats.SubjectAveragePercent(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{"subjects": averages}, nil
	})
}
