package http

import (
	"net/http"
	"time"

	"quizmaster-service/internal/app"
	"quizmaster-service/internal/domain"
)

// timeLayout is the wire format for quiz window bounds, interpreted as UTC.
const timeLayout = "2006-01-02 15:04:05"

func parseTimePtr(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(timeLayout, raw, time.UTC)
	if err != nil {
		return nil, domain.Validationf("timestamps must be formatted as %q", timeLayout)
	}
	return &t, nil
}

// --- subjects ---

type subjectRequest struct {
	Name        string `json:"name"`
	Code        string `json:"code"`
	Description string `json:"description"`
}

func (s *Server) handleCreateSubject(w http.ResponseWriter, r *http.Request) {
	var req subjectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	subject, err := s.catalog.CreateSubject(r.Context(), app.SubjectInput(req))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, subject)
}

func (s *Server) handleUpdateSubject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req subjectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	subject, err := s.catalog.UpdateSubject(r.Context(), id, app.SubjectInput(req))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, subject)
}

func (s *Server) handleDeleteSubject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.catalog.DeleteSubject(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "subject deleted")
}

func (s *Server) handleListSubjects(w http.ResponseWriter, r *http.Request) {
	subjects, err := s.catalog.ListSubjects(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"subjects": subjects})
}

// --- chapters ---

type chapterRequest struct {
	Name        string `json:"name"`
	Code        string `json:"code"`
	Description string `json:"description"`
	SubjectID   int64  `json:"subjectId"`
}

func (s *Server) handleCreateChapter(w http.ResponseWriter, r *http.Request) {
	var req chapterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	chapter, err := s.catalog.CreateChapter(r.Context(), app.ChapterInput(req))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, chapter)
}

func (s *Server) handleUpdateChapter(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req chapterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	chapter, err := s.catalog.UpdateChapter(r.Context(), id, app.ChapterInput(req))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chapter)
}

func (s *Server) handleDeleteChapter(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.catalog.DeleteChapter(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "chapter deleted")
}

func (s *Server) handleListChapters(w http.ResponseWriter, r *http.Request) {
	chapters, err := s.catalog.ListChapters(r.Context(), queryInt64(r, "subject_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"chapters": chapters})
}

// --- quizzes ---

type quizRequest struct {
	Title            string  `json:"title"`
	Description      string  `json:"description"`
	SubjectID        int64   `json:"subjectId"`
	ChapterIDs       []int64 `json:"chapters"`
	TimeLimitMinutes *int    `json:"timeLimitMinutes"`
	StartTime        string  `json:"startTime"`
	EndTime          string  `json:"endTime"`
}

func (r quizRequest) toInput() (app.QuizInput, error) {
	start, err := parseTimePtr(r.StartTime)
	if err != nil {
		return app.QuizInput{}, err
	}
	end, err := parseTimePtr(r.EndTime)
	if err != nil {
		return app.QuizInput{}, err
	}
	return app.QuizInput{
		Title:            r.Title,
		Description:      r.Description,
		SubjectID:        r.SubjectID,
		ChapterIDs:       r.ChapterIDs,
		TimeLimitMinutes: r.TimeLimitMinutes,
		StartTime:        start,
		EndTime:          end,
	}, nil
}

func (s *Server) handleCreateQuiz(w http.ResponseWriter, r *http.Request) {
	var req quizRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeError(w, err)
		return
	}
	quiz, err := s.catalog.CreateQuiz(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, quiz)
}

func (s *Server) handleUpdateQuiz(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req quizRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeError(w, err)
		return
	}
	quiz, err := s.catalog.UpdateQuiz(r.Context(), id, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

func (s *Server) handleDeleteQuiz(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.catalog.DeleteQuiz(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "quiz deleted")
}

func (s *Server) handleGetQuiz(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	quiz, err := s.catalog.GetQuiz(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

func (s *Server) handleListQuizzes(w http.ResponseWriter, r *http.Request) {
	page, err := s.catalog.ListQuizzes(r.Context(), app.QuizFilter{
		SubjectID: queryInt64(r, "subject_id"),
		ChapterID: queryInt64(r, "chapter_id"),
		Page:      queryInt(r, "page", 1),
		Size:      queryInt(r, "size", 10),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleUpcomingQuizzes(w http.ResponseWriter, r *http.Request) {
	quizzes, err := s.catalog.UpcomingQuizzes(r.Context(), callerFrom(r.Context()).UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"quizzes": quizzes})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	results, err := s.catalog.Search(r.Context(), r.URL.Query().Get("q"), queryInt(r, "limit", 20))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// --- questions ---

type questionRequest struct {
	QuizID         int64    `json:"quizId"`
	Text           string   `json:"text"`
	Marks          float64  `json:"marks"`
	NegativeMarks  float64  `json:"negativeMarks"`
	Type           string   `json:"questionType"`
	Options        []string `json:"options"`
	CorrectIndices []int    `json:"correctOptions"`
}

func (s *Server) handleAddQuestion(w http.ResponseWriter, r *http.Request) {
	var req questionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	question, err := s.catalog.AddQuestion(r.Context(), app.QuestionInput{
		QuizID:         req.QuizID,
		Text:           req.Text,
		Marks:          req.Marks,
		NegativeMarks:  req.NegativeMarks,
		Type:           domain.QuestionType(req.Type),
		Options:        req.Options,
		CorrectIndices: req.CorrectIndices,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, question)
}

type questionUpdateRequest struct {
	Text           string   `json:"text"`
	Marks          *float64 `json:"marks"`
	NegativeMarks  *float64 `json:"negativeMarks"`
	Type           string   `json:"questionType"`
	Options        []string `json:"options"`
	CorrectOptions []int64  `json:"correctOptions"`
}

func (s *Server) handleUpdateQuestion(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req questionUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	question, err := s.catalog.UpdateQuestion(r.Context(), id, app.QuestionUpdate{
		Text:           req.Text,
		Marks:          req.Marks,
		NegativeMarks:  req.NegativeMarks,
		Type:           domain.QuestionType(req.Type),
		Options:        req.Options,
		CorrectOptions: req.CorrectOptions,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, question)
}

func (s *Server) handleDeleteQuestion(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.catalog.DeleteQuestion(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "question deleted")
}

func (s *Server) handleQuizQuestions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	page, err := s.catalog.QuizQuestions(r.Context(), id, queryInt(r, "page", 1), queryInt(r, "size", 10))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}
