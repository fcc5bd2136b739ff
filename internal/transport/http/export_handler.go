package http

import (
	"net/http"
)

func (s *Server) handleUserExport(w http.ResponseWriter, r *http.Request) {
	data, err := s.exports.UserAttemptsCSV(r.Context(), callerFrom(r.Context()).UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeCSV(w, "my_quiz_attempts.csv", data)
}

func (s *Server) handleAdminExport(w http.ResponseWriter, r *http.Request) {
	data, err := s.exports.AllAttemptsCSV(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeCSV(w, "all_users_performance.csv", data)
}

func (s *Server) handleAdminExportEmail(w http.ResponseWriter, r *http.Request) {
	if err := s.exports.EmailAllAttempts(r.Context(), callerFrom(r.Context()).UserID); err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusAccepted, "export has been emailed")
}

func writeCSV(w http.ResponseWriter, filename string, data []byte) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
