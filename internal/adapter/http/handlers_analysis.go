package adapthttp

import (
	"errors"
	"fmt"
	"net/http"

	"bioguard/internal/app"
)

const multipartMemory = 32 << 20

// handleAnalysis accepts a multipart form with a "video" file and a "target"
// description and records the resulting finding on the roadmap.
func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if s.analysis == nil || !s.analysis.Enabled() {
		s.writeAppError(w, app.ErrAnalysisDisabled)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Errorf("video exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid multipart form: %w", err))
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck

	file, header, err := r.FormFile("video")
	if err != nil {
		s.writeAppError(w, fmt.Errorf("%w: video", app.ErrMissingField))
		return
	}
	defer file.Close() //nolint:errcheck

	entry, err := s.analysis.Analyze(r.Context(), userFromContext(r).ID, r.PathValue("id"),
		file, header.Header.Get("Content-Type"), r.FormValue("target"))
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}
