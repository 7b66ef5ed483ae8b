package adapthttp

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"

	"bioguard/internal/app"

	"go.uber.org/zap"
)

var (
	errUnauthorized     = errors.New("unauthorized")
	errInternal         = errors.New("internal error")
	errMethodNotAllowed = errors.New("method not allowed")
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errMethodNotAllowed)
}

// writeAppError maps an application error onto its HTTP status. Unexpected
// errors are logged and reported without detail.
func (s *Server) writeAppError(w http.ResponseWriter, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
		writeError(w, status, errInternal)
		return
	}
	writeError(w, status, err)
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, app.ErrAthleteNotFound):
		return http.StatusNotFound
	case errors.Is(err, app.ErrDuplicateAthlete), errors.Is(err, app.ErrDuplicateUser), errors.Is(err, app.ErrUsersExist):
		return http.StatusConflict
	case errors.Is(err, app.ErrMissingField), errors.Is(err, app.ErrInvalidField):
		return http.StatusBadRequest
	case errors.Is(err, app.ErrQuotaExceeded), errors.Is(err, app.ErrAnalysisBusy), errors.Is(err, app.ErrCooldownActive):
		return http.StatusTooManyRequests
	case errors.Is(err, app.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, app.ErrInferenceFailure):
		return http.StatusBadGateway
	case errors.Is(err, app.ErrAnalysisDisabled):
		return http.StatusServiceUnavailable
	case errors.Is(err, app.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, app.ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func parseJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	return nil
}

func withNoCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

func spaFromDisk(dir string) http.Handler {
	fileServer := http.FileServer(http.Dir(dir))
	indexPath := path.Join(dir, "index.html")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqPath := path.Clean(r.URL.Path)
		if reqPath == "/" {
			http.ServeFile(w, r, indexPath)
			return
		}

		staticPath := path.Join(dir, reqPath)
		if _, err := os.Stat(staticPath); err == nil {
			fileServer.ServeHTTP(w, r)
			return
		}

		http.ServeFile(w, r, indexPath)
	})
}
