package adapthttp

import (
	"net/http"
	"strings"

	"bioguard/internal/app"
	"bioguard/internal/domain"

	"go.uber.org/zap"
)

// handleCreateLicense provisions a coach account. The generated password is
// only ever shown in this response.
func (s *Server) handleCreateLicense(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req struct {
		Username string `json:"username"`
	}
	if err := parseJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	username := strings.TrimSpace(req.Username)
	actor := userFromContext(r)
	password, err := s.authSvc.CreateTeamLicense(r.Context(), actor, username)
	if err != nil {
		s.writeAppError(w, err)
		return
	}

	s.logger.Info("team license created", zap.String("username", username), zap.String("by", actor.Username))
	writeJSON(w, http.StatusCreated, map[string]string{
		"username": username,
		"password": password,
		"role":     string(domain.RoleCoach),
	})
}

func (s *Server) handlePlans(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"plans": app.Plans()})
}
