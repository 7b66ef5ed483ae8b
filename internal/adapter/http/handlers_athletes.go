package adapthttp

import (
	"net/http"

	"bioguard/internal/app"
)

func (s *Server) handleAthletes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := userFromContext(r)

	switch r.Method {
	case http.MethodGet:
		items, err := s.registry.List(ctx, user.ID)
		if err != nil {
			s.writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"athletes": items})

	case http.MethodPost:
		var body struct {
			ID        string `json:"id"`
			FirstName string `json:"firstName"`
			LastName  string `json:"lastName"`
		}
		if err := parseJSON(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		a, err := s.registry.Register(ctx, user.ID, body.FirstName, body.LastName, body.ID)
		if err != nil {
			s.writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, a)

	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleAthlete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	a, err := s.registry.Get(r.Context(), userFromContext(r).ID, r.PathValue("id"))
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleMedical(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w)
		return
	}
	ctx := r.Context()
	userID := userFromContext(r).ID
	id := r.PathValue("id")

	var body app.MedicalUpdate
	if err := parseJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.registry.UpdateMedical(ctx, userID, id, body); err != nil {
		s.writeAppError(w, err)
		return
	}

	a, err := s.registry.Get(ctx, userID, id)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": a.ID, "medical": a.Medical})
}

func (s *Server) handleBodyMap(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	m, err := s.bodyMap.Render(r.Context(), userFromContext(r).ID, r.PathValue("id"))
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}
