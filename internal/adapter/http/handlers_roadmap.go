package adapthttp

import (
	"bytes"
	"net/http"
	"time"

	"bioguard/internal/domain"

	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"
)

var mdRenderer = goldmark.New(
	goldmark.WithRendererOptions(goldmarkHTML.WithHardWraps()),
)

// roadmapItem is an entry as returned to clients. NoteHTML is only filled
// when the caller asks for format=html.
type roadmapItem struct {
	domain.RoadmapEntry
	NoteHTML string `json:"noteHtml,omitempty"`
}

func renderNote(note string) (string, error) {
	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte(note), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (s *Server) handleRoadmap(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := userFromContext(r).ID
	id := r.PathValue("id")

	switch r.Method {
	case http.MethodGet:
		asHTML := r.URL.Query().Get("format") == "html"
		items := []roadmapItem{}
		for e, err := range s.roadmap.View(ctx, userID, id) {
			if err != nil {
				s.writeAppError(w, err)
				return
			}
			item := roadmapItem{RoadmapEntry: e}
			if asHTML {
				html, err := renderNote(e.Note)
				if err != nil {
					s.writeAppError(w, err)
					return
				}
				item.NoteHTML = html
			}
			items = append(items, item)
		}
		writeJSON(w, http.StatusOK, map[string]any{"athleteId": id, "entries": items})

	case http.MethodPost:
		var body struct {
			Date     string `json:"date"`
			Category string `json:"category"`
			Note     string `json:"note"`
			Region   string `json:"region"`
			Severity string `json:"severity"`
		}
		if err := parseJSON(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if body.Date == "" {
			body.Date = time.Now().Format("2006-01-02")
		}
		region, ok := domain.ParseRegion(body.Region)
		if !ok {
			// Passed through so the service reports it as invalid.
			region = domain.Region(body.Region)
		}

		entry, err := s.roadmap.Append(ctx, userID, id, domain.RoadmapEntry{
			Date:     body.Date,
			Category: body.Category,
			Note:     body.Note,
			Region:   region,
			Severity: domain.RiskLevel(body.Severity),
		})
		if err != nil {
			s.writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, entry)

	default:
		methodNotAllowed(w)
	}
}
