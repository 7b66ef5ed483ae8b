// Package adapthttp implements the HTTP adapter for the application.
package adapthttp

import (
	"net/http"
	"net/netip"

	"bioguard/internal/app"

	"github.com/coreos/go-oidc/v3/oidc"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const defaultMaxUpload = 200 << 20

// OIDCConfig carries the single sign-on provider, if one is configured.
type OIDCConfig struct {
	Enabled      bool
	Provider     *oidc.Provider
	OAuth2Config oauth2.Config
}

// Server is the driving HTTP adapter that routes requests to application
// services.
type Server struct {
	registry *app.RegistryService
	roadmap  *app.RoadmapService
	analysis *app.AnalysisService
	bodyMap  *app.BodyMapService
	authSvc  *app.AuthService

	oidcConfig     OIDCConfig
	webDir         string
	logger         *zap.Logger
	disableAuth    bool
	maxUploadBytes int64
	// Peers allowed to set Remote-User. Empty disables forward auth.
	trustedProxies []netip.Prefix
}

// Services bundles the application services the server routes to.
type Services struct {
	Registry *app.RegistryService
	Roadmap  *app.RoadmapService
	Analysis *app.AnalysisService
	BodyMap  *app.BodyMapService
	Auth     *app.AuthService
}

// New creates a Server wired to the given application services.
func New(svc Services, webDir string) *Server {
	return &Server{
		registry:       svc.Registry,
		roadmap:        svc.Roadmap,
		analysis:       svc.Analysis,
		bodyMap:        svc.BodyMap,
		authSvc:        svc.Auth,
		webDir:         webDir,
		logger:         zap.NewNop(),
		maxUploadBytes: defaultMaxUpload,
	}
}

// WithOIDC enables single sign-on.
func (s *Server) WithOIDC(cfg OIDCConfig) *Server {
	s.oidcConfig = cfg
	return s
}

// WithLogger sets the request logger.
func (s *Server) WithLogger(l *zap.Logger) *Server {
	if l != nil {
		s.logger = l
	}
	return s
}

// WithMaxUpload caps the size of analysis uploads.
func (s *Server) WithMaxUpload(n int64) *Server {
	if n > 0 {
		s.maxUploadBytes = n
	}
	return s
}

// WithForwardAuth accepts the Remote-User header, but only on requests
// whose peer address falls inside one of proxies.
func (s *Server) WithForwardAuth(proxies []netip.Prefix) *Server {
	s.trustedProxies = proxies
	return s
}

// WithoutAuth disables authentication. Every request runs as a local owner
// account. Only for tests and local development.
func (s *Server) WithoutAuth() *Server {
	s.disableAuth = true
	return s
}

// Handler returns the root http.Handler for the application.
func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	api.HandleFunc("/config", s.handleConfig)
	api.HandleFunc("/plans", s.handlePlans)

	api.HandleFunc("/auth/login", s.handleLogin)
	api.HandleFunc("/auth/logout", s.handleLogout)
	api.HandleFunc("/auth/setup", s.handleSetupUser)
	api.HandleFunc("/auth/sso/login", s.handleSSOLogin)
	api.HandleFunc("/auth/sso/callback", s.handleSSOCallback)

	protected := http.NewServeMux()
	protected.HandleFunc("/auth/me", s.handleMe)
	protected.HandleFunc("/athletes", s.handleAthletes)
	protected.HandleFunc("/athletes/{id}", s.handleAthlete)
	protected.HandleFunc("/athletes/{id}/medical", s.handleMedical)
	protected.HandleFunc("/athletes/{id}/roadmap", s.handleRoadmap)
	protected.HandleFunc("/athletes/{id}/analysis", s.handleAnalysis)
	protected.HandleFunc("/athletes/{id}/bodymap", s.handleBodyMap)
	protected.HandleFunc("/admin/licenses", s.handleCreateLicense)

	authed := s.authMiddleware(protected)
	api.Handle("/auth/me", authed)
	api.Handle("/athletes", authed)
	api.Handle("/athletes/", authed)
	api.Handle("/admin/", authed)

	root := http.NewServeMux()
	root.Handle("/api/", http.StripPrefix("/api", api))
	root.Handle("/", spaFromDisk(s.webDir))

	return s.loggingMiddleware(withNoCache(root))
}
