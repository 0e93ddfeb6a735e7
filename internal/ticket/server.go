package ticket

import (
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"
)

// Server handles HTTP requests for the ticket ledger
type Server struct {
	service   *Service
	basicAuth BasicAuth
	mux       *http.ServeMux
}

// BasicAuth holds basic authentication credentials
type BasicAuth struct {
	Username string
	Password string
}

// NewServer creates a new Server with default mux
func NewServer(service *Service, basicAuth BasicAuth) *Server {
	return NewServerWithMux(service, basicAuth, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(service *Service, basicAuth BasicAuth, mux *http.ServeMux) *Server {
	s := &Server{
		service:   service,
		basicAuth: basicAuth,
		mux:       mux,
	}
	s.registerRoutes()
	return s
}

// authenticate checks basic auth credentials
func (s *Server) authenticate(r *http.Request) bool {
	if s.basicAuth.Username == "" && s.basicAuth.Password == "" {
		return true // No auth required if not configured
	}

	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Basic ") {
		return false
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(auth, "Basic "))
	if err != nil {
		return false
	}

	credentials := strings.SplitN(string(decoded), ":", 2)
	if len(credentials) != 2 {
		return false
	}

	return credentials[0] == s.basicAuth.Username && credentials[1] == s.basicAuth.Password
}

// corsMiddleware adds CORS headers to responses
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w)

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next(w, r)
	}
}

// requireAuth middleware
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authenticate(r) {
			setCORSHeaders(w)
			w.Header().Set("WWW-Authenticate", `Basic realm="Ticket Split"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// registerRoutes registers all API routes on the server's mux
// Routes must be registered from most specific to least specific to avoid conflicts
func (s *Server) registerRoutes() {
	// Document processing and ledger state
	s.mux.HandleFunc("POST /api/document", s.requireAuth(s.handleUploadDocument))
	s.mux.HandleFunc("GET /api/ledger", s.requireAuth(s.handleLedger))

	// Item operations
	s.mux.HandleFunc("POST /api/items/toggle", s.requireAuth(s.handleToggle))
	s.mux.HandleFunc("POST /api/items/split", s.requireAuth(s.handleSplit))
	s.mux.HandleFunc("POST /api/items/clear", s.requireAuth(s.handleClearAllocation))
	s.mux.HandleFunc("POST /api/items/hide", s.requireAuth(s.handleHide))
	s.mux.HandleFunc("POST /api/items/unhide", s.requireAuth(s.handleUnhide))
	s.mux.HandleFunc("POST /api/items/edit", s.requireAuth(s.handleEditItem))
	s.mux.HandleFunc("POST /api/items/manual", s.requireAuth(s.handleAddManualItem))
	s.mux.HandleFunc("DELETE /api/items/manual/{id}", s.requireAuth(s.handleRemoveManualItem))

	// Categories
	s.mux.HandleFunc("POST /api/categories/active", s.requireAuth(s.handleSetActiveCategory))
	s.mux.HandleFunc("POST /api/categories/{id}", s.requireAuth(s.handleUpdateCategory))
	s.mux.HandleFunc("DELETE /api/categories/{id}", s.requireAuth(s.handleDeleteCategory))
	s.mux.HandleFunc("POST /api/categories", s.requireAuth(s.handleAddCategory))

	// Totals, sorting, export
	s.mux.HandleFunc("POST /api/total", s.requireAuth(s.handleSetManualTotal))
	s.mux.HandleFunc("POST /api/sort", s.requireAuth(s.handleSortBy))
	s.mux.HandleFunc("GET /api/export", s.requireAuth(s.handleExport))

	// Static HTML interface (register last as it's the catch-all)
	s.mux.HandleFunc("GET /index.html", s.requireAuth(s.handleIndex))
	s.mux.HandleFunc("GET /", s.requireAuth(s.handleIndex))
}

// Start starts the HTTP server
func (s *Server) Start(addr string) error {
	slog.Info("Starting server", "address", addr)
	return http.ListenAndServe(addr, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.corsMiddleware(func(w http.ResponseWriter, r *http.Request) {
			s.mux.ServeHTTP(w, r)
		})(w, r)
	}))
}

// ServeHTTP implements http.Handler for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
