// Package httpserver exposes the namespace and share services over HTTP.
package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/and161185/cloudbox/internal/limiter"
	"github.com/and161185/cloudbox/internal/service"
)

// Options tune request handling.
type Options struct {
	// MaxUploadBytes caps a whole POST body; 0 means 32 MiB.
	MaxUploadBytes int64
	// PublicURL is the externally visible base used in share links.
	PublicURL string
}

const defaultMaxUpload = 32 << 20

// Server wires services into HTTP handlers.
type Server struct {
	ns     service.NamespaceManager
	shares service.ShareManager
	lim    limiter.Limiter
	probe  func(context.Context) error
	log    *zap.Logger
	opts   Options
}

// New constructs the HTTP adapter. lim and probe may be nil.
func New(ns service.NamespaceManager, shares service.ShareManager, lim limiter.Limiter, probe func(context.Context) error, log *zap.Logger, opts Options) *Server {
	if lim == nil {
		lim = limiter.Unlimited{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUpload
	}
	return &Server{ns: ns, shares: shares, lim: lim, probe: probe, log: log, opts: opts}
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(requestID, s.logging, s.recoverer)

	r.HandleFunc("/healthz", s.health).Methods(http.MethodGet)

	r.HandleFunc("/namespaces/{token}", s.listNamespace).Methods(http.MethodGet)
	r.HandleFunc("/namespaces/{token}", s.putEntry).Methods(http.MethodPost)
	r.HandleFunc("/namespaces/{token}/{name}", s.getEntry).Methods(http.MethodGet)

	r.HandleFunc("/shares", s.createShare).Methods(http.MethodPost)
	r.HandleFunc("/shares/{token}", s.listShare).Methods(http.MethodGet)
	r.HandleFunc("/shares/{token}/{name}", s.getShareEntry).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

// HTTPServer returns a configured *http.Server serving Handler on addr.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
