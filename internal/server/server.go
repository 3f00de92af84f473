package server

import (
	"log"
	"net/http"
	"time"

	"ragchat/internal/match"
	"ragchat/internal/responder"
	"ragchat/internal/retriever"
	"ragchat/internal/service"
)

// Options carries the retrieval defaults applied when a request leaves them
// unset.
type Options struct {
	TopK          int
	Threshold     float64
	ContextWindow int
}

// Server wires the HTTP API and the WebSocket signaling endpoint to the
// retrieval pipeline and the matching manager.
type Server struct {
	log       *log.Logger
	retriever *retriever.Retriever
	responder *responder.Responder
	pipeline  *service.Pipeline
	matcher   *match.Manager
	opts      Options
}

// New assembles a server from its collaborators.
func New(logger *log.Logger, retr *retriever.Retriever, resp *responder.Responder, pipe *service.Pipeline, matcher *match.Manager, opts Options) *Server {
	if opts.TopK <= 0 {
		opts.TopK = 3
	}
	return &Server{
		log:       logger,
		retriever: retr,
		responder: resp,
		pipeline:  pipe,
		matcher:   matcher,
		opts:      opts,
	}
}

// Handler returns the full route table wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /api/v1/ask", s.handleAsk)
	mux.HandleFunc("POST /api/v1/retrieve", s.handleRetrieve)
	mux.HandleFunc("POST /api/v1/reindex", s.handleReindex)
	mux.HandleFunc("GET /api/v1/sessions", s.handleSessions)
	mux.HandleFunc("GET /ws", s.handleSignaling)

	return s.middleware(mux)
}

// middleware wraps the router with CORS headers and request logging.
func (s *Server) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)

		s.log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}

// NewHTTPServer builds an http.Server with sane timeouts around the handler.
// No write timeout: signaling connections are long-lived.
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:        addr,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}
}
