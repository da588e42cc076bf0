// Package sandbox emulates the 3DS Authentication Service, a DS Method
// endpoint and an ACS for local runs and integration tests.
package sandbox

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Server struct {
	env          string // Environment (e.g., "DEV", "PROD")
	publicKey    string // Required publicKey query value, empty accepts any
	mux          *http.ServeMux
	routes       []string
	transactions *TransactionRepo
	preload      []*Transaction
	logger       zerolog.Logger
}

// Option defines a function type to modify the Server instance.
type Option func(*Server)

// WithEnv sets the environment; request and route logging is on in DEV only
func WithEnv(env string) Option {
	return func(s *Server) {
		s.env = env
	}
}

// WithPublicKey makes the session endpoints reject other public keys
func WithPublicKey(publicKey string) Option {
	return func(s *Server) {
		s.publicKey = publicKey
	}
}

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithTransactions preloads scripted transactions
func WithTransactions(transactions ...*Transaction) Option {
	return func(s *Server) {
		s.preload = append(s.preload, transactions...)
	}
}

func New(options ...Option) *Server {
	s := &Server{
		env:          "DEV",
		mux:          http.NewServeMux(),
		transactions: NewTransactionRepo(),
		logger:       log.Logger,
	}
	for _, opt := range options {
		opt(s)
	}
	for _, tx := range s.preload {
		if err := s.transactions.Upsert(tx); err != nil {
			s.logger.Err(err).Msg("sandbox - skipping scripted transaction")
		}
	}
	s.preload = nil

	s.initRoutes()
	s.logRoutes()
	return s
}

// Transactions exposes the scripted transaction store
func (s *Server) Transactions() *TransactionRepo {
	return s.transactions
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			s.logRoute(parts[0], parts[1])
		} else {
			s.logRoute("", parts[0])
		}
	}
}

func (s *Server) logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	s.logger.Info().Msgf("[%-19s] %s", displayMethod, path)
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}

// resolve turns a sandbox relative path into an absolute URL for the caller.
func resolve(r *http.Request, path string) string {
	if !strings.HasPrefix(path, "/") {
		return path
	}
	return getScheme(r) + "://" + r.Host + path
}
