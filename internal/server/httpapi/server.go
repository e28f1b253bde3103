// Package httpapi exposes the account service over HTTP. It is thin plumbing:
// handlers decode urlencoded form bodies into plain parameters, invoke one
// service operation, and serialize the outcome into the {status: ...} JSON
// envelopes the client application expects.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/winds-n/member-api/internal/cryptox"
	"github.com/winds-n/member-api/internal/logging"
	"github.com/winds-n/member-api/internal/server/accounts"
	"github.com/winds-n/member-api/internal/server/config"
)

type Server struct {
	address           string
	service           *accounts.Service
	hasher            *cryptox.Hasher
	registerKeyDigest string
	siteURL           string
	logger            logging.Logger
}

func NewServer(svc *accounts.Service, cfg *config.Config, logger logging.Logger) *Server {
	return &Server{
		address:           cfg.EndpointAddr,
		service:           svc,
		hasher:            cryptox.NewHasher(cfg.DigestSalt),
		registerKeyDigest: cfg.RegisterKeyDigest,
		siteURL:           cfg.SiteURL,
		logger:            logger.With("module", "httpapi"),
	}
}

// Router builds the route table with the CORS and compression middleware the
// client application relies on.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	r.HandleFunc("/adduser", s.handleAddUser).Methods(http.MethodPost)
	r.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)
	r.HandleFunc("/auth", s.handleAuth).Methods(http.MethodPost)
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodPost)
	r.HandleFunc("/setting/status", s.handleStatus).Methods(http.MethodPost)
	r.HandleFunc("/api/setting/username", s.handleChangeName).Methods(http.MethodPost)
	r.HandleFunc("/api/setting/email", s.handleChangeEmail).Methods(http.MethodPost)
	r.HandleFunc("/api/setting/password", s.handleChangePassword).Methods(http.MethodPost)
	r.HandleFunc("/api/setting/deletesession", s.handleDeleteSession).Methods(http.MethodPost)
	r.HandleFunc("/api/setting/delete", s.handleDeleteAccount).Methods(http.MethodPost)
	r.HandleFunc("/api/setting/admin", s.adminHandler(accounts.FlagAdmin)).Methods(http.MethodPost)
	r.HandleFunc("/api/setting/score/admin", s.adminHandler(accounts.FlagScoreAdmin)).Methods(http.MethodPost)
	r.HandleFunc("/user/valid", s.handleValid).Methods(http.MethodPost)

	var h http.Handler = r
	h = handlers.CompressHandler(h)
	h = handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedHeaders([]string{"Origin", "X-Requested-With", "Content-Type", "Accept"}),
	)(h)
	h = handlers.RecoveryHandler()(h)

	return h
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.address,
		Handler: handlers.CombinedLoggingHandler(os.Stdout, s.Router()),
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "stopping HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
