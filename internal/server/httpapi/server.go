package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/dmitrijs2005/contactbook/internal/logging"
	"github.com/dmitrijs2005/contactbook/internal/server/services"
	"github.com/gorilla/mux"
)

// meRateLimit is the per-IP budget for GET /api/users/me.
const (
	meRateLimit       = 10
	meRateLimitWindow = time.Minute
)

// Server hosts the REST API over the domain services.
type Server struct {
	authService    *services.AuthService
	contactService *services.ContactService
	avatarService  *services.AvatarService
	logger         logging.Logger

	httpServer *http.Server
}

func NewServer(addr string, authService *services.AuthService, contactService *services.ContactService,
	avatarService *services.AvatarService, logger logging.Logger) *Server {

	s := &Server{
		authService:    authService,
		contactService: contactService,
		avatarService:  avatarService,
		logger:         logger,
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) routes() http.Handler {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()

	authRouter := api.PathPrefix("/auth").Subrouter()
	authRouter.HandleFunc("/register", s.handleRegister).Methods(http.MethodPost)
	authRouter.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	authRouter.HandleFunc("/refresh-token", s.handleRefreshToken).Methods(http.MethodPost)
	authRouter.HandleFunc("/confirmed_email/{token}", s.handleConfirmEmail).Methods(http.MethodGet)
	authRouter.HandleFunc("/request_email", s.handleRequestEmail).Methods(http.MethodPost)
	authRouter.HandleFunc("/request_password_reset", s.handleRequestPasswordReset).Methods(http.MethodPost)
	authRouter.HandleFunc("/reset_password", s.handleResetPassword).Methods(http.MethodPost)

	usersRouter := api.PathPrefix("/users").Subrouter()
	usersRouter.Use(s.authMiddleware)
	meLimiter := newRateLimiter(meRateLimit, meRateLimitWindow)
	usersRouter.Handle("/me", meLimiter.Middleware(http.HandlerFunc(s.handleMe))).Methods(http.MethodGet)
	usersRouter.Handle("/avatar", s.adminOnly(http.HandlerFunc(s.handleUpdateAvatar))).Methods(http.MethodPatch)

	contactsRouter := api.PathPrefix("/contacts").Subrouter()
	contactsRouter.Use(s.authMiddleware)
	contactsRouter.HandleFunc("", s.handleListContacts).Methods(http.MethodGet)
	contactsRouter.HandleFunc("", s.handleCreateContact).Methods(http.MethodPost)
	contactsRouter.HandleFunc("/birthdays/next7", s.handleUpcomingBirthdays).Methods(http.MethodGet)
	contactsRouter.HandleFunc("/{id:[0-9]+}", s.handleGetContact).Methods(http.MethodGet)
	contactsRouter.HandleFunc("/{id:[0-9]+}", s.handleUpdateContact).Methods(http.MethodPatch)
	contactsRouter.HandleFunc("/{id:[0-9]+}", s.handleDeleteContact).Methods(http.MethodDelete)

	return r
}

// Run serves until the listener fails.
func (s *Server) Run() error {
	s.logger.Info(context.Background(), "starting http server", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the routing tree for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
