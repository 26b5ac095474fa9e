// Package devserver is a local backend speaking the chat server's wire
// contract: the form-encoded room endpoints and the push websocket. It
// exists so the client can be run and tested end to end without the
// production service.
package devserver

import (
	"context"
	"errors"
	stdhttp "net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-client/internal/auth"
	"github.com/vovakirdan/wirechat-client/internal/proto"
	"github.com/vovakirdan/wirechat-client/internal/store"
)

const (
	defaultCleanupInterval = time.Minute
	defaultShutdownTimeout = 5 * time.Second
	defaultMaxMessageBytes = 1 << 20
)

// Options tunes the dev backend.
type Options struct {
	// PublicURL is the base of generated invite URLs. When empty it is
	// derived from the request.
	PublicURL       string
	CleanupInterval time.Duration
	ShutdownTimeout time.Duration
	MaxMessageBytes int64
}

// Server wires the HTTP handlers, the push hub and the store.
type Server struct {
	store  store.Store
	auth   *auth.Service
	hub    *hub
	opts   Options
	log    *zerolog.Logger
	engine *gin.Engine
	mux    *stdhttp.ServeMux
	now    func() time.Time
}

// New builds a dev backend on top of st.
func New(st store.Store, authService *auth.Service, opts Options, logger *zerolog.Logger) *Server {
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = defaultCleanupInterval
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = defaultShutdownTimeout
	}
	if opts.MaxMessageBytes <= 0 {
		opts.MaxMessageBytes = defaultMaxMessageBytes
	}

	s := &Server{
		store: st,
		auth:  authService,
		hub:   newHub(logger),
		opts:  opts,
		log:   logger,
		now:   time.Now,
	}
	s.engine = s.routes()

	// The push endpoint needs the raw connection, the rest goes to gin.
	s.mux = stdhttp.NewServeMux()
	s.mux.Handle("/ws", s.pushHandler())
	s.mux.Handle("/", s.engine)
	return s
}

// Handler exposes the router, e.g. for httptest.
func (s *Server) Handler() stdhttp.Handler {
	return s.mux
}

func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(s.log))

	r.GET("/health", func(c *gin.Context) { c.String(stdhttp.StatusOK, "ok") })

	api := r.Group("/", SessionMiddleware(s.auth, s.log))
	api.POST(proto.PathCreateRoom, s.createRoom)
	api.POST(proto.PathJoinRoom, s.joinRoom)
	api.POST(proto.PathCreateInvite, s.createInvite)
	api.POST(proto.PathUserChatrooms, s.userChatrooms)
	api.GET(proto.PathUserChatrooms, s.userChatrooms)

	return r
}

// Run serves on addr until ctx is cancelled, removing expired invites in
// the background.
func (s *Server) Run(ctx context.Context, addr string) error {
	server := &stdhttp.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.RemoveExpiredInvites(ctx, s.opts.CleanupInterval)

	serverErr := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("dev server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()

		s.log.Info().Msg("shutting down dev server")
		s.hub.closeAll()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-serverErr
	}
}

// RemoveExpiredInvites deletes expired invites every interval until ctx
// is cancelled.
func (s *Server) RemoveExpiredInvites(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cleanupInvites(ctx)
		}
	}
}

func (s *Server) cleanupInvites(ctx context.Context) {
	n, err := s.store.DeleteExpiredInvites(ctx, s.now())
	if err != nil {
		s.log.Warn().Err(err).Msg("unable to delete expired invites")
		return
	}
	if n > 0 {
		s.log.Info().Int64("deleted", n).Msg("expired invites removed")
	}
}
