package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-client/internal/auth"
	"github.com/vovakirdan/wirechat-client/internal/config"
	"github.com/vovakirdan/wirechat-client/internal/devserver"
	"github.com/vovakirdan/wirechat-client/internal/store"
	"github.com/vovakirdan/wirechat-client/internal/store/sqlite"
)

// DevServer wires the local backend to its database.
type DevServer struct {
	server *devserver.Server
	store  store.Store
	addr   string
	log    *zerolog.Logger
}

// NewDevServer constructs the local backend with provided configuration.
func NewDevServer(cfg config.DevServer, logger *zerolog.Logger) (*DevServer, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   "wirechat-devserver",
		Audience: "wirechat-client",
		TTL:      30 * 24 * time.Hour,
	}
	authService := auth.NewService(st, jwtConfig)

	return &DevServer{
		server: devserver.New(st, authService, devserver.Options{}, logger),
		store:  st,
		addr:   cfg.Addr,
		log:    logger,
	}, nil
}

// Run serves until ctx is cancelled, then closes the database.
func (d *DevServer) Run(ctx context.Context) error {
	defer d.cleanup()
	return d.server.Run(ctx, d.addr)
}

func (d *DevServer) cleanup() {
	if err := d.store.Close(); err != nil {
		d.log.Warn().Err(err).Msg("failed to close store")
	} else {
		d.log.Info().Msg("store closed")
	}
}
