package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"net/http/cookiejar"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-client/internal/config"
	"github.com/vovakirdan/wirechat-client/internal/coordinator"
	"github.com/vovakirdan/wirechat-client/internal/core"
	"github.com/vovakirdan/wirechat-client/internal/transport/rest"
	"github.com/vovakirdan/wirechat-client/internal/transport/ws"
)

// ErrReloadRequired ends a session whose push connection dropped and may
// not be re-established automatically.
var ErrReloadRequired = errors.New("connection lost, restart required")

// stableConnection is how long a push connection without an identity has
// to stay open before its loss no longer counts against the retry budget.
const stableConnection = 30 * time.Second

// App wires one chat session: the owned state, the API client, the
// action coordinator and the push channel.
type App struct {
	State       *core.State
	API         *rest.Client
	Coordinator *coordinator.Coordinator
	Channel     *ws.Channel

	cfg     config.Config
	pushURL string
	jar     stdhttp.CookieJar
	log     *zerolog.Logger
	sleep   func(ctx context.Context, d time.Duration) error

	stableAfter time.Duration
}

// New constructs a session from cfg. cb receives push events; it is
// usually the console's.
func New(cfg config.Config, cb ws.Callbacks, logger *zerolog.Logger) (*App, error) {
	pushURL, err := cfg.PushURL()
	if err != nil {
		return nil, fmt.Errorf("push url: %w", err)
	}

	// REST and push share one cookie jar so a server-issued session
	// cookie identifies both.
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}

	api, err := rest.NewClient(cfg.ServerURL, rest.Options{
		SessionToken: cfg.SessionToken,
		HTTPClient:   &stdhttp.Client{Timeout: cfg.RequestTimeout, Jar: jar},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("api client: %w", err)
	}

	state := core.NewState(logger)
	channel := ws.NewChannel(state, ws.Options{
		SessionToken: cfg.SessionToken,
		QueueSize:    cfg.SendQueueSize,
		DialTimeout:  cfg.DialTimeout,
		HTTPClient:   &stdhttp.Client{Jar: jar},
		Callbacks:    cb,
	}, logger)

	return &App{
		State:       state,
		API:         api,
		Coordinator: coordinator.New(api, state, logger),
		Channel:     channel,
		cfg:         cfg,
		pushURL:     pushURL,
		jar:         jar,
		log:         logger,
		sleep:       sleepCtx,
		stableAfter: stableConnection,
	}, nil
}

// Config returns the configuration the session was built from.
func (a *App) Config() config.Config {
	return a.cfg
}

// Run hydrates rooms, connects the push channel and keeps it connected
// according to the reconnect policy. It returns nil when ctx is
// cancelled and an error when the connection is lost for good.
//
// Only a connection that proved healthy resets the attempt counter and
// the backoff, so a server that accepts and immediately drops still runs
// out of attempts.
func (a *App) Run(ctx context.Context) error {
	if _, err := a.Coordinator.Hydrate(ctx); err != nil {
		a.log.Warn().Err(err).Msg("initial room sync failed")
	}

	policy := a.cfg.Reconnect
	delay := policy.Delay
	attempts := 0

	for {
		if attempts > 0 {
			// Resync before dialling so frames for rooms joined in the
			// meantime are routable as soon as they arrive.
			if _, err := a.Coordinator.Hydrate(ctx); err != nil {
				a.log.Warn().Err(err).Msg("room sync before reconnect failed")
			}
		}

		err := a.Channel.Connect(ctx, a.pushURL)
		if err == nil {
			if attempts > 0 {
				a.log.Info().Int("attempt", attempts).Msg("reconnected")
			}
			opened := time.Now()

			select {
			case <-ctx.Done():
				if err := a.Channel.Close(); err != nil {
					a.log.Warn().Err(err).Msg("push channel closed")
				}
				return nil
			case <-a.Channel.Done():
			}
			err = a.Channel.Err()
			if err == nil {
				return nil
			}
			if a.healthy(opened) {
				attempts = 0
				delay = policy.Delay
			}
		}
		if ctx.Err() != nil {
			return nil
		}

		if attempts >= policy.MaxAttempts {
			if policy.MaxAttempts == 0 {
				return fmt.Errorf("%w: %w", ErrReloadRequired, err)
			}
			return fmt.Errorf("%w: gave up after %d attempts: %w", ErrReloadRequired, attempts, err)
		}
		attempts++

		a.log.Warn().Err(err).Int("attempt", attempts).Dur("delay", delay).Msg("push connection lost, reconnecting")
		if err := a.sleep(ctx, delay); err != nil {
			return nil
		}
		delay = nextDelay(delay, policy.MaxDelay)
	}
}

// healthy reports whether the connection that just ended got as far as
// an identity assignment or stayed open for stableAfter.
func (a *App) healthy(opened time.Time) bool {
	return a.State.Identity.Assigned() || time.Since(opened) >= a.stableAfter
}

// Close shuts the push channel down.
func (a *App) Close() error {
	return a.Channel.Close()
}

func nextDelay(d, ceiling time.Duration) time.Duration {
	if d <= 0 {
		return time.Second
	}
	d *= 2
	if ceiling > 0 && d > ceiling {
		return ceiling
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
