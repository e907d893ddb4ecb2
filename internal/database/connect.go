package database

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

const (
	connectAttempts = 5
	connectBackoff  = 500 * time.Millisecond
	pingTimeout     = 5 * time.Second
)

// waitReady pings until the server answers, doubling the pause between
// attempts. Compose starts the API alongside Postgres and Redis, so the
// first pings often land before they accept connections.
func waitReady(ctx context.Context, log zerolog.Logger, backoff time.Duration, ping func(context.Context) error) error {
	var err error
	for attempt := 1; ; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		err = ping(pingCtx)
		cancel()
		if err == nil || attempt == connectAttempts {
			return err
		}

		log.Warn().Err(err).
			Int("attempt", attempt).
			Dur("retry_in", backoff).
			Msg("Not reachable yet")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}
