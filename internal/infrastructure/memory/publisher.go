package memory

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/baechuer/miniapp-auth/internal/application/auth"
)

// LogPublisher stands in for the broker in dev: events only reach the log.
type LogPublisher struct {
	log zerolog.Logger
}

func NewLogPublisher(log zerolog.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) PublishUserRegistered(ctx context.Context, evt auth.UserRegisteredEvent) error {
	p.log.Debug().Str("event", "user_registered").Str("user_id", evt.UserID).Msg("event")
	return nil
}

func (p *LogPublisher) PublishUserLoggedIn(ctx context.Context, evt auth.UserLoggedInEvent) error {
	p.log.Debug().Str("event", "user_logged_in").Str("user_id", evt.UserID).Bool("new", evt.IsNewUser).Msg("event")
	return nil
}
