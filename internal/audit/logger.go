package audit

import (
	"context"
	"sort"

	"github.com/rs/zerolog"

	pkgctx "github.com/baechuer/miniapp-auth/internal/pkg/context"
)

// Logger provides structured audit logging for auth business events
type Logger struct {
	log zerolog.Logger
}

// New creates a new audit logger
func New(log zerolog.Logger) *Logger {
	return &Logger{
		log: log.With().Bool("audit", true).Logger(),
	}
}

// Record matches the service audit hook. Unknown actions are still logged.
func (l *Logger) Record(ctx context.Context, action string, fields map[string]string) {
	evt := l.log.Info().
		Str("action", action).
		Str("request_id", pkgctx.GetRequestID(ctx))

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		evt = evt.Str(k, fields[k])
	}
	evt.Msg(message(action))
}

// LoginFailed logs a rejected login attempt. The code itself is never logged.
func (l *Logger) LoginFailed(ctx context.Context, ip, reason string) {
	l.log.Warn().
		Str("action", "login_failed").
		Str("ip", ip).
		Str("reason", reason).
		Str("request_id", pkgctx.GetRequestID(ctx)).
		Msg("Login attempt failed")
}

func message(action string) string {
	switch action {
	case "wechat_register":
		return "User registered via WeChat"
	case "wechat_login":
		return "User logged in via WeChat"
	case "profile_update":
		return "User profile updated"
	default:
		return "audit"
	}
}
