package observability

import (
	"github.com/danmuck/ragent/internal/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger applies the runtime log profile and tags the global logger with
// the binary name.
func InitLogger(app string) zerolog.Logger {
	logging.ConfigureRuntime()
	logger := log.Logger.With().Str("app", app).Logger()
	log.Logger = logger
	return logger
}

// RouterLogger scopes a logger to one router.
func RouterLogger(base zerolog.Logger, routerID string) zerolog.Logger {
	return base.With().Str("router", routerID).Logger()
}
