package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	EnvLogLevel     = "RAGENT_LOG_LEVEL"
	EnvLogTimestamp = "RAGENT_LOG_TIMESTAMP"
	EnvLogNoColor   = "RAGENT_LOG_NOCOLOR"
	EnvLogBypass    = "RAGENT_LOG_BYPASS"
)

type Profile int

const (
	ProfileRuntime Profile = iota
	ProfileTest
)

// Config is the resolved logger setup. Bypass skips the console writer and
// emits raw JSON lines.
type Config struct {
	Level     zerolog.Level
	Timestamp bool
	NoColor   bool
	Bypass    bool
	Out       io.Writer
}

var configureOnce sync.Once

func ConfigureRuntime() {
	Configure(ProfileRuntime)
}

func ConfigureTests() {
	Configure(ProfileTest)
}

func Configure(profile Profile) {
	configureOnce.Do(func() {
		cfg := defaultConfig(profile)
		applyEnvOverrides(&cfg)
		log.Logger = New(cfg)
		zerolog.SetGlobalLevel(cfg.Level)
	})
}

// New builds a logger from cfg without touching global state.
func New(cfg Config) zerolog.Logger {
	out := cfg.Out
	if out == nil {
		out = os.Stderr
	}
	if !cfg.Bypass {
		w := zerolog.ConsoleWriter{
			Out:        out,
			NoColor:    cfg.NoColor,
			TimeFormat: time.RFC3339,
		}
		if !cfg.Timestamp {
			w.PartsExclude = []string{zerolog.TimestampFieldName}
		}
		out = w
	}
	ctx := zerolog.New(out).Level(cfg.Level).With()
	if cfg.Timestamp {
		ctx = ctx.Timestamp()
	}
	return ctx.Logger()
}

func defaultConfig(profile Profile) Config {
	switch profile {
	case ProfileTest:
		return Config{Level: zerolog.DebugLevel, Timestamp: false, NoColor: true}
	default:
		return Config{Level: zerolog.InfoLevel, Timestamp: true}
	}
}

// logLevel accepts the level names of parseLevel when read from the
// environment.
type logLevel zerolog.Level

func (l *logLevel) UnmarshalText(text []byte) error {
	lvl, ok := parseLevel(string(text))
	if !ok {
		return fmt.Errorf("logging: unknown level %q", text)
	}
	*l = logLevel(lvl)
	return nil
}

type envOverrides struct {
	Level     logLevel `env:"RAGENT_LOG_LEVEL"`
	Timestamp bool     `env:"RAGENT_LOG_TIMESTAMP"`
	NoColor   bool     `env:"RAGENT_LOG_NOCOLOR"`
	Bypass    bool     `env:"RAGENT_LOG_BYPASS"`
}

// applyEnvOverrides layers RAGENT_LOG_* over cfg. A variable that fails to
// parse keeps the profile value; the others still apply.
func applyEnvOverrides(cfg *Config) {
	raw := envOverrides{
		Level:     logLevel(cfg.Level),
		Timestamp: cfg.Timestamp,
		NoColor:   cfg.NoColor,
		Bypass:    cfg.Bypass,
	}
	_ = env.Parse(&raw)
	cfg.Level = zerolog.Level(raw.Level)
	cfg.Timestamp = raw.Timestamp
	cfg.NoColor = raw.NoColor
	cfg.Bypass = raw.Bypass
}

func parseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.InfoLevel, false
	case "trace", "diagnostics":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "disable", "off", "none", "inactive":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}
