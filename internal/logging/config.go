// Package logging centralizes zerolog setup for binaries and tests.
package logging

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	EnvLogLevel     = "MCSCI_LOG_LEVEL"
	EnvLogTimestamp = "MCSCI_LOG_TIMESTAMP"
	EnvLogNoColor   = "MCSCI_LOG_NOCOLOR"
)

type Profile int

const (
	ProfileRuntime Profile = iota
	ProfileTest
)

type settings struct {
	Level     zerolog.Level
	Timestamp bool
	NoColor   bool
}

var configureOnce sync.Once

func ConfigureRuntime() zerolog.Logger {
	return Configure(ProfileRuntime)
}

func ConfigureTests() zerolog.Logger {
	return Configure(ProfileTest)
}

// Configure initializes the global logger once; later calls return it
// unchanged. Logs go to stderr so protocol traffic on stdout stays clean in
// stdio mode.
func Configure(profile Profile) zerolog.Logger {
	configureOnce.Do(func() {
		cfg := defaultSettings(profile)
		applyEnvOverrides(&cfg)
		out := zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
			NoColor:    cfg.NoColor,
		}
		logger := zerolog.New(out).Level(cfg.Level)
		ctx := logger.With()
		if cfg.Timestamp {
			ctx = ctx.Timestamp()
		}
		log.Logger = ctx.Logger()
	})
	return log.Logger
}

// SetLevel re-levels the global logger, for config-file driven overrides
// applied after Configure.
func SetLevel(raw string) (zerolog.Logger, error) {
	lvl, ok := parseLevel(raw)
	if !ok {
		return log.Logger, fmt.Errorf("logging: unknown level %q", raw)
	}
	log.Logger = log.Logger.Level(lvl)
	return log.Logger, nil
}

func defaultSettings(profile Profile) settings {
	switch profile {
	case ProfileTest:
		return settings{Level: zerolog.DebugLevel, Timestamp: false}
	default:
		return settings{Level: zerolog.InfoLevel, Timestamp: true}
	}
}

func applyEnvOverrides(cfg *settings) {
	if lvl, ok := parseLevel(os.Getenv(EnvLogLevel)); ok {
		cfg.Level = lvl
	}
	if v, ok := parseBool(os.Getenv(EnvLogTimestamp)); ok {
		cfg.Timestamp = v
	}
	if v, ok := parseBool(os.Getenv(EnvLogNoColor)); ok {
		cfg.NoColor = v
	}
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

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
