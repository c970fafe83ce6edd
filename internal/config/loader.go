package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix prefixes every recognised environment variable.
	EnvPrefix = "WORKER_"

	maxConfigFileSize = 1024 * 1024 // 1MB
)

// legacyEnv maps the variable names used by earlier deployments of the bot
// process manager onto config keys. WORKER_ variables take precedence.
var legacyEnv = map[string]string{
	"PYTHON_CMD":      "command",
	"BOT_PY_PATH":     "script",
	"BOT_CWD":         "cwd",
	"BOT_TIMEOUT_MS":  "timeout_ms",
	"BOT_MAX_PENDING": "max_pending",
}

// fileConfig is the on-disk and environment shape of Options.
type fileConfig struct {
	Command          string            `koanf:"command"`
	Script           string            `koanf:"script"`
	Args             []string          `koanf:"args"`
	Env              map[string]string `koanf:"env"`
	Cwd              string            `koanf:"cwd"`
	TimeoutMs        int               `koanf:"timeout_ms"`
	MaxPending       int               `koanf:"max_pending"`
	RestartBackoffMs int               `koanf:"restart_backoff_ms"`
	StopGraceMs      int               `koanf:"stop_grace_ms"`
	MaxLineBytes     int               `koanf:"max_line_bytes"`
	Correlation      string            `koanf:"correlation"`
}

// Load reads bridge options from an optional YAML file, then overrides them
// with environment variables.
//
// Configuration precedence (highest to lowest):
//  1. WORKER_* environment variables (WORKER_COMMAND, WORKER_TIMEOUT_MS, ...)
//  2. Legacy environment variables (PYTHON_CMD, BOT_PY_PATH, BOT_CWD,
//     BOT_TIMEOUT_MS, BOT_MAX_PENDING)
//  3. YAML config file, if path is not empty
//  4. Defaults applied by ApplyDefaults
//
// Environment variable names map to keys by dropping the prefix and
// lowercasing:
//
//	WORKER_MAX_PENDING -> max_pending
//	WORKER_RESTART_BACKOFF_MS -> restart_backoff_ms
//
// The returned options have defaults applied and are validated.
func Load(path string) (*Options, error) {
	k := koanf.New(".")

	if path != "" {
		content, err := readConfigFile(path)
		if err != nil {
			return nil, err
		}

		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", func(s string) string {
		return legacyEnv[s]
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load legacy environment variables: %w", err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var fc fileConfig
	if err := k.Unmarshal("", &fc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	opts := fc.options()
	opts.ApplyDefaults()

	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return opts, nil
}

// readConfigFile reads a config file, rejecting anything over maxConfigFileSize.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return content, nil
}

func (fc *fileConfig) options() *Options {
	return &Options{
		Command:        fc.Command,
		Script:         fc.Script,
		Args:           fc.Args,
		Env:            fc.Env,
		Cwd:            fc.Cwd,
		DefaultTimeout: time.Duration(fc.TimeoutMs) * time.Millisecond,
		MaxPending:     fc.MaxPending,
		RestartBackoff: time.Duration(fc.RestartBackoffMs) * time.Millisecond,
		StopGrace:      time.Duration(fc.StopGraceMs) * time.Millisecond,
		MaxLineBytes:   fc.MaxLineBytes,
		Correlation:    fc.Correlation,
	}
}
