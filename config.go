// config.go: interpreter limits and policy, loadable from YAML, TOML and the
// environment.
//
// Precedence (lowest to highest): DefaultConfig, config file (LoadConfig),
// RUNIX_* environment variables (ApplyEnv), then whatever the host sets
// explicitly (cmd/runix applies its flags last).
package runix

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/naoina/toml"
	"github.com/xyproto/env/v2"
	"gopkg.in/yaml.v3"
)

// Config holds the evaluation budget and error policy of an Interpreter.
type Config struct {
	// MaxSteps bounds executed statements plus calls per evaluation. 0 = unlimited.
	MaxSteps int64 `yaml:"max_steps" toml:"max_steps"`
	// MaxCallDepth bounds nested user-function calls. 0 = CallDepthCeiling.
	MaxCallDepth int `yaml:"max_call_depth" toml:"max_call_depth"`
	// Timeout bounds wall-clock time per evaluation. 0 = none.
	Timeout Duration `yaml:"timeout" toml:"timeout"`
	// ParseCacheSize is the number of parsed sources kept by EvalSource. 0 disables the cache.
	ParseCacheSize int `yaml:"parse_cache_size" toml:"parse_cache_size"`
	// HaltOnSyntaxError refuses to run a program that had syntax errors.
	HaltOnSyntaxError bool `yaml:"halt_on_syntax_error" toml:"halt_on_syntax_error"`
	// LogLevel is only read by cmd/runix: crit, error, warn, info, debug or trace.
	LogLevel string `yaml:"log_level" toml:"log_level"`
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return Config{
		MaxCallDepth:   1000,
		ParseCacheSize: 64,
		LogLevel:       "warn",
	}
}

// LoadConfig reads path on top of DefaultConfig. The format is chosen by
// extension: .yaml/.yml or .toml.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err = dec.Decode(&cfg); errors.Is(err, io.EOF) {
			err = nil // empty file
		}
	case ".toml":
		err = tomlSettings.NewDecoder(bytes.NewReader(data)).Decode(&cfg)
	default:
		return cfg, fmt.Errorf("config %s: unsupported format %q", path, filepath.Ext(path))
	}
	if err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// tomlSettings rejects keys that match no Config field.
var tomlSettings = toml.Config{
	NormFieldName: toml.DefaultConfig.NormFieldName,
	FieldToKey:    toml.DefaultConfig.FieldToKey,
	MissingField: func(rt reflect.Type, field string) error {
		return fmt.Errorf("field '%s' is not defined in %s", field, rt.String())
	},
}

// Environment variables read by ApplyEnv.
const (
	EnvMaxSteps          = "RUNIX_MAX_STEPS"
	EnvMaxCallDepth      = "RUNIX_MAX_CALL_DEPTH"
	EnvTimeout           = "RUNIX_TIMEOUT"
	EnvParseCacheSize    = "RUNIX_PARSE_CACHE_SIZE"
	EnvHaltOnSyntaxError = "RUNIX_HALT_ON_SYNTAX_ERROR"
	EnvLogLevel          = "RUNIX_LOG_LEVEL"
)

// ApplyEnv overrides fields of c from any RUNIX_* variables that are set.
func (c *Config) ApplyEnv() error {
	if env.Has(EnvMaxSteps) {
		c.MaxSteps = env.Int64(EnvMaxSteps, c.MaxSteps)
	}
	if env.Has(EnvMaxCallDepth) {
		c.MaxCallDepth = env.Int(EnvMaxCallDepth, c.MaxCallDepth)
	}
	if env.Has(EnvTimeout) {
		if err := c.Timeout.UnmarshalText([]byte(env.Str(EnvTimeout))); err != nil {
			return fmt.Errorf("%s: %w", EnvTimeout, err)
		}
	}
	if env.Has(EnvParseCacheSize) {
		c.ParseCacheSize = env.Int(EnvParseCacheSize, c.ParseCacheSize)
	}
	if env.Has(EnvHaltOnSyntaxError) {
		c.HaltOnSyntaxError = env.Bool(EnvHaltOnSyntaxError)
	}
	if env.Has(EnvLogLevel) {
		c.LogLevel = env.Str(EnvLogLevel)
	}
	return c.Validate()
}

// CallDepthCeiling is the call depth no configuration can exceed; deeper Go
// recursion risks a fatal stack overflow.
const CallDepthCeiling = 10000

// Validate rejects negative limits and call depths above CallDepthCeiling.
func (c Config) Validate() error {
	switch {
	case c.MaxSteps < 0:
		return fmt.Errorf("max_steps must not be negative (got %d)", c.MaxSteps)
	case c.MaxCallDepth < 0:
		return fmt.Errorf("max_call_depth must not be negative (got %d)", c.MaxCallDepth)
	case c.MaxCallDepth > CallDepthCeiling:
		return fmt.Errorf("max_call_depth must not exceed %d (got %d)", CallDepthCeiling, c.MaxCallDepth)
	case c.Timeout < 0:
		return fmt.Errorf("timeout must not be negative (got %s)", c.Timeout)
	case c.ParseCacheSize < 0:
		return fmt.Errorf("parse_cache_size must not be negative (got %d)", c.ParseCacheSize)
	}
	return nil
}

// Duration is a time.Duration written as "250ms", "2s" or a bare number of
// seconds in config files.
type Duration time.Duration

func (d Duration) String() string { return time.Duration(d).String() }

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler (used by TOML and env).
func (d *Duration) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if s == "" {
		*d = 0
		return nil
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		*d = Duration(secs * float64(time.Second))
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q", s)
	}
	*d = Duration(v)
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", value.Line)
	}
	return d.UnmarshalText([]byte(value.Value))
}
