// Package config resolves per-upstream adapter configuration. Resolution
// happens once, at adapter construction, with a fixed precedence:
//
//  1. an explicit {SERVICE}_* environment override
//  2. the embedded environment+market lookup table (defaults.yaml)
//  3. a hardcoded fallback
//
// The resolved value is read-only for the life of the adapter.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Fallbacks used when neither an override nor a table entry exists.
const (
	fallbackTimeout    = 5 * time.Second
	fallbackRetries    = 3
	defaultEnvironment = "production"
	defaultMarket      = "jp"
)

// AdapterConfig is the resolved, immutable configuration of one upstream
// adapter.
type AdapterConfig struct {
	Service    string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int // total attempts; 0 means a single attempt, no retries
	Mutating   bool
	MockMode   bool
}

var (
	tableOnce sync.Once
	table     *koanf.Koanf
	tableErr  error
)

func lookupTable() (*koanf.Koanf, error) {
	tableOnce.Do(func() {
		k := koanf.New(".")
		if err := k.Load(rawbytes.Provider(defaultsYAML), yaml.Parser()); err != nil {
			tableErr = fmt.Errorf("config: loading embedded defaults: %w", err)
			return
		}
		table = k
	})
	return table, tableErr
}

// Resolve builds the configuration for service. mutating marks adapters whose
// operations have create/update semantics: they resolve to a single attempt
// unless {SERVICE}_RETRIES explicitly opts in, because retrying a
// non-idempotent call risks duplicate side effects upstream.
func Resolve(service string, mutating bool) (AdapterConfig, error) {
	k, err := lookupTable()
	if err != nil {
		return AdapterConfig{}, err
	}

	prefix := envPrefix(service)
	tablePath := fmt.Sprintf("environments.%s.%s.%s",
		envOr("APP_ENV", defaultEnvironment),
		envOr("APP_MARKET", defaultMarket),
		service)

	cfg := AdapterConfig{
		Service:    service,
		BaseURL:    fmt.Sprintf("http://%s.local", service),
		Timeout:    fallbackTimeout,
		MaxRetries: fallbackRetries,
		Mutating:   mutating,
	}
	if mutating {
		cfg.MaxRetries = 0
	}

	if k.Exists(tablePath + ".baseUrl") {
		cfg.BaseURL = k.String(tablePath + ".baseUrl")
	}
	if k.Exists(tablePath + ".timeoutMs") {
		cfg.Timeout = time.Duration(k.Int(tablePath+".timeoutMs")) * time.Millisecond
	}
	if !mutating && k.Exists(tablePath+".retries") {
		cfg.MaxRetries = k.Int(tablePath + ".retries")
	}

	if v := os.Getenv(prefix + "_BASE_URL_OVERRIDE"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv(prefix + "_TIMEOUT"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil || ms <= 0 {
			return AdapterConfig{}, fmt.Errorf("config: invalid %s_TIMEOUT %q", prefix, v)
		}
		cfg.Timeout = time.Duration(ms) * time.Millisecond
	}
	if v := os.Getenv(prefix + "_RETRIES"); v != "" {
		retries, err := strconv.Atoi(v)
		if err != nil || retries < 0 {
			return AdapterConfig{}, fmt.Errorf("config: invalid %s_RETRIES %q", prefix, v)
		}
		cfg.MaxRetries = retries
	}

	cfg.MockMode = boolEnv("MOCK_MODE") || boolEnv(prefix+"_MOCK_MODE")
	return cfg, nil
}

func envPrefix(service string) string {
	return strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(service))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func boolEnv(key string) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && v
}
