package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// DotEnvFile is read from the config directory before environment overrides
// are applied. Variables already set in the process win over it.
const DotEnvFile = ".env"

// Environment variables that override values from the config file.
const (
	EnvServerURL = "BACKUPCTL_SERVER_URL"
	EnvAPIKey    = "BACKUPCTL_API_KEY"
	EnvTimeout   = "BACKUPCTL_TIMEOUT"
	EnvLogLevel  = "BACKUPCTL_LOG_LEVEL"
	EnvLogFormat = "BACKUPCTL_LOG_FORMAT"
	EnvUIListen  = "BACKUPCTL_UI_LISTEN"
)

// ApplyEnv overrides cfg with any values set in the environment.
// Proxy variables follow the usual HTTP_PROXY / HTTPS_PROXY / NO_PROXY
// convention and only fill fields the file left empty.
func ApplyEnv(cfg *AgentConfig) {
	if v := getEnv(EnvServerURL); v != "" {
		cfg.ServerURL = v
	}
	if v := getEnv(EnvAPIKey); v != "" {
		cfg.APIKey = v
	}
	if d := getEnvDuration(EnvTimeout, 0); d > 0 {
		cfg.Timeout = d
	}
	if v := getEnv(EnvLogLevel); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v := getEnv(EnvLogFormat); v != "" {
		cfg.LogFormat = strings.ToLower(v)
	}
	if v := getEnv(EnvUIListen); v != "" {
		cfg.UIListen = v
	}

	httpProxy := firstEnv("HTTP_PROXY", "http_proxy")
	httpsProxy := firstEnv("HTTPS_PROXY", "https_proxy")
	noProxy := firstEnv("NO_PROXY", "no_proxy")
	if httpProxy == "" && httpsProxy == "" && noProxy == "" {
		return
	}
	if cfg.Proxy == nil {
		cfg.Proxy = &ProxyConfig{}
	}
	if cfg.Proxy.HTTPProxy == "" {
		cfg.Proxy.HTTPProxy = httpProxy
	}
	if cfg.Proxy.HTTPSProxy == "" {
		cfg.Proxy.HTTPSProxy = httpsProxy
	}
	if cfg.Proxy.NoProxy == "" {
		cfg.Proxy.NoProxy = noProxy
	}
}

// dotenvOwned tracks the variables LoadDotEnv exported and the value it
// wrote, so a later load can update or remove them.
var dotenvOwned = struct {
	sync.Mutex
	values map[string]string
}{values: map[string]string{}}

// LoadDotEnv exports the variables of a dotenv file into the process
// environment. Variables set by anything else are never overridden, while
// ones exported by an earlier LoadDotEnv follow the file: changed values are
// updated and removed keys are unset. A missing file counts as empty.
func LoadDotEnv(path string) error {
	values, err := godotenv.Read(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}

	dotenvOwned.Lock()
	defer dotenvOwned.Unlock()

	owned := func(key string) bool {
		written, ok := dotenvOwned.values[key]
		current, set := os.LookupEnv(key)
		return ok && set && current == written
	}

	for key := range dotenvOwned.values {
		if _, keep := values[key]; keep {
			continue
		}
		if owned(key) {
			os.Unsetenv(key)
		}
		delete(dotenvOwned.values, key)
	}

	for key, value := range values {
		if _, set := os.LookupEnv(key); set && !owned(key) {
			delete(dotenvOwned.values, key)
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return fmt.Errorf("set %s from %s: %w", key, path, err)
		}
		dotenvOwned.values[key] = value
	}
	return nil
}

func getEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := getEnv(k); v != "" {
			return v
		}
	}
	return ""
}

// getEnvDuration reads a duration from an environment variable, returning the default if unset or invalid.
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := getEnv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}
