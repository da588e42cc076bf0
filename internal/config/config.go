package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by the configuration.
const EnvPrefix = "THREEDS"

type Config interface {
	EnvConfig
	ClientConfig
	SessionConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetSandbox() bool
}

type ClientConfig interface {
	GetBaseURL() string
	GetPublicKey() string
	GetHTTPTimeout() time.Duration
	GetStrictParsing() bool
}

type SessionConfig interface {
	GetSessionTimeout() time.Duration
	GetFingerprintRetries() int
	GetContainerWidth() int
}

type mainConfig struct {
	v *viper.Viper
}

var _ Config = mainConfig{}

// New reads the configuration from THREEDS_* environment variables.
func New() Config {
	return mainConfig{v: newViper()}
}

// Load reads the configuration from file (toml, yaml or json, by extension).
// Environment variables override file values.
func Load(file string) (Config, error) {
	v := newViper()
	v.SetConfigFile(file)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "[config.Load] %s", file)
	}
	return mainConfig{v: v}, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault(portKey, "8089")
	v.SetDefault(appNameKey, "3DS Secure")
	v.SetDefault(envKey, "DEV")
	v.SetDefault(logLevelKey, "info")
	v.SetDefault(sandboxKey, false)

	v.SetDefault(baseURLKey, "")
	v.SetDefault(publicKeyKey, "")
	v.SetDefault(httpTimeoutKey, 30*time.Second)
	v.SetDefault(strictParsingKey, false)

	v.SetDefault(sessionTimeoutKey, 10*time.Minute)
	v.SetDefault(fingerprintRetriesKey, 0)
	v.SetDefault(containerWidthKey, 600)
	return v
}
