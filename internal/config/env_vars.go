package config

import (
	"fmt"
	"strings"
)

const (
	portKey     = "port"
	appNameKey  = "app_name"
	envKey      = "env"
	logLevelKey = "log_level"
	sandboxKey  = "sandbox"
)

func (c mainConfig) GetPort() string {
	port := c.v.GetString(portKey)
	if !strings.HasPrefix(port, ":") {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (c mainConfig) GetAppName() string {
	return c.v.GetString(appNameKey)
}

func (c mainConfig) GetEnv() string {
	return strings.ToUpper(c.v.GetString(envKey))
}

func (c mainConfig) GetLogLevel() string {
	return c.v.GetString(logLevelKey)
}

// GetSandbox reports whether the CLI should run against the local sandbox
func (c mainConfig) GetSandbox() bool {
	return c.v.GetBool(sandboxKey)
}
