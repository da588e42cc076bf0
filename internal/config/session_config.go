package config

import "time"

const (
	sessionTimeoutKey     = "session_timeout"
	fingerprintRetriesKey = "fingerprint_retries"
	containerWidthKey     = "container_width"
)

func (c mainConfig) GetSessionTimeout() time.Duration {
	return c.v.GetDuration(sessionTimeoutKey)
}

func (c mainConfig) GetFingerprintRetries() int {
	return c.v.GetInt(fingerprintRetriesKey)
}

// GetContainerWidth is the width in pixels of the mount point the CLI reports
func (c mainConfig) GetContainerWidth() int {
	return c.v.GetInt(containerWidthKey)
}
