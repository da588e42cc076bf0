package config

import "time"

const (
	baseURLKey       = "base_url"
	publicKeyKey     = "public_key"
	httpTimeoutKey   = "http_timeout"
	strictParsingKey = "strict_parsing"
)

// GetBaseURL returns the Authentication Service base URL, empty for the production default
func (c mainConfig) GetBaseURL() string {
	return c.v.GetString(baseURLKey)
}

func (c mainConfig) GetPublicKey() string {
	return c.v.GetString(publicKeyKey)
}

func (c mainConfig) GetHTTPTimeout() time.Duration {
	return c.v.GetDuration(httpTimeoutKey)
}

func (c mainConfig) GetStrictParsing() bool {
	return c.v.GetBool(strictParsingKey)
}
