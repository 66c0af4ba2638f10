package internal

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds application configuration
type Config struct {
	// Session
	NDUS       string
	JSToken    string
	CookieFile string

	// Upstream identity
	Host       string
	UploadHost string
	Lang       string
	AppID      string
	BrowserID  string
	UserAgent  string

	// Transport
	DefaultTimeout int
	ProxyURL       string

	// Logging configuration
	LogLevel    string
	EnableDebug bool
	QuietMode   bool
	LogFile     string
}

// DefaultConfig returns the default configuration. Upstream identity fields
// are left empty so the client applies its own defaults.
func DefaultConfig() *Config {
	return &Config{
		DefaultTimeout: 30,

		LogLevel:    "info",
		EnableDebug: false,
		QuietMode:   false,
		LogFile:     "", // Empty means stderr
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() {
	stringVars := map[string]*string{
		"TERABOX_NDUS":        &c.NDUS,
		"TERABOX_JS_TOKEN":    &c.JSToken,
		"TERABOX_COOKIES":     &c.CookieFile,
		"TERABOX_HOST":        &c.Host,
		"TERABOX_UPLOAD_HOST": &c.UploadHost,
		"TERABOX_LANG":        &c.Lang,
		"TERABOX_APP_ID":      &c.AppID,
		"TERABOX_BROWSER_ID":  &c.BrowserID,
		"TERABOX_USER_AGENT":  &c.UserAgent,
		"TERABOX_PROXY":       &c.ProxyURL,
		"TERABOX_LOG_LEVEL":   &c.LogLevel,
		"TERABOX_LOG_FILE":    &c.LogFile,
	}
	for key, target := range stringVars {
		if value := os.Getenv(key); value != "" {
			*target = value
		}
	}

	if timeout := os.Getenv("TERABOX_TIMEOUT"); timeout != "" {
		if t, err := strconv.Atoi(timeout); err == nil && t > 0 {
			c.DefaultTimeout = t
		}
	}

	if debug := os.Getenv("TERABOX_DEBUG"); debug != "" {
		c.EnableDebug = envTrue(debug)
	}

	if quiet := os.Getenv("TERABOX_QUIET"); quiet != "" {
		c.QuietMode = envTrue(quiet)
	}
}

func envTrue(value string) bool {
	value = strings.ToLower(value)
	return value == "true" || value == "1"
}

// ValidateConfig validates the configuration values
func (c *Config) ValidateConfig() error {
	if c.DefaultTimeout < 1 {
		return fmt.Errorf("invalid default timeout: %d (must be > 0)", c.DefaultTimeout)
	}

	if c.ProxyURL != "" &&
		!strings.HasPrefix(c.ProxyURL, "http://") &&
		!strings.HasPrefix(c.ProxyURL, "https://") &&
		!strings.HasPrefix(c.ProxyURL, "socks5://") {
		return fmt.Errorf("unsupported proxy scheme in %q, use http://, https:// or socks5://", c.ProxyURL)
	}

	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log level: %q", c.LogLevel)
	}

	return nil
}
