package utils

import (
	"net/url"
	"strings"

	"terabox-go/internal"
)

// knownDomains are the domains TeraBox serves its web API from.
var knownDomains = []string{
	"terabox.com",
	"terabox.app",
	"teraboxapp.com",
	"1024terabox.com",
	"1024tera.com",
	"4funbox.com",
	"mirrobox.com",
	"nephobox.com",
	"freeterabox.com",
	"momerybox.com",
	"tibibox.com",
}

// BaseURL returns host as an origin. A host without a scheme is served over
// https.
func BaseURL(host string) string {
	host = strings.TrimRight(host, "/")
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return host
	}
	return "https://" + host
}

// BuildURL joins an API path and query onto host.
func BuildURL(host, path string, query url.Values) string {
	u := BaseURL(host) + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// ValidateHost checks that host is a bare hostname or an http(s) origin
// without path or query.
func ValidateHost(field, host string) error {
	if host == "" {
		return internal.NewValidationError(field, "host cannot be empty")
	}

	parsed, err := url.Parse(BaseURL(host))
	if err != nil {
		return internal.NewValidationErrorWithValue(field, "invalid host", host).
			WithContext("error", err.Error())
	}
	if parsed.Host == "" || strings.ContainsAny(parsed.Host, " ;") {
		return internal.NewValidationErrorWithValue(field, "invalid host", host)
	}
	if parsed.Path != "" || parsed.RawQuery != "" {
		return internal.NewValidationErrorWithValue(field, "host must not contain a path or query", host).
			WithSuggestion("Use a bare host such as www.terabox.com")
	}
	return nil
}

// IsKnownHost reports whether host belongs to one of the TeraBox domains.
func IsKnownHost(host string) bool {
	parsed, err := url.Parse(BaseURL(host))
	if err != nil {
		return false
	}

	hostname := strings.ToLower(parsed.Hostname())
	for _, domain := range knownDomains {
		if hostname == domain || strings.HasSuffix(hostname, "."+domain) {
			return true
		}
	}
	return false
}
