package utils

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/proxy"

	"terabox-go/internal"
)

// DefaultUserAgent is the browser identity sent when none is configured.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// maxErrorBody bounds how much of a failed response is kept on the error.
const maxErrorBody = 512

// HTTPClientConfig contains configuration for the HTTP client. A zero Timeout
// leaves requests unbounded.
type HTTPClientConfig struct {
	Timeout   time.Duration
	ProxyURL  string
	UserAgent string
	Logger    *internal.SecureLogger
	Metrics   *internal.Metrics
}

// HTTPClient sends single-attempt requests to TeraBox, maps HTTP failures
// onto TeraboxError and records per-endpoint metrics.
type HTTPClient struct {
	client    *http.Client
	userAgent string
	logger    *internal.SecureLogger
	metrics   *internal.Metrics
}

// NewHTTPClient creates a new HTTP client with default configuration. It sets
// no timeout; bound requests through their context.
func NewHTTPClient() *HTTPClient {
	c, _ := NewHTTPClientWithConfig(&HTTPClientConfig{})
	return c
}

// NewHTTPClientWithConfig creates a new HTTP client with custom configuration.
// It fails only when ProxyURL cannot be used.
func NewHTTPClientWithConfig(config *HTTPClientConfig) (*HTTPClient, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	if config.ProxyURL != "" {
		if err := configureProxy(transport, config.ProxyURL); err != nil {
			return nil, internal.NewConfigurationError("proxy", err.Error())
		}
	}

	userAgent := config.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   config.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			// Allow up to 10 redirects
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}

	return &HTTPClient{
		client:    client,
		userAgent: userAgent,
		logger:    config.Logger,
		metrics:   config.Metrics,
	}, nil
}

// configureProxy sets up proxy configuration for the transport
func configureProxy(transport *http.Transport, proxyURL string) error {
	parsedURL, err := url.Parse(proxyURL)
	if err != nil {
		return fmt.Errorf("invalid proxy URL: %w", err)
	}

	switch parsedURL.Scheme {
	case "http", "https":
		transport.Proxy = http.ProxyURL(parsedURL)
	case "socks5":
		var auth *proxy.Auth
		if parsedURL.User != nil {
			password, _ := parsedURL.User.Password()
			auth = &proxy.Auth{User: parsedURL.User.Username(), Password: password}
		}
		dialer, err := proxy.SOCKS5("tcp", parsedURL.Host, auth, proxy.Direct)
		if err != nil {
			return fmt.Errorf("failed to create SOCKS5 proxy: %w", err)
		}
		transport.Proxy = nil
		if contextDialer, ok := dialer.(proxy.ContextDialer); ok {
			transport.DialContext = contextDialer.DialContext
		} else {
			transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
				return dialer.Dial(network, addr)
			}
		}
	default:
		return fmt.Errorf("unsupported proxy scheme: %s", parsedURL.Scheme)
	}

	return nil
}

// WithMetrics returns a copy of c that records into metrics. c is not
// modified.
func (c *HTTPClient) WithMetrics(metrics *internal.Metrics) *HTTPClient {
	clone := *c
	clone.metrics = metrics
	return &clone
}

// PostForm sends an application/x-www-form-urlencoded POST.
func (c *HTTPClient) PostForm(ctx context.Context, rawURL string, form url.Values, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, internal.NewArgumentError("url", err.Error())
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return c.Do(req, headers)
}

// PostMultipart sends body as the single file part named field.
func (c *HTTPClient) PostMultipart(ctx context.Context, rawURL, field, filename string, body io.Reader, headers map[string]string) (*http.Response, error) {
	var payload bytes.Buffer
	writer := multipart.NewWriter(&payload)

	part, err := writer.CreateFormFile(field, filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create multipart part: %w", err)
	}
	if _, err := io.Copy(part, body); err != nil {
		return nil, fmt.Errorf("failed to read upload body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, &payload)
	if err != nil {
		return nil, internal.NewArgumentError("url", err.Error())
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	return c.Do(req, headers)
}

// GetWithContext performs a GET request
func (c *HTTPClient) GetWithContext(ctx context.Context, rawURL string, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, internal.NewArgumentError("url", err.Error())
	}

	return c.Do(req, headers)
}

// Do sends req once. A 2xx response is returned to the caller, who owns the
// body; every other status is closed and turned into a TeraboxError.
func (c *HTTPClient) Do(req *http.Request, headers map[string]string) (*http.Response, error) {
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	endpoint := endpointLabel(req.URL)
	if c.logger != nil {
		c.logger.LogHTTPRequest(req)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.metrics.ObserveRequest(endpoint, internal.OutcomeNetworkFail, time.Since(start))
		// cancellation belongs to the caller, hand it back unchanged
		if req.Context().Err() != nil {
			return nil, err
		}
		return nil, internal.NewTeraboxError(0, err.Error(), internal.ErrNetwork).
			WithURL(req.URL.String())
	}

	if c.logger != nil {
		c.logger.LogHTTPResponse(resp)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		c.metrics.ObserveRequest(endpoint, internal.OutcomeOK, time.Since(start))
		return resp, nil
	}

	c.metrics.ObserveRequest(endpoint, internal.OutcomeHTTPError, time.Since(start))
	return nil, statusError(req, resp)
}

// statusError consumes resp and maps its status code onto an error type.
func statusError(req *http.Request, resp *http.Response) error {
	defer resp.Body.Close()
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var tbErr *internal.TeraboxError
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		tbErr = internal.NewTeraboxError(resp.StatusCode, "Authentication required", internal.ErrAuthRequired)
	case resp.StatusCode == http.StatusForbidden:
		tbErr = internal.NewTeraboxError(resp.StatusCode, "Forbidden", internal.ErrAuthRequired)
	case resp.StatusCode == http.StatusNotFound:
		tbErr = internal.NewTeraboxError(resp.StatusCode, "File not found", internal.ErrFileNotFound)
	case resp.StatusCode == http.StatusTooManyRequests:
		tbErr = internal.NewTeraboxError(resp.StatusCode, "Rate limited", internal.ErrRateLimit)
	case resp.StatusCode >= 500:
		tbErr = internal.NewTeraboxError(resp.StatusCode, "Server error", internal.ErrServer)
	default:
		tbErr = internal.NewTeraboxError(resp.StatusCode, fmt.Sprintf("Unexpected HTTP status %s", resp.Status), internal.ErrServer)
	}

	tbErr.WithURL(req.URL.String()).WithContext("endpoint", req.URL.Path)
	if len(snippet) > 0 {
		tbErr.WithContext("body", string(snippet))
	}
	return tbErr
}

// endpointLabel keeps metric cardinality bounded: API paths are labelled by
// path, signed file links all share one label.
func endpointLabel(u *url.URL) string {
	if strings.HasPrefix(u.Path, "/api/") || strings.HasPrefix(u.Path, "/rest/") {
		return u.Path
	}
	return "file"
}
