// Package terabox is a client for the TeraBox web API: quota, listing,
// upload, download links, move, delete and HLS streaming. A Client
// authenticates with a captured ndus session cookie.
package terabox

import (
	"context"
	"encoding/json"
	"io"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"terabox-go/internal"
	"terabox-go/utils"
)

// API endpoints
const (
	endpointQuota       = "/api/quota"
	endpointList        = "/api/list"
	endpointPrecreate   = "/api/precreate"
	endpointCreate      = "/api/create"
	endpointDownload    = "/api/download"
	endpointFileManager = "/api/filemanager"
	endpointStreaming   = "/api/streaming"
	endpointHomeInfo    = "/api/home/info"
	endpointSuperfile2  = "/rest/2.0/pcs/superfile2"
)

// Client talks to a single TeraBox host with a single session. It holds no
// mutable state and is safe for concurrent use.
type Client struct {
	creds  Credentials
	http   *utils.HTTPClient
	logger *internal.SecureLogger
}

type clientOptions struct {
	httpClient *utils.HTTPClient
	registerer prometheus.Registerer
	logger     *internal.SecureLogger
	timeout    time.Duration
	proxyURL   string
}

// Option configures a Client.
type Option func(*clientOptions)

// WithHTTPClient sends every request through c.
func WithHTTPClient(c *utils.HTTPClient) Option {
	return func(o *clientOptions) {
		o.httpClient = c
	}
}

// WithMetrics registers request metrics on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *clientOptions) {
		o.registerer = reg
	}
}

// WithLogger replaces the global logger for this client.
func WithLogger(logger *internal.SecureLogger) Option {
	return func(o *clientOptions) {
		o.logger = logger
	}
}

// WithTimeout bounds every HTTP exchange, bodies included. By default a Client
// has no timeout and requests are bounded only by their context. Ignored with
// WithHTTPClient.
func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) {
		o.timeout = d
	}
}

// WithProxy routes traffic through an http, https or socks5 proxy. Ignored
// with WithHTTPClient.
func WithProxy(proxyURL string) Option {
	return func(o *clientOptions) {
		o.proxyURL = proxyURL
	}
}

// NewClient validates creds, applies defaults and returns a ready Client.
// It performs no network I/O.
func NewClient(creds Credentials, opts ...Option) (*Client, error) {
	creds = creds.withDefaults()
	if err := creds.validate(); err != nil {
		return nil, err
	}

	o := &clientOptions{}
	for _, opt := range opts {
		opt(o)
	}

	logger := o.logger
	if logger == nil {
		logger = internal.GetLogger()
	}
	for _, host := range []string{creds.Host, creds.UploadHost} {
		if !utils.IsKnownHost(host) {
			logger.Warn("Host %s is not a known TeraBox domain", host)
		}
	}

	var metrics *internal.Metrics
	if o.registerer != nil {
		m, err := internal.NewMetrics(o.registerer)
		if err != nil {
			return nil, internal.NewConfigurationError("metrics", err.Error())
		}
		metrics = m
	}

	httpClient := o.httpClient
	if httpClient == nil {
		c, err := utils.NewHTTPClientWithConfig(&utils.HTTPClientConfig{
			Timeout:   o.timeout,
			ProxyURL:  o.proxyURL,
			UserAgent: creds.UserAgent,
			Logger:    logger,
			Metrics:   metrics,
		})
		if err != nil {
			return nil, err
		}
		httpClient = c
	} else if metrics != nil {
		httpClient = httpClient.WithMetrics(metrics)
	}

	return &Client{
		creds:  creds,
		http:   httpClient,
		logger: logger,
	}, nil
}

// Credentials returns the defaulted credential bundle.
func (c *Client) Credentials() Credentials {
	return c.creds
}

// envelope is the status wrapper every JSON response carries.
type envelope struct {
	Errno  int    `json:"errno"`
	Errmsg string `json:"errmsg"`
}

func (c *Client) commonQuery() url.Values {
	query := url.Values{}
	query.Set("app_id", c.creds.AppID)
	query.Set("web", "1")
	query.Set("channel", "dubox")
	query.Set("clienttype", "0")
	query.Set("jsToken", c.creds.JSToken)
	return query
}

func (c *Client) headers() map[string]string {
	return map[string]string{
		"Cookie":     c.creds.Cookie(),
		"User-Agent": c.creds.UserAgent,
		"Referer":    utils.BaseURL(c.creds.Host) + "/",
	}
}

// post sends form to endpoint on the API host and returns the raw body.
func (c *Client) post(ctx context.Context, endpoint string, extra url.Values, form url.Values) ([]byte, error) {
	query := c.commonQuery()
	for key, values := range extra {
		query[key] = values
	}

	resp, err := c.http.PostForm(ctx, utils.BuildURL(c.creds.Host, endpoint, query), form, c.headers())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, internal.NewTeraboxError(0, "failed to read response: "+err.Error(), internal.ErrNetwork).
			WithContext("endpoint", endpoint)
	}
	return body, nil
}

// call posts form and decodes a successful envelope into out, which may be nil.
func (c *Client) call(ctx context.Context, endpoint string, extra url.Values, form url.Values, out interface{}) error {
	body, err := c.post(ctx, endpoint, extra, form)
	if err != nil {
		return err
	}
	return decodeEnvelope(endpoint, body, out)
}

func decodeEnvelope(endpoint string, body []byte, out interface{}) error {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return internal.NewProtocolError(endpoint, "invalid JSON response: "+err.Error())
	}
	if env.Errno != 0 {
		return internal.NewAPIError(env.Errno, env.Errmsg).WithContext("endpoint", endpoint)
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return internal.NewProtocolError(endpoint, "unexpected response shape: "+err.Error())
		}
	}
	return nil
}

// Quota is the account storage usage in bytes.
type Quota struct {
	Used  int64
	Total int64
	Free  int64
}

// Quota returns the storage usage of the account.
func (c *Client) Quota(ctx context.Context) (*Quota, error) {
	var resp struct {
		Total int64 `json:"total"`
		Used  int64 `json:"used"`
	}
	form := url.Values{"checkfree": {"1"}}
	if err := c.call(ctx, endpointQuota, nil, form, &resp); err != nil {
		return nil, err
	}

	return &Quota{
		Used:  resp.Used,
		Total: resp.Total,
		Free:  resp.Total - resp.Used,
	}, nil
}

// List returns the entries of dir in the order the server sent them.
// An empty dir lists the root.
func (c *Client) List(ctx context.Context, dir string) ([]*Entry, error) {
	dir = utils.CleanRemotePath(dir)

	var resp struct {
		List []rawEntry `json:"list"`
	}
	if err := c.call(ctx, endpointList, nil, url.Values{"dir": {dir}}, &resp); err != nil {
		return nil, err
	}

	entries := make([]*Entry, 0, len(resp.List))
	for i := range resp.List {
		entries = append(entries, newEntry(c, &resp.List[i]))
	}

	c.logger.Debug("Listed %d entries in %s", len(entries), dir)
	return entries, nil
}

// Stat returns the entry at remotePath by listing its parent directory.
func (c *Client) Stat(ctx context.Context, remotePath string) (*Entry, error) {
	target, err := Path(remotePath).remotePath()
	if err != nil {
		return nil, err
	}

	parent, name := utils.SplitRemotePath(target)
	entries, err := c.List(ctx, parent)
	if err != nil {
		return nil, err
	}

	for _, entry := range entries {
		if entry.Name == name {
			return entry, nil
		}
	}
	return nil, internal.NewTeraboxError(0, "no such file: "+target, internal.ErrFileNotFound).
		WithContext("path", target)
}
