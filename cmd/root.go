package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"terabox-go/internal"
	"terabox-go/terabox"
)

// globalOptions holds the persistent flags and the state derived from them
// before a subcommand runs.
type globalOptions struct {
	cookiesPath string
	ndus        string
	host        string
	proxyURL    string
	debug       bool
	quiet       bool
	logLevel    string
	logFile     string
	metrics     bool

	config   *internal.Config
	registry *prometheus.Registry
}

// NewRootCmd builds the terabox command tree.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:     "terabox <command>",
		Short:   "Manage files in a TeraBox account",
		Version: "v1.0.0",
		Long: `terabox is a command line client for the TeraBox web API. It lists,
uploads, downloads, moves, deletes and streams files of the account whose
ndus session cookie it is given.

Examples:
  terabox --ndus <token> quota
  terabox -c cookies.txt ls /videos
  terabox -c cookies.txt upload ./report.pdf /docs/report.pdf
  terabox -c cookies.txt get /docs/report.pdf -o report.pdf

Environment Variables:
  TERABOX_NDUS          Session token (ndus cookie value)
  TERABOX_COOKIES       Path to a Netscape-format cookie file
  TERABOX_JS_TOKEN      jsToken sent with every request
  TERABOX_HOST          API host (default www.terabox.com)
  TERABOX_UPLOAD_HOST   Upload host (default c-jp.terabox.com)
  TERABOX_PROXY         Proxy URL
  TERABOX_TIMEOUT       Timeout in seconds for each API call (transfers are not limited)
  TERABOX_LOG_LEVEL     Log level (debug, info, warn, error)`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.load(); err != nil {
				return fmt.Errorf("configuration error: %w", err)
			}

			if err := internal.InitLogger(opts.config); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}

			internal.LogDebug("Configuration loaded: host=%q, timeout=%d, debug=%v, quiet=%v",
				opts.config.Host, opts.config.DefaultTimeout, opts.config.EnableDebug, opts.config.QuietMode)
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if opts.registry == nil {
				return nil
			}
			return dumpMetrics(cmd.ErrOrStderr(), opts.registry)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.cookiesPath, "cookies", "c", "", "Path to Netscape-format cookie file (env: TERABOX_COOKIES)")
	flags.StringVar(&opts.ndus, "ndus", "", "Session token, overrides the cookie file (env: TERABOX_NDUS)")
	flags.StringVar(&opts.host, "host", "", "API host (env: TERABOX_HOST)")
	flags.StringVar(&opts.proxyURL, "proxy", "", "HTTP/SOCKS proxy URL (env: TERABOX_PROXY)")
	flags.BoolVarP(&opts.debug, "debug", "d", false, "Enable debug logging with file and line information (env: TERABOX_DEBUG)")
	flags.BoolVarP(&opts.quiet, "quiet", "q", false, "Suppress progress bars and informational logs (env: TERABOX_QUIET)")
	flags.StringVar(&opts.logLevel, "log-level", "", "Set log level (debug, info, warn, error) (env: TERABOX_LOG_LEVEL)")
	flags.StringVar(&opts.logFile, "log-file", "", "Write logs to file instead of stderr (env: TERABOX_LOG_FILE)")
	flags.BoolVar(&opts.metrics, "metrics", false, "Print request metrics to stderr after the command")

	rootCmd.AddCommand(
		newQuotaCmd(opts),
		newListCmd(opts),
		newUploadCmd(opts),
		newDownloadCmd(opts),
		newGetCmd(opts),
		newMoveCmd(opts),
		newRemoveCmd(opts),
		newStreamCmd(opts),
	)

	return rootCmd
}

// Execute runs the command tree and cancels in-flight requests on SIGINT or
// SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return NewRootCmd().ExecuteContext(ctx)
}

// load merges defaults, environment and flags, flags winning.
func (o *globalOptions) load() error {
	config := internal.DefaultConfig()
	config.LoadFromEnv()

	overlayStrings([]stringOverride{
		{o.cookiesPath, &config.CookieFile},
		{o.ndus, &config.NDUS},
		{o.host, &config.Host},
		{o.proxyURL, &config.ProxyURL},
		{o.logLevel, &config.LogLevel},
		{o.logFile, &config.LogFile},
	})

	if o.debug {
		config.EnableDebug = true
		config.LogLevel = "debug"
	}
	if o.quiet {
		config.QuietMode = true
	}

	if err := config.ValidateConfig(); err != nil {
		return err
	}

	o.config = config
	if o.metrics {
		o.registry = prometheus.NewRegistry()
	}
	return nil
}

// credentials builds the session bundle: cookie file first, then explicit
// config values on top.
func (o *globalOptions) credentials() (terabox.Credentials, error) {
	var creds terabox.Credentials
	if o.config.CookieFile != "" {
		loaded, err := terabox.LoadCookieFile(o.config.CookieFile)
		if err != nil {
			return creds, err
		}
		creds = loaded
	}

	overlayStrings([]stringOverride{
		{o.config.NDUS, &creds.NDUS},
		{o.config.JSToken, &creds.JSToken},
		{o.config.Host, &creds.Host},
		{o.config.UploadHost, &creds.UploadHost},
		{o.config.Lang, &creds.Lang},
		{o.config.AppID, &creds.AppID},
		{o.config.BrowserID, &creds.BrowserID},
		{o.config.UserAgent, &creds.UserAgent},
	})
	return creds, nil
}

type stringOverride struct {
	value  string
	target *string
}

// overlayStrings copies every non-empty value onto its target.
func overlayStrings(overrides []stringOverride) {
	for _, o := range overrides {
		if o.value != "" {
			*o.target = o.value
		}
	}
}

func (o *globalOptions) newClient() (*terabox.Client, error) {
	creds, err := o.credentials()
	if err != nil {
		return nil, err
	}

	clientOpts := []terabox.Option{
		terabox.WithLogger(internal.GetLogger()),
		terabox.WithProxy(o.config.ProxyURL),
	}
	if o.registry != nil {
		clientOpts = append(clientOpts, terabox.WithMetrics(o.registry))
	}

	client, err := terabox.NewClient(creds, clientOpts...)
	if err != nil {
		if tbErr, ok := internal.AsTeraboxError(err); ok {
			internal.LogTeraboxError(tbErr)
		}
		return nil, err
	}
	return client, nil
}

// apiContext bounds one API call by the configured timeout. Upload transfers
// and download bodies run on the command context and are not bounded.
func (o *globalOptions) apiContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, time.Duration(o.config.DefaultTimeout)*time.Second)
}

func dumpMetrics(w io.Writer, gatherer prometheus.Gatherer) error {
	families, err := gatherer.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}

	for _, family := range families {
		if _, err := expfmt.MetricFamilyToText(w, family); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}
	return nil
}
