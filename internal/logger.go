package internal

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel represents different logging levels
type LogLevel int

const (
	LogLevelError LogLevel = iota
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
)

// String returns the string representation of the log level
func (l LogLevel) String() string {
	switch l {
	case LogLevelError:
		return "ERROR"
	case LogLevelWarn:
		return "WARN"
	case LogLevelInfo:
		return "INFO"
	case LogLevelDebug:
		return "DEBUG"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case LogLevelError:
		return zapcore.ErrorLevel
	case LogLevelWarn:
		return zapcore.WarnLevel
	case LogLevelDebug:
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}

// SecureLogger is a leveled zap logger that scrubs session material
// (ndus, browserid, jsToken, sign) from every message before it is written.
type SecureLogger struct {
	logger    *zap.SugaredLogger
	atom      zap.AtomicLevel
	debug     bool
	quiet     bool
	redactors []Redactor
}

// Redactor defines an interface for redacting sensitive information
type Redactor interface {
	Redact(input string) string
}

// CookieRedactor redacts cookie values from strings
type CookieRedactor struct{}

func (r *CookieRedactor) Redact(input string) string {
	patterns := []string{
		"ndus=",
		"browserid=",
		"Cookie:",
		"Set-Cookie:",
		"Authorization:",
		"Bearer ",
	}

	result := input
	for _, pattern := range patterns {
		result = redactAfter(result, pattern, " ;\n\r")
	}
	return result
}

// URLRedactor redacts sensitive URL and form parameters
type URLRedactor struct{}

func (r *URLRedactor) Redact(input string) string {
	sensitiveParams := []string{
		"jstoken=",
		"sign=",
		"access_token=",
		"password=",
	}

	result := input
	for _, param := range sensitiveParams {
		result = redactAfter(result, param, "& \n")
	}
	return result
}

// redactAfter replaces the value following every case-insensitive occurrence
// of pattern, up to the first byte in stops.
func redactAfter(input, pattern, stops string) string {
	const mask = "[REDACTED]"

	lowerPattern := strings.ToLower(pattern)
	result := input
	from := 0
	for from < len(result) {
		index := strings.Index(strings.ToLower(result[from:]), lowerPattern)
		if index == -1 {
			break
		}
		start := from + index + len(pattern)
		end := start
		for end < len(result) && !strings.ContainsRune(stops, rune(result[end])) {
			end++
		}
		if end > start && result[start:end] != mask {
			result = result[:start] + mask + result[end:]
			end = start + len(mask)
		}
		from = end
	}
	return result
}

// NewSecureLogger creates a new secure logger writing console-encoded lines to output
func NewSecureLogger(output io.Writer, level LogLevel, debug, quiet bool) *SecureLogger {
	if quiet {
		level = LogLevelError
	}
	atom := zap.NewAtomicLevelAt(level.zapLevel())

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	encCfg.ConsoleSeparator = " "

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(output), atom)
	return newSecureLogger(core, atom, debug, quiet)
}

func newSecureLogger(core zapcore.Core, atom zap.AtomicLevel, debug, quiet bool) *SecureLogger {
	opts := []zap.Option{}
	if debug {
		// skip log() and the level method so the caller is the user of the logger
		opts = append(opts, zap.AddCaller(), zap.AddCallerSkip(2))
	}

	return &SecureLogger{
		logger: zap.New(core, opts...).Sugar(),
		atom:   atom,
		debug:  debug,
		quiet:  quiet,
		redactors: []Redactor{
			&CookieRedactor{},
			&URLRedactor{},
		},
	}
}

// NewDefaultLogger creates a logger with default settings
func NewDefaultLogger(debug, quiet bool) *SecureLogger {
	level := LogLevelInfo
	if debug {
		level = LogLevelDebug
	}
	if quiet {
		level = LogLevelError
	}

	return NewSecureLogger(os.Stderr, level, debug, quiet)
}

// redactSensitiveData applies all redactors to the input string
func (sl *SecureLogger) redactSensitiveData(input string) string {
	result := input
	for _, redactor := range sl.redactors {
		result = redactor.Redact(result)
	}
	return result
}

func (sl *SecureLogger) log(level LogLevel, format string, args ...interface{}) {
	if !sl.atom.Enabled(level.zapLevel()) {
		return
	}

	message := sl.redactSensitiveData(sprintf(format, args...))
	switch level {
	case LogLevelError:
		sl.logger.Error(message)
	case LogLevelWarn:
		sl.logger.Warn(message)
	case LogLevelInfo:
		sl.logger.Info(message)
	default:
		sl.logger.Debug(message)
	}
}

// Error logs an error message
func (sl *SecureLogger) Error(format string, args ...interface{}) {
	sl.log(LogLevelError, format, args...)
}

// Warn logs a warning message
func (sl *SecureLogger) Warn(format string, args ...interface{}) {
	sl.log(LogLevelWarn, format, args...)
}

// Info logs an info message
func (sl *SecureLogger) Info(format string, args ...interface{}) {
	sl.log(LogLevelInfo, format, args...)
}

// Debug logs a debug message
func (sl *SecureLogger) Debug(format string, args ...interface{}) {
	sl.log(LogLevelDebug, format, args...)
}

// LogHTTPRequest logs an HTTP request with sensitive data redacted
func (sl *SecureLogger) LogHTTPRequest(req *http.Request) {
	if !sl.atom.Enabled(zapcore.DebugLevel) {
		return
	}

	sl.Debug("HTTP Request: %s %s Headers: %v", req.Method, req.URL.String(), sl.sanitizeHeaders(req.Header))
}

// LogHTTPResponse logs an HTTP response with sensitive data redacted
func (sl *SecureLogger) LogHTTPResponse(resp *http.Response) {
	if !sl.atom.Enabled(zapcore.DebugLevel) {
		return
	}

	path := ""
	if resp.Request != nil {
		path = resp.Request.URL.Path
	}
	sl.Debug("HTTP Response: %s %s Headers: %v", path, resp.Status, sl.sanitizeHeaders(resp.Header))
}

func (sl *SecureLogger) sanitizeHeaders(header http.Header) map[string]string {
	sanitized := make(map[string]string, len(header))
	for name, values := range header {
		if sl.isSensitiveHeader(name) {
			sanitized[name] = "[REDACTED]"
		} else {
			sanitized[name] = strings.Join(values, ", ")
		}
	}
	return sanitized
}

// isSensitiveHeader checks if a header contains sensitive information
func (sl *SecureLogger) isSensitiveHeader(name string) bool {
	sensitiveHeaders := []string{
		"authorization",
		"cookie",
		"set-cookie",
		"x-auth-token",
		"token",
	}

	lowerName := strings.ToLower(name)
	for _, sensitive := range sensitiveHeaders {
		if strings.Contains(lowerName, sensitive) {
			return true
		}
	}
	return false
}

// sprintf leaves messages without arguments untouched so that escaped
// paths such as %2F survive.
func sprintf(format string, args ...interface{}) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}

// SetLevel sets the logging level
func (sl *SecureLogger) SetLevel(level LogLevel) {
	if sl.quiet && level > LogLevelError {
		return
	}
	sl.atom.SetLevel(level.zapLevel())
}

// SetQuiet enables or disables quiet mode
func (sl *SecureLogger) SetQuiet(quiet bool) {
	sl.quiet = quiet
	if quiet {
		sl.atom.SetLevel(zapcore.ErrorLevel)
	}
}

// AddRedactor adds a custom redactor
func (sl *SecureLogger) AddRedactor(redactor Redactor) {
	sl.redactors = append(sl.redactors, redactor)
}

// Sync flushes buffered log entries
func (sl *SecureLogger) Sync() error {
	return sl.logger.Sync()
}
