package terabox

import (
	"bufio"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"terabox-go/internal"
)

// httpOnlyPrefix marks HttpOnly cookies in curl and browser exports.
const httpOnlyPrefix = "#HttpOnly_"

// LoadCookieFile reads a Netscape cookie export and returns Credentials
// holding its ndus, browserid and lang values. Other fields are left empty
// for NewClient to default.
func LoadCookieFile(path string) (Credentials, error) {
	file, err := os.Open(path)
	if err != nil {
		return Credentials{}, internal.NewValidationErrorWithValue("cookies_file", "failed to open cookie file", path).
			WithContext("error", err.Error())
	}
	defer file.Close()

	cookies := make(map[string]*http.Cookie)
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		line = strings.TrimPrefix(line, httpOnlyPrefix)

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		cookie, err := parseNetscapeCookieLine(line)
		if err != nil {
			return Credentials{}, internal.NewValidationErrorWithValue("cookies_file", "invalid cookie line", path).
				WithContext("line", lineNum).
				WithContext("error", err.Error())
		}
		cookies[cookie.Name] = cookie
	}

	if err := scanner.Err(); err != nil {
		return Credentials{}, internal.NewValidationErrorWithValue("cookies_file", "error reading cookie file", path).
			WithContext("error", err.Error())
	}

	ndus, ok := cookies["ndus"]
	if !ok || ndus.Value == "" {
		return Credentials{}, internal.NewValidationErrorWithValue("cookies_file", "ndus cookie not found", path).
			WithSuggestion("Export cookies from a browser session logged in to TeraBox")
	}
	if !ndus.Expires.IsZero() && time.Now().After(ndus.Expires) {
		return Credentials{}, internal.NewValidationErrorWithValue("cookies_file", "ndus cookie has expired", path).
			WithContext("expired_at", ndus.Expires.Format(time.RFC3339)).
			WithSuggestion("Log in again and export fresh cookies")
	}

	creds := Credentials{NDUS: ndus.Value}
	if c, ok := cookies["browserid"]; ok {
		creds.BrowserID = c.Value
	}
	if c, ok := cookies["lang"]; ok {
		creds.Lang = c.Value
	}
	return creds, nil
}

// parseNetscapeCookieLine parses a single line from Netscape cookie format
// Format: domain	flag	path	secure	expiration	name	value
func parseNetscapeCookieLine(line string) (*http.Cookie, error) {
	fields := strings.Split(line, "\t")
	if len(fields) != 7 {
		return nil, fmt.Errorf("expected 7 fields, got %d", len(fields))
	}

	var expires time.Time
	if fields[4] != "0" {
		timestamp, err := strconv.ParseInt(fields[4], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid expiration timestamp: %w", err)
		}
		expires = time.Unix(timestamp, 0)
	}

	return &http.Cookie{
		Name:    fields[5],
		Value:   fields[6],
		Domain:  fields[0],
		Path:    fields[2],
		Expires: expires,
		Secure:  fields[3] == "TRUE",
	}, nil
}
