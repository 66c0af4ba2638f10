package utils

import (
	"net/url"
	"testing"
)

func TestBaseURL(t *testing.T) {
	tests := []struct {
		host     string
		expected string
	}{
		{"www.terabox.com", "https://www.terabox.com"},
		{"www.terabox.com/", "https://www.terabox.com"},
		{"http://127.0.0.1:8080", "http://127.0.0.1:8080"},
		{"https://c-jp.terabox.com", "https://c-jp.terabox.com"},
	}

	for _, tt := range tests {
		if got := BaseURL(tt.host); got != tt.expected {
			t.Errorf("BaseURL(%q) = %q, want %q", tt.host, got, tt.expected)
		}
	}
}

func TestBuildURL(t *testing.T) {
	query := url.Values{}
	query.Set("app_id", "250528")
	query.Set("web", "1")

	got := BuildURL("www.terabox.com", "/api/quota", query)
	want := "https://www.terabox.com/api/quota?app_id=250528&web=1"
	if got != want {
		t.Errorf("BuildURL() = %q, want %q", got, want)
	}

	if got := BuildURL("www.terabox.com", "/api/list", nil); got != "https://www.terabox.com/api/list" {
		t.Errorf("BuildURL() without query = %q", got)
	}
}

func TestValidateHost(t *testing.T) {
	tests := []struct {
		host    string
		wantErr bool
	}{
		{"www.terabox.com", false},
		{"http://127.0.0.1:4000", false},
		{"", true},
		{"www.terabox.com/api", true},
		{"www.terabox.com?x=1", true},
		{"bad host", true},
	}

	for _, tt := range tests {
		err := ValidateHost("host", tt.host)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateHost(%q) error = %v, wantErr %v", tt.host, err, tt.wantErr)
		}
	}
}

func TestIsKnownHost(t *testing.T) {
	tests := map[string]bool{
		"www.terabox.com":          true,
		"c-jp.terabox.com":         true,
		"https://www.1024tera.com": true,
		"terabox.app":              true,
		"http://127.0.0.1:4000":    false,
		"evilterabox.com":          false,
	}

	for host, want := range tests {
		if got := IsKnownHost(host); got != want {
			t.Errorf("IsKnownHost(%q) = %v, want %v", host, got, want)
		}
	}
}
