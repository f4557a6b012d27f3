package api

import (
	"net/http"
	"strings"
	"time"
)

// clientETag extracts the first validator from an If-None-Match header.
// Multi-tag lists are accepted but only the first entry is compared,
// matching the single-timer polling contract.
func clientETag(header string) string {
	if header == "" {
		return ""
	}
	for _, token := range strings.Split(header, ",") {
		if token = strings.TrimSpace(token); token != "" {
			return token
		}
	}
	return ""
}

// parseHTTPDate parses an If-Modified-Since value. Unparsable values are
// ignored per RFC 9110.
func parseHTTPDate(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	t, err := http.ParseTime(value)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// formatHTTPDate renders a timestamp for Last-Modified headers.
func formatHTTPDate(t time.Time) string {
	return t.UTC().Format(http.TimeFormat)
}
