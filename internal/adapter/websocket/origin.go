package websocket

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

var extensionSchemes = []string{"chrome-extension://", "moz-extension://"}

// NewCheckOrigin returns the CheckOrigin function for the push endpoint.
// Empty origins (CLI and other non-browser clients), browser extension pages
// and the coordinator's own origin are accepted. Localhost is accepted in
// development.
func NewCheckOrigin(appURL string, isDevelopment bool) func(r *http.Request) bool {
	appOrigin := extractOrigin(appURL)

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || origin == appOrigin {
			return true
		}

		for _, scheme := range extensionSchemes {
			if strings.HasPrefix(origin, scheme) {
				return true
			}
		}

		if isDevelopment && isLocalhostOrigin(origin) {
			return true
		}

		slog.Warn("Push origin rejected", "origin", origin, "remote_addr", r.RemoteAddr)
		return false
	}
}

func extractOrigin(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

func isLocalhostOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()
	return host == "localhost" || host == "127.0.0.1"
}
