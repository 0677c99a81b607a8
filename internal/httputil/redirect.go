package httputil

import (
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/redmonkez12/bookshelf/internal/apperr"
	"github.com/redmonkez12/bookshelf/internal/logging"
)

// MessageParam is the query parameter carrying a flash message
const MessageParam = "message"

// WithMessage appends message to path as a URL-encoded query parameter
func WithMessage(path, message string) string {
	if message == "" {
		return path
	}

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}

	return path + sep + MessageParam + "=" + url.QueryEscape(message)
}

// Redirect answers 303 See Other to path, carrying message when set
func Redirect(w http.ResponseWriter, r *http.Request, path, message string) {
	http.Redirect(w, r, WithMessage(path, message), http.StatusSeeOther)
}

// Flash returns the message carried by the request, if any
func Flash(r *http.Request) string {
	return r.URL.Query().Get(MessageParam)
}

// Fail redirects to path with the message of an expected error. Anything
// else is logged and answered with a 500.
func Fail(w http.ResponseWriter, r *http.Request, path string, err error) {
	logger := logging.GetLoggerFromContext(r.Context())

	if msg, ok := apperr.Message(err); ok {
		logger.Warn("request rejected", "kind", apperr.KindOf(err).String(), "reason", msg)
		Redirect(w, r, path, msg)
		return
	}

	logger.Error("request failed", "error", err)
	ServerError(w)
}

// ClientIP returns the host part of RemoteAddr, which chi's RealIP
// middleware has already resolved from proxy headers
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
