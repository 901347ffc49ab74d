package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/httprate"
)

const senderPeekBytes = 8 << 10

// SenderRateLimit limits inbound messages per (channel, user_id) taken from
// the JSON body, falling back to the client IP when the body has no sender.
func SenderRateLimit(requestLimit int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		requestLimit,
		window,
		httprate.WithKeyFuncs(senderKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		}),
	)
}

// senderKey peeks at the request body and restores it for the next handler.
func senderKey(r *http.Request) (string, error) {
	if r.Body != nil && r.Body != http.NoBody {
		head, err := io.ReadAll(io.LimitReader(r.Body, senderPeekBytes))
		if err != nil {
			return "", err
		}
		r.Body = struct {
			io.Reader
			io.Closer
		}{io.MultiReader(bytes.NewReader(head), r.Body), r.Body}

		var sender struct {
			Channel string `json:"channel"`
			UserID  string `json:"user_id"`
		}
		if json.Unmarshal(head, &sender) == nil && strings.TrimSpace(sender.UserID) != "" {
			return "sender:" + strings.ToLower(strings.TrimSpace(sender.Channel)) + ":" + strings.TrimSpace(sender.UserID), nil
		}
	}
	return "ip:" + clientIP(r), nil
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
