package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mianhamzaathar/AIFORGE/api/responses"
	pkgerrors "github.com/mianhamzaathar/AIFORGE/pkg/errors"
	"github.com/mianhamzaathar/AIFORGE/pkg/logger"
)

type rateLimiterStore interface {
	IncrWithTTL(context.Context, string, time.Duration) (int64, error)
}

// RateLimitPolicy is a fixed-window limit applied to one traffic surface.
// Zero limits disable the matching counter.
type RateLimitPolicy struct {
	name         string
	window       time.Duration
	ipLimit      int
	emailLimit   int
	accountLimit int
}

// NewRegisterRateLimitPolicy limits account registration per client IP and per email.
func NewRegisterRateLimitPolicy(window time.Duration, ipLimit, emailLimit int) RateLimitPolicy {
	return RateLimitPolicy{name: "register", window: window, ipLimit: ipLimit, emailLimit: emailLimit}
}

// NewAccountRateLimitPolicy limits an authenticated account on the named surface.
func NewAccountRateLimitPolicy(name string, window time.Duration, accountLimit int) RateLimitPolicy {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = "api"
	}
	return RateLimitPolicy{name: name, window: window, accountLimit: accountLimit}
}

// subject resolves the value a counter is keyed by; "" skips the counter.
type subject func(r *http.Request) (string, error)

type counter struct {
	scope   string
	limit   int
	subject subject
}

func (p RateLimitPolicy) counters() []counter {
	all := []counter{
		{scope: "account", limit: p.accountLimit, subject: accountSubject},
		{scope: "ip", limit: p.ipLimit, subject: func(r *http.Request) (string, error) { return clientIP(r), nil }},
		{scope: "email", limit: p.emailLimit, subject: emailSubject},
	}
	enabled := all[:0]
	for _, c := range all {
		if c.limit > 0 {
			enabled = append(enabled, c)
		}
	}
	return enabled
}

func (p RateLimitPolicy) key(scope, value string) string {
	return "rl:" + p.name + ":" + scope + ":" + value
}

// RateLimit counts each enabled subject of the request in a fixed window and
// rejects with 429 once any of them passes its limit.
func RateLimit(policy RateLimitPolicy, store rateLimiterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	counters := policy.counters()
	return func(next http.Handler) http.Handler {
		if policy.window <= 0 || len(counters) == 0 || store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			for _, c := range counters {
				value, err := c.subject(r)
				if err != nil {
					responses.WriteError(ctx, logg, w, err)
					return
				}
				if value == "" {
					continue
				}
				count, err := store.IncrWithTTL(ctx, policy.key(c.scope, value), policy.window)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
					return
				}
				if count > int64(c.limit) {
					rejectRateLimited(ctx, logg, w, policy, c, count)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func rejectRateLimited(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, policy RateLimitPolicy, c counter, count int64) {
	if logg != nil {
		logg.Warn(logg.WithFields(ctx, map[string]any{
			"policy":   policy.name,
			"scope":    c.scope,
			"attempts": count,
			"limit":    c.limit,
		}), "rate_limit.blocked")
	}
	w.Header().Set("Retry-After", strconv.Itoa(int(policy.window.Seconds())))
	responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
}

func accountSubject(r *http.Request) (string, error) {
	if id := AccountIDFromContext(r.Context()); id != uuid.Nil {
		return id.String(), nil
	}
	return "", nil
}

// emailSubject hashes the normalized email of a JSON body and restores the body.
func emailSubject(r *http.Request) (string, error) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body")
	}
	r.Body = io.NopCloser(bytes.NewReader(raw))

	var body struct {
		Email string `json:"email"`
	}
	if json.Unmarshal(raw, &body) != nil {
		return "", nil
	}
	email := strings.ToLower(strings.TrimSpace(body.Email))
	if email == "" {
		return "", nil
	}
	sum := sha256.Sum256([]byte(email))
	return hex.EncodeToString(sum[:]), nil
}

// clientIP prefers the first X-Forwarded-For hop set by the load balancer.
func clientIP(r *http.Request) string {
	if first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ","); strings.TrimSpace(first) != "" {
		return strings.TrimSpace(first)
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
