package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	goSessionAuth "github.com/MrEthical07/goSessionAuth"
	"github.com/MrEthical07/goSessionAuth/internal/rate"
)

// RateRecorder receives rejected requests; *goSessionAuth.Engine
// implements it.
type RateRecorder interface {
	RecordRateLimit(ctx context.Context, scope string)
}

// RateLimitOptions wires a limiter to one scope ("login", "resend").
type RateLimitOptions struct {
	Scope    string
	Limiter  rate.Limiter
	Recorder RateRecorder
	OnError  ErrorWriter
	Logger   *zap.Logger
}

// RateLimit spends one unit of the client IP's budget per request. When the
// limiter itself fails the request is let through and the failure logged.
func RateLimit(opts RateLimitOptions) func(http.Handler) http.Handler {
	onError := opts.OnError
	if onError == nil {
		onError = writeTooManyRequests
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		if opts.Limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r)
			d, err := opts.Limiter.Allow(r.Context(), opts.Scope+":"+ip)
			if err != nil {
				logger.Warn("rate limiter unavailable",
					zap.String("scope", opts.Scope),
					zap.String("ip", ip),
					zap.Error(err),
				)
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("RateLimit-Limit", strconv.Itoa(d.Limit))
			h.Set("RateLimit-Remaining", strconv.Itoa(d.Remaining))
			if !d.Allowed {
				h.Set("Retry-After", strconv.Itoa(int(math.Ceil(d.RetryAfter.Seconds()))))
				if opts.Recorder != nil {
					opts.Recorder.RecordRateLimit(r.Context(), opts.Scope)
				}
				onError(w, r, goSessionAuth.ErrRateLimited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeTooManyRequests(w http.ResponseWriter, _ *http.Request, _ error) {
	http.Error(w, goSessionAuth.ErrRateLimited.Message, http.StatusTooManyRequests)
}
