// Package guard provides HTTP middleware enforcement.
package guard

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Middleware enforces rate limits in front of another handler.
type Middleware struct {
	evaluator EvaluatorService
	logger    Logger
	operation func(*http.Request) string
	now       func() time.Time
}

// NewMiddleware constructs enforcement middleware. operation maps a
// request to a cost-model operation name; nil uses the request method.
func NewMiddleware(evaluator EvaluatorService, logger Logger, operation func(*http.Request) string) *Middleware {
	if operation == nil {
		operation = func(r *http.Request) string { return r.Method }
	}
	return &Middleware{
		evaluator: evaluator,
		logger:    logger,
		operation: operation,
		now:       time.Now,
	}
}

// Wrap returns a handler that evaluates before delegating to next.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m == nil || m.evaluator == nil {
			next.ServeHTTP(w, r)
			return
		}
		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", requestID)

		identity := IdentityFromHeaders(r.Header)
		operation := m.operation(r)
		decision, err := m.evaluator.Evaluate(r.Context(), identity, operation)
		if err != nil || decision == nil {
			// Evaluation errors are validation faults on our side of the
			// fence; the protected handler still gets the request.
			if m.logger != nil && err != nil {
				m.logger.Error("evaluation failed", map[string]any{
					"requestId": requestID,
					"identity":  identity,
					"error":     err.Error(),
				})
			}
			next.ServeHTTP(w, r)
			return
		}

		SetRateLimitHeaders(w.Header(), decision)
		if decision.Allowed {
			next.ServeHTTP(w, r)
			return
		}

		now := m.clock()
		payload := ShapeDenial(decision, now)
		w.Header().Set("Retry-After", strconv.FormatInt(payload.Data.RetryAfter, 10))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(DenialStatus(decision))
		_ = json.NewEncoder(w).Encode(payload)
	})
}

func (m *Middleware) clock() time.Time {
	if m == nil || m.now == nil {
		return time.Now()
	}
	return m.now()
}
