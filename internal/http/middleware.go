package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"pocket/internal/auth"
	"pocket/internal/log"
	"pocket/internal/metrics"
)

type ctxKey string

const (
	userKey         ctxKey = "user_id"
	requestIDHeader        = "X-Request-ID"
)

// userID returns the identity resolved for the request; empty means signed-out.
func userID(ctx context.Context) string {
	id, _ := ctx.Value(userKey).(string)
	return id
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func generateRequestID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(b)
}

// withRequestLogging assigns a request id, stores a request logger in the
// context and logs the completed request.
func (s *Server) withRequestLogging(next http.Handler) http.Handler {
	logged := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		log.FromContext(r.Context()).LogHTTPEnd(r.Context(), r, rw.status, time.Since(start).Milliseconds(), s.detector.ClientIP(r))
	})

	h := log.RequestIDMiddleware(func(r *http.Request) string { return r.Header.Get(requestIDHeader) })(logged)
	h = log.Middleware(s.logger)(h)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" || len(id) > 64 {
			id = generateRequestID()
			r.Header.Set(requestIDHeader, id)
		}
		w.Header().Set(requestIDHeader, id)
		h.ServeHTTP(w, r)
	})
}

// withMetrics records request counts and latency by route template.
func (s *Server) withMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := "unmatched"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		metrics.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(rw.status)).Inc()
		metrics.HTTPLatency.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// withIdentity resolves the optional bearer token into an identity and
// activates it. A present but invalid token is rejected.
func (s *Server) withIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		if header == "" || s.tokens == nil {
			next.ServeHTTP(w, r)
			return
		}
		token, ok := auth.BearerToken(header)
		if !ok {
			writeError(w, http.StatusUnauthorized, "authorization header must be a bearer token")
			return
		}
		user, err := s.tokens.ParseToken(token)
		if err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Rejected bearer token", log.FieldError, err)
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), userKey, user)
		ctx = log.WithLogger(ctx, log.FromContext(ctx).With(log.FieldUserID, user))
		s.ledger.Activate(ctx, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
