/*
middleware.go - Request parameters, authentication and response hygiene

PURPOSE:
  Everything that runs before a handler body:
  - params:          form or JSON body (plus query string) decoded once
  - authenticate:    rate limit, token or credentials, one portal login
  - requireAdmin:    bcrypt admin check for the data dump
  - securityHeaders: fixed hardening headers on every response
  - requestID / requestLogger: tracing and structured access logs

AUTHENTICATION FLOW:
  1. Client (remote IP) limited?       -> 429 with retry_after
  2. token present?                    -> must verify and be the stored token
     otherwise username + password     -> both required
  3. Portal login, exactly once        -> session handed to the handler
  4. Portal rejects the credentials    -> attempt recorded, stored token
                                          invalidated, 401

SEE ALSO:
  - handlers.go: reads identityFrom(ctx) and paramsFrom(ctx)
  - auth package: tokens and rate limiter
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"mime"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/quelio/engine/auth"
	"github.com/quelio/engine/kelio"
)

type ctxKey int

const (
	paramsKey ctxKey = iota
	identityKey
)

// =============================================================================
// REQUEST PARAMETERS
// =============================================================================

// params are the merged request parameters. Values are strings, or
// json.Number and other JSON values for JSON bodies.
type params map[string]any

// maxBodyBytes bounds request bodies; every request here is a small form.
const maxBodyBytes = 1 << 20

// decodeParams reads the query string and then the body, body values
// taking precedence.
func decodeParams(r *http.Request) (params, error) {
	p := params{}
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			p[key] = values[0]
		}
	}
	if r.Body == nil || r.Method == http.MethodGet {
		return p, nil
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
		dec.UseNumber()
		var body map[string]any
		if err := dec.Decode(&body); err != nil {
			return nil, fmt.Errorf("invalid JSON body: %w", err)
		}
		for key, value := range body {
			p[key] = value
		}
		return p, nil
	}

	r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("invalid form body: %w", err)
	}
	for key, values := range r.PostForm {
		if len(values) > 0 {
			p[key] = values[0]
		}
	}
	return p, nil
}

// String returns the parameter as a string, or "" when it is absent or not
// a scalar.
func (p params) String(key string) string {
	switch v := p[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		if v {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}

// Has reports whether key was sent at all.
func (p params) Has(key string) bool {
	_, ok := p[key]
	return ok
}

func withParams(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := decodeParams(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), paramsKey, p)))
	})
}

func paramsFrom(ctx context.Context) params {
	if p, ok := ctx.Value(paramsKey).(params); ok {
		return p
	}
	return params{}
}

// =============================================================================
// AUTHENTICATION
// =============================================================================

const (
	methodToken       = "token"
	methodCredentials = "credentials"
)

// identity is the authenticated caller of a request.
type identity struct {
	Username          string
	Password          string
	Token             string // set only for token authentication
	AuthenticatedWith string
	Session           kelio.Session
}

func identityFrom(ctx context.Context) (identity, bool) {
	id, ok := ctx.Value(identityKey).(identity)
	return id, ok
}

// clientKey identifies the caller for rate limiting. RealIP has already
// rewritten RemoteAddr when a proxy header is present.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if host == "" {
		return "unknown"
	}
	return host
}

func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		client := clientKey(r)

		limited, err := h.Limiter.Limited(ctx, client)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to check login attempts", err)
			return
		}
		if limited {
			h.rateLimited(w, r, client)
			return
		}

		p := paramsFrom(ctx)
		var id identity
		if token := p.String("token"); token != "" {
			creds, err := h.authenticator().Validate(ctx, token)
			if errors.Is(err, auth.ErrInvalidToken) {
				writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "Invalid or expired token", Code: "invalid_token"})
				return
			}
			if err != nil {
				writeError(w, http.StatusInternalServerError, "Failed to validate token", err)
				return
			}
			id = identity{Username: creds.Username, Password: creds.Password, Token: token, AuthenticatedWith: methodToken}
		} else {
			username := strings.TrimSpace(p.String("username"))
			password := p.String("password")
			if username == "" || password == "" {
				writeJSON(w, http.StatusUnauthorized, ErrorResponse{
					Error: "Authentication required: provide either a valid token or username/password",
					Code:  "unauthenticated",
				})
				return
			}
			id = identity{Username: username, Password: password, AuthenticatedWith: methodCredentials}
		}

		session, err := h.Portal.Login(ctx, id.Username, id.Password)
		if err != nil {
			if errors.Is(err, kelio.ErrLoginFailed) {
				h.loginRejected(w, r, client, id, err)
				return
			}
			h.logger().Warn("portal unreachable during login", "user", id.Username, "err", err)
			writeError(w, http.StatusBadGateway, "Failed to reach the time-tracking portal", err)
			return
		}

		if err := h.Limiter.Reset(ctx, client); err != nil {
			h.logger().Warn("failed to reset login attempts", "client", client, "err", err)
		}
		id.Session = session
		next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, identityKey, id)))
	})
}

func (h *Handler) rateLimited(w http.ResponseWriter, r *http.Request, client string) {
	retry, err := h.Limiter.RetryAfter(r.Context(), client)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to check login attempts", err)
		return
	}
	seconds := int(math.Ceil(retry.Seconds()))
	minutes := int(math.Ceil(float64(seconds) / 60))
	w.Header().Set("Retry-After", fmt.Sprint(seconds))
	writeJSON(w, http.StatusTooManyRequests, ErrorResponse{
		Error:             fmt.Sprintf("Too many login attempts. Please try again in %d minutes.", minutes),
		Code:              "rate_limited",
		RetryAfter:        seconds,
		RetryAfterMinutes: minutes,
	})
}

// loginRejected handles credentials the portal refused: the attempt counts
// against the client and whatever token the user holds stops working.
func (h *Handler) loginRejected(w http.ResponseWriter, r *http.Request, client string, id identity, cause error) {
	ctx := r.Context()
	if err := h.Limiter.Record(ctx, client); err != nil {
		h.logger().Error("failed to record login attempt", "client", client, "err", err)
	}
	if err := h.Users.InvalidateToken(ctx, id.Username); err != nil {
		h.logger().Error("failed to invalidate token", "user", id.Username, "err", err)
	}

	remaining, err := h.Limiter.Remaining(ctx, client)
	if err != nil {
		remaining = 0
	}
	msg := "Invalid username or password: " + cause.Error()
	if remaining > 0 {
		msg += fmt.Sprintf(" (%d attempts remaining)", remaining)
	}
	h.logger().Info("portal login rejected", "user", id.Username, "client", client, "remaining", remaining)
	writeJSON(w, http.StatusUnauthorized, ErrorResponse{
		Error:             msg,
		Code:              "login_failed",
		RemainingAttempts: &remaining,
		TokenInvalidated:  true,
	})
}

func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := paramsFrom(r.Context())
		if !auth.CheckAdmin(h.AdminUsername, h.AdminPasswordHash, p.String("username"), p.String("password")) {
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "Invalid username or password", Code: "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// RESPONSE HYGIENE
// =============================================================================

var securityHeaderValues = map[string]string{
	"X-Content-Type-Options": "nosniff",
	"X-Frame-Options":        "DENY",
	"X-XSS-Protection":       "1; mode=block",
	"Referrer-Policy":        "strict-origin-when-cross-origin",
	"Permissions-Policy":     "geolocation=(), microphone=(), camera=()",
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for name, value := range securityHeaderValues {
			w.Header().Set(name, value)
		}
		next.ServeHTTP(w, r)
	})
}

// requestID keeps an incoming X-Request-ID or mints a UUID, and echoes it.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(middleware.RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(middleware.RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), middleware.RequestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestLogger(l *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				l.Info("request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration", time.Since(start),
					"request_id", middleware.GetReqID(r.Context()),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
