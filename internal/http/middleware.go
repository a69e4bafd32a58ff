package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_cart/pkg/logger"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"
)

const (
	userIDHeader   = "X-User-ID"
	userRoleHeader = "X-User-Role"
	roleAdmin      = "admin"
)

type identityKey struct{}

// Identity is the caller as asserted by the upstream auth proxy.
type Identity struct {
	UserID string
	Admin  bool
}

// IdentityMiddleware reads the caller from headers set by the auth proxy in front of the service.
func IdentityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := Identity{
			UserID: r.Header.Get(userIDHeader),
			Admin:  r.Header.Get(userRoleHeader) == roleAdmin,
		}
		ctx := context.WithValue(r.Context(), identityKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func identityFromContext(ctx context.Context) Identity {
	id, _ := ctx.Value(identityKey{}).(Identity)
	return id
}

func getUserIDFromContext(ctx context.Context) string {
	return identityFromContext(ctx).UserID
}

// RequireUser rejects requests without a caller.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if getUserIDFromContext(r.Context()) == "" {
			respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := identityFromContext(r.Context())
		if id.UserID == "" {
			respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
			return
		}
		if !id.Admin {
			respondError(w, http.StatusForbidden, "forbidden", "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequestLogger hands chi's request id to the logger and logs each request once.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := logger.WithRequestID(r.Context(), middleware.GetReqID(r.Context()))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r.WithContext(ctx))

		logger.FromContext(ctx).WithFields(log.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   ww.Status(),
			"bytes":    ww.BytesWritten(),
			"duration": time.Since(start).String(),
		}).Info("request handled")
	})
}
