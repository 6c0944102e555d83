package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/venla/onboard-gateway/internal/api/response"
)

type contextKey string

const (
	// AuthTokenKey holds the caller's bearer credential. The gateway
	// forwards it verbatim; validating the token is the upstream's
	// job.
	AuthTokenKey contextKey = "auth_token"
	// TenantIDKey holds the x-tenant-id header value.
	TenantIDKey contextKey = "tenant_id"
)

// HeaderTenantID is the tenant scoping header on inbound requests.
const HeaderTenantID = "x-tenant-id"

// RequireTenantAuth rejects requests without an Authorization header
// (401) or an x-tenant-id header (400) before any handler runs, and
// puts both values into the request context.
func RequireTenantAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := BearerToken(r)
		if token == "" {
			response.WriteError(w, http.StatusUnauthorized, "missing authorization header")
			return
		}

		tenantID := r.Header.Get(HeaderTenantID)
		if tenantID == "" {
			response.WriteError(w, http.StatusBadRequest, "missing x-tenant-id header")
			return
		}

		ctx := context.WithValue(r.Context(), AuthTokenKey, token)
		ctx = context.WithValue(ctx, TenantIDKey, tenantID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// BearerToken extracts the credential from the Authorization header,
// tolerating a missing Bearer prefix.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

// AuthToken returns the credential stored by RequireTenantAuth.
func AuthToken(ctx context.Context) string {
	if v, ok := ctx.Value(AuthTokenKey).(string); ok {
		return v
	}
	return ""
}

// TenantID returns the tenant stored by RequireTenantAuth.
func TenantID(ctx context.Context) string {
	if v, ok := ctx.Value(TenantIDKey).(string); ok {
		return v
	}
	return ""
}
