package common

import (
	"context"
)

// TenantContext holds the authenticated tenant scope for one request.
// Every storage query that touches ledger or cube tables must carry the
// TenantID resolved from here; omitting it is a cross-tenant leak, not a
// performance bug.
type TenantContext struct {
	TenantID string
	Name     string
	Role     string
}

type contextKey int

const tenantContextKey contextKey = iota

// WithTenantContext stores a TenantContext in the request context.
func WithTenantContext(ctx context.Context, tc *TenantContext) context.Context {
	return context.WithValue(ctx, tenantContextKey, tc)
}

// TenantContextFromContext retrieves the TenantContext, or nil if absent.
func TenantContextFromContext(ctx context.Context) *TenantContext {
	tc, _ := ctx.Value(tenantContextKey).(*TenantContext)
	return tc
}

// ResolveTenantID returns the tenant ID from context, or empty string when
// the request is unauthenticated. Handlers reject empty tenant IDs before
// any service call.
func ResolveTenantID(ctx context.Context) string {
	if tc := TenantContextFromContext(ctx); tc != nil {
		return tc.TenantID
	}
	return ""
}
