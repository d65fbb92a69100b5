package shared

import (
	"context"
	"net/http"
	"strconv"
	"strings"
)

const (
	// TenantHeader carries the caller's tenant id.
	TenantHeader = "X-Tenant-ID"
	// ActorHeader optionally carries the acting user id.
	ActorHeader = "X-Actor-ID"
)

// Identity is the caller resolved for one request.
type Identity struct {
	TenantID int64
	ActorID  *int64
}

// Actor renders the actor id for created_by/updated_by columns.
func (i Identity) Actor() string {
	if i.ActorID == nil {
		return ""
	}
	return strconv.FormatInt(*i.ActorID, 10)
}

type identityContextKey struct{}

// ContextWithIdentity stores the identity in context.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext extracts the identity from context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(Identity)
	return id, ok && id.TenantID > 0
}

// IdentityFromRequest parses the tenant and actor headers.
func IdentityFromRequest(r *http.Request) (Identity, error) {
	raw := strings.TrimSpace(r.Header.Get(TenantHeader))
	tenantID, err := strconv.ParseInt(raw, 10, 64)
	if raw == "" || err != nil || tenantID <= 0 {
		return Identity{}, ErrUnauthorized
	}
	id := Identity{TenantID: tenantID}
	if rawActor := strings.TrimSpace(r.Header.Get(ActorHeader)); rawActor != "" {
		actor, err := strconv.ParseInt(rawActor, 10, 64)
		if err != nil || actor <= 0 {
			return Identity{}, ErrUnauthorized
		}
		id.ActorID = &actor
	}
	return id, nil
}
