package shared

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIdentityFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := IdentityFromRequest(req)
	require.ErrorIs(t, err, ErrUnauthorized)

	req.Header.Set(TenantHeader, "abc")
	_, err = IdentityFromRequest(req)
	require.ErrorIs(t, err, ErrUnauthorized)

	req.Header.Set(TenantHeader, " 7 ")
	id, err := IdentityFromRequest(req)
	require.NoError(t, err)
	require.Equal(t, int64(7), id.TenantID)
	require.Nil(t, id.ActorID)
	require.Empty(t, id.Actor())

	req.Header.Set(ActorHeader, "42")
	id, err = IdentityFromRequest(req)
	require.NoError(t, err)
	require.Equal(t, "42", id.Actor())

	ctx := ContextWithIdentity(context.Background(), id)
	got, ok := IdentityFromContext(ctx)
	require.True(t, ok)
	require.Equal(t, id, got)

	_, ok = IdentityFromContext(context.Background())
	require.False(t, ok)
}
