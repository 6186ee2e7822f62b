package auth_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrada/entrada/internal/auth"
)

func TestStaticVerifier(t *testing.T) {
	userID := uuid.New()
	adminID := uuid.New()

	v := auth.NewStaticVerifier([]string{
		"t-buyer:" + userID.String() + ":buyer",
		"t-admin:" + adminID.String() + ":staff,admin",
		"malformed-entry",
		"t-bad-uuid:not-a-uuid:buyer",
	})

	id, err := v.Verify(context.Background(), "t-buyer")
	require.NoError(t, err)
	assert.Equal(t, userID, id.UserID)
	assert.True(t, id.HasRole(auth.RoleBuyer))
	assert.False(t, id.HasRole(auth.RoleAdmin))

	id, err = v.Verify(context.Background(), "t-admin")
	require.NoError(t, err)
	assert.True(t, id.HasRole(auth.RoleAdmin))
	assert.True(t, id.HasRole(auth.RoleStaff, auth.RoleAdmin))

	_, err = v.Verify(context.Background(), "unknown")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	_, err = v.Verify(context.Background(), "malformed-entry")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestIdentity_HasRole(t *testing.T) {
	id := auth.Identity{UserID: uuid.New(), Roles: []string{auth.RoleBuyer}}

	assert.True(t, id.HasRole(auth.RoleBuyer))
	assert.True(t, id.HasRole(auth.RoleStaff, auth.RoleBuyer))
	assert.False(t, id.HasRole(auth.RoleStaff, auth.RoleAdmin))
	assert.False(t, id.HasRole())

	var anon auth.Identity
	assert.False(t, anon.HasRole(auth.RoleBuyer))
}
