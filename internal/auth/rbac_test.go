package auth

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeRole(t *testing.T) {
	require.Equal(t, RoleAdmin, NormalizeRole("admin"))
	require.Equal(t, RoleAdmin, NormalizeRole("  ADMIN "))
	require.Equal(t, RoleUser, NormalizeRole("user"))
	require.Equal(t, RoleUser, NormalizeRole("unknown"))
	require.Equal(t, RoleUser, NormalizeRole(""))
}

func TestCanManage(t *testing.T) {
	owner := &Identity{UserID: "u1", Role: "user"}
	stranger := &Identity{UserID: "u2", Role: "user"}
	admin := &Identity{UserID: "u3", Role: "admin"}

	require.True(t, CanManage(owner, "u1"))
	require.False(t, CanManage(stranger, "u1"))
	require.True(t, CanManage(admin, "u1"))
	require.False(t, CanManage(nil, "u1"))
	require.False(t, CanManage(owner, ""))
}
