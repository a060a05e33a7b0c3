package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("super-secret")
	require.NoError(t, err)

	require.NoError(t, CheckPassword(hash, "super-secret"))
	assert.Error(t, CheckPassword(hash, "wrong"))
}

func TestGeneratePassword(t *testing.T) {
	first, err := GeneratePassword()
	require.NoError(t, err)
	second, err := GeneratePassword()
	require.NoError(t, err)

	assert.Len(t, first, 12)
	assert.NotEqual(t, first, second)
}

func TestGenerateAndParseToken(t *testing.T) {
	secret := "test-secret"
	token, err := GenerateToken(secret, Claims{UserID: "u1", Role: RoleHR}, time.Hour)
	require.NoError(t, err)

	parsed, err := ParseToken(secret, token)
	require.NoError(t, err)
	assert.Equal(t, Principal{UserID: "u1", Role: RoleHR}, parsed.Principal())

	_, err = ParseToken("other-secret", token)
	assert.Error(t, err)
}

func TestParseTokenRejectsUnknownRole(t *testing.T) {
	token, err := GenerateToken("s", Claims{UserID: "u1", Role: Role("manager")}, time.Hour)
	require.NoError(t, err)

	_, err = ParseToken("s", token)
	assert.Error(t, err)
}

func TestParseTokenRejectsExpired(t *testing.T) {
	token, err := GenerateToken("s", Claims{UserID: "u1", Role: RoleEmployee}, -time.Minute)
	require.NoError(t, err)

	_, err = ParseToken("s", token)
	assert.Error(t, err)
}

func TestRolePermissions(t *testing.T) {
	perms := StaticPermissions{}
	cases := []struct {
		role    Role
		perm    string
		allowed bool
	}{
		{RoleEmployee, PermLeaveWrite, true},
		{RoleEmployee, PermLeaveApprove, false},
		{RoleEmployee, PermLeaveAdmin, false},
		{RoleHR, PermLeaveApprove, true},
		{RoleHR, PermEmployeesWrite, true},
		{RoleSuperAdmin, PermLeaveAdmin, true},
		{Role("unknown"), PermLeaveRead, false},
	}
	for _, tc := range cases {
		ok, err := perms.HasPermission(context.Background(), tc.role, tc.perm)
		require.NoError(t, err)
		assert.Equal(t, tc.allowed, ok, "%s %s", tc.role, tc.perm)
	}
}

func TestCanApprove(t *testing.T) {
	assert.True(t, RoleHR.CanApprove())
	assert.True(t, RoleSuperAdmin.CanApprove())
	assert.False(t, RoleEmployee.CanApprove())
}
