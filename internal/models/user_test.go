package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasRole(t *testing.T) {
	user := &User{Roles: RoleSet{"account": {}}}

	assert.True(t, user.HasRole("account"))
	assert.True(t, user.HasRole("account", "admin"))
	assert.False(t, user.HasRole("admin"))
	assert.False(t, (&User{}).HasRole("account"))
}

func TestInAdminGroup(t *testing.T) {
	user := &User{Roles: RoleSet{
		"admin": {Groups: map[string]string{"root": "Root"}},
	}}

	assert.True(t, user.InAdminGroup("root"))
	assert.False(t, user.InAdminGroup("sales"))
	assert.False(t, (&User{Roles: RoleSet{"account": {}}}).InAdminGroup("root"))
}

func TestProjectNeverExposesPasswordHash(t *testing.T) {
	user := &User{
		ID:           "u1",
		Username:     "muddy",
		Email:        "mrmud@mudmail.mud",
		PasswordHash: "$2a$10$secret",
		IsActive:     true,
	}

	got := user.Project("username", "email", "passwordHash", "password_hash")
	assert.Equal(t, map[string]interface{}{
		"username": "muddy",
		"email":    "mrmud@mudmail.mud",
	}, got)
}

func TestRoleSetScan(t *testing.T) {
	var roles RoleSet
	require.NoError(t, roles.Scan([]byte(`{"admin":{"groups":{"root":"Root"}}}`)))
	assert.Contains(t, roles, "admin")
	assert.Equal(t, "Root", roles["admin"].Groups["root"])

	var empty RoleSet
	require.NoError(t, empty.Scan(nil))
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestNewUserPageMetadata(t *testing.T) {
	page := NewUserPage(make([]User, 20), 45, 20, 2)

	assert.Equal(t, 2, page.Pages.Current)
	assert.True(t, page.Pages.HasPrev)
	assert.True(t, page.Pages.HasNext)
	assert.Equal(t, 3, page.Pages.Total)

	assert.Equal(t, 21, page.Items.Begin)
	assert.Equal(t, 40, page.Items.End)
	assert.Equal(t, 45, page.Items.Total)
}

func TestNewUserPageLastPage(t *testing.T) {
	page := NewUserPage(make([]User, 5), 45, 20, 3)

	assert.True(t, page.Pages.HasPrev)
	assert.False(t, page.Pages.HasNext)
	assert.Equal(t, 41, page.Items.Begin)
	assert.Equal(t, 45, page.Items.End)
}

func TestNewUserPageEmptyResult(t *testing.T) {
	page := NewUserPage(nil, 0, 20, 1)

	assert.False(t, page.Pages.HasPrev)
	assert.False(t, page.Pages.HasNext)
	assert.Equal(t, 0, page.Pages.Total)
	assert.Equal(t, 0, page.Items.End)
}
