package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quillpress/internal/domain"
)

// 测试用低成本参数
func testHasher() *PasswordHasher {
	return &PasswordHasher{Memory: 1024, Time: 1, Threads: 1, SaltLen: 16, KeyLen: 32}
}

func TestPasswordHasher_SaltedRoundTrip(t *testing.T) {
	h := testHasher()
	a, err := h.Hash("correct horse")
	require.NoError(t, err)
	b, err := h.Hash("correct horse")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.True(t, h.Verify("correct horse", a))
	assert.True(t, h.Verify("correct horse", b))
	assert.False(t, h.Verify("wrong horse", a))
}

func TestPasswordHasher_TooLong(t *testing.T) {
	h := testHasher()
	_, err := h.Hash(strings.Repeat("x", MaxPasswordLen+1))
	assert.ErrorIs(t, err, ErrPasswordTooLong)

	_, err = h.Hash(strings.Repeat("x", MaxPasswordLen))
	assert.NoError(t, err)
}

func TestPasswordHasher_MalformedHashIsNoMatch(t *testing.T) {
	h := testHasher()
	for _, bad := range []string{
		"",
		"plaintext",
		"$2a$10$abcdefghijklmnopqrstuv",
		"$argon2id$v=19$m=1024,t=1,p=1$!!notbase64$abc",
		"$argon2id$v=18$m=1024,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=19$m=0,t=1,p=1$c2FsdA$a2V5",
	} {
		assert.False(t, h.Verify("pw", bad), "hash %q", bad)
	}
}

func TestTokenService_RoundTrip(t *testing.T) {
	ts := NewTokenService([]byte("secret"), "quillpress", time.Hour)
	exp := time.Now().Add(10 * time.Minute).Truncate(time.Second)

	tok, err := ts.IssueUntil("user-1", domain.RoleAdmin, exp)
	require.NoError(t, err)

	c, err := ts.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-1", c.UserID())
	assert.Equal(t, domain.RoleAdmin, c.Role)
	assert.True(t, c.ExpiresAt.Time.Equal(exp))
	assert.NotNil(t, c.IssuedAt)
}

func TestTokenService_Expired(t *testing.T) {
	ts := NewTokenService([]byte("secret"), "quillpress", time.Hour)
	tok, err := ts.IssueUntil("user-1", domain.RoleMember, time.Now().Add(-time.Minute))
	require.NoError(t, err)

	_, err = ts.Verify(tok)
	assert.ErrorIs(t, err, domain.ErrExpiredToken)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestTokenService_ExpiresAfterClockAdvance(t *testing.T) {
	ts := NewTokenService([]byte("secret"), "quillpress", time.Minute)
	tok, err := ts.Issue("user-1", domain.RoleMember)
	require.NoError(t, err)

	_, err = ts.Verify(tok)
	require.NoError(t, err)

	ts.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = ts.Verify(tok)
	assert.ErrorIs(t, err, domain.ErrExpiredToken)
}

func TestTokenService_InvalidSignature(t *testing.T) {
	ts := NewTokenService([]byte("secret"), "quillpress", time.Hour)
	other := NewTokenService([]byte("other-secret"), "quillpress", time.Hour)

	tok, err := other.Issue("user-1", domain.RoleSuperAdmin)
	require.NoError(t, err)
	_, err = ts.Verify(tok)
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)

	// 篡改签名段
	good, err := ts.Issue("user-1", domain.RoleMember)
	require.NoError(t, err)
	parts := strings.Split(good, ".")
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	_, err = ts.Verify(parts[0] + "." + parts[1] + "." + string(sig))
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)
}

func TestTokenService_Malformed(t *testing.T) {
	ts := NewTokenService([]byte("secret"), "quillpress", time.Hour)
	for _, bad := range []string{"", "abc", "a.b", "a.b.c", "!!.??.**"} {
		_, err := ts.Verify(bad)
		assert.ErrorIs(t, err, domain.ErrMalformedToken, "token %q", bad)
	}
}

func TestAuthorize_RoleMatrix(t *testing.T) {
	cases := []struct {
		caller, required domain.Role
		want             error
	}{
		{domain.RoleMember, domain.RoleMember, nil},
		{domain.RoleMember, domain.RoleAdmin, domain.ErrForbidden},
		{domain.RoleMember, domain.RoleSuperAdmin, domain.ErrForbidden},
		{domain.RoleAdmin, domain.RoleMember, nil},
		{domain.RoleAdmin, domain.RoleAdmin, nil},
		{domain.RoleAdmin, domain.RoleSuperAdmin, domain.ErrForbidden},
		{domain.RoleSuperAdmin, domain.RoleMember, nil},
		{domain.RoleSuperAdmin, domain.RoleAdmin, nil},
		{domain.RoleSuperAdmin, domain.RoleSuperAdmin, nil},
	}
	for _, tc := range cases {
		err := Authorize(tc.caller, tc.required)
		if tc.want == nil {
			assert.NoError(t, err, "%s -> %s", tc.caller, tc.required)
		} else {
			assert.ErrorIs(t, err, tc.want, "%s -> %s", tc.caller, tc.required)
		}
	}

	for _, r := range domain.Roles {
		assert.ErrorIs(t, Authorize(domain.RoleNone, r), domain.ErrUnauthenticated)
	}
}

func TestCanManage(t *testing.T) {
	assert.True(t, CanManage(domain.RoleAdmin, domain.RoleMember))
	assert.False(t, CanManage(domain.RoleAdmin, domain.RoleAdmin))
	assert.False(t, CanManage(domain.RoleAdmin, domain.RoleSuperAdmin))
	assert.True(t, CanManage(domain.RoleSuperAdmin, domain.RoleSuperAdmin))
	assert.False(t, CanManage(domain.RoleMember, domain.RoleMember))
}
