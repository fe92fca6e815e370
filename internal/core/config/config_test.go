package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestRead_DefaultsAndOverrides(t *testing.T) {
	p := writeYAML(t, `
jwt:
  secret: s3cret
  accessTokenTTLMin: 15
db:
  driver: memory
comments:
  autoApprove: true
`)
	c, err := Read(p)
	require.NoError(t, err)

	assert.Equal(t, "s3cret", c.JWT.Secret)
	assert.Equal(t, 15*time.Minute, c.JWT.TTL())
	assert.True(t, c.Comments.AutoApprove)
	assert.Equal(t, 8080, c.App.HTTP.Port)
	assert.Equal(t, 200, c.Content.ExcerptLength)
	assert.Equal(t, int64(5<<20), c.Upload.MaxFileBytes)
	assert.Equal(t, 5, c.Upload.MaxFiles)
	assert.Equal(t, 3*time.Second, c.Store.OpTimeout())
	assert.False(t, c.Redis.Enabled())
}

func TestRead_EnvOverride(t *testing.T) {
	p := writeYAML(t, "db:\n  driver: memory\n")
	t.Setenv("APP_JWT_SECRET", "from-env")

	c, err := Read(p)
	require.NoError(t, err)
	assert.Equal(t, "from-env", c.JWT.Secret)
}

func TestRead_Invalid(t *testing.T) {
	_, err := Read(writeYAML(t, "db:\n  driver: memory\n"))
	assert.ErrorContains(t, err, "jwt.secret")

	_, err = Read(writeYAML(t, "jwt:\n  secret: x\ndb:\n  driver: postgres\n"))
	assert.ErrorContains(t, err, "db.dsn")

	_, err = Read(writeYAML(t, "jwt:\n  secret: x\ndb:\n  driver: sqlite\n"))
	assert.ErrorContains(t, err, "unsupported")

	_, err = Read(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
