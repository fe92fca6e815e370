package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeMySQLDSN(t *testing.T) {
	cases := []struct {
		name, in, user, pass, want string
	}{
		{"native dsn untouched", "root:pw@tcp(127.0.0.1:3306)/blog?parseTime=true", "", "", "root:pw@tcp(127.0.0.1:3306)/blog?parseTime=true"},
		{"empty", "  ", "", "", ""},
		{"jdbc url", "jdbc:mysql://127.0.0.1:3306/blog?useSSL=false&serverTimezone=UTC", "root", "pw",
			"root:pw@tcp(127.0.0.1:3306)/blog?charset=utf8mb4&loc=UTC&parseTime=true&tls=false"},
		{"url credentials", "mysql://app:secret@db:3306/blog", "", "", "app:secret@tcp(db:3306)/blog?charset=utf8mb4&parseTime=true"},
		{"override wins", "mysql://app:secret@db:3306/blog?charset=latin1", "ops", "", "ops:secret@tcp(db:3306)/blog?charset=latin1&parseTime=true"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, normalizeMySQLDSN(tc.in, tc.user, tc.pass))
		})
	}
}

func TestNewGorm_UnsupportedDriver(t *testing.T) {
	_, err := NewGorm(Opts{Driver: "sqlite"})
	assert.ErrorIs(t, err, ErrUnsupportedDriver)
}

func TestMaskDSN(t *testing.T) {
	assert.Equal(t, "root:****@tcp(db:3306)/blog", maskDSN("root:pw@tcp(db:3306)/blog"))
	assert.Equal(t, "tcp(db:3306)/blog", maskDSN("tcp(db:3306)/blog"))
}
