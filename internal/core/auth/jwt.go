package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"quillpress/internal/domain"
)

// Claims token 载荷：sub = userId
type Claims struct {
	Role domain.Role `json:"role"`
	jwt.RegisteredClaims
}

func (c *Claims) UserID() string { return c.Subject }

// TokenService 签名密钥启动时加载一次，之后只读
type TokenService struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenService(secret []byte, issuer string, ttl time.Duration) *TokenService {
	key := make([]byte, len(secret))
	copy(key, secret)
	return &TokenService{secret: key, issuer: issuer, ttl: ttl, now: time.Now}
}

func (j *TokenService) TTL() time.Duration { return j.ttl }

// Issue 使用默认 TTL
func (j *TokenService) Issue(uid string, role domain.Role) (string, error) {
	return j.IssueUntil(uid, role, j.now().Add(j.ttl))
}

func (j *TokenService) IssueUntil(uid string, role domain.Role, expiresAt time.Time) (string, error) {
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			Issuer:    j.issuer,
			IssuedAt:  jwt.NewNumericDate(j.now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.secret)
}

// Verify 纯 CPU 计算，不访问存储
func (j *TokenService) Verify(tokenStr string) (*Claims, error) {
	t, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return j.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(j.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, domain.ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
			return nil, domain.ErrInvalidSignature
		default:
			return nil, domain.ErrMalformedToken
		}
	}
	c, ok := t.Claims.(*Claims)
	if !ok || !t.Valid || c.Subject == "" || !c.Role.Valid() {
		return nil, domain.ErrMalformedToken
	}
	return c, nil
}
