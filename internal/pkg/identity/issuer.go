package identity

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Issuer 使用共享密钥签发 HS256 令牌
// 仅用于本地联调和压测工具，生产令牌由外部身份提供方签发
type Issuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

func NewIssuer(secret, issuer string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Issuer{secret: []byte(secret), issuer: issuer, ttl: ttl}
}

// Sign 为身份签发令牌，角色写入 realm_access.roles
func (i *Issuer) Sign(ident Identity) (string, error) {
	now := time.Now()
	claims := Claims{
		Email:       ident.Email,
		Name:        ident.Name,
		RealmAccess: &roleSet{Roles: ident.Roles},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   ident.Subject,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}
