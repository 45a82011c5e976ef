package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"coupon_hub/internal/pkg/config"

	"github.com/golang-jwt/jwt/v5"
	gocache "github.com/patrickmn/go-cache"
)

// Claims Keycloak 风格的访问令牌声明
type Claims struct {
	Email             string             `json:"email,omitempty"`
	Name              string             `json:"name,omitempty"`
	PreferredUsername string             `json:"preferred_username,omitempty"`
	Roles             []string           `json:"roles,omitempty"`
	RealmAccess       *roleSet           `json:"realm_access,omitempty"`
	ResourceAccess    map[string]roleSet `json:"resource_access,omitempty"`
	jwt.RegisteredClaims
}

type roleSet struct {
	Roles []string `json:"roles"`
}

// JWTVerifier 基于 golang-jwt 的令牌校验器
// 支持 RS256 (身份提供方公钥) 和 HS256 (共享密钥)
type JWTVerifier struct {
	keyFunc  jwt.Keyfunc
	methods  []string
	issuer   string
	audience string
	clientID string
	cacheTTL time.Duration
	cache    *gocache.Cache
	now      func() time.Time
}

// NewJWTVerifier 根据配置创建校验器
func NewJWTVerifier(cfg config.AuthConfig) (*JWTVerifier, error) {
	v := &JWTVerifier{
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		clientID: cfg.ClientID,
		cacheTTL: cfg.CacheTTL,
		now:      time.Now,
	}

	switch {
	case cfg.PublicKeyPEM != "":
		pub, err := jwt.ParseRSAPublicKeyFromPEM([]byte(cfg.PublicKeyPEM))
		if err != nil {
			return nil, fmt.Errorf("parse auth public key: %w", err)
		}
		v.keyFunc = func(*jwt.Token) (interface{}, error) { return pub, nil }
		v.methods = []string{jwt.SigningMethodRS256.Alg()}
	case cfg.HMACSecret != "":
		secret := []byte(cfg.HMACSecret)
		v.keyFunc = func(*jwt.Token) (interface{}, error) { return secret, nil }
		v.methods = []string{jwt.SigningMethodHS256.Alg()}
	default:
		return nil, fmt.Errorf("auth requires public_key_pem or hmac_secret")
	}

	if v.cacheTTL > 0 {
		v.cache = gocache.New(v.cacheTTL, 2*v.cacheTTL)
	}
	return v, nil
}

func cacheKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Verify 校验签名、有效期、issuer/audience 并提取身份
func (v *JWTVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrMissingToken
	}

	key := cacheKey(token)
	if v.cache != nil {
		if cached, ok := v.cache.Get(key); ok {
			return cached.(*Identity), nil
		}
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods(v.methods),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := &Claims{}
	if _, err := jwt.ParseWithClaims(token, claims, v.keyFunc, opts...); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, ErrNoSubject
	}

	ident := &Identity{
		Subject: claims.Subject,
		Email:   claims.Email,
		Name:    claims.Name,
		Roles:   v.collectRoles(claims),
	}
	if ident.Name == "" {
		ident.Name = claims.PreferredUsername
	}

	if v.cache != nil {
		ttl := v.cacheTTL
		if remaining := claims.ExpiresAt.Sub(v.now()); remaining < ttl {
			ttl = remaining
		}
		if ttl > 0 {
			v.cache.Set(key, ident, ttl)
		}
	}
	return ident, nil
}

// collectRoles 合并 realm 角色、客户端角色和扁平 roles 声明
func (v *JWTVerifier) collectRoles(c *Claims) []string {
	seen := make(map[string]struct{})
	var roles []string
	add := func(list []string) {
		for _, r := range list {
			if _, ok := seen[r]; ok || r == "" {
				continue
			}
			seen[r] = struct{}{}
			roles = append(roles, r)
		}
	}

	if c.RealmAccess != nil {
		add(c.RealmAccess.Roles)
	}
	if v.clientID != "" {
		if rs, ok := c.ResourceAccess[v.clientID]; ok {
			add(rs.Roles)
		}
	}
	add(c.Roles)
	return roles
}
