package identity

import (
	"context"
	"errors"
	"slices"
)

// 角色名
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrNoSubject    = errors.New("token has no subject")
)

// Identity 外部身份提供方断言的用户身份
type Identity struct {
	Subject string   `json:"sub"`
	Email   string   `json:"email"`
	Name    string   `json:"name"`
	Roles   []string `json:"roles"`
}

// HasRole 是否拥有角色
func (i *Identity) HasRole(role string) bool {
	return slices.Contains(i.Roles, role)
}

// HasAnyRole 是否拥有任一角色
func (i *Identity) HasAnyRole(roles ...string) bool {
	for _, r := range roles {
		if i.HasRole(r) {
			return true
		}
	}
	return false
}

// IsPrivileged 管理员或运营
func (i *Identity) IsPrivileged() bool {
	return i.HasAnyRole(RoleAdmin, RoleManager)
}

// TokenVerifier 校验 bearer token 并返回身份
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}
