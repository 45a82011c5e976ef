package identity

import (
	"context"
	"slices"
)

// Principal 已绑定到本地用户的调用方
type Principal struct {
	UserID      string   `json:"user_id"`
	Email       string   `json:"email"`
	IsSuperuser bool     `json:"is_superuser"`
	Roles       []string `json:"roles"`
}

// HasAnyRole 任一角色匹配即可，超级用户视为 admin
func (p *Principal) HasAnyRole(roles ...string) bool {
	for _, r := range roles {
		if slices.Contains(p.Roles, r) {
			return true
		}
		if r == RoleAdmin && p.IsSuperuser {
			return true
		}
	}
	return false
}

// IsPrivileged 管理员或运营
func (p *Principal) IsPrivileged() bool {
	return p.HasAnyRole(RoleAdmin, RoleManager)
}

type principalKey struct{}

// WithPrincipal 将调用方写入 context
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom 从 context 取出调用方
func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}
