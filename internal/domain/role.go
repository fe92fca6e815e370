package domain

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// Role 有序角色：数值越大权限越高；零值 RoleNone 表示未登录
type Role int8

const (
	RoleNone Role = iota
	RoleMember
	RoleAdmin
	RoleSuperAdmin
)

var roleNames = map[Role]string{
	RoleNone:       "",
	RoleMember:     "member",
	RoleAdmin:      "admin",
	RoleSuperAdmin: "super_admin",
}

// Roles 全部可分配角色（按层级升序）
var Roles = []Role{RoleMember, RoleAdmin, RoleSuperAdmin}

func (r Role) String() string { return roleNames[r] }

func (r Role) Valid() bool { return r >= RoleMember && r <= RoleSuperAdmin }

// AtLeast 层级比较，一次整数比较
func (r Role) AtLeast(required Role) bool { return r >= required }

func ParseRole(s string) (Role, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for r, name := range roleNames {
		if r != RoleNone && name == s {
			return r, nil
		}
	}
	return RoleNone, fmt.Errorf("unknown role %q", s)
}

func (r Role) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *Role) UnmarshalText(b []byte) error {
	v, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// Value / Scan：数据库里按字符串存
func (r Role) Value() (driver.Value, error) { return r.String(), nil }

func (r *Role) Scan(src any) error {
	switch v := src.(type) {
	case string:
		return r.UnmarshalText([]byte(v))
	case []byte:
		return r.UnmarshalText(v)
	case nil:
		*r = RoleNone
		return nil
	}
	return fmt.Errorf("cannot scan %T into Role", src)
}
