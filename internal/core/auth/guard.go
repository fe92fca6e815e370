package auth

import "quillpress/internal/domain"

// Authorize 无状态：caller 为 RoleNone 时未认证，层级不足时禁止
func Authorize(caller, required domain.Role) error {
	if caller == domain.RoleNone {
		return domain.ErrUnauthenticated
	}
	if !caller.AtLeast(required) {
		return domain.ErrForbidden
	}
	return nil
}

// CanManage 对他人账号的操作：super_admin 可管理任何人，其余只能管理严格低于自己的角色
func CanManage(actor, target domain.Role) bool {
	if actor == domain.RoleSuperAdmin {
		return true
	}
	return actor > target
}
