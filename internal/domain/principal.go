package domain

// Principal 已认证的调用方；零值表示匿名
type Principal struct {
	UserID string
	Role   Role
}

func (p Principal) Anonymous() bool { return p.UserID == "" || p.Role == RoleNone }

// CanModify 作者本人或 admin 以上
func (p Principal) CanModify(ownerID string) bool {
	if p.Anonymous() {
		return false
	}
	return p.UserID == ownerID || p.Role.AtLeast(RoleAdmin)
}
