package backend

import "milletsmon/pkg/rbac"

// Identity 调用者身份，决定请求路由；零值表示未登录访客
type Identity struct {
	Token  string
	UserID string
	Role   string
}

func (i Identity) Anonymous() bool { return i.Token == "" }

// Scope 缓存作用域：public（访客）、all（管理员）、user:{id}（普通人员）
func (i Identity) Scope() string {
	switch {
	case i.Anonymous():
		return "public"
	case rbac.IsAdmin(i.Role):
		return "all"
	default:
		return "user:" + i.UserID
	}
}
