package rbac

// 权限常量
const (
	// 普通操作权限
	PermissionReadProject    = "project:read"
	PermissionWriteProject   = "project:write"
	PermissionReadActivity   = "activity:read"
	PermissionWriteActivity  = "activity:write"
	PermissionUploadFile     = "file:upload"
	PermissionGenerateReport = "report:generate"

	// 敏感操作权限
	PermissionDeleteProject  = "project:delete"
	PermissionDeleteActivity = "activity:delete"
	PermissionDeleteFile     = "file:delete"
	PermissionListUsers      = "user:list"
	PermissionRefreshCache   = "cache:refresh"
)

// 角色常量（与后端用户角色一致）
const (
	RoleStaff = "staff"
	RoleAdmin = "admin"
)

// 角色权限映射
var rolePermissions = map[string][]string{
	RoleStaff: {
		PermissionReadProject,
		PermissionWriteProject,
		PermissionReadActivity,
		PermissionWriteActivity,
		PermissionUploadFile,
		PermissionGenerateReport,
	},
	RoleAdmin: {
		PermissionReadProject,
		PermissionWriteProject,
		PermissionReadActivity,
		PermissionWriteActivity,
		PermissionUploadFile,
		PermissionGenerateReport,
		PermissionDeleteProject,
		PermissionDeleteActivity,
		PermissionDeleteFile,
		PermissionListUsers,
		PermissionRefreshCache,
	},
}

// IsAdmin 判断角色是否为管理员
func IsAdmin(role string) bool {
	return role == RoleAdmin
}

// HasPermission 检查角色是否有指定权限
func HasPermission(role, permission string) bool {
	permissions, ok := rolePermissions[role]
	if !ok {
		return false
	}

	for _, p := range permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// CheckPermission 检查角色是否有指定权限（返回错误而不是布尔值，便于处理）
func CheckPermission(role, permission string) error {
	if !HasPermission(role, permission) {
		return &PermissionDeniedError{
			Role:       role,
			Permission: permission,
		}
	}
	return nil
}

// PermissionDeniedError 表示权限不足的错误
type PermissionDeniedError struct {
	Role       string
	Permission string
}

func (e *PermissionDeniedError) Error() string {
	return "insufficient permissions: " + e.Permission
}
