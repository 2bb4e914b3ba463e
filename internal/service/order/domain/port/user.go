// internal/service/order/domain/port/user.go
package port

import "context"

// User 是用户服务返回的最小视图，本核心只消费 role / email。
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// UserDirectory 是出站端口：根据用户 ID 查询其角色与联系方式。
// 鉴权决策在接口层完成，核心流程不直接依赖它。
type UserDirectory interface {
	FindByID(ctx context.Context, id string) (*User, error)
}
