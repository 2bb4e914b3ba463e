// internal/service/order/infrastructure/adapter/user_http_adapter.go
package adapter

import (
	"context"
	"fmt"
	"net/http"

	"bazaar/internal/pkg/httpclient"
	"bazaar/internal/service/order/domain/port"

	"github.com/pkg/errors"
)

// UserHTTPAdapter 是 port.UserDirectory 接口的HTTP实现。
type UserHTTPAdapter struct {
	client  *httpclient.Client
	baseURL string
}

// NewUserHTTPAdapter 创建一个新的用户目录适配器实例。
func NewUserHTTPAdapter(client *httpclient.Client, baseURL string) *UserHTTPAdapter {
	return &UserHTTPAdapter{client: client, baseURL: baseURL}
}

// FindByID 查询用户的角色与联系方式。
func (a *UserHTTPAdapter) FindByID(ctx context.Context, id string) (*port.User, error) {
	var user port.User
	err := a.client.GetJSON(ctx, fmt.Sprintf("%s/users/%s", a.baseURL, id), nil, &user)
	if err != nil {
		var statusErr *httpclient.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return nil, errors.Errorf("user %s not found", id)
		}
		return nil, errors.Wrap(err, "user service lookup failed")
	}
	return &user, nil
}
