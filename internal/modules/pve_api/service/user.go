package service

import (
	"context"
	"net/http"
	"strconv"

	"pve_client/internal/models"
)

// UserInfo — профиль текущего пользователя; заодно проверяет пару user_id/token.
func (c *Client) UserInfo(ctx context.Context) (models.UserProfile, error) {
	creds, err := c.creds.Current()
	if err != nil {
		return models.UserProfile{}, err
	}
	var resp struct {
		UserInfo struct {
			ID        int64  `json:"id"`
			FirstName string `json:"first_name"`
			LastName  string `json:"last_name"`
			Username  string `json:"username"`
			PhotoURL  string `json:"photo_url"`
		} `json:"user_info"`
	}
	err = c.call(ctx, request{
		op:     "get_user_info",
		method: http.MethodPost,
		path:   "/api/get-user-info",
		body:   map[string]any{"id": userIDValue(creds.UserID)},
	}, &resp)
	if err != nil {
		return models.UserProfile{}, err
	}
	u := resp.UserInfo
	return models.UserProfile{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Username:  u.Username,
		PhotoURL:  u.PhotoURL,
	}, nil
}

// userIDValue: бэкенд хранит id числом, но строку тоже принимает.
func userIDValue(id string) any {
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		return n
	}
	return id
}
