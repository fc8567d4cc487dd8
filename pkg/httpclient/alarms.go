package httpclient

import (
	"context"
	"fmt"
)

// AlarmRequest は内部APIでアラームを作成するリクエスト。
type AlarmRequest struct {
	Recipient     string `json:"recipient"`
	Kind          string `json:"kind"`
	PostID        int64  `json:"postId,omitempty"`
	ActorUsername string `json:"actorUsername,omitempty"`
}

// Alarm はアラーム一覧APIの1件。
type Alarm struct {
	ID                string `json:"id"`
	RecipientUsername string `json:"recipientUsername"`
	ActorUsername     string `json:"actorUsername"`
	SubjectPostID     int64  `json:"subjectPostId"`
	Kind              string `json:"kind"`
	CreatedAt         string `json:"createdAt"`
}

// CreateAlarm はアラームを作成し、そのIDを返す。
func (c *Client) CreateAlarm(ctx context.Context, req AlarmRequest) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	if err := c.PostJSON(ctx, "/api/v1/internal/alarms", req, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// RemovePostAlarms は投稿に紐づくアラームをまとめて削除し、件数を返す。
func (c *Client) RemovePostAlarms(ctx context.Context, postID int64) (int64, error) {
	var resp struct {
		Deleted int64 `json:"deleted"`
	}
	if err := c.DeleteJSON(ctx, fmt.Sprintf("/api/v1/internal/posts/%d/alarms", postID), &resp); err != nil {
		return 0, err
	}
	return resp.Deleted, nil
}

// ListAlarms はトークンのユーザーのアラーム一覧を返す。
func (c *Client) ListAlarms(ctx context.Context) ([]Alarm, error) {
	var alarms []Alarm
	if err := c.GetJSON(ctx, "/api/v1/alarms", &alarms); err != nil {
		return nil, err
	}
	return alarms, nil
}
