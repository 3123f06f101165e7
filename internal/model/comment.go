package model

type Comment struct {
	TaskID    string `json:"taskId"`
	CommentID string `json:"commentId"`
	UserID    string `json:"userId"`
	Content   string `json:"content"`
	CreatedAt int64  `json:"createdAt"`
}
