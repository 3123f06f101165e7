package mq

import "encoding/json"

const (
	RoutingKeyActivityLogged = "activity.logged"
	QueueActivity            = "activity-log"

	ActionTaskCreated  = "TASK_CREATED"
	ActionTaskUpdated  = "TASK_UPDATED"
	ActionTaskDeleted  = "TASK_DELETED"
	ActionCommentAdded = "COMMENT_ADDED"
)

// ActivityPayload describes one change to a task. Timestamp is epoch ms and
// defaults to the time of processing when zero.
type ActivityPayload struct {
	TaskID    string          `json:"taskId" validate:"required"`
	UserID    string          `json:"userId"`
	Action    string          `json:"action" validate:"required,oneof=TASK_CREATED TASK_UPDATED TASK_DELETED COMMENT_ADDED"`
	Details   json.RawMessage `json:"details,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`
}
