package model

// ActivityRecord is one append-only entry of a task's history, keyed by (TaskID, Timestamp).
// Details holds the serialized JSON object.
type ActivityRecord struct {
	TaskID    string `json:"taskId"`
	Timestamp int64  `json:"timestamp"`
	UserID    string `json:"userId"`
	Action    string `json:"action"`
	Details   string `json:"details"`
}
