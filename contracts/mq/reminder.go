package mq

const (
	RoutingKeyReminderDue = "reminder.due"
	QueueReminders        = "reminders"

	ReminderTypeDueSoon = "DUE_SOON"
)

// ReminderPayload asks the reminder consumer to notify UserID about a task
// coming due. OwnerID is the task's store key; when empty, UserID is used.
type ReminderPayload struct {
	TaskID       string `json:"taskId" validate:"required"`
	OwnerID      string `json:"ownerId,omitempty"`
	UserID       string `json:"userId" validate:"required_without=OwnerID"`
	DueDate      string `json:"dueDate"`
	Title        string `json:"title"`
	ReminderType string `json:"reminderType"`
}

// LookupOwner is the partition key used to re-fetch the task.
func (p ReminderPayload) LookupOwner() string {
	if p.OwnerID != "" {
		return p.OwnerID
	}
	return p.UserID
}
