package model

import (
	"encoding/json"
	"strings"
)

const (
	StatusToDo  = "To-Do"
	StatusDoing = "Doing"
	StatusDone  = "Done"
)

// ValidStatus reports whether s is one of the board columns.
func ValidStatus(s string) bool {
	switch s {
	case StatusToDo, StatusDoing, StatusDone:
		return true
	}
	return false
}

// Task is keyed by (OwnerID, TaskID). OwnerID is serialized as userId for
// compatibility with existing clients.
type Task struct {
	OwnerID     string   `json:"userId"`
	TaskID      string   `json:"taskId"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Status      string   `json:"status"`
	DueDate     *DueDate `json:"dueDate"`
	AssignedTo  string   `json:"assignedTo"`
	CreatedBy   string   `json:"createdBy"`
	CreatedAt   int64    `json:"createdAt"`
	UpdatedAt   int64    `json:"updatedAt"`
}

// Recipient is who reminders for the task are addressed to.
func (t *Task) Recipient() string {
	if t.AssignedTo != "" {
		return t.AssignedTo
	}
	return t.OwnerID
}

// IsDone reports whether the task is in the terminal state.
func (t *Task) IsDone() bool {
	return t.Status == StatusDone
}

// CreateTaskInput is the body of a create request.
type CreateTaskInput struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Status      string   `json:"status"`
	DueDate     *DueDate `json:"dueDate"`
	AssignedTo  string   `json:"assignedTo"`
}

// UnmarshalJSON treats "dueDate": "" like null, the same as on update.
func (in *CreateTaskInput) UnmarshalJSON(data []byte) error {
	type plain CreateTaskInput
	aux := struct {
		*plain
		DueDate OptionalDueDate `json:"dueDate"`
	}{plain: (*plain)(in)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	in.DueDate = aux.DueDate.Value
	return nil
}

// Validate trims and checks the input, filling defaults.
func (in *CreateTaskInput) Validate() error {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return NewValidationError("Title is required")
	}
	if in.Status == "" {
		in.Status = StatusToDo
	}
	if !ValidStatus(in.Status) {
		return NewValidationError("Invalid status: " + in.Status)
	}
	return nil
}

// TaskChanges is a field-level update; nil fields are left untouched.
type TaskChanges struct {
	Title       *string         `json:"title"`
	Description *string         `json:"description"`
	Status      *string         `json:"status"`
	DueDate     OptionalDueDate `json:"dueDate"`
	AssignedTo  *string         `json:"assignedTo"`
}

func (c *TaskChanges) Validate() error {
	if c.Title != nil {
		trimmed := strings.TrimSpace(*c.Title)
		if trimmed == "" {
			return NewValidationError("Title cannot be empty")
		}
		c.Title = &trimmed
	}
	if c.Status != nil && !ValidStatus(*c.Status) {
		return NewValidationError("Invalid status: " + *c.Status)
	}
	return nil
}

// Empty reports whether no field is set.
func (c *TaskChanges) Empty() bool {
	return c.Title == nil && c.Description == nil && c.Status == nil && !c.DueDate.Set && c.AssignedTo == nil
}

// Apply returns a copy of t with the changes applied.
func (c *TaskChanges) Apply(t Task) Task {
	if c.Title != nil {
		t.Title = *c.Title
	}
	if c.Description != nil {
		t.Description = *c.Description
	}
	if c.Status != nil {
		t.Status = *c.Status
	}
	if c.DueDate.Set {
		t.DueDate = c.DueDate.Value
	}
	if c.AssignedTo != nil {
		t.AssignedTo = *c.AssignedTo
	}
	return t
}
