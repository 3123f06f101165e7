// Package reminder decides when due-date reminders fire, emits them onto the
// queue, sweeps for reminders too far out for the queue's delay window, and
// processes delivered reminders.
package reminder

import (
	"context"
	"fmt"
	"time"

	contractmq "taskboard/contracts/mq"
	"taskboard/internal/model"
)

// Queue publishes a payload that becomes visible after delay.
type Queue interface {
	PublishDelayed(ctx context.Context, routingKey string, payload any, delay time.Duration) error
}

// Marker suppresses repeated reminders for the same task and due date.
type Marker interface {
	AcquireOnce(ctx context.Context, scope, id string) bool
	Release(ctx context.Context, scope, id string) error
}

const markerScope = "reminder"

// markerID identifies one reminder; a changed due date gets a fresh marker.
func markerID(task *model.Task) string {
	return fmt.Sprintf("%s:%d", task.TaskID, task.DueDate.Millis())
}

// NewPayload builds the queue message for a task.
func NewPayload(task *model.Task) contractmq.ReminderPayload {
	p := contractmq.ReminderPayload{
		TaskID:       task.TaskID,
		OwnerID:      task.OwnerID,
		UserID:       task.Recipient(),
		Title:        task.Title,
		ReminderType: contractmq.ReminderTypeDueSoon,
	}
	if task.DueDate != nil {
		p.DueDate = task.DueDate.String()
	}
	return p
}

type options struct {
	marker Marker
	now    func() time.Time
}

// Option configures an Emitter or Sweeper.
type Option func(*options)

// WithMarker enables reminder dedup through m.
func WithMarker(m Marker) Option {
	return func(o *options) { o.marker = m }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
