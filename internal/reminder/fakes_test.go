package reminder

import (
	"context"
	"errors"
	"sync"
	"time"

	contractmq "taskboard/contracts/mq"
	"taskboard/internal/model"
)

type published struct {
	routingKey string
	payload    contractmq.ReminderPayload
	delay      time.Duration
}

type fakeQueue struct {
	mu      sync.Mutex
	msgs    []published
	failFor map[string]bool
}

func (q *fakeQueue) PublishDelayed(_ context.Context, routingKey string, payload any, delay time.Duration) error {
	p := payload.(contractmq.ReminderPayload)
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.failFor[p.TaskID] {
		return errors.New("broker unavailable")
	}
	q.msgs = append(q.msgs, published{routingKey: routingKey, payload: p, delay: delay})
	return nil
}

func (q *fakeQueue) sent() []published {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]published(nil), q.msgs...)
}

type taskKey struct{ owner, id string }

// memStore is an in-memory task store honouring the candidate query contract.
type memStore struct {
	mu      sync.Mutex
	tasks   map[taskKey]model.Task
	listErr error
	getErr  error
}

func newMemStore(tasks ...model.Task) *memStore {
	s := &memStore{tasks: map[taskKey]model.Task{}}
	for _, t := range tasks {
		s.put(t)
	}
	return s
}

func (s *memStore) put(t model.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[taskKey{t.OwnerID, t.TaskID}] = t
}

func (s *memStore) GetTask(_ context.Context, ownerID, taskID string) (*model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	t, ok := s.tasks[taskKey{ownerID, taskID}]
	if !ok {
		return nil, model.ErrTaskNotFound
	}
	return &t, nil
}

func (s *memStore) ListReminderCandidates(_ context.Context, from, to time.Time) ([]model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []model.Task
	for _, t := range s.tasks {
		if t.DueDate == nil || t.Status == model.StatusDone {
			continue
		}
		ms := t.DueDate.Millis()
		if ms > from.UnixMilli() && ms <= to.UnixMilli() {
			out = append(out, t)
		}
	}
	return out, nil
}

type fakeMarker struct {
	mu       sync.Mutex
	seen     map[string]bool
	released []string
}

func newFakeMarker() *fakeMarker {
	return &fakeMarker{seen: map[string]bool{}}
}

func (m *fakeMarker) AcquireOnce(_ context.Context, scope, id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := scope + ":" + id
	if m.seen[key] {
		return false
	}
	m.seen[key] = true
	return true
}

func (m *fakeMarker) Release(_ context.Context, scope, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := scope + ":" + id
	delete(m.seen, key)
	m.released = append(m.released, key)
	return nil
}

type fakeNotifier struct {
	mu       sync.Mutex
	notified []string
	err      error
	panicFor string
}

func (n *fakeNotifier) NotifyDueSoon(_ context.Context, task *model.Task, _ contractmq.ReminderPayload) error {
	if task.TaskID == n.panicFor {
		panic("notifier exploded")
	}
	if n.err != nil {
		return n.err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notified = append(n.notified, task.TaskID)
	return nil
}

func dueIn(now time.Time, d time.Duration) *model.DueDate {
	due := model.DueDateFromTime(now.Add(d))
	return &due
}
