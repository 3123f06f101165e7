package activity

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	contractmq "taskboard/contracts/mq"
	"taskboard/internal/model"
	"taskboard/pkg/mq"
	"taskboard/pkg/util"
)

type fakeStore struct {
	mu      sync.Mutex
	records map[string]model.ActivityRecord
	err     error
	failFor string
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: map[string]model.ActivityRecord{}}
}

func (s *fakeStore) InsertActivity(_ context.Context, rec model.ActivityRecord) error {
	if s.err != nil {
		return s.err
	}
	if rec.TaskID == s.failFor {
		panic("store exploded")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := rec.TaskID + "#" + time.UnixMilli(rec.Timestamp).String()
	if _, ok := s.records[key]; !ok {
		s.records[key] = rec
	}
	return nil
}

func (s *fakeStore) all() []model.ActivityRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.ActivityRecord, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	return out
}

func activityMsg(t *testing.T, id, body string) mq.Message {
	t.Helper()
	require.True(t, json.Valid([]byte(body)) || id == "bad", "fixture must be valid JSON")
	return mq.Message{ID: id, RoutingKey: contractmq.RoutingKeyActivityLogged, Body: json.RawMessage(body)}
}

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func TestProcessActivityBatch(t *testing.T) {
	store := newFakeStore()
	p := NewProcessor(store, 4, nil)
	p.now = func() time.Time { return fixedNow }

	msgs := []mq.Message{
		activityMsg(t, "m1", `{"taskId":"t1","userId":"u1","action":"TASK_CREATED","details":{"title":"x", "status":"To-Do"},"timestamp":1000}`),
		activityMsg(t, "m2", `{"taskId":"t1","userId":"u1","action":"COMMENT_ADDED","details":{"commentId":"c1"}}`),
		activityMsg(t, "bad", `{"taskId":`),
		activityMsg(t, "m4", `{"taskId":"t1","action":"TASK_ARCHIVED"}`),
		activityMsg(t, "m5", `{"action":"TASK_DELETED"}`),
		activityMsg(t, "m6", `{"taskId":"t2","userId":"u2","action":"TASK_DELETED","timestamp":2000}`),
	}

	out := p.ProcessActivityBatch(context.Background(), msgs)
	require.Len(t, out, len(msgs))

	for i, wantOK := range []bool{true, true, false, false, false, true} {
		assert.Equal(t, wantOK, out[i].Success, "message %d", i)
		assert.Equal(t, msgs[i].ID, out[i].MessageID)
	}
	for _, i := range []int{2, 3, 4} {
		retryable, _ := util.IsRetryableError(out[i].Err)
		assert.False(t, retryable, "message %d should not be retried", i)
	}

	recs := store.all()
	require.Len(t, recs, 3)

	byAction := map[string]model.ActivityRecord{}
	for _, r := range recs {
		byAction[r.Action] = r
	}
	assert.Equal(t, model.ActivityRecord{TaskID: "t1", Timestamp: 1000, UserID: "u1", Action: "TASK_CREATED", Details: `{"title":"x","status":"To-Do"}`}, byAction["TASK_CREATED"])
	assert.Equal(t, fixedNow.UnixMilli(), byAction["COMMENT_ADDED"].Timestamp, "timestamp defaults to now")
	assert.Equal(t, "{}", byAction["TASK_DELETED"].Details)
}

func TestProcessActivityBatch_RedeliveryIsIdempotent(t *testing.T) {
	store := newFakeStore()
	p := NewProcessor(store, 2, nil)
	msg := activityMsg(t, "m1", `{"taskId":"t1","userId":"u1","action":"TASK_UPDATED","details":{"status":"Done"},"timestamp":5}`)

	for i := 0; i < 3; i++ {
		out := p.ProcessActivityBatch(context.Background(), []mq.Message{msg})
		require.Len(t, out, 1)
		assert.True(t, out[0].Success)
	}
	assert.Len(t, store.all(), 1)
}

func TestProcessActivityBatch_Isolation(t *testing.T) {
	store := newFakeStore()
	store.failFor = "boom"
	p := NewProcessor(store, 3, nil)

	out := p.ProcessActivityBatch(context.Background(), []mq.Message{
		activityMsg(t, "m1", `{"taskId":"a","action":"TASK_CREATED","timestamp":1}`),
		activityMsg(t, "m2", `{"taskId":"boom","action":"TASK_CREATED","timestamp":1}`),
		activityMsg(t, "m3", `{"taskId":"c","action":"TASK_CREATED","timestamp":1}`),
	})

	require.Len(t, out, 3)
	assert.True(t, out[0].Success)
	assert.False(t, out[1].Success)
	assert.Contains(t, out[1].Error, "panic")
	assert.True(t, out[2].Success)
}

func TestProcessActivityBatch_StoreErrorIsRetryable(t *testing.T) {
	store := newFakeStore()
	store.err = context.DeadlineExceeded
	p := NewProcessor(store, 1, nil)

	out := p.ProcessActivityBatch(context.Background(), []mq.Message{
		activityMsg(t, "m1", `{"taskId":"a","action":"TASK_CREATED"}`),
	})
	require.Len(t, out, 1)
	assert.False(t, out[0].Success)
	assert.Equal(t, "a", out[0].TaskID)
	retryable, _ := util.IsRetryableError(out[0].Err)
	assert.True(t, retryable)
}

type fakeEventPublisher struct {
	routingKey string
	payload    contractmq.ActivityPayload
	err        error
}

func (f *fakeEventPublisher) PublishWithContext(_ context.Context, routingKey string, payload any) error {
	f.routingKey = routingKey
	f.payload = payload.(contractmq.ActivityPayload)
	return f.err
}

func TestPublisher_Publish(t *testing.T) {
	q := &fakeEventPublisher{}
	p := NewPublisher(q, nil)
	p.now = func() time.Time { return fixedNow }

	p.Publish(context.Background(), "t1", "u1", contractmq.ActionTaskCreated, map[string]string{"title": "x"})

	assert.Equal(t, contractmq.RoutingKeyActivityLogged, q.routingKey)
	assert.Equal(t, "t1", q.payload.TaskID)
	assert.Equal(t, "u1", q.payload.UserID)
	assert.Equal(t, contractmq.ActionTaskCreated, q.payload.Action)
	assert.Equal(t, fixedNow.UnixMilli(), q.payload.Timestamp)
	assert.JSONEq(t, `{"title":"x"}`, string(q.payload.Details))
}

func TestPublisher_FailureIsSwallowed(t *testing.T) {
	q := &fakeEventPublisher{err: errors.New("broker down")}
	p := NewPublisher(q, nil)

	assert.NotPanics(t, func() {
		p.Publish(context.Background(), "t1", "u1", contractmq.ActionTaskDeleted, nil)
	})
}
