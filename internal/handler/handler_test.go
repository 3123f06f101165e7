package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskboard/internal/model"
)

type fakeTasks struct {
	created   model.CreateTaskInput
	createdBy string
	changes   model.TaskChanges
	err       error
	tasks     []model.Task
}

func (f *fakeTasks) CreateTask(_ context.Context, callerID string, in model.CreateTaskInput) (*model.Task, error) {
	f.created, f.createdBy = in, callerID
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	return &model.Task{OwnerID: callerID, TaskID: "t1", Title: in.Title, Status: in.Status}, nil
}

func (f *fakeTasks) UpdateTask(_ context.Context, callerID, taskID string, changes model.TaskChanges) (*model.Task, error) {
	f.changes = changes
	if f.err != nil {
		return nil, f.err
	}
	t := changes.Apply(model.Task{OwnerID: callerID, TaskID: taskID, Title: "old"})
	return &t, nil
}

func (f *fakeTasks) DeleteTask(_ context.Context, _, _ string) error { return f.err }

func (f *fakeTasks) ListTasks(_ context.Context, _ string) ([]model.Task, error) {
	return f.tasks, f.err
}

func (f *fakeTasks) ListActivity(_ context.Context, taskID string) ([]model.ActivityRecord, error) {
	return []model.ActivityRecord{{TaskID: taskID, Action: "CREATE", Details: "{}"}}, f.err
}

type fakeComments struct {
	content string
	err     error
}

func (f *fakeComments) AddComment(_ context.Context, callerID, taskID, content string) (*model.Comment, error) {
	f.content = content
	if strings.TrimSpace(content) == "" {
		return nil, model.NewValidationError("Content is required")
	}
	return &model.Comment{TaskID: taskID, CommentID: "c1", UserID: callerID, Content: content}, f.err
}

func (f *fakeComments) ListComments(_ context.Context, _ string) ([]model.Comment, error) {
	return []model.Comment{}, f.err
}

func newEngine(tasks *fakeTasks, comments *fakeComments) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if id := c.GetHeader("X-Test-Caller"); id != "" {
			c.Set(CallerKey, id)
		}
		c.Next()
	})
	th := NewTaskHandler(tasks, nil)
	ch := NewCommentHandler(comments, nil)
	r.GET("/tasks", th.ListTasks)
	r.POST("/tasks", th.CreateTask)
	r.PUT("/tasks/:taskId", th.UpdateTask)
	r.DELETE("/tasks/:taskId", th.DeleteTask)
	r.GET("/tasks/:taskId/activity", th.ListActivity)
	r.GET("/tasks/:taskId/comments", ch.ListComments)
	r.POST("/tasks/:taskId/comments", ch.AddComment)
	return r
}

func do(r http.Handler, method, path, body string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestCreateTask(t *testing.T) {
	tasks := &fakeTasks{}
	r := newEngine(tasks, &fakeComments{})

	w := do(r, http.MethodPost, "/tasks", `{"title":"  Ship it ","dueDate":"1740830400000"}`, "X-Test-Caller", "u1")
	require.Equal(t, http.StatusCreated, w.Code)
	body := decode(t, w)
	assert.Equal(t, "u1", body["userId"])
	assert.Equal(t, "Ship it", body["title"])
	assert.Equal(t, model.StatusToDo, body["status"])
	assert.Equal(t, "u1", tasks.createdBy)
	require.NotNil(t, tasks.created.DueDate)
	assert.Equal(t, int64(1740830400000), tasks.created.DueDate.Millis())
}

func TestCreateTaskEmptyDueDate(t *testing.T) {
	tasks := &fakeTasks{}
	r := newEngine(tasks, &fakeComments{})

	w := do(r, http.MethodPost, "/tasks", `{"title":"x","dueDate":""}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Nil(t, tasks.created.DueDate)
}

func TestCreateTaskDefaultsCaller(t *testing.T) {
	tasks := &fakeTasks{}
	r := newEngine(tasks, &fakeComments{})

	w := do(r, http.MethodPost, "/tasks", `{"title":"x"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, DefaultCallerID, tasks.createdBy)
}

func TestCreateTaskValidation(t *testing.T) {
	r := newEngine(&fakeTasks{}, &fakeComments{})

	cases := map[string]string{
		"empty body":   ``,
		"blank title":  `{"title":"   "}`,
		"bad status":   `{"title":"x","status":"Blocked"}`,
		"bad due date": `{"title":"x","dueDate":"tomorrow-ish"}`,
		"malformed":    `{"title":`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w := do(r, http.MethodPost, "/tasks", body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.NotEmpty(t, decode(t, w)["error"])
		})
	}
}

func TestCreateTaskInternalError(t *testing.T) {
	r := newEngine(&fakeTasks{err: errors.New("db down")}, &fakeComments{})

	w := do(r, http.MethodPost, "/tasks", `{"title":"x"}`)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode(t, w)
	assert.Equal(t, CodeCreateTask, body["code"])
	assert.Equal(t, "db down", body["message"])
}

func TestUpdateTask(t *testing.T) {
	tasks := &fakeTasks{}
	r := newEngine(tasks, &fakeComments{})

	w := do(r, http.MethodPut, "/tasks/t9", `{"status":"Done","dueDate":null}`)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "t9", body["taskId"])
	assert.Equal(t, model.StatusDone, body["status"])
	assert.True(t, tasks.changes.DueDate.Set)
	assert.Nil(t, tasks.changes.DueDate.Value)
}

func TestUpdateTaskEmptyBody(t *testing.T) {
	tasks := &fakeTasks{}
	r := newEngine(tasks, &fakeComments{})

	w := do(r, http.MethodPut, "/tasks/t9", ``)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, tasks.changes.Empty())
}

func TestUpdateTaskNotFound(t *testing.T) {
	r := newEngine(&fakeTasks{err: model.ErrTaskNotFound}, &fakeComments{})

	w := do(r, http.MethodPut, "/tasks/missing", `{"title":"x"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Task not found", decode(t, w)["error"])
}

func TestDeleteTask(t *testing.T) {
	r := newEngine(&fakeTasks{}, &fakeComments{})

	w := do(r, http.MethodDelete, "/tasks/t1", ``)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Task deleted successfully", decode(t, w)["message"])

	r = newEngine(&fakeTasks{err: model.ErrTaskNotFound}, &fakeComments{})
	w = do(r, http.MethodDelete, "/tasks/t1", ``)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListTasks(t *testing.T) {
	r := newEngine(&fakeTasks{tasks: []model.Task{{TaskID: "a"}, {TaskID: "b"}}}, &fakeComments{})

	w := do(r, http.MethodGet, "/tasks", ``)
	require.Equal(t, http.StatusOK, w.Code)
	var out []model.Task
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Len(t, out, 2)

	r = newEngine(&fakeTasks{err: errors.New("boom")}, &fakeComments{})
	w = do(r, http.MethodGet, "/tasks", ``)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, CodeGetTasks, decode(t, w)["code"])
}

func TestListActivity(t *testing.T) {
	r := newEngine(&fakeTasks{}, &fakeComments{})

	w := do(r, http.MethodGet, "/tasks/t1/activity", ``)
	require.Equal(t, http.StatusOK, w.Code)
	var out []model.ActivityRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "t1", out[0].TaskID)
}

func TestComments(t *testing.T) {
	comments := &fakeComments{}
	r := newEngine(&fakeTasks{}, comments)

	w := do(r, http.MethodPost, "/tasks/t1/comments", `{"content":"looks good"}`, "X-Test-Caller", "u2")
	require.Equal(t, http.StatusCreated, w.Code)
	body := decode(t, w)
	assert.Equal(t, "u2", body["userId"])
	assert.Equal(t, "looks good", comments.content)

	w = do(r, http.MethodPost, "/tasks/t1/comments", `{"content":""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodGet, "/tasks/t1/comments", ``)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}
