package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"taskboard/internal/model"
	"taskboard/pkg/logger"
	"taskboard/pkg/metrics"
)

const taskColumns = `owner_id, task_id, title, description, status, due_date, assigned_to, created_by, created_at, updated_at`

type TaskRepository struct {
	db     DBTX
	logger *zap.Logger
}

func NewTaskRepository(db DBTX, log *zap.Logger) *TaskRepository {
	return &TaskRepository{
		db:     db,
		logger: logger.OrNop(log),
	}
}

func (r *TaskRepository) InsertTask(ctx context.Context, t *model.Task) error {
	defer observe("insert", "tasks", time.Now())

	query := `
        INSERT INTO tasks (` + taskColumns + `)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
    `
	_, err := r.db.Exec(ctx, query,
		t.OwnerID,
		t.TaskID,
		t.Title,
		t.Description,
		t.Status,
		dueDateArg(t.DueDate),
		nullableString(t.AssignedTo),
		t.CreatedBy,
		t.CreatedAt,
		t.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to insert task", zap.String("task_id", t.TaskID), zap.Error(err))
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

func (r *TaskRepository) GetTask(ctx context.Context, ownerID, taskID string) (*model.Task, error) {
	defer observe("get", "tasks", time.Now())

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE owner_id = $1 AND task_id = $2`
	t, err := scanTask(r.db.QueryRow(ctx, query, ownerID, taskID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// UpdateTask applies changes unconditionally and returns the updated row.
func (r *TaskRepository) UpdateTask(ctx context.Context, ownerID, taskID string, changes model.TaskChanges, updatedAt int64) (*model.Task, error) {
	defer observe("update", "tasks", time.Now())

	query, args := buildTaskUpdate(ownerID, taskID, changes, updatedAt)
	t, err := scanTask(r.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrTaskNotFound
	}
	if err != nil {
		r.logger.Error("Failed to update task", zap.String("task_id", taskID), zap.Error(err))
		return nil, fmt.Errorf("update task: %w", err)
	}
	return t, nil
}

// DeleteTask removes the task and returns what was deleted.
func (r *TaskRepository) DeleteTask(ctx context.Context, ownerID, taskID string) (*model.Task, error) {
	defer observe("delete", "tasks", time.Now())

	query := `DELETE FROM tasks WHERE owner_id = $1 AND task_id = $2 RETURNING ` + taskColumns
	t, err := scanTask(r.db.QueryRow(ctx, query, ownerID, taskID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("delete task: %w", err)
	}
	return t, nil
}

func (r *TaskRepository) ListTasksByOwner(ctx context.Context, ownerID string) ([]model.Task, error) {
	defer observe("list", "tasks", time.Now())

	query := `
        SELECT ` + taskColumns + `
        FROM tasks
        WHERE owner_id = $1
        ORDER BY created_at DESC
    `
	rows, err := r.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return collectTasks(rows)
}

// ListReminderCandidates returns open tasks due in (from, to], served by the
// partial due_date index.
func (r *TaskRepository) ListReminderCandidates(ctx context.Context, from, to time.Time) ([]model.Task, error) {
	defer observe("list_reminder_candidates", "tasks", time.Now())

	query := `
        SELECT ` + taskColumns + `
        FROM tasks
        WHERE due_date IS NOT NULL
          AND status <> 'Done'
          AND due_date > $1
          AND due_date <= $2
        ORDER BY due_date
    `
	rows, err := r.db.Query(ctx, query, from.UnixMilli(), to.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("list reminder candidates: %w", err)
	}
	tasks, err := collectTasks(rows)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("Listed reminder candidates", zap.Int("count", len(tasks)))
	return tasks, nil
}

// buildTaskUpdate renders an UPDATE touching only the fields present in changes.
func buildTaskUpdate(ownerID, taskID string, c model.TaskChanges, updatedAt int64) (string, []any) {
	sets := make([]string, 0, 6)
	args := make([]any, 0, 8)

	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if c.Title != nil {
		add("title", *c.Title)
	}
	if c.Description != nil {
		add("description", *c.Description)
	}
	if c.Status != nil {
		add("status", *c.Status)
	}
	if c.DueDate.Set {
		add("due_date", dueDateArg(c.DueDate.Value))
	}
	if c.AssignedTo != nil {
		add("assigned_to", nullableString(*c.AssignedTo))
	}
	add("updated_at", updatedAt)

	args = append(args, ownerID, taskID)
	query := fmt.Sprintf(
		`UPDATE tasks SET %s WHERE owner_id = $%d AND task_id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args)-1, len(args), taskColumns,
	)
	return query, args
}

func scanTask(row pgx.Row) (*model.Task, error) {
	var (
		t          model.Task
		dueDate    *int64
		assignedTo *string
	)
	if err := row.Scan(
		&t.OwnerID,
		&t.TaskID,
		&t.Title,
		&t.Description,
		&t.Status,
		&dueDate,
		&assignedTo,
		&t.CreatedBy,
		&t.CreatedAt,
		&t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if dueDate != nil {
		d := model.DueDateFromMillis(*dueDate)
		t.DueDate = &d
	}
	if assignedTo != nil {
		t.AssignedTo = *assignedTo
	}
	return &t, nil
}

func collectTasks(rows pgx.Rows) ([]model.Task, error) {
	defer rows.Close()

	tasks := []model.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return tasks, nil
}

func dueDateArg(d *model.DueDate) *int64 {
	if d == nil {
		return nil
	}
	ms := d.Millis()
	return &ms
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func observe(operation, table string, start time.Time) {
	metrics.RecordDBQueryDuration(operation, table, time.Since(start))
}
