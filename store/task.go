package store

import (
	"database/sql"

	"github.com/geonexus/extractd/domain"
	"github.com/geonexus/extractd/errors"
)

// TaskStore handles persistence of process task definitions
type TaskStore struct {
	db *sql.DB
}

// NewTaskStore creates a new task store
func NewTaskStore(db *sql.DB) *TaskStore {
	return &TaskStore{db: db}
}

// ByProcess retrieves the tasks of a process ordered by their position in
// the pipeline.
func (s *TaskStore) ByProcess(processID int) ([]*domain.Task, error) {
	query := `
		SELECT id, process_id, position, task_code, label, task_params
		FROM tasks
		WHERE process_id = ?
		ORDER BY position
	`

	rows, err := s.db.Query(query, processID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list tasks for process %d", processID)
	}
	defer rows.Close()

	var tasks []*domain.Task
	for rows.Next() {
		var task domain.Task
		var params sql.NullString
		if err := rows.Scan(&task.ID, &task.ProcessID, &task.Position,
			&task.TaskCode, &task.Label, &params); err != nil {
			return nil, errors.Wrap(err, "failed to scan task row")
		}
		if params.Valid {
			task.TaskParams = params.String
		}
		tasks = append(tasks, &task)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate task rows")
	}

	return tasks, nil
}

// CountByProcess returns the number of tasks configured on a process.
func (s *TaskStore) CountByProcess(processID int) (int, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM tasks WHERE process_id = ?`, processID).Scan(&count)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to count tasks for process %d", processID)
	}
	return count, nil
}

// ByProcessPosition retrieves the task at the given 1-based position of a
// process pipeline.
func (s *TaskStore) ByProcessPosition(processID, position int) (*domain.Task, error) {
	var task domain.Task
	var params sql.NullString

	err := s.db.QueryRow(
		`SELECT id, process_id, position, task_code, label, task_params
		 FROM tasks WHERE process_id = ? AND position = ?`,
		processID, position).Scan(&task.ID, &task.ProcessID, &task.Position,
		&task.TaskCode, &task.Label, &params)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFoundError("task")
		}
		return nil, errors.Wrapf(err, "failed to get task %d of process %d", position, processID)
	}

	if params.Valid {
		task.TaskParams = params.String
	}

	return &task, nil
}
