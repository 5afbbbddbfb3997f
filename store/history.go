package store

import (
	"database/sql"
	"time"

	"github.com/geonexus/extractd/domain"
	"github.com/geonexus/extractd/errors"
)

// HistoryStore handles persistence of request history records
type HistoryStore struct {
	db *sql.DB
}

// NewHistoryStore creates a new history store
func NewHistoryStore(db *sql.DB) *HistoryStore {
	return &HistoryStore{db: db}
}

// NextStep returns the step number the next history record of a request
// should carry. Steps are monotonic per request, starting at 1.
func (s *HistoryStore) NextStep(requestID int) (int, error) {
	var maxStep sql.NullInt64
	err := s.db.QueryRow(
		`SELECT MAX(step) FROM request_history WHERE request_id = ?`,
		requestID).Scan(&maxStep)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to read history steps for request %d", requestID)
	}

	if !maxStep.Valid {
		return 1, nil
	}
	return int(maxStep.Int64) + 1, nil
}

// Append inserts a new history record and assigns its ID.
func (s *HistoryStore) Append(record *domain.RequestHistoryRecord) error {
	query := `
		INSERT INTO request_history (
			request_id, step, process_step, status, start_date, end_date,
			message, task_label, user_login
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.Exec(query,
		record.RequestID,
		record.Step,
		record.ProcessStep,
		string(record.Status),
		record.StartDate.Format(time.RFC3339),
		nullableTime(record.EndDate),
		record.Message,
		record.TaskLabel,
		record.UserLogin,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to append history record for request %d", record.RequestID)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return errors.Wrap(err, "failed to read history record id")
	}
	record.ID = int(id)

	return nil
}

// Update persists the closing fields of a history record.
func (s *HistoryStore) Update(record *domain.RequestHistoryRecord) error {
	result, err := s.db.Exec(
		`UPDATE request_history SET status = ?, end_date = ?, message = ? WHERE id = ?`,
		string(record.Status),
		nullableTime(record.EndDate),
		record.Message,
		record.ID,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to update history record %d", record.ID)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read affected rows")
	}
	if rows == 0 {
		return errors.NewNotFoundError("history record")
	}

	return nil
}

// ByRequest retrieves the history records of a request in step order.
func (s *HistoryStore) ByRequest(requestID int) ([]*domain.RequestHistoryRecord, error) {
	query := `
		SELECT id, request_id, step, process_step, status, start_date,
		       end_date, message, task_label, user_login
		FROM request_history
		WHERE request_id = ?
		ORDER BY step
	`

	rows, err := s.db.Query(query, requestID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list history for request %d", requestID)
	}
	defer rows.Close()

	var records []*domain.RequestHistoryRecord
	for rows.Next() {
		var record domain.RequestHistoryRecord
		var status, startDate string
		var endDate sql.NullString

		if err := rows.Scan(&record.ID, &record.RequestID, &record.Step,
			&record.ProcessStep, &status, &startDate, &endDate,
			&record.Message, &record.TaskLabel, &record.UserLogin); err != nil {
			return nil, errors.Wrap(err, "failed to scan history row")
		}

		record.Status = domain.HistoryStatus(status)
		record.StartDate, err = time.Parse(time.RFC3339, startDate)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse start_date for history record %d", record.ID)
		}
		if endDate.Valid {
			parsed, err := time.Parse(time.RFC3339, endDate.String)
			if err != nil {
				return nil, errors.Wrapf(err, "failed to parse end_date for history record %d", record.ID)
			}
			record.EndDate = &parsed
		}

		records = append(records, &record)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate history rows")
	}

	return records, nil
}
