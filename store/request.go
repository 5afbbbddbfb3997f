// Package store handles persistence of the extraction request entities on
// SQLite through database/sql.
package store

import (
	"database/sql"
	"time"

	"github.com/geonexus/extractd/domain"
	"github.com/geonexus/extractd/errors"
)

// RequestStore handles persistence of requests
type RequestStore struct {
	db *sql.DB
}

// NewRequestStore creates a new request store
func NewRequestStore(db *sql.DB) *RequestStore {
	return &RequestStore{db: db}
}

const requestColumns = `
	id, connector_id, process_id, order_label, client, perimeter,
	parameters, folder_in, folder_out, status, task_num, rejected,
	remark, last_reminder, start_date, end_date
`

// Create inserts a new request and assigns its ID.
func (s *RequestStore) Create(r *domain.Request) error {
	query := `
		INSERT INTO requests (
			connector_id, process_id, order_label, client, perimeter,
			parameters, folder_in, folder_out, status, task_num, rejected,
			remark, last_reminder, start_date, end_date
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.Exec(query,
		r.ConnectorID,
		nullableID(r.ProcessID),
		r.OrderLabel,
		r.Client,
		r.Perimeter,
		r.Parameters,
		r.FolderIn,
		r.FolderOut,
		string(r.Status),
		r.TaskNum,
		r.Rejected,
		r.Remark,
		nullableTime(r.LastReminder),
		r.StartDate.Format(time.RFC3339),
		nullableTime(r.EndDate),
	)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}

	id, err := result.LastInsertId()
	if err != nil {
		return errors.Wrap(err, "failed to read request id")
	}
	r.ID = int(id)

	return nil
}

// Update persists every mutable field of the request.
func (s *RequestStore) Update(r *domain.Request) error {
	query := `
		UPDATE requests SET
			process_id = ?, order_label = ?, client = ?, perimeter = ?,
			parameters = ?, folder_in = ?, folder_out = ?, status = ?,
			task_num = ?, rejected = ?, remark = ?, last_reminder = ?,
			end_date = ?
		WHERE id = ?
	`

	result, err := s.db.Exec(query,
		nullableID(r.ProcessID),
		r.OrderLabel,
		r.Client,
		r.Perimeter,
		r.Parameters,
		r.FolderIn,
		r.FolderOut,
		string(r.Status),
		r.TaskNum,
		r.Rejected,
		r.Remark,
		nullableTime(r.LastReminder),
		nullableTime(r.EndDate),
		r.ID,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to update request %d", r.ID)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read affected rows")
	}
	if rows == 0 {
		return errors.NewNotFoundError("request")
	}

	return nil
}

// Get retrieves a request by ID.
func (s *RequestStore) Get(id int) (*domain.Request, error) {
	row := s.db.QueryRow(`SELECT `+requestColumns+` FROM requests WHERE id = ?`, id)

	request, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFoundError("request")
		}
		return nil, errors.Wrapf(err, "failed to get request %d", id)
	}

	return request, nil
}

// ByStatus retrieves every request in the given status, oldest first.
func (s *RequestStore) ByStatus(status domain.RequestStatus) ([]*domain.Request, error) {
	rows, err := s.db.Query(
		`SELECT `+requestColumns+` FROM requests WHERE status = ? ORDER BY id`,
		string(status))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list requests in status %s", status)
	}
	defer rows.Close()

	var requests []*domain.Request
	for rows.Next() {
		request, err := scanRequest(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan request row")
		}
		requests = append(requests, request)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate request rows")
	}

	return requests, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRequest(row rowScanner) (*domain.Request, error) {
	var r domain.Request
	var processID sql.NullInt64
	var status, startDate string
	var lastReminder, endDate sql.NullString

	err := row.Scan(
		&r.ID,
		&r.ConnectorID,
		&processID,
		&r.OrderLabel,
		&r.Client,
		&r.Perimeter,
		&r.Parameters,
		&r.FolderIn,
		&r.FolderOut,
		&status,
		&r.TaskNum,
		&r.Rejected,
		&r.Remark,
		&lastReminder,
		&startDate,
		&endDate,
	)
	if err != nil {
		return nil, err
	}

	if processID.Valid {
		r.ProcessID = int(processID.Int64)
	}
	r.Status = domain.RequestStatus(status)

	r.StartDate, err = time.Parse(time.RFC3339, startDate)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse start_date for request %d", r.ID)
	}

	if r.LastReminder, err = parseNullTime(lastReminder, "last_reminder", r.ID); err != nil {
		return nil, err
	}
	if r.EndDate, err = parseNullTime(endDate, "end_date", r.ID); err != nil {
		return nil, err
	}

	return &r, nil
}

func parseNullTime(value sql.NullString, column string, requestID int) (*time.Time, error) {
	if !value.Valid {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, value.String)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s for request %d", column, requestID)
	}
	return &parsed, nil
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}

func nullableID(id int) interface{} {
	if id == 0 {
		return nil
	}
	return id
}
