package store

import (
	"database/sql"

	"github.com/geonexus/extractd/errors"
)

// System parameter keys the orchestration core reads and writes.
const (
	ParamSchedulerMode       = "scheduler_mode"
	ParamSchedulerFrequency  = "scheduler_frequency"
	ParamSchedulerRanges     = "scheduler_ranges"
	ParamBasePath            = "base_path"
	ParamStandbyReminderDays = "standby_reminder_days"
)

// ParamStore handles persistence of system parameters as key/value pairs.
// Parameters hold the operator-editable runtime settings that override the
// static configuration file.
type ParamStore struct {
	db *sql.DB
}

// NewParamStore creates a new system parameter store
func NewParamStore(db *sql.DB) *ParamStore {
	return &ParamStore{db: db}
}

// Get retrieves the value of a system parameter.
// Returns ErrNotFound when the key has never been set.
func (s *ParamStore) Get(key string) (string, error) {
	var value string
	err := s.db.QueryRow(
		`SELECT value FROM system_parameters WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", errors.Wrapf(errors.ErrNotFound, "system parameter %s", key)
		}
		return "", errors.Wrapf(err, "failed to get system parameter %s", key)
	}
	return value, nil
}

// Set stores the value of a system parameter, creating or replacing it.
func (s *ParamStore) Set(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO system_parameters (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	if err != nil {
		return errors.Wrapf(err, "failed to set system parameter %s", key)
	}
	return nil
}
