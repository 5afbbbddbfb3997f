package store

import (
	"database/sql"

	"github.com/geonexus/extractd/domain"
	"github.com/geonexus/extractd/errors"
)

// UserStore handles persistence of application users
type UserStore struct {
	db *sql.DB
}

// NewUserStore creates a new user store
func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

// ActiveAdministrators retrieves the active users with the administrator
// profile.
func (s *UserStore) ActiveAdministrators() ([]*domain.User, error) {
	query := `
		SELECT id, login, name, email, profile, locale, active
		FROM users
		WHERE profile = ? AND active = 1
		ORDER BY id
	`

	users, err := s.queryUsers(query, string(domain.ProfileAdmin))
	if err != nil {
		return nil, errors.Wrap(err, "failed to list active administrators")
	}
	return users, nil
}

// ProcessOperators retrieves the active users associated with a process as
// operators.
func (s *UserStore) ProcessOperators(processID int) ([]*domain.User, error) {
	query := `
		SELECT u.id, u.login, u.name, u.email, u.profile, u.locale, u.active
		FROM users u
		JOIN process_operators po ON po.user_id = u.id
		WHERE po.process_id = ? AND u.active = 1
		ORDER BY u.id
	`

	users, err := s.queryUsers(query, processID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list operators for process %d", processID)
	}
	return users, nil
}

func (s *UserStore) queryUsers(query string, args ...interface{}) ([]*domain.User, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		var user domain.User
		if err := rows.Scan(&user.ID, &user.Login, &user.Name, &user.Email,
			&user.Profile, &user.Locale, &user.Active); err != nil {
			return nil, errors.Wrap(err, "failed to scan user row")
		}
		users = append(users, &user)
	}

	return users, rows.Err()
}
