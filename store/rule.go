package store

import (
	"database/sql"

	"github.com/geonexus/extractd/domain"
	"github.com/geonexus/extractd/errors"
)

// RuleStore handles persistence of connector matching rules
type RuleStore struct {
	db *sql.DB
}

// NewRuleStore creates a new rule store
func NewRuleStore(db *sql.DB) *RuleStore {
	return &RuleStore{db: db}
}

// ActiveByConnector retrieves the active rules of a connector ordered by
// their evaluation position. The order is the matching priority.
func (s *RuleStore) ActiveByConnector(connectorID int) ([]*domain.Rule, error) {
	query := `
		SELECT id, connector_id, process_id, position, active, rule
		FROM rules
		WHERE connector_id = ? AND active = 1
		ORDER BY position
	`

	rows, err := s.db.Query(query, connectorID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list rules for connector %d", connectorID)
	}
	defer rows.Close()

	var rules []*domain.Rule
	for rows.Next() {
		var rule domain.Rule
		if err := rows.Scan(&rule.ID, &rule.ConnectorID, &rule.ProcessID,
			&rule.Position, &rule.Active, &rule.Rule); err != nil {
			return nil, errors.Wrap(err, "failed to scan rule row")
		}
		rules = append(rules, &rule)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate rule rows")
	}

	return rules, nil
}

// Create inserts a new rule and assigns its ID.
func (s *RuleStore) Create(rule *domain.Rule) error {
	result, err := s.db.Exec(
		`INSERT INTO rules (connector_id, process_id, position, active, rule)
		 VALUES (?, ?, ?, ?, ?)`,
		rule.ConnectorID, rule.ProcessID, rule.Position, rule.Active, rule.Rule)
	if err != nil {
		return errors.Wrap(err, "failed to create rule")
	}

	id, err := result.LastInsertId()
	if err != nil {
		return errors.Wrap(err, "failed to read rule id")
	}
	rule.ID = int(id)

	return nil
}
