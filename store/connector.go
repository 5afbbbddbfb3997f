package store

import (
	"database/sql"
	"time"

	"github.com/geonexus/extractd/domain"
	"github.com/geonexus/extractd/errors"
)

// ConnectorStore handles persistence of connector instances
type ConnectorStore struct {
	db *sql.DB
}

// NewConnectorStore creates a new connector store
func NewConnectorStore(db *sql.DB) *ConnectorStore {
	return &ConnectorStore{db: db}
}

const connectorColumns = `
	id, name, connector_code, connector_params, import_frequency, active, last_import_date
`

// Active retrieves every active connector instance.
func (s *ConnectorStore) Active() ([]*domain.Connector, error) {
	rows, err := s.db.Query(
		`SELECT ` + connectorColumns + ` FROM connectors WHERE active = 1 ORDER BY id`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list active connectors")
	}
	defer rows.Close()

	var connectors []*domain.Connector
	for rows.Next() {
		connector, err := scanConnector(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan connector row")
		}
		connectors = append(connectors, connector)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate connector rows")
	}

	return connectors, nil
}

// Get retrieves a connector instance by ID.
func (s *ConnectorStore) Get(id int) (*domain.Connector, error) {
	row := s.db.QueryRow(`SELECT `+connectorColumns+` FROM connectors WHERE id = ?`, id)

	connector, err := scanConnector(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFoundError("connector")
		}
		return nil, errors.Wrapf(err, "failed to get connector %d", id)
	}

	return connector, nil
}

// SetLastImport records the time of the latest import run of a connector.
func (s *ConnectorStore) SetLastImport(id int, at time.Time) error {
	_, err := s.db.Exec(
		`UPDATE connectors SET last_import_date = ? WHERE id = ?`,
		at.Format(time.RFC3339), id)
	if err != nil {
		return errors.Wrapf(err, "failed to update last import date for connector %d", id)
	}
	return nil
}

func scanConnector(row rowScanner) (*domain.Connector, error) {
	var c domain.Connector
	var params, lastImport sql.NullString

	err := row.Scan(&c.ID, &c.Name, &c.ConnectorCode, &params,
		&c.ImportFrequency, &c.Active, &lastImport)
	if err != nil {
		return nil, err
	}

	if params.Valid {
		c.ConnectorParams = params.String
	}
	if lastImport.Valid {
		parsed, err := time.Parse(time.RFC3339, lastImport.String)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse last_import_date for connector %d", c.ID)
		}
		c.LastImportDate = &parsed
	}

	return &c, nil
}
