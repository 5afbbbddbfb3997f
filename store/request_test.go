package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geonexus/extractd/domain"
	"github.com/geonexus/extractd/errors"
	extracttest "github.com/geonexus/extractd/internal/testing"
	"github.com/geonexus/extractd/internal/util"
)

func seedConnector(t *testing.T, s *ConnectorStore) int {
	t.Helper()
	result, err := s.db.Exec(
		`INSERT INTO connectors (name, connector_code, connector_params, import_frequency, active)
		 VALUES ('Orders', 'easysdi_v4', '{"url":"https://orders.example.org"}', 60, 1)`)
	require.NoError(t, err)

	id, err := result.LastInsertId()
	require.NoError(t, err)
	return int(id)
}

func seedProcess(t *testing.T, s *RequestStore, name string) int {
	t.Helper()
	result, err := s.db.Exec(`INSERT INTO processes (name) VALUES (?)`, name)
	require.NoError(t, err)
	id, err := result.LastInsertId()
	require.NoError(t, err)
	return int(id)
}

func TestRequestStoreCreateAndGet(t *testing.T) {
	conn := extracttest.CreateTestDB(t)
	connectors := NewConnectorStore(conn)
	requests := NewRequestStore(conn)

	connectorID := seedConnector(t, connectors)

	start := time.Date(2026, 8, 14, 9, 30, 0, 0, time.UTC)
	request := &domain.Request{
		ConnectorID: connectorID,
		OrderLabel:  "443530",
		Client:      "Crown Ltd",
		Perimeter:   "POLYGON((6.5 46.5, 6.6 46.5, 6.6 46.6, 6.5 46.5))",
		Parameters:  `{"FORMAT":"DXF"}`,
		Status:      domain.StatusImported,
		StartDate:   start,
	}

	require.NoError(t, requests.Create(request))
	require.NotZero(t, request.ID)

	loaded, err := requests.Get(request.ID)
	require.NoError(t, err)

	assert.Equal(t, request.OrderLabel, loaded.OrderLabel)
	assert.Equal(t, domain.StatusImported, loaded.Status)
	assert.False(t, loaded.Matched())
	assert.Nil(t, loaded.EndDate)
	assert.Nil(t, loaded.LastReminder)
	assert.True(t, start.Equal(loaded.StartDate))
}

func TestRequestStoreGetNotFound(t *testing.T) {
	conn := extracttest.CreateTestDB(t)
	requests := NewRequestStore(conn)

	_, err := requests.Get(12345)
	assert.True(t, errors.IsNotFoundError(err))
}

func TestRequestStoreUpdate(t *testing.T) {
	conn := extracttest.CreateTestDB(t)
	connectors := NewConnectorStore(conn)
	requests := NewRequestStore(conn)

	connectorID := seedConnector(t, connectors)
	processID := seedProcess(t, requests, "Extraction")

	request := &domain.Request{
		ConnectorID: connectorID,
		OrderLabel:  "443531",
		Status:      domain.StatusImported,
		StartDate:   time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, requests.Create(request))

	end := time.Date(2026, 8, 14, 17, 0, 0, 0, time.UTC)
	request.ProcessID = processID
	request.Status = domain.StatusFinished
	request.TaskNum = 3
	request.FolderIn = "a1b2c3/input"
	request.FolderOut = "a1b2c3/output"
	request.Remark = "validated"
	request.LastReminder = util.Ptr(end.Add(-time.Hour))
	request.EndDate = &end
	require.NoError(t, requests.Update(request))

	loaded, err := requests.Get(request.ID)
	require.NoError(t, err)

	assert.Equal(t, processID, loaded.ProcessID)
	assert.True(t, loaded.Matched())
	assert.Equal(t, domain.StatusFinished, loaded.Status)
	assert.Equal(t, 3, loaded.TaskNum)
	assert.Equal(t, "a1b2c3/input", loaded.FolderIn)
	require.NotNil(t, loaded.EndDate)
	assert.True(t, end.Equal(*loaded.EndDate))
	require.NotNil(t, loaded.LastReminder)
}

func TestRequestStoreUpdateMissing(t *testing.T) {
	conn := extracttest.CreateTestDB(t)
	requests := NewRequestStore(conn)

	err := requests.Update(&domain.Request{ID: 999, Status: domain.StatusError,
		StartDate: time.Now()})
	assert.True(t, errors.IsNotFoundError(err))
}

func TestRequestStoreByStatusOrdering(t *testing.T) {
	conn := extracttest.CreateTestDB(t)
	connectors := NewConnectorStore(conn)
	requests := NewRequestStore(conn)

	connectorID := seedConnector(t, connectors)
	now := time.Now().UTC().Truncate(time.Second)

	for _, label := range []string{"first", "second", "third"} {
		require.NoError(t, requests.Create(&domain.Request{
			ConnectorID: connectorID,
			OrderLabel:  label,
			Status:      domain.StatusImported,
			StartDate:   now,
		}))
	}
	require.NoError(t, requests.Create(&domain.Request{
		ConnectorID: connectorID,
		OrderLabel:  "other",
		Status:      domain.StatusError,
		StartDate:   now,
	}))

	imported, err := requests.ByStatus(domain.StatusImported)
	require.NoError(t, err)
	require.Len(t, imported, 3)
	assert.Equal(t, "first", imported[0].OrderLabel)
	assert.Equal(t, "second", imported[1].OrderLabel)
	assert.Equal(t, "third", imported[2].OrderLabel)

	finished, err := requests.ByStatus(domain.StatusFinished)
	require.NoError(t, err)
	assert.Empty(t, finished)
}
