package batch

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/geonexus/extractd/config"
	"github.com/geonexus/extractd/domain"
	"github.com/geonexus/extractd/errors"
	extracttest "github.com/geonexus/extractd/internal/testing"
	"github.com/geonexus/extractd/notify"
	"github.com/geonexus/extractd/plugin"
	"github.com/geonexus/extractd/store"
)

// captureSender records notification messages, optionally failing every send.
type captureSender struct {
	sent    []notify.Message
	failAll bool
}

func (s *captureSender) Send(ctx context.Context, msg notify.Message) error {
	if s.failAll {
		return errors.New("smtp relay down")
	}
	s.sent = append(s.sent, msg)
	return nil
}

type env struct {
	db         *sql.DB
	requests   *store.RequestStore
	rules      *store.RuleStore
	users      *store.UserStore
	tasks      *store.TaskStore
	history    *store.HistoryStore
	connectors *store.ConnectorStore
	registry   *plugin.Registry
	notifier   *notify.Notifier
	sender     *captureSender
	basePath   string
}

func newEnv(t *testing.T) *env {
	t.Helper()

	conn := extracttest.CreateTestDB(t)
	registry, err := plugin.NewRegistry("1.0.0")
	require.NoError(t, err)

	sender := &captureSender{}
	language := config.LanguageConfig{Default: "en", Available: []string{"en", "fr"}}

	return &env{
		db:         conn,
		requests:   store.NewRequestStore(conn),
		rules:      store.NewRuleStore(conn),
		users:      store.NewUserStore(conn),
		tasks:      store.NewTaskStore(conn),
		history:    store.NewHistoryStore(conn),
		connectors: store.NewConnectorStore(conn),
		registry:   registry,
		notifier:   notify.NewNotifier(sender, language, zap.NewNop().Sugar()),
		sender:     sender,
		basePath:   t.TempDir(),
	}
}

func (e *env) seedConnector(t *testing.T, code string) int {
	t.Helper()
	result, err := e.db.Exec(
		`INSERT INTO connectors (name, connector_code, connector_params, import_frequency, active)
		 VALUES ('Orders', ?, '{"url":"https://orders.example.org"}', 60, 1)`, code)
	require.NoError(t, err)
	id, err := result.LastInsertId()
	require.NoError(t, err)
	return int(id)
}

func (e *env) seedProcess(t *testing.T, name string) int {
	t.Helper()
	result, err := e.db.Exec(`INSERT INTO processes (name) VALUES (?)`, name)
	require.NoError(t, err)
	id, err := result.LastInsertId()
	require.NoError(t, err)
	return int(id)
}

func (e *env) seedTask(t *testing.T, processID, position int, code, label string) {
	t.Helper()
	_, err := e.db.Exec(
		`INSERT INTO tasks (process_id, position, task_code, label, task_params)
		 VALUES (?, ?, ?, ?, '{}')`, processID, position, code, label)
	require.NoError(t, err)
}

func (e *env) seedRule(t *testing.T, connectorID, processID, position int, predicate string) {
	t.Helper()
	_, err := e.db.Exec(
		`INSERT INTO rules (connector_id, process_id, position, active, rule)
		 VALUES (?, ?, ?, 1, ?)`, connectorID, processID, position, predicate)
	require.NoError(t, err)
}

func (e *env) seedAdmin(t *testing.T, email string) {
	t.Helper()
	_, err := e.db.Exec(
		`INSERT INTO users (login, name, email, profile, locale, active)
		 VALUES (?, ?, ?, 'ADMIN', 'en', 1)`, email, email, email)
	require.NoError(t, err)
}

// seedOperator links a user to a process as operator, reusing the user row
// when the login already exists.
func (e *env) seedOperator(t *testing.T, processID int, email string) {
	t.Helper()

	var userID int64
	err := e.db.QueryRow(`SELECT id FROM users WHERE login = ?`, email).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		result, insertErr := e.db.Exec(
			`INSERT INTO users (login, name, email, profile, locale, active)
			 VALUES (?, ?, ?, 'OPERATOR', 'en', 1)`, email, email, email)
		require.NoError(t, insertErr)
		userID, insertErr = result.LastInsertId()
		require.NoError(t, insertErr)
	} else {
		require.NoError(t, err)
	}

	_, err = e.db.Exec(
		`INSERT INTO process_operators (process_id, user_id) VALUES (?, ?)`,
		processID, userID)
	require.NoError(t, err)
}

func (e *env) seedRequest(t *testing.T, request *domain.Request) *domain.Request {
	t.Helper()
	if request.StartDate.IsZero() {
		request.StartDate = time.Now().UTC().Truncate(time.Second)
	}
	require.NoError(t, e.requests.Create(request))
	return request
}

func (e *env) reload(t *testing.T, id int) *domain.Request {
	t.Helper()
	request, err := e.requests.Get(id)
	require.NoError(t, err)
	return request
}

func nopLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
