package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/geonexus/extractd/domain"
	"github.com/geonexus/extractd/notify"
	"github.com/geonexus/extractd/plugin"
	"github.com/geonexus/extractd/store"
)

// exportTaskLabel names the export step in the request history.
const exportTaskLabel = "Export"

// ExportRequestProcessor pushes the result of requests that completed their
// task pipeline back to the source system through the owning connector
// plugin.
type ExportRequestProcessor struct {
	requests   *store.RequestStore
	connectors *store.ConnectorStore
	tasks      *store.TaskStore
	users      *store.UserStore
	history    *store.HistoryStore
	registry   *plugin.Registry
	notifier   *notify.Notifier
	basePath   string
	locale     string
	logger     *zap.SugaredLogger

	// now is replaceable in tests
	now func() time.Time
}

// NewExportRequestProcessor creates the export processor.
func NewExportRequestProcessor(requests *store.RequestStore, connectors *store.ConnectorStore,
	tasks *store.TaskStore, users *store.UserStore, history *store.HistoryStore,
	registry *plugin.Registry, notifier *notify.Notifier, basePath, locale string,
	logger *zap.SugaredLogger) *ExportRequestProcessor {
	return &ExportRequestProcessor{
		requests:   requests,
		connectors: connectors,
		tasks:      tasks,
		users:      users,
		history:    history,
		registry:   registry,
		notifier:   notifier,
		basePath:   basePath,
		locale:     locale,
		logger:     logger,
		now:        time.Now,
	}
}

// Run processes every request ready for export once.
func (p *ExportRequestProcessor) Run(ctx context.Context) {
	ready, err := p.requests.ByStatus(domain.StatusToExport)
	if err != nil {
		logListFailure(p.logger, "Failed to list requests ready for export", err)
		return
	}

	for _, request := range ready {
		if ctx.Err() != nil {
			return
		}
		p.Process(ctx, request)
	}
}

// Process exports one request. Every attempt opens a history record first,
// then checks availability. Transient conditions (plugin not registered, base
// folder missing) leave the request unchanged so the next tick retries it;
// the opened record stays ongoing and each retry appends its own step. A
// plugin result decides the terminal outcome: success finishes the request
// and removes its workspace, failure flags it and notifies the operators and
// administrators.
func (p *ExportRequestProcessor) Process(ctx context.Context, request *domain.Request) {
	record, err := p.openHistoryRecord(request)
	if err != nil {
		p.logger.Errorw("Failed to open export history record",
			"request_id", request.ID, "error", err)
		return
	}

	instance, ok := p.resolveConnector(request)
	if !ok {
		return
	}

	if _, err := os.Stat(p.basePath); err != nil {
		p.logger.Errorw("Requests base folder unavailable, postponing export",
			"request_id", request.ID, "base_path", p.basePath, "error", err)
		return
	}

	result := p.export(instance, request)

	if result.Success {
		p.finishRequest(request, record)
		return
	}
	p.failRequest(ctx, request, record, composeErrorMessage(result))
}

func (p *ExportRequestProcessor) resolveConnector(request *domain.Request) (plugin.Connector, bool) {
	connector, err := p.connectors.Get(request.ConnectorID)
	if err != nil {
		p.logger.Errorw("Failed to load connector for export",
			"request_id", request.ID, "error", err)
		return nil, false
	}

	template, err := p.registry.Connector(connector.ConnectorCode)
	if err != nil {
		p.logger.Errorw("Connector plugin unavailable, postponing export",
			"request_id", request.ID,
			"connector_code", connector.ConnectorCode,
			"error", err)
		return nil, false
	}

	params, err := plugin.UnmarshalParamValues(connector.ConnectorParams)
	if err != nil {
		p.logger.Errorw("Invalid connector parameters, postponing export",
			"request_id", request.ID, "error", err)
		return nil, false
	}

	return template.NewInstance(p.locale, params), true
}

func (p *ExportRequestProcessor) openHistoryRecord(request *domain.Request) (*domain.RequestHistoryRecord, error) {
	taskCount, err := p.tasks.CountByProcess(request.ProcessID)
	if err != nil {
		return nil, err
	}
	step, err := p.history.NextStep(request.ID)
	if err != nil {
		return nil, err
	}

	record := &domain.RequestHistoryRecord{
		RequestID:   request.ID,
		Step:        step,
		ProcessStep: taskCount + 1,
		Status:      domain.HistoryOngoing,
		StartDate:   p.now(),
		TaskLabel:   exportTaskLabel,
		UserLogin:   "system",
	}
	if err := p.history.Append(record); err != nil {
		return nil, err
	}
	return record, nil
}

// export invokes the plugin, converting a nil result or a panic into a
// failure result. A plugin must report failures through its result; the
// recover is a boundary guard, not an expected path.
func (p *ExportRequestProcessor) export(instance plugin.Connector,
	request *domain.Request) (result plugin.ExportResult) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Errorw("Connector plugin panicked during export",
				"request_id", request.ID, "panic", r)
			result = plugin.ExportResult{Success: false,
				ResultMessage: fmt.Sprintf("plugin panic: %v", r)}
		}
	}()

	exported := instance.ExportResult(exportView{request: request, basePath: p.basePath})
	if exported == nil {
		return plugin.ExportResult{Success: false, ResultMessage: "Empty result returned"}
	}
	return *exported
}

func (p *ExportRequestProcessor) finishRequest(request *domain.Request,
	record *domain.RequestHistoryRecord) {
	end := p.now()

	record.Close(domain.HistoryFinished, end)
	if err := p.history.Update(record); err != nil {
		p.logger.Errorw("Failed to close export history record",
			"request_id", request.ID, "error", err)
	}

	request.Status = domain.StatusFinished
	request.EndDate = &end
	if err := p.requests.Update(request); err != nil {
		p.logger.Errorw("Failed to persist finished request",
			"request_id", request.ID, "error", err)
		return
	}

	p.removeWorkspace(request)
	p.logger.Infow("Request exported", "request_id", request.ID)
}

func (p *ExportRequestProcessor) failRequest(ctx context.Context, request *domain.Request,
	record *domain.RequestHistoryRecord, message string) {
	recipients := p.failureRecipients(request)
	if err := p.notifier.NotifyExportFailure(ctx, request, message, recipients); err != nil {
		p.logger.Errorw("Failed to notify about export failure",
			"request_id", request.ID, "error", err)
	}

	record.SetToError(message, p.now())
	if err := p.history.Update(record); err != nil {
		p.logger.Errorw("Failed to close export history record",
			"request_id", request.ID, "error", err)
	}

	request.Status = domain.StatusExportFail
	if err := p.requests.Update(request); err != nil {
		p.logger.Errorw("Failed to persist failed export",
			"request_id", request.ID, "error", err)
		return
	}

	p.logger.Warnw("Request export failed",
		"request_id", request.ID, "message", message)
}

func (p *ExportRequestProcessor) failureRecipients(request *domain.Request) []*domain.User {
	operators, err := p.users.ProcessOperators(request.ProcessID)
	if err != nil {
		p.logger.Errorw("Failed to load process operators", "error", err)
	}
	admins, err := p.users.ActiveAdministrators()
	if err != nil {
		p.logger.Errorw("Failed to load administrators", "error", err)
	}
	return notify.MergeRecipients(operators, admins)
}

// removeWorkspace deletes the request's data folder tree, best effort.
func (p *ExportRequestProcessor) removeWorkspace(request *domain.Request) {
	if request.FolderIn == "" {
		return
	}

	root := filepath.Join(p.basePath, rootFolder(request.FolderIn))
	if err := os.RemoveAll(root); err != nil {
		p.logger.Warnw("Failed to delete request workspace",
			"request_id", request.ID, "path", root, "error", err)
	}
}

// rootFolder extracts the per-request root from a stored relative path such
// as "uuid/input".
func rootFolder(relative string) string {
	for {
		dir := filepath.Dir(relative)
		if dir == "." || dir == string(filepath.Separator) {
			return relative
		}
		relative = dir
	}
}

// composeErrorMessage joins a failure result's message and details.
func composeErrorMessage(result plugin.ExportResult) string {
	if result.ErrorDetails == "" {
		return result.ResultMessage
	}
	return fmt.Sprintf("%s - %s", result.ResultMessage, result.ErrorDetails)
}
