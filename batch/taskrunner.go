package batch

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/geonexus/extractd/domain"
	"github.com/geonexus/extractd/plugin"
	"github.com/geonexus/extractd/store"
)

// TaskRunner advances ongoing requests through their process pipeline, one
// task per request per tick.
type TaskRunner struct {
	requests *store.RequestStore
	tasks    *store.TaskStore
	history  *store.HistoryStore
	registry *plugin.Registry
	email    plugin.EmailSettings
	basePath string
	locale   string
	logger   *zap.SugaredLogger

	// now is replaceable in tests
	now func() time.Time
}

// NewTaskRunner creates the task runner.
func NewTaskRunner(requests *store.RequestStore, tasks *store.TaskStore,
	history *store.HistoryStore, registry *plugin.Registry, email plugin.EmailSettings,
	basePath, locale string, logger *zap.SugaredLogger) *TaskRunner {
	return &TaskRunner{
		requests: requests,
		tasks:    tasks,
		history:  history,
		registry: registry,
		email:    email,
		basePath: basePath,
		locale:   locale,
		logger:   logger,
		now:      time.Now,
	}
}

// Run executes the next pipeline task of every ongoing request once.
func (r *TaskRunner) Run(ctx context.Context) {
	ongoing, err := r.requests.ByStatus(domain.StatusOngoing)
	if err != nil {
		logListFailure(r.logger, "Failed to list ongoing requests", err)
		return
	}

	for _, request := range ongoing {
		if ctx.Err() != nil {
			return
		}
		r.Process(ctx, request)
	}
}

// Process executes the task at the request's current cursor position.
// A successful task advances the cursor, moving the request to export after
// the last one. An error or standby outcome halts the pipeline with the
// matching status; a not-run outcome leaves the request untouched so the
// next tick retries the same task.
func (r *TaskRunner) Process(ctx context.Context, request *domain.Request) {
	task, err := r.tasks.ByProcessPosition(request.ProcessID, request.TaskNum)
	if err != nil {
		r.logger.Errorw("Failed to load current task of request",
			"request_id", request.ID, "task_num", request.TaskNum, "error", err)
		return
	}

	instance, ok := r.resolveProcessor(request, task)
	if !ok {
		return
	}

	result := r.execute(instance, request)
	if result.Status == plugin.TaskNotRun {
		r.logger.Debugw("Task could not start, retrying on next tick",
			"request_id", request.ID, "task", task.Label, "message", result.Message)
		return
	}

	record, err := r.openHistoryRecord(request, task)
	if err != nil {
		r.logger.Errorw("Failed to open task history record",
			"request_id", request.ID, "error", err)
		return
	}

	switch result.Status {
	case plugin.TaskSuccess:
		r.advance(request, record)

	case plugin.TaskStandby:
		record.Message = result.Message
		record.Close(domain.HistoryStandby, r.now())
		r.closeStep(request, record, domain.StatusStandby)

	default:
		record.SetToError(taskErrorMessage(result), r.now())
		r.closeStep(request, record, domain.StatusError)
	}
}

func (r *TaskRunner) resolveProcessor(request *domain.Request,
	task *domain.Task) (plugin.TaskProcessor, bool) {
	template, err := r.registry.TaskProcessor(task.TaskCode)
	if err != nil {
		r.logger.Errorw("Task plugin unavailable, postponing task",
			"request_id", request.ID, "task_code", task.TaskCode, "error", err)
		return nil, false
	}

	settings, err := plugin.UnmarshalParamValues(task.TaskParams)
	if err != nil {
		r.logger.Errorw("Invalid task parameters, postponing task",
			"request_id", request.ID, "task_code", task.TaskCode, "error", err)
		return nil, false
	}

	return template.NewInstance(r.locale, settings), true
}

// execute invokes the plugin, converting a panic into an error result at the
// contract boundary.
func (r *TaskRunner) execute(instance plugin.TaskProcessor,
	request *domain.Request) (result plugin.TaskResult) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Errorw("Task plugin panicked",
				"request_id", request.ID, "panic", rec)
			result = plugin.TaskResult{Status: plugin.TaskError,
				Message: fmt.Sprintf("plugin panic: %v", rec)}
		}
	}()

	return instance.Execute(taskView{request: request, basePath: r.basePath}, r.email)
}

func (r *TaskRunner) openHistoryRecord(request *domain.Request,
	task *domain.Task) (*domain.RequestHistoryRecord, error) {
	step, err := r.history.NextStep(request.ID)
	if err != nil {
		return nil, err
	}

	record := &domain.RequestHistoryRecord{
		RequestID:   request.ID,
		Step:        step,
		ProcessStep: request.TaskNum,
		Status:      domain.HistoryOngoing,
		StartDate:   r.now(),
		TaskLabel:   task.Label,
		UserLogin:   "system",
	}
	if err := r.history.Append(record); err != nil {
		return nil, err
	}
	return record, nil
}

func (r *TaskRunner) advance(request *domain.Request, record *domain.RequestHistoryRecord) {
	record.Close(domain.HistoryFinished, r.now())
	if err := r.history.Update(record); err != nil {
		r.logger.Errorw("Failed to close task history record",
			"request_id", request.ID, "error", err)
	}

	taskCount, err := r.tasks.CountByProcess(request.ProcessID)
	if err != nil {
		r.logger.Errorw("Failed to count process tasks",
			"request_id", request.ID, "error", err)
		return
	}

	request.TaskNum++
	if request.TaskNum > taskCount {
		request.Status = domain.StatusToExport
	}

	if err := r.requests.Update(request); err != nil {
		r.logger.Errorw("Failed to persist task progress",
			"request_id", request.ID, "error", err)
		return
	}

	r.logger.Infow("Task completed",
		"request_id", request.ID,
		"task_label", record.TaskLabel,
		"status", request.Status)
}

func (r *TaskRunner) closeStep(request *domain.Request,
	record *domain.RequestHistoryRecord, status domain.RequestStatus) {
	if err := r.history.Update(record); err != nil {
		r.logger.Errorw("Failed to close task history record",
			"request_id", request.ID, "error", err)
	}

	request.Status = status
	if err := r.requests.Update(request); err != nil {
		r.logger.Errorw("Failed to persist task outcome",
			"request_id", request.ID, "error", err)
		return
	}

	r.logger.Infow("Task halted pipeline",
		"request_id", request.ID,
		"task_label", record.TaskLabel,
		"status", status,
		"message", record.Message)
}

func taskErrorMessage(result plugin.TaskResult) string {
	if result.ErrorCode == "" {
		return result.Message
	}
	return fmt.Sprintf("%s (%s)", result.Message, result.ErrorCode)
}
