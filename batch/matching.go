package batch

import (
	"context"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/geonexus/extractd/domain"
	"github.com/geonexus/extractd/matching"
	"github.com/geonexus/extractd/notify"
	"github.com/geonexus/extractd/store"
)

// workspaceAttempts bounds the collision retries when picking a random
// workspace folder name.
const workspaceAttempts = 5

// RequestMatchingProcessor routes freshly imported requests to a process by
// evaluating their connector's rules, and provisions the on-disk workspace
// of matched requests.
type RequestMatchingProcessor struct {
	requests *store.RequestStore
	rules    *store.RuleStore
	users    *store.UserStore
	matcher  *matching.Matcher
	notifier *notify.Notifier
	basePath string
	logger   *zap.SugaredLogger
}

// NewRequestMatchingProcessor creates the matching processor.
func NewRequestMatchingProcessor(requests *store.RequestStore, rules *store.RuleStore,
	users *store.UserStore, matcher *matching.Matcher, notifier *notify.Notifier,
	basePath string, logger *zap.SugaredLogger) *RequestMatchingProcessor {
	return &RequestMatchingProcessor{
		requests: requests,
		rules:    rules,
		users:    users,
		matcher:  matcher,
		notifier: notifier,
		basePath: basePath,
		logger:   logger,
	}
}

// Run processes every imported request once.
func (p *RequestMatchingProcessor) Run(ctx context.Context) {
	imported, err := p.requests.ByStatus(domain.StatusImported)
	if err != nil {
		logListFailure(p.logger, "Failed to list imported requests", err)
		return
	}

	for _, request := range imported {
		if ctx.Err() != nil {
			return
		}
		p.Process(ctx, request)
	}
}

// Process matches one imported request. On a match the request gets its
// workspace, target process and ongoing status; with no matching rule it is
// flagged unmatched and the administrators are notified. Folder creation
// failure aborts without mutating the request, leaving it for the next tick.
func (p *RequestMatchingProcessor) Process(ctx context.Context, request *domain.Request) {
	rules, err := p.rules.ActiveByConnector(request.ConnectorID)
	if err != nil {
		p.logger.Errorw("Failed to load rules for request",
			"request_id", request.ID, "error", err)
		return
	}

	matched := p.matcher.Match(request, rules)
	if matched == nil {
		p.markUnmatched(ctx, request)
		return
	}

	rootName, err := p.createWorkspace()
	if err != nil {
		p.logger.Errorw("Failed to create workspace for request",
			"request_id", request.ID, "error", err)
		return
	}

	request.ProcessID = matched.ProcessID
	request.FolderIn = filepath.Join(rootName, "input")
	request.FolderOut = filepath.Join(rootName, "output")
	request.Status = domain.StatusOngoing
	request.TaskNum = 1

	if err := p.requests.Update(request); err != nil {
		p.logger.Errorw("Failed to persist matched request",
			"request_id", request.ID, "error", err)
		return
	}

	p.logger.Infow("Request matched",
		"request_id", request.ID,
		"rule_id", matched.ID,
		"process_id", matched.ProcessID,
		"workspace", rootName)
}

func (p *RequestMatchingProcessor) markUnmatched(ctx context.Context, request *domain.Request) {
	admins, err := p.users.ActiveAdministrators()
	if err != nil {
		p.logger.Errorw("Failed to load administrators", "error", err)
		admins = nil
	}

	if err := p.notifier.NotifyUnmatchedRequest(ctx, request, admins); err != nil {
		p.logger.Errorw("Failed to notify administrators about unmatched request",
			"request_id", request.ID, "error", err)
	}

	request.Status = domain.StatusUnmatched
	if err := p.requests.Update(request); err != nil {
		p.logger.Errorw("Failed to persist unmatched request",
			"request_id", request.ID, "error", err)
		return
	}

	p.logger.Infow("Request matched no rule", "request_id", request.ID)
}

// createWorkspace provisions a uniquely named request folder with input and
// output subfolders and returns the root name relative to the base path.
// Name collisions are retried with a fresh random name.
func (p *RequestMatchingProcessor) createWorkspace() (string, error) {
	var lastErr error
	for attempt := 0; attempt < workspaceAttempts; attempt++ {
		rootName := uuid.NewString()
		rootPath := filepath.Join(p.basePath, rootName)

		if err := os.Mkdir(rootPath, 0o755); err != nil {
			lastErr = err
			if os.IsExist(err) {
				continue
			}
			return "", err
		}

		for _, sub := range []string{"input", "output"} {
			if err := os.Mkdir(filepath.Join(rootPath, sub), 0o755); err != nil {
				// Partial trees may stay on disk; the request is untouched
				return "", err
			}
		}

		return rootName, nil
	}
	return "", lastErr
}
