package plugin

import (
	"sort"
	"sync"

	"github.com/Masterminds/semver/v3"

	"github.com/geonexus/extractd/errors"
	"github.com/geonexus/extractd/logger"
)

// Registry holds the connector and task processor plugins available to the
// orchestration core. Registration happens at startup; lookups are concurrent.
type Registry struct {
	mu          sync.RWMutex
	connectors  map[string]Connector
	tasks       map[string]TaskProcessor
	coreVersion *semver.Version
}

// NewRegistry creates a plugin registry for the given core version.
// The core version must be valid semver; plugins declaring a core version
// constraint are checked against it at registration time.
func NewRegistry(coreVersion string) (*Registry, error) {
	version, err := semver.NewVersion(coreVersion)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid core version %q", coreVersion)
	}

	return &Registry{
		connectors:  make(map[string]Connector),
		tasks:       make(map[string]TaskProcessor),
		coreVersion: version,
	}, nil
}

// RegisterConnector adds a connector plugin to the registry.
// Returns ErrConflict if a connector with the same code is already registered.
func (r *Registry) RegisterConnector(c Connector) error {
	meta := c.Metadata()
	if err := r.validate(meta); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.connectors[meta.Code]; exists {
		return errors.WithHint(
			errors.Wrapf(errors.ErrConflict, "connector plugin %s already registered", meta.Code),
			"each connector plugin code must be unique")
	}

	r.connectors[meta.Code] = c
	logger.Logger.Infow("Registered connector plugin",
		"code", meta.Code,
		"version", meta.Version)
	return nil
}

// RegisterTaskProcessor adds a task processor plugin to the registry.
// Returns ErrConflict if a processor with the same code is already registered.
func (r *Registry) RegisterTaskProcessor(p TaskProcessor) error {
	meta := p.Metadata()
	if err := r.validate(meta); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tasks[meta.Code]; exists {
		return errors.WithHint(
			errors.Wrapf(errors.ErrConflict, "task plugin %s already registered", meta.Code),
			"each task plugin code must be unique")
	}

	r.tasks[meta.Code] = p
	logger.Logger.Infow("Registered task plugin",
		"code", meta.Code,
		"version", meta.Version)
	return nil
}

// Connector returns the connector plugin registered under the given code.
func (r *Registry) Connector(code string) (Connector, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.connectors[code]
	if !ok {
		return nil, errors.Wrapf(errors.ErrPluginUnavailable, "connector plugin %s", code)
	}
	return c, nil
}

// TaskProcessor returns the task plugin registered under the given code.
func (r *Registry) TaskProcessor(code string) (TaskProcessor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.tasks[code]
	if !ok {
		return nil, errors.Wrapf(errors.ErrPluginUnavailable, "task plugin %s", code)
	}
	return p, nil
}

// ConnectorCodes returns the registered connector plugin codes, sorted.
func (r *Registry) ConnectorCodes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	codes := make([]string, 0, len(r.connectors))
	for code := range r.connectors {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// TaskProcessorCodes returns the registered task plugin codes, sorted.
func (r *Registry) TaskProcessorCodes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	codes := make([]string, 0, len(r.tasks))
	for code := range r.tasks {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

func (r *Registry) validate(meta Metadata) error {
	if meta.Code == "" {
		return errors.New("plugin code is required")
	}

	if meta.Version != "" {
		if _, err := semver.NewVersion(meta.Version); err != nil {
			return errors.Wrapf(err, "plugin %s has invalid version %q", meta.Code, meta.Version)
		}
	}

	if meta.CoreVersion == "" {
		return nil
	}

	constraint, err := semver.NewConstraint(meta.CoreVersion)
	if err != nil {
		return errors.Wrapf(err, "plugin %s has invalid core version constraint %q",
			meta.Code, meta.CoreVersion)
	}

	if !constraint.Check(r.coreVersion) {
		return errors.WithHintf(
			errors.Newf("plugin %s requires core version %s, running %s",
				meta.Code, meta.CoreVersion, r.coreVersion),
			"upgrade extractd or use a compatible plugin build")
	}

	return nil
}
