// Package batch contains the request lifecycle processors driven by the
// orchestrator's periodic monitoring ticks: rule matching, task execution,
// result export and standby reminders.
package batch

import (
	"path/filepath"

	"github.com/geonexus/extractd/domain"
)

// exportView exposes a request's exportable fields to a connector plugin.
// Plugins never get mutation access to the domain entity.
type exportView struct {
	request  *domain.Request
	basePath string
}

func (v exportView) OrderLabel() string { return v.request.OrderLabel }
func (v exportView) Client() string     { return v.request.Client }
func (v exportView) Perimeter() string  { return v.request.Perimeter }
func (v exportView) Parameters() string { return v.request.Parameters }
func (v exportView) Rejected() bool     { return v.request.Rejected }
func (v exportView) Remark() string     { return v.request.Remark }
func (v exportView) Status() string     { return string(v.request.Status) }

func (v exportView) FolderOut() string {
	return filepath.Join(v.basePath, v.request.FolderOut)
}

// taskView exposes a request's fields to a task processor plugin.
type taskView struct {
	request  *domain.Request
	basePath string
}

func (v taskView) OrderLabel() string { return v.request.OrderLabel }
func (v taskView) Client() string     { return v.request.Client }
func (v taskView) Perimeter() string  { return v.request.Perimeter }
func (v taskView) Parameters() string { return v.request.Parameters }

func (v taskView) FolderIn() string {
	return filepath.Join(v.basePath, v.request.FolderIn)
}

func (v taskView) FolderOut() string {
	return filepath.Join(v.basePath, v.request.FolderOut)
}
