// Package plugin defines the contract between the orchestration core and the
// connector / task processor plugins, and the registry that resolves a plugin
// instance from its code string.
//
// Two capability families exist:
//   - Connector: imports orders from and exports results to one external
//     ordering system.
//   - TaskProcessor: executes one pipeline step of a matched request.
//
// Plugins are stateless templates: every invocation works on a fresh instance
// obtained through NewInstance, so one plugin may safely serve concurrent
// requests.
package plugin

// Metadata describes a registered plugin
type Metadata struct {
	// Code is the identifier stored on connectors and tasks
	Code string

	// Name is a human-readable plugin name
	Name string

	// Version is the plugin version (semver)
	Version string

	// CoreVersion is the required extractd version (semver constraint),
	// empty for no constraint
	CoreVersion string
}

// EmailSettings carries the outgoing mail configuration handed to task
// processors that send messages themselves.
type EmailSettings struct {
	Host     string
	Port     int
	From     string
	User     string
	Password string
	Enabled  bool
}

// Connector imports orders from and exports results to an external ordering
// system.
type Connector interface {
	// Metadata returns information about this plugin
	Metadata() Metadata

	// NewInstance returns a fresh connector configured with the given
	// display locale and connector parameter values
	NewInstance(locale string, params map[string]string) Connector

	// ImportOrders fetches the orders waiting on the external system
	ImportOrders() ImportResult

	// ExportResult pushes the result of a completed request back to the
	// external system. Failures are reported through the result, never
	// through a panic.
	ExportResult(request ExportRequest) *ExportResult

	// Params returns the declarative parameter schema of this plugin
	Params() []ParamSpec
}

// ExportRequest is the read-only view of a request handed to a connector for
// export. Plugins never receive mutation access to the domain entity.
type ExportRequest interface {
	OrderLabel() string
	Client() string
	Perimeter() string
	Parameters() string
	Rejected() bool
	Remark() string
	Status() string
	// FolderOut is the absolute path of the folder holding the result files
	FolderOut() string
}

// ExportResult is the outcome of a connector export operation
type ExportResult struct {
	Success       bool
	ResultMessage string
	ErrorDetails  string
}

// ImportedOrder is one order fetched from an external ordering system
type ImportedOrder struct {
	OrderLabel string
	Client     string
	Perimeter  string
	// Parameters holds the custom order parameters as a JSON object
	Parameters string
}

// ImportResult is the outcome of a connector import operation
type ImportResult struct {
	Success      bool
	Orders       []ImportedOrder
	ErrorMessage string
}

// TaskStatus is the outcome class of a task processor execution
type TaskStatus string

const (
	// TaskSuccess means the step completed and the pipeline may advance
	TaskSuccess TaskStatus = "SUCCESS"
	// TaskError means the step failed and requires operator action
	TaskError TaskStatus = "ERROR"
	// TaskNotRun means the step could not start (e.g. no free execution
	// slot) and must be retried later without advancing the task cursor
	TaskNotRun TaskStatus = "NOT_RUN"
	// TaskStandby means the pipeline must pause until an operator
	// validates the step
	TaskStandby TaskStatus = "STANDBY"
)

// TaskResult is the outcome of a task processor execution
type TaskResult struct {
	Status    TaskStatus
	Message   string
	ErrorCode string
}

// TaskRequest is the read-only view of a request handed to a task processor.
type TaskRequest interface {
	OrderLabel() string
	Client() string
	Perimeter() string
	Parameters() string
	// FolderIn is the absolute path of the folder holding the input files
	FolderIn() string
	// FolderOut is the absolute path of the folder receiving the produced files
	FolderOut() string
}

// TaskProcessor executes one pipeline step of a matched request.
type TaskProcessor interface {
	// Metadata returns information about this plugin
	Metadata() Metadata

	// NewInstance returns a fresh processor configured with the given
	// display locale and task parameter values
	NewInstance(locale string, taskSettings map[string]string) TaskProcessor

	// Execute runs the step against the given request view
	Execute(request TaskRequest, email EmailSettings) TaskResult

	// Params returns the declarative parameter schema of this plugin
	Params() []ParamSpec
}
