// Package domain defines the data entities of the extraction request lifecycle.
package domain

import (
	"encoding/json"
	"time"
)

// RequestStatus represents the current lifecycle state of a request
type RequestStatus string

const (
	// StatusImportFail means the order from the originating server could not
	// be processed as a request
	StatusImportFail RequestStatus = "IMPORTFAIL"
	// StatusImported means the order has been fetched from its originating server
	StatusImported RequestStatus = "IMPORTED"
	// StatusOngoing means the processing of the request is running normally
	StatusOngoing RequestStatus = "ONGOING"
	// StatusUnmatched means no process could be attached to this request based
	// on the connector rules
	StatusUnmatched RequestStatus = "UNMATCHED"
	// StatusError means the last process task that ran failed
	StatusError RequestStatus = "ERROR"
	// StatusStandby means an operator must decide if the process can proceed
	StatusStandby RequestStatus = "STANDBY"
	// StatusToExport means the processing result is ready to be sent back to
	// the originating server
	StatusToExport RequestStatus = "TOEXPORT"
	// StatusExportFail means the processing result could not be sent back to
	// the originating server
	StatusExportFail RequestStatus = "EXPORTFAIL"
	// StatusFinished means the result was successfully sent back and the
	// process is over
	StatusFinished RequestStatus = "FINISHED"
)

// IsValidRequestStatus returns true if the status string is a valid RequestStatus
func IsValidRequestStatus(s string) bool {
	switch RequestStatus(s) {
	case StatusImportFail, StatusImported, StatusOngoing, StatusUnmatched,
		StatusError, StatusStandby, StatusToExport, StatusExportFail,
		StatusFinished:
		return true
	default:
		return false
	}
}

// Request is a data item order imported from an external source system.
//
// A request is created by the import subsystem in IMPORTED state, bound to a
// process by the matching processor, advanced task by task through its
// process pipeline, and closed out by the export processor. It is never
// physically deleted by the orchestration core.
type Request struct {
	ID          int
	ConnectorID int
	// ProcessID is zero until the request has matched a rule
	ProcessID  int
	OrderLabel string
	Client     string
	Perimeter  string
	// Parameters holds the custom order parameters as a JSON object
	Parameters string
	// FolderIn and FolderOut are set together when the request matches and
	// stay stable for the request's lifetime. Both are relative to the
	// requests base data folder.
	FolderIn  string
	FolderOut string
	Status    RequestStatus
	// TaskNum is the 1-based cursor into the process task sequence
	TaskNum      int
	Rejected     bool
	Remark       string
	LastReminder *time.Time
	StartDate    time.Time
	EndDate      *time.Time
}

// Matched reports whether the request has been bound to a process.
func (r *Request) Matched() bool {
	return r.ProcessID != 0
}

// ParameterValues decodes the custom order parameters JSON object.
// Returns an empty map when the request carries no parameters.
func (r *Request) ParameterValues() map[string]interface{} {
	values := make(map[string]interface{})
	if r.Parameters == "" {
		return values
	}
	if err := json.Unmarshal([]byte(r.Parameters), &values); err != nil {
		return make(map[string]interface{})
	}
	return values
}
