package domain

import "time"

// HistoryStatus represents the state of one lifecycle step of a request
type HistoryStatus string

const (
	HistoryOngoing  HistoryStatus = "ONGOING"
	HistoryStandby  HistoryStatus = "STANDBY"
	HistoryError    HistoryStatus = "ERROR"
	HistoryFinished HistoryStatus = "FINISHED"
)

// RequestHistoryRecord is an append-only audit entry for one lifecycle step
// of a request. A record is created when the step starts and closed out once,
// when the step completes; it is never mutated afterwards.
type RequestHistoryRecord struct {
	ID        int
	RequestID int
	// Step is monotonic per request
	Step int
	// ProcessStep is the position within the configured task sequence
	ProcessStep int
	Status      HistoryStatus
	StartDate   time.Time
	EndDate     *time.Time
	Message     string
	TaskLabel   string
	UserLogin   string
}

// Close finishes the record with the given final status and end date.
func (r *RequestHistoryRecord) Close(status HistoryStatus, endDate time.Time) {
	r.Status = status
	r.EndDate = &endDate
}

// SetToError closes the record as failed with the given message.
func (r *RequestHistoryRecord) SetToError(message string, endDate time.Time) {
	r.Message = message
	r.Close(HistoryError, endDate)
}
