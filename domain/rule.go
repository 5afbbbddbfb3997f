package domain

import "time"

// Rule routes requests imported by one connector to a target process.
//
// Rules are evaluated strictly by ascending position; the first active rule
// whose predicate matches the request wins.
type Rule struct {
	ID          int
	ConnectorID int
	ProcessID   int
	Position    int
	Active      bool
	// Rule is the predicate expression evaluated against the request fields
	Rule string
}

// Connector is a configured instance of a connector plugin, responsible for
// importing orders from and exporting results to one external ordering system.
type Connector struct {
	ID   int
	Name string
	// ConnectorCode identifies the connector plugin in the registry
	ConnectorCode string
	// ConnectorParams holds the plugin parameter values as a JSON object
	ConnectorParams string
	// ImportFrequency is the delay in seconds between two import runs
	ImportFrequency int
	Active          bool
	LastImportDate  *time.Time
}

// Process is an ordered sequence of tasks a matched request executes.
type Process struct {
	ID   int
	Name string
}

// Task is one configured step of a process pipeline.
type Task struct {
	ID        int
	ProcessID int
	Position  int
	// TaskCode identifies the task processor plugin in the registry
	TaskCode string
	Label    string
	// TaskParams holds the plugin parameter values as a JSON object
	TaskParams string
}
