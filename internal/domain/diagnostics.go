package domain

import "time"

// DiagnosticStatus is the outcome of one prerequisite check.
type DiagnosticStatus string

const (
	DiagnosticStatusPass DiagnosticStatus = "pass"
	DiagnosticStatusFail DiagnosticStatus = "fail"
)

// DiagnosticItem is one prerequisite check: a tool, the model or the output directory.
type DiagnosticItem struct {
	ID      string           `json:"id"`
	Name    string           `json:"name"`
	Status  DiagnosticStatus `json:"status"`
	Message string           `json:"message"`
	Hint    string           `json:"hint,omitempty"`
}

// Passed reports whether the check succeeded.
func (i DiagnosticItem) Passed() bool {
	return i.Status == DiagnosticStatusPass
}

// DiagnosticReport is the result of checking every batch prerequisite.
type DiagnosticReport struct {
	GeneratedAt time.Time        `json:"generatedAt"`
	HasFailures bool             `json:"hasFailures"`
	Items       []DiagnosticItem `json:"items"`
}

// Failures returns the checks that did not pass, in check order.
func (r DiagnosticReport) Failures() []DiagnosticItem {
	var failed []DiagnosticItem
	for _, item := range r.Items {
		if !item.Passed() {
			failed = append(failed, item)
		}
	}
	return failed
}
