package models

import "time"

type PrintOutcome string

const (
	PrintPending PrintOutcome = "pending"
	PrintSuccess PrintOutcome = "success"
	PrintFailure PrintOutcome = "failure"
)

// PrintReport is a single acknowledgement sent by a printer connection.
type PrintReport struct {
	ConnectionID string    `json:"connection_id"`
	Success      bool      `json:"success"`
	Detail       string    `json:"detail,omitempty"`
	ReportedAt   time.Time `json:"reported_at"`
}

// PrintJobStatus is the cached outcome of a dispatched print job. Outcome
// reflects the most recently processed report.
type PrintJobStatus struct {
	JobID        string        `json:"job_id"`
	OrderID      string        `json:"order_id,omitempty"`
	DispatchedAt time.Time     `json:"dispatched_at"`
	Outcome      PrintOutcome  `json:"outcome"`
	Detail       string        `json:"detail,omitempty"`
	ReportedBy   string        `json:"reported_by,omitempty"`
	UpdatedAt    time.Time     `json:"updated_at"`
	Reports      []PrintReport `json:"reports,omitempty"`
}

// Apply records a report and makes it the current outcome.
func (s *PrintJobStatus) Apply(r PrintReport) {
	s.Reports = append(s.Reports, r)
	if r.Success {
		s.Outcome = PrintSuccess
	} else {
		s.Outcome = PrintFailure
	}
	s.Detail = r.Detail
	s.ReportedBy = r.ConnectionID
	s.UpdatedAt = r.ReportedAt
}
