package domain

import "time"

// RunRecord is one provisioning run kept in the history store.
type RunRecord struct {
	ID         string     `json:"id" db:"id"`
	Firewall   string     `json:"firewall" db:"firewall"`
	VDOM       string     `json:"vdom" db:"vdom"`
	CSVPath    string     `json:"csv_path" db:"csv_path"`
	// Status is one of the RunStatus constants.
	Status     string     `json:"status" db:"status"`
	// Report is the final report as JSON.
	Report     string     `json:"report,omitempty" db:"report"`
	ErrorCount int        `json:"error_count" db:"error_count"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty" db:"finished_at"`
}
