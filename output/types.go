package output

import (
	"time"

	"github.com/vulnix/vulnix/executor"
	"github.com/vulnix/vulnix/safety"
)

type SeverityDetail struct {
	Critical int `json:"critical,omitempty"`
	High     int `json:"high,omitempty"`
	Medium   int `json:"medium,omitempty"`
	Low      int `json:"low,omitempty"`
	Total    int `json:"total"`
}

// SessionReport is the terminal, human-readable summary of one session:
// which stage the pipeline reached, and why it stopped there.
type SessionReport struct {
	SessionID     string            `json:"session_id"`
	Status        string            `json:"status"`
	Host          string            `json:"host,omitempty"`
	Target        string            `json:"target"`
	ScanMode      string            `json:"scan_mode,omitempty"`
	StartedAt     time.Time         `json:"started_at"`
	FinishedAt    time.Time         `json:"finished_at"`
	Severity      SeverityDetail    `json:"severity"`
	Actions       map[string]int    `json:"actions,omitempty"`
	ManualNotes   []string          `json:"manual_notes,omitempty"`
	Verdict       *safety.Verdict   `json:"verdict,omitempty"`
	ExecState     string            `json:"exec_state,omitempty"`
	Records       []executor.Record `json:"records,omitempty"`
	ReportPath    string            `json:"report_path,omitempty"`
	ScriptPath    string            `json:"script_path,omitempty"`
	FailedStage   string            `json:"failed_stage,omitempty"`
	FailureReason string            `json:"failure_reason,omitempty"`
}
