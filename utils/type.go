package utils

type Config struct {
	Mode          string  `json:"mode,omitempty" yaml:"mode,omitempty"`
	Port          string  `json:"port,omitempty" yaml:"port,omitempty"`
	Output        string  `json:"output,omitempty" yaml:"output,omitempty"`
	Quiet         bool    `json:"quiet,omitempty" yaml:"quiet,omitempty"`
	ScanMode      string  `json:"scan_mode,omitempty" yaml:"scan_mode,omitempty"`
	Target        string  `json:"target,omitempty" yaml:"target,omitempty"`
	ConfirmPolicy string  `json:"confirm_policy,omitempty" yaml:"confirm_policy,omitempty"`
	OutputDir     string  `json:"output_dir,omitempty" yaml:"output_dir,omitempty"`
	ReportPath    string  `json:"report_path,omitempty" yaml:"report_path,omitempty"`
	ScriptPath    string  `json:"script_path,omitempty" yaml:"script_path,omitempty"`
	SessionID     string  `json:"session_id,omitempty" yaml:"session_id,omitempty"`
	HostName      string  `json:"host_name,omitempty" yaml:"host_name,omitempty"`
	TrivyBinPath  string  `json:"trivy_bin_path,omitempty" yaml:"trivy_bin_path,omitempty"`
	ScanTimeout   string  `json:"scan_timeout,omitempty" yaml:"scan_timeout,omitempty"`
	OracleModel   string  `json:"oracle_model,omitempty" yaml:"oracle_model,omitempty"`
	OracleAPIKey  string  `json:"oracle_api_key,omitempty" yaml:"oracle_api_key,omitempty"`
	OracleBaseURL string  `json:"oracle_base_url,omitempty" yaml:"oracle_base_url,omitempty"`
	StorePath     string  `json:"store_path,omitempty" yaml:"store_path,omitempty"`
	GenerateOnly  bool    `json:"generate_only,omitempty" yaml:"generate_only,omitempty"`
	HistoryLimit  int     `json:"history_limit,omitempty" yaml:"history_limit,omitempty"`
	FailOnCount   int     `json:"fail_on_count,omitempty" yaml:"fail_on_count,omitempty"`
}

const (
	ModeScan       = "scan"
	ModeApply      = "apply"
	ModeHistory    = "history"
	ModeHttpServer = "http-server"
	JsonOutput     = "json"
	TableOutput    = "table"
)

// scan target selection
const (
	ScanModeFull   = "full"
	ScanModeLight  = "light"
	ScanModeCustom = "custom"
)

// confirmation policy for running a remediation script
const (
	ConfirmAuto        = "auto"
	ConfirmDryRun      = "dry-run"
	ConfirmInteractive = "interactive"
)

// severity
const (
	CRITICAL = "CRITICAL"
	HIGH     = "HIGH"
	MEDIUM   = "MEDIUM"
	LOW      = "LOW"
)

// terminal session status
const (
	StatusClean      = "CLEAN"
	StatusRemediated = "REMEDIATED"
	StatusPartial    = "PARTIAL"
	StatusBlocked    = "BLOCKED"
	StatusAborted    = "ABORTED"
)
