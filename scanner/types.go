package scanner

import (
	"fmt"
	"time"

	"github.com/vulnix/vulnix/hostinfo"
	"github.com/vulnix/vulnix/utils"
)

// Finding is one vulnerability instance tied to a package and path on the
// scanned target. Immutable once parsed; identity is
// (Package, VulnerabilityID, Path).
type Finding struct {
	Package           string  `json:"package"`
	InstalledVersion  string  `json:"installed_version"`
	FixedVersion      string  `json:"fixed_version,omitempty"`
	VulnerabilityID   string  `json:"vulnerability_id"`
	Severity          string  `json:"severity"`
	SeverityDefaulted bool    `json:"severity_defaulted,omitempty"`
	CvssScore         float64 `json:"cvss_score,omitempty"`
	Path              string  `json:"path"`
	Class             string  `json:"class,omitempty"`
	PkgType           string  `json:"pkg_type,omitempty"`
	Title             string  `json:"title,omitempty"`
	Description       string  `json:"description,omitempty"`
	Link              string  `json:"link,omitempty"`
}

// result classes reported by the scanner
const (
	ClassOSPackages   = "os-pkgs"
	ClassLangPackages = "lang-pkgs"
)

type OSInfo struct {
	Family  string `json:"family,omitempty"`
	Version string `json:"version,omitempty"`
	EOL     bool   `json:"eol,omitempty"`
}

// ScanReport is the normalized finding set of one scan invocation. Read-only
// after parsing.
type ScanReport struct {
	ScanID    string    `json:"scan_id"`
	Target    string    `json:"target"`
	CreatedAt time.Time `json:"created_at"`
	OS        OSInfo    `json:"os,omitempty"`
	Arch      string    `json:"arch,omitempty"`
	Findings  []Finding `json:"findings"`
}

// Fingerprint returns the OS fingerprint of the scanned target, which may
// differ from the host running remediation later.
func (r *ScanReport) Fingerprint() hostinfo.Fingerprint {
	if r.OS.Family == "" {
		return hostinfo.Fingerprint{}
	}
	return hostinfo.Fingerprint{Family: r.OS.Family, Version: r.OS.Version, Arch: r.Arch}
}

// MalformedReportError is fatal to the session: the scanner produced output
// that is missing required fields or is not well-formed JSON. A report with
// zero findings is not malformed.
type MalformedReportError struct {
	Reason string
	Err    error
}

func (e *MalformedReportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed scan report: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed scan report: %s", e.Reason)
}

func (e *MalformedReportError) Unwrap() error {
	return e.Err
}

// SeverityRank orders severities for sorting, highest first.
func SeverityRank(severity string) int {
	switch severity {
	case utils.CRITICAL:
		return 4
	case utils.HIGH:
		return 3
	case utils.MEDIUM:
		return 2
	case utils.LOW:
		return 1
	default:
		return 0
	}
}

// NormalizeSeverity maps CVSS scores and vendor labels onto the four-level
// enum. Fixed thresholds: CRITICAL >= 9.0, HIGH >= 7.0, MEDIUM >= 4.0, else
// LOW. Findings with neither a score nor a recognized label default to
// MEDIUM; defaulted reports whether that fallback was applied.
func NormalizeSeverity(label string, score float64) (severity string, defaulted bool) {
	if score > 0 {
		switch {
		case score >= 9.0:
			return utils.CRITICAL, false
		case score >= 7.0:
			return utils.HIGH, false
		case score >= 4.0:
			return utils.MEDIUM, false
		default:
			return utils.LOW, false
		}
	}
	switch label {
	case utils.CRITICAL, utils.HIGH, utils.MEDIUM, utils.LOW:
		return label, false
	}
	return utils.MEDIUM, true
}
