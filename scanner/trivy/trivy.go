// Package trivy wraps the external trivy binary: filesystem scan invocation
// and normalization of its JSON report into the finding model.
package trivy

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/vulnix/vulnix/hostinfo"
	"github.com/vulnix/vulnix/scanner"
)

// Directories excluded from light scans; pseudo-filesystems and churn-heavy
// state directories.
var LightScanSkipDirs = []string{
	"/proc", "/sys", "/dev", "/run", "/var/lib", "/var/log", "/mnt", "/snap",
}

const DefaultScanTimeout = 20 * time.Minute

// LookupBin resolves the trivy binary: explicit override, then
// VULNIX_TRIVY_BIN, then PATH.
func LookupBin(override string) (string, error) {
	if override != "" {
		if _, err := os.Stat(override); err != nil {
			return "", errors.Wrap(err, "trivy binary not found at configured path")
		}
		return override, nil
	}
	if env := os.Getenv("VULNIX_TRIVY_BIN"); env != "" {
		return LookupBin(env)
	}
	binPath, err := exec.LookPath("trivy")
	if err != nil {
		return "", fmt.Errorf("trivy is not installed or not in PATH")
	}
	return binPath, nil
}

// Scan runs a trivy filesystem scan over target and writes the raw JSON
// report to reportPath. A non-zero exit with no parseable output is a hard
// failure for the session.
func Scan(binPath, target string, skipDirs []string, timeout time.Duration, reportPath string) error {
	if timeout == 0 {
		timeout = DefaultScanTimeout
	}
	args := []string{binPath, "fs", target,
		"--scanners", "vuln",
		"--format", "json",
		"--output", reportPath,
		"--timeout", timeout.String(),
	}
	if len(skipDirs) > 0 {
		args = append(args, "--skip-dirs", strings.Join(skipDirs, ","))
	}
	if os.Geteuid() != 0 {
		args = append([]string{"sudo"}, args...)
	}
	cmd := strings.Join(args, " ")
	log.Debugf("trivy command: %s", cmd)
	ecmd := exec.Command("bash", "-c", cmd)
	out, err := ecmd.CombinedOutput()
	if err != nil {
		return errors.Wrapf(err, "trivy scan failed: %s", strings.TrimSpace(string(out)))
	}
	return nil
}

// Parse unmarshals a raw trivy report.
func Parse(p []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(p, &doc); err != nil {
		return doc, &scanner.MalformedReportError{Reason: "invalid json", Err: err}
	}
	return doc, nil
}

// PopulateReport normalizes a trivy document into a ScanReport. Zero
// vulnerabilities is a valid, clean result. Missing package identifier,
// version or severity on any entry makes the whole report malformed.
func PopulateReport(doc Document, scanID, target string) (scanner.ScanReport, error) {
	report := scanner.ScanReport{
		ScanID:    scanID,
		Target:    target,
		CreatedAt: doc.CreatedAt,
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now().UTC()
	}
	if doc.Metadata.OS != nil {
		report.OS = scanner.OSInfo{
			Family:  doc.Metadata.OS.Family,
			Version: doc.Metadata.OS.Name,
			EOL:     doc.Metadata.OS.EOSL || hostinfo.IsEOL(doc.Metadata.OS.Family, doc.Metadata.OS.Name),
		}
		report.Arch = runtime.GOARCH
		if doc.Metadata.ImageConfig != nil && doc.Metadata.ImageConfig.Architecture != "" {
			report.Arch = doc.Metadata.ImageConfig.Architecture
		}
	}

	for _, res := range doc.Results {
		for _, vuln := range res.Vulnerabilities {
			if vuln.PkgName == "" {
				return report, &scanner.MalformedReportError{Reason: "vulnerability entry without package name"}
			}
			if vuln.InstalledVersion == "" {
				return report, &scanner.MalformedReportError{
					Reason: fmt.Sprintf("package %s has no installed version", vuln.PkgName)}
			}
			if vuln.Severity == "" && cvssScore(vuln.CVSS) == 0 {
				return report, &scanner.MalformedReportError{
					Reason: fmt.Sprintf("package %s has no severity", vuln.PkgName)}
			}
			severity, defaulted := scanner.NormalizeSeverity(
				strings.ToUpper(vuln.Severity), cvssScore(vuln.CVSS))
			report.Findings = append(report.Findings, scanner.Finding{
				Package:           vuln.PkgName,
				InstalledVersion:  vuln.InstalledVersion,
				FixedVersion:      vuln.FixedVersion,
				VulnerabilityID:   vuln.VulnerabilityID,
				Severity:          severity,
				SeverityDefaulted: defaulted,
				CvssScore:         cvssScore(vuln.CVSS),
				Path:              res.Target,
				Class:             res.Class,
				PkgType:           res.Type,
				Title:             vuln.Title,
				Description:       vuln.Description,
				Link:              vuln.PrimaryURL,
			})
		}
	}
	return report, nil
}

// cvssScore prefers the NVD v3 score, then any v3 score, then v2. Sources
// are visited in sorted order so repeated runs score identically.
func cvssScore(cvss map[string]CVSS) float64 {
	if entry, ok := cvss["nvd"]; ok && entry.V3Score > 0 {
		return entry.V3Score
	}
	sources := make([]string, 0, len(cvss))
	for source := range cvss {
		sources = append(sources, source)
	}
	sort.Strings(sources)
	for _, source := range sources {
		if cvss[source].V3Score > 0 {
			return cvss[source].V3Score
		}
	}
	for _, source := range sources {
		if cvss[source].V2Score > 0 {
			return cvss[source].V2Score
		}
	}
	return 0
}
