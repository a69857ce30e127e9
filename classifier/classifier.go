// Package classifier turns a scan report into a remediation plan: findings
// grouped per package and path, each group assigned one action.
package classifier

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	goversion "github.com/hashicorp/go-version"

	"github.com/vulnix/vulnix/scanner"
	"github.com/vulnix/vulnix/utils"
)

// plan actions
const (
	ActionUpgrade      = "UPGRADE"
	ActionReplace      = "REPLACE"
	ActionManualReview = "MANUAL_REVIEW"
	ActionIgnore       = "IGNORE"
)

// Plan maps each finding group of one scan to a proposed action. Built once,
// never mutated; a re-scan supersedes it with a new plan.
type Plan struct {
	ScanID    string         `json:"scan_id"`
	Target    string         `json:"target"`
	OS        scanner.OSInfo `json:"os,omitempty"`
	Arch      string         `json:"arch,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	Entries   []Entry        `json:"entries"`
}

// Entry is the decided action for all findings sharing a package and path.
type Entry struct {
	Package          string   `json:"package"`
	Path             string   `json:"path"`
	Class            string   `json:"class,omitempty"`
	Action           string   `json:"action"`
	Severity         string   `json:"severity"`
	InstalledVersion string   `json:"installed_version"`
	FixedVersion     string   `json:"fixed_version,omitempty"`
	Justification    string   `json:"justification"`
	Hint             string   `json:"hint,omitempty"`
	Vulnerabilities  []string `json:"vulnerabilities"`
}

// dependency manifests whose direct modification risks breaking the
// application that owns them
var manifestFiles = map[string]bool{
	"requirements.txt":  true,
	"Pipfile.lock":      true,
	"poetry.lock":       true,
	"package.json":      true,
	"package-lock.json": true,
	"yarn.lock":         true,
	"pnpm-lock.yaml":    true,
	"Gemfile.lock":      true,
	"composer.lock":     true,
	"go.mod":            true,
	"go.sum":            true,
	"Cargo.lock":        true,
	"pom.xml":           true,
	"build.gradle":      true,
}

// IsManifest reports whether a finding path is an application dependency
// manifest.
func IsManifest(p string) bool {
	return manifestFiles[path.Base(p)]
}

// aptFamilies are the OS families whose packages the pipeline can upgrade
// through the system package manager.
var aptFamilies = map[string]bool{
	"debian": true,
	"ubuntu": true,
}

// Classify builds the remediation plan for one scan report.
//
// Policy: manifest findings are MANUAL_REVIEW regardless of fix availability
// (with the upgrade path kept as a hint); apt-resolvable packages with a
// fixed version are UPGRADE; fixed versions outside apt are REPLACE; no fix
// means IGNORE, escalated to MANUAL_REVIEW for CRITICAL findings. Entries are
// ordered severity descending then package ascending so repeated runs diff
// cleanly.
func Classify(report scanner.ScanReport) Plan {
	plan := Plan{
		ScanID:    report.ScanID,
		Target:    report.Target,
		OS:        report.OS,
		Arch:      report.Arch,
		CreatedAt: time.Now().UTC(),
	}

	groups := make(map[string][]scanner.Finding)
	var order []string
	for _, finding := range report.Findings {
		key := finding.Package + "\x00" + finding.Path
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], finding)
	}

	for _, key := range order {
		plan.Entries = append(plan.Entries, classifyGroup(groups[key], report.OS))
	}

	sort.SliceStable(plan.Entries, func(i, j int) bool {
		ri, rj := scanner.SeverityRank(plan.Entries[i].Severity), scanner.SeverityRank(plan.Entries[j].Severity)
		if ri != rj {
			return ri > rj
		}
		return plan.Entries[i].Package < plan.Entries[j].Package
	})
	return plan
}

func classifyGroup(findings []scanner.Finding, os scanner.OSInfo) Entry {
	entry := Entry{
		Package:          findings[0].Package,
		Path:             findings[0].Path,
		Class:            findings[0].Class,
		InstalledVersion: findings[0].InstalledVersion,
	}
	for _, finding := range findings {
		entry.Vulnerabilities = append(entry.Vulnerabilities, finding.VulnerabilityID)
		if scanner.SeverityRank(finding.Severity) > scanner.SeverityRank(entry.Severity) {
			entry.Severity = finding.Severity
		}
		entry.FixedVersion = higherVersion(entry.FixedVersion, finding.FixedVersion)
	}
	sort.Strings(entry.Vulnerabilities)

	switch {
	case IsManifest(entry.Path):
		entry.Action = ActionManualReview
		entry.Justification = "application dependency manifest - edit requires owner review"
		if entry.FixedVersion != "" {
			entry.Hint = fmt.Sprintf("pin %s to %s or later in %s", entry.Package, entry.FixedVersion, entry.Path)
		}
	case entry.FixedVersion == "":
		if entry.Severity == utils.CRITICAL {
			entry.Action = ActionManualReview
			entry.Justification = "no fix available - isolate or mitigate manually"
		} else {
			entry.Action = ActionIgnore
			entry.Justification = "no upstream fix available"
		}
	case entry.Class == scanner.ClassOSPackages && aptFamilies[strings.ToLower(os.Family)]:
		entry.Action = ActionUpgrade
		entry.Justification = fmt.Sprintf("fixed in %s, obtainable via apt", entry.FixedVersion)
	default:
		entry.Action = ActionReplace
		entry.Justification = fmt.Sprintf("fixed in %s, but not resolvable through the system package manager", entry.FixedVersion)
	}
	return entry
}

// higherVersion keeps the larger of two fixed versions so the group upgrades
// past every finding at once. Falls back to string comparison when a version
// does not parse.
func higherVersion(a, b string) string {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	va, errA := goversion.NewVersion(strings.TrimSpace(a))
	vb, errB := goversion.NewVersion(strings.TrimSpace(b))
	if errA == nil && errB == nil {
		if vb.GreaterThan(va) {
			return b
		}
		if va.GreaterThan(vb) {
			return a
		}
	}
	// Unparseable versions, or versions that differ only in build metadata
	// (+deb9uN revisions), which the parser ignores: compare the raw strings.
	if b > a {
		return b
	}
	return a
}

// Counts returns the action breakdown for the session report.
func (p *Plan) Counts() map[string]int {
	counts := make(map[string]int)
	for _, entry := range p.Entries {
		counts[entry.Action]++
	}
	return counts
}

// Upgrades returns the entries the synthesizer turns into script commands.
func (p *Plan) Upgrades() []Entry {
	var upgrades []Entry
	for _, entry := range p.Entries {
		if entry.Action == ActionUpgrade {
			upgrades = append(upgrades, entry)
		}
	}
	return upgrades
}

// ManualEntries returns MANUAL_REVIEW and REPLACE entries; both leave work
// for the operator and keep the session PARTIAL.
func (p *Plan) ManualEntries() []Entry {
	var manual []Entry
	for _, entry := range p.Entries {
		if entry.Action == ActionManualReview || entry.Action == ActionReplace {
			manual = append(manual, entry)
		}
	}
	return manual
}

// ProtectedPaths returns the manifests the plan flagged for manual review;
// the safety gate blocks any script that writes to them.
func (p *Plan) ProtectedPaths() []string {
	var paths []string
	for _, entry := range p.Entries {
		if entry.Action == ActionManualReview && IsManifest(entry.Path) && !utils.Contains(paths, entry.Path) {
			paths = append(paths, entry.Path)
		}
	}
	sort.Strings(paths)
	return paths
}
