package trivy

import (
	"errors"
	"testing"

	"github.com/vulnix/vulnix/scanner"
	"github.com/vulnix/vulnix/utils"
)

const sampleReport = `{
  "SchemaVersion": 2,
  "CreatedAt": "2026-03-01T10:00:00Z",
  "ArtifactName": "/",
  "ArtifactType": "filesystem",
  "Metadata": {
    "OS": {"Family": "debian", "Name": "9.13"}
  },
  "Results": [
    {
      "Target": "debian 9.13",
      "Class": "os-pkgs",
      "Type": "debian",
      "Vulnerabilities": [
        {
          "VulnerabilityID": "CVE-2019-9924",
          "PkgName": "bash",
          "InstalledVersion": "4.4-5",
          "FixedVersion": "4.4-5+deb9u1",
          "Severity": "HIGH",
          "CVSS": {"nvd": {"V3Score": 7.8}}
        },
        {
          "VulnerabilityID": "CVE-2018-25032",
          "PkgName": "zlib1g",
          "InstalledVersion": "1:1.2.8.dfsg-5",
          "Severity": "negligible"
        }
      ]
    },
    {
      "Target": "app/requirements.txt",
      "Class": "lang-pkgs",
      "Type": "pip",
      "Vulnerabilities": [
        {
          "VulnerabilityID": "CVE-2023-32681",
          "PkgName": "requests",
          "InstalledVersion": "2.25.0",
          "FixedVersion": "2.31.0",
          "Severity": "MEDIUM",
          "CVSS": {"nvd": {"V3Score": 6.1}}
        }
      ]
    }
  ]
}`

func TestParseInvalidJSON(t *testing.T) {
	_, err := Parse([]byte("{not json"))
	var malformed *scanner.MalformedReportError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedReportError, got %v", err)
	}
}

func TestPopulateReport(t *testing.T) {
	doc, err := Parse([]byte(sampleReport))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	report, err := PopulateReport(doc, "20260301_100000", "/")
	if err != nil {
		t.Fatalf("PopulateReport: %v", err)
	}

	if report.ScanID != "20260301_100000" {
		t.Errorf("ScanID = %q", report.ScanID)
	}
	if report.OS.Family != "debian" || report.OS.Version != "9.13" {
		t.Errorf("OS = %+v", report.OS)
	}
	if !report.OS.EOL {
		t.Error("debian 9 should be marked EOL")
	}
	if len(report.Findings) != 3 {
		t.Fatalf("findings = %d, want 3", len(report.Findings))
	}

	bash := report.Findings[0]
	if bash.Package != "bash" || bash.Severity != utils.HIGH || bash.CvssScore != 7.8 {
		t.Errorf("bash finding = %+v", bash)
	}
	if bash.Class != scanner.ClassOSPackages || bash.Path != "debian 9.13" {
		t.Errorf("bash class/path = %s/%s", bash.Class, bash.Path)
	}

	// vendor label outside the enum, no score: defaults to MEDIUM
	zlib := report.Findings[1]
	if zlib.Severity != utils.MEDIUM || !zlib.SeverityDefaulted {
		t.Errorf("zlib severity = %s defaulted=%v, want MEDIUM/true", zlib.Severity, zlib.SeverityDefaulted)
	}

	requests := report.Findings[2]
	if requests.Class != scanner.ClassLangPackages || requests.Path != "app/requirements.txt" {
		t.Errorf("requests class/path = %s/%s", requests.Class, requests.Path)
	}
	// score 6.1 overrides the MEDIUM label and lands on MEDIUM anyway
	if requests.Severity != utils.MEDIUM || requests.SeverityDefaulted {
		t.Errorf("requests severity = %s defaulted=%v", requests.Severity, requests.SeverityDefaulted)
	}
}

func TestPopulateReportZeroFindings(t *testing.T) {
	doc, err := Parse([]byte(`{"SchemaVersion": 2, "ArtifactName": "/", "Results": []}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	report, err := PopulateReport(doc, "t", "/")
	if err != nil {
		t.Fatalf("a report with zero findings is valid: %v", err)
	}
	if len(report.Findings) != 0 {
		t.Errorf("findings = %d, want 0", len(report.Findings))
	}
}

func TestPopulateReportMissingFields(t *testing.T) {
	tests := []struct {
		name string
		vuln Vulnerability
	}{
		{"no package name", Vulnerability{InstalledVersion: "1.0", Severity: "HIGH"}},
		{"no installed version", Vulnerability{PkgName: "bash", Severity: "HIGH"}},
		{"no severity or score", Vulnerability{PkgName: "bash", InstalledVersion: "1.0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := Document{Results: []Result{{Target: "x", Vulnerabilities: []Vulnerability{tt.vuln}}}}
			_, err := PopulateReport(doc, "t", "/")
			var malformed *scanner.MalformedReportError
			if !errors.As(err, &malformed) {
				t.Fatalf("expected MalformedReportError, got %v", err)
			}
		})
	}
}

func TestCvssScorePreference(t *testing.T) {
	tests := []struct {
		name string
		cvss map[string]CVSS
		want float64
	}{
		{"nvd v3 first", map[string]CVSS{
			"nvd": {V3Score: 7.8}, "redhat": {V3Score: 8.1}}, 7.8},
		{"other v3 when nvd has none", map[string]CVSS{
			"nvd": {V2Score: 5.0}, "redhat": {V3Score: 8.1}}, 8.1},
		{"v2 fallback", map[string]CVSS{"nvd": {V2Score: 5.0}}, 5.0},
		{"empty", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cvssScore(tt.cvss); got != tt.want {
				t.Errorf("cvssScore = %.1f, want %.1f", got, tt.want)
			}
		})
	}
}

func TestCvssScoreDeterministic(t *testing.T) {
	cvss := map[string]CVSS{
		"alpha": {V3Score: 6.5},
		"beta":  {V3Score: 7.5},
		"gamma": {V3Score: 8.5},
	}
	first := cvssScore(cvss)
	for i := 0; i < 20; i++ {
		if got := cvssScore(cvss); got != first {
			t.Fatalf("score changed between runs: %.1f vs %.1f", got, first)
		}
	}
	if first != 6.5 {
		t.Errorf("sorted-source order should pick alpha: got %.1f", first)
	}
}
