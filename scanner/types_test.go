package scanner

import (
	"testing"

	"github.com/vulnix/vulnix/utils"
)

func TestNormalizeSeverity(t *testing.T) {
	tests := []struct {
		name          string
		label         string
		score         float64
		want          string
		wantDefaulted bool
	}{
		{"score critical boundary", "", 9.0, utils.CRITICAL, false},
		{"score high", "LOW", 7.5, utils.HIGH, false},
		{"score medium boundary", "", 4.0, utils.MEDIUM, false},
		{"score low", "", 2.1, utils.LOW, false},
		{"score wins over label", "CRITICAL", 3.0, utils.LOW, false},
		{"label only", "HIGH", 0, utils.HIGH, false},
		{"unrecognized label", "NEGLIGIBLE", 0, utils.MEDIUM, true},
		{"nothing at all", "", 0, utils.MEDIUM, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, defaulted := NormalizeSeverity(tt.label, tt.score)
			if got != tt.want || defaulted != tt.wantDefaulted {
				t.Errorf("NormalizeSeverity(%q, %.1f) = (%s, %v), want (%s, %v)",
					tt.label, tt.score, got, defaulted, tt.want, tt.wantDefaulted)
			}
		})
	}
}

func TestSeverityRank(t *testing.T) {
	order := []string{utils.CRITICAL, utils.HIGH, utils.MEDIUM, utils.LOW, "UNKNOWN"}
	for i := 1; i < len(order); i++ {
		if SeverityRank(order[i-1]) <= SeverityRank(order[i]) {
			t.Errorf("rank(%s) must exceed rank(%s)", order[i-1], order[i])
		}
	}
}

func TestReportFingerprint(t *testing.T) {
	report := ScanReport{
		OS:   OSInfo{Family: "debian", Version: "9.13"},
		Arch: "amd64",
	}
	fp := report.Fingerprint()
	if fp.IsZero() {
		t.Fatal("fingerprint should not be zero")
	}
	if fp.String() != "debian:9:amd64" {
		t.Errorf("fingerprint = %s, want debian:9:amd64", fp.String())
	}

	empty := ScanReport{Arch: "amd64"}
	if !empty.Fingerprint().IsZero() {
		t.Error("report without OS family must yield a zero fingerprint")
	}
}

func TestMalformedReportError(t *testing.T) {
	err := &MalformedReportError{Reason: "vulnerability entry without package name"}
	if err.Error() != "malformed scan report: vulnerability entry without package name" {
		t.Errorf("unexpected message: %s", err.Error())
	}
}
