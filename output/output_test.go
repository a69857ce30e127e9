package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/vulnix/vulnix/classifier"
	"github.com/vulnix/vulnix/scanner"
	"github.com/vulnix/vulnix/utils"
)

func TestCountBySeverity(t *testing.T) {
	findings := []scanner.Finding{
		{Severity: utils.CRITICAL},
		{Severity: utils.HIGH},
		{Severity: utils.HIGH},
		{Severity: utils.MEDIUM},
		{Severity: utils.LOW},
	}
	detail := CountBySeverity(findings)
	if detail.Total != 5 || detail.Critical != 1 || detail.High != 2 || detail.Medium != 1 || detail.Low != 1 {
		t.Errorf("detail = %+v", detail)
	}
}

func TestSummaryTable(t *testing.T) {
	var buf bytes.Buffer
	SummaryTable(&buf, SeverityDetail{Critical: 2, High: 1, Total: 3})
	out := buf.String()
	for _, want := range []string{"CRITICAL", "HIGH", "TOTAL", "3"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary table missing %q:\n%s", want, out)
		}
	}
}

func TestPlanTable(t *testing.T) {
	var buf bytes.Buffer
	plan := classifier.Plan{Entries: []classifier.Entry{{
		Package:          "bash",
		Severity:         utils.CRITICAL,
		Action:           classifier.ActionUpgrade,
		InstalledVersion: "4.4-5",
		FixedVersion:     "4.4-5+deb9u1",
		Justification:    "fixed in 4.4-5+deb9u1, obtainable via apt",
	}}}
	PlanTable(&buf, plan)
	out := buf.String()
	for _, want := range []string{"bash", "UPGRADE", "4.4-5+deb9u1"} {
		if !strings.Contains(out, want) {
			t.Errorf("plan table missing %q:\n%s", want, out)
		}
	}
}
