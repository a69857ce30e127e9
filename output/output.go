package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	tw "github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"

	"github.com/vulnix/vulnix/classifier"
	"github.com/vulnix/vulnix/executor"
	"github.com/vulnix/vulnix/scanner"
	"github.com/vulnix/vulnix/utils"
)

func CountBySeverity(findings []scanner.Finding) SeverityDetail {
	detail := SeverityDetail{}
	for _, f := range findings {
		detail.Total++
		switch f.Severity {
		case utils.CRITICAL:
			detail.Critical++
		case utils.HIGH:
			detail.High++
		case utils.MEDIUM:
			detail.Medium++
		case utils.LOW:
			detail.Low++
		}
	}
	return detail
}

func SummaryTable(w io.Writer, detail SeverityDetail) {
	table := tw.NewWriter(w)
	table.SetHeader([]string{"Severity", "Count"})
	table.SetHeaderLine(true)
	table.SetBorder(true)
	table.SetAutoFormatHeaders(true)
	table.Append([]string{utils.CRITICAL, strconv.Itoa(detail.Critical)})
	table.Append([]string{utils.HIGH, strconv.Itoa(detail.High)})
	table.Append([]string{utils.MEDIUM, strconv.Itoa(detail.Medium)})
	table.Append([]string{utils.LOW, strconv.Itoa(detail.Low)})
	table.Append([]string{"TOTAL", strconv.Itoa(detail.Total)})
	table.Render()
}

func PlanTable(w io.Writer, plan classifier.Plan) {
	table := tw.NewWriter(w)
	table.SetHeader([]string{"Package", "Severity", "Action", "Installed", "Fixed", "Justification"})
	table.SetHeaderLine(true)
	table.SetBorder(true)
	table.SetAutoWrapText(true)
	table.SetColMinWidth(5, 40)
	for _, entry := range plan.Entries {
		table.Append([]string{
			entry.Package, entry.Severity, entry.Action,
			entry.InstalledVersion, entry.FixedVersion, entry.Justification,
		})
	}
	table.Render()
}

func RecordsTable(w io.Writer, records []executor.Record) {
	table := tw.NewWriter(w)
	table.SetHeader([]string{"Command", "Status", "Exit"})
	table.SetHeaderLine(true)
	table.SetBorder(true)
	table.SetAutoWrapText(true)
	table.SetColMinWidth(0, 50)
	for _, record := range records {
		table.Append([]string{record.Command, record.Status, strconv.Itoa(record.ExitCode)})
	}
	table.Render()
}

// Render prints the final session report in the configured format.
func Render(report *SessionReport, format string) {
	if format == utils.JsonOutput {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			log.Errorf("error converting session report to json: %s", err)
			return
		}
		fmt.Println(string(data))
		return
	}

	fmt.Printf("\nsession %s  status=%s  host=%s  target=%s\n",
		report.SessionID, report.Status, report.Host, report.Target)
	if report.FailedStage != "" {
		fmt.Printf("failed stage: %s\nreason: %s\n", report.FailedStage, report.FailureReason)
	}
	SummaryTable(os.Stdout, report.Severity)
	if len(report.Actions) > 0 {
		fmt.Printf("plan: upgrade=%d replace=%d manual=%d ignore=%d\n",
			report.Actions[classifier.ActionUpgrade],
			report.Actions[classifier.ActionReplace],
			report.Actions[classifier.ActionManualReview],
			report.Actions[classifier.ActionIgnore])
	}
	if report.Verdict != nil && !report.Verdict.Approved {
		fmt.Println("safety gate blocked execution:")
		for _, reason := range report.Verdict.BlockingReasons {
			fmt.Printf("  - %s\n", reason)
		}
	}
	for _, note := range report.ManualNotes {
		fmt.Printf("manual action required: %s\n", note)
	}
	if len(report.Records) > 0 {
		RecordsTable(os.Stdout, report.Records)
	}
	if report.ReportPath != "" {
		fmt.Printf("report artifact: %s\n", report.ReportPath)
	}
	if report.ScriptPath != "" {
		fmt.Printf("script artifact: %s\n", report.ScriptPath)
	}
}

// FailOn exits non-zero for CI-style gating on finding volume.
func FailOn(cfg *utils.Config, detail SeverityDetail) {
	if cfg.FailOnCount > 0 && detail.Total >= cfg.FailOnCount {
		log.Fatalf("number of vulnerabilities (%d) reached/exceeded the limit (%d)",
			detail.Total, cfg.FailOnCount)
	}
}
