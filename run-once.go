package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vulnix/vulnix/classifier"
	"github.com/vulnix/vulnix/console"
	"github.com/vulnix/vulnix/executor"
	"github.com/vulnix/vulnix/hostinfo"
	"github.com/vulnix/vulnix/internal/oracle"
	"github.com/vulnix/vulnix/output"
	"github.com/vulnix/vulnix/remediation"
	"github.com/vulnix/vulnix/safety"
	"github.com/vulnix/vulnix/scanner"
	"github.com/vulnix/vulnix/scanner/trivy"
	"github.com/vulnix/vulnix/utils"
)

const (
	reportPrefix = "vulnix_report_"
	scriptPrefix = "vulnix_fix_"
)

// RunOnce drives one full session: scan, parse, classify, synthesize, gate,
// execute, report. Nothing touches the host until the safety verdict has
// approved the script.
func RunOnce(cfg utils.Config) *output.SessionReport {
	cons := console.New(cfg.Quiet || cfg.Output == utils.JsonOutput)
	rep := newSessionReport(cfg)

	host, err := hostinfo.Current()
	if err != nil {
		log.Warnf("could not fingerprint host: %v", err)
	}

	token := utils.GetTimestampToken()
	outputDir := cfg.OutputDir
	if outputDir == "" {
		outputDir = utils.DefaultOutputDir()
	}
	reportPath := filepath.Join(outputDir, reportPrefix+token+".json")
	scriptPath := filepath.Join(outputDir, scriptPrefix+token+".sh")

	binPath, err := trivy.LookupBin(cfg.TrivyBinPath)
	if err != nil {
		return failSession(rep, "scan", err)
	}

	target, skipDirs := resolveTarget(cfg)
	if os.Geteuid() != 0 {
		if err := refreshSudo(); err != nil {
			return failSession(rep, "scan", err)
		}
	}

	timeout := trivy.DefaultScanTimeout
	if cfg.ScanTimeout != "" {
		if d, err := time.ParseDuration(cfg.ScanTimeout); err == nil {
			timeout = d
		}
	}

	cons.Stage(fmt.Sprintf("scanning %s", target))
	if err := trivy.Scan(binPath, target, skipDirs, timeout, reportPath); err != nil {
		cons.StageFailed("scan failed")
		return failSession(rep, "scan", err)
	}
	cons.StageDone(fmt.Sprintf("scan complete, report at %s", reportPath))
	rep.ReportPath = reportPath

	report, err := loadReport(reportPath, token, target)
	if err != nil {
		return failSession(rep, "parse", err)
	}

	var client remediation.Oracle
	if cfg.OracleAPIKey != "" {
		client = oracle.NewClient(cfg.OracleAPIKey, cfg.OracleModel, cfg.OracleBaseURL, 0)
	}
	return remediate(cfg, cons, rep, report, host, client, scriptPath)
}

// remediate drives everything after a parsed report: classification,
// synthesis, gating, execution. A nil oracle means no API key is configured;
// sessions that need one end PARTIAL instead of failing.
func remediate(cfg utils.Config, cons *console.Console, rep *output.SessionReport,
	report scanner.ScanReport, host hostinfo.Fingerprint, client remediation.Oracle,
	scriptPath string) *output.SessionReport {

	rep.Severity = output.CountBySeverity(report.Findings)

	// a report with zero findings is a valid, clean system: the oracle and
	// the execution controller are never involved
	if len(report.Findings) == 0 {
		cons.Success("system is clean, no vulnerabilities found")
		rep.Status = utils.StatusClean
		return finishSession(rep)
	}

	plan := classifier.Classify(report)
	rep.Actions = plan.Counts()
	rep.ManualNotes = manualNotes(plan)
	if !cfg.Quiet && cfg.Output != utils.JsonOutput {
		output.SummaryTable(os.Stdout, rep.Severity)
		output.PlanTable(os.Stdout, plan)
	}

	if len(plan.Upgrades()) == 0 {
		if len(rep.ManualNotes) == 0 {
			rep.ManualNotes = append(rep.ManualNotes, "no actionable fixes available")
		}
		rep.Status = utils.StatusPartial
		return finishSession(rep)
	}

	if report.Fingerprint().IsZero() {
		rep.ManualNotes = append(rep.ManualNotes,
			"target OS could not be determined; host-level remediation skipped")
		rep.Status = utils.StatusPartial
		return finishSession(rep)
	}

	if client == nil {
		rep.ManualNotes = append(rep.ManualNotes,
			"no oracle API key configured; remediation script not generated")
		rep.Status = utils.StatusPartial
		return finishSession(rep)
	}

	cons.Stage("generating remediation script")
	synth := remediation.NewSynthesizer(client)
	ctx, cancel := context.WithTimeout(context.Background(), oracle.DefaultTimeout)
	script, err := synth.Synthesize(ctx, plan)
	cancel()
	if err != nil {
		cons.StageFailed("script generation failed")
		rep.Status = utils.StatusBlocked
		return failSessionWithStatus(rep, "synthesize", err)
	}
	cons.StageDone("remediation script generated")

	// persisted before execution so apply can happen later, elsewhere
	if err := script.Save(scriptPath); err != nil {
		return failSession(rep, "synthesize", err)
	}
	rep.ScriptPath = scriptPath

	if cfg.GenerateOnly {
		rep.ManualNotes = append(rep.ManualNotes, fmt.Sprintf(
			"apply with: vulnix -mode apply -script %s -report %s", scriptPath, rep.ReportPath))
		rep.Status = utils.StatusPartial
		return finishSession(rep)
	}

	return executeScript(cfg, cons, rep, script, host)
}

// RunApply re-gates and executes previously persisted artifacts. The verdict
// is always recomputed here: the host may have changed since generation.
func RunApply(cfg utils.Config) *output.SessionReport {
	cons := console.New(cfg.Quiet || cfg.Output == utils.JsonOutput)
	rep := newSessionReport(cfg)
	rep.ReportPath = cfg.ReportPath
	rep.ScriptPath = cfg.ScriptPath

	if cfg.ScriptPath == "" || cfg.ReportPath == "" {
		return failSession(rep, "load",
			fmt.Errorf("apply mode requires both -script and -report artifact paths"))
	}

	script, err := remediation.Load(cfg.ScriptPath)
	if err != nil {
		return failSession(rep, "load", err)
	}

	token := artifactToken(cfg.ReportPath, reportPrefix)
	report, err := loadReport(cfg.ReportPath, token, "")
	if err != nil {
		return failSession(rep, "load", err)
	}
	rep.Severity = output.CountBySeverity(report.Findings)

	// the correlation token ties a script to the report that produced it
	if script.PlanRef != report.ScanID {
		return failSession(rep, "correlate", fmt.Errorf(
			"script was generated from scan %s but report is %s", script.PlanRef, report.ScanID))
	}

	plan := classifier.Classify(report)
	rep.Actions = plan.Counts()
	rep.ManualNotes = manualNotes(plan)

	host, err := hostinfo.Current()
	if err != nil {
		return failSession(rep, "fingerprint", err)
	}

	return executeScript(cfg, cons, rep, script, host)
}

func executeScript(cfg utils.Config, cons *console.Console, rep *output.SessionReport,
	script *remediation.Script, host hostinfo.Fingerprint) *output.SessionReport {

	verdict := safety.Validate(script, host)
	rep.Verdict = &verdict

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	controller := &executor.Controller{
		Policy:       cfg.ConfirmPolicy,
		Confirmer:    cons,
		OnTransition: cons.OnState,
	}
	result := controller.Run(ctx, script, verdict)
	rep.ExecState = string(result.State)
	rep.Records = result.Records

	switch result.State {
	case executor.StateRejected:
		rep.Status = utils.StatusBlocked
	case executor.StateAborted:
		rep.Status = utils.StatusAborted
	case executor.StatePartiallyFailed:
		rep.Status = utils.StatusPartial
	case executor.StateCompleted:
		if len(rep.ManualNotes) > 0 {
			rep.Status = utils.StatusPartial
		} else {
			rep.Status = utils.StatusRemediated
		}
	}
	return finishSession(rep)
}

func newSessionReport(cfg utils.Config) *output.SessionReport {
	return &output.SessionReport{
		SessionID: cfg.SessionID,
		Host:      cfg.HostName,
		Target:    cfg.Target,
		ScanMode:  cfg.ScanMode,
		StartedAt: time.Now().UTC(),
	}
}

func finishSession(rep *output.SessionReport) *output.SessionReport {
	rep.FinishedAt = time.Now().UTC()
	return rep
}

// failSession records which stage failed and why; every failure path yields
// a session report, never a bare crash.
func failSession(rep *output.SessionReport, stage string, err error) *output.SessionReport {
	log.Errorf("stage %s failed: %v", stage, err)
	if rep.Status == "" {
		rep.Status = utils.StatusAborted
	}
	return failSessionWithStatus(rep, stage, err)
}

func failSessionWithStatus(rep *output.SessionReport, stage string, err error) *output.SessionReport {
	rep.FailedStage = stage
	rep.FailureReason = err.Error()
	return finishSession(rep)
}

func resolveTarget(cfg utils.Config) (string, []string) {
	switch cfg.ScanMode {
	case utils.ScanModeLight:
		return "/", trivy.LightScanSkipDirs
	case utils.ScanModeCustom:
		return cfg.Target, nil
	default:
		return "/", nil
	}
}

func loadReport(path, scanID, target string) (scanner.ScanReport, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return scanner.ScanReport{}, err
	}
	doc, err := trivy.Parse(raw)
	if err != nil {
		return scanner.ScanReport{}, err
	}
	if target == "" {
		target = doc.ArtifactName
	}
	return trivy.PopulateReport(doc, scanID, target)
}

func manualNotes(plan classifier.Plan) []string {
	var notes []string
	for _, entry := range plan.ManualEntries() {
		note := fmt.Sprintf("%s (%s): %s", entry.Package, entry.Path, entry.Justification)
		if entry.Hint != "" {
			note += " - " + entry.Hint
		}
		notes = append(notes, note)
	}
	return notes
}

// artifactToken recovers the shared timestamp token from an artifact
// filename.
func artifactToken(path, prefix string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return strings.TrimPrefix(base, prefix)
}

// refreshSudo caches sudo credentials up front so later privileged commands
// do not stall on a password prompt hidden behind a spinner.
func refreshSudo() error {
	cmd := exec.Command("sudo", "-v")
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("sudo authentication failed: %w", err)
	}
	return nil
}
