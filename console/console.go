// Package console is the interactive terminal layer: a thin view over the
// pipeline's state transitions, plus the prompts the execution controller
// asks through. Pipeline components never print; they notify this observer.
package console

import (
	"fmt"

	"github.com/pterm/pterm"

	"github.com/vulnix/vulnix/executor"
	"github.com/vulnix/vulnix/remediation"
	"github.com/vulnix/vulnix/utils"
)

type Console struct {
	quiet   bool
	spinner *pterm.SpinnerPrinter
}

func New(quiet bool) *Console {
	return &Console{quiet: quiet}
}

func (c *Console) Banner(version string) {
	if c.quiet {
		return
	}
	pterm.DefaultBox.
		WithTitle("VULNIX").
		WithTitleTopCenter().
		Println(fmt.Sprintf("v%s - vulnerability scan & gated auto-remediation", version))
}

// SelectScanMode shows the operation menu and returns the chosen scan mode
// and, for custom scans, the target path.
func (c *Console) SelectScanMode() (mode string, target string, err error) {
	const (
		optFull   = "Full system scan"
		optLight  = "Light scan (skip volatile system dirs)"
		optCustom = "Custom directory scan"
		optExit   = "Exit"
	)
	choice, err := pterm.DefaultInteractiveSelect.
		WithOptions([]string{optFull, optLight, optCustom, optExit}).
		Show("Select operation mode")
	if err != nil {
		return "", "", err
	}
	switch choice {
	case optFull:
		return utils.ScanModeFull, "/", nil
	case optLight:
		return utils.ScanModeLight, "/", nil
	case optCustom:
		path, err := pterm.DefaultInteractiveTextInput.Show("Target directory path")
		if err != nil {
			return "", "", err
		}
		return utils.ScanModeCustom, path, nil
	default:
		return "", "", nil
	}
}

// SelectConfirmPolicy asks how the remediation script should be confirmed.
func (c *Console) SelectConfirmPolicy() (string, error) {
	dryRun, err := pterm.DefaultInteractiveConfirm.
		WithDefaultValue(true).
		Show("Enable dry-run mode (confirm each command before it executes)?")
	if err != nil {
		return "", err
	}
	if dryRun {
		return utils.ConfirmDryRun, nil
	}
	return utils.ConfirmInteractive, nil
}

// Stage starts a spinner for a long-running pipeline stage.
func (c *Console) Stage(message string) {
	if c.quiet {
		return
	}
	c.spinner, _ = pterm.DefaultSpinner.Start(message)
}

func (c *Console) StageDone(message string) {
	if c.spinner != nil {
		c.spinner.Success(message)
		c.spinner = nil
	}
}

func (c *Console) StageFailed(message string) {
	if c.spinner != nil {
		c.spinner.Fail(message)
		c.spinner = nil
	}
}

func (c *Console) Info(format string, args ...interface{}) {
	if c.quiet {
		return
	}
	pterm.Info.Printfln(format, args...)
}

func (c *Console) Warn(format string, args ...interface{}) {
	pterm.Warning.Printfln(format, args...)
}

func (c *Console) Success(format string, args ...interface{}) {
	if c.quiet {
		return
	}
	pterm.Success.Printfln(format, args...)
}

// ConfirmScript implements executor.Confirmer for the interactive policy.
func (c *Console) ConfirmScript(script *remediation.Script) bool {
	ok, err := pterm.DefaultInteractiveConfirm.
		Show(fmt.Sprintf("Run remediation script (%d commands, target %s)?",
			len(script.Commands), script.TargetFingerprint.String()))
	return err == nil && ok
}

// ConfirmCommand implements executor.Confirmer for the dry-run policy.
func (c *Console) ConfirmCommand(cmd remediation.Command) bool {
	label := cmd.Text
	if cmd.Critical {
		label += "  [critical-path]"
	}
	ok, err := pterm.DefaultInteractiveConfirm.
		Show("Execute: " + label + "?")
	return err == nil && ok
}

// OnState observes execution controller transitions.
func (c *Console) OnState(state executor.State) {
	if c.quiet {
		return
	}
	switch state {
	case executor.StateRejected:
		pterm.Error.Printfln("execution rejected by the safety gate")
	case executor.StateRunning:
		pterm.Info.Printfln("running remediation commands")
	case executor.StateAborted:
		pterm.Warning.Printfln("execution aborted")
	}
}
